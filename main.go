package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/mattsolo1/grove-core/cli"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/mattsolo1/grove-backlog/cmd"
	"github.com/mattsolo1/grove-backlog/pkg/config"
	"github.com/mattsolo1/grove-backlog/pkg/document"
	"github.com/mattsolo1/grove-backlog/pkg/service"
)

var (
	svc          *service.Service
	loader       *config.Loader
	documentPath string
)

// addFlagOnce defines a persistent flag unless the standard command already has it.
func addFlagOnce(root *cobra.Command, name, shorthand, usage string, boolFlag bool) {
	if root.PersistentFlags().Lookup(name) != nil {
		return
	}
	if boolFlag {
		root.PersistentFlags().BoolP(name, shorthand, false, usage)
		return
	}
	root.PersistentFlags().StringP(name, shorthand, "", usage)
}

// skipsConfigValidation reports whether cmd can run with an invalid config,
// so that `config set` can repair it.
func skipsConfigValidation(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Name() == "config" || c.Name() == "version" {
			return true
		}
	}
	return false
}

func main() {
	rootCmd := cli.NewStandardCommand(
		"backlog",
		"Synchronize a YAML work item hierarchy with Azure DevOps Boards",
	)
	rootCmd.SilenceUsage = true
	rootCmd.PersistentFlags().StringVarP(&documentPath, "file", "f", document.DefaultPath, "Backlog document to operate on")
	addFlagOnce(rootCmd, "config", "", "Config file (default $HOME/.config/backlog/config.yaml)", false)
	addFlagOnce(rootCmd, "verbose", "", "Enable debug logging", true)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		// This runs once before any subcommand
		logger := logrus.New()
		logger.SetOutput(os.Stderr)
		logger.SetLevel(logrus.WarnLevel)
		if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
			logger.SetLevel(logrus.DebugLevel)
		}

		// 1. Load configuration from file and environment
		configPath, _ := cmd.Flags().GetString("config")
		var err error
		loader, err = config.NewLoader(configPath)
		if err != nil {
			return err
		}
		cfg, err := loader.Load()
		if err != nil {
			return err
		}
		if !skipsConfigValidation(cmd) {
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration in %s: %w", loader.Path(), err)
			}
		}

		// 2. Initialize the main service
		svc, err = service.New(cfg, documentPath, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize service: %w", err)
		}
		return nil
	}
	rootCmd.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		if svc != nil {
			return svc.Close()
		}
		return nil
	}

	// Add subcommands
	rootCmd.AddCommand(cmd.NewInitCmd(&svc))
	rootCmd.AddCommand(cmd.NewValidateCmd(&svc))
	rootCmd.AddCommand(cmd.NewStatusCmd(&svc))
	rootCmd.AddCommand(cmd.NewDiffCmd(&svc))
	rootCmd.AddCommand(cmd.NewPushCmd(&svc))
	rootCmd.AddCommand(cmd.NewPullCmd(&svc))
	rootCmd.AddCommand(cmd.NewSyncCmd(&svc))
	rootCmd.AddCommand(cmd.NewLinkCmd(&svc))
	rootCmd.AddCommand(cmd.NewUnlinkCmd(&svc))
	rootCmd.AddCommand(cmd.NewImportCmd(&svc))
	rootCmd.AddCommand(cmd.NewConfigCmd(&loader))
	rootCmd.AddCommand(cmd.NewVersionCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
