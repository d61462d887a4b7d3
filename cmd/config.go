package cmd

import (
	"fmt"
	"strings"

	grovelogging "github.com/mattsolo1/grove-core/logging"
	"github.com/spf13/cobra"

	"github.com/mattsolo1/grove-backlog/pkg/config"
)

var configUlog = grovelogging.NewUnifiedLogger("grove-backlog.cmd.config")

func maskSecret(key string, value any) string {
	s := fmt.Sprint(value)
	if key != "token" || s == "" {
		return s
	}
	if len(s) <= 4 {
		return "****"
	}
	return strings.Repeat("*", 8) + s[len(s)-4:]
}

// NewConfigCmd creates the `config` command and its subcommands.
func NewConfigCmd(loader **config.Loader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change persistent settings",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List every setting with its effective value",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			l := *loader
			var b strings.Builder
			b.WriteString(paint(dimStyle, "# "+l.Path()) + "\n")
			for _, key := range config.Keys() {
				v, err := l.Get(key)
				if err != nil {
					return err
				}
				b.WriteString(fmt.Sprintf("%s = %s\n", key, maskSecret(key, v)))
			}
			configUlog.Info("Config listed").
				Field("path", l.Path()).
				Pretty(strings.TrimRight(b.String(), "\n")).
				PrettyOnly().
				Log(cmd.Context())
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "get <key>",
		Short: "Print the effective value of a setting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := (*loader).Get(args[0])
			if err != nil {
				return err
			}
			configUlog.Info("Config value").
				Field("key", args[0]).
				Pretty(maskSecret(args[0], v)).
				PrettyOnly().
				Log(cmd.Context())
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set <key> <value>",
		Short: "Persist a setting to the config file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			l := *loader
			if err := l.Set(args[0], args[1]); err != nil {
				return err
			}
			configUlog.Success("Config updated").
				Field("key", args[0]).
				Field("path", l.Path()).
				Pretty(fmt.Sprintf("* %s saved to %s", args[0], l.Path())).
				PrettyOnly().
				Log(cmd.Context())
			return nil
		},
	})

	return cmd
}
