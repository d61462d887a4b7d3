package cmd

import (
	"encoding/json"
	"fmt"

	grovelogging "github.com/mattsolo1/grove-core/logging"
	"github.com/mattsolo1/grove-core/version"
	"github.com/spf13/cobra"

	"github.com/mattsolo1/grove-backlog/pkg/remote"
)

var versionUlog = grovelogging.NewUnifiedLogger("grove-backlog.cmd.version")

// buildInfo is the build plus the remote API revision the client speaks.
type buildInfo struct {
	Version    string `json:"version"`
	Commit     string `json:"commit"`
	Branch     string `json:"branch"`
	APIVersion string `json:"apiVersion"`

	summary string
}

func (b buildInfo) render(format string) (string, error) {
	switch format {
	case "json":
		data, err := json.MarshalIndent(b, "", "  ")
		if err != nil {
			return "", fmt.Errorf("encode version info: %w", err)
		}
		return string(data), nil
	case "short":
		return b.Version, nil
	case "", "text":
		return fmt.Sprintf("%s\nwork item API %s", b.summary, b.APIVersion), nil
	}
	return "", fmt.Errorf("unknown format %q (want text, json or short)", format)
}

// NewVersionCmd creates the `version` command.
func NewVersionCmd() *cobra.Command {
	var (
		jsonOutput bool
		short      bool
	)

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long:  "Display the build of backlog and the work item API version it targets",
		RunE: func(cmd *cobra.Command, args []string) error {
			info := version.GetInfo()
			b := buildInfo{
				Version:    info.Version,
				Commit:     info.Commit,
				Branch:     info.Branch,
				APIVersion: remote.DefaultAPIVersion,
				summary:    info.String(),
			}

			format := "text"
			switch {
			case jsonOutput:
				format = "json"
			case short:
				format = "short"
			}
			out, err := b.render(format)
			if err != nil {
				return err
			}

			versionUlog.Info("Version info").
				Field("version", b.Version).
				Field("commit", b.Commit).
				Field("api_version", b.APIVersion).
				Pretty(out).
				PrettyOnly().
				Log(cmd.Context())
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version information in JSON format")
	cmd.Flags().BoolVar(&short, "short", false, "Print only the version number")
	cmd.MarkFlagsMutuallyExclusive("json", "short")

	return cmd
}
