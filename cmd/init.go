package cmd

import (
	"fmt"
	"os"

	grovelogging "github.com/mattsolo1/grove-core/logging"
	"github.com/spf13/cobra"

	"github.com/mattsolo1/grove-backlog/pkg/document"
	"github.com/mattsolo1/grove-backlog/pkg/models"
	"github.com/mattsolo1/grove-backlog/pkg/service"
)

var initUlog = grovelogging.NewUnifiedLogger("grove-backlog.cmd.init")

// NewInitCmd creates the `init` command.
func NewInitCmd(svc **service.Service) *cobra.Command {
	var (
		hierarchy    string
		organization string
		project      string
		force        bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a starter backlog document",
		Long: `Create a backlog document with one example branch of work items.

Examples:
  backlog init --hierarchy medium --org acme --project web
  backlog init -f sprint.yaml --hierarchy simple`,
		RunE: func(cmd *cobra.Command, args []string) error {
			s := *svc
			if organization == "" {
				organization = s.Config.Organization
			}
			if project == "" {
				project = s.Config.Project
			}

			if _, err := os.Stat(s.DocumentPath); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", s.DocumentPath)
			}

			doc, err := document.NewTemplate(models.HierarchyType(hierarchy), organization, project)
			if err != nil {
				return err
			}
			if err := document.Save(s.DocumentPath, doc); err != nil {
				return err
			}

			initUlog.Success("Backlog created").
				Field("path", s.DocumentPath).
				Field("hierarchy", hierarchy).
				Pretty(fmt.Sprintf("* Created %s (%s hierarchy)", s.DocumentPath, hierarchy)).
				PrettyOnly().
				Log(cmd.Context())
			return nil
		},
	}

	cmd.Flags().StringVar(&hierarchy, "hierarchy", string(models.HierarchyFull), "Hierarchy type: full, medium or simple")
	cmd.Flags().StringVar(&organization, "org", "", "Organization (default from config)")
	cmd.Flags().StringVar(&project, "project", "", "Project (default from config)")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing document")

	return cmd
}
