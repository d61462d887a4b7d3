package cmd

import (
	"fmt"
	"strconv"
	"time"

	grovelogging "github.com/mattsolo1/grove-core/logging"
	"github.com/spf13/cobra"

	"github.com/mattsolo1/grove-backlog/pkg/journal"
	"github.com/mattsolo1/grove-backlog/pkg/service"
	"github.com/mattsolo1/grove-backlog/pkg/sync"
)

var linkUlog = grovelogging.NewUnifiedLogger("grove-backlog.cmd.link")

// NewLinkCmd creates the `link` command.
func NewLinkCmd(svc **service.Service) *cobra.Command {
	var linkParent bool

	cmd := &cobra.Command{
		Use:   "link <localId> <remoteId>",
		Short: "Attach an existing remote work item to a local item",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s := *svc
			ctx := cmd.Context()

			remoteID, err := strconv.Atoi(args[1])
			if err != nil || remoteID <= 0 {
				return fmt.Errorf("invalid remote id %q", args[1])
			}

			h, err := s.OpenDocument(ctx)
			if err != nil {
				return err
			}
			defer h.Close()

			syncer, err := s.Syncer(h.Doc)
			if err != nil {
				return err
			}

			started := time.Now()
			res, err := syncer.Link(ctx, h.Doc, args[0], remoteID, linkParent)
			if err != nil {
				return err
			}
			if err := h.Save(); err != nil {
				return err
			}
			s.Record("link", false, started, journal.EntriesFromSync([]sync.Result{res}))

			linkUlog.Success("Item linked").
				Field("local_id", res.LocalID).
				Field("remote_id", res.RemoteID).
				Pretty(formatResult(res)).
				PrettyOnly().
				Log(ctx)
			return sync.RunError([]sync.Result{res})
		},
	}

	cmd.Flags().BoolVar(&linkParent, "link-parent", false, "Also parent the remote item under the linked local parent")

	return cmd
}

// NewUnlinkCmd creates the `unlink` command.
func NewUnlinkCmd(svc **service.Service) *cobra.Command {
	return &cobra.Command{
		Use:   "unlink <localId>",
		Short: "Forget the remote item linked to a local item",
		Long:  "Remove the local sync metadata of an item. The remote work item is left untouched.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s := *svc
			h, err := s.OpenDocument(cmd.Context())
			if err != nil {
				return err
			}
			defer h.Close()

			if err := sync.Unlink(h.Doc, args[0]); err != nil {
				return err
			}
			if err := h.Save(); err != nil {
				return err
			}

			linkUlog.Success("Item unlinked").
				Field("local_id", args[0]).
				Pretty(fmt.Sprintf("* %s unlinked", args[0])).
				PrettyOnly().
				Log(cmd.Context())
			return nil
		},
	}
}
