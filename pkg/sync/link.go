package sync

import (
	"context"
	"fmt"

	"github.com/mattsolo1/grove-backlog/pkg/models"
	"github.com/mattsolo1/grove-backlog/pkg/remote"
	"github.com/mattsolo1/grove-backlog/pkg/tree"
)

// Link attaches an existing remote item to a local item. With linkParent
// set, the remote item is also placed below the local parent when that
// parent is linked and the remote item has no parent yet.
func (s *Syncer) Link(ctx context.Context, doc *models.Document, localID string, remoteID int, linkParent bool) (Result, error) {
	item := tree.FindByLocalID(doc, localID)
	if item == nil {
		return Result{}, fmt.Errorf("no work item with local id %q", localID)
	}
	if other := tree.FindByRemoteID(doc, remoteID); other != nil && other != item {
		return Result{}, fmt.Errorf("remote item %d is already linked to %s", remoteID, other.LocalID)
	}

	w, err := s.provider.GetWorkItem(ctx, remoteID, remote.ExpandRelations)
	if err != nil {
		return Result{}, fmt.Errorf("fetch remote item %d: %w", remoteID, err)
	}

	s.applyMetadata(item, w)
	res := Result{
		LocalID:  localID,
		Action:   ActionLink,
		Success:  true,
		RemoteID: remoteID,
		URL:      item.Remote.URL,
		Message:  fmt.Sprintf("linked to #%d", remoteID),
	}

	parent := tree.Parent(doc, localID)
	if linkParent && parent != nil && parent.IsLinked() {
		switch existing := w.ParentID(); existing {
		case parent.RemoteID():
		case 0:
			if err := s.provider.AddParentLink(ctx, remoteID, parent.RemoteID()); err != nil {
				res.Success = false
				res.Err = fmt.Errorf("link #%d to parent #%d: %w", remoteID, parent.RemoteID(), err)
				res.Message += fmt.Sprintf(" at revision %d", item.Remote.Revision)
				return res, nil
			}
			res.Message += fmt.Sprintf(", parented under #%d", parent.RemoteID())
			// The parent relation is a write of its own and bumps the revision.
			if fresh, err := s.provider.GetWorkItem(ctx, remoteID, remote.ExpandNone); err != nil {
				s.logger.WithError(err).WithField("localId", localID).Warn("could not refresh metadata after parent link")
				res.Message += fmt.Sprintf(" (metadata refresh failed: %v)", err)
			} else {
				s.applyMetadata(item, fresh)
			}
		default:
			res.Message += fmt.Sprintf(" (remote parent #%d differs from local parent #%d; left unchanged)", existing, parent.RemoteID())
		}
	}
	res.Message += fmt.Sprintf(" at revision %d", item.Remote.Revision)
	return res, nil
}

// Unlink removes the remote metadata from a local item. The remote item is
// not touched.
func Unlink(doc *models.Document, localID string) error {
	item := tree.FindByLocalID(doc, localID)
	if item == nil {
		return fmt.Errorf("no work item with local id %q", localID)
	}
	if !item.IsLinked() {
		return fmt.Errorf("%s is not linked", localID)
	}
	item.Remote = nil
	return nil
}
