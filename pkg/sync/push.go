package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mattsolo1/grove-backlog/pkg/diff"
	"github.com/mattsolo1/grove-backlog/pkg/models"
	"github.com/mattsolo1/grove-backlog/pkg/remote"
	"github.com/mattsolo1/grove-backlog/pkg/tree"
)

// ConflictInfo explains why an item was not pushed.
type ConflictInfo struct {
	LocalRevision   int
	RemoteRevision  int
	RemoteChangedAt time.Time
	LocalSyncedAt   time.Time
}

func (c *ConflictInfo) Error() string {
	return fmt.Sprintf("remote revision %d is newer than local revision %d (remote changed %s, last synced %s)",
		c.RemoteRevision, c.LocalRevision, formatTime(c.RemoteChangedAt), formatTime(c.LocalSyncedAt))
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	return t.UTC().Format(time.RFC3339)
}

// decision is the per-item outcome of the push state machine.
type decision struct {
	action   Action
	reason   string
	current  *remote.WorkItem
	changes  []diff.Change
	conflict *ConflictInfo
}

// Push sends local changes to the remote service, parents before children.
// One item's failure does not stop the run; inspect the results (or
// RunError) for failures and conflicts.
func (s *Syncer) Push(ctx context.Context, doc *models.Document, opts PushOptions) ([]Result, error) {
	if opts.CreateOnly && opts.UpdateOnly {
		return nil, errors.New("create-only and update-only are mutually exclusive")
	}

	re := compileFilter(opts.Filter)
	results := []Result{}
	for _, e := range tree.Flatten(doc) {
		if re != nil && !re.MatchString(e.Item.LocalID) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return results, err
		}

		d := s.decide(ctx, e.Item, opts)
		log := s.logger.WithFields(logrus.Fields{"localId": e.Item.LocalID, "action": d.action})
		log.Debug(d.reason)

		var res Result
		switch {
		case d.action == ActionConflict:
			res = Result{LocalID: e.Item.LocalID, Action: ActionConflict, RemoteID: e.Item.RemoteID(), Message: d.reason, Err: d.conflict, Conflict: d.conflict}
		case opts.DryRun:
			res = Result{LocalID: e.Item.LocalID, Action: d.action, Success: true, RemoteID: e.Item.RemoteID(), Message: "dry run: " + d.reason}
		case d.action == ActionCreate:
			res = s.create(ctx, doc, e)
		case d.action == ActionUpdate:
			res = s.update(ctx, e.Item, d)
		default:
			res = Result{LocalID: e.Item.LocalID, Action: ActionSkip, Success: true, RemoteID: e.Item.RemoteID(), Message: d.reason}
		}
		if res.URL == "" && e.Item.Remote != nil {
			res.URL = e.Item.Remote.URL
		}
		if !res.Success {
			log.WithError(res.Err).Warn("push failed")
		}
		results = append(results, res)
	}
	return results, nil
}

func (s *Syncer) decide(ctx context.Context, item *models.WorkItem, opts PushOptions) decision {
	if !item.IsLinked() {
		if opts.UpdateOnly {
			return decision{action: ActionSkip, reason: "not linked to a remote item (update-only)"}
		}
		return decision{action: ActionCreate, reason: "not linked to a remote item"}
	}
	if opts.CreateOnly {
		return decision{action: ActionSkip, reason: "already linked (create-only)"}
	}

	current, err := s.provider.GetWorkItem(ctx, item.RemoteID(), remote.ExpandRelations)
	if err != nil {
		if opts.UpdateOnly {
			return decision{action: ActionSkip, reason: fmt.Sprintf("remote item %d unavailable (update-only): %v", item.RemoteID(), err)}
		}
		return decision{action: ActionCreate, reason: fmt.Sprintf("remote item %d unavailable, recreating: %v", item.RemoteID(), err)}
	}

	if !opts.Force && current.Rev > item.Remote.Revision {
		info := &ConflictInfo{
			LocalRevision:   item.Remote.Revision,
			RemoteRevision:  current.Rev,
			RemoteChangedAt: current.ChangedDate(),
			LocalSyncedAt:   item.Remote.LastSyncedAt,
		}
		return decision{action: ActionConflict, reason: info.Error(), current: current, conflict: info}
	}

	changes := diff.Compare(item, current).Outgoing()
	if len(changes) > 0 {
		return decision{action: ActionUpdate, reason: fmt.Sprintf("%d field(s) changed", len(changes)), current: current, changes: changes}
	}
	return decision{action: ActionSkip, reason: "no changes", current: current}
}

// withDefaults returns a copy of item with configured defaults filled in.
func (s *Syncer) withDefaults(doc *models.Document, item *models.WorkItem) *models.WorkItem {
	payload := *item
	payload.Children = nil
	payload.Remote = nil

	if payload.AreaPath == "" {
		payload.AreaPath = firstNonEmpty(s.defaults.AreaPath, doc.Project.AreaPath)
	}
	if payload.IterationPath == "" {
		payload.IterationPath = firstNonEmpty(s.defaults.IterationPath, doc.Project.IterationPath)
	}
	if payload.State == "" {
		payload.State = s.defaults.State
	}
	if payload.Priority == 0 {
		payload.Priority = s.defaults.Priority
	}
	return &payload
}

// adoptDefaults copies the defaulted fields of a sent payload back into item
// so the document matches what was created.
func adoptDefaults(item, payload *models.WorkItem) {
	item.AreaPath = payload.AreaPath
	item.IterationPath = payload.IterationPath
	item.State = payload.State
	item.Priority = payload.Priority
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func (s *Syncer) create(ctx context.Context, doc *models.Document, e tree.Entry) Result {
	item := e.Item
	res := Result{LocalID: item.LocalID, Action: ActionCreate}

	payload := s.withDefaults(doc, item)
	created, err := s.provider.CreateWorkItem(ctx, item.Type.RemoteName(), remote.CreatePatch(payload))
	if err != nil {
		res.Err = err
		return res
	}

	adoptDefaults(item, payload)
	s.applyMetadata(item, created)
	res.RemoteID = created.ID
	res.Success = true
	res.Message = fmt.Sprintf("created #%d", created.ID)

	if e.Parent != nil && e.Parent.IsLinked() {
		if err := s.provider.AddParentLink(ctx, created.ID, e.Parent.RemoteID()); err != nil {
			res.Success = false
			res.Err = fmt.Errorf("created #%d but could not link to parent %s: %w", created.ID, e.Parent.LocalID, err)
			return res
		}
		res.Message += fmt.Sprintf(" under #%d", e.Parent.RemoteID())
	}

	s.refresh(ctx, item, &res)
	return res
}

func (s *Syncer) update(ctx context.Context, item *models.WorkItem, d decision) Result {
	res := Result{LocalID: item.LocalID, Action: ActionUpdate, RemoteID: item.RemoteID()}

	ops := remote.UpdatePatch(item, d.current.Rev)
	if _, err := s.provider.UpdateWorkItem(ctx, item.RemoteID(), ops); err != nil {
		if remote.IsConflict(err) {
			res.Action = ActionConflict
			res.Conflict = &ConflictInfo{
				LocalRevision:  item.Remote.Revision,
				RemoteRevision: d.current.Rev,
				LocalSyncedAt:  item.Remote.LastSyncedAt,
			}
			res.Err = fmt.Errorf("remote item changed during update: %w", err)
			return res
		}
		res.Err = err
		return res
	}

	res.Success = true
	res.Message = d.reason
	s.refresh(ctx, item, &res)
	return res
}

// refresh re-reads the item after a write and records the new revision.
// A failed refresh leaves the write successful but is noted in the message.
func (s *Syncer) refresh(ctx context.Context, item *models.WorkItem, res *Result) {
	fresh, err := s.provider.GetWorkItem(ctx, item.RemoteID(), remote.ExpandNone)
	if err != nil {
		s.logger.WithError(err).WithField("localId", item.LocalID).Warn("could not refresh metadata after push")
		res.Message += fmt.Sprintf(" (metadata refresh failed: %v)", err)
	} else {
		s.applyMetadata(item, fresh)
	}
	item.Remote.AppendHistory(models.HistoryEntry{
		Revision: item.Remote.Revision,
		Action:   string(res.Action),
		At:       s.now().UTC(),
	})
	res.URL = item.Remote.URL
}
