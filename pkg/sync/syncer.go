// Package sync reconciles a backlog document with the remote work item
// service: push, pull, combined sync, diff and linking.
package sync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mattsolo1/grove-backlog/pkg/diff"
	"github.com/mattsolo1/grove-backlog/pkg/models"
	"github.com/mattsolo1/grove-backlog/pkg/remote"
	"github.com/mattsolo1/grove-backlog/pkg/tree"
)

// Syncer orchestrates the synchronization process. Items are processed one
// at a time; a Syncer must not be shared between goroutines.
type Syncer struct {
	provider Provider
	defaults Defaults
	logger   *logrus.Entry
	now      func() time.Time
}

// NewSyncer creates a Syncer backed by provider.
func NewSyncer(provider Provider, defaults Defaults, logger *logrus.Entry) *Syncer {
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = logrus.NewEntry(l)
	}
	return &Syncer{
		provider: provider,
		defaults: defaults,
		logger:   logger.WithField("component", "syncer"),
		now:      time.Now,
	}
}

// SyncReport holds both halves of a combined sync.
type SyncReport struct {
	Pull []Result
	Push []Result
}

// All returns pull results followed by push results.
func (r *SyncReport) All() []Result {
	return append(append([]Result{}, r.Pull...), r.Push...)
}

// Sync pulls remote metadata and then pushes local changes. Only the push
// honours DryRun; the strategy decides whether push forces past conflicts.
func (s *Syncer) Sync(ctx context.Context, doc *models.Document, opts SyncOptions) (*SyncReport, error) {
	pulled, err := s.Pull(ctx, doc, PullOptions{
		IncludeComments: opts.IncludeComments,
		IncludePRs:      opts.IncludePRs,
		Filter:          opts.Filter,
	})
	if err != nil {
		return nil, fmt.Errorf("pull: %w", err)
	}

	pushed, err := s.Push(ctx, doc, PushOptions{
		DryRun: opts.DryRun,
		Force:  opts.Strategy == StrategyPreferLocal,
		Filter: opts.Filter,
	})
	report := &SyncReport{Pull: pulled, Push: pushed}
	if err != nil {
		return report, fmt.Errorf("push: %w", err)
	}
	return report, nil
}

// Diff compares every item matching filter with its remote counterpart.
// Linked items whose remote record is gone are reported as new.
func (s *Syncer) Diff(ctx context.Context, doc *models.Document, filter string) ([]diff.Result, error) {
	re := compileFilter(filter)
	var entries []tree.Entry
	var ids []int
	for _, e := range tree.Flatten(doc) {
		if re != nil && !re.MatchString(e.Item.LocalID) {
			continue
		}
		entries = append(entries, e)
		if e.Item.IsLinked() {
			ids = append(ids, e.Item.RemoteID())
		}
	}

	byID := make(map[int]*remote.WorkItem)
	if len(ids) > 0 {
		fetched, err := s.provider.GetWorkItems(ctx, ids, remote.ExpandNone)
		if err != nil {
			return nil, fmt.Errorf("fetch remote items: %w", err)
		}
		for _, w := range fetched {
			byID[w.ID] = w
		}
	}

	results := make([]diff.Result, 0, len(entries))
	for _, e := range entries {
		results = append(results, diff.Compare(e.Item, byID[e.Item.RemoteID()]))
	}
	return results, nil
}

// MetadataFor builds the remote-owned metadata for w as of now.
func MetadataFor(w *remote.WorkItem, now time.Time) *models.RemoteMetadata {
	return &models.RemoteMetadata{
		RemoteID:       w.ID,
		Revision:       w.Rev,
		URL:            w.WebURL(),
		LastSyncedAt:   now.UTC(),
		ChangedDate:    w.ChangedDate(),
		RemoteState:    w.State(),
		RemoteAssignee: w.AssignedTo(),
	}
}

// applyMetadata replaces the remote-owned metadata of item from w. History
// always survives; comments and pull requests survive while the item stays
// linked to the same remote id.
func (s *Syncer) applyMetadata(item *models.WorkItem, w *remote.WorkItem) {
	meta := MetadataFor(w, s.now())
	if prev := item.Remote; prev != nil {
		meta.History = prev.History
		if prev.RemoteID == w.ID {
			meta.ETag = prev.ETag
			meta.Comments = prev.Comments
			meta.LinkedPullRequests = prev.LinkedPullRequests
		}
	}
	item.Remote = meta
}

func convertComments(comments []remote.Comment) []models.Comment {
	out := make([]models.Comment, 0, len(comments))
	for _, c := range comments {
		out = append(out, models.Comment{
			ID:        c.ID,
			Author:    c.CreatedBy.Name(),
			Text:      remote.HTMLToText(c.Text),
			CreatedAt: c.CreatedDate,
		})
	}
	return out
}

func convertPullRequests(prs []remote.PullRequest) []models.PullRequest {
	out := make([]models.PullRequest, 0, len(prs))
	for _, pr := range prs {
		out = append(out, models.PullRequest{
			ID:           pr.PullRequestID,
			Title:        pr.Title,
			Status:       pr.Status,
			Repository:   pr.Repository.Name,
			SourceBranch: pr.SourceRefName,
			TargetBranch: pr.TargetRefName,
			URL:          pr.WebURL(),
		})
	}
	return out
}

// Enrichment is the optional per-item data fetched on pull and import.
type Enrichment struct {
	Comments     []models.Comment
	PullRequests []models.PullRequest
}

// Enrich fetches comments and linked pull requests for w as requested.
// Both halves are attempted; on error e still holds the half that succeeded.
func Enrich(ctx context.Context, p Provider, w *remote.WorkItem, comments, prs bool) (Enrichment, error) {
	var (
		e    Enrichment
		errs []error
	)
	if comments {
		if c, err := p.GetComments(ctx, w.ID); err != nil {
			errs = append(errs, fmt.Errorf("fetch comments: %w", err))
		} else {
			e.Comments = convertComments(c)
		}
	}
	if prs {
		if list, err := p.GetPullRequests(ctx, w); err != nil {
			errs = append(errs, fmt.Errorf("fetch pull requests: %w", err))
		} else {
			e.PullRequests = convertPullRequests(list)
		}
	}
	return e, errors.Join(errs...)
}
