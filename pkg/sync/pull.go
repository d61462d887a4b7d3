package sync

import (
	"context"
	"fmt"

	"github.com/mattsolo1/grove-backlog/pkg/models"
	"github.com/mattsolo1/grove-backlog/pkg/remote"
	"github.com/mattsolo1/grove-backlog/pkg/tree"
)

// Pull refreshes the remote metadata of every linked item. Items missing
// remotely are reported as failures and left in the document.
func (s *Syncer) Pull(ctx context.Context, doc *models.Document, opts PullOptions) ([]Result, error) {
	re := compileFilter(opts.Filter)
	var linked []*models.WorkItem
	var ids []int
	for _, e := range tree.Flatten(doc) {
		if !e.Item.IsLinked() || (re != nil && !re.MatchString(e.Item.LocalID)) {
			continue
		}
		linked = append(linked, e.Item)
		ids = append(ids, e.Item.RemoteID())
	}
	if len(linked) == 0 {
		return []Result{}, nil
	}

	expand := remote.ExpandNone
	if opts.IncludePRs {
		expand = remote.ExpandRelations
	}
	fetched, err := s.provider.GetWorkItems(ctx, ids, expand)
	if err != nil {
		return nil, fmt.Errorf("fetch %d remote items: %w", len(ids), err)
	}
	byID := make(map[int]*remote.WorkItem, len(fetched))
	for _, w := range fetched {
		byID[w.ID] = w
	}

	results := make([]Result, 0, len(linked))
	for _, item := range linked {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		results = append(results, s.pullItem(ctx, item, byID[item.RemoteID()], opts))
	}
	return results, nil
}

// pullItem applies one fetched record. Enrichment is fetched first so a
// failure leaves the item untouched.
func (s *Syncer) pullItem(ctx context.Context, item *models.WorkItem, w *remote.WorkItem, opts PullOptions) Result {
	res := Result{LocalID: item.LocalID, Action: ActionPull, RemoteID: item.RemoteID()}
	if w == nil {
		res.Err = fmt.Errorf("remote item %d not found (deleted remotely?)", item.RemoteID())
		return res
	}

	enrichment, err := Enrich(ctx, s.provider, w, opts.IncludeComments, opts.IncludePRs)
	if err != nil {
		res.Err = err
		return res
	}

	previous := item.Remote.Revision
	s.applyMetadata(item, w)
	if opts.IncludeComments {
		item.Remote.Comments = enrichment.Comments
	}
	if opts.IncludePRs {
		item.Remote.LinkedPullRequests = enrichment.PullRequests
	}

	res.Success = true
	res.URL = item.Remote.URL
	if previous == w.Rev {
		res.Message = fmt.Sprintf("up to date at revision %d", w.Rev)
	} else {
		res.Message = fmt.Sprintf("revision %d -> %d", previous, w.Rev)
	}
	return res
}
