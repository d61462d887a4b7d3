// Package importer builds a local backlog document from an existing remote
// work item tree.
package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mattsolo1/grove-backlog/pkg/models"
	"github.com/mattsolo1/grove-backlog/pkg/remote"
	"github.com/mattsolo1/grove-backlog/pkg/sync"
)

// DefaultMaxDepth bounds recursion on malformed or cyclic relation data.
const DefaultMaxDepth = 10

// Options controls Import.
type Options struct {
	RootID   int
	MaxDepth int

	// FilterTag and FilterType select which direct children of the root are
	// imported. Matching is case-insensitive; both must match when both are set.
	FilterTag  string
	FilterType string

	IncludeComments bool
	IncludePRs      bool

	Project models.Project
}

func (o Options) matches(w *remote.WorkItem) bool {
	if o.FilterType != "" {
		t := w.Type()
		if !strings.EqualFold(o.FilterType, t) && !strings.EqualFold(o.FilterType, string(models.TypeFromRemote(t))) {
			return false
		}
	}
	if o.FilterTag == "" {
		return true
	}
	for _, tag := range remote.SplitTags(w.String("System.Tags")) {
		if strings.EqualFold(tag, o.FilterTag) {
			return true
		}
	}
	return false
}

// Result is the outcome for one remote item visited during import.
type Result struct {
	LocalID  string
	RemoteID int
	Type     models.WorkItemType
	Title    string
	Depth    int
	Success  bool
	Err      error
}

// Outcome is the imported document plus the per-item log, in visit order.
type Outcome struct {
	Document *models.Document
	Results  []Result
}

// Failed counts unsuccessful results.
func (o *Outcome) Failed() int {
	n := 0
	for _, r := range o.Results {
		if !r.Success {
			n++
		}
	}
	return n
}

// Importer fetches remote trees through a sync.Provider.
type Importer struct {
	provider sync.Provider
	logger   *logrus.Entry
	now      func() time.Time
}

// New creates an Importer.
func New(provider sync.Provider, logger *logrus.Entry) *Importer {
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = logrus.NewEntry(l)
	}
	return &Importer{
		provider: provider,
		logger:   logger.WithField("component", "importer"),
		now:      time.Now,
	}
}

type run struct {
	*Importer
	opts  Options
	out   *Outcome
	seen  map[int]bool
	types map[models.WorkItemType]bool
}

// Import materializes the remote subtree rooted at opts.RootID. Only a
// failure to fetch the root is returned as an error; everything else is
// recorded in Outcome.Results.
func (im *Importer) Import(ctx context.Context, opts Options) (*Outcome, error) {
	if opts.RootID <= 0 {
		return nil, errors.New("a root work item id is required")
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}

	root, err := im.provider.GetWorkItem(ctx, opts.RootID, remote.ExpandRelations)
	if err != nil {
		return nil, fmt.Errorf("fetch root work item %d: %w", opts.RootID, err)
	}

	r := &run{
		Importer: im,
		opts:     opts,
		out:      &Outcome{Results: []Result{}},
		seen:     map[int]bool{root.ID: true},
		types:    map[models.WorkItemType]bool{},
	}
	item := r.build(ctx, root, 0)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.out.Document = &models.Document{
		SchemaVersion: models.SchemaVersion,
		HierarchyType: InferHierarchy(r.types),
		Project:       opts.Project,
		WorkItems:     []*models.WorkItem{item},
	}
	return r.out, nil
}

func (r *run) build(ctx context.Context, w *remote.WorkItem, depth int) *models.WorkItem {
	item := r.convert(ctx, w)
	r.types[item.Type] = true
	r.out.Results = append(r.out.Results, Result{
		LocalID:  item.LocalID,
		RemoteID: w.ID,
		Type:     item.Type,
		Title:    item.Title,
		Depth:    depth,
		Success:  true,
	})

	children := w.ChildIDs()
	if len(children) > 0 && depth >= r.opts.MaxDepth {
		r.logger.WithFields(logrus.Fields{"remoteId": w.ID, "depth": depth}).
			Warnf("max depth reached, %d children not imported", len(children))
		return item
	}

	for _, id := range children {
		if ctx.Err() != nil {
			return item
		}
		if r.seen[id] {
			r.fail(id, depth+1, fmt.Errorf("work item %d already imported (cyclic relation?)", id))
			continue
		}
		r.seen[id] = true

		child, err := r.provider.GetWorkItem(ctx, id, remote.ExpandRelations)
		if err != nil {
			r.fail(id, depth+1, fmt.Errorf("fetch work item %d: %w", id, err))
			continue
		}
		if depth == 0 && !r.opts.matches(child) {
			r.logger.WithField("remoteId", id).Debug("child excluded by filter")
			continue
		}
		item.Children = append(item.Children, r.build(ctx, child, depth+1))
	}
	return item
}

func (r *run) fail(id, depth int, err error) {
	r.logger.WithError(err).WithField("remoteId", id).Warn("import failed")
	r.out.Results = append(r.out.Results, Result{RemoteID: id, Depth: depth, Err: err})
}

// convert turns a remote record into a linked local item. Comments and pull
// requests are best effort.
func (r *run) convert(ctx context.Context, w *remote.WorkItem) *models.WorkItem {
	item := &models.WorkItem{
		Type:    models.TypeFromRemote(w.Type()),
		LocalID: LocalIDFor(w.Type(), w.ID),
	}
	remote.ApplyFields(item, w)
	item.Remote = sync.MetadataFor(w, r.now())

	if !r.opts.IncludeComments && !r.opts.IncludePRs {
		return item
	}
	enrichment, err := sync.Enrich(ctx, r.provider, w, r.opts.IncludeComments, r.opts.IncludePRs)
	if err != nil {
		r.logger.WithError(err).WithField("remoteId", w.ID).Warn("incomplete comments or pull requests")
	}
	item.Remote.Comments = enrichment.Comments
	item.Remote.LinkedPullRequests = enrichment.PullRequests
	return item
}
