package sync

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mattsolo1/grove-backlog/pkg/models"
	"github.com/mattsolo1/grove-backlog/pkg/remote"
)

// fakeProvider is an in-memory work item service that applies patches the
// way the real one does, including the revision test on updates.
type fakeProvider struct {
	items    map[int]*remote.WorkItem
	nextID   int
	comments map[int][]remote.Comment
	prs      map[int][]remote.PullRequest

	commentErr   error
	createErr    error
	linkErr      error
	staleUpdates bool

	creates int
	updates int
	links   int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		items:    make(map[int]*remote.WorkItem),
		nextID:   1000,
		comments: make(map[int][]remote.Comment),
		prs:      make(map[int][]remote.PullRequest),
	}
}

func itemURL(id int) string {
	return fmt.Sprintf("https://dev.azure.com/acme/_apis/wit/workItems/%d", id)
}

func (f *fakeProvider) seed(id, rev int, workItemType, title string) *remote.WorkItem {
	w := &remote.WorkItem{
		ID:  id,
		Rev: rev,
		Fields: map[string]any{
			remote.FieldWorkItemType: workItemType,
			"System.Title":           title,
		},
		URL:   itemURL(id),
		Links: map[string]remote.Link{"html": {Href: fmt.Sprintf("https://dev.azure.com/acme/web/_workitems/edit/%d", id)}},
	}
	f.items[id] = w
	return w
}

func clone(w *remote.WorkItem) *remote.WorkItem {
	c := *w
	c.Fields = make(map[string]any, len(w.Fields))
	for k, v := range w.Fields {
		c.Fields[k] = v
	}
	c.Relations = append([]remote.Relation(nil), w.Relations...)
	return &c
}

func notFound(id int) error {
	return &remote.APIError{StatusCode: http.StatusNotFound, Code: remote.CodeNotFound, Method: http.MethodGet, URL: itemURL(id)}
}

func applyOps(w *remote.WorkItem, ops []remote.PatchOperation) {
	for _, op := range ops {
		if !strings.HasPrefix(op.Path, "/fields/") {
			continue
		}
		name := strings.TrimPrefix(op.Path, "/fields/")
		if op.Op == remote.OpAdd {
			w.Fields[name] = op.Value
		}
	}
}

func (f *fakeProvider) GetWorkItem(_ context.Context, id int, _ remote.Expand) (*remote.WorkItem, error) {
	w, ok := f.items[id]
	if !ok {
		return nil, notFound(id)
	}
	return clone(w), nil
}

func (f *fakeProvider) GetWorkItems(_ context.Context, ids []int, _ remote.Expand) ([]*remote.WorkItem, error) {
	var out []*remote.WorkItem
	for _, id := range ids {
		if w, ok := f.items[id]; ok {
			out = append(out, clone(w))
		}
	}
	return out, nil
}

func (f *fakeProvider) CreateWorkItem(_ context.Context, workItemType string, ops []remote.PatchOperation) (*remote.WorkItem, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.creates++
	f.nextID++
	w := f.seed(f.nextID, 1, workItemType, "")
	delete(w.Fields, "System.Title")
	applyOps(w, ops)
	return clone(w), nil
}

func (f *fakeProvider) UpdateWorkItem(_ context.Context, id int, ops []remote.PatchOperation) (*remote.WorkItem, error) {
	w, ok := f.items[id]
	if !ok {
		return nil, notFound(id)
	}
	if f.staleUpdates {
		w.Rev++
	}
	if len(ops) > 0 && ops[0].Op == remote.OpTest && ops[0].Path == "/rev" {
		if rev, _ := ops[0].Value.(int); rev != w.Rev {
			return nil, &remote.APIError{StatusCode: http.StatusPreconditionFailed, Code: remote.CodeConflict, Method: http.MethodPatch, URL: itemURL(id)}
		}
	}
	f.updates++
	applyOps(w, ops)
	w.Rev++
	return clone(w), nil
}

func (f *fakeProvider) AddParentLink(_ context.Context, childID, parentID int) error {
	if f.linkErr != nil {
		return f.linkErr
	}
	w, ok := f.items[childID]
	if !ok {
		return notFound(childID)
	}
	f.links++
	w.Relations = append(w.Relations, remote.Relation{Rel: remote.RelParent, URL: itemURL(parentID)})
	w.Rev++
	return nil
}

func (f *fakeProvider) GetComments(_ context.Context, id int) ([]remote.Comment, error) {
	if f.commentErr != nil {
		return nil, f.commentErr
	}
	return f.comments[id], nil
}

func (f *fakeProvider) GetPullRequests(_ context.Context, item *remote.WorkItem) ([]remote.PullRequest, error) {
	return f.prs[item.ID], nil
}

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestSyncer(p Provider, defaults Defaults) *Syncer {
	s := NewSyncer(p, defaults, nil)
	s.now = func() time.Time { return fixedNow }
	return s
}

func linked(item *models.WorkItem, id, rev int) *models.WorkItem {
	item.Remote = &models.RemoteMetadata{RemoteID: id, Revision: rev}
	return item
}

func testDocument(items ...*models.WorkItem) *models.Document {
	return &models.Document{
		SchemaVersion: models.SchemaVersion,
		HierarchyType: models.HierarchyMedium,
		Project:       models.Project{Organization: "acme", Project: "web", AreaPath: `web\Team`},
		WorkItems:     items,
	}
}
