package sync

import (
	"context"
	"errors"
	"fmt"

	"github.com/mattsolo1/grove-backlog/pkg/remote"
)

// Provider is the remote work item service as seen by the orchestrator.
// *remote.Client implements it.
type Provider interface {
	// GetWorkItem fetches a single item.
	GetWorkItem(ctx context.Context, id int, expand remote.Expand) (*remote.WorkItem, error)
	// GetWorkItems fetches many items in batches, omitting ids that do not exist.
	GetWorkItems(ctx context.Context, ids []int, expand remote.Expand) ([]*remote.WorkItem, error)
	// CreateWorkItem creates an item of the given remote type.
	CreateWorkItem(ctx context.Context, workItemType string, ops []remote.PatchOperation) (*remote.WorkItem, error)
	// UpdateWorkItem applies a patch to an existing item.
	UpdateWorkItem(ctx context.Context, id int, ops []remote.PatchOperation) (*remote.WorkItem, error)
	// AddParentLink attaches childID below parentID.
	AddParentLink(ctx context.Context, childID, parentID int) error
	// GetComments returns all comments on an item.
	GetComments(ctx context.Context, id int) ([]remote.Comment, error)
	// GetPullRequests resolves pull requests linked from the item's relations.
	GetPullRequests(ctx context.Context, item *remote.WorkItem) ([]remote.PullRequest, error)
}

var _ Provider = (*remote.Client)(nil)

// Action is what the orchestrator did, or would do, with one item.
type Action string

const (
	ActionCreate   Action = "create"
	ActionUpdate   Action = "update"
	ActionSkip     Action = "skip"
	ActionConflict Action = "conflict"
	ActionPull     Action = "pull"
	ActionLink     Action = "link"
)

// Result is the per-item outcome of a push, pull or link.
type Result struct {
	LocalID  string
	Action   Action
	Success  bool
	RemoteID int
	URL      string
	Message  string
	Err      error
	Conflict *ConflictInfo
}

// ErrorText returns the error message, or "" when the item succeeded.
func (r Result) ErrorText() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// Report summarizes the results of a sync operation.
type Report struct {
	Created   int
	Updated   int
	Skipped   int
	Pulled    int
	Linked    int
	Conflicts int
	Failed    int
	Errors    []string // Detailed error messages
}

// Summarize counts results. Conflicts are counted apart from other failures.
func Summarize(results []Result) Report {
	var r Report
	for _, res := range results {
		if res.Action == ActionConflict {
			r.Conflicts++
			if res.Err != nil {
				r.Errors = append(r.Errors, fmt.Sprintf("%s: %v", res.LocalID, res.Err))
			}
			continue
		}
		if !res.Success {
			r.Failed++
			r.Errors = append(r.Errors, fmt.Sprintf("%s: %s", res.LocalID, res.ErrorText()))
			continue
		}
		switch res.Action {
		case ActionCreate:
			r.Created++
		case ActionUpdate:
			r.Updated++
		case ActionSkip:
			r.Skipped++
		case ActionPull:
			r.Pulled++
		case ActionLink:
			r.Linked++
		}
	}
	return r
}

// HasFailures reports whether any item failed or conflicted.
func (r Report) HasFailures() bool {
	return r.Failed > 0 || r.Conflicts > 0
}

// ErrRunFailed marks a run in which at least one item failed or conflicted.
// Successful items of the same run are still applied.
var ErrRunFailed = errors.New("one or more items failed to sync")

// RunError returns nil when every result succeeded, else ErrRunFailed with counts.
func RunError(results []Result) error {
	report := Summarize(results)
	if !report.HasFailures() {
		return nil
	}
	return fmt.Errorf("%w: %d failed, %d conflicts", ErrRunFailed, report.Failed, report.Conflicts)
}
