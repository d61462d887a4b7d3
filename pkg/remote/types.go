package remote

import (
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"
)

// Expand selects how much of a work item the service returns.
type Expand string

const (
	ExpandNone      Expand = "None"
	ExpandRelations Expand = "Relations"
	ExpandFields    Expand = "Fields"
	ExpandLinks     Expand = "Links"
	ExpandAll       Expand = "All"
)

// Relation types used by the work item tracking service.
const (
	RelParent   = "System.LinkTypes.Hierarchy-Reverse"
	RelChild    = "System.LinkTypes.Hierarchy-Forward"
	RelArtifact = "ArtifactLink"
)

// Well-known remote field names read outside the mapping table.
const (
	FieldWorkItemType = "System.WorkItemType"
	FieldChangedDate  = "System.ChangedDate"
	FieldChangedBy    = "System.ChangedBy"
)

// WorkItem is a work item record as returned by the service.
type WorkItem struct {
	ID        int             `json:"id"`
	Rev       int             `json:"rev"`
	Fields    map[string]any  `json:"fields"`
	Relations []Relation      `json:"relations,omitempty"`
	URL       string          `json:"url"`
	Links     map[string]Link `json:"_links,omitempty"`
}

// Link is a hypermedia link in the _links section.
type Link struct {
	Href string `json:"href"`
}

// Relation links a work item to another item or artifact.
type Relation struct {
	Rel        string         `json:"rel"`
	URL        string         `json:"url"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// TargetID returns the work item id at the end of a work item relation URL,
// or 0 when the URL does not point at a work item.
func (r Relation) TargetID() int {
	u, err := url.Parse(r.URL)
	if err != nil {
		return 0
	}
	id, err := strconv.Atoi(path.Base(u.Path))
	if err != nil {
		return 0
	}
	return id
}

// String returns a field as a string; non-string values yield "".
func (w *WorkItem) String(field string) string {
	if w == nil {
		return ""
	}
	s, _ := w.Fields[field].(string)
	return s
}

// Type returns the remote work item type name.
func (w *WorkItem) Type() string { return w.String(FieldWorkItemType) }

// Title returns System.Title.
func (w *WorkItem) Title() string { return w.String("System.Title") }

// State returns System.State.
func (w *WorkItem) State() string { return w.String("System.State") }

// AssignedTo returns the unique name of the assignee, if any.
func (w *WorkItem) AssignedTo() string {
	if w == nil {
		return ""
	}
	return identityName(w.Fields["System.AssignedTo"])
}

// ChangedDate returns System.ChangedDate, or the zero time.
func (w *WorkItem) ChangedDate() time.Time {
	t, err := time.Parse(time.RFC3339Nano, w.String(FieldChangedDate))
	if err != nil {
		return time.Time{}
	}
	return t
}

// WebURL returns the browser URL of the item, falling back to the API URL.
func (w *WorkItem) WebURL() string {
	if link, ok := w.Links["html"]; ok && link.Href != "" {
		return link.Href
	}
	return w.URL
}

// ChildIDs returns the ids of all parent-to-child relations in order.
func (w *WorkItem) ChildIDs() []int {
	var ids []int
	for _, rel := range w.Relations {
		if rel.Rel == RelChild {
			if id := rel.TargetID(); id != 0 {
				ids = append(ids, id)
			}
		}
	}
	return ids
}

// ParentID returns the id of the child-to-parent relation, or 0.
func (w *WorkItem) ParentID() int {
	for _, rel := range w.Relations {
		if rel.Rel == RelParent {
			return rel.TargetID()
		}
	}
	return 0
}

// PatchOperation is one JSON-Patch operation against a work item.
type PatchOperation struct {
	Op    string `json:"op"`
	Path  string `json:"path"`
	Value any    `json:"value,omitempty"`
}

// Patch operation kinds.
const (
	OpAdd  = "add"
	OpTest = "test"
)

// IdentityRef is a user reference.
type IdentityRef struct {
	DisplayName string `json:"displayName"`
	UniqueName  string `json:"uniqueName"`
}

// Name prefers the unique name and falls back to the display name.
func (i IdentityRef) Name() string {
	if i.UniqueName != "" {
		return i.UniqueName
	}
	return i.DisplayName
}

// Comment is a work item discussion comment.
type Comment struct {
	ID          int         `json:"id"`
	Text        string      `json:"text"`
	CreatedBy   IdentityRef `json:"createdBy"`
	CreatedDate time.Time   `json:"createdDate"`
}

// PullRequest is a Git pull request resolved from an artifact link.
type PullRequest struct {
	PullRequestID int    `json:"pullRequestId"`
	Title         string `json:"title"`
	Status        string `json:"status"`
	SourceRefName string `json:"sourceRefName"`
	TargetRefName string `json:"targetRefName"`
	URL           string `json:"url"`
	Repository    struct {
		ID     string `json:"id"`
		Name   string `json:"name"`
		WebURL string `json:"webUrl"`
	} `json:"repository"`
}

// WebURL returns the browser URL of the pull request when the repository URL is known.
func (p PullRequest) WebURL() string {
	if p.Repository.WebURL == "" {
		return p.URL
	}
	return p.Repository.WebURL + "/pullrequest/" + strconv.Itoa(p.PullRequestID)
}

const pullRequestArtifactPrefix = "vstfs:///Git/PullRequestId/"

// pullRequestRef extracts the repository and pull request id from an
// artifact link such as vstfs:///Git/PullRequestId/{project}%2F{repo}%2F{id}.
func pullRequestRef(artifact string) (repoID string, prID int, ok bool) {
	if !strings.HasPrefix(artifact, pullRequestArtifactPrefix) {
		return "", 0, false
	}
	ref, err := url.PathUnescape(strings.TrimPrefix(artifact, pullRequestArtifactPrefix))
	if err != nil {
		return "", 0, false
	}
	parts := strings.Split(ref, "/")
	if len(parts) != 3 {
		return "", 0, false
	}
	id, err := strconv.Atoi(parts[2])
	if err != nil {
		return "", 0, false
	}
	return parts[1], id, true
}

func identityName(v any) string {
	switch id := v.(type) {
	case string:
		return id
	case map[string]any:
		if name, _ := id["uniqueName"].(string); name != "" {
			return name
		}
		name, _ := id["displayName"].(string)
		return name
	}
	return ""
}
