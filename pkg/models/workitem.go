package models

import "time"

// WorkItemType is the kind of a work item in the backlog hierarchy.
type WorkItemType string

const (
	TypeEpic        WorkItemType = "Epic"
	TypeFeature     WorkItemType = "Feature"
	TypeBacklogItem WorkItemType = "Backlog Item"
	TypeUserStory   WorkItemType = "User Story"
	TypeTask        WorkItemType = "Task"
	TypeBug         WorkItemType = "Bug"
	TypeIssue       WorkItemType = "Issue"
)

// AllWorkItemTypes lists every type a document may contain.
var AllWorkItemTypes = []WorkItemType{
	TypeEpic,
	TypeFeature,
	TypeBacklogItem,
	TypeUserStory,
	TypeTask,
	TypeBug,
	TypeIssue,
}

// IsValid reports whether t is one of the known work item types.
func (t WorkItemType) IsValid() bool {
	for _, known := range AllWorkItemTypes {
		if t == known {
			return true
		}
	}
	return false
}

// RemoteName returns the type name used by the remote service.
func (t WorkItemType) RemoteName() string {
	if t == TypeBacklogItem {
		return "Product Backlog Item"
	}
	return string(t)
}

// TypeFromRemote maps a remote type name back to a local work item type.
// Unknown names are returned unchanged.
func TypeFromRemote(name string) WorkItemType {
	if name == "Product Backlog Item" {
		return TypeBacklogItem
	}
	return WorkItemType(name)
}

// WorkItem is a node in the document tree.
type WorkItem struct {
	Type    WorkItemType `yaml:"type" json:"type"`
	LocalID string       `yaml:"localId" json:"localId"`
	Title   string       `yaml:"title" json:"title"`

	Description        string   `yaml:"description,omitempty" json:"description,omitempty"`
	AcceptanceCriteria string   `yaml:"acceptanceCriteria,omitempty" json:"acceptanceCriteria,omitempty"`
	State              string   `yaml:"state,omitempty" json:"state,omitempty"`
	Priority           int      `yaml:"priority,omitempty" json:"priority,omitempty"` // 1-4, 0 when unset
	Tags               []string `yaml:"tags,omitempty,flow" json:"tags,omitempty"`
	AssignedTo         string   `yaml:"assignedTo,omitempty" json:"assignedTo,omitempty"`
	AreaPath           string   `yaml:"areaPath,omitempty" json:"areaPath,omitempty"`
	IterationPath      string   `yaml:"iterationPath,omitempty" json:"iterationPath,omitempty"`

	StoryPoints      *float64 `yaml:"storyPoints,omitempty" json:"storyPoints,omitempty"`
	Effort           *float64 `yaml:"effort,omitempty" json:"effort,omitempty"`
	RemainingWork    *float64 `yaml:"remainingWork,omitempty" json:"remainingWork,omitempty"`
	OriginalEstimate *float64 `yaml:"originalEstimate,omitempty" json:"originalEstimate,omitempty"`
	CompletedWork    *float64 `yaml:"completedWork,omitempty" json:"completedWork,omitempty"`
	BusinessValue    *int     `yaml:"businessValue,omitempty" json:"businessValue,omitempty"`
	ValueArea        string   `yaml:"valueArea,omitempty" json:"valueArea,omitempty"`
	Activity         string   `yaml:"activity,omitempty" json:"activity,omitempty"`

	TargetDate string `yaml:"targetDate,omitempty" json:"targetDate,omitempty"`
	StartDate  string `yaml:"startDate,omitempty" json:"startDate,omitempty"`
	FinishDate string `yaml:"finishDate,omitempty" json:"finishDate,omitempty"`

	// Remote is nil until the item has been created remotely or linked.
	Remote *RemoteMetadata `yaml:"remote,omitempty" json:"remote,omitempty"`

	Children []*WorkItem `yaml:"children,omitempty" json:"children,omitempty"`
}

// RemoteID returns the linked remote id, or 0 when the item is not linked.
func (w *WorkItem) RemoteID() int {
	if w == nil || w.Remote == nil {
		return 0
	}
	return w.Remote.RemoteID
}

// IsLinked reports whether the item has a remote counterpart.
func (w *WorkItem) IsLinked() bool {
	return w.RemoteID() != 0
}

// RemoteMetadata is the sync state recorded for a linked work item.
type RemoteMetadata struct {
	RemoteID       int       `yaml:"remoteId" json:"remoteId"`
	URL            string    `yaml:"url,omitempty" json:"url,omitempty"`
	Revision       int       `yaml:"revision,omitempty" json:"revision,omitempty"`
	LastSyncedAt   time.Time `yaml:"lastSyncedAt,omitempty" json:"lastSyncedAt,omitempty"`
	ChangedDate    time.Time `yaml:"changedDate,omitempty" json:"changedDate,omitempty"`
	ETag           string    `yaml:"etag,omitempty" json:"etag,omitempty"`
	RemoteState    string    `yaml:"remoteState,omitempty" json:"remoteState,omitempty"`
	RemoteAssignee string    `yaml:"remoteAssignee,omitempty" json:"remoteAssignee,omitempty"`

	Comments           []Comment      `yaml:"comments,omitempty" json:"comments,omitempty"`
	LinkedPullRequests []PullRequest  `yaml:"linkedPullRequests,omitempty" json:"linkedPullRequests,omitempty"`
	History            []HistoryEntry `yaml:"history,omitempty" json:"history,omitempty"`
}

// Comment is a discussion entry pulled from the remote service.
type Comment struct {
	ID        int       `yaml:"id" json:"id"`
	Author    string    `yaml:"author,omitempty" json:"author,omitempty"`
	Text      string    `yaml:"text" json:"text"`
	CreatedAt time.Time `yaml:"createdAt,omitempty" json:"createdAt,omitempty"`
}

// PullRequest is a pull request linked to a work item.
type PullRequest struct {
	ID           int    `yaml:"id" json:"id"`
	Title        string `yaml:"title" json:"title"`
	Status       string `yaml:"status,omitempty" json:"status,omitempty"`
	Repository   string `yaml:"repository,omitempty" json:"repository,omitempty"`
	SourceBranch string `yaml:"sourceBranch,omitempty" json:"sourceBranch,omitempty"`
	TargetBranch string `yaml:"targetBranch,omitempty" json:"targetBranch,omitempty"`
	URL          string `yaml:"url,omitempty" json:"url,omitempty"`
}

// HistoryEntry records one successful push of an item.
type HistoryEntry struct {
	Revision int       `yaml:"revision" json:"revision"`
	Action   string    `yaml:"action" json:"action"`
	At       time.Time `yaml:"at" json:"at"`
}

// MaxHistoryEntries bounds RemoteMetadata.History.
const MaxHistoryEntries = 20

// AppendHistory records a push and drops the oldest entries past MaxHistoryEntries.
func (m *RemoteMetadata) AppendHistory(entry HistoryEntry) {
	m.History = append(m.History, entry)
	if over := len(m.History) - MaxHistoryEntries; over > 0 {
		m.History = append([]HistoryEntry(nil), m.History[over:]...)
	}
}
