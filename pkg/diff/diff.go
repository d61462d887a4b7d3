// Package diff compares a local work item with its remote counterpart.
package diff

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/mattsolo1/grove-backlog/pkg/models"
	"github.com/mattsolo1/grove-backlog/pkg/remote"
)

// Status classifies a local/remote pair.
type Status string

const (
	StatusNew       Status = "new"
	StatusModified  Status = "modified"
	StatusConflict  Status = "conflict"
	StatusUnchanged Status = "unchanged"
)

// Change is one differing field. Local or Remote is nil when unset on that side.
type Change struct {
	Field  models.Field
	Local  any
	Remote any
}

func (c Change) String() string {
	return fmt.Sprintf("%s: %s -> %s", c.Field, format(c.Remote), format(c.Local))
}

// Result is the outcome of comparing one item.
type Result struct {
	LocalID        string
	RemoteID       int
	Status         Status
	Changes        []Change
	LocalRevision  int
	RemoteRevision int
}

// Outgoing returns the changes a push sends: those whose field is set
// locally. A field unset locally is never cleared remotely.
func (r Result) Outgoing() []Change {
	var out []Change
	for _, c := range r.Changes {
		if c.Local != nil {
			out = append(out, c)
		}
	}
	return out
}

// Compare classifies local against remote, which may be nil when the item
// has no remote counterpart.
func Compare(local *models.WorkItem, rw *remote.WorkItem) Result {
	result := Result{LocalID: local.LocalID, RemoteID: local.RemoteID()}
	if local.Remote != nil {
		result.LocalRevision = local.Remote.Revision
	}

	if rw == nil {
		result.Status = StatusNew
		for _, f := range models.ComparisonFields {
			if v := local.Value(f); v != nil {
				result.Changes = append(result.Changes, Change{Field: f, Local: v})
			}
		}
		return result
	}

	result.RemoteID = rw.ID
	result.RemoteRevision = rw.Rev
	remoteValues := remote.LocalValues(rw)
	for _, f := range models.ComparisonFields {
		lv, rv := local.Value(f), remoteValues[f]
		if !Equal(lv, rv) {
			result.Changes = append(result.Changes, Change{Field: f, Local: lv, Remote: rv})
		}
	}

	switch {
	case len(result.Changes) == 0:
		// A revision bump alone is not reported.
		result.Status = StatusUnchanged
	case result.LocalRevision > 0 && rw.Rev > result.LocalRevision:
		result.Status = StatusConflict
	default:
		result.Status = StatusModified
	}
	return result
}

// Equal compares two normalized field values. Nil equals nil, strings are
// compared after trimming, tag lists are compared as sorted sets.
func Equal(a, b any) bool {
	if a == nil || b == nil {
		return isBlank(a) && isBlank(b)
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && strings.TrimSpace(av) == strings.TrimSpace(bv)
	case []string:
		bv, ok := b.([]string)
		return ok && equalTags(av, bv)
	}
	return reflect.DeepEqual(a, b)
}

func isBlank(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(x) == ""
	case []string:
		return len(x) == 0
	}
	return false
}

func equalTags(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	as := sortedTrimmed(a)
	bs := sortedTrimmed(b)
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}

func sortedTrimmed(tags []string) []string {
	out := make([]string, len(tags))
	for i, tag := range tags {
		out[i] = strings.TrimSpace(tag)
	}
	sort.Strings(out)
	return out
}

func format(v any) string {
	switch x := v.(type) {
	case nil:
		return "(none)"
	case string:
		return fmt.Sprintf("%q", x)
	case []string:
		return "[" + strings.Join(x, ", ") + "]"
	}
	return fmt.Sprint(v)
}

// Summary counts results per status.
type Summary struct {
	New       int
	Modified  int
	Conflict  int
	Unchanged int
}

// Total returns the number of summarized results.
func (s Summary) Total() int {
	return s.New + s.Modified + s.Conflict + s.Unchanged
}

// HasIssues reports whether any result needs manual attention.
func (s Summary) HasIssues() bool {
	return s.Conflict > 0
}

// Pending reports whether a push would change anything.
func (s Summary) Pending() bool {
	return s.New > 0 || s.Modified > 0
}

// Summarize counts diffs per status.
func Summarize(results []Result) Summary {
	var s Summary
	for _, r := range results {
		switch r.Status {
		case StatusNew:
			s.New++
		case StatusModified:
			s.Modified++
		case StatusConflict:
			s.Conflict++
		case StatusUnchanged:
			s.Unchanged++
		}
	}
	return s
}
