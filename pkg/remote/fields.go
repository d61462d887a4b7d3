package remote

import (
	"sort"
	"strings"
	"time"

	"github.com/mattsolo1/grove-backlog/pkg/models"
)

type fieldKind int

const (
	kindString fieldKind = iota
	kindHTML
	kindNumber
	kindIdentity
	kindDate
	kindTags
)

// FieldMapping ties a local field to the remote field reference name.
type FieldMapping struct {
	Local  models.Field
	Remote string
	kind   fieldKind
}

// FieldMappings is the complete local <-> remote field correspondence.
var FieldMappings = []FieldMapping{
	{Local: models.FieldTitle, Remote: "System.Title", kind: kindString},
	{Local: models.FieldDescription, Remote: "System.Description", kind: kindHTML},
	{Local: models.FieldState, Remote: "System.State", kind: kindString},
	{Local: models.FieldPriority, Remote: "Microsoft.VSTS.Common.Priority", kind: kindNumber},
	{Local: models.FieldAssignedTo, Remote: "System.AssignedTo", kind: kindIdentity},
	{Local: models.FieldAreaPath, Remote: "System.AreaPath", kind: kindString},
	{Local: models.FieldIterationPath, Remote: "System.IterationPath", kind: kindString},
	{Local: models.FieldAcceptanceCriteria, Remote: "Microsoft.VSTS.Common.AcceptanceCriteria", kind: kindHTML},
	{Local: models.FieldEffort, Remote: "Microsoft.VSTS.Scheduling.Effort", kind: kindNumber},
	{Local: models.FieldStoryPoints, Remote: "Microsoft.VSTS.Scheduling.StoryPoints", kind: kindNumber},
	{Local: models.FieldBusinessValue, Remote: "Microsoft.VSTS.Common.BusinessValue", kind: kindNumber},
	{Local: models.FieldValueArea, Remote: "Microsoft.VSTS.Common.ValueArea", kind: kindString},
	{Local: models.FieldTargetDate, Remote: "Microsoft.VSTS.Scheduling.TargetDate", kind: kindDate},
	{Local: models.FieldStartDate, Remote: "Microsoft.VSTS.Scheduling.StartDate", kind: kindDate},
	{Local: models.FieldFinishDate, Remote: "Microsoft.VSTS.Scheduling.FinishDate", kind: kindDate},
	{Local: models.FieldRemainingWork, Remote: "Microsoft.VSTS.Scheduling.RemainingWork", kind: kindNumber},
	{Local: models.FieldOriginalEstimate, Remote: "Microsoft.VSTS.Scheduling.OriginalEstimate", kind: kindNumber},
	{Local: models.FieldCompletedWork, Remote: "Microsoft.VSTS.Scheduling.CompletedWork", kind: kindNumber},
	{Local: models.FieldActivity, Remote: "Microsoft.VSTS.Common.Activity", kind: kindString},
	{Local: models.FieldTags, Remote: "System.Tags", kind: kindTags},
}

// MappingFor returns the mapping for a local field.
func MappingFor(f models.Field) (FieldMapping, bool) {
	for _, m := range FieldMappings {
		if m.Local == f {
			return m, true
		}
	}
	return FieldMapping{}, false
}

// TagSeparator joins tags in the remote System.Tags field.
const TagSeparator = "; "

// JoinTags renders a tag list in the remote delimited format.
func JoinTags(tags []string) string {
	return strings.Join(tags, TagSeparator)
}

// SplitTags parses the remote delimited tag format.
func SplitTags(s string) []string {
	var tags []string
	for _, part := range strings.Split(s, ";") {
		if tag := strings.TrimSpace(part); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

func (m FieldMapping) toRemote(v any) any {
	switch m.kind {
	case kindTags:
		tags, _ := v.([]string)
		return JoinTags(tags)
	case kindHTML:
		s, _ := v.(string)
		return TextToHTML(s)
	}
	return v
}

func (m FieldMapping) fromRemote(raw any) any {
	if raw == nil {
		return nil
	}
	var v any
	switch m.kind {
	case kindString:
		s, _ := raw.(string)
		v = s
	case kindHTML:
		s, _ := raw.(string)
		v = HTMLToText(s)
	case kindNumber:
		switch n := raw.(type) {
		case float64:
			return n
		case int:
			return float64(n)
		}
		return nil
	case kindIdentity:
		v = identityName(raw)
	case kindDate:
		s, _ := raw.(string)
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			s = t.UTC().Format("2006-01-02")
		}
		v = s
	case kindTags:
		s, _ := raw.(string)
		tags := SplitTags(s)
		if len(tags) == 0 {
			return nil
		}
		return tags
	}
	if s, _ := v.(string); s == "" {
		return nil
	}
	return v
}

// LocalValues projects a remote record into local field space using the
// same normalization as models.WorkItem.Value.
func LocalValues(w *WorkItem) map[models.Field]any {
	values := make(map[models.Field]any, len(FieldMappings))
	if w == nil {
		return values
	}
	for _, m := range FieldMappings {
		if v := m.fromRemote(w.Fields[m.Remote]); v != nil {
			values[m.Local] = v
		}
	}
	return values
}

// ApplyFields copies every mapped remote field onto item.
func ApplyFields(item *models.WorkItem, w *WorkItem) {
	values := LocalValues(w)
	for _, m := range FieldMappings {
		item.SetValue(m.Local, values[m.Local])
	}
}

func fieldPath(remote string) string {
	return "/fields/" + remote
}

// CreatePatch builds the add operations for every locally set field.
func CreatePatch(item *models.WorkItem) []PatchOperation {
	var ops []PatchOperation
	for _, m := range FieldMappings {
		v := item.Value(m.Local)
		if v == nil {
			continue
		}
		ops = append(ops, PatchOperation{Op: OpAdd, Path: fieldPath(m.Remote), Value: m.toRemote(v)})
	}
	return ops
}

// UpdatePatch builds an update conditioned on expectedRev carrying every
// locally set field. Fields unset locally are left as they are remotely.
func UpdatePatch(item *models.WorkItem, expectedRev int) []PatchOperation {
	return append([]PatchOperation{{Op: OpTest, Path: "/rev", Value: expectedRev}}, CreatePatch(item)...)
}

// ParentLinkPatch adds a child-to-parent relation pointing at parentURL.
func ParentLinkPatch(parentURL string) []PatchOperation {
	return []PatchOperation{{
		Op:   OpAdd,
		Path: "/relations/-",
		Value: map[string]any{
			"rel": RelParent,
			"url": parentURL,
		},
	}}
}

// SortedFieldNames returns the remote names touched by ops, for logging.
func SortedFieldNames(ops []PatchOperation) []string {
	var names []string
	for _, op := range ops {
		if strings.HasPrefix(op.Path, "/fields/") {
			names = append(names, strings.TrimPrefix(op.Path, "/fields/"))
		}
	}
	sort.Strings(names)
	return names
}
