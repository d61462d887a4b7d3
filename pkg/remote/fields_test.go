package remote

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattsolo1/grove-backlog/pkg/models"
)

func floatPtr(f float64) *float64 { return &f }

func TestFieldMappingsCoverEveryComparisonField(t *testing.T) {
	for _, f := range models.ComparisonFields {
		_, ok := MappingFor(f)
		assert.True(t, ok, "no remote mapping for %s", f)
	}
	seen := make(map[string]bool)
	for _, m := range FieldMappings {
		assert.False(t, seen[m.Remote], "remote field %s mapped twice", m.Remote)
		seen[m.Remote] = true
	}
}

func TestCreatePatch(t *testing.T) {
	item := &models.WorkItem{
		Type:        models.TypeBacklogItem,
		LocalID:     "pbi-1",
		Title:       "Checkout flow",
		Description: "Line one\nLine two",
		Priority:    2,
		Tags:        []string{"frontend", "payments"},
		StoryPoints: floatPtr(3),
	}

	ops := CreatePatch(item)

	byPath := make(map[string]any)
	for _, op := range ops {
		assert.Equal(t, OpAdd, op.Op)
		byPath[op.Path] = op.Value
	}
	assert.Len(t, ops, 5)
	assert.Equal(t, "Checkout flow", byPath["/fields/System.Title"])
	assert.Equal(t, "Line one<br>Line two", byPath["/fields/System.Description"])
	assert.Equal(t, 2.0, byPath["/fields/Microsoft.VSTS.Common.Priority"])
	assert.Equal(t, "frontend; payments", byPath["/fields/System.Tags"])
	assert.Equal(t, 3.0, byPath["/fields/Microsoft.VSTS.Scheduling.StoryPoints"])
}

func TestUpdatePatchIsConditionedOnRevision(t *testing.T) {
	item := &models.WorkItem{Title: "Renamed", State: "Active"}

	ops := UpdatePatch(item, 4)

	require.NotEmpty(t, ops)
	assert.Equal(t, PatchOperation{Op: OpTest, Path: "/rev", Value: 4}, ops[0])
	for _, op := range ops[1:] {
		assert.Equal(t, OpAdd, op.Op, "fields unset locally are never removed: %s", op.Path)
	}
	assert.Equal(t, []string{"System.State", "System.Title"}, SortedFieldNames(ops))
}

func TestLocalValuesNormalizesRemoteShapes(t *testing.T) {
	w := &WorkItem{
		ID:  12,
		Rev: 3,
		Fields: map[string]any{
			"System.Title":                         "  Spaced  ",
			"System.Description":                   "<div>Hello</div><div>World</div>",
			"System.AssignedTo":                    map[string]any{"displayName": "Ada", "uniqueName": "ada@contoso.com"},
			"System.Tags":                          "b; a",
			"Microsoft.VSTS.Common.Priority":       1.0,
			"Microsoft.VSTS.Scheduling.TargetDate": "2024-06-30T00:00:00Z",
			"System.State":                         "",
		},
	}

	values := LocalValues(w)

	assert.Equal(t, "  Spaced  ", values[models.FieldTitle])
	assert.Equal(t, "Hello\nWorld", values[models.FieldDescription])
	assert.Equal(t, "ada@contoso.com", values[models.FieldAssignedTo])
	assert.Equal(t, []string{"b", "a"}, values[models.FieldTags])
	assert.Equal(t, 1.0, values[models.FieldPriority])
	assert.Equal(t, "2024-06-30", values[models.FieldTargetDate])
	_, hasState := values[models.FieldState]
	assert.False(t, hasState, "empty strings are treated as unset")
}

func TestApplyFields(t *testing.T) {
	item := &models.WorkItem{LocalID: "pbi-12", Effort: floatPtr(8)}
	ApplyFields(item, &WorkItem{Fields: map[string]any{
		"System.Title":                        "Imported",
		"System.Tags":                         "x; y",
		"Microsoft.VSTS.Common.BusinessValue": 40.0,
	}})

	assert.Equal(t, "Imported", item.Title)
	assert.Equal(t, []string{"x", "y"}, item.Tags)
	require.NotNil(t, item.BusinessValue)
	assert.Equal(t, 40, *item.BusinessValue)
	assert.Nil(t, item.Effort, "fields missing remotely are cleared")
}

func TestSplitAndJoinTags(t *testing.T) {
	assert.Equal(t, []string{"a", "b c"}, SplitTags(" a ;b c; ;"))
	assert.Nil(t, SplitTags(""))
	assert.Equal(t, "a; b", JoinTags([]string{"a", "b"}))
}

func TestRelationTargets(t *testing.T) {
	w := &WorkItem{Relations: []Relation{
		{Rel: RelParent, URL: "https://dev.azure.com/contoso/_apis/wit/workItems/1"},
		{Rel: RelChild, URL: "https://dev.azure.com/contoso/_apis/wit/workItems/5"},
		{Rel: RelArtifact, URL: "vstfs:///Git/PullRequestId/p%2Fr%2F9"},
		{Rel: RelChild, URL: "https://dev.azure.com/contoso/_apis/wit/workItems/6"},
	}}

	assert.Equal(t, 1, w.ParentID())
	assert.Equal(t, []int{5, 6}, w.ChildIDs())

	repo, id, ok := pullRequestRef(w.Relations[2].URL)
	assert.True(t, ok)
	assert.Equal(t, "r", repo)
	assert.Equal(t, 9, id)

	_, _, ok = pullRequestRef("vstfs:///Build/Build/12")
	assert.False(t, ok)
}
