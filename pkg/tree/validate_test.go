package tree

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mattsolo1/grove-backlog/pkg/models"
)

func TestValidateAcceptsWellFormedDocument(t *testing.T) {
	assert.Empty(t, Validate(sampleDocument()))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(doc *models.Document)
		localID string
		field   string
	}{
		{
			name:   "missing schema version",
			mutate: func(doc *models.Document) { doc.SchemaVersion = "" },
			field:  "schemaVersion",
		},
		{
			name:   "unknown hierarchy",
			mutate: func(doc *models.Document) { doc.HierarchyType = "deep" },
			field:  "hierarchyType",
		},
		{
			name:   "missing organization",
			mutate: func(doc *models.Document) { doc.Project.Organization = " " },
			field:  "project.organization",
		},
		{
			name:    "duplicate local id across branches",
			mutate:  func(doc *models.Document) { FindByLocalID(doc, "pbi-2").LocalID = "task-1" },
			localID: "task-1",
			field:   "localId",
		},
		{
			name:    "illegal root type",
			mutate:  func(doc *models.Document) { doc.WorkItems[1].Type = models.TypeFeature },
			localID: "epic-2",
			field:   "type",
		},
		{
			name:    "illegal child type",
			mutate:  func(doc *models.Document) { FindByLocalID(doc, "task-2").Type = models.TypeEpic },
			localID: "task-2",
			field:   "type",
		},
		{
			name:    "priority out of range",
			mutate:  func(doc *models.Document) { FindByLocalID(doc, "pbi-1").Priority = 7 },
			localID: "pbi-1",
			field:   "priority",
		},
		{
			name:    "missing title",
			mutate:  func(doc *models.Document) { FindByLocalID(doc, "feat-2").Title = "" },
			localID: "feat-2",
			field:   "title",
		},
		{
			name:    "unknown type",
			mutate:  func(doc *models.Document) { FindByLocalID(doc, "feat-2").Type = "Saga" },
			localID: "feat-2",
			field:   "type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := sampleDocument()
			tt.mutate(doc)

			errs := Validate(doc)
			if assert.Len(t, errs, 1, "errors: %v", errs) {
				assert.Equal(t, tt.localID, errs[0].LocalID)
				assert.Equal(t, tt.field, errs[0].Field)
			}
		})
	}
}

func TestValidateMediumAndSimpleRoots(t *testing.T) {
	doc := &models.Document{
		SchemaVersion: models.SchemaVersion,
		HierarchyType: models.HierarchyMedium,
		Project:       models.Project{Organization: "contoso", Project: "web"},
		WorkItems: []*models.WorkItem{
			{Type: models.TypeFeature, LocalID: "feat-1", Title: "Feature"},
		},
	}
	assert.Empty(t, Validate(doc))

	doc.HierarchyType = models.HierarchySimple
	errs := Validate(doc)
	assert.Len(t, errs, 1)
	assert.Contains(t, errs.Error(), "not allowed at the root")
}
