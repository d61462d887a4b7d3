package tree

import "github.com/mattsolo1/grove-backlog/pkg/models"

var rootTypes = map[models.HierarchyType][]models.WorkItemType{
	models.HierarchyFull:   {models.TypeEpic},
	models.HierarchyMedium: {models.TypeFeature},
	models.HierarchySimple: {models.TypeBacklogItem, models.TypeUserStory, models.TypeBug, models.TypeIssue},
}

var childTypes = map[models.WorkItemType][]models.WorkItemType{
	models.TypeEpic:        {models.TypeFeature},
	models.TypeFeature:     {models.TypeBacklogItem, models.TypeUserStory, models.TypeBug, models.TypeIssue},
	models.TypeBacklogItem: {models.TypeTask},
	models.TypeUserStory:   {models.TypeTask},
	models.TypeBug:         {models.TypeTask},
	models.TypeIssue:       {models.TypeTask},
	models.TypeTask:        {},
}

// ValidRootTypes returns the types allowed at the top level of a document.
func ValidRootTypes(h models.HierarchyType) []models.WorkItemType {
	return append([]models.WorkItemType{}, rootTypes[h]...)
}

// ValidChildTypes returns the types allowed directly below parent.
func ValidChildTypes(parent models.WorkItemType) []models.WorkItemType {
	return append([]models.WorkItemType{}, childTypes[parent]...)
}

func contains(types []models.WorkItemType, t models.WorkItemType) bool {
	for _, candidate := range types {
		if candidate == t {
			return true
		}
	}
	return false
}
