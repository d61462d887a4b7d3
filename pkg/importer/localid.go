package importer

import (
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/mattsolo1/grove-backlog/pkg/models"
)

var typePrefixes = map[string]string{
	"Epic":                 "epic",
	"Feature":              "feat",
	"Product Backlog Item": "pbi",
	"Backlog Item":         "pbi",
	"User Story":           "story",
	"Task":                 "task",
	"Bug":                  "bug",
	"Issue":                "issue",
}

var lower = cases.Lower(language.Und)

// LocalIDFor synthesizes the local id of an imported item: the type prefix
// followed by the remote id, e.g. "feat-42". Unknown types use their name in
// lower kebab case.
func LocalIDFor(remoteType string, id int) string {
	prefix, ok := typePrefixes[remoteType]
	if !ok {
		prefix = kebab(remoteType)
	}
	return prefix + "-" + strconv.Itoa(id)
}

func kebab(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range lower.String(name) {
		if ('a' <= r && r <= 'z') || ('0' <= r && r <= '9') {
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(r)
			dash = false
			continue
		}
		dash = true
	}
	if b.Len() == 0 {
		return "item"
	}
	return b.String()
}

// InferHierarchy picks the hierarchy type from the set of imported types:
// Epic, Feature and a backlog-level type make a full hierarchy, Feature and
// a backlog-level type without Epic a medium one, anything else is simple.
func InferHierarchy(types map[models.WorkItemType]bool) models.HierarchyType {
	backlog := types[models.TypeBacklogItem] || types[models.TypeUserStory]
	switch {
	case types[models.TypeEpic] && types[models.TypeFeature] && backlog:
		return models.HierarchyFull
	case !types[models.TypeEpic] && types[models.TypeFeature] && backlog:
		return models.HierarchyMedium
	}
	return models.HierarchySimple
}
