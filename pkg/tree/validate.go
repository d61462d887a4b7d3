package tree

import (
	"fmt"
	"strings"

	"github.com/mattsolo1/grove-backlog/pkg/models"
)

// ValidationError describes one problem found in a document.
type ValidationError struct {
	LocalID string // empty for document-level problems
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	if e.LocalID == "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.LocalID, e.Field, e.Message)
}

// ValidationErrors is a list of validation problems that satisfies error.
type ValidationErrors []ValidationError

func (errs ValidationErrors) Error() string {
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	return fmt.Sprintf("%d validation error(s): %s", len(errs), strings.Join(msgs, "; "))
}

// Validate checks document shape, local id uniqueness and type nesting.
// Problems are reported, never corrected.
func Validate(doc *models.Document) ValidationErrors {
	var errs ValidationErrors
	add := func(localID, field, format string, args ...any) {
		errs = append(errs, ValidationError{LocalID: localID, Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if doc == nil {
		add("", "document", "document is empty")
		return errs
	}
	if doc.SchemaVersion == "" {
		add("", "schemaVersion", "is required")
	}
	if !doc.HierarchyType.IsValid() {
		add("", "hierarchyType", "must be one of full, medium, simple (got %q)", doc.HierarchyType)
	}
	if strings.TrimSpace(doc.Project.Organization) == "" {
		add("", "project.organization", "is required")
	}
	if strings.TrimSpace(doc.Project.Project) == "" {
		add("", "project.project", "is required")
	}

	seen := make(map[string]bool)
	roots := ValidRootTypes(doc.HierarchyType)
	for _, e := range Flatten(doc) {
		item := e.Item
		id := item.LocalID
		if strings.TrimSpace(id) == "" {
			add(id, "localId", "is required (item titled %q)", item.Title)
		} else if seen[id] {
			add(id, "localId", "duplicate local id")
		}
		seen[id] = true

		if strings.TrimSpace(item.Title) == "" {
			add(id, "title", "is required")
		}
		if item.Priority != 0 && (item.Priority < 1 || item.Priority > 4) {
			add(id, "priority", "must be between 1 and 4 (got %d)", item.Priority)
		}
		if !item.Type.IsValid() {
			add(id, "type", "unknown work item type %q", item.Type)
			continue
		}

		if e.Parent == nil {
			if doc.HierarchyType.IsValid() && !contains(roots, item.Type) {
				add(id, "type", "%s is not allowed at the root of a %s hierarchy", item.Type, doc.HierarchyType)
			}
			continue
		}
		if e.Parent.Type.IsValid() && !contains(ValidChildTypes(e.Parent.Type), item.Type) {
			add(id, "type", "%s cannot be a child of %s", item.Type, e.Parent.Type)
		}
	}

	return errs
}
