package models

// SchemaVersion is the document schema written by this tool.
const SchemaVersion = "1.0"

// HierarchyType selects which work item types may appear at the root.
type HierarchyType string

const (
	HierarchyFull   HierarchyType = "full"   // Epic -> Feature -> Backlog Item -> Task
	HierarchyMedium HierarchyType = "medium" // Feature -> Backlog Item -> Task
	HierarchySimple HierarchyType = "simple" // Backlog Item -> Task
)

// IsValid reports whether h is a known hierarchy type.
func (h HierarchyType) IsValid() bool {
	switch h {
	case HierarchyFull, HierarchyMedium, HierarchySimple:
		return true
	}
	return false
}

// Project identifies the remote organization and project a document syncs with.
type Project struct {
	Organization  string `yaml:"organization" json:"organization"`
	Project       string `yaml:"project" json:"project"`
	AreaPath      string `yaml:"areaPath,omitempty" json:"areaPath,omitempty"`
	IterationPath string `yaml:"iterationPath,omitempty" json:"iterationPath,omitempty"`
}

// Document is the locally authored backlog.
type Document struct {
	SchemaVersion string        `yaml:"schemaVersion" json:"schemaVersion"`
	HierarchyType HierarchyType `yaml:"hierarchyType" json:"hierarchyType"`
	Project       Project       `yaml:"project" json:"project"`
	WorkItems     []*WorkItem   `yaml:"workItems" json:"workItems"`
}
