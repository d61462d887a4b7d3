// Package document reads and writes backlog documents on disk.
package document

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"gopkg.in/yaml.v3"

	"github.com/mattsolo1/grove-backlog/pkg/models"
)

// DefaultPath is the document file used when none is given.
const DefaultPath = "backlog.yaml"

// ErrLocked is returned when another process holds the document lock.
var ErrLocked = errors.New("document is locked by another process")

const lockRetryInterval = 100 * time.Millisecond

// Parse decodes a document from YAML.
func Parse(data []byte) (*models.Document, error) {
	var doc models.Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}
	return &doc, nil
}

// Marshal encodes a document as YAML with two-space indentation.
func Marshal(doc *models.Document) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("failed to marshal document: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Load reads the document at path.
func Load(path string) (*models.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	return Parse(data)
}

// Save writes doc to path through a temporary file so readers never see a
// partial document.
func Save(path string, doc *models.Document) error {
	data, err := Marshal(doc)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create document directory: %w", err)
		}
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write document: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename document: %w", err)
	}
	return nil
}

// Lock takes the advisory lock guarding path for a load-modify-save cycle.
// It retries until ctx is done. The returned function releases the lock.
func Lock(ctx context.Context, path string) (func() error, error) {
	lock := flock.New(path + ".lock")
	locked, err := lock.TryLockContext(ctx, lockRetryInterval)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("%w: %s", ErrLocked, path)
		}
		return nil, fmt.Errorf("failed to lock document: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", ErrLocked, path)
	}
	return lock.Unlock, nil
}

var templatePrefixes = map[models.WorkItemType]string{
	models.TypeEpic:        "epic",
	models.TypeFeature:     "feat",
	models.TypeBacklogItem: "pbi",
	models.TypeTask:        "task",
}

// NewTemplate returns a starter document with one example branch running
// from the hierarchy's first root type down to a task.
func NewTemplate(hierarchy models.HierarchyType, organization, project string) (*models.Document, error) {
	if !hierarchy.IsValid() {
		return nil, fmt.Errorf("unknown hierarchy type %q", hierarchy)
	}

	var roots []*models.WorkItem
	var parent *models.WorkItem
	itemType := rootTypeFor(hierarchy)
	for itemType != "" {
		item := &models.WorkItem{
			Type:    itemType,
			LocalID: templatePrefixes[itemType] + "-001",
			Title:   "Example " + string(itemType),
			State:   "New",
		}
		if parent == nil {
			roots = append(roots, item)
		} else {
			parent.Children = append(parent.Children, item)
		}
		parent = item
		itemType = nextTemplateType(itemType)
	}

	return &models.Document{
		SchemaVersion: models.SchemaVersion,
		HierarchyType: hierarchy,
		Project:       models.Project{Organization: organization, Project: project},
		WorkItems:     roots,
	}, nil
}

func rootTypeFor(h models.HierarchyType) models.WorkItemType {
	switch h {
	case models.HierarchyFull:
		return models.TypeEpic
	case models.HierarchyMedium:
		return models.TypeFeature
	}
	return models.TypeBacklogItem
}

func nextTemplateType(t models.WorkItemType) models.WorkItemType {
	switch t {
	case models.TypeEpic:
		return models.TypeFeature
	case models.TypeFeature:
		return models.TypeBacklogItem
	case models.TypeBacklogItem:
		return models.TypeTask
	}
	return ""
}
