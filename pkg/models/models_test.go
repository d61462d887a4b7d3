package models

import (
	"testing"
	"time"
)

func TestWorkItemTypeValidation(t *testing.T) {
	tests := []struct {
		itemType WorkItemType
		isValid  bool
	}{
		{TypeEpic, true},
		{TypeFeature, true},
		{TypeBacklogItem, true},
		{TypeUserStory, true},
		{TypeTask, true},
		{TypeBug, true},
		{TypeIssue, true},
		{WorkItemType("Product Backlog Item"), false},
		{WorkItemType("epic"), false},
		{WorkItemType(""), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.itemType), func(t *testing.T) {
			if got := tt.itemType.IsValid(); got != tt.isValid {
				t.Errorf("Expected IsValid %v for type %q, got %v", tt.isValid, tt.itemType, got)
			}
		})
	}
}

func TestRemoteTypeNames(t *testing.T) {
	if got := TypeBacklogItem.RemoteName(); got != "Product Backlog Item" {
		t.Errorf("Expected Product Backlog Item, got %s", got)
	}
	if got := TypeTask.RemoteName(); got != "Task" {
		t.Errorf("Expected Task, got %s", got)
	}
	if got := TypeFromRemote("Product Backlog Item"); got != TypeBacklogItem {
		t.Errorf("Expected %s, got %s", TypeBacklogItem, got)
	}
	if got := TypeFromRemote("Test Case"); got != WorkItemType("Test Case") {
		t.Errorf("Expected unknown type to pass through, got %s", got)
	}
}

func TestWorkItemValue(t *testing.T) {
	points := 5.0
	value := 300
	item := &WorkItem{
		Title:         "Login page",
		Priority:      2,
		StoryPoints:   &points,
		BusinessValue: &value,
		Tags:          []string{"frontend"},
	}

	if got := item.Value(FieldTitle); got != "Login page" {
		t.Errorf("Expected title, got %v", got)
	}
	if got := item.Value(FieldPriority); got != 2.0 {
		t.Errorf("Expected priority 2.0, got %v", got)
	}
	if got := item.Value(FieldStoryPoints); got != 5.0 {
		t.Errorf("Expected story points 5.0, got %v", got)
	}
	if got := item.Value(FieldBusinessValue); got != 300.0 {
		t.Errorf("Expected business value 300.0, got %v", got)
	}
	if got := item.Value(FieldDescription); got != nil {
		t.Errorf("Expected nil for unset description, got %v", got)
	}
	if got := item.Value(FieldEffort); got != nil {
		t.Errorf("Expected nil for unset effort, got %v", got)
	}
	tags, ok := item.Value(FieldTags).([]string)
	if !ok || len(tags) != 1 || tags[0] != "frontend" {
		t.Errorf("Expected tags [frontend], got %v", item.Value(FieldTags))
	}
}

func TestRemoteID(t *testing.T) {
	var nilItem *WorkItem
	if nilItem.RemoteID() != 0 {
		t.Error("Expected nil item to report remote id 0")
	}

	item := &WorkItem{LocalID: "pbi-1"}
	if item.IsLinked() {
		t.Error("Expected item without metadata to be unlinked")
	}

	item.Remote = &RemoteMetadata{RemoteID: 42}
	if !item.IsLinked() || item.RemoteID() != 42 {
		t.Errorf("Expected linked item with id 42, got %d", item.RemoteID())
	}
}

func TestAppendHistoryIsBounded(t *testing.T) {
	meta := &RemoteMetadata{RemoteID: 1}
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 1; i <= MaxHistoryEntries+5; i++ {
		meta.AppendHistory(HistoryEntry{Revision: i, Action: "update", At: start.Add(time.Duration(i) * time.Minute)})
	}

	if len(meta.History) != MaxHistoryEntries {
		t.Fatalf("Expected %d history entries, got %d", MaxHistoryEntries, len(meta.History))
	}
	if meta.History[0].Revision != 6 {
		t.Errorf("Expected oldest kept revision 6, got %d", meta.History[0].Revision)
	}
	if last := meta.History[len(meta.History)-1]; last.Revision != MaxHistoryEntries+5 {
		t.Errorf("Expected newest revision %d, got %d", MaxHistoryEntries+5, last.Revision)
	}
}

func TestHierarchyTypeValidation(t *testing.T) {
	for _, h := range []HierarchyType{HierarchyFull, HierarchyMedium, HierarchySimple} {
		if !h.IsValid() {
			t.Errorf("Expected %s to be valid", h)
		}
	}
	if HierarchyType("deep").IsValid() {
		t.Error("Expected unknown hierarchy type to be invalid")
	}
}
