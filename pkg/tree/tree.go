// Package tree implements traversal and structural queries over a backlog document.
package tree

import "github.com/mattsolo1/grove-backlog/pkg/models"

// Entry is one visited node of a flattened document.
type Entry struct {
	Item   *models.WorkItem
	Parent *models.WorkItem // nil for root items
	Depth  int              // 0 for root items
}

// Flatten returns every item in pre-order: each parent precedes its children.
func Flatten(doc *models.Document) []Entry {
	var entries []Entry
	var walk func(items []*models.WorkItem, parent *models.WorkItem, depth int)
	walk = func(items []*models.WorkItem, parent *models.WorkItem, depth int) {
		for _, item := range items {
			entries = append(entries, Entry{Item: item, Parent: parent, Depth: depth})
			walk(item.Children, item, depth+1)
		}
	}
	if doc != nil {
		walk(doc.WorkItems, nil, 0)
	}
	return entries
}

// FlattenReverse returns every item in post-order: each child precedes its parent.
func FlattenReverse(doc *models.Document) []Entry {
	var entries []Entry
	var walk func(items []*models.WorkItem, parent *models.WorkItem, depth int)
	walk = func(items []*models.WorkItem, parent *models.WorkItem, depth int) {
		for _, item := range items {
			walk(item.Children, item, depth+1)
			entries = append(entries, Entry{Item: item, Parent: parent, Depth: depth})
		}
	}
	if doc != nil {
		walk(doc.WorkItems, nil, 0)
	}
	return entries
}

// ItemsAtDepth returns the items at depth d, in document order.
func ItemsAtDepth(doc *models.Document, d int) []*models.WorkItem {
	var items []*models.WorkItem
	for _, e := range Flatten(doc) {
		if e.Depth == d {
			items = append(items, e.Item)
		}
	}
	return items
}

// MaxDepth returns the deepest depth in the document, or -1 when it is empty.
func MaxDepth(doc *models.Document) int {
	max := -1
	for _, e := range Flatten(doc) {
		if e.Depth > max {
			max = e.Depth
		}
	}
	return max
}

// FindByLocalID returns the first item with the given local id, or nil.
func FindByLocalID(doc *models.Document, localID string) *models.WorkItem {
	if doc == nil {
		return nil
	}
	return find(doc.WorkItems, func(item *models.WorkItem) bool {
		return item.LocalID == localID
	})
}

// FindByRemoteID returns the first item linked to remoteID, or nil.
func FindByRemoteID(doc *models.Document, remoteID int) *models.WorkItem {
	if doc == nil || remoteID == 0 {
		return nil
	}
	return find(doc.WorkItems, func(item *models.WorkItem) bool {
		return item.RemoteID() == remoteID
	})
}

func find(items []*models.WorkItem, match func(*models.WorkItem) bool) *models.WorkItem {
	for _, item := range items {
		if match(item) {
			return item
		}
		if found := find(item.Children, match); found != nil {
			return found
		}
	}
	return nil
}

// Ancestors returns the chain from the root down to the parent of localID.
// Root items and unknown ids yield an empty slice.
func Ancestors(doc *models.Document, localID string) []*models.WorkItem {
	if doc == nil {
		return []*models.WorkItem{}
	}
	var path []*models.WorkItem
	var walk func(items []*models.WorkItem) bool
	walk = func(items []*models.WorkItem) bool {
		for _, item := range items {
			if item.LocalID == localID {
				return true
			}
			path = append(path, item)
			if walk(item.Children) {
				return true
			}
			path = path[:len(path)-1]
		}
		return false
	}
	if !walk(doc.WorkItems) {
		return []*models.WorkItem{}
	}
	return append([]*models.WorkItem{}, path...)
}

// Parent returns the direct parent of localID, or nil for roots and unknown ids.
func Parent(doc *models.Document, localID string) *models.WorkItem {
	chain := Ancestors(doc, localID)
	if len(chain) == 0 {
		return nil
	}
	return chain[len(chain)-1]
}

// Descendants returns the full subtree below item in pre-order, excluding item.
func Descendants(item *models.WorkItem) []*models.WorkItem {
	var out []*models.WorkItem
	if item == nil {
		return out
	}
	var walk func(items []*models.WorkItem)
	walk = func(items []*models.WorkItem) {
		for _, child := range items {
			out = append(out, child)
			walk(child.Children)
		}
	}
	walk(item.Children)
	return out
}

// BuildLocalIDIndex maps every local id to its item. On duplicates the first
// occurrence in pre-order wins.
func BuildLocalIDIndex(doc *models.Document) map[string]*models.WorkItem {
	index := make(map[string]*models.WorkItem)
	for _, e := range Flatten(doc) {
		if _, ok := index[e.Item.LocalID]; !ok {
			index[e.Item.LocalID] = e.Item
		}
	}
	return index
}

// BuildRemoteIDIndex maps every remote id to its linked item.
func BuildRemoteIDIndex(doc *models.Document) map[int]*models.WorkItem {
	index := make(map[int]*models.WorkItem)
	for _, e := range Flatten(doc) {
		if id := e.Item.RemoteID(); id != 0 {
			if _, ok := index[id]; !ok {
				index[id] = e.Item
			}
		}
	}
	return index
}
