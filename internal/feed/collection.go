// SPDX-License-Identifier: AGPL-3.0-only
package feed

import "sync"

// Collection is the ordered, id-unique list of loaded items.
type Collection struct {
	mu    sync.RWMutex
	items []Item
	index map[string]int
}

func NewCollection() *Collection {
	return &Collection{index: make(map[string]int)}
}

func (c *Collection) reindex() {
	c.index = make(map[string]int, len(c.items))
	for i, item := range c.items {
		c.index[item.ID] = i
	}
}

func dedupe(items []Item) []Item {
	seen := make(map[string]struct{}, len(items))
	out := make([]Item, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item.ID]; ok {
			continue
		}
		seen[item.ID] = struct{}{}
		out = append(out, item)
	}
	return out
}

// ReplaceAll replaces the whole sequence. Repeated ids keep their first
// occurrence.
func (c *Collection) ReplaceAll(items []Item) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = dedupe(items)
	c.reindex()
}

// Append adds items not already present, in order, and returns how many
// were added.
func (c *Collection) Append(items []Item) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	added := 0
	for _, item := range items {
		if _, ok := c.index[item.ID]; ok {
			continue
		}
		c.index[item.ID] = len(c.items)
		c.items = append(c.items, item)
		added++
	}
	return added
}

// Prepend makes item the first element. An existing entry with the same id
// is moved rather than duplicated.
func (c *Collection) Prepend(item Item) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i, ok := c.index[item.ID]; ok {
		c.items = append(c.items[:i], c.items[i+1:]...)
	}
	c.items = append([]Item{item}, c.items...)
	c.reindex()
}

// ReplaceByID swaps the item at oldID's position for newItem. If newItem's
// id is already present elsewhere, that entry is dropped.
func (c *Collection) ReplaceByID(oldID string, newItem Item) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	pos, ok := c.index[oldID]
	if !ok {
		return false
	}
	c.items[pos] = newItem
	if other, ok := c.index[newItem.ID]; ok && other != pos {
		c.items = append(c.items[:other], c.items[other+1:]...)
	}
	c.reindex()
	return true
}

func (c *Collection) RemoveByID(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	pos, ok := c.index[id]
	if !ok {
		return false
	}
	c.items = append(c.items[:pos], c.items[pos+1:]...)
	c.reindex()
	return true
}

// Update applies fn to the item with the given id in place. fn cannot
// change the id.
func (c *Collection) Update(id string, fn func(*Item)) (Item, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	pos, ok := c.index[id]
	if !ok {
		return Item{}, false
	}
	fn(&c.items[pos])
	c.items[pos].ID = id
	return c.items[pos], true
}

// UpdateWhere applies fn to every item matching pred and returns the count.
func (c *Collection) UpdateWhere(pred func(Item) bool, fn func(*Item)) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for i := range c.items {
		if !pred(c.items[i]) {
			continue
		}
		id := c.items[i].ID
		fn(&c.items[i])
		c.items[i].ID = id
		n++
	}
	return n
}

// MergeFront merges an authoritative first page: items already present are
// refreshed where they sit, unseen items go to the front in page order.
func (c *Collection) MergeFront(items []Item) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fresh := make([]Item, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		if _, dup := seen[item.ID]; dup {
			continue
		}
		seen[item.ID] = struct{}{}
		if pos, ok := c.index[item.ID]; ok {
			c.items[pos] = item
			continue
		}
		fresh = append(fresh, item)
	}
	if len(fresh) == 0 {
		return
	}
	c.items = append(fresh, c.items...)
	c.reindex()
}

func (c *Collection) Get(id string) (Item, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	pos, ok := c.index[id]
	if !ok {
		return Item{}, false
	}
	return c.items[pos], true
}

func (c *Collection) Items() []Item {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Item, len(c.items))
	copy(out, c.items)
	return out
}

func (c *Collection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// ConfirmedLen counts items that are not tentative.
func (c *Collection) ConfirmedLen() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	for _, item := range c.items {
		if !item.Tentative {
			n++
		}
	}
	return n
}

func (c *Collection) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = nil
	c.reindex()
}
