package profile

import (
	"sync"
)

// Cache holds the last known good snapshot of the user and the four profile
// collections. Readers get copies; only the session client and Service write.
type Cache struct {
	mu          sync.RWMutex
	epoch       uint64
	user        *User
	collections map[Kind][]Entity
}

func NewCache() *Cache {
	return &Cache{collections: make(map[Kind][]Entity)}
}

// User returns a copy of the cached user, or nil when nobody is logged in.
func (c *Cache) User() *User {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.user == nil {
		return nil
	}
	u := *c.user
	return &u
}

// Epoch identifies the current session snapshot. Clear starts a new one, so a
// response to a request sent under an older epoch can be told apart.
func (c *Cache) Epoch() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.epoch
}

// SetUser replaces the cached user wholesale.
func (c *Cache) SetUser(u *User) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.setUser(u)
}

// SetUserAt is SetUser for an answer to a request sent at epoch. It is dropped
// when the cache was cleared in between.
func (c *Cache) SetUserAt(epoch uint64, u *User) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.epoch != epoch {
		return false
	}
	c.setUser(u)
	return true
}

func (c *Cache) setUser(u *User) {
	if u == nil {
		c.user = nil
		return
	}
	cp := *u
	c.user = &cp
}

// SetProfile merges a confirmed partial update into the cached user. It is a
// no-op when no user is cached.
func (c *Cache) SetProfile(upd UserUpdate) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.user == nil {
		return
	}
	merged := c.user.Apply(upd)
	c.user = &merged
}

// Collection returns a copy of the entries of kind in display order.
func (c *Cache) Collection(kind Kind) []Entity {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return append([]Entity(nil), c.collections[kind]...)
}

// ReplaceCollection swaps the whole collection of kind.
func (c *Cache) ReplaceCollection(kind Kind, items []Entity) {
	c.ReplaceCollectionAt(c.Epoch(), kind, items)
}

// ReplaceCollectionAt is ReplaceCollection for a list fetched at epoch.
func (c *Cache) ReplaceCollectionAt(epoch uint64, kind Kind, items []Entity) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.epoch != epoch {
		return false
	}
	c.collections[kind] = append([]Entity(nil), items...)
	return true
}

// Add appends item to its collection.
func (c *Cache) Add(item Entity) {
	c.AddAt(c.Epoch(), item)
}

// AddAt is Add for an entity confirmed by a request sent at epoch.
func (c *Cache) AddAt(epoch uint64, item Entity) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.epoch != epoch {
		return false
	}
	c.collections[item.Kind()] = append(c.collections[item.Kind()], item)
	return true
}

// Replace swaps the entry carrying id for item. It reports whether one was found.
func (c *Cache) Replace(id ID, item Entity) bool {
	return c.swap(item.Kind(), id, item)
}

// Remove drops the entry carrying id. It reports whether one was found.
func (c *Cache) Remove(kind Kind, id ID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	items := c.collections[kind]
	for i, item := range items {
		if item.EntityID() == id {
			c.collections[kind] = append(items[:i:i], items[i+1:]...)
			return true
		}
	}
	return false
}

// ReconcileTemporaryID replaces the entry carrying tempID with the entity the
// backend confirmed. When the entry is gone (deleted locally while the save was
// in flight) nothing happens, so a late response cannot resurrect it.
func (c *Cache) ReconcileTemporaryID(kind Kind, tempID ID, confirmed Entity) bool {
	if !tempID.IsLocal() || confirmed.Kind() != kind {
		return false
	}
	return c.swap(kind, tempID, confirmed)
}

func (c *Cache) swap(kind Kind, id ID, item Entity) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, existing := range c.collections[kind] {
		if existing.EntityID() == id {
			c.collections[kind][i] = item
			return true
		}
	}
	return false
}

// LocalCount returns how many entries still carry a local ID.
func (c *Cache) LocalCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	count := 0
	for _, items := range c.collections {
		for _, item := range items {
			if item.EntityID().IsLocal() {
				count++
			}
		}
	}
	return count
}

// Clear drops the user and every collection at once and starts a new epoch.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.epoch++
	c.user = nil
	c.collections = make(map[Kind][]Entity)
}

// Experiences returns the typed experience collection.
func (c *Cache) Experiences() []Experience { return typed[Experience](c, KindExperience) }

// Education returns the typed education collection.
func (c *Cache) Education() []Education { return typed[Education](c, KindEducation) }

// Skills returns the typed skill collection.
func (c *Cache) Skills() []Skill { return typed[Skill](c, KindSkill) }

// Languages returns the typed language collection.
func (c *Cache) Languages() []Language { return typed[Language](c, KindLanguage) }

func typed[T Entity](c *Cache, kind Kind) []T {
	items := c.Collection(kind)
	out := make([]T, 0, len(items))
	for _, item := range items {
		if v, ok := item.(T); ok {
			out = append(out, v)
		}
	}
	return out
}

func entities[T Entity](items []T) []Entity {
	out := make([]Entity, 0, len(items))
	for _, item := range items {
		out = append(out, item)
	}
	return out
}
