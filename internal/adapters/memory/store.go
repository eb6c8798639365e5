package memory

import (
	"sync"

	"github.com/galina-antipin/join/internal/domain/entities"
)

// Store is the in-memory record store: the authoritative-for-the-session
// cache of users and tasks. Collections are only ever swapped in full,
// by the sync engine, after a reload from the remote store. Readers may
// be concurrent (HTTP handlers), so access is guarded per collection.
type Store struct {
	users collection[entities.User]
	tasks collection[entities.Task]
}

// New creates an empty store.
func New() *Store {
	return &Store{}
}

type collection[T any] struct {
	mu    sync.RWMutex
	order []T
	index map[string]int
}

func (c *collection[T]) replaceAll(items []T, idOf func(T) string) {
	index := make(map[string]int, len(items))
	for i, item := range items {
		index[idOf(item)] = i
	}
	c.mu.Lock()
	c.order = items
	c.index = index
	c.mu.Unlock()
}

func (c *collection[T]) all() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]T, len(c.order))
	copy(out, c.order)
	return out
}

func (c *collection[T]) byID(id string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	i, ok := c.index[id]
	if !ok {
		var zero T
		return zero, false
	}
	return c.order[i], true
}

func (c *collection[T]) size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.order)
}

// ReplaceUsers atomically swaps the user collection.
func (s *Store) ReplaceUsers(users []entities.User) {
	s.users.replaceAll(users, func(u entities.User) string { return u.ID })
}

// Users returns all users in the order last loaded.
func (s *Store) Users() []entities.User {
	return s.users.all()
}

// UserByID returns the user with the given id.
func (s *Store) UserByID(id string) (entities.User, error) {
	u, ok := s.users.byID(id)
	if !ok {
		return entities.User{}, entities.NewNotFoundError(entities.KindUser, id)
	}
	return u, nil
}

// UserCount returns the number of cached users.
func (s *Store) UserCount() int {
	return s.users.size()
}

// ReplaceTasks atomically swaps the task collection.
func (s *Store) ReplaceTasks(tasks []entities.Task) {
	s.tasks.replaceAll(tasks, func(t entities.Task) string { return t.ID })
}

// Tasks returns all tasks in the order last loaded.
func (s *Store) Tasks() []entities.Task {
	return s.tasks.all()
}

// TaskByID returns the task with the given id.
func (s *Store) TaskByID(id string) (entities.Task, error) {
	t, ok := s.tasks.byID(id)
	if !ok {
		return entities.Task{}, entities.NewNotFoundError(entities.KindTask, id)
	}
	return t, nil
}

// TaskCount returns the number of cached tasks.
func (s *Store) TaskCount() int {
	return s.tasks.size()
}

// Clear drops both collections.
func (s *Store) Clear() {
	s.ReplaceUsers(nil)
	s.ReplaceTasks(nil)
}
