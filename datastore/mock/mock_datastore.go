/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

// Package mock provides in-memory implementations of the datastore interfaces for testing
package mock

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/storyofalicia/datadirector/datastore"
	"github.com/storyofalicia/datadirector/errors"
	"github.com/storyofalicia/datadirector/model"
)

var _ datastore.DataStore[model.Item] = &DataStore[model.Item]{}

// DataStore is a mock implementation of datastore.DataStore[T] for testing
type DataStore[T any] struct {
	mu          sync.RWMutex
	kind        string
	data        map[string]T
	loadHook    func(key string)
	loadError   error
	storeError  error
	deleteError error

	loads  atomic.Int64
	stores atomic.Int64
}

// New creates a new mock DataStore
func New[T any](kind string) *DataStore[T] {
	return &DataStore[T]{
		kind: kind,
		data: make(map[string]T),
	}
}

// WithLoadHook runs f at the start of every Load, outside the mock's lock
func (m *DataStore[T]) WithLoadHook(f func(key string)) *DataStore[T] {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loadHook = f
	return m
}

// WithLoadError makes Load operations return an error
func (m *DataStore[T]) WithLoadError(err error) *DataStore[T] {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loadError = err
	return m
}

// WithStoreError makes Store operations return an error
func (m *DataStore[T]) WithStoreError(err error) *DataStore[T] {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.storeError = err
	return m
}

// WithDeleteError makes Delete operations return an error
func (m *DataStore[T]) WithDeleteError(err error) *DataStore[T] {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteError = err
	return m
}

// Load retrieves an entity by key
func (m *DataStore[T]) Load(ctx context.Context, key string) (*T, error) {
	m.loads.Add(1)

	m.mu.RLock()
	hook := m.loadHook
	m.mu.RUnlock()
	if hook != nil {
		hook(key)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.loadError != nil {
		return nil, m.loadError
	}

	if entity, exists := m.data[key]; exists {
		return &entity, nil
	}

	return nil, errors.NewNotFoundError(m.kind, key)
}

// Store saves an entity under key
func (m *DataStore[T]) Store(ctx context.Context, key string, entity T) error {
	m.stores.Add(1)

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.storeError != nil {
		return m.storeError
	}
	if key == "" {
		return errors.NewValidationError("key", "must be set")
	}

	m.data[key] = entity
	return nil
}

// Delete removes an entity by key
func (m *DataStore[T]) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.deleteError != nil {
		return m.deleteError
	}

	if _, exists := m.data[key]; !exists {
		return errors.NewNotFoundError(m.kind, key)
	}

	delete(m.data, key)
	return nil
}

// Helper methods for testing

// SetData directly sets the internal data map (for testing)
func (m *DataStore[T]) SetData(data map[string]T) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = data
}

// GetData returns a copy of the internal data map (for testing)
func (m *DataStore[T]) GetData() map[string]T {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[string]T, len(m.data))
	for k, v := range m.data {
		result[k] = v
	}
	return result
}

// Count returns the number of stored entities
func (m *DataStore[T]) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

// Loads returns how many times Load was called
func (m *DataStore[T]) Loads() int64 {
	return m.loads.Load()
}

// Stores returns how many times Store was called
func (m *DataStore[T]) Stores() int64 {
	return m.stores.Load()
}

// Sequence is an in-memory datastore.SequenceStore
type Sequence struct {
	mu    sync.Mutex
	last  model.Uid
	err   error
	saves int
}

// WithError makes both sequence operations fail
func (s *Sequence) WithError(err error) *Sequence {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
	return s
}

func (s *Sequence) LoadSequence(ctx context.Context) (model.Uid, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return model.InvalidUid, s.err
	}
	return s.last, nil
}

func (s *Sequence) StoreSequence(ctx context.Context, last model.Uid) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.last = last
	s.saves++
	return nil
}

// Saves returns how many times the sequence was stored
func (s *Sequence) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

// Backend holds one mock store per entity kind
type Backend struct {
	Users        *DataStore[model.User]
	Characters   *DataStore[model.Character]
	Horses       *DataStore[model.Horse]
	Items        *DataStore[model.Item]
	Pets         *DataStore[model.Pet]
	Eggs         *DataStore[model.Egg]
	Guilds       *DataStore[model.Guild]
	Housing      *DataStore[model.Housing]
	StorageItems *DataStore[model.StorageItem]
	Ranches      *DataStore[model.Ranch]
	Sequence     *Sequence

	closed atomic.Bool
}

// NewBackend creates an empty mock backend
func NewBackend() *Backend {
	return &Backend{
		Users:        New[model.User](datastore.KindUser),
		Characters:   New[model.Character](datastore.KindCharacter),
		Horses:       New[model.Horse](datastore.KindHorse),
		Items:        New[model.Item](datastore.KindItem),
		Pets:         New[model.Pet](datastore.KindPet),
		Eggs:         New[model.Egg](datastore.KindEgg),
		Guilds:       New[model.Guild](datastore.KindGuild),
		Housing:      New[model.Housing](datastore.KindHousing),
		StorageItems: New[model.StorageItem](datastore.KindStorageItem),
		Ranches:      New[model.Ranch](datastore.KindRanch),
		Sequence:     &Sequence{},
	}
}

// Stores exposes the backend as a datastore.Stores bundle
func (b *Backend) Stores() datastore.Stores {
	return datastore.Stores{
		Users:        b.Users,
		Characters:   b.Characters,
		Horses:       b.Horses,
		Items:        b.Items,
		Pets:         b.Pets,
		Eggs:         b.Eggs,
		Guilds:       b.Guilds,
		Housing:      b.Housing,
		StorageItems: b.StorageItems,
		Ranches:      b.Ranches,
		Sequence:     b.Sequence,
		Close: func(ctx context.Context) error {
			if !b.closed.CompareAndSwap(false, true) {
				return fmt.Errorf("mock backend already closed")
			}
			return nil
		},
	}
}

// Closed reports whether the backend was closed
func (b *Backend) Closed() bool {
	return b.closed.Load()
}
