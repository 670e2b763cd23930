/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package datadirector

import (
	"sync"
	"sync/atomic"

	"github.com/storyofalicia/datadirector/errors"
)

// entry is the cached value of one entity, guarded by its own lock.
type entry[T any] struct {
	mu    sync.RWMutex
	value T
	dirty atomic.Bool
}

// cloner is implemented by entities holding slices, so a captured value does
// not alias the cached one.
type cloner[T any] interface {
	Clone() T
}

// capture clears the dirty flag and returns a copy of the value as it was at
// that instant. Changes made afterwards mark the entry dirty again.
func (e *entry[T]) capture() (T, bool) {
	var zero T
	if !e.dirty.Load() {
		return zero, false
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	if !e.dirty.CompareAndSwap(true, false) {
		return zero, false
	}
	if c, ok := any(e.value).(cloner[T]); ok {
		return c.Clone(), true
	}
	return e.value, true
}

// requeue marks a captured entry dirty again after its store failed.
func (e *entry[T]) requeue() {
	e.dirty.Store(true)
}

// Record is a handle to one cached entity. It is cheap to copy and safe for
// concurrent use; handles to the same key share the same entity and lock.
type Record[T any] struct {
	kind  string
	key   string
	entry *entry[T]
}

// Key returns the storage key the record was resolved for.
func (r Record[T]) Key() string {
	return r.key
}

// IsAvailable reports whether the record resolved to real data.
func (r Record[T]) IsAvailable() bool {
	return r.entry != nil
}

// IsDirty reports whether the entity has changes not yet flushed to the backend.
func (r Record[T]) IsDirty() bool {
	return r.entry != nil && r.entry.dirty.Load()
}

// Immutable calls fn with a copy of the entity under the shared lock.
// Slices in the copy alias the cached entity and must not be modified.
// The error returned by fn is returned unchanged.
func (r Record[T]) Immutable(fn func(T) error) error {
	if r.entry == nil {
		return errors.NewUnavailableError(r.kind, r.key)
	}

	r.entry.mu.RLock()
	defer r.entry.mu.RUnlock()

	return fn(r.entry.value)
}

// Mutable calls fn with the entity under the exclusive lock and marks the
// record dirty if fn returns nil. The entity pointer must not escape fn.
func (r Record[T]) Mutable(fn func(*T) error) error {
	if r.entry == nil {
		return errors.NewUnavailableError(r.kind, r.key)
	}

	r.entry.mu.Lock()
	defer r.entry.mu.Unlock()

	if err := fn(&r.entry.value); err != nil {
		return err
	}
	r.entry.dirty.Store(true)
	return nil
}
