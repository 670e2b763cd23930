/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

// Package uid allocates the uid sequence shared by every uid-keyed entity kind.
package uid

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/storyofalicia/datadirector/datastore"
	"github.com/storyofalicia/datadirector/errors"
	"github.com/storyofalicia/datadirector/model"
)

// Allocator hands out strictly increasing uids. It is safe for concurrent use.
type Allocator struct {
	last atomic.Uint32

	persistMu sync.Mutex
}

// NewAllocator continues the sequence after last.
func NewAllocator(last model.Uid) *Allocator {
	a := &Allocator{}
	a.last.Store(uint32(last))
	return a
}

// Restore creates an allocator continuing from the persisted sequence.
func Restore(ctx context.Context, seq datastore.SequenceStore) (*Allocator, error) {
	last, err := seq.LoadSequence(ctx)
	if err != nil {
		return nil, fmt.Errorf("restoring uid sequence: %w", err)
	}
	return NewAllocator(last), nil
}

// Next returns a uid greater than every uid previously returned.
// Running out of uids is unrecoverable and panics with errors.ErrAllocatorExhausted.
func (a *Allocator) Next() model.Uid {
	for {
		cur := a.last.Load()
		if cur == math.MaxUint32 {
			panic(errors.ErrAllocatorExhausted)
		}
		if a.last.CompareAndSwap(cur, cur+1) {
			return model.Uid(cur + 1)
		}
	}
}

// Last returns the most recently issued uid.
func (a *Allocator) Last() model.Uid {
	return model.Uid(a.last.Load())
}

// Persist stores the last issued uid. Concurrent calls are serialized and each
// reads the sequence under the lock, so the stored value never moves backwards.
func (a *Allocator) Persist(ctx context.Context, seq datastore.SequenceStore) error {
	a.persistMu.Lock()
	defer a.persistMu.Unlock()
	return seq.StoreSequence(ctx, a.Last())
}
