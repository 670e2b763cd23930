/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package datadirector

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/storyofalicia/datadirector/datastore"
	"github.com/storyofalicia/datadirector/errors"
	"github.com/storyofalicia/datadirector/model"
	"github.com/storyofalicia/datadirector/uid"
)

const (
	// DefaultNegativeTTL is how long a key the backend does not know stays known-absent.
	DefaultNegativeTTL = 5 * time.Second

	// absentSweepThreshold bounds the negative cache before expired markers are swept.
	absentSweepThreshold = 1024
)

// StorageOption configures a Storage.
type StorageOption func(*storageOptions)

type storageOptions struct {
	alloc       *uid.Allocator
	seq         datastore.SequenceStore
	seqAlloc    *uid.Allocator
	negativeTTL time.Duration
	serialize   bool
	logger      zerolog.Logger
	now         func() time.Time
}

// WithAllocator makes the storage uid-keyed: Create allocates from alloc.
func WithAllocator(alloc *uid.Allocator) StorageOption {
	return func(o *storageOptions) {
		o.alloc = alloc
	}
}

// WithSequence makes every flush persist the uid sequence of alloc to seq after
// capturing the dirty records and before storing them, so no stored record can
// reference a uid the persisted sequence does not cover.
func WithSequence(alloc *uid.Allocator, seq datastore.SequenceStore) StorageOption {
	return func(o *storageOptions) {
		o.seqAlloc = alloc
		o.seq = seq
	}
}

// WithNegativeTTL sets how long a missing key is remembered. Zero disables negative caching.
func WithNegativeTTL(ttl time.Duration) StorageOption {
	return func(o *storageOptions) {
		o.negativeTTL = ttl
	}
}

// WithSerializedBackend funnels every backend call of the storage through one lock,
// for backends that are not safe for concurrent use.
func WithSerializedBackend() StorageOption {
	return func(o *storageOptions) {
		o.serialize = true
	}
}

// WithStorageLogger sets the storage logger.
func WithStorageLogger(logger zerolog.Logger) StorageOption {
	return func(o *storageOptions) {
		o.logger = logger
	}
}

func withClock(now func() time.Time) StorageOption {
	return func(o *storageOptions) {
		o.now = now
	}
}

// Storage caches the records of one entity kind in front of its DataStore.
// Records are loaded on first access and written back by Flush.
type Storage[T any] struct {
	kind  string
	store datastore.DataStore[T]
	opts  storageOptions
	log   zerolog.Logger

	mu      sync.RWMutex
	entries map[string]*entry[T]
	absent  map[string]time.Time

	loads     singleflight.Group
	backendMu sync.Mutex
	flushMu   sync.Mutex
}

// NewStorage creates an empty cache for kind backed by store.
func NewStorage[T any](kind string, store datastore.DataStore[T], opts ...StorageOption) *Storage[T] {
	o := storageOptions{
		negativeTTL: DefaultNegativeTTL,
		logger:      zerolog.Nop(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}

	return &Storage[T]{
		kind:    kind,
		store:   store,
		opts:    o,
		log:     o.logger.With().Str("kind", kind).Logger(),
		entries: make(map[string]*entry[T]),
		absent:  make(map[string]time.Time),
	}
}

// Kind returns the entity kind name.
func (s *Storage[T]) Kind() string {
	return s.kind
}

// Get returns the record for key, loading it from the backend on a cache miss.
// Concurrent misses for the same key share one backend load, which is not
// cancelled when one of the waiting callers gives up. A key the backend does
// not know yields an unavailable record and a nil error. If ctx ends first,
// ctx.Err() is returned as is. Any other backend problem is returned as an
// errors.BackendError and nothing is cached.
func (s *Storage[T]) Get(ctx context.Context, key string) (Record[T], error) {
	s.mu.RLock()
	e, cached := s.entries[key]
	expiry, absent := s.absent[key]
	s.mu.RUnlock()

	if cached {
		return s.record(key, e), nil
	}
	if absent && s.opts.now().Before(expiry) {
		return s.record(key, nil), nil
	}

	loadCtx := context.WithoutCancel(ctx)
	ch := s.loads.DoChan(key, func() (any, error) {
		return s.load(loadCtx, key)
	})

	select {
	case <-ctx.Done():
		return s.record(key, nil), ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return s.record(key, nil), res.Err
		}
		return s.record(key, res.Val.(*entry[T])), nil
	}
}

func (s *Storage[T]) load(ctx context.Context, key string) (*entry[T], error) {
	// A previous flight may have finished between the miss and this call.
	s.mu.RLock()
	e, cached := s.entries[key]
	s.mu.RUnlock()
	if cached {
		return e, nil
	}

	var entity *T
	err := s.backend(func() error {
		var err error
		entity, err = s.store.Load(ctx, key)
		return err
	})
	if err == nil && entity == nil {
		err = errors.NewNotFoundError(s.kind, key)
	}
	if err != nil {
		if errors.IsNotFound(err) {
			s.markAbsent(key)
			s.log.Debug().Str("key", key).Msg("not found in backend")
			return nil, nil
		}
		s.log.Error().Err(err).Str("key", key).Msg("loading from backend")
		return nil, errors.NewBackendError("load", s.kind, key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.entries[key]; ok {
		return existing, nil
	}
	e = &entry[T]{value: *entity}
	s.entries[key] = e
	delete(s.absent, key)
	return e, nil
}

// Create allocates a uid, builds the entity with it and caches it as dirty.
// It is only valid on uid-keyed storages.
func (s *Storage[T]) Create(ctx context.Context, build func(model.Uid) T) (Record[T], error) {
	if s.opts.alloc == nil {
		return s.record("", nil), errors.NewValidationError("key", fmt.Sprintf("%s storage is not uid-keyed", s.kind))
	}

	id := s.opts.alloc.Next()
	return s.insert(model.UidKey(id), build(id))
}

// CreateWithKey caches entity under a caller supplied key as dirty. It fails with
// an errors.AlreadyExistsError if the key is cached or stored in the backend.
func (s *Storage[T]) CreateWithKey(ctx context.Context, key string, entity T) (Record[T], error) {
	existing, err := s.Get(ctx, key)
	if err != nil {
		return s.record(key, nil), err
	}
	if existing.IsAvailable() {
		return s.record(key, nil), errors.NewAlreadyExistsError(s.kind, key)
	}
	return s.insert(key, entity)
}

func (s *Storage[T]) insert(key string, entity T) (Record[T], error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[key]; ok {
		return s.record(key, nil), errors.NewAlreadyExistsError(s.kind, key)
	}

	e := &entry[T]{value: entity}
	e.dirty.Store(true)
	s.entries[key] = e
	delete(s.absent, key)

	s.log.Debug().Str("key", key).Msg("created")
	return s.record(key, e), nil
}

type pending[T any] struct {
	key   string
	entry *entry[T]
	value T
}

// Flush stores every dirty record. Records that fail to store stay dirty and
// the remaining records are still attempted.
func (s *Storage[T]) Flush(ctx context.Context) error {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	batch := s.capture()
	if len(batch) == 0 {
		return nil
	}
	if err := s.persistSequence(ctx, batch); err != nil {
		return err
	}
	return s.storeBatch(ctx, batch)
}

// capture takes the dirty records with their values as of now, in key order.
// The caller must hold flushMu until the batch is stored.
func (s *Storage[T]) capture() []pending[T] {
	s.mu.RLock()
	keys := make([]string, 0)
	entries := make(map[string]*entry[T])
	for key, e := range s.entries {
		if e.dirty.Load() {
			keys = append(keys, key)
			entries[key] = e
		}
	}
	s.mu.RUnlock()

	sort.Strings(keys)

	batch := make([]pending[T], 0, len(keys))
	for _, key := range keys {
		e := entries[key]
		if v, ok := e.capture(); ok {
			batch = append(batch, pending[T]{key: key, entry: e, value: v})
		}
	}
	return batch
}

func (s *Storage[T]) persistSequence(ctx context.Context, batch []pending[T]) error {
	if s.opts.seq == nil || s.opts.seqAlloc == nil {
		return nil
	}
	if err := s.opts.seqAlloc.Persist(ctx, s.opts.seq); err != nil {
		requeue(batch)
		s.log.Error().Err(err).Msg("persisting uid sequence")
		return errors.NewBackendError("store", "sequence", "", err)
	}
	return nil
}

// storeBatch writes a captured batch. Entries that fail are marked dirty again.
func (s *Storage[T]) storeBatch(ctx context.Context, batch []pending[T]) error {
	el := errors.NewErrorList()
	stored := 0
	for i, p := range batch {
		if err := ctx.Err(); err != nil {
			requeue(batch[i:])
			el.Add(fmt.Errorf("flushing %s: %w", s.kind, err))
			break
		}

		err := s.backend(func() error {
			return s.store.Store(ctx, p.key, p.value)
		})
		if err != nil {
			p.entry.requeue()
			s.log.Error().Err(err).Str("key", p.key).Msg("storing to backend")
			el.Add(errors.NewBackendError("store", s.kind, p.key, err))
			continue
		}
		stored++
	}

	s.log.Debug().Int("dirty", len(batch)).Int("stored", stored).Int("failed", len(batch)-stored).Msg("flushed")
	return el.Err()
}

// flushBatch is a captured set of dirty records of one kind, stored after the
// director has persisted the uid sequence.
type flushBatch interface {
	store(ctx context.Context) error
	requeue()
	size() int
}

type storageBatch[T any] struct {
	s     *Storage[T]
	items []pending[T]
}

func (b storageBatch[T]) store(ctx context.Context) error { return b.s.storeBatch(ctx, b.items) }
func (b storageBatch[T]) requeue()                        { requeue(b.items) }
func (b storageBatch[T]) size() int                       { return len(b.items) }

func (s *Storage[T]) captureBatch() flushBatch {
	return storageBatch[T]{s: s, items: s.capture()}
}

func (s *Storage[T]) lockFlush()   { s.flushMu.Lock() }
func (s *Storage[T]) unlockFlush() { s.flushMu.Unlock() }

func requeue[T any](batch []pending[T]) {
	for _, p := range batch {
		p.entry.requeue()
	}
}

// Evict flushes the record for key if it is dirty and drops it from the cache.
// Handles obtained earlier keep working but no longer share state with later Gets.
func (s *Storage[T]) Evict(ctx context.Context, key string) error {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return nil
	}

	if v, dirty := e.capture(); dirty {
		batch := []pending[T]{{key: key, entry: e, value: v}}
		if err := s.persistSequence(ctx, batch); err != nil {
			return err
		}
		if err := s.storeBatch(ctx, batch); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// A writer may have slipped in between the store and the lock.
	if e.dirty.Load() {
		return fmt.Errorf("evicting %s %q: modified during eviction", s.kind, key)
	}
	delete(s.entries, key)
	return nil
}

// Forget drops the known-absent marker for key.
func (s *Storage[T]) Forget(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.absent, key)
}

// Range calls fn for every cached record until fn returns false.
// fn runs without the storage lock held.
func (s *Storage[T]) Range(fn func(key string, r Record[T]) bool) {
	for _, key := range s.Keys() {
		s.mu.RLock()
		e, ok := s.entries[key]
		s.mu.RUnlock()
		if !ok {
			continue
		}
		if !fn(key, s.record(key, e)) {
			return
		}
	}
}

// Keys returns the cached keys in ascending order.
func (s *Storage[T]) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of cached records.
func (s *Storage[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *Storage[T]) record(key string, e *entry[T]) Record[T] {
	return Record[T]{kind: s.kind, key: key, entry: e}
}

func (s *Storage[T]) backend(call func() error) error {
	if s.opts.serialize {
		s.backendMu.Lock()
		defer s.backendMu.Unlock()
	}
	return call()
}

func (s *Storage[T]) markAbsent(key string) {
	if s.opts.negativeTTL <= 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[key]; ok {
		return
	}

	now := s.opts.now()
	if len(s.absent) >= absentSweepThreshold {
		for k, expiry := range s.absent {
			if !now.Before(expiry) {
				delete(s.absent, k)
			}
		}
	}
	s.absent[key] = now.Add(s.opts.negativeTTL)
}
