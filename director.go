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

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/storyofalicia/datadirector/datastore"
	"github.com/storyofalicia/datadirector/errors"
	"github.com/storyofalicia/datadirector/model"
	"github.com/storyofalicia/datadirector/uid"
)

// flusher is the kind-independent view of a Storage used for bulk operations.
type flusher interface {
	Kind() string
	Flush(ctx context.Context) error
	Len() int

	lockFlush()
	unlockFlush()
	captureBatch() flushBatch
}

// Option configures a DataDirector.
type Option func(*options)

type options struct {
	logger      zerolog.Logger
	negativeTTL time.Duration
	serialize   bool
}

// WithLogger sets the logger used by the director and its storages.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithNegativeCacheTTL sets how long missing keys are remembered by every storage.
func WithNegativeCacheTTL(ttl time.Duration) Option {
	return func(o *options) {
		o.negativeTTL = ttl
	}
}

// WithSerializedBackends serializes backend access per entity kind.
func WithSerializedBackends() Option {
	return func(o *options) {
		o.serialize = true
	}
}

// DataDirector owns one Storage per entity kind and is the single entry point
// game logic and network handlers use to reach entities. It does not validate
// references between entities.
type DataDirector struct {
	log    zerolog.Logger
	stores datastore.Stores
	alloc  *uid.Allocator

	users        *Storage[model.User]
	characters   *Storage[model.Character]
	horses       *Storage[model.Horse]
	items        *Storage[model.Item]
	pets         *Storage[model.Pet]
	eggs         *Storage[model.Egg]
	guilds       *Storage[model.Guild]
	housing      *Storage[model.Housing]
	storageItems *Storage[model.StorageItem]
	ranches      *Storage[model.Ranch]

	mu        sync.RWMutex
	registry  map[string]flusher
	flushMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

// New initializes the backend namespaces, restores the uid sequence and wires
// one storage per entity kind.
func New(ctx context.Context, stores datastore.Stores, opts ...Option) (*DataDirector, error) {
	o := options{
		logger:      zerolog.Nop(),
		negativeTTL: DefaultNegativeTTL,
	}
	for _, opt := range opts {
		opt(&o)
	}

	if err := validateStores(stores); err != nil {
		return nil, err
	}

	if stores.Init != nil {
		if err := stores.Init(ctx); err != nil {
			return nil, fmt.Errorf("initializing backend: %w", err)
		}
	}

	alloc, err := uid.Restore(ctx, stores.Sequence)
	if err != nil {
		return nil, errors.NewBackendError("load", "sequence", "", err)
	}

	d := &DataDirector{
		log:      o.logger.With().Str("instance", uuid.NewString()).Logger(),
		stores:   stores,
		alloc:    alloc,
		registry: make(map[string]flusher),
	}

	storageOpts := func(withAlloc bool) []StorageOption {
		so := []StorageOption{
			WithNegativeTTL(o.negativeTTL),
			WithStorageLogger(d.log),
			WithSequence(alloc, stores.Sequence),
		}
		if withAlloc {
			so = append(so, WithAllocator(alloc))
		}
		if o.serialize {
			so = append(so, WithSerializedBackend())
		}
		return so
	}

	d.users = NewStorage(datastore.KindUser, stores.Users, storageOpts(false)...)
	d.characters = NewStorage(datastore.KindCharacter, stores.Characters, storageOpts(true)...)
	d.horses = NewStorage(datastore.KindHorse, stores.Horses, storageOpts(true)...)
	d.items = NewStorage(datastore.KindItem, stores.Items, storageOpts(true)...)
	d.pets = NewStorage(datastore.KindPet, stores.Pets, storageOpts(true)...)
	d.eggs = NewStorage(datastore.KindEgg, stores.Eggs, storageOpts(true)...)
	d.guilds = NewStorage(datastore.KindGuild, stores.Guilds, storageOpts(true)...)
	d.housing = NewStorage(datastore.KindHousing, stores.Housing, storageOpts(true)...)
	d.storageItems = NewStorage(datastore.KindStorageItem, stores.StorageItems, storageOpts(true)...)
	d.ranches = NewStorage(datastore.KindRanch, stores.Ranches, storageOpts(true)...)

	for _, s := range []flusher{
		d.users, d.characters, d.horses, d.items, d.pets,
		d.eggs, d.guilds, d.housing, d.storageItems, d.ranches,
	} {
		if err := d.register(s); err != nil {
			return nil, err
		}
	}

	d.log.Info().Uint32("sequentialUid", uint32(alloc.Last())).Msg("data director ready")
	return d, nil
}

func validateStores(stores datastore.Stores) error {
	el := errors.NewErrorList()
	if stores.Users == nil {
		el.Add(errors.NewValidationError("users", "store is required"))
	}
	if stores.Characters == nil {
		el.Add(errors.NewValidationError("characters", "store is required"))
	}
	if stores.Horses == nil {
		el.Add(errors.NewValidationError("horses", "store is required"))
	}
	if stores.Items == nil {
		el.Add(errors.NewValidationError("items", "store is required"))
	}
	if stores.Pets == nil {
		el.Add(errors.NewValidationError("pets", "store is required"))
	}
	if stores.Eggs == nil {
		el.Add(errors.NewValidationError("eggs", "store is required"))
	}
	if stores.Guilds == nil {
		el.Add(errors.NewValidationError("guilds", "store is required"))
	}
	if stores.Housing == nil {
		el.Add(errors.NewValidationError("housing", "store is required"))
	}
	if stores.StorageItems == nil {
		el.Add(errors.NewValidationError("storageItems", "store is required"))
	}
	if stores.Ranches == nil {
		el.Add(errors.NewValidationError("ranches", "store is required"))
	}
	if stores.Sequence == nil {
		el.Add(errors.NewValidationError("sequence", "store is required"))
	}
	return el.Err()
}

// register adds a storage to the bulk-operation registry under its kind.
func (d *DataDirector) register(s flusher) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.registry[s.Kind()]; exists {
		return fmt.Errorf("storage for kind %q already registered", s.Kind())
	}
	d.registry[s.Kind()] = s
	return nil
}

// Kinds returns the registered entity kinds.
func (d *DataDirector) Kinds() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	kinds := make([]string, 0, len(d.registry))
	for k := range d.registry {
		kinds = append(kinds, k)
	}
	return kinds
}

// LastUid returns the last uid issued by the shared allocator.
func (d *DataDirector) LastUid() model.Uid {
	return d.alloc.Last()
}

// CreateUser creates an account. Names are unique: creating over an existing
// name fails with errors.AlreadyExistsError.
func (d *DataDirector) CreateUser(ctx context.Context, name string) (Record[model.User], error) {
	if err := model.ValidateName(name); err != nil {
		return Record[model.User]{}, errors.NewValidationError("name", err.Error())
	}
	return d.users.CreateWithKey(ctx, name, model.NewUser(name))
}

// GetUser returns the account with the given name.
func (d *DataDirector) GetUser(ctx context.Context, name string) (Record[model.User], error) {
	if err := model.ValidateName(name); err != nil {
		// Not a name that could ever have been stored.
		return d.users.record(name, nil), nil
	}
	return d.users.Get(ctx, name)
}

func (d *DataDirector) CreateCharacter(ctx context.Context) (Record[model.Character], error) {
	return d.characters.Create(ctx, model.NewCharacter)
}

func (d *DataDirector) GetCharacter(ctx context.Context, id model.Uid) (Record[model.Character], error) {
	return d.characters.Get(ctx, model.UidKey(id))
}

func (d *DataDirector) CreateHorse(ctx context.Context) (Record[model.Horse], error) {
	return d.horses.Create(ctx, model.NewHorse)
}

func (d *DataDirector) GetHorse(ctx context.Context, id model.Uid) (Record[model.Horse], error) {
	return d.horses.Get(ctx, model.UidKey(id))
}

func (d *DataDirector) CreateItem(ctx context.Context) (Record[model.Item], error) {
	return d.items.Create(ctx, model.NewItem)
}

func (d *DataDirector) GetItem(ctx context.Context, id model.Uid) (Record[model.Item], error) {
	return d.items.Get(ctx, model.UidKey(id))
}

// GetItems resolves a list of item uids in order. Unknown uids yield unavailable records.
func (d *DataDirector) GetItems(ctx context.Context, ids []model.Uid) ([]Record[model.Item], error) {
	records := make([]Record[model.Item], 0, len(ids))
	for _, id := range ids {
		r, err := d.GetItem(ctx, id)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, nil
}

func (d *DataDirector) CreatePet(ctx context.Context) (Record[model.Pet], error) {
	return d.pets.Create(ctx, model.NewPet)
}

func (d *DataDirector) GetPet(ctx context.Context, id model.Uid) (Record[model.Pet], error) {
	return d.pets.Get(ctx, model.UidKey(id))
}

func (d *DataDirector) CreateEgg(ctx context.Context) (Record[model.Egg], error) {
	return d.eggs.Create(ctx, model.NewEgg)
}

func (d *DataDirector) GetEgg(ctx context.Context, id model.Uid) (Record[model.Egg], error) {
	return d.eggs.Get(ctx, model.UidKey(id))
}

func (d *DataDirector) CreateGuild(ctx context.Context) (Record[model.Guild], error) {
	return d.guilds.Create(ctx, model.NewGuild)
}

func (d *DataDirector) GetGuild(ctx context.Context, id model.Uid) (Record[model.Guild], error) {
	return d.guilds.Get(ctx, model.UidKey(id))
}

func (d *DataDirector) CreateHousing(ctx context.Context) (Record[model.Housing], error) {
	return d.housing.Create(ctx, model.NewHousing)
}

func (d *DataDirector) GetHousing(ctx context.Context, id model.Uid) (Record[model.Housing], error) {
	return d.housing.Get(ctx, model.UidKey(id))
}

func (d *DataDirector) CreateStorageItem(ctx context.Context) (Record[model.StorageItem], error) {
	return d.storageItems.Create(ctx, model.NewStorageItem)
}

func (d *DataDirector) GetStorageItem(ctx context.Context, id model.Uid) (Record[model.StorageItem], error) {
	return d.storageItems.Get(ctx, model.UidKey(id))
}

func (d *DataDirector) CreateRanch(ctx context.Context) (Record[model.Ranch], error) {
	return d.ranches.Create(ctx, model.NewRanch)
}

func (d *DataDirector) GetRanch(ctx context.Context, id model.Uid) (Record[model.Ranch], error) {
	return d.ranches.Get(ctx, model.UidKey(id))
}

// Storage accessors for callers that need enumeration or eviction.

func (d *DataDirector) Users() *Storage[model.User]               { return d.users }
func (d *DataDirector) Characters() *Storage[model.Character]     { return d.characters }
func (d *DataDirector) Horses() *Storage[model.Horse]             { return d.horses }
func (d *DataDirector) Items() *Storage[model.Item]               { return d.items }
func (d *DataDirector) Pets() *Storage[model.Pet]                 { return d.pets }
func (d *DataDirector) Eggs() *Storage[model.Egg]                 { return d.eggs }
func (d *DataDirector) Guilds() *Storage[model.Guild]             { return d.guilds }
func (d *DataDirector) Housing() *Storage[model.Housing]          { return d.housing }
func (d *DataDirector) StorageItems() *Storage[model.StorageItem] { return d.storageItems }
func (d *DataDirector) Ranches() *Storage[model.Ranch]            { return d.ranches }

// Flush captures every dirty record, persists the uid sequence and then stores
// the captured values. Capturing first means every uid a stored value can hold
// was issued before the sequence was read, so the stored sequence covers it.
// Records changed after the capture wait for the next flush. Kinds are stored
// in parallel and a failing kind does not stop the others.
func (d *DataDirector) Flush(ctx context.Context) error {
	d.flushMu.Lock()
	defer d.flushMu.Unlock()

	storages := d.storages()
	for _, s := range storages {
		s.lockFlush()
		defer s.unlockFlush()
	}

	batches := make([]flushBatch, len(storages))
	for i, s := range storages {
		batches[i] = s.captureBatch()
	}

	if err := d.alloc.Persist(ctx, d.stores.Sequence); err != nil {
		for _, b := range batches {
			b.requeue()
		}
		d.log.Error().Err(err).Msg("persisting uid sequence")
		return errors.NewBackendError("store", "sequence", "", err)
	}

	var wg sync.WaitGroup
	el := errors.NewErrorList()
	for i, b := range batches {
		if b.size() == 0 {
			continue
		}
		wg.Add(1)
		go func(kind string, b flushBatch) {
			defer wg.Done()
			if err := b.store(ctx); err != nil {
				d.log.Error().Err(err).Str("kind", kind).Msg("flushing storage")
				el.Add(err)
			}
		}(storages[i].Kind(), b)
	}
	wg.Wait()

	return el.Err()
}

// storages returns the registered storages in kind order.
func (d *DataDirector) storages() []flusher {
	d.mu.RLock()
	defer d.mu.RUnlock()

	storages := make([]flusher, 0, len(d.registry))
	for _, s := range d.registry {
		storages = append(storages, s)
	}
	sort.Slice(storages, func(i, j int) bool { return storages[i].Kind() < storages[j].Kind() })
	return storages
}

// Run flushes every interval until ctx is done.
func (d *DataDirector) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return errors.NewValidationError("interval", "must be positive")
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			start := time.Now()
			if err := d.Flush(ctx); err != nil {
				d.log.Warn().Err(err).Msg("periodic flush incomplete")
				continue
			}
			d.log.Debug().Dur("took", time.Since(start)).Msg("periodic flush")
		}
	}
}

// Close flushes everything and closes the backend. Flush failures are logged and
// returned, but the backend is closed regardless. Close is idempotent.
func (d *DataDirector) Close(ctx context.Context) error {
	d.closeOnce.Do(func() {
		el := errors.NewErrorList()

		if err := d.Flush(ctx); err != nil {
			d.log.Error().Err(err).Msg("final flush incomplete")
			el.Add(err)
		}

		if d.stores.Close != nil {
			if err := d.stores.Close(ctx); err != nil {
				d.log.Error().Err(err).Msg("closing backend")
				el.Add(fmt.Errorf("closing backend: %w", err))
			}
		}

		d.log.Info().Uint32("sequentialUid", uint32(d.alloc.Last())).Msg("data director closed")
		d.closeErr = el.Err()
	})
	return d.closeErr
}
