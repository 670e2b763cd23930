/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package datadirector_test

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storyofalicia/datadirector"
	"github.com/storyofalicia/datadirector/config"
	"github.com/storyofalicia/datadirector/datastore"
	"github.com/storyofalicia/datadirector/datastore/file"
	"github.com/storyofalicia/datadirector/datastore/mock"
	"github.com/storyofalicia/datadirector/errors"
	"github.com/storyofalicia/datadirector/model"
)

func newDirector(t *testing.T) (*datadirector.DataDirector, *mock.Backend) {
	t.Helper()
	backend := mock.NewBackend()
	dd, err := datadirector.New(context.Background(), backend.Stores())
	require.NoError(t, err)
	return dd, backend
}

func characterUid(t *testing.T, r datadirector.Record[model.Character]) model.Uid {
	t.Helper()
	var id model.Uid
	require.NoError(t, r.Immutable(func(c model.Character) error {
		id = c.Uid
		return nil
	}))
	return id
}

func available[T any](r datadirector.Record[T], err error) (bool, error) {
	return r.IsAvailable(), err
}

func TestNewRequiresEveryStore(t *testing.T) {
	stores := mock.NewBackend().Stores()
	stores.Horses = nil
	stores.Sequence = nil

	_, err := datadirector.New(context.Background(), stores)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "horses")
	assert.Contains(t, err.Error(), "sequence")
}

func TestNewFailsWhenSequenceUnreadable(t *testing.T) {
	backend := mock.NewBackend()
	backend.Sequence.WithError(fmt.Errorf("disk unreadable"))

	_, err := datadirector.New(context.Background(), backend.Stores())
	require.Error(t, err)
	assert.True(t, errors.IsBackendFailure(err))
}

func TestKindsRegistered(t *testing.T) {
	dd, _ := newDirector(t)

	kinds := dd.Kinds()
	sort.Strings(kinds)
	assert.Equal(t, []string{
		datastore.KindCharacter, datastore.KindEgg, datastore.KindGuild, datastore.KindHorse,
		datastore.KindHousing, datastore.KindItem, datastore.KindPet, datastore.KindRanch,
		datastore.KindStorageItem, datastore.KindUser,
	}, kinds)
}

func TestGetNonexistentForEveryKind(t *testing.T) {
	ctx := context.Background()
	dd, _ := newDirector(t)
	const missing = model.Uid(424242)

	checks := map[string]func() (bool, error){
		"user":         func() (bool, error) { return available(dd.GetUser(ctx, "nobody")) },
		"character":    func() (bool, error) { return available(dd.GetCharacter(ctx, missing)) },
		"horse":        func() (bool, error) { return available(dd.GetHorse(ctx, missing)) },
		"item":         func() (bool, error) { return available(dd.GetItem(ctx, missing)) },
		"pet":          func() (bool, error) { return available(dd.GetPet(ctx, missing)) },
		"egg":          func() (bool, error) { return available(dd.GetEgg(ctx, missing)) },
		"guild":        func() (bool, error) { return available(dd.GetGuild(ctx, missing)) },
		"housing":      func() (bool, error) { return available(dd.GetHousing(ctx, missing)) },
		"storage-item": func() (bool, error) { return available(dd.GetStorageItem(ctx, missing)) },
		"ranch":        func() (bool, error) { return available(dd.GetRanch(ctx, missing)) },
	}
	for kind, get := range checks {
		ok, err := get()
		require.NoError(t, err, kind)
		assert.False(t, ok, kind)
	}

	assert.Equal(t, 0, dd.Characters().Len(), "failed lookups are not cached as entities")
	assert.Equal(t, 0, dd.Users().Len())
}

func TestCreateThenGetForEveryKind(t *testing.T) {
	ctx := context.Background()
	dd, _ := newDirector(t)

	c, err := dd.CreateCharacter(ctx)
	require.NoError(t, err)
	got, err := dd.GetCharacter(ctx, characterUid(t, c))
	require.NoError(t, err)
	require.True(t, got.IsAvailable())
	assert.Equal(t, characterUid(t, c), characterUid(t, got))

	h, err := dd.CreateHorse(ctx)
	require.NoError(t, err)
	horseUid, err := model.ParseUidKey(h.Key())
	require.NoError(t, err)
	again, err := dd.GetHorse(ctx, horseUid)
	require.NoError(t, err)
	require.NoError(t, again.Immutable(func(horse model.Horse) error {
		assert.Equal(t, horseUid, horse.Uid)
		return nil
	}))

	creates := []func() (string, error){
		func() (string, error) { r, err := dd.CreateItem(ctx); return r.Key(), err },
		func() (string, error) { r, err := dd.CreatePet(ctx); return r.Key(), err },
		func() (string, error) { r, err := dd.CreateEgg(ctx); return r.Key(), err },
		func() (string, error) { r, err := dd.CreateGuild(ctx); return r.Key(), err },
		func() (string, error) { r, err := dd.CreateHousing(ctx); return r.Key(), err },
		func() (string, error) { r, err := dd.CreateRanch(ctx); return r.Key(), err },
		func() (string, error) { r, err := dd.CreateStorageItem(ctx); return r.Key(), err },
	}
	for _, create := range creates {
		key, err := create()
		require.NoError(t, err)
		id, err := model.ParseUidKey(key)
		require.NoError(t, err)
		assert.NotEqual(t, model.InvalidUid, id)
	}

	s, err := dd.GetStorageItem(ctx, dd.LastUid())
	require.NoError(t, err)
	require.NoError(t, s.Immutable(func(item model.StorageItem) error {
		assert.Equal(t, dd.LastUid(), item.Uid)
		assert.False(t, time.Time(item.CreatedAt).IsZero())
		return nil
	}))
}

func TestUidsUniqueAcrossKinds(t *testing.T) {
	ctx := context.Background()
	dd, _ := newDirector(t)

	const workers, perWorker = 8, 50
	var mu sync.Mutex
	seen := make(map[string]struct{})

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				var key string
				var err error
				switch (w + i) % 4 {
				case 0:
					r, e := dd.CreateCharacter(ctx)
					key, err = r.Key(), e
				case 1:
					r, e := dd.CreateHorse(ctx)
					key, err = r.Key(), e
				case 2:
					r, e := dd.CreateItem(ctx)
					key, err = r.Key(), e
				default:
					r, e := dd.CreatePet(ctx)
					key, err = r.Key(), e
				}
				if !assert.NoError(t, err) {
					return
				}
				mu.Lock()
				seen[key] = struct{}{}
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()

	assert.Len(t, seen, workers*perWorker)
	assert.Equal(t, model.Uid(workers*perWorker), dd.LastUid())
}

func TestMutationVisibleThroughFreshGet(t *testing.T) {
	ctx := context.Background()
	dd, _ := newDirector(t)

	h, err := dd.CreateHorse(ctx)
	require.NoError(t, err)
	require.NoError(t, h.Mutable(func(horse *model.Horse) error {
		horse.Name = "Thunder"
		horse.Stats.Courage = 9
		return nil
	}))

	id, err := model.ParseUidKey(h.Key())
	require.NoError(t, err)
	fresh, err := dd.GetHorse(ctx, id)
	require.NoError(t, err)
	require.NoError(t, fresh.Immutable(func(horse model.Horse) error {
		assert.Equal(t, "Thunder", horse.Name)
		assert.Equal(t, uint32(9), horse.Stats.Courage)
		return nil
	}))
}

func TestReferencesDoNotMutateReferencedRecord(t *testing.T) {
	ctx := context.Background()
	dd, _ := newDirector(t)

	pet, err := dd.CreatePet(ctx)
	require.NoError(t, err)
	require.NoError(t, dd.Flush(ctx))
	require.False(t, pet.IsDirty())

	petUid, err := model.ParseUidKey(pet.Key())
	require.NoError(t, err)

	c, err := dd.CreateCharacter(ctx)
	require.NoError(t, err)
	require.NoError(t, c.Mutable(func(char *model.Character) error {
		char.Pets = append(char.Pets, petUid)
		char.PetUid = petUid
		return nil
	}))

	assert.False(t, pet.IsDirty())
	require.NoError(t, pet.Immutable(func(p model.Pet) error {
		assert.Equal(t, model.NewPet(petUid), p)
		return nil
	}))
}

func TestEquipmentReferenceScenario(t *testing.T) {
	ctx := context.Background()
	dd, _ := newDirector(t)

	c, err := dd.CreateCharacter(ctx)
	require.NoError(t, err)
	i1, err := dd.CreateItem(ctx)
	require.NoError(t, err)
	i2, err := dd.CreateItem(ctx)
	require.NoError(t, err)

	u1, err := model.ParseUidKey(i1.Key())
	require.NoError(t, err)
	u2, err := model.ParseUidKey(i2.Key())
	require.NoError(t, err)

	require.NoError(t, c.Mutable(func(char *model.Character) error {
		char.CharacterEquipment = append(char.CharacterEquipment, u1)
		char.MountEquipment = append(char.MountEquipment, u2)
		return nil
	}))

	again, err := dd.GetCharacter(ctx, characterUid(t, c))
	require.NoError(t, err)
	require.NoError(t, again.Immutable(func(char model.Character) error {
		assert.Equal(t, []model.Uid{u1}, char.CharacterEquipment)
		assert.Equal(t, []model.Uid{u2}, char.MountEquipment)
		return nil
	}))
}

func TestGuildMembershipScenario(t *testing.T) {
	ctx := context.Background()
	dd, _ := newDirector(t)

	guild, err := dd.CreateGuild(ctx)
	require.NoError(t, err)
	g, err := model.ParseUidKey(guild.Key())
	require.NoError(t, err)

	var members []model.Uid
	for i := 0; i < 2; i++ {
		c, err := dd.CreateCharacter(ctx)
		require.NoError(t, err)
		require.NoError(t, c.Mutable(func(char *model.Character) error {
			char.GuildUid = g
			return nil
		}))
		members = append(members, characterUid(t, c))
	}

	for _, id := range members {
		c, err := dd.GetCharacter(ctx, id)
		require.NoError(t, err)
		require.NoError(t, c.Immutable(func(char model.Character) error {
			assert.Equal(t, g, char.GuildUid)
			return nil
		}))
	}
}

func TestUserScenario(t *testing.T) {
	ctx := context.Background()
	dd, _ := newDirector(t)

	alice, err := dd.CreateUser(ctx, "alice")
	require.NoError(t, err)
	require.NoError(t, alice.Mutable(func(u *model.User) error {
		u.Token = "t1"
		u.CharacterUid = 5
		return nil
	}))

	got, err := dd.GetUser(ctx, "alice")
	require.NoError(t, err)
	require.NoError(t, got.Immutable(func(u model.User) error {
		assert.Equal(t, "alice", u.Name)
		assert.Equal(t, "t1", u.Token)
		assert.Equal(t, model.Uid(5), u.CharacterUid)
		return nil
	}))

	bob, err := dd.GetUser(ctx, "bob")
	require.NoError(t, err)
	assert.False(t, bob.IsAvailable())
}

func TestCreateUserRejectsDuplicatesAndBadNames(t *testing.T) {
	ctx := context.Background()
	dd, backend := newDirector(t)
	backend.Users.SetData(map[string]model.User{"stored": model.NewUser("stored")})

	_, err := dd.CreateUser(ctx, "alice")
	require.NoError(t, err)

	_, err = dd.CreateUser(ctx, "alice")
	assert.True(t, errors.IsAlreadyExists(err))

	_, err = dd.CreateUser(ctx, "stored")
	assert.True(t, errors.IsAlreadyExists(err))

	_, err = dd.CreateUser(ctx, "../etc")
	assert.True(t, errors.IsValidationError(err))

	r, err := dd.GetUser(ctx, "../etc")
	require.NoError(t, err)
	assert.False(t, r.IsAvailable())
	assert.Equal(t, int64(2), backend.Users.Loads(), "invalid names never reach the backend")
}

func TestConcurrentMutationsAreSerialized(t *testing.T) {
	ctx := context.Background()
	dd, _ := newDirector(t)

	c, err := dd.CreateCharacter(ctx)
	require.NoError(t, err)
	id := characterUid(t, c)

	const writers, rounds = 4, 250
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				r, err := dd.GetCharacter(ctx, id)
				if !assert.NoError(t, err) {
					return
				}
				_ = r.Mutable(func(char *model.Character) error {
					// Both fields move together; a reader must never see them apart.
					char.Carrots++
					char.Cash++
					return nil
				})
				_ = r.Immutable(func(char model.Character) error {
					assert.Equal(t, uint32(char.Carrots), char.Cash)
					return nil
				})
			}
		}()
	}
	wg.Wait()

	require.NoError(t, c.Immutable(func(char model.Character) error {
		assert.Equal(t, int32(writers*rounds), char.Carrots)
		return nil
	}))
}

func TestFlushPersistsSequenceAndEntities(t *testing.T) {
	ctx := context.Background()
	dd, backend := newDirector(t)

	_, err := dd.CreateHorse(ctx)
	require.NoError(t, err)
	_, err = dd.CreateUser(ctx, "alice")
	require.NoError(t, err)

	require.NoError(t, dd.Flush(ctx))

	last, err := backend.Sequence.LoadSequence(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.Uid(1), last)
	assert.Equal(t, 1, backend.Horses.Count())
	assert.Equal(t, 1, backend.Users.Count())
}

func TestFlushStopsWhenSequenceCannotBeStored(t *testing.T) {
	ctx := context.Background()
	dd, backend := newDirector(t)

	h, err := dd.CreateHorse(ctx)
	require.NoError(t, err)

	backend.Sequence.WithError(fmt.Errorf("read-only filesystem"))
	err = dd.Flush(ctx)
	require.Error(t, err)
	assert.True(t, errors.IsBackendFailure(err))
	assert.Equal(t, 0, backend.Horses.Count(), "no entity may outrun the stored sequence")
	assert.True(t, h.IsDirty())
}

// hookedSequence runs onStore once, right before the sequence is written.
type hookedSequence struct {
	*mock.Sequence
	onStore func()
}

func (s *hookedSequence) StoreSequence(ctx context.Context, last model.Uid) error {
	if hook := s.onStore; hook != nil {
		s.onStore = nil
		hook()
	}
	return s.Sequence.StoreSequence(ctx, last)
}

func TestFlushNeverStoresUidsBeyondStoredSequence(t *testing.T) {
	ctx := context.Background()
	backend := mock.NewBackend()
	seq := &hookedSequence{Sequence: backend.Sequence}
	stores := backend.Stores()
	stores.Sequence = seq

	dd, err := datadirector.New(ctx, stores)
	require.NoError(t, err)

	rider, err := dd.CreateCharacter(ctx)
	require.NoError(t, err)

	var late datadirector.Record[model.Horse]
	seq.onStore = func() {
		late, err = dd.CreateHorse(ctx)
		require.NoError(t, err)
		horseUid, err := model.ParseUidKey(late.Key())
		require.NoError(t, err)
		require.NoError(t, rider.Mutable(func(c *model.Character) error {
			c.MountUid = horseUid
			return nil
		}))
	}
	require.NoError(t, dd.Flush(ctx))

	stored, err := backend.Sequence.LoadSequence(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.Uid(1), stored)
	assert.Equal(t, 0, backend.Horses.Count(), "records created during the flush wait for the next one")
	chars := backend.Characters.GetData()
	require.Len(t, chars, 1)
	for _, c := range chars {
		assert.LessOrEqual(t, uint32(c.Uid), uint32(stored))
		assert.Equal(t, model.InvalidUid, c.MountUid, "stored value predates the mount")
	}
	assert.True(t, late.IsDirty())
	assert.True(t, rider.IsDirty())

	// A restart at this point must not hand out the horse's uid to a stored entity.
	restarted, err := datadirector.New(ctx, backend.Stores())
	require.NoError(t, err)
	reused, err := restarted.CreateItem(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2", reused.Key())
	_, exists := backend.Horses.GetData()["2"]
	assert.False(t, exists)

	require.NoError(t, dd.Flush(ctx))
	stored, err = backend.Sequence.LoadSequence(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.Uid(2), stored)
	assert.Equal(t, 1, backend.Horses.Count())
	assert.Equal(t, model.Uid(2), backend.Characters.GetData()["1"].MountUid)
}

func TestFlushReportsMultipleFailuresAsBackendFailure(t *testing.T) {
	ctx := context.Background()
	dd, backend := newDirector(t)

	for i := 0; i < 2; i++ {
		_, err := dd.CreateCharacter(ctx)
		require.NoError(t, err)
	}
	_, err := dd.CreateHorse(ctx)
	require.NoError(t, err)

	backend.Characters.WithStoreError(fmt.Errorf("character shard offline"))
	backend.Horses.WithStoreError(fmt.Errorf("horse shard offline"))

	err = dd.Flush(ctx)
	require.Error(t, err)
	assert.True(t, errors.IsBackendFailure(err))

	var be *errors.BackendError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, "store", be.Op)
}

func TestConcurrentFlushesStoreLatestValue(t *testing.T) {
	ctx := context.Background()
	dd, backend := newDirector(t)

	c, err := dd.CreateCharacter(ctx)
	require.NoError(t, err)

	const writers, rounds = 4, 50
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				_ = c.Mutable(func(char *model.Character) error {
					char.Carrots++
					return nil
				})
			}
		}()
		go func() {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				assert.NoError(t, dd.Flush(ctx))
			}
		}()
	}
	wg.Wait()

	require.NoError(t, dd.Flush(ctx))
	assert.False(t, c.IsDirty())
	assert.Equal(t, int32(writers*rounds), backend.Characters.GetData()["1"].Carrots)
}

func TestFlushFailureInOneKindDoesNotStopOthers(t *testing.T) {
	ctx := context.Background()
	dd, backend := newDirector(t)

	horse, err := dd.CreateHorse(ctx)
	require.NoError(t, err)
	_, err = dd.CreateItem(ctx)
	require.NoError(t, err)

	backend.Horses.WithStoreError(fmt.Errorf("horse shard offline"))
	require.Error(t, dd.Flush(ctx))

	assert.True(t, horse.IsDirty())
	assert.Equal(t, 1, backend.Items.Count())
}

func TestRunFlushesPeriodically(t *testing.T) {
	dd, backend := newDirector(t)
	ctx, cancel := context.WithCancel(context.Background())

	_, err := dd.CreateItem(ctx)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- dd.Run(ctx, 5*time.Millisecond) }()

	require.Eventually(t, func() bool { return backend.Items.Count() == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	require.Error(t, dd.Run(context.Background(), 0))
}

func TestCloseFlushesAndClosesOnce(t *testing.T) {
	ctx := context.Background()
	dd, backend := newDirector(t)

	_, err := dd.CreateGuild(ctx)
	require.NoError(t, err)

	require.NoError(t, dd.Close(ctx))
	assert.True(t, backend.Closed())
	assert.Equal(t, 1, backend.Guilds.Count())

	require.NoError(t, dd.Close(ctx), "second close is a no-op")
}

func TestCloseReportsFlushFailureButStillCloses(t *testing.T) {
	ctx := context.Background()
	dd, backend := newDirector(t)

	_, err := dd.CreateEgg(ctx)
	require.NoError(t, err)
	backend.Eggs.WithStoreError(fmt.Errorf("no space left"))

	require.Error(t, dd.Close(ctx))
	assert.True(t, backend.Closed())
}

func TestRestartContinuesSequence(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()

	first, err := datadirector.New(ctx, file.New(root).Stores())
	require.NoError(t, err)

	c, err := first.CreateCharacter(ctx)
	require.NoError(t, err)
	require.NoError(t, c.Mutable(func(char *model.Character) error {
		char.Name = "persisted"
		return nil
	}))
	_, err = first.CreateHorse(ctx)
	require.NoError(t, err)
	lastBefore := first.LastUid()
	require.NoError(t, first.Close(ctx))

	second, err := datadirector.New(ctx, file.New(root).Stores())
	require.NoError(t, err)
	assert.Equal(t, lastBefore, second.LastUid())

	next, err := second.CreateItem(ctx)
	require.NoError(t, err)
	id, err := model.ParseUidKey(next.Key())
	require.NoError(t, err)
	assert.Greater(t, uint32(id), uint32(lastBefore))

	again, err := second.GetCharacter(ctx, characterUid(t, c))
	require.NoError(t, err)
	require.NoError(t, again.Immutable(func(char model.Character) error {
		assert.Equal(t, "persisted", char.Name)
		return nil
	}))
}

func TestOpenFileBackend(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	cfg.File.Root = t.TempDir()

	dd, err := datadirector.Open(ctx, cfg, zerolog.Nop())
	require.NoError(t, err)

	_, err = dd.CreateUser(ctx, "rider")
	require.NoError(t, err)
	require.NoError(t, dd.Close(ctx))

	u, err := file.NewStore[model.User](file.New(cfg.File.Root), datastore.KindUser).Load(ctx, "rider")
	require.NoError(t, err)
	assert.Equal(t, "rider", u.Name)
}

func TestOpenRedisBackend(t *testing.T) {
	ctx := context.Background()
	srv := miniredis.RunT(t)

	cfg := config.Default()
	cfg.Backend = config.BackendRedis
	cfg.Redis.Address = srv.Addr()
	cfg.Redis.Prefix = "test"

	dd, err := datadirector.Open(ctx, cfg, zerolog.Nop())
	require.NoError(t, err)

	_, err = dd.CreateHorse(ctx)
	require.NoError(t, err)
	require.NoError(t, dd.Close(ctx))

	assert.True(t, srv.Exists("test:horse:1"))
	seq, err := srv.Get("test:meta:sequentialUid")
	require.NoError(t, err)
	assert.Equal(t, "1", seq)
}

func TestOpenRejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Backend = "floppy"

	_, err := datadirector.Open(context.Background(), cfg, zerolog.Nop())
	require.Error(t, err)
}
