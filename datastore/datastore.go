/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package datastore

import (
	"context"

	"github.com/storyofalicia/datadirector/model"
)

// DataStore is the durable backend of one entity kind.
// Load returns an errors.NotFoundError when no entity is stored under key;
// every other error is a backend failure.
type DataStore[T any] interface {
	Load(ctx context.Context, key string) (*T, error)

	Store(ctx context.Context, key string, entity T) error

	Delete(ctx context.Context, key string) error
}

// SequenceStore persists the last uid handed out by the allocator.
// LoadSequence returns model.InvalidUid when nothing was stored yet.
type SequenceStore interface {
	LoadSequence(ctx context.Context) (model.Uid, error)

	StoreSequence(ctx context.Context, last model.Uid) error
}

// Stores bundles the per-kind stores of a single backend.
type Stores struct {
	Users        DataStore[model.User]
	Characters   DataStore[model.Character]
	Horses       DataStore[model.Horse]
	Items        DataStore[model.Item]
	Pets         DataStore[model.Pet]
	Eggs         DataStore[model.Egg]
	Guilds       DataStore[model.Guild]
	Housing      DataStore[model.Housing]
	StorageItems DataStore[model.StorageItem]
	Ranches      DataStore[model.Ranch]

	Sequence SequenceStore

	// Init creates the namespaces (directories, tables) the stores need. Optional.
	Init func(ctx context.Context) error
	// Close releases the backend. Optional.
	Close func(ctx context.Context) error
}

// Kind names shared by every backend for namespacing.
const (
	KindUser        = "user"
	KindCharacter   = "character"
	KindHorse       = "horse"
	KindItem        = "item"
	KindPet         = "pet"
	KindEgg         = "egg"
	KindGuild       = "guild"
	KindHousing     = "housing"
	KindStorageItem = "storage-item"
	KindRanch       = "ranch"
)
