/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

// Package file stores every entity as one JSON document on the local filesystem:
// <root>/<kind>/<key>.json, with the uid sequence in <root>/meta.json.
package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/storyofalicia/datadirector/datastore"
	"github.com/storyofalicia/datadirector/errors"
	"github.com/storyofalicia/datadirector/model"
)

const metaFile = "meta.json"

var keyPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

var kinds = []string{
	datastore.KindUser,
	datastore.KindCharacter,
	datastore.KindHorse,
	datastore.KindItem,
	datastore.KindPet,
	datastore.KindEgg,
	datastore.KindGuild,
	datastore.KindHousing,
	datastore.KindStorageItem,
	datastore.KindRanch,
}

type meta struct {
	SequentialUid model.Uid `json:"sequentialUid"`
}

// Backend is the filesystem root shared by every per-kind Store.
// Writes are serialized through one lock.
type Backend struct {
	root string
	log  zerolog.Logger
	mu   sync.Mutex
}

// Option configures a Backend.
type Option func(*Backend)

// WithLogger sets the backend logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(b *Backend) {
		b.log = logger
	}
}

// New creates a backend rooted at root. Nothing touches the disk until Init.
func New(root string, opts ...Option) *Backend {
	b := &Backend{
		root: root,
		log:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Root returns the backend directory.
func (b *Backend) Root() string {
	return b.root
}

// Init creates the root and one directory per entity kind.
func (b *Backend) Init(ctx context.Context) error {
	for _, kind := range kinds {
		dir := filepath.Join(b.root, kind)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s directory: %w", kind, err)
		}
	}
	b.log.Debug().Str("root", b.root).Msg("file backend initialized")
	return nil
}

// LoadSequence reads meta.json. A missing file means no uid was ever issued.
func (b *Backend) LoadSequence(ctx context.Context) (model.Uid, error) {
	data, err := os.ReadFile(filepath.Join(b.root, metaFile))
	if os.IsNotExist(err) {
		return model.InvalidUid, nil
	}
	if err != nil {
		return model.InvalidUid, fmt.Errorf("reading %s: %w", metaFile, err)
	}

	var m meta
	if err := json.Unmarshal(data, &m); err != nil {
		return model.InvalidUid, fmt.Errorf("unmarshalling %s: %w", metaFile, err)
	}
	return m.SequentialUid, nil
}

func (b *Backend) StoreSequence(ctx context.Context, last model.Uid) error {
	data, err := json.MarshalIndent(meta{SequentialUid: last}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling %s: %w", metaFile, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	return b.atomicWrite(filepath.Join(b.root, metaFile), data, 0o644)
}

// Stores bundles one Store per kind on this backend.
func (b *Backend) Stores() datastore.Stores {
	return datastore.Stores{
		Users:        NewStore[model.User](b, datastore.KindUser),
		Characters:   NewStore[model.Character](b, datastore.KindCharacter),
		Horses:       NewStore[model.Horse](b, datastore.KindHorse),
		Items:        NewStore[model.Item](b, datastore.KindItem),
		Pets:         NewStore[model.Pet](b, datastore.KindPet),
		Eggs:         NewStore[model.Egg](b, datastore.KindEgg),
		Guilds:       NewStore[model.Guild](b, datastore.KindGuild),
		Housing:      NewStore[model.Housing](b, datastore.KindHousing),
		StorageItems: NewStore[model.StorageItem](b, datastore.KindStorageItem),
		Ranches:      NewStore[model.Ranch](b, datastore.KindRanch),
		Sequence:     b,
		Init:         b.Init,
	}
}

// atomicWrite writes data to a temp file then renames it over path,
// so an interrupted write never leaves a truncated document behind.
func (b *Backend) atomicWrite(path string, data []byte, perm os.FileMode) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, perm); err != nil {
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		if removeErr := os.Remove(tmp); removeErr != nil {
			b.log.Warn().Err(removeErr).Str("path", tmp).Msg("failed to remove temp file after rename failure")
		}
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

var _ datastore.DataStore[model.Character] = &Store[model.Character]{}

// Store is the directory of one entity kind.
type Store[T any] struct {
	backend *Backend
	kind    string
}

func NewStore[T any](b *Backend, kind string) *Store[T] {
	return &Store[T]{backend: b, kind: kind}
}

func (s *Store[T]) Load(ctx context.Context, key string) (*T, error) {
	path, err := s.path(key)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, errors.NewNotFoundError(s.kind, key)
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", filepath.Base(path), err)
	}

	var entity T
	if err := json.Unmarshal(data, &entity); err != nil {
		return nil, fmt.Errorf("unmarshalling %s: %w", filepath.Base(path), err)
	}
	return &entity, nil
}

func (s *Store[T]) Store(ctx context.Context, key string, entity T) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(entity, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling json: %w", err)
	}

	s.backend.mu.Lock()
	defer s.backend.mu.Unlock()
	return s.backend.atomicWrite(path, data, 0o644)
}

func (s *Store[T]) Delete(ctx context.Context, key string) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}

	s.backend.mu.Lock()
	defer s.backend.mu.Unlock()

	err = os.Remove(path)
	if os.IsNotExist(err) {
		return errors.NewNotFoundError(s.kind, key)
	}
	return err
}

func (s *Store[T]) path(key string) (string, error) {
	if !keyPattern.MatchString(key) {
		return "", errors.NewValidationError("key", fmt.Sprintf("%q is not a valid %s key", key, s.kind))
	}
	return filepath.Join(s.backend.root, s.kind, key+".json"), nil
}
