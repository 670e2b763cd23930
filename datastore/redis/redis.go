/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

// Package redis stores every entity as one JSON string value:
// <prefix>:<kind>:<key>, with the uid sequence under <prefix>:meta:sequentialUid.
package redis

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/storyofalicia/datadirector/datastore"
	"github.com/storyofalicia/datadirector/errors"
	"github.com/storyofalicia/datadirector/model"
)

// DefaultPrefix namespaces every key written by the backend.
const DefaultPrefix = "datadirector"

// Backend shares one redis client between every per-kind Store.
type Backend struct {
	client *redis.Client
	prefix string
	log    zerolog.Logger
}

// Option configures a Backend.
type Option func(*Backend)

// WithPrefix overrides DefaultPrefix.
func WithPrefix(prefix string) Option {
	return func(b *Backend) {
		b.prefix = prefix
	}
}

// WithLogger sets the backend logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(b *Backend) {
		b.log = logger
	}
}

// New wraps an existing client. The backend owns the client and closes it on Close.
func New(client *redis.Client, opts ...Option) *Backend {
	b := &Backend{
		client: client,
		prefix: DefaultPrefix,
		log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Dial creates a client for addr and wraps it.
func Dial(addr, password string, db int, opts ...Option) *Backend {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return New(client, opts...)
}

// Init checks the server is reachable. Redis has no namespaces to create.
func (b *Backend) Init(ctx context.Context) error {
	if err := b.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("pinging redis: %w", err)
	}
	b.log.Debug().Str("prefix", b.prefix).Msg("redis backend initialized")
	return nil
}

func (b *Backend) Close(ctx context.Context) error {
	return b.client.Close()
}

func (b *Backend) sequenceKey() string {
	return b.prefix + ":meta:sequentialUid"
}

func (b *Backend) LoadSequence(ctx context.Context) (model.Uid, error) {
	v, err := b.client.Get(ctx, b.sequenceKey()).Uint64()
	if err == redis.Nil {
		return model.InvalidUid, nil
	}
	if err != nil {
		return model.InvalidUid, fmt.Errorf("reading sequence: %w", err)
	}
	if v > uint64(^uint32(0)) {
		return model.InvalidUid, fmt.Errorf("sequence %d out of range", v)
	}
	return model.Uid(v), nil
}

func (b *Backend) StoreSequence(ctx context.Context, last model.Uid) error {
	if err := b.client.Set(ctx, b.sequenceKey(), uint32(last), 0).Err(); err != nil {
		return fmt.Errorf("writing sequence: %w", err)
	}
	return nil
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
		Close:        b.Close,
	}
}

var _ datastore.DataStore[model.Horse] = &Store[model.Horse]{}

// Store keeps the entities of one kind under <prefix>:<kind>.
type Store[T any] struct {
	backend *Backend
	kind    string
}

func NewStore[T any](b *Backend, kind string) *Store[T] {
	return &Store[T]{backend: b, kind: kind}
}

// Key returns the redis key an entity is stored under.
func (s *Store[T]) Key(key string) string {
	return fmt.Sprintf("%s:%s:%s", s.backend.prefix, s.kind, key)
}

func (s *Store[T]) Load(ctx context.Context, key string) (*T, error) {
	bz, err := s.backend.client.Get(ctx, s.Key(key)).Bytes()
	if err == redis.Nil {
		return nil, errors.NewNotFoundError(s.kind, key)
	}
	if err != nil {
		return nil, fmt.Errorf("getting %s: %w", s.Key(key), err)
	}

	var entity T
	if err := json.Unmarshal(bz, &entity); err != nil {
		return nil, fmt.Errorf("unmarshalling %s: %w", s.Key(key), err)
	}
	return &entity, nil
}

func (s *Store[T]) Store(ctx context.Context, key string, entity T) error {
	if key == "" {
		return errors.NewValidationError("key", "must be set")
	}

	bz, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("marshalling json: %w", err)
	}
	if err := s.backend.client.Set(ctx, s.Key(key), bz, 0).Err(); err != nil {
		return fmt.Errorf("setting %s: %w", s.Key(key), err)
	}
	return nil
}

func (s *Store[T]) Delete(ctx context.Context, key string) error {
	n, err := s.backend.client.Del(ctx, s.Key(key)).Result()
	if err != nil {
		return fmt.Errorf("deleting %s: %w", s.Key(key), err)
	}
	if n == 0 {
		return errors.NewNotFoundError(s.kind, key)
	}
	return nil
}
