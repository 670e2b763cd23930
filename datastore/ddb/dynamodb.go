/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package ddb

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	sdk "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/storyofalicia/datadirector/datastore"
	"github.com/storyofalicia/datadirector/errors"
	"github.com/storyofalicia/datadirector/model"
	"github.com/storyofalicia/datadirector/registry"
)

const (
	// EntityTypeAttribute records the kind of every item in the table.
	EntityTypeAttribute = "EntityType"

	sequenceKey       = "META#sequentialUid"
	sequenceAttribute = "sequentialUid"

	defaultTableWait = 5 * time.Minute
)

// Client is the subset of the DynamoDB API the backend uses.
type Client interface {
	GetItem(ctx context.Context, params *sdk.GetItemInput, optFns ...func(*sdk.Options)) (*sdk.GetItemOutput, error)
	PutItem(ctx context.Context, params *sdk.PutItemInput, optFns ...func(*sdk.Options)) (*sdk.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *sdk.DeleteItemInput, optFns ...func(*sdk.Options)) (*sdk.DeleteItemOutput, error)
	DescribeTable(ctx context.Context, params *sdk.DescribeTableInput, optFns ...func(*sdk.Options)) (*sdk.DescribeTableOutput, error)
	CreateTable(ctx context.Context, params *sdk.CreateTableInput, optFns ...func(*sdk.Options)) (*sdk.CreateTableOutput, error)
}

var _ Client = (*sdk.Client)(nil)

// Credentials locate and authenticate against DynamoDB. Empty keys fall back to
// the default AWS credential chain; Endpoint targets DynamoDB Local and similar.
type Credentials struct {
	AccessKey string
	SecretKey string
	Region    string
	Endpoint  string
}

// NewDynamoDBClient initializes a DynamoDB client.
func NewDynamoDBClient(ctx context.Context, creds Credentials) (*sdk.Client, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(creds.Region),
	}
	if creds.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(creds.AccessKey, creds.SecretKey, ""),
		))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	return sdk.NewFromConfig(cfg, func(o *sdk.Options) {
		if creds.Endpoint != "" {
			o.BaseEndpoint = aws.String(creds.Endpoint)
		}
	}), nil
}

// Backend is one DynamoDB table holding every entity kind plus the uid sequence.
type Backend struct {
	client    Client
	tableName string
	tableWait time.Duration
	log       zerolog.Logger
}

// Option configures a Backend.
type Option func(*Backend)

// WithLogger sets the backend logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(b *Backend) {
		b.log = logger
	}
}

// WithTableWait bounds how long Init waits for a newly created table.
func WithTableWait(d time.Duration) Option {
	return func(b *Backend) {
		b.tableWait = d
	}
}

func New(client Client, tableName string, opts ...Option) *Backend {
	b := &Backend{
		client:    client,
		tableName: tableName,
		tableWait: defaultTableWait,
		log:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Init creates the table with a PK/SK key schema if it does not exist yet and
// waits until it is active.
func (b *Backend) Init(ctx context.Context) error {
	_, err := b.client.DescribeTable(ctx, &sdk.DescribeTableInput{TableName: &b.tableName})
	if err == nil {
		return nil
	}
	var rnf *types.ResourceNotFoundException
	if !stderrors.As(err, &rnf) {
		return fmt.Errorf("describing table %s: %w", b.tableName, err)
	}

	b.log.Info().Str("table", b.tableName).Msg("creating table")
	_, err = b.client.CreateTable(ctx, &sdk.CreateTableInput{
		TableName: &b.tableName,
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String(registry.PartitionKey), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String(registry.SortKey), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(registry.PartitionKey), KeyType: types.KeyTypeHash},
			{AttributeName: aws.String(registry.SortKey), KeyType: types.KeyTypeRange},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	if err != nil {
		return fmt.Errorf("creating table %s: %w", b.tableName, err)
	}

	waiter := sdk.NewTableExistsWaiter(b.client)
	if err := waiter.Wait(ctx, &sdk.DescribeTableInput{TableName: &b.tableName}, b.tableWait); err != nil {
		return fmt.Errorf("waiting for table %s: %w", b.tableName, err)
	}
	return nil
}

type sequenceItem struct {
	SequentialUid uint32 `dynamodbav:"sequentialUid"`
}

func (b *Backend) LoadSequence(ctx context.Context) (model.Uid, error) {
	out, err := b.client.GetItem(ctx, &sdk.GetItemInput{
		TableName:      &b.tableName,
		Key:            staticKey(sequenceKey),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return model.InvalidUid, fmt.Errorf("GetItem error: %w", err)
	}
	if out.Item == nil {
		return model.InvalidUid, nil
	}

	var item sequenceItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return model.InvalidUid, fmt.Errorf("failed to unmarshal %s: %w", sequenceAttribute, err)
	}
	return model.Uid(item.SequentialUid), nil
}

func (b *Backend) StoreSequence(ctx context.Context, last model.Uid) error {
	av, err := attributevalue.MarshalMap(sequenceItem{SequentialUid: uint32(last)})
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", sequenceAttribute, err)
	}
	for k, v := range staticKey(sequenceKey) {
		av[k] = v
	}

	if _, err := b.client.PutItem(ctx, &sdk.PutItemInput{TableName: &b.tableName, Item: av}); err != nil {
		return fmt.Errorf("PutItem failed: %w", err)
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
	}
}

var _ datastore.DataStore[model.Pet] = &Store[model.Pet]{}

// Store keeps the entities of type T in the backend table. Item keys come from
// the index map registered for T; entity attributes use the entity's json names.
type Store[T any] struct {
	backend *Backend
	kind    string
}

func NewStore[T any](b *Backend, kind string) *Store[T] {
	return &Store[T]{backend: b, kind: kind}
}

// Load retrieves a single item using a string key.
func (d *Store[T]) Load(ctx context.Context, key string) (*T, error) {
	keyMap, err := d.keyFor(key)
	if err != nil {
		return nil, err
	}

	out, err := d.backend.client.GetItem(ctx, &sdk.GetItemInput{
		TableName:      &d.backend.tableName,
		Key:            keyMap,
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("GetItem error: %w", err)
	}
	if out.Item == nil {
		return nil, errors.NewNotFoundError(d.kind, key)
	}

	if et, ok := out.Item[EntityTypeAttribute].(*types.AttributeValueMemberS); ok && et.Value != d.kind {
		return nil, fmt.Errorf("item %s holds a %s, not a %s", key, et.Value, d.kind)
	}

	var doc map[string]any
	if err := attributevalue.UnmarshalMap(out.Item, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal item: %w", err)
	}
	return fromDocument[T](doc)
}

// Store puts the entity under key. The key must expand to the same item key as
// the entity's own attributes.
func (d *Store[T]) Store(ctx context.Context, key string, entity T) error {
	indexMap, ok := registry.GetIndexMap[T]()
	if !ok {
		return fmt.Errorf("%w: %s", errors.ErrNoIndexMap, d.kind)
	}

	doc, err := toDocument(entity)
	if err != nil {
		return err
	}

	fromEntity, err := expandMacros(indexMap, doc)
	if err != nil {
		return err
	}
	fromKey := expandStringKey(indexMap, key)
	if fromEntity[registry.PartitionKey] != fromKey[registry.PartitionKey] {
		return errors.NewValidationError("key", fmt.Sprintf("%q does not match entity key %q", key, fromEntity[registry.PartitionKey]))
	}

	av, err := attributevalue.MarshalMap(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal entity: %w", err)
	}
	for k, v := range fromEntity {
		av[k] = &types.AttributeValueMemberS{Value: v}
	}
	av[EntityTypeAttribute] = &types.AttributeValueMemberS{Value: d.kind}

	_, err = d.backend.client.PutItem(ctx, &sdk.PutItemInput{
		TableName: &d.backend.tableName,
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("PutItem failed: %w", err)
	}
	return nil
}

// Delete removes an item using a string key.
func (d *Store[T]) Delete(ctx context.Context, key string) error {
	keyMap, err := d.keyFor(key)
	if err != nil {
		return err
	}

	out, err := d.backend.client.DeleteItem(ctx, &sdk.DeleteItemInput{
		TableName:    &d.backend.tableName,
		Key:          keyMap,
		ReturnValues: types.ReturnValueAllOld,
	})
	if err != nil {
		return fmt.Errorf("failed to delete item in DynamoDB: %w", err)
	}
	if len(out.Attributes) == 0 {
		return errors.NewNotFoundError(d.kind, key)
	}
	return nil
}

func (d *Store[T]) keyFor(key string) (map[string]types.AttributeValue, error) {
	if key == "" {
		return nil, errors.NewValidationError("key", "must be set")
	}

	indexMap, ok := registry.GetIndexMap[T]()
	if !ok {
		return nil, fmt.Errorf("%w: %s", errors.ErrNoIndexMap, d.kind)
	}
	return buildKeyFromExpanded(expandStringKey(indexMap, key))
}

// expandMacros fills the index map templates from the attributes of keysInput.
func expandMacros(indexMap map[string]string, keysInput any) (map[string]string, error) {
	av, err := attributevalue.MarshalMap(keysInput)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal keysInput: %w", err)
	}

	res := make(map[string]string, len(indexMap))
	for fieldName, template := range indexMap {
		res[fieldName] = registry.Expand(template, func(name string) string {
			switch tv := av[name].(type) {
			case *types.AttributeValueMemberS:
				return tv.Value
			case *types.AttributeValueMemberN:
				return tv.Value
			case *types.AttributeValueMemberBOOL:
				return fmt.Sprintf("%v", tv.Value)
			default:
				return ""
			}
		})
	}
	return res, nil
}

// expandStringKey replaces every macro in the index map with key.
func expandStringKey(indexMap map[string]string, key string) map[string]string {
	expanded := make(map[string]string, len(indexMap))
	for field, template := range indexMap {
		expanded[field] = registry.Expand(template, func(string) string { return key })
	}
	return expanded
}

// buildKeyFromExpanded builds a DynamoDB key from the expanded index map.
func buildKeyFromExpanded(expanded map[string]string) (map[string]types.AttributeValue, error) {
	pk := expanded[registry.PartitionKey]
	sk := expanded[registry.SortKey]
	if pk == "" || sk == "" {
		return nil, fmt.Errorf("expanded index map missing valid PK or SK")
	}

	return map[string]types.AttributeValue{
		registry.PartitionKey: &types.AttributeValueMemberS{Value: pk},
		registry.SortKey:      &types.AttributeValueMemberS{Value: sk},
	}, nil
}

func staticKey(value string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		registry.PartitionKey: &types.AttributeValueMemberS{Value: value},
		registry.SortKey:      &types.AttributeValueMemberS{Value: value},
	}
}

// toDocument converts an entity to its json attribute map, so item attributes
// carry the same names and encodings as every other backend.
func toDocument(entity any) (map[string]any, error) {
	bz, err := json.Marshal(entity)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal entity: %w", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(bz, &doc); err != nil {
		return nil, fmt.Errorf("entity is not a json object: %w", err)
	}
	return doc, nil
}

func fromDocument[T any](doc map[string]any) (*T, error) {
	delete(doc, registry.PartitionKey)
	delete(doc, registry.SortKey)
	delete(doc, EntityTypeAttribute)

	bz, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal item: %w", err)
	}
	result := new(T)
	if err := json.Unmarshal(bz, result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal item: %w", err)
	}
	return result, nil
}
