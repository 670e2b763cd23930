/*
Package datastore defines the persistence boundary of the data director.

The main interface is DataStore[T], implemented once per backend and
instantiated once per entity kind:

	type DataStore[T any] interface {
	    Load(ctx context.Context, key string) (*T, error)
	    Store(ctx context.Context, key string, entity T) error
	    Delete(ctx context.Context, key string) error
	}

A missing entity is reported as errors.NotFoundError, which the cache
treats as a normal outcome. Anything else is a backend failure.

SequenceStore keeps the allocator's last issued uid across restarts.

Implementations:
  - file: one JSON document per entity, one directory per kind
  - redis: one JSON string per entity
  - ddb: DynamoDB single-table design
  - mock: in-memory implementation for testing
*/
package datastore
