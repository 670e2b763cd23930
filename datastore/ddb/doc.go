/*
Package ddb provides a DynamoDB implementation of the DataStore interface.

Every entity kind shares one table using a single-table layout:
  - PK and SK are expanded from the index map registered for the entity type
  - entity fields are stored as top level attributes under their json names
  - EntityType records the kind so items cannot be read back as another kind
  - the uid sequence lives in its own META#sequentialUid item

Macro Expansion:
Keys use macros that are replaced with entity attribute values:

	indexMap := map[string]string{
	    "PK": "CHARACTER#{uid}",   // Becomes "CHARACTER#123"
	    "SK": "CHARACTER#{uid}",
	}

Index maps for every model type are registered by this package's init.
Backend.Init creates the table with on-demand billing when it is missing.
*/
package ddb
