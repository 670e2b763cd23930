/*
Package registry associates Go entity types with the key templates the
DynamoDB backend uses to place them in its single table.

Index maps reference document attributes as macros:

	registry.MustRegisterIndexMap[model.Character](map[string]string{
	    "PK": "CHARACTER#{uid}",
	    "SK": "CHARACTER#{uid}",
	})

Every index map must define PK and SK and each must contain a macro.
The registry is safe for concurrent use and is normally populated from init
functions.
*/
package registry
