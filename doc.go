/*
Package datadirector is the in-memory entity layer of the game server: a
concurrent cache of every persisted game object in front of a pluggable
durable backend.

Each entity kind (users, characters, horses, items, pets, eggs, guilds,
housing, storage items and ranches) lives in its own Storage. Records are loaded
lazily on first access, handed out as Record handles and guarded by a
per-record reader/writer lock:

	dd, err := datadirector.New(ctx, file.New("data").Stores())

	char, err := dd.CreateCharacter(ctx)
	err = char.Mutable(func(c *model.Character) error {
	    c.Name = "rider"
	    return nil
	})

	user, err := dd.GetUser(ctx, "alice")
	if !user.IsAvailable() {
	    // no such account
	}

Entities reference each other only by Uid. Uids come from one allocator
shared by every uid-keyed kind and the last issued value is persisted so a
restart continues the sequence.

Mutations mark records dirty. Flush (periodically through Run, and on Close)
captures every dirty record, writes the uid sequence and then stores the
captured values, so no stored entity refers to a uid beyond the stored
sequence. A record whose store fails stays dirty and is retried by the next
flush.

Backends live under datastore: file (JSON documents on disk), redis and
ddb (DynamoDB). Open builds one from a config.Config.
*/
package datadirector
