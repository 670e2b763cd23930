/*
Package model defines the game entities cached by the data director.

Entities are flat aggregates. No entity embeds another: relationships are
plain Uid fields that the caller resolves against the storage of the
documented kind, for example a Character's MountUid against horses:

	character.Immutable(func(c model.Character) error {
	    mount, err := director.GetHorse(ctx, c.MountUid)
	    ...
	})

Users are keyed by account name; every other kind is keyed by its Uid,
rendered with UidKey.
*/
package model
