/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package model

import (
	"fmt"
	"regexp"
	"strconv"
)

// Uid identifies every entity except users. Uids come from one sequence shared by all kinds.
type Uid uint32

// InvalidUid denotes "no entity".
const InvalidUid Uid = 0

// Tid is a static type id from the game's content tables.
type Tid uint32

const maxNameLength = 64

var namePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// UidKey renders a uid as the storage key used by every uid-keyed kind.
func UidKey(uid Uid) string {
	return strconv.FormatUint(uint64(uid), 10)
}

// ParseUidKey is the inverse of UidKey.
func ParseUidKey(key string) (Uid, error) {
	v, err := strconv.ParseUint(key, 10, 32)
	if err != nil {
		return InvalidUid, fmt.Errorf("parsing uid key %q: %w", key, err)
	}
	return Uid(v), nil
}

// ValidateName checks that an account name can be used as a storage key.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("name must be set")
	}
	if len(name) > maxNameLength {
		return fmt.Errorf("name must be at most %d characters", maxNameLength)
	}
	if !namePattern.MatchString(name) {
		return fmt.Errorf("name %q must be alphanumeric", name)
	}
	return nil
}
