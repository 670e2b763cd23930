/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package registry

import (
	"fmt"
	"reflect"
	"regexp"
	"sync"

	"github.com/storyofalicia/datadirector/errors"
)

// Attributes every index map must define.
const (
	PartitionKey = "PK"
	SortKey      = "SK"
)

var macroPattern = regexp.MustCompile(`{([^}]+)}`)

var (
	indexMapRegistry = make(map[reflect.Type]map[string]string)
	mu               sync.RWMutex
)

// RegisterIndexMap associates a Go type T with its key templates (PK, SK, ...).
// Templates reference document attributes as macros, e.g. "CHARACTER#{uid}".
// Registering a type twice is an error.
func RegisterIndexMap[T any](idxMap map[string]string) error {
	t := reflect.TypeOf((*T)(nil)).Elem()

	for _, attr := range []string{PartitionKey, SortKey} {
		tmpl, ok := idxMap[attr]
		if !ok || tmpl == "" {
			return errors.NewValidationError(attr, fmt.Sprintf("index map for %s must define %s", t, attr))
		}
		if !macroPattern.MatchString(tmpl) {
			return errors.NewValidationError(attr, fmt.Sprintf("index map for %s: %q has no macro", t, tmpl))
		}
	}

	mu.Lock()
	defer mu.Unlock()

	if _, exists := indexMapRegistry[t]; exists {
		return errors.NewAlreadyExistsError("index map", t.String())
	}

	copied := make(map[string]string, len(idxMap))
	for k, v := range idxMap {
		copied[k] = v
	}
	indexMapRegistry[t] = copied
	return nil
}

// MustRegisterIndexMap is RegisterIndexMap for init functions.
func MustRegisterIndexMap[T any](idxMap map[string]string) {
	if err := RegisterIndexMap[T](idxMap); err != nil {
		panic(err)
	}
}

// GetIndexMap retrieves the index map for type T, if any.
func GetIndexMap[T any]() (map[string]string, bool) {
	t := reflect.TypeOf((*T)(nil)).Elem()

	mu.RLock()
	defer mu.RUnlock()
	m, ok := indexMapRegistry[t]
	return m, ok
}

// Macros returns the attribute names a template references, in order.
func Macros(template string) []string {
	matches := macroPattern.FindAllStringSubmatch(template, -1)
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, m[1])
	}
	return names
}

// Expand replaces every macro in template using lookup. Unknown macros expand to "".
func Expand(template string, lookup func(name string) string) string {
	return macroPattern.ReplaceAllStringFunc(template, func(macro string) string {
		return lookup(macro[1 : len(macro)-1])
	})
}
