// Package configstore provides typed key/default lookups over configuration
// loaded from YAML. Keys are dotted paths ("dobby.session.maxAge"); nested
// YAML maps and flat dotted keys resolve to the same entry.
package configstore

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrNotMapping is returned when the configuration document is not a YAML mapping.
var ErrNotMapping = errors.New("config document must be a mapping")

// Lookup reads typed configuration values. Every accessor returns def when
// the key is absent or the stored value cannot be converted.
type Lookup interface {
	Int(key string, def int) int
	Bool(key string, def bool) bool
	String(key string, def string) string
	Has(key string) bool
}

// Values is an immutable, flattened view of a configuration document.
// It is safe for concurrent use.
type Values struct {
	entries map[string]any
}

// Empty returns Values with no entries; every lookup yields its default.
func Empty() *Values {
	return &Values{entries: map[string]any{}}
}

// Parse builds Values from YAML bytes. An empty document yields Empty().
func Parse(data []byte) (*Values, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if doc == nil {
		return Empty(), nil
	}
	root, ok := doc.(map[string]any)
	if !ok {
		return nil, ErrNotMapping
	}

	v := Empty()
	flatten("", root, v.entries)
	return v, nil
}

// FromMap builds Values from an in-memory map, flattening nested maps.
func FromMap(m map[string]any) *Values {
	v := Empty()
	flatten("", m, v.entries)
	return v
}

func flatten(prefix string, m map[string]any, out map[string]any) {
	for k, val := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := val.(map[string]any); ok {
			flatten(key, nested, out)
			continue
		}
		out[key] = val
	}
}

// Has reports whether key is set.
func (v *Values) Has(key string) bool {
	_, ok := v.entries[key]
	return ok
}

// Keys returns all keys in sorted order.
func (v *Values) Keys() []string {
	keys := make([]string, 0, len(v.entries))
	for k := range v.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Int returns the integer at key, or def.
func (v *Values) Int(key string, def int) int {
	switch val := v.entries[key].(type) {
	case int:
		return val
	case int64:
		return int(val)
	case uint64:
		return int(val)
	case float64:
		if val == float64(int(val)) {
			return int(val)
		}
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return n
		}
	}
	return def
}

// Bool returns the boolean at key, or def.
func (v *Values) Bool(key string, def bool) bool {
	switch val := v.entries[key].(type) {
	case bool:
		return val
	case string:
		if b, err := strconv.ParseBool(strings.TrimSpace(val)); err == nil {
			return b
		}
	}
	return def
}

// String returns the string at key, or def. Scalars are formatted.
func (v *Values) String(key string, def string) string {
	val, ok := v.entries[key]
	if !ok || val == nil {
		return def
	}
	if s, ok := val.(string); ok {
		return s
	}
	switch val.(type) {
	case int, int64, uint64, float64, bool:
		return fmt.Sprint(val)
	}
	return def
}

// Verify interface compliance.
var _ Lookup = (*Values)(nil)
