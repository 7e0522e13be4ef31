// Package codec centralizes how persisted artifacts are encoded.
//
// Artifacts record the codec name in their envelope header, so changing the
// default only affects newly written files.
package codec

import (
	"fmt"
	"maps"
	"slices"
)

// Codec encodes/decodes values.
// Implementations must be safe for concurrent use.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	Name() string
}

// Default is the codec used for newly written artifacts.
var Default Codec = Msgpack{}

var builtin = map[string]Codec{
	JSON{}.Name():    JSON{},
	GoJSON{}.Name():  GoJSON{},
	Msgpack{}.Name(): Msgpack{},
}

// ByName returns a built-in codec by the name it writes into envelopes.
func ByName(name string) (Codec, bool) {
	c, ok := builtin[name]
	return c, ok
}

// Names returns the names ByName accepts, sorted.
func Names() []string {
	return slices.Sorted(maps.Keys(builtin))
}

// MustMarshal is a helper for tests and fixed payloads.
func MustMarshal(c Codec, v any) []byte {
	if c == nil {
		c = Default
	}
	b, err := c.Marshal(v)
	if err != nil {
		panic(fmt.Errorf("codec %s marshal failed: %w", c.Name(), err))
	}
	return b
}
