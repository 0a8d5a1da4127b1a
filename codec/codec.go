// Package codec encodes result bundles for persistence.
//
// A Codec turns values into bytes. Envelope wraps the encoded bytes with
// the codec name, an optional compression step and a CRC32C checksum, so
// that stored bundles are self-describing and corruption is detected on
// load rather than decoded into garbage.
package codec

import "fmt"

// Codec encodes/decodes values.
// Implementations must be safe for concurrent use.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	Name() string
}

// ByName returns a built-in codec by its stable name.
func ByName(name string) (Codec, bool) {
	switch name {
	case "json":
		return JSON{}, true
	case "go-json":
		return GoJSON{}, true
	default:
		return nil, false
	}
}

// Default is the codec used when none is configured.
var Default Codec = GoJSON{}

// MustMarshal is a helper for tests.
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
