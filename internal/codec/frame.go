// Package codec converts between controller bytes and Go values.
//
// Replies carry a 14 byte preamble followed by JSON. Commands are the literal
// marker N000001 followed by a JSON object describing one key-path write.
package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// PreambleSize is the opaque header in front of every reply.
const PreambleSize = 14

var ErrDecode = errors.New("controller payload is not valid JSON")

// Frame is a decoded reply keyed by group identifier (SYST, HGOM, CGOM).
type Frame map[string]any

// Group returns the object stored under key, or nil when it is absent or not an object.
func (f Frame) Group(key string) map[string]any {
	g, _ := f[key].(map[string]any)
	return g
}

// Has reports whether key is present, whatever its value.
func (f Frame) Has(key string) bool {
	_, ok := f[key]
	return ok
}

// Decode strips the preamble and parses the rest.
// A payload with nothing after the preamble returns (nil, nil).
func Decode(payload []byte) (Frame, error) {
	if len(payload) <= PreambleSize {
		return nil, nil
	}
	body := bytes.Trim(payload[PreambleSize:], " \t\r\n\x00")
	if len(body) == 0 {
		return nil, nil
	}

	var raw any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	switch v := raw.(type) {
	case map[string]any:
		return Frame(v), nil
	case []any:
		// The controller answers with one object per group.
		out := make(Frame, len(v))
		for i, el := range v {
			obj, ok := el.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%w: element %d is %T, want object", ErrDecode, i, el)
			}
			for k, g := range obj {
				out[k] = g
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: top level is %T, want object or array", ErrDecode, raw)
	}
}
