// Package signing implements Ed25519 signing and verification for rule
// bundles: canonical JSON serialization, key-id derivation, bundle
// construction, and key-rotation/pinning policy.
package signing

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
)

// Canonicalize serializes obj as JSON with object keys sorted
// lexicographically at every nesting level; arrays preserve their
// order; nil map/slice entries are emitted as JSON null, never omitted
// (undefined map entries, which Go has no representation for, are the
// only thing actually dropped).
func Canonicalize(obj any) ([]byte, error) {
	normalized := normalize(obj)
	var buf bytes.Buffer
	if err := encodeCanonical(&buf, normalized); err != nil {
		return nil, fmt.Errorf("canonicalize: %w", err)
	}
	return buf.Bytes(), nil
}

// normalize round-trips obj through encoding/json so struct field tags,
// omitempty, and custom marshalers are honored before we re-sort keys.
func normalize(obj any) any {
	raw, err := json.Marshal(obj)
	if err != nil {
		return obj
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return obj
	}
	return generic
}

func encodeCanonical(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return err
			}
			buf.Write(kb)
			buf.WriteByte(':')
			if err := encodeCanonical(buf, val[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
		return nil
	case []any:
		buf.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeCanonical(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return err
		}
		buf.Write(b)
		return nil
	}
}

// SHA256Hex returns the lowercase hex SHA-256 digest of b.
func SHA256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
