package state

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
)

// A Reader extracts typed fields from a flat record. It remembers the first
// error it hits, so a Restore implementation can read every field and check
// once at the end.
type Reader struct {
	record map[string]any
	err    error
}

// NewReader creates a Reader over a record.
func NewReader(record map[string]any) *Reader {
	return &Reader{record: record}
}

// Err returns the first error encountered while reading fields.
func (r *Reader) Err() error {
	return r.err
}

func (r *Reader) fail(key, want string, got any) {
	if r.err == nil {
		r.err = fmt.Errorf("field %q: want %s, got %T", key, want, got)
	}
}

func (r *Reader) lookup(key string) (any, bool) {
	v, ok := r.record[key]
	if !ok {
		if r.err == nil {
			r.err = fmt.Errorf("field %q: missing", key)
		}
		return nil, false
	}
	return v, true
}

// Uint64 reads an unsigned integer field. Records decoded from JSON carry
// numbers as json.Number; records built in memory may carry native ints.
func (r *Reader) Uint64(key string) uint64 {
	v, ok := r.lookup(key)
	if !ok {
		return 0
	}

	switch n := v.(type) {
	case json.Number:
		u, err := strconv.ParseUint(n.String(), 10, 64)
		if err != nil {
			r.fail(key, "uint64", v)
			return 0
		}
		return u
	case uint64:
		return n
	case int:
		if n < 0 {
			r.fail(key, "uint64", v)
			return 0
		}
		return uint64(n)
	case float64:
		return uint64(n)
	default:
		r.fail(key, "uint64", v)
		return 0
	}
}

// OptionalUint64 reads an unsigned integer field that may be absent.
func (r *Reader) OptionalUint64(key string) (uint64, bool) {
	if _, ok := r.record[key]; !ok {
		return 0, false
	}
	return r.Uint64(key), true
}

// Int reads a signed integer field.
func (r *Reader) Int(key string) int {
	v, ok := r.lookup(key)
	if !ok {
		return 0
	}

	switch n := v.(type) {
	case json.Number:
		i, err := strconv.Atoi(n.String())
		if err != nil {
			r.fail(key, "int", v)
			return 0
		}
		return i
	case int:
		return n
	case float64:
		return int(n)
	default:
		r.fail(key, "int", v)
		return 0
	}
}

// Byte reads a byte-wide register field.
func (r *Reader) Byte(key string) byte {
	u := r.Uint64(key)
	if u > 0xFF {
		r.fail(key, "byte", u)
		return 0
	}
	return byte(u)
}

// Bool reads a boolean field.
func (r *Reader) Bool(key string) bool {
	v, ok := r.lookup(key)
	if !ok {
		return false
	}

	b, ok := v.(bool)
	if !ok {
		r.fail(key, "bool", v)
		return false
	}
	return b
}

// String reads a string field.
func (r *Reader) String(key string) string {
	v, ok := r.lookup(key)
	if !ok {
		return ""
	}

	s, ok := v.(string)
	if !ok {
		r.fail(key, "string", v)
		return ""
	}
	return s
}

// Bytes reads a byte-blob field. JSON encodes []byte as base64, so both
// forms are accepted.
func (r *Reader) Bytes(key string) []byte {
	v, ok := r.lookup(key)
	if !ok {
		return nil
	}

	switch b := v.(type) {
	case nil:
		return nil
	case []byte:
		out := make([]byte, len(b))
		copy(out, b)
		return out
	case string:
		out, err := base64.StdEncoding.DecodeString(b)
		if err != nil {
			r.fail(key, "base64 bytes", v)
			return nil
		}
		return out
	default:
		r.fail(key, "bytes", v)
		return nil
	}
}
