package query

import (
	"bytes"
	"encoding/json"
	"fmt"

	"golang.org/x/text/unicode/norm"
)

// Serializer turns a call argument into the string used for cache keys and
// argument-change detection.
type Serializer interface {
	Serialize(arg any) (string, error)
}

// SerializerFunc adapts a function to Serializer.
type SerializerFunc func(arg any) (string, error)

func (f SerializerFunc) Serialize(arg any) (string, error) {
	return f(arg)
}

// CanonicalJSON serializes arguments as JSON with object keys sorted, HTML
// escaping disabled and strings NFC-normalized. Struct fields are emitted as
// sorted object keys as well, so two values with the same JSON fields always
// share a key.
var CanonicalJSON Serializer = canonicalJSON{}

type canonicalJSON struct{}

func (canonicalJSON) Serialize(arg any) (string, error) {
	raw, err := encodeJSON(arg)
	if err != nil {
		return "", err
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return "", fmt.Errorf("decoding argument: %w", err)
	}

	out, err := encodeJSON(normalize(generic))
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func encodeJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("encoding argument: %w", err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

func normalize(v any) any {
	switch val := v.(type) {
	case string:
		return norm.NFC.String(val)
	case []any:
		for i, elem := range val {
			val[i] = normalize(elem)
		}
		return val
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[norm.NFC.String(k)] = normalize(elem)
		}
		return out
	default:
		return v
	}
}

// KeyBuilder derives cache keys from an endpoint name and argument.
type KeyBuilder struct {
	serializer Serializer
}

// NewKeyBuilder returns a KeyBuilder using s, or CanonicalJSON when s is nil.
func NewKeyBuilder(s Serializer) *KeyBuilder {
	if s == nil {
		s = CanonicalJSON
	}
	return &KeyBuilder{serializer: s}
}

// Serialize renders arg. It never fails: values the serializer rejects are
// rendered with %#v.
func (b *KeyBuilder) Serialize(arg any) string {
	out, err := b.serializer.Serialize(arg)
	if err != nil {
		return fmt.Sprintf("%#v", arg)
	}
	return out
}

// Key returns "endpoint(serialized-arg)".
func (b *KeyBuilder) Key(endpoint string, arg any) string {
	return endpoint + "(" + b.Serialize(arg) + ")"
}

var defaultKeys = NewKeyBuilder(CanonicalJSON)

// CacheKey builds a key with the default serializer.
func CacheKey(endpoint string, arg any) string {
	return defaultKeys.Key(endpoint, arg)
}
