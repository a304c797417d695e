package schema

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/sashabaranov/go-openai/jsonschema"
)

// Type is a registered tool or result type: a schema plus a decoder for
// values conforming to it.
type Type interface {
	Name() string
	Schema() Schema
	Decode(raw []byte) (any, error)
}

// Binding ties a Go type to the schema generated from its descriptor. The
// json tags of T must use the same wire names as the descriptor fields.
type Binding[T any] struct {
	schema Schema
}

// Bind generates the schema for d and binds it to T.
func Bind[T any](d Descriptor) (*Binding[T], error) {
	s, err := Generate(d)
	if err != nil {
		return nil, err
	}
	return &Binding[T]{schema: s}, nil
}

// MustBind is Bind for package-level registrations. It panics on an invalid
// descriptor.
func MustBind[T any](d Descriptor) *Binding[T] {
	b, err := Bind[T](d)
	if err != nil {
		panic(err)
	}
	return b
}

func (b *Binding[T]) Name() string { return b.schema.Name }

func (b *Binding[T]) Schema() Schema { return b.schema }

// Decode implements Type. The returned value is a T.
func (b *Binding[T]) Decode(raw []byte) (any, error) {
	v, err := b.DecodeTyped(raw)
	if err != nil {
		return nil, err
	}
	return v, nil
}

// DecodeTyped validates raw against the schema and unmarshals it into T.
func (b *Binding[T]) DecodeTyped(raw []byte) (T, error) {
	var zero T

	var data any
	if err := json.Unmarshal(raw, &data); err != nil {
		return zero, fmt.Errorf("failed to decode %s: %w", b.schema.Name, err)
	}
	if !jsonschema.Validate(b.schema.Definition, data) {
		return zero, fmt.Errorf("failed to decode %s: %w", b.schema.Name, ErrMismatch)
	}
	if err := conform(b.schema.Definition, data, b.schema.Name); err != nil {
		return zero, fmt.Errorf("failed to decode %s: %w", b.schema.Name, err)
	}

	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return zero, fmt.Errorf("failed to decode %s: %w", b.schema.Name, err)
	}
	return out, nil
}

// conform checks the keywords jsonschema.Validate leaves alone: enum
// membership and closed objects.
func conform(def jsonschema.Definition, data any, path string) error {
	switch def.Type {
	case jsonschema.Object:
		obj, ok := data.(map[string]any)
		if !ok {
			return fmt.Errorf("%w: %s is not an object", ErrMismatch, path)
		}
		closed := def.AdditionalProperties == false
		for key, value := range obj {
			prop, known := def.Properties[key]
			if !known {
				if closed {
					return fmt.Errorf("%w: %s.%s is not allowed", ErrMismatch, path, key)
				}
				continue
			}
			if err := conform(prop, value, path+"."+key); err != nil {
				return err
			}
		}
	case jsonschema.Array:
		items, ok := data.([]any)
		if !ok || def.Items == nil {
			return nil
		}
		for i, item := range items {
			if err := conform(*def.Items, item, fmt.Sprintf("%s[%d]", path, i)); err != nil {
				return err
			}
		}
	case jsonschema.String:
		if len(def.Enum) == 0 {
			return nil
		}
		s, _ := data.(string)
		if !slices.Contains(def.Enum, s) {
			return fmt.Errorf("%w: %s: %q is not one of %v", ErrMismatch, path, s, def.Enum)
		}
	}
	return nil
}
