// Package schema turns explicit type descriptors into JSON-Schema objects
// for tool parameters and structured-output response formats, and decodes
// raw JSON back into the Go types bound to those descriptors.
package schema

import (
	"errors"

	"github.com/sashabaranov/go-openai/jsonschema"
)

// ErrConfiguration is returned when a descriptor lacks the metadata needed to
// register it as a schema.
var ErrConfiguration = errors.New("invalid schema configuration")

// ErrMismatch is returned when a JSON value does not conform to a schema.
var ErrMismatch = errors.New("value does not match schema")

// Kind is the JSON type of a descriptor field.
type Kind string

const (
	KindString  Kind = "string"
	KindInteger Kind = "integer"
	KindNumber  Kind = "number"
	KindBoolean Kind = "boolean"
	KindEnum    Kind = "enum"
	KindObject  Kind = "object"
	KindArray   Kind = "array"
)

// EnumValue is a single allowed value of an enum field. Value is what goes
// over the wire; Label is only for humans.
type EnumValue struct {
	Value string
	Label string
}

// Field describes one property of an object.
type Field struct {
	Name        string // wire name, e.g. "is_spam"
	Kind        Kind
	Title       string
	Description string
	Required    bool
	Enum        []EnumValue
	Object      *Object // KindObject only
	Items       *Field  // KindArray only
}

// Object is an ordered list of fields.
type Object struct {
	Fields []Field
}

// Descriptor is the registration-time metadata of a tool or result type.
type Descriptor struct {
	Name        string
	Description string
	Strict      bool
	Object      Object
}

// Schema is a generated schema together with the metadata sent next to it.
type Schema struct {
	Name        string
	Description string
	Strict      bool
	Definition  jsonschema.Definition

	// object is the descriptor shape, kept for the field order on the wire.
	object Object
}
