package schema

import (
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai/jsonschema"
)

// Generate builds the JSON-Schema object for a descriptor. Strict descriptors
// list every field as required.
func Generate(d Descriptor) (Schema, error) {
	if strings.TrimSpace(d.Name) == "" {
		return Schema{}, fmt.Errorf("%w: name is required", ErrConfiguration)
	}
	if strings.TrimSpace(d.Description) == "" {
		return Schema{}, fmt.Errorf("%w: %s: description is required", ErrConfiguration, d.Name)
	}

	def, err := objectDefinition(d.Object, d.Strict, d.Name)
	if err != nil {
		return Schema{}, err
	}

	return Schema{
		Name:        d.Name,
		Description: d.Description,
		Strict:      d.Strict,
		Definition:  def,
		object:      d.Object,
	}, nil
}

func objectDefinition(obj Object, strict bool, path string) (jsonschema.Definition, error) {
	def := jsonschema.Definition{
		Type:                 jsonschema.Object,
		Properties:           make(map[string]jsonschema.Definition, len(obj.Fields)),
		AdditionalProperties: false,
	}

	for i, f := range obj.Fields {
		if f.Name == "" {
			return jsonschema.Definition{}, fmt.Errorf("%w: %s.fields[%d].name is required", ErrConfiguration, path, i)
		}
		if _, dup := def.Properties[f.Name]; dup {
			return jsonschema.Definition{}, fmt.Errorf("%w: %s.%s is declared twice", ErrConfiguration, path, f.Name)
		}

		prop, err := fieldDefinition(f, strict, path+"."+f.Name)
		if err != nil {
			return jsonschema.Definition{}, err
		}
		def.Properties[f.Name] = prop

		if strict || f.Required {
			def.Required = append(def.Required, f.Name)
		}
	}

	return def, nil
}

func fieldDefinition(f Field, strict bool, path string) (jsonschema.Definition, error) {
	var def jsonschema.Definition

	switch f.Kind {
	case KindString:
		def.Type = jsonschema.String
	case KindInteger:
		def.Type = jsonschema.Integer
	case KindNumber:
		def.Type = jsonschema.Number
	case KindBoolean:
		def.Type = jsonschema.Boolean
	case KindEnum:
		if len(f.Enum) == 0 {
			return def, fmt.Errorf("%w: %s: enum has no values", ErrConfiguration, path)
		}
		def.Type = jsonschema.String
		def.Enum = make([]string, 0, len(f.Enum))
		for _, v := range f.Enum {
			def.Enum = append(def.Enum, v.Value)
		}
	case KindObject:
		if f.Object == nil {
			return def, fmt.Errorf("%w: %s: object field has no shape", ErrConfiguration, path)
		}
		nested, err := objectDefinition(*f.Object, strict, path)
		if err != nil {
			return def, err
		}
		def = nested
	case KindArray:
		if f.Items == nil {
			return def, fmt.Errorf("%w: %s: array field has no items", ErrConfiguration, path)
		}
		items := *f.Items
		if items.Name == "" {
			items.Name = "items"
		}
		item, err := fieldDefinition(items, strict, path+"[]")
		if err != nil {
			return def, err
		}
		def.Type = jsonschema.Array
		def.Items = &item
	default:
		return def, fmt.Errorf("%w: %s: unknown kind %q", ErrConfiguration, path, f.Kind)
	}

	def.Description = describe(f)
	return def, nil
}

// describe prefers the description and falls back to the title. The title
// itself is sent as its own keyword by MarshalDefinition.
func describe(f Field) string {
	if f.Description != "" {
		return f.Description
	}
	return f.Title
}
