package schema

import (
	"bytes"
	"encoding/json"
	"sort"

	"github.com/sashabaranov/go-openai/jsonschema"
)

// definitionWire is jsonschema.Definition with properties kept in declared
// order and the field title carried as its own keyword. Models fill
// structured output in the order the properties are listed.
type definitionWire struct {
	Type                 jsonschema.DataType `json:"type,omitempty"`
	Title                string              `json:"title,omitempty"`
	Description          string              `json:"description,omitempty"`
	Enum                 []string            `json:"enum,omitempty"`
	Properties           orderedProperties   `json:"properties,omitempty"`
	Required             []string            `json:"required,omitempty"`
	Items                *definitionWire     `json:"items,omitempty"`
	AdditionalProperties any                 `json:"additionalProperties,omitempty"`
}

type property struct {
	name string
	def  definitionWire
}

type orderedProperties []property

func (p orderedProperties) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, prop := range p {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(prop.name)
		if err != nil {
			return nil, err
		}
		def, err := json.Marshal(prop.def)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(def)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalDefinition encodes the definition for the wire. Properties follow
// the declared field order; properties the descriptor does not know about
// (a hand-built Definition) come after, sorted by name.
func (s Schema) MarshalDefinition() (json.RawMessage, error) {
	return json.Marshal(objectWire(s.Definition, s.object.Fields))
}

func objectWire(def jsonschema.Definition, fields []Field) definitionWire {
	w := plainWire(def)
	if len(def.Properties) == 0 {
		return w
	}

	declared := make(map[string]bool, len(fields))
	for _, f := range fields {
		child, ok := def.Properties[f.Name]
		if !ok || declared[f.Name] {
			continue
		}
		declared[f.Name] = true
		w.Properties = append(w.Properties, property{name: f.Name, def: fieldWire(child, f)})
	}

	var rest []string
	for name := range def.Properties {
		if !declared[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	for _, name := range rest {
		w.Properties = append(w.Properties, property{name: name, def: objectWire(def.Properties[name], nil)})
	}
	return w
}

func fieldWire(def jsonschema.Definition, f Field) definitionWire {
	var w definitionWire
	switch {
	case f.Kind == KindObject && f.Object != nil:
		w = objectWire(def, f.Object.Fields)
	case f.Kind == KindArray && f.Items != nil && def.Items != nil:
		w = plainWire(def)
		items := fieldWire(*def.Items, *f.Items)
		w.Items = &items
	default:
		w = objectWire(def, nil)
	}
	w.Title = f.Title
	return w
}

func plainWire(def jsonschema.Definition) definitionWire {
	w := definitionWire{
		Type:                 def.Type,
		Description:          def.Description,
		Enum:                 def.Enum,
		Required:             def.Required,
		AdditionalProperties: def.AdditionalProperties,
	}
	if def.Items != nil {
		items := objectWire(*def.Items, nil)
		w.Items = &items
	}
	return w
}
