// Package schema defines the field descriptors that drive grammar
// generation, prompt construction and result validation.
package schema

import (
	"encoding/json"

	"gopkg.in/yaml.v3"
)

// FieldType represents the type of a schema field.
type FieldType string

const (
	TypeString  FieldType = "string"
	TypeNumber  FieldType = "number"
	TypeInteger FieldType = "integer"
	TypeBoolean FieldType = "boolean"
	TypeArray   FieldType = "array"
	TypeObject  FieldType = "object"
)

// Field represents a single field in the schema.
type Field struct {
	Name        string    `json:"name,omitempty" yaml:"name,omitempty"`
	Type        FieldType `json:"type" yaml:"type"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	Required    bool      `json:"required,omitempty" yaml:"required,omitempty"`
	Items       *Field    `json:"items,omitempty" yaml:"items,omitempty"` // For array types
	Properties  []Field   `json:"-" yaml:"-"`                             // For object types (custom unmarshal)
	Validators  []string  `json:"validators,omitempty" yaml:"validators,omitempty"`
}

type fieldAlias Field

// fieldRaw captures the properties node separately so both map and
// array layouts can be accepted.
type fieldRaw struct {
	fieldAlias    `yaml:",inline"`
	PropertiesRaw yaml.Node `yaml:"properties"`
}

// UnmarshalYAML handles both map-style and array-style properties.
func (f *Field) UnmarshalYAML(node *yaml.Node) error {
	var raw fieldRaw
	if err := node.Decode(&raw); err != nil {
		return err
	}

	*f = Field(raw.fieldAlias)

	if raw.PropertiesRaw.Kind != 0 {
		switch raw.PropertiesRaw.Kind {
		case yaml.MappingNode:
			var propsMap map[string]Field
			if err := raw.PropertiesRaw.Decode(&propsMap); err != nil {
				return err
			}
			for name, prop := range propsMap {
				prop.Name = name
				f.Properties = append(f.Properties, prop)
			}
		case yaml.SequenceNode:
			if err := raw.PropertiesRaw.Decode(&f.Properties); err != nil {
				return err
			}
		}
	}

	return nil
}

type fieldJSON struct {
	Name        string          `json:"name,omitempty"`
	Type        FieldType       `json:"type"`
	Description string          `json:"description,omitempty"`
	Required    bool            `json:"required,omitempty"`
	Items       *Field          `json:"items,omitempty"`
	Properties  json.RawMessage `json:"properties,omitempty"`
	Validators  []string        `json:"validators,omitempty"`
}

// MarshalJSON includes the Properties slice, which is excluded from the
// default marshaling by its struct tag.
func (f Field) MarshalJSON() ([]byte, error) {
	type fieldOut struct {
		Name        string    `json:"name,omitempty"`
		Type        FieldType `json:"type"`
		Description string    `json:"description,omitempty"`
		Required    bool      `json:"required,omitempty"`
		Items       *Field    `json:"items,omitempty"`
		Properties  []Field   `json:"properties,omitempty"`
		Validators  []string  `json:"validators,omitempty"`
	}
	return json.Marshal(fieldOut{
		Name:        f.Name,
		Type:        f.Type,
		Description: f.Description,
		Required:    f.Required,
		Items:       f.Items,
		Properties:  f.Properties,
		Validators:  f.Validators,
	})
}

// UnmarshalJSON handles both map-style and array-style properties.
func (f *Field) UnmarshalJSON(data []byte) error {
	var raw fieldJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	f.Name = raw.Name
	f.Type = raw.Type
	f.Description = raw.Description
	f.Required = raw.Required
	f.Items = raw.Items
	f.Validators = raw.Validators

	if len(raw.Properties) > 0 {
		var propsArray []Field
		if err := json.Unmarshal(raw.Properties, &propsArray); err == nil {
			f.Properties = propsArray
			return nil
		}
		var propsMap map[string]Field
		if err := json.Unmarshal(raw.Properties, &propsMap); err != nil {
			return err
		}
		for name, prop := range propsMap {
			prop.Name = name
			f.Properties = append(f.Properties, prop)
		}
	}

	return nil
}

// ValidationError represents a validation failure.
type ValidationError struct {
	Field   string
	Message string
	Value   any
}

func (e ValidationError) Error() string {
	return e.Field + ": " + e.Message
}
