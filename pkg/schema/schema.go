package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Schema describes the named, typed fields a structured extraction
// result must contain. Schema identity (name plus sorted field names)
// keys both the grammar cache and the result cache.
type Schema struct {
	Name        string  `json:"name" yaml:"name"`
	Description string  `json:"description,omitempty" yaml:"description,omitempty"`
	Fields      []Field `json:"fields" yaml:"fields"`

	target   reflect.Type // original struct type for Unmarshal, nil for file schemas
	validate *validator.Validate
}

// Option configures schema creation.
type Option func(*builder)

type builder struct {
	description string
}

// WithDescription sets the schema description used in prompts.
func WithDescription(desc string) Option {
	return func(b *builder) {
		b.description = desc
	}
}

// FromStruct creates a Schema from a struct type using reflection.
// Field names come from json tags, descriptions from `description`
// tags and validation rules from `validate` tags.
func FromStruct[T any](opts ...Option) (Schema, error) {
	var zero T
	t := reflect.TypeOf(zero)
	if t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return Schema{}, fmt.Errorf("schema must be created from a struct type, got %v", t)
	}

	b := &builder{}
	for _, opt := range opts {
		opt(b)
	}

	fields, err := reflectFields(t)
	if err != nil {
		return Schema{}, err
	}

	return Schema{
		Name:        t.Name(),
		Description: b.description,
		Fields:      fields,
		target:      t,
		validate:    validator.New(),
	}, nil
}

// FromFile loads a schema from a JSON or YAML file.
func FromFile(path string) (Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Schema{}, fmt.Errorf("failed to read schema file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FromJSON(data)
	case ".yaml", ".yml":
		return FromYAML(data)
	default:
		return Schema{}, fmt.Errorf("unsupported schema file format: %s", filepath.Ext(path))
	}
}

// FromJSON creates a schema from JSON data.
func FromJSON(data []byte) (Schema, error) {
	var s Schema
	if err := json.Unmarshal(data, &s); err != nil {
		return Schema{}, fmt.Errorf("failed to parse JSON schema: %w", err)
	}
	s.validate = validator.New()
	return s, nil
}

// FromYAML creates a schema from YAML data.
func FromYAML(data []byte) (Schema, error) {
	var s Schema
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Schema{}, fmt.Errorf("failed to parse YAML schema: %w", err)
	}
	s.validate = validator.New()
	return s, nil
}

// Identity returns a stable key for this schema: its name plus the
// sorted field names. Two schemas with the same identity compile to
// the same grammar and share cache entries.
func (s Schema) Identity() string {
	names := make([]string, 0, len(s.Fields))
	for _, f := range s.Fields {
		names = append(names, f.Name)
	}
	sort.Strings(names)
	return s.Name + "::" + strings.Join(names, ",")
}

// FieldByName returns the named field, if present.
func (s Schema) FieldByName(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// reflectFields extracts field definitions from a struct type.
func reflectFields(t reflect.Type) ([]Field, error) {
	fields := make([]Field, 0, t.NumField())

	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}

		field := Field{
			Name:        jsonName(sf),
			Description: sf.Tag.Get("description"),
			Required:    !hasOmitempty(sf),
			Validators:  splitValidators(sf.Tag.Get("validate")),
		}

		ft := sf.Type
		if ft.Kind() == reflect.Ptr {
			ft = ft.Elem()
			field.Required = false
		}

		typed, err := fieldFromType(ft)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", sf.Name, err)
		}
		field.Type = typed.Type
		field.Items = typed.Items
		field.Properties = typed.Properties

		fields = append(fields, field)
	}

	return fields, nil
}

// fieldFromType maps a Go type to a field descriptor.
func fieldFromType(t reflect.Type) (Field, error) {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	var field Field
	switch t.Kind() {
	case reflect.String:
		field.Type = TypeString
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		field.Type = TypeInteger
	case reflect.Float32, reflect.Float64:
		field.Type = TypeNumber
	case reflect.Bool:
		field.Type = TypeBoolean
	case reflect.Slice:
		field.Type = TypeArray
		item, err := fieldFromType(t.Elem())
		if err != nil {
			return Field{}, err
		}
		field.Items = &item
	case reflect.Struct:
		field.Type = TypeObject
		props, err := reflectFields(t)
		if err != nil {
			return Field{}, err
		}
		field.Properties = props
	case reflect.Map:
		field.Type = TypeObject
	default:
		return Field{}, fmt.Errorf("unsupported field type %v", t.Kind())
	}

	return field, nil
}

func jsonName(sf reflect.StructField) string {
	tag := sf.Tag.Get("json")
	if tag == "" || tag == "-" {
		return sf.Name
	}
	if name, _, _ := strings.Cut(tag, ","); name != "" {
		return name
	}
	return sf.Name
}

func hasOmitempty(sf reflect.StructField) bool {
	return strings.Contains(sf.Tag.Get("json"), "omitempty")
}

func splitValidators(tag string) []string {
	if tag == "" {
		return nil
	}
	return strings.Split(tag, ",")
}

// Unmarshal parses JSON into the schema's target struct type, or into
// a map for schemas loaded from files.
func (s Schema) Unmarshal(data []byte) (any, error) {
	if s.target == nil {
		var result map[string]any
		if err := json.Unmarshal(data, &result); err != nil {
			return nil, fmt.Errorf("failed to unmarshal: %w", err)
		}
		return result, nil
	}

	v := reflect.New(s.target).Interface()
	if err := json.Unmarshal(data, v); err != nil {
		return nil, fmt.Errorf("failed to unmarshal: %w", err)
	}
	return v, nil
}

// Validate checks the data against the schema's validation rules.
// A nil or empty return means the data conforms.
func (s Schema) Validate(data any) []ValidationError {
	if m, ok := data.(map[string]any); ok {
		return s.validateMap(m)
	}
	if s.validate == nil {
		return nil
	}

	v := reflect.ValueOf(data)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil
	}

	err := s.validate.Struct(data)
	if err == nil {
		return nil
	}

	var errs []ValidationError
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, e := range verrs {
			errs = append(errs, ValidationError{
				Field:   e.Field(),
				Message: describeRule(e),
				Value:   e.Value(),
			})
		}
	} else {
		errs = append(errs, ValidationError{Field: s.Name, Message: err.Error()})
	}
	return errs
}

// validateMap validates file-schema results field by field.
func (s Schema) validateMap(data map[string]any) []ValidationError {
	var errs []ValidationError

	for _, field := range s.Fields {
		val, exists := data[field.Name]
		if !exists {
			if field.Required {
				errs = append(errs, ValidationError{
					Field:   field.Name,
					Message: "required field is missing",
				})
			}
			continue
		}

		if err := checkFieldType(field, val); err != nil {
			errs = append(errs, ValidationError{
				Field:   field.Name,
				Message: err.Error(),
				Value:   val,
			})
		}
	}

	return errs
}

// checkFieldType verifies a decoded JSON value against the declared type.
func checkFieldType(field Field, val any) error {
	if val == nil {
		if field.Required {
			return fmt.Errorf("value is null but field is required")
		}
		return nil
	}

	switch field.Type {
	case TypeString:
		if _, ok := val.(string); !ok {
			return fmt.Errorf("expected string, got %T", val)
		}
	case TypeInteger:
		// JSON numbers decode as float64; require an integral value.
		f, ok := val.(float64)
		if !ok {
			if _, isInt := val.(int); !isInt {
				return fmt.Errorf("expected integer, got %T", val)
			}
			return nil
		}
		if f != float64(int64(f)) {
			return fmt.Errorf("expected integer, got fractional number %v", f)
		}
	case TypeNumber:
		switch val.(type) {
		case float64, int, int64:
		default:
			return fmt.Errorf("expected number, got %T", val)
		}
	case TypeBoolean:
		if _, ok := val.(bool); !ok {
			return fmt.Errorf("expected boolean, got %T", val)
		}
	case TypeArray:
		arr, ok := val.([]any)
		if !ok {
			return fmt.Errorf("expected array, got %T", val)
		}
		if field.Items != nil {
			for i, item := range arr {
				if err := checkFieldType(*field.Items, item); err != nil {
					return fmt.Errorf("item %d: %w", i, err)
				}
			}
		}
	case TypeObject:
		obj, ok := val.(map[string]any)
		if !ok {
			return fmt.Errorf("expected object, got %T", val)
		}
		for _, p := range field.Properties {
			pv, exists := obj[p.Name]
			if !exists {
				if p.Required {
					return fmt.Errorf("%s: required field is missing", p.Name)
				}
				continue
			}
			if err := checkFieldType(p, pv); err != nil {
				return fmt.Errorf("%s: %w", p.Name, err)
			}
		}
	}

	return nil
}

// describeRule creates a human-readable message for a validator rule failure.
func describeRule(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", e.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", e.Param())
	case "email":
		return "must be a valid email address"
	case "url":
		return "must be a valid URL"
	default:
		return fmt.Sprintf("failed validation '%s'", e.Tag())
	}
}
