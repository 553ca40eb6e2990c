package schema

import (
	"strings"
)

// ToJSONSchema converts the schema to JSON Schema format, used by cloud
// backends that accept structured-output schemas instead of grammars.
func (s Schema) ToJSONSchema() map[string]any {
	properties := make(map[string]any)
	required := make([]string, 0)

	for _, field := range s.Fields {
		properties[field.Name] = fieldToJSONSchema(field)
		if field.Required {
			required = append(required, field.Name)
		}
	}

	out := map[string]any{
		"type":                 "object",
		"properties":           properties,
		"additionalProperties": false,
	}

	if len(required) > 0 {
		out["required"] = required
	}
	if s.Description != "" {
		out["description"] = s.Description
	}

	return out
}

func fieldToJSONSchema(f Field) map[string]any {
	out := map[string]any{
		"type": string(f.Type),
	}

	if f.Description != "" {
		out["description"] = f.Description
	}

	if f.Type == TypeArray && f.Items != nil {
		out["items"] = fieldToJSONSchema(*f.Items)
	}

	if f.Type == TypeObject && len(f.Properties) > 0 {
		props := make(map[string]any)
		req := make([]string, 0)
		for _, p := range f.Properties {
			props[p.Name] = fieldToJSONSchema(p)
			if p.Required {
				req = append(req, p.Name)
			}
		}
		out["properties"] = props
		out["additionalProperties"] = false
		if len(req) > 0 {
			out["required"] = req
		}
	}

	return out
}

// ToPromptDescription generates a human-readable field listing for the
// auto-derived extraction instruction.
func (s Schema) ToPromptDescription() string {
	var sb strings.Builder

	if s.Description != "" {
		sb.WriteString(s.Description)
		sb.WriteString("\n")
	}
	sb.WriteString("Fields to extract:\n")

	for _, field := range s.Fields {
		writeFieldDescription(&sb, field, 0)
	}

	return sb.String()
}

func writeFieldDescription(sb *strings.Builder, f Field, indent int) {
	prefix := strings.Repeat("  ", indent)

	sb.WriteString(prefix)
	sb.WriteString("- ")
	sb.WriteString(f.Name)
	sb.WriteString(" (")
	sb.WriteString(string(f.Type))
	if f.Required {
		sb.WriteString(", required")
	}
	sb.WriteString(")")

	if f.Description != "" {
		sb.WriteString(": ")
		sb.WriteString(f.Description)
	}
	sb.WriteString("\n")

	if f.Type == TypeArray && f.Items != nil && f.Items.Type == TypeObject {
		sb.WriteString(prefix)
		sb.WriteString("  Each item:\n")
		for _, prop := range f.Items.Properties {
			writeFieldDescription(sb, prop, indent+2)
		}
	}

	if f.Type == TypeObject && len(f.Properties) > 0 {
		for _, prop := range f.Properties {
			writeFieldDescription(sb, prop, indent+1)
		}
	}
}
