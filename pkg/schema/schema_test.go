package schema

import (
	"strings"
	"testing"
)

type listing struct {
	Title    string   `json:"title" description:"the listing headline" validate:"required"`
	Price    float64  `json:"price" description:"price in dollars"`
	Beds     int      `json:"beds"`
	Active   bool     `json:"active"`
	Tags     []string `json:"tags,omitempty"`
	Optional *string  `json:"note,omitempty"`
}

func TestFromStruct(t *testing.T) {
	s, err := FromStruct[listing](WithDescription("a property listing"))
	if err != nil {
		t.Fatalf("FromStruct failed: %v", err)
	}

	if s.Name != "listing" {
		t.Errorf("Name = %q, want listing", s.Name)
	}
	if s.Description != "a property listing" {
		t.Errorf("Description = %q", s.Description)
	}
	if len(s.Fields) != 6 {
		t.Fatalf("got %d fields, want 6", len(s.Fields))
	}

	tests := []struct {
		name     string
		typ      FieldType
		required bool
	}{
		{"title", TypeString, true},
		{"price", TypeNumber, true},
		{"beds", TypeInteger, true},
		{"active", TypeBoolean, true},
		{"tags", TypeArray, false},
		{"note", TypeString, false},
	}
	for _, tt := range tests {
		f, ok := s.FieldByName(tt.name)
		if !ok {
			t.Errorf("field %q missing", tt.name)
			continue
		}
		if f.Type != tt.typ {
			t.Errorf("%s type = %v, want %v", tt.name, f.Type, tt.typ)
		}
		if f.Required != tt.required {
			t.Errorf("%s required = %v, want %v", tt.name, f.Required, tt.required)
		}
	}

	title, _ := s.FieldByName("title")
	if title.Description != "the listing headline" {
		t.Errorf("title description = %q", title.Description)
	}
}

func TestFromStructRejectsNonStruct(t *testing.T) {
	if _, err := FromStruct[int](); err == nil {
		t.Error("expected error for non-struct type")
	}
}

func TestIdentity(t *testing.T) {
	a, err := FromStruct[listing]()
	if err != nil {
		t.Fatal(err)
	}
	b, err := FromStruct[listing]()
	if err != nil {
		t.Fatal(err)
	}
	if a.Identity() != b.Identity() {
		t.Error("same struct produced different identities")
	}
	if !strings.HasPrefix(a.Identity(), "listing::") {
		t.Errorf("identity = %q", a.Identity())
	}

	type other struct {
		Title string `json:"title"`
	}
	c, err := FromStruct[other]()
	if err != nil {
		t.Fatal(err)
	}
	if a.Identity() == c.Identity() {
		t.Error("different schemas share an identity")
	}
}

func TestFromYAML(t *testing.T) {
	data := []byte(`
name: product
description: a product record
fields:
  - name: title
    type: string
    required: true
  - name: price
    type: number
  - name: specs
    type: object
    properties:
      weight:
        type: number
      color:
        type: string
`)

	s, err := FromYAML(data)
	if err != nil {
		t.Fatalf("FromYAML failed: %v", err)
	}
	if s.Name != "product" {
		t.Errorf("Name = %q", s.Name)
	}
	if len(s.Fields) != 3 {
		t.Fatalf("got %d fields, want 3", len(s.Fields))
	}

	specs, ok := s.FieldByName("specs")
	if !ok {
		t.Fatal("specs field missing")
	}
	if specs.Type != TypeObject {
		t.Errorf("specs type = %v", specs.Type)
	}
	if len(specs.Properties) != 2 {
		t.Errorf("specs has %d properties, want 2", len(specs.Properties))
	}
}

func TestUnmarshalStruct(t *testing.T) {
	s, err := FromStruct[listing]()
	if err != nil {
		t.Fatal(err)
	}

	v, err := s.Unmarshal([]byte(`{"title": "cottage", "price": 120000, "beds": 2, "active": true}`))
	if err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	l, ok := v.(*listing)
	if !ok {
		t.Fatalf("result type = %T", v)
	}
	if l.Title != "cottage" || l.Beds != 2 {
		t.Errorf("decoded %+v", l)
	}
}

func TestValidateStruct(t *testing.T) {
	s, err := FromStruct[listing]()
	if err != nil {
		t.Fatal(err)
	}

	if errs := s.Validate(&listing{Title: "ok"}); len(errs) != 0 {
		t.Errorf("valid struct reported %v", errs)
	}
	errs := s.Validate(&listing{})
	if len(errs) == 0 {
		t.Fatal("missing required title not reported")
	}
	if errs[0].Field != "Title" {
		t.Errorf("error field = %q", errs[0].Field)
	}
}

func TestValidateMap(t *testing.T) {
	s, err := FromYAML([]byte(`
name: product
fields:
  - name: title
    type: string
    required: true
  - name: count
    type: integer
`))
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		data    map[string]any
		wantErr bool
	}{
		{"valid", map[string]any{"title": "x", "count": 3.0}, false},
		{"missing required", map[string]any{"count": 3.0}, true},
		{"wrong type", map[string]any{"title": 7.0}, true},
		{"fractional integer", map[string]any{"title": "x", "count": 3.5}, true},
		{"optional absent", map[string]any{"title": "x"}, false},
		{"null required", map[string]any{"title": nil}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := s.Validate(tt.data)
			if tt.wantErr && len(errs) == 0 {
				t.Error("expected validation errors")
			}
			if !tt.wantErr && len(errs) != 0 {
				t.Errorf("unexpected errors: %v", errs)
			}
		})
	}
}

func TestToJSONSchema(t *testing.T) {
	s, err := FromStruct[listing]()
	if err != nil {
		t.Fatal(err)
	}

	js := s.ToJSONSchema()
	if js["type"] != "object" {
		t.Errorf("type = %v", js["type"])
	}
	if js["additionalProperties"] != false {
		t.Error("additionalProperties should be false")
	}

	props, ok := js["properties"].(map[string]any)
	if !ok {
		t.Fatal("properties missing")
	}
	title, ok := props["title"].(map[string]any)
	if !ok {
		t.Fatal("title property missing")
	}
	if title["type"] != "string" {
		t.Errorf("title type = %v", title["type"])
	}

	required, ok := js["required"].([]string)
	if !ok || len(required) == 0 {
		t.Fatal("required list missing")
	}
}

func TestToPromptDescription(t *testing.T) {
	s, err := FromStruct[listing](WithDescription("a property listing"))
	if err != nil {
		t.Fatal(err)
	}

	desc := s.ToPromptDescription()
	for _, want := range []string{"a property listing", "title", "string", "required", "the listing headline"} {
		if !strings.Contains(desc, want) {
			t.Errorf("description missing %q:\n%s", want, desc)
		}
	}
}
