// Package grammar compiles GBNF output constraints for
// grammar-constrained decoding. Grammars come from a small preset table
// of hand-authored GBNF strings or are derived from a schema's field
// types. Compiled grammars are memoized by identity.
package grammar

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/loclean/loclean/internal/logger"
	"github.com/loclean/loclean/pkg/schema"
)

// Grammar is a compiled output constraint: an opaque GBNF artifact plus
// the identity key it was memoized under.
type Grammar struct {
	Key  string
	GBNF string
}

// Presets are hand-written GBNF strings for fixed output shapes that
// schema derivation would express less precisely.
var Presets = map[string]string{
	"json": "root   ::= object\n" +
		"object ::= \"{\" ws \"\\\"reasoning\\\"\" ws \":\" ws string \",\" ws " +
		"\"\\\"value\\\"\" ws \":\" ws number \",\" ws " +
		"\"\\\"unit\\\"\" ws \":\" ws string ws \"}\"\n" +
		"number ::= (\"-\"? ([0-9]+ (\".\" [0-9]+)?))\n" +
		"string ::= \"\\\"\" ([^\"]*) \"\\\"\"\n" +
		"ws     ::= [ \\t\\n]*\n",
	"list_str": "root   ::= array\n" +
		"array  ::= \"[\" ws ( string ( \",\" ws string )* )? \"]\" ws\n" +
		"string ::= \"\\\"\" ([^\"]*) \"\\\"\"\n" +
		"ws     ::= [ \\t\\n]*\n",
	"email": "root   ::= string\n" +
		"string ::= \"\\\"\" email_pattern \"\\\"\"\n" +
		"email_pattern ::= [a-zA-Z0-9._%+-]+ \"@\" [a-zA-Z0-9.-]+ \".\" [a-zA-Z]{2,}\n" +
		"ws     ::= [ \\t\\n]*\n",
}

var (
	cacheMu sync.Mutex
	cache   = make(map[string]*Grammar)
)

// Get returns the compiled grammar for a preset key. The result is
// memoized; repeated calls with the same key return the same Grammar.
func Get(preset string) (*Grammar, error) {
	key := "preset::" + preset

	cacheMu.Lock()
	defer cacheMu.Unlock()
	if g, ok := cache[key]; ok {
		return g, nil
	}

	gbnf, ok := Presets[preset]
	if !ok {
		return nil, fmt.Errorf("unknown grammar preset: %q (available presets: %s)",
			preset, strings.Join(presetNames(), ", "))
	}

	g, err := compile(key, gbnf)
	if err != nil {
		return nil, err
	}
	cache[key] = g
	return g, nil
}

// FromSchema derives a grammar from the schema's field types. The
// result is memoized by schema identity (name plus sorted field names).
func FromSchema(s schema.Schema) (*Grammar, error) {
	key := "schema::" + s.Identity()

	cacheMu.Lock()
	defer cacheMu.Unlock()
	if g, ok := cache[key]; ok {
		return g, nil
	}

	gbnf := generate(s)
	g, err := compile(key, gbnf)
	if err != nil {
		return nil, err
	}
	cache[key] = g
	logger.Debug("compiled grammar from schema", "schema", s.Name)
	return g, nil
}

// ClearCache drops all memoized grammars. Intended for tests.
func ClearCache() {
	cacheMu.Lock()
	defer cacheMu.Unlock()
	cache = make(map[string]*Grammar)
}

func presetNames() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// compile validates the GBNF text. The grammar is executed by the
// decoding backend; here we only require a well-formed rule set with a
// root rule.
func compile(key, gbnf string) (*Grammar, error) {
	hasRoot := false
	for _, line := range strings.Split(gbnf, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		name, rest, found := strings.Cut(line, "::=")
		if !found {
			return nil, fmt.Errorf("invalid grammar rule %q: missing '::='", line)
		}
		if strings.TrimSpace(rest) == "" {
			return nil, fmt.Errorf("invalid grammar rule %q: empty production", line)
		}
		if strings.TrimSpace(name) == "root" {
			hasRoot = true
		}
	}
	if !hasRoot {
		return nil, fmt.Errorf("grammar has no root rule")
	}
	return &Grammar{Key: key, GBNF: gbnf}, nil
}

// generate builds a GBNF object rule from the schema fields, in
// declared order. Field types map to grammar primitives; anything the
// notation cannot express falls back to an unconstrained string.
func generate(s schema.Schema) string {
	var obj strings.Builder
	obj.WriteString("root ::= \"{\" ws ")

	extra := make([]string, 0)
	for i, f := range s.Fields {
		if i > 0 {
			obj.WriteString("\",\" ws ")
		}
		fmt.Fprintf(&obj, "%q ws \":\" ws %s ws ", "\""+f.Name+"\"", fieldRule(f, f.Name, &extra))
	}
	obj.WriteString("\"}\"")

	rules := []string{
		obj.String(),
		"string ::= \"\\\"\" ([^\"]*) \"\\\"\"",
		"number ::= (\"-\"? ([0-9]+ (\".\" [0-9]+)?))",
		"integer ::= (\"-\"? [0-9]+)",
		"boolean ::= (\"true\" | \"false\")",
		"ws ::= [ \\t\\n]*",
	}
	rules = append(rules, extra...)

	return strings.Join(rules, "\n") + "\n"
}

// fieldRule returns the rule name for a field, appending any generated
// sub-rules for arrays and nested objects to extra.
func fieldRule(f schema.Field, path string, extra *[]string) string {
	switch f.Type {
	case schema.TypeString:
		return "string"
	case schema.TypeNumber:
		return "number"
	case schema.TypeInteger:
		return "integer"
	case schema.TypeBoolean:
		return "boolean"
	case schema.TypeArray:
		if f.Items == nil {
			return "string"
		}
		name := ruleName(path)
		item := fieldRule(*f.Items, path+"-item", extra)
		*extra = append(*extra, fmt.Sprintf(
			"%s ::= \"[\" ws ( %s ( \",\" ws %s )* )? \"]\"", name, item, item))
		return name
	case schema.TypeObject:
		if len(f.Properties) == 0 {
			return "string"
		}
		name := ruleName(path)
		var obj strings.Builder
		fmt.Fprintf(&obj, "%s ::= \"{\" ws ", name)
		for i, p := range f.Properties {
			if i > 0 {
				obj.WriteString("\",\" ws ")
			}
			fmt.Fprintf(&obj, "%q ws \":\" ws %s ws ",
				"\""+p.Name+"\"", fieldRule(p, path+"-"+p.Name, extra))
		}
		obj.WriteString("\"}\"")
		*extra = append(*extra, obj.String())
		return name
	default:
		// Unsupported type: unconstrained string terminal.
		return "string"
	}
}

func ruleName(path string) string {
	name := strings.ToLower(path)
	name = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			return r
		}
		return '-'
	}, name)
	return "r-" + name
}
