package table

import (
	"reflect"
	"testing"
)

func mustNew(t *testing.T, cols []string, data map[string][]any) Table {
	t.Helper()
	tbl, err := New(cols, data)
	if err != nil {
		t.Fatalf("failed to build table: %v", err)
	}
	return tbl
}

func TestNewValidatesShape(t *testing.T) {
	_, err := New([]string{"a", "b"}, map[string][]any{
		"a": {1, 2},
		"b": {1},
	})
	if err == nil {
		t.Error("expected error for ragged columns")
	}

	_, err = New([]string{"a"}, map[string][]any{})
	if err == nil {
		t.Error("expected error for missing column data")
	}
}

func TestDistinctStrings(t *testing.T) {
	tbl := mustNew(t, []string{"w"}, map[string][]any{
		"w": {"500g", "10kg", "500g", nil, "", "  ", 42.0, "10kg"},
	})

	got := tbl.DistinctStrings("w")
	want := []string{"500g", "10kg", "42"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("DistinctStrings = %v, want %v", got, want)
	}

	if got := tbl.DistinctStrings("missing"); got != nil {
		t.Errorf("missing column returned %v", got)
	}
}

func TestCastString(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{"abc", "abc"},
		{42.0, "42"},
		{4.5, "4.5"},
		{7, "7"},
		{nil, ""},
		{true, "true"},
	}

	for _, tt := range tests {
		if got := CastString(tt.in); got != tt.want {
			t.Errorf("CastString(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestWithColumnAndDrop(t *testing.T) {
	tbl := mustNew(t, []string{"a"}, map[string][]any{"a": {1, 2}})

	added, err := tbl.WithColumn("b", []any{"x", "y"})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(added.Columns(), []string{"a", "b"}) {
		t.Errorf("columns = %v", added.Columns())
	}
	if tbl.HasColumn("b") {
		t.Error("WithColumn mutated the receiver")
	}

	replaced, err := added.WithColumn("b", []any{"p", "q"})
	if err != nil {
		t.Fatal(err)
	}
	vals, _ := replaced.Column("b")
	if vals[0] != "p" {
		t.Errorf("replace kept old value %v", vals[0])
	}

	dropped := added.DropColumn("b")
	if dropped.HasColumn("b") {
		t.Error("DropColumn kept the column")
	}
	if !dropped.Equal(tbl) {
		t.Error("drop after add did not restore the original table")
	}

	if _, err := tbl.WithColumn("b", []any{"only-one"}); err == nil {
		t.Error("expected length mismatch error")
	}
}

func TestLeftJoin(t *testing.T) {
	left := mustNew(t, []string{"k", "v"}, map[string][]any{
		"k": {"a", "b", "c", "a"},
		"v": {1.0, 2.0, 3.0, 4.0},
	})
	right := mustNew(t, []string{"k", "extra"}, map[string][]any{
		"k":     {"a", "c"},
		"extra": {"A", "C"},
	})

	joined, err := left.LeftJoin(right, "k")
	if err != nil {
		t.Fatal(err)
	}
	if joined.NumRows() != 4 {
		t.Fatalf("rows = %d, want 4", joined.NumRows())
	}

	extra, _ := joined.Column("extra")
	want := []any{"A", nil, "C", "A"}
	if !reflect.DeepEqual(extra, want) {
		t.Errorf("extra = %v, want %v", extra, want)
	}
}

func TestLeftJoinStringCastKeys(t *testing.T) {
	// Numeric left keys join against string right keys.
	left := mustNew(t, []string{"k"}, map[string][]any{"k": {500.0, 10.0}})
	right := mustNew(t, []string{"k", "unit"}, map[string][]any{
		"k":    {"500", "10"},
		"unit": {"g", "kg"},
	})

	joined, err := left.LeftJoin(right, "k")
	if err != nil {
		t.Fatal(err)
	}
	unit, _ := joined.Column("unit")
	if unit[0] != "g" || unit[1] != "kg" {
		t.Errorf("unit = %v", unit)
	}
}

func TestLeftJoinErrors(t *testing.T) {
	a := mustNew(t, []string{"k", "x"}, map[string][]any{"k": {"a"}, "x": {1}})
	b := mustNew(t, []string{"k", "x"}, map[string][]any{"k": {"a"}, "x": {2}})

	if _, err := a.LeftJoin(b, "k"); err == nil {
		t.Error("expected duplicate-column error")
	}
	if _, err := a.LeftJoin(b, "nope"); err == nil {
		t.Error("expected missing-key error")
	}
}

func TestCoalesce(t *testing.T) {
	tbl := mustNew(t, []string{"a", "b"}, map[string][]any{
		"a": {1.0, nil, 3.0},
		"b": {9.0, 2.0, 9.0},
	})

	out, err := tbl.Coalesce("a", "b")
	if err != nil {
		t.Fatal(err)
	}
	if out.HasColumn("b") {
		t.Error("Coalesce kept the source column")
	}
	vals, _ := out.Column("a")
	want := []any{1.0, 2.0, 3.0}
	if !reflect.DeepEqual(vals, want) {
		t.Errorf("a = %v, want %v", vals, want)
	}
}
