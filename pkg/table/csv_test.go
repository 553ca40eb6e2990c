package table

import (
	"bytes"
	"reflect"
	"strings"
	"testing"
)

func TestReadCSV(t *testing.T) {
	in := strings.NewReader("name,weight,note\nrice,500g,\nflour,10kg,bulk\n")

	tbl, err := readCSV(in)
	if err != nil {
		t.Fatalf("readCSV failed: %v", err)
	}

	if !reflect.DeepEqual(tbl.Columns(), []string{"name", "weight", "note"}) {
		t.Errorf("columns = %v", tbl.Columns())
	}
	if tbl.NumRows() != 2 {
		t.Fatalf("rows = %d, want 2", tbl.NumRows())
	}

	note, _ := tbl.Column("note")
	if note[0] != nil {
		t.Errorf("empty cell = %v, want nil", note[0])
	}
	if note[1] != "bulk" {
		t.Errorf("note[1] = %v", note[1])
	}
}

func TestReadCSVParsesNumbers(t *testing.T) {
	in := strings.NewReader("id,price\n1,4.5\n2,abc\n")

	tbl, err := readCSV(in)
	if err != nil {
		t.Fatal(err)
	}

	price, _ := tbl.Column("price")
	if price[0] != 4.5 {
		t.Errorf("price[0] = %v (%T), want float64 4.5", price[0], price[0])
	}
	if price[1] != "abc" {
		t.Errorf("price[1] = %v", price[1])
	}
}

func TestWriteCSVRoundtrip(t *testing.T) {
	tbl := mustNew(t, []string{"weight", "clean_value"}, map[string][]any{
		"weight":      {"500g", "10kg"},
		"clean_value": {0.5, nil},
	})

	var buf bytes.Buffer
	if err := writeCSV(tbl, &buf); err != nil {
		t.Fatalf("writeCSV failed: %v", err)
	}

	want := "weight,clean_value\n500g,0.5\n10kg,\n"
	if buf.String() != want {
		t.Errorf("got %q, want %q", buf.String(), want)
	}
}

func TestReadCSVEmpty(t *testing.T) {
	if _, err := readCSV(strings.NewReader("")); err == nil {
		t.Error("expected error for empty CSV")
	}
}
