package privacy

import (
	"context"
	"strings"
	"testing"

	"github.com/loclean/loclean/pkg/table"
)

func newTestScrubber(t *testing.T, opts ...ScrubberOption) *Scrubber {
	t.Helper()
	s, err := NewScrubber(opts...)
	if err != nil {
		t.Fatalf("failed to build scrubber: %v", err)
	}
	return s
}

func TestScrubStringMask(t *testing.T) {
	s := newTestScrubber(t)

	got, err := s.ScrubString(context.Background(), "Contact 0909123456", []string{TypePhone}, ModeMask)
	if err != nil {
		t.Fatalf("ScrubString failed: %v", err)
	}
	if got != "Contact [PHONE]" {
		t.Errorf("got %q, want %q", got, "Contact [PHONE]")
	}
	if strings.Contains(got, "0909123456") {
		t.Error("original digits leaked into output")
	}
}

func TestScrubStringMaskMultipleTypes(t *testing.T) {
	s := newTestScrubber(t)

	text := "mail nam@gmail.com or call 0909123456"
	got, err := s.ScrubString(context.Background(), text, []string{TypeEmail, TypePhone}, ModeMask)
	if err != nil {
		t.Fatal(err)
	}
	if got != "mail [EMAIL] or call [PHONE]" {
		t.Errorf("got %q", got)
	}
}

func TestScrubStringFake(t *testing.T) {
	s := newTestScrubber(t, WithSeed(11))

	got, err := s.ScrubString(context.Background(), "Contact 0909123456", []string{TypePhone}, ModeFake)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(got, "0909123456") {
		t.Errorf("original digits leaked into output: %q", got)
	}
	if strings.Contains(got, "[PHONE]") {
		t.Errorf("fake mode produced a mask token: %q", got)
	}
	if !strings.HasPrefix(got, "Contact ") {
		t.Errorf("surrounding text damaged: %q", got)
	}
}

func TestScrubStringFakeReproducible(t *testing.T) {
	text := "mail nam@gmail.com"

	a := newTestScrubber(t, WithSeed(42))
	b := newTestScrubber(t, WithSeed(42))

	first, err := a.ScrubString(context.Background(), text, []string{TypeEmail}, ModeFake)
	if err != nil {
		t.Fatal(err)
	}
	second, err := b.ScrubString(context.Background(), text, []string{TypeEmail}, ModeFake)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Errorf("same seed gave %q and %q", first, second)
	}
}

func TestScrubStringNoEntities(t *testing.T) {
	s := newTestScrubber(t)

	text := "nothing sensitive here"
	got, err := s.ScrubString(context.Background(), text, []string{TypeEmail, TypePhone}, ModeMask)
	if err != nil {
		t.Fatal(err)
	}
	if got != text {
		t.Errorf("clean text was modified: %q", got)
	}
}

func TestScrubStringValidation(t *testing.T) {
	s := newTestScrubber(t)

	if _, err := s.ScrubString(context.Background(), "x", nil, ModeMask); err == nil {
		t.Error("expected error for empty strategies")
	}
	if _, err := s.ScrubString(context.Background(), "x", []string{"dna"}, ModeMask); err == nil {
		t.Error("expected error for unknown strategy")
	}
	if _, err := s.ScrubString(context.Background(), "x", []string{TypePerson}, ModeMask); err == nil {
		t.Error("expected error for LLM strategy without an engine")
	}
	if _, err := s.ScrubString(context.Background(), "x", []string{TypeEmail}, Mode("shred")); err == nil {
		t.Error("expected error for unknown mode")
	}
}

func TestScrubTable(t *testing.T) {
	tbl, err := table.New([]string{"contact", "id"}, map[string][]any{
		"contact": {"call 0909123456", nil, "call 0909123456", "clean"},
		"id":      {1.0, 2.0, 3.0, 4.0},
	})
	if err != nil {
		t.Fatal(err)
	}

	s := newTestScrubber(t)
	out, err := s.ScrubTable(context.Background(), tbl, "contact", []string{TypePhone}, ModeMask)
	if err != nil {
		t.Fatal(err)
	}

	contact, _ := out.Column("contact")
	if contact[0] != "call [PHONE]" || contact[2] != "call [PHONE]" {
		t.Errorf("contact = %v", contact)
	}
	if contact[1] != nil {
		t.Errorf("null cell was touched: %v", contact[1])
	}
	if contact[3] != "clean" {
		t.Errorf("clean cell was modified: %v", contact[3])
	}

	// Other columns untouched.
	id, _ := out.Column("id")
	if id[0] != 1.0 || id[3] != 4.0 {
		t.Errorf("id = %v", id)
	}
}

func TestScrubTableMissingColumn(t *testing.T) {
	tbl, err := table.New([]string{"a"}, map[string][]any{"a": {"x"}})
	if err != nil {
		t.Fatal(err)
	}

	s := newTestScrubber(t)
	if _, err := s.ScrubTable(context.Background(), tbl, "nope", []string{TypeEmail}, ModeMask); err == nil {
		t.Error("expected an error for a missing column")
	}
}
