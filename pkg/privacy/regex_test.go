package privacy

import (
	"testing"
)

func findType(entities []Entity, entityType string) []Entity {
	var out []Entity
	for _, e := range entities {
		if e.Type == entityType {
			out = append(out, e)
		}
	}
	return out
}

func TestDetectRegexEmail(t *testing.T) {
	got := DetectRegex("reach me at nam@gmail.com or admin@sub.example.co", []string{TypeEmail})
	emails := findType(got, TypeEmail)
	if len(emails) != 2 {
		t.Fatalf("got %d emails, want 2: %v", len(emails), got)
	}
	if emails[0].Value != "nam@gmail.com" {
		t.Errorf("first email = %q", emails[0].Value)
	}
}

func TestDetectRegexPhone(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"Contact 0909123456", "0909123456"},
		{"call +84 909 123 456 now", "+84 909 123 456"},
		{"số 090-912-3456 nhé", "090-912-3456"},
	}

	for _, tt := range tests {
		got := DetectRegex(tt.text, []string{TypePhone})
		phones := findType(got, TypePhone)
		if len(phones) == 0 {
			t.Errorf("no phone found in %q", tt.text)
			continue
		}
		if phones[0].Value != tt.want {
			t.Errorf("phone in %q = %q, want %q", tt.text, phones[0].Value, tt.want)
		}
	}
}

func TestDetectRegexPhoneRejectsShortNumbers(t *testing.T) {
	got := DetectRegex("room 042 1234", []string{TypePhone})
	if phones := findType(got, TypePhone); len(phones) != 0 {
		t.Errorf("matched non-phone digits: %v", phones)
	}
}

func TestDetectRegexCreditCard(t *testing.T) {
	// 4532015112830366 passes Luhn; 4532015112830367 does not.
	got := DetectRegex("card 4532 0151 1283 0366", []string{TypeCreditCard})
	if cards := findType(got, TypeCreditCard); len(cards) != 1 {
		t.Fatalf("valid card not detected: %v", got)
	}

	got = DetectRegex("card 4532 0151 1283 0367", []string{TypeCreditCard})
	if cards := findType(got, TypeCreditCard); len(cards) != 0 {
		t.Errorf("Luhn-invalid card detected: %v", cards)
	}
}

func TestDetectRegexIP(t *testing.T) {
	got := DetectRegex("from 192.168.1.10 and 2001:db8::ff00:42:8329", []string{TypeIP})
	ips := findType(got, TypeIP)
	if len(ips) != 2 {
		t.Fatalf("got %d IPs, want 2: %v", len(ips), got)
	}

	got = DetectRegex("version 999.1.2.3", []string{TypeIP})
	if ips := findType(got, TypeIP); len(ips) != 0 {
		t.Errorf("invalid address detected: %v", ips)
	}
}

func TestDetectRegexUnknownStrategyIgnored(t *testing.T) {
	if got := DetectRegex("nam@gmail.com", []string{"person"}); len(got) != 0 {
		t.Errorf("regex detector handled a non-regex strategy: %v", got)
	}
}
