package privacy

import (
	"net"
	"regexp"
	"strings"
)

// regexPatterns holds the detectors per strategy. A strategy may carry
// several patterns; matches are validated by the optional check
// function before being accepted.
var regexPatterns = map[string][]patternSpec{
	TypeEmail: {
		{re: regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)},
	},
	TypePhone: {
		// International form, +84 and friends.
		{re: regexp.MustCompile(`\+\d{1,3}[\s.-]?\d{2,4}(?:[\s.-]?\d{2,4}){1,3}`), check: checkPhone},
		// Local form with leading zero (e.g. 0909123456, 090 912 3456).
		{re: regexp.MustCompile(`\b0\d{1,2}(?:[\s.-]?\d{2,4}){2,3}\b`), check: checkPhone},
	},
	TypeCreditCard: {
		{re: regexp.MustCompile(`\b\d{4}[\s-]?\d{4}[\s-]?\d{4}[\s-]?\d{1,4}\b`), check: checkCreditCard},
	},
	TypeIP: {
		{re: regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`), check: checkIP},
		// Loose candidate covering compressed "::" forms; ParseIP is
		// the real gate.
		{re: regexp.MustCompile(`\b[0-9a-fA-F]{1,4}(?::[0-9a-fA-F]{0,4}){2,7}`), check: checkIP},
	},
}

type patternSpec struct {
	re    *regexp.Regexp
	check func(string) bool
}

// RegexStrategies returns the strategies the regex detector covers.
func RegexStrategies() []string {
	return []string{TypeEmail, TypePhone, TypeCreditCard, TypeIP}
}

// IsRegexStrategy reports whether the strategy is regex-backed.
func IsRegexStrategy(strategy string) bool {
	_, ok := regexPatterns[strategy]
	return ok
}

// DetectRegex runs the regex detectors for the given strategies over
// the text and returns raw (possibly overlapping) entities.
func DetectRegex(text string, strategies []string) []Entity {
	var out []Entity
	for _, strategy := range strategies {
		specs, ok := regexPatterns[strategy]
		if !ok {
			continue
		}
		for _, spec := range specs {
			for _, loc := range spec.re.FindAllStringIndex(text, -1) {
				value := text[loc[0]:loc[1]]
				if spec.check != nil && !spec.check(value) {
					continue
				}
				out = append(out, Entity{
					Type:  strategy,
					Value: value,
					Start: loc[0],
					End:   loc[1],
				})
			}
		}
	}
	return out
}

func digitsOf(s string) string {
	var sb strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// checkPhone requires a plausible digit count after stripping
// separators.
func checkPhone(s string) bool {
	n := len(digitsOf(s))
	return n >= 9 && n <= 13
}

// checkCreditCard applies the Luhn checksum to the stripped digits.
func checkCreditCard(s string) bool {
	digits := digitsOf(s)
	if len(digits) < 13 || len(digits) > 19 {
		return false
	}
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := int(digits[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

// checkIP rejects regex matches that are not real addresses
// (e.g. 999.1.1.1).
func checkIP(s string) bool {
	return net.ParseIP(s) != nil
}
