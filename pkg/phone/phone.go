// Package phone canonicalizes Brazilian phone numbers into a comparable key.
//
// Normalize is deliberately heuristic rather than a strict E.164 parser:
// numbers arrive from checkout forms and messenger rosters in wildly mixed
// formats, and the matching layer compensates for the remaining drift with
// substring containment.
package phone

import "strings"

// Normalize strips formatting and reduces a raw phone string to local
// Brazilian digits. The empty string stays empty. Numbers carrying the "55"
// country code with more than 11 digits lose the prefix, a single leading
// zero is dropped, and 10-digit legacy mobiles gain the modern ninth digit
// after the area code.
func Normalize(raw string) string {
	digits := stripNonDigits(raw)
	if digits == "" {
		return ""
	}

	if strings.HasPrefix(digits, "55") && len(digits) > 11 {
		digits = digits[2:]
	}

	digits = strings.TrimPrefix(digits, "0")

	if len(digits) == 10 {
		digits = digits[:2] + "9" + digits[2:]
	}

	return digits
}

func stripNonDigits(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
