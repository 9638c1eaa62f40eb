package tenant

import (
	"errors"
	"strings"
)

// ErrMalformedNumber indicates input that cannot be normalized to E.164
// without guessing.
var ErrMalformedNumber = errors.New("tenant: malformed phone number")

// NormalizeE164 converts a dialed number into canonical +<country><digits>
// form for table comparisons. Ten-digit NANP numbers get a +1 prefix;
// eleven digits with a leading 1 get a plus; anything that carried an
// explicit + keeps its country code. Everything else is rejected rather
// than guessed at.
func NormalizeE164(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", ErrMalformedNumber
	}
	hadPlus := strings.HasPrefix(trimmed, "+")

	var digits strings.Builder
	for _, r := range trimmed {
		switch {
		case r >= '0' && r <= '9':
			digits.WriteRune(r)
		case r == '+' || r == ' ' || r == '-' || r == '(' || r == ')' || r == '.':
			// formatting only
		default:
			return "", ErrMalformedNumber
		}
	}
	d := digits.String()

	switch {
	case len(d) == 10:
		return "+1" + d, nil
	case len(d) == 11 && d[0] == '1':
		return "+" + d, nil
	case hadPlus && len(d) >= 8 && len(d) <= 15:
		return "+" + d, nil
	default:
		return "", ErrMalformedNumber
	}
}

// Digits strips the plus from a normalized number.
func Digits(e164 string) string {
	return strings.TrimPrefix(e164, "+")
}
