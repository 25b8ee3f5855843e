package normalize

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Amounts are held to the BigQuery NUMERIC range: 29 integer digits and
// 9 fractional digits.
const (
	maxIntegerDigits = 29
	maxScale         = 9
)

var thousandsPattern = regexp.MustCompile(`^\d{1,3}(,\d{3})+(\.\d+)?$`)

var truthy = map[string]bool{
	"true": true,
	"1":    true,
	"t":    true,
	"y":    true,
	"yes":  true,
}

// ParseAmount parses a decimal amount. A leading sign, a "$" symbol and
// comma thousands separators are tolerated. Anything else is absent.
func ParseAmount(s string) decimal.NullDecimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.NullDecimal{}
	}

	negative := false
	switch s[0] {
	case '-':
		negative = true
		s = s[1:]
	case '+':
		s = s[1:]
	}
	s = strings.TrimSpace(strings.TrimPrefix(s, "$"))
	if s == "" || s[0] == '-' || s[0] == '+' {
		return decimal.NullDecimal{}
	}

	if strings.Contains(s, ",") {
		if !thousandsPattern.MatchString(s) {
			return decimal.NullDecimal{}
		}
		s = strings.ReplaceAll(s, ",", "")
	}

	d, err := decimal.NewFromString(s)
	if err != nil || !inRange(d) {
		return decimal.NullDecimal{}
	}
	if d.IsZero() {
		d = decimal.Zero
	}
	if negative {
		d = d.Neg()
	}
	return decimal.NewNullDecimal(d)
}

// inRange reports whether d fits maxIntegerDigits and maxScale. It looks at
// the coefficient and exponent only, so huge exponents are never expanded.
func inRange(d decimal.Decimal) bool {
	coef := d.Coefficient()
	if coef.Sign() == 0 {
		return true
	}
	exp := int64(d.Exponent())
	if int64(len(coef.Text(10)))+exp > maxIntegerDigits {
		return false
	}
	if exp >= -maxScale {
		return true
	}
	// Trailing zeros beyond maxScale are fine.
	return len(strings.TrimRight(coef.Text(10), "0")) <= len(coef.Text(10))-int(-exp-maxScale)
}

// ParseBool reports whether s is one of true, 1, t, y, yes (case-insensitive).
func ParseBool(s string) bool {
	return truthy[strings.ToLower(strings.TrimSpace(s))]
}
