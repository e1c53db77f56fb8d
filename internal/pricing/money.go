package pricing

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Money values are whole VND. Display form groups thousands with a space
// ("500 000"); parsing accepts grouped input and strips the separators
// before doing arithmetic.

// FormatMoney renders d rounded to a whole amount with space-grouped
// thousands. Negative amounts keep their sign in front of the grouping.
func FormatMoney(d decimal.Decimal) string {
	s := d.Round(0).StringFixed(0)

	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	lead := len(s) % 3
	if lead == 0 {
		lead = 3
	}
	b.WriteString(s[:lead])
	for i := lead; i < len(s); i += 3 {
		b.WriteByte(' ')
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

// ParseMoney turns user-entered money text back into a decimal. Grouping
// characters (spaces, non-breaking spaces, commas) are stripped first.
// Anything that still fails to parse yields zero: the edit forms treat
// invalid numeric input as 0 rather than raising a validation error.
func ParseMoney(s string) decimal.Decimal {
	s = strings.TrimSpace(s)
	replacer := strings.NewReplacer(" ", "", " ", "", ",", "")
	s = replacer.Replace(s)
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d.Round(0)
}
