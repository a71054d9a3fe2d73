package portability

import (
	"strconv"
	"strings"
)

// EscapeField quotes a CSV text field when it contains a quote, a comma or
// a line break, doubling any quotes inside. Other values pass through
// unchanged, so plain names keep their leading and trailing spaces.
func EscapeField(s string) string {
	if !strings.ContainsAny(s, "\",\n\r") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// formatNumber writes v with the fewest digits that read back exactly.
func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
