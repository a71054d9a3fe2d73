package service

import (
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// DedupKey identifies nutritionally identical catalog entries. Text fields
// are case-folded and whitespace-collapsed; numbers use two decimals.
// Text parts are quoted so no two distinct tuples share a key.
func DedupKey(brand, product string, calories, fatG, proteinG, netCarbsG float64, portionUnit string) string {
	parts := []string{
		strconv.Quote(normalizeText(brand)),
		strconv.Quote(normalizeText(product)),
		formatKeyNumber(calories),
		formatKeyNumber(fatG),
		formatKeyNumber(proteinG),
		formatKeyNumber(netCarbsG),
		strconv.Quote(normalizeText(portionUnit)),
	}
	return strings.Join(parts, "|")
}

// normalizeText folds case (Unicode-aware), composes to NFC and collapses
// runs of whitespace.
func normalizeText(s string) string {
	s = norm.NFC.String(s)
	s = cases.Fold().String(s)
	return strings.Join(strings.Fields(s), " ")
}

func formatKeyNumber(v float64) string {
	s := strconv.FormatFloat(v, 'f', 2, 64)
	if s == "-0.00" {
		return "0.00"
	}
	return s
}
