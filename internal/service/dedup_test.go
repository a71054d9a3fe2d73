package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupKeyEqualForNormalizedProfiles(t *testing.T) {
	t.Parallel()

	a := DedupKey("Fage", "Greek Yogurt", 150, 5, 15, 8, "g")
	b := DedupKey("  FAGE", "greek\tyogurt ", 150.001, 5.0, 15, 8.004, "G")
	assert.Equal(t, a, b)

	// Unicode folding and composition.
	assert.Equal(t,
		DedupKey("Müller", "STRASSE", 1, 1, 1, 1, "g"),
		DedupKey("müller", "straße", 1, 1, 1, 1, "g"),
	)
	assert.Equal(t, DedupKey("", "x", 0, 0, 0, 0, ""), DedupKey("", "x", -0.0001, 0, 0, 0, ""))
}

func TestDedupKeyDiffersOnEachField(t *testing.T) {
	t.Parallel()

	base := DedupKey("Fage", "Greek Yogurt", 150, 5, 15, 8, "g")
	for name, key := range map[string]string{
		"brand":     DedupKey("Chobani", "Greek Yogurt", 150, 5, 15, 8, "g"),
		"product":   DedupKey("Fage", "Skyr", 150, 5, 15, 8, "g"),
		"calories":  DedupKey("Fage", "Greek Yogurt", 151, 5, 15, 8, "g"),
		"fat":       DedupKey("Fage", "Greek Yogurt", 150, 5.01, 15, 8, "g"),
		"protein":   DedupKey("Fage", "Greek Yogurt", 150, 5, 16, 8, "g"),
		"net carbs": DedupKey("Fage", "Greek Yogurt", 150, 5, 15, 9, "g"),
		"unit":      DedupKey("Fage", "Greek Yogurt", 150, 5, 15, 8, "cup"),
	} {
		assert.NotEqual(t, base, key, name)
	}

	// A separator inside a text field cannot forge another tuple.
	assert.NotEqual(t,
		DedupKey("a|b", "c", 1, 1, 1, 1, "g"),
		DedupKey("a", "b|c", 1, 1, 1, 1, "g"),
	)
}

func TestNormalizeText(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "greek yogurt", normalizeText("  Greek \n  YOGURT "))
	assert.Equal(t, "", normalizeText("   "))
}

func TestFormatKeyNumberFixedTwoDecimals(t *testing.T) {
	assert.Equal(t, "150.00", formatKeyNumber(150))
	assert.Equal(t, "0.10", formatKeyNumber(0.1))
	assert.Equal(t, "8.00", formatKeyNumber(8.004))
	assert.Equal(t, "0.00", formatKeyNumber(-0.001))
}
