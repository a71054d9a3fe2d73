package model

import (
	"fmt"
	"strings"
	"time"
)

type MealType string

const (
	MealBreakfast MealType = "breakfast"
	MealLunch     MealType = "lunch"
	MealDinner    MealType = "dinner"
	MealSnack     MealType = "snack"
)

// MealTypes lists every meal type in display order.
var MealTypes = []MealType{MealBreakfast, MealLunch, MealDinner, MealSnack}

func (m MealType) Label() string { return string(m) }

func (m MealType) Valid() bool {
	switch m {
	case MealBreakfast, MealLunch, MealDinner, MealSnack:
		return true
	}
	return false
}

// ParseMealType matches a label case-insensitively. "snacks" is accepted
// for files written by older exports.
func ParseMealType(label string) (MealType, error) {
	v := strings.ToLower(strings.TrimSpace(label))
	if v == "snacks" {
		v = string(MealSnack)
	}
	m := MealType(v)
	if !m.Valid() {
		return "", fmt.Errorf("unknown meal type %q", label)
	}
	return m, nil
}

// NutritionSnapshot is a frozen copy of catalog nutrition values for one
// serving.
type NutritionSnapshot struct {
	Brand       string
	Product     string
	PortionSize float64
	PortionUnit string
	Calories    float64
	ProteinG    float64
	FatG        float64
	NetCarbsG   float64
	FiberG      float64
}

// CarbsG is total carbohydrate: net carbs plus fiber.
func (s NutritionSnapshot) CarbsG() float64 { return s.NetCarbsG + s.FiberG }

type CatalogEntry struct {
	ID          int64
	Brand       string
	Product     string
	PortionSize float64
	PortionUnit string
	Calories    float64
	ProteinG    float64
	FatG        float64
	NetCarbsG   float64
	FiberG      float64
	UsageCount  int
	LastUsedAt  *time.Time
	DedupKey    string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (c CatalogEntry) CarbsG() float64 { return c.NetCarbsG + c.FiberG }

// Snapshot copies the entry's nutrition fields.
func (c CatalogEntry) Snapshot() NutritionSnapshot {
	return NutritionSnapshot{
		Brand:       c.Brand,
		Product:     c.Product,
		PortionSize: c.PortionSize,
		PortionUnit: c.PortionUnit,
		Calories:    c.Calories,
		ProteinG:    c.ProteinG,
		FatG:        c.FatG,
		NetCarbsG:   c.NetCarbsG,
		FiberG:      c.FiberG,
	}
}

// LinkState tells where a log entry takes its nutrition values from.
type LinkState int

const (
	// LinkStandalone entries were never linked (manual snapshot or import).
	LinkStandalone LinkState = iota
	// LinkLinked entries follow their live catalog entry.
	LinkLinked
	// LinkDetached entries lost their catalog entry and use the snapshot.
	LinkDetached
)

func (s LinkState) String() string {
	switch s {
	case LinkLinked:
		return "linked"
	case LinkDetached:
		return "detached"
	default:
		return "standalone"
	}
}

type LogEntry struct {
	ID         int64
	ConsumedAt time.Time
	MealType   MealType
	Servings   float64
	CatalogID  *int64
	// Catalog holds the live catalog values when CatalogID is set and the
	// query loaded them.
	Catalog       *CatalogEntry
	Snapshot      NutritionSnapshot
	MasterDeleted bool
	ImportBatch   string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (e LogEntry) Link() LinkState {
	switch {
	case e.CatalogID != nil:
		return LinkLinked
	case e.MasterDeleted:
		return LinkDetached
	default:
		return LinkStandalone
	}
}

// Nutrition returns per-serving values: the live catalog entry when linked,
// the snapshot otherwise.
func (e LogEntry) Nutrition() NutritionSnapshot {
	if e.Link() == LinkLinked && e.Catalog != nil {
		return e.Catalog.Snapshot()
	}
	return e.Snapshot
}

func (e LogEntry) Calories() float64  { return e.Nutrition().Calories * e.Servings }
func (e LogEntry) ProteinG() float64  { return e.Nutrition().ProteinG * e.Servings }
func (e LogEntry) FatG() float64      { return e.Nutrition().FatG * e.Servings }
func (e LogEntry) NetCarbsG() float64 { return e.Nutrition().NetCarbsG * e.Servings }
func (e LogEntry) FiberG() float64    { return e.Nutrition().FiberG * e.Servings }
func (e LogEntry) CarbsG() float64    { return e.Nutrition().CarbsG() * e.Servings }
