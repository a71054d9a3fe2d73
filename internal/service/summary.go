package service

import (
	"database/sql"
	"time"

	"github.com/saadjs/bitelog/internal/model"
)

// NutritionGoals are daily targets. Zero means no target.
type NutritionGoals struct {
	Calories float64 `json:"calories"`
	ProteinG float64 `json:"protein_g"`
	CarbsG   float64 `json:"carbs_g"`
	FatG     float64 `json:"fat_g"`
}

func (g NutritionGoals) set() bool {
	return g.Calories > 0 || g.ProteinG > 0 || g.CarbsG > 0 || g.FatG > 0
}

type NutrientTotals struct {
	Entries   int     `json:"entries"`
	Calories  float64 `json:"calories"`
	ProteinG  float64 `json:"protein_g"`
	FatG      float64 `json:"fat_g"`
	NetCarbsG float64 `json:"net_carbs_g"`
	FiberG    float64 `json:"fiber_g"`
	CarbsG    float64 `json:"carbs_g"`
}

func (t *NutrientTotals) add(e model.LogEntry) {
	t.Entries++
	t.Calories += e.Calories()
	t.ProteinG += e.ProteinG()
	t.FatG += e.FatG()
	t.NetCarbsG += e.NetCarbsG()
	t.FiberG += e.FiberG()
	t.CarbsG += e.CarbsG()
}

type MealTotals struct {
	MealType model.MealType `json:"meal_type"`
	NutrientTotals
}

type DaySummary struct {
	Date     string         `json:"date"`
	Meals    []MealTotals   `json:"meals"`
	Total    NutrientTotals `json:"total"`
	HasGoals bool           `json:"has_goals"`
	Goals    NutritionGoals `json:"goals"`
	// Remaining is goal minus intake; negative means over target.
	RemainingCalories float64 `json:"remaining_calories,omitempty"`
	RemainingProteinG float64 `json:"remaining_protein_g,omitempty"`
	RemainingCarbsG   float64 `json:"remaining_carbs_g,omitempty"`
	RemainingFatG     float64 `json:"remaining_fat_g,omitempty"`
}

// DailySummary totals one local calendar day per meal and overall.
func DailySummary(db *sql.DB, day time.Time, goals NutritionGoals) (*DaySummary, error) {
	start, next := dayBounds(day)
	entries, err := QueryLogEntries(db, LogQuery{From: start, To: next})
	if err != nil {
		return nil, err
	}

	byMeal := make(map[model.MealType]*NutrientTotals, len(model.MealTypes))
	for _, m := range model.MealTypes {
		byMeal[m] = &NutrientTotals{}
	}
	summary := &DaySummary{Date: start.Format("2006-01-02")}
	for _, e := range entries {
		if t, ok := byMeal[e.MealType]; ok {
			t.add(e)
		}
		summary.Total.add(e)
	}
	for _, m := range model.MealTypes {
		summary.Meals = append(summary.Meals, MealTotals{MealType: m, NutrientTotals: *byMeal[m]})
	}

	if goals.set() {
		summary.HasGoals = true
		summary.Goals = goals
		summary.RemainingCalories = goals.Calories - summary.Total.Calories
		summary.RemainingProteinG = goals.ProteinG - summary.Total.ProteinG
		summary.RemainingCarbsG = goals.CarbsG - summary.Total.CarbsG
		summary.RemainingFatG = goals.FatG - summary.Total.FatG
	}
	return summary, nil
}
