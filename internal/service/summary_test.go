package service_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saadjs/bitelog/internal/model"
	"github.com/saadjs/bitelog/internal/service"
)

func TestDailySummary(t *testing.T) {
	t.Parallel()
	sqldb := newTestDB(t)
	food := mustCatalog(t, sqldb, yogurt())

	day := time.Date(2026, 2, 20, 0, 0, 0, 0, time.Local)
	mustLogLinked(t, sqldb, food.ID, day.Add(12*time.Hour), 2) // lunch
	_, err := service.CreateLogEntry(sqldb, service.CreateLogEntryInput{
		ConsumedAt: day.Add(7 * time.Hour),
		MealType:   model.MealBreakfast,
		Servings:   1,
		Snapshot:   &model.NutritionSnapshot{Product: "Toast", Calories: 100, ProteinG: 4, FatG: 1, NetCarbsG: 18, FiberG: 2},
	})
	require.NoError(t, err)
	mustLogLinked(t, sqldb, food.ID, day.AddDate(0, 0, 1).Add(time.Hour), 1)

	got, err := service.DailySummary(sqldb, day.Add(15*time.Hour), service.NutritionGoals{Calories: 2000, ProteinG: 100})
	require.NoError(t, err)
	assert.Equal(t, "2026-02-20", got.Date)
	assert.Equal(t, 2, got.Total.Entries)
	assert.Equal(t, 400.0, got.Total.Calories)
	assert.Equal(t, 34.0, got.Total.ProteinG)
	assert.Equal(t, 40.0, got.Total.CarbsG)
	assert.Equal(t, got.Total.NetCarbsG+got.Total.FiberG, got.Total.CarbsG)

	require.Len(t, got.Meals, len(model.MealTypes))
	assert.Equal(t, model.MealBreakfast, got.Meals[0].MealType)
	assert.Equal(t, 100.0, got.Meals[0].Calories)
	assert.Equal(t, 300.0, got.Meals[1].Calories)
	assert.Zero(t, got.Meals[3].Entries)

	assert.True(t, got.HasGoals)
	assert.Equal(t, 1600.0, got.RemainingCalories)
	assert.Equal(t, 66.0, got.RemainingProteinG)

	empty, err := service.DailySummary(sqldb, day.AddDate(0, 0, 5), service.NutritionGoals{})
	require.NoError(t, err)
	assert.False(t, empty.HasGoals)
	assert.Zero(t, empty.Total.Entries)
}
