package model_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saadjs/bitelog/internal/model"
)

func TestParseMealType(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]model.MealType{
		"breakfast": model.MealBreakfast,
		" Lunch ":   model.MealLunch,
		"DINNER":    model.MealDinner,
		"snack":     model.MealSnack,
		"snacks":    model.MealSnack,
	} {
		got, err := model.ParseMealType(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := model.ParseMealType("brunch")
	assert.Error(t, err)
}

func TestLogEntryResolvesLiveCatalogFirst(t *testing.T) {
	t.Parallel()

	id := int64(4)
	e := model.LogEntry{
		Servings:  2,
		CatalogID: &id,
		Catalog:   &model.CatalogEntry{ID: id, Calories: 120, NetCarbsG: 10, FiberG: 3},
		Snapshot:  model.NutritionSnapshot{Calories: 100, NetCarbsG: 8, FiberG: 2},
	}
	assert.Equal(t, model.LinkLinked, e.Link())
	assert.Equal(t, 240.0, e.Calories())
	assert.Equal(t, 26.0, e.CarbsG())
	assert.Equal(t, e.NetCarbsG()+e.FiberG(), e.CarbsG())

	e.CatalogID = nil
	e.Catalog = nil
	e.MasterDeleted = true
	assert.Equal(t, model.LinkDetached, e.Link())
	assert.Equal(t, 200.0, e.Calories())
	assert.Equal(t, 20.0, e.CarbsG())
	assert.Equal(t, e.NetCarbsG()+e.FiberG(), e.CarbsG())
}

func TestStandaloneLinkState(t *testing.T) {
	t.Parallel()

	e := model.LogEntry{Servings: 1, Snapshot: model.NutritionSnapshot{Calories: 50}}
	assert.Equal(t, model.LinkStandalone, e.Link())
	assert.Equal(t, "standalone", e.Link().String())
	assert.Equal(t, 50.0, e.Calories())
}
