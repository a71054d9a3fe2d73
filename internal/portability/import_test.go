package portability_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saadjs/bitelog/internal/fsgateway"
	"github.com/saadjs/bitelog/internal/model"
	"github.com/saadjs/bitelog/internal/portability"
)

const legacyHeader = "date,meal_type,brand_name,product_name,portion,calories,carbs,fat,protein"

func writeFile(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "in.csv")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
	return path
}

func TestImportLegacyRows(t *testing.T) {
	t.Parallel()
	path := writeFile(t,
		legacyHeader,
		`2026-01-02,breakfast,Fage,Greek Yogurt,170 g,150,10,5,15`,
		``,
		`2026-01-02,Snacks,"Ben ""&"" Jerry's","Chunky, Monkey",pint,"1,200",30,"10",5`,
	)
	sink := &memStore{}
	res, err := portability.ImportCSV(context.Background(), fsgateway.OS{}, path, sink, portability.ImportOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Imported)
	assert.Equal(t, 2, res.Total)
	assert.False(t, res.Cancelled)
	assert.NotEmpty(t, res.BatchID)

	require.Len(t, sink.entries, 2)
	first := sink.entries[0]
	assert.Equal(t, model.MealBreakfast, first.MealType)
	assert.Equal(t, 2026, first.ConsumedAt.Year())
	assert.Equal(t, 2, first.ConsumedAt.Day())
	assert.Equal(t, 1.0, first.Servings)
	assert.Equal(t, "170 g", first.Snapshot.PortionUnit)
	assert.Equal(t, 10.0, first.CarbsG())
	assert.Zero(t, first.FiberG())
	assert.Nil(t, first.CatalogID)
	assert.Equal(t, res.BatchID, first.ImportBatch)

	second := sink.entries[1]
	assert.Equal(t, model.MealSnack, second.MealType)
	assert.Equal(t, `Ben "&" Jerry's`, second.Snapshot.Brand)
	assert.Equal(t, "Chunky, Monkey", second.Snapshot.Product)
	assert.Equal(t, 1200.0, second.Calories())
	assert.Equal(t, 10.0, second.FatG())
}

func TestImportShortRowKeepsEarlierRows(t *testing.T) {
	t.Parallel()
	path := writeFile(t,
		legacyHeader,
		`2026-01-02,lunch,A,Soup,bowl,200,20,5,10`,
		`2026-01-02,lunch,A,Bread,slice,90,15,1,3`,
		`2026-01-03,dinner,A,Rice,cup,200,45,0`,
		`2026-01-03,dinner,A,Fish,fillet,250,0,12,30`,
	)
	sink := &memStore{}
	res, err := portability.ImportCSV(context.Background(), fsgateway.OS{}, path, sink, portability.ImportOptions{})
	require.Error(t, err)
	assert.True(t, portability.IsFormatError(err))
	assert.False(t, portability.IsNumericError(err))

	var de *portability.DataError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, 4, de.Line)
	assert.ErrorIs(t, err, portability.ErrInvalidFormat)
	assert.Contains(t, err.Error(), "line 4")

	assert.Equal(t, 2, res.Imported)
	require.Len(t, sink.entries, 2)
	assert.Equal(t, "Bread", sink.entries[1].Snapshot.Product)
}

func TestImportAtomicModeCommitsNothingOnError(t *testing.T) {
	t.Parallel()
	path := writeFile(t,
		legacyHeader,
		`2026-01-02,lunch,A,Soup,bowl,200,20,5,10`,
		`2026-01-03,dinner,A,Rice,cup,two hundred,45,0,4`,
	)
	sink := &memStore{}
	res, err := portability.ImportCSV(context.Background(), fsgateway.OS{}, path, sink, portability.ImportOptions{Mode: portability.ImportModeAtomic})
	require.Error(t, err)
	assert.True(t, portability.IsNumericError(err))
	assert.Zero(t, res.Imported)
	assert.Empty(t, sink.entries)

	path = writeFile(t, legacyHeader, `2026-01-02,lunch,A,Soup,bowl,200,20,5,10`)
	res, err = portability.ImportCSV(context.Background(), fsgateway.OS{}, path, sink, portability.ImportOptions{Mode: portability.ImportModeAtomic, BatchID: "fixed"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Imported)
	assert.Equal(t, "fixed", sink.entries[0].ImportBatch)
}

func TestImportValidationOrder(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		row    string
		kind   error
		column string
	}{
		{"columns checked before date", `not-a-date,lunch,A,B,C,1,2,3`, portability.ErrInvalidFormat, ""},
		{"date", `02/01/2026,lunch,A,B,C,1,2,3,4`, portability.ErrInvalidDate, "date"},
		{"meal before numbers", `2026-01-02,brunch,A,B,C,x,2,3,4`, portability.ErrInvalidMealType, "meal_type"},
		{"calories", `2026-01-02,lunch,A,B,C,x,2,3,4`, portability.ErrInvalidNumeric, "calories"},
		{"protein", `2026-01-02,lunch,A,B,C,1,2,3,`, portability.ErrInvalidNumeric, "protein"},
		{"negative", `2026-01-02,lunch,A,B,C,1,-2,3,4`, portability.ErrInvalidNumeric, "carbs"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			path := writeFile(t, legacyHeader, tc.row)
			_, err := portability.ImportCSV(context.Background(), fsgateway.OS{}, path, &memStore{}, portability.ImportOptions{})
			var de *portability.DataError
			require.ErrorAs(t, err, &de)
			assert.ErrorIs(t, err, tc.kind)
			assert.Equal(t, tc.column, de.Column)
			assert.Equal(t, 2, de.Line)
		})
	}
}

func TestImportProgressCancel(t *testing.T) {
	t.Parallel()
	lines := []string{legacyHeader}
	for i := 0; i < 5; i++ {
		lines = append(lines, `2026-01-02,lunch,A,Soup,bowl,200,20,5,10`)
	}
	path := writeFile(t, lines...)

	var seen []portability.Progress
	sink := &memStore{}
	res, err := portability.ImportCSV(context.Background(), fsgateway.OS{}, path, sink, portability.ImportOptions{
		Progress: func(p portability.Progress) bool {
			seen = append(seen, p)
			return p.Current == 2
		},
	})
	require.NoError(t, err)
	assert.True(t, res.Cancelled)
	assert.Equal(t, 2, res.Imported)
	assert.Len(t, sink.entries, 2)
	require.Len(t, seen, 2)
	assert.Equal(t, 5, seen[1].Total)
	assert.InDelta(t, 0.4, seen[1].Fraction, 1e-9)
}

func TestImportErrors(t *testing.T) {
	t.Parallel()

	_, err := portability.ImportCSV(context.Background(), fsgateway.OS{}, filepath.Join(t.TempDir(), "nope.csv"), &memStore{}, portability.ImportOptions{})
	var ioErr *fsgateway.IOError
	assert.ErrorAs(t, err, &ioErr)

	path := writeFile(t, legacyHeader)
	_, err = portability.ImportCSV(context.Background(), fsgateway.OS{}, path, &memStore{}, portability.ImportOptions{Mode: "bulk"})
	assert.Error(t, err)

	res, err := portability.ImportCSV(context.Background(), fsgateway.OS{}, path, &memStore{}, portability.ImportOptions{})
	require.NoError(t, err)
	assert.Zero(t, res.Total)
}

func TestImportExportShape(t *testing.T) {
	t.Parallel()
	path := writeFile(t,
		strings.Join(portability.ExportColumns, ","),
		`2026-01-02,dinner,A,Pasta,320,40.5,2.5,8,12,1.5,plate`,
		`2026-01-02,dinner,A,Pasta,320,2,2.5,8,12,1,plate`,
	)
	sink := &memStore{}
	_, err := portability.ImportCSV(context.Background(), fsgateway.OS{}, path, sink, portability.ImportOptions{})
	var de *portability.DataError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, 3, de.Line)
	assert.Equal(t, "dietary_fiber", de.Column)

	require.Len(t, sink.entries, 1)
	e := sink.entries[0]
	assert.Equal(t, 1.5, e.Servings)
	assert.Equal(t, "plate", e.Snapshot.PortionUnit)
	assert.Equal(t, 38.0, e.Snapshot.NetCarbsG)
	assert.Equal(t, 40.5*1.5, e.CarbsG())
	assert.Equal(t, 480.0, e.Calories())
}

// cancellingSink cancels the import context while storing row cancelAt.
type cancellingSink struct {
	memStore
	cancel   context.CancelFunc
	cancelAt int
}

func (s *cancellingSink) InsertLogEntry(ctx context.Context, e model.LogEntry) error {
	if len(s.entries)+1 == s.cancelAt {
		s.cancel()
		return ctx.Err()
	}
	return s.memStore.InsertLogEntry(ctx, e)
}

func (s *cancellingSink) InsertLogEntries(ctx context.Context, _ []model.LogEntry) error {
	s.cancel()
	return ctx.Err()
}

func TestImportCancelledBeforeRead(t *testing.T) {
	t.Parallel()
	path := writeFile(t, legacyHeader, `2026-01-02,lunch,A,Soup,bowl,200,20,5,10`)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sink := &memStore{}
	res, err := portability.ImportCSV(ctx, fsgateway.OS{}, path, sink, portability.ImportOptions{})
	require.NoError(t, err)
	assert.True(t, res.Cancelled)
	assert.Zero(t, res.Imported)
	assert.NotEmpty(t, res.BatchID)
	assert.Empty(t, sink.entries)
}

func TestImportCancelledWhileStoring(t *testing.T) {
	t.Parallel()
	lines := []string{legacyHeader}
	for i := 0; i < 4; i++ {
		lines = append(lines, `2026-01-02,lunch,A,Soup,bowl,200,20,5,10`)
	}
	path := writeFile(t, lines...)

	for _, mode := range []portability.ImportMode{portability.ImportModeRow, portability.ImportModeAtomic} {
		ctx, cancel := context.WithCancel(context.Background())
		sink := &cancellingSink{cancel: cancel, cancelAt: 3}
		res, err := portability.ImportCSV(ctx, fsgateway.OS{}, path, sink, portability.ImportOptions{Mode: mode})
		require.NoError(t, err, mode)
		assert.False(t, errors.Is(err, context.Canceled))
		assert.True(t, res.Cancelled, mode)
		if mode == portability.ImportModeRow {
			assert.Equal(t, 2, res.Imported)
			assert.Len(t, sink.entries, 2)
		} else {
			assert.Zero(t, res.Imported)
			assert.Empty(t, sink.entries)
		}
		cancel()
	}
}

func TestImportNetCarbsReadBackExactly(t *testing.T) {
	t.Parallel()
	// 0.1 net + 0.2 fiber exports as 0.30000000000000004 total carbs.
	path := writeFile(t,
		strings.Join(portability.ExportColumns, ","),
		`2026-01-02,snack,,Crackers,50,0.30000000000000004,0.2,1,1,1,pack`,
	)
	sink := &memStore{}
	_, err := portability.ImportCSV(context.Background(), fsgateway.OS{}, path, sink, portability.ImportOptions{})
	require.NoError(t, err)
	require.Len(t, sink.entries, 1)
	assert.Equal(t, 0.1, sink.entries[0].Snapshot.NetCarbsG)
	assert.Equal(t, 0.2, sink.entries[0].Snapshot.FiberG)
}
