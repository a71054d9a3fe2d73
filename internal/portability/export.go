// Package portability moves log entries in and out of flat files: CSV in
// both directions and XLSX for export.
package portability

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/saadjs/bitelog/internal/errors"
	"github.com/saadjs/bitelog/internal/fsgateway"
	"github.com/saadjs/bitelog/internal/model"
)

// DefaultProgressEvery is the export progress cadence in rows.
const DefaultProgressEvery = 10

// ExportColumns is the header written by every export.
var ExportColumns = []string{
	"date", "meal_type", "brand_name", "product_name",
	"calories", "carbs", "dietary_fiber", "fat", "protein",
	"portion_amount", "portion_unit",
}

// LegacyColumns is the older nine-column import shape.
var LegacyColumns = []string{
	"date", "meal_type", "brand_name", "product_name", "portion",
	"calories", "carbs", "fat", "protein",
}

// LogSource supplies the entries to export, newest first.
type LogSource interface {
	ExportLogEntries(ctx context.Context) ([]model.LogEntry, error)
}

// Progress is reported while rows are processed.
type Progress struct {
	Fraction float64
	Current  int
	Total    int
}

// ProgressFunc receives progress and returns true to stop after the
// current row.
type ProgressFunc func(Progress) (cancel bool)

type ExportOptions struct {
	// ProgressEvery is the reporting cadence; the last row is always
	// reported. Zero means DefaultProgressEvery.
	ProgressEvery int
	Progress      ProgressFunc
}

type exportRow struct {
	Date        string
	MealType    string
	Brand       string
	Product     string
	Calories    float64
	CarbsG      float64
	FiberG      float64
	FatG        float64
	ProteinG    float64
	Servings    float64
	PortionUnit string
}

func newExportRow(e model.LogEntry) exportRow {
	n := e.Nutrition()
	return exportRow{
		Date:        e.ConsumedAt.In(time.Local).Format("2006-01-02"),
		MealType:    e.MealType.Label(),
		Brand:       singleLine(n.Brand),
		Product:     singleLine(n.Product),
		Calories:    n.Calories,
		CarbsG:      n.CarbsG(),
		FiberG:      n.FiberG,
		FatG:        n.FatG,
		ProteinG:    n.ProteinG,
		Servings:    e.Servings,
		PortionUnit: singleLine(n.PortionUnit),
	}
}

// singleLine replaces line breaks with spaces; the importer reads one row
// per physical line.
func singleLine(s string) string {
	return lineBreaks.Replace(s)
}

var lineBreaks = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")

func (r exportRow) csv() string {
	return strings.Join([]string{
		r.Date,
		r.MealType,
		EscapeField(r.Brand),
		EscapeField(r.Product),
		formatNumber(r.Calories),
		formatNumber(r.CarbsG),
		formatNumber(r.FiberG),
		formatNumber(r.FatG),
		formatNumber(r.ProteinG),
		formatNumber(r.Servings),
		EscapeField(r.PortionUnit),
	}, ",")
}

func (r exportRow) cells() []any {
	return []any{
		r.Date, r.MealType, r.Brand, r.Product,
		r.Calories, r.CarbsG, r.FiberG, r.FatG, r.ProteinG,
		r.Servings, r.PortionUnit,
	}
}

// ExportCSV writes every log entry to dest and returns the number of data
// rows written. Stopping through the progress callback or ctx is not an
// error: the file then holds exactly the rows processed so far.
func ExportCSV(ctx context.Context, gw fsgateway.Gateway, dest string, src LogSource, opts ExportOptions) (int, error) {
	entries, err := loadEntries(ctx, src)
	if err != nil {
		return 0, err
	}

	var b strings.Builder
	b.WriteString(strings.Join(ExportColumns, ","))
	b.WriteByte('\n')
	written, err := exportRows(ctx, entries, opts, func(r exportRow) error {
		b.WriteString(r.csv())
		b.WriteByte('\n')
		return nil
	})
	if err != nil {
		return 0, err
	}

	// A cancelled export still commits its partial file.
	if err := gw.WriteTextAtomically(context.WithoutCancel(ctx), dest, b.String()); err != nil {
		return 0, err
	}
	slog.Info("exported log entries", "format", "csv", "path", dest, "rows", written, "total", len(entries))
	return written, nil
}

// ExportXLSX writes the same rows as ExportCSV to a workbook at dest.
func ExportXLSX(ctx context.Context, dest string, src LogSource, opts ExportOptions) (int, error) {
	entries, err := loadEntries(ctx, src)
	if err != nil {
		return 0, err
	}

	f := excelize.NewFile()
	defer f.Close()
	const sheet = "Log"
	index, err := f.NewSheet(sheet)
	if err != nil {
		return 0, errors.Wrap(err, "create worksheet")
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return 0, errors.Wrap(err, "drop default worksheet")
	}

	header := make([]any, len(ExportColumns))
	for i, c := range ExportColumns {
		header[i] = c
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return 0, errors.Wrap(err, "write header row")
	}
	row := 1
	written, err := exportRows(ctx, entries, opts, func(r exportRow) error {
		row++
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return err
		}
		cells := r.cells()
		return f.SetSheetRow(sheet, cell, &cells)
	})
	if err != nil {
		return 0, errors.Wrap(err, "write worksheet rows")
	}
	_ = f.SetColWidth(sheet, "C", "D", 24)

	if err := fsgateway.CommitFile(dest, 0o644, func(w io.Writer) error {
		_, err := f.WriteTo(w)
		return err
	}); err != nil {
		return 0, err
	}
	slog.Info("exported log entries", "format", "xlsx", "path", dest, "rows", written, "total", len(entries))
	return written, nil
}

// loadEntries reads the source. Cancellation during the read yields no
// entries, so the export still commits a header-only file.
func loadEntries(ctx context.Context, src LogSource) ([]model.LogEntry, error) {
	entries, err := src.ExportLogEntries(ctx)
	if isCancellation(err) {
		slog.Debug("export cancelled before loading entries")
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "load log entries")
	}
	return entries, nil
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// exportRows feeds entries to emit, reporting progress every
// opts.ProgressEvery rows and on the last one. It stops early when ctx is
// done or the callback asks to, and returns the rows emitted.
func exportRows(ctx context.Context, entries []model.LogEntry, opts ExportOptions, emit func(exportRow) error) (int, error) {
	every := opts.ProgressEvery
	if every <= 0 {
		every = DefaultProgressEvery
	}
	total := len(entries)
	written := 0
	for _, e := range entries {
		if ctx.Err() != nil {
			slog.Debug("export cancelled", "rows", written, "total", total)
			break
		}
		if err := emit(newExportRow(e)); err != nil {
			return written, errors.Wrapf(err, "export row %d", written+1)
		}
		written++
		if opts.Progress != nil && (written%every == 0 || written == total) {
			if opts.Progress(Progress{Fraction: float64(written) / float64(total), Current: written, Total: total}) {
				slog.Debug("export cancelled", "rows", written, "total", total)
				break
			}
		}
	}
	return written, nil
}
