package excel

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/montanaflynn/stats"
	"github.com/xuri/excelize/v2"

	"jetfakes/domain/fraction"
	"jetfakes/domain/histogram"
	"jetfakes/domain/sample"
)

// ReportWriter renders a fraction set into a diagnostic workbook: one sheet
// per category with the bin grid of every normalized group, a summary sheet
// and an audit sheet of clamped and degenerate bins.
type ReportWriter struct {
	config ReportConfig
}

// NewReportWriter creates a report writer
func NewReportWriter(config ReportConfig) *ReportWriter {
	return &ReportWriter{config: config}
}

// Write saves the report to path
func (w *ReportWriter) Write(path string, set *fraction.Set, info *fraction.RunInfo) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f := excelize.NewFile()
	defer f.Close()

	numFmt := w.config.NumberFormat
	style, err := f.NewStyle(&excelize.Style{CustomNumFmt: &numFmt})
	if err != nil {
		return fmt.Errorf("failed to create number style: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	if err := f.SetSheetName(f.GetSheetName(0), w.config.SummarySheet); err != nil {
		return err
	}
	if err := w.writeSummary(f, set, info, style, bold); err != nil {
		return fmt.Errorf("summary sheet: %w", err)
	}
	for _, cat := range sample.AllCategories {
		if err := w.writeCategory(f, set, cat, style, bold); err != nil {
			return fmt.Errorf("sheet %s: %w", cat, err)
		}
	}
	if err := w.writeAudit(f, set, bold); err != nil {
		return fmt.Errorf("audit sheet: %w", err)
	}
	return f.SaveAs(path)
}

func (w *ReportWriter) writeSummary(f *excelize.File, set *fraction.Set, info *fraction.RunInfo, style, bold int) error {
	sheet := w.config.SummarySheet
	meta := [][]interface{}{
		{"channel", set.Channel},
		{"period", set.Period},
		{"tree", set.Tree},
	}
	if info != nil {
		meta = append(meta,
			[]interface{}{"run", info.RunID.String()},
			[]interface{}{"suffix", info.Suffix},
			[]interface{}{"fingerprint", info.Fingerprint.String()},
			[]interface{}{"created", info.CreatedAt.Time().Format("2006-01-02 15:04:05 MST")},
		)
	}
	row := 1
	for _, m := range meta {
		if err := setRow(f, sheet, row, m); err != nil {
			return err
		}
		row++
	}

	row++
	header := []interface{}{"category", "denominator"}
	for _, g := range sample.AllGroups {
		header = append(header, string(g))
	}
	if err := setRow(f, sheet, row, header); err != nil {
		return err
	}
	if err := styleRow(f, sheet, row, len(header), bold); err != nil {
		return err
	}
	row++
	for _, sm := range set.Summaries {
		values := []interface{}{string(sm.Category), sm.Denominator}
		for _, g := range sample.AllGroups {
			values = append(values, sm.Fractions[g])
		}
		if err := setRow(f, sheet, row, values); err != nil {
			return err
		}
		if err := styleRange(f, sheet, 3, row, len(values), row, style); err != nil {
			return err
		}
		row++
	}

	row++
	if err := setRow(f, sheet, row, []interface{}{"surface", "bins", "min", "median", "mean", "max"}); err != nil {
		return err
	}
	if err := styleRow(f, sheet, row, 6, bold); err != nil {
		return err
	}
	row++
	for _, cat := range sample.AllCategories {
		for _, g := range sample.NormalizedGroups {
			surface, err := set.Surface(g, cat)
			if err != nil {
				return err
			}
			st, err := SummarizeSurface(fraction.Key(g, cat), surface)
			if err != nil {
				return err
			}
			if err := setRow(f, sheet, row, []interface{}{st.Key, st.Bins, st.Min, st.Median, st.Mean, st.Max}); err != nil {
				return err
			}
			if err := styleRange(f, sheet, 3, row, 6, row, style); err != nil {
				return err
			}
			row++
		}
	}
	return nil
}

// writeCategory lays out one grid per normalized group, x bins as rows
func (w *ReportWriter) writeCategory(f *excelize.File, set *fraction.Set, cat sample.Category, style, bold int) error {
	sheet := string(cat)
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}
	row := 1
	for _, g := range sample.NormalizedGroups {
		surface, err := set.Surface(g, cat)
		if err != nil {
			return err
		}
		if err := setRow(f, sheet, row, []interface{}{fraction.Key(g, cat)}); err != nil {
			return err
		}
		if err := styleRow(f, sheet, row, 1, bold); err != nil {
			return err
		}
		row++

		xEdges, yEdges := surface.XAxis().Edges(), surface.YAxis().Edges()
		header := []interface{}{"vis_mass \\ njets"}
		for iy := 0; iy < surface.YAxis().NBins(); iy++ {
			header = append(header, binLabel(yEdges, iy))
		}
		if err := setRow(f, sheet, row, header); err != nil {
			return err
		}
		if err := styleRow(f, sheet, row, len(header), bold); err != nil {
			return err
		}
		row++

		for ix := 0; ix < surface.XAxis().NBins(); ix++ {
			values := []interface{}{binLabel(xEdges, ix)}
			for iy := 0; iy < surface.YAxis().NBins(); iy++ {
				values = append(values, cellValue(surface, ix, iy, w.config.IncludeErrors))
			}
			if err := setRow(f, sheet, row, values); err != nil {
				return err
			}
			if !w.config.IncludeErrors {
				if err := styleRange(f, sheet, 2, row, len(values), row, style); err != nil {
					return err
				}
			}
			row++
		}
		row++
	}
	return nil
}

func (w *ReportWriter) writeAudit(f *excelize.File, set *fraction.Set, bold int) error {
	sheet := "audit"
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}
	if err := setRow(f, sheet, 1, []interface{}{"kind", "category", "vis_mass bin", "njets bin", "raw qcd"}); err != nil {
		return err
	}
	if err := styleRow(f, sheet, 1, 5, bold); err != nil {
		return err
	}
	row := 2
	for _, c := range set.Clamps {
		if err := setRow(f, sheet, row, []interface{}{"clamp", string(c.Category), c.Bin.X, c.Bin.Y, c.RawValue}); err != nil {
			return err
		}
		row++
	}
	for _, d := range set.Degenerate {
		if err := setRow(f, sheet, row, []interface{}{"degenerate", string(d.Category), d.Bin.X, d.Bin.Y}); err != nil {
			return err
		}
		row++
	}
	return nil
}

// SummarizeSurface computes distribution statistics over the bins whose
// denominator was non-zero. A surface with no such bin reports zeros.
func SummarizeSurface(key string, s *histogram.Surface) (SurfaceStats, error) {
	var data stats.Float64Data
	for ix := 0; ix < s.XAxis().NBins(); ix++ {
		for iy := 0; iy < s.YAxis().NBins(); iy++ {
			if !s.IsDegenerate(ix, iy) {
				data = append(data, s.At(ix, iy))
			}
		}
	}
	out := SurfaceStats{Key: key, Bins: len(data)}
	if len(data) == 0 {
		return out, nil
	}
	var err error
	if out.Min, err = data.Min(); err != nil {
		return out, err
	}
	if out.Median, err = data.Median(); err != nil {
		return out, err
	}
	if out.Mean, err = data.Mean(); err != nil {
		return out, err
	}
	if out.Max, err = data.Max(); err != nil {
		return out, err
	}
	return out, nil
}

func cellValue(s *histogram.Surface, ix, iy int, withErrors bool) interface{} {
	if s.IsDegenerate(ix, iy) {
		return "n/a"
	}
	if withErrors {
		return fmt.Sprintf("%.4f ± %.4f", s.At(ix, iy), s.ErrorAt(ix, iy))
	}
	return s.At(ix, iy)
}

func binLabel(edges []float64, i int) string {
	return fmt.Sprintf("[%g, %g)", edges[i], edges[i+1])
}

func setRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

func styleRow(f *excelize.File, sheet string, row, cols, style int) error {
	return styleRange(f, sheet, 1, row, cols, row, style)
}

func styleRange(f *excelize.File, sheet string, col1, row1, col2, row2, style int) error {
	if col2 < col1 {
		return nil
	}
	from, err := excelize.CoordinatesToCellName(col1, row1)
	if err != nil {
		return err
	}
	to, err := excelize.CoordinatesToCellName(col2, row2)
	if err != nil {
		return err
	}
	return f.SetCellStyle(sheet, from, to, style)
}
