package lens

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-analyze/bulk"
	"github.com/go-analyze/charts"
)

const failureTableMaxRecords = 10

var redTextColor = charts.ColorRed.WithAdjustHSL(0, .1, -.1)

// FileStatus is the outcome of processing one source file.
type FileStatus string

const (
	FileRewritten FileStatus = "rewritten" // instrumented in this run
	FileCached    FileStatus = "cached"    // output restored from the rewrite cache
	FileFresh     FileStatus = "fresh"     // existing output matched the freshness marker
	FileNewer     FileStatus = "newer"     // existing output was written by a newer version, left alone
	FileFailed    FileStatus = "failed"    // source could not be parsed
)

var reportStatusOrder = []FileStatus{FileRewritten, FileCached, FileFresh, FileNewer, FileFailed}

// FileResult records the processing of one source file.
type FileResult struct {
	Path       string     `json:"path"`
	Output     string     `json:"output"`
	Status     FileStatus `json:"status"`
	Stats      Stats      `json:"stats"`
	DurationUs int64      `json:"duration_us"`
	Error      string     `json:"error,omitempty"`
}

// RunReport summarizes a ProcessProject run.
type RunReport struct {
	GeneratedAt  time.Time    `json:"generated_at"`
	Version      string       `json:"version"`
	Project      string       `json:"project"`
	GeneratedDir string       `json:"generated_dir"`
	DryRun       bool         `json:"dry_run"`
	RunDuration  int64        `json:"run_ms"`
	Files        []FileResult `json:"files"`
	Pruned       []string     `json:"pruned,omitempty"`
	Totals       Stats        `json:"totals"`
}

// StatusCounts counts the files per status.
func (r *RunReport) StatusCounts() map[FileStatus]int {
	statuses := make([]FileStatus, len(r.Files))
	for i, f := range r.Files {
		statuses[i] = f.Status
	}
	return bulk.SliceToCounts(statuses)
}

// Failures returns the files that could not be rewritten.
func (r *RunReport) Failures() []FileResult {
	return bulk.SliceFilter(func(f FileResult) bool {
		return f.Status == FileFailed
	}, r.Files)
}

// WriteJSON writes the report to path, an empty path is ignored.
func (r *RunReport) WriteJSON(path string) error {
	if path == "" {
		return nil
	}

	encoded, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report failed: %w", err)
	} else if err = os.WriteFile(path, encoded, 0644); err != nil {
		return fmt.Errorf("write report file failed: %w", err)
	}
	return nil
}

// ReadReportJSON loads a report written by WriteJSON.
func ReadReportJSON(path string) (*RunReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read report file failed: %w", err)
	}
	var report RunReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("unmarshal report failed: %w", err)
	}
	return &report, nil
}

func chartOutputType(path string) (string, error) {
	if strings.HasSuffix(path, ".png") {
		return charts.ChartOutputPNG, nil
	} else if strings.HasSuffix(path, ".jpg") || strings.HasSuffix(path, ".jpeg") {
		return charts.ChartOutputJPG, nil
	} else if strings.HasSuffix(path, ".svg") {
		return charts.ChartOutputSVG, nil
	}
	return "", fmt.Errorf("unhandled chart file type: %s", path)
}

// WriteReportChart renders the report overview to path, the image format follows the extension.
func WriteReportChart(path string, report *RunReport) error {
	if path == "" {
		return nil
	}
	outputType, err := chartOutputType(path)
	if err != nil {
		return err
	}

	if buf, err := RenderReportChart(report, outputType); err != nil {
		return fmt.Errorf("render chart failed: %w", err)
	} else if err = os.WriteFile(path, buf, 0644); err != nil {
		return fmt.Errorf("write chart file failed: %w", err)
	}
	return nil
}

// RenderReportChart renders the report overview in the given charts output format.
func RenderReportChart(report *RunReport, outputType string) ([]byte, error) {
	painterOpt := charts.PainterOptions{
		OutputFormat: outputType,
		Width:        1024,
		Height:       768,
	}
	p := charts.NewPainter(painterOpt)
	if chartBox, err := renderReportToPainter(p, report); err != nil {
		return nil, err
	} else if chartBox.Height() < p.Height()-128 || chartBox.Height() > p.Height() {
		// re-render with a smaller painter to better fit the charts
		painterOpt.Height = chartBox.Height()
		p = charts.NewPainter(painterOpt)
		if _, err := renderReportToPainter(p, report); err != nil {
			return nil, err
		}
	}
	return p.Bytes()
}

func renderReportToPainter(p *charts.Painter, report *RunReport) (charts.Box, error) {
	const chartPadding = 10
	resultBox := charts.NewBoxEqual(0)
	resultBox.Right = p.Width()
	p.FilledRect(0, 0, p.Width(), p.Height(), charts.ColorWhite, charts.ColorWhite, 0)
	p = p.Child(charts.PainterPaddingOption(charts.NewBox(0, chartPadding, chartPadding, chartPadding)))

	titleFont := charts.FontStyle{
		FontSize:  16,
		FontColor: charts.ColorBlack,
		Font:      charts.GetDefaultFont(),
	}
	title := report.Project + " (" + report.Version + ")"
	if report.DryRun {
		title += " dry run"
	}
	titleBox := p.MeasureText(title, 0, titleFont)
	resultBox.Bottom += titleBox.Height()

	painters, err := p.LayoutByRows().
		RowGap(strconv.Itoa(titleBox.Height())).
		Row().Height("128").Columns("files").
		Row().Height("112").RowOffset("-40").Columns("methods").
		Row().Columns("bottom"). // remaining space for the failure table
		Build()
	if err != nil {
		return resultBox, fmt.Errorf("error building chart layout: %w", err)
	}
	filesPainter := painters["files"]
	methodsPainter := painters["methods"]
	bottom := painters["bottom"]

	counts := report.StatusCounts()
	statusValues := make([][]float64, len(reportStatusOrder))
	for i, status := range reportStatusOrder {
		statusValues[i] = []float64{float64(counts[status])}
	}
	filesOpt := charts.NewHorizontalBarChartOptionWithData(statusValues)
	filesOpt.StackSeries = charts.Ptr(true)
	filesOpt.Theme = charts.GetTheme(charts.ThemeLight).
		WithBackgroundColor(charts.ColorTransparent).
		WithSeriesColors([]charts.Color{
			charts.ColorGreenAlt1,
			{ /* Steel blue */ R: 90, G: 140, B: 200, A: 255},
			{ /* Light gray */ R: 190, G: 190, B: 190, A: 255},
			{ /* Golden yellow */ R: 220, G: 210, B: 100, A: 255},
			charts.ColorRed,
		})
	filesOpt.Title.Text = "Source Files"
	filesOpt.XAxis.Unit = axisUnitForMax(len(report.Files))
	filesOpt.YAxis.Show = charts.Ptr(false)
	for i, status := range reportStatusOrder {
		label := string(status)
		filesOpt.SeriesList[i].Label.Show = charts.Ptr(counts[status] > 0)
		filesOpt.SeriesList[i].Label.ValueFormatter = func(f float64) string {
			return charts.FormatValueHumanize(f, 0, false) + " " + label
		}
	}
	if err := filesPainter.HorizontalBarChart(filesOpt); err != nil {
		return resultBox, fmt.Errorf("error rendering chart: %w", err)
	}

	totals := report.Totals
	blockBodies := totals.Methods - totals.ExpressionBodies
	methodsOpt := charts.NewHorizontalBarChartOptionWithData([][]float64{
		{float64(blockBodies)}, {float64(totals.ExpressionBodies)}, {float64(totals.Passthrough)},
	})
	methodsOpt.StackSeries = charts.Ptr(true)
	methodsOpt.Theme = charts.GetTheme(charts.ThemeLight).
		WithBackgroundColor(charts.ColorTransparent).
		WithSeriesColors([]charts.Color{
			charts.ColorGreenAlt1,
			charts.ColorGreenAlt3,
			{ /* Light gray */ R: 190, G: 190, B: 190, A: 255},
		})
	methodsOpt.Title.Text = "Declarations Instrumented"
	methodsOpt.XAxis.Unit = axisUnitForMax(totals.Methods + totals.Passthrough)
	methodsOpt.YAxis.Show = charts.Ptr(false)
	methodsOpt.BarHeight = 22
	for i, label := range []string{"block", "expression", "no body"} {
		methodsOpt.SeriesList[i].Label.Show = charts.Ptr(methodsOpt.SeriesList[i].Values[0] > 0)
		methodsOpt.SeriesList[i].Label.ValueFormatter = func(f float64) string {
			return charts.FormatValueHumanize(f, 0, false) + " " + label
		}
	}
	if err := methodsPainter.HorizontalBarChart(methodsOpt); err != nil {
		return resultBox, fmt.Errorf("error rendering chart: %w", err)
	}

	resultBox.Bottom += filesPainter.Height() + methodsPainter.Height()

	failures := report.Failures()
	if len(failures) == 0 {
		text := "All Files Instrumented"
		textBox := bottom.MeasureText(text, 0, titleFont)
		bottom.Text(text, (bottom.Width()-textBox.Width())/2, bottom.Height()/2, 0, titleFont)
		resultBox.Bottom += textBox.Height() * 2
	} else {
		slices.SortFunc(failures, func(a, b FileResult) int {
			return strings.Compare(a.Path, b.Path)
		})
		if len(failures) > failureTableMaxRecords {
			failures = failures[:failureTableMaxRecords]
		}
		rows := make([][]string, len(failures))
		for i, f := range failures {
			errStr := limitStringLines(f.Error, 1, true)
			if len(errStr) > 80 {
				errStr = errStr[:78] + ".."
			}
			rows[i] = []string{f.Path, errStr}
		}

		tableTitle := "Failed Files"
		tableTitleFont := charts.FontStyle{
			FontSize:  12,
			FontColor: redTextColor,
			Font:      charts.GetDefaultFont(),
		}
		tableTitleBox := bottom.MeasureText(tableTitle, 0, tableTitleFont)
		bottom.Text(tableTitle, 10, tableTitleBox.Height(), 0, tableTitleFont)
		rowColors := []charts.Color{
			{R: 240, G: 240, B: 240, A: 255},
			charts.ColorTransparent,
		}
		if len(rows)%2 == 0 {
			// reverse row colors so table end is opposite of transparent
			rowColors[0], rowColors[1] = rowColors[1], rowColors[0]
		}
		tableOpt := charts.TableChartOption{
			Header:                []string{"File", "Error"},
			Data:                  rows,
			HeaderBackgroundColor: charts.Color{R: 210, G: 210, B: 210, A: 255},
			RowBackgroundColors:   rowColors,
			Padding:               charts.NewBoxEqual(10),
			Spans:                 []int{28, 40},
			TextAligns:            []string{charts.AlignLeft, charts.AlignLeft},
		}
		tablePainter := bottom.Child(charts.PainterPaddingOption(charts.NewBox(10, tableTitleBox.Height()+8, 0, 0)))
		if err := tablePainter.TableChart(tableOpt); err != nil {
			return resultBox, fmt.Errorf("error rendering table: %w", err)
		}
		// render directly to measure, the painter does not report the table size
		tableOpt.Width = bottom.Width()
		if tp, _ := charts.TableOptionRenderDirect(tableOpt); tp != nil {
			resultBox.Bottom += tableTitleBox.Height() + tp.Height()
		} else {
			resultBox.Bottom += bottom.Height()
		}
	}

	p.Text(title, (p.Width()/2)-(titleBox.Width()/2), titleBox.Height(), 0, titleFont)
	return resultBox, nil
}

func axisUnitForMax(val int) float64 {
	if val >= 8000 {
		return 2000
	} else if val > 2000 {
		return 1000
	} else if val >= 800 {
		return 200
	} else if val > 200 {
		return 100
	} else if val >= 80 {
		return 20
	} else if val > 20 {
		return 10
	} else if val >= 10 {
		return 2
	} else {
		return 1
	}
}
