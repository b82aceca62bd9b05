// asbviewer is the desktop viewer for launch benchmark results. It loads the
// JSONL results file produced by the collector, aggregates batches by run_tag
// and renders the batch table plus latency, percentile, error-rate and phase
// charts. A headless -screenshots mode renders the same chart set to PNG files
// for docs and CI.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/iafilius/AppStartupBench/cmd/asbviewer/uihelpers"
	"github.com/iafilius/AppStartupBench/src/analysis"
	"github.com/iafilius/AppStartupBench/src/bench"
)

// pointStyle returns a style that renders points only (no connecting line)
func pointStyle(col drawing.Color) chart.Style {
	return chart.Style{
		StrokeWidth: 0,
		DotWidth:    4,
		DotColor:    col,
	}
}

// darkTheme forces the dark variant so chart PNGs and widgets agree visually.
type darkTheme struct{}

func (darkTheme) Color(n fyne.ThemeColorName, _ fyne.ThemeVariant) color.Color {
	return theme.DefaultTheme().Color(n, theme.VariantDark)
}
func (darkTheme) Font(s fyne.TextStyle) fyne.Resource     { return theme.DefaultTheme().Font(s) }
func (darkTheme) Icon(n fyne.ThemeIconName) fyne.Resource { return theme.DefaultTheme().Icon(n) }
func (darkTheme) Size(n fyne.ThemeSizeName) float32       { return theme.DefaultTheme().Size(n) }

type uiState struct {
	app    fyne.App
	window fyne.Window

	filePath  string
	situation string // empty means all situations
	appFilter string // empty means all apps
	batchesN  int

	xAxisMode    string // batch | run_tag | time
	yScaleMode   string // absolute | relative
	latencyUnit  string // ms | s
	showHints    bool
	watchResults bool

	summaries []analysis.BatchSummary
	rows      []analysis.BatchSummary // summaries after situation/app filtering

	table        *widget.Table
	tabs         *container.AppTabs
	situationSel *widget.Select
	appSel       *widget.Select
	batchesLabel *widget.Label

	latencyCanvas *canvas.Image
	pctlCanvas    *canvas.Image
	errCanvas     *canvas.Image
	phasesCanvas  *canvas.Image

	recentFiles []string
	watcher     *resultsWatcher
	done        chan struct{}
}

const (
	prefFilePath  = "viewer.filePath"
	prefBatches   = "viewer.batches"
	prefSituation = "viewer.situation"
	prefAppFilter = "viewer.appFilter"
	prefXAxisMode = "viewer.xAxisMode"
	prefYScale    = "viewer.yScaleMode"
	prefUnit      = "viewer.latencyUnit"
	prefHints     = "viewer.showHints"
	prefWatch     = "viewer.watchResults"
	prefRecent    = "viewer.recentFiles"
)

const maxRecentFiles = 10

var tableHeaders = [9]string{"Run tag", "Launches", "Errors", "Avg ready", "Median", "P95", "P99", "Avg total", "Situation"}

func main() {
	fileFlag := flag.String("file", "", "results JSONL file (default "+bench.DefaultResultsFile+", parent dir checked as fallback)")
	situationFlag := flag.String("situation", "", "initial situation filter (empty or All shows every batch)")
	batchesFlag := flag.Int("batches", 0, "recent batches to load (0 = saved preference or 50)")
	screenshotsFlag := flag.Bool("screenshots", false, "render the chart set headlessly into -screenshot-dir and exit")
	screenshotDir := flag.String("screenshot-dir", "screenshots", "output directory for -screenshots")
	flag.Parse()

	if *screenshotsFlag {
		if err := RunScreenshotsMode(*fileFlag, *screenshotDir, *situationFlag, *batchesFlag); err != nil {
			fmt.Printf("[viewer] screenshots error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	a := app.NewWithID("com.github.iafilius.appstartupbench.viewer")
	a.Settings().SetTheme(&darkTheme{})
	st := &uiState{
		app:         a,
		batchesN:    50,
		xAxisMode:   "batch",
		yScaleMode:  "absolute",
		latencyUnit: "ms",
		done:        make(chan struct{}),
	}
	loadPrefs(st)
	if *fileFlag != "" {
		st.filePath = *fileFlag
	}
	if st.filePath == "" {
		st.filePath = bench.DefaultResultsFile
	}
	if *situationFlag != "" {
		st.situation = normalizeSituationPick(*situationFlag)
	}
	if *batchesFlag > 0 {
		st.batchesN = clampBatches(*batchesFlag)
	}

	w := a.NewWindow("AppStartupBench Viewer")
	st.window = w

	buildContent(st)
	loadAll(st)
	refreshUI(st)
	wireFilterCallbacks(st)
	buildMenus(st)
	registerShortcuts(st)
	startResultsWatcher(st)
	go watchResize(st)

	w.SetOnClosed(func() {
		if st.watcher != nil {
			st.watcher.stop()
		}
		savePrefs(st)
		close(st.done)
	})
	w.Resize(fyne.NewSize(1180, 760))
	w.ShowAndRun()
}

// buildContent assembles the controls, batch table and chart tabs. Filter
// selects start without callbacks; wireFilterCallbacks attaches them after the
// first refresh so restoring saved state does not trigger reload storms.
func buildContent(st *uiState) {
	st.table = widget.NewTable(
		func() (int, int) { return len(st.rows) + 1, len(tableHeaders) },
		func() fyne.CanvasObject { return widget.NewLabel("") },
		func(id widget.TableCellID, o fyne.CanvasObject) {
			l := o.(*widget.Label)
			l.TextStyle = fyne.TextStyle{Bold: id.Row == 0}
			l.SetText(tableCellText(st, st.rows, id.Row, id.Col))
		},
	)

	newChartCanvas := func() *canvas.Image {
		img := canvas.NewImageFromImage(blank(1100, 340))
		img.FillMode = canvas.ImageFillContain
		img.SetMinSize(fyne.NewSize(1100, 340))
		return img
	}
	st.latencyCanvas = newChartCanvas()
	st.pctlCanvas = newChartCanvas()
	st.errCanvas = newChartCanvas()
	st.phasesCanvas = newChartCanvas()

	st.situationSel = widget.NewSelect([]string{"All"}, nil)
	st.situationSel.Selected = "All"
	st.appSel = widget.NewSelect([]string{"All"}, nil)
	st.appSel.Selected = "All"

	xSel := widget.NewSelect([]string{"batch", "run_tag", "time"}, func(v string) {
		st.xAxisMode = v
		savePrefs(st)
		redrawCharts(st)
	})
	xSel.Selected = st.xAxisMode

	ySel := widget.NewSelect([]string{"absolute", "relative"}, func(v string) {
		st.yScaleMode = v
		savePrefs(st)
		redrawCharts(st)
	})
	ySel.Selected = st.yScaleMode

	unitSel := widget.NewSelect([]string{"ms", "s"}, func(v string) {
		st.latencyUnit = v
		savePrefs(st)
		refreshUI(st)
	})
	unitSel.Selected = st.latencyUnit

	hintsChk := widget.NewCheck("Hints", func(v bool) {
		st.showHints = v
		savePrefs(st)
		redrawCharts(st)
	})
	hintsChk.Checked = st.showHints

	watchChk := widget.NewCheck("Watch", func(v bool) {
		st.watchResults = v
		savePrefs(st)
	})
	watchChk.Checked = st.watchResults

	st.batchesLabel = widget.NewLabel(fmt.Sprintf("Batches: %d", st.batchesN))
	minus := widget.NewButton("-10", func() { bumpBatches(st, -10) })
	plus := widget.NewButton("+10", func() { bumpBatches(st, +10) })

	row1 := container.NewHBox(
		widget.NewLabel("Situation:"), st.situationSel,
		widget.NewLabel("App:"), st.appSel,
		minus, st.batchesLabel, plus,
	)
	row2 := container.NewHBox(
		widget.NewLabel("X axis:"), xSel,
		widget.NewLabel("Y scale:"), ySel,
		widget.NewLabel("Unit:"), unitSel,
		hintsChk, watchChk,
	)
	controls := container.NewVBox(row1, row2)

	st.tabs = container.NewAppTabs(
		container.NewTabItem("Batches", st.table),
		container.NewTabItem("Latency", container.NewVScroll(st.latencyCanvas)),
		container.NewTabItem("Percentiles", container.NewVScroll(st.pctlCanvas)),
		container.NewTabItem("Errors", container.NewVScroll(st.errCanvas)),
		container.NewTabItem("Phases", container.NewVScroll(st.phasesCanvas)),
	)

	st.window.SetContent(container.NewBorder(controls, nil, nil, nil, st.tabs))
}

func wireFilterCallbacks(st *uiState) {
	st.situationSel.OnChanged = func(v string) {
		st.situation = normalizeSituationPick(v)
		savePrefs(st)
		refreshUI(st)
	}
	st.appSel.OnChanged = func(v string) {
		if v == "All" {
			st.appFilter = ""
		} else {
			st.appFilter = v
		}
		savePrefs(st)
		refreshUI(st)
	}
}

func bumpBatches(st *uiState, delta int) {
	n := clampBatches(st.batchesN + delta)
	if n == st.batchesN {
		return
	}
	st.batchesN = n
	st.batchesLabel.SetText(fmt.Sprintf("Batches: %d", n))
	savePrefs(st)
	loadAll(st)
	refreshUI(st)
}

func clampBatches(n int) int {
	if n < 10 {
		return 10
	}
	if n > 500 {
		return 500
	}
	return n
}

// normalizeSituationPick maps the UI "All" entry back to the empty filter.
func normalizeSituationPick(v string) string {
	v = strings.TrimSpace(v)
	if v == "" || strings.EqualFold(v, "All") {
		return ""
	}
	return v
}

func situationOf(s analysis.BatchSummary) string {
	t := strings.TrimSpace(s.Situation)
	if t == "" {
		return "Unknown"
	}
	return t
}

// resolveResultsPath falls back to the parent directory when the default
// results file is absent, so the viewer works from both the repo root and
// a build subdirectory.
func resolveResultsPath(path string) string {
	if path == "" {
		path = bench.DefaultResultsFile
	}
	if path != bench.DefaultResultsFile {
		return path
	}
	if _, err := os.Stat(path); err == nil {
		return path
	}
	alt := filepath.Join("..", bench.DefaultResultsFile)
	if _, err := os.Stat(alt); err == nil {
		fmt.Printf("[viewer] %s not found; using %s\n", bench.DefaultResultsFile, alt)
		return alt
	}
	return path
}

func loadAll(st *uiState) {
	path := resolveResultsPath(st.filePath)
	sums, err := analysis.AnalyzeRecentResultsFull(path, bench.SchemaVersion, st.batchesN, "")
	if err != nil {
		fmt.Printf("[viewer] analyze error: %v\n", err)
		st.summaries = nil
		return
	}
	st.summaries = sums
	counts := map[string]int{}
	for _, s := range sums {
		counts[situationOf(s)]++
	}
	parts := make([]string, 0, len(counts))
	for _, k := range sortedKeys(counts) {
		parts = append(parts, fmt.Sprintf("%s=%d", k, counts[k]))
	}
	fmt.Printf("[viewer] loaded %d batches. Situation counts: %s\n", len(sums), strings.Join(parts, " "))
}

func sortedKeys(m map[string]int) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// filteredSummaries applies the situation filter and, when an app is chosen,
// narrows each batch to that app's per-app aggregate. Batches that never
// launched the chosen app are dropped.
func filteredSummaries(st *uiState) []analysis.BatchSummary {
	out := make([]analysis.BatchSummary, 0, len(st.summaries))
	for _, s := range st.summaries {
		if st.situation != "" && !strings.EqualFold(situationOf(s), st.situation) {
			continue
		}
		if st.appFilter != "" {
			as, ok := s.Apps[st.appFilter]
			if !ok || as == nil {
				continue
			}
			out = append(out, narrowToApp(s, as))
			continue
		}
		out = append(out, s)
	}
	return out
}

// narrowToApp projects a batch summary down to a single app's numbers so the
// table and charts read the same whether filtered or not.
func narrowToApp(s analysis.BatchSummary, as *analysis.AppSummary) analysis.BatchSummary {
	n := s
	n.Lines = as.Launches
	n.ErrorLines = as.ErrorLines
	n.ErrorRatePct = 0
	if as.Launches > 0 {
		n.ErrorRatePct = float64(as.ErrorLines) / float64(as.Launches) * 100
	}
	n.AvgReadyMs = as.AvgReadyMs
	n.MedianReadyMs = as.MedianReadyMs
	n.MinReadyMs = as.MinReadyMs
	n.MaxReadyMs = as.MaxReadyMs
	n.P50ReadyMs = as.P50ReadyMs
	n.P90ReadyMs = as.P90ReadyMs
	n.P95ReadyMs = as.P95ReadyMs
	n.P99ReadyMs = as.P99ReadyMs
	n.P99P50Ratio = 0
	if as.P50ReadyMs > 0 {
		n.P99P50Ratio = as.P99ReadyMs / as.P50ReadyMs
	}
	n.AvgFirstOutputMs = as.AvgFirstOutputMs
	n.AvgTotalMs = as.AvgTotalMs
	n.JitterPct = as.JitterPct
	n.Apps = nil
	return n
}

func refreshUI(st *uiState) {
	st.rows = filteredSummaries(st)
	updateFilterOptions(st)
	if st.table != nil {
		st.table.Refresh()
	}
	updateTableWidths(st)
	redrawCharts(st)
}

// updateFilterOptions rebuilds the select options from loaded data without
// firing OnChanged (fields are assigned directly, then refreshed).
func updateFilterOptions(st *uiState) {
	if st.situationSel != nil {
		set := map[string]int{}
		for _, s := range st.summaries {
			set[situationOf(s)]++
		}
		opts := append([]string{"All"}, sortedKeys(set)...)
		st.situationSel.Options = opts
		sel := st.situation
		if sel == "" {
			sel = "All"
		}
		st.situationSel.Selected = sel
		st.situationSel.Refresh()
	}
	if st.appSel != nil {
		opts := append([]string{"All"}, analysis.AppNames(st.summaries)...)
		st.appSel.Options = opts
		sel := st.appFilter
		if sel == "" {
			sel = "All"
		}
		st.appSel.Selected = sel
		st.appSel.Refresh()
	}
}

func updateTableWidths(st *uiState) {
	if st.table == nil || st.window == nil || st.window.Canvas() == nil {
		return
	}
	widths := uihelpers.ComputeTableColumnWidths(st.window.Canvas().Size().Width)
	for i, w := range widths {
		st.table.SetColumnWidth(i, float32(w))
	}
}

func tableCellText(st *uiState, rows []analysis.BatchSummary, row, col int) string {
	if col < 0 || col >= len(tableHeaders) {
		return ""
	}
	if row == 0 {
		h := tableHeaders[col]
		if col >= 3 && col <= 7 {
			unit, _ := latencyUnitNameAndFactor(st)
			return h + " (" + unit + ")"
		}
		return h
	}
	if row-1 >= len(rows) {
		return ""
	}
	s := rows[row-1]
	switch col {
	case 0:
		return s.RunTag
	case 1:
		return strconv.Itoa(s.Lines)
	case 2:
		return strconv.Itoa(s.ErrorLines)
	case 3:
		return formatLatency(st, s.AvgReadyMs)
	case 4:
		return formatLatency(st, s.MedianReadyMs)
	case 5:
		return formatLatency(st, s.P95ReadyMs)
	case 6:
		return formatLatency(st, s.P99ReadyMs)
	case 7:
		return formatLatency(st, s.AvgTotalMs)
	case 8:
		return situationOf(s)
	}
	return ""
}

// latencyUnitNameAndFactor maps the unit preference to a display name and a
// multiplier applied to millisecond values.
func latencyUnitNameAndFactor(st *uiState) (string, float64) {
	if st != nil && st.latencyUnit == "s" {
		return "s", 0.001
	}
	return "ms", 1
}

func formatLatency(st *uiState, ms float64) string {
	_, factor := latencyUnitNameAndFactor(st)
	v := ms * factor
	if st != nil && st.latencyUnit == "s" {
		return fmt.Sprintf("%.2f", v)
	}
	return fmt.Sprintf("%.0f", v)
}

func redrawCharts(st *uiState) {
	if st.latencyCanvas == nil {
		return
	}
	w, h := chartSize(st)
	sz := fyne.NewSize(float32(w), float32(h))
	set := func(c *canvas.Image, img image.Image) {
		c.Image = img
		c.SetMinSize(sz)
		c.Refresh()
	}
	set(st.latencyCanvas, renderLatencyChart(st))
	set(st.pctlCanvas, renderPercentilesChart(st))
	set(st.errCanvas, renderErrorRateChart(st))
	set(st.phasesCanvas, renderPhasesChart(st))
}

// metricSeries describes one plotted series: a selector over batch summaries
// plus its legend name and color. keepZero plots zero values instead of
// treating them as missing data.
type metricSeries struct {
	name     string
	color    drawing.Color
	keepZero bool
	value    func(analysis.BatchSummary) float64
}

// renderMetricChart is the shared render path for all batch charts: build X
// values per the axis mode, one series per selector, nice Y bounds/ticks, then
// rasterize via go-chart with a blank fallback when rendering fails.
func renderMetricChart(st *uiState, title, yName, hint string, percentAxis bool, specs []metricSeries) image.Image {
	rows := filteredSummaries(st)
	cw, chh := chartSize(st)
	if len(rows) == 0 {
		return blank(cw, chh)
	}
	timeMode, times, xs, xAxis := buildXAxis(rows, st.xAxisMode)

	series := []chart.Series{}
	minY := math.MaxFloat64
	maxY := -math.MaxFloat64
	for _, sp := range specs {
		ys := make([]float64, len(rows))
		valid := 0
		for i, r := range rows {
			v := sp.value(r)
			if v < 0 || (v == 0 && !sp.keepZero) {
				ys[i] = math.NaN()
				continue
			}
			ys[i] = v
			valid++
			if v < minY {
				minY = v
			}
			if v > maxY {
				maxY = v
			}
		}
		if valid == 0 {
			continue
		}
		style := pointStyle(sp.color)
		if valid == 1 {
			style.DotWidth = 6
		}
		if timeMode {
			if len(times) == 1 {
				t2 := times[0].Add(1 * time.Second)
				ys = append([]float64{ys[0]}, ys[0])
				series = append(series, chart.TimeSeries{Name: sp.name, XValues: []time.Time{times[0], t2}, YValues: ys, Style: style})
			} else {
				series = append(series, chart.TimeSeries{Name: sp.name, XValues: times, YValues: ys, Style: style})
			}
		} else {
			if len(xs) == 1 {
				x2 := xs[0] + 1
				ys = append([]float64{ys[0]}, ys[0])
				series = append(series, chart.ContinuousSeries{Name: sp.name, XValues: []float64{xs[0], x2}, YValues: ys, Style: style})
			} else {
				series = append(series, chart.ContinuousSeries{Name: sp.name, XValues: xs, YValues: ys, Style: style})
			}
		}
	}

	var yAxisRange *chart.ContinuousRange
	var yTicks []chart.Tick
	haveY := minY != math.MaxFloat64 && maxY != -math.MaxFloat64
	if haveY {
		switch {
		case st.yScaleMode == "relative":
			if maxY <= minY {
				maxY = minY + 1
			}
			nMin, nMax := niceAxisBounds(minY, maxY)
			yAxisRange = &chart.ContinuousRange{Min: nMin, Max: nMax}
			yTicks = niceTicks(nMin, nMax, 6)
		case percentAxis:
			yAxisRange = &chart.ContinuousRange{Min: 0, Max: 100}
			yTicks = niceTicks(0, 100, 6)
		default:
			top := maxY
			if top <= 0 {
				top = 1
			}
			_, nMax := niceAxisBounds(0, top)
			yAxisRange = &chart.ContinuousRange{Min: 0, Max: nMax}
			yTicks = niceTicks(0, nMax, 6)
		}
	}

	// More bottom padding when X-axis labels are long
	padBottom := 28
	switch st.xAxisMode {
	case "run_tag":
		padBottom = 90
	case "time":
		padBottom = 48
	}
	if st.showHints {
		padBottom += 18
	}

	ch := chart.Chart{
		Title:      title + chartTitleSuffix(st),
		Width:      cw,
		Height:     chh,
		Background: chart.Style{Padding: chart.Box{Top: 14, Left: 16, Right: 12, Bottom: padBottom}},
		XAxis:      xAxis,
		YAxis:      chart.YAxis{Name: yName, Range: yAxisRange, Ticks: yTicks},
		Series:     series,
	}
	ch.Elements = []chart.Renderable{chart.Legend(&ch)}

	var buf bytes.Buffer
	if err := ch.Render(chart.PNG, &buf); err != nil {
		fmt.Printf("[viewer] %s render error: %v; showing blank fallback\n", title, err)
		return blank(cw, chh)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		fmt.Printf("[viewer] %s decode error: %v; showing blank fallback\n", title, err)
		return blank(cw, chh)
	}
	if st.showHints {
		return drawHint(img, hint)
	}
	return img
}

func renderLatencyChart(st *uiState) image.Image {
	unit, factor := latencyUnitNameAndFactor(st)
	return renderMetricChart(st,
		fmt.Sprintf("Launch latency (%s)", unit), unit,
		"Hint: Ready marks the benchmark line on the app's stdout; lower is better.",
		false,
		[]metricSeries{
			{name: "Avg ready", color: chart.ColorBlue, value: func(b analysis.BatchSummary) float64 { return b.AvgReadyMs * factor }},
			{name: "Median ready", color: chart.ColorGreen, value: func(b analysis.BatchSummary) float64 { return b.MedianReadyMs * factor }},
		})
}

func renderPercentilesChart(st *uiState) image.Image {
	unit, factor := latencyUnitNameAndFactor(st)
	return renderMetricChart(st,
		fmt.Sprintf("Ready percentiles (%s)", unit), unit,
		"Hint: Tail percentiles expose slow outlier launches; compare P99 against P50.",
		false,
		[]metricSeries{
			{name: "P50", color: chart.ColorBlue, value: func(b analysis.BatchSummary) float64 { return b.P50ReadyMs * factor }},
			{name: "P90", color: chart.ColorGreen, value: func(b analysis.BatchSummary) float64 { return b.P90ReadyMs * factor }},
			{name: "P95", color: chart.ColorAlternateGray, value: func(b analysis.BatchSummary) float64 { return b.P95ReadyMs * factor }},
			{name: "P99", color: chart.ColorRed, value: func(b analysis.BatchSummary) float64 { return b.P99ReadyMs * factor }},
		})
}

func renderErrorRateChart(st *uiState) image.Image {
	return renderMetricChart(st,
		"Error rate (%)", "%",
		"Hint: Failed launches per batch; timeouts and nonzero exits count as errors.",
		true,
		[]metricSeries{
			{name: "Error rate", color: chart.ColorRed, keepZero: true, value: func(b analysis.BatchSummary) float64 { return b.ErrorRatePct }},
		})
}

func renderPhasesChart(st *uiState) image.Image {
	unit, factor := latencyUnitNameAndFactor(st)
	return renderMetricChart(st,
		fmt.Sprintf("Launch phases (%s)", unit), unit,
		"Hint: First output, ready marker and full process lifetime per batch.",
		false,
		[]metricSeries{
			{name: "First output", color: chart.ColorOrange, value: func(b analysis.BatchSummary) float64 { return b.AvgFirstOutputMs * factor }},
			{name: "Ready", color: chart.ColorBlue, value: func(b analysis.BatchSummary) float64 { return b.AvgReadyMs * factor }},
			{name: "Total", color: chart.ColorAlternateGray, value: func(b analysis.BatchSummary) float64 { return b.AvgTotalMs * factor }},
		})
}

func chartTitleSuffix(st *uiState) string {
	var parts []string
	if st.situation != "" {
		parts = append(parts, st.situation)
	}
	if st.appFilter != "" {
		parts = append(parts, st.appFilter)
	}
	if len(parts) == 0 {
		return ""
	}
	return " (" + strings.Join(parts, ", ") + ")"
}

// buildXAxis constructs X values and axis config based on the selected mode.
// Returns whether time mode is used, the time slice (if applicable), the float
// Xs otherwise, and the configured XAxis.
func buildXAxis(rows []analysis.BatchSummary, mode string) (bool, []time.Time, []float64, chart.XAxis) {
	m := strings.ToLower(strings.TrimSpace(mode))
	switch m {
	case "time":
		ts := make([]time.Time, len(rows))
		for i, r := range rows {
			t := parseRunTagTime(r.RunTag)
			if idx := strings.LastIndex(r.RunTag, "_i"); idx >= 0 {
				if n, err := strconv.Atoi(r.RunTag[idx+2:]); err == nil {
					t = t.Add(time.Duration(n) * time.Second)
				}
			}
			ts[i] = t
		}
		// Ensure strictly non-decreasing sequence
		for i := 1; i < len(ts); i++ {
			if !ts[i].After(ts[i-1]) {
				ts[i] = ts[i-1].Add(1 * time.Second)
			}
		}
		if len(ts) == 0 {
			return true, ts, nil, chart.XAxis{Name: "Time"}
		}
		minT := ts[0]
		maxT := ts[0]
		for _, t := range ts[1:] {
			if t.Before(minT) {
				minT = t
			}
			if t.After(maxT) {
				maxT = t
			}
		}
		ticks, step := makeNiceTimeTicks(minT, maxT)
		minF := float64(chart.TimeToFloat64(minT))
		maxF := float64(chart.TimeToFloat64(maxT))
		if maxF <= minF {
			// pad one step so a single timestamp still has axis width
			maxF = minF + float64(step.Nanoseconds())
			if maxF <= minF {
				maxF = minF + float64(time.Second.Nanoseconds())
			}
		}
		xa := chart.XAxis{Name: "Time", Ticks: ticks, Range: &chart.ContinuousRange{Min: minF, Max: maxF}}
		return true, ts, nil, xa
	case "run_tag":
		n := len(rows)
		xs := make([]float64, n)
		ticks := make([]chart.Tick, 0, n+1)
		for i, r := range rows {
			x := float64(i + 1)
			xs[i] = x
			ticks = append(ticks, chart.Tick{Value: x, Label: r.RunTag})
		}
		// Explicit range so n=1 still renders with non-zero width
		minR := 0.5
		maxR := float64(n) + 0.5
		if n == 1 {
			maxR = 2.0
			ticks = append(ticks, chart.Tick{Value: 2, Label: ""})
		}
		xa := chart.XAxis{Name: "RunTag", Ticks: ticks, Range: &chart.ContinuousRange{Min: minR, Max: maxR}}
		return false, nil, xs, xa
	default:
		n := len(rows)
		xs := make([]float64, n)
		ticks := make([]chart.Tick, 0, n+1)
		for i := 0; i < n; i++ {
			x := float64(i + 1)
			xs[i] = x
			ticks = append(ticks, chart.Tick{Value: x, Label: fmt.Sprintf("%d", i+1)})
		}
		minR := 0.5
		maxR := float64(n) + 0.5
		if n == 1 {
			maxR = 2.0
			ticks = append(ticks, chart.Tick{Value: 2, Label: ""})
		}
		xa := chart.XAxis{
			Name:  "Batch",
			Ticks: ticks,
			Range: &chart.ContinuousRange{Min: minR, Max: maxR},
		}
		return false, nil, xs, xa
	}
}

// parseRunTagTime parses a timestamp from run_tag formats like
// YYYYMMDD_HHMMSS with optional suffixes (e.g. 20250818_132613_i1).
func parseRunTagTime(runTag string) time.Time {
	parts := strings.Split(runTag, "_")
	if len(parts) >= 2 && len(parts[0]) == 8 && len(parts[1]) >= 6 {
		base := parts[0] + "_" + parts[1][:6]
		if t, err := time.ParseInLocation("20060102_150405", base, time.Local); err == nil {
			return t
		}
	}
	return time.Time{}
}

// makeNiceTimeTicks returns rounded ticks between minT and maxT plus the tick
// step that was used.
func makeNiceTimeTicks(minT, maxT time.Time) ([]chart.Tick, time.Duration) {
	step, _ := uihelpers.PickTimeStep(maxT.Sub(minT))
	times, layout := uihelpers.BuildTimeTicks(minT, maxT, 20)
	ticks := make([]chart.Tick, 0, len(times))
	for _, t := range times {
		ticks = append(ticks, chart.Tick{Value: float64(chart.TimeToFloat64(t)), Label: t.Local().Format(layout)})
	}
	return ticks, step
}

// niceAxisBounds expands [min,max] by a small margin and rounds to "nice"
// numbers for readability.
func niceAxisBounds(min, max float64) (float64, float64) {
	if math.IsNaN(min) || math.IsNaN(max) {
		return min, max
	}
	if max <= min {
		max = min + 1
	}
	span := max - min
	pad := span * 0.05
	if pad <= 0 {
		pad = 1
	}
	a := min - pad
	b := max + pad
	mag := math.Pow(10, math.Floor(math.Log10(span)))
	if !math.IsInf(mag, 0) && mag > 0 {
		a = math.Floor(a/mag) * mag
		b = math.Ceil(b/mag) * mag
	}
	return a, b
}

// niceTicks generates up to n tick marks between [min, max] using nice increments.
func niceTicks(min, max float64, n int) []chart.Tick {
	vals := uihelpers.BuildNumericTicks(min, max, n)
	ticks := make([]chart.Tick, 0, len(vals))
	for _, v := range vals {
		ticks = append(ticks, chart.Tick{Value: v, Label: uihelpers.FormatNumericTick(v)})
	}
	return ticks
}

// drawHint draws a small hint string onto the provided image near the bottom-left.
func drawHint(img image.Image, text string) image.Image {
	if img == nil || strings.TrimSpace(text) == "" {
		return img
	}
	b := img.Bounds()
	rgba := image.NewRGBA(b)
	draw.Draw(rgba, b, img, b.Min, draw.Src)
	pad := 6
	face := basicfont.Face7x13
	textCol := image.NewUniform(color.RGBA{R: 255, G: 255, B: 255, A: 255})
	shadowCol := image.NewUniform(color.RGBA{R: 0, G: 0, B: 0, A: 180})
	dr := &font.Drawer{Dst: rgba, Src: textCol, Face: face}
	tw := dr.MeasureString(text).Ceil()
	x := b.Min.X + 8
	y := b.Max.Y - 6
	bg := image.NewUniform(color.RGBA{R: 0, G: 0, B: 0, A: 200})
	rect := image.Rect(x-pad, y-face.Metrics().Ascent.Ceil()-pad, x+tw+pad, y+pad/2)
	draw.Draw(rgba, rect, bg, image.Point{}, draw.Over)
	drShadow := &font.Drawer{Dst: rgba, Src: shadowCol, Face: face, Dot: fixed.Point26_6{X: fixed.I(x + 1), Y: fixed.I(y + 1)}}
	drShadow.DrawString(text)
	dr.Dot = fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)}
	dr.DrawString(text)
	return rgba
}

func blank(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	// subtle background
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{R: 18, G: 18, B: 18, A: 255})
		}
	}
	return img
}

// screenshotWidthOverride pins the rendered width when no window exists so the
// headless screenshot mode and its tests are deterministic.
var screenshotWidthOverride int

// chartSize computes a chart size based on the current window width so charts
// use more X-axis space.
func chartSize(st *uiState) (int, int) {
	if st == nil || st.window == nil || st.window.Canvas() == nil {
		if screenshotWidthOverride > 0 {
			return uihelpers.ComputeChartDimensions(screenshotWidthOverride)
		}
		return 1100, 340
	}
	sz := st.window.Canvas().Size()
	// ~95% of the available width, minus a small margin for scrollbars/padding
	w := int(sz.Width*0.95) - 12
	return uihelpers.ComputeChartDimensions(w)
}

// watchResize polls the canvas width and redraws charts when it changes. Fyne
// has no resize callback on windows, so a coarse ticker keeps charts fitted.
func watchResize(st *uiState) {
	t := time.NewTicker(300 * time.Millisecond)
	defer t.Stop()
	var last float32
	for {
		select {
		case <-st.done:
			return
		case <-t.C:
			if st.window == nil || st.window.Canvas() == nil {
				continue
			}
			w := st.window.Canvas().Size().Width
			if w == 0 || w == last {
				continue
			}
			last = w
			fyne.Do(func() {
				updateTableWidths(st)
				redrawCharts(st)
			})
		}
	}
}

func startResultsWatcher(st *uiState) {
	w, err := newResultsWatcher(resolveResultsPath(st.filePath), func() {
		fyne.Do(func() {
			if !st.watchResults {
				return
			}
			fmt.Printf("[viewer] results file changed; reloading\n")
			loadAll(st)
			refreshUI(st)
		})
	})
	if err != nil {
		fmt.Printf("[viewer] watch unavailable: %v\n", err)
		return
	}
	st.watcher = w
}

func restartResultsWatcher(st *uiState) {
	if st.watcher != nil {
		st.watcher.stop()
		st.watcher = nil
	}
	startResultsWatcher(st)
}

func buildMenus(st *uiState) {
	openItem := fyne.NewMenuItem("Open Results…", func() { openResultsDialog(st) })
	recent := fyne.NewMenuItem("Open Recent", nil)
	recent.ChildMenu = buildRecentMenu(st)
	reloadItem := fyne.NewMenuItem("Reload", func() {
		loadAll(st)
		refreshUI(st)
	})
	exportItem := fyne.NewMenuItem("Export Current Chart…", func() { exportCurrentChart(st) })
	fileMenu := fyne.NewMenu("File", openItem, recent, fyne.NewMenuItemSeparator(), reloadItem, exportItem)
	st.window.SetMainMenu(fyne.NewMainMenu(fileMenu))
}

func buildRecentMenu(st *uiState) *fyne.Menu {
	items := make([]*fyne.MenuItem, 0, len(st.recentFiles))
	for _, p := range st.recentFiles {
		path := p
		items = append(items, fyne.NewMenuItem(truncatePath(path, 48), func() {
			switchResultsFile(st, path)
		}))
	}
	if len(items) == 0 {
		none := fyne.NewMenuItem("(none)", nil)
		none.Disabled = true
		items = append(items, none)
	}
	return fyne.NewMenu("Open Recent", items...)
}

func switchResultsFile(st *uiState, path string) {
	st.filePath = path
	addRecentFile(st, path)
	restartResultsWatcher(st)
	savePrefs(st)
	loadAll(st)
	refreshUI(st)
	buildMenus(st)
}

func openResultsDialog(st *uiState) {
	d := dialog.NewFileOpen(func(rc fyne.URIReadCloser, err error) {
		if err != nil {
			dialog.ShowError(err, st.window)
			return
		}
		if rc == nil {
			return
		}
		path := rc.URI().Path()
		_ = rc.Close()
		switchResultsFile(st, path)
	}, st.window)
	d.SetFilter(storage.NewExtensionFileFilter([]string{".jsonl"}))
	d.Show()
}

// currentChart re-renders the chart behind the selected tab for export.
func currentChart(st *uiState) (string, image.Image) {
	if st.tabs == nil || st.tabs.Selected() == nil {
		return "", nil
	}
	switch st.tabs.Selected().Text {
	case "Latency":
		return "launch_latency.png", renderLatencyChart(st)
	case "Percentiles":
		return "launch_percentiles.png", renderPercentilesChart(st)
	case "Errors":
		return "error_rate.png", renderErrorRateChart(st)
	case "Phases":
		return "launch_phases.png", renderPhasesChart(st)
	}
	return "", nil
}

func exportCurrentChart(st *uiState) {
	name, img := currentChart(st)
	if img == nil {
		dialog.ShowInformation("Export", "Select a chart tab first.", st.window)
		return
	}
	d := dialog.NewFileSave(func(wc fyne.URIWriteCloser, err error) {
		if err != nil || wc == nil {
			return
		}
		defer wc.Close()
		if err := png.Encode(wc, img); err != nil {
			dialog.ShowError(err, st.window)
			return
		}
		fmt.Printf("[viewer] exported chart to %s\n", wc.URI().Path())
	}, st.window)
	d.SetFileName(name)
	d.Show()
}

func registerShortcuts(st *uiState) {
	c := st.window.Canvas()
	open := func(_ fyne.Shortcut) { openResultsDialog(st) }
	reload := func(_ fyne.Shortcut) {
		loadAll(st)
		refreshUI(st)
	}
	quit := func(_ fyne.Shortcut) { st.window.Close() }
	for _, mod := range []fyne.KeyModifier{fyne.KeyModifierControl, fyne.KeyModifierSuper} {
		c.AddShortcut(&desktop.CustomShortcut{KeyName: fyne.KeyO, Modifier: mod}, open)
		c.AddShortcut(&desktop.CustomShortcut{KeyName: fyne.KeyR, Modifier: mod}, reload)
		c.AddShortcut(&desktop.CustomShortcut{KeyName: fyne.KeyW, Modifier: mod}, quit)
	}
}

func addRecentFile(st *uiState, path string) {
	out := []string{path}
	for _, p := range st.recentFiles {
		if p == path {
			continue
		}
		out = append(out, p)
		if len(out) >= maxRecentFiles {
			break
		}
	}
	st.recentFiles = out
}

// truncatePath shortens long paths for menu labels, keeping the tail.
func truncatePath(p string, max int) string {
	r := []rune(p)
	if max <= 1 || len(r) <= max {
		return p
	}
	return "…" + string(r[len(r)-max+1:])
}

func loadPrefs(st *uiState) {
	p := st.app.Preferences()
	st.filePath = p.StringWithFallback(prefFilePath, st.filePath)
	st.batchesN = clampBatches(p.IntWithFallback(prefBatches, st.batchesN))
	st.situation = normalizeSituationPick(p.StringWithFallback(prefSituation, st.situation))
	st.appFilter = p.StringWithFallback(prefAppFilter, st.appFilter)
	st.xAxisMode = p.StringWithFallback(prefXAxisMode, st.xAxisMode)
	st.yScaleMode = p.StringWithFallback(prefYScale, st.yScaleMode)
	st.latencyUnit = p.StringWithFallback(prefUnit, st.latencyUnit)
	st.showHints = p.BoolWithFallback(prefHints, st.showHints)
	st.watchResults = p.BoolWithFallback(prefWatch, st.watchResults)
	if raw := p.StringWithFallback(prefRecent, ""); raw != "" {
		for _, line := range strings.Split(raw, "\n") {
			if line = strings.TrimSpace(line); line != "" {
				st.recentFiles = append(st.recentFiles, line)
			}
		}
	}
}

func savePrefs(st *uiState) {
	if st.app == nil {
		return
	}
	p := st.app.Preferences()
	p.SetString(prefFilePath, st.filePath)
	p.SetInt(prefBatches, st.batchesN)
	p.SetString(prefSituation, st.situation)
	p.SetString(prefAppFilter, st.appFilter)
	p.SetString(prefXAxisMode, st.xAxisMode)
	p.SetString(prefYScale, st.yScaleMode)
	p.SetString(prefUnit, st.latencyUnit)
	p.SetBool(prefHints, st.showHints)
	p.SetBool(prefWatch, st.watchResults)
	p.SetString(prefRecent, strings.Join(st.recentFiles, "\n"))
}
