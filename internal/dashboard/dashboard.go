// Package dashboard renders a live terminal view of a running search: the
// flywheel's throughput and latency next to the journal as frames land.
package dashboard

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	ui "github.com/gizak/termui/v3"
	"github.com/gizak/termui/v3/widgets"

	"github.com/torosent/flywheel/internal/metrics"
	"github.com/torosent/flywheel/internal/simframe"
)

const (
	refreshInterval = 500 * time.Millisecond
	historySize     = 100
	maxJournalRows  = 200
	maxErrorRows    = 10
)

// Info describes the run in the summary pane.
type Info struct {
	Target      string        // empty for the diag driver
	Driver      string        // http or diag
	Strategy    string        // findmax or optimo
	RunID       string        // ULID of the run
	Concurrency int           // initial workers
	Rate        float64       // initial ops/s (0 = unlimited)
	Duration    time.Duration // flywheel lifetime cap (0 = none)
	ConfigFile  string        // path to config file if used
}

// Dashboard draws the flywheel collector and the search journal.
type Dashboard struct {
	collector    *metrics.Collector
	info         Info
	ctx          context.Context
	cancel       context.CancelFunc
	shutdownFunc func()
	wg           sync.WaitGroup
	mu           sync.Mutex
	stopOnce     sync.Once

	grid           *ui.Grid
	summaryPara    *widgets.Paragraph
	opsGauge       *widgets.Gauge
	flywheelPara   *widgets.Paragraph
	latencySparkle *widgets.SparklineGroup
	valueSparkle   *widgets.SparklineGroup
	statusPara     *widgets.Paragraph
	journalList    *widgets.List
	errorList      *widgets.List

	latencyHistory []float64
	valueHistory   []float64
	frames         []simframe.FrameRecord
	bestIndex      int
	status         string
	peakOps        float64
	startTime      time.Time
}

// New takes over the terminal. shutdownFunc runs when the user presses q.
func New(collector *metrics.Collector, info Info, shutdownFunc func()) (*Dashboard, error) {
	if err := ui.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize termui: %w", err)
	}
	d := newDashboard(collector, info, shutdownFunc)
	d.setupGrid()
	return d, nil
}

func newDashboard(collector *metrics.Collector, info Info, shutdownFunc func()) *Dashboard {
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dashboard{
		collector:      collector,
		info:           info,
		ctx:            ctx,
		cancel:         cancel,
		shutdownFunc:   shutdownFunc,
		latencyHistory: make([]float64, 0, historySize),
		valueHistory:   make([]float64, 0, historySize),
		bestIndex:      -1,
		status:         "warming up",
		startTime:      time.Now(),
	}
	d.initWidgets()
	return d
}

func (d *Dashboard) initWidgets() {
	latency := widgets.NewSparkline()
	latency.Title = "Mean latency (ms)"
	latency.LineColor = ui.ColorGreen
	latency.Data = []float64{0}
	d.latencySparkle = widgets.NewSparklineGroup(latency)
	d.latencySparkle.Title = "Latency"
	d.latencySparkle.BorderStyle.Fg = ui.ColorCyan

	value := widgets.NewSparkline()
	value.Title = "Frame value"
	value.LineColor = ui.ColorMagenta
	value.Data = []float64{0}
	d.valueSparkle = widgets.NewSparklineGroup(value)
	d.valueSparkle.Title = "Search"
	d.valueSparkle.BorderStyle.Fg = ui.ColorCyan

	d.opsGauge = widgets.NewGauge()
	d.opsGauge.Title = "Operations Per Second"
	d.opsGauge.BarColor = ui.ColorBlue
	d.opsGauge.BorderStyle.Fg = ui.ColorCyan
	d.opsGauge.LabelStyle = ui.NewStyle(ui.ColorWhite)

	d.summaryPara = widgets.NewParagraph()
	d.summaryPara.Title = "Run"
	d.summaryPara.Text = "Initializing..."
	d.summaryPara.BorderStyle.Fg = ui.ColorCyan

	d.flywheelPara = widgets.NewParagraph()
	d.flywheelPara.Title = "Flywheel"
	d.flywheelPara.Text = "Waiting for data..."
	d.flywheelPara.BorderStyle.Fg = ui.ColorCyan

	d.statusPara = widgets.NewParagraph()
	d.statusPara.Title = "Planner"
	d.statusPara.Text = d.status
	d.statusPara.TextStyle = ui.NewStyle(ui.ColorYellow)
	d.statusPara.BorderStyle.Fg = ui.ColorCyan

	d.journalList = widgets.NewList()
	d.journalList.Title = "Journal"
	d.journalList.Rows = []string{"No frames yet"}
	d.journalList.TextStyle = ui.NewStyle(ui.ColorWhite)
	d.journalList.BorderStyle.Fg = ui.ColorCyan

	d.errorList = widgets.NewList()
	d.errorList.Title = "Failures"
	d.errorList.Rows = []string{"No failures"}
	d.errorList.TextStyle = ui.NewStyle(ui.ColorYellow)
	d.errorList.BorderStyle.Fg = ui.ColorCyan
}

func (d *Dashboard) setupGrid() {
	termWidth, termHeight := ui.TerminalDimensions()

	d.grid = ui.NewGrid()
	d.grid.SetRect(0, 0, termWidth, termHeight)
	d.grid.Set(
		ui.NewRow(0.14,
			ui.NewCol(0.6, d.summaryPara),
			ui.NewCol(0.4, d.statusPara),
		),
		ui.NewRow(0.22,
			ui.NewCol(0.5, d.opsGauge),
			ui.NewCol(0.5, d.flywheelPara),
		),
		ui.NewRow(0.22,
			ui.NewCol(0.5, d.latencySparkle),
			ui.NewCol(0.5, d.valueSparkle),
		),
		ui.NewRow(0.42,
			ui.NewCol(0.7, d.journalList),
			ui.NewCol(0.3, d.errorList),
		),
	)
}

func (d *Dashboard) Start() {
	d.wg.Add(1)
	go d.run()
}

// Stop restores the terminal. It is safe to call more than once.
func (d *Dashboard) Stop() {
	d.stopOnce.Do(func() {
		d.cancel()
		d.wg.Wait()
		if d.grid != nil {
			ui.Close()
		}
	})
}

func (d *Dashboard) run() {
	defer d.wg.Done()

	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()

	uiEvents := ui.PollEvents()
	d.render()

	for {
		select {
		case <-d.ctx.Done():
			return
		case e := <-uiEvents:
			switch e.ID {
			case "q", "<C-c>":
				if d.shutdownFunc != nil {
					d.shutdownFunc()
				}
			case "<Resize>":
				payload := e.Payload.(ui.Resize)
				d.mu.Lock()
				d.grid.SetRect(0, 0, payload.Width, payload.Height)
				d.mu.Unlock()
				ui.Clear()
				d.render()
			}
		case <-ticker.C:
			d.update(time.Since(d.startTime))
			d.render()
		}
	}
}

func (d *Dashboard) render() {
	d.mu.Lock()
	defer d.mu.Unlock()
	ui.Render(d.grid)
}

// update refreshes the collector-driven widgets.
func (d *Dashboard) update(elapsed time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()

	stats := d.collector.Stats(elapsed)

	if stats.Total > 0 {
		d.latencyHistory = appendBounded(d.latencyHistory, stats.MeanLatencyMs)
		d.latencySparkle.Sparklines[0].Data = d.latencyHistory
		d.latencySparkle.Title = fmt.Sprintf("Latency | Mean: %.2fms | P99: %.2fms", stats.MeanLatencyMs, stats.P99LatencyMs)
	}

	ops := stats.RequestsPerSec
	d.peakOps = math.Max(d.peakOps, ops)
	d.opsGauge.Percent = 0
	if d.peakOps > 0 {
		d.opsGauge.Percent = min(100, int(ops/d.peakOps*100))
	}
	d.opsGauge.Label = fmt.Sprintf("%.1f ops/s (peak %.1f)", ops, d.peakOps)

	d.summaryPara.Text = fmt.Sprintf("%s\n%s\nElapsed: %s | Frames: %d",
		d.headline(), formatInfo(d.info), elapsed.Round(time.Second), len(d.frames))

	d.flywheelPara.Text = fmt.Sprintf(
		"Operations:   %d\nSuccessful:   %d\nFailed:       %d\nTries P99:    %.0f\nP50/P90/P99:  %.2f / %.2f / %.2f ms",
		stats.Total, stats.Successes, stats.Failures, stats.TriesP99,
		stats.P50LatencyMs, stats.P90LatencyMs, stats.P99LatencyMs,
	)

	d.errorList.Rows = formatErrorRows(stats.Errors)
	d.statusPara.Text = d.status
}

func (d *Dashboard) headline() string {
	parts := []string{fmt.Sprintf("[%s](fg:cyan,mod:bold)", d.info.Strategy)}
	if d.info.Target != "" {
		parts = append(parts, d.info.Target)
	}
	if d.info.RunID != "" {
		parts = append(parts, "run "+d.info.RunID)
	}
	return strings.Join(parts, " | ")
}

func (d *Dashboard) settling(params string, waited, total time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.status = fmt.Sprintf("settling %s\n%s of %s", params, waited.Round(time.Second), total.Round(time.Second))
	d.statusPara.Text = d.status
}

func (d *Dashboard) recorded(frame, best simframe.FrameRecord) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.frames = append(d.frames, frame)
	if len(d.frames) > maxJournalRows {
		d.frames = d.frames[len(d.frames)-maxJournalRows:]
	}
	d.bestIndex = best.Index

	d.valueHistory = appendBounded(d.valueHistory, plottable(frame.Value))
	d.valueSparkle.Sparklines[0].Data = d.valueHistory
	d.valueSparkle.Title = fmt.Sprintf("Search | Last: %.4g | Best: %.4g (#%d)", frame.Value, best.Value, best.Index)

	d.journalList.Rows = formatJournalRows(d.frames, d.bestIndex)
	d.journalList.ScrollBottom()

	d.status = fmt.Sprintf("frame %d %s\nvalue=%.4g best=%.4g", frame.Index, frame.Label, frame.Value, best.Value)
	d.statusPara.Text = d.status
}

// FrameObserver feeds a search's frames into the dashboard.
func FrameObserver[P simframe.Params](d *Dashboard) simframe.Observer[P] {
	return &frameObserver[P]{d: d}
}

type frameObserver[P simframe.Params] struct {
	d *Dashboard
}

func (o *frameObserver[P]) Settling(params P, waited, total time.Duration) {
	o.d.settling(simframe.FormatValues(params.Values()), waited, total)
}

func (o *frameObserver[P]) Recorded(frame, best simframe.SimFrame[P]) {
	o.d.recorded(frame.Record(), best.Record())
}

func appendBounded(history []float64, v float64) []float64 {
	history = append(history, v)
	if len(history) > historySize {
		history = history[len(history)-historySize:]
	}
	return history
}

// plottable maps values a sparkline cannot draw to zero.
func plottable(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

func formatJournalRows(frames []simframe.FrameRecord, bestIndex int) []string {
	if len(frames) == 0 {
		return []string{"No frames yet"}
	}
	rows := make([]string, 0, len(frames))
	for _, f := range frames {
		row := fmt.Sprintf("%3d %-8s %s value=%.6g", f.Index, f.Label, simframe.FormatValues(f.Params), f.Value)
		if f.Index == bestIndex {
			row = fmt.Sprintf("[* %s](fg:green,mod:bold)", row)
		} else {
			row = "  " + row
		}
		rows = append(rows, row)
	}
	return rows
}

func formatErrorRows(errs map[string]int) []string {
	if len(errs) == 0 {
		return []string{"[No failures](fg:green)"}
	}
	kinds := make([]string, 0, len(errs))
	for kind := range errs {
		kinds = append(kinds, kind)
	}
	sort.Slice(kinds, func(i, j int) bool {
		if errs[kinds[i]] == errs[kinds[j]] {
			return kinds[i] < kinds[j]
		}
		return errs[kinds[i]] > errs[kinds[j]]
	})
	if len(kinds) > maxErrorRows {
		kinds = kinds[:maxErrorRows]
	}
	rows := make([]string, 0, len(kinds))
	for _, kind := range kinds {
		rows = append(rows, fmt.Sprintf("[%s](fg:red) %d", kind, errs[kind]))
	}
	return rows
}

func formatInfo(info Info) string {
	var parts []string
	if info.Driver != "" && info.Driver != "http" {
		parts = append(parts, fmt.Sprintf("Driver: %s", info.Driver))
	}
	if info.Concurrency > 0 {
		parts = append(parts, fmt.Sprintf("Workers: %d", info.Concurrency))
	}
	if info.Rate > 0 {
		parts = append(parts, fmt.Sprintf("Start rate: %g/s", info.Rate))
	} else {
		parts = append(parts, "Start rate: unlimited")
	}
	if info.Duration > 0 {
		parts = append(parts, fmt.Sprintf("Cap: %s", info.Duration))
	}
	if info.ConfigFile != "" {
		parts = append(parts, fmt.Sprintf("Config: %s", info.ConfigFile))
	}
	return strings.Join(parts, " | ")
}
