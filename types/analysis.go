package types

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// EpisodeStats of a single episode
type EpisodeStats struct {
	Return  float64
	Steps   int
	Invalid int
	// Moves counts the steps that requested something other than the idle action
	Moves int
	Lost  bool
}

// RewardAnalyzer collects per episode statistics
type RewardAnalyzer struct {
	idleAction string
	stats      []EpisodeStats
}

var _ Analyzer = &RewardAnalyzer{}

// NewRewardAnalyzer counts every action other than idleAction as a move
func NewRewardAnalyzer(idleAction string) *RewardAnalyzer {
	return &RewardAnalyzer{
		idleAction: idleAction,
		stats:      make([]EpisodeStats, 0),
	}
}

func (r *RewardAnalyzer) Analyze(_ int, _ int, _ string, trace *Trace) {
	r.stats = append(r.stats, EpisodeStats{
		Return:  trace.Return(),
		Steps:   trace.Len(),
		Invalid: trace.Invalid(),
		Moves:   trace.Len() - trace.Count(r.idleAction),
		Lost:    trace.Lost(),
	})
}

func (r *RewardAnalyzer) DataSet() DataSet {
	out := make([]EpisodeStats, len(r.stats))
	copy(out, r.stats)
	return out
}

func (r *RewardAnalyzer) Reset() {
	r.stats = make([]EpisodeStats, 0)
}

// Returns extracts the episode returns of a RewardAnalyzer dataset
func Returns(ds DataSet) []float64 {
	stats, ok := ds.([]EpisodeStats)
	if !ok {
		return nil
	}
	out := make([]float64, len(stats))
	for i, s := range stats {
		out[i] = s.Return
	}
	return out
}

// Summary statistics of a series of returns
type Summary struct {
	Count  int
	Mean   float64
	StdDev float64
	Min    float64
	Max    float64
}

func Summarize(values []float64) Summary {
	if len(values) == 0 {
		return Summary{}
	}
	mean, std := stat.MeanStdDev(values, nil)
	if len(values) == 1 {
		std = 0
	}
	return Summary{
		Count:  len(values),
		Mean:   mean,
		StdDev: std,
		Min:    floats.Min(values),
		Max:    floats.Max(values),
	}
}

func (s Summary) String() string {
	return fmt.Sprintf("n=%d mean=%.3f std=%.3f min=%.3f max=%.3f", s.Count, s.Mean, s.StdDev, s.Min, s.Max)
}

// RollingMean over the trailing window, shorter at the start of the series
func RollingMean(values []float64, window int) []float64 {
	if window < 1 {
		window = 1
	}
	out := make([]float64, len(values))
	for i := range values {
		from := i - window + 1
		if from < 0 {
			from = 0
		}
		out[i] = stat.Mean(values[from:i+1], nil)
	}
	return out
}

// PlotRewards saves a png with one line per series and its rolling mean
func PlotRewards(file, title string, names []string, series [][]float64, window int) error {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Episode"
	p.Y.Label.Text = "Total reward"
	for i := 0; i < len(names); i++ {
		if len(series[i]) == 0 {
			continue
		}
		points := make(plotter.XYs, len(series[i]))
		smoothed := make(plotter.XYs, len(series[i]))
		mean := RollingMean(series[i], window)
		for j, v := range series[i] {
			points[j] = plotter.XY{X: float64(j), Y: v}
			smoothed[j] = plotter.XY{X: float64(j), Y: mean[j]}
		}
		line, err := plotter.NewLine(points)
		if err != nil {
			return err
		}
		line.Color = plotutil.Color(2 * i)
		line.Width = vg.Points(0.5)
		avg, err := plotter.NewLine(smoothed)
		if err != nil {
			return err
		}
		avg.Color = plotutil.Color(2*i + 1)
		avg.Width = vg.Points(2)
		p.Add(line, avg)
		p.Legend.Add(names[i], line)
		p.Legend.Add(names[i]+" (mean "+strconv.Itoa(window)+")", avg)
	}
	if err := os.MkdirAll(filepath.Dir(file), os.ModePerm); err != nil {
		return err
	}
	return p.Save(10*vg.Inch, 6*vg.Inch, file)
}

// RenderRewardChart writes an interactive html chart of the series
func RenderRewardChart(w io.Writer, title string, names []string, series [][]float64) error {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Episode"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Total reward"}),
	)
	longest := 0
	for _, s := range series {
		if len(s) > longest {
			longest = len(s)
		}
	}
	episodes := make([]string, longest)
	for i := range episodes {
		episodes[i] = strconv.Itoa(i)
	}
	line.SetXAxis(episodes)
	for i, name := range names {
		items := make([]opts.LineData, len(series[i]))
		for j, v := range series[i] {
			items[j] = opts.LineData{Value: v}
		}
		line.AddSeries(name, items)
	}
	page := components.NewPage()
	page.AddCharts(line)
	return page.Render(w)
}

// RewardComparator plots the returns of every experiment of a run as png and html
func RewardComparator(plotPath string, window int) Comparator {
	return func(run int, _ int, names []string, datasets []DataSet) error {
		series := make([][]float64, len(datasets))
		for i, ds := range datasets {
			series[i] = Returns(ds)
		}
		title := "Run " + strconv.Itoa(run)
		if err := PlotRewards(path.Join(plotPath, strconv.Itoa(run)+"_rewards.png"), title, names, series, window); err != nil {
			return fmt.Errorf("plotting rewards: %w", err)
		}
		f, err := os.Create(path.Join(plotPath, strconv.Itoa(run)+"_rewards.html"))
		if err != nil {
			return err
		}
		defer f.Close()
		return RenderRewardChart(f, title, names, series)
	}
}

// SummaryComparator hands the summary of every experiment to report
func SummaryComparator(report func(run int, name string, s Summary)) Comparator {
	return func(run int, _ int, names []string, datasets []DataSet) error {
		for i, ds := range datasets {
			report(run, names[i], Summarize(Returns(ds)))
		}
		return nil
	}
}
