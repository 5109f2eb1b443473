package charts

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

const (
	defaultWidth  = 900
	defaultHeight = 500
)

// dimensions resolves the chart size, falling back to the defaults.
func (s Spec) dimensions() (int, int) {
	w, h := s.Width, s.Height
	if w <= 0 {
		w = defaultWidth
	}
	if h <= 0 {
		h = defaultHeight
	}
	return w, h
}

// Render draws the aggregated groups as a PNG stream.
func Render(spec Spec, groups []Group, w io.Writer) error {
	if len(groups) == 0 {
		return fmt.Errorf("chart %q has no data", spec.Title)
	}

	switch spec.Type {
	case ChartLine:
		return renderLine(spec, groups, w)
	case ChartPie:
		return renderPie(spec, groups, w)
	default:
		return renderBar(spec, groups, w)
	}
}

// RenderDataset aggregates a dataset and renders the resulting chart.
func RenderDataset(ds *Dataset, spec Spec, w io.Writer) error {
	groups := GroupAndAggregate(ds, spec.GroupBy, spec.Measure, spec.Aggregation, spec.SortBy, spec.Limit)
	return Render(spec, groups, w)
}

// WritePNG renders a dataset's chart to a file.
func WritePNG(ds *Dataset, spec Spec, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	if err := RenderDataset(ds, spec, f); err != nil {
		return err
	}
	return f.Sync()
}

// RenderBuiltins writes every built-in chart into outputDir at the given
// size (zero means default), returning the paths written.
func RenderBuiltins(outputDir string, width, height int) ([]string, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	specs := BuiltinSpecs()
	var paths []string
	for _, ds := range BuiltinDatasets() {
		spec, ok := specs[ds.Name]
		if !ok {
			continue
		}
		spec.Width, spec.Height = width, height
		path := filepath.Join(outputDir, ds.Name+".png")
		if err := WritePNG(ds, spec, path); err != nil {
			return paths, err
		}
		log.Printf("📊 Rendered %s", path)
		paths = append(paths, path)
	}
	return paths, nil
}

func renderBar(spec Spec, groups []Group, w io.Writer) error {
	bars := make([]chart.Value, 0, len(groups))
	for i, g := range groups {
		bars = append(bars, chart.Value{
			Label: g.Label,
			Value: RoundTo2(g.Value),
			Style: chart.Style{FillColor: paletteColor(i), StrokeWidth: 0},
		})
	}

	width, height := spec.dimensions()
	bc := chart.BarChart{
		Title:      spec.Title,
		Width:      width,
		Height:     height,
		BarWidth:   60,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16}},
		YAxis: chart.YAxis{
			Name: spec.YLabel,
		},
		Bars: bars,
	}
	return bc.Render(chart.PNG, w)
}

func renderLine(spec Spec, groups []Group, w io.Writer) error {
	xs := make([]float64, 0, len(groups))
	ys := make([]float64, 0, len(groups))
	ticks := make([]chart.Tick, 0, len(groups))
	for i, g := range groups {
		xs = append(xs, float64(i))
		ys = append(ys, RoundTo2(g.Value))
		ticks = append(ticks, chart.Tick{Value: float64(i), Label: g.Label})
	}

	width, height := spec.dimensions()
	c := chart.Chart{
		Title:      spec.Title,
		Width:      width,
		Height:     height,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16}},
		XAxis: chart.XAxis{
			Name:  spec.XLabel,
			Ticks: ticks,
		},
		YAxis: chart.YAxis{
			Name: spec.YLabel,
		},
		Series: []chart.Series{
			chart.ContinuousSeries{
				Name:    spec.Title,
				XValues: xs,
				YValues: ys,
				Style: chart.Style{
					StrokeColor: paletteColor(0),
					StrokeWidth: 2,
					DotColor:    paletteColor(0),
					DotWidth:    4,
				},
			},
		},
	}
	return c.Render(chart.PNG, w)
}

func renderPie(spec Spec, groups []Group, w io.Writer) error {
	values := make([]chart.Value, 0, len(groups))
	for i, g := range groups {
		values = append(values, chart.Value{
			Label: g.Label,
			Value: RoundTo2(g.Value),
			Style: chart.Style{FillColor: paletteColor(i)},
		})
	}

	_, height := spec.dimensions()
	pc := chart.PieChart{
		Title:  spec.Title,
		Width:  height, // pies render square
		Height: height,
		Values: values,
	}
	return pc.Render(chart.PNG, w)
}

func paletteColor(i int) drawing.Color {
	return drawing.ColorFromHex(paletteHex[i%len(paletteHex)])
}
