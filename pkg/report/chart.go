package report

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// Series is one line on a returns chart.
type Series struct {
	Name    string
	Returns []float64
}

// WriteReturnsChart renders an HTML page with one line of per-episode
// returns per series.
func WriteReturnsChart(w io.Writer, title string, series ...Series) error {
	if len(series) == 0 {
		return fmt.Errorf("no series to plot")
	}

	numEpisodes := 0
	for _, s := range series {
		numEpisodes = max(numEpisodes, len(s.Returns))
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title: title,
		}),
		charts.WithInitializationOpts(opts.Initialization{
			Theme: "shine",
		}),
	)

	episodes := make([]string, 0, numEpisodes)
	for i := 0; i < numEpisodes; i++ {
		episodes = append(episodes, fmt.Sprintf("%d", i))
	}
	line = line.SetXAxis(episodes)

	for _, s := range series {
		items := make([]opts.LineData, 0, len(s.Returns))
		for _, r := range s.Returns {
			items = append(items, opts.LineData{Value: r})
		}
		line.AddSeries(s.Name, items)
	}

	page := components.NewPage()
	page.AddCharts(line)
	return page.Render(w)
}
