package visualization

import (
	"fmt"
	"io"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"fociclust/pkg/quantify"
)

// WriteReport renders an HTML page for one image: a bar chart of the
// objects per cluster and a scatter of the cluster centroids, each point
// carrying the pixel count of its cluster.
func WriteReport(w io.Writer, title string, stats []quantify.ClusterStats) error {
	ids := make([]string, 0, len(stats))
	counts := make([]opts.BarData, 0, len(stats))
	centers := make([]opts.ScatterData, 0, len(stats))
	for _, s := range stats {
		ids = append(ids, strconv.Itoa(s.ID))
		counts = append(counts, opts.BarData{Value: s.ObjectCount})
		if s.ObjectCount == 0 {
			continue
		}
		centers = append(centers, opts.ScatterData{
			Name:  fmt.Sprintf("cluster %d", s.ID),
			Value: []interface{}{s.Centroid.X, s.Centroid.Y, s.PixelCount},
		})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "900px", Height: "400px"}),
		charts.WithTitleOpts(opts.Title{Title: "Objects per cluster", Subtitle: fmt.Sprintf("%s clusters=%d", title, len(stats))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "cluster", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "objects"}),
	)
	bar.SetXAxis(ids).
		AddSeries("objects", counts,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "900px", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{Title: "Cluster centroids", Subtitle: "value: x, y, pixels"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "value", Name: "x (px)", NameLocation: "middle", NameGap: 25}),
		// image rows grow downwards
		charts.WithYAxisOpts(opts.YAxis{Type: "value", Name: "y (px)", Inverse: opts.Bool(true)}),
	)
	scatter.AddSeries("clusters", centers, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 12}))

	page := components.NewPage()
	page.SetPageTitle(title)
	page.AddCharts(bar, scatter)

	if err := page.Render(w); err != nil {
		return fmt.Errorf("failed to render report: %w", err)
	}
	return nil
}
