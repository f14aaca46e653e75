package community

import (
	"fmt"
	"os"
	"sort"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"

	"gonum.org/v1/gonum/mat"
)

func createDiversityBar(div []SampleDiversity) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Theme: types.ThemeWesteros}),
		charts.WithTitleOpts(opts.Title{Title: "Shannon diversity per sample"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Shannon index"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Sample"}),
	)

	var x []string
	var yData []opts.BarData
	for _, d := range div {
		label := d.Accession
		if d.Plant != "" {
			label = fmt.Sprintf("%s (%s)", d.Accession, d.Plant)
		}
		x = append(x, label)
		yData = append(yData, opts.BarData{Value: fmtFloat(d.Shannon)})
	}
	bar.SetXAxis(x).AddSeries("Shannon", yData)
	return bar
}

func createCompositionBar(summary map[string]map[string]float64) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Theme: types.ThemeWesteros}),
		charts.WithTitleOpts(opts.Title{Title: "Microbial community composition per plant"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Relative abundance"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Plant"}),
	)

	plants := sortedPlants(summary)
	relative := RelativeAbundance(summary)

	bar.SetXAxis(plants)
	for _, comm := range CommunityOrder {
		var data []opts.BarData
		seen := false
		for _, plant := range plants {
			v := relative[plant][comm]
			if v > 0 {
				seen = true
			}
			data = append(data, opts.BarData{Value: fmtFloat(v)})
		}
		if !seen {
			continue
		}
		bar.AddSeries(comm, data)
	}
	bar.SetSeriesOptions(charts.WithBarChartOpts(opts.BarChart{Stack: "community"}))
	return bar
}

func createOrdinationScatter(samples []string, plants map[string]string, coords *mat.Dense, explained []float64) *charts.Scatter {
	scatter := charts.NewScatter()
	xTitle := "PCo1"
	yTitle := "PCo2"
	if len(explained) >= 2 {
		xTitle = fmt.Sprintf("PCo1 (%.1f%%)", explained[0]*100)
		yTitle = fmt.Sprintf("PCo2 (%.1f%%)", explained[1]*100)
	}
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Theme: types.ThemeWesteros}),
		charts.WithTitleOpts(opts.Title{Title: "PCoA of Bray-Curtis dissimilarities"}),
		charts.WithXAxisOpts(opts.XAxis{Name: xTitle, Type: "value"}),
		charts.WithYAxisOpts(opts.YAxis{Name: yTitle, Type: "value"}),
	)

	byPlant := make(map[string][]opts.ScatterData)
	for i, sample := range samples {
		plant := plants[sample]
		if plant == "" {
			plant = "unknown"
		}
		y := 0.0
		if coords.RawMatrix().Cols > 1 {
			y = coords.At(i, 1)
		}
		byPlant[plant] = append(byPlant[plant], opts.ScatterData{
			Name:  sample,
			Value: []interface{}{coords.At(i, 0), y},
		})
	}
	for _, plant := range sortedKeys(byPlant) {
		scatter.AddSeries(plant, byPlant[plant])
	}
	return scatter
}

func createLatitudeScatter(div []SampleDiversity) *charts.Scatter {
	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Theme: types.ThemeWesteros}),
		charts.WithTitleOpts(opts.Title{Title: "Shannon diversity vs latitude"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Latitude", Type: "value"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Shannon index", Type: "value"}),
	)

	var points []opts.ScatterData
	for _, d := range div {
		lat, ok := parseLatitude(d.Latitude)
		if !ok {
			continue
		}
		points = append(points, opts.ScatterData{Name: d.Accession, Value: []interface{}{lat, d.Shannon}})
	}
	scatter.AddSeries("samples", points)

	if alpha, beta, ok := LatitudeTrend(div); ok {
		var fit []opts.ScatterData
		for _, d := range div {
			lat, latOK := parseLatitude(d.Latitude)
			if !latOK {
				continue
			}
			fit = append(fit, opts.ScatterData{Value: []interface{}{lat, alpha + beta*lat}, SymbolSize: 4})
		}
		scatter.AddSeries(fmt.Sprintf("fit (slope %.3f)", beta), fit)
	}
	return scatter
}

func sortedKeys(m map[string][]opts.ScatterData) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func renderPage(outputHTML string, chartList ...components.Charter) error {
	page := components.NewPage()
	page.AddCharts(chartList...)

	f, err := os.Create(outputHTML)
	if err != nil {
		return err
	}
	defer f.Close()
	return page.Render(f)
}

// PlotDiversity renders the per-sample Shannon bar chart and the latitude
// trend into one HTML page.
func PlotDiversity(div []SampleDiversity, outputHTML string) error {
	return renderPage(outputHTML, createDiversityBar(div), createLatitudeScatter(div))
}

// PlotComposition renders the stacked relative-abundance bar chart.
func PlotComposition(summary map[string]map[string]float64, outputHTML string) error {
	return renderPage(outputHTML, createCompositionBar(summary))
}

// PlotOrdination renders the PCoA scatter colored by plant.
func PlotOrdination(samples []string, plants map[string]string, coords *mat.Dense, explained []float64, outputHTML string) error {
	return renderPage(outputHTML, createOrdinationScatter(samples, plants, coords, explained))
}
