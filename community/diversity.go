// Package community holds the downstream consumers of the merged genus
// table: diversity indices, ordination, PERMANOVA and composition charts.
// The statistics themselves are gonum calls; nothing here re-implements a
// published algorithm.
package community

import (
	"encoding/csv"
	"fmt"
	"os"
	"sort"
	"strconv"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/mgram/wwtp-microbiome/taxonomy"
)

// CountMatrix is the sample × genus read-count matrix derived from the
// merged table, with per-sample metadata kept alongside for plotting.
type CountMatrix struct {
	Samples []string
	Genera  []string
	Counts  [][]float64

	Plants    map[string]string
	Latitudes map[string]string
}

// BuildCountMatrix pivots merged records into a dense sample × genus matrix.
// Rows and columns are sorted for deterministic output.
func BuildCountMatrix(records []taxonomy.MergedRecord) *CountMatrix {
	sampleSet := make(map[string]bool)
	genusSet := make(map[string]bool)
	plants := make(map[string]string)
	latitudes := make(map[string]string)
	for _, rec := range records {
		sampleSet[rec.Accession] = true
		genusSet[rec.Genus] = true
		plants[rec.Accession] = rec.Plant
		latitudes[rec.Accession] = rec.Latitude
	}

	samples := make([]string, 0, len(sampleSet))
	for s := range sampleSet {
		samples = append(samples, s)
	}
	sort.Strings(samples)

	genera := make([]string, 0, len(genusSet))
	for g := range genusSet {
		genera = append(genera, g)
	}
	sort.Strings(genera)

	sampleIdx := make(map[string]int, len(samples))
	for i, s := range samples {
		sampleIdx[s] = i
	}
	genusIdx := make(map[string]int, len(genera))
	for i, g := range genera {
		genusIdx[g] = i
	}

	counts := make([][]float64, len(samples))
	for i := range counts {
		counts[i] = make([]float64, len(genera))
	}
	for _, rec := range records {
		counts[sampleIdx[rec.Accession]][genusIdx[rec.Genus]] += float64(rec.ReadCount)
	}

	return &CountMatrix{
		Samples:   samples,
		Genera:    genera,
		Counts:    counts,
		Plants:    plants,
		Latitudes: latitudes,
	}
}

// ShannonIndex is the Shannon diversity of one sample's genus counts:
// the entropy of the count proportions.
func ShannonIndex(counts []float64) float64 {
	total := floats.Sum(counts)
	if total == 0 {
		return 0
	}
	p := make([]float64, len(counts))
	for i, c := range counts {
		p[i] = c / total
	}
	return stat.Entropy(p)
}

// SampleDiversity is one sample's diversity summary.
type SampleDiversity struct {
	Accession string
	Plant     string
	Latitude  string
	Richness  int
	Shannon   float64
}

// Diversity computes richness and Shannon index per sample.
func Diversity(records []taxonomy.MergedRecord) []SampleDiversity {
	m := BuildCountMatrix(records)

	var out []SampleDiversity
	for i, sample := range m.Samples {
		richness := 0
		for _, c := range m.Counts[i] {
			if c > 0 {
				richness++
			}
		}
		out = append(out, SampleDiversity{
			Accession: sample,
			Plant:     m.Plants[sample],
			Latitude:  m.Latitudes[sample],
			Richness:  richness,
			Shannon:   ShannonIndex(m.Counts[i]),
		})
	}
	return out
}

// WriteDiversityTable writes the per-sample diversity report.
func WriteDiversityTable(div []SampleDiversity, outputFile string) error {
	file, err := os.Create(outputFile)
	if err != nil {
		return err
	}
	defer func(file *os.File) {
		if cErr := file.Close(); cErr != nil {
			panic(cErr)
		}
	}(file)

	writer := csv.NewWriter(file)
	writer.Comma = '\t'
	defer writer.Flush()

	if hErr := writer.Write([]string{"SampleAccession", "Plant", "Latitude", "Richness", "Shannon"}); hErr != nil {
		return hErr
	}
	for _, d := range div {
		row := []string{
			d.Accession, d.Plant, d.Latitude,
			strconv.Itoa(d.Richness),
			strconv.FormatFloat(d.Shannon, 'f', 6, 64),
		}
		if wErr := writer.Write(row); wErr != nil {
			return wErr
		}
	}
	return nil
}

// LatitudeTrend fits Shannon index against sample latitude. Samples with an
// unparseable latitude are skipped; ok is false with fewer than two points.
func LatitudeTrend(div []SampleDiversity) (alpha float64, beta float64, ok bool) {
	var lats, shannons []float64
	for _, d := range div {
		lat, err := strconv.ParseFloat(d.Latitude, 64)
		if err != nil {
			continue
		}
		lats = append(lats, lat)
		shannons = append(shannons, d.Shannon)
	}
	if len(lats) < 2 {
		return 0, 0, false
	}
	alpha, beta = stat.LinearRegression(lats, shannons, nil, false)
	return alpha, beta, true
}

func parseLatitude(s string) (float64, bool) {
	lat, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return lat, true
}

func fmtFloat(v float64) string {
	return fmt.Sprintf("%.4f", v)
}
