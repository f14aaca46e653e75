package community

import (
	"encoding/csv"
	"os"
	"sort"
	"strconv"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// Communities in the order used throughout the figures.
var CommunityOrder = []string{"Bacteria", "Archaea", "Protists", "Fungi", "Metazoa", "Unknown"}

// CompositionSummary sums read counts per plant and microbial community from
// the merged table. Rows without a plant (accessions that had no metadata
// match) are excluded here; the merger deliberately kept them.
func CompositionSummary(mergedTSV string) (map[string]map[string]float64, error) {
	file, err := os.Open(mergedTSV)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	df := dataframe.ReadCSV(file, dataframe.WithDelimiter('\t'))
	if df.Error() != nil {
		return nil, df.Error()
	}

	df = df.Filter(dataframe.F{Colname: "Plant", Comparator: series.Neq, Comparando: ""})
	if df.Error() != nil {
		return nil, df.Error()
	}

	grouped := df.GroupBy("Plant", "MicrobialCommunity").Aggregation(
		[]dataframe.AggregationType{dataframe.Aggregation_SUM}, []string{"ReadCount"})
	if grouped.Error() != nil {
		return nil, grouped.Error()
	}

	plants := grouped.Col("Plant").Records()
	communities := grouped.Col("MicrobialCommunity").Records()
	sums := grouped.Col("ReadCount_SUM").Records()

	summary := make(map[string]map[string]float64)
	for i := range plants {
		if summary[plants[i]] == nil {
			summary[plants[i]] = make(map[string]float64)
		}
		v, pErr := strconv.ParseFloat(sums[i], 64)
		if pErr != nil {
			continue
		}
		summary[plants[i]][communities[i]] += v
	}
	return summary, nil
}

// RelativeAbundance converts per-plant community read sums to fractions.
func RelativeAbundance(summary map[string]map[string]float64) map[string]map[string]float64 {
	out := make(map[string]map[string]float64, len(summary))
	for plant, byCommunity := range summary {
		var total float64
		for _, v := range byCommunity {
			total += v
		}
		out[plant] = make(map[string]float64, len(byCommunity))
		if total == 0 {
			continue
		}
		for community, v := range byCommunity {
			out[plant][community] = v / total
		}
	}
	return out
}

// WriteCompositionTable writes per-plant read sums and relative abundances,
// one row per plant and community.
func WriteCompositionTable(summary map[string]map[string]float64, outputFile string) error {
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

	if hErr := writer.Write([]string{"Plant", "MicrobialCommunity", "ReadCount", "RelativeAbundance"}); hErr != nil {
		return hErr
	}

	relative := RelativeAbundance(summary)
	for _, plant := range sortedPlants(summary) {
		for _, community := range CommunityOrder {
			count, ok := summary[plant][community]
			if !ok {
				continue
			}
			row := []string{
				plant, community,
				strconv.FormatFloat(count, 'f', 0, 64),
				strconv.FormatFloat(relative[plant][community], 'f', 6, 64),
			}
			if wErr := writer.Write(row); wErr != nil {
				return wErr
			}
		}
	}
	return nil
}

func sortedPlants(summary map[string]map[string]float64) []string {
	plants := make([]string, 0, len(summary))
	for p := range summary {
		plants = append(plants, p)
	}
	sort.Strings(plants)
	return plants
}
