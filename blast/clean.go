package blast

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"os"
	"strings"
)

// The two reference database layouts the cleaner understands. PR2 taxonomy
// strings carry eight ranks (Domain;Supergroup;Division;Class;Order;Family;
// Genus;Species); SILVA strings carry six (Domain..Genus), with no species.
const (
	FormatPR2   = "pr2"
	FormatSilva = "silva"
)

// Hit is one line of tabular BLAST output.
type Hit struct {
	QueryID  string
	Subject  string
	Identity string
	Length   string
	Taxonomy string
}

// ParseHits reads a tabular BLAST output file, keeping only the first line
// per query. BLAST emits hits best-first within a query, so first wins.
func ParseHits(blastFile string) ([]Hit, error) {
	file, err := os.Open(blastFile)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	seen := make(map[string]bool)
	var hits []Hit

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)
	for scanner.Scan() {
		fields := strings.Split(scanner.Text(), "\t")
		if len(fields) < 7 {
			continue
		}
		if seen[fields[0]] {
			continue
		}
		seen[fields[0]] = true
		hits = append(hits, Hit{
			QueryID:  fields[0],
			Subject:  fields[1],
			Identity: fields[2],
			Length:   fields[3],
			Taxonomy: fields[6],
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return hits, nil
}

// taxonomyRanks maps a database taxonomy string onto the seven output ranks
// (Domain, Phylum, Class, Order, Family, Genus, Species). Missing trailing
// ranks are padded with unclassified_<last known rank> placeholders.
func taxonomyRanks(format string, taxonomy string) [7]string {
	parts := strings.Split(taxonomy, ";")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	// Trailing empty fields from "...;...;" style strings.
	for len(parts) > 0 && parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}

	if format == FormatPR2 && len(parts) >= 8 {
		// Drop the Supergroup rank; Division stands in for Phylum.
		parts = append(parts[:1:1], parts[2:]...)
	}

	var ranks [7]string
	last := "root"
	for i := 0; i < 7; i++ {
		if i < len(parts) && parts[i] != "" {
			ranks[i] = parts[i]
			last = parts[i]
		} else {
			ranks[i] = "unclassified_" + last
		}
	}
	return ranks
}

// CleanOutput converts one sample's BLAST output into the classification
// table consumed by the merger: one row per best-hit read, seven taxonomic
// ranks, identity and alignment length passed through.
func CleanOutput(blastFile string, format string, outputFile string) (int, error) {
	if format != FormatPR2 && format != FormatSilva {
		return 0, fmt.Errorf("unknown reference database format %q", format)
	}

	hits, err := ParseHits(blastFile)
	if err != nil {
		return 0, err
	}

	file, err := os.Create(outputFile)
	if err != nil {
		return 0, err
	}
	defer func(file *os.File) {
		if cErr := file.Close(); cErr != nil {
			panic(cErr)
		}
	}(file)

	writer := csv.NewWriter(file)
	writer.Comma = '\t'
	defer writer.Flush()

	header := []string{"ReadID", "Domain", "Phylum", "Class", "Order", "Family", "Genus", "Species", "Identity", "Length"}
	if hErr := writer.Write(header); hErr != nil {
		return 0, hErr
	}

	for _, hit := range hits {
		ranks := taxonomyRanks(format, hit.Taxonomy)
		row := append([]string{hit.QueryID}, ranks[:]...)
		row = append(row, hit.Identity, hit.Length)
		if wErr := writer.Write(row); wErr != nil {
			return 0, wErr
		}
	}
	return len(hits), nil
}
