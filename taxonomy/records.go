package taxonomy

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"
)

// ClassificationRecord is one best-hit taxonomic assignment for a single
// read, as produced by the cleanblast stage. Identity and Length are carried
// through from the BLAST output but not used by the merger.
type ClassificationRecord struct {
	ReadID   string
	Domain   string
	Phylum   string
	Class    string
	Order    string
	Family   string
	Genus    string
	Species  string
	Identity string
	Length   string
}

// Accession derives the sample run accession from the read identifier: the
// text before the first "." (read IDs are of the form ERR2261394.12345).
func (r ClassificationRecord) Accession() string {
	return strings.SplitN(r.ReadID, ".", 2)[0]
}

// SampleMetadata is one row of the externally curated sample table, keyed by
// run accession.
type SampleMetadata struct {
	RunAccession   string
	Plant          string
	CollectionDate string
	Latitude       string
	Country        string
}

// plantCodes maps the full facility names used in the curated metadata to the
// short codes used in figures and tables.
var plantCodes = map[string]string{
	"Avedoere Wastewater Treatment Plant":   "AVE",
	"Damhusaaen Wastewater Treatment Plant": "DAM",
	"Lynetten Wastewater Treatment Plant":   "LYN",
	"Klagshamn Wastewater Treatment Plant":  "KLA",
	"Sjoelunda Wastewater Treatment Plant":  "SJO",
	"Kallby Wastewater Treatment Plant":     "KAL",
}

// NormalizePlant returns the short facility code for a metadata plant name.
// Unknown names pass through unchanged.
func NormalizePlant(name string) string {
	if code, ok := plantCodes[name]; ok {
		return code
	}
	return name
}

// ReadClassificationTable reads one per-sample classification table (tab
// separated, with header) into records. Columns beyond the known set are
// ignored; the seven taxonomic ranks and ReadID are required.
func ReadClassificationTable(tsvFile string) ([]ClassificationRecord, error) {
	file, err := os.Open(tsvFile)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.Comma = '\t'
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) < 1 {
		return nil, fmt.Errorf("classification table %s has no header", tsvFile)
	}

	header := rows[0]
	colIndex := make(map[string]int)
	for i, col := range header {
		colIndex[col] = i
	}

	requiredCols := []string{"ReadID", "Domain", "Phylum", "Class", "Order", "Family", "Genus", "Species"}
	for _, col := range requiredCols {
		if _, ok := colIndex[col]; !ok {
			return nil, fmt.Errorf("required column %s not found in header of %s", col, tsvFile)
		}
	}

	field := func(row []string, col string) string {
		idx, ok := colIndex[col]
		if !ok || idx >= len(row) {
			return ""
		}
		return row[idx]
	}

	var data []ClassificationRecord
	for _, row := range rows[1:] {
		data = append(data, ClassificationRecord{
			ReadID:   field(row, "ReadID"),
			Domain:   field(row, "Domain"),
			Phylum:   field(row, "Phylum"),
			Class:    field(row, "Class"),
			Order:    field(row, "Order"),
			Family:   field(row, "Family"),
			Genus:    field(row, "Genus"),
			Species:  field(row, "Species"),
			Identity: field(row, "Identity"),
			Length:   field(row, "Length"),
		})
	}
	return data, nil
}

// ReadSampleMetadata loads the curated sample table keyed by run accession.
// Plant names are normalized to their short codes on load.
func ReadSampleMetadata(tsvFile string) (map[string]SampleMetadata, error) {
	file, err := os.Open(tsvFile)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.Comma = '\t'
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) < 1 {
		return nil, fmt.Errorf("metadata table %s has no header", tsvFile)
	}

	header := rows[0]
	colIndex := make(map[string]int)
	for i, col := range header {
		colIndex[col] = i
	}
	if _, ok := colIndex["run_accession"]; !ok {
		return nil, fmt.Errorf("required column run_accession not found in header of %s", tsvFile)
	}

	field := func(row []string, col string) string {
		idx, ok := colIndex[col]
		if !ok || idx >= len(row) {
			return ""
		}
		return row[idx]
	}

	metadata := make(map[string]SampleMetadata)
	for _, row := range rows[1:] {
		acc := field(row, "run_accession")
		if acc == "" {
			continue
		}
		metadata[acc] = SampleMetadata{
			RunAccession:   acc,
			Plant:          NormalizePlant(field(row, "plant")),
			CollectionDate: field(row, "collection_date"),
			Latitude:       field(row, "latitude"),
			Country:        field(row, "country"),
		}
	}
	return metadata, nil
}
