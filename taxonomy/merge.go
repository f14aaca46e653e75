// Package taxonomy merges the per-sample, per-database classification tables
// into the unified genus-level count table consumed by every analysis stage.
//
// A read is searched against only one of the two reference databases in
// practice, but nothing here enforces that: a read classified by both PR2 and
// SILVA would be counted in both, and the conservation check sums whatever is
// present. That matches the original behaviour and is left as is.
package taxonomy

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strconv"
)

// Reference database labels. PR2 covers eukaryotes, SILVA prokaryotes.
const (
	DatabasePR2   = "PR2"
	DatabaseSilva = "SILVA"
)

// DefaultMinReads is the abundance threshold: aggregates with this many reads
// or fewer are dominated by misclassification noise and are dropped.
const DefaultMinReads = 5

// genusRenames maps deprecated genus spellings to their canonical form.
var genusRenames = map[string]string{
	"Rhogostoma-lineage": "Rhogostoma",
}

// MergedRecord is one row of the final table: a genus-level read count for
// one sample, annotated with the derived classification columns and the
// joined sample metadata. Metadata fields are empty for accessions with no
// metadata match (left join).
type MergedRecord struct {
	Accession      string
	SourceDatabase string

	Domain string
	Phylum string
	Class  string
	Order  string
	Family string
	Genus  string

	ReadCount int

	Superdomain string
	Database    string
	Community   string

	Plant          string
	CollectionDate string
	Latitude       string
	Country        string
}

// ValidationResult records the read-count conservation check for one
// accession: the per-database aggregate sums against the combined table sum.
type ValidationResult struct {
	Accession string
	Expected  int
	Actual    int
	Passed    bool
}

// MissingInputError is the fatal ingest precondition: no classification
// tables found for one of the reference databases.
type MissingInputError struct {
	Database string
}

func (e *MissingInputError) Error() string {
	return fmt.Sprintf("no classification tables found for database %s", e.Database)
}

// MergeResult is the merged table together with every per-accession
// validation outcome, so mismatches are assertable and not only logged.
type MergeResult struct {
	Records     []MergedRecord
	Validations []ValidationResult
}

// Merger runs the eleven-step merge. The logger is the diagnostic stream
// required of every step and every validation outcome.
type Merger struct {
	Logger   *slog.Logger
	MinReads int
}

func NewMerger(logger *slog.Logger) *Merger {
	return &Merger{Logger: logger, MinReads: DefaultMinReads}
}

type aggKey struct {
	accession string
	domain    string
	phylum    string
	class     string
	order     string
	family    string
	genus     string
}

// Run merges the PR2 and SILVA classification tables with the sample
// metadata. It fails only on the empty-input precondition; conservation
// mismatches are reported in the result and the log, never fatal.
func (m *Merger) Run(pr2Files []string, silvaFiles []string, metadata map[string]SampleMetadata) (MergeResult, error) {
	// ------------------------------------------------ Ingest --------------------------------------------------- //
	if len(pr2Files) == 0 {
		return MergeResult{}, &MissingInputError{Database: DatabasePR2}
	}
	if len(silvaFiles) == 0 {
		return MergeResult{}, &MissingInputError{Database: DatabaseSilva}
	}

	pr2Records, err := readAllTables(pr2Files)
	if err != nil {
		return MergeResult{}, err
	}
	silvaRecords, err := readAllTables(silvaFiles)
	if err != nil {
		return MergeResult{}, err
	}
	fmt.Printf("Read %d PR2 records from %d files, %d SILVA records from %d files\n", len(pr2Records), len(pr2Files), len(silvaRecords), len(silvaFiles))
	m.Logger.Info("MERGE", "STEP", "ingest", "PR2_RECORDS", len(pr2Records), "SILVA_RECORDS", len(silvaRecords), "STATUS", "COMPLETED")

	// ---------------------------------------------- Deduplicate ------------------------------------------------ //
	pr2Records = dedupeRecords(pr2Records)
	silvaRecords = dedupeRecords(silvaRecords)
	fmt.Printf("After deduplication: %d PR2 records, %d SILVA records\n", len(pr2Records), len(silvaRecords))
	m.Logger.Info("MERGE", "STEP", "deduplicate", "PR2_RECORDS", len(pr2Records), "SILVA_RECORDS", len(silvaRecords), "STATUS", "COMPLETED")

	// ----------------------------------------------- Aggregate ------------------------------------------------- //
	pr2Aggs := aggregateRecords(pr2Records, DatabasePR2)
	silvaAggs := aggregateRecords(silvaRecords, DatabaseSilva)
	fmt.Printf("Aggregated to %d PR2 and %d SILVA genus-level groups\n", len(pr2Aggs), len(silvaAggs))
	m.Logger.Info("MERGE", "STEP", "aggregate", "PR2_GROUPS", len(pr2Aggs), "SILVA_GROUPS", len(silvaAggs), "STATUS", "COMPLETED")

	// ------------------------------------- Join metadata & combine databases ------------------------------------ //
	combined := append(joinMetadata(pr2Aggs, metadata), joinMetadata(silvaAggs, metadata)...)
	m.Logger.Info("MERGE", "STEP", "join_and_combine", "ROWS", len(combined), "STATUS", "COMPLETED")

	// ------------------------------------------------ Validate ------------------------------------------------- //
	validations := m.validateConservation(pr2Aggs, silvaAggs, combined)

	// --------------------------------------------- Normalize genus --------------------------------------------- //
	combined = renameGenera(combined)
	m.Logger.Info("MERGE", "STEP", "rename_genus", "ROWS", len(combined), "STATUS", "COMPLETED")

	// -------------------------------------------- Abundance filter --------------------------------------------- //
	before := len(combined)
	combined = filterLowAbundance(combined, m.MinReads)
	fmt.Printf("Abundance filter (> %d reads): %d of %d rows retained\n", m.MinReads, len(combined), before)
	m.Logger.Info("MERGE", "STEP", "abundance_filter", "THRESHOLD", m.MinReads, "ROWS_IN", before, "ROWS_OUT", len(combined), "STATUS", "COMPLETED")

	// ------------------------------------------ Clean domain & derive ------------------------------------------ //
	for i := range combined {
		combined[i].Domain = cleanDomain(combined[i].Domain)
		combined[i].Superdomain = deriveSuperdomain(combined[i].Domain)
		combined[i].Database = deriveDatabase(combined[i].Superdomain)
		combined[i].Community = deriveCommunity(combined[i].Database, combined[i].Domain, combined[i].Phylum)
	}
	m.Logger.Info("MERGE", "STEP", "derive_classification", "ROWS", len(combined), "STATUS", "COMPLETED")

	sortRecords(combined)

	return MergeResult{Records: combined, Validations: validations}, nil
}

func readAllTables(files []string) ([]ClassificationRecord, error) {
	var all []ClassificationRecord
	for _, f := range files {
		records, err := ReadClassificationTable(f)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", f, err)
		}
		all = append(all, records...)
	}
	return all, nil
}

// dedupeRecords drops records whose ReadID was already seen, keeping the
// first occurrence. Deduplication is per database: the caller passes one
// database's records at a time.
func dedupeRecords(records []ClassificationRecord) []ClassificationRecord {
	seen := make(map[string]bool, len(records))
	var out []ClassificationRecord
	for _, r := range records {
		if seen[r.ReadID] {
			continue
		}
		seen[r.ReadID] = true
		out = append(out, r)
	}
	return out
}

// aggregateRecords counts deduplicated reads per (accession, taxonomic path)
// group. An exact tally, no weighting.
func aggregateRecords(records []ClassificationRecord, sourceDB string) []MergedRecord {
	counts := make(map[aggKey]int)
	for _, r := range records {
		key := aggKey{
			accession: r.Accession(),
			domain:    r.Domain,
			phylum:    r.Phylum,
			class:     r.Class,
			order:     r.Order,
			family:    r.Family,
			genus:     r.Genus,
		}
		counts[key]++
	}

	aggs := make([]MergedRecord, 0, len(counts))
	for key, n := range counts {
		aggs = append(aggs, MergedRecord{
			Accession:      key.accession,
			SourceDatabase: sourceDB,
			Domain:         key.domain,
			Phylum:         key.phylum,
			Class:          key.class,
			Order:          key.order,
			Family:         key.family,
			Genus:          key.genus,
			ReadCount:      n,
		})
	}
	return aggs
}

// joinMetadata attaches sample metadata by accession. Aggregates without a
// metadata match keep empty metadata fields rather than being dropped; a
// later filtering step may decide what to do with them.
func joinMetadata(aggs []MergedRecord, metadata map[string]SampleMetadata) []MergedRecord {
	out := make([]MergedRecord, len(aggs))
	for i, agg := range aggs {
		if meta, ok := metadata[agg.Accession]; ok {
			agg.Plant = meta.Plant
			agg.CollectionDate = meta.CollectionDate
			agg.Latitude = meta.Latitude
			agg.Country = meta.Country
		}
		out[i] = agg
	}
	return out
}

// validateConservation checks, for every accession in the combined table,
// that the per-database aggregate sums equal the combined sum. A mismatch
// would indicate an aggregation or join bug (e.g. fan-out on a non-unique
// metadata key). Mismatches are logged and collected, never fatal.
func (m *Merger) validateConservation(pr2Aggs, silvaAggs, combined []MergedRecord) []ValidationResult {
	expected := make(map[string]int)
	for _, agg := range pr2Aggs {
		expected[agg.Accession] += agg.ReadCount
	}
	for _, agg := range silvaAggs {
		expected[agg.Accession] += agg.ReadCount
	}

	actual := make(map[string]int)
	for _, rec := range combined {
		actual[rec.Accession] += rec.ReadCount
	}

	accessions := make([]string, 0, len(actual))
	for acc := range actual {
		accessions = append(accessions, acc)
	}
	sort.Strings(accessions)

	var results []ValidationResult
	for _, acc := range accessions {
		res := ValidationResult{
			Accession: acc,
			Expected:  expected[acc],
			Actual:    actual[acc],
			Passed:    expected[acc] == actual[acc],
		}
		if res.Passed {
			m.Logger.Info("MERGE", "STEP", "validate", "SAMPLE", acc, "EXPECTED", res.Expected, "ACTUAL", res.Actual, "STATUS", "PASSED")
		} else {
			fmt.Printf("Read count mismatch for %s: expected %d, got %d\n", acc, res.Expected, res.Actual)
			m.Logger.Error("MERGE", "STEP", "validate", "SAMPLE", acc, "EXPECTED", res.Expected, "ACTUAL", res.Actual, "STATUS", "FAILED")
		}
		results = append(results, res)
	}
	return results
}

// renameGenera applies the fixed genus rename table, then re-merges rows
// whose group key became identical, summing their counts.
func renameGenera(records []MergedRecord) []MergedRecord {
	renamed := false
	for i := range records {
		if canonical, ok := genusRenames[records[i].Genus]; ok {
			records[i].Genus = canonical
			renamed = true
		}
	}
	if !renamed {
		return records
	}

	type fullKey struct {
		key      aggKey
		sourceDB string
	}
	merged := make(map[fullKey]MergedRecord)
	var order []fullKey
	for _, rec := range records {
		k := fullKey{
			key: aggKey{
				accession: rec.Accession,
				domain:    rec.Domain,
				phylum:    rec.Phylum,
				class:     rec.Class,
				order:     rec.Order,
				family:    rec.Family,
				genus:     rec.Genus,
			},
			sourceDB: rec.SourceDatabase,
		}
		if existing, ok := merged[k]; ok {
			existing.ReadCount += rec.ReadCount
			merged[k] = existing
		} else {
			merged[k] = rec
			order = append(order, k)
		}
	}

	out := make([]MergedRecord, 0, len(merged))
	for _, k := range order {
		out = append(out, merged[k])
	}
	return out
}

func filterLowAbundance(records []MergedRecord, minReads int) []MergedRecord {
	var out []MergedRecord
	for _, rec := range records {
		if rec.ReadCount > minReads {
			out = append(out, rec)
		}
	}
	return out
}

// cleanDomain strips the pipe-delimited prefix artifact some upstream tables
// carry, e.g. "d__Bacteria|Bacteria" becomes "Bacteria".
func cleanDomain(domain string) string {
	for i := len(domain) - 1; i >= 0; i-- {
		if domain[i] == '|' {
			return domain[i+1:]
		}
	}
	return domain
}

func deriveSuperdomain(domain string) string {
	if domain == "Archaea" || domain == "Bacteria" {
		return "Prokaryote"
	}
	return "Eukaryote"
}

func deriveDatabase(superdomain string) string {
	if superdomain == "Prokaryote" {
		return DatabaseSilva
	}
	return DatabasePR2
}

// deriveCommunity applies the study's five-way classification. Rules are
// evaluated in order, first match wins.
func deriveCommunity(database string, domain string, phylum string) string {
	switch {
	case database == DatabaseSilva && domain == "Bacteria":
		return "Bacteria"
	case database == DatabaseSilva && domain == "Archaea":
		return "Archaea"
	case database == DatabasePR2 && phylum == "Metazoa":
		return "Metazoa"
	case database == DatabasePR2 && phylum == "Fungi":
		return "Fungi"
	case database == DatabasePR2:
		return "Protists"
	default:
		return "Unknown"
	}
}

func sortRecords(records []MergedRecord) {
	sort.Slice(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if a.Accession != b.Accession {
			return a.Accession < b.Accession
		}
		if a.SourceDatabase != b.SourceDatabase {
			return a.SourceDatabase < b.SourceDatabase
		}
		if a.Domain != b.Domain {
			return a.Domain < b.Domain
		}
		if a.Phylum != b.Phylum {
			return a.Phylum < b.Phylum
		}
		if a.Family != b.Family {
			return a.Family < b.Family
		}
		return a.Genus < b.Genus
	})
}

// WriteMergedTable writes the final table in the fixed column order:
// accession, derived classification columns, taxonomic path, read count,
// then the joined metadata fields.
func WriteMergedTable(records []MergedRecord, outputFile string) error {
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

	header := []string{
		"SampleAccession", "Database", "Superdomain", "MicrobialCommunity",
		"Domain", "Phylum", "Class", "Order", "Family", "Genus", "ReadCount",
		"Plant", "CollectionDate", "Latitude", "Country",
	}
	if hErr := writer.Write(header); hErr != nil {
		return hErr
	}

	for _, rec := range records {
		row := []string{
			rec.Accession, rec.Database, rec.Superdomain, rec.Community,
			rec.Domain, rec.Phylum, rec.Class, rec.Order, rec.Family, rec.Genus,
			strconv.Itoa(rec.ReadCount),
			rec.Plant, rec.CollectionDate, rec.Latitude, rec.Country,
		}
		if wErr := writer.Write(row); wErr != nil {
			return wErr
		}
	}
	return nil
}

// ReadMergedTable loads a table written by WriteMergedTable back into
// records, for the downstream analysis stages.
func ReadMergedTable(tsvFile string) ([]MergedRecord, error) {
	file, err := os.Open(tsvFile)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.Comma = '\t'
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("merged table %s has no data rows", tsvFile)
	}

	colIndex := make(map[string]int)
	for i, col := range rows[0] {
		colIndex[col] = i
	}
	field := func(row []string, col string) string {
		idx, ok := colIndex[col]
		if !ok || idx >= len(row) {
			return ""
		}
		return row[idx]
	}

	var records []MergedRecord
	for _, row := range rows[1:] {
		count, cErr := strconv.Atoi(field(row, "ReadCount"))
		if cErr != nil {
			return nil, fmt.Errorf("bad ReadCount %q in %s", field(row, "ReadCount"), tsvFile)
		}
		records = append(records, MergedRecord{
			Accession:      field(row, "SampleAccession"),
			Database:       field(row, "Database"),
			Superdomain:    field(row, "Superdomain"),
			Community:      field(row, "MicrobialCommunity"),
			Domain:         field(row, "Domain"),
			Phylum:         field(row, "Phylum"),
			Class:          field(row, "Class"),
			Order:          field(row, "Order"),
			Family:         field(row, "Family"),
			Genus:          field(row, "Genus"),
			ReadCount:      count,
			Plant:          field(row, "Plant"),
			CollectionDate: field(row, "CollectionDate"),
			Latitude:       field(row, "Latitude"),
			Country:        field(row, "Country"),
		})
	}
	return records, nil
}
