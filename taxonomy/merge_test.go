package taxonomy

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const tableHeader = "ReadID\tDomain\tPhylum\tClass\tOrder\tFamily\tGenus\tSpecies\tIdentity\tLength"

func testMerger() *Merger {
	return NewMerger(slog.New(slog.NewJSONHandler(io.Discard, nil)))
}

func writeTable(t *testing.T, dir string, name string, rows ...string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	content := tableHeader + "\n" + strings.Join(rows, "\n")
	if len(rows) == 0 {
		content = tableHeader + "\n"
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

func row(readID string, ranks ...string) string {
	full := make([]string, 7)
	copy(full, ranks)
	return readID + "\t" + strings.Join(full, "\t") + "\t97.5\t180"
}

func writeMetadata(t *testing.T, dir string, rows ...string) string {
	t.Helper()
	path := filepath.Join(dir, "metadata.tsv")
	content := "run_accession\tplant\tcollection_date\tlatitude\tcountry\n" + strings.Join(rows, "\n")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing metadata: %v", err)
	}
	return path
}

func TestMissingInputIsFatal(t *testing.T) {
	dir := t.TempDir()
	silva := writeTable(t, dir, "s1_silva.tsv", row("ERR1.1", "Bacteria", "Proteobacteria", "c", "o", "f", "GenusX"))

	_, err := testMerger().Run(nil, []string{silva}, nil)
	var miErr *MissingInputError
	if !errors.As(err, &miErr) {
		t.Fatalf("expected MissingInputError for empty PR2 set, got %v", err)
	}
	if miErr.Database != DatabasePR2 {
		t.Errorf("error should name the empty database, got %s", miErr.Database)
	}

	_, err = testMerger().Run([]string{silva}, nil, nil)
	if !errors.As(err, &miErr) {
		t.Fatalf("expected MissingInputError for empty SILVA set, got %v", err)
	}
}

func TestDeduplicationIdempotence(t *testing.T) {
	records := []ClassificationRecord{
		{ReadID: "ERR1.1", Genus: "GenusX"},
		{ReadID: "ERR1.2", Genus: "GenusX"},
		{ReadID: "ERR1.1", Genus: "GenusY"},
		{ReadID: "ERR1.3", Genus: "GenusY"},
		{ReadID: "ERR1.2", Genus: "GenusX"},
	}

	once := dedupeRecords(records)
	twice := dedupeRecords(once)
	if len(once) != 3 {
		t.Fatalf("expected 3 records after dedup, got %d", len(once))
	}
	if len(twice) != len(once) {
		t.Errorf("dedup is not idempotent: %d then %d", len(once), len(twice))
	}
	for i := range once {
		if once[i] != twice[i] {
			t.Errorf("record %d changed on second dedup", i)
		}
	}
	// First occurrence wins, all columns retained.
	if once[0].Genus != "GenusX" {
		t.Errorf("dedup should keep the first occurrence, got genus %s", once[0].Genus)
	}
}

func TestConservationInvariant(t *testing.T) {
	dir := t.TempDir()

	var pr2Rows []string
	for i := 0; i < 8; i++ {
		pr2Rows = append(pr2Rows, row(fmt.Sprintf("ERR10.%d", i), "Eukaryota", "Fungi", "c", "o", "f", "GenusF"))
	}
	for i := 0; i < 7; i++ {
		pr2Rows = append(pr2Rows, row(fmt.Sprintf("ERR10.%d", 100+i), "Eukaryota", "Cercozoa", "c", "o", "f", "GenusP"))
	}
	pr2 := writeTable(t, dir, "err10_pr2.tsv", pr2Rows...)

	var silvaRows []string
	for i := 0; i < 9; i++ {
		silvaRows = append(silvaRows, row(fmt.Sprintf("ERR10.%d", 200+i), "Bacteria", "Proteobacteria", "c", "o", "f", "GenusB"))
	}
	silva := writeTable(t, dir, "err10_silva.tsv", silvaRows...)

	result, err := testMerger().Run([]string{pr2}, []string{silva}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(result.Validations) != 1 {
		t.Fatalf("expected 1 validation, got %d", len(result.Validations))
	}
	v := result.Validations[0]
	if v.Accession != "ERR10" || !v.Passed {
		t.Errorf("validation should pass for ERR10: %+v", v)
	}
	// 24 distinct reads across both databases, computed independently.
	if v.Expected != 24 || v.Actual != 24 {
		t.Errorf("expected conservation at 24 reads, got expected=%d actual=%d", v.Expected, v.Actual)
	}

	total := 0
	for _, rec := range result.Records {
		total += rec.ReadCount
	}
	if total != 24 {
		t.Errorf("output total should equal distinct read count before filtering only if no group was filtered; got %d", total)
	}
}

func TestFilterMonotonicity(t *testing.T) {
	records := []MergedRecord{
		{Genus: "A", ReadCount: 1},
		{Genus: "B", ReadCount: 5},
		{Genus: "C", ReadCount: 6},
		{Genus: "D", ReadCount: 500},
	}
	kept := filterLowAbundance(records, DefaultMinReads)
	if len(kept) > len(records) {
		t.Fatalf("filter increased row count")
	}
	if len(kept) != 2 {
		t.Fatalf("expected 2 rows with ReadCount > 5, got %d", len(kept))
	}
	for _, rec := range kept {
		if rec.ReadCount <= DefaultMinReads {
			t.Errorf("retained row %s has ReadCount %d <= %d", rec.Genus, rec.ReadCount, DefaultMinReads)
		}
	}
}

func TestClassificationCompleteness(t *testing.T) {
	dir := t.TempDir()

	var pr2Rows []string
	for i := 0; i < 6; i++ {
		pr2Rows = append(pr2Rows, row(fmt.Sprintf("ERR20.%d", i), "Eukaryota", "Metazoa", "c", "o", "f", "GenusM"))
	}
	for i := 0; i < 6; i++ {
		pr2Rows = append(pr2Rows, row(fmt.Sprintf("ERR20.%d", 50+i), "Eukaryota", "Fungi", "c", "o", "f", "GenusF"))
	}
	for i := 0; i < 6; i++ {
		pr2Rows = append(pr2Rows, row(fmt.Sprintf("ERR20.%d", 100+i), "Eukaryota", "Cercozoa", "c", "o", "f", "GenusC"))
	}
	pr2 := writeTable(t, dir, "err20_pr2.tsv", pr2Rows...)

	var silvaRows []string
	for i := 0; i < 6; i++ {
		silvaRows = append(silvaRows, row(fmt.Sprintf("ERR20.%d", 200+i), "Bacteria", "Firmicutes", "c", "o", "f", "GenusB"))
	}
	for i := 0; i < 6; i++ {
		silvaRows = append(silvaRows, row(fmt.Sprintf("ERR20.%d", 300+i), "Archaea", "Euryarchaeota", "c", "o", "f", "GenusA"))
	}
	silva := writeTable(t, dir, "err20_silva.tsv", silvaRows...)

	result, err := testMerger().Run([]string{pr2}, []string{silva}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	valid := map[string]bool{"Bacteria": true, "Archaea": true, "Metazoa": true, "Fungi": true, "Protists": true, "Unknown": true}
	want := map[string]string{"GenusM": "Metazoa", "GenusF": "Fungi", "GenusC": "Protists", "GenusB": "Bacteria", "GenusA": "Archaea"}
	if len(result.Records) != 5 {
		t.Fatalf("expected 5 output rows, got %d", len(result.Records))
	}
	for _, rec := range result.Records {
		if rec.Community == "" || !valid[rec.Community] {
			t.Errorf("row %s has invalid community %q", rec.Genus, rec.Community)
		}
		if rec.Community != want[rec.Genus] {
			t.Errorf("genus %s classified as %s, want %s", rec.Genus, rec.Community, want[rec.Genus])
		}
	}
}

func TestRenameCorrectness(t *testing.T) {
	dir := t.TempDir()

	// 4 reads under the deprecated spelling plus 3 under the canonical one,
	// same taxonomic path: after renaming they merge into one group of 7.
	var pr2Rows []string
	for i := 0; i < 4; i++ {
		pr2Rows = append(pr2Rows, row(fmt.Sprintf("ERR30.%d", i), "Eukaryota", "Cercozoa", "Thecofilosea", "Cryomonadida", "Rhogostomidae", "Rhogostoma-lineage"))
	}
	for i := 0; i < 3; i++ {
		pr2Rows = append(pr2Rows, row(fmt.Sprintf("ERR30.%d", 10+i), "Eukaryota", "Cercozoa", "Thecofilosea", "Cryomonadida", "Rhogostomidae", "Rhogostoma"))
	}
	pr2 := writeTable(t, dir, "err30_pr2.tsv", pr2Rows...)

	var silvaRows []string
	for i := 0; i < 6; i++ {
		silvaRows = append(silvaRows, row(fmt.Sprintf("ERR30.%d", 100+i), "Bacteria", "Firmicutes", "c", "o", "f", "GenusB"))
	}
	silva := writeTable(t, dir, "err30_silva.tsv", silvaRows...)

	result, err := testMerger().Run([]string{pr2}, []string{silva}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	var found bool
	for _, rec := range result.Records {
		if rec.Genus == "Rhogostoma-lineage" {
			t.Errorf("deprecated genus spelling survived the merge")
		}
		if rec.Genus == "Rhogostoma" {
			found = true
			if rec.ReadCount != 7 {
				t.Errorf("renamed rows should merge with pre-existing ones: got ReadCount %d, want 7", rec.ReadCount)
			}
		}
	}
	if !found {
		t.Errorf("no Rhogostoma row in output")
	}
}

// Scenario from the pipeline's acceptance checks: 6 rows with one duplicated
// read collapse to 5 after dedup, validation records 5 vs 5 as a pass, and
// the abundance filter then drops the group (5 is not > 5), so the sample
// contributes no output rows.
func TestValidationPrecedesFilter(t *testing.T) {
	dir := t.TempDir()

	pr2 := writeTable(t, dir, "err40_pr2.tsv",
		row("ERR40.1", "Eukaryota", "Cercozoa", "c", "o", "f", "GenusX"),
		row("ERR40.2", "Eukaryota", "Cercozoa", "c", "o", "f", "GenusX"),
		row("ERR40.3", "Eukaryota", "Cercozoa", "c", "o", "f", "GenusX"),
		row("ERR40.3", "Eukaryota", "Cercozoa", "c", "o", "f", "GenusX"),
		row("ERR40.4", "Eukaryota", "Cercozoa", "c", "o", "f", "GenusX"),
		row("ERR40.5", "Eukaryota", "Cercozoa", "c", "o", "f", "GenusX"),
	)
	silva := writeTable(t, dir, "err40_silva.tsv")
	meta := writeMetadata(t, dir, "ERR40\tAvedoere Wastewater Treatment Plant\t2019-05-12\t55.61\tDenmark")

	metadata, err := ReadSampleMetadata(meta)
	if err != nil {
		t.Fatalf("ReadSampleMetadata: %v", err)
	}

	result, err := testMerger().Run([]string{pr2}, []string{silva}, metadata)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(result.Records) != 0 {
		t.Errorf("group of 5 reads should be dropped by the abundance filter, got %d rows", len(result.Records))
	}
	if len(result.Validations) != 1 {
		t.Fatalf("expected 1 validation, got %d", len(result.Validations))
	}
	v := result.Validations[0]
	if !v.Passed || v.Expected != 5 || v.Actual != 5 {
		t.Errorf("validation should pass at 5 vs 5 before filtering: %+v", v)
	}
}

func TestDomainPipeCleanup(t *testing.T) {
	dir := t.TempDir()

	var silvaRows []string
	for i := 0; i < 6; i++ {
		silvaRows = append(silvaRows, row(fmt.Sprintf("ERR50.%d", i), "d__Bacteria|Bacteria", "Proteobacteria", "c", "o", "f", "GenusB"))
	}
	silva := writeTable(t, dir, "err50_silva.tsv", silvaRows...)

	var pr2Rows []string
	for i := 0; i < 6; i++ {
		pr2Rows = append(pr2Rows, row(fmt.Sprintf("ERR50.%d", 100+i), "Eukaryota", "Fungi", "c", "o", "f", "GenusF"))
	}
	pr2 := writeTable(t, dir, "err50_pr2.tsv", pr2Rows...)

	result, err := testMerger().Run([]string{pr2}, []string{silva}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	var checked bool
	for _, rec := range result.Records {
		if rec.Genus != "GenusB" {
			continue
		}
		checked = true
		if rec.Domain != "Bacteria" {
			t.Errorf("domain pipe prefix not stripped: %q", rec.Domain)
		}
		if rec.Superdomain != "Prokaryote" {
			t.Errorf("superdomain = %q, want Prokaryote", rec.Superdomain)
		}
		if rec.Database != DatabaseSilva {
			t.Errorf("database = %q, want %s", rec.Database, DatabaseSilva)
		}
		if rec.Community != "Bacteria" {
			t.Errorf("community = %q, want Bacteria", rec.Community)
		}
	}
	if !checked {
		t.Fatalf("GenusB row missing from output")
	}
}

func TestUnmatchedMetadataLeftJoin(t *testing.T) {
	dir := t.TempDir()

	var pr2Rows []string
	for i := 0; i < 6; i++ {
		pr2Rows = append(pr2Rows, row(fmt.Sprintf("ERR60.%d", i), "Eukaryota", "Fungi", "c", "o", "f", "GenusF"))
	}
	pr2 := writeTable(t, dir, "err60_pr2.tsv", pr2Rows...)

	var silvaRows []string
	for i := 0; i < 6; i++ {
		silvaRows = append(silvaRows, row(fmt.Sprintf("ERR61.%d", i), "Bacteria", "Firmicutes", "c", "o", "f", "GenusB"))
	}
	silva := writeTable(t, dir, "err61_silva.tsv", silvaRows...)

	// Metadata only covers ERR60; ERR61 rows must survive with empty fields.
	meta := writeMetadata(t, dir, "ERR60\tKlagshamn Wastewater Treatment Plant\t2019-06-02\t55.52\tSweden")
	metadata, err := ReadSampleMetadata(meta)
	if err != nil {
		t.Fatalf("ReadSampleMetadata: %v", err)
	}

	result, err := testMerger().Run([]string{pr2}, []string{silva}, metadata)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.Records) != 2 {
		t.Fatalf("expected 2 output rows, got %d", len(result.Records))
	}
	for _, rec := range result.Records {
		switch rec.Accession {
		case "ERR60":
			if rec.Plant != "KLA" {
				t.Errorf("plant should be normalized to short code, got %q", rec.Plant)
			}
		case "ERR61":
			if rec.Plant != "" || rec.Latitude != "" {
				t.Errorf("unmatched accession should keep empty metadata, got %+v", rec)
			}
		default:
			t.Errorf("unexpected accession %s", rec.Accession)
		}
	}
}

func TestWriteMergedTable(t *testing.T) {
	dir := t.TempDir()
	records := []MergedRecord{
		{
			Accession: "ERR70", SourceDatabase: DatabaseSilva,
			Domain: "Bacteria", Phylum: "Firmicutes", Class: "Bacilli", Order: "o", Family: "f", Genus: "GenusB",
			ReadCount: 42, Superdomain: "Prokaryote", Database: DatabaseSilva, Community: "Bacteria",
			Plant: "AVE", CollectionDate: "2019-05-12", Latitude: "55.61", Country: "Denmark",
		},
	}
	out := filepath.Join(dir, "merged.tsv")
	if err := WriteMergedTable(records, out); err != nil {
		t.Fatalf("WriteMergedTable: %v", err)
	}

	content, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header + 1 row, got %d lines", len(lines))
	}
	wantHeader := "SampleAccession\tDatabase\tSuperdomain\tMicrobialCommunity\tDomain\tPhylum\tClass\tOrder\tFamily\tGenus\tReadCount\tPlant\tCollectionDate\tLatitude\tCountry"
	if lines[0] != wantHeader {
		t.Errorf("header mismatch:\ngot  %s\nwant %s", lines[0], wantHeader)
	}
	if !strings.Contains(lines[1], "ERR70\tSILVA\tProkaryote\tBacteria\tBacteria\tFirmicutes") {
		t.Errorf("row content mismatch: %s", lines[1])
	}
}
