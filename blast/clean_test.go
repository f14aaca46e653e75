package blast

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseHitsKeepsBestPerRead(t *testing.T) {
	content := strings.Join([]string{
		"ERR1.1\tref001\t98.5\t180\t1e-80\t320\tBacteria;Proteobacteria;Gammaproteobacteria;Burkholderiales;Comamonadaceae;Acidovorax",
		"ERR1.1\tref002\t95.1\t180\t1e-60\t250\tBacteria;Proteobacteria;Gammaproteobacteria;Burkholderiales;Comamonadaceae;Variovorax",
		"ERR1.2\tref003\t99.0\t175\t1e-82\t330\tBacteria;Firmicutes;Bacilli;Lactobacillales;Streptococcaceae;Streptococcus",
		"short\tline",
	}, "\n")
	path := filepath.Join(t.TempDir(), "sample.blast")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	hits, err := ParseHits(path)
	if err != nil {
		t.Fatalf("ParseHits: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 best hits, got %d", len(hits))
	}
	if hits[0].Subject != "ref001" {
		t.Errorf("first hit per read should win, got %s", hits[0].Subject)
	}
}

func TestTaxonomyRanksSilva(t *testing.T) {
	ranks := taxonomyRanks(FormatSilva, "Bacteria;Proteobacteria;Gammaproteobacteria;Burkholderiales;Comamonadaceae;Acidovorax")
	want := [7]string{"Bacteria", "Proteobacteria", "Gammaproteobacteria", "Burkholderiales", "Comamonadaceae", "Acidovorax", "unclassified_Acidovorax"}
	if ranks != want {
		t.Errorf("silva ranks:\ngot  %v\nwant %v", ranks, want)
	}
}

func TestTaxonomyRanksPR2DropsSupergroup(t *testing.T) {
	ranks := taxonomyRanks(FormatPR2, "Eukaryota;TSAR;Cercozoa;Thecofilosea;Cryomonadida;Rhogostomidae;Rhogostoma;Rhogostoma_minus")
	want := [7]string{"Eukaryota", "Cercozoa", "Thecofilosea", "Cryomonadida", "Rhogostomidae", "Rhogostoma", "Rhogostoma_minus"}
	if ranks != want {
		t.Errorf("pr2 ranks:\ngot  %v\nwant %v", ranks, want)
	}
}

func TestTaxonomyRanksPadsTruncatedPath(t *testing.T) {
	ranks := taxonomyRanks(FormatSilva, "Bacteria;Chloroflexi;")
	if ranks[0] != "Bacteria" || ranks[1] != "Chloroflexi" {
		t.Fatalf("known ranks mangled: %v", ranks)
	}
	for i := 2; i < 7; i++ {
		if ranks[i] != "unclassified_Chloroflexi" {
			t.Errorf("rank %d should be padded with unclassified_Chloroflexi, got %q", i, ranks[i])
		}
	}
}

func TestCleanOutput(t *testing.T) {
	dir := t.TempDir()
	content := strings.Join([]string{
		"ERR2.1\tref001\t98.5\t180\t1e-80\t320\tBacteria;Proteobacteria;Gammaproteobacteria;Burkholderiales;Comamonadaceae;Acidovorax",
		"ERR2.1\tref002\t95.1\t180\t1e-60\t250\tBacteria;Proteobacteria;Gammaproteobacteria;Burkholderiales;Comamonadaceae;Variovorax",
		"ERR2.2\tref003\t99.0\t175\t1e-82\t330\tBacteria;Firmicutes;Bacilli;Lactobacillales;Streptococcaceae;Streptococcus",
	}, "\n")
	blastFile := filepath.Join(dir, "err2_silva.blast")
	if err := os.WriteFile(blastFile, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	outFile := filepath.Join(dir, "err2_silva_cleaned.tsv")
	n, err := CleanOutput(blastFile, FormatSilva, outFile)
	if err != nil {
		t.Fatalf("CleanOutput: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 cleaned rows, got %d", n)
	}

	out, err := os.ReadFile(outFile)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header + 2 rows, got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[0], "ReadID\tDomain\tPhylum") {
		t.Errorf("unexpected header: %s", lines[0])
	}
	if !strings.Contains(lines[1], "Acidovorax") || strings.Contains(string(out), "Variovorax") {
		t.Errorf("best-hit selection wrong:\n%s", string(out))
	}

	if _, err := CleanOutput(blastFile, "greengenes", filepath.Join(dir, "x.tsv")); err == nil {
		t.Errorf("unknown format should error")
	}
}
