package community

import (
	"math"
	"testing"

	"github.com/mgram/wwtp-microbiome/taxonomy"
)

func TestShannonIndexUniform(t *testing.T) {
	// Four equally abundant genera: H = ln(4).
	h := ShannonIndex([]float64{10, 10, 10, 10})
	if math.Abs(h-math.Log(4)) > 1e-9 {
		t.Errorf("uniform Shannon = %f, want %f", h, math.Log(4))
	}
}

func TestShannonIndexSingleGenus(t *testing.T) {
	if h := ShannonIndex([]float64{100, 0, 0}); h != 0 {
		t.Errorf("single-genus Shannon = %f, want 0", h)
	}
	if h := ShannonIndex([]float64{0, 0}); h != 0 {
		t.Errorf("empty sample Shannon = %f, want 0", h)
	}
}

func mergedRec(acc, genus string, count int, plant, lat string) taxonomy.MergedRecord {
	return taxonomy.MergedRecord{
		Accession: acc, Genus: genus, ReadCount: count,
		Plant: plant, Latitude: lat,
		Domain: "Bacteria", Community: "Bacteria", Database: taxonomy.DatabaseSilva, Superdomain: "Prokaryote",
	}
}

func TestBuildCountMatrix(t *testing.T) {
	records := []taxonomy.MergedRecord{
		mergedRec("ERR1", "GenusA", 10, "AVE", "55.61"),
		mergedRec("ERR1", "GenusB", 20, "AVE", "55.61"),
		mergedRec("ERR2", "GenusB", 30, "KLA", "55.52"),
	}
	m := BuildCountMatrix(records)
	if len(m.Samples) != 2 || len(m.Genera) != 2 {
		t.Fatalf("matrix shape %dx%d, want 2x2", len(m.Samples), len(m.Genera))
	}
	// Sorted: samples [ERR1 ERR2], genera [GenusA GenusB].
	if m.Counts[0][0] != 10 || m.Counts[0][1] != 20 || m.Counts[1][0] != 0 || m.Counts[1][1] != 30 {
		t.Errorf("unexpected counts: %v", m.Counts)
	}
	if m.Plants["ERR2"] != "KLA" {
		t.Errorf("plant lookup broken: %v", m.Plants)
	}
}

func TestDiversityReport(t *testing.T) {
	records := []taxonomy.MergedRecord{
		mergedRec("ERR1", "GenusA", 10, "AVE", "55.61"),
		mergedRec("ERR1", "GenusB", 10, "AVE", "55.61"),
		mergedRec("ERR2", "GenusB", 50, "KLA", "55.52"),
	}
	div := Diversity(records)
	if len(div) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(div))
	}
	if div[0].Accession != "ERR1" || div[0].Richness != 2 {
		t.Errorf("ERR1 richness = %d, want 2", div[0].Richness)
	}
	if math.Abs(div[0].Shannon-math.Log(2)) > 1e-9 {
		t.Errorf("ERR1 Shannon = %f, want ln 2", div[0].Shannon)
	}
	if div[1].Richness != 1 || div[1].Shannon != 0 {
		t.Errorf("ERR2 should be monodominant: %+v", div[1])
	}
}

func TestLatitudeTrend(t *testing.T) {
	div := []SampleDiversity{
		{Accession: "ERR1", Latitude: "50.0", Shannon: 1.0},
		{Accession: "ERR2", Latitude: "55.0", Shannon: 2.0},
		{Accession: "ERR3", Latitude: "60.0", Shannon: 3.0},
		{Accession: "ERR4", Latitude: "not-a-number", Shannon: 9.0},
	}
	alpha, beta, ok := LatitudeTrend(div)
	if !ok {
		t.Fatal("trend should be computable")
	}
	if math.Abs(beta-0.2) > 1e-9 {
		t.Errorf("slope = %f, want 0.2", beta)
	}
	if math.Abs(alpha-(-9.0)) > 1e-9 {
		t.Errorf("intercept = %f, want -9", alpha)
	}

	if _, _, ok := LatitudeTrend(div[3:]); ok {
		t.Errorf("trend with <2 usable points should not be ok")
	}
}
