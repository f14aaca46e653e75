package community

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"

	"gonum.org/v1/gonum/mat"
)

// BrayCurtis builds the pairwise Bray-Curtis dissimilarity matrix from a
// sample × genus count matrix. Two samples with no reads at all are at
// distance 0 by convention.
func BrayCurtis(counts [][]float64) *mat.SymDense {
	n := len(counts)
	d := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			var sumMin, sumTotal float64
			for k := range counts[i] {
				sumMin += math.Min(counts[i][k], counts[j][k])
				sumTotal += counts[i][k] + counts[j][k]
			}
			if sumTotal == 0 {
				continue
			}
			d.SetSym(i, j, 1-2*sumMin/sumTotal)
		}
	}
	return d
}

// PCoA performs classical principal coordinates analysis on a dissimilarity
// matrix: Gower double-centering of the squared dissimilarities followed by
// an eigendecomposition. Returns the sample coordinates on the first k
// positive axes and the fraction of variation each axis explains.
func PCoA(d *mat.SymDense, k int) (*mat.Dense, []float64, error) {
	n := d.SymmetricDim()
	if n < 2 {
		return nil, nil, fmt.Errorf("need at least 2 samples for ordination, got %d", n)
	}
	if k > n {
		k = n
	}

	// B = -0.5 * J * D^2 * J with J the centering matrix.
	a := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			v := d.At(i, j)
			a.SetSym(i, j, -0.5*v*v)
		}
	}

	rowMeans := make([]float64, n)
	var grandMean float64
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			rowMeans[i] += a.At(i, j)
		}
		rowMeans[i] /= float64(n)
		grandMean += rowMeans[i]
	}
	grandMean /= float64(n)

	b := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			b.SetSym(i, j, a.At(i, j)-rowMeans[i]-rowMeans[j]+grandMean)
		}
	}

	var eig mat.EigenSym
	if ok := eig.Factorize(b, true); !ok {
		return nil, nil, fmt.Errorf("eigendecomposition failed")
	}
	vals := eig.Values(nil)
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	// Eigenvalues come back ascending; take the largest positive ones.
	type axis struct {
		val float64
		idx int
	}
	axes := make([]axis, 0, n)
	for i, v := range vals {
		if v > 1e-12 {
			axes = append(axes, axis{val: v, idx: i})
		}
	}
	sort.Slice(axes, func(i, j int) bool { return axes[i].val > axes[j].val })
	if len(axes) == 0 {
		return nil, nil, fmt.Errorf("no positive eigenvalues: all samples identical")
	}
	if k > len(axes) {
		k = len(axes)
	}

	var totalPositive float64
	for _, ax := range axes {
		totalPositive += ax.val
	}

	coords := mat.NewDense(n, k, nil)
	explained := make([]float64, k)
	for j := 0; j < k; j++ {
		scale := math.Sqrt(axes[j].val)
		for i := 0; i < n; i++ {
			coords.Set(i, j, vecs.At(i, axes[j].idx)*scale)
		}
		explained[j] = axes[j].val / totalPositive
	}
	return coords, explained, nil
}

// WriteOrdinationTable writes the per-sample PCoA coordinates.
func WriteOrdinationTable(samples []string, plants map[string]string, coords *mat.Dense, outputFile string) error {
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

	_, k := coords.Dims()
	header := []string{"SampleAccession", "Plant"}
	for j := 0; j < k; j++ {
		header = append(header, fmt.Sprintf("PCo%d", j+1))
	}
	if hErr := writer.Write(header); hErr != nil {
		return hErr
	}

	for i, sample := range samples {
		row := []string{sample, plants[sample]}
		for j := 0; j < k; j++ {
			row = append(row, strconv.FormatFloat(coords.At(i, j), 'f', 6, 64))
		}
		if wErr := writer.Write(row); wErr != nil {
			return wErr
		}
	}
	return nil
}
