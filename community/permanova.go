package community

import (
	"fmt"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
)

// PermanovaResult is a one-way PERMANOVA on a dissimilarity matrix.
type PermanovaResult struct {
	F            float64
	R2           float64
	P            float64
	Permutations int
}

// Permanova tests whether community composition differs between groups
// (samples grouped e.g. by treatment plant): the observed pseudo-F on the
// dissimilarity matrix is compared against the distribution obtained by
// permuting group labels. P uses the standard (exceed+1)/(permutations+1)
// estimator.
func Permanova(d *mat.SymDense, groups []string, permutations int, seed uint64) (PermanovaResult, error) {
	n := d.SymmetricDim()
	if n != len(groups) {
		return PermanovaResult{}, fmt.Errorf("dissimilarity matrix has %d samples but %d group labels given", n, len(groups))
	}

	distinct := make(map[string]bool)
	for _, g := range groups {
		distinct[g] = true
	}
	a := len(distinct)
	if a < 2 {
		return PermanovaResult{}, fmt.Errorf("need at least 2 groups, got %d", a)
	}
	if a >= n {
		return PermanovaResult{}, fmt.Errorf("need more samples (%d) than groups (%d)", n, a)
	}
	if permutations < 1 {
		permutations = 999
	}

	fObs, r2 := pseudoF(d, groups, a)

	rng := rand.New(rand.NewSource(seed))
	permuted := make([]string, n)
	copy(permuted, groups)

	exceed := 0
	for p := 0; p < permutations; p++ {
		rng.Shuffle(n, func(i, j int) {
			permuted[i], permuted[j] = permuted[j], permuted[i]
		})
		fPerm, _ := pseudoF(d, permuted, a)
		if fPerm >= fObs {
			exceed++
		}
	}

	return PermanovaResult{
		F:            fObs,
		R2:           r2,
		P:            float64(exceed+1) / float64(permutations+1),
		Permutations: permutations,
	}, nil
}

// pseudoF partitions the total sum of squared dissimilarities into among-
// and within-group components (Anderson 2001).
func pseudoF(d *mat.SymDense, groups []string, a int) (f float64, r2 float64) {
	n := d.SymmetricDim()

	var sst float64
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			v := d.At(i, j)
			sst += v * v
		}
	}
	sst /= float64(n)

	members := make(map[string][]int)
	for i, g := range groups {
		members[g] = append(members[g], i)
	}

	var ssw float64
	for _, idx := range members {
		if len(idx) < 2 {
			continue
		}
		var s float64
		for x := 0; x < len(idx); x++ {
			for y := x + 1; y < len(idx); y++ {
				v := d.At(idx[x], idx[y])
				s += v * v
			}
		}
		ssw += s / float64(len(idx))
	}

	ssa := sst - ssw
	if ssw <= 0 {
		return 0, 0
	}
	f = (ssa / float64(a-1)) / (ssw / float64(n-a))
	r2 = ssa / sst
	return f, r2
}
