// Copyright (C) The Biomark Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package biomark

import (
	"math"
	"runtime"

	"gonum.org/v1/gonum/stat/distuv"
)

// TestResult is the differential-expression outcome for one gene. FDR
// and Symbol are filled in after the per-gene tests complete.
type TestResult struct {
	Gene       string
	Log2FC     float64
	P          float64
	FDR        float64
	Direction  string
	TumorMean  float64
	NormalMean float64
	Symbol     string
}

// meanVariance returns the mean and sample variance (denominator n-1)
// of the non-missing values at the given columns, plus the count of
// values used. Variance is 0 when fewer than two values remain.
func meanVariance(row []float64, cols []int) (mean, variance float64, n int) {
	for _, j := range cols {
		if v := row[j]; !math.IsNaN(v) {
			mean += v
			n++
		}
	}
	if n == 0 {
		return math.NaN(), 0, 0
	}
	mean /= float64(n)
	if n < 2 {
		return mean, 0, n
	}
	for _, j := range cols {
		if v := row[j]; !math.IsNaN(v) {
			d := v - mean
			variance += d * d
		}
	}
	variance /= float64(n - 1)
	return mean, variance, n
}

// welchP returns the two-tailed p-value of Welch's t-test for the two
// group summaries. Degenerate inputs (both variances zero, too few
// observations, undefined t or df) yield p=1: no evidence of a
// difference rather than a propagated failure.
func welchP(meanA, varA float64, nA int, meanB, varB float64, nB int) float64 {
	if nA < 2 || nB < 2 {
		return 1
	}
	if varA == 0 && varB == 0 {
		return 1
	}
	seA := varA / float64(nA)
	seB := varB / float64(nB)
	se := seA + seB
	if se <= 0 || math.IsNaN(se) {
		return 1
	}
	t := (meanA - meanB) / math.Sqrt(se)
	// Welch-Satterthwaite degrees of freedom.
	den := 0.0
	if varA > 0 {
		den += seA * seA / float64(nA-1)
	}
	if varB > 0 {
		den += seB * seB / float64(nB-1)
	}
	if den <= 0 {
		return 1
	}
	df := se * se / den
	if math.IsNaN(t) || math.IsInf(t, 0) || math.IsNaN(df) || df <= 0 {
		return 1
	}
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	p := 2 * dist.CDF(-math.Abs(t))
	if math.IsNaN(p) {
		return 1
	}
	if p > 1 {
		p = 1
	}
	return p
}

func testGene(gene string, row []float64, tumorCols, normalCols []int) TestResult {
	tumorMean, tumorVar, nTumor := meanVariance(row, tumorCols)
	normalMean, normalVar, nNormal := meanVariance(row, normalCols)
	// Input values are already log2 scale, so the fold change is a
	// plain difference of group means.
	log2fc := tumorMean - normalMean
	direction := "down"
	if log2fc > 0 {
		direction = "up"
	}
	return TestResult{
		Gene:       gene,
		Log2FC:     log2fc,
		P:          welchP(tumorMean, tumorVar, nTumor, normalMean, normalVar, nNormal),
		FDR:        math.NaN(),
		Direction:  direction,
		TumorMean:  tumorMean,
		NormalMean: normalMean,
	}
}

// TestGenes runs the per-gene Welch test for every row of m. Genes are
// independent, so the loop fans out across GOMAXPROCS workers; each
// worker writes only its own slot of the result slice.
func TestGenes(m *ExpressionMatrix, tumorCols, normalCols []int) []TestResult {
	results := make([]TestResult, len(m.Genes))
	workers := throttle{Max: runtime.GOMAXPROCS(0)}
	for i := range m.Genes {
		i := i
		workers.Go(func() error {
			results[i] = testGene(m.Genes[i], m.Values[i], tumorCols, normalCols)
			return nil
		})
	}
	workers.Wait()
	return results
}
