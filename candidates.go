// Copyright (C) The Biomark Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package biomark

import (
	"math"
	"sort"
)

// designalEpsilon keeps -log10 finite when fdr is exactly zero.
const designalEpsilon = 1e-300

// Candidate is a significant gene selected for the downstream evidence
// producers, ranked by differential-expression signal.
type Candidate struct {
	TestResult
	DESignal float64
	Rank     int
}

// DESignal combines effect size and significance into one score.
func DESignal(log2fc, fdr float64) float64 {
	return math.Abs(log2fc) * -math.Log10(fdr+designalEpsilon)
}

// SelectCandidates keeps genes with fdr < threshold, ranks them by
// descending DE signal (ties stay in input order), and truncates to at
// most topN. An empty result is a valid outcome, not an error.
func SelectCandidates(results []TestResult, fdrThreshold float64, topN int) []Candidate {
	var candidates []Candidate
	for _, r := range results {
		if r.FDR < fdrThreshold {
			candidates = append(candidates, Candidate{
				TestResult: r,
				DESignal:   DESignal(r.Log2FC, r.FDR),
			})
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].DESignal > candidates[j].DESignal
	})
	if topN >= 0 && len(candidates) > topN {
		candidates = candidates[:topN]
	}
	for i := range candidates {
		candidates[i].Rank = i + 1
	}
	return candidates
}
