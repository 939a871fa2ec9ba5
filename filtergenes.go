// Copyright (C) The Biomark Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package biomark

import (
	"flag"
	"fmt"
	"math"
)

// geneFilter drops low-information genes before testing. A gene
// survives if its mean expression or its nonzero fraction clears the
// corresponding threshold.
type geneFilter struct {
	MinMean         float64
	MinNonzeroFrac  float64
	MinGroupSamples int
}

func defaultGeneFilter() geneFilter {
	return geneFilter{MinMean: 1.0, MinNonzeroFrac: 0.2, MinGroupSamples: 3}
}

func (f *geneFilter) Flags(flags *flag.FlagSet) {
	flags.Float64Var(&f.MinMean, "min-mean", f.MinMean, "keep genes with mean expression >= `X`")
	flags.Float64Var(&f.MinNonzeroFrac, "min-nonzero-frac", f.MinNonzeroFrac, "keep genes with nonzero fraction >= `P` (0 <= P <= 1)")
	flags.IntVar(&f.MinGroupSamples, "min-group-samples", f.MinGroupSamples, "require at least `N` samples in each compared group")
}

// InsufficientSamplesError reports a comparison group too small to
// test. It aborts the whole run.
type InsufficientSamplesError struct {
	Group SampleGroup
	N     int
	Min   int
}

func (e *InsufficientSamplesError) Error() string {
	return fmt.Sprintf("insufficient samples in %s group: have %d, need >= %d", e.Group, e.N, e.Min)
}

// Check verifies both comparison groups meet the minimum size. It must
// pass before filtering: filtering is meaningless without a valid
// comparison.
func (f *geneFilter) Check(labels []SampleLabel) error {
	counts := groupCounts(labels)
	for _, group := range []SampleGroup{GroupTumor, GroupNormal} {
		if counts[group] < f.MinGroupSamples {
			return &InsufficientSamplesError{Group: group, N: counts[group], Min: f.MinGroupSamples}
		}
	}
	return nil
}

// Apply returns the subset of rows passing the filter, plus the gene
// counts before and after for reporting. Columns are untouched.
func (f *geneFilter) Apply(m *ExpressionMatrix) (filtered *ExpressionMatrix, before, after int) {
	filtered = &ExpressionMatrix{Samples: m.Samples}
	for i, row := range m.Values {
		if f.keep(row) {
			filtered.Genes = append(filtered.Genes, m.Genes[i])
			filtered.Values = append(filtered.Values, row)
		}
	}
	return filtered, len(m.Genes), len(filtered.Genes)
}

func (f *geneFilter) keep(row []float64) bool {
	var sum float64
	var n, nonzero int
	for _, v := range row {
		if math.IsNaN(v) {
			continue
		}
		sum += v
		n++
		if v != 0 {
			nonzero++
		}
	}
	if n > 0 && sum/float64(n) >= f.MinMean {
		return true
	}
	return len(row) > 0 && float64(nonzero)/float64(len(row)) >= f.MinNonzeroFrac
}
