// Copyright (C) The Biomark Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package biomark

import (
	"math"
	"sort"
)

// BenjaminiHochberg converts raw p-values to adjusted q-values using
// the classical BH step-up procedure. Missing entries (NaN) pass
// through as NaN and do not count toward n. The output is aligned 1:1
// with the input.
func BenjaminiHochberg(pvals []float64) []float64 {
	if len(pvals) == 0 {
		return nil
	}
	adjusted := make([]float64, len(pvals))
	var valid []int
	for i, p := range pvals {
		if math.IsNaN(p) {
			adjusted[i] = math.NaN()
		} else {
			valid = append(valid, i)
		}
	}
	n := len(valid)
	if n == 0 {
		return adjusted
	}
	sort.Slice(valid, func(i, j int) bool { return pvals[valid[i]] < pvals[valid[j]] })
	// Running minimum from the largest rank down keeps the adjusted
	// values monotonic in p.
	runMin := math.Inf(1)
	for i := n - 1; i >= 0; i-- {
		q := pvals[valid[i]] * float64(n) / float64(i+1)
		if q > 1 {
			q = 1
		}
		if q < runMin {
			runMin = q
		}
		adjusted[valid[i]] = runMin
	}
	return adjusted
}
