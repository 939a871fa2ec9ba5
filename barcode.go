// Copyright (C) The Biomark Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package biomark

import (
	"strconv"
	"strings"
)

// SampleGroup is the biological comparison group a sample belongs to.
type SampleGroup string

const (
	GroupTumor  SampleGroup = "tumor"
	GroupNormal SampleGroup = "normal"
	GroupOther  SampleGroup = "other"
)

// TCGA barcodes look like TCGA-AA-3877-01A: project, tissue source
// site, participant, then the two-digit sample type code at a fixed
// byte offset.
const (
	barcodePrefix    = "TCGA-"
	typeCodeOffset   = 13
	sentinelTypeCode = "--"
)

// SampleLabel is the classification of one sample identifier.
type SampleLabel struct {
	SampleID string
	TypeCode string
	Group    SampleGroup
}

// ClassifySample parses a sample barcode into a SampleLabel. Sample
// type codes 1-9 are tumors, 10-19 are normals. Identifiers that do
// not look like TCGA barcodes, and codes outside both ranges, classify
// as "other" -- never an error.
func ClassifySample(id string) SampleLabel {
	if !strings.HasPrefix(id, barcodePrefix) || len(id) < typeCodeOffset+2 {
		return SampleLabel{SampleID: id, TypeCode: sentinelTypeCode, Group: GroupOther}
	}
	code := id[typeCodeOffset : typeCodeOffset+2]
	n, err := strconv.Atoi(code)
	label := SampleLabel{SampleID: id, TypeCode: code, Group: GroupOther}
	if err != nil {
		return label
	}
	switch {
	case n >= 1 && n <= 9:
		label.Group = GroupTumor
	case n >= 10 && n <= 19:
		label.Group = GroupNormal
	}
	return label
}

// ClassifySamples classifies each identifier in order. No identifiers
// are dropped.
func ClassifySamples(ids []string) []SampleLabel {
	labels := make([]SampleLabel, len(ids))
	for i, id := range ids {
		labels[i] = ClassifySample(id)
	}
	return labels
}

// groupCounts tallies labels per group.
func groupCounts(labels []SampleLabel) map[SampleGroup]int {
	counts := map[SampleGroup]int{}
	for _, label := range labels {
		counts[label.Group]++
	}
	return counts
}

// groupColumns returns the column indexes of samples in the given
// group, in input order.
func groupColumns(labels []SampleLabel, group SampleGroup) []int {
	var cols []int
	for i, label := range labels {
		if label.Group == group {
			cols = append(cols, i)
		}
	}
	return cols
}
