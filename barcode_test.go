// Copyright (C) The Biomark Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package biomark

import (
	"gopkg.in/check.v1"
)

type barcodeSuite struct{}

var _ = check.Suite(&barcodeSuite{})

func (s *barcodeSuite) TestClassifySample(c *check.C) {
	for _, trial := range []struct {
		id       string
		group    SampleGroup
		typeCode string
	}{
		{"TCGA-AA-3877-01A", GroupTumor, "01"},
		{"TCGA-AA-3877-09B", GroupTumor, "09"},
		{"TCGA-AA-3877-11A", GroupNormal, "11"},
		{"TCGA-AA-3877-19A", GroupNormal, "19"},
		{"TCGA-AA-3877-20A", GroupOther, "20"},
		{"TCGA-AA-3877-XXA", GroupOther, "XX"},
		{"TCGA-AA-3877", GroupOther, "--"},
		{"RANDOM-ID", GroupOther, "--"},
		{"", GroupOther, "--"},
	} {
		c.Logf("%+v", trial)
		label := ClassifySample(trial.id)
		c.Check(label.SampleID, check.Equals, trial.id)
		c.Check(label.Group, check.Equals, trial.group)
		c.Check(label.TypeCode, check.Equals, trial.typeCode)
	}
}

func (s *barcodeSuite) TestClassifySamplesOrder(c *check.C) {
	ids := []string{"TCGA-AA-3877-11A", "bogus", "TCGA-AA-3877-01A"}
	labels := ClassifySamples(ids)
	c.Assert(labels, check.HasLen, len(ids))
	for i, label := range labels {
		c.Check(label.SampleID, check.Equals, ids[i])
	}
	c.Check(labels[0].Group, check.Equals, GroupNormal)
	c.Check(labels[1].Group, check.Equals, GroupOther)
	c.Check(labels[2].Group, check.Equals, GroupTumor)
}

func (s *barcodeSuite) TestGroupColumns(c *check.C) {
	labels := ClassifySamples([]string{
		"TCGA-AA-3877-01A", "TCGA-AB-0001-11A", "other", "TCGA-AC-0002-01B",
	})
	c.Check(groupColumns(labels, GroupTumor), check.DeepEquals, []int{0, 3})
	c.Check(groupColumns(labels, GroupNormal), check.DeepEquals, []int{1})
	c.Check(groupColumns(labels, GroupOther), check.DeepEquals, []int{2})
	counts := groupCounts(labels)
	c.Check(counts[GroupTumor], check.Equals, 2)
	c.Check(counts[GroupNormal], check.Equals, 1)
	c.Check(counts[GroupOther], check.Equals, 1)
}
