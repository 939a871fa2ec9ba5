// Copyright (C) The Biomark Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package biomark

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/check.v1"
)

type pipelineSuite struct{}

var _ = check.Suite(&pipelineSuite{})

var pipelineSamples = []string{
	"TCGA-AA-0001-01A", "TCGA-AB-0002-01A", "TCGA-AC-0003-01A", "TCGA-AD-0004-01A",
	"TCGA-AA-0001-11A", "TCGA-AB-0002-11A", "TCGA-AC-0003-11A", "TCGA-AD-0004-11A",
}

// pipelineMatrix has 4 tumor and 4 normal columns. GENE_UP and
// GENE_DOWN separate the groups cleanly, GENE_FLAT and GENE_ZEROVAR do
// not, and GENE_LOW fails the expression filter.
func pipelineMatrix(c *check.C, dir string) string {
	rows := []string{
		"gene\t" + strings.Join(pipelineSamples, "\t"),
		"GENE_UP\t18\t19\t20\t19\t2\t3\t2\t3",
		"GENE_DOWN\t1\t2\t1\t2\t7\t8\t7\t8",
		"GENE_FLAT\t5\t6\t5\t6\t5\t6\t5\t6",
		"GENE_ZEROVAR\t3\t3\t3\t3\t3\t3\t3\t3",
		"GENE_LOW\t0.5\t0\t0\t0\t0\t0\t0\t0",
	}
	path := filepath.Join(dir, "counts.tsv")
	writeFile(c, path, strings.Join(rows, "\n")+"\n")
	return path
}

func readCSV(c *check.C, path string) [][]string {
	f, err := os.Open(path)
	c.Assert(err, check.IsNil)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	c.Assert(err, check.IsNil)
	return rows
}

func (s *pipelineSuite) TestDiffExp(c *check.C) {
	dir := c.MkDir()
	counts := pipelineMatrix(c, dir)
	cache := filepath.Join(dir, "symbols.tsv")
	writeFile(c, cache, "ensembl_id\tgene_symbol\nGENE_UP\tUPGENE\n")

	var stderr bytes.Buffer
	code := RunCommand("biomark", []string{"diffexp",
		"-i", counts,
		"-output-dir", dir,
		"-dataset", "TEST-SET",
		"-symbol-cache", cache,
		"-use-api=false",
	}, bytes.NewReader(nil), &bytes.Buffer{}, &stderr)
	c.Assert(code, check.Equals, 0, check.Commentf("stderr: %s", stderr.String()))

	evidence := readCSV(c, filepath.Join(dir, "omics_evidence.csv"))
	c.Assert(evidence, check.HasLen, 5)
	c.Check(evidence[0], check.DeepEquals, []string{
		"gene", "gene_symbol", "log2fc", "p_value", "fdr",
		"direction", "tumor_mean", "normal_mean", "dataset",
	})
	byGene := map[string][]string{}
	for _, row := range evidence[1:] {
		byGene[row[0]] = row
		c.Check(row[8], check.Equals, "TEST-SET")
	}
	// GENE_LOW was filtered out before testing.
	c.Check(byGene["GENE_LOW"], check.IsNil)
	c.Check(byGene["GENE_UP"][1], check.Equals, "UPGENE")
	c.Check(byGene["GENE_UP"][2], check.Equals, "16.5")
	c.Check(byGene["GENE_UP"][5], check.Equals, "up")
	c.Check(byGene["GENE_UP"][6], check.Equals, "19")
	c.Check(byGene["GENE_UP"][7], check.Equals, "2.5")
	c.Check(byGene["GENE_DOWN"][2], check.Equals, "-6")
	c.Check(byGene["GENE_DOWN"][5], check.Equals, "down")
	// Degenerate genes get p = fdr = 1.
	c.Check(byGene["GENE_ZEROVAR"][3], check.Equals, "1")
	c.Check(byGene["GENE_ZEROVAR"][4], check.Equals, "1")
	c.Check(byGene["GENE_FLAT"][4], check.Equals, "1")
	// The two significant genes sort before the degenerate ones.
	c.Check(evidence[1][0] == "GENE_UP" || evidence[1][0] == "GENE_DOWN", check.Equals, true)
	c.Check(evidence[2][0] == "GENE_UP" || evidence[2][0] == "GENE_DOWN", check.Equals, true)

	candidates := readCSV(c, filepath.Join(dir, "candidates.csv"))
	c.Assert(candidates, check.HasLen, 3)
	c.Check(candidates[0], check.DeepEquals, []string{
		"gene", "gene_symbol", "log2fc", "fdr", "direction", "rank",
	})
	// GENE_UP has the larger effect and the smaller fdr, so it
	// outranks GENE_DOWN.
	c.Check(candidates[1][0], check.Equals, "GENE_UP")
	c.Check(candidates[1][5], check.Equals, "1")
	c.Check(candidates[2][0], check.Equals, "GENE_DOWN")
	c.Check(candidates[2][5], check.Equals, "2")
}

func (s *pipelineSuite) TestDiffExpInsufficientSamples(c *check.C) {
	dir := c.MkDir()
	samples := append([]string{}, pipelineSamples[:6]...)
	rows := []string{
		"gene\t" + strings.Join(samples, "\t"),
		"GENE_UP\t8\t9\t10\t9\t2\t3",
	}
	counts := filepath.Join(dir, "counts.tsv")
	writeFile(c, counts, strings.Join(rows, "\n")+"\n")

	var stderr bytes.Buffer
	code := RunCommand("biomark", []string{"diffexp",
		"-i", counts,
		"-output-dir", dir,
		"-use-api=false",
	}, bytes.NewReader(nil), &bytes.Buffer{}, &stderr)
	c.Check(code, check.Equals, 1)
	c.Check(stderr.String(), check.Matches, `(?s).*insufficient samples in normal group: have 2, need >= 3.*`)
	// Nothing is written when the comparison is invalid.
	_, err := os.Stat(filepath.Join(dir, "omics_evidence.csv"))
	c.Check(os.IsNotExist(err), check.Equals, true)
	_, err = os.Stat(filepath.Join(dir, "candidates.csv"))
	c.Check(os.IsNotExist(err), check.Equals, true)
}

func (s *pipelineSuite) TestStats(c *check.C) {
	dir := c.MkDir()
	counts := pipelineMatrix(c, dir)

	var stdout bytes.Buffer
	code := RunCommand("biomark", []string{"stats", "-i", counts},
		bytes.NewReader(nil), &stdout, os.Stderr)
	c.Assert(code, check.Equals, 0)

	var got struct {
		Genes              int
		Samples            int
		Tumor              int
		Normal             int
		Other              int
		GenesPassingFilter int
		Blake2b            string
	}
	c.Assert(json.Unmarshal(stdout.Bytes(), &got), check.IsNil)
	c.Check(got.Genes, check.Equals, 5)
	c.Check(got.Samples, check.Equals, 8)
	c.Check(got.Tumor, check.Equals, 4)
	c.Check(got.Normal, check.Equals, 4)
	c.Check(got.Other, check.Equals, 0)
	c.Check(got.GenesPassingFilter, check.Equals, 4)
	c.Check(got.Blake2b, check.HasLen, 64)
}

func (s *pipelineSuite) TestExportNumpy(c *check.C) {
	dir := c.MkDir()
	counts := pipelineMatrix(c, dir)
	npyfile := filepath.Join(dir, "counts.npy")
	labelsfile := filepath.Join(dir, "labels.csv")

	code := RunCommand("biomark", []string{"export-numpy",
		"-i", counts,
		"-o", npyfile,
		"-labels", labelsfile,
	}, bytes.NewReader(nil), &bytes.Buffer{}, os.Stderr)
	c.Assert(code, check.Equals, 0)

	buf, err := os.ReadFile(npyfile)
	c.Assert(err, check.IsNil)
	c.Check(string(buf[:6]), check.Equals, "\x93NUMPY")
	// 5 genes x 8 samples of float64 plus the header.
	c.Check(len(buf) > 5*8*8, check.Equals, true)

	labels, err := os.ReadFile(labelsfile)
	c.Assert(err, check.IsNil)
	c.Check(strings.HasPrefix(string(labels), "kind,index,id\n"), check.Equals, true)
	c.Check(string(labels), check.Matches, `(?s).*gene,0,GENE_UP\n.*`)
	c.Check(string(labels), check.Matches, `(?s).*sample,0,TCGA-AA-0001-01A\n.*`)
}

func (s *pipelineSuite) TestClassifySamplesStdin(c *check.C) {
	stdin := strings.NewReader("TCGA-AA-0001-01A\nTCGA-AA-0001-11A\nRANDOM-ID\n\n")
	var stdout bytes.Buffer
	code := RunCommand("biomark", []string{"classify-samples"}, stdin, &stdout, os.Stderr)
	c.Assert(code, check.Equals, 0)
	c.Check(stdout.String(), check.Equals, "sample_id,type_code,group\n"+
		"TCGA-AA-0001-01A,01,tumor\n"+
		"TCGA-AA-0001-11A,11,normal\n"+
		"RANDOM-ID,--,other\n")
}

func (s *pipelineSuite) TestPubMedSchema(c *check.C) {
	var stdout bytes.Buffer
	code := RunCommand("biomark", []string{"pubmed"}, bytes.NewReader(nil), &stdout, os.Stderr)
	c.Assert(code, check.Equals, 0)
	c.Check(stdout.String(), check.Equals, "gene,pmid,year,study_type,role,sample_type,directionality,snippet\n")
}

func (s *pipelineSuite) TestRun(c *check.C) {
	dir := c.MkDir()
	counts := pipelineMatrix(c, dir)
	outputs := filepath.Join(dir, "outputs")
	configPath := filepath.Join(dir, "config.yaml")
	writeFile(c, configPath, fmt.Sprintf(`
paths:
  outputs_dir: %s
omics:
  counts_path: %s
  dataset_label: TEST-SET
mapping:
  use_api: false
`, outputs, counts))

	var stderr bytes.Buffer
	code := RunCommand("biomark", []string{"run",
		"-config", configPath,
		"-skip-pathway-api",
	}, bytes.NewReader(nil), &bytes.Buffer{}, &stderr)
	c.Assert(code, check.Equals, 0, check.Commentf("stderr: %s", stderr.String()))

	for _, name := range []string{
		"omics_evidence.csv", "candidates.csv", "lit_evidence.csv",
		"pathway_evidence.csv", "ranked_candidates.csv",
	} {
		_, err := os.Stat(filepath.Join(outputs, name))
		c.Check(err, check.IsNil, check.Commentf("%s", name))
	}

	ranked := readCSV(c, filepath.Join(outputs, "ranked_candidates.csv"))
	c.Assert(ranked, check.HasLen, 5)
	c.Check(ranked[0], check.DeepEquals, []string{
		"gene", "final_score", "omics_score", "literature_score", "pathway_score",
	})
	// With literature and pathway evidence empty, ranking follows the
	// expression signal. The degenerate genes score zero.
	c.Check(ranked[1][0], check.Equals, "GENE_UP")
	scores := map[string]string{}
	for _, row := range ranked[1:] {
		scores[row[0]] = row[1]
	}
	c.Check(scores["GENE_FLAT"], check.Equals, "0")
	c.Check(scores["GENE_ZEROVAR"], check.Equals, "0")
}

func (s *pipelineSuite) TestVersionAndUnknownCommand(c *check.C) {
	var stdout bytes.Buffer
	code := RunCommand("biomark", []string{"version"}, bytes.NewReader(nil), &stdout, os.Stderr)
	c.Check(code, check.Equals, 0)
	c.Check(stdout.String(), check.Equals, "biomark dev\n")

	var stderr bytes.Buffer
	code = RunCommand("biomark", []string{"frobnicate"}, bytes.NewReader(nil), &bytes.Buffer{}, &stderr)
	c.Check(code, check.Equals, 2)
	c.Check(stderr.String(), check.Matches, `(?s).*unrecognized command "frobnicate".*`)
}
