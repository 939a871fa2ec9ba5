// Copyright (C) The Biomark Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package biomark

import (
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/montanaflynn/stats"
	log "github.com/sirupsen/logrus"
)

// ScoreWeights are the relative contributions of the three evidence
// sources to the final score.
type ScoreWeights struct {
	Omics      float64 `yaml:"omics"`
	Literature float64 `yaml:"literature"`
	Pathway    float64 `yaml:"pathway"`
}

func defaultScoreWeights() ScoreWeights {
	return ScoreWeights{Omics: 0.45, Literature: 0.35, Pathway: 0.20}
}

// scoreCmd combines the omics, literature, and pathway evidence files
// into a weighted final ranking.
type scoreCmd struct {
	weights ScoreWeights
}

func (cmd *scoreCmd) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	cmd.weights = defaultScoreWeights()
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	evidenceDir := flags.String("evidence-dir", ".", "`directory` holding the three evidence files")
	outputFilename := flags.String("o", "-", "output `file`")
	flags.Float64Var(&cmd.weights.Omics, "weight-omics", cmd.weights.Omics, "weight of the omics score")
	flags.Float64Var(&cmd.weights.Literature, "weight-literature", cmd.weights.Literature, "weight of the literature score")
	flags.Float64Var(&cmd.weights.Pathway, "weight-pathway", cmd.weights.Pathway, "weight of the pathway score")
	err = flags.Parse(args)
	if err == flag.ErrHelp {
		err = nil
		return 0
	} else if err != nil {
		return 2
	}

	rows, err := cmd.scoreRows(*evidenceDir)
	if err != nil {
		return 1
	}

	var output io.WriteCloser
	if *outputFilename == "-" {
		output = nopCloser{stdout}
	} else {
		output, err = os.Create(*outputFilename)
		if err != nil {
			return 1
		}
		defer output.Close()
	}
	w := csv.NewWriter(output)
	err = w.Write([]string{"gene", "final_score", "omics_score", "literature_score", "pathway_score"})
	if err != nil {
		return 1
	}
	err = w.WriteAll(rows)
	if err != nil {
		return 1
	}
	err = output.Close()
	if err != nil {
		return 1
	}
	log.Infof("ranked %d genes", len(rows))
	return 0
}

// scoreRows computes the final ranking. All three upstream evidence
// files must exist; their absence is a hard failure naming every
// missing file.
func (cmd *scoreCmd) scoreRows(evidenceDir string) ([][]string, error) {
	omicsPath := filepath.Join(evidenceDir, "omics_evidence.csv")
	litPath := filepath.Join(evidenceDir, "lit_evidence.csv")
	pathwayPath := filepath.Join(evidenceDir, "pathway_evidence.csv")
	var missing []string
	for _, path := range []string{omicsPath, litPath, pathwayPath} {
		if _, err := os.Stat(path); err != nil {
			missing = append(missing, path)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required upstream outputs: %s", strings.Join(missing, ", "))
	}

	omics, err := readCSVTable(omicsPath)
	if err != nil {
		return nil, err
	}
	lit, err := readCSVTable(litPath)
	if err != nil {
		return nil, err
	}
	pathway, err := readCSVTable(pathwayPath)
	if err != nil {
		return nil, err
	}

	geneCol := omics.column("gene")
	if geneCol < 0 || len(omics.records) == 0 {
		log.Warn("omics evidence is empty, writing empty ranking")
		return nil, nil
	}
	genes := make([]string, len(omics.records))
	for i, record := range omics.records {
		genes[i] = omics.field(record, geneCol)
	}

	omicsScore := minMaxNormalize(cmd.omicsSignal(omics))

	litCounts := map[string]float64{}
	if litGeneCol := lit.column("gene"); litGeneCol >= 0 {
		for _, record := range lit.records {
			litCounts[lit.field(record, litGeneCol)]++
		}
	}
	litScore := minMaxNormalize(perGene(genes, litCounts))

	pathwayCounts := map[string]float64{}
	if pathwayGeneCol, countCol := pathway.column("gene"), pathway.column("pathway_count"); pathwayGeneCol >= 0 && countCol >= 0 {
		for _, record := range pathway.records {
			pathwayCounts[pathway.field(record, pathwayGeneCol)] = parseFloatOrNaN(pathway.field(record, countCol))
		}
	}
	pathwayScore := minMaxNormalize(perGene(genes, pathwayCounts))

	type scored struct {
		gene           string
		final, o, l, p float64
	}
	ranked := make([]scored, len(genes))
	for i, gene := range genes {
		ranked[i] = scored{
			gene:  gene,
			o:     omicsScore[i],
			l:     litScore[i],
			p:     pathwayScore[i],
			final: cmd.weights.Omics*omicsScore[i] + cmd.weights.Literature*litScore[i] + cmd.weights.Pathway*pathwayScore[i],
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].final > ranked[j].final })

	rows := make([][]string, len(ranked))
	for i, r := range ranked {
		rows[i] = []string{r.gene, formatFloat(r.final), formatFloat(r.o), formatFloat(r.l), formatFloat(r.p)}
	}
	return rows, nil
}

// omicsSignal recovers the DE signal |log2fc| * -log10(fdr + eps) from
// the evidence table. Tables written by older versions carry only
// mean_expr; fall back to that before giving up and scoring zero.
func (cmd *scoreCmd) omicsSignal(omics *csvTable) []float64 {
	signal := make([]float64, len(omics.records))
	log2fcCol, fdrCol := omics.column("log2fc"), omics.column("fdr")
	if log2fcCol >= 0 && fdrCol >= 0 {
		for i, record := range omics.records {
			s := DESignal(
				parseFloatOrNaN(omics.field(record, log2fcCol)),
				parseFloatOrNaN(omics.field(record, fdrCol)))
			if !math.IsNaN(s) {
				signal[i] = s
			}
		}
		return signal
	}
	if meanCol := omics.column("mean_expr"); meanCol >= 0 {
		log.Warn("using legacy mean expression scoring")
		for i, record := range omics.records {
			signal[i] = parseFloatOrNaN(omics.field(record, meanCol))
		}
		return signal
	}
	log.Warn("no usable omics scoring columns, scoring zero")
	return signal
}

func perGene(genes []string, counts map[string]float64) []float64 {
	vals := make([]float64, len(genes))
	for i, gene := range genes {
		vals[i] = counts[gene]
	}
	return vals
}

// minMaxNormalize scales values to 0..100. A constant (or empty)
// series maps to all zeros to avoid dividing by zero.
func minMaxNormalize(vals []float64) []float64 {
	out := make([]float64, len(vals))
	min, errMin := stats.Min(vals)
	max, errMax := stats.Max(vals)
	if errMin != nil || errMax != nil || min == max {
		return out
	}
	for i, v := range vals {
		out[i] = (v - min) / (max - min) * 100
	}
	return out
}
