// Copyright (C) The Biomark Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package biomark

import (
	"flag"
	"fmt"
	"io"
	"path/filepath"
	"strconv"

	log "github.com/sirupsen/logrus"
)

// runCmd drives the whole pipeline from one config file:
// diffexp -> pubmed -> pathway -> score.
type runCmd struct{}

func (cmd *runCmd) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	configPath := flags.String("config", "config.yaml", "configuration `file`")
	skipPathwayAPI := flags.Bool("skip-pathway-api", false, "write empty pathway evidence instead of querying Reactome")
	err = flags.Parse(args)
	if err == flag.ErrHelp {
		err = nil
		return 0
	} else if err != nil {
		return 2
	}

	config, err := LoadConfig(*configPath)
	if err != nil {
		return 1
	}
	err = config.EnsureDirs()
	if err != nil {
		return 1
	}
	outputs := config.Paths.OutputsDir

	diffexpArgs := []string{
		"-i", config.Omics.CountsPath,
		"-output-dir", outputs,
		"-dataset", config.Omics.DatasetLabel,
		"-min-mean", formatFloat(config.Omics.MinMean),
		"-min-nonzero-frac", formatFloat(config.Omics.MinNonzeroFrac),
		"-min-group-samples", strconv.Itoa(config.Omics.MinGroupSamples),
		"-fdr-threshold", formatFloat(config.Omics.FDRThreshold),
		"-top-n", strconv.Itoa(config.Omics.TopN),
		"-symbol-cache", config.Mapping.CachePath,
		"-use-api=" + strconv.FormatBool(config.Mapping.UseAPI),
	}
	pathwayArgs := []string{
		"-candidates", filepath.Join(outputs, "candidates.csv"),
		"-o", filepath.Join(outputs, "pathway_evidence.csv"),
		"-fdr-threshold", formatFloat(config.Pathway.FDRThreshold),
	}
	if *skipPathwayAPI {
		pathwayArgs = append(pathwayArgs, "-candidates=")
	}
	steps := []struct {
		name string
		cmd  command
		args []string
	}{
		{"diffexp", &diffExp{}, diffexpArgs},
		{"pubmed", &pubmedCmd{}, []string{
			"-candidates", filepath.Join(outputs, "candidates.csv"),
			"-o", filepath.Join(outputs, "lit_evidence.csv"),
		}},
		{"pathway", &pathwayCmd{}, pathwayArgs},
		{"score", &scoreCmd{}, []string{
			"-evidence-dir", outputs,
			"-o", filepath.Join(outputs, "ranked_candidates.csv"),
			"-weight-omics", formatFloat(config.Scoring.Weights.Omics),
			"-weight-literature", formatFloat(config.Scoring.Weights.Literature),
			"-weight-pathway", formatFloat(config.Scoring.Weights.Pathway),
		}},
	}
	for i, step := range steps {
		log.Infof("step %d/%d: %s", i+1, len(steps), step.name)
		if code := step.cmd.RunCommand(prog+" "+step.name, step.args, stdin, stdout, stderr); code != 0 {
			return code
		}
	}
	log.Infof("pipeline complete, outputs in %s", outputs)
	return 0
}
