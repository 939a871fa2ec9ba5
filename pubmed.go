// Copyright (C) The Biomark Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package biomark

import (
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"os"

	log "github.com/sirupsen/logrus"
)

// litEvidenceHeader is the schema consumed by the scoring step: one
// row per gene-publication association.
var litEvidenceHeader = []string{
	"gene", "pmid", "year", "study_type", "role",
	"sample_type", "directionality", "snippet",
}

// pubmedCmd produces the literature evidence file. It currently emits
// the schema with no rows; the scoring step treats an empty file as
// zero literature support for every gene.
//
// TODO: query PubMed E-utilities for gene-disease co-mentions.
type pubmedCmd struct{}

func (cmd *pubmedCmd) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	candidatesFilename := flags.String("candidates", "", "candidate list CSV `file` (optional, logged only)")
	outputFilename := flags.String("o", "-", "output `file`")
	err = flags.Parse(args)
	if err == flag.ErrHelp {
		err = nil
		return 0
	} else if err != nil {
		return 2
	}

	if *candidatesFilename != "" {
		table, err := readCSVTable(*candidatesFilename)
		if err != nil {
			log.Warnf("no candidate list, writing empty schema: %s", err)
		} else {
			log.Infof("%d candidate genes", len(table.records))
		}
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
	err = w.Write(litEvidenceHeader)
	if err != nil {
		return 1
	}
	w.Flush()
	err = w.Error()
	if err != nil {
		return 1
	}
	err = output.Close()
	if err != nil {
		return 1
	}
	return 0
}
