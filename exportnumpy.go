// Copyright (C) The Biomark Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package biomark

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/kshedden/gonpy"
	log "github.com/sirupsen/logrus"
)

// exportNumpy writes the (optionally filtered) expression matrix as a
// float64 .npy file for downstream Python plotting, with an optional
// CSV sidecar naming the rows and columns.
type exportNumpy struct {
	filter geneFilter
}

func (cmd *exportNumpy) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	cmd.filter = defaultGeneFilter()
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	inputFilename := flags.String("i", "", "counts `file`")
	outputFilename := flags.String("o", "-", "output `file` (.npy)")
	labelsFilename := flags.String("labels", "", "also write gene/sample labels to CSV `file`")
	applyFilter := flags.Bool("filtered", false, "apply the gene filter before exporting")
	cmd.filter.Flags(flags)
	err = flags.Parse(args)
	if err == flag.ErrHelp {
		err = nil
		return 0
	} else if err != nil {
		return 2
	}
	if *inputFilename == "" {
		err = fmt.Errorf("-i counts file is required")
		return 2
	}

	m, err := LoadMatrix(*inputFilename)
	if err != nil {
		return 1
	}
	if *applyFilter {
		var before, after int
		m, before, after = cmd.filter.Apply(m)
		log.Infof("gene filter kept %d of %d genes", after, before)
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
	bufw := bufio.NewWriter(output)
	npw, err := gonpy.NewWriter(nopCloser{bufw})
	if err != nil {
		return 1
	}
	npw.Shape = []int{len(m.Genes), len(m.Samples)}
	flat := make([]float64, 0, len(m.Genes)*len(m.Samples))
	for _, row := range m.Values {
		flat = append(flat, row...)
	}
	err = npw.WriteFloat64(flat)
	if err != nil {
		return 1
	}
	err = bufw.Flush()
	if err != nil {
		return 1
	}
	err = output.Close()
	if err != nil {
		return 1
	}

	if *labelsFilename != "" {
		err = writeLabels(*labelsFilename, m)
		if err != nil {
			return 1
		}
	}
	return 0
}

func writeLabels(path string, m *ExpressionMatrix) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	fmt.Fprint(w, "kind,index,id\n")
	for i, gene := range m.Genes {
		fmt.Fprintf(w, "gene,%d,%s\n", i, gene)
	}
	for j, sample := range m.Samples {
		fmt.Fprintf(w, "sample,%d,%s\n", j, sample)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return f.Close()
}
