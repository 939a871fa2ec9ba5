// Copyright (C) The Biomark Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package biomark

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"os"

	log "github.com/sirupsen/logrus"
)

// annotateCmd adds a gene_symbol column to a gene-keyed CSV file using
// the symbol mapping collaborator.
type annotateCmd struct {
	geneColumn string
	cachePath  string
	useAPI     bool
	apiURL     string
}

func (cmd *annotateCmd) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	inputFilename := flags.String("i", "", "input CSV `file`")
	outputFilename := flags.String("o", "-", "output `file`")
	flags.StringVar(&cmd.geneColumn, "gene-column", "gene", "`name` of the column holding gene identifiers")
	flags.StringVar(&cmd.cachePath, "symbol-cache", "", "gene symbol cache `file` (tsv)")
	flags.BoolVar(&cmd.useAPI, "use-api", true, "look up missing gene symbols via the network")
	flags.StringVar(&cmd.apiURL, "symbol-api-url", defaultSymbolAPIURL, "gene symbol query `URL`")
	err = flags.Parse(args)
	if err == flag.ErrHelp {
		err = nil
		return 0
	} else if err != nil {
		return 2
	}
	if *inputFilename == "" {
		err = fmt.Errorf("-i input CSV is required")
		return 2
	}

	table, err := readCSVTable(*inputFilename)
	if err != nil {
		return 1
	}
	geneCol := table.column(cmd.geneColumn)
	if geneCol < 0 {
		err = fmt.Errorf("%s: no column named %q", *inputFilename, cmd.geneColumn)
		return 1
	}

	cache, err := OpenSymbolCache(cmd.cachePath)
	if err != nil {
		return 1
	}
	var client *symbolClient
	if cmd.useAPI {
		client = newSymbolClient(cmd.apiURL)
	}
	ids := make([]string, 0, len(table.records))
	for _, record := range table.records {
		ids = append(ids, table.field(record, geneCol))
	}
	symbols := MapSymbols(context.Background(), ids, cache, client)

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
	err = w.Write(append(append([]string{}, table.header...), "gene_symbol"))
	if err != nil {
		return 1
	}
	mapped := 0
	for _, record := range table.records {
		symbol := symbols[StripVersion(table.field(record, geneCol))]
		if symbol != "" {
			mapped++
		}
		err = w.Write(append(append([]string{}, record...), symbol))
		if err != nil {
			return 1
		}
	}
	w.Flush()
	err = w.Error()
	if err != nil {
		return 1
	}
	log.Infof("mapped %d of %d genes to symbols", mapped, len(table.records))
	err = output.Close()
	if err != nil {
		return 1
	}
	return 0
}
