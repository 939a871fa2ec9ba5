// Copyright (C) The Biomark Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package biomark

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

const defaultReactomeURL = "https://reactome.org/AnalysisService"

// pathwayCmd queries the Reactome Analysis Service for the candidate
// genes and writes per-gene pathway membership counts. All network
// failures degrade to an empty-schema evidence file so the scoring
// step can still run.
type pathwayCmd struct {
	apiURL       string
	fdrThreshold float64
	timeout      time.Duration
}

var pathwayEvidenceHeader = []string{"gene", "pathway_count", "top_pathways"}

func (cmd *pathwayCmd) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	candidatesFilename := flags.String("candidates", "", "candidate list CSV `file`")
	outputFilename := flags.String("o", "-", "output `file`")
	flags.StringVar(&cmd.apiURL, "api-url", defaultReactomeURL, "Reactome Analysis Service `URL`")
	flags.Float64Var(&cmd.fdrThreshold, "fdr-threshold", 0.05, "keep pathways with entities FDR < `X`")
	flags.DurationVar(&cmd.timeout, "timeout", time.Minute, "per-request timeout")
	err = flags.Parse(args)
	if err == flag.ErrHelp {
		err = nil
		return 0
	} else if err != nil {
		return 2
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

	rows, err := cmd.evidenceRows(*candidatesFilename)
	if err != nil {
		// Missing or unusable candidate list degrades to the empty
		// schema, same as an API outage.
		log.Warnf("writing empty pathway evidence: %s", err)
		rows = nil
		err = nil
	}
	err = w.Write(pathwayEvidenceHeader)
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
	return 0
}

func (cmd *pathwayCmd) evidenceRows(candidatesFilename string) ([][]string, error) {
	if candidatesFilename == "" {
		return nil, fmt.Errorf("-candidates file not specified")
	}
	table, err := readCSVTable(candidatesFilename)
	if err != nil {
		return nil, err
	}
	geneCol := table.column("gene")
	if geneCol < 0 {
		return nil, fmt.Errorf("%s: no gene column", candidatesFilename)
	}
	symbolCol := table.column("gene_symbol")

	// Prefer symbols for the enrichment query; Reactome echoes back
	// whatever identifiers we submit.
	var query []string
	seen := map[string]bool{}
	lookupKey := make([]string, len(table.records))
	for i, record := range table.records {
		key := ""
		if symbolCol >= 0 {
			key = table.field(record, symbolCol)
		}
		if key == "" && symbolCol < 0 {
			key = table.field(record, geneCol)
		}
		lookupKey[i] = key
		if key != "" && !seen[key] {
			seen[key] = true
			query = append(query, key)
		}
	}
	if len(query) == 0 {
		return nil, fmt.Errorf("%s: no genes to map", candidatesFilename)
	}
	log.Infof("submitting %d genes for pathway enrichment", len(query))

	counts, topPathways, err := cmd.enrich(context.Background(), query)
	if err != nil {
		return nil, err
	}

	rows := make([][]string, 0, len(table.records))
	for i, record := range table.records {
		key := lookupKey[i]
		rows = append(rows, []string{
			table.field(record, geneCol),
			strconv.Itoa(counts[key]),
			strings.Join(topPathways[key], "; "),
		})
	}
	return rows, nil
}

// enrich submits the gene list and tallies, per submitted identifier,
// how many significant pathways contain it plus up to five pathway
// names.
func (cmd *pathwayCmd) enrich(ctx context.Context, genes []string) (map[string]int, map[string][]string, error) {
	client := &http.Client{Timeout: cmd.timeout}
	header := http.Header{"Content-Type": {"text/plain"}}
	buf, err := requestWithRetry(ctx, client,
		"POST", cmd.apiURL+"/identifiers/projection?pageSize=1&page=1",
		[]byte(strings.Join(genes, "\n")), header)
	if err != nil {
		return nil, nil, err
	}
	var analysis struct {
		Summary struct {
			Token string `json:"token"`
		} `json:"summary"`
	}
	if err := json.Unmarshal(buf, &analysis); err != nil {
		return nil, nil, fmt.Errorf("analysis response: %w", err)
	}
	if analysis.Summary.Token == "" {
		return nil, nil, fmt.Errorf("analysis response contains no token")
	}
	log.Infof("analysis token %s", analysis.Summary.Token)

	buf, err = requestWithRetry(ctx, client,
		"GET", cmd.apiURL+"/download/"+analysis.Summary.Token+"/pathways/TOTAL/result.csv",
		nil, nil)
	if err != nil {
		return nil, nil, err
	}

	rdr := csv.NewReader(bytes.NewReader(buf))
	rdr.FieldsPerRecord = -1
	rows, err := rdr.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("result CSV: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil, fmt.Errorf("empty result CSV")
	}
	result := csvTable{header: rows[0], records: rows[1:]}
	nameCol := result.column("Pathway name")
	fdrCol := result.column("Entities FDR")
	submittedCol := result.column("Submitted entities found")
	if nameCol < 0 || fdrCol < 0 || submittedCol < 0 {
		// Known layout of the download endpoint, used when the header
		// wording drifts.
		nameCol, fdrCol, submittedCol = 1, 6, 12
	}

	counts := map[string]int{}
	topPathways := map[string][]string{}
	significant := 0
	for _, record := range result.records {
		fdr, err := strconv.ParseFloat(result.field(record, fdrCol), 64)
		if err != nil || fdr >= cmd.fdrThreshold {
			continue
		}
		significant++
		for _, gene := range strings.Split(result.field(record, submittedCol), ";") {
			gene = strings.TrimSpace(gene)
			if gene == "" {
				continue
			}
			counts[gene]++
			if len(topPathways[gene]) < 5 {
				topPathways[gene] = append(topPathways[gene], result.field(record, nameCol))
			}
		}
	}
	log.Infof("%d significant pathways (fdr < %g)", significant, cmd.fdrThreshold)
	return counts, topPathways, nil
}
