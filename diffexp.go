// Copyright (C) The Biomark Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package biomark

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"math"
	"net/http"
	_ "net/http/pprof"
	"os"
	"path/filepath"
	"sort"

	log "github.com/sirupsen/logrus"
)

// diffExp implements the statistical core: classify samples, filter
// genes, run the per-gene Welch test, adjust p-values, and write the
// evidence and candidate files.
type diffExp struct {
	filter       geneFilter
	dataset      string
	fdrThreshold float64
	topN         int
	cachePath    string
	useAPI       bool
	apiURL       string
}

func (cmd *diffExp) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	cmd.filter = defaultGeneFilter()
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	pprof := flags.String("pprof", "", "serve Go profile data at http://`[addr]:port`")
	inputFilename := flags.String("i", "", "counts `file` (tab-separated, genes x samples)")
	outputDir := flags.String("output-dir", ".", "output `directory`")
	flags.StringVar(&cmd.dataset, "dataset", "", "dataset `label` recorded in the evidence file")
	flags.Float64Var(&cmd.fdrThreshold, "fdr-threshold", 0.05, "candidate significance threshold on adjusted p")
	flags.IntVar(&cmd.topN, "top-n", 500, "maximum number of candidates")
	flags.StringVar(&cmd.cachePath, "symbol-cache", "", "gene symbol cache `file` (tsv)")
	flags.BoolVar(&cmd.useAPI, "use-api", true, "look up missing gene symbols via the network")
	flags.StringVar(&cmd.apiURL, "symbol-api-url", defaultSymbolAPIURL, "gene symbol query `URL`")
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

	if *pprof != "" {
		go func() {
			log.Println(http.ListenAndServe(*pprof, nil))
		}()
	}

	results, err := cmd.analyze(*inputFilename)
	if err != nil {
		return 1
	}

	symbols := cmd.mapSymbols(results)
	for i := range results {
		results[i].Symbol = symbols[StripVersion(results[i].Gene)]
	}

	candidates := SelectCandidates(results, cmd.fdrThreshold, cmd.topN)
	log.Infof("%d candidates at fdr < %g", len(candidates), cmd.fdrThreshold)

	evidencePath := filepath.Join(*outputDir, "omics_evidence.csv")
	err = writeEvidenceFile(evidencePath, results, cmd.dataset)
	if err != nil {
		return 1
	}
	log.Infof("wrote %s", evidencePath)

	candidatesPath := filepath.Join(*outputDir, "candidates.csv")
	err = writeCandidateFile(candidatesPath, candidates)
	if err != nil {
		return 1
	}
	log.Infof("wrote %s", candidatesPath)
	return 0
}

// analyze runs the statistical pipeline through FDR correction.
// Symbol enrichment happens afterward and cannot change the numbers.
func (cmd *diffExp) analyze(inputFilename string) ([]TestResult, error) {
	m, err := LoadMatrix(inputFilename)
	if err != nil {
		return nil, err
	}
	log.Infof("loaded %d genes x %d samples", len(m.Genes), len(m.Samples))

	labels := ClassifySamples(m.Samples)
	counts := groupCounts(labels)
	log.Infof("samples: %d tumor, %d normal, %d other", counts[GroupTumor], counts[GroupNormal], counts[GroupOther])
	if err := cmd.filter.Check(labels); err != nil {
		return nil, err
	}

	filtered, before, after := cmd.filter.Apply(m)
	log.Infof("gene filter kept %d of %d genes", after, before)

	results := TestGenes(filtered, groupColumns(labels, GroupTumor), groupColumns(labels, GroupNormal))

	pvals := make([]float64, len(results))
	for i, r := range results {
		pvals[i] = r.P
	}
	for i, q := range BenjaminiHochberg(pvals) {
		results[i].FDR = q
	}
	return results, nil
}

func (cmd *diffExp) mapSymbols(results []TestResult) map[string]string {
	cache, err := OpenSymbolCache(cmd.cachePath)
	if err != nil {
		log.Warnf("symbol cache unavailable, continuing without: %s", err)
		cache, _ = OpenSymbolCache("")
	}
	var client *symbolClient
	if cmd.useAPI {
		client = newSymbolClient(cmd.apiURL)
	}
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.Gene
	}
	return MapSymbols(context.Background(), ids, cache, client)
}

// writeEvidenceFile writes the full per-gene evidence table, ordered
// by ascending fdr with missing fdr last.
func writeEvidenceFile(path string, results []TestResult, dataset string) error {
	ordered := make([]TestResult, len(results))
	copy(ordered, results)
	sort.SliceStable(ordered, func(i, j int) bool {
		qi, qj := ordered[i].FDR, ordered[j].FDR
		if math.IsNaN(qj) {
			return !math.IsNaN(qi)
		}
		if math.IsNaN(qi) {
			return false
		}
		return qi < qj
	})
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	fmt.Fprint(w, "gene,gene_symbol,log2fc,p_value,fdr,direction,tumor_mean,normal_mean,dataset\n")
	for _, r := range ordered {
		fmt.Fprintf(w, "%s,%s,%s,%s,%s,%s,%s,%s,%s\n",
			r.Gene, r.Symbol,
			formatFloat(r.Log2FC), formatFloat(r.P), formatFloat(r.FDR),
			r.Direction,
			formatFloat(r.TumorMean), formatFloat(r.NormalMean),
			dataset)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return f.Close()
}

// writeCandidateFile writes the ranked candidate list.
func writeCandidateFile(path string, candidates []Candidate) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	fmt.Fprint(w, "gene,gene_symbol,log2fc,fdr,direction,rank\n")
	for _, cand := range candidates {
		fmt.Fprintf(w, "%s,%s,%s,%s,%s,%d\n",
			cand.Gene, cand.Symbol,
			formatFloat(cand.Log2FC), formatFloat(cand.FDR),
			cand.Direction, cand.Rank)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return f.Close()
}
