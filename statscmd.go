// Copyright (C) The Biomark Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package biomark

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/pgzip"
	"golang.org/x/crypto/blake2b"
)

// statsCmd summarizes a counts file as JSON: dimensions, comparison
// group sizes, gene filter survival, and a blake2b-256 content
// fingerprint identifying the exact input bytes.
type statsCmd struct {
	filter geneFilter
}

func (cmd *statsCmd) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	cmd.filter = defaultGeneFilter()
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	inputFilename := flags.String("i", "-", "counts `file`")
	outputFilename := flags.String("o", "-", "output `file`")
	cmd.filter.Flags(flags)
	err = flags.Parse(args)
	if err == flag.ErrHelp {
		err = nil
		return 0
	} else if err != nil {
		return 2
	}

	var input io.ReadCloser
	if *inputFilename == "-" {
		input = io.NopCloser(stdin)
	} else {
		input, err = os.Open(*inputFilename)
		if err != nil {
			return 1
		}
		defer input.Close()
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
	err = cmd.doStats(input, bufw, strings.HasSuffix(*inputFilename, ".gz"))
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
	return 0
}

func (cmd *statsCmd) doStats(input io.Reader, output io.Writer, gzipped bool) error {
	var ret struct {
		Genes              int
		Samples            int
		Tumor              int
		Normal             int
		Other              int
		GenesPassingFilter int
		Blake2b            string
	}

	hasher, err := blake2b.New256(nil)
	if err != nil {
		return err
	}
	rdr := io.TeeReader(input, hasher)
	if gzipped {
		gz, err := pgzip.NewReader(rdr)
		if err != nil {
			return err
		}
		defer gz.Close()
		rdr = gz
	}
	m, err := ReadMatrix(rdr)
	if err != nil {
		return err
	}

	ret.Genes = len(m.Genes)
	ret.Samples = len(m.Samples)
	counts := groupCounts(ClassifySamples(m.Samples))
	ret.Tumor = counts[GroupTumor]
	ret.Normal = counts[GroupNormal]
	ret.Other = counts[GroupOther]
	_, _, ret.GenesPassingFilter = cmd.filter.Apply(m)
	ret.Blake2b = fmt.Sprintf("%x", hasher.Sum(nil))

	return json.NewEncoder(output).Encode(ret)
}
