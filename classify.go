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
	"strings"
)

// classifySamples writes a samples.csv describing the comparison group
// of every sample column in a counts file (or of IDs read one per line
// from stdin).
type classifySamples struct{}

func (cmd *classifySamples) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	inputFilename := flags.String("i", "-", "counts `file` whose header names the samples, or - to read one sample ID per line from stdin")
	outputFilename := flags.String("o", "-", "output `file`")
	err = flags.Parse(args)
	if err == flag.ErrHelp {
		err = nil
		return 0
	} else if err != nil {
		return 2
	}

	var ids []string
	if *inputFilename == "-" {
		scanner := bufio.NewScanner(stdin)
		for scanner.Scan() {
			if id := strings.TrimSpace(scanner.Text()); id != "" {
				ids = append(ids, id)
			}
		}
		err = scanner.Err()
		if err != nil {
			return 1
		}
	} else {
		var m *ExpressionMatrix
		m, err = LoadMatrix(*inputFilename)
		if err != nil {
			return 1
		}
		ids = m.Samples
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
	w := bufio.NewWriter(output)
	fmt.Fprint(w, "sample_id,type_code,group\n")
	for _, label := range ClassifySamples(ids) {
		fmt.Fprintf(w, "%s,%s,%s\n", label.SampleID, label.TypeCode, label.Group)
	}
	err = w.Flush()
	if err != nil {
		return 1
	}
	err = output.Close()
	if err != nil {
		return 1
	}
	return 0
}
