// Copyright (C) The Biomark Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package biomark

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/klauspost/pgzip"
)

// ExpressionMatrix is a genes x samples matrix of expression values.
// Values are row-major per gene; NaN marks a missing measurement.
type ExpressionMatrix struct {
	Genes   []string
	Samples []string
	Values  [][]float64
}

// OpenMatrix opens a counts file, decompressing with pgzip if the
// filename ends in .gz. The caller must close the returned reader.
func OpenMatrix(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("counts file not found: %s", path)
		}
		return nil, err
	}
	if !strings.HasSuffix(path, ".gz") {
		return f, nil
	}
	gz, err := pgzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &matrixReadCloser{Reader: gz, closers: []io.Closer{gz, f}}, nil
}

type matrixReadCloser struct {
	io.Reader
	closers []io.Closer
}

func (mrc *matrixReadCloser) Close() error {
	var err error
	for _, c := range mrc.closers {
		if e := c.Close(); err == nil {
			err = e
		}
	}
	return err
}

// ReadMatrix parses a tab-separated counts table: header row of sample
// identifiers, first column gene identifiers. Non-numeric cells are
// coerced to NaN, not rejected.
func ReadMatrix(rdr io.Reader) (*ExpressionMatrix, error) {
	scanner := bufio.NewScanner(rdr)
	scanner.Buffer(make([]byte, 1<<20), 1<<26)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("empty counts table")
	}
	header := strings.Split(strings.TrimRight(scanner.Text(), "\r\n"), "\t")
	if len(header) < 2 {
		return nil, fmt.Errorf("counts table header has no sample columns")
	}
	m := &ExpressionMatrix{Samples: header[1:]}
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r\n")
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		row := make([]float64, len(m.Samples))
		for j := range row {
			row[j] = math.NaN()
			if j+1 < len(fields) {
				if v, err := strconv.ParseFloat(strings.TrimSpace(fields[j+1]), 64); err == nil {
					row[j] = v
				}
			}
		}
		m.Genes = append(m.Genes, fields[0])
		m.Values = append(m.Values, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return m, nil
}

// LoadMatrix reads a counts file from disk.
func LoadMatrix(path string) (*ExpressionMatrix, error) {
	rdr, err := OpenMatrix(path)
	if err != nil {
		return nil, err
	}
	defer rdr.Close()
	m, err := ReadMatrix(rdr)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}
