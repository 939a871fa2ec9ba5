// Copyright (C) The Biomark Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package biomark

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/check.v1"
)

type symbolsSuite struct{}

var _ = check.Suite(&symbolsSuite{})

// noRetryDelays removes the backoff sleeps for the duration of a test.
func noRetryDelays() func() {
	saved := retryDelays
	retryDelays = []time.Duration{0, 0, 0}
	return func() { retryDelays = saved }
}

func (s *symbolsSuite) TestStripVersion(c *check.C) {
	c.Check(StripVersion("ENSG00000141510.18"), check.Equals, "ENSG00000141510")
	c.Check(StripVersion("ENSG00000141510"), check.Equals, "ENSG00000141510")
	c.Check(StripVersion(""), check.Equals, "")
}

func (s *symbolsSuite) TestCacheRoundTrip(c *check.C) {
	path := filepath.Join(c.MkDir(), "cache.tsv")

	cache, err := OpenSymbolCache(path)
	c.Assert(err, check.IsNil)
	_, ok := cache.Lookup("ENSG00000141510")
	c.Check(ok, check.Equals, false)

	cache.Add("ENSG00000141510.18", "TP53")
	cache.Add("ENSG00000133703", "KRAS")
	c.Assert(cache.Flush(), check.IsNil)

	reloaded, err := OpenSymbolCache(path)
	c.Assert(err, check.IsNil)
	symbol, ok := reloaded.Lookup("ENSG00000141510.5")
	c.Check(ok, check.Equals, true)
	c.Check(symbol, check.Equals, "TP53")
	symbol, _ = reloaded.Lookup("ENSG00000133703")
	c.Check(symbol, check.Equals, "KRAS")

	// Flush without changes must not rewrite the file.
	info, err := os.Stat(path)
	c.Assert(err, check.IsNil)
	c.Assert(reloaded.Flush(), check.IsNil)
	info2, err := os.Stat(path)
	c.Assert(err, check.IsNil)
	c.Check(info2.ModTime(), check.Equals, info.ModTime())
}

func (s *symbolsSuite) TestMapSymbols(c *check.C) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		c.Check(req.Method, check.Equals, "POST")
		c.Check(req.FormValue("scopes"), check.Equals, "ensembl.gene")
		fmt.Fprint(w, `[{"query":"ENSG00000141510","symbol":"TP53"},{"query":"ENSG00000999999","notfound":true}]`)
	}))
	defer srv.Close()

	cachePath := filepath.Join(c.MkDir(), "cache.tsv")
	cache, err := OpenSymbolCache(cachePath)
	c.Assert(err, check.IsNil)
	client := newSymbolClient(srv.URL)

	mapping := MapSymbols(context.Background(),
		[]string{"ENSG00000141510.18", "ENSG00000999999"}, cache, client)
	c.Check(mapping["ENSG00000141510"], check.Equals, "TP53")
	// Entries absent from the mapping are "", never an error.
	c.Check(mapping["ENSG00000999999"], check.Equals, "")

	// The fetched symbol must have been persisted.
	reloaded, err := OpenSymbolCache(cachePath)
	c.Assert(err, check.IsNil)
	symbol, ok := reloaded.Lookup("ENSG00000141510")
	c.Check(ok, check.Equals, true)
	c.Check(symbol, check.Equals, "TP53")
}

func (s *symbolsSuite) TestMapSymbolsCacheOnly(c *check.C) {
	cache, err := OpenSymbolCache("")
	c.Assert(err, check.IsNil)
	cache.Add("ENSG00000141510", "TP53")
	mapping := MapSymbols(context.Background(), []string{"ENSG00000141510.18", "ENSG00000133703"}, cache, nil)
	c.Check(mapping["ENSG00000141510"], check.Equals, "TP53")
	c.Check(mapping["ENSG00000133703"], check.Equals, "")
}

func (s *symbolsSuite) TestMapSymbolsAPIFailure(c *check.C) {
	defer noRetryDelays()()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	cache, err := OpenSymbolCache("")
	c.Assert(err, check.IsNil)
	cache.Add("ENSG00000141510", "TP53")
	// Lookup failures degrade to missing symbols.
	mapping := MapSymbols(context.Background(), []string{"ENSG00000141510", "ENSG00000133703"}, cache, newSymbolClient(srv.URL))
	c.Check(mapping["ENSG00000141510"], check.Equals, "TP53")
	c.Check(mapping["ENSG00000133703"], check.Equals, "")
}

func (s *symbolsSuite) TestFetchBatches(c *check.C) {
	var requests int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		requests++
		fmt.Fprint(w, `[]`)
	}))
	defer srv.Close()

	client := newSymbolClient(srv.URL)
	client.BatchSize = 10
	ids := make([]string, 25)
	for i := range ids {
		ids[i] = fmt.Sprintf("ENSG%011d", i)
	}
	_, err := client.Fetch(context.Background(), ids)
	c.Assert(err, check.IsNil)
	c.Check(requests, check.Equals, 3)
}
