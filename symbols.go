// Copyright (C) The Biomark Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package biomark

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

const defaultSymbolAPIURL = "https://mygene.info/v3/query"

// StripVersion removes the version suffix from an Ensembl identifier
// (ENSG00000141510.18 -> ENSG00000141510).
func StripVersion(id string) string {
	if i := strings.IndexByte(id, '.'); i >= 0 {
		return id[:i]
	}
	return id
}

// SymbolCache is an explicit identifier->symbol cache persisted as a
// two-column TSV. It is loaded once on open and flushed only when new
// mappings have been added.
type SymbolCache struct {
	path    string
	mapping map[string]string
	dirty   bool
}

// OpenSymbolCache loads the cache file at path. A missing file yields
// an empty cache; path=="" yields a cache that never persists.
func OpenSymbolCache(path string) (*SymbolCache, error) {
	cache := &SymbolCache{path: path, mapping: map[string]string{}}
	if path == "" {
		return cache, nil
	}
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return cache, nil
	} else if err != nil {
		return nil, err
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Split(scanner.Text(), "\t")
		if len(fields) < 2 || fields[0] == "ensembl_id" {
			continue
		}
		if fields[0] != "" && fields[1] != "" {
			cache.mapping[StripVersion(fields[0])] = fields[1]
		}
	}
	return cache, scanner.Err()
}

func (cache *SymbolCache) Lookup(id string) (string, bool) {
	symbol, ok := cache.mapping[StripVersion(id)]
	return symbol, ok
}

func (cache *SymbolCache) Add(id, symbol string) {
	id = StripVersion(id)
	if symbol == "" || cache.mapping[id] == symbol {
		return
	}
	cache.mapping[id] = symbol
	cache.dirty = true
}

// Flush writes the cache back to its file if any mappings were added.
func (cache *SymbolCache) Flush() error {
	if !cache.dirty || cache.path == "" {
		return nil
	}
	f, err := os.Create(cache.path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	fmt.Fprint(w, "ensembl_id\tgene_symbol\n")
	ids := make([]string, 0, len(cache.mapping))
	for id := range cache.mapping {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		fmt.Fprintf(w, "%s\t%s\n", id, cache.mapping[id])
	}
	if err := w.Flush(); err != nil {
		return err
	}
	cache.dirty = false
	return f.Close()
}

// symbolClient queries the mygene.info batch endpoint for gene
// symbols.
type symbolClient struct {
	APIURL    string
	BatchSize int
	Client    *http.Client
}

func newSymbolClient(apiURL string) *symbolClient {
	if apiURL == "" {
		apiURL = defaultSymbolAPIURL
	}
	return &symbolClient{
		APIURL:    apiURL,
		BatchSize: 1000,
		Client:    &http.Client{Timeout: time.Minute},
	}
}

// Fetch maps version-stripped identifiers to symbols. Identifiers the
// service does not know are simply absent from the result.
func (sc *symbolClient) Fetch(ctx context.Context, ids []string) (map[string]string, error) {
	mapping := map[string]string{}
	for start := 0; start < len(ids); start += sc.BatchSize {
		end := start + sc.BatchSize
		if end > len(ids) {
			end = len(ids)
		}
		form := url.Values{
			"q":       {strings.Join(ids[start:end], ",")},
			"scopes":  {"ensembl.gene"},
			"fields":  {"symbol"},
			"species": {"human"},
		}
		header := http.Header{"Content-Type": {"application/x-www-form-urlencoded"}}
		buf, err := requestWithRetry(ctx, sc.Client, "POST", sc.APIURL, []byte(form.Encode()), header)
		if err != nil {
			return mapping, err
		}
		var hits []struct {
			Query  string `json:"query"`
			Symbol string `json:"symbol"`
		}
		if err := json.Unmarshal(buf, &hits); err != nil {
			return mapping, fmt.Errorf("symbol lookup response: %w", err)
		}
		for _, hit := range hits {
			if hit.Symbol != "" {
				mapping[hit.Query] = hit.Symbol
			}
		}
	}
	return mapping, nil
}

// MapSymbols resolves display symbols for the given identifiers, using
// the cache first and the API (when client is non-nil) for the
// remainder. The result maps version-stripped identifiers to symbols;
// identifiers with no known symbol are absent. Lookup failures degrade
// to missing symbols, never an error.
func MapSymbols(ctx context.Context, ids []string, cache *SymbolCache, client *symbolClient) map[string]string {
	mapping := map[string]string{}
	var missing []string
	seen := map[string]bool{}
	for _, id := range ids {
		stripped := StripVersion(id)
		if seen[stripped] {
			continue
		}
		seen[stripped] = true
		if symbol, ok := cache.Lookup(stripped); ok {
			mapping[stripped] = symbol
		} else {
			missing = append(missing, stripped)
		}
	}
	if len(missing) == 0 || client == nil {
		return mapping
	}
	log.Infof("fetching symbols for %d of %d identifiers", len(missing), len(seen))
	fetched, err := client.Fetch(ctx, missing)
	if err != nil {
		log.Warnf("symbol lookup failed, continuing without: %s", err)
	}
	for id, symbol := range fetched {
		mapping[id] = symbol
		cache.Add(id, symbol)
	}
	if err := cache.Flush(); err != nil {
		log.Warnf("symbol cache not saved: %s", err)
	}
	return mapping
}
