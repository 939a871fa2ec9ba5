// Copyright (C) The Biomark Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package biomark

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
)

// retryDelays is the capped backoff schedule between attempts. With
// maxAttempts=3 the last delay goes unused, but shrinking the attempt
// count must not shorten the earlier waits.
var retryDelays = []time.Duration{time.Second, 3 * time.Second, 10 * time.Second}

const maxAttempts = 3

// requestWithRetry issues an HTTP request up to maxAttempts times,
// sleeping per the backoff schedule between failures. Each attempt is
// independently cancellable via its own timeout; a non-2xx status
// counts as a failure. Returns the final response body.
func requestWithRetry(ctx context.Context, client *http.Client, method, url string, body []byte, header http.Header) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			delay := retryDelays[attempt-1]
			log.Warnf("request failed (attempt %d/%d), retrying in %s: %s", attempt, maxAttempts, delay, lastErr)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		buf, err := func() ([]byte, error) {
			var rdr io.Reader
			if body != nil {
				rdr = bytes.NewReader(body)
			}
			req, err := http.NewRequestWithContext(ctx, method, url, rdr)
			if err != nil {
				return nil, err
			}
			for k, vv := range header {
				req.Header[k] = vv
			}
			resp, err := client.Do(req)
			if err != nil {
				return nil, err
			}
			defer resp.Body.Close()
			if resp.StatusCode < 200 || resp.StatusCode > 299 {
				return nil, fmt.Errorf("%s %s: %s", method, url, resp.Status)
			}
			return io.ReadAll(resp.Body)
		}()
		if err == nil {
			return buf, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("%d attempts failed: %w", maxAttempts, lastErr)
}
