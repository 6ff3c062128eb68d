// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/vechain/ethsim/metrics"
)

type codeRecorder struct {
	http.ResponseWriter
	code int
}

func (c *codeRecorder) WriteHeader(code int) {
	c.code = code
	c.ResponseWriter.WriteHeader(code)
}

// rpcMethod names the json-rpc method of a request body. Batches are labelled
// "batch" and anything undecodable "unknown".
func rpcMethod(body []byte) string {
	body = bytes.TrimSpace(body)
	if len(body) > 0 && body[0] == '[' {
		return "batch"
	}
	var msg struct {
		Method string `json:"method"`
	}
	if err := json.Unmarshal(body, &msg); err != nil || msg.Method == "" {
		return "unknown"
	}
	return msg.Method
}

// metricsMiddleware records the count and duration of http rpc calls per method and status.
func metricsMiddleware(m metrics.Metrics) func(http.Handler) http.Handler {
	var (
		calls    = m.GetOrCreateCountVecMeter("api_request_count", []string{"code", "method"})
		duration = m.GetOrCreateHistogramVecMeter("api_duration_ms", []string{"code", "method"}, metrics.BucketHTTPReqs)
	)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			method := "unknown"
			if r.Body != nil && r.Method == http.MethodPost {
				body, err := io.ReadAll(r.Body)
				if err != nil {
					http.Error(w, err.Error(), http.StatusBadRequest)
					return
				}
				r.Body = io.NopCloser(bytes.NewReader(body))
				method = rpcMethod(body)
			}

			start := time.Now()
			rec := &codeRecorder{ResponseWriter: w, code: http.StatusOK}
			next.ServeHTTP(rec, r)

			labels := map[string]string{"code": strconv.Itoa(rec.code), "method": method}
			calls.AddWithLabel(1, labels)
			duration.ObserveWithLabels(time.Since(start).Milliseconds(), labels)
		})
	}
}
