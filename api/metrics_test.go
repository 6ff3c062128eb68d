// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package api

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vechain/ethsim/metrics"
)

func TestRPCMethod(t *testing.T) {
	assert.Equal(t, "eth_call", rpcMethod([]byte(` {"jsonrpc":"2.0","id":1,"method":"eth_call"}`)))
	assert.Equal(t, "batch", rpcMethod([]byte(`[{"method":"eth_call"}]`)))
	assert.Equal(t, "unknown", rpcMethod([]byte(`{"id":1}`)))
	assert.Equal(t, "unknown", rpcMethod([]byte(`not json`)))
}

func TestMetricsMiddlewareKeepsBody(t *testing.T) {
	const body = `{"jsonrpc":"2.0","id":1,"method":"eth_blockNumber"}`
	var got string
	h := metricsMiddleware(metrics.NewNoop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		got = string(data)
		w.WriteHeader(http.StatusAccepted)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)))
	assert.Equal(t, http.StatusAccepted, rr.Code)
	assert.Equal(t, body, got)
}
