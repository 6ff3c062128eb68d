// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vechain/ethsim/chain"
	"github.com/vechain/ethsim/genesis"
	"github.com/vechain/ethsim/logdb"
	"github.com/vechain/ethsim/muxdb"
	"github.com/vechain/ethsim/runtime"
	"github.com/vechain/ethsim/solo"
)

type testEnv struct {
	handler http.Handler
	level   *slog.LevelVar
	apiLogs *atomic.Bool
	solo    *solo.Solo
}

func newTestEnv(t *testing.T, interval time.Duration) *testEnv {
	logger := log.NewLogger(log.DiscardHandler())
	logDB, err := logdb.NewMem()
	require.NoError(t, err)
	b := new(genesis.Builder).Timestamp(uint64(time.Now().Unix())).GasLimit(10_000_000)
	c, err := genesis.Open(muxdb.NewMem(), logDB, b, chain.Options{Logger: logger})
	require.NoError(t, err)
	s := solo.New(c, solo.Options{
		ChainConfig:   runtime.NewChainConfig(1337),
		GasLimit:      10_000_000,
		BlockInterval: interval,
		Logger:        logger,
	})

	level := new(slog.LevelVar)
	level.Set(log.LevelInfo)
	apiLogs := new(atomic.Bool)
	handler, stop := New(Options{LogLevel: level, APILogs: apiLogs, Solo: s, Logger: logger})
	t.Cleanup(func() {
		stop()
		s.Close()
	})
	return &testEnv{handler: handler, level: level, apiLogs: apiLogs, solo: s}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	return rr
}

func TestLogLevel(t *testing.T) {
	env := newTestEnv(t, 0)

	tests := []struct {
		name           string
		method         string
		body           any
		expectedStatus int
		expectedLevel  string
		expectedError  string
	}{
		{"get current level", http.MethodGet, nil, http.StatusOK, "info", ""},
		{"set debug", http.MethodPost, map[string]string{"level": "debug"}, http.StatusOK, "debug", ""},
		{"set trace", http.MethodPost, map[string]string{"level": "trace"}, http.StatusOK, "trace", ""},
		{"invalid level", http.MethodPost, map[string]string{"level": "loud"}, http.StatusBadRequest, "", "Invalid verbosity level"},
		{"unknown field", http.MethodPost, map[string]string{"lvl": "debug"}, http.StatusBadRequest, "", "Invalid request body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(t, tt.method, "/admin/loglevel", tt.body)
			assert.Equal(t, tt.expectedStatus, rr.Code)
			if tt.expectedError != "" {
				assert.Contains(t, rr.Body.String(), tt.expectedError)
				return
			}
			var resp LogLevelResponse
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
			assert.Equal(t, tt.expectedLevel, resp.CurrentLevel)
		})
	}
	assert.Equal(t, log.LevelTrace, env.level.Level())
}

func TestAPILogs(t *testing.T) {
	env := newTestEnv(t, 0)

	rr := env.do(t, http.MethodGet, "/admin/apilogs", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"enabled":false}`, rr.Body.String())

	rr = env.do(t, http.MethodPost, "/admin/apilogs", LogStatus{Enabled: true})
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, env.apiLogs.Load())

	rr = env.do(t, http.MethodPost, "/admin/apilogs", "yes")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.True(t, env.apiLogs.Load())
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, 0)

	rr := env.do(t, http.MethodGet, "/admin/health", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	var st HealthStatus
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &st))
	assert.True(t, st.Healthy)
	assert.True(t, st.Mining)
	assert.Equal(t, "idle", st.Engine)
	assert.Equal(t, uint64(0), st.Head.Number)

	_, err := env.solo.Mine(context.Background(), nil)
	require.NoError(t, err)
	env.solo.Stop()
	env.solo.IncreaseTime(60)

	rr = env.do(t, http.MethodGet, "/admin/health", nil)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &st))
	assert.Equal(t, uint64(1), st.Head.Number)
	assert.False(t, st.Mining)
	assert.Equal(t, int64(60), st.TimeOffset)

	rr = env.do(t, http.MethodPut, "/admin/health", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestHealthIntervalMining(t *testing.T) {
	env := newTestEnv(t, time.Hour)

	h := newHealth(env.solo)
	assert.True(t, h.status().Healthy)

	h.received = time.Now().Add(-2 * time.Hour)
	assert.False(t, h.status().Healthy)

	// a stopped miner is not expected to produce blocks
	env.solo.Stop()
	assert.True(t, h.status().Healthy)

	env.solo.Start(context.Background())
	done := make(chan struct{})
	defer close(done)
	go h.run(done)
	require.Eventually(t, func() bool {
		// the subscription is in place once a mined block is observed
		if _, err := env.solo.Mine(context.Background(), nil); err != nil {
			return false
		}
		return h.status().Healthy
	}, time.Second, 10*time.Millisecond)

	rr := env.do(t, http.MethodGet, "/admin/health", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, strings.HasPrefix(rr.Header().Get("Content-Type"), "application/json"))
}
