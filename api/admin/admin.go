// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package admin serves the operator endpoints: log level, API request logging and health.
package admin

import (
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/log"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/vechain/ethsim/solo"
)

type Options struct {
	LogLevel *slog.LevelVar
	// APILogs switches the request logger of the rpc handler.
	APILogs *atomic.Bool
	Solo    *solo.Solo
	Logger  log.Logger
}

// New returns the admin handler under /admin, with the func stopping the health tracker.
func New(opts Options) (http.Handler, func()) {
	logger := opts.Logger
	if logger == nil {
		logger = log.Root()
	}
	logger = logger.New("pkg", "admin")

	router := mux.NewRouter()
	sub := router.PathPrefix("/admin").Subrouter()

	newLogLevel(opts.LogLevel, logger).mount(sub, "/loglevel")
	newAPILogs(opts.APILogs, logger).mount(sub, "/apilogs")

	h := newHealth(opts.Solo)
	h.mount(sub, "/health")
	done := make(chan struct{})
	go h.run(done)

	return handlers.CompressHandler(router), func() { close(done) }
}
