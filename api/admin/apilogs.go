// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package admin

import (
	"net/http"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/log"
	"github.com/gorilla/mux"
)

type LogStatus struct {
	Enabled bool `json:"enabled"`
}

type apiLogs struct {
	enabled *atomic.Bool
	logger  log.Logger
}

func newAPILogs(enabled *atomic.Bool, logger log.Logger) *apiLogs {
	if enabled == nil {
		enabled = new(atomic.Bool)
	}
	return &apiLogs{enabled, logger}
}

func (a *apiLogs) mount(root *mux.Router, pathPrefix string) {
	sub := root.PathPrefix(pathPrefix).Subrouter()
	sub.Path("").
		Methods(http.MethodGet).
		Name("get-api-logs-enabled").
		HandlerFunc(wrap(a.get))
	sub.Path("").
		Methods(http.MethodPost).
		Name("post-api-logs-enabled").
		HandlerFunc(wrap(a.post))
}

func (a *apiLogs) get(w http.ResponseWriter, _ *http.Request) error {
	return writeJSON(w, LogStatus{Enabled: a.enabled.Load()})
}

func (a *apiLogs) post(w http.ResponseWriter, r *http.Request) error {
	var req LogStatus
	if err := parseJSON(r.Body, &req); err != nil {
		return badRequest(err)
	}
	a.enabled.Store(req.Enabled)
	a.logger.Info("api logs updated", "enabled", req.Enabled)
	return writeJSON(w, LogStatus{Enabled: req.Enabled})
}
