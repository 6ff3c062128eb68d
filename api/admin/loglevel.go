// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package admin

import (
	"log/slog"
	"net/http"

	"github.com/ethereum/go-ethereum/log"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
)

type LogLevelRequest struct {
	Level string `json:"level"`
}

type LogLevelResponse struct {
	CurrentLevel string `json:"currentLevel"`
}

var levels = map[string]slog.Level{
	"trace": log.LevelTrace,
	"debug": log.LevelDebug,
	"info":  log.LevelInfo,
	"warn":  log.LevelWarn,
	"error": log.LevelError,
	"crit":  log.LevelCrit,
}

type logLevel struct {
	level  *slog.LevelVar
	logger log.Logger
}

func newLogLevel(level *slog.LevelVar, logger log.Logger) *logLevel {
	if level == nil {
		level = new(slog.LevelVar)
	}
	return &logLevel{level, logger}
}

func (l *logLevel) mount(root *mux.Router, pathPrefix string) {
	sub := root.PathPrefix(pathPrefix).Subrouter()
	sub.Path("").
		Methods(http.MethodGet).
		Name("get-log-level").
		HandlerFunc(wrap(l.get))
	sub.Path("").
		Methods(http.MethodPost).
		Name("post-log-level").
		HandlerFunc(wrap(l.post))
}

func (l *logLevel) current() LogLevelResponse {
	return LogLevelResponse{CurrentLevel: log.LevelString(l.level.Level())}
}

func (l *logLevel) get(w http.ResponseWriter, _ *http.Request) error {
	return writeJSON(w, l.current())
}

func (l *logLevel) post(w http.ResponseWriter, r *http.Request) error {
	var req LogLevelRequest
	if err := parseJSON(r.Body, &req); err != nil {
		return badRequest(errors.WithMessage(err, "Invalid request body"))
	}
	level, ok := levels[req.Level]
	if !ok {
		return badRequest(errors.New("Invalid verbosity level"))
	}
	l.level.Set(level)
	l.logger.Info("log level updated", "level", req.Level)
	return writeJSON(w, l.current())
}
