// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package api serves the JSON-RPC interface of the simulator over http and websocket.
package api

import (
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/vechain/ethsim/accounts"
	"github.com/vechain/ethsim/api/middleware"
	"github.com/vechain/ethsim/filters"
	"github.com/vechain/ethsim/metrics"
	"github.com/vechain/ethsim/solo"
)

// Options of the rpc services and their transport.
type Options struct {
	ChainID       uint64
	NetworkID     uint64
	ClientVersion string
	// VMErrorsOnRPC reports VM failures of sent txs and calls as rpc errors.
	VMErrorsOnRPC bool
	// LogsLimit caps the logs of one eth_getLogs, zero for no cap.
	LogsLimit uint64

	AllowedOrigins       string
	// EnableReqLogger switches request logging at runtime, nil for off.
	EnableReqLogger      *atomic.Bool
	SlowQueriesThreshold time.Duration
	Log5xxErrors         bool

	Logger  log.Logger
	Metrics metrics.Metrics
}

// NewServer creates the rpc server with the eth, net, evm, miner and web3 namespaces.
func NewServer(s *solo.Solo, accs *accounts.Manager, fm *filters.Manager, opts Options) (*rpc.Server, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.Root()
	}
	b := &backend{
		solo:     s,
		chain:    s.Chain(),
		accounts: accs,
		filters:  fm,
		options:  opts,
		logger:   logger.New("pkg", "api"),
	}

	srv := rpc.NewServer()
	services := []struct {
		namespace string
		receiver  any
	}{
		{"eth", &EthAPI{b}},
		{"net", &NetAPI{b}},
		{"evm", &EVMAPI{b}},
		{"miner", &MinerAPI{b}},
		{"web3", &Web3API{b}},
	}
	for _, svc := range services {
		if err := srv.RegisterName(svc.namespace, svc.receiver); err != nil {
			srv.Stop()
			return nil, errors.Wrapf(err, "register %s", svc.namespace)
		}
	}
	return srv, nil
}

func parseOrigins(s string) []string {
	origins := strings.Split(strings.TrimSpace(s), ",")
	for i, o := range origins {
		origins[i] = strings.ToLower(strings.TrimSpace(o))
	}
	return origins
}

// New returns the handler serving rpc over http, and over websocket on upgrade
// requests of the same path, with the func stopping the rpc server.
func New(s *solo.Solo, accs *accounts.Manager, fm *filters.Manager, opts Options) (http.Handler, func(), error) {
	srv, err := NewServer(s, accs, fm, opts)
	if err != nil {
		return nil, nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Root()
	}
	logger = logger.New("pkg", "api")
	m := metrics.OrNoop(opts.Metrics)
	origins := parseOrigins(opts.AllowedOrigins)

	wsConns := m.GetOrCreateGaugeMeter("api_ws_connections")
	ws := srv.WebsocketHandler(origins)

	enabled := opts.EnableReqLogger
	if enabled == nil {
		enabled = &atomic.Bool{}
	}
	var rpcHTTP http.Handler = handlers.CompressHandler(srv)
	rpcHTTP = metricsMiddleware(m)(rpcHTTP)
	rpcHTTP = middleware.RequestLoggerMiddleware(logger, enabled, opts.SlowQueriesThreshold, opts.Log5xxErrors)(rpcHTTP)

	router := mux.NewRouter()
	router.PathPrefix("/").
		MatcherFunc(func(r *http.Request, _ *mux.RouteMatch) bool { return websocket.IsWebSocketUpgrade(r) }).
		HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// served until the connection closes
			wsConns.Add(1)
			defer wsConns.Add(-1)
			ws.ServeHTTP(w, r)
		})
	router.PathPrefix("/").Handler(rpcHTTP)

	handler := handlers.CORS(
		handlers.AllowedOrigins(origins),
		handlers.AllowedHeaders([]string{"content-type"}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
	)(router)
	return handler, srv.Stop, nil
}
