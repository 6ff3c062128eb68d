// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package admin

import (
	"net/http"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/gorilla/mux"

	"github.com/vechain/ethsim/solo"
)

// delayBuffer is the lateness tolerated on top of the block interval.
const delayBuffer = 5 * time.Second

type HeadStatus struct {
	Number    uint64      `json:"number"`
	Hash      common.Hash `json:"hash"`
	Timestamp uint64      `json:"timestamp"`
	// Received is when the block was added locally.
	Received *time.Time `json:"received"`
}

type HealthStatus struct {
	Healthy    bool       `json:"healthy"`
	Head       HeadStatus `json:"head"`
	Mining     bool       `json:"mining"`
	Engine     string     `json:"engine"`
	PendingTxs int        `json:"pendingTxs"`
	TimeOffset int64      `json:"timeOffset"`
}

type health struct {
	solo *solo.Solo

	lock     sync.RWMutex
	received time.Time
}

func newHealth(s *solo.Solo) *health {
	return &health{solo: s, received: time.Now()}
}

// run records the arrival of new blocks until done is closed.
func (h *health) run(done <-chan struct{}) {
	ch := make(chan *types.Block, 16)
	sub := h.solo.Chain().SubscribeNewBlock(ch)
	defer sub.Unsubscribe()
	for {
		select {
		case <-ch:
			h.lock.Lock()
			h.received = time.Now()
			h.lock.Unlock()
		case <-sub.Err():
			return
		case <-done:
			return
		}
	}
}

// status is unhealthy when interval mining is on and no block came for
// longer than the interval.
func (h *health) status() *HealthStatus {
	h.lock.RLock()
	received := h.received
	h.lock.RUnlock()

	head := h.solo.Chain().Head()
	mining := h.solo.IsMining()
	healthy := true
	if interval := h.solo.Options().BlockInterval; interval > 0 && mining {
		healthy = time.Since(received) <= interval+delayBuffer
	}
	return &HealthStatus{
		Healthy: healthy,
		Head: HeadStatus{
			Number:    head.NumberU64(),
			Hash:      head.Hash(),
			Timestamp: head.Time(),
			Received:  &received,
		},
		Mining:     mining,
		Engine:     h.solo.Status().String(),
		PendingTxs: h.solo.Pool().Len(),
		TimeOffset: h.solo.TimeOffset(),
	}
}

func (h *health) mount(root *mux.Router, pathPrefix string) {
	root.Path(pathPrefix).
		Methods(http.MethodGet).
		Name("get-health").
		HandlerFunc(wrap(h.get))
}

func (h *health) get(w http.ResponseWriter, _ *http.Request) error {
	st := h.status()
	if !st.Healthy {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	return writeJSON(w, st)
}
