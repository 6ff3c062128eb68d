// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package filters keeps the polled filters of the eth namespace.
package filters

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/pkg/errors"

	"github.com/vechain/ethsim/chain"
	"github.com/vechain/ethsim/logdb"
	"github.com/vechain/ethsim/metrics"
)

// ErrFilterNotFound is returned for an unknown or expired filter id.
var ErrFilterNotFound = errors.New("filter not found")

// Kind of a filter.
type Kind int

const (
	BlocksFilter Kind = iota
	LogsFilter
	PendingTxsFilter
)

func (k Kind) String() string {
	switch k {
	case BlocksFilter:
		return "blocks"
	case LogsFilter:
		return "logs"
	default:
		return "pending_txs"
	}
}

// Criteria selects logs. A nil bound follows the chain head.
type Criteria struct {
	FromBlock *uint64
	ToBlock   *uint64
	Addresses []common.Address
	Topics    [][]common.Hash
}

// Filter resolves the criteria against the head.
func (c *Criteria) Filter(head uint64) *logdb.Filter {
	f := &logdb.Filter{
		FromBlock: head,
		ToBlock:   head,
		Addresses: c.Addresses,
		Topics:    c.Topics,
	}
	if c.FromBlock != nil {
		f.FromBlock = *c.FromBlock
	}
	if c.ToBlock != nil {
		f.ToBlock = *c.ToBlock
	}
	if f.ToBlock > head {
		f.ToBlock = head
	}
	return f
}

// TxSource feeds the txs admitted for mining.
type TxSource interface {
	SubscribeTxs(ch chan<- *types.Transaction) event.Subscription
}

type filter struct {
	kind     Kind
	criteria Criteria
	// next block to report
	next     uint64
	txs      []common.Hash
	lastPoll time.Time
}

// Options optional parameters for Manager.
type Options struct {
	// Timeout removes filters not polled for that long. Default 5 minutes.
	Timeout time.Duration
	// OnPoll runs before changes are read.
	OnPoll  func(ctx context.Context) error
	Logger  log.Logger
	Metrics metrics.Metrics
}

// Manager keeps the installed filters. Blocks and logs are read from the
// chain at poll time, pending txs are collected as they are admitted.
type Manager struct {
	chain   chain.Chain
	txs     TxSource
	options Options
	logger  log.Logger
	active  metrics.GaugeVecMeter

	filters map[rpc.ID]*filter
	mu      sync.Mutex
}

// New creates the manager, Run must be started for pending tx filters and expiry.
func New(c chain.Chain, txs TxSource, opts Options) *Manager {
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Minute
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Root()
	}
	return &Manager{
		chain:   c,
		txs:     txs,
		options: opts,
		logger:  logger.New("pkg", "filters"),
		active:  metrics.OrNoop(opts.Metrics).GetOrCreateGaugeVecMeter("filters_active", []string{"kind"}),
		filters: make(map[rpc.ID]*filter),
	}
}

// Run dispatches pending txs and removes expired filters until done is closed.
func (m *Manager) Run(done <-chan struct{}) {
	txCh := make(chan *types.Transaction, 64)
	sub := m.txs.SubscribeTxs(txCh)
	defer sub.Unsubscribe()

	ticker := time.NewTicker(m.options.Timeout / 5)
	defer ticker.Stop()

	for {
		select {
		case tx := <-txCh:
			m.mu.Lock()
			for _, f := range m.filters {
				if f.kind == PendingTxsFilter {
					f.txs = append(f.txs, tx.Hash())
				}
			}
			m.mu.Unlock()
		case <-ticker.C:
			m.expire(time.Now())
		case <-sub.Err():
			return
		case <-done:
			return
		}
	}
}

func (m *Manager) expire(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, f := range m.filters {
		if now.Sub(f.lastPoll) > m.options.Timeout {
			delete(m.filters, id)
			m.active.AddWithLabel(-1, map[string]string{"kind": f.kind.String()})
			m.logger.Debug("filter expired", "id", id, "kind", f.kind)
		}
	}
}

func (m *Manager) install(f *filter) rpc.ID {
	id := rpc.NewID()
	f.lastPoll = time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.filters[id] = f
	m.active.AddWithLabel(1, map[string]string{"kind": f.kind.String()})
	return id
}

// NewBlockFilter installs a filter reporting the hashes of blocks mined after now.
func (m *Manager) NewBlockFilter() rpc.ID {
	return m.install(&filter{kind: BlocksFilter, next: m.chain.Height() + 1})
}

// NewPendingTxFilter installs a filter reporting the hashes of txs admitted after now.
func (m *Manager) NewPendingTxFilter() rpc.ID {
	return m.install(&filter{kind: PendingTxsFilter})
}

// NewLogFilter installs a log filter. Changes start at FromBlock, or the next block if unset.
func (m *Manager) NewLogFilter(crit Criteria) (rpc.ID, error) {
	if crit.FromBlock != nil && crit.ToBlock != nil && *crit.FromBlock > *crit.ToBlock {
		return "", errors.New("invalid block range")
	}
	next := m.chain.Height() + 1
	if crit.FromBlock != nil {
		next = *crit.FromBlock
	}
	return m.install(&filter{kind: LogsFilter, criteria: crit, next: next}), nil
}

// Uninstall removes a filter, false if unknown.
func (m *Manager) Uninstall(id rpc.ID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	f, ok := m.filters[id]
	if ok {
		delete(m.filters, id)
		m.active.AddWithLabel(-1, map[string]string{"kind": f.kind.String()})
	}
	return ok
}

// take returns a copy of the filter and marks it polled. With drain, pending txs are handed over.
func (m *Manager) take(id rpc.ID, drain bool) (filter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	f, ok := m.filters[id]
	if !ok {
		return filter{}, ErrFilterNotFound
	}
	f.lastPoll = time.Now()
	cp := *f
	if drain {
		f.txs = nil
	}
	return cp, nil
}

func (m *Manager) advance(id rpc.ID, next uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if f, ok := m.filters[id]; ok {
		f.next = next
	}
}

// Changes returns what happened since the last poll: block hashes, tx hashes or logs.
func (m *Manager) Changes(ctx context.Context, id rpc.ID) (any, error) {
	if m.options.OnPoll != nil {
		if err := m.options.OnPoll(ctx); err != nil {
			return nil, err
		}
	}
	f, err := m.take(id, true)
	if err != nil {
		return nil, err
	}

	head := m.chain.Height()
	next := f.next
	// a revert moved the head back
	if next > head+1 {
		next = head + 1
	}

	switch f.kind {
	case PendingTxsFilter:
		if f.txs == nil {
			return []common.Hash{}, nil
		}
		return f.txs, nil
	case BlocksFilter:
		hashes := []common.Hash{}
		for num := next; num <= head; num++ {
			hashes = append(hashes, m.chain.GetHash(num))
		}
		m.advance(id, head+1)
		return hashes, nil
	default:
		lf := f.criteria.Filter(head)
		lf.FromBlock = next
		if lf.FromBlock > lf.ToBlock {
			return []*types.Log{}, nil
		}
		logs, err := m.chain.FilterLogs(ctx, lf)
		if err != nil {
			return nil, err
		}
		m.advance(id, lf.ToBlock+1)
		return logs, nil
	}
}

// Logs returns all logs matching a log filter, regardless of polls.
func (m *Manager) Logs(ctx context.Context, id rpc.ID) ([]*types.Log, error) {
	f, err := m.take(id, false)
	if err != nil {
		return nil, err
	}
	if f.kind != LogsFilter {
		return nil, ErrFilterNotFound
	}
	lf := f.criteria.Filter(m.chain.Height())
	if lf.FromBlock > lf.ToBlock {
		return []*types.Log{}, nil
	}
	return m.chain.FilterLogs(ctx, lf)
}
