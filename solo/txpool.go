// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package solo

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"

	"github.com/vechain/ethsim/chain"
)

type pooledTx struct {
	tx   *types.Transaction
	from common.Address
	// awaited is set when the sender waits for the tx to be mined
	awaited bool
}

// TxPool keeps the admitted txs not mined yet, in admission order.
type TxPool struct {
	chain chain.Chain

	txs    []pooledTx
	byHash map[common.Hash]int
	// next nonce of each sender having pooled txs
	nonces map[common.Address]uint64

	txFeed event.Feed
	scope  event.SubscriptionScope

	mu sync.Mutex
}

// NewTxPool creates an empty pool for txs on top of c.
func NewTxPool(c chain.Chain) *TxPool {
	return &TxPool{
		chain:  c,
		byHash: make(map[common.Hash]int),
		nonces: make(map[common.Address]uint64),
	}
}

func (p *TxPool) pendingNonce(addr common.Address) (uint64, error) {
	st, err := p.chain.StateAt(p.chain.Height())
	if err != nil {
		return 0, err
	}
	nonce, err := st.GetNonce(addr)
	if err != nil {
		return 0, err
	}
	if next, ok := p.nonces[addr]; ok && next > nonce {
		nonce = next
	}
	return nonce, nil
}

// PendingNonce returns the nonce the next tx of addr must carry, counting the pooled txs.
func (p *TxPool) PendingNonce(addr common.Address) (uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.pendingNonce(addr)
}

// Admit builds the tx of from given the nonce it must carry, and pools it if build succeeds.
// Admissions are serialized, so two txs never get the same nonce.
func (p *TxPool) Admit(from common.Address, awaited bool, build func(nonce uint64) (*types.Transaction, error)) (*types.Transaction, error) {
	tx, err := func() (*types.Transaction, error) {
		p.mu.Lock()
		defer p.mu.Unlock()

		nonce, err := p.pendingNonce(from)
		if err != nil {
			return nil, err
		}
		tx, err := build(nonce)
		if err != nil {
			return nil, err
		}
		p.byHash[tx.Hash()] = len(p.txs)
		p.txs = append(p.txs, pooledTx{tx: tx, from: from, awaited: awaited})
		p.nonces[from] = tx.Nonce() + 1
		return tx, nil
	}()
	if err != nil {
		return nil, err
	}
	p.txFeed.Send(tx)
	return tx, nil
}

// Get returns the pooled tx with the given hash.
func (p *TxPool) Get(hash common.Hash) *types.Transaction {
	p.mu.Lock()
	defer p.mu.Unlock()

	if i, ok := p.byHash[hash]; ok {
		return p.txs[i].tx
	}
	return nil
}

// Contains returns whether the tx is still pooled.
func (p *TxPool) Contains(hash common.Hash) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	_, ok := p.byHash[hash]
	return ok
}

// Len returns the count of pooled txs.
func (p *TxPool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.txs)
}

// Dump returns the pooled txs in admission order.
func (p *TxPool) Dump() []pooledTx {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]pooledTx(nil), p.txs...)
}

// Remove removes the given txs from the pool.
func (p *TxPool) Remove(hashes ...common.Hash) {
	if len(hashes) == 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	drop := make(map[common.Hash]bool, len(hashes))
	for _, h := range hashes {
		drop[h] = true
	}
	kept := p.txs[:0]
	for _, ptx := range p.txs {
		if !drop[ptx.tx.Hash()] {
			kept = append(kept, ptx)
		}
	}
	p.reset(kept)
}

// Reset replaces the pooled txs.
func (p *TxPool) Reset(txs []pooledTx) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.reset(append([]pooledTx(nil), txs...))
}

func (p *TxPool) reset(txs []pooledTx) {
	p.txs = txs
	p.byHash = make(map[common.Hash]int, len(txs))
	p.nonces = make(map[common.Address]uint64)
	for i, ptx := range txs {
		p.byHash[ptx.tx.Hash()] = i
		if next := ptx.tx.Nonce() + 1; next > p.nonces[ptx.from] {
			p.nonces[ptx.from] = next
		}
	}
}

// SubscribeTxs subscribes to the txs admitted into the pool.
func (p *TxPool) SubscribeTxs(ch chan<- *types.Transaction) event.Subscription {
	return p.scope.Track(p.txFeed.Subscribe(ch))
}

// Close ends all subscriptions.
func (p *TxPool) Close() {
	p.scope.Close()
}
