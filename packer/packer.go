// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package packer executes transactions into a new block on top of the chain head.
package packer

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/params"
	"github.com/pkg/errors"

	"github.com/vechain/ethsim/chain"
	"github.com/vechain/ethsim/metrics"
	"github.com/vechain/ethsim/runtime"
)

// Packer to pack txs and build new blocks.
type Packer struct {
	chain       chain.Chain
	chainConfig *params.ChainConfig
	coinbase    common.Address
	gasLimit    uint64
	txTypes     metrics.CountVecMeter
	gasUsed     metrics.HistogramMeter
}

// New create a new Packer instance.
func New(c chain.Chain, chainConfig *params.ChainConfig, coinbase common.Address, gasLimit uint64, m metrics.Metrics) *Packer {
	m = metrics.OrNoop(m)
	return &Packer{
		chain:       c,
		chainConfig: chainConfig,
		coinbase:    coinbase,
		gasLimit:    gasLimit,
		txTypes:     m.GetOrCreateCountVecMeter("packer_transaction_type", []string{"type"}),
		gasUsed:     m.GetOrCreateHistogramMeter("packer_block_gas_used", []int64{21000, 100000, 500000, 1000000, 3000000, 6000000, 10000000, 30000000}),
	}
}

// GasLimit returns the gas limit of packed blocks.
func (p *Packer) GasLimit() uint64 { return p.gasLimit }

// Coinbase returns the coinbase of packed blocks.
func (p *Packer) Coinbase() common.Address { return p.coinbase }

// Context returns the block context of the block after parent, at the given time.
func (p *Packer) Context(parentNum, timestamp uint64) *runtime.Context {
	return &runtime.Context{
		Coinbase: p.coinbase,
		Number:   parentNum + 1,
		Time:     timestamp,
		GasLimit: p.gasLimit,
		GetHash:  p.chain.GetHash,
	}
}

// Schedule starts a flow to pack the block after the chain head.
// A timestamp below the head's is raised to it.
func (p *Packer) Schedule(timestamp uint64) (*Flow, error) {
	parent := p.chain.Head()
	if timestamp < parent.Time() {
		timestamp = parent.Time()
	}
	st, err := p.chain.StateAt(parent.NumberU64())
	if err != nil {
		return nil, errors.Wrap(err, "state")
	}
	return newFlow(p, parent, runtime.New(p.chainConfig, st, p.Context(parent.NumberU64(), timestamp))), nil
}
