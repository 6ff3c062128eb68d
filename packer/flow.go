// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package packer

import (
	"strconv"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"

	"github.com/vechain/ethsim/block"
	"github.com/vechain/ethsim/runtime"
)

// Flow the flow of packing a new block.
type Flow struct {
	packer   *Packer
	parent   *types.Block
	runtime  *runtime.Runtime
	gasUsed  uint64
	builder  block.Builder
	receipts types.Receipts
	failures runtime.RuntimeError
}

func newFlow(packer *Packer, parent *types.Block, rt *runtime.Runtime) *Flow {
	return &Flow{
		packer:  packer,
		parent:  parent,
		runtime: rt,
	}
}

// Parent returns the parent block.
func (f *Flow) Parent() *types.Block {
	return f.parent
}

// When the timestamp of the new block.
func (f *Flow) When() uint64 {
	return f.runtime.Context().Time
}

// Number the number of the new block.
func (f *Flow) Number() uint64 {
	return f.runtime.Context().Number
}

// Len returns the count of adopted txs.
func (f *Flow) Len() int {
	return len(f.receipts)
}

// Failures returns the VM failures of adopted txs, nil if all succeeded.
func (f *Flow) Failures() *runtime.RuntimeError {
	if f.failures.Len() == 0 {
		return nil
	}
	return &f.failures
}

// Adopt try to execute the given transaction.
// If the tx is valid and can be executed on current state (regardless of VM error),
// it will be adopted by the new block.
func (f *Flow) Adopt(tx *types.Transaction) (*runtime.Output, error) {
	if f.gasUsed+tx.Gas() > f.runtime.Context().GasLimit {
		return nil, errGasLimitReached
	}

	output, err := f.runtime.ExecuteTransaction(tx)
	if err != nil {
		// the runtime left the state untouched
		return nil, &badTxError{err}
	}
	f.gasUsed += output.GasUsed
	output.Receipt.CumulativeGasUsed = f.gasUsed
	f.receipts = append(f.receipts, output.Receipt)
	f.builder.Transaction(tx, output.Receipt)
	if output.Failure != nil {
		f.failures.Add(output.Failure)
	}
	f.packer.txTypes.AddWithLabel(1, map[string]string{"type": strconv.Itoa(int(tx.Type()))})
	return output, nil
}

// Pack commits the state, then builds and appends the new block.
// On error nothing of the block is left in the chain.
func (f *Flow) Pack() (*types.Block, types.Receipts, error) {
	var (
		c   = f.packer.chain
		num = f.Number()
	)
	stateRoot, err := c.CommitState(num, f.runtime.State().Stage())
	if err != nil {
		return nil, nil, f.abort(num, err)
	}

	blk := f.builder.
		ParentHash(f.parent.Hash()).
		Number(num).
		Timestamp(f.When()).
		GasLimit(f.runtime.Context().GasLimit).
		GasUsed(f.gasUsed).
		Coinbase(f.runtime.Context().Coinbase).
		StateRoot(stateRoot).
		Build()
	block.Stamp(blk, f.receipts)

	if err := c.AddBlock(blk, f.receipts); err != nil {
		return nil, nil, f.abort(num, err)
	}
	f.packer.gasUsed.Observe(int64(f.gasUsed))
	return blk, f.receipts, nil
}

func (f *Flow) abort(num uint64, err error) error {
	if terr := f.packer.chain.Truncate(num); terr != nil {
		return errors.Wrapf(err, "truncate failed too: %v", terr)
	}
	return err
}
