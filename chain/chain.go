// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package chain holds the mined blocks and the state versions they pin.
package chain

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"

	"github.com/vechain/ethsim/logdb"
	"github.com/vechain/ethsim/state"
)

// Chain is the block store together with the state versions of its blocks.
// LocalChain and the forked chain of package fork implement it.
type Chain interface {
	// Base returns the first block, the genesis or the fork pin.
	Base() *types.Block
	// Head returns the newest block.
	Head() *types.Block
	// Height returns the number of the newest block.
	Height() uint64

	BlockByNumber(ctx context.Context, num uint64) (*types.Block, error)
	BlockByHash(ctx context.Context, hash common.Hash) (*types.Block, error)
	TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, *TxLocation, error)
	ReceiptByHash(ctx context.Context, hash common.Hash) (*types.Receipt, error)
	Receipts(ctx context.Context, num uint64) (types.Receipts, error)
	FilterLogs(ctx context.Context, filter *logdb.Filter) ([]*types.Log, error)

	// GetHash returns the hash of the block with the given number, zero hash if unknown.
	GetHash(num uint64) common.Hash
	// StateAt returns a mutable state based on the block with the given number.
	StateAt(num uint64) (*state.State, error)

	// CommitState persists the state changes made by the block num and returns the state root.
	CommitState(num uint64, cs *state.Changeset) (common.Hash, error)
	// AddBlock appends the block whose state was committed and indexes its logs.
	AddBlock(blk *types.Block, receipts types.Receipts) error
	// Truncate removes blocks numbered from num and above, with their state versions and logs.
	Truncate(num uint64) error

	SubscribeNewBlock(ch chan<- *types.Block) event.Subscription
	Close() error
}
