// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package fork overlays locally mined blocks on a live upstream chain pinned at a block.
package fork

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rpc"
	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/vechain/ethsim/chain"
	"github.com/vechain/ethsim/logdb"
	"github.com/vechain/ethsim/metrics"
	"github.com/vechain/ethsim/muxdb"
	"github.com/vechain/ethsim/state"
)

// Options optional parameters for the forked chain.
type Options struct {
	// CacheSize is the entry count of each in-memory cache.
	CacheSize int
	// Timeout bounds each upstream request made for a state read.
	Timeout time.Duration
	// Alloc edits the state of the pin block. It runs only on an empty db.
	Alloc   func(st *state.State) error
	Logger  log.Logger
	Metrics metrics.Metrics
}

func (o *Options) withDefaults() *Options {
	var opts Options
	if o != nil {
		opts = *o
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = 4096
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = log.Root()
	}
	return &opts
}

var _ chain.Chain = (*ForkedChain)(nil)

// ForkedChain is a local chain whose base is the pinned upstream block.
// Blocks, txs, receipts and logs at or below the pin are read from the
// upstream, those above from the local chain. State reads missing locally
// fall through to the upstream as of the pin.
type ForkedChain struct {
	*chain.LocalChain

	upstream Upstream
	fallback *Fallback
	pin      *types.Block
	blocks   *lru.ARCCache
	receipts *lru.ARCCache
	cancel   context.CancelFunc
	logger   log.Logger
}

// New pins the upstream at pin, or at its head if pin is nil, and opens the
// local chain on db. A db written by an earlier run must have the same pin.
func New(ctx context.Context, upstream Upstream, pin *uint64, db *muxdb.MuxDB, logDB *logdb.LogDB, opts *Options) (*ForkedChain, error) {
	opts = opts.withDefaults()
	logger := opts.Logger.New("pkg", "fork")

	pinBlock, err := fetchPin(ctx, upstream, pin)
	if err != nil {
		return nil, err
	}
	num := pinBlock.NumberU64()

	stored, found, err := chain.LoadBase(db)
	if err != nil {
		return nil, err
	}
	if found && stored.Hash() != pinBlock.Hash() {
		return nil, errors.Errorf("fork pin mismatch: db pinned at %d %v", stored.NumberU64(), stored.Hash())
	}

	lifetime, cancel := context.WithCancel(context.Background())
	fallback := NewFallback(lifetime, upstream, num, db, opts)
	// the local copy of the pin keeps the header only, its txs live upstream
	local, err := chain.NewLocal(db, logDB, types.NewBlockWithHeader(pinBlock.Header()), chain.Options{
		Fallback: fallback,
		Logger:   opts.Logger,
		Metrics:  opts.Metrics,
	})
	if err != nil {
		cancel()
		return nil, err
	}

	if !found && opts.Alloc != nil {
		st, err := local.StateAt(num)
		if err == nil {
			err = opts.Alloc(st)
		}
		if err == nil {
			_, err = local.CommitState(num, st.Stage())
		}
		if err != nil {
			cancel()
			return nil, errors.Wrap(err, "alloc at pin")
		}
	}

	blocks, _ := lru.NewARC(256)
	receipts, _ := lru.NewARC(256)
	logger.Info("forked upstream", "number", num, "hash", pinBlock.Hash(), "local", local.Height()-num)
	return &ForkedChain{
		LocalChain: local,
		upstream:   upstream,
		fallback:   fallback,
		pin:        pinBlock,
		blocks:     blocks,
		receipts:   receipts,
		cancel:     cancel,
		logger:     logger,
	}, nil
}

// fetchPin reads the upstream head and the pinned block concurrently.
func fetchPin(ctx context.Context, upstream Upstream, pin *uint64) (*types.Block, error) {
	var (
		head     uint64
		pinBlock *types.Block
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		head, err = upstream.BlockNumber(gctx)
		return errors.Wrap(err, "upstream head")
	})
	if pin != nil {
		g.Go(func() (err error) {
			pinBlock, err = upstream.BlockByNumber(gctx, new(big.Int).SetUint64(*pin))
			return errors.Wrapf(err, "upstream block %d", *pin)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if pin == nil {
		blk, err := upstream.BlockByNumber(ctx, new(big.Int).SetUint64(head))
		if err != nil {
			return nil, errors.Wrapf(err, "upstream block %d", head)
		}
		return blk, nil
	}
	if *pin > head {
		return nil, errors.Errorf("fork block %d is ahead of upstream head %d", *pin, head)
	}
	return pinBlock, nil
}

func notFound(err error) error {
	if errors.Is(err, ethereum.NotFound) {
		return chain.ErrNotFound
	}
	return err
}

// Pin returns the pinned upstream block.
func (f *ForkedChain) Pin() *types.Block { return f.pin }

// Fallback returns the upstream state reader.
func (f *ForkedChain) Fallback() *Fallback { return f.fallback }

func (f *ForkedChain) Base() *types.Block { return f.pin }

func (f *ForkedChain) isRemote(num uint64) bool {
	return num <= f.pin.NumberU64()
}

func (f *ForkedChain) remoteBlock(ctx context.Context, num uint64) (*types.Block, error) {
	if num == f.pin.NumberU64() {
		return f.pin, nil
	}
	if blk, ok := f.blocks.Get(num); ok {
		return blk.(*types.Block), nil
	}
	blk, err := f.upstream.BlockByNumber(ctx, new(big.Int).SetUint64(num))
	if err != nil {
		return nil, notFound(err)
	}
	f.blocks.Add(num, blk)
	return blk, nil
}

func (f *ForkedChain) BlockByNumber(ctx context.Context, num uint64) (*types.Block, error) {
	if f.isRemote(num) {
		return f.remoteBlock(ctx, num)
	}
	return f.LocalChain.BlockByNumber(ctx, num)
}

func (f *ForkedChain) BlockByHash(ctx context.Context, hash common.Hash) (*types.Block, error) {
	if hash == f.pin.Hash() {
		return f.pin, nil
	}
	blk, err := f.LocalChain.BlockByHash(ctx, hash)
	if !chain.IsNotFound(err) {
		return blk, err
	}
	blk, err = f.upstream.BlockByHash(ctx, hash)
	if err != nil {
		return nil, notFound(err)
	}
	// upstream blocks mined after the pin are invisible
	if !f.isRemote(blk.NumberU64()) {
		return nil, chain.ErrNotFound
	}
	return blk, nil
}

func (f *ForkedChain) remoteReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	receipt, err := f.upstream.TransactionReceipt(ctx, hash)
	if err != nil {
		return nil, notFound(err)
	}
	if receipt.BlockNumber == nil || !f.isRemote(receipt.BlockNumber.Uint64()) {
		return nil, chain.ErrNotFound
	}
	return receipt, nil
}

func (f *ForkedChain) TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, *chain.TxLocation, error) {
	tx, loc, err := f.LocalChain.TransactionByHash(ctx, hash)
	if !chain.IsNotFound(err) {
		return tx, loc, err
	}
	receipt, err := f.remoteReceipt(ctx, hash)
	if err != nil {
		return nil, nil, err
	}
	blk, err := f.remoteBlock(ctx, receipt.BlockNumber.Uint64())
	if err != nil {
		return nil, nil, err
	}
	txs := blk.Transactions()
	if int(receipt.TransactionIndex) >= len(txs) || txs[receipt.TransactionIndex].Hash() != hash {
		return nil, nil, chain.ErrNotFound
	}
	return txs[receipt.TransactionIndex], &chain.TxLocation{
		BlockHash:   blk.Hash(),
		BlockNumber: blk.NumberU64(),
		Index:       uint64(receipt.TransactionIndex),
	}, nil
}

func (f *ForkedChain) ReceiptByHash(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	receipt, err := f.LocalChain.ReceiptByHash(ctx, hash)
	if !chain.IsNotFound(err) {
		return receipt, err
	}
	return f.remoteReceipt(ctx, hash)
}

func (f *ForkedChain) Receipts(ctx context.Context, num uint64) (types.Receipts, error) {
	if !f.isRemote(num) {
		return f.LocalChain.Receipts(ctx, num)
	}
	if receipts, ok := f.receipts.Get(num); ok {
		return receipts.(types.Receipts), nil
	}
	receipts, err := f.upstream.BlockReceipts(ctx, rpc.BlockNumberOrHashWithNumber(rpc.BlockNumber(num)))
	if err != nil {
		return nil, notFound(err)
	}
	f.receipts.Add(num, types.Receipts(receipts))
	return receipts, nil
}

// FilterLogs splits the range at the pin: the lower part is queried upstream,
// the upper part from the local log index.
func (f *ForkedChain) FilterLogs(ctx context.Context, filter *logdb.Filter) ([]*types.Log, error) {
	if filter.FromBlock > filter.ToBlock {
		return []*types.Log{}, nil
	}
	pin := f.pin.NumberU64()
	logs := []*types.Log{}

	if filter.FromBlock <= pin {
		to := filter.ToBlock
		if to > pin {
			to = pin
		}
		remote, err := f.upstream.FilterLogs(ctx, ethereum.FilterQuery{
			FromBlock: new(big.Int).SetUint64(filter.FromBlock),
			ToBlock:   new(big.Int).SetUint64(to),
			Addresses: filter.Addresses,
			Topics:    filter.Topics,
		})
		if err != nil {
			return nil, errors.Wrap(err, "upstream logs")
		}
		for i := range remote {
			if filter.Limit > 0 && uint64(len(logs)) >= filter.Limit {
				return logs, nil
			}
			logs = append(logs, &remote[i])
		}
	}

	if filter.ToBlock > pin {
		local := *filter
		if local.FromBlock <= pin {
			local.FromBlock = pin + 1
		}
		if local.Limit > 0 {
			if uint64(len(logs)) >= local.Limit {
				return logs, nil
			}
			local.Limit -= uint64(len(logs))
		}
		more, err := f.LocalChain.FilterLogs(ctx, &local)
		if err != nil {
			return nil, err
		}
		logs = append(logs, more...)
	}
	return logs, nil
}

func (f *ForkedChain) GetHash(num uint64) common.Hash {
	if !f.isRemote(num) {
		return f.LocalChain.GetHash(num)
	}
	ctx, cancel := context.WithTimeout(context.Background(), f.fallback.timeout)
	defer cancel()
	blk, err := f.remoteBlock(ctx, num)
	if err != nil {
		f.logger.Warn("failed to get upstream block hash", "number", num, "err", err)
		return common.Hash{}
	}
	return blk.Hash()
}

// Close stops pending upstream reads, closes the upstream and the local chain.
func (f *ForkedChain) Close() error {
	f.cancel()
	f.upstream.Close()
	return f.LocalChain.Close()
}
