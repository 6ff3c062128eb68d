// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package chain

import (
	"context"
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"
	"github.com/ethereum/go-ethereum/log"
	"github.com/pkg/errors"

	"github.com/vechain/ethsim/logdb"
	"github.com/vechain/ethsim/metrics"
	"github.com/vechain/ethsim/muxdb"
	"github.com/vechain/ethsim/state"
)

var _ Chain = (*LocalChain)(nil)

// Options optional parameters for LocalChain.
type Options struct {
	// Fallback resolves state reads missing locally, nil for a standalone chain.
	Fallback state.Fallback
	Logger   log.Logger
	Metrics  metrics.Metrics
}

// LocalChain is the chain whose every block was mined locally.
// It owns the db and the log db, both released on Close.
type LocalChain struct {
	db         *muxdb.MuxDB
	logDB      *logdb.LogDB
	repo       *Repository
	stateStore *state.Store
	fallback   state.Fallback
	logger     log.Logger
}

// LoadBase returns the base block stored in db.
// The second return value is false for an uninitialized db.
func LoadBase(db *muxdb.MuxDB) (*types.Block, bool, error) {
	props := db.NewStore(propStoreName)
	hash, err := props.Get(baseKey)
	if err != nil {
		if props.IsNotFound(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	num, err := db.NewStore(hashStoreName).Get(hash)
	if err != nil {
		return nil, false, errors.Wrap(err, "base number")
	}
	repo := &Repository{
		hdrStore:  db.NewStore(hdrStoreName),
		bodyStore: db.NewStore(bodyStoreName),
	}
	blk, err := repo.loadBlock(binary.BigEndian.Uint64(num))
	if err != nil {
		return nil, false, errors.Wrap(err, "base block")
	}
	return blk, true, nil
}

// NewLocal creates the chain starting from base.
// The state of base must have been committed into db beforehand.
func NewLocal(db *muxdb.MuxDB, logDB *logdb.LogDB, base *types.Block, opts Options) (*LocalChain, error) {
	repo, err := NewRepository(db, base, opts.Metrics)
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Root()
	}
	return &LocalChain{
		db:         db,
		logDB:      logDB,
		repo:       repo,
		stateStore: state.NewStore(db),
		fallback:   opts.Fallback,
		logger:     logger.New("pkg", "chain"),
	}, nil
}

// Repository returns the block repository.
func (c *LocalChain) Repository() *Repository { return c.repo }

// StateStore returns the versioned state store.
func (c *LocalChain) StateStore() *state.Store { return c.stateStore }

func (c *LocalChain) Base() *types.Block { return c.repo.Base() }

func (c *LocalChain) Head() *types.Block { return c.repo.Head() }

func (c *LocalChain) Height() uint64 { return c.repo.Head().NumberU64() }

func (c *LocalChain) BlockByNumber(_ context.Context, num uint64) (*types.Block, error) {
	return c.repo.BlockByNumber(num)
}

func (c *LocalChain) BlockByHash(_ context.Context, hash common.Hash) (*types.Block, error) {
	return c.repo.BlockByHash(hash)
}

func (c *LocalChain) TransactionByHash(_ context.Context, hash common.Hash) (*types.Transaction, *TxLocation, error) {
	return c.repo.TransactionByHash(hash)
}

func (c *LocalChain) ReceiptByHash(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	return c.repo.ReceiptByHash(hash)
}

func (c *LocalChain) Receipts(_ context.Context, num uint64) (types.Receipts, error) {
	return c.repo.Receipts(num)
}

// FilterLogs returns indexed logs. ToBlock is clamped to the head.
func (c *LocalChain) FilterLogs(ctx context.Context, filter *logdb.Filter) ([]*types.Log, error) {
	f := *filter
	if height := c.Height(); f.ToBlock > height {
		f.ToBlock = height
	}
	return c.logDB.FilterLogs(ctx, &f)
}

func (c *LocalChain) GetHash(num uint64) common.Hash {
	blk, err := c.repo.BlockByNumber(num)
	if err != nil {
		return common.Hash{}
	}
	return blk.Hash()
}

func (c *LocalChain) StateAt(num uint64) (*state.State, error) {
	if num > c.Height() {
		return nil, errors.Wrapf(ErrNotFound, "state at %d", num)
	}
	return state.New(c.stateStore, num, c.fallback), nil
}

func (c *LocalChain) CommitState(num uint64, cs *state.Changeset) (common.Hash, error) {
	if err := c.stateStore.Commit(num, cs); err != nil {
		return common.Hash{}, errors.Wrap(err, "commit state")
	}
	return c.stateStore.Root(num)
}

func (c *LocalChain) AddBlock(blk *types.Block, receipts types.Receipts) error {
	batch := c.logDB.Prepare(blk)
	for _, r := range receipts {
		batch.Insert(r.Logs...)
	}
	if err := batch.Commit(); err != nil {
		return errors.Wrap(err, "index logs")
	}
	if err := c.repo.AddBlock(blk, receipts); err != nil {
		return err
	}
	c.logger.Debug("block added", "number", blk.NumberU64(), "hash", blk.Hash(), "txs", len(receipts))
	return nil
}

// Truncate removes blocks first, then their logs and state versions.
func (c *LocalChain) Truncate(num uint64) error {
	if err := c.repo.Truncate(num); err != nil {
		return err
	}
	if err := c.logDB.Truncate(num); err != nil {
		return err
	}
	if err := c.stateStore.Truncate(num - 1); err != nil {
		return err
	}
	c.logger.Debug("chain truncated", "head", c.Height())
	return nil
}

func (c *LocalChain) SubscribeNewBlock(ch chan<- *types.Block) event.Subscription {
	return c.repo.SubscribeNewBlock(ch)
}

func (c *LocalChain) Close() error {
	if err := c.logDB.Close(); err != nil {
		return err
	}
	return c.db.Close()
}
