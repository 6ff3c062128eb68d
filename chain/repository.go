// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package chain

import (
	"encoding/binary"
	"sync"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"
	"github.com/pkg/errors"

	"github.com/vechain/ethsim/block"
	"github.com/vechain/ethsim/kv"
	"github.com/vechain/ethsim/metrics"
	"github.com/vechain/ethsim/muxdb"
)

// ErrNotFound is returned when the requested block, tx or receipt is absent.
var ErrNotFound = errors.New("not found")

// IsNotFound returns whether err is caused by absent data.
func IsNotFound(err error) bool {
	return errors.Cause(err) == ErrNotFound
}

// Repository stores blocks, txs and receipts in an append-only sequence.
// The sequence starts with the base block, which is the genesis block or,
// in forking mode, the pinned upstream block.
//
// It's thread-safe. Writes are expected from a single writer.
type Repository struct {
	db        *muxdb.MuxDB
	hdrStore  kv.Store
	bodyStore kv.Store
	rcptStore kv.Store
	hashStore kv.Store
	txIndexer kv.Store
	propStore kv.Store

	base *types.Block
	head atomic.Pointer[types.Block]
	feed event.Feed
	lock sync.Mutex // serializes writes

	caches struct {
		blocks   *cache
		receipts *cache
	}
}

// NewRepository create an instance of repository.
// An empty db is initialized with the base block, otherwise the stored base must match.
func NewRepository(db *muxdb.MuxDB, base *types.Block, m metrics.Metrics) (*Repository, error) {
	hitMiss := metrics.OrNoop(m).GetOrCreateCountVecMeter("repo_cache_hit_miss_count", []string{"type", "event"})
	repo := &Repository{
		db:        db,
		hdrStore:  db.NewStore(hdrStoreName),
		bodyStore: db.NewStore(bodyStoreName),
		rcptStore: db.NewStore(rcptStoreName),
		hashStore: db.NewStore(hashStoreName),
		txIndexer: db.NewStore(txIndexStoreName),
		propStore: db.NewStore(propStoreName),
		base:      base,
	}
	repo.caches.blocks = newCache(512, "block", hitMiss)
	repo.caches.receipts = newCache(512, "receipts", hitMiss)

	val, err := repo.propStore.Get(baseKey)
	if err != nil {
		if !repo.propStore.IsNotFound(err) {
			return nil, err
		}
		bulk := db.NewStore("").Bulk()
		if err := repo.writeBlock(bulk, base, nil); err != nil {
			return nil, err
		}
		hash := base.Hash()
		if err := kv.Bucket(propStoreName).NewPutter(bulk).Put(baseKey, hash[:]); err != nil {
			return nil, err
		}
		if err := bulk.Write(); err != nil {
			return nil, errors.Wrap(err, "write base block")
		}
		repo.head.Store(base)
		return repo, nil
	}

	if common.BytesToHash(val) != base.Hash() {
		return nil, errors.New("base block mismatch")
	}
	headNum, err := repo.propStore.Get(headKey)
	if err != nil {
		return nil, errors.Wrap(err, "get head")
	}
	head, err := repo.loadBlock(binary.BigEndian.Uint64(headNum))
	if err != nil {
		return nil, errors.Wrap(err, "load head")
	}
	repo.head.Store(head)
	return repo, nil
}

// Base returns the first block of the repository.
func (r *Repository) Base() *types.Block {
	return r.base
}

// Head returns the newest block.
func (r *Repository) Head() *types.Block {
	return r.head.Load()
}

// SubscribeNewBlock subscribes to blocks appended to the repository.
func (r *Repository) SubscribeNewBlock(ch chan<- *types.Block) event.Subscription {
	return r.feed.Subscribe(ch)
}

func (r *Repository) writeBlock(bulk kv.Bulk, blk *types.Block, receipts types.Receipts) error {
	var (
		num           = blk.NumberU64()
		hash          = blk.Hash()
		key           = numberKey(num)
		hdrPutter     = kv.Bucket(hdrStoreName).NewPutter(bulk)
		bodyPutter    = kv.Bucket(bodyStoreName).NewPutter(bulk)
		rcptPutter    = kv.Bucket(rcptStoreName).NewPutter(bulk)
		hashPutter    = kv.Bucket(hashStoreName).NewPutter(bulk)
		txIndexPutter = kv.Bucket(txIndexStoreName).NewPutter(bulk)
		propPutter    = kv.Bucket(propStoreName).NewPutter(bulk)
	)

	if err := saveRLP(hdrPutter, key, blk.Header()); err != nil {
		return err
	}
	if err := saveRLP(bodyPutter, key, []*types.Transaction(blk.Transactions())); err != nil {
		return err
	}
	stored := make([]*storedReceipt, 0, len(receipts))
	for _, receipt := range receipts {
		stored = append(stored, newStoredReceipt(receipt))
	}
	if err := saveRLP(rcptPutter, key, stored); err != nil {
		return err
	}
	if err := hashPutter.Put(hash[:], key); err != nil {
		return err
	}
	for i, tx := range blk.Transactions() {
		txHash := tx.Hash()
		if err := saveRLP(txIndexPutter, txHash[:], &TxLocation{hash, num, uint64(i)}); err != nil {
			return err
		}
	}
	return propPutter.Put(headKey, key)
}

// AddBlock appends a block with its receipts on top of the head.
func (r *Repository) AddBlock(blk *types.Block, receipts types.Receipts) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	head := r.Head()
	if blk.ParentHash() != head.Hash() || blk.NumberU64() != head.NumberU64()+1 {
		return errors.New("block not on top of head")
	}
	if len(receipts) != len(blk.Transactions()) {
		return errors.New("receipts count mismatch")
	}

	bulk := r.db.NewStore("").Bulk()
	if err := r.writeBlock(bulk, blk, receipts); err != nil {
		return err
	}
	if err := bulk.Write(); err != nil {
		return errors.Wrap(err, "write block")
	}
	r.caches.blocks.Add(blk.NumberU64(), blk)
	r.head.Store(blk)
	r.feed.Send(blk)
	return nil
}

// Truncate removes blocks numbered from num and above, with their receipts and tx index.
func (r *Repository) Truncate(num uint64) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	if num <= r.base.NumberU64() {
		return errors.New("cannot truncate the base block")
	}
	head := r.Head()
	if num > head.NumberU64() {
		return nil
	}

	var (
		bulk          = r.db.NewStore("").Bulk()
		hdrPutter     = kv.Bucket(hdrStoreName).NewPutter(bulk)
		bodyPutter    = kv.Bucket(bodyStoreName).NewPutter(bulk)
		rcptPutter    = kv.Bucket(rcptStoreName).NewPutter(bulk)
		hashPutter    = kv.Bucket(hashStoreName).NewPutter(bulk)
		txIndexPutter = kv.Bucket(txIndexStoreName).NewPutter(bulk)
		propPutter    = kv.Bucket(propStoreName).NewPutter(bulk)
	)
	for n := head.NumberU64(); n >= num; n-- {
		blk, err := r.loadBlock(n)
		if err != nil {
			return errors.Wrapf(err, "load block %d", n)
		}
		key := numberKey(n)
		for _, del := range []func() error{
			func() error { return hdrPutter.Delete(key) },
			func() error { return bodyPutter.Delete(key) },
			func() error { return rcptPutter.Delete(key) },
			func() error { return hashPutter.Delete(blk.Hash().Bytes()) },
		} {
			if err := del(); err != nil {
				return err
			}
		}
		for _, tx := range blk.Transactions() {
			if err := txIndexPutter.Delete(tx.Hash().Bytes()); err != nil {
				return err
			}
		}
	}
	newHead, err := r.loadBlock(num - 1)
	if err != nil {
		return err
	}
	if err := propPutter.Put(headKey, numberKey(num-1)); err != nil {
		return err
	}
	if err := bulk.Write(); err != nil {
		return errors.Wrap(err, "truncate blocks")
	}
	r.caches.blocks.Purge()
	r.caches.receipts.Purge()
	r.head.Store(newHead)
	return nil
}

func (r *Repository) loadBlock(num uint64) (*types.Block, error) {
	var header types.Header
	if err := loadRLP(r.hdrStore, numberKey(num), &header); err != nil {
		return nil, err
	}
	var txs []*types.Transaction
	if err := loadRLP(r.bodyStore, numberKey(num), &txs); err != nil {
		return nil, err
	}
	return types.NewBlockWithHeader(&header).WithBody(types.Body{Transactions: txs}), nil
}

// BlockByNumber returns the block with the given number.
func (r *Repository) BlockByNumber(num uint64) (*types.Block, error) {
	if num > r.Head().NumberU64() || num < r.base.NumberU64() {
		return nil, ErrNotFound
	}
	blk, err := r.caches.blocks.GetOrLoad(num, func() (any, error) {
		return r.loadBlock(num)
	})
	if err != nil {
		return nil, err
	}
	return blk.(*types.Block), nil
}

// BlockByHash returns the block with the given hash.
func (r *Repository) BlockByHash(hash common.Hash) (*types.Block, error) {
	val, err := r.hashStore.Get(hash[:])
	if err != nil {
		if r.hashStore.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	blk, err := r.BlockByNumber(binary.BigEndian.Uint64(val))
	if err != nil {
		return nil, err
	}
	// stale index entry of a truncated block
	if blk.Hash() != hash {
		return nil, ErrNotFound
	}
	return blk, nil
}

// Receipts returns receipts of the block with the given number.
func (r *Repository) Receipts(num uint64) (types.Receipts, error) {
	blk, err := r.BlockByNumber(num)
	if err != nil {
		return nil, err
	}
	receipts, err := r.caches.receipts.GetOrLoad(num, func() (any, error) {
		var stored []*storedReceipt
		if err := loadRLP(r.rcptStore, numberKey(num), &stored); err != nil {
			return nil, err
		}
		receipts := make(types.Receipts, 0, len(stored))
		for _, s := range stored {
			receipts = append(receipts, s.receipt())
		}
		block.Stamp(blk, receipts)
		return receipts, nil
	})
	if err != nil {
		return nil, err
	}
	return receipts.(types.Receipts), nil
}

// TransactionByHash returns the transaction with its location.
func (r *Repository) TransactionByHash(hash common.Hash) (*types.Transaction, *TxLocation, error) {
	var loc TxLocation
	if err := loadRLP(r.txIndexer, hash[:], &loc); err != nil {
		return nil, nil, err
	}
	blk, err := r.BlockByNumber(loc.BlockNumber)
	if err != nil {
		return nil, nil, err
	}
	txs := blk.Transactions()
	if loc.Index >= uint64(len(txs)) || txs[loc.Index].Hash() != hash {
		return nil, nil, ErrNotFound
	}
	return txs[loc.Index], &loc, nil
}

// ReceiptByHash returns the receipt of the transaction.
func (r *Repository) ReceiptByHash(hash common.Hash) (*types.Receipt, error) {
	_, loc, err := r.TransactionByHash(hash)
	if err != nil {
		return nil, err
	}
	receipts, err := r.Receipts(loc.BlockNumber)
	if err != nil {
		return nil, err
	}
	return receipts[loc.Index], nil
}
