// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package engine

import (
	"io"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/vechain/ethsim/kv"
)

// Engine defines the interface of K-V engine.
type Engine interface {
	kv.Store
	io.Closer
}

var (
	writeOpt = opt.WriteOptions{}
	readOpt  = opt.ReadOptions{}
	scanOpt  = opt.ReadOptions{DontFillCache: true}
)

const idealBatchSize = 128 * 1024

type levelEngine struct {
	db        *leveldb.DB
	batchPool *sync.Pool
}

// NewLevelEngine creates leveldb instance which implements the Engine interface.
func NewLevelEngine(db *leveldb.DB) Engine {
	return &levelEngine{
		db,
		&sync.Pool{
			New: func() any {
				return &leveldb.Batch{}
			},
		},
	}
}

func (ldb *levelEngine) Close() error {
	return ldb.db.Close()
}

func (ldb *levelEngine) IsNotFound(err error) bool {
	return err == leveldb.ErrNotFound
}

func (ldb *levelEngine) Get(key []byte) ([]byte, error) {
	val, err := ldb.db.Get(key, &readOpt)
	// val will be []byte{} if error occurs, which is not expected
	if err != nil {
		return nil, err
	}
	return val, nil
}

func (ldb *levelEngine) Has(key []byte) (bool, error) {
	return ldb.db.Has(key, &readOpt)
}

func (ldb *levelEngine) Put(key, val []byte) error {
	return ldb.db.Put(key, val, &writeOpt)
}

func (ldb *levelEngine) Delete(key []byte) error {
	return ldb.db.Delete(key, &writeOpt)
}

func (ldb *levelEngine) Snapshot() kv.Snapshot {
	s, err := ldb.db.GetSnapshot()
	return &snapshot{s, err, ldb.IsNotFound}
}

func (ldb *levelEngine) Bulk() kv.Bulk {
	return &bulk{ldb: ldb}
}

func (ldb *levelEngine) Iterate(r kv.Range) kv.Iterator {
	return ldb.db.NewIterator((*util.Range)(&r), &scanOpt)
}

type snapshot struct {
	s          *leveldb.Snapshot
	err        error
	isNotFound func(error) bool
}

func (s *snapshot) Get(key []byte) ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	val, err := s.s.Get(key, &readOpt)
	if err != nil {
		return nil, err
	}
	return val, nil
}

func (s *snapshot) Has(key []byte) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	return s.s.Has(key, &readOpt)
}

func (s *snapshot) IsNotFound(err error) bool { return s.isNotFound(err) }

func (s *snapshot) Release() {
	if s.s != nil {
		s.s.Release()
	}
}

// bulk buffers writes into a pooled batch.
type bulk struct {
	ldb       *levelEngine
	batch     *leveldb.Batch
	autoFlush bool
}

func (b *bulk) getBatch() *leveldb.Batch {
	if b.batch == nil {
		b.batch = b.ldb.batchPool.Get().(*leveldb.Batch)
		b.batch.Reset()
	}
	return b.batch
}

func (b *bulk) flush(minSize int) error {
	if b.batch != nil && len(b.batch.Dump()) >= minSize {
		if b.batch.Len() > 0 {
			if err := b.ldb.db.Write(b.batch, &writeOpt); err != nil {
				return err
			}
		}
		b.ldb.batchPool.Put(b.batch)
		b.batch = nil
	}
	return nil
}

func (b *bulk) Put(key, val []byte) error {
	b.getBatch().Put(key, val)
	if b.autoFlush {
		return b.flush(idealBatchSize)
	}
	return nil
}

func (b *bulk) Delete(key []byte) error {
	b.getBatch().Delete(key)
	if b.autoFlush {
		return b.flush(idealBatchSize)
	}
	return nil
}

func (b *bulk) EnableAutoFlush() { b.autoFlush = true }

func (b *bulk) Write() error { return b.flush(0) }
