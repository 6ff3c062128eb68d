// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package kv

import (
	"sync"

	"github.com/syndtr/goleveldb/leveldb/util"
)

// Bucket provides logical bucket for kv store, by prefixing keys.
type Bucket string

func (b Bucket) key(buf *buf, key []byte) []byte {
	buf.k = append(append(buf.k[:0], b...), key...)
	return buf.k
}

// NewGetter creates a bucket getter from the source getter.
func (b Bucket) NewGetter(src Getter) Getter {
	return &bucketGetter{b, src}
}

// NewPutter creates a bucket putter from the source putter.
func (b Bucket) NewPutter(src Putter) Putter {
	return &bucketPutter{b, src}
}

// NewStore creates a bucket store from the source store.
func (b Bucket) NewStore(src Store) Store {
	return &bucketStore{
		bucketGetter{b, src},
		bucketPutter{b, src},
		src,
	}
}

type bucketGetter struct {
	b   Bucket
	src Getter
}

func (g *bucketGetter) Get(key []byte) ([]byte, error) {
	buf := bufPool.Get().(*buf)
	defer bufPool.Put(buf)
	return g.src.Get(g.b.key(buf, key))
}

func (g *bucketGetter) Has(key []byte) (bool, error) {
	buf := bufPool.Get().(*buf)
	defer bufPool.Put(buf)
	return g.src.Has(g.b.key(buf, key))
}

func (g *bucketGetter) IsNotFound(err error) bool { return g.src.IsNotFound(err) }

type bucketPutter struct {
	b   Bucket
	src Putter
}

func (p *bucketPutter) Put(key, val []byte) error {
	buf := bufPool.Get().(*buf)
	defer bufPool.Put(buf)
	return p.src.Put(p.b.key(buf, key), val)
}

func (p *bucketPutter) Delete(key []byte) error {
	buf := bufPool.Get().(*buf)
	defer bufPool.Put(buf)
	return p.src.Delete(p.b.key(buf, key))
}

type bucketStore struct {
	bucketGetter
	bucketPutter
	src Store
}

func (s *bucketStore) Snapshot() Snapshot {
	snapshot := s.src.Snapshot()
	return &struct {
		Getter
		releaser
	}{
		&bucketGetter{s.bucketGetter.b, snapshot},
		snapshot,
	}
}

func (s *bucketStore) Bulk() Bulk {
	bulk := s.src.Bulk()
	return &struct {
		Putter
		bulkWriter
	}{
		&bucketPutter{s.bucketPutter.b, bulk},
		bulk,
	}
}

func (s *bucketStore) Iterate(r Range) Iterator {
	b := s.bucketGetter.b
	// the source iterator keeps the range, so fresh slices are required here
	start := append([]byte(b), r.Start...)
	var limit []byte
	if len(r.Limit) == 0 {
		limit = util.BytesPrefix([]byte(b)).Limit
	} else {
		limit = append([]byte(b), r.Limit...)
	}
	return &bucketIterator{
		s.src.Iterate(Range{Start: start, Limit: limit}),
		len(b),
	}
}

type bucketIterator struct {
	Iterator
	prefixLen int
}

// Key strips the bucket prefix.
func (i *bucketIterator) Key() []byte {
	return i.Iterator.Key()[i.prefixLen:]
}

type releaser interface {
	Release()
}

type bulkWriter interface {
	EnableAutoFlush()
	Write() error
}

type buf struct {
	k []byte
}

var bufPool = sync.Pool{
	New: func() any {
		return &buf{}
	},
}
