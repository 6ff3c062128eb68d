// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package fork

import (
	"context"
	"encoding/binary"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rlp"
	lru "github.com/hashicorp/golang-lru"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/vechain/ethsim/kv"
	"github.com/vechain/ethsim/metrics"
	"github.com/vechain/ethsim/muxdb"
	"github.com/vechain/ethsim/state"
)

const cacheStoreName = "fork.cache"

var _ state.Fallback = (*Fallback)(nil)

// remoteAccount is an upstream account as cached locally.
type remoteAccount struct {
	Nonce   uint64
	Balance *uint256.Int
	Code    []byte
}

type (
	accountKey struct {
		addr   common.Address
		height uint64
	}
	slotKey struct {
		addr   common.Address
		slot   common.Hash
		height uint64
	}
)

// Fallback resolves state reads missing locally from the upstream, as of the
// requested height but never above the pin. Fetched values are cached in
// memory and in the fork.cache bucket, so each is fetched at most once.
type Fallback struct {
	ctx      context.Context
	upstream Upstream
	pin      uint64
	timeout  time.Duration
	store    kv.Store
	cache    *lru.ARCCache
	logger   log.Logger
	hitMiss  metrics.CountVecMeter
}

// NewFallback creates the fallback. Remote reads are bound to ctx.
func NewFallback(ctx context.Context, upstream Upstream, pin uint64, db *muxdb.MuxDB, opts *Options) *Fallback {
	opts = opts.withDefaults()
	cache, _ := lru.NewARC(opts.CacheSize)
	return &Fallback{
		ctx:      ctx,
		upstream: upstream,
		pin:      pin,
		timeout:  opts.Timeout,
		store:    db.NewStore(cacheStoreName),
		cache:    cache,
		logger:   opts.Logger.New("pkg", "fork"),
		hitMiss:  metrics.OrNoop(opts.Metrics).GetOrCreateCountVecMeter("fork_cache_hit_miss_count", []string{"type", "event"}),
	}
}

// Pin returns the pinned block number.
func (f *Fallback) Pin() uint64 { return f.pin }

func (f *Fallback) clamp(height uint64) uint64 {
	if height > f.pin {
		return f.pin
	}
	return height
}

func accountDBKey(addr common.Address, height uint64) []byte {
	key := make([]byte, 0, 1+8+common.AddressLength)
	key = append(key, 'a')
	key = binary.BigEndian.AppendUint64(key, height)
	return append(key, addr[:]...)
}

func slotDBKey(addr common.Address, slot common.Hash, height uint64) []byte {
	key := make([]byte, 0, 1+8+common.AddressLength+common.HashLength)
	key = append(key, 's')
	key = binary.BigEndian.AppendUint64(key, height)
	key = append(key, addr[:]...)
	return append(key, slot[:]...)
}

// lookup checks the memory cache then the persistent cache.
func (f *Fallback) lookup(memKey any, dbKey []byte, kind string) ([]byte, bool, error) {
	if v, ok := f.cache.Get(memKey); ok {
		f.hitMiss.AddWithLabel(1, map[string]string{"type": kind, "event": "hit"})
		return v.([]byte), true, nil
	}
	v, err := f.store.Get(dbKey)
	if err == nil {
		f.hitMiss.AddWithLabel(1, map[string]string{"type": kind, "event": "hit"})
		f.cache.Add(memKey, v)
		return v, true, nil
	}
	if !f.store.IsNotFound(err) {
		return nil, false, err
	}
	f.hitMiss.AddWithLabel(1, map[string]string{"type": kind, "event": "miss"})
	return nil, false, nil
}

func (f *Fallback) remember(memKey any, dbKey []byte, val []byte) error {
	if err := f.store.Put(dbKey, val); err != nil {
		return err
	}
	f.cache.Add(memKey, val)
	return nil
}

// Account implements state.Fallback.
// An account absent upstream is returned as nil.
func (f *Fallback) Account(addr common.Address, height uint64) (*state.Account, []byte, error) {
	height = f.clamp(height)
	memKey, dbKey := accountKey{addr, height}, accountDBKey(addr, height)

	data, found, err := f.lookup(memKey, dbKey, "account")
	if err != nil {
		return nil, nil, err
	}
	var ra remoteAccount
	if found {
		if err := rlp.DecodeBytes(data, &ra); err != nil {
			return nil, nil, errors.Wrap(err, "decode cached account")
		}
	} else {
		fetched, err := f.fetchAccount(addr, height)
		if err != nil {
			return nil, nil, err
		}
		ra = *fetched
		data, err := rlp.EncodeToBytes(&ra)
		if err != nil {
			return nil, nil, err
		}
		if err := f.remember(memKey, dbKey, data); err != nil {
			return nil, nil, err
		}
	}
	if ra.Balance == nil {
		ra.Balance = new(uint256.Int)
	}
	if ra.Nonce == 0 && ra.Balance.IsZero() && len(ra.Code) == 0 {
		return nil, nil, nil
	}
	acc := &state.Account{
		Nonce:   ra.Nonce,
		Balance: ra.Balance,
	}
	if len(ra.Code) > 0 {
		acc.CodeHash = crypto.Keccak256(ra.Code)
	}
	return acc, ra.Code, nil
}

// fetchAccount reads balance, nonce and code concurrently.
func (f *Fallback) fetchAccount(addr common.Address, height uint64) (*remoteAccount, error) {
	ctx, cancel := context.WithTimeout(f.ctx, f.timeout)
	defer cancel()

	var (
		num     = new(big.Int).SetUint64(height)
		ra      remoteAccount
		balance *big.Int
	)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		balance, err = f.upstream.BalanceAt(ctx, addr, num)
		return
	})
	g.Go(func() (err error) {
		ra.Nonce, err = f.upstream.NonceAt(ctx, addr, num)
		return
	})
	g.Go(func() (err error) {
		ra.Code, err = f.upstream.CodeAt(ctx, addr, num)
		return
	})
	if err := g.Wait(); err != nil {
		return nil, errors.Wrapf(err, "fetch account %v at %d", addr, height)
	}
	var overflow bool
	if ra.Balance, overflow = uint256.FromBig(balance); overflow {
		return nil, errors.Errorf("balance of %v overflows", addr)
	}
	f.logger.Trace("account fetched", "addr", addr, "height", height)
	return &ra, nil
}

// Storage implements state.Fallback.
func (f *Fallback) Storage(addr common.Address, slot common.Hash, height uint64) (common.Hash, error) {
	height = f.clamp(height)
	memKey, dbKey := slotKey{addr, slot, height}, slotDBKey(addr, slot, height)

	data, found, err := f.lookup(memKey, dbKey, "storage")
	if err != nil {
		return common.Hash{}, err
	}
	if found {
		return common.BytesToHash(data), nil
	}

	ctx, cancel := context.WithTimeout(f.ctx, f.timeout)
	defer cancel()
	val, err := f.upstream.StorageAt(ctx, addr, slot, new(big.Int).SetUint64(height))
	if err != nil {
		return common.Hash{}, errors.Wrapf(err, "fetch storage %v %v at %d", addr, slot, height)
	}
	v := common.BytesToHash(val)
	if err := f.remember(memKey, dbKey, v.Bytes()); err != nil {
		return common.Hash{}, err
	}
	return v, nil
}
