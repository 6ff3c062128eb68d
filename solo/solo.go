// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package solo is the standalone block producer. Every tx, seal and revert is
// serialized through one queue, blocks are mined instantly on send or on an interval.
package solo

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/params"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"

	"github.com/vechain/ethsim/chain"
	"github.com/vechain/ethsim/metrics"
	"github.com/vechain/ethsim/packer"
	"github.com/vechain/ethsim/queue"
	"github.com/vechain/ethsim/runtime"
)

// DefaultTxGas is the gas of a signed tx request that sets none.
const DefaultTxGas = 90000

type Options struct {
	ChainConfig *params.ChainConfig
	Coinbase    common.Address
	GasLimit    uint64
	// GasPrice is the price of legacy tx requests that set none.
	GasPrice *uint256.Int
	// BlockInterval is the period of interval mining, 0 mines on every tx.
	BlockInterval time.Duration
	Keystore      Keystore
	Logger        log.Logger
	Metrics       metrics.Metrics
}

// Solo mode is the standalone client without p2p server
type Solo struct {
	chain     chain.Chain
	packer    *packer.Packer
	pool      *TxPool
	queue     *queue.Queue
	snapshots Snapshots
	options   Options
	signer    types.Signer
	logger    log.Logger

	status     atomic.Int32
	mining     atomic.Bool
	timeOffset atomic.Int64
	now        func() time.Time

	// outcomes of awaited txs, only touched from queue tasks
	outcomes map[common.Hash]error

	blocksMined metrics.CountMeter
	txsMined    metrics.CountMeter
	txsRejected metrics.CountMeter

	stop      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// New returns Solo instance, mining is started.
func New(c chain.Chain, options Options) *Solo {
	logger := options.Logger
	if logger == nil {
		logger = log.Root()
	}
	if options.GasPrice == nil {
		options.GasPrice = new(uint256.Int)
	}
	m := metrics.OrNoop(options.Metrics)

	s := &Solo{
		chain:       c,
		packer:      packer.New(c, options.ChainConfig, options.Coinbase, options.GasLimit, m),
		pool:        NewTxPool(c),
		queue:       queue.New(queue.Options{Logger: logger, Metrics: m}),
		options:     options,
		signer:      types.LatestSigner(options.ChainConfig),
		logger:      logger.New("pkg", "solo"),
		now:         time.Now,
		outcomes:    make(map[common.Hash]error),
		blocksMined: m.GetOrCreateCountMeter("solo_blocks_mined_count"),
		txsMined:    m.GetOrCreateCountMeter("solo_txs_mined_count"),
		txsRejected: m.GetOrCreateCountMeter("solo_txs_rejected_count"),
		stop:        make(chan struct{}),
	}
	s.mining.Store(true)

	if options.BlockInterval > 0 {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.loop()
		}()
	}
	return s
}

// Chain returns the chain blocks are mined on.
func (s *Solo) Chain() chain.Chain { return s.chain }

// Pool returns the pool of txs not mined yet.
func (s *Solo) Pool() *TxPool { return s.pool }

// Options returns the options Solo was created with.
func (s *Solo) Options() Options { return s.options }

// Status returns whether a block is being processed.
func (s *Solo) Status() Status { return Status(s.status.Load()) }

// IsMining returns false between Stop and Start.
func (s *Solo) IsMining() bool { return s.mining.Load() }

func (s *Solo) instamine() bool { return s.options.BlockInterval <= 0 }

func (s *Solo) loop() {
	s.logger.Info("interval mining started", "interval", s.options.BlockInterval)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-s.stop
		cancel()
	}()

	for {
		// restarted after each seal, a busy queue delays it
		select {
		case <-s.stop:
			s.logger.Info("stopping interval mining service......")
			return
		case <-time.After(s.options.BlockInterval):
			if !s.mining.Load() {
				continue
			}
			if _, err := s.queue.Do(ctx, func() (any, error) {
				return s.seal(nil, true)
			}); err != nil && !errors.Is(err, queue.ErrClosed) && ctx.Err() == nil {
				s.logger.Error("failed to pack block", "err", err)
			}
		}
	}
}

// timestamp is the wall clock shifted by the time offset.
func (s *Solo) timestamp() uint64 {
	ts := s.now().Unix() + s.timeOffset.Load()
	if ts < 0 {
		return 0
	}
	return uint64(ts)
}

// sealed is the result of a seal.
type sealed struct {
	block    *types.Block
	receipts types.Receipts
	failures *runtime.RuntimeError
}

// seal packs the pooled txs fitting the gas limit into one block, in admission order.
// Unless allowEmpty, no block is sealed when no tx could be adopted, and the
// result is nil. It must run in a queue task.
func (s *Solo) seal(timestamp *uint64, allowEmpty bool) (*sealed, error) {
	s.status.Store(int32(Processing))
	defer s.status.Store(int32(Idle))

	ts := s.timestamp()
	if timestamp != nil {
		ts = *timestamp
	}
	flow, err := s.packer.Schedule(ts)
	if err != nil {
		return nil, err
	}

	var mined, rejected []pooledTx
	for _, ptx := range s.pool.Dump() {
		if _, err := flow.Adopt(ptx.tx); err != nil {
			if packer.IsGasLimitReached(err) {
				break
			}
			if packer.IsBadTx(err) {
				s.logger.Debug("tx rejected", "hash", ptx.tx.Hash(), "err", err)
				if ptx.awaited {
					s.outcomes[ptx.tx.Hash()] = errors.Cause(err)
				}
				rejected = append(rejected, ptx)
				continue
			}
			return nil, err
		}
		mined = append(mined, ptx)
	}

	rejectedHashes := make([]common.Hash, 0, len(rejected))
	for _, ptx := range rejected {
		rejectedHashes = append(rejectedHashes, ptx.tx.Hash())
	}
	if len(mined) == 0 && !allowEmpty {
		s.pool.Remove(rejectedHashes...)
		s.txsRejected.Add(int64(len(rejected)))
		return nil, nil
	}

	blk, receipts, err := flow.Pack()
	if err != nil {
		return nil, err
	}
	failures := flow.Failures()

	hashes := make([]common.Hash, 0, len(mined)+len(rejected))
	for _, ptx := range mined {
		hash := ptx.tx.Hash()
		hashes = append(hashes, hash)
		if ptx.awaited {
			if failures != nil && failures.Find(hash) != nil {
				s.outcomes[hash] = failures
			} else {
				s.outcomes[hash] = nil
			}
		}
	}
	hashes = append(hashes, rejectedHashes...)
	s.pool.Remove(hashes...)

	s.blocksMined.Add(1)
	s.txsMined.Add(int64(len(mined)))
	s.txsRejected.Add(int64(len(rejected)))
	s.logger.Info("📦 new block packed",
		"txs", len(receipts),
		"mgas", float64(blk.GasUsed())/1000/1000,
		"number", blk.NumberU64(),
		"hash", blk.Hash(),
	)
	if failures != nil {
		s.logger.Debug("vm errors in block", "number", blk.NumberU64(), "err", failures)
	}
	return &sealed{blk, receipts, failures}, nil
}

// sealUntilMined seals blocks until the tx left the pool and returns its outcome.
// If sealing fails the tx is dropped, its sender gets the error.
func (s *Solo) sealUntilMined(hash common.Hash) error {
	for s.pool.Contains(hash) {
		n := s.pool.Len()
		res, err := s.seal(nil, false)
		if err != nil {
			s.pool.Remove(hash)
			delete(s.outcomes, hash)
			return err
		}
		if res == nil && s.pool.Len() == n {
			s.pool.Remove(hash)
			return ErrTxDropped
		}
	}
	err, ok := s.outcomes[hash]
	if !ok {
		return ErrTxDropped
	}
	delete(s.outcomes, hash)
	return err
}

// drain seals until the pool is empty, no empty block is sealed.
func (s *Solo) drain() error {
	for s.pool.Len() > 0 {
		n := s.pool.Len()
		res, err := s.seal(nil, false)
		if err != nil {
			return err
		}
		if res == nil && s.pool.Len() == n {
			return nil
		}
	}
	return nil
}

// checkFunds rejects a tx its sender can not pay gas * price + value for
// at the head state.
func (s *Solo) checkFunds(from common.Address, tx *types.Transaction) error {
	st, err := s.chain.StateAt(s.chain.Height())
	if err != nil {
		return err
	}
	balance, err := st.GetBalance(from)
	if err != nil {
		return err
	}
	if cost := tx.Cost(); balance.ToBig().Cmp(cost) < 0 {
		return fmt.Errorf("%w: address %v have %v want %v", core.ErrInsufficientFunds, from.Hex(), balance.Dec(), cost)
	}
	return nil
}

// validate checks what does not depend on the sender's account.
func (s *Solo) validate(tx *types.Transaction) error {
	switch tx.Type() {
	case types.BlobTxType, types.SetCodeTxType:
		return runtime.ErrTxTypeNotSupported
	}
	if tx.Gas() > s.options.GasLimit {
		return ErrExceedsBlockGasLimit
	}
	gas, err := core.IntrinsicGas(tx.Data(), tx.AccessList(), nil, tx.To() == nil, true, true, true)
	if err != nil {
		return err
	}
	if tx.Gas() < gas {
		return errors.Wrapf(ErrIntrinsicGas, "have %d, want %d", tx.Gas(), gas)
	}
	return nil
}

// SendRawTransaction admits a signed tx.
func (s *Solo) SendRawTransaction(ctx context.Context, tx *types.Transaction) (common.Hash, error) {
	if tx.Protected() && tx.ChainId().Cmp(s.options.ChainConfig.ChainID) != 0 {
		return common.Hash{}, errors.Wrapf(types.ErrInvalidChainId, "have %v, want %v", tx.ChainId(), s.options.ChainConfig.ChainID)
	}
	from, err := types.Sender(s.signer, tx)
	if err != nil {
		return common.Hash{}, errors.Wrap(err, "invalid sender")
	}
	if err := s.validate(tx); err != nil {
		return common.Hash{}, err
	}
	return s.submit(ctx, from, func(nonce uint64) (*types.Transaction, error) {
		if tx.Nonce() != nonce {
			return nil, &NonceError{Expected: nonce, Given: tx.Nonce()}
		}
		if err := s.checkFunds(from, tx); err != nil {
			return nil, err
		}
		return tx, nil
	})
}

// SendTransaction signs the request with the key of its sender and admits it.
func (s *Solo) SendTransaction(ctx context.Context, req *TxRequest) (common.Hash, error) {
	if req.From == nil {
		return common.Hash{}, ErrMissingFrom
	}
	if s.options.Keystore == nil {
		return common.Hash{}, ErrUnknownAccount
	}
	key, ok := s.options.Keystore.PrivateKey(*req.From)
	if !ok {
		return common.Hash{}, ErrUnknownAccount
	}
	return s.submit(ctx, *req.From, func(nonce uint64) (*types.Transaction, error) {
		if req.Nonce != nil && *req.Nonce != nonce {
			return nil, &NonceError{Expected: nonce, Given: *req.Nonce}
		}
		tx := s.newTx(req, nonce)
		if err := s.validate(tx); err != nil {
			return nil, err
		}
		if err := s.checkFunds(*req.From, tx); err != nil {
			return nil, err
		}
		return types.SignTx(tx, s.signer, key)
	})
}

func (s *Solo) newTx(req *TxRequest, nonce uint64) *types.Transaction {
	gas := uint64(DefaultTxGas)
	if req.Gas != nil {
		gas = *req.Gas
	}
	value := new(uint256.Int)
	if req.Value != nil {
		value = req.Value
	}
	var accessList types.AccessList
	if req.AccessList != nil {
		accessList = *req.AccessList
	}

	if req.MaxFeePerGas != nil || req.MaxPriorityFeePerGas != nil {
		feeCap, tipCap := s.options.GasPrice, new(uint256.Int)
		if req.MaxFeePerGas != nil {
			feeCap = req.MaxFeePerGas
		}
		if req.MaxPriorityFeePerGas != nil {
			tipCap = req.MaxPriorityFeePerGas
		}
		return types.NewTx(&types.DynamicFeeTx{
			ChainID:    s.options.ChainConfig.ChainID,
			Nonce:      nonce,
			GasTipCap:  tipCap.ToBig(),
			GasFeeCap:  feeCap.ToBig(),
			Gas:        gas,
			To:         req.To,
			Value:      value.ToBig(),
			Data:       req.Data,
			AccessList: accessList,
		})
	}

	gasPrice := s.options.GasPrice
	if req.GasPrice != nil {
		gasPrice = req.GasPrice
	}
	if req.AccessList != nil {
		return types.NewTx(&types.AccessListTx{
			ChainID:    s.options.ChainConfig.ChainID,
			Nonce:      nonce,
			GasPrice:   gasPrice.ToBig(),
			Gas:        gas,
			To:         req.To,
			Value:      value.ToBig(),
			Data:       req.Data,
			AccessList: accessList,
		})
	}
	return types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice.ToBig(),
		Gas:      gas,
		To:       req.To,
		Value:    value.ToBig(),
		Data:     req.Data,
	})
}

// submit pools the tx. On instamine it returns once the tx is mined, with the
// VM failures of its block if the tx failed.
func (s *Solo) submit(ctx context.Context, from common.Address, build func(nonce uint64) (*types.Transaction, error)) (common.Hash, error) {
	awaited := s.instamine() && s.mining.Load()
	tx, err := s.pool.Admit(from, awaited, build)
	if err != nil {
		return common.Hash{}, err
	}
	hash := tx.Hash()
	s.logger.Debug("tx admitted", "hash", hash, "from", from, "nonce", tx.Nonce())
	if !awaited {
		return hash, nil
	}
	_, err = s.queue.Do(ctx, func() (any, error) {
		return nil, s.sealUntilMined(hash)
	})
	return hash, err
}

// Mine seals one block, at the given timestamp if not nil. Later blocks
// follow the given timestamp.
func (s *Solo) Mine(ctx context.Context, timestamp *uint64) (*types.Block, error) {
	res, err := s.queue.Do(ctx, func() (any, error) {
		if timestamp != nil {
			s.timeOffset.Store(int64(*timestamp) - s.now().Unix())
		}
		return s.seal(timestamp, true)
	})
	if err != nil {
		return nil, err
	}
	return res.(*sealed).block, nil
}

// Tick forces a mining tick while mining is enabled: one block is sealed,
// empty if nothing is pooled, then the txs left over are mined.
// Filter polls call it so that polling drives block production.
func (s *Solo) Tick(ctx context.Context) error {
	if !s.mining.Load() {
		return nil
	}
	_, err := s.queue.Do(ctx, func() (any, error) {
		if _, err := s.seal(nil, true); err != nil {
			return nil, err
		}
		return nil, s.drain()
	})
	return err
}

// Start resumes mining. On instamine the txs pooled meanwhile are mined.
func (s *Solo) Start(ctx context.Context) error {
	s.mining.Store(true)
	if !s.instamine() || s.pool.Len() == 0 {
		return nil
	}
	_, err := s.queue.Do(ctx, func() (any, error) {
		return nil, s.drain()
	})
	return err
}

// Stop pauses mining, sent txs are pooled.
func (s *Solo) Stop() {
	s.mining.Store(false)
}

// IncreaseTime shifts the clock of later blocks and returns the total shift in seconds.
func (s *Solo) IncreaseTime(seconds int64) int64 {
	return s.timeOffset.Add(seconds)
}

// TimeOffset returns the clock shift in seconds.
func (s *Solo) TimeOffset() int64 {
	return s.timeOffset.Load()
}

// Snapshot records the chain head, the clock shift and the pooled txs.
func (s *Solo) Snapshot(ctx context.Context) (uint64, error) {
	res, err := s.queue.Do(ctx, func() (any, error) {
		return s.snapshots.Push(&snapshot{
			height:     s.chain.Height(),
			timeOffset: s.timeOffset.Load(),
			pending:    s.pool.Dump(),
		}), nil
	})
	if err != nil {
		return 0, err
	}
	return res.(uint64), nil
}

// Revert restores the snapshot with the given id, dropping it and all later ones.
// It returns false for an unknown id.
func (s *Solo) Revert(ctx context.Context, id uint64) (bool, error) {
	res, err := s.queue.Do(ctx, func() (any, error) {
		snap, ok := s.snapshots.PopTo(id)
		if !ok {
			return false, nil
		}
		if s.chain.Height() > snap.height {
			if err := s.chain.Truncate(snap.height + 1); err != nil {
				return false, err
			}
		}
		awaited := make(map[common.Hash]bool)
		for _, ptx := range s.pool.Dump() {
			if ptx.awaited {
				awaited[ptx.tx.Hash()] = true
			}
		}
		pending := make([]pooledTx, len(snap.pending))
		for i, ptx := range snap.pending {
			hash := ptx.tx.Hash()
			// only senders still waiting keep waiting
			pending[i] = pooledTx{tx: ptx.tx, from: ptx.from, awaited: awaited[hash]}
			delete(awaited, hash)
		}
		s.pool.Reset(pending)
		for hash := range awaited {
			s.outcomes[hash] = ErrTxDropped
		}
		s.timeOffset.Store(snap.timeOffset)
		s.logger.Debug("reverted", "snapshot", id, "head", s.chain.Height())
		return true, nil
	})
	if err != nil {
		return false, err
	}
	return res.(bool), nil
}

// callEnv returns the state and block context msg runs in. A nil num is the
// pending block on top of the head.
func (s *Solo) callEnv(ctx context.Context, num *uint64) (*runtime.Runtime, error) {
	if num == nil {
		head := s.chain.Head()
		st, err := s.chain.StateAt(head.NumberU64())
		if err != nil {
			return nil, err
		}
		ts := s.timestamp()
		if ts < head.Time() {
			ts = head.Time()
		}
		return runtime.New(s.options.ChainConfig, st, s.packer.Context(head.NumberU64(), ts)), nil
	}
	blk, err := s.chain.BlockByNumber(ctx, *num)
	if err != nil {
		return nil, err
	}
	st, err := s.chain.StateAt(*num)
	if err != nil {
		return nil, err
	}
	return runtime.New(s.options.ChainConfig, st, &runtime.Context{
		Coinbase: blk.Coinbase(),
		Number:   blk.NumberU64(),
		Time:     blk.Time(),
		GasLimit: blk.GasLimit(),
		GetHash:  s.chain.GetHash,
	}), nil
}

// run runs fn against the given block, pending runs are sequenced through the queue.
func (s *Solo) run(ctx context.Context, num *uint64, fn func(rt *runtime.Runtime) (any, error)) (any, error) {
	task := func() (any, error) {
		rt, err := s.callEnv(ctx, num)
		if err != nil {
			return nil, err
		}
		return fn(rt)
	}
	if num == nil {
		return s.queue.Do(ctx, task)
	}
	return task()
}

// Call executes msg on the state of block num, nil for pending, leaving no change.
// A zero gas limit is the block gas limit.
func (s *Solo) Call(ctx context.Context, msg *core.Message, num *uint64) (*runtime.CallResult, error) {
	res, err := s.run(ctx, num, func(rt *runtime.Runtime) (any, error) {
		m := *msg
		if m.GasLimit == 0 {
			m.GasLimit = rt.Context().GasLimit
		}
		return rt.Call(&m)
	})
	if err != nil {
		return nil, err
	}
	return res.(*runtime.CallResult), nil
}

// EstimateGas returns the lowest gas limit msg succeeds with on block num, nil for pending.
func (s *Solo) EstimateGas(ctx context.Context, msg *core.Message, num *uint64) (uint64, error) {
	res, err := s.run(ctx, num, func(rt *runtime.Runtime) (any, error) {
		return rt.EstimateGas(msg)
	})
	if err != nil {
		return 0, err
	}
	return res.(uint64), nil
}

// Close stops mining, fails the queued requests with queue.ErrClosed and closes the chain.
func (s *Solo) Close() (err error) {
	s.closeOnce.Do(func() {
		close(s.stop)
		s.wg.Wait()
		s.queue.Close()
		s.pool.Close()
		err = s.chain.Close()
	})
	return
}
