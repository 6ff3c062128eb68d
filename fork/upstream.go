// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package fork

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/pkg/errors"
	"go.uber.org/ratelimit"

	"github.com/vechain/ethsim/metrics"
)

//go:generate mockgen -source=$GOFILE -destination=mock_upstream_test.go -package=$GOPACKAGE

// Upstream is the remote chain the fork reads through to.
// *ethclient.Client implements it.
type Upstream interface {
	BlockNumber(ctx context.Context) (uint64, error)
	BlockByNumber(ctx context.Context, number *big.Int) (*types.Block, error)
	BlockByHash(ctx context.Context, hash common.Hash) (*types.Block, error)
	BlockReceipts(ctx context.Context, blockNrOrHash rpc.BlockNumberOrHash) ([]*types.Receipt, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	NonceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (uint64, error)
	CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
	StorageAt(ctx context.Context, account common.Address, key common.Hash, blockNumber *big.Int) ([]byte, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
	Close()
}

var _ Upstream = (*ethclient.Client)(nil)

// RPCUpstream limits the request rate to an upstream and meters every call.
// Errors are returned as-is, never retried.
type RPCUpstream struct {
	client  Upstream
	limiter ratelimit.Limiter
	calls   metrics.HistogramVecMeter
}

// NewRPCUpstream wraps client. A rateLimit of 0 disables limiting.
func NewRPCUpstream(client Upstream, rateLimit int, m metrics.Metrics) *RPCUpstream {
	limiter := ratelimit.NewUnlimited()
	if rateLimit > 0 {
		limiter = ratelimit.New(rateLimit)
	}
	return &RPCUpstream{
		client:  client,
		limiter: limiter,
		calls: metrics.OrNoop(m).GetOrCreateHistogramVecMeter(
			"upstream_call_duration_ms", []string{"method", "status"}, metrics.BucketHTTPReqs),
	}
}

// Dial connects to the upstream json-rpc endpoint.
func Dial(ctx context.Context, url string, rateLimit int, m metrics.Metrics) (*RPCUpstream, error) {
	client, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, errors.Wrap(err, "dial upstream")
	}
	return NewRPCUpstream(client, rateLimit, m), nil
}

// begin waits for the limiter and returns the function recording the call.
func (u *RPCUpstream) begin(method string) func(err error) {
	u.limiter.Take()
	started := time.Now()
	return func(err error) {
		status := "ok"
		if err != nil {
			status = "error"
		}
		u.calls.ObserveWithLabels(time.Since(started).Milliseconds(), map[string]string{"method": method, "status": status})
	}
}

func (u *RPCUpstream) BlockNumber(ctx context.Context) (num uint64, err error) {
	done := u.begin("block_number")
	defer func() { done(err) }()
	return u.client.BlockNumber(ctx)
}

func (u *RPCUpstream) BlockByNumber(ctx context.Context, number *big.Int) (blk *types.Block, err error) {
	done := u.begin("block_by_number")
	defer func() { done(err) }()
	return u.client.BlockByNumber(ctx, number)
}

func (u *RPCUpstream) BlockByHash(ctx context.Context, hash common.Hash) (blk *types.Block, err error) {
	done := u.begin("block_by_hash")
	defer func() { done(err) }()
	return u.client.BlockByHash(ctx, hash)
}

func (u *RPCUpstream) BlockReceipts(ctx context.Context, blockNrOrHash rpc.BlockNumberOrHash) (receipts []*types.Receipt, err error) {
	done := u.begin("block_receipts")
	defer func() { done(err) }()
	return u.client.BlockReceipts(ctx, blockNrOrHash)
}

func (u *RPCUpstream) TransactionReceipt(ctx context.Context, txHash common.Hash) (receipt *types.Receipt, err error) {
	done := u.begin("transaction_receipt")
	defer func() { done(err) }()
	return u.client.TransactionReceipt(ctx, txHash)
}

func (u *RPCUpstream) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (bal *big.Int, err error) {
	done := u.begin("balance_at")
	defer func() { done(err) }()
	return u.client.BalanceAt(ctx, account, blockNumber)
}

func (u *RPCUpstream) NonceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (nonce uint64, err error) {
	done := u.begin("nonce_at")
	defer func() { done(err) }()
	return u.client.NonceAt(ctx, account, blockNumber)
}

func (u *RPCUpstream) CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) (code []byte, err error) {
	done := u.begin("code_at")
	defer func() { done(err) }()
	return u.client.CodeAt(ctx, account, blockNumber)
}

func (u *RPCUpstream) StorageAt(ctx context.Context, account common.Address, key common.Hash, blockNumber *big.Int) (val []byte, err error) {
	done := u.begin("storage_at")
	defer func() { done(err) }()
	return u.client.StorageAt(ctx, account, key, blockNumber)
}

func (u *RPCUpstream) FilterLogs(ctx context.Context, q ethereum.FilterQuery) (logs []types.Log, err error) {
	done := u.begin("filter_logs")
	defer func() { done(err) }()
	return u.client.FilterLogs(ctx, q)
}

func (u *RPCUpstream) Close() {
	u.client.Close()
}
