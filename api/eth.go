// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package api

import (
	"context"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/pkg/errors"

	"github.com/vechain/ethsim/chain"
	"github.com/vechain/ethsim/logdb"
	"github.com/vechain/ethsim/runtime"
)

// EthAPI serves the eth namespace.
type EthAPI struct {
	b *backend
}

func (api *EthAPI) Accounts() []common.Address {
	return api.b.accounts.Addresses()
}

func (api *EthAPI) BlockNumber() hexutil.Uint64 {
	return hexutil.Uint64(api.b.chain.Height())
}

func (api *EthAPI) ChainId() hexutil.Uint64 {
	return hexutil.Uint64(api.b.options.ChainID)
}

func (api *EthAPI) Coinbase() common.Address {
	return api.b.solo.Options().Coinbase
}

func (api *EthAPI) GasPrice() *hexutil.Big {
	return (*hexutil.Big)(api.b.solo.Options().GasPrice.ToBig())
}

func (api *EthAPI) Mining() bool {
	return api.b.solo.IsMining()
}

func (api *EthAPI) Syncing() bool {
	return false
}

func (api *EthAPI) GetBalance(ctx context.Context, addr common.Address, tag *BlockTag) (*hexutil.Big, error) {
	st, err := api.b.stateAt(ctx, tag)
	if err != nil {
		return nil, err
	}
	bal, err := st.GetBalance(addr)
	if err != nil {
		return nil, err
	}
	return (*hexutil.Big)(bal.ToBig()), nil
}

func (api *EthAPI) GetCode(ctx context.Context, addr common.Address, tag *BlockTag) (hexutil.Bytes, error) {
	st, err := api.b.stateAt(ctx, tag)
	if err != nil {
		return nil, err
	}
	code, err := st.GetCode(addr)
	if err != nil {
		return nil, err
	}
	return code, nil
}

func (api *EthAPI) GetStorageAt(ctx context.Context, addr common.Address, slot string, tag *BlockTag) (hexutil.Bytes, error) {
	key, err := decodeSlot(slot)
	if err != nil {
		return nil, err
	}
	st, err := api.b.stateAt(ctx, tag)
	if err != nil {
		return nil, err
	}
	val, err := st.GetStorage(addr, key)
	if err != nil {
		return nil, err
	}
	return val[:], nil
}

// decodeSlot accepts a hex slot of up to 32 bytes, leading zeros optional.
func decodeSlot(s string) (common.Hash, error) {
	digits := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(digits) > 2*common.HashLength {
		return common.Hash{}, errors.New("storage slot too long")
	}
	v, ok := new(big.Int).SetString("0"+digits, 16)
	if !ok {
		return common.Hash{}, errors.Errorf("invalid storage slot %q", s)
	}
	return common.BigToHash(v), nil
}

func (api *EthAPI) GetTransactionCount(ctx context.Context, addr common.Address, tag *BlockTag) (hexutil.Uint64, error) {
	if tag != nil && tag.IsPending() {
		nonce, err := api.b.solo.Pool().PendingNonce(addr)
		return hexutil.Uint64(nonce), err
	}
	st, err := api.b.stateAt(ctx, tag)
	if err != nil {
		return 0, err
	}
	nonce, err := st.GetNonce(addr)
	return hexutil.Uint64(nonce), err
}

func (api *EthAPI) GetBlockByNumber(ctx context.Context, tag BlockTag, fullTx bool) (map[string]any, error) {
	blk, err := api.b.block(ctx, tag)
	if err != nil || blk == nil {
		return nil, err
	}
	return marshalBlock(blk, fullTx), nil
}

func (api *EthAPI) GetBlockByHash(ctx context.Context, hash common.Hash, fullTx bool) (map[string]any, error) {
	blk, err := api.b.block(ctx, BlockTag{Hash: &hash})
	if err != nil || blk == nil {
		return nil, err
	}
	return marshalBlock(blk, fullTx), nil
}

func (api *EthAPI) GetBlockTransactionCountByNumber(ctx context.Context, tag BlockTag) (*hexutil.Uint, error) {
	blk, err := api.b.block(ctx, tag)
	if err != nil || blk == nil {
		return nil, err
	}
	n := hexutil.Uint(len(blk.Transactions()))
	return &n, nil
}

func (api *EthAPI) GetBlockTransactionCountByHash(ctx context.Context, hash common.Hash) (*hexutil.Uint, error) {
	return api.GetBlockTransactionCountByNumber(ctx, BlockTag{Hash: &hash})
}

func (api *EthAPI) GetTransactionByBlockNumberAndIndex(ctx context.Context, tag BlockTag, index hexutil.Uint) (*RPCTransaction, error) {
	blk, err := api.b.block(ctx, tag)
	if err != nil || blk == nil {
		return nil, err
	}
	txs := blk.Transactions()
	if int(index) >= len(txs) {
		return nil, nil
	}
	return newRPCTransaction(txs[index], blk.Hash(), blk.NumberU64(), uint64(index), blk.BaseFee()), nil
}

func (api *EthAPI) GetTransactionByBlockHashAndIndex(ctx context.Context, hash common.Hash, index hexutil.Uint) (*RPCTransaction, error) {
	return api.GetTransactionByBlockNumberAndIndex(ctx, BlockTag{Hash: &hash}, index)
}

// GetTransactionByHash returns a mined or pooled tx, nil if unknown.
func (api *EthAPI) GetTransactionByHash(ctx context.Context, hash common.Hash) (*RPCTransaction, error) {
	tx, loc, err := api.b.chain.TransactionByHash(ctx, hash)
	if err == nil {
		blk, err := api.b.chain.BlockByNumber(ctx, loc.BlockNumber)
		if err != nil {
			return nil, err
		}
		return newRPCTransaction(tx, loc.BlockHash, loc.BlockNumber, loc.Index, blk.BaseFee()), nil
	}
	if !chain.IsNotFound(err) {
		return nil, err
	}
	if tx := api.b.solo.Pool().Get(hash); tx != nil {
		return newRPCTransaction(tx, common.Hash{}, 0, 0, nil), nil
	}
	return nil, nil
}

func (api *EthAPI) GetTransactionReceipt(ctx context.Context, hash common.Hash) (map[string]any, error) {
	tx, _, err := api.b.chain.TransactionByHash(ctx, hash)
	if err != nil {
		if chain.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	receipt, err := api.b.chain.ReceiptByHash(ctx, hash)
	if err != nil {
		if chain.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return marshalReceipt(receipt, tx), nil
}

// sent maps the VM failures of a mined tx according to the error mode.
func (api *EthAPI) sent(hash common.Hash, err error) (common.Hash, error) {
	if err == nil {
		return hash, nil
	}
	var rtErr *runtime.RuntimeError
	if errors.As(err, &rtErr) {
		if !api.b.options.VMErrorsOnRPC {
			return hash, nil
		}
		return hash, sendError(rtErr)
	}
	return common.Hash{}, err
}

func (api *EthAPI) SendTransaction(ctx context.Context, args TransactionArgs) (common.Hash, error) {
	req, err := args.txRequest(api.b.options.ChainID)
	if err != nil {
		return common.Hash{}, err
	}
	return api.sent(api.b.solo.SendTransaction(ctx, req))
}

func (api *EthAPI) SendRawTransaction(ctx context.Context, input hexutil.Bytes) (common.Hash, error) {
	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(input); err != nil {
		return common.Hash{}, err
	}
	return api.sent(api.b.solo.SendRawTransaction(ctx, tx))
}

// Sign signs the EIP-191 text hash of data with the key of addr.
func (api *EthAPI) Sign(addr common.Address, data hexutil.Bytes) (hexutil.Bytes, error) {
	return api.b.accounts.SignText(addr, data)
}

func (api *EthAPI) Call(ctx context.Context, args TransactionArgs, tag *BlockTag) (hexutil.Bytes, error) {
	msg, err := args.message()
	if err != nil {
		return nil, err
	}
	num, err := api.b.callNumber(ctx, tag)
	if err != nil {
		return nil, err
	}
	res, err := api.b.solo.Call(ctx, msg, num)
	if err != nil {
		return nil, err
	}
	if res.Failure != nil {
		if api.b.options.VMErrorsOnRPC {
			return nil, callError(res.Failure)
		}
		return hexutil.Bytes{}, nil
	}
	return res.ReturnData, nil
}

func (api *EthAPI) EstimateGas(ctx context.Context, args TransactionArgs, tag *BlockTag) (hexutil.Uint64, error) {
	msg, err := args.message()
	if err != nil {
		return 0, err
	}
	num, err := api.b.callNumber(ctx, tag)
	if err != nil {
		return 0, err
	}
	gas, err := api.b.solo.EstimateGas(ctx, msg, num)
	if err != nil {
		var f *runtime.Failure
		if errors.As(err, &f) {
			return 0, callError(f)
		}
		return 0, err
	}
	return hexutil.Uint64(gas), nil
}

// logFilter resolves crit into a range query, a nil bound is the head.
func (api *EthAPI) logFilter(ctx context.Context, crit FilterCriteria) (*logdb.Filter, error) {
	f := &logdb.Filter{
		Addresses: crit.Addresses,
		Topics:    crit.Topics,
		Limit:     api.b.options.LogsLimit,
	}
	if crit.BlockHash != nil {
		num, err := api.b.number(ctx, BlockTag{Hash: crit.BlockHash})
		if err != nil {
			return nil, err
		}
		f.FromBlock, f.ToBlock = num, num
		return f, nil
	}
	resolve := func(tag *BlockTag) (uint64, error) {
		if tag == nil {
			return api.b.chain.Height(), nil
		}
		return api.b.number(ctx, *tag)
	}
	var err error
	if f.FromBlock, err = resolve(crit.FromBlock); err != nil {
		return nil, err
	}
	if crit.ToBlock != nil && crit.ToBlock.Number != nil && *crit.ToBlock.Number > api.b.chain.Height() {
		// ranges reaching past the head stop at it
		f.ToBlock = api.b.chain.Height()
	} else if f.ToBlock, err = resolve(crit.ToBlock); err != nil {
		return nil, err
	}
	return f, nil
}

func (api *EthAPI) GetLogs(ctx context.Context, crit FilterCriteria) ([]*types.Log, error) {
	f, err := api.logFilter(ctx, crit)
	if err != nil {
		return nil, err
	}
	if f.FromBlock > f.ToBlock {
		return []*types.Log{}, nil
	}
	return api.b.chain.FilterLogs(ctx, f)
}

func (api *EthAPI) NewFilter(ctx context.Context, crit FilterCriteria) (rpc.ID, error) {
	c, err := crit.criteria(func(tag BlockTag) (uint64, error) {
		if tag.Number != nil {
			return *tag.Number, nil
		}
		return api.b.number(ctx, tag)
	})
	if err != nil {
		return "", err
	}
	return api.b.filters.NewLogFilter(c)
}

func (api *EthAPI) NewBlockFilter() rpc.ID {
	return api.b.filters.NewBlockFilter()
}

func (api *EthAPI) NewPendingTransactionFilter() rpc.ID {
	return api.b.filters.NewPendingTxFilter()
}

func (api *EthAPI) UninstallFilter(id rpc.ID) bool {
	return api.b.filters.Uninstall(id)
}

func (api *EthAPI) GetFilterChanges(ctx context.Context, id rpc.ID) (any, error) {
	return api.b.filters.Changes(ctx, id)
}

func (api *EthAPI) GetFilterLogs(ctx context.Context, id rpc.ID) ([]*types.Log, error) {
	return api.b.filters.Logs(ctx, id)
}
