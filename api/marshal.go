// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package api

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
)

func hexBig(b *big.Int) *hexutil.Big {
	if b == nil {
		return (*hexutil.Big)(new(big.Int))
	}
	return (*hexutil.Big)(b)
}

// senderOf recovers the sender with the signer of the tx's own chain id,
// upstream txs of a forked chain included.
func senderOf(tx *types.Transaction) common.Address {
	from, _ := types.Sender(types.LatestSignerForChainID(tx.ChainId()), tx)
	return from
}

func marshalHeader(h *types.Header) map[string]any {
	result := map[string]any{
		"number":           hexBig(h.Number),
		"hash":             h.Hash(),
		"parentHash":       h.ParentHash,
		"nonce":            h.Nonce,
		"mixHash":          h.MixDigest,
		"sha3Uncles":       h.UncleHash,
		"logsBloom":        h.Bloom,
		"stateRoot":        h.Root,
		"miner":            h.Coinbase,
		"difficulty":       hexBig(h.Difficulty),
		"totalDifficulty":  hexBig(h.Difficulty),
		"extraData":        hexutil.Bytes(h.Extra),
		"gasLimit":         hexutil.Uint64(h.GasLimit),
		"gasUsed":          hexutil.Uint64(h.GasUsed),
		"timestamp":        hexutil.Uint64(h.Time),
		"transactionsRoot": h.TxHash,
		"receiptsRoot":     h.ReceiptHash,
	}
	if h.BaseFee != nil {
		result["baseFeePerGas"] = hexBig(h.BaseFee)
	}
	return result
}

// marshalBlock renders a block, with full txs or their hashes.
func marshalBlock(blk *types.Block, fullTx bool) map[string]any {
	result := marshalHeader(blk.Header())
	result["size"] = hexutil.Uint64(blk.Size())
	result["uncles"] = []common.Hash{}

	txs := blk.Transactions()
	if fullTx {
		list := make([]*RPCTransaction, len(txs))
		for i, tx := range txs {
			list[i] = newRPCTransaction(tx, blk.Hash(), blk.NumberU64(), uint64(i), blk.BaseFee())
		}
		result["transactions"] = list
	} else {
		list := make([]common.Hash, len(txs))
		for i, tx := range txs {
			list[i] = tx.Hash()
		}
		result["transactions"] = list
	}
	return result
}

// RPCTransaction is a tx as served over rpc.
type RPCTransaction struct {
	BlockHash            *common.Hash      `json:"blockHash"`
	BlockNumber          *hexutil.Big      `json:"blockNumber"`
	From                 common.Address    `json:"from"`
	Gas                  hexutil.Uint64    `json:"gas"`
	GasPrice             *hexutil.Big      `json:"gasPrice"`
	MaxFeePerGas         *hexutil.Big      `json:"maxFeePerGas,omitempty"`
	MaxPriorityFeePerGas *hexutil.Big      `json:"maxPriorityFeePerGas,omitempty"`
	Hash                 common.Hash       `json:"hash"`
	Input                hexutil.Bytes     `json:"input"`
	Nonce                hexutil.Uint64    `json:"nonce"`
	To                   *common.Address   `json:"to"`
	TransactionIndex     *hexutil.Uint64   `json:"transactionIndex"`
	Value                *hexutil.Big      `json:"value"`
	Type                 hexutil.Uint64    `json:"type"`
	AccessList           *types.AccessList `json:"accessList,omitempty"`
	ChainID              *hexutil.Big      `json:"chainId,omitempty"`
	V                    *hexutil.Big      `json:"v"`
	R                    *hexutil.Big      `json:"r"`
	S                    *hexutil.Big      `json:"s"`
}

// newRPCTransaction renders a mined tx, or a pending one if blockHash is zero.
func newRPCTransaction(tx *types.Transaction, blockHash common.Hash, blockNumber, index uint64, baseFee *big.Int) *RPCTransaction {
	v, r, s := tx.RawSignatureValues()
	result := &RPCTransaction{
		From:     senderOf(tx),
		Gas:      hexutil.Uint64(tx.Gas()),
		GasPrice: hexBig(tx.GasPrice()),
		Hash:     tx.Hash(),
		Input:    hexutil.Bytes(tx.Data()),
		Nonce:    hexutil.Uint64(tx.Nonce()),
		To:       tx.To(),
		Value:    hexBig(tx.Value()),
		Type:     hexutil.Uint64(tx.Type()),
		V:        hexBig(v),
		R:        hexBig(r),
		S:        hexBig(s),
	}
	if blockHash != (common.Hash{}) {
		result.BlockHash = &blockHash
		result.BlockNumber = hexBig(new(big.Int).SetUint64(blockNumber))
		result.TransactionIndex = (*hexutil.Uint64)(&index)
	}
	if tx.Type() != types.LegacyTxType {
		al := tx.AccessList()
		result.AccessList = &al
		result.ChainID = hexBig(tx.ChainId())
	} else if tx.Protected() {
		result.ChainID = hexBig(tx.ChainId())
	}
	if tx.Type() == types.DynamicFeeTxType {
		result.MaxFeePerGas = hexBig(tx.GasFeeCap())
		result.MaxPriorityFeePerGas = hexBig(tx.GasTipCap())
		if result.BlockHash != nil {
			result.GasPrice = hexBig(effectiveGasPrice(tx, baseFee))
		} else {
			result.GasPrice = hexBig(tx.GasFeeCap())
		}
	}
	return result
}

func effectiveGasPrice(tx *types.Transaction, baseFee *big.Int) *big.Int {
	if baseFee == nil {
		return tx.GasPrice()
	}
	tip, _ := tx.EffectiveGasTip(baseFee)
	return new(big.Int).Add(tip, baseFee)
}

// marshalReceipt renders a receipt of tx.
func marshalReceipt(r *types.Receipt, tx *types.Transaction) map[string]any {
	result := map[string]any{
		"blockHash":         r.BlockHash,
		"blockNumber":       hexBig(r.BlockNumber),
		"transactionHash":   r.TxHash,
		"transactionIndex":  hexutil.Uint64(r.TransactionIndex),
		"from":              senderOf(tx),
		"to":                tx.To(),
		"gasUsed":           hexutil.Uint64(r.GasUsed),
		"cumulativeGasUsed": hexutil.Uint64(r.CumulativeGasUsed),
		"effectiveGasPrice": hexBig(r.EffectiveGasPrice),
		"contractAddress":   nil,
		"logs":              r.Logs,
		"logsBloom":         r.Bloom,
		"type":              hexutil.Uint(r.Type),
		"status":            hexutil.Uint64(r.Status),
	}
	if r.Logs == nil {
		result["logs"] = []*types.Log{}
	}
	if r.ContractAddress != (common.Address{}) {
		result["contractAddress"] = r.ContractAddress
	}
	return result
}
