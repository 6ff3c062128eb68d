// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package block assembles the blocks mined by the simulator.
package block

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/trie"
)

// Builder to make it easy to build a block object.
// The block hash depends only on the header fields and the ordered tx list,
// so building the same content twice yields indistinguishable blocks.
type Builder struct {
	header   types.Header
	txs      types.Transactions
	receipts types.Receipts
}

// ParentHash set parent hash.
func (b *Builder) ParentHash(hash common.Hash) *Builder {
	b.header.ParentHash = hash
	return b
}

// Number set block number.
func (b *Builder) Number(num uint64) *Builder {
	b.header.Number = new(big.Int).SetUint64(num)
	return b
}

// Timestamp set timestamp.
func (b *Builder) Timestamp(ts uint64) *Builder {
	b.header.Time = ts
	return b
}

// GasLimit set gas limit.
func (b *Builder) GasLimit(limit uint64) *Builder {
	b.header.GasLimit = limit
	return b
}

// GasUsed set gas used.
func (b *Builder) GasUsed(used uint64) *Builder {
	b.header.GasUsed = used
	return b
}

// Coinbase set recipient of fees.
func (b *Builder) Coinbase(addr common.Address) *Builder {
	b.header.Coinbase = addr
	return b
}

// StateRoot set state root.
func (b *Builder) StateRoot(hash common.Hash) *Builder {
	b.header.Root = hash
	return b
}

// Extra set extra data.
func (b *Builder) Extra(data []byte) *Builder {
	b.header.Extra = common.CopyBytes(data)
	return b
}

// Transaction add a transaction with its receipt.
func (b *Builder) Transaction(tx *types.Transaction, receipt *types.Receipt) *Builder {
	b.txs = append(b.txs, tx)
	b.receipts = append(b.receipts, receipt)
	return b
}

// Build build a block object.
// Transactions root, receipts root and logs bloom are derived from the added content.
func (b *Builder) Build() *types.Block {
	header := b.header
	if header.Number == nil {
		header.Number = new(big.Int)
	}
	header.Difficulty = new(big.Int)
	header.BaseFee = new(big.Int)
	header.MixDigest = common.Hash{}

	return types.NewBlock(&header, &types.Body{Transactions: b.txs}, b.receipts, trie.NewStackTrie(nil))
}

// LogsBloom computes the bloom filter of logs.
func LogsBloom(logs []*types.Log) types.Bloom {
	var bloom types.Bloom
	for _, log := range logs {
		bloom.Add(log.Address.Bytes())
		for _, topic := range log.Topics {
			bloom.Add(topic.Bytes())
		}
	}
	return bloom
}

// Stamp fills the block derived fields of receipts and their logs.
// Log indexes run across the whole block.
func Stamp(blk *types.Block, receipts types.Receipts) {
	var (
		hash     = blk.Hash()
		num      = blk.Number()
		logIndex uint
	)
	for i, r := range receipts {
		tx := blk.Transactions()[i]
		r.TxHash = tx.Hash()
		r.BlockHash = hash
		r.BlockNumber = new(big.Int).Set(num)
		r.TransactionIndex = uint(i)
		for _, log := range r.Logs {
			log.TxHash = r.TxHash
			log.TxIndex = uint(i)
			log.BlockHash = hash
			log.BlockNumber = num.Uint64()
			log.Index = logIndex
			logIndex++
		}
	}
}
