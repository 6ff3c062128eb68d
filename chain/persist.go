// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package chain

import (
	"encoding/binary"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/vechain/ethsim/block"
	"github.com/vechain/ethsim/kv"
)

const (
	hdrStoreName     = "chain.hdr"   // block number => header
	bodyStoreName    = "chain.body"  // block number => txs
	rcptStoreName    = "chain.rcpt"  // block number => receipts
	hashStoreName    = "chain.hash"  // block hash => block number
	txIndexStoreName = "chain.txi"   // tx hash => tx location
	propStoreName    = "chain.props" // named properties such as head
)

var (
	headKey = []byte("head")
	baseKey = []byte("base")
)

// storedReceipt keeps the receipt fields that cannot be derived from the block.
type storedReceipt struct {
	Type              uint8
	Status            uint64
	CumulativeGasUsed uint64
	GasUsed           uint64
	ContractAddress   common.Address
	EffectiveGasPrice *big.Int
	Logs              []*storedLog
}

type storedLog struct {
	Address common.Address
	Topics  []common.Hash
	Data    []byte
}

func newStoredReceipt(r *types.Receipt) *storedReceipt {
	s := &storedReceipt{
		Type:              r.Type,
		Status:            r.Status,
		CumulativeGasUsed: r.CumulativeGasUsed,
		GasUsed:           r.GasUsed,
		ContractAddress:   r.ContractAddress,
		EffectiveGasPrice: r.EffectiveGasPrice,
	}
	if s.EffectiveGasPrice == nil {
		s.EffectiveGasPrice = new(big.Int)
	}
	for _, log := range r.Logs {
		s.Logs = append(s.Logs, &storedLog{log.Address, log.Topics, log.Data})
	}
	return s
}

// receipt restores the receipt, leaving block derived fields to block.Stamp.
func (s *storedReceipt) receipt() *types.Receipt {
	r := &types.Receipt{
		Type:              s.Type,
		Status:            s.Status,
		CumulativeGasUsed: s.CumulativeGasUsed,
		GasUsed:           s.GasUsed,
		ContractAddress:   s.ContractAddress,
		EffectiveGasPrice: s.EffectiveGasPrice,
		Logs:              []*types.Log{},
	}
	for _, log := range s.Logs {
		r.Logs = append(r.Logs, &types.Log{Address: log.Address, Topics: log.Topics, Data: log.Data})
	}
	r.Bloom = block.LogsBloom(r.Logs)
	return r
}

// TxLocation locates a transaction in the chain.
type TxLocation struct {
	BlockHash   common.Hash
	BlockNumber uint64
	Index       uint64
}

func numberKey(num uint64) []byte {
	return binary.BigEndian.AppendUint64(nil, num)
}

func saveRLP(w kv.Putter, key []byte, val any) error {
	data, err := rlp.EncodeToBytes(val)
	if err != nil {
		return err
	}
	return w.Put(key, data)
}

func loadRLP(r kv.Getter, key []byte, val any) error {
	data, err := r.Get(key)
	if err != nil {
		if r.IsNotFound(err) {
			return ErrNotFound
		}
		return err
	}
	return rlp.DecodeBytes(data, val)
}
