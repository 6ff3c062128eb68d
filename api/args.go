// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package api

import (
	"bytes"
	"encoding/json"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"

	"github.com/vechain/ethsim/filters"
	"github.com/vechain/ethsim/solo"
)

// TransactionArgs are the arguments of eth_sendTransaction, eth_call and eth_estimateGas.
type TransactionArgs struct {
	From                 *common.Address   `json:"from"`
	To                   *common.Address   `json:"to"`
	Gas                  *hexutil.Uint64   `json:"gas"`
	GasPrice             *hexutil.Big      `json:"gasPrice"`
	MaxFeePerGas         *hexutil.Big      `json:"maxFeePerGas"`
	MaxPriorityFeePerGas *hexutil.Big      `json:"maxPriorityFeePerGas"`
	Value                *hexutil.Big      `json:"value"`
	Nonce                *hexutil.Uint64   `json:"nonce"`
	Data                 *hexutil.Bytes    `json:"data"`
	Input                *hexutil.Bytes    `json:"input"`
	AccessList           *types.AccessList `json:"accessList"`
	ChainID              *hexutil.Big      `json:"chainId"`
}

// data returns input, or data if input is unset.
func (args *TransactionArgs) data() ([]byte, error) {
	if args.Input != nil && args.Data != nil && !bytes.Equal(*args.Input, *args.Data) {
		return nil, errors.New(`both "data" and "input" are set and not equal`)
	}
	if args.Input != nil {
		return *args.Input, nil
	}
	if args.Data != nil {
		return *args.Data, nil
	}
	return nil, nil
}

func toUint256(name string, b *hexutil.Big) (*uint256.Int, error) {
	if b == nil {
		return nil, nil
	}
	v, overflow := uint256.FromBig((*big.Int)(b))
	if overflow || (*big.Int)(b).Sign() < 0 {
		return nil, errors.Errorf("%s out of range", name)
	}
	return v, nil
}

// txRequest converts args of eth_sendTransaction.
func (args *TransactionArgs) txRequest(chainID uint64) (*solo.TxRequest, error) {
	if args.ChainID != nil && (*big.Int)(args.ChainID).Cmp(new(big.Int).SetUint64(chainID)) != 0 {
		return nil, errors.Errorf("chainId does not match node's (have=%v, want=%v)", args.ChainID, chainID)
	}
	data, err := args.data()
	if err != nil {
		return nil, err
	}
	req := &solo.TxRequest{
		From:       args.From,
		To:         args.To,
		Data:       data,
		AccessList: args.AccessList,
	}
	if args.Gas != nil {
		gas := uint64(*args.Gas)
		req.Gas = &gas
	}
	if args.Nonce != nil {
		nonce := uint64(*args.Nonce)
		req.Nonce = &nonce
	}
	if req.GasPrice, err = toUint256("gasPrice", args.GasPrice); err != nil {
		return nil, err
	}
	if req.MaxFeePerGas, err = toUint256("maxFeePerGas", args.MaxFeePerGas); err != nil {
		return nil, err
	}
	if req.MaxPriorityFeePerGas, err = toUint256("maxPriorityFeePerGas", args.MaxPriorityFeePerGas); err != nil {
		return nil, err
	}
	if req.Value, err = toUint256("value", args.Value); err != nil {
		return nil, err
	}
	return req, nil
}

// message converts args of eth_call and eth_estimateGas.
// Unset gas is left zero, meaning the block gas limit.
func (args *TransactionArgs) message() (*core.Message, error) {
	data, err := args.data()
	if err != nil {
		return nil, err
	}
	if args.GasPrice != nil && (args.MaxFeePerGas != nil || args.MaxPriorityFeePerGas != nil) {
		return nil, errors.New("both gasPrice and (maxFeePerGas or maxPriorityFeePerGas) specified")
	}
	msg := &core.Message{
		To:        args.To,
		Value:     new(big.Int),
		GasPrice:  new(big.Int),
		GasFeeCap: new(big.Int),
		GasTipCap: new(big.Int),
		Data:      data,
	}
	if args.From != nil {
		msg.From = *args.From
	}
	if args.Gas != nil {
		msg.GasLimit = uint64(*args.Gas)
	}
	if args.Value != nil {
		msg.Value = (*big.Int)(args.Value)
	}
	switch {
	case args.GasPrice != nil:
		msg.GasPrice = (*big.Int)(args.GasPrice)
		msg.GasFeeCap = msg.GasPrice
		msg.GasTipCap = msg.GasPrice
	case args.MaxFeePerGas != nil || args.MaxPriorityFeePerGas != nil:
		if args.MaxFeePerGas != nil {
			msg.GasFeeCap = (*big.Int)(args.MaxFeePerGas)
		}
		if args.MaxPriorityFeePerGas != nil {
			msg.GasTipCap = (*big.Int)(args.MaxPriorityFeePerGas)
		}
		// base fee is zero, the tip is paid in full up to the cap
		msg.GasPrice = msg.GasTipCap
		if msg.GasPrice.Cmp(msg.GasFeeCap) > 0 {
			msg.GasPrice = msg.GasFeeCap
		}
	}
	if args.AccessList != nil {
		msg.AccessList = *args.AccessList
	}
	return msg, nil
}

// FilterCriteria are the arguments of eth_newFilter and eth_getLogs.
type FilterCriteria struct {
	BlockHash *common.Hash
	FromBlock *BlockTag
	ToBlock   *BlockTag
	Addresses []common.Address
	Topics    [][]common.Hash
}

// UnmarshalJSON implements json.Unmarshaler.
// The address is a single address or a list; each topic position is
// null, a single topic or a list of alternatives.
func (c *FilterCriteria) UnmarshalJSON(data []byte) error {
	var raw struct {
		BlockHash *common.Hash `json:"blockHash"`
		FromBlock *BlockTag    `json:"fromBlock"`
		ToBlock   *BlockTag    `json:"toBlock"`
		Address   any          `json:"address"`
		Topics    []any        `json:"topics"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.BlockHash != nil && (raw.FromBlock != nil || raw.ToBlock != nil) {
		return errors.New("cannot specify both blockHash and fromBlock/toBlock")
	}
	c.BlockHash = raw.BlockHash
	c.FromBlock = raw.FromBlock
	c.ToBlock = raw.ToBlock

	switch addr := raw.Address.(type) {
	case nil:
	case string:
		a, err := decodeAddress(addr)
		if err != nil {
			return err
		}
		c.Addresses = []common.Address{a}
	case []any:
		for _, item := range addr {
			s, ok := item.(string)
			if !ok {
				return errors.New("invalid address in list")
			}
			a, err := decodeAddress(s)
			if err != nil {
				return err
			}
			c.Addresses = append(c.Addresses, a)
		}
	default:
		return errors.New("invalid addresses in query")
	}

	if len(raw.Topics) > 4 {
		return errors.New("too many topics")
	}
	c.Topics = make([][]common.Hash, len(raw.Topics))
	for i, t := range raw.Topics {
		switch topic := t.(type) {
		case nil:
		case string:
			h, err := decodeTopic(topic)
			if err != nil {
				return err
			}
			c.Topics[i] = []common.Hash{h}
		case []any:
			for _, alt := range topic {
				if alt == nil {
					// null within the list matches anything
					c.Topics[i] = nil
					break
				}
				s, ok := alt.(string)
				if !ok {
					return errors.New("invalid topic in list")
				}
				h, err := decodeTopic(s)
				if err != nil {
					return err
				}
				c.Topics[i] = append(c.Topics[i], h)
			}
		default:
			return errors.New("invalid topic(s)")
		}
	}
	return nil
}

func decodeAddress(s string) (common.Address, error) {
	b, err := hexutil.Decode(s)
	if err == nil && len(b) != common.AddressLength {
		err = errors.Errorf("hex has invalid length %d after decoding; expected %d for address", len(b), common.AddressLength)
	}
	return common.BytesToAddress(b), err
}

func decodeTopic(s string) (common.Hash, error) {
	b, err := hexutil.Decode(s)
	if err == nil && len(b) != common.HashLength {
		err = errors.Errorf("hex has invalid length %d after decoding; expected %d for topic", len(b), common.HashLength)
	}
	return common.BytesToHash(b), err
}

// criteria resolves the block tags of c into filter criteria.
// Head following tags stay unset.
func (c *FilterCriteria) criteria(resolve func(BlockTag) (uint64, error)) (filters.Criteria, error) {
	crit := filters.Criteria{Addresses: c.Addresses, Topics: c.Topics}
	bound := func(tag *BlockTag) (*uint64, error) {
		if tag == nil || tag.followsHead() {
			return nil, nil
		}
		num, err := resolve(*tag)
		if err != nil {
			return nil, err
		}
		return &num, nil
	}
	var err error
	if crit.FromBlock, err = bound(c.FromBlock); err != nil {
		return crit, err
	}
	if crit.ToBlock, err = bound(c.ToBlock); err != nil {
		return crit, err
	}
	return crit, nil
}
