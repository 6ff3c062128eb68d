// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package solo

import (
	"crypto/ecdsa"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"
)

// Status of the engine.
type Status int32

const (
	Idle Status = iota
	Processing
)

func (s Status) String() string {
	if s == Processing {
		return "processing"
	}
	return "idle"
}

// Keystore holds the keys of the unlocked accounts.
type Keystore interface {
	PrivateKey(addr common.Address) (*ecdsa.PrivateKey, bool)
}

// TxRequest is a tx to be signed by an unlocked account.
// Unset fields take defaults, the nonce the pending one of From.
type TxRequest struct {
	From                 *common.Address
	To                   *common.Address
	Gas                  *uint64
	GasPrice             *uint256.Int
	MaxFeePerGas         *uint256.Int
	MaxPriorityFeePerGas *uint256.Int
	Value                *uint256.Int
	Data                 []byte
	Nonce                *uint64
	AccessList           *types.AccessList
}
