// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package state

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"
)

// Account is the simulator's representation of an account.
// RLP encoded objects are stored in the versioned state store.
type Account struct {
	Nonce    uint64
	Balance  *uint256.Int
	CodeHash []byte // hash of code, empty if no code
	// Incarnation is bumped each time the account is destructed.
	// Storage written under earlier incarnations is invisible.
	Incarnation uint64
}

func emptyAccount() *Account {
	return &Account{Balance: new(uint256.Int)}
}

// IsEmpty returns if an account is empty.
// An empty account has zero nonce, zero balance and no code.
func (a *Account) IsEmpty() bool {
	return a.Nonce == 0 && a.Balance.IsZero() && len(a.CodeHash) == 0
}

// HasCode returns whether the account carries code.
func (a *Account) HasCode() bool {
	return len(a.CodeHash) > 0
}

// Copy returns a deep copy.
func (a *Account) Copy() *Account {
	cpy := *a
	cpy.Balance = new(uint256.Int).Set(a.Balance)
	if a.CodeHash != nil {
		cpy.CodeHash = common.CopyBytes(a.CodeHash)
	}
	return &cpy
}

func encodeAccount(a *Account) ([]byte, error) {
	return rlp.EncodeToBytes(a)
}

func decodeAccount(data []byte) (*Account, error) {
	var a Account
	if err := rlp.DecodeBytes(data, &a); err != nil {
		return nil, err
	}
	if a.Balance == nil {
		a.Balance = new(uint256.Int)
	}
	return &a, nil
}

// codeHashOf returns the keccak hash of code, nil for empty code.
func codeHashOf(code []byte) []byte {
	if len(code) == 0 {
		return nil
	}
	return crypto.Keccak256(code)
}

// consensusCodeHash returns code hash as the trie and EVM see it.
func (a *Account) consensusCodeHash() common.Hash {
	if len(a.CodeHash) == 0 {
		return types.EmptyCodeHash
	}
	return common.BytesToHash(a.CodeHash)
}
