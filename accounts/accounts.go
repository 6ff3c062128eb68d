// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package accounts holds the unlocked accounts of the simulator.
package accounts

import (
	"crypto/ecdsa"
	"strings"

	gethaccounts "github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
)

// ErrUnknownAccount is returned when signing for an account not held.
var ErrUnknownAccount = errors.New("unknown account")

// Account an unlocked account with its initial balance.
type Account struct {
	Address    common.Address
	PrivateKey *ecdsa.PrivateKey
	Balance    *uint256.Int
}

// NewAccount returns the account of key funded with balance.
func NewAccount(key *ecdsa.PrivateKey, balance *uint256.Int) *Account {
	return &Account{
		Address:    crypto.PubkeyToAddress(key.PublicKey),
		PrivateKey: key,
		Balance:    balance,
	}
}

// ParseAccount parses "privkey,balance", the balance in wei, decimal or 0x hex.
func ParseAccount(s string) (*Account, error) {
	keyStr, balStr, ok := strings.Cut(s, ",")
	if !ok {
		return nil, errors.Errorf("account %q: want privkey,balance", s)
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(keyStr), "0x"))
	if err != nil {
		return nil, errors.Wrap(err, "account private key")
	}
	balance, err := ParseBalance(strings.TrimSpace(balStr))
	if err != nil {
		return nil, err
	}
	return NewAccount(key, balance), nil
}

// ParseBalance parses a wei amount, decimal or 0x hex.
func ParseBalance(s string) (*uint256.Int, error) {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		v, err := uint256.FromHex(s)
		if err != nil {
			return nil, errors.Wrapf(err, "balance %q", s)
		}
		return v, nil
	}
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, errors.Wrapf(err, "balance %q", s)
	}
	return v, nil
}

// Manager holds the unlocked accounts in a fixed order.
type Manager struct {
	accounts []*Account
	byAddr   map[common.Address]*Account
}

// NewManager creates a manager, a later duplicate address replaces the former.
func NewManager(accounts []*Account) *Manager {
	m := &Manager{byAddr: make(map[common.Address]*Account, len(accounts))}
	for _, acc := range accounts {
		if _, ok := m.byAddr[acc.Address]; !ok {
			m.accounts = append(m.accounts, acc)
		} else {
			for i, a := range m.accounts {
				if a.Address == acc.Address {
					m.accounts[i] = acc
				}
			}
		}
		m.byAddr[acc.Address] = acc
	}
	return m
}

// Accounts returns the accounts in order.
func (m *Manager) Accounts() []*Account {
	return m.accounts
}

// Addresses returns the addresses in order.
func (m *Manager) Addresses() []common.Address {
	addrs := make([]common.Address, len(m.accounts))
	for i, acc := range m.accounts {
		addrs[i] = acc.Address
	}
	return addrs
}

// PrivateKey returns the key of addr.
func (m *Manager) PrivateKey(addr common.Address) (*ecdsa.PrivateKey, bool) {
	acc, ok := m.byAddr[addr]
	if !ok {
		return nil, false
	}
	return acc.PrivateKey, true
}

// SignText signs data the way eth_sign does: over the EIP-191 text hash, with v of 27 or 28.
func (m *Manager) SignText(addr common.Address, data []byte) (hexutil.Bytes, error) {
	key, ok := m.PrivateKey(addr)
	if !ok {
		return nil, ErrUnknownAccount
	}
	sig, err := crypto.Sign(gethaccounts.TextHash(data), key)
	if err != nil {
		return nil, err
	}
	sig[crypto.RecoveryIDOffset] += 27
	return sig, nil
}
