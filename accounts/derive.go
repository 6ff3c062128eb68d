// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package accounts

import (
	"crypto/ecdsa"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	gethaccounts "github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github.com/tyler-smith/go-bip39"
)

// DefaultBasePath is the path the i-th account is derived at, with i appended.
const DefaultBasePath = "m/44'/60'/0'/0"

// MnemonicFromSeed derives a mnemonic deterministically from an arbitrary seed string.
func MnemonicFromSeed(seed string) (string, error) {
	return bip39.NewMnemonic(crypto.Keccak256([]byte(seed))[:16])
}

// NewMnemonic generates a random 12 words mnemonic.
func NewMnemonic() (string, error) {
	entropy, err := bip39.NewEntropy(128)
	if err != nil {
		return "", err
	}
	return bip39.NewMnemonic(entropy)
}

// DeriveKeys derives count keys from the mnemonic, the i-th at basePath/i.
func DeriveKeys(mnemonic string, basePath string, count int) ([]*ecdsa.PrivateKey, error) {
	seed, err := bip39.NewSeedWithErrorChecking(mnemonic, "")
	if err != nil {
		return nil, errors.Wrap(err, "mnemonic")
	}
	path, err := gethaccounts.ParseDerivationPath(basePath)
	if err != nil {
		return nil, errors.Wrap(err, "derivation path")
	}

	master, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		return nil, err
	}
	base := master
	for _, n := range path {
		if base, err = base.Derive(n); err != nil {
			return nil, errors.Wrapf(err, "derive %v", path)
		}
	}

	keys := make([]*ecdsa.PrivateKey, 0, count)
	for i := range count {
		child, err := base.Derive(uint32(i))
		if err != nil {
			return nil, errors.Wrapf(err, "derive account %d", i)
		}
		priv, err := child.ECPrivKey()
		if err != nil {
			return nil, err
		}
		key, err := crypto.ToECDSA(priv.Serialize())
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, nil
}
