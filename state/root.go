// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package state

import (
	"bytes"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/ethereum/go-ethereum/trie"
	"github.com/pkg/errors"
)

type leaf struct {
	key []byte
	val []byte
}

// stackRoot hashes leaves with keys hashed by keccak256, the secure trie layout.
func stackRoot(leaves []leaf) (common.Hash, error) {
	if len(leaves) == 0 {
		return types.EmptyRootHash, nil
	}
	sort.Slice(leaves, func(i, j int) bool {
		return bytes.Compare(leaves[i].key, leaves[j].key) < 0
	})
	st := trie.NewStackTrie(nil)
	for _, l := range leaves {
		if err := st.Update(l.key, l.val); err != nil {
			return common.Hash{}, err
		}
	}
	return st.Hash(), nil
}

// Root computes the merkle patricia root of the state committed at height.
// Only locally materialized accounts take part.
func (s *Store) Root(height uint64) (common.Hash, error) {
	var leaves []leaf
	err := s.forEachAccount(height, func(addr common.Address, acc *Account) error {
		if acc.IsEmpty() {
			return nil
		}
		storageRoot, err := s.StorageRoot(addr, acc.Incarnation, height)
		if err != nil {
			return err
		}
		data, err := rlp.EncodeToBytes(&types.StateAccount{
			Nonce:    acc.Nonce,
			Balance:  acc.Balance,
			Root:     storageRoot,
			CodeHash: acc.consensusCodeHash().Bytes(),
		})
		if err != nil {
			return err
		}
		leaves = append(leaves, leaf{crypto.Keccak256(addr[:]), data})
		return nil
	})
	if err != nil {
		return common.Hash{}, errors.Wrap(err, "state root")
	}
	return stackRoot(leaves)
}

// StorageRoot computes the storage root of an account incarnation committed at height.
func (s *Store) StorageRoot(addr common.Address, incarnation uint64, height uint64) (common.Hash, error) {
	var leaves []leaf
	err := s.forEachSlot(addr, incarnation, height, func(slot, val common.Hash) error {
		if val == (common.Hash{}) {
			return nil
		}
		enc, err := rlp.EncodeToBytes(trimLeftZeroes(val[:]))
		if err != nil {
			return err
		}
		leaves = append(leaves, leaf{crypto.Keccak256(slot[:]), enc})
		return nil
	})
	if err != nil {
		return common.Hash{}, err
	}
	return stackRoot(leaves)
}
