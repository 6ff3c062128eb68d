// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package state

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/vechain/ethsim/kv"
	"github.com/vechain/ethsim/muxdb"
)

const storeName = "state"

// key spaces of the versioned store.
const (
	accountSpace = byte('a') // 'a' | addr | height
	storageSpace = byte('s') // 's' | addr | incarnation | slot | height
	codeSpace    = byte('c') // 'c' | code hash
	journalSpace = byte('j') // 'j' | height, lists keys written at height
)

// Store persists state versions per block height.
//
// A committed block writes every changed key suffixed with its height.
// Reading as of height h returns the latest version at or below h, so
// truncating the chain tail is a matter of deleting the newer versions.
type Store struct {
	kv kv.Store
}

// NewStore creates the versioned state store.
func NewStore(db *muxdb.MuxDB) *Store {
	return &Store{db.NewStore(storeName)}
}

func heightBytes(h uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], h)
	return b[:]
}

func accountPrefix(addr common.Address) []byte {
	return append([]byte{accountSpace}, addr[:]...)
}

func storagePrefix(addr common.Address, incarnation uint64, slot common.Hash) []byte {
	k := make([]byte, 0, 1+20+8+32)
	k = append(k, storageSpace)
	k = append(k, addr[:]...)
	k = append(k, heightBytes(incarnation)...)
	return append(k, slot[:]...)
}

// latest returns the value of the latest version of prefix at or below height.
func (s *Store) latest(prefix []byte, height uint64) ([]byte, bool, error) {
	r := kv.Range{Start: prefix}
	if height == math.MaxUint64 {
		r.Limit = append(common.CopyBytes(prefix), 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff)
	} else {
		r.Limit = append(common.CopyBytes(prefix), heightBytes(height+1)...)
	}
	it := s.kv.Iterate(r)
	defer it.Release()

	if !it.Last() {
		return nil, false, it.Error()
	}
	// keys longer than prefix+height belong to other entries sharing the prefix
	if len(it.Key()) != len(prefix)+8 {
		return nil, false, errors.Errorf("state: corrupted key %x", it.Key())
	}
	return common.CopyBytes(it.Value()), true, nil
}

// Account returns the account as of the given height.
// The second return value is false if the account was never written.
func (s *Store) Account(addr common.Address, height uint64) (*Account, bool, error) {
	data, found, err := s.latest(accountPrefix(addr), height)
	if err != nil || !found {
		return nil, false, err
	}
	acc, err := decodeAccount(data)
	if err != nil {
		return nil, false, errors.Wrap(err, "decode account")
	}
	return acc, true, nil
}

// Storage returns the storage value as of the given height.
// A written zero value is reported as found.
func (s *Store) Storage(addr common.Address, incarnation uint64, slot common.Hash, height uint64) (common.Hash, bool, error) {
	data, found, err := s.latest(storagePrefix(addr, incarnation, slot), height)
	if err != nil || !found {
		return common.Hash{}, false, err
	}
	return common.BytesToHash(data), true, nil
}

// Code returns code by its hash.
func (s *Store) Code(hash []byte) ([]byte, bool, error) {
	code, err := s.kv.Get(append([]byte{codeSpace}, hash...))
	if err != nil {
		if s.kv.IsNotFound(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return code, true, nil
}

// Commit writes the changeset as the state of the given height.
func (s *Store) Commit(height uint64, cs *Changeset) error {
	bulk := s.kv.Bulk()
	var written [][]byte

	hb := heightBytes(height)
	for addr, acc := range cs.Accounts {
		data, err := encodeAccount(acc)
		if err != nil {
			return err
		}
		prefix := accountPrefix(addr)
		if err := bulk.Put(append(prefix, hb...), data); err != nil {
			return err
		}
		written = append(written, prefix)
	}
	for slot, val := range cs.Storage {
		prefix := storagePrefix(slot.Addr, slot.Incarnation, slot.Key)
		if err := bulk.Put(append(prefix, hb...), trimLeftZeroes(val[:])); err != nil {
			return err
		}
		written = append(written, prefix)
	}
	for hash, code := range cs.Codes {
		if err := bulk.Put(append([]byte{codeSpace}, hash[:]...), code); err != nil {
			return err
		}
	}
	if len(written) > 0 {
		enc, err := rlp.EncodeToBytes(written)
		if err != nil {
			return err
		}
		if err := bulk.Put(append([]byte{journalSpace}, hb...), enc); err != nil {
			return err
		}
	}
	return errors.Wrap(bulk.Write(), "commit state")
}

// Truncate drops all versions above the given height.
func (s *Store) Truncate(height uint64) error {
	if height == math.MaxUint64 {
		return nil
	}
	bulk := s.kv.Bulk()
	bulk.EnableAutoFlush()

	r := kv.Range{
		Start: append([]byte{journalSpace}, heightBytes(height+1)...),
		Limit: []byte{journalSpace + 1},
	}
	var cbErr error
	err := kv.ForEach(s.kv, r, func(key, val []byte) bool {
		var prefixes [][]byte
		if cbErr = rlp.DecodeBytes(val, &prefixes); cbErr != nil {
			return false
		}
		hb := key[1:]
		for _, p := range prefixes {
			if cbErr = bulk.Delete(append(p, hb...)); cbErr != nil {
				return false
			}
		}
		cbErr = bulk.Delete(common.CopyBytes(key))
		return cbErr == nil
	})
	if err == nil {
		err = cbErr
	}
	if err != nil {
		return errors.Wrap(err, "truncate state")
	}
	return errors.Wrap(bulk.Write(), "truncate state")
}

// forEachAccount iterates the latest version at or below height of every account.
func (s *Store) forEachAccount(height uint64, fn func(addr common.Address, acc *Account) error) error {
	return s.forEachLatest([]byte{accountSpace}, 20, height, func(id, val []byte) error {
		acc, err := decodeAccount(val)
		if err != nil {
			return err
		}
		return fn(common.BytesToAddress(id), acc)
	})
}

// forEachSlot iterates the latest version at or below height of every slot of an account incarnation.
func (s *Store) forEachSlot(addr common.Address, incarnation uint64, height uint64, fn func(slot, val common.Hash) error) error {
	prefix := append(append([]byte{storageSpace}, addr[:]...), heightBytes(incarnation)...)
	return s.forEachLatest(prefix, 32, height, func(id, val []byte) error {
		return fn(common.BytesToHash(id), common.BytesToHash(val))
	})
}

// forEachLatest walks versioned keys prefix|id|height in order and calls fn
// with the last version not above height of every id.
func (s *Store) forEachLatest(prefix []byte, idLen int, height uint64, fn func(id, val []byte) error) error {
	var (
		curID           []byte
		pendID, pendVal []byte
		cbErr           error
	)
	err := kv.ForEach(s.kv, kv.Range{Start: prefix, Limit: util.BytesPrefix(prefix).Limit}, func(key, val []byte) bool {
		if len(key) != len(prefix)+idLen+8 {
			return true
		}
		id := key[len(prefix) : len(prefix)+idLen]
		if !bytes.Equal(curID, id) {
			if pendID != nil {
				if cbErr = fn(pendID, pendVal); cbErr != nil {
					return false
				}
			}
			curID = common.CopyBytes(id)
			pendID = nil
		}
		if binary.BigEndian.Uint64(key[len(prefix)+idLen:]) <= height {
			pendID, pendVal = curID, common.CopyBytes(val)
		}
		return true
	})
	if err != nil {
		return err
	}
	if cbErr != nil {
		return cbErr
	}
	if pendID != nil {
		return fn(pendID, pendVal)
	}
	return nil
}

func trimLeftZeroes(s []byte) []byte {
	idx := 0
	for ; idx < len(s); idx++ {
		if s[idx] != 0 {
			break
		}
	}
	return s[idx:]
}
