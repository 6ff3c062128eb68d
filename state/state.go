// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package state

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/vechain/ethsim/stackedmap"
)

// Error is the error caused by state access failure.
type Error struct {
	cause error
}

func (e *Error) Error() string {
	return fmt.Sprintf("state: %v", e.cause)
}

// Cause returns the underlying error.
func (e *Error) Cause() error {
	return e.cause
}

// Fallback resolves reads that miss the local store.
// It is fixed at construction and never swapped afterwards.
type Fallback interface {
	// Account returns the account and its code as of height.
	Account(addr common.Address, height uint64) (*Account, []byte, error)
	// Storage returns the storage value as of height.
	Storage(addr common.Address, key common.Hash, height uint64) (common.Hash, error)
}

type (
	codeKey    common.Address
	storageKey struct {
		addr        common.Address
		incarnation uint64
		key         common.Hash
	}
)

// StorageSlot identifies a storage slot of an account incarnation.
type StorageSlot struct {
	Addr        common.Address
	Incarnation uint64
	Key         common.Hash
}

// Changeset is the net result of mutations made on a State.
type Changeset struct {
	Accounts map[common.Address]*Account
	Storage  map[StorageSlot]common.Hash
	Codes    map[common.Hash][]byte
}

// State is a mutable view of the world state based on a committed height.
// Mutations are kept in a stacked map, so they can be checkpointed,
// committed into the lower level or reverted.
type State struct {
	store    *Store
	height   uint64
	fallback Fallback
	sm       *stackedmap.StackedMap[any, any]
	codes    map[common.Hash][]byte // codes loaded from fallback or set
}

// New creates a state as of the given committed height.
// fallback is optional.
func New(store *Store, height uint64, fallback Fallback) *State {
	s := &State{
		store:    store,
		height:   height,
		fallback: fallback,
		codes:    make(map[common.Hash][]byte),
	}
	s.sm = stackedmap.New(s.cacheGetter)
	return s
}

// Height returns the committed height the state is based on.
func (s *State) Height() uint64 {
	return s.height
}

// cacheGetter implements stackedmap.MapGetter.
// Absent accounts are represented by nil *Account.
func (s *State) cacheGetter(key any) (any, bool, error) {
	switch k := key.(type) {
	case common.Address:
		acc, found, err := s.store.Account(k, s.height)
		if err != nil {
			return nil, false, err
		}
		if found {
			return acc, true, nil
		}
		if s.fallback == nil {
			return (*Account)(nil), true, nil
		}
		acc, code, err := s.fallback.Account(k, s.height)
		if err != nil {
			return nil, false, err
		}
		if len(code) > 0 {
			s.codes[common.BytesToHash(acc.CodeHash)] = code
		}
		return acc, true, nil
	case codeKey:
		acc, err := s.getAccount(common.Address(k))
		if err != nil {
			return nil, false, err
		}
		if acc == nil || !acc.HasCode() {
			return []byte(nil), true, nil
		}
		hash := common.BytesToHash(acc.CodeHash)
		if code, ok := s.codes[hash]; ok {
			return code, true, nil
		}
		code, found, err := s.store.Code(acc.CodeHash)
		if err != nil {
			return nil, false, err
		}
		if !found && s.fallback != nil {
			if _, code, err = s.fallback.Account(common.Address(k), s.height); err != nil {
				return nil, false, err
			}
			s.codes[hash] = code
		}
		return code, true, nil
	case storageKey:
		v, found, err := s.store.Storage(k.addr, k.incarnation, k.key, s.height)
		if err != nil {
			return nil, false, err
		}
		// storage of a destructed account never falls through
		if found || s.fallback == nil || k.incarnation != 0 {
			return v, true, nil
		}
		v, err = s.fallback.Storage(k.addr, k.key, s.height)
		if err != nil {
			return nil, false, err
		}
		return v, true, nil
	}
	panic(fmt.Errorf("unexpected key type %+v", key))
}

// getAccount gets account by address. the returned account should not be modified.
func (s *State) getAccount(addr common.Address) (*Account, error) {
	v, _, err := s.sm.Get(addr)
	if err != nil {
		return nil, &Error{err}
	}
	return v.(*Account), nil
}

// getAccountCopy gets a modifiable copy, an empty account if absent.
func (s *State) getAccountCopy(addr common.Address) (*Account, error) {
	acc, err := s.getAccount(addr)
	if err != nil {
		return nil, err
	}
	if acc == nil {
		return emptyAccount(), nil
	}
	return acc.Copy(), nil
}

func (s *State) updateAccount(addr common.Address, acc *Account) {
	s.sm.Put(addr, acc)
}

// GetAccount returns a copy of the account.
// The second return value is false if the account is absent.
func (s *State) GetAccount(addr common.Address) (*Account, bool, error) {
	acc, err := s.getAccount(addr)
	if err != nil || acc == nil {
		return nil, false, err
	}
	return acc.Copy(), true, nil
}

// Exists returns whether an account exists.
// An empty account is treated as non-existent.
func (s *State) Exists(addr common.Address) (bool, error) {
	acc, err := s.getAccount(addr)
	if err != nil {
		return false, err
	}
	return acc != nil && !acc.IsEmpty(), nil
}

// GetBalance returns balance for the given address.
func (s *State) GetBalance(addr common.Address) (*uint256.Int, error) {
	acc, err := s.getAccount(addr)
	if err != nil {
		return nil, err
	}
	if acc == nil {
		return new(uint256.Int), nil
	}
	return new(uint256.Int).Set(acc.Balance), nil
}

// SetBalance sets balance for the given address.
func (s *State) SetBalance(addr common.Address, balance *uint256.Int) error {
	cpy, err := s.getAccountCopy(addr)
	if err != nil {
		return err
	}
	cpy.Balance = new(uint256.Int).Set(balance)
	s.updateAccount(addr, cpy)
	return nil
}

// GetNonce returns nonce for the given address.
func (s *State) GetNonce(addr common.Address) (uint64, error) {
	acc, err := s.getAccount(addr)
	if err != nil || acc == nil {
		return 0, err
	}
	return acc.Nonce, nil
}

// SetNonce sets nonce for the given address.
func (s *State) SetNonce(addr common.Address, nonce uint64) error {
	cpy, err := s.getAccountCopy(addr)
	if err != nil {
		return err
	}
	cpy.Nonce = nonce
	s.updateAccount(addr, cpy)
	return nil
}

// GetCode returns code for the given address.
func (s *State) GetCode(addr common.Address) ([]byte, error) {
	v, _, err := s.sm.Get(codeKey(addr))
	if err != nil {
		return nil, &Error{err}
	}
	return v.([]byte), nil
}

// GetCodeHash returns code hash for the given address, nil if no code.
func (s *State) GetCodeHash(addr common.Address) ([]byte, error) {
	acc, err := s.getAccount(addr)
	if err != nil || acc == nil {
		return nil, err
	}
	return common.CopyBytes(acc.CodeHash), nil
}

// SetCode sets code for the given address.
func (s *State) SetCode(addr common.Address, code []byte) error {
	cpy, err := s.getAccountCopy(addr)
	if err != nil {
		return err
	}
	cpy.CodeHash = codeHashOf(code)
	if len(code) > 0 {
		s.codes[common.BytesToHash(cpy.CodeHash)] = code
	}
	s.updateAccount(addr, cpy)
	s.sm.Put(codeKey(addr), code)
	return nil
}

func (s *State) storageKey(addr common.Address, key common.Hash) (storageKey, error) {
	acc, err := s.getAccount(addr)
	if err != nil {
		return storageKey{}, err
	}
	var incarnation uint64
	if acc != nil {
		incarnation = acc.Incarnation
	}
	return storageKey{addr, incarnation, key}, nil
}

// GetStorage returns storage value for the given address and key.
func (s *State) GetStorage(addr common.Address, key common.Hash) (common.Hash, error) {
	sk, err := s.storageKey(addr, key)
	if err != nil {
		return common.Hash{}, err
	}
	v, _, err := s.sm.Get(sk)
	if err != nil {
		return common.Hash{}, &Error{err}
	}
	return v.(common.Hash), nil
}

// SetStorage sets storage value for the given address and key.
func (s *State) SetStorage(addr common.Address, key, value common.Hash) error {
	sk, err := s.storageKey(addr, key)
	if err != nil {
		return err
	}
	s.sm.Put(sk, value)
	return nil
}

// Delete deletes an account.
// The account's storage becomes invisible as its incarnation is bumped.
func (s *State) Delete(addr common.Address) error {
	acc, err := s.getAccount(addr)
	if err != nil {
		return err
	}
	next := emptyAccount()
	if acc != nil {
		next.Incarnation = acc.Incarnation + 1
	}
	s.updateAccount(addr, next)
	s.sm.Put(codeKey(addr), []byte(nil))
	return nil
}

// Checkpoint pushes a restore point.
// It returns the revision to revert to.
func (s *State) Checkpoint() int {
	return s.sm.Push()
}

// Commit drops the most recent restore point, keeping mutations.
func (s *State) Commit() {
	s.sm.Merge()
}

// CommitTo drops restore points down to the given revision returned by Checkpoint, keeping mutations.
func (s *State) CommitTo(revision int) {
	if revision < 1 {
		panic("state: cannot commit the base level")
	}
	for s.sm.Depth() > revision {
		s.sm.Merge()
	}
}

// Revert undoes all mutations since the most recent restore point and pops it.
func (s *State) Revert() {
	if s.Depth() == 0 {
		panic("state: no restore point")
	}
	s.sm.Pop()
}

// RevertTo reverts to the given revision returned by Checkpoint.
func (s *State) RevertTo(revision int) {
	if revision < 1 {
		panic("state: cannot revert the base level")
	}
	s.sm.PopTo(revision)
}

// Depth returns the count of outstanding restore points.
func (s *State) Depth() int {
	return s.sm.Depth() - 1
}

// Stage collects the net mutations of the state.
func (s *State) Stage() *Changeset {
	cs := &Changeset{
		Accounts: make(map[common.Address]*Account),
		Storage:  make(map[StorageSlot]common.Hash),
		Codes:    make(map[common.Hash][]byte),
	}
	s.sm.Journal(func(k, v any) bool {
		switch key := k.(type) {
		case common.Address:
			cs.Accounts[key] = v.(*Account)
		case storageKey:
			cs.Storage[StorageSlot{key.addr, key.incarnation, key.key}] = v.(common.Hash)
		}
		return true
	})
	for _, acc := range cs.Accounts {
		if acc.HasCode() {
			hash := common.BytesToHash(acc.CodeHash)
			if code, ok := s.codes[hash]; ok {
				cs.Codes[hash] = code
			}
		}
	}
	return cs
}
