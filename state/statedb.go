// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package state

import (
	"github.com/ethereum/go-ethereum/common"
	gethstate "github.com/ethereum/go-ethereum/core/state"
	"github.com/ethereum/go-ethereum/core/stateless"
	"github.com/ethereum/go-ethereum/core/tracing"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/ethereum/go-ethereum/params"
	"github.com/ethereum/go-ethereum/trie/utils"
	"github.com/holiman/uint256"

	"github.com/vechain/ethsim/stackedmap"
)

var _ vm.StateDB = (*StateDB)(nil)

// keys of the transaction scoped data.
type (
	refundKey     struct{}
	logsKey       struct{}
	accessAddrKey common.Address
	accessSlotKey struct {
		addr common.Address
		slot common.Hash
	}
	transientKey struct {
		addr common.Address
		key  common.Hash
	}
	selfDestructKey common.Address
	createdKey      common.Address
)

// StateDB adapts State to the EVM's state database for one transaction.
//
// Account data goes to the State, transaction scoped data (refund, logs,
// access list, transient storage) lives in a stacked map of its own. Both
// stacks are pushed and popped together, so an EVM snapshot covers them all.
type StateDB struct {
	state     *State
	tx        *stackedmap.StackedMap[any, any]
	originals map[storageKey]common.Hash
	offset    int // state depth minus tx map depth
	err       error
}

// NewStateDB creates a StateDB on top of the state.
func NewStateDB(state *State) *StateDB {
	return &StateDB{
		state: state,
		tx: stackedmap.New(func(key any) (any, bool, error) {
			switch key.(type) {
			case refundKey:
				return uint64(0), true, nil
			case logsKey:
				return []*types.Log(nil), true, nil
			case transientKey:
				return common.Hash{}, true, nil
			default:
				return false, true, nil
			}
		}),
		originals: make(map[storageKey]common.Hash),
		offset:    state.sm.Depth() - 1,
	}
}

// State returns the underlying state.
func (s *StateDB) State() *State {
	return s.state
}

// Error returns the first state access error met.
func (s *StateDB) Error() error {
	return s.err
}

func (s *StateDB) setError(err error) {
	if s.err == nil && err != nil {
		s.err = err
	}
}

func (s *StateDB) txGet(key any) any {
	v, _, _ := s.tx.Get(key)
	return v
}

func (s *StateDB) account(addr common.Address) *Account {
	acc, err := s.state.getAccount(addr)
	if err != nil {
		s.setError(err)
		return nil
	}
	return acc
}

func (s *StateDB) CreateAccount(addr common.Address) {
	acc := s.account(addr)
	next := emptyAccount()
	if acc != nil {
		next.Balance.Set(acc.Balance)
		next.Incarnation = acc.Incarnation
		if acc.HasCode() || acc.Nonce != 0 {
			next.Incarnation++
		}
	}
	s.state.updateAccount(addr, next)
}

func (s *StateDB) CreateContract(addr common.Address) {
	s.tx.Put(createdKey(addr), true)
}

func (s *StateDB) SubBalance(addr common.Address, amount *uint256.Int, _ tracing.BalanceChangeReason) uint256.Int {
	prev := s.GetBalance(addr)
	if !amount.IsZero() {
		s.setError(s.state.SetBalance(addr, new(uint256.Int).Sub(prev, amount)))
	}
	return *prev
}

func (s *StateDB) AddBalance(addr common.Address, amount *uint256.Int, _ tracing.BalanceChangeReason) uint256.Int {
	prev := s.GetBalance(addr)
	if !amount.IsZero() {
		s.setError(s.state.SetBalance(addr, new(uint256.Int).Add(prev, amount)))
	}
	return *prev
}

func (s *StateDB) GetBalance(addr common.Address) *uint256.Int {
	b, err := s.state.GetBalance(addr)
	if err != nil {
		s.setError(err)
		return new(uint256.Int)
	}
	return b
}

func (s *StateDB) GetNonce(addr common.Address) uint64 {
	n, err := s.state.GetNonce(addr)
	s.setError(err)
	return n
}

func (s *StateDB) SetNonce(addr common.Address, nonce uint64, _ tracing.NonceChangeReason) {
	s.setError(s.state.SetNonce(addr, nonce))
}

func (s *StateDB) GetCodeHash(addr common.Address) common.Hash {
	acc := s.account(addr)
	if acc == nil || acc.IsEmpty() {
		return common.Hash{}
	}
	return acc.consensusCodeHash()
}

func (s *StateDB) GetCode(addr common.Address) []byte {
	code, err := s.state.GetCode(addr)
	s.setError(err)
	return code
}

func (s *StateDB) SetCode(addr common.Address, code []byte, _ tracing.CodeChangeReason) []byte {
	prev := s.GetCode(addr)
	s.setError(s.state.SetCode(addr, code))
	return prev
}

func (s *StateDB) GetCodeSize(addr common.Address) int {
	return len(s.GetCode(addr))
}

func (s *StateDB) AddRefund(gas uint64) {
	s.tx.Put(refundKey{}, s.GetRefund()+gas)
}

func (s *StateDB) SubRefund(gas uint64) {
	refund := s.GetRefund()
	if gas > refund {
		panic("refund counter below zero")
	}
	s.tx.Put(refundKey{}, refund-gas)
}

func (s *StateDB) GetRefund() uint64 {
	return s.txGet(refundKey{}).(uint64)
}

func (s *StateDB) GetStateAndCommittedState(addr common.Address, key common.Hash) (common.Hash, common.Hash) {
	sk, err := s.state.storageKey(addr, key)
	if err != nil {
		s.setError(err)
		return common.Hash{}, common.Hash{}
	}
	current := s.GetState(addr, key)
	if orig, ok := s.originals[sk]; ok {
		return current, orig
	}
	return current, current
}

func (s *StateDB) GetState(addr common.Address, key common.Hash) common.Hash {
	v, err := s.state.GetStorage(addr, key)
	s.setError(err)
	return v
}

func (s *StateDB) SetState(addr common.Address, key, value common.Hash) common.Hash {
	sk, err := s.state.storageKey(addr, key)
	if err != nil {
		s.setError(err)
		return common.Hash{}
	}
	prev := s.GetState(addr, key)
	if _, ok := s.originals[sk]; !ok {
		s.originals[sk] = prev
	}
	s.state.sm.Put(sk, value)
	return prev
}

// GetStorageRoot always reports an empty root.
// Local storage roots are computed per block, not per access.
func (s *StateDB) GetStorageRoot(common.Address) common.Hash {
	return common.Hash{}
}

func (s *StateDB) GetTransientState(addr common.Address, key common.Hash) common.Hash {
	return s.txGet(transientKey{addr, key}).(common.Hash)
}

func (s *StateDB) SetTransientState(addr common.Address, key, value common.Hash) {
	s.tx.Put(transientKey{addr, key}, value)
}

func (s *StateDB) SelfDestruct(addr common.Address) uint256.Int {
	prev := s.GetBalance(addr)
	if s.account(addr) == nil {
		return *prev
	}
	s.tx.Put(selfDestructKey(addr), true)
	s.setError(s.state.SetBalance(addr, new(uint256.Int)))
	return *prev
}

func (s *StateDB) HasSelfDestructed(addr common.Address) bool {
	return s.txGet(selfDestructKey(addr)).(bool)
}

func (s *StateDB) SelfDestruct6780(addr common.Address) (uint256.Int, bool) {
	if s.txGet(createdKey(addr)).(bool) {
		return s.SelfDestruct(addr), true
	}
	return *s.GetBalance(addr), false
}

func (s *StateDB) Exist(addr common.Address) bool {
	ok, err := s.state.Exists(addr)
	s.setError(err)
	return ok
}

func (s *StateDB) Empty(addr common.Address) bool {
	acc := s.account(addr)
	return acc == nil || acc.IsEmpty()
}

func (s *StateDB) AddressInAccessList(addr common.Address) bool {
	return s.txGet(accessAddrKey(addr)).(bool)
}

func (s *StateDB) SlotInAccessList(addr common.Address, slot common.Hash) (addressOk bool, slotOk bool) {
	return s.AddressInAccessList(addr), s.txGet(accessSlotKey{addr, slot}).(bool)
}

func (s *StateDB) AddAddressToAccessList(addr common.Address) {
	if !s.AddressInAccessList(addr) {
		s.tx.Put(accessAddrKey(addr), true)
	}
}

func (s *StateDB) AddSlotToAccessList(addr common.Address, slot common.Hash) {
	s.AddAddressToAccessList(addr)
	if !s.txGet(accessSlotKey{addr, slot}).(bool) {
		s.tx.Put(accessSlotKey{addr, slot}, true)
	}
}

func (s *StateDB) PointCache() *utils.PointCache {
	return nil
}

// Prepare handles the preparatory steps for executing a state transition:
// warming up the access list (EIP-2929, EIP-2930, EIP-3651).
func (s *StateDB) Prepare(rules params.Rules, sender, coinbase common.Address, dst *common.Address, precompiles []common.Address, list types.AccessList) {
	if !rules.IsBerlin {
		return
	}
	s.AddAddressToAccessList(sender)
	if dst != nil {
		s.AddAddressToAccessList(*dst)
	}
	for _, addr := range precompiles {
		s.AddAddressToAccessList(addr)
	}
	for _, el := range list {
		s.AddAddressToAccessList(el.Address)
		for _, key := range el.StorageKeys {
			s.AddSlotToAccessList(el.Address, key)
		}
	}
	if rules.IsShanghai {
		s.AddAddressToAccessList(coinbase)
	}
}

// Snapshot pushes a restore point on both stacks.
func (s *StateDB) Snapshot() int {
	s.tx.Push()
	return s.state.Checkpoint()
}

// RevertToSnapshot reverts both stacks to the given snapshot.
func (s *StateDB) RevertToSnapshot(revid int) {
	s.state.RevertTo(revid)
	s.tx.PopTo(revid - s.offset)
}

func (s *StateDB) AddLog(log *types.Log) {
	logs := s.Logs()
	s.tx.Put(logsKey{}, append(logs[:len(logs):len(logs)], log))
}

// Logs returns logs emitted so far.
func (s *StateDB) Logs() []*types.Log {
	return s.txGet(logsKey{}).([]*types.Log)
}

func (s *StateDB) AddPreimage(common.Hash, []byte) {}

func (s *StateDB) Witness() *stateless.Witness {
	return nil
}

func (s *StateDB) AccessEvents() *gethstate.AccessEvents {
	return nil
}

// Finalise applies self-destructs.
// Empty accounts are treated as non-existent, so they need no deletion.
func (s *StateDB) Finalise(bool) {
	var destructed []common.Address
	s.tx.Journal(func(k, v any) bool {
		if addr, ok := k.(selfDestructKey); ok && v.(bool) {
			destructed = append(destructed, common.Address(addr))
		}
		return true
	})
	for _, addr := range destructed {
		if s.HasSelfDestructed(addr) {
			s.setError(s.state.Delete(addr))
		}
	}
}
