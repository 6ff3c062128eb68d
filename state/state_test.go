// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package state

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vechain/ethsim/muxdb"
)

func newStore() *Store {
	return NewStore(muxdb.NewMem())
}

func TestStateAbsentAccount(t *testing.T) {
	st := New(newStore(), 0, nil)
	addr := common.BytesToAddress([]byte("nobody"))

	acc, found, err := st.GetAccount(addr)
	assert.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, acc)

	bal, err := st.GetBalance(addr)
	assert.NoError(t, err)
	assert.True(t, bal.IsZero())

	require.NoError(t, st.SetNonce(addr, 1))
	_, found, err = st.GetAccount(addr)
	assert.NoError(t, err)
	assert.True(t, found)
}

func TestStateCheckpoints(t *testing.T) {
	assert := assert.New(t)
	st := New(newStore(), 0, nil)
	addr := common.BytesToAddress([]byte("acc"))
	key := common.BytesToHash([]byte("key"))

	assert.Equal(0, st.Depth())

	// outer checkpoint, committed later
	st.Checkpoint()
	assert.NoError(st.SetBalance(addr, uint256.NewInt(10)))
	assert.NoError(st.SetStorage(addr, key, common.HexToHash("0x01")))

	// inner checkpoint, reverted
	st.Checkpoint()
	assert.Equal(2, st.Depth())
	assert.NoError(st.SetBalance(addr, uint256.NewInt(20)))
	assert.NoError(st.SetStorage(addr, key, common.HexToHash("0x02")))
	assert.NoError(st.SetCode(addr, []byte{0x60, 0x00}))

	bal, _ := st.GetBalance(addr)
	assert.Equal(uint64(20), bal.Uint64())

	st.Revert()
	bal, _ = st.GetBalance(addr)
	assert.Equal(uint64(10), bal.Uint64())
	v, _ := st.GetStorage(addr, key)
	assert.Equal(common.HexToHash("0x01"), v, "storage reverts together with the account")
	code, _ := st.GetCode(addr)
	assert.Empty(code)

	st.Commit()
	assert.Equal(0, st.Depth())
	bal, _ = st.GetBalance(addr)
	assert.Equal(uint64(10), bal.Uint64())

	assert.Panics(func() { st.Revert() })
}

func TestStateRevertTo(t *testing.T) {
	st := New(newStore(), 0, nil)
	addr := common.BytesToAddress([]byte("acc"))

	rev := st.Checkpoint()
	for i := uint64(1); i <= 5; i++ {
		st.Checkpoint()
		require.NoError(t, st.SetNonce(addr, i))
	}
	assert.Equal(t, 6, st.Depth())

	st.RevertTo(rev)
	assert.Equal(t, 0, st.Depth())
	n, _ := st.GetNonce(addr)
	assert.Equal(t, uint64(0), n)
}

func TestStateCommitTo(t *testing.T) {
	st := New(newStore(), 0, nil)
	addr := common.BytesToAddress([]byte("acc"))

	rev := st.Checkpoint()
	for i := uint64(1); i <= 3; i++ {
		st.Checkpoint()
		require.NoError(t, st.SetNonce(addr, i))
	}
	st.CommitTo(rev)
	assert.Equal(t, 0, st.Depth())
	n, _ := st.GetNonce(addr)
	assert.Equal(t, uint64(3), n)
}

func TestStateDeleteHidesStorage(t *testing.T) {
	store := newStore()
	addr := common.BytesToAddress([]byte("contract"))
	key := common.BytesToHash([]byte("key"))

	st := New(store, 0, nil)
	require.NoError(t, st.SetCode(addr, []byte{0x1}))
	require.NoError(t, st.SetStorage(addr, key, common.HexToHash("0x2a")))
	require.NoError(t, store.Commit(1, st.Stage()))

	st = New(store, 1, nil)
	v, _ := st.GetStorage(addr, key)
	assert.Equal(t, common.HexToHash("0x2a"), v)

	require.NoError(t, st.Delete(addr))
	v, _ = st.GetStorage(addr, key)
	assert.Equal(t, common.Hash{}, v)
	exists, _ := st.Exists(addr)
	assert.False(t, exists)
	code, _ := st.GetCode(addr)
	assert.Empty(t, code)
}

func TestStageAndStoreVersions(t *testing.T) {
	store := newStore()
	addr := common.BytesToAddress([]byte("acc"))
	key := common.BytesToHash([]byte("key"))
	code := []byte{0x60, 0x01}

	st := New(store, 0, nil)
	require.NoError(t, st.SetBalance(addr, uint256.NewInt(1)))
	require.NoError(t, st.SetCode(addr, code))
	require.NoError(t, st.SetStorage(addr, key, common.HexToHash("0x05")))
	require.NoError(t, store.Commit(1, st.Stage()))

	st = New(store, 1, nil)
	require.NoError(t, st.SetBalance(addr, uint256.NewInt(2)))
	require.NoError(t, st.SetStorage(addr, key, common.HexToHash("0x19")))
	require.NoError(t, store.Commit(2, st.Stage()))

	for h, want := range map[uint64]uint64{0: 0, 1: 1, 2: 2, 10: 2} {
		bal, err := New(store, h, nil).GetBalance(addr)
		require.NoError(t, err)
		assert.Equal(t, want, bal.Uint64(), "height %d", h)
	}

	v, _ := New(store, 1, nil).GetStorage(addr, key)
	assert.Equal(t, common.HexToHash("0x05"), v)
	v, _ = New(store, 2, nil).GetStorage(addr, key)
	assert.Equal(t, common.HexToHash("0x19"), v)

	got, _ := New(store, 2, nil).GetCode(addr)
	assert.Equal(t, code, got)

	require.NoError(t, store.Truncate(1))
	bal, _ := New(store, 2, nil).GetBalance(addr)
	assert.Equal(t, uint64(1), bal.Uint64())
	v, _ = New(store, 2, nil).GetStorage(addr, key)
	assert.Equal(t, common.HexToHash("0x05"), v)

	require.NoError(t, store.Truncate(0))
	_, found, _ := New(store, 2, nil).GetAccount(addr)
	assert.False(t, found)
}

type fakeFallback struct {
	accounts map[common.Address]*Account
	codes    map[common.Address][]byte
	storage  map[common.Hash]common.Hash
	calls    int
	err      error
}

func (f *fakeFallback) Account(addr common.Address, _ uint64) (*Account, []byte, error) {
	f.calls++
	if f.err != nil {
		return nil, nil, f.err
	}
	if acc, ok := f.accounts[addr]; ok {
		return acc.Copy(), f.codes[addr], nil
	}
	return emptyAccount(), nil, nil
}

func (f *fakeFallback) Storage(_ common.Address, key common.Hash, _ uint64) (common.Hash, error) {
	f.calls++
	if f.err != nil {
		return common.Hash{}, f.err
	}
	return f.storage[key], nil
}

func TestStateFallback(t *testing.T) {
	addr := common.BytesToAddress([]byte("remote"))
	key := common.BytesToHash([]byte("slot"))
	code := []byte{0x60, 0x02}
	fb := &fakeFallback{
		accounts: map[common.Address]*Account{addr: {Nonce: 3, Balance: uint256.NewInt(7), CodeHash: codeHashOf(code)}},
		codes:    map[common.Address][]byte{addr: code},
		storage:  map[common.Hash]common.Hash{key: common.HexToHash("0x09")},
	}
	store := newStore()

	st := New(store, 5, fb)
	n, err := st.GetNonce(addr)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), n)
	got, _ := st.GetCode(addr)
	assert.Equal(t, code, got)
	v, _ := st.GetStorage(addr, key)
	assert.Equal(t, common.HexToHash("0x09"), v)

	// a local zero write shadows the remote value once committed
	require.NoError(t, st.SetStorage(addr, key, common.Hash{}))
	require.NoError(t, st.SetBalance(addr, uint256.NewInt(8)))
	require.NoError(t, store.Commit(6, st.Stage()))

	st = New(store, 6, fb)
	calls := fb.calls
	v, _ = st.GetStorage(addr, key)
	assert.Equal(t, common.Hash{}, v)
	bal, _ := st.GetBalance(addr)
	assert.Equal(t, uint64(8), bal.Uint64())
	got, _ = st.GetCode(addr)
	assert.Equal(t, code, got, "code persisted with the account")
	assert.Equal(t, calls, fb.calls, "no remote reads for materialized data")
}

func TestStateFallbackError(t *testing.T) {
	fb := &fakeFallback{err: errors.New("upstream down")}
	st := New(newStore(), 0, fb)

	_, err := st.GetBalance(common.BytesToAddress([]byte("x")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upstream down")
}
