// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package fork

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"
	"github.com/golang/mock/gomock"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vechain/ethsim/muxdb"
	"github.com/vechain/ethsim/state"
)

var (
	testAddr = common.HexToAddress("0xa11ce")
	testCode = common.FromHex("60006000fd")
)

func testOptions() *Options {
	return &Options{Logger: log.NewLogger(log.DiscardHandler())}
}

func expectAccount(up *MockUpstream, addr common.Address, height int64, balance int64, nonce uint64, code []byte) {
	num := big.NewInt(height)
	up.EXPECT().BalanceAt(gomock.Any(), addr, num).Return(big.NewInt(balance), nil).Times(1)
	up.EXPECT().NonceAt(gomock.Any(), addr, num).Return(nonce, nil).Times(1)
	up.EXPECT().CodeAt(gomock.Any(), addr, num).Return(code, nil).Times(1)
}

func TestFallbackAccount(t *testing.T) {
	ctrl := gomock.NewController(t)
	up := NewMockUpstream(ctrl)
	db := muxdb.NewMem()

	expectAccount(up, testAddr, 100, 7, 3, testCode)
	fb := NewFallback(context.Background(), up, 100, db, testOptions())

	// reads above the pin are served as of the pin, fetched once
	for _, h := range []uint64{100, 150, 1 << 40} {
		acc, code, err := fb.Account(testAddr, h)
		require.NoError(t, err)
		assert.Equal(t, uint64(3), acc.Nonce)
		assert.Equal(t, uint64(7), acc.Balance.Uint64())
		assert.Equal(t, crypto.Keccak256(testCode), acc.CodeHash)
		assert.Equal(t, testCode, code)
	}

	// a new instance on the same db hits the persistent cache
	fb = NewFallback(context.Background(), NewMockUpstream(ctrl), 100, db, testOptions())
	acc, _, err := fb.Account(testAddr, 100)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), acc.Nonce)
}

func TestFallbackAbsentAccount(t *testing.T) {
	ctrl := gomock.NewController(t)
	up := NewMockUpstream(ctrl)
	expectAccount(up, testAddr, 5, 0, 0, nil)

	fb := NewFallback(context.Background(), up, 100, muxdb.NewMem(), testOptions())
	for i := 0; i < 2; i++ {
		acc, code, err := fb.Account(testAddr, 5)
		require.NoError(t, err)
		assert.Nil(t, acc)
		assert.Nil(t, code)
	}
}

func TestFallbackStorage(t *testing.T) {
	ctrl := gomock.NewController(t)
	up := NewMockUpstream(ctrl)
	slot := common.HexToHash("0x01")
	up.EXPECT().StorageAt(gomock.Any(), testAddr, slot, big.NewInt(100)).
		Return(common.BigToHash(big.NewInt(42)).Bytes(), nil).Times(1)

	fb := NewFallback(context.Background(), up, 100, muxdb.NewMem(), testOptions())
	for i := 0; i < 3; i++ {
		v, err := fb.Storage(testAddr, slot, 200)
		require.NoError(t, err)
		assert.Equal(t, common.BigToHash(big.NewInt(42)), v)
	}
}

func TestFallbackError(t *testing.T) {
	ctrl := gomock.NewController(t)
	up := NewMockUpstream(ctrl)
	slot := common.HexToHash("0x01")
	boom := errors.New("connection refused")
	up.EXPECT().StorageAt(gomock.Any(), testAddr, slot, big.NewInt(100)).Return(nil, boom).Times(2)

	fb := NewFallback(context.Background(), up, 100, muxdb.NewMem(), testOptions())
	_, err := fb.Storage(testAddr, slot, 100)
	assert.Equal(t, boom, errors.Cause(err))

	// failures are not cached
	_, err = fb.Storage(testAddr, slot, 100)
	assert.Error(t, err)
}

func TestFallbackThroughState(t *testing.T) {
	ctrl := gomock.NewController(t)
	up := NewMockUpstream(ctrl)
	expectAccount(up, testAddr, 100, 7, 3, nil)
	up.EXPECT().StorageAt(gomock.Any(), testAddr, common.Hash{}, big.NewInt(100)).
		Return(common.BigToHash(big.NewInt(9)).Bytes(), nil).Times(1)

	fb := NewFallback(context.Background(), up, 100, muxdb.NewMem(), testOptions())
	st := state.New(state.NewStore(muxdb.NewMem()), 103, fb)

	bal, err := st.GetBalance(testAddr)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), bal.Uint64())
	v, err := st.GetStorage(testAddr, common.Hash{})
	require.NoError(t, err)
	assert.Equal(t, common.BigToHash(big.NewInt(9)), v)
}
