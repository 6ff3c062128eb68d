// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package fork

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/golang/mock/gomock"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vechain/ethsim/accounts"
	"github.com/vechain/ethsim/logdb"
	"github.com/vechain/ethsim/muxdb"
	"github.com/vechain/ethsim/runtime"
	"github.com/vechain/ethsim/solo"
	"github.com/vechain/ethsim/state"
)

// counterCode increments slot 0 and returns the new value.
var counterCode = common.FromHex("6000546001018060005560005260206000f3")

func TestSoloOverFork(t *testing.T) {
	ctrl := gomock.NewController(t)
	up := NewMockUpstream(ctrl)
	ctx := context.Background()

	devKey, _ := crypto.GenerateKey()
	dev := crypto.PubkeyToAddress(devKey.PublicKey)
	remoteKey, _ := crypto.GenerateKey()
	remote := crypto.PubkeyToAddress(remoteKey.PublicKey)
	counter := common.HexToAddress("0xc0de")
	ether := uint256.NewInt(1_000_000_000_000_000_000)

	expectAccount(up, dev, 100, 0, 0, nil)
	expectAccount(up, remote, 100, 1_000_000_000_000_000_000, 7, nil)
	expectAccount(up, counter, 100, 0, 1, counterCode)
	up.EXPECT().StorageAt(gomock.Any(), counter, common.Hash{}, big.NewInt(100)).
		Return(common.BigToHash(big.NewInt(41)).Bytes(), nil).MinTimes(1)
	// any other account is empty upstream
	up.EXPECT().BalanceAt(gomock.Any(), gomock.Any(), gomock.Any()).Return(new(big.Int), nil).AnyTimes()
	up.EXPECT().NonceAt(gomock.Any(), gomock.Any(), gomock.Any()).Return(uint64(0), nil).AnyTimes()
	up.EXPECT().CodeAt(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, nil).AnyTimes()
	up.EXPECT().StorageAt(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(make([]byte, 32), nil).AnyTimes()
	up.EXPECT().BlockNumber(gomock.Any()).Return(uint64(120), nil)
	up.EXPECT().BlockByNumber(gomock.Any(), big.NewInt(100)).Return(upstreamBlock(100), nil)
	up.EXPECT().Close().AnyTimes()

	logDB, err := logdb.NewMem()
	require.NoError(t, err)
	opts := testOptions()
	opts.Alloc = func(st *state.State) error {
		return st.SetBalance(dev, new(uint256.Int).Mul(ether, uint256.NewInt(100)))
	}
	pin := uint64(100)
	fc, err := New(ctx, up, &pin, muxdb.NewMem(), logDB, opts)
	require.NoError(t, err)

	s := solo.New(fc, solo.Options{
		ChainConfig: runtime.NewChainConfig(1337),
		Coinbase:    dev,
		GasLimit:    30_000_000,
		GasPrice:    uint256.NewInt(1),
		Keystore:    accounts.NewManager([]*accounts.Account{accounts.NewAccount(devKey, ether)}),
		Logger:      testOptions().Logger,
	})
	t.Cleanup(func() { s.Close() })

	slot0 := func(num uint64) uint64 {
		st, err := fc.StateAt(num)
		require.NoError(t, err)
		v, err := st.GetStorage(counter, common.Hash{})
		require.NoError(t, err)
		return v.Big().Uint64()
	}
	call := func(num *uint64) uint64 {
		res, err := s.Call(ctx, &core.Message{
			From:      dev,
			To:        &counter,
			Value:     new(big.Int),
			GasPrice:  new(big.Int),
			GasFeeCap: new(big.Int),
			GasTipCap: new(big.Int),
		}, num)
		require.NoError(t, err)
		require.Nil(t, res.Failure)
		return new(big.Int).SetBytes(res.ReturnData).Uint64()
	}

	id, err := s.Snapshot(ctx)
	require.NoError(t, err)

	// the remote sender goes on from its upstream nonce
	nonce, err := s.Pool().PendingNonce(remote)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), nonce)
	tx, err := types.SignNewTx(remoteKey, types.LatestSignerForChainID(big.NewInt(1337)), &types.DynamicFeeTx{
		ChainID:   big.NewInt(1337),
		Nonce:     7,
		Gas:       100_000,
		GasFeeCap: big.NewInt(10),
		GasTipCap: big.NewInt(1),
		To:        &counter,
	})
	require.NoError(t, err)
	_, err = s.SendRawTransaction(ctx, tx)
	require.NoError(t, err)
	assert.Equal(t, uint64(101), fc.Height())

	gas := uint64(100_000)
	_, err = s.SendTransaction(ctx, &solo.TxRequest{From: &dev, To: &counter, Gas: &gas})
	require.NoError(t, err)
	assert.Equal(t, uint64(102), fc.Height())

	// remote storage read by the EVM, local writes on top of it
	assert.Equal(t, uint64(41), slot0(100))
	assert.Equal(t, uint64(42), slot0(101))
	assert.Equal(t, uint64(43), slot0(102))
	assert.Equal(t, uint64(42), call(&pin))
	assert.Equal(t, uint64(44), call(nil))
	assert.Equal(t, uint64(43), slot0(102), "calls leave no change")

	st, err := fc.StateAt(102)
	require.NoError(t, err)
	remoteNonce, err := st.GetNonce(remote)
	require.NoError(t, err)
	assert.Equal(t, uint64(8), remoteNonce)
	devNonce, err := st.GetNonce(dev)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), devNonce)

	// back to the pin
	ok, err := s.Revert(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(100), fc.Height())
	assert.Equal(t, upstreamBlock(100).Hash(), fc.Head().Hash())
	assert.Equal(t, uint64(41), slot0(100))
	nonce, err = s.Pool().PendingNonce(remote)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), nonce)

	st, err = fc.StateAt(100)
	require.NoError(t, err)
	bal, err := st.GetBalance(dev)
	require.NoError(t, err)
	assert.Equal(t, new(uint256.Int).Mul(ether, uint256.NewInt(100)), bal)

	// the same tx mines again on the reverted head
	_, err = s.SendRawTransaction(ctx, tx)
	require.NoError(t, err)
	assert.Equal(t, uint64(101), fc.Height())
	assert.Equal(t, uint64(42), slot0(101))
}
