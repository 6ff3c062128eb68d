// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package solo

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rawTx(nonce uint64) *types.Transaction {
	return types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &recipient,
		Gas:      21000,
		GasPrice: big.NewInt(1),
		Value:    big.NewInt(1),
	})
}

func admitAt(nonce uint64) func(uint64) (*types.Transaction, error) {
	return func(uint64) (*types.Transaction, error) { return rawTx(nonce), nil }
}

func TestTxPool(t *testing.T) {
	s := newSolo(t, 0)
	pool := NewTxPool(s.Chain())

	ch := make(chan *types.Transaction, 4)
	sub := pool.SubscribeTxs(ch)
	defer sub.Unsubscribe()

	var given []uint64
	for range 3 {
		tx, err := pool.Admit(dev, false, func(nonce uint64) (*types.Transaction, error) {
			given = append(given, nonce)
			return rawTx(nonce), nil
		})
		require.NoError(t, err)
		select {
		case got := <-ch:
			assert.Equal(t, tx.Hash(), got.Hash())
		case <-time.After(time.Second):
			t.Fatal("tx event not sent")
		}
	}
	assert.Equal(t, []uint64{0, 1, 2}, given)
	assert.Equal(t, 3, pool.Len())

	// a failed build pools nothing
	boom := errors.New("boom")
	_, err := pool.Admit(dev, false, func(uint64) (*types.Transaction, error) { return nil, boom })
	assert.Equal(t, boom, err)
	assert.Equal(t, 3, pool.Len())

	dump := pool.Dump()
	require.Len(t, dump, 3)
	assert.Equal(t, dump[1].tx, pool.Get(dump[1].tx.Hash()))

	pool.Remove(dump[0].tx.Hash(), dump[2].tx.Hash())
	assert.Equal(t, 1, pool.Len())
	assert.False(t, pool.Contains(dump[0].tx.Hash()))
	assert.True(t, pool.Contains(dump[1].tx.Hash()))
	// the pooled tx with nonce 1 still counts
	nonce, err := pool.PendingNonce(dev)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), nonce)

	pool.Reset(nil)
	nonce, err = pool.PendingNonce(dev)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), nonce)

	// reset rebuilds the next nonces
	_, err = pool.Admit(other, false, admitAt(0))
	require.NoError(t, err)
	_, err = pool.Admit(other, false, admitAt(1))
	require.NoError(t, err)
	pool.Reset(pool.Dump()[:1])
	nonce, err = pool.PendingNonce(other)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), nonce)
}

func TestSnapshots(t *testing.T) {
	var snaps Snapshots
	assert.Equal(t, uint64(1), snaps.Push(&snapshot{height: 1}))
	assert.Equal(t, uint64(2), snaps.Push(&snapshot{height: 2}))
	assert.Equal(t, uint64(3), snaps.Push(&snapshot{height: 3}))

	_, ok := snaps.PopTo(0)
	assert.False(t, ok)
	_, ok = snaps.PopTo(4)
	assert.False(t, ok)

	snap, ok := snaps.PopTo(2)
	require.True(t, ok)
	assert.Equal(t, uint64(2), snap.height)
	assert.Equal(t, 1, snaps.Len())

	_, ok = snaps.PopTo(2)
	assert.False(t, ok)
	assert.Equal(t, uint64(2), snaps.Push(&snapshot{height: 5}))
}
