// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package chain

import (
	"crypto/ecdsa"
	"math/big"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vechain/ethsim/block"
	"github.com/vechain/ethsim/muxdb"
)

var (
	testKey, _ = crypto.HexToECDSA("c87509a1c067bbde78beb793e6fa76530b6382a4c0241e5e4a9ec0a0f44dc0d3")
	signer     = types.NewEIP155Signer(big.NewInt(1337))
	contract   = common.HexToAddress("0xc0ffee")
	topic      = common.HexToHash("0x0101")
)

func newTx(t *testing.T, key *ecdsa.PrivateKey, nonce uint64) *types.Transaction {
	tx, err := types.SignNewTx(key, signer, &types.LegacyTx{
		Nonce:    nonce,
		To:       &contract,
		Gas:      50000,
		GasPrice: big.NewInt(1),
	})
	require.NoError(t, err)
	return tx
}

func newGenesis() *types.Block {
	return new(block.Builder).Timestamp(1000).GasLimit(6721975).Build()
}

// nextBlock builds a block on parent with one tx per nonce, each emitting one log.
func nextBlock(t *testing.T, parent *types.Block, nonces ...uint64) (*types.Block, types.Receipts) {
	b := new(block.Builder).
		ParentHash(parent.Hash()).
		Number(parent.NumberU64() + 1).
		Timestamp(parent.Time() + 1).
		GasLimit(parent.GasLimit())
	var receipts types.Receipts
	for i, nonce := range nonces {
		logs := []*types.Log{{Address: contract, Topics: []common.Hash{topic}, Data: []byte{byte(nonce)}}}
		r := &types.Receipt{
			Status:            types.ReceiptStatusSuccessful,
			CumulativeGasUsed: uint64(30000 * (i + 1)),
			GasUsed:           30000,
			Logs:              logs,
			Bloom:             block.LogsBloom(logs),
			EffectiveGasPrice: big.NewInt(1),
		}
		receipts = append(receipts, r)
		b.Transaction(newTx(t, testKey, nonce), r)
	}
	blk := b.Build()
	block.Stamp(blk, receipts)
	return blk, receipts
}

func TestRepository(t *testing.T) {
	genesis := newGenesis()
	repo, err := NewRepository(muxdb.NewMem(), genesis, nil)
	require.NoError(t, err)
	assert.Equal(t, genesis.Hash(), repo.Head().Hash())
	assert.Equal(t, genesis.Hash(), repo.Base().Hash())

	b1, r1 := nextBlock(t, genesis, 0, 1)
	require.NoError(t, repo.AddBlock(b1, r1))
	b2, r2 := nextBlock(t, b1, 2)
	require.NoError(t, repo.AddBlock(b2, r2))
	assert.Equal(t, b2.Hash(), repo.Head().Hash())

	got, err := repo.BlockByNumber(1)
	require.NoError(t, err)
	assert.Equal(t, b1.Hash(), got.Hash())
	got, err = repo.BlockByHash(b2.Hash())
	require.NoError(t, err)
	assert.Equal(t, uint64(2), got.NumberU64())
	_, err = repo.BlockByNumber(3)
	assert.True(t, IsNotFound(err))

	tx, loc, err := repo.TransactionByHash(b1.Transactions()[1].Hash())
	require.NoError(t, err)
	assert.Equal(t, b1.Transactions()[1].Hash(), tx.Hash())
	assert.Equal(t, &TxLocation{b1.Hash(), 1, 1}, loc)

	receipt, err := repo.ReceiptByHash(b1.Transactions()[1].Hash())
	require.NoError(t, err)
	assert.Equal(t, uint64(60000), receipt.CumulativeGasUsed)
	assert.Equal(t, b1.Hash(), receipt.BlockHash)
	assert.Equal(t, uint(1), receipt.Logs[0].Index)
	assert.Equal(t, r1[1].Bloom, receipt.Bloom)

	// not on head
	assert.Error(t, repo.AddBlock(b1, r1))
}

func TestRepositoryTruncate(t *testing.T) {
	genesis := newGenesis()
	repo, err := NewRepository(muxdb.NewMem(), genesis, nil)
	require.NoError(t, err)

	parent := genesis
	var blocks []*types.Block
	for i := uint64(0); i < 5; i++ {
		blk, receipts := nextBlock(t, parent, i)
		require.NoError(t, repo.AddBlock(blk, receipts))
		blocks = append(blocks, blk)
		parent = blk
	}

	require.NoError(t, repo.Truncate(3))
	assert.Equal(t, uint64(2), repo.Head().NumberU64())

	_, err = repo.BlockByHash(blocks[3].Hash())
	assert.True(t, IsNotFound(err))
	_, _, err = repo.TransactionByHash(blocks[4].Transactions()[0].Hash())
	assert.True(t, IsNotFound(err))
	_, err = repo.Receipts(3)
	assert.True(t, IsNotFound(err))

	// the chain grows again from the new head
	blk, receipts := nextBlock(t, repo.Head(), 2)
	require.NoError(t, repo.AddBlock(blk, receipts))
	got, err := repo.BlockByNumber(3)
	require.NoError(t, err)
	assert.Equal(t, blk.Hash(), got.Hash())

	assert.Error(t, repo.Truncate(0))
	assert.NoError(t, repo.Truncate(10))
}

func TestRepositoryReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db")
	db, err := muxdb.Open(path, nil)
	require.NoError(t, err)

	genesis := newGenesis()
	repo, err := NewRepository(db, genesis, nil)
	require.NoError(t, err)
	b1, r1 := nextBlock(t, genesis, 0)
	require.NoError(t, repo.AddBlock(b1, r1))
	require.NoError(t, db.Close())

	db, err = muxdb.Open(path, nil)
	require.NoError(t, err)
	defer db.Close()

	base, found, err := LoadBase(db)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, genesis.Hash(), base.Hash())

	_, err = NewRepository(db, new(block.Builder).Timestamp(1).Build(), nil)
	assert.EqualError(t, err, "base block mismatch")

	repo, err = NewRepository(db, base, nil)
	require.NoError(t, err)
	assert.Equal(t, b1.Hash(), repo.Head().Hash())
}

func TestLoadBaseEmpty(t *testing.T) {
	_, found, err := LoadBase(muxdb.NewMem())
	require.NoError(t, err)
	assert.False(t, found)
}
