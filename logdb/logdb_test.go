// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package logdb

import (
	"context"
	"math/big"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	addrA  = common.BytesToAddress([]byte("addrA"))
	addrB  = common.BytesToAddress([]byte("addrB"))
	topic0 = common.BytesToHash([]byte("topic0"))
	topic1 = common.BytesToHash([]byte("topic1"))
)

func newBlock(num uint64) *types.Block {
	return types.NewBlockWithHeader(&types.Header{Number: new(big.Int).SetUint64(num)})
}

// fill inserts two logs per block for blocks 1..n.
// Even blocks emit from addrA, odd ones from addrB.
func fill(t *testing.T, db *LogDB, n uint64) {
	for num := uint64(1); num <= n; num++ {
		blk := newBlock(num)
		addr := addrB
		if num%2 == 0 {
			addr = addrA
		}
		err := db.Prepare(blk).Insert(
			&types.Log{Address: addr, Topics: []common.Hash{topic0}, Data: []byte{byte(num)}, TxHash: common.Hash{byte(num)}, Index: 0},
			&types.Log{Address: addr, Topics: []common.Hash{topic0, topic1}, TxIndex: 1, Index: 1},
		).Commit()
		require.NoError(t, err)
	}
}

func TestFilterLogs(t *testing.T) {
	db, err := NewMem()
	require.NoError(t, err)
	defer db.Close()
	fill(t, db, 10)

	ctx := context.Background()
	tests := []struct {
		name   string
		filter Filter
		want   int
	}{
		{"all", Filter{FromBlock: 0, ToBlock: 100}, 20},
		{"range", Filter{FromBlock: 3, ToBlock: 4}, 4},
		{"address", Filter{FromBlock: 0, ToBlock: 100, Addresses: []common.Address{addrA}}, 10},
		{"addresses", Filter{FromBlock: 0, ToBlock: 100, Addresses: []common.Address{addrA, addrB}}, 20},
		{"topic wildcard", Filter{FromBlock: 0, ToBlock: 100, Topics: [][]common.Hash{{}, {topic1}}}, 10},
		{"topic position", Filter{FromBlock: 0, ToBlock: 100, Topics: [][]common.Hash{{topic1}}}, 0},
		{"topic count", Filter{FromBlock: 0, ToBlock: 100, Topics: [][]common.Hash{{topic0}, {}}}, 10},
		{"topic or", Filter{FromBlock: 0, ToBlock: 100, Topics: [][]common.Hash{{topic1, topic0}}}, 20},
		{"limit", Filter{FromBlock: 0, ToBlock: 100, Limit: 3}, 3},
		{"inverted range", Filter{FromBlock: 5, ToBlock: 4}, 0},
		{"too many topics", Filter{FromBlock: 0, ToBlock: 100, Topics: make([][]common.Hash, 5)}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logs, err := db.FilterLogs(ctx, &tt.filter)
			require.NoError(t, err)
			assert.Len(t, logs, tt.want)
		})
	}
}

func TestFilterLogsFields(t *testing.T) {
	db, err := NewMem()
	require.NoError(t, err)
	defer db.Close()
	fill(t, db, 3)

	logs, err := db.FilterLogs(context.Background(), &Filter{FromBlock: 2, ToBlock: 2})
	require.NoError(t, err)
	require.Len(t, logs, 2)

	blk := newBlock(2)
	assert.Equal(t, addrA, logs[0].Address)
	assert.Equal(t, []common.Hash{topic0}, logs[0].Topics)
	assert.Equal(t, []byte{2}, logs[0].Data)
	assert.Equal(t, uint64(2), logs[0].BlockNumber)
	assert.Equal(t, blk.Hash(), logs[0].BlockHash)
	assert.Equal(t, common.Hash{2}, logs[0].TxHash)
	assert.Equal(t, uint(1), logs[1].Index)
	assert.Equal(t, uint(1), logs[1].TxIndex)
	assert.Equal(t, []common.Hash{topic0, topic1}, logs[1].Topics)
}

func TestTruncate(t *testing.T) {
	db, err := NewMem()
	require.NoError(t, err)
	defer db.Close()
	fill(t, db, 10)

	require.NoError(t, db.Truncate(6))
	logs, err := db.FilterLogs(context.Background(), &Filter{FromBlock: 0, ToBlock: 100})
	require.NoError(t, err)
	assert.Len(t, logs, 10)
	assert.Equal(t, uint64(5), logs[len(logs)-1].BlockNumber)
}

func TestPersistent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs.db")
	db, err := New(path)
	require.NoError(t, err)
	fill(t, db, 2)
	assert.Equal(t, path, db.Path())
	assert.NotEmpty(t, db.DriverVersion())
	require.NoError(t, db.Close())

	db, err = New(path)
	require.NoError(t, err)
	defer db.Close()
	logs, err := db.FilterLogs(context.Background(), &Filter{FromBlock: 0, ToBlock: 10})
	require.NoError(t, err)
	assert.Len(t, logs, 4)
}

func TestSequence(t *testing.T) {
	seq, err := newSequence(123456, 789)
	require.NoError(t, err)
	assert.Equal(t, uint64(123456), seq.BlockNumber())
	assert.Equal(t, uint(789), seq.LogIndex())

	_, err = newSequence(blockNumMask+1, 0)
	assert.Error(t, err)
	_, err = newSequence(0, logIndexMask+1)
	assert.Error(t, err)
}
