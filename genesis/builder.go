// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package genesis

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"

	"github.com/vechain/ethsim/block"
	"github.com/vechain/ethsim/muxdb"
	"github.com/vechain/ethsim/state"
)

// Builder helper to build genesis block.
type Builder struct {
	timestamp uint64
	gasLimit  uint64
	coinbase  common.Address
	extraData []byte

	stateProcs []func(st *state.State) error
}

// Timestamp set timestamp.
func (b *Builder) Timestamp(t uint64) *Builder {
	b.timestamp = t
	return b
}

// GasLimit set gas limit.
func (b *Builder) GasLimit(limit uint64) *Builder {
	b.gasLimit = limit
	return b
}

// Coinbase set the coinbase of the genesis header.
func (b *Builder) Coinbase(addr common.Address) *Builder {
	b.coinbase = addr
	return b
}

// ExtraData set extra data.
func (b *Builder) ExtraData(data []byte) *Builder {
	b.extraData = data
	return b
}

// State add a state process
func (b *Builder) State(proc func(st *state.State) error) *Builder {
	b.stateProcs = append(b.stateProcs, proc)
	return b
}

// Alloc funds addr with balance.
func (b *Builder) Alloc(addr common.Address, balance *uint256.Int) *Builder {
	balance = balance.Clone()
	return b.State(func(st *state.State) error {
		return st.SetBalance(addr, balance)
	})
}

// ApplyState runs the state processes on st.
// A forked chain uses it to fund accounts at the pin.
func (b *Builder) ApplyState(st *state.State) error {
	for _, proc := range b.stateProcs {
		if err := proc(st); err != nil {
			return errors.Wrap(err, "state process")
		}
	}
	return nil
}

// Build commits the genesis state into db and returns the genesis block.
func (b *Builder) Build(db *muxdb.MuxDB) (*types.Block, error) {
	store := state.NewStore(db)
	st := state.New(store, 0, nil)
	if err := b.ApplyState(st); err != nil {
		return nil, err
	}
	if err := store.Commit(0, st.Stage()); err != nil {
		return nil, errors.Wrap(err, "commit state")
	}
	stateRoot, err := store.Root(0)
	if err != nil {
		return nil, errors.Wrap(err, "state root")
	}

	return new(block.Builder).
		Number(0).
		Timestamp(b.timestamp).
		GasLimit(b.gasLimit).
		Coinbase(b.coinbase).
		Extra(b.extraData).
		StateRoot(stateRoot).
		Build(), nil
}
