// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"math"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"
)

// EVMAPI serves the evm namespace of the simulator.
type EVMAPI struct {
	b *backend
}

// Snapshot records the chain tail, returns the id to revert to.
func (api *EVMAPI) Snapshot(ctx context.Context) (hexutil.Uint64, error) {
	id, err := api.b.solo.Snapshot(ctx)
	return hexutil.Uint64(id), err
}

// Revert restores the snapshot id, dropping it and every later one.
// Unknown ids return false.
func (api *EVMAPI) Revert(ctx context.Context, id Quantity) (bool, error) {
	return api.b.solo.Revert(ctx, uint64(id))
}

// IncreaseTime moves the clock forward, returns the total offset in seconds.
// The total offset must fit an int64.
func (api *EVMAPI) IncreaseTime(seconds Quantity) (int64, error) {
	if offset := api.b.solo.TimeOffset(); uint64(seconds) > uint64(math.MaxInt64-max(offset, 0)) {
		return 0, errors.Errorf("seconds %d out of range", uint64(seconds))
	}
	return api.b.solo.IncreaseTime(int64(seconds)), nil
}

// MineOptions is the evm_mine parameter: a timestamp, or {"timestamp", "blocks"}.
type MineOptions struct {
	Timestamp *uint64
	Blocks    uint64
}

// UnmarshalJSON implements json.Unmarshaler.
func (o *MineOptions) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var obj struct {
			Timestamp *Quantity `json:"timestamp"`
			Blocks    *Quantity `json:"blocks"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return err
		}
		if obj.Timestamp != nil {
			ts := uint64(*obj.Timestamp)
			o.Timestamp = &ts
		}
		if obj.Blocks != nil {
			o.Blocks = uint64(*obj.Blocks)
		}
		return nil
	}
	var ts Quantity
	if err := ts.UnmarshalJSON(data); err != nil {
		return err
	}
	v := uint64(ts)
	o.Timestamp = &v
	return nil
}

// Mine mines blocks with the queued txs, the first one at the given timestamp.
func (api *EVMAPI) Mine(ctx context.Context, opts *MineOptions) (string, error) {
	var (
		ts     *uint64
		blocks uint64 = 1
	)
	if opts != nil {
		ts = opts.Timestamp
		if opts.Blocks > 0 {
			blocks = opts.Blocks
		}
	}
	for i := uint64(0); i < blocks; i++ {
		if _, err := api.b.solo.Mine(ctx, ts); err != nil {
			return "", err
		}
		ts = nil
	}
	return "0x0", nil
}

// MinerAPI serves the miner namespace.
type MinerAPI struct {
	b *backend
}

// Start resumes mining. The thread count is accepted and ignored.
func (api *MinerAPI) Start(ctx context.Context, threads *Quantity) (bool, error) {
	if err := api.b.solo.Start(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// Stop pauses mining, sent txs stay queued.
func (api *MinerAPI) Stop() bool {
	api.b.solo.Stop()
	return true
}
