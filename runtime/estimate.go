// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package runtime

import (
	"github.com/ethereum/go-ethereum/core"
	"github.com/ethereum/go-ethereum/params"
	"github.com/pkg/errors"
)

// EstimateGas returns the lowest gas limit msg succeeds with, searching up to
// the message gas limit, or the block gas limit if the message has none.
// A message failing at the cap returns its failure as the error.
func (rt *Runtime) EstimateGas(msg *core.Message) (uint64, error) {
	hi := msg.GasLimit
	if hi == 0 || hi > rt.ctx.GasLimit {
		hi = rt.ctx.GasLimit
	}

	run := func(gas uint64) (*CallResult, error) {
		m := *msg
		m.GasLimit = gas
		return rt.Call(&m)
	}

	res, err := run(hi)
	if err != nil {
		return 0, err
	}
	if res.Failure != nil {
		return 0, res.Failure
	}

	// gas used after refunds never exceeds the gas needed
	lo := res.UsedGas - 1
	if lo < params.TxGas-1 {
		lo = params.TxGas - 1
	}
	for lo+1 < hi {
		mid := lo + (hi-lo)/2
		res, err := run(mid)
		if err != nil && !isGasError(err) {
			return 0, err
		}
		if err != nil || res.Failure != nil {
			lo = mid
		} else {
			hi = mid
		}
	}
	return hi, nil
}

func isGasError(err error) bool {
	return errors.Is(err, core.ErrIntrinsicGas) || errors.Is(err, core.ErrFloorDataGas)
}
