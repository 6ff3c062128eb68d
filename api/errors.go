// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package api

import (
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/pkg/errors"

	"github.com/vechain/ethsim/runtime"
)

const vmErrorCode = -32000

var (
	errHeaderNotFound = errors.New("header not found")

	_ rpc.Error     = (*vmError)(nil)
	_ rpc.DataError = (*vmError)(nil)
)

// vmError carries VM exceptions to the client.
type vmError struct {
	msg  string
	data any
}

func (e *vmError) Error() string  { return e.msg }
func (e *vmError) ErrorCode() int { return vmErrorCode }
func (e *vmError) ErrorData() any { return e.data }

// sendError converts the failures of the block a sent tx was mined in.
func sendError(err *runtime.RuntimeError) error {
	return &vmError{msg: err.Error(), data: err.ErrorData()}
}

// callError converts the failure of a call.
func callError(f *runtime.Failure) error {
	data := map[string]any{
		"error":           f.Reason,
		"program_counter": f.PC,
		"return":          hexutil.Bytes(f.ReturnData),
	}
	if f.RevertReason != "" {
		data["reason"] = f.RevertReason
	}
	return &vmError{msg: f.Message(), data: data}
}
