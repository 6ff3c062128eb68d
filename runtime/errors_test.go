// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package runtime

import (
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func revertData(t *testing.T, reason string) []byte {
	typ, err := abi.NewType("string", "", nil)
	require.NoError(t, err)
	packed, err := abi.Arguments{{Type: typ}}.Pack(reason)
	require.NoError(t, err)
	return append(common.FromHex("0x08c379a0"), packed...)
}

func TestReasonOf(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{vm.ErrExecutionReverted, "revert"},
		{&vm.ErrInvalidOpCode{}, "invalid opcode"},
		{vm.ErrOutOfGas, "out of gas"},
		{vm.ErrCodeStoreOutOfGas, "out of gas"},
		{vm.ErrInvalidJump, "invalid JUMP"},
		{&vm.ErrStackUnderflow{}, "stack underflow"},
		{vm.ErrWriteProtection, vm.ErrWriteProtection.Error()},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, reasonOf(tt.err))
	}
}

func TestFailureRevertReason(t *testing.T) {
	hash := common.HexToHash("0x01")
	f := newFailure(hash, vm.ErrExecutionReverted, 42, revertData(t, "nope"))
	assert.Equal(t, "nope", f.RevertReason)
	assert.Equal(t, "VM Exception while processing transaction: revert nope", f.Message())

	f = newFailure(hash, vm.ErrOutOfGas, 7, nil)
	assert.Empty(t, f.RevertReason)
	assert.Equal(t, "VM Exception while processing transaction: out of gas", f.Error())
}

func TestRuntimeError(t *testing.T) {
	h1, h2 := common.HexToHash("0x01"), common.HexToHash("0x02")
	rerr := &RuntimeError{}
	rerr.Add(newFailure(h1, vm.ErrExecutionReverted, 4, revertData(t, "nope")))
	assert.Equal(t, "VM Exception while processing transaction: revert nope", rerr.Error())

	rerr.Add(newFailure(h2, &vm.ErrInvalidOpCode{}, 9, nil))
	assert.Equal(t, 2, rerr.Len())
	assert.Equal(t, h2, rerr.Find(h2).TxHash)
	assert.Nil(t, rerr.Find(common.Hash{}))
	assert.Equal(t, "Multiple VM Exceptions while processing transactions:\n"+
		h1.Hex()+": revert nope\n"+
		h2.Hex()+": invalid opcode", rerr.Error())

	data := rerr.ErrorData().(map[string]any)
	require.Len(t, data, 2)
	first := data[h1.Hex()].(map[string]any)
	assert.Equal(t, "revert", first["error"])
	assert.Equal(t, uint64(4), first["program_counter"])
	assert.Equal(t, "nope", first["reason"])
	assert.Equal(t, hexutil.Bytes(revertData(t, "nope")), first["return"])
	second := data[h2.Hex()].(map[string]any)
	assert.NotContains(t, second, "reason")

	assert.True(t, IsRuntimeError(errors.Wrap(rerr, "mine")))
	assert.False(t, IsRuntimeError(errors.New("other")))
}
