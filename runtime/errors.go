// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package runtime

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/pkg/errors"
)

const exceptionPrefix = "VM Exception while processing transaction: "

// Failure describes a transaction whose execution failed inside the VM.
// The transaction is still mined with a status-0 receipt.
type Failure struct {
	TxHash common.Hash
	// Reason is the short error kind, e.g. "revert" or "invalid opcode".
	Reason string
	// RevertReason is the decoded Error(string) payload, if any.
	RevertReason string
	// PC is the program counter of the top-level frame when execution stopped.
	PC         uint64
	ReturnData []byte
}

// Message returns the human readable exception message.
func (f *Failure) Message() string {
	if f.RevertReason != "" {
		return exceptionPrefix + f.Reason + " " + f.RevertReason
	}
	return exceptionPrefix + f.Reason
}

func (f *Failure) Error() string {
	return f.Message()
}

func newFailure(txHash common.Hash, vmErr error, pc uint64, ret []byte) *Failure {
	f := &Failure{
		TxHash:     txHash,
		Reason:     reasonOf(vmErr),
		PC:         pc,
		ReturnData: common.CopyBytes(ret),
	}
	if errors.Is(vmErr, vm.ErrExecutionReverted) {
		if reason, err := abi.UnpackRevert(ret); err == nil {
			f.RevertReason = reason
		}
	}
	return f
}

func reasonOf(vmErr error) string {
	var (
		invalidOp *vm.ErrInvalidOpCode
		underflow *vm.ErrStackUnderflow
		overflow  *vm.ErrStackOverflow
	)
	switch {
	case errors.Is(vmErr, vm.ErrExecutionReverted):
		return "revert"
	case errors.As(vmErr, &invalidOp):
		return "invalid opcode"
	case errors.Is(vmErr, vm.ErrOutOfGas), errors.Is(vmErr, vm.ErrCodeStoreOutOfGas):
		return "out of gas"
	case errors.Is(vmErr, vm.ErrInvalidJump):
		return "invalid JUMP"
	case errors.As(vmErr, &underflow):
		return "stack underflow"
	case errors.As(vmErr, &overflow):
		return "stack overflow"
	default:
		return vmErr.Error()
	}
}

// RuntimeError aggregates the VM failures of the transactions mined in one block.
type RuntimeError struct {
	failures []*Failure
}

// Add appends a failure.
func (e *RuntimeError) Add(f *Failure) {
	e.failures = append(e.failures, f)
}

// Failures returns failures in mining order.
func (e *RuntimeError) Failures() []*Failure {
	return e.failures
}

// Len returns the number of failures.
func (e *RuntimeError) Len() int {
	return len(e.failures)
}

// Find returns the failure of the given transaction.
func (e *RuntimeError) Find(txHash common.Hash) *Failure {
	for _, f := range e.failures {
		if f.TxHash == txHash {
			return f
		}
	}
	return nil
}

func (e *RuntimeError) Error() string {
	if len(e.failures) == 1 {
		return e.failures[0].Message()
	}
	var b strings.Builder
	b.WriteString("Multiple VM Exceptions while processing transactions:")
	for _, f := range e.failures {
		fmt.Fprintf(&b, "\n%s: %s", f.TxHash.Hex(), strings.TrimPrefix(f.Message(), exceptionPrefix))
	}
	return b.String()
}

// ErrorData returns the per-transaction details keyed by tx hash.
func (e *RuntimeError) ErrorData() any {
	data := make(map[string]any, len(e.failures))
	for _, f := range e.failures {
		entry := map[string]any{
			"error":           f.Reason,
			"program_counter": f.PC,
			"return":          hexutil.Bytes(f.ReturnData),
		}
		if f.RevertReason != "" {
			entry["reason"] = f.RevertReason
		}
		data[f.TxHash.Hex()] = entry
	}
	return data
}

// IsRuntimeError returns whether err carries VM failures.
func IsRuntimeError(err error) bool {
	_, ok := errors.Cause(err).(*RuntimeError)
	return ok
}
