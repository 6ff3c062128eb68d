// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package runtime executes transactions and calls on the EVM.
package runtime

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core"
	"github.com/ethereum/go-ethereum/core/tracing"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/params"
	"github.com/pkg/errors"

	"github.com/vechain/ethsim/block"
	"github.com/vechain/ethsim/state"
)

// ErrTxTypeNotSupported is returned for blob and set-code transactions.
var ErrTxTypeNotSupported = errors.New("transaction type not supported")

// Context is the block environment transactions are executed in.
type Context struct {
	Coinbase common.Address
	Number   uint64
	Time     uint64
	GasLimit uint64
	GetHash  vm.GetHashFunc
}

// Output output of tx execution.
type Output struct {
	Receipt         *types.Receipt
	GasUsed         uint64
	Logs            []*types.Log
	ContractAddress *common.Address
	ReturnData      []byte
	// Failure is set when the VM failed. The receipt then has status 0.
	Failure *Failure
}

// Runtime bases on EVM.
type Runtime struct {
	chainConfig *params.ChainConfig
	signer      types.Signer
	state       *state.State
	ctx         *Context
}

// New create a Runtime object.
func New(chainConfig *params.ChainConfig, st *state.State, ctx *Context) *Runtime {
	return &Runtime{
		chainConfig: chainConfig,
		signer:      types.LatestSigner(chainConfig),
		state:       st,
		ctx:         ctx,
	}
}

func (rt *Runtime) State() *state.State              { return rt.state }
func (rt *Runtime) Context() *Context                { return rt.ctx }
func (rt *Runtime) Signer() types.Signer             { return rt.signer }
func (rt *Runtime) ChainConfig() *params.ChainConfig { return rt.chainConfig }

func (rt *Runtime) blockContext() vm.BlockContext {
	getHash := rt.ctx.GetHash
	if getHash == nil {
		getHash = func(uint64) common.Hash { return common.Hash{} }
	}
	return vm.BlockContext{
		CanTransfer: core.CanTransfer,
		Transfer:    core.Transfer,
		GetHash:     getHash,
		Coinbase:    rt.ctx.Coinbase,
		BlockNumber: new(big.Int).SetUint64(rt.ctx.Number),
		Time:        rt.ctx.Time,
		Difficulty:  new(big.Int),
		GasLimit:    rt.ctx.GasLimit,
		BaseFee:     new(big.Int),
		BlobBaseFee: big.NewInt(1),
		Random:      &common.Hash{},
	}
}

// pcRecorder keeps the program counter of the last opcode run in the top-level frame.
type pcRecorder struct {
	pc uint64
}

func (r *pcRecorder) hooks() *tracing.Hooks {
	return &tracing.Hooks{
		OnOpcode: func(pc uint64, _ byte, _, _ uint64, _ tracing.OpContext, _ []byte, depth int, _ error) {
			if depth == 1 {
				r.pc = pc
			}
		},
	}
}

type execution struct {
	result  *core.ExecutionResult
	logs    []*types.Log
	pc      uint64
	created *common.Address
}

// execute applies msg on the state under a checkpoint. With commit false, or on
// a consensus error, every change is dropped.
func (rt *Runtime) execute(msg *core.Message, commit bool) (*execution, error) {
	rev := rt.state.Checkpoint()
	sdb := state.NewStateDB(rt.state)

	var pcs pcRecorder
	evm := vm.NewEVM(rt.blockContext(), sdb, rt.chainConfig, vm.Config{Tracer: pcs.hooks()})
	evm.SetTxContext(core.NewEVMTxContext(msg))

	result, err := core.ApplyMessage(evm, msg, new(core.GasPool).AddGas(msg.GasLimit))
	if err != nil {
		rt.state.RevertTo(rev)
		return nil, err
	}
	sdb.Finalise(true)
	if err := sdb.Error(); err != nil {
		rt.state.RevertTo(rev)
		return nil, errors.Wrap(err, "state access")
	}

	exec := &execution{
		result: result,
		logs:   sdb.Logs(),
		pc:     pcs.pc,
	}
	if msg.To == nil && !result.Failed() {
		addr := crypto.CreateAddress(msg.From, msg.Nonce)
		exec.created = &addr
	}
	if commit {
		rt.state.CommitTo(rev)
	} else {
		rt.state.RevertTo(rev)
	}
	return exec, nil
}

// ExecuteTransaction executes a transaction.
// The returned error means the tx is not includable and the state is untouched.
// A VM failure is reported through Output.Failure.
func (rt *Runtime) ExecuteTransaction(tx *types.Transaction) (*Output, error) {
	switch tx.Type() {
	case types.BlobTxType, types.SetCodeTxType:
		return nil, ErrTxTypeNotSupported
	}
	msg, err := core.TransactionToMessage(tx, rt.signer, new(big.Int))
	if err != nil {
		return nil, errors.Wrap(err, "recover sender")
	}
	exec, err := rt.execute(msg, true)
	if err != nil {
		return nil, err
	}

	receipt := &types.Receipt{
		Type:              tx.Type(),
		GasUsed:           exec.result.UsedGas,
		Logs:              exec.logs,
		TxHash:            tx.Hash(),
		EffectiveGasPrice: new(big.Int).Set(msg.GasPrice),
	}
	if receipt.Logs == nil {
		receipt.Logs = []*types.Log{}
	}
	receipt.Bloom = block.LogsBloom(receipt.Logs)
	if exec.created != nil {
		receipt.ContractAddress = *exec.created
	}

	output := &Output{
		Receipt:         receipt,
		GasUsed:         exec.result.UsedGas,
		Logs:            receipt.Logs,
		ContractAddress: exec.created,
		ReturnData:      exec.result.ReturnData,
	}
	if exec.result.Failed() {
		receipt.Status = types.ReceiptStatusFailed
		output.Failure = newFailure(tx.Hash(), exec.result.Err, exec.pc, exec.result.Revert())
	} else {
		receipt.Status = types.ReceiptStatusSuccessful
	}
	return output, nil
}

// CallResult result of a call.
type CallResult struct {
	UsedGas    uint64
	ReturnData []byte
	// Failure is set when the VM failed. Its TxHash is zero.
	Failure *Failure
}

// Call executes msg without leaving any change on the state.
// The message nonce is taken from the state.
func (rt *Runtime) Call(msg *core.Message) (*CallResult, error) {
	nonce, err := rt.state.GetNonce(msg.From)
	if err != nil {
		return nil, err
	}
	m := *msg
	m.Nonce = nonce
	exec, err := rt.execute(&m, false)
	if err != nil {
		return nil, err
	}
	res := &CallResult{
		UsedGas:    exec.result.UsedGas,
		ReturnData: exec.result.ReturnData,
	}
	if exec.result.Failed() {
		res.Failure = newFailure(common.Hash{}, exec.result.Err, exec.pc, exec.result.Revert())
	}
	return res, nil
}
