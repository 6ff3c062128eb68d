// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package solo

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrMissingFrom          = errors.New("from not specified")
	ErrUnknownAccount       = errors.New("sender account not recognized")
	ErrExceedsBlockGasLimit = errors.New("exceeds block gas limit")
	ErrIntrinsicGas         = errors.New("intrinsic gas too low")
	// ErrTxDropped fails an awaited tx that left the pool unmined, by a revert
	// or a failed seal.
	ErrTxDropped = errors.New("transaction dropped before being mined")
)

// NonceError rejects a tx whose nonce is not the next one of its sender.
type NonceError struct {
	Expected uint64
	Given    uint64
}

func (e *NonceError) Error() string {
	return fmt.Sprintf("the tx doesn't have the correct nonce. account has nonce of: %d tx has nonce of: %d", e.Expected, e.Given)
}

// IsNonceError returns whether err is caused by a wrong nonce.
func IsNonceError(err error) bool {
	_, ok := errors.Cause(err).(*NonceError)
	return ok
}
