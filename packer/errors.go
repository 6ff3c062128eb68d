// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package packer

import "github.com/pkg/errors"

var errGasLimitReached = errors.New("gas limit reached")

// IsGasLimitReached block if full of txs.
func IsGasLimitReached(err error) bool {
	return errors.Is(err, errGasLimitReached)
}

// IsBadTx not a valid tx. The cause is kept.
func IsBadTx(err error) bool {
	var bad *badTxError
	return errors.As(err, &bad)
}

type badTxError struct {
	err error
}

func (e *badTxError) Error() string {
	return "bad tx: " + e.err.Error()
}

func (e *badTxError) Cause() error {
	return e.err
}

func (e *badTxError) Unwrap() error {
	return e.err
}
