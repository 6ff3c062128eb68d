// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package logdb

import (
	"math"

	"github.com/pkg/errors"
)

const (
	logIndexBits = 24
	logIndexMask = 1<<logIndexBits - 1
	blockNumMask = math.MaxInt64 >> logIndexBits
)

// sequence orders logs across the chain, packing block number and block wide log index.
type sequence int64

func newSequence(blockNum uint64, logIndex uint) (sequence, error) {
	if blockNum > blockNumMask {
		return 0, errors.New("block number out of range")
	}
	if logIndex > logIndexMask {
		return 0, errors.New("log index out of range")
	}
	return sequence(blockNum<<logIndexBits | uint64(logIndex)), nil
}

func (s sequence) BlockNumber() uint64 {
	return uint64(s) >> logIndexBits
}

func (s sequence) LogIndex() uint {
	return uint(s & logIndexMask)
}
