// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package genesis builds the first block of a standalone chain.
package genesis

import (
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/vechain/ethsim/chain"
	"github.com/vechain/ethsim/logdb"
	"github.com/vechain/ethsim/muxdb"
)

// Open opens the standalone chain on db. The genesis is built and written
// only if db is empty, a stored genesis is kept as is.
func Open(db *muxdb.MuxDB, logDB *logdb.LogDB, b *Builder, opts chain.Options) (*chain.LocalChain, error) {
	base, found, err := chain.LoadBase(db)
	if err != nil {
		return nil, err
	}
	if !found {
		if base, err = b.Build(db); err != nil {
			return nil, err
		}
	} else if opts.Logger != nil {
		opts.Logger.Info("resuming stored chain", "genesis", base.Hash())
	}
	return chain.NewLocal(db, logDB, types.NewBlockWithHeader(base.Header()), opts)
}
