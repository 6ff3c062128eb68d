// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package api

import (
	"context"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"

	"github.com/vechain/ethsim/accounts"
	"github.com/vechain/ethsim/chain"
	"github.com/vechain/ethsim/filters"
	"github.com/vechain/ethsim/solo"
	"github.com/vechain/ethsim/state"
)

// backend is shared by the rpc services.
type backend struct {
	solo     *solo.Solo
	chain    chain.Chain
	accounts *accounts.Manager
	filters  *filters.Manager
	options  Options
	logger   log.Logger
}

// number resolves a tag to a block number. The pending block resolves to the head.
func (b *backend) number(ctx context.Context, tag BlockTag) (uint64, error) {
	head := b.chain.Height()
	switch {
	case tag.Hash != nil:
		blk, err := b.chain.BlockByHash(ctx, *tag.Hash)
		if err != nil {
			if chain.IsNotFound(err) {
				return 0, errHeaderNotFound
			}
			return 0, err
		}
		return blk.NumberU64(), nil
	case tag.Number != nil:
		if *tag.Number > head {
			return 0, errHeaderNotFound
		}
		return *tag.Number, nil
	case tag.Tag == TagEarliest:
		return 0, nil
	default:
		return head, nil
	}
}

// callNumber resolves a tag for eth_call, nil for the pending block.
func (b *backend) callNumber(ctx context.Context, tag *BlockTag) (*uint64, error) {
	if tag == nil || tag.IsPending() {
		return nil, nil
	}
	num, err := b.number(ctx, *tag)
	if err != nil {
		return nil, err
	}
	return &num, nil
}

func (b *backend) stateAt(ctx context.Context, tag *BlockTag) (*state.State, error) {
	t := Latest
	if tag != nil {
		t = *tag
	}
	num, err := b.number(ctx, t)
	if err != nil {
		return nil, err
	}
	return b.chain.StateAt(num)
}

// block returns the block of tag, nil if there is none.
func (b *backend) block(ctx context.Context, tag BlockTag) (*types.Block, error) {
	num, err := b.number(ctx, tag)
	if err != nil {
		if err == errHeaderNotFound {
			return nil, nil
		}
		return nil, err
	}
	blk, err := b.chain.BlockByNumber(ctx, num)
	if err != nil {
		if chain.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return blk, nil
}
