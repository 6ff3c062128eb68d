// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package api

import (
	"context"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/vechain/ethsim/logdb"
)

// subscribe forwards the items of a feed to a new rpc subscription until either side ends.
func subscribe[T any](ctx context.Context, feed func(ch chan<- T) event.Subscription, render func(T) ([]any, error)) (*rpc.Subscription, error) {
	notifier, supported := rpc.NotifierFromContext(ctx)
	if !supported {
		return &rpc.Subscription{}, rpc.ErrNotificationsUnsupported
	}
	rpcSub := notifier.CreateSubscription()

	ch := make(chan T, 64)
	sub := feed(ch)
	go func() {
		defer sub.Unsubscribe()
		for {
			select {
			case item := <-ch:
				msgs, err := render(item)
				if err != nil {
					return
				}
				for _, msg := range msgs {
					if err := notifier.Notify(rpcSub.ID, msg); err != nil {
						return
					}
				}
			case <-rpcSub.Err():
				return
			case <-sub.Err():
				return
			}
		}
	}()
	return rpcSub, nil
}

// NewHeads is the eth_subscribe "newHeads" subscription.
func (api *EthAPI) NewHeads(ctx context.Context) (*rpc.Subscription, error) {
	return subscribe(ctx, api.b.chain.SubscribeNewBlock, func(blk *types.Block) ([]any, error) {
		return []any{marshalHeader(blk.Header())}, nil
	})
}

// NewPendingTransactions is the eth_subscribe "newPendingTransactions" subscription.
func (api *EthAPI) NewPendingTransactions(ctx context.Context) (*rpc.Subscription, error) {
	return subscribe(ctx, api.b.solo.Pool().SubscribeTxs, func(tx *types.Transaction) ([]any, error) {
		return []any{tx.Hash()}, nil
	})
}

// Logs is the eth_subscribe "logs" subscription, one notification per matching log of each new block.
func (api *EthAPI) Logs(ctx context.Context, crit FilterCriteria) (*rpc.Subscription, error) {
	return subscribe(ctx, api.b.chain.SubscribeNewBlock, func(blk *types.Block) ([]any, error) {
		logs, err := api.b.chain.FilterLogs(context.Background(), &logdb.Filter{
			FromBlock: blk.NumberU64(),
			ToBlock:   blk.NumberU64(),
			Addresses: crit.Addresses,
			Topics:    crit.Topics,
		})
		if err != nil {
			api.b.logger.Warn("failed to read logs for subscription", "number", blk.NumberU64(), "err", err)
			return nil, err
		}
		msgs := make([]any, len(logs))
		for i, log := range logs {
			msgs[i] = log
		}
		return msgs, nil
	})
}
