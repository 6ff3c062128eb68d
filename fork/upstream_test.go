// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package fork

import (
	"context"
	"io"
	"math/big"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/golang/mock/gomock"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vechain/ethsim/metrics"
)

// fakeEth serves the few eth methods the upstream tests use.
type fakeEth struct {
	head     uint64
	balances map[common.Address]*big.Int
}

func (f *fakeEth) BlockNumber() hexutil.Uint64 {
	return hexutil.Uint64(f.head)
}

func (f *fakeEth) GetBalance(addr common.Address, _ rpc.BlockNumberOrHash) (*hexutil.Big, error) {
	bal, ok := f.balances[addr]
	if !ok {
		return nil, errors.New("unknown account")
	}
	return (*hexutil.Big)(bal), nil
}

func scrape(t *testing.T, m metrics.Metrics) string {
	rec := httptest.NewRecorder()
	m.GetOrCreateHandler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestRPCUpstream(t *testing.T) {
	srv := rpc.NewServer()
	defer srv.Stop()
	require.NoError(t, srv.RegisterName("eth", &fakeEth{
		head:     77,
		balances: map[common.Address]*big.Int{testAddr: big.NewInt(12345)},
	}))

	m := metrics.NewPrometheus(log.NewLogger(log.DiscardHandler()))
	up := NewRPCUpstream(ethclient.NewClient(rpc.DialInProc(srv)), 1000, m)
	defer up.Close()
	ctx := context.Background()

	head, err := up.BlockNumber(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(77), head)

	bal, err := up.BalanceAt(ctx, testAddr, big.NewInt(10))
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(12345), bal)

	_, err = up.BalanceAt(ctx, common.HexToAddress("0x01"), big.NewInt(10))
	assert.ErrorContains(t, err, "unknown account")

	body := scrape(t, m)
	assert.Contains(t, body, `ethsim_upstream_call_duration_ms_count{method="block_number",status="ok"} 1`)
	assert.Contains(t, body, `ethsim_upstream_call_duration_ms_count{method="balance_at",status="ok"} 1`)
	assert.Contains(t, body, `ethsim_upstream_call_duration_ms_count{method="balance_at",status="error"} 1`)
}

func TestRPCUpstreamPassesErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	mock := NewMockUpstream(ctrl)
	up := NewRPCUpstream(mock, 0, nil)
	boom := errors.New("boom")

	// no retries
	mock.EXPECT().StorageAt(gomock.Any(), testAddr, common.Hash{}, big.NewInt(1)).Return(nil, boom).Times(1)
	_, err := up.StorageAt(context.Background(), testAddr, common.Hash{}, big.NewInt(1))
	assert.Equal(t, boom, err)

	mock.EXPECT().Close()
	up.Close()
}
