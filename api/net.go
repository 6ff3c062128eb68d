// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package api

import (
	"strconv"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// NetAPI serves the net namespace.
type NetAPI struct {
	b *backend
}

// Version returns the network id in decimal.
func (api *NetAPI) Version() string {
	return strconv.FormatUint(api.b.options.NetworkID, 10)
}

func (api *NetAPI) Listening() bool {
	return true
}

func (api *NetAPI) PeerCount() hexutil.Uint {
	return 0
}

// Web3API serves the web3 namespace.
type Web3API struct {
	b *backend
}

func (api *Web3API) ClientVersion() string {
	return api.b.options.ClientVersion
}

// Sha3 returns the keccak256 of input.
func (api *Web3API) Sha3(input hexutil.Bytes) hexutil.Bytes {
	return crypto.Keccak256(input)
}
