// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	cli "gopkg.in/urfave/cli.v1"
)

var (
	configFlag = cli.StringFlag{
		Name:  "config",
		Usage: "path to a YAML file of flag values, explicit flags take precedence",
	}
	seedFlag = cli.StringFlag{
		Name:  "seed",
		Usage: "derive the accounts mnemonic deterministically from this seed",
	}
	mnemonicFlag = cli.StringFlag{
		Name:  "mnemonic",
		Usage: "BIP-39 mnemonic to derive the accounts from",
	}
	accountsFlag = cli.UintFlag{
		Name:  "accounts",
		Value: 10,
		Usage: "number of accounts derived from the mnemonic",
	}
	accountFlag = cli.StringSliceFlag{
		Name:  "account",
		Usage: "explicit account as 'privkey,balance' in wei, repeatable, replaces the derived accounts",
	}
	defaultBalanceFlag = cli.Uint64Flag{
		Name:  "default-balance-ether",
		Value: 100,
		Usage: "balance of each derived account in ether",
	}
	gasPriceFlag = cli.StringFlag{
		Name:  "gas-price",
		Value: "20000000000",
		Usage: "gas price in wei of txs that set none",
	}
	gasLimitFlag = cli.Uint64Flag{
		Name:  "gas-limit",
		Value: 6721975,
		Usage: "block gas limit",
	}
	blockTimeFlag = cli.Uint64Flag{
		Name:  "block-time",
		Usage: "seconds between mined blocks, 0 mines a block on every tx",
	}
	forkFlag = cli.StringFlag{
		Name:  "fork",
		Usage: "fork an upstream node given as 'url[@block]', the head if no block is given",
	}
	forkRateLimitFlag = cli.IntFlag{
		Name:  "fork-rate-limit",
		Usage: "max upstream requests per second, 0 for no limit",
	}
	dbFlag = cli.StringFlag{
		Name:  "db",
		Usage: "directory of the chain databases, in memory if empty",
	}
	chainIDFlag = cli.Uint64Flag{
		Name:  "chain-id",
		Value: 1337,
		Usage: "chain id of signed txs and eth_chainId",
	}
	networkIDFlag = cli.Uint64Flag{
		Name:  "network-id",
		Value: 5777,
		Usage: "network id returned by net_version",
	}
	vmErrorsOnRPCFlag = cli.BoolTFlag{
		Name:  "vm-errors-on-rpc",
		Usage: "report VM failures of sent txs and calls as RPC errors",
	}
	apiAddrFlag = cli.StringFlag{
		Name:  "api-addr",
		Value: "localhost:8545",
		Usage: "JSON-RPC http and websocket listening address",
	}
	apiCorsFlag = cli.StringFlag{
		Name:  "api-cors",
		Value: "*",
		Usage: "comma separated list of domains from which to accept cross origin requests to API",
	}
	apiLogsLimitFlag = cli.Uint64Flag{
		Name:  "api-logs-limit",
		Value: 10000,
		Usage: "limit the number of logs returned by eth_getLogs, 0 for no limit",
	}
	enableAPILogsFlag = cli.BoolFlag{
		Name:  "enable-api-logs",
		Usage: "enables API requests logging",
	}
	apiSlowQueriesThresholdFlag = cli.Uint64Flag{
		Name:  "api-slow-queries-threshold",
		Usage: "all queries with duration (in milliseconds) greater than this value will be logged",
	}
	apiLog5xxErrorsFlag = cli.BoolFlag{
		Name:  "api-log-5xx-errors",
		Usage: "log all requests resulting in 5xx status codes",
	}
	adminAddrFlag = cli.StringFlag{
		Name:  "admin-addr",
		Usage: "admin server listening address, empty to disable",
	}
	enableMetricsFlag = cli.BoolFlag{
		Name:  "enable-metrics",
		Usage: "enables metrics collection",
	}
	metricsAddrFlag = cli.StringFlag{
		Name:  "metrics-addr",
		Value: "localhost:2112",
		Usage: "metrics service listening address",
	}
	verbosityFlag = cli.Uint64Flag{
		Name:  "verbosity",
		Value: 3,
		Usage: "log verbosity (0-5)",
	}
	jsonLogsFlag = cli.BoolFlag{
		Name:  "json-logs",
		Usage: "output logs in JSON format",
	}
)
