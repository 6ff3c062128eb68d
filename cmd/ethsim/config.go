// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"os"
	"strconv"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// fileConfig is the YAML config file. Keys are the flag names.
type fileConfig struct {
	Seed           *string  `yaml:"seed"`
	Mnemonic       *string  `yaml:"mnemonic"`
	Accounts       *uint64  `yaml:"accounts"`
	Account        []string `yaml:"account"`
	DefaultBalance *uint64  `yaml:"default-balance-ether"`
	GasPrice       *string  `yaml:"gas-price"`
	GasLimit       *uint64  `yaml:"gas-limit"`
	BlockTime      *uint64  `yaml:"block-time"`
	Fork           *string  `yaml:"fork"`
	ForkRateLimit  *uint64  `yaml:"fork-rate-limit"`
	DB             *string  `yaml:"db"`
	ChainID        *uint64  `yaml:"chain-id"`
	NetworkID      *uint64  `yaml:"network-id"`
	VMErrorsOnRPC  *bool    `yaml:"vm-errors-on-rpc"`
	APIAddr        *string  `yaml:"api-addr"`
	APICors        *string  `yaml:"api-cors"`
	APILogsLimit   *uint64  `yaml:"api-logs-limit"`
	EnableAPILogs  *bool    `yaml:"enable-api-logs"`
	AdminAddr      *string  `yaml:"admin-addr"`
	EnableMetrics  *bool    `yaml:"enable-metrics"`
	MetricsAddr    *string  `yaml:"metrics-addr"`
	Verbosity      *uint64  `yaml:"verbosity"`
	JSONLogs       *bool    `yaml:"json-logs"`
}

func loadConfig(path string) (*fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read config")
	}
	var cfg fileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrapf(err, "decode config %s", path)
	}
	return &cfg, nil
}

// values returns the flag values set by the file, keyed by flag name.
func (c *fileConfig) values() map[string][]string {
	values := make(map[string][]string)
	str := func(name string, v *string) {
		if v != nil {
			values[name] = []string{*v}
		}
	}
	num := func(name string, v *uint64) {
		if v != nil {
			values[name] = []string{strconv.FormatUint(*v, 10)}
		}
	}
	boolean := func(name string, v *bool) {
		if v != nil {
			values[name] = []string{strconv.FormatBool(*v)}
		}
	}

	str(seedFlag.Name, c.Seed)
	str(mnemonicFlag.Name, c.Mnemonic)
	num(accountsFlag.Name, c.Accounts)
	if len(c.Account) > 0 {
		values[accountFlag.Name] = c.Account
	}
	num(defaultBalanceFlag.Name, c.DefaultBalance)
	str(gasPriceFlag.Name, c.GasPrice)
	num(gasLimitFlag.Name, c.GasLimit)
	num(blockTimeFlag.Name, c.BlockTime)
	str(forkFlag.Name, c.Fork)
	num(forkRateLimitFlag.Name, c.ForkRateLimit)
	str(dbFlag.Name, c.DB)
	num(chainIDFlag.Name, c.ChainID)
	num(networkIDFlag.Name, c.NetworkID)
	boolean(vmErrorsOnRPCFlag.Name, c.VMErrorsOnRPC)
	str(apiAddrFlag.Name, c.APIAddr)
	str(apiCorsFlag.Name, c.APICors)
	num(apiLogsLimitFlag.Name, c.APILogsLimit)
	boolean(enableAPILogsFlag.Name, c.EnableAPILogs)
	str(adminAddrFlag.Name, c.AdminAddr)
	boolean(enableMetricsFlag.Name, c.EnableMetrics)
	str(metricsAddrFlag.Name, c.MetricsAddr)
	num(verbosityFlag.Name, c.Verbosity)
	boolean(jsonLogsFlag.Name, c.JSONLogs)
	return values
}

// flagSetter is the part of cli.Context the config is applied through.
type flagSetter interface {
	IsSet(name string) bool
	Set(name, value string) error
}

// applyConfig sets the flags given in the file and not on the command line.
func applyConfig(ctx flagSetter, cfg *fileConfig) error {
	for name, vals := range cfg.values() {
		if ctx.IsSet(name) {
			continue
		}
		for _, v := range vals {
			if err := ctx.Set(name, v); err != nil {
				return errors.Wrapf(err, "config %s", name)
			}
		}
	}
	return nil
}
