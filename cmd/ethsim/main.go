// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/vechain/ethsim/accounts"
	"github.com/vechain/ethsim/api"
	"github.com/vechain/ethsim/api/admin"
	"github.com/vechain/ethsim/filters"
	"github.com/vechain/ethsim/metrics"
	"github.com/vechain/ethsim/runtime"
	"github.com/vechain/ethsim/solo"
)

var (
	version   string
	gitCommit string
	gitTag    string
)

func fullVersion() string {
	versionMeta := "release"
	if gitTag == "" {
		versionMeta = "dev"
	}
	return fmt.Sprintf("ethsim/%s-%s-%s", version, gitCommit, versionMeta)
}

func main() {
	app := cli.App{
		Version: fullVersion(),
		Name:    "ethsim",
		Usage:   "Local Ethereum node simulator for test & dev",
		Flags: []cli.Flag{
			configFlag,
			seedFlag,
			mnemonicFlag,
			accountsFlag,
			accountFlag,
			defaultBalanceFlag,
			gasPriceFlag,
			gasLimitFlag,
			blockTimeFlag,
			forkFlag,
			forkRateLimitFlag,
			dbFlag,
			chainIDFlag,
			networkIDFlag,
			vmErrorsOnRPCFlag,
			apiAddrFlag,
			apiCorsFlag,
			apiLogsLimitFlag,
			enableAPILogsFlag,
			apiSlowQueriesThresholdFlag,
			apiLog5xxErrorsFlag,
			adminAddrFlag,
			enableMetricsFlag,
			metricsAddrFlag,
			verbosityFlag,
			jsonLogsFlag,
		},
		Action: defaultAction,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func defaultAction(ctx *cli.Context) error {
	if path := ctx.String(configFlag.Name); path != "" {
		cfg, err := loadConfig(path)
		if err != nil {
			return err
		}
		if err := applyConfig(ctx, cfg); err != nil {
			return err
		}
	}

	logger, logLevel := initLogger(ctx)
	defer func() { logger.Info("exited") }()

	m := metrics.NewNoop()
	if ctx.Bool(enableMetricsFlag.Name) {
		m = metrics.NewPrometheus(logger)
	}

	gasPrice, err := accounts.ParseBalance(ctx.String(gasPriceFlag.Name))
	if err != nil {
		return err
	}
	setup, err := loadAccounts(ctx)
	if err != nil {
		return err
	}
	keystore := accounts.NewManager(setup.accounts)

	exitCtx := handleExitSignal()
	c, err := openChain(exitCtx, ctx, setup, logger, m)
	if err != nil {
		return err
	}

	chainID := ctx.Uint64(chainIDFlag.Name)
	s := solo.New(c, solo.Options{
		ChainConfig:   runtime.NewChainConfig(chainID),
		GasLimit:      ctx.Uint64(gasLimitFlag.Name),
		GasPrice:      gasPrice,
		BlockInterval: time.Duration(ctx.Uint64(blockTimeFlag.Name)) * time.Second,
		Keystore:      keystore,
		Logger:        logger,
		Metrics:       m,
	})
	defer func() {
		logger.Info("closing chain...")
		if err := s.Close(); err != nil {
			logger.Warn("failed to close chain", "err", err)
		}
	}()

	fm := filters.New(c, s.Pool(), filters.Options{
		OnPoll:  s.Tick,
		Logger:  logger,
		Metrics: m,
	})
	apiLogs := new(atomic.Bool)
	apiLogs.Store(ctx.Bool(enableAPILogsFlag.Name))
	handler, stopRPC, err := api.New(s, keystore, fm, api.Options{
		ChainID:              chainID,
		NetworkID:            ctx.Uint64(networkIDFlag.Name),
		ClientVersion:        fullVersion(),
		VMErrorsOnRPC:        ctx.BoolT(vmErrorsOnRPCFlag.Name),
		LogsLimit:            ctx.Uint64(apiLogsLimitFlag.Name),
		AllowedOrigins:       ctx.String(apiCorsFlag.Name),
		EnableReqLogger:      apiLogs,
		SlowQueriesThreshold: time.Duration(ctx.Uint64(apiSlowQueriesThresholdFlag.Name)) * time.Millisecond,
		Log5xxErrors:         ctx.Bool(apiLog5xxErrorsFlag.Name),
		Logger:               logger,
		Metrics:              m,
	})
	if err != nil {
		return err
	}
	defer stopRPC()

	apiAddr, serveAPI, shutdownAPI, err := listen(ctx.String(apiAddrFlag.Name), handler)
	if err != nil {
		return err
	}

	serves := []func() error{serveAPI}
	shutdowns := []func(context.Context) error{shutdownAPI}
	if ctx.Bool(enableMetricsFlag.Name) {
		metricsAddr, serveMetrics, shutdownMetrics, err := listen(ctx.String(metricsAddrFlag.Name), m.GetOrCreateHandler())
		if err != nil {
			shutdownAPI(context.Background())
			return err
		}
		serves = append(serves, serveMetrics)
		shutdowns = append(shutdowns, shutdownMetrics)
		logger.Info("metrics server started", "url", "http://"+metricsAddr+"/metrics")
	}

	if addr := ctx.String(adminAddrFlag.Name); addr != "" {
		adminHandler, stopAdmin := admin.New(admin.Options{
			LogLevel: logLevel,
			APILogs:  apiLogs,
			Solo:     s,
			Logger:   logger,
		})
		defer stopAdmin()
		adminAddr, serveAdmin, shutdownAdmin, err := listen(addr, adminHandler)
		if err != nil {
			for _, shutdown := range shutdowns {
				shutdown(context.Background())
			}
			return err
		}
		serves = append(serves, serveAdmin)
		shutdowns = append(shutdowns, shutdownAdmin)
		logger.Info("admin server started", "url", "http://"+adminAddr+"/admin")
	}

	group, groupCtx := errgroup.WithContext(exitCtx)
	for _, serve := range serves {
		group.Go(serve)
	}
	group.Go(func() error {
		fm.Run(groupCtx.Done())
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("stopping API server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		for _, shutdown := range shutdowns {
			if err := shutdown(shutdownCtx); err != nil {
				logger.Warn("failed to shutdown server", "err", err)
			}
		}
		return nil
	})

	printStartupMessage(os.Stdout, c, setup, chainID, ctx.String(dbFlag.Name), ctx.String(forkFlag.Name), "http://"+apiAddr+"/")
	return group.Wait()
}
