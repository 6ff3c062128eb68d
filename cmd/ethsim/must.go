// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"
	"github.com/holiman/uint256"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/vechain/ethsim/accounts"
	"github.com/vechain/ethsim/chain"
	"github.com/vechain/ethsim/fork"
	"github.com/vechain/ethsim/genesis"
	"github.com/vechain/ethsim/logdb"
	"github.com/vechain/ethsim/metrics"
	"github.com/vechain/ethsim/muxdb"
)

var ether = new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(18))

// initLogger installs the default logger. The returned level var changes its
// verbosity at runtime.
func initLogger(ctx *cli.Context) (log.Logger, *slog.LevelVar) {
	level := new(slog.LevelVar)
	level.Set(log.FromLegacyLevel(int(ctx.Uint64(verbosityFlag.Name))))
	var handler slog.Handler
	if ctx.Bool(jsonLogsFlag.Name) {
		handler = log.JSONHandlerWithLevel(os.Stdout, level)
	} else {
		useColor := (isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())) && os.Getenv("TERM") != "dumb"
		handler = log.NewTerminalHandlerWithLevel(os.Stderr, level, useColor)
	}
	logger := log.NewLogger(handler)
	log.SetDefault(logger)
	return logger, level
}

// accountSetup is the accounts to fund and where they came from.
type accountSetup struct {
	accounts []*accounts.Account
	// mnemonic is empty for explicit accounts
	mnemonic string
}

func loadAccounts(ctx *cli.Context) (*accountSetup, error) {
	if list := ctx.StringSlice(accountFlag.Name); len(list) > 0 {
		setup := &accountSetup{}
		for _, s := range list {
			acc, err := accounts.ParseAccount(s)
			if err != nil {
				return nil, err
			}
			setup.accounts = append(setup.accounts, acc)
		}
		return setup, nil
	}

	var (
		mnemonic = ctx.String(mnemonicFlag.Name)
		err      error
	)
	switch {
	case mnemonic != "":
	case ctx.String(seedFlag.Name) != "":
		mnemonic, err = accounts.MnemonicFromSeed(ctx.String(seedFlag.Name))
	default:
		mnemonic, err = accounts.NewMnemonic()
	}
	if err != nil {
		return nil, err
	}
	keys, err := accounts.DeriveKeys(mnemonic, accounts.DefaultBasePath, int(ctx.Uint(accountsFlag.Name)))
	if err != nil {
		return nil, err
	}
	balance := new(uint256.Int).Mul(ether, uint256.NewInt(ctx.Uint64(defaultBalanceFlag.Name)))
	setup := &accountSetup{mnemonic: mnemonic}
	for _, key := range keys {
		setup.accounts = append(setup.accounts, accounts.NewAccount(key, balance))
	}
	return setup, nil
}

func openDBs(ctx *cli.Context) (*muxdb.MuxDB, *logdb.LogDB, error) {
	dir := ctx.String(dbFlag.Name)
	if dir == "" {
		logDB, err := logdb.NewMem()
		if err != nil {
			return nil, nil, errors.Wrap(err, "open log database")
		}
		return muxdb.NewMem(), logDB, nil
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, nil, errors.Wrapf(err, "create db dir [%v]", dir)
	}
	db, err := muxdb.Open(filepath.Join(dir, "main.db"), &muxdb.Options{
		OpenFilesCacheCapacity: 128,
		ReadCacheMB:            64,
		WriteBufferMB:          16,
	})
	if err != nil {
		return nil, nil, errors.Wrapf(err, "open main database [%v]", dir)
	}
	logDB, err := logdb.New(filepath.Join(dir, "logs.db"))
	if err != nil {
		db.Close()
		return nil, nil, errors.Wrapf(err, "open log database [%v]", dir)
	}
	return db, logDB, nil
}

// openChain opens the forked chain if a fork target is given, the standalone one otherwise.
// The accounts are funded at genesis or at the fork pin.
func openChain(ctx context.Context, cliCtx *cli.Context, setup *accountSetup, logger log.Logger, m metrics.Metrics) (chain.Chain, error) {
	b := new(genesis.Builder).
		Timestamp(uint64(time.Now().Unix())).
		GasLimit(cliCtx.Uint64(gasLimitFlag.Name))
	for _, acc := range setup.accounts {
		b.Alloc(acc.Address, acc.Balance)
	}

	db, logDB, err := openDBs(cliCtx)
	if err != nil {
		return nil, err
	}
	closeDBs := func() {
		logDB.Close()
		db.Close()
	}

	target := cliCtx.String(forkFlag.Name)
	if target == "" {
		c, err := genesis.Open(db, logDB, b, chain.Options{Logger: logger, Metrics: m})
		if err != nil {
			closeDBs()
			return nil, err
		}
		return c, nil
	}

	t, err := fork.ParseTarget(target)
	if err != nil {
		closeDBs()
		return nil, err
	}
	upstream, err := fork.Dial(ctx, t.URL, cliCtx.Int(forkRateLimitFlag.Name), m)
	if err != nil {
		closeDBs()
		return nil, err
	}
	c, err := fork.New(ctx, upstream, t.Number, db, logDB, &fork.Options{
		Alloc:   b.ApplyState,
		Logger:  logger,
		Metrics: m,
	})
	if err != nil {
		upstream.Close()
		closeDBs()
		return nil, err
	}
	return c, nil
}

// listen binds addr and returns the serve and shutdown funcs of handler on it.
func listen(addr string, handler http.Handler) (string, func() error, func(context.Context) error, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return "", nil, nil, errors.Wrapf(err, "listen addr [%v]", addr)
	}
	srv := &http.Server{Handler: handler, ReadHeaderTimeout: time.Second * 5}
	serve := func() error {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
	return listener.Addr().String(), serve, srv.Shutdown, nil
}

func handleExitSignal() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		exitSignalCh := make(chan os.Signal, 1)
		signal.Notify(exitSignalCh, os.Interrupt, syscall.SIGTERM)
		sig := <-exitSignalCh
		log.Info("exit signal received", "signal", sig)
		cancel()
	}()
	return ctx
}

func printStartupMessage(w io.Writer, c chain.Chain, setup *accountSetup, chainID uint64, dbDir, forkTarget, apiURL string) {
	tableHead := `
┌────────────────────────────────────────────┬────────────────────────────────────────────────────────────────────┐
│                   Address                  │                             Private Key                            │`
	tableContent := `
├────────────────────────────────────────────┼────────────────────────────────────────────────────────────────────┤
│ %v │ %v │`
	tableEnd := `
└────────────────────────────────────────────┴────────────────────────────────────────────────────────────────────┘`

	head := c.Head()
	if dbDir == "" {
		dbDir = "Memory"
	}
	if forkTarget == "" {
		forkTarget = "none"
	}
	info := fmt.Sprintf(`Starting %v
    Chain ID    [ %v ]
    Base block  [ %v #%v ]
    Best block  [ %v #%v @%v ]
    Fork        [ %v ]
    Data dir    [ %v ]
    API portal  [ %v ]`,
		fullVersion(),
		chainID,
		c.Base().Hash(), c.Base().NumberU64(),
		head.Hash(), head.NumberU64(), time.Unix(int64(head.Time()), 0),
		forkTarget,
		dbDir,
		apiURL)
	if setup.mnemonic != "" {
		info += fmt.Sprintf(`
    Mnemonic    [ %v ]
    HD path     [ %v/{account_index} ]`, setup.mnemonic, accounts.DefaultBasePath)
	}

	info += tableHead
	for _, acc := range setup.accounts {
		info += fmt.Sprintf(tableContent, acc.Address, hexutil.Encode(crypto.FromECDSA(acc.PrivateKey)))
	}
	info += tableEnd + "\r\n"

	fmt.Fprint(w, info)
}
