// stableipsd runs the custodial wallet daemon: the JSON API and the
// transaction status monitor over a shared LevelDB store.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	stableips "github.com/graphtrek/stableips-sub001"
	"github.com/graphtrek/stableips-sub001/api"
	"github.com/graphtrek/stableips-sub001/chains/evm"
	"github.com/graphtrek/stableips-sub001/chains/solana"
	"github.com/graphtrek/stableips-sub001/chains/xrpl"
	"github.com/graphtrek/stableips-sub001/config"
	"github.com/graphtrek/stableips-sub001/ledger"
	"github.com/graphtrek/stableips-sub001/monitor"
	"github.com/graphtrek/stableips-sub001/registry"
	"github.com/graphtrek/stableips-sub001/storage"
	"github.com/graphtrek/stableips-sub001/wallet"
)

func main() {
	app := &cli.App{
		Name:  "stableipsd",
		Usage: "custodial multi-chain wallet daemon",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to stableips.yaml",
			},
			&cli.StringFlag{
				Name:  "listen",
				Usage: "HTTP listen address (overrides config)",
			},
			&cli.StringFlag{
				Name:  "data-dir",
				Usage: "LevelDB directory (overrides config)",
			},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	log, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer log.Sync()

	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	if addr := c.String("listen"); addr != "" {
		cfg.Listen = addr
	}
	if dir := c.String("data-dir"); dir != "" {
		cfg.DataDir = dir
	}

	db, err := storage.Open(cfg.DataDir)
	if err != nil {
		return err
	}
	defer db.Close()

	evmAdapter, err := evm.NewAdapter(cfg.EVM.RPCURL, cfg.EVM.ChainID, cfg.EVMTokenMap())
	if err != nil {
		return err
	}
	xrpAdapter, err := xrpl.NewAdapter(cfg.XRP.RPCURL)
	if err != nil {
		return err
	}
	solAdapter := solana.NewAdapter(cfg.Solana.RPCURL)
	faucet := xrpl.NewFaucet(&xrpl.FaucetConfig{URL: cfg.XRP.FaucetURL})

	users := registry.NewStore(db, evmAdapter, xrpAdapter, solAdapter)
	entries := ledger.NewStore(db)

	svc := wallet.NewService(wallet.Config{
		Users:   users,
		Ledger:  entries,
		EVM:     evmAdapter,
		XRP:     xrpAdapter,
		Solana:  solAdapter,
		Minter:  evmAdapter,
		Faucet:  faucet,
		Airdrop: solAdapter,
		Tokens:  cfg.EVMTokens(),
		Funding: wallet.FundingConfig{
			EVMPrivateKey: cfg.EVM.Funding.PrivateKey,
			InitialETH:    cfg.EVM.Funding.InitialETH,
			XRPSecret:     cfg.XRP.Funding.Secret,
			InitialXRP:    cfg.XRP.Funding.InitialXRP,
			InitialSOL:    cfg.Solana.Funding.InitialSOL,
		},
		Logger: log,
	})

	mon := monitor.New(entries, map[stableips.Network]stableips.ChainAdapter{
		stableips.NetworkEthereum: evmAdapter,
		stableips.NetworkXRP:      xrpAdapter,
		stableips.NetworkSolana:   solAdapter,
	}, monitor.Config{
		Period:           cfg.Monitor.Period,
		InitialDelay:     cfg.Monitor.InitialDelay,
		MaxAge:           cfg.Monitor.MaxAge,
		EVMConfirmations: cfg.Monitor.EVMConfirmations,
	}, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		mon.Run(ctx)
	}()

	log.Info("stableipsd starting",
		zap.String("listen", cfg.Listen),
		zap.String("data_dir", cfg.DataDir))

	err = api.NewServer(svc, log).Serve(ctx, cfg.Listen)

	// Serve returned, by signal or by listen failure. Either way the
	// monitor must stop before the database closes.
	stop()
	wg.Wait()
	return err
}
