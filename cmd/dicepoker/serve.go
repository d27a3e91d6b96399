package main

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/coder/quartz"
	"golang.org/x/sync/errgroup"

	"github.com/lox/dicepoker/internal/cache"
	"github.com/lox/dicepoker/internal/config"
	"github.com/lox/dicepoker/internal/oracle"
	"github.com/lox/dicepoker/internal/server"
	"github.com/lox/dicepoker/internal/simulator"
	"github.com/lox/dicepoker/internal/store"
	"github.com/lox/dicepoker/internal/table"
	"github.com/lox/dicepoker/internal/telemetry"
	"github.com/lox/dicepoker/internal/wallet"
)

// ServeCmd runs the HTTP and websocket server.
type ServeCmd struct {
	Config  string `short:"c" default:"dicepoker.hcl" help:"Path to the HCL config file"`
	EnvFile string `default:".env" help:"Optional dotenv file with DICEPOKER_* overrides"`
	Addr    string `help:"Listen address, overriding the config file"`
	Seed    int64  `help:"Seed for the development oracle (0 uses the config value)"`
}

func (c *ServeCmd) Run(cli *CLI) error {
	cfg, err := c.load()
	if err != nil {
		return err
	}

	logger, closeLog, err := setupLogger(cfg.Server.LogLevel, cli.Debug, cfg.Server.LogFile)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, cancel := signalContext(logger)
	defer cancel()

	shutdownTracing, err := telemetry.Setup(ctx, "dicepoker", version)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn("Tracing shutdown failed", "error", err)
		}
	}()

	clock := quartz.NewReal()
	escrow := wallet.NewEscrow(clock)
	hub := server.NewHub(clock, logger)
	observers := []table.Observer{hub}

	var history server.History
	if cfg.Storage.SQLitePath != "" {
		st, err := store.Open(ctx, cfg.Storage.SQLitePath)
		if err != nil {
			return err
		}
		defer st.Close()
		history = st
		observers = append(observers, store.NewRecorder(st, logger))
		logger.Info("Recording settlements", "path", cfg.Storage.SQLitePath)
	}

	var snapshots server.SnapshotCache
	if cfg.Storage.RedisAddr != "" {
		sc, err := cache.New(ctx, cache.Options{
			Addr:     cfg.Storage.RedisAddr,
			Password: cfg.Storage.RedisPassword,
			DB:       cfg.Storage.RedisDB,
		}, logger)
		if err != nil {
			return err
		}
		defer sc.Close()
		snapshots = sc
		observers = append(observers, sc)
		logger.Info("Caching snapshots", "addr", cfg.Storage.RedisAddr)
	}

	var network oracle.Network
	var sim *simulator.Oracle
	if cfg.Oracle.Simulate {
		seed := cfg.Oracle.SimulateSeed
		if c.Seed != 0 {
			seed = c.Seed
		}
		sim = simulator.NewOracle(simulator.OracleConfig{
			Delay:    cfg.SimulateDelay(),
			Seed:     seed,
			DropRate: cfg.Oracle.DropRate,
			Clock:    clock,
			Logger:   logger,
		})
		defer sim.Close()
		network = sim
		logger.Warn("Using simulated oracle; randomness is not verifiable", "seed", seed, "delay", cfg.SimulateDelay())
	}

	manager := table.NewManager(table.Options{
		Payout:   escrow,
		Funds:    escrow,
		Network:  network,
		Observer: table.NewMultiObserver(observers...),
		Clock:    clock,
		Logger:   logger,
	})
	defer manager.Close()
	if sim != nil {
		sim.Bind(manager)
	}

	for _, tc := range cfg.TableConfigs() {
		if _, err := manager.Create(tc); err != nil {
			return err
		}
	}

	srv := server.New(server.Options{
		Manager:               manager,
		Bank:                  escrow,
		History:               history,
		Cache:                 snapshots,
		Hub:                   hub,
		Clock:                 clock,
		Logger:                logger,
		DefaultFulfillTimeout: cfg.FulfillTimeout(),
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		return srv.Serve(gctx, cfg.ServerAddress())
	})
	return g.Wait()
}

// load reads the config file, applies the environment and flags, and
// validates the result.
func (c *ServeCmd) load() (*config.Config, error) {
	cfg, err := config.Load(c.Config)
	if err != nil {
		return nil, err
	}
	e, err := config.LoadEnv(c.EnvFile)
	if err != nil {
		return nil, err
	}
	cfg.Apply(e)
	if c.Addr != "" {
		cfg.Server.Address, cfg.Server.Port, err = splitAddr(c.Addr)
		if err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func splitAddr(addr string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid address %q: %w", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid port in %q", addr)
	}
	return host, port, nil
}
