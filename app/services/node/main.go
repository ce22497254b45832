package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/ardanlabs/conf/v3"
	"github.com/joho/godotenv"
	"github.com/zuxlabs/ammledger/app/services/node/handlers"
	"github.com/zuxlabs/ammledger/business/core/explorer"
	"github.com/zuxlabs/ammledger/business/core/simulation"
	"github.com/zuxlabs/ammledger/foundation/blockchain/genesis"
	"github.com/zuxlabs/ammledger/foundation/blockchain/state"
	"github.com/zuxlabs/ammledger/foundation/events"
	"github.com/zuxlabs/ammledger/foundation/logger"
	"go.uber.org/zap"
)

// build is the git version of this program. It is set using build flags in the makefile.
var build = "develop"

func main() {

	// Construct the application logger.
	log, err := logger.New("NODE")
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer log.Sync()

	// Perform the startup and shutdown sequence.
	if err := run(log); err != nil {
		log.Errorw("startup", "ERROR", err)
		log.Sync()
		os.Exit(1)
	}
}

func run(log *zap.SugaredLogger) error {

	// =========================================================================
	// Configuration

	// Values in a .env file are loaded into the environment first so they can
	// be overridden by the real environment and the command line.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("loading .env: %w", err)
	}

	cfg := struct {
		conf.Version
		Web struct {
			ReadTimeout     time.Duration `conf:"default:5s"`
			WriteTimeout    time.Duration `conf:"default:10s"`
			IdleTimeout     time.Duration `conf:"default:120s"`
			ShutdownTimeout time.Duration `conf:"default:20s"`
			DebugHost       string        `conf:"default:0.0.0.0:7080"`
			PublicHost      string        `conf:"default:0.0.0.0:8080"`
		}
		Chain struct {
			GenesisPath string  `conf:"help:optional genesis json file"`
			FeeRate     float64 `conf:"default:-1,help:overrides the genesis fee rate when zero or more"`
			Miners      int     `conf:"default:2"`
		}
		Sim struct {
			Accounts      int           `conf:"default:100"`
			FundBase      float64       `conf:"default:100"`
			FundQuote     float64       `conf:"default:500"`
			ReserveBase   float64       `conf:"default:1000000"`
			ReserveQuote  float64       `conf:"default:5000000"`
			TickInterval  time.Duration `conf:"default:100ms"`
			TradesPerTick int           `conf:"default:5"`
			NoiseRate     float64       `conf:"default:0.3"`
			Seed          uint64        `conf:"default:0"`
			MaxSwaps      int           `conf:"default:0"`
			ReportEvery   int           `conf:"default:250"`
		}
		Explorer struct {
			Folder   string        `conf:"default:zblock/explorer/"`
			Interval time.Duration `conf:"default:30s"`
		}
	}{
		Version: conf.Version{
			Build: build,
			Desc:  "ZUX ledger and AMM simulator",
		},
	}

	// Parse will set the defaults and then look for any overriding values
	// in environment variables and command line flags.
	const prefix = "ZUX"
	help, err := conf.Parse(prefix, &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	// =========================================================================
	// App Starting

	log.Infow("starting service", "version", build)
	defer log.Infow("shutdown complete")

	// Display the current configuration to the logs.
	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %w", err)
	}
	log.Infow("startup", "config", out)

	// =========================================================================
	// Blockchain Support

	gen := genesis.Default()
	if cfg.Chain.GenesisPath != "" {
		if gen, err = genesis.Load(cfg.Chain.GenesisPath); err != nil {
			return fmt.Errorf("loading genesis: %w", err)
		}
	}
	if cfg.Chain.FeeRate >= 0 {
		gen.FeeRate = cfg.Chain.FeeRate
	}

	log.Infow("startup", "status", "genesis", "network", gen.NetworkName, "class", gen.Class(), "fee", gen.FeeRate)

	// The blockchain packages accept a function of this signature to allow the
	// application to log. These raw messages are also sent to any websocket
	// client that is connected into the system through the events package.
	evts := events.New()
	ev := func(v string, args ...any) {
		s := fmt.Sprintf(v, args...)
		log.Debugw(s, "traceid", "00000000-0000-0000-0000-000000000000")
		evts.Send(s)
	}

	// The state value owns the ledger, the pool and the mining workers.
	st, err := state.New(state.Config{
		Genesis:   gen,
		Miners:    cfg.Chain.Miners,
		EvHandler: ev,
	})
	if err != nil {
		return err
	}
	defer st.Shutdown()

	sim, err := simulation.New(log, st, simulation.Config{
		Accounts:      cfg.Sim.Accounts,
		FundBase:      cfg.Sim.FundBase,
		FundQuote:     cfg.Sim.FundQuote,
		ReserveBase:   cfg.Sim.ReserveBase,
		ReserveQuote:  cfg.Sim.ReserveQuote,
		TickInterval:  cfg.Sim.TickInterval,
		TradesPerTick: cfg.Sim.TradesPerTick,
		NoiseRate:     cfg.Sim.NoiseRate,
		Seed:          cfg.Sim.Seed,
		MaxSwaps:      cfg.Sim.MaxSwaps,
		ReportEvery:   cfg.Sim.ReportEvery,
	})
	if err != nil {
		return err
	}

	exp, err := explorer.New(cfg.Explorer.Folder)
	if err != nil {
		return fmt.Errorf("unable to open explorer folder: %w", err)
	}

	// =========================================================================
	// Start Debug Service

	var ready atomic.Bool

	log.Infow("startup", "status", "debug v1 router started", "host", cfg.Web.DebugHost)

	// Construct the mux for the debug calls.
	debugMux := handlers.DebugMux(build, log, ready.Load)

	// Start the service listening for debug requests.
	// Not concerned with shutting this down with load shedding.
	go func() {
		if err := http.ListenAndServe(cfg.Web.DebugHost, debugMux); err != nil {
			log.Errorw("shutdown", "status", "debug v1 router closed", "host", cfg.Web.DebugHost, "ERROR", err)
		}
	}()

	// =========================================================================
	// Service Start/Stop Support

	// Make a channel to listen for an interrupt or terminate signal from the OS.
	// Use a buffered channel because the signal package requires it.
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	// Make a channel to listen for errors coming from the listener. Use a
	// buffered channel so the goroutine can exit if we don't collect this error.
	serverErrors := make(chan error, 1)

	// =========================================================================
	// Start Public Service

	log.Infow("startup", "status", "initializing V1 public API support")

	// Construct the mux for the public API calls.
	publicMux := handlers.PublicMux(handlers.MuxConfig{
		Shutdown: shutdown,
		Log:      log,
		State:    st,
		Sim:      sim,
		Evts:     evts,
	})

	// Construct a server to service the requests against the mux.
	public := http.Server{
		Addr:         cfg.Web.PublicHost,
		Handler:      publicMux,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		ErrorLog:     zap.NewStdLog(log.Desugar()),
	}

	// Start the service listening for api requests.
	go func() {
		log.Infow("startup", "status", "public api router started", "host", public.Addr)
		serverErrors <- public.ListenAndServe()
	}()

	// =========================================================================
	// Start Simulation

	simCtx, cancelSim := context.WithCancel(context.Background())
	defer cancelSim()

	simDone := make(chan error, 1)

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()

		if err := sim.Setup(simCtx); err != nil {
			simDone <- fmt.Errorf("simulation setup: %w", err)
			return
		}
		ready.Store(true)

		simDone <- sim.Run(simCtx)
	}()

	go func() {
		defer wg.Done()
		exp.Run(simCtx, log, st, cfg.Explorer.Interval)
	}()

	// =========================================================================
	// Shutdown

	stop := func() {
		cancelSim()
		wg.Wait()
	}

	// Blocking main and waiting for shutdown.
	select {
	case err := <-serverErrors:
		stop()
		return fmt.Errorf("server error: %w", err)

	case err := <-simDone:
		if err != nil {
			stop()
			return err
		}

		// The swap budget was spent, the node keeps serving the final state
		// until it is asked to stop.
		log.Infow("simulation", "status", "budget spent", "stats", sim.Stats())
		sig := <-shutdown
		return shutdownPublic(log, &public, evts, stop, cfg.Web.ShutdownTimeout, sig)

	case sig := <-shutdown:
		return shutdownPublic(log, &public, evts, stop, cfg.Web.ShutdownTimeout, sig)
	}
}

func shutdownPublic(log *zap.SugaredLogger, public *http.Server, evts *events.Events, stop func(), timeout time.Duration, sig os.Signal) error {
	log.Infow("shutdown", "status", "shutdown started", "signal", sig)
	defer log.Infow("shutdown", "status", "shutdown complete", "signal", sig)

	// Stop the simulation and write the final snapshot.
	log.Infow("shutdown", "status", "stopping simulation")
	stop()

	// Release any web sockets that are currently active.
	log.Infow("shutdown", "status", "shutdown web socket channels")
	evts.Shutdown()

	// Give outstanding requests a deadline for completion.
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Asking listener to shut down and shed load.
	log.Infow("shutdown", "status", "shutdown public API started")
	if err := public.Shutdown(ctx); err != nil {
		public.Close()
		return fmt.Errorf("could not stop public service gracefully: %w", err)
	}

	return nil
}
