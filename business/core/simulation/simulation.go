// Package simulation drives a population of trading agents against the pool
// and records every trade on the ledger.
package simulation

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/zuxlabs/ammledger/foundation/blockchain/agent"
	"github.com/zuxlabs/ammledger/foundation/blockchain/amm"
	"github.com/zuxlabs/ammledger/foundation/blockchain/database"
	"github.com/zuxlabs/ammledger/foundation/blockchain/identity"
	"github.com/zuxlabs/ammledger/foundation/blockchain/state"
	"github.com/zuxlabs/ammledger/foundation/validate"
	"go.uber.org/zap"
)

// ErrNotSetUp is returned when the simulation is used before Setup.
var ErrNotSetUp = errors.New("simulation has not been set up")

// Config represents the parameters of a simulation run.
type Config struct {
	Accounts      int           `json:"accounts" validate:"gte=1"`
	FundBase      float64       `json:"fund_base" validate:"gte=0"`
	FundQuote     float64       `json:"fund_quote" validate:"gte=0"`
	ReserveBase   float64       `json:"reserve_base" validate:"gt=0"`
	ReserveQuote  float64       `json:"reserve_quote" validate:"gt=0"`
	TickInterval  time.Duration `json:"tick_interval" validate:"gte=0"`
	TradesPerTick int           `json:"trades_per_tick" validate:"gte=1"`
	NoiseRate     float64       `json:"noise_rate" validate:"gte=0,lte=1"`
	Seed          uint64        `json:"seed"`
	MaxSwaps      int           `json:"max_swaps" validate:"gte=0"`
	ReportEvery   int           `json:"report_every" validate:"gte=0"`
}

// DefaultConfig returns the parameters of the reference run.
func DefaultConfig() Config {
	return Config{
		Accounts:      100,
		FundBase:      100,
		FundQuote:     500,
		ReserveBase:   1_000_000,
		ReserveQuote:  5_000_000,
		TickInterval:  100 * time.Millisecond,
		TradesPerTick: 5,
		NoiseRate:     0.3,
		ReportEvery:   250,
	}
}

// Stats counts what the simulation has done so far.
type Stats struct {
	Ticks      int `json:"ticks"`
	Swaps      int `json:"swaps"`
	NoiseSwaps int `json:"noise_swaps"`
	Holds      int `json:"holds"`
	Rejections int `json:"rejections"`

	TradedBase  float64 `json:"traded_base"`
	TradedQuote float64 `json:"traded_quote"`
}

// Simulation owns the population of agents trading through the state.
type Simulation struct {
	log   *zap.SugaredLogger
	state *state.State
	cfg   Config
	rng   *rand.Rand

	mu           sync.Mutex
	stats        Stats
	population   []identity.Address
	initial      map[identity.Address]agent.Balances
	initialPrice float64
}

// New constructs a simulation over the specified state.
func New(log *zap.SugaredLogger, st *state.State, cfg Config) (*Simulation, error) {
	if err := validate.Check(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	sim := Simulation{
		log:   log,
		state: st,
		cfg:     cfg,
		rng:     rand.New(rand.NewPCG(seed, seed>>1|1)),
		initial: make(map[identity.Address]agent.Balances),
	}

	return &sim, nil
}

// Setup mines the genesis block, opens the pool and funds a population of
// agents from the system account.
func (sim *Simulation) Setup(ctx context.Context) error {
	if _, err := sim.state.Genesis(ctx); err != nil {
		return fmt.Errorf("genesis: %w", err)
	}

	if _, err := sim.state.CreatePool(ctx, sim.cfg.ReserveBase, sim.cfg.ReserveQuote); err != nil {
		return fmt.Errorf("create pool: %w", err)
	}

	pool, err := sim.state.RetrievePool()
	if err != nil {
		return err
	}

	sim.log.Infow("setup", "status", "pool created", "base", pool.ReserveBase, "quote", pool.ReserveQuote, "price", pool.Price)

	sim.mu.Lock()
	sim.initialPrice = pool.Price
	sim.mu.Unlock()

	population := make([]identity.Address, 0, sim.cfg.Accounts)
	for range sim.cfg.Accounts {
		acct, err := sim.state.CreateAccount(ctx)
		if err != nil {
			return fmt.Errorf("create account: %w", err)
		}

		if err := sim.fund(ctx, acct.Address); err != nil {
			return err
		}

		strategy := agent.NewStrategy(sim.rng, pool.Price)
		if err := sim.state.SetStrategy(acct.Address, strategy); err != nil {
			return fmt.Errorf("set strategy: %w", err)
		}

		sim.log.Debugw("setup", "status", "account funded", "account", acct.Address, "tier", strategy.Tier)
		population = append(population, acct.Address)
	}

	sim.mu.Lock()
	sim.population = population
	sim.mu.Unlock()

	sim.log.Infow("setup", "status", "population funded", "accounts", len(population))

	return nil
}

// Tick lets a random sample of agents act once. A rejected trade is counted
// and the tick moves on, only a cancelled context stops it early.
func (sim *Simulation) Tick(ctx context.Context) error {
	sim.mu.Lock()
	population := sim.population
	sim.stats.Ticks++
	sim.mu.Unlock()

	if len(population) == 0 {
		return ErrNotSetUp
	}

	for range sim.cfg.TradesPerTick {
		if sim.exhausted() {
			return nil
		}

		addr := population[sim.rng.IntN(len(population))]

		if err := sim.act(ctx, addr); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			sim.count(func(s *Stats) { s.Rejections++ })
			sim.log.Infow("tick", "status", "trade rejected", "account", addr, "ERROR", err)
		}
	}

	return nil
}

// Run ticks until the context is cancelled or the swap budget is spent.
func (sim *Simulation) Run(ctx context.Context) error {
	sim.log.Infow("run", "status", "started", "interval", sim.cfg.TickInterval, "max_swaps", sim.cfg.MaxSwaps)
	defer func() {
		sim.log.Infow("run", "status", "completed", "stats", sim.Stats())
		sim.logSummary()
	}()

	var tick <-chan time.Time
	if sim.cfg.TickInterval > 0 {
		ticker := time.NewTicker(sim.cfg.TickInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		if sim.exhausted() {
			return nil
		}

		if tick != nil {
			select {
			case <-ctx.Done():
				return nil
			case <-tick:
			}
		} else if ctx.Err() != nil {
			return nil
		}

		if err := sim.Tick(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

// Stats returns a copy of the counters.
func (sim *Simulation) Stats() Stats {
	sim.mu.Lock()
	defer sim.mu.Unlock()

	return sim.stats
}

// Population returns the addresses of the trading agents.
func (sim *Simulation) Population() []identity.Address {
	sim.mu.Lock()
	defer sim.mu.Unlock()

	return append([]identity.Address(nil), sim.population...)
}

// =============================================================================

// act asks the agent for a decision and carries it out. A hold can be turned
// into a noise trade so the market keeps moving.
func (sim *Simulation) act(ctx context.Context, addr identity.Address) error {
	d, err := sim.state.Decide(addr)
	if err != nil {
		return err
	}

	var noise bool
	if d.Action == agent.Hold && sim.rng.Float64() < sim.cfg.NoiseRate {
		acct, err := sim.state.RetrieveAccount(addr)
		if err != nil {
			return err
		}

		if acct.Strategy != nil {
			bal := agent.Balances{
				Base:  acct.Balance(database.ZUX),
				Quote: acct.Balance(database.USDZ),
			}
			d = acct.Strategy.Noise(sim.rng, bal)
			noise = true
		}
	}

	var dir amm.Direction
	switch d.Action {
	case agent.Buy:
		dir = amm.QuoteToBase
	case agent.Sell:
		dir = amm.BaseToQuote
	default:
		sim.count(func(s *Stats) { s.Holds++ })
		return nil
	}

	res, err := sim.state.Swap(ctx, addr, dir, d.Amount)
	if err != nil {
		return err
	}

	var swaps int
	sim.count(func(s *Stats) {
		s.Swaps++
		if noise {
			s.NoiseSwaps++
		}
		switch dir {
		case amm.BaseToQuote:
			s.TradedBase += res.Result.Input
			s.TradedQuote += res.Result.Output
		case amm.QuoteToBase:
			s.TradedQuote += res.Result.Input
			s.TradedBase += res.Result.Output
		}
		swaps = s.Swaps
	})

	sim.log.Debugw("tick", "status", "swap", "account", addr, "direction", dir, "input", d.Amount, "output", res.Result.Output, "price", res.Result.PriceAfter, "noise", noise)

	if sim.cfg.ReportEvery > 0 && swaps%sim.cfg.ReportEvery == 0 {
		sim.report(swaps)
	}

	return nil
}

// fund credits a new account with its starting balances and remembers them
// for the end of run summary.
func (sim *Simulation) fund(ctx context.Context, addr identity.Address) error {
	credits := []struct {
		currency database.Currency
		amount   float64
	}{
		{database.ZUX, sim.cfg.FundBase},
		{database.USDZ, sim.cfg.FundQuote},
	}

	for _, c := range credits {
		if c.amount == 0 {
			continue
		}

		if _, err := sim.state.Transfer(ctx, database.SystemAddress, addr, c.currency, c.amount); err != nil {
			return fmt.Errorf("fund %s %s: %w", addr, c.currency, err)
		}
	}

	sim.mu.Lock()
	sim.initial[addr] = agent.Balances{Base: sim.cfg.FundBase, Quote: sim.cfg.FundQuote}
	sim.mu.Unlock()

	return nil
}

func (sim *Simulation) report(swaps int) {
	pool, err := sim.state.RetrievePool()
	if err != nil {
		return
	}

	block := sim.state.RetrieveLatestBlock()

	sim.log.Infow("report", "swaps", swaps, "height", block.Header.Number, "price", pool.Price,
		"base", pool.ReserveBase, "quote", pool.ReserveQuote, "k", pool.K, "utilization", pool.Utilization)
}

func (sim *Simulation) count(fn func(s *Stats)) {
	sim.mu.Lock()
	defer sim.mu.Unlock()

	fn(&sim.stats)
}

func (sim *Simulation) exhausted() bool {
	if sim.cfg.MaxSwaps == 0 {
		return false
	}

	return sim.Stats().Swaps >= sim.cfg.MaxSwaps
}
