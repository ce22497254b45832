package simulation

import (
	"cmp"
	"slices"

	"github.com/zuxlabs/ammledger/foundation/blockchain/database"
	"github.com/zuxlabs/ammledger/foundation/blockchain/identity"
)

// rankSize is how many accounts are listed at each end of the ranking.
const rankSize = 5

// Performance describes how an agent's holdings moved over the run. Both
// values are taken at the final pool price so only the trading shows up.
type Performance struct {
	Address      identity.Address `json:"address"`
	InitialBase  float64          `json:"initial_base"`
	FinalBase    float64          `json:"final_base"`
	InitialQuote float64          `json:"initial_quote"`
	FinalQuote   float64          `json:"final_quote"`
	InitialValue float64          `json:"initial_value"`
	FinalValue   float64          `json:"final_value"`
	Change       float64          `json:"change_pct"`
	Trades       uint64           `json:"trades"`
}

// Summary is the end of run report of the simulation.
type Summary struct {
	Stats             Stats         `json:"stats"`
	InitialPrice      float64       `json:"initial_price"`
	FinalPrice        float64       `json:"final_price"`
	PriceChange       float64       `json:"price_change_pct"`
	FinalK            float64       `json:"final_k"`
	Accounts          int           `json:"accounts"`
	Profitable        int           `json:"profitable"`
	Participating     int           `json:"participating"`
	ParticipationRate float64       `json:"participation_rate_pct"`
	MinTrades         uint64        `json:"min_trades"`
	MaxTrades         uint64        `json:"max_trades"`
	AvgTrades         float64       `json:"avg_trades"`
	Best              *Performance  `json:"best,omitempty"`
	Worst             *Performance  `json:"worst,omitempty"`
	Top               []Performance `json:"top"`
	Bottom            []Performance `json:"bottom"`
	Performances      []Performance `json:"performances"`
}

// Summary values every agent at the current pool price and ranks them from
// the best to the worst change. MinTrades only counts agents that traded.
func (sim *Simulation) Summary() (Summary, error) {
	sim.mu.Lock()
	stats := sim.stats
	population := append([]identity.Address(nil), sim.population...)
	initialPrice := sim.initialPrice
	sim.mu.Unlock()

	if len(population) == 0 {
		return Summary{Stats: stats}, ErrNotSetUp
	}

	pool, err := sim.state.RetrievePool()
	if err != nil {
		return Summary{Stats: stats}, err
	}

	sum := Summary{
		Stats:        stats,
		InitialPrice: initialPrice,
		FinalPrice:   pool.Price,
		FinalK:       pool.K,
		Accounts:     len(population),
		Performances: make([]Performance, 0, len(population)),
	}

	if initialPrice > 0 {
		sum.PriceChange = (pool.Price/initialPrice - 1) * 100
	}

	var trades uint64
	for _, addr := range population {
		acct, err := sim.state.RetrieveAccount(addr)
		if err != nil {
			return Summary{Stats: stats}, err
		}

		sim.mu.Lock()
		initial := sim.initial[addr]
		sim.mu.Unlock()

		perf := Performance{
			Address:      addr,
			InitialBase:  initial.Base,
			FinalBase:    acct.Balance(database.ZUX),
			InitialQuote: initial.Quote,
			FinalQuote:   acct.Balance(database.USDZ),
			Trades:       acct.TradeCount,
		}
		perf.InitialValue = perf.InitialBase*pool.Price + perf.InitialQuote
		perf.FinalValue = perf.FinalBase*pool.Price + perf.FinalQuote
		if perf.InitialValue > 0 {
			perf.Change = (perf.FinalValue/perf.InitialValue - 1) * 100
		}

		if perf.Change > 0 {
			sum.Profitable++
		}

		if perf.Trades > 0 {
			if sum.Participating == 0 || perf.Trades < sum.MinTrades {
				sum.MinTrades = perf.Trades
			}
			sum.MaxTrades = max(sum.MaxTrades, perf.Trades)
			sum.Participating++
			trades += perf.Trades
		}

		sum.Performances = append(sum.Performances, perf)
	}

	if sum.Participating > 0 {
		sum.AvgTrades = float64(trades) / float64(sum.Participating)
	}
	sum.ParticipationRate = float64(sum.Participating) / float64(sum.Accounts) * 100

	slices.SortFunc(sum.Performances, func(a, b Performance) int {
		if c := cmp.Compare(b.Change, a.Change); c != 0 {
			return c
		}
		return cmp.Compare(a.Address, b.Address)
	})

	n := min(rankSize, len(sum.Performances))
	sum.Top = slices.Clone(sum.Performances[:n])
	sum.Bottom = slices.Clone(sum.Performances[len(sum.Performances)-n:])
	slices.Reverse(sum.Bottom)

	best := sum.Top[0]
	worst := sum.Bottom[0]
	sum.Best = &best
	sum.Worst = &worst

	return sum, nil
}

func (sim *Simulation) logSummary() {
	sum, err := sim.Summary()
	if err != nil {
		sim.log.Infow("summary", "status", "unavailable", "ERROR", err)
		return
	}

	sim.log.Infow("summary", "initial_price", sum.InitialPrice, "final_price", sum.FinalPrice,
		"price_change_pct", sum.PriceChange, "final_k", sum.FinalK)
	sim.log.Infow("summary", "profitable", sum.Profitable, "accounts", sum.Accounts,
		"best", sum.Best.Address, "best_pct", sum.Best.Change, "worst", sum.Worst.Address, "worst_pct", sum.Worst.Change)
	sim.log.Infow("summary", "participating", sum.Participating, "participation_rate_pct", sum.ParticipationRate,
		"min_trades", sum.MinTrades, "max_trades", sum.MaxTrades, "avg_trades", sum.AvgTrades,
		"traded_base", sum.Stats.TradedBase, "traded_quote", sum.Stats.TradedQuote)

	for i, p := range sum.Top {
		sim.log.Infow("summary", "rank", i+1, "account", p.Address, "change_pct", p.Change,
			"base", p.FinalBase, "base_delta", p.FinalBase-p.InitialBase, "quote", p.FinalQuote, "quote_delta", p.FinalQuote-p.InitialQuote)
	}

	for i, p := range sum.Bottom {
		sim.log.Infow("summary", "rank", len(sum.Performances)-i, "account", p.Address, "change_pct", p.Change,
			"base", p.FinalBase, "base_delta", p.FinalBase-p.InitialBase, "quote", p.FinalQuote, "quote_delta", p.FinalQuote-p.InitialQuote)
	}
}
