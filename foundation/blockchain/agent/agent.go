// Package agent implements the trading strategy each simulated account uses
// to decide whether to buy, sell or hold against the pool.
package agent

import (
	"fmt"
	"math/rand/v2"
	"time"
)

// historySize is how many recent prices a strategy remembers.
const historySize = 3

// Tier classifies an agent by the size of the trades it makes.
type Tier uint8

// Set of tiers an agent can belong to.
const (
	Regular Tier = iota
	Whale
	MegaWhale
)

// Fraction returns the share of a balance an agent of this tier commits to a
// single trade.
func (t Tier) Fraction() float64 {
	switch t {
	case MegaWhale:
		return 0.95
	case Whale:
		return 0.75
	default:
		return 0.25
	}
}

// String implements the fmt.Stringer interface.
func (t Tier) String() string {
	switch t {
	case MegaWhale:
		return "mega-whale"
	case Whale:
		return "whale"
	default:
		return "regular"
	}
}

// MarshalText implements the encoding.TextMarshaler interface.
func (t Tier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// =============================================================================

// Action is the outcome of a decision.
type Action uint8

// Set of actions an agent can take.
const (
	Hold Action = iota
	Buy
	Sell
)

// String implements the fmt.Stringer interface.
func (a Action) String() string {
	switch a {
	case Buy:
		return "buy"
	case Sell:
		return "sell"
	default:
		return "hold"
	}
}

// Decision is what an agent wants to do. For a Buy the amount is in the
// quote currency, for a Sell it is in the base currency.
type Decision struct {
	Action Action
	Amount float64
}

// String implements the fmt.Stringer interface.
func (d Decision) String() string {
	if d.Action == Hold {
		return "hold"
	}

	return fmt.Sprintf("%s %.9f", d.Action, d.Amount)
}

// Balances is the view of an account a strategy needs to size a trade.
type Balances struct {
	Base  float64
	Quote float64
}

// =============================================================================

// Strategy holds the state an agent carries between decisions. A Strategy
// is a value type, copying it produces an independent snapshot.
type Strategy struct {
	Tier           Tier      `json:"tier"`
	FomoThreshold  float64   `json:"fomo_threshold"`
	PanicThreshold float64   `json:"panic_threshold"`
	Bias           int8      `json:"bias"`
	LastTradeTime  time.Time `json:"last_trade_time"`

	history [historySize]float64
	samples int
}

// NewStrategy draws a random strategy. One agent in a hundred is a mega
// whale and one in ten a whale. Three in ten carry a bullish or bearish bias.
func NewStrategy(rng *rand.Rand, initialPrice float64) Strategy {
	whale := rng.Float64() < 0.10
	mega := rng.Float64() < 0.01

	tier := Regular
	switch {
	case mega:
		tier = MegaWhale
	case whale:
		tier = Whale
	}

	s := Strategy{
		Tier:           tier,
		FomoThreshold:  0.005 + rng.Float64()*0.025,
		PanicThreshold: 0.005 + rng.Float64()*0.025,
	}

	if rng.Float64() < 0.30 {
		s.Bias = 1
		if rng.Float64() < 0.5 {
			s.Bias = -1
		}
	}

	if initialPrice > 0 {
		s.observe(initialPrice)
	}

	return s
}

// History returns the remembered prices, oldest first.
func (s *Strategy) History() []float64 {
	h := make([]float64, s.samples)
	copy(h, s.history[historySize-s.samples:])
	return h
}

// Thresholds returns the FOMO and panic thresholds after the bias has been
// applied. Bias only moves the thresholds of whales.
func (s *Strategy) Thresholds() (fomo float64, fear float64) {
	fomo, fear = s.FomoThreshold, s.PanicThreshold
	if s.Tier == Regular {
		return fomo, fear
	}

	switch s.Bias {
	case 1:
		return fomo * 0.5, fear * 1.5
	case -1:
		return fomo * 1.5, fear * 0.5
	}

	return fomo, fear
}

// Decide records the current price and decides what to do with it. A rising
// price past the FOMO threshold buys with a share of the quote balance, a
// falling price past the panic threshold sells a share of the base balance.
// FOMO is checked first.
func (s *Strategy) Decide(price float64, bal Balances) Decision {
	s.observe(price)

	if s.samples < 2 {
		return Decision{Action: Hold}
	}

	prev := s.history[historySize-2]
	if prev <= 0 {
		return Decision{Action: Hold}
	}

	delta := (price - prev) / prev
	fomo, fear := s.Thresholds()

	switch {
	case delta > fomo:
		if bal.Quote <= 0 {
			return Decision{Action: Hold}
		}
		return Decision{Action: Buy, Amount: bal.Quote * s.Tier.Fraction()}

	case delta < -fear:
		if bal.Base <= 0 {
			return Decision{Action: Hold}
		}
		return Decision{Action: Sell, Amount: bal.Base * s.Tier.Fraction()}
	}

	return Decision{Action: Hold}
}

// Noise produces a random trade of 10 to 30 percent of one balance. The
// side is weighted toward the agent's bias.
func (s *Strategy) Noise(rng *rand.Rand, bal Balances) Decision {
	buy := rng.Float64() < 0.5+0.25*float64(s.Bias)
	share := 0.10 + rng.Float64()*0.20

	switch {
	case buy && bal.Quote > 0:
		return Decision{Action: Buy, Amount: bal.Quote * share}
	case !buy && bal.Base > 0:
		return Decision{Action: Sell, Amount: bal.Base * share}
	case bal.Quote > 0:
		return Decision{Action: Buy, Amount: bal.Quote * share}
	case bal.Base > 0:
		return Decision{Action: Sell, Amount: bal.Base * share}
	}

	return Decision{Action: Hold}
}

// Traded records the time of the last executed trade.
func (s *Strategy) Traded(now time.Time) {
	s.LastTradeTime = now
}

// observe pushes the price into the ring, dropping the oldest sample.
func (s *Strategy) observe(price float64) {
	copy(s.history[:], s.history[1:])
	s.history[historySize-1] = price

	if s.samples < historySize {
		s.samples++
	}
}
