// Package amm implements a constant product automated market maker holding
// a single pair of reserves, along with the rolling and lifetime analytics
// of the trading against it.
package amm

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"
)

// Set of error variables for swapping against the pool.
var (
	ErrNonPositiveAmount     = errors.New("amount must be a finite positive number")
	ErrInsufficientLiquidity = errors.New("insufficient liquidity")
)

// Direction represents which reserve receives the input of a swap.
type Direction uint8

// Set of swap directions. The base currency is ZUX and the quote currency
// is USDZ.
const (
	BaseToQuote Direction = iota
	QuoteToBase
)

// ParseDirection converts the string form of a direction.
func ParseDirection(s string) (Direction, error) {
	switch s {
	case BaseToQuote.String():
		return BaseToQuote, nil
	case QuoteToBase.String():
		return QuoteToBase, nil
	}

	return 0, fmt.Errorf("unknown direction %q", s)
}

// String implements the fmt.Stringer interface.
func (d Direction) String() string {
	if d == QuoteToBase {
		return "USDZ->ZUX"
	}

	return "ZUX->USDZ"
}

// MarshalText implements the encoding.TextMarshaler interface.
func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements the encoding.TextUnmarshaler interface.
func (d *Direction) UnmarshalText(data []byte) error {
	v, err := ParseDirection(string(data))
	if err != nil {
		return err
	}

	*d = v
	return nil
}

// =============================================================================

// Config represents the tunable behavior of a pool.
type Config struct {
	FeeRate     float64          // Share of the input kept by the pool.
	HistorySize int              // Maximum number of price samples retained.
	Window      time.Duration    // Length of the rolling window.
	MinReserve  float64          // Smallest reserve a swap may leave behind.
	Now         func() time.Time // Clock used to stamp samples and roll the window.
}

// DefaultConfig returns the configuration used by the ZUX/USDZ pool.
func DefaultConfig() Config {
	return Config{
		FeeRate:     0.003,
		HistorySize: 1000,
		Window:      5 * time.Second,
		MinReserve:  1e-9,
		Now:         time.Now,
	}
}

// PricePoint is a single sample of the pool price.
type PricePoint struct {
	Time  time.Time `json:"time"`
	Price float64   `json:"price"`
}

// Window holds the accumulators of the rolling window.
type Window struct {
	Start  time.Time `json:"start"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Lifetime holds the accumulators since the pool was created. Volume and
// fees are valued in the quote currency.
type Lifetime struct {
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Volume float64 `json:"volume"`
	Fees   float64 `json:"fees"`
	Swaps  uint64  `json:"swaps"`
}

// Result describes a swap, either previewed or executed.
type Result struct {
	Direction   Direction `json:"direction"`
	Input       float64   `json:"input"`
	Output      float64   `json:"output"`
	Fee         float64   `json:"fee"` // In the input currency.
	PriceBefore float64   `json:"price_before"`
	PriceAfter  float64   `json:"price_after"`
	KBefore     float64   `json:"k_before"`
	KAfter      float64   `json:"k_after"`
}

// =============================================================================

// Quote computes the output of the constant product curve with the fee
// taken from the input leg.
func Quote(input float64, inReserve float64, outReserve float64, feeRate float64) float64 {
	inputAfterFee := input * (1 - feeRate)
	return (inputAfterFee * outReserve) / (inReserve + inputAfterFee)
}

// Pool holds the reserves of the pair. All the reserve updates happen under
// a single lock so no caller can observe one leg changed without the other.
type Pool struct {
	mu           sync.RWMutex
	cfg          Config
	reserveBase  float64
	reserveQuote float64
	k            float64
	history      []PricePoint
	window       Window
	lifetime     Lifetime
}

// New constructs a pool seeded with the specified reserves.
func New(base float64, quote float64, cfg Config) (*Pool, error) {
	if !positive(base) || !positive(quote) {
		return nil, fmt.Errorf("reserves %v/%v: %w", base, quote, ErrNonPositiveAmount)
	}

	if cfg.FeeRate < 0 || cfg.FeeRate >= 1 || math.IsNaN(cfg.FeeRate) {
		return nil, fmt.Errorf("fee rate %v out of range [0, 1)", cfg.FeeRate)
	}

	if cfg.HistorySize <= 0 {
		cfg.HistorySize = DefaultConfig().HistorySize
	}

	if cfg.Window <= 0 {
		cfg.Window = DefaultConfig().Window
	}

	if cfg.MinReserve <= 0 {
		cfg.MinReserve = DefaultConfig().MinReserve
	}

	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	now := cfg.Now()
	price := quote / base

	p := Pool{
		cfg:          cfg,
		reserveBase:  base,
		reserveQuote: quote,
		k:            base * quote,
		history:      []PricePoint{{Time: now, Price: price}},
		window: Window{
			Start: now,
			Open:  price,
			High:  price,
			Low:   price,
			Close: price,
		},
		lifetime: Lifetime{
			Open: price,
			High: price,
			Low:  price,
		},
	}

	return &p, nil
}

// Price returns the price of the base currency in the quote currency.
func (p *Pool) Price() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.reserveQuote / p.reserveBase
}

// K returns the product of the reserves.
func (p *Pool) K() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.k
}

// Reserves returns the base and quote reserves.
func (p *Pool) Reserves() (base float64, quote float64) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.reserveBase, p.reserveQuote
}

// FeeRate returns the fee taken from the input of every swap.
func (p *Pool) FeeRate() float64 {
	return p.cfg.FeeRate
}

// Preview computes the result of a swap against the live reserves without
// changing the pool.
func (p *Pool) Preview(dir Direction, input float64) (Result, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.quote(dir, input)
}

// Swap executes a swap. Both reserves, the history and the analytics are
// updated together or not at all.
func (p *Pool) Swap(dir Direction, input float64) (Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	res, err := p.quote(dir, input)
	if err != nil {
		return Result{}, err
	}

	var inputValue, outputValue, feeValue float64
	switch dir {
	case BaseToQuote:
		p.reserveBase += input
		p.reserveQuote -= res.Output
		inputValue = input * res.PriceBefore
		outputValue = res.Output
		feeValue = res.Fee * res.PriceBefore

	case QuoteToBase:
		p.reserveQuote += input
		p.reserveBase -= res.Output
		inputValue = input
		outputValue = res.Output * res.PriceBefore
		feeValue = res.Fee
	}

	p.k = p.reserveBase * p.reserveQuote
	p.record(res.PriceBefore, res.PriceAfter, (inputValue+outputValue)/2, feeValue)

	return res, nil
}

// quote computes a swap result. The caller must hold a lock.
func (p *Pool) quote(dir Direction, input float64) (Result, error) {
	if !positive(input) {
		return Result{}, fmt.Errorf("input %v: %w", input, ErrNonPositiveAmount)
	}

	inReserve, outReserve := p.reserveBase, p.reserveQuote
	if dir == QuoteToBase {
		inReserve, outReserve = p.reserveQuote, p.reserveBase
	}

	output := Quote(input, inReserve, outReserve, p.cfg.FeeRate)

	switch {
	case math.IsNaN(output) || output < p.cfg.MinReserve:
		return Result{}, fmt.Errorf("output %v rounds to zero: %w", output, ErrInsufficientLiquidity)
	case output >= outReserve || outReserve-output < p.cfg.MinReserve:
		return Result{}, fmt.Errorf("output %v drains reserve %v: %w", output, outReserve, ErrInsufficientLiquidity)
	}

	newBase, newQuote := p.reserveBase+input, p.reserveQuote-output
	if dir == QuoteToBase {
		newBase, newQuote = p.reserveBase-output, p.reserveQuote+input
	}

	res := Result{
		Direction:   dir,
		Input:       input,
		Output:      output,
		Fee:         input * p.cfg.FeeRate,
		PriceBefore: p.reserveQuote / p.reserveBase,
		PriceAfter:  newQuote / newBase,
		KBefore:     p.k,
		KAfter:      newBase * newQuote,
	}

	return res, nil
}

// record appends the new price and updates the analytics. The caller must
// hold the write lock.
func (p *Pool) record(before float64, price float64, volume float64, fee float64) {
	now := p.cfg.Now()

	p.history = append(p.history, PricePoint{Time: now, Price: price})
	if n := len(p.history) - p.cfg.HistorySize; n > 0 {
		p.history = append(p.history[:0:0], p.history[n:]...)
	}

	if now.Sub(p.window.Start) >= p.cfg.Window {
		p.window = Window{
			Start: now,
			Open:  before,
			High:  before,
			Low:   before,
		}
	}

	p.window.High = math.Max(p.window.High, price)
	p.window.Low = math.Min(p.window.Low, price)
	p.window.Close = price
	p.window.Volume += volume

	p.lifetime.High = math.Max(p.lifetime.High, price)
	p.lifetime.Low = math.Min(p.lifetime.Low, price)
	p.lifetime.Volume += volume
	p.lifetime.Fees += fee
	p.lifetime.Swaps++
}

// =============================================================================

// Snapshot is a consistent copy of the pool state.
type Snapshot struct {
	ReserveBase  float64      `json:"reserve_base"`
	ReserveQuote float64      `json:"reserve_quote"`
	Price        float64      `json:"price"`
	K            float64      `json:"k"`
	FeeRate      float64      `json:"fee_rate"`
	Window       Window       `json:"window"`
	Lifetime     Lifetime     `json:"lifetime"`
	Utilization  float64      `json:"utilization"`
	AverageTrade float64      `json:"average_trade"`
	History      []PricePoint `json:"history"`
}

// Snapshot returns a copy of the pool state taken under a single lock.
func (p *Pool) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	s := Snapshot{
		ReserveBase:  p.reserveBase,
		ReserveQuote: p.reserveQuote,
		Price:        p.reserveQuote / p.reserveBase,
		K:            p.k,
		FeeRate:      p.cfg.FeeRate,
		Window:       p.window,
		Lifetime:     p.lifetime,
		History:      append([]PricePoint(nil), p.history...),
	}

	// Total liquidity valued in the quote currency is twice the quote
	// reserve since both legs are worth the same at the pool price.
	s.Utilization = math.Min(100, p.window.Volume/(2*p.reserveQuote)*100)

	if p.lifetime.Swaps > 0 {
		s.AverageTrade = p.lifetime.Volume / float64(p.lifetime.Swaps)
	}

	return s
}

func positive(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v > 0
}
