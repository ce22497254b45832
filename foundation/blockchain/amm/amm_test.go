package amm_test

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/zuxlabs/ammledger/foundation/blockchain/amm"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

// clock is a controllable time source for the pool.
type clock struct {
	now time.Time
}

func (c *clock) Now() time.Time {
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func newPool(t *testing.T, base float64, quote float64) (*amm.Pool, *clock) {
	c := clock{now: time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)}

	cfg := amm.DefaultConfig()
	cfg.Now = c.Now

	pool, err := amm.New(base, quote, cfg)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to construct the pool: %v", failed, err)
	}

	return pool, &c
}

// =============================================================================

func Test_Swap(t *testing.T) {
	t.Log("Given the need to swap against a balanced pool.")
	{
		t.Logf("\tTest 0:\tWhen swapping 1,000 ZUX into a 1,000,000/1,000,000 pool.")
		{
			pool, _ := newPool(t, 1_000_000, 1_000_000)
			priceBefore := pool.Price()
			kBefore := pool.K()

			res, err := pool.Swap(amm.BaseToQuote, 1_000)
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to swap: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould be able to swap.", success)

			exp := 997.0 * 1_000_000 / (1_000_000 + 997)
			if math.Abs(res.Output-exp) > 1e-9 {
				t.Logf("\t%s\tTest 0:\tgot: %.9f", failed, res.Output)
				t.Logf("\t%s\tTest 0:\texp: %.9f", failed, exp)
				t.Fatalf("\t%s\tTest 0:\tShould get back the curve output.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould get back the curve output.", success)

			if res.Output >= 997 {
				t.Fatalf("\t%s\tTest 0:\tShould get less than the fee adjusted input, got %v.", failed, res.Output)
			}
			t.Logf("\t%s\tTest 0:\tShould get less than the fee adjusted input.", success)

			if pool.Price() >= priceBefore {
				t.Fatalf("\t%s\tTest 0:\tShould lower the price, got %v from %v.", failed, pool.Price(), priceBefore)
			}
			t.Logf("\t%s\tTest 0:\tShould lower the price.", success)

			if pool.K() < kBefore {
				t.Fatalf("\t%s\tTest 0:\tShould not lower K, got %v from %v.", failed, pool.K(), kBefore)
			}
			t.Logf("\t%s\tTest 0:\tShould not lower K.", success)

			base, quote := pool.Reserves()
			if base != 1_001_000 || math.Abs(quote-(1_000_000-exp)) > 1e-6 {
				t.Fatalf("\t%s\tTest 0:\tShould move both reserves, got %v/%v.", failed, base, quote)
			}
			t.Logf("\t%s\tTest 0:\tShould move both reserves.", success)
		}

		t.Logf("\tTest 1:\tWhen previewing a swap.")
		{
			pool, _ := newPool(t, 1_000_000, 1_000_000)

			res, err := pool.Preview(amm.QuoteToBase, 5_000)
			if err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould be able to preview: %v", failed, err)
			}

			if res.PriceAfter <= res.PriceBefore {
				t.Fatalf("\t%s\tTest 1:\tShould preview a higher price after buying.", failed)
			}
			t.Logf("\t%s\tTest 1:\tShould preview a higher price after buying.", success)

			if pool.Price() != 1 || pool.Snapshot().Lifetime.Swaps != 0 {
				t.Fatalf("\t%s\tTest 1:\tShould leave the pool untouched.", failed)
			}
			t.Logf("\t%s\tTest 1:\tShould leave the pool untouched.", success)
		}
	}
}

func Test_Rejections(t *testing.T) {
	type table struct {
		name  string
		dir   amm.Direction
		input float64
		exp   error
	}

	tt := []table{
		{name: "zero", dir: amm.BaseToQuote, input: 0, exp: amm.ErrNonPositiveAmount},
		{name: "negative", dir: amm.QuoteToBase, input: -5, exp: amm.ErrNonPositiveAmount},
		{name: "nan", dir: amm.BaseToQuote, input: math.NaN(), exp: amm.ErrNonPositiveAmount},
		{name: "inf", dir: amm.QuoteToBase, input: math.Inf(1), exp: amm.ErrNonPositiveAmount},
		{name: "dust", dir: amm.BaseToQuote, input: 1e-12, exp: amm.ErrInsufficientLiquidity},
		{name: "drain", dir: amm.QuoteToBase, input: 1e300, exp: amm.ErrInsufficientLiquidity},
	}

	t.Log("Given the need to reject swaps that can not be filled.")
	{
		for testID, tst := range tt {
			f := func(t *testing.T) {
				pool, _ := newPool(t, 100, 100)
				before := pool.Snapshot()

				if _, err := pool.Swap(tst.dir, tst.input); !errors.Is(err, tst.exp) {
					t.Fatalf("\t%s\tTest %d:\tShould get %v, got %v.", failed, testID, tst.exp, err)
				}
				t.Logf("\t%s\tTest %d:\tShould get %v.", success, testID, tst.exp)

				after := pool.Snapshot()
				if after.ReserveBase != before.ReserveBase || after.ReserveQuote != before.ReserveQuote || len(after.History) != len(before.History) {
					t.Fatalf("\t%s\tTest %d:\tShould leave the pool untouched.", failed, testID)
				}
				t.Logf("\t%s\tTest %d:\tShould leave the pool untouched.", success, testID)
			}

			t.Run(tst.name, f)
		}
	}
}

func Test_KMonotonic(t *testing.T) {
	rng := rand.New(rand.NewPCG(42, 1024))

	t.Log("Given the need to never lose value to a swap.")
	{
		pool, _ := newPool(t, 1_000_000, 5_000_000)

		for i := 0; i < 2_000; i++ {
			base, quote := pool.Reserves()

			dir := amm.BaseToQuote
			input := base * (0.001 + rng.Float64()*0.1)
			if rng.IntN(2) == 1 {
				dir = amm.QuoteToBase
				input = quote * (0.001 + rng.Float64()*0.1)
			}

			kBefore := pool.K()
			res, err := pool.Swap(dir, input)
			if err != nil {
				t.Fatalf("\t%s\tShould be able to swap %d: %v", failed, i, err)
			}

			if pool.K() < kBefore || res.KAfter < res.KBefore {
				t.Fatalf("\t%s\tShould not lower K on swap %d: %v -> %v.", failed, i, kBefore, pool.K())
			}

			base, quote = pool.Reserves()
			if base <= 0 || quote <= 0 {
				t.Fatalf("\t%s\tShould keep both reserves positive on swap %d: %v/%v.", failed, i, base, quote)
			}
		}
		t.Logf("\t%s\tShould not lower K and keep both reserves positive.", success)

		s := pool.Snapshot()
		if len(s.History) != 1000 {
			t.Fatalf("\t%s\tShould bound the history at 1000, got %d.", failed, len(s.History))
		}
		t.Logf("\t%s\tShould bound the history at 1000.", success)

		if s.Lifetime.Swaps != 2_000 || s.Lifetime.Fees <= 0 || s.AverageTrade <= 0 {
			t.Fatalf("\t%s\tShould accumulate the lifetime stats: %+v", failed, s.Lifetime)
		}
		t.Logf("\t%s\tShould accumulate the lifetime stats.", success)

		if s.Lifetime.High < s.Lifetime.Open || s.Lifetime.Low > s.Lifetime.Open || s.Lifetime.Low > s.Price || s.Lifetime.High < s.Price {
			t.Fatalf("\t%s\tShould track the lifetime range: %+v", failed, s.Lifetime)
		}
		t.Logf("\t%s\tShould track the lifetime range.", success)
	}
}

func Test_Window(t *testing.T) {
	t.Log("Given the need to roll the window every five seconds.")
	{
		pool, c := newPool(t, 1_000, 1_000)

		if _, err := pool.Swap(amm.QuoteToBase, 10); err != nil {
			t.Fatalf("\t%s\tShould be able to swap: %v", failed, err)
		}

		first := pool.Snapshot()
		if first.Window.Open != 1 || first.Window.High != first.Price || first.Window.Low != 1 || first.Window.Volume <= 0 {
			t.Fatalf("\t%s\tShould accumulate into the first window: %+v", failed, first.Window)
		}
		t.Logf("\t%s\tShould accumulate into the first window.", success)

		c.Advance(4 * time.Second)
		if _, err := pool.Swap(amm.QuoteToBase, 10); err != nil {
			t.Fatalf("\t%s\tShould be able to swap: %v", failed, err)
		}

		second := pool.Snapshot()
		if second.Window.Open != 1 || second.Window.Volume <= first.Window.Volume {
			t.Fatalf("\t%s\tShould keep the window before five seconds: %+v", failed, second.Window)
		}
		t.Logf("\t%s\tShould keep the window before five seconds.", success)

		c.Advance(time.Second)
		res, err := pool.Swap(amm.BaseToQuote, 5)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to swap: %v", failed, err)
		}

		third := pool.Snapshot()
		if third.Window.Open != second.Price || third.Window.Open != res.PriceBefore {
			t.Fatalf("\t%s\tShould open the new window at the previous close, got %v exp %v.", failed, third.Window.Open, second.Price)
		}
		t.Logf("\t%s\tShould open the new window at the previous close.", success)

		if third.Window.Low != third.Price || third.Window.High != second.Price {
			t.Fatalf("\t%s\tShould reset the window range: %+v", failed, third.Window)
		}
		t.Logf("\t%s\tShould reset the window range.", success)

		if math.Abs(third.Window.Volume-(third.Lifetime.Volume-second.Lifetime.Volume)) > 1e-9 {
			t.Fatalf("\t%s\tShould reset the window volume: %+v", failed, third.Window)
		}
		t.Logf("\t%s\tShould reset the window volume.", success)

		if third.Utilization < 0 || third.Utilization > 100 {
			t.Fatalf("\t%s\tShould bound utilization, got %v.", failed, third.Utilization)
		}
		t.Logf("\t%s\tShould bound utilization.", success)

		if third.Lifetime.High != second.Price || third.Lifetime.Low != 1 {
			t.Fatalf("\t%s\tShould keep the lifetime range across windows: %+v", failed, third.Lifetime)
		}
		t.Logf("\t%s\tShould keep the lifetime range across windows.", success)
	}
}
