package state_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/zuxlabs/ammledger/foundation/blockchain/agent"
	"github.com/zuxlabs/ammledger/foundation/blockchain/amm"
	"github.com/zuxlabs/ammledger/foundation/blockchain/database"
	"github.com/zuxlabs/ammledger/foundation/blockchain/genesis"
	"github.com/zuxlabs/ammledger/foundation/blockchain/state"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func newState(t *testing.T) *state.State {
	st, err := state.New(state.Config{
		Genesis: genesis.Default(),
		Miners:  2,
	})
	if err != nil {
		t.Fatalf("\t%s\tShould be able to construct the state: %v", failed, err)
	}
	t.Cleanup(st.Shutdown)

	if _, err := st.Genesis(context.Background()); err != nil {
		t.Fatalf("\t%s\tShould be able to mine the genesis block: %v", failed, err)
	}

	return st
}

func fund(t *testing.T, st *state.State) database.Account {
	ctx := context.Background()

	acct, err := st.CreateAccount(ctx)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to create an account: %v", failed, err)
	}

	if _, err := st.Transfer(ctx, database.SystemAddress, acct.Address, database.ZUX, 100); err != nil {
		t.Fatalf("\t%s\tShould be able to fund ZUX: %v", failed, err)
	}

	if _, err := st.Transfer(ctx, database.SystemAddress, acct.Address, database.USDZ, 500); err != nil {
		t.Fatalf("\t%s\tShould be able to fund USDZ: %v", failed, err)
	}

	return acct
}

// =============================================================================

func Test_Lifecycle(t *testing.T) {
	ctx := context.Background()

	t.Log("Given the need to run accounts and a pool on the ledger.")
	{
		st := newState(t)

		t.Logf("\tTest 0:\tWhen the pool has not been created.")
		{
			if _, err := st.Genesis(ctx); !errors.Is(err, state.ErrGenesisExists) {
				t.Fatalf("\t%s\tTest 0:\tShould refuse a second genesis, got %v.", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould refuse a second genesis.", success)

			if g := st.RetrieveGenesis(); g.NetworkName != genesis.Default().NetworkName {
				t.Fatalf("\t%s\tTest 0:\tShould retrieve the genesis parameters, got %q.", failed, g.NetworkName)
			}
			t.Logf("\t%s\tTest 0:\tShould retrieve the genesis parameters.", success)

			acct := fund(t, st)

			if _, err := st.Swap(ctx, acct.Address, amm.QuoteToBase, 10); !errors.Is(err, state.ErrPoolNotCreated) {
				t.Fatalf("\t%s\tTest 0:\tShould get ErrPoolNotCreated, got %v.", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould get ErrPoolNotCreated.", success)

			if _, err := st.RetrievePool(); !errors.Is(err, state.ErrPoolNotCreated) {
				t.Fatalf("\t%s\tTest 0:\tShould get ErrPoolNotCreated for the pool snapshot, got %v.", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould get ErrPoolNotCreated for the pool snapshot.", success)
		}

		t.Logf("\tTest 1:\tWhen swapping against a created pool.")
		{
			if _, err := st.CreatePool(ctx, 1_000_000, 1_000_000); err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould be able to create the pool: %v", failed, err)
			}
			t.Logf("\t%s\tTest 1:\tShould be able to create the pool.", success)

			if _, err := st.CreatePool(ctx, 1, 1); !errors.Is(err, state.ErrPoolExists) {
				t.Fatalf("\t%s\tTest 1:\tShould refuse a second pool, got %v.", failed, err)
			}
			t.Logf("\t%s\tTest 1:\tShould refuse a second pool.", success)

			acct := fund(t, st)

			res, err := st.Swap(ctx, acct.Address, amm.BaseToQuote, 50)
			if err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould be able to swap: %v", failed, err)
			}
			t.Logf("\t%s\tTest 1:\tShould be able to swap.", success)

			if len(res.Block.Trans) != 2 || res.Block.Event.Kind != database.EventSwap {
				t.Fatalf("\t%s\tTest 1:\tShould record both legs in a swap block: %+v", failed, res.Block.Event)
			}
			t.Logf("\t%s\tTest 1:\tShould record both legs in a swap block.", success)

			got, err := st.RetrieveAccount(acct.Address)
			if err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould be able to retrieve the account: %v", failed, err)
			}

			if got.Balance(database.ZUX) != 50 || math.Abs(got.Balance(database.USDZ)-(500+res.Result.Output)) > 1e-9 || got.TradeCount != 1 {
				t.Fatalf("\t%s\tTest 1:\tShould settle the swap on the account: %v %d", failed, got.Balances, got.TradeCount)
			}
			t.Logf("\t%s\tTest 1:\tShould settle the swap on the account.", success)

			pool, err := st.RetrievePool()
			if err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould be able to retrieve the pool: %v", failed, err)
			}

			poolAcct, err := st.RetrieveAccount(database.PoolAddress)
			if err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould be able to retrieve the pool account: %v", failed, err)
			}

			if math.Abs(pool.ReserveBase-poolAcct.Balance(database.ZUX)) > 1e-6 || math.Abs(pool.ReserveQuote-poolAcct.Balance(database.USDZ)) > 1e-6 {
				t.Fatalf("\t%s\tTest 1:\tShould keep the pool account equal to the reserves: %+v %v", failed, pool, poolAcct.Balances)
			}
			t.Logf("\t%s\tTest 1:\tShould keep the pool account equal to the reserves.", success)

			if err := st.VerifyChain(); err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould be able to verify the chain: %v", failed, err)
			}
			t.Logf("\t%s\tTest 1:\tShould be able to verify the chain.", success)
		}

		t.Logf("\tTest 2:\tWhen a swap can not be covered.")
		{
			acct := fund(t, st)
			before := st.Snapshot()

			if _, err := st.Swap(ctx, acct.Address, amm.BaseToQuote, 150); !errors.Is(err, database.ErrInsufficientBalance) {
				t.Fatalf("\t%s\tTest 2:\tShould get ErrInsufficientBalance, got %v.", failed, err)
			}
			t.Logf("\t%s\tTest 2:\tShould get ErrInsufficientBalance.", success)

			if _, err := st.Swap(ctx, acct.Address, amm.BaseToQuote, -1); !errors.Is(err, amm.ErrNonPositiveAmount) {
				t.Fatalf("\t%s\tTest 2:\tShould get ErrNonPositiveAmount, got %v.", failed, err)
			}
			t.Logf("\t%s\tTest 2:\tShould get ErrNonPositiveAmount.", success)

			if !sameSnapshot(t, before, st.Snapshot()) {
				t.Fatalf("\t%s\tTest 2:\tShould leave the state untouched.", failed)
			}
			t.Logf("\t%s\tTest 2:\tShould leave the state untouched.", success)
		}
	}
}

func Test_PoolAccount(t *testing.T) {
	ctx := context.Background()

	t.Log("Given the need to keep the pool account in line with the reserves.")
	{
		st := newState(t)
		acct := fund(t, st)

		if _, err := st.CreatePool(ctx, 1_000_000, 1_000_000); err != nil {
			t.Fatalf("\t%s\tShould be able to create the pool: %v", failed, err)
		}

		t.Logf("\tTest 0:\tWhen transferring out of or into the pool account.")
		{
			before := st.Snapshot()

			if _, err := st.Transfer(ctx, database.PoolAddress, acct.Address, database.USDZ, 999_999); !errors.Is(err, state.ErrPoolAccount) {
				t.Fatalf("\t%s\tTest 0:\tShould refuse a transfer out of the pool, got %v.", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould refuse a transfer out of the pool.", success)

			if _, err := st.Transfer(ctx, acct.Address, database.PoolAddress, database.ZUX, 10); !errors.Is(err, state.ErrPoolAccount) {
				t.Fatalf("\t%s\tTest 0:\tShould refuse a transfer into the pool, got %v.", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould refuse a transfer into the pool.", success)

			if !sameSnapshot(t, before, st.Snapshot()) {
				t.Fatalf("\t%s\tTest 0:\tShould leave the state untouched.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould leave the state untouched.", success)
		}

		t.Logf("\tTest 1:\tWhen swapping after the refused transfers.")
		{
			if _, err := st.Swap(ctx, acct.Address, amm.BaseToQuote, 50); err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould be able to swap: %v", failed, err)
			}
			t.Logf("\t%s\tTest 1:\tShould be able to swap.", success)

			pool, err := st.RetrievePool()
			if err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould be able to retrieve the pool: %v", failed, err)
			}

			poolAcct, err := st.RetrieveAccount(database.PoolAddress)
			if err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould be able to retrieve the pool account: %v", failed, err)
			}

			if math.Abs(pool.ReserveQuote-poolAcct.Balance(database.USDZ)) > 1e-6 {
				t.Fatalf("\t%s\tTest 1:\tShould keep the pool account equal to the reserves: %+v %v", failed, pool, poolAcct.Balances)
			}
			t.Logf("\t%s\tTest 1:\tShould keep the pool account equal to the reserves.", success)
		}
	}
}

func Test_Snapshot(t *testing.T) {
	t.Log("Given the need to take repeatable snapshots.")
	{
		st := newState(t)
		fund(t, st)

		if _, err := st.CreatePool(context.Background(), 1_000, 5_000); err != nil {
			t.Fatalf("\t%s\tShould be able to create the pool: %v", failed, err)
		}

		first := st.Snapshot()
		second := st.Snapshot()

		if !sameSnapshot(t, first, second) {
			t.Fatalf("\t%s\tShould produce identical snapshots with no changes between them.", failed)
		}
		t.Logf("\t%s\tShould produce identical snapshots with no changes between them.", success)

		if first.Height != uint64(len(first.Blocks)) || first.Pool == nil || first.Pool.Price != 5 {
			t.Fatalf("\t%s\tShould describe the chain and the pool: %d %d", failed, first.Height, len(first.Blocks))
		}
		t.Logf("\t%s\tShould describe the chain and the pool.", success)

		data, err := json.Marshal(first)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to marshal the snapshot: %v", failed, err)
		}

		if bytes.Contains(data, []byte("private")) {
			t.Fatalf("\t%s\tShould never export key material.", failed)
		}
		t.Logf("\t%s\tShould never export key material.", success)
	}
}

func Test_Decide(t *testing.T) {
	ctx := context.Background()

	t.Log("Given the need to ask an agent for a decision.")
	{
		st := newState(t)
		acct := fund(t, st)

		if _, err := st.CreatePool(ctx, 1_000, 1_000); err != nil {
			t.Fatalf("\t%s\tShould be able to create the pool: %v", failed, err)
		}

		if err := st.SetStrategy(acct.Address, agent.Strategy{FomoThreshold: 0.05, PanicThreshold: 0.05}); err != nil {
			t.Fatalf("\t%s\tShould be able to set the strategy: %v", failed, err)
		}

		d, err := st.Decide(acct.Address)
		if err != nil || d.Action != agent.Hold {
			t.Fatalf("\t%s\tShould hold on the first price seen: %v %v", failed, d, err)
		}
		t.Logf("\t%s\tShould hold on the first price seen.", success)

		whale := fund(t, st)
		if _, err := st.Swap(ctx, whale.Address, amm.QuoteToBase, 400); err != nil {
			t.Fatalf("\t%s\tShould be able to pump the price: %v", failed, err)
		}

		d, err = st.Decide(acct.Address)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to decide: %v", failed, err)
		}

		if d.Action != agent.Buy || d.Amount != 125 {
			t.Fatalf("\t%s\tShould buy with a quarter of the quote balance after a pump, got %s.", failed, d)
		}
		t.Logf("\t%s\tShould buy with a quarter of the quote balance after a pump.", success)
	}
}

// =============================================================================

func sameSnapshot(t *testing.T, a state.Snapshot, b state.Snapshot) bool {
	da, err := json.Marshal(a)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to marshal the snapshot: %v", failed, err)
	}

	db, err := json.Marshal(b)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to marshal the snapshot: %v", failed, err)
	}

	return bytes.Equal(da, db)
}
