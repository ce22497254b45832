package state

import (
	"context"
	"fmt"
	"time"

	"github.com/zuxlabs/ammledger/foundation/blockchain/agent"
	"github.com/zuxlabs/ammledger/foundation/blockchain/amm"
	"github.com/zuxlabs/ammledger/foundation/blockchain/database"
	"github.com/zuxlabs/ammledger/foundation/blockchain/identity"
)

// SwapResult is what a successful swap produced.
type SwapResult struct {
	Block  database.Block `json:"block"`
	Result amm.Result     `json:"result"`
}

// =============================================================================

// Genesis mines the first block of the chain and opens the system account
// with the genesis balances. The pool account is opened empty alongside it.
func (s *State) Genesis(ctx context.Context) (database.Block, error) {
	s.wmu.Lock()
	defer s.wmu.Unlock()

	if s.db.BlockCount() > 0 {
		return database.Block{}, ErrGenesisExists
	}

	system, err := database.NewAccount(database.SystemAddress)
	if err != nil {
		return database.Block{}, err
	}

	for currency, balance := range s.genesis.SystemBalances {
		c, err := database.ToCurrency(currency)
		if err != nil {
			return database.Block{}, err
		}
		system.Balances[c] = balance
	}

	pool, err := database.NewAccount(database.PoolAddress)
	if err != nil {
		return database.Block{}, err
	}

	plan := blockPlan{
		event: database.GenesisEvent(),
		commit: func() {
			for _, acct := range []database.Account{system, pool} {
				if err := s.db.AddAccount(acct); err != nil {
					s.evHandler("state: Genesis: WARNING: %s", err)
				}
			}
		},
	}

	return s.mineBlock(ctx, plan)
}

// CreateAccount issues a new address and key pair and records the creation
// of the account on the chain.
func (s *State) CreateAccount(ctx context.Context) (database.Account, error) {
	s.wmu.Lock()
	defer s.wmu.Unlock()

	if s.db.BlockCount() == 0 {
		return database.Account{}, ErrNoGenesis
	}

	addr, err := s.generator.Next()
	if err != nil {
		return database.Account{}, fmt.Errorf("issuing address: %w", err)
	}

	acct, err := database.NewAccount(addr)
	if err != nil {
		return database.Account{}, err
	}

	plan := blockPlan{
		event: database.AccountCreationEvent(addr),
		commit: func() {
			if err := s.db.AddAccount(acct); err != nil {
				s.evHandler("state: CreateAccount: WARNING: %s", err)
			}
		},
	}

	if _, err := s.mineBlock(ctx, plan); err != nil {
		return database.Account{}, err
	}

	return s.db.Account(addr)
}

// SetStrategy attaches a trading strategy to the account.
func (s *State) SetStrategy(addr identity.Address, strategy agent.Strategy) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.UpdateAccount(addr, func(acct *database.Account) {
		acct.Strategy = &strategy
	})
}

// Transfer moves funds between two accounts in a block of its own.
func (s *State) Transfer(ctx context.Context, from identity.Address, to identity.Address, currency database.Currency, amount float64) (database.Block, error) {
	s.wmu.Lock()
	defer s.wmu.Unlock()

	if s.db.BlockCount() == 0 {
		return database.Block{}, ErrNoGenesis
	}

	if from == database.PoolAddress || to == database.PoolAddress {
		return database.Block{}, ErrPoolAccount
	}

	tx, err := database.NewTx(from, to, currency, amount, now())
	if err != nil {
		return database.Block{}, err
	}

	plan := blockPlan{
		event: database.TokenCreditEvent(to, currency, amount),
		trans: s.signer(tx),
		commit: func() {
			s.touch(from, false)
			s.touch(to, false)
		},
	}

	return s.mineBlock(ctx, plan)
}

// CreatePool opens the pool with liquidity taken from the system account.
func (s *State) CreatePool(ctx context.Context, base float64, quote float64) (database.Block, error) {
	s.wmu.Lock()
	defer s.wmu.Unlock()

	if s.db.BlockCount() == 0 {
		return database.Block{}, ErrNoGenesis
	}

	s.mu.RLock()
	exists := s.pool != nil
	s.mu.RUnlock()

	if exists {
		return database.Block{}, ErrPoolExists
	}

	baseTx, err := database.NewTx(database.SystemAddress, database.PoolAddress, database.ZUX, base, now())
	if err != nil {
		return database.Block{}, fmt.Errorf("base reserve: %w", err)
	}

	quoteTx, err := database.NewTx(database.SystemAddress, database.PoolAddress, database.USDZ, quote, now())
	if err != nil {
		return database.Block{}, fmt.Errorf("quote reserve: %w", err)
	}

	pool, err := amm.New(base, quote, s.poolCfg)
	if err != nil {
		return database.Block{}, err
	}

	plan := blockPlan{
		event: database.PoolCreationEvent(database.PoolAddress),
		trans: s.signer(baseTx, quoteTx),
		commit: func() {
			s.pool = pool
		},
	}

	return s.mineBlock(ctx, plan)
}

// Swap trades the input amount against the pool on behalf of the account.
// The account pays the input to the pool and the pool pays the output back,
// both recorded in a single block.
func (s *State) Swap(ctx context.Context, addr identity.Address, dir amm.Direction, input float64) (SwapResult, error) {
	s.wmu.Lock()
	defer s.wmu.Unlock()

	s.mu.RLock()
	pool := s.pool
	s.mu.RUnlock()

	if pool == nil {
		return SwapResult{}, ErrPoolNotCreated
	}

	if _, err := s.db.Account(addr); err != nil {
		return SwapResult{}, err
	}

	// The event carries the output, so the swap is previewed before the
	// block is built. Writers are serialized so the reserves can not move
	// before the swap is committed.
	res, err := pool.Preview(dir, input)
	if err != nil {
		return SwapResult{}, err
	}

	inCurrency, outCurrency := database.ZUX, database.USDZ
	if dir == amm.QuoteToBase {
		inCurrency, outCurrency = database.USDZ, database.ZUX
	}

	pay, err := database.NewTx(addr, database.PoolAddress, inCurrency, input, now())
	if err != nil {
		return SwapResult{}, err
	}

	receive, err := database.NewTx(database.PoolAddress, addr, outCurrency, res.Output, now())
	if err != nil {
		return SwapResult{}, err
	}

	plan := blockPlan{
		event: database.SwapEvent(addr, dir.String(), input, res.Output),
		trans: s.signer(pay, receive),
		commit: func() {
			if _, err := pool.Swap(dir, input); err != nil {
				s.evHandler("state: Swap: WARNING: pool rejected a mined swap: %s", err)
			}
			s.touch(addr, true)
		},
	}

	block, err := s.mineBlock(ctx, plan)
	if err != nil {
		return SwapResult{}, err
	}

	return SwapResult{Block: block, Result: res}, nil
}

// Decide asks the account's strategy what to do at the current pool price.
// Accounts without a strategy always hold.
func (s *State) Decide(addr identity.Address) (agent.Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pool == nil {
		return agent.Decision{}, ErrPoolNotCreated
	}

	price := s.pool.Price()

	var d agent.Decision
	err := s.db.UpdateAccount(addr, func(acct *database.Account) {
		if acct.Strategy == nil {
			return
		}

		bal := agent.Balances{
			Base:  acct.Balance(database.ZUX),
			Quote: acct.Balance(database.USDZ),
		}
		d = acct.Strategy.Decide(price, bal)
	})

	return d, err
}

// =============================================================================

// signer returns a function that signs the transactions with the keys held
// by the database.
func (s *State) signer(txs ...database.Tx) func() ([]database.SignedTx, error) {
	return func() ([]database.SignedTx, error) {
		trans := make([]database.SignedTx, 0, len(txs))
		for _, tx := range txs {
			signedTx, err := s.db.SignTx(tx)
			if err != nil {
				return nil, err
			}
			trans = append(trans, signedTx)
		}

		return trans, nil
	}
}

// touch updates the bookkeeping of an account after it transacted. The
// caller must hold the write lock.
func (s *State) touch(addr identity.Address, trade bool) {
	t := time.Now().UTC()

	err := s.db.UpdateAccount(addr, func(acct *database.Account) {
		acct.LastActivity = t
		if !trade {
			return
		}

		acct.TradeCount++
		if acct.Strategy != nil {
			acct.Strategy.Traded(t)
		}
	})
	if err != nil {
		s.evHandler("state: touch: WARNING: %s: %s", addr, err)
	}
}

func now() uint64 {
	return uint64(time.Now().UTC().UnixMilli())
}
