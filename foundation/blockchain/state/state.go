// Package state is the core API for the blockchain and implements all the
// business rules and processing. It is the single writer of the ledger and
// the pool.
package state

import (
	"context"
	"errors"
	"sync"

	"github.com/zuxlabs/ammledger/foundation/blockchain/amm"
	"github.com/zuxlabs/ammledger/foundation/blockchain/database"
	"github.com/zuxlabs/ammledger/foundation/blockchain/genesis"
	"github.com/zuxlabs/ammledger/foundation/blockchain/identity"
	"github.com/zuxlabs/ammledger/foundation/blockchain/worker"
)

// Set of error variables for state operations.
var (
	ErrPoolNotCreated = errors.New("pool has not been created")
	ErrPoolExists     = errors.New("pool already exists")
	ErrNoGenesis      = errors.New("genesis block has not been mined")
	ErrGenesisExists  = errors.New("genesis block already mined")
	ErrPoolAccount    = errors.New("pool account only moves through swaps")
)

// =============================================================================

// EventHandler defines a function that is called when events
// occur in the processing of persisting blocks.
type EventHandler func(v string, args ...any)

// Miner interface represents the behavior required to be implemented by any
// package providing support for mining blocks.
type Miner interface {
	Mine(ctx context.Context, block database.Block) (database.Block, error)
	Shutdown()
}

// Config represents the configuration required to start the state.
type Config struct {
	Genesis   genesis.Genesis
	Generator *identity.Generator
	Miner     Miner
	Miners    int
	Pool      amm.Config
	EvHandler EventHandler
}

// State manages the blockchain database and the pool.
type State struct {
	wmu sync.Mutex   // Serializes writers across the whole review, mine, commit.
	mu  sync.RWMutex // Held for writing only while a mined block is committed.

	genesis   genesis.Genesis
	generator *identity.Generator
	miner     Miner
	poolCfg   amm.Config
	evHandler EventHandler

	db   *database.Database
	pool *amm.Pool
}

// New constructs a new state for data management.
func New(cfg Config) (*State, error) {

	// Build a safe event handler function for use.
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	if err := cfg.Genesis.Validate(); err != nil {
		return nil, err
	}

	gen := cfg.Generator
	if gen == nil {
		var err error
		if gen, err = identity.NewGenerator(); err != nil {
			return nil, err
		}
	}

	// The reserved addresses can never be produced since their length
	// differs, they are recorded anyway so they are always skipped.
	gen.Reserve(database.SystemAddress)
	gen.Reserve(database.PoolAddress)

	miner := cfg.Miner
	if miner == nil {
		miner = worker.Run(cfg.Miners, worker.EventHandler(ev))
	}

	// Zero values in the pool configuration take the pool defaults. The
	// fee always comes from genesis.
	poolCfg := cfg.Pool
	poolCfg.FeeRate = cfg.Genesis.FeeRate

	s := State{
		genesis:   cfg.Genesis,
		generator: gen,
		miner:     miner,
		poolCfg:   poolCfg,
		evHandler: ev,
		db:        database.New(cfg.Genesis, ev),
	}

	return &s, nil
}

// Shutdown cleanly brings the state down, cancelling any mining in flight.
func (s *State) Shutdown() {
	s.evHandler("state: shutdown: started")
	defer s.evHandler("state: shutdown: completed")

	s.miner.Shutdown()
}

// RetrieveGenesis returns the genesis parameters of the chain.
func (s *State) RetrieveGenesis() genesis.Genesis {
	return s.genesis
}
