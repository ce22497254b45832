// Package database handles all the lower level support for maintaining the
// blockchain in memory along with the account balances it produces.
package database

import (
	"errors"
	"fmt"
	"maps"
	"sort"
	"sync"

	"github.com/zuxlabs/ammledger/foundation/blockchain/genesis"
	"github.com/zuxlabs/ammledger/foundation/blockchain/identity"
)

// Set of error variables for applying changes to the database.
var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrUnknownAccount      = errors.New("unknown account")
	ErrDuplicateAccount    = errors.New("account already exists")
	ErrNotFound            = errors.New("not found")
)

// =============================================================================

// Database manages the chain of blocks and the accounts who have transacted
// on the blockchain.
type Database struct {
	mu        sync.RWMutex
	genesis   genesis.Genesis
	blocks    []Block
	accounts  map[identity.Address]Account
	evHandler func(v string, args ...any)
}

// New constructs a new empty database for the genesis parameters.
func New(genesis genesis.Genesis, evHandler func(v string, args ...any)) *Database {
	if evHandler == nil {
		evHandler = func(v string, args ...any) {}
	}

	db := Database{
		genesis:   genesis,
		accounts:  make(map[identity.Address]Account),
		evHandler: evHandler,
	}

	return &db
}

// Genesis returns the genesis parameters the database was built with.
func (db *Database) Genesis() genesis.Genesis {
	return db.genesis
}

// =============================================================================

// AddAccount stores a new account.
func (db *Database) AddAccount(acct Account) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, exists := db.accounts[acct.Address]; exists {
		return fmt.Errorf("%s: %w", acct.Address, ErrDuplicateAccount)
	}

	acct.Balances = maps.Clone(acct.Balances)
	if acct.Balances == nil {
		acct.Balances = make(map[Currency]float64, len(Currencies))
	}

	if acct.Strategy != nil {
		s := *acct.Strategy
		acct.Strategy = &s
	}

	db.accounts[acct.Address] = acct

	return nil
}

// Account returns a copy of the specified account.
func (db *Database) Account(addr identity.Address) (Account, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	acct, exists := db.accounts[addr]
	if !exists {
		return Account{}, fmt.Errorf("%s: %w", addr, ErrUnknownAccount)
	}

	return acct.copyOut(), nil
}

// UpdateAccount lets the caller change the bookkeeping of an account. The
// balances and keys of the account can not be changed this way.
func (db *Database) UpdateAccount(addr identity.Address, fn func(acct *Account)) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	acct, exists := db.accounts[addr]
	if !exists {
		return fmt.Errorf("%s: %w", addr, ErrUnknownAccount)
	}

	cp := acct.copyOut()
	fn(&cp)

	acct.Strategy = cp.Strategy
	acct.TradeCount = cp.TradeCount
	acct.LastActivity = cp.LastActivity
	db.accounts[addr] = acct

	return nil
}

// SignTx signs the transaction with the key of the sending account.
func (db *Database) SignTx(tx Tx) (SignedTx, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	acct, exists := db.accounts[tx.From]
	if !exists {
		return SignedTx{}, fmt.Errorf("%s: %w", tx.From, ErrUnknownAccount)
	}

	return acct.SignTx(tx)
}

// CopyAccounts makes a copy of the current accounts in the database.
func (db *Database) CopyAccounts() map[identity.Address]Account {
	db.mu.RLock()
	defer db.mu.RUnlock()

	accounts := make(map[identity.Address]Account, len(db.accounts))
	for addr, acct := range db.accounts {
		accounts[addr] = acct.copyOut()
	}

	return accounts
}

// Accounts returns a copy of the accounts sorted by address.
func (db *Database) Accounts() []Account {
	db.mu.RLock()
	defer db.mu.RUnlock()

	accounts := make([]Account, 0, len(db.accounts))
	for _, acct := range db.accounts {
		accounts = append(accounts, acct.copyOut())
	}
	sort.Sort(byAccount(accounts))

	return accounts
}

// =============================================================================

// ApplyTransaction performs the business logic for applying a transaction
// to the account balances. Nothing changes when the transaction is rejected.
func (db *Database) ApplyTransaction(tx SignedTx) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	return db.applyTransactions([]SignedTx{tx})
}

// CheckTransactions reports whether the transactions could be applied in
// order against the current balances without applying them.
func (db *Database) CheckTransactions(trans []SignedTx) error {
	db.mu.RLock()
	defer db.mu.RUnlock()

	_, err := db.stage(trans)
	return err
}

// applyTransactions stages every transaction first and only commits when
// all of them can be applied. The caller must hold the write lock.
func (db *Database) applyTransactions(trans []SignedTx) error {
	staged, err := db.stage(trans)
	if err != nil {
		return err
	}

	for addr, balances := range staged {
		acct := db.accounts[addr]
		acct.Balances = balances
		db.accounts[addr] = acct
	}

	return nil
}

// stage computes the balances the transactions would produce.
func (db *Database) stage(trans []SignedTx) (map[identity.Address]map[Currency]float64, error) {
	staged := make(map[identity.Address]map[Currency]float64)

	balances := func(addr identity.Address) (map[Currency]float64, error) {
		if b, exists := staged[addr]; exists {
			return b, nil
		}

		acct, exists := db.accounts[addr]
		if !exists {
			return nil, fmt.Errorf("%s: %w", addr, ErrUnknownAccount)
		}

		b := maps.Clone(acct.Balances)
		if b == nil {
			b = make(map[Currency]float64)
		}
		staged[addr] = b

		return b, nil
	}

	for _, tx := range trans {
		if err := tx.Validate(); err != nil {
			return nil, fmt.Errorf("transaction %s: %w", tx, err)
		}

		if tx.From == tx.To {
			return nil, fmt.Errorf("transaction invalid, sending money to yourself, from %s, to %s", tx.From, tx.To)
		}

		from, err := balances(tx.From)
		if err != nil {
			return nil, err
		}

		to, err := balances(tx.To)
		if err != nil {
			return nil, err
		}

		if from[tx.Currency] < tx.Amount {
			return nil, fmt.Errorf("%s holds %.9f %s, needs %.9f: %w", tx.From, from[tx.Currency], tx.Currency, tx.Amount, ErrInsufficientBalance)
		}

		from[tx.Currency] -= tx.Amount
		to[tx.Currency] += tx.Amount
	}

	return staged, nil
}

// =============================================================================

// Append validates the block against the current tip and stores it, applying
// its transactions to the account balances. Nothing changes when the block
// is rejected.
func (db *Database) Append(block Block) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	tip := db.latestBlock()

	if block.Header.PrevBlockHash != tip.Hash() || block.Header.Number != tip.Header.Number+1 {
		return fmt.Errorf("blk[%d] parent[%s] tip[%d:%s]: %w", block.Header.Number, block.Header.PrevBlockHash, tip.Header.Number, tip.Hash(), ErrChainLink)
	}

	if block.Header.Difficulty < db.difficulty(block.Header.Number) {
		return fmt.Errorf("blk[%d] difficulty %d below %d", block.Header.Number, block.Header.Difficulty, db.difficulty(block.Header.Number))
	}

	if err := block.ValidateBlock(tip, db.evHandler); err != nil {
		return err
	}

	if err := db.applyTransactions(block.Trans); err != nil {
		return err
	}

	db.blocks = append(db.blocks, block.clone())

	return nil
}

// LatestBlock returns the latest block. The zero block is returned when
// the chain is empty.
func (db *Database) LatestBlock() Block {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return db.latestBlock().clone()
}

// QueryBlock returns the block with the specified number.
func (db *Database) QueryBlock(number uint64) (Block, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if number == 0 || number > uint64(len(db.blocks)) {
		return Block{}, fmt.Errorf("block %d: %w", number, ErrNotFound)
	}

	return db.blocks[number-1].clone(), nil
}

// CopyBlocks makes a copy of every block in the chain.
func (db *Database) CopyBlocks() []Block {
	db.mu.RLock()
	defer db.mu.RUnlock()

	blocks := make([]Block, len(db.blocks))
	for i, b := range db.blocks {
		blocks[i] = b.clone()
	}

	return blocks
}

// BlockCount returns the number of blocks in the chain.
func (db *Database) BlockCount() int {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return len(db.blocks)
}

// VerifyChain re-validates every block stored in the database.
func (db *Database) VerifyChain() error {
	return VerifyChain(db.genesis, db.CopyBlocks(), db.evHandler)
}

func (db *Database) latestBlock() Block {
	if len(db.blocks) == 0 {
		return Block{}
	}

	return db.blocks[len(db.blocks)-1]
}

func (db *Database) difficulty(number uint64) uint16 {
	return minDifficulty(db.genesis, number)
}

func minDifficulty(g genesis.Genesis, number uint64) uint16 {
	if number == 1 {
		return g.GenesisDifficulty
	}

	return g.Difficulty
}

// =============================================================================

// VerifyChain recomputes every block hash from its fields and checks the
// difficulty against the network minimum, the parent linkage, the numbering,
// the state root and every transaction across the whole sequence.
func VerifyChain(g genesis.Genesis, blocks []Block, evHandler func(v string, args ...any)) error {
	if evHandler == nil {
		evHandler = func(v string, args ...any) {}
	}

	var parent Block
	for _, b := range blocks {
		if want := minDifficulty(g, b.Header.Number); b.Header.Difficulty < want {
			return fmt.Errorf("blk[%d]: difficulty %d below %d", b.Header.Number, b.Header.Difficulty, want)
		}

		if err := b.ValidateBlock(parent, evHandler); err != nil {
			return fmt.Errorf("blk[%d]: %w", b.Header.Number, err)
		}
		parent = b
	}

	return nil
}
