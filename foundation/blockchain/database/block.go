package database

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"math"
	"math/big"
	"runtime"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/zuxlabs/ammledger/foundation/blockchain/genesis"
	"github.com/zuxlabs/ammledger/foundation/blockchain/identity"
	"github.com/zuxlabs/ammledger/foundation/blockchain/merkle"
	"github.com/zuxlabs/ammledger/foundation/blockchain/signature"
)

// ErrChainLink is returned when a block does not extend the current tip.
var ErrChainLink = errors.New("block does not link to the chain tip")

// yieldEvery is how many hash attempts are made between yields of the
// processor while mining.
const yieldEvery = 4096

// =============================================================================

// EventKind names what caused a block to be produced.
type EventKind string

// Set of events that produce blocks.
const (
	EventGenesis         EventKind = "Genesis"
	EventAccountCreation EventKind = "AccountCreation"
	EventTokenCredit     EventKind = "TokenCredit"
	EventPoolCreation    EventKind = "PoolCreation"
	EventSwap            EventKind = "Swap"
)

// Event describes what the block records. Only the fields that belong to
// the kind are set.
type Event struct {
	Kind      EventKind        `json:"kind"`
	Address   identity.Address `json:"address,omitempty"`
	Currency  Currency         `json:"currency,omitempty"`
	Amount    float64          `json:"amount,omitempty"`
	Direction string           `json:"direction,omitempty"`
	Output    float64          `json:"output,omitempty"`
}

// GenesisEvent constructs the event for the first block.
func GenesisEvent() Event {
	return Event{Kind: EventGenesis}
}

// AccountCreationEvent constructs the event for a new account.
func AccountCreationEvent(addr identity.Address) Event {
	return Event{Kind: EventAccountCreation, Address: addr}
}

// TokenCreditEvent constructs the event for funds credited to an account.
func TokenCreditEvent(addr identity.Address, currency Currency, amount float64) Event {
	return Event{Kind: EventTokenCredit, Address: addr, Currency: currency, Amount: amount}
}

// PoolCreationEvent constructs the event for the pool being opened.
func PoolCreationEvent(addr identity.Address) Event {
	return Event{Kind: EventPoolCreation, Address: addr}
}

// SwapEvent constructs the event for a swap against the pool.
func SwapEvent(addr identity.Address, direction string, input float64, output float64) Event {
	return Event{Kind: EventSwap, Address: addr, Direction: direction, Amount: input, Output: output}
}

// BlockType returns the display name of the block type the event produces.
func (e Event) BlockType() string {
	switch e.Kind {
	case EventGenesis:
		return "Genesis Block"
	case EventAccountCreation:
		return "Account Creation"
	case EventTokenCredit:
		return "Token Credit"
	case EventPoolCreation:
		return "AMM Pool Creation"
	case EventSwap:
		return "Swap"
	}

	return "Unknown"
}

// String implements the fmt.Stringer interface.
func (e Event) String() string {
	return string(e.leaf())
}

// leaf returns the canonical encoding of the event committed into the
// state root. Amounts are fixed to nine decimals so the encoding does not
// depend on how a float happens to print.
func (e Event) leaf() []byte {
	parts := []string{string(e.Kind)}

	switch e.Kind {
	case EventAccountCreation, EventPoolCreation:
		parts = append(parts, string(e.Address))
	case EventTokenCredit:
		parts = append(parts, string(e.Address), string(e.Currency), fixed(e.Amount))
	case EventSwap:
		parts = append(parts, string(e.Address), e.Direction, fixed(e.Amount), fixed(e.Output))
	}

	return []byte(strings.Join(parts, "|"))
}

func fixed(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Sprint(v)
	}

	return decimal.NewFromFloat(v).StringFixed(9)
}

// =============================================================================

// Metadata is the fixed description stamped into every block header.
type Metadata struct {
	NetworkName   string `json:"network_name"`
	Version       string `json:"version"`
	InceptionYear int    `json:"inception_year"`
	Class         string `json:"class"`
	Type          string `json:"type"`
}

// BlockHeader represents common information required for each block.
type BlockHeader struct {
	Number        uint64   `json:"number"`          // Block number in the chain, starting at 1.
	PrevBlockHash string   `json:"prev_block_hash"` // Hash of the previous block in the chain.
	TimeStamp     uint64   `json:"timestamp"`       // Unix milliseconds the block was built.
	Difficulty    uint16   `json:"difficulty"`      // Number of leading 0's needed to solve the hash solution.
	Nonce         uint64   `json:"nonce"`           // Value identified to solve the hash solution.
	StateRoot     string   `json:"state_root"`      // Merkle root of the transactions and the event.
	Metadata      Metadata `json:"metadata"`
}

// Block represents a group of transactions recorded for a single event.
type Block struct {
	Header BlockHeader `json:"header"`
	Event  Event       `json:"event"`
	Trans  []SignedTx  `json:"trans"`
}

// BlockArgs is the set of values needed to build a candidate block.
type BlockArgs struct {
	Genesis   genesis.Genesis
	PrevBlock Block
	Event     Event
	Trans     []SignedTx
}

// NewBlock builds a candidate block on top of the previous block. The block
// still needs to be mined before it can be appended. A zero previous block
// builds the genesis block.
func NewBlock(args BlockArgs) (Block, error) {
	prevBlockHash := signature.ZeroHash
	difficulty := args.Genesis.GenesisDifficulty
	if args.PrevBlock.Header.Number > 0 {
		prevBlockHash = args.PrevBlock.Hash()
		difficulty = args.Genesis.Difficulty
	}

	trans := append([]SignedTx(nil), args.Trans...)

	root, err := stateRoot(trans, args.Event)
	if err != nil {
		return Block{}, err
	}

	timeStamp := uint64(time.Now().UTC().UnixMilli())
	if timeStamp < args.PrevBlock.Header.TimeStamp {
		timeStamp = args.PrevBlock.Header.TimeStamp
	}

	b := Block{
		Header: BlockHeader{
			Number:        args.PrevBlock.Header.Number + 1,
			PrevBlockHash: prevBlockHash,
			TimeStamp:     timeStamp,
			Difficulty:    difficulty,
			StateRoot:     root,
			Metadata: Metadata{
				NetworkName:   args.Genesis.NetworkName,
				Version:       args.Genesis.Version,
				InceptionYear: args.Genesis.InceptionYear,
				Class:         args.Genesis.Class(),
				Type:          args.Event.BlockType(),
			},
		},
		Event: args.Event,
		Trans: trans,
	}

	return b, nil
}

// POW performs the work to find a nonce that solves the cryptographic POW
// puzzle for the block. Only cancellation of the context stops the search.
func POW(ctx context.Context, b Block, evHandler func(v string, args ...any)) (Block, error) {
	evHandler("database: POW: MINING: started: blk[%d] event[%s]", b.Header.Number, b.Event.Kind)
	defer evHandler("database: POW: MINING: completed: blk[%d]", b.Header.Number)

	// Choose a random starting point for the nonce. After this, the nonce
	// will be incremented by 1 until a solution is found.
	nBig, err := rand.Int(rand.Reader, big.NewInt(math.MaxInt64))
	if err != nil {
		return Block{}, fmt.Errorf("choosing nonce: %w", err)
	}
	b.Header.Nonce = nBig.Uint64()

	var attempts uint64
	for {
		attempts++
		if attempts%1_000_000 == 0 {
			evHandler("database: POW: MINING: attempts[%d]", attempts)
		}

		if attempts%yieldEvery == 0 {
			runtime.Gosched()
		}

		if err := ctx.Err(); err != nil {
			evHandler("database: POW: MINING: CANCELLED: blk[%d]", b.Header.Number)
			return Block{}, err
		}

		hash := b.Hash()
		if !isHashSolved(b.Header.Difficulty, hash) {
			b.Header.Nonce++
			continue
		}

		evHandler("database: POW: MINING: SOLVED: prevBlk[%s]: newBlk[%s]: attempts[%d]", b.Header.PrevBlockHash, hash, attempts)

		return b, nil
	}
}

// Hash returns the unique hash for the Block.
func (b Block) Hash() string {
	if b.Header.Number == 0 {
		return signature.ZeroHash
	}

	// Only the header is hashed. The state root commits the header to the
	// transactions and the event.
	return signature.Hash(b.Header)
}

// ValidateBlock takes a block and validates it to be included into the
// blockchain on top of the parent block.
func (b Block) ValidateBlock(parent Block, evHandler func(v string, args ...any)) error {
	evHandler("database: ValidateBlock: validate: blk[%d]: check: block number is the next number", b.Header.Number)

	nextNumber := parent.Header.Number + 1
	if b.Header.Number != nextNumber {
		return fmt.Errorf("this block is not the next number, got %d, exp %d: %w", b.Header.Number, nextNumber, ErrChainLink)
	}

	evHandler("database: ValidateBlock: validate: blk[%d]: check: parent hash does match parent block", b.Header.Number)

	if b.Header.PrevBlockHash != parent.Hash() {
		return fmt.Errorf("parent block hash doesn't match our known parent, got %s, exp %s: %w", b.Header.PrevBlockHash, parent.Hash(), ErrChainLink)
	}

	evHandler("database: ValidateBlock: validate: blk[%d]: check: block hash has been solved", b.Header.Number)

	hash := b.Hash()
	if !isHashSolved(b.Header.Difficulty, hash) {
		return fmt.Errorf("%s invalid block hash for difficulty %d", hash, b.Header.Difficulty)
	}

	evHandler("database: ValidateBlock: validate: blk[%d]: check: block's timestamp is not before parent block's timestamp", b.Header.Number)

	if b.Header.TimeStamp < parent.Header.TimeStamp {
		return fmt.Errorf("block timestamp is before parent block, parent %d, block %d", parent.Header.TimeStamp, b.Header.TimeStamp)
	}

	evHandler("database: ValidateBlock: validate: blk[%d]: check: state root does match transactions and event", b.Header.Number)

	root, err := stateRoot(b.Trans, b.Event)
	if err != nil {
		return err
	}

	if b.Header.StateRoot != root {
		return fmt.Errorf("state root does not match transactions, got %s, exp %s", root, b.Header.StateRoot)
	}

	evHandler("database: ValidateBlock: validate: blk[%d]: check: transactions are signed", b.Header.Number)

	for i, tx := range b.Trans {
		if err := tx.Validate(); err != nil {
			return fmt.Errorf("tx[%d] %s: %w", i, tx, err)
		}
	}

	return nil
}

// clone returns a deep copy of the block.
func (b Block) clone() Block {
	cp := b
	cp.Trans = make([]SignedTx, len(b.Trans))
	for i, tx := range b.Trans {
		tx.PublicKey = append([]byte(nil), tx.PublicKey...)
		tx.Signature = append([]byte(nil), tx.Signature...)
		cp.Trans[i] = tx
	}

	return cp
}

// =============================================================================

// BlockInfo is the exported summary of a block.
type BlockInfo struct {
	Number        uint64   `json:"number"`
	PrevBlockHash string   `json:"prev_block_hash"`
	Hash          string   `json:"hash"`
	TimeStamp     uint64   `json:"timestamp"`
	TransCount    int      `json:"trans_count"`
	Difficulty    uint16   `json:"difficulty"`
	Nonce         uint64   `json:"nonce"`
	StateRoot     string   `json:"state_root"`
	Metadata      Metadata `json:"metadata"`
	Event         Event    `json:"event"`
}

// Info returns the exported summary of the block.
func (b Block) Info() BlockInfo {
	return BlockInfo{
		Number:        b.Header.Number,
		PrevBlockHash: b.Header.PrevBlockHash,
		Hash:          b.Hash(),
		TimeStamp:     b.Header.TimeStamp,
		TransCount:    len(b.Trans),
		Difficulty:    b.Header.Difficulty,
		Nonce:         b.Header.Nonce,
		StateRoot:     b.Header.StateRoot,
		Metadata:      b.Header.Metadata,
		Event:         b.Event,
	}
}

// =============================================================================

// isHashSolved checks the hash to make sure it complies with the POW rules.
// We need to match a difficulty number of leading 0's after the 0x prefix.
func isHashSolved(difficulty uint16, hash string) bool {
	hash = strings.TrimPrefix(hash, "0x")
	if len(hash) != 64 || int(difficulty) > len(hash) {
		return false
	}

	for i := 0; i < int(difficulty); i++ {
		if hash[i] != '0' {
			return false
		}
	}

	return true
}

// leaf is a precomputed hash stored in the state root tree.
type leaf []byte

// Hash implements the merkle Hashable interface.
func (l leaf) Hash() ([]byte, error) {
	return l, nil
}

// Equals implements the merkle Hashable interface.
func (l leaf) Equals(other leaf) bool {
	return string(l) == string(other)
}

// stateRoot computes the merkle root over the transaction hashes followed by
// the hash of the event.
func stateRoot(trans []SignedTx, ev Event) (string, error) {
	leaves := make([]leaf, 0, len(trans)+1)
	for _, tx := range trans {
		h, err := tx.Hash()
		if err != nil {
			return "", err
		}
		leaves = append(leaves, h)
	}

	evHash := sha256.Sum256(ev.leaf())
	leaves = append(leaves, evHash[:])

	tree, err := merkle.NewTree(leaves)
	if err != nil {
		return "", err
	}

	return tree.RootHex(), nil
}
