package database

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/zuxlabs/ammledger/foundation/blockchain/identity"
	"github.com/zuxlabs/ammledger/foundation/blockchain/signature"
)

// ErrInvalidAmount is returned when an amount is not a finite positive number.
var ErrInvalidAmount = errors.New("invalid amount")

// payloadVersion prefixes the canonical encoding so a future change of
// layout can never verify against an old signature.
const payloadVersion = "zux-tx-v1"

// =============================================================================

// Tx is the transactional information between two parties.
type Tx struct {
	From      identity.Address `json:"from"`      // Account sending the funds.
	To        identity.Address `json:"to"`        // Account receiving the funds.
	Currency  Currency         `json:"currency"`  // Currency being moved.
	Amount    float64          `json:"amount"`    // Amount being moved.
	TimeStamp uint64           `json:"timestamp"` // Unix milliseconds the transaction was created.
}

// NewTx constructs a new transaction.
func NewTx(from identity.Address, to identity.Address, currency Currency, amount float64, timeStamp uint64) (Tx, error) {
	if err := checkAmount(amount); err != nil {
		return Tx{}, err
	}

	if _, err := ToCurrency(string(currency)); err != nil {
		return Tx{}, err
	}

	tx := Tx{
		From:      from,
		To:        to,
		Currency:  currency,
		Amount:    amount,
		TimeStamp: timeStamp,
	}

	return tx, nil
}

// CreateTx constructs and signs a transaction from the account.
func CreateTx(from Account, to identity.Address, currency Currency, amount float64) (SignedTx, error) {
	tx, err := NewTx(from.Address, to, currency, amount, uint64(time.Now().UTC().UnixMilli()))
	if err != nil {
		return SignedTx{}, err
	}

	return from.SignTx(tx)
}

// Payload returns the canonical encoding of the transaction that is signed.
// Every variable length field is length prefixed so moving bytes between
// fields always changes the payload.
func (tx Tx) Payload() []byte {
	var buf bytes.Buffer

	writeField := func(s string) {
		var n [4]byte
		binary.BigEndian.PutUint32(n[:], uint32(len(s)))
		buf.Write(n[:])
		buf.WriteString(s)
	}

	writeUint := func(v uint64) {
		var n [8]byte
		binary.BigEndian.PutUint64(n[:], v)
		buf.Write(n[:])
	}

	writeField(payloadVersion)
	writeField(string(tx.From))
	writeField(string(tx.To))
	writeField(string(tx.Currency))
	writeUint(math.Float64bits(tx.Amount))
	writeUint(tx.TimeStamp)

	return buf.Bytes()
}

// =============================================================================

// SignedTx is a signed version of the transaction.
type SignedTx struct {
	Tx
	PublicKey hexutil.Bytes `json:"public_key"` // Ed25519 key of the sender.
	Signature hexutil.Bytes `json:"signature"`  // Ed25519 signature over the payload.
}

// Validate verifies the transaction has a positive amount and a signature
// produced by the embedded public key over the exact payload. Balances are
// not looked at.
func (tx SignedTx) Validate() error {
	if err := checkAmount(tx.Amount); err != nil {
		return err
	}

	if err := signature.Verify(tx.Payload(), tx.PublicKey, tx.Signature); err != nil {
		return err
	}

	return nil
}

// ID returns the hex encoded hash of the signed transaction.
func (tx SignedTx) ID() string {
	return signature.Hash(tx)
}

// Hash implements the merkle Hashable interface for providing a hash
// of a signed transaction.
func (tx SignedTx) Hash() ([]byte, error) {
	return hexutil.Decode(signature.Hash(tx))
}

// Equals implements the merkle Hashable interface for providing an equality
// check between two transactions. Transactions with the same signature are
// the same.
func (tx SignedTx) Equals(otherTx SignedTx) bool {
	return bytes.Equal(tx.Signature, otherTx.Signature)
}

// String implements the fmt.Stringer interface for logging.
func (tx SignedTx) String() string {
	return fmt.Sprintf("%s->%s:%.9f %s", tx.From, tx.To, tx.Amount, tx.Currency)
}

// =============================================================================

func checkAmount(amount float64) error {
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount <= 0 {
		return fmt.Errorf("amount %v: %w", amount, ErrInvalidAmount)
	}

	return nil
}
