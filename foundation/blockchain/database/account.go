package database

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/zuxlabs/ammledger/foundation/blockchain/agent"
	"github.com/zuxlabs/ammledger/foundation/blockchain/identity"
	"github.com/zuxlabs/ammledger/foundation/blockchain/signature"
	"go.uber.org/zap/zapcore"
)

// Currency represents a token symbol held in an account.
type Currency string

// Set of currencies supported by the ledger.
const (
	ZUX  Currency = "ZUX"
	USDZ Currency = "USDZ"
)

// Currencies lists every supported currency in display order.
var Currencies = []Currency{ZUX, USDZ}

// ToCurrency validates the symbol is a supported currency.
func ToCurrency(symbol string) (Currency, error) {
	for _, c := range Currencies {
		if string(c) == symbol {
			return c, nil
		}
	}

	return "", fmt.Errorf("unsupported currency %q", symbol)
}

// Reserved account addresses. Neither can be produced by the identity
// generator since their length differs from a generated address.
const (
	SystemAddress identity.Address = "SYSTEM"
	PoolAddress   identity.Address = "AMM_POOL_ZUX_USDZ"
)

// ErrNoSigningKey is returned when a copied out account is asked to sign.
var ErrNoSigningKey = errors.New("account holds no signing key")

// =============================================================================

// Account represents information stored in the database for an individual
// account. The private key never leaves the database, copies handed out to
// callers do not carry it.
type Account struct {
	Address      identity.Address
	PublicKey    ed25519.PublicKey
	Balances     map[Currency]float64
	Strategy     *agent.Strategy
	TradeCount   uint64
	LastActivity time.Time

	privateKey ed25519.PrivateKey
}

// NewAccount constructs an account with a fresh key pair and zero balances.
func NewAccount(addr identity.Address) (Account, error) {
	pub, priv, err := signature.GenerateKey()
	if err != nil {
		return Account{}, err
	}

	acct := Account{
		Address:    addr,
		PublicKey:  pub,
		Balances:   make(map[Currency]float64, len(Currencies)),
		privateKey: priv,
	}

	for _, c := range Currencies {
		acct.Balances[c] = 0
	}

	return acct, nil
}

// Balance returns the balance held for the currency.
func (a Account) Balance(c Currency) float64 {
	return a.Balances[c]
}

// SignTx uses the account's private key to sign the transaction.
func (a Account) SignTx(tx Tx) (SignedTx, error) {
	if a.privateKey == nil {
		return SignedTx{}, ErrNoSigningKey
	}

	if tx.From != a.Address {
		return SignedTx{}, fmt.Errorf("account %s cannot sign for %s", a.Address, tx.From)
	}

	sig, err := signature.Sign(tx.Payload(), a.privateKey)
	if err != nil {
		return SignedTx{}, err
	}

	signedTx := SignedTx{
		Tx:        tx,
		PublicKey: hexutil.Bytes(a.PublicKey),
		Signature: sig,
	}

	return signedTx, nil
}

// Info returns a snapshot of the account that is safe to export.
func (a Account) Info() AccountInfo {
	info := AccountInfo{
		Address:      a.Address,
		PublicKey:    hexutil.Bytes(a.PublicKey),
		Balances:     maps.Clone(a.Balances),
		TradeCount:   a.TradeCount,
		LastActivity: a.LastActivity,
	}

	if a.Strategy != nil {
		info.Tier = a.Strategy.Tier.String()
	}

	return info
}

// MarshalLogObject implements the zapcore.ObjectMarshaler interface so an
// account can be logged without exposing key material.
func (a Account) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("address", string(a.Address))
	for _, c := range Currencies {
		enc.AddFloat64(string(c), a.Balances[c])
	}
	if a.Strategy != nil {
		enc.AddString("tier", a.Strategy.Tier.String())
	}
	enc.AddUint64("trades", a.TradeCount)

	return nil
}

// copyOut returns a deep copy of the account without the private key.
func (a Account) copyOut() Account {
	cp := a
	cp.privateKey = nil
	cp.PublicKey = append(ed25519.PublicKey(nil), a.PublicKey...)
	cp.Balances = maps.Clone(a.Balances)

	if a.Strategy != nil {
		s := *a.Strategy
		cp.Strategy = &s
	}

	return cp
}

// =============================================================================

// AccountInfo is the exported view of an account.
type AccountInfo struct {
	Address      identity.Address     `json:"address"`
	PublicKey    hexutil.Bytes        `json:"public_key"`
	Balances     map[Currency]float64 `json:"balances"`
	Tier         string               `json:"tier,omitempty"`
	TradeCount   uint64               `json:"trade_count"`
	LastActivity time.Time            `json:"last_activity"`
}

// =============================================================================

// byAccount provides sorting support by the account address.
type byAccount []Account

// Len returns the number of accounts in the list.
func (ba byAccount) Len() int {
	return len(ba)
}

// Less helps to sort the list by address in ascending order.
func (ba byAccount) Less(i, j int) bool {
	return ba[i].Address < ba[j].Address
}

// Swap moves accounts in the order of the address value.
func (ba byAccount) Swap(i, j int) {
	ba[i], ba[j] = ba[j], ba[i]
}
