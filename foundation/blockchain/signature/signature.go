// Package signature provides helper functions for handling the blockchain
// signature and hashing needs.
package signature

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// Set of error variables for signature verification.
var (
	ErrBadPublicKey = errors.New("bad public key")
	ErrBadSignature = errors.New("bad signature")
)

// ZeroHash represents a hash code of zeros.
const ZeroHash string = "0x0000000000000000000000000000000000000000000000000000000000000000"

// zuxStamp is prepended to every payload before signing. This makes it clear
// the signature was produced for the ZUX ledger and cannot be replayed as a
// signature over some other message.
const zuxStamp = "\x19Zux Signed Message:\n32"

// =============================================================================

// Hash returns a unique string for the value.
func Hash(value any) string {
	data, err := json.Marshal(value)
	if err != nil {
		return ZeroHash
	}

	hash := sha256.Sum256(data)
	return hexutil.Encode(hash[:])
}

// GenerateKey produces a new Ed25519 key pair from a secure random source.
func GenerateKey() (ed25519.PublicKey, ed25519.PrivateKey, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("generating key: %w", err)
	}

	return pub, priv, nil
}

// Sign uses the specified private key to sign the payload.
func Sign(payload []byte, privateKey ed25519.PrivateKey) ([]byte, error) {
	if len(privateKey) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("private key length %d", len(privateKey))
	}

	return ed25519.Sign(privateKey, stamp(payload)), nil
}

// Verify checks the signature was produced for the payload by the owner of
// the public key.
func Verify(payload []byte, publicKey []byte, sig []byte) error {
	if len(publicKey) != ed25519.PublicKeySize {
		return fmt.Errorf("public key length %d: %w", len(publicKey), ErrBadPublicKey)
	}

	if len(sig) != ed25519.SignatureSize {
		return fmt.Errorf("signature length %d: %w", len(sig), ErrBadSignature)
	}

	if !ed25519.Verify(ed25519.PublicKey(publicKey), stamp(payload), sig) {
		return ErrBadSignature
	}

	return nil
}

// =============================================================================

// stamp returns a hash of 32 bytes that represents the payload with the ZUX
// stamp embedded into the final hash.
func stamp(payload []byte) []byte {

	// Hash the payload into a 32 byte array. This will provide a data
	// length consistency with all payloads.
	txHash := crypto.Keccak256(payload)

	// Hash the stamp and txHash together in a final 32 byte array.
	return crypto.Keccak256([]byte(zuxStamp), txHash)
}
