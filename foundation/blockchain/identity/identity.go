// Package identity generates the fixed length account addresses used by the
// blockchain. Addresses are produced by pushing a counter through an affine
// permutation of the address space, so no two addresses issued by the same
// generator can ever collide.
package identity

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
	"math/bits"
	"strings"
	"sync"
)

// ErrExhausted is returned by Next when every address in the space has
// been issued.
var ErrExhausted = errors.New("address space exhausted")

const (
	// Alphabet is the ordered set of symbols used to encode an address.
	Alphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

	// Length is the number of symbols in a generated address.
	Length = 7

	// Space is the number of distinct addresses, 62^7.
	Space uint64 = 3_521_614_606_208
)

const base = uint64(len(Alphabet))

// =============================================================================

// Address represents an account address on the blockchain.
type Address string

// Valid reports whether the address has the generated length and only uses
// symbols from the alphabet.
func (a Address) Valid() bool {
	if len(a) != Length {
		return false
	}

	for i := 0; i < len(a); i++ {
		if strings.IndexByte(Alphabet, a[i]) < 0 {
			return false
		}
	}

	return true
}

// String implements the fmt.Stringer interface.
func (a Address) String() string {
	return string(a)
}

// =============================================================================

// Generator issues unique addresses. The zero value is not usable, construct
// one with NewGenerator.
type Generator struct {
	mu       sync.Mutex
	a        uint64
	b        uint64
	counter  uint64
	reserved map[Address]struct{}
}

// NewGenerator constructs a generator with a multiplier and offset drawn from
// a cryptographically secure source.
func NewGenerator() (*Generator, error) {
	var a uint64
	for {
		v, err := randomUint64()
		if err != nil {
			return nil, fmt.Errorf("generating multiplier: %w", err)
		}

		if v%Space != 0 && coprime(v%Space) {
			a = v % Space
			break
		}
	}

	v, err := randomUint64()
	if err != nil {
		return nil, fmt.Errorf("generating offset: %w", err)
	}

	return NewGeneratorFromParams(a, v%Space)
}

// NewGeneratorFromParams constructs a generator with a known multiplier and
// offset. The multiplier must share no factor with the size of the space.
func NewGeneratorFromParams(a uint64, b uint64) (*Generator, error) {
	a %= Space
	if a == 0 || !coprime(a) {
		return nil, fmt.Errorf("multiplier %d is not coprime with %d", a, Space)
	}

	g := Generator{
		a:        a,
		b:        b % Space,
		reserved: make(map[Address]struct{}),
	}

	return &g, nil
}

// Next issues the next address. An address that has been reserved is
// skipped over.
func (g *Generator) Next() (Address, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for {
		if g.counter >= Space {
			return "", ErrExhausted
		}

		addr := Encode(g.permute(g.counter))
		g.counter++

		if _, exists := g.reserved[addr]; exists {
			continue
		}

		return addr, nil
	}
}

// Reserve marks an address so the generator will never issue it.
func (g *Generator) Reserve(addr Address) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.reserved[addr] = struct{}{}
}

// Issued returns the number of counter values consumed so far.
func (g *Generator) Issued() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.counter
}

// Index inverts the permutation and returns the counter value that produced
// the specified address.
func (g *Generator) Index(addr Address) (uint64, error) {
	x, err := Decode(addr)
	if err != nil {
		return 0, err
	}

	space := new(big.Int).SetUint64(Space)
	inv := new(big.Int).ModInverse(new(big.Int).SetUint64(g.a), space)
	if inv == nil {
		return 0, fmt.Errorf("multiplier %d has no inverse", g.a)
	}

	// counter = a^-1 * (x - b) mod space
	diff := new(big.Int).Sub(new(big.Int).SetUint64(x), new(big.Int).SetUint64(g.b))
	diff.Mod(diff, space)
	diff.Mul(diff, inv)
	diff.Mod(diff, space)

	return diff.Uint64(), nil
}

// permute computes (a * counter + b) mod Space without overflowing.
func (g *Generator) permute(counter uint64) uint64 {
	hi, lo := bits.Mul64(g.a, counter)
	_, rem := bits.Div64(hi, lo, Space)

	return (rem + g.b) % Space
}

// =============================================================================

// Encode converts a value in the address space to its fixed length base-62
// representation.
func Encode(x uint64) Address {
	var buf [Length]byte
	for i := Length - 1; i >= 0; i-- {
		buf[i] = Alphabet[x%base]
		x /= base
	}

	return Address(buf[:])
}

// Decode converts an address back to its value in the address space.
func Decode(addr Address) (uint64, error) {
	if !addr.Valid() {
		return 0, fmt.Errorf("invalid address %q", addr)
	}

	var x uint64
	for i := 0; i < len(addr); i++ {
		x = x*base + uint64(strings.IndexByte(Alphabet, addr[i]))
	}

	return x, nil
}

// coprime reports whether v shares no factor with 62^7. The only prime
// factors of the space are 2 and 31.
func coprime(v uint64) bool {
	return v%2 != 0 && v%31 != 0
}

func randomUint64() (uint64, error) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0, err
	}

	return binary.BigEndian.Uint64(buf[:]), nil
}
