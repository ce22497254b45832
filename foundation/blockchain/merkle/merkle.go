// Package merkle provides a merkle tree used to compute the state root that
// commits a block to its transactions and event.
package merkle

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"hash"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// ErrNoValues is returned when a tree is constructed without any leaves.
var ErrNoValues = errors.New("cannot construct tree with no values")

// Hashable represents the behavior concrete data must exhibit to be used in
// the merkle tree.
type Hashable[T any] interface {
	Hash() ([]byte, error)
	Equals(other T) bool
}

// =============================================================================

// Tree represents a merkle tree over values of some type T.
type Tree[T Hashable[T]] struct {
	Root       *Node[T]
	Leafs      []*Node[T]
	MerkleRoot []byte
	hasher     func() hash.Hash
}

// WithHashStrategy changes the default sha256 hash strategy used when
// combining nodes.
func WithHashStrategy[T Hashable[T]](hasher func() hash.Hash) func(t *Tree[T]) {
	return func(t *Tree[T]) {
		t.hasher = hasher
	}
}

// NewTree constructs a new merkle tree over the specified values.
func NewTree[T Hashable[T]](values []T, options ...func(t *Tree[T])) (*Tree[T], error) {
	t := Tree[T]{
		hasher: sha256.New,
	}

	for _, option := range options {
		option(&t)
	}

	if len(values) == 0 {
		return nil, ErrNoValues
	}

	leafs := make([]*Node[T], 0, len(values)+1)
	for _, value := range values {
		h, err := value.Hash()
		if err != nil {
			return nil, err
		}

		leafs = append(leafs, &Node[T]{Hash: h, Value: value, leaf: true})
	}

	// An odd level is balanced by duplicating its last leaf.
	if len(leafs)%2 == 1 {
		last := leafs[len(leafs)-1]
		leafs = append(leafs, &Node[T]{Hash: last.Hash, Value: last.Value, leaf: true, dup: true})
	}

	root := t.build(leafs)

	t.Root = root
	t.Leafs = leafs
	t.MerkleRoot = root.Hash

	return &t, nil
}

// RootHex converts the merkle root byte hash to a hex encoded string.
func (t *Tree[T]) RootHex() string {
	return hexutil.Encode(t.MerkleRoot)
}

// Values returns the values held by the tree without the balancing duplicate.
func (t *Tree[T]) Values() []T {
	values := make([]T, 0, len(t.Leafs))
	for _, n := range t.Leafs {
		if n.dup {
			continue
		}
		values = append(values, n.Value)
	}

	return values
}

// Proof returns the sibling hashes needed to rebuild the root from the value,
// with order 0 meaning the sibling is concatenated first.
func (t *Tree[T]) Proof(value T) ([][]byte, []int64, error) {
	for _, n := range t.Leafs {
		if !n.Value.Equals(value) {
			continue
		}

		var proof [][]byte
		var order []int64
		for parent := n.parent; parent != nil; n, parent = parent, parent.parent {
			if parent.Left == n {
				proof = append(proof, parent.Right.Hash)
				order = append(order, 1)
				continue
			}

			proof = append(proof, parent.Left.Hash)
			order = append(order, 0)
		}

		return proof, order, nil
	}

	return nil, nil, errors.New("unable to find value in tree")
}

// Verify recomputes every level of the tree from the leaf values and checks
// the result against the stored root.
func (t *Tree[T]) Verify() error {
	h, err := t.Root.verify(t.hasher)
	if err != nil {
		return err
	}

	if !bytes.Equal(h, t.MerkleRoot) {
		return errors.New("merkle root is invalid")
	}

	return nil
}

func (t *Tree[T]) build(level []*Node[T]) *Node[T] {
	for {
		var next []*Node[T]

		for i := 0; i < len(level); i += 2 {
			right := i + 1
			if right == len(level) {
				right = i
			}

			n := Node[T]{
				Left:  level[i],
				Right: level[right],
				Hash:  combine(t.hasher, level[i].Hash, level[right].Hash),
			}

			level[i].parent = &n
			level[right].parent = &n
			next = append(next, &n)
		}

		if len(next) == 1 {
			return next[0]
		}

		level = next
	}
}

// =============================================================================

// Node represents a node, root, or leaf in the tree.
type Node[T Hashable[T]] struct {
	Left   *Node[T]
	Right  *Node[T]
	Hash   []byte
	Value  T
	parent *Node[T]
	leaf   bool
	dup    bool
}

func (n *Node[T]) verify(hasher func() hash.Hash) ([]byte, error) {
	if n.leaf {
		return n.Value.Hash()
	}

	left, err := n.Left.verify(hasher)
	if err != nil {
		return nil, err
	}

	right, err := n.Right.verify(hasher)
	if err != nil {
		return nil, err
	}

	return combine(hasher, left, right), nil
}

// =============================================================================

// VerifyProof rebuilds a root from a leaf hash and its proof and reports
// whether it matches the expected sha256 root.
func VerifyProof(leaf []byte, proof [][]byte, order []int64, root []byte) bool {
	if len(proof) != len(order) {
		return false
	}

	h := leaf
	for i, sibling := range proof {
		if order[i] == 0 {
			h = combine(sha256.New, sibling, h)
			continue
		}
		h = combine(sha256.New, h, sibling)
	}

	return bytes.Equal(h, root)
}

func combine(hasher func() hash.Hash, left []byte, right []byte) []byte {
	h := hasher()
	h.Write(left)
	h.Write(right)
	return h.Sum(nil)
}
