package merkle_test

import (
	"crypto/md5"
	"crypto/sha256"
	"fmt"
	"testing"

	"github.com/zuxlabs/ammledger/foundation/blockchain/merkle"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

// Data represents a value stored in the tree.
type Data struct {
	x string
}

// Hash hashes the value using sha256.
func (d Data) Hash() ([]byte, error) {
	h := sha256.Sum256([]byte(d.x))
	return h[:], nil
}

// Equals tests for equality of two pieces of data.
func (d Data) Equals(other Data) bool {
	return d.x == other.x
}

func values(n int) []Data {
	data := make([]Data, n)
	for i := range data {
		data[i] = Data{x: fmt.Sprintf("tx-%d", i)}
	}

	return data
}

// =============================================================================

func Test_Root(t *testing.T) {
	t.Log("Given the need to compute a stable root.")
	{
		t.Logf("\tTest 0:\tWhen building a tree from a single value.")
		{
			tree, err := merkle.NewTree(values(1))
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to build the tree: %v", failed, err)
			}

			h := sha256.Sum256([]byte("tx-0"))
			exp := sha256.Sum256(append(h[:], h[:]...))
			if tree.RootHex() != fmt.Sprintf("0x%x", exp[:]) {
				t.Logf("\t%s\tTest 0:\tgot: %s", failed, tree.RootHex())
				t.Logf("\t%s\tTest 0:\texp: 0x%x", failed, exp[:])
				t.Fatalf("\t%s\tTest 0:\tShould hash the leaf with its duplicate.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould hash the leaf with its duplicate.", success)

			if n := len(tree.Values()); n != 1 {
				t.Fatalf("\t%s\tTest 0:\tShould hide the duplicate leaf, got %d values.", failed, n)
			}
			t.Logf("\t%s\tTest 0:\tShould hide the duplicate leaf.", success)
		}

		t.Logf("\tTest 1:\tWhen building the same tree twice.")
		{
			a, err := merkle.NewTree(values(7))
			if err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould be able to build the tree: %v", failed, err)
			}

			b, err := merkle.NewTree(values(7))
			if err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould be able to build the tree: %v", failed, err)
			}

			if a.RootHex() != b.RootHex() {
				t.Fatalf("\t%s\tTest 1:\tShould produce the same root.", failed)
			}
			t.Logf("\t%s\tTest 1:\tShould produce the same root.", success)

			c, err := merkle.NewTree(values(7), merkle.WithHashStrategy[Data](md5.New))
			if err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould be able to build the md5 tree: %v", failed, err)
			}

			if len(c.MerkleRoot) != md5.Size || a.RootHex() == c.RootHex() {
				t.Fatalf("\t%s\tTest 1:\tShould use the md5 strategy for the interior nodes.", failed)
			}
			t.Logf("\t%s\tTest 1:\tShould use the md5 strategy for the interior nodes.", success)
		}

		t.Logf("\tTest 2:\tWhen building a tree with no values.")
		{
			if _, err := merkle.NewTree([]Data{}); err == nil {
				t.Fatalf("\t%s\tTest 2:\tShould get an error.", failed)
			}
			t.Logf("\t%s\tTest 2:\tShould get an error.", success)
		}
	}
}

func Test_Proof(t *testing.T) {
	t.Log("Given the need to prove a value belongs to the tree.")
	{
		for _, n := range []int{2, 5, 8, 13} {
			data := values(n)

			tree, err := merkle.NewTree(data)
			if err != nil {
				t.Fatalf("\t%s\tShould be able to build a tree of %d: %v", failed, n, err)
			}

			if err := tree.Verify(); err != nil {
				t.Fatalf("\t%s\tShould verify a tree of %d: %v", failed, n, err)
			}

			for _, d := range data {
				proof, order, err := tree.Proof(d)
				if err != nil {
					t.Fatalf("\t%s\tShould be able to get a proof for %s: %v", failed, d.x, err)
				}

				leaf, _ := d.Hash()
				if !merkle.VerifyProof(leaf, proof, order, tree.MerkleRoot) {
					t.Fatalf("\t%s\tShould be able to verify the proof for %s in a tree of %d.", failed, d.x, n)
				}
			}
			t.Logf("\t%s\tShould verify every proof in a tree of %d.", success, n)
		}
	}
}

func Test_Tamper(t *testing.T) {
	t.Log("Given the need to detect a changed value.")
	{
		tree, err := merkle.NewTree(values(6))
		if err != nil {
			t.Fatalf("\t%s\tShould be able to build the tree: %v", failed, err)
		}

		tree.Leafs[3].Value = Data{x: "forged"}

		if err := tree.Verify(); err == nil {
			t.Fatalf("\t%s\tShould fail verification after a value changes.", failed)
		}
		t.Logf("\t%s\tShould fail verification after a value changes.", success)
	}
}
