// Package merkle implements the fixed-depth binary Merkle tree of voter
// eligibility commitments, wrapping github.com/vocdoni/arbo. The tree's
// root is the public eligibility anchor an election publishes before it
// opens; VerifyProof checks a membership proof against that root. The
// eligibility package's ReferenceVerifier does not call it: it checks
// only the shape and binding tag of the client's proof bytes.
package merkle

import (
	"fmt"
	"sync"

	"github.com/vocdoni/arbo"
	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/prefixeddb"
)

// hashFunction is the internal node hash used by the eligibility tree.
var hashFunction = arbo.HashFunctionPoseidon

// ErrCapacityExceeded is returned when an insert would exceed 2^Depth
// leaves.
var ErrCapacityExceeded = fmt.Errorf("merkle: tree capacity exceeded")

// Tree is a fixed-depth, append-style Merkle tree of voter commitments.
// All tree access is serialized by mu.
type Tree struct {
	mu    sync.Mutex
	tree  *arbo.Tree
	depth int
}

// New opens (or creates) a Merkle tree of the given depth backed by the
// given namespace prefix of database. Each election owns one tree.
func New(database db.Database, namespace []byte, depth int) (*Tree, error) {
	t, err := arbo.NewTree(arbo.Config{
		Database:     prefixeddb.NewPrefixedDatabase(database, namespace),
		MaxLevels:    depth,
		HashFunction: hashFunction,
	})
	if err != nil {
		return nil, fmt.Errorf("merkle: failed to open tree: %w", err)
	}
	return &Tree{tree: t, depth: depth}, nil
}

// Insert adds a voter commitment at the given leaf key. Returns
// ErrCapacityExceeded if the tree is already at 2^Depth leaves.
func (t *Tree) Insert(key, commitment []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	n, err := t.tree.GetNLeafs()
	if err != nil {
		return fmt.Errorf("merkle: failed to read leaf count: %w", err)
	}
	if uint64(n) >= uint64(1)<<uint(t.depth) {
		return ErrCapacityExceeded
	}

	if err := t.tree.Add(key, commitment); err != nil {
		return fmt.Errorf("merkle: failed to insert leaf: %w", err)
	}
	return nil
}

// Root returns the tree's current root hash.
func (t *Tree) Root() ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	root, err := t.tree.Root()
	if err != nil {
		return nil, fmt.Errorf("merkle: failed to read root: %w", err)
	}
	return root, nil
}

// Size returns the current number of registered leaves.
func (t *Tree) Size() (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.tree.GetNLeafs()
}

// Proof is a membership proof: the leaf's key/value and the packed
// sibling path up to the anchored root.
type Proof struct {
	Key       []byte
	Value     []byte
	Siblings  []byte
	Existence bool
}

// GenProof generates a Proof for the given leaf key.
func (t *Tree) GenProof(key []byte) (*Proof, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	k, v, siblings, existence, err := t.tree.GenProof(key)
	if err != nil {
		return nil, fmt.Errorf("merkle: failed to generate proof: %w", err)
	}
	return &Proof{Key: k, Value: v, Siblings: siblings, Existence: existence}, nil
}

// VerifyProof checks a Proof against an anchored root, independent of any
// live tree instance.
func VerifyProof(root []byte, proof *Proof) bool {
	valid, err := arbo.CheckProof(hashFunction, proof.Key, proof.Value, root, proof.Siblings)
	if err != nil {
		return false
	}
	return valid
}
