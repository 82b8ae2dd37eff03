package eligibility

import (
	"testing"

	qt "github.com/frankban/quicktest"
)

// buildTestProof constructs proof bytes a well-behaved client prover would
// produce: ExpectedPoints*32 filler bytes (standing in for the Groth16
// curve points, never evaluated by the reference verifier) followed by the
// binding tag over the public inputs.
func buildTestProof(points int, merkleRoot, electionID, nullifier []byte) []byte {
	proof := make([]byte, points*groth16ProofPointLen)
	return append(proof, bindingTag(merkleRoot, electionID, nullifier)...)
}

func TestReferenceVerifierAcceptsWellFormedProof(t *testing.T) {
	c := qt.New(t)
	v := NewReferenceVerifier()

	root := []byte("merkle-root")
	election := []byte("election-1")
	nullifier := []byte("nullifier-x")

	bundle := &Bundle{
		Proof:      buildTestProof(v.ExpectedPoints, root, election, nullifier),
		MerkleRoot: root,
		ElectionID: election,
		Nullifier:  nullifier,
	}
	c.Assert(v.Verify(bundle), qt.IsNil)
}

func TestReferenceVerifierRejectsWrongBinding(t *testing.T) {
	c := qt.New(t)
	v := NewReferenceVerifier()

	root := []byte("merkle-root")
	election := []byte("election-1")
	nullifier := []byte("nullifier-x")

	bundle := &Bundle{
		Proof:      buildTestProof(v.ExpectedPoints, root, election, []byte("different-nullifier")),
		MerkleRoot: root,
		ElectionID: election,
		Nullifier:  nullifier,
	}
	c.Assert(v.Verify(bundle), qt.ErrorIs, ErrInvalidEligibilityProof)
}

func TestReferenceVerifierRejectsMalformedLength(t *testing.T) {
	c := qt.New(t)
	v := NewReferenceVerifier()

	bundle := &Bundle{
		Proof:      []byte{1, 2, 3},
		MerkleRoot: []byte("r"),
		ElectionID: []byte("e"),
		Nullifier:  []byte("n"),
	}
	c.Assert(v.Verify(bundle), qt.ErrorIs, ErrMalformedProof)
}

func TestReferenceVerifierRejectsEmptyProof(t *testing.T) {
	c := qt.New(t)
	v := NewReferenceVerifier()
	c.Assert(v.Verify(&Bundle{Proof: nil}), qt.ErrorIs, ErrMalformedProof)
}
