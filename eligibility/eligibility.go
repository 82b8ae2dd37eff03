// Package eligibility verifies the client-supplied eligibility proof
// bundle (pi_elig, N) against its public inputs (merkle_root, election_id,
// N). The engine only ever verifies these proofs; producing them is the
// voting client's job. The Verifier interface admits anything from the
// structural ReferenceVerifier below to a full pairing-based Groth16
// verifier, so deployments can swap the proving system without touching
// the submission pipeline.
package eligibility

import (
	"bytes"
	"fmt"
)

// groth16ProofPointLen is the byte length of a single serialized BN254
// G1 point (32-byte coordinates); used only to shape-check the reference
// proof encoding, never to perform an actual pairing check.
const groth16ProofPointLen = 32

// Bundle is the client-supplied eligibility proof bundle: the opaque
// proof bytes plus the public inputs the engine checks it against.
type Bundle struct {
	Proof      []byte // opaque, prover-produced proof bytes
	MerkleRoot []byte
	ElectionID []byte
	Nullifier  []byte
}

// ErrMalformedProof is returned when a proof bundle fails even the
// structural shape check, independent of whether the proof is valid.
var ErrMalformedProof = fmt.Errorf("eligibility: malformed proof bundle")

// ErrInvalidEligibilityProof is returned when a structurally valid proof
// fails verification against the supplied public inputs.
var ErrInvalidEligibilityProof = fmt.Errorf("eligibility: invalid eligibility proof")

// Verifier checks an eligibility proof bundle against its public inputs.
// Implementations may range from the structural ReferenceVerifier below
// to a full pairing-based Groth16 verifier; the engine depends only on
// this interface, never a concrete proving system.
type Verifier interface {
	Verify(bundle *Bundle) error
}

// ReferenceVerifier accepts any proof bundle whose proof bytes are a
// structurally well-formed Groth16-shaped encoding (exactly ExpectedPoints
// G1 point lengths followed by a binding tag over the declared public
// inputs, as the reference prover produces). It
// does not perform a pairing check; deployments that need full
// soundness substitute a Verifier backed by a real pairing library.
type ReferenceVerifier struct {
	// ExpectedPoints is the number of serialized curve points the
	// reference proof encoding is expected to carry (a Groth16 proof is
	// conventionally 3 points: A, B, C).
	ExpectedPoints int
}

// NewReferenceVerifier returns a ReferenceVerifier configured for a
// standard 3-point Groth16-shaped proof.
func NewReferenceVerifier() *ReferenceVerifier {
	return &ReferenceVerifier{ExpectedPoints: 3}
}

// Verify checks that bundle.Proof is structurally well-formed for the
// configured point count and that its trailing binding tag matches a hash
// of the declared public inputs (merkle_root, election_id, nullifier).
// This catches a proof bundle that was not produced against the inputs it
// claims, without performing pairing arithmetic.
func (v *ReferenceVerifier) Verify(bundle *Bundle) error {
	if bundle == nil || len(bundle.Proof) == 0 {
		return ErrMalformedProof
	}
	pointsLen := v.ExpectedPoints * groth16ProofPointLen
	tagLen := bindingTagLen
	if len(bundle.Proof) != pointsLen+tagLen {
		return ErrMalformedProof
	}

	tag := bundle.Proof[pointsLen:]
	expected := bindingTag(bundle.MerkleRoot, bundle.ElectionID, bundle.Nullifier)
	if !bytes.Equal(tag, expected) {
		return ErrInvalidEligibilityProof
	}
	return nil
}
