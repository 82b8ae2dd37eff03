package eligibility

import "crypto/rand"

// ReferenceProof constructs a structurally valid proof for
// ReferenceVerifier's checks: expectedPoints*32 random bytes (standing in
// for the Groth16 proof points a real prover would emit) followed by the
// binding tag over the declared public inputs.
//
// This is a stand-in for the client-side prover, which lives outside the
// engine; it exists only so cmd/electionctl's demo command and the tests
// can exercise the full submission pipeline without a real circuit
// prover.
func ReferenceProof(expectedPoints int, merkleRoot, electionID, nullifier []byte) ([]byte, error) {
	points := make([]byte, expectedPoints*groth16ProofPointLen)
	if _, err := rand.Read(points); err != nil {
		return nil, err
	}
	return append(points, bindingTag(merkleRoot, electionID, nullifier)...), nil
}
