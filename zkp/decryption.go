package zkp

import (
	"fmt"
	"math/big"

	"github.com/openballot/engine/elgamal"
	"github.com/openballot/engine/group"
	"github.com/openballot/engine/threshold"
)

// DecryptionProof is a Chaum-Pedersen proof that a trustee's partial
// decryption d_i = c1^{s_i} was computed with the same exponent s_i that
// produced the trustee's published verification point V_i = g^{s_i},
// i.e. log_g(V_i) = log_{c1}(d_i).
type DecryptionProof struct {
	Commitment1 *big.Int // g^w
	Commitment2 *big.Int // c1^w
	Z           *big.Int // w - c*s_i mod q
}

// ProveDecryption builds a DecryptionProof for trustee share holding
// scalar s_i against verification point v (= g^{s_i}) and partial
// decryption d_i (= c1^{s_i}).
func ProveDecryption(params *group.Params, ct *elgamal.Ciphertext, share *threshold.Share) (*DecryptionProof, error) {
	q, p, g := params.Q, params.P, params.G

	w, err := group.RandomScalar(q)
	if err != nil {
		return nil, fmt.Errorf("zkp: failed to sample decryption-proof nonce: %w", err)
	}
	gW := group.PowMod(g, w, p)
	c1W := group.PowMod(ct.C1, w, p)

	d := group.PowMod(ct.C1, share.Value, p)
	c := challenge(params, share.VerificationPoint, d, gW, c1W)

	z := group.SubMod(w, group.MulMod(c, share.Value, q), q)

	return &DecryptionProof{Commitment1: gW, Commitment2: c1W, Z: z}, nil
}

// VerifyDecryption checks a DecryptionProof that partial decryption d was
// derived from the same exponent underlying verification point v, without
// learning the exponent. It recomputes the challenge from (v, d) and the
// prover's commitments, then checks the two verification equations
// g^z * v^c == g^w and c1^z * d^c == c1^w.
func VerifyDecryption(params *group.Params, ct *elgamal.Ciphertext, v *big.Int, d *big.Int, proof *DecryptionProof) bool {
	p, g := params.P, params.G

	c := challenge(params, v, d, proof.Commitment1, proof.Commitment2)

	lhs1 := group.MulMod(group.PowMod(g, proof.Z, p), group.PowMod(v, c, p), p)
	if lhs1.Cmp(proof.Commitment1) != 0 {
		return false
	}

	lhs2 := group.MulMod(group.PowMod(ct.C1, proof.Z, p), group.PowMod(d, c, p), p)
	return lhs2.Cmp(proof.Commitment2) == 0
}
