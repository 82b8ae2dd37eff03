// Package threshold implements (k,n) Shamir secret sharing of an ElGamal
// private key and threshold-combined decryption via Lagrange interpolation
// in the exponent. The master private key exists only inside the keygen
// ceremony; afterwards any k of the n trustee shares can decrypt, and
// fewer than k learn nothing.
package threshold

import (
	"fmt"
	"math/big"

	"github.com/openballot/engine/elgamal"
	"github.com/openballot/engine/group"
)

// Share is one trustee's point on the secret-sharing polynomial, along
// with a public verification point so other parties can check it was
// derived consistently with the published commitments.
type Share struct {
	Index             int      // 1-based trustee index
	Value             *big.Int // f(Index) mod q
	VerificationPoint *big.Int // g^Value mod p
}

// Result bundles everything produced by a (k,n) key generation ceremony:
// the public key, the per-trustee shares, and the polynomial's public
// commitments {g^a_0, ..., g^a_{k-1}} used for Feldman-style verification.
type Result struct {
	PublicKey   *elgamal.PublicKey
	Shares      []*Share
	Commitments []*big.Int // g^a_j mod p, j = 0..k-1; Commitments[0] == pk.H
}

// GenerateThresholdKeys runs a Feldman verifiable-secret-sharing ceremony:
// samples a degree-(k-1) polynomial over Z_q with constant term x (the
// master private key, which is never reconstructed), evaluates it at
// 1..n to produce shares, and publishes g^x and the coefficient
// commitments so each trustee's share can be independently verified
// without revealing x.
func GenerateThresholdKeys(params *group.Params, k, n int) (*Result, error) {
	if k < 1 || n < k {
		return nil, fmt.Errorf("threshold: invalid (k,n): k=%d n=%d", k, n)
	}

	coeffs := make([]*big.Int, k)
	x, err := group.RandomScalar(params.Q)
	if err != nil {
		return nil, fmt.Errorf("threshold: failed to sample master secret: %w", err)
	}
	coeffs[0] = x
	for j := 1; j < k; j++ {
		a, err := group.RandomScalar(params.Q)
		if err != nil {
			return nil, fmt.Errorf("threshold: failed to sample coefficient %d: %w", j, err)
		}
		coeffs[j] = a
	}

	commitments := make([]*big.Int, k)
	for j, a := range coeffs {
		commitments[j] = group.PowMod(params.G, a, params.P)
	}

	shares := make([]*Share, n)
	for i := 1; i <= n; i++ {
		v := evalPoly(coeffs, big.NewInt(int64(i)), params.Q)
		shares[i-1] = &Share{
			Index:             i,
			Value:             v,
			VerificationPoint: group.PowMod(params.G, v, params.P),
		}
	}

	h := commitments[0]
	return &Result{
		PublicKey:   &elgamal.PublicKey{Params: params, H: h},
		Shares:      shares,
		Commitments: commitments,
	}, nil
}

// evalPoly evaluates sum(coeffs[j] * x^j) mod q using Horner's method.
func evalPoly(coeffs []*big.Int, x, q *big.Int) *big.Int {
	acc := new(big.Int).Set(coeffs[len(coeffs)-1])
	for j := len(coeffs) - 2; j >= 0; j-- {
		acc = group.MulMod(acc, x, q)
		acc = group.AddMod(acc, coeffs[j], q)
	}
	return acc
}

// VerifyShare checks a share against the ceremony's public commitments:
// g^share == product(commitments[j]^(index^j)) mod p. Any trustee (or
// observer) can run this without learning any share value.
func VerifyShare(params *group.Params, share *Share, commitments []*big.Int) bool {
	lhs := group.PowMod(params.G, share.Value, params.P)

	rhs := big.NewInt(1)
	idx := big.NewInt(int64(share.Index))
	pow := big.NewInt(1)
	for _, c := range commitments {
		term := group.PowMod(c, pow, params.P)
		rhs = group.MulMod(rhs, term, params.P)
		pow = new(big.Int).Mul(pow, idx)
	}
	return lhs.Cmp(rhs) == 0
}

// PartialDecryption is one trustee's contribution toward a threshold
// decryption: d_i = c1^{share_i} mod p, computed without ever
// reconstructing the master private key.
type PartialDecryption struct {
	Index int
	D     *big.Int
}

// ComputePartialDecryption computes this trustee's partial decryption of
// ciphertext ct's c1 component.
func ComputePartialDecryption(params *group.Params, share *Share, ct *elgamal.Ciphertext) *PartialDecryption {
	return &PartialDecryption{
		Index: share.Index,
		D:     group.PowMod(ct.C1, share.Value, params.P),
	}
}

// LagrangeCoefficients computes the Lagrange basis coefficients
// lambda_i = product_{j != i} (j / (j - i)) mod q for the given set of
// participant indices, evaluated at x=0 to reconstruct the polynomial's
// constant term in the exponent.
func LagrangeCoefficients(q *big.Int, participants []int) (map[int]*big.Int, error) {
	coeffs := make(map[int]*big.Int, len(participants))
	for _, i := range participants {
		num := big.NewInt(1)
		den := big.NewInt(1)
		for _, j := range participants {
			if j == i {
				continue
			}
			num = group.MulMod(num, big.NewInt(int64(j)), q)
			diff := group.SubMod(big.NewInt(int64(j)), big.NewInt(int64(i)), q)
			den = group.MulMod(den, diff, q)
		}
		denInv, err := group.Inverse(den, q)
		if err != nil {
			return nil, fmt.Errorf("threshold: failed to invert Lagrange denominator for index %d: %w", i, err)
		}
		coeffs[i] = group.MulMod(num, denInv, q)
	}
	return coeffs, nil
}

// CombinePartialDecryptions reconstructs g^m from c2 and the trustees'
// partial decryptions via Lagrange interpolation in the exponent:
// prod(d_i^{lambda_i}) = c1^x = h^r, then g^m = c2 / h^r, followed by a
// bounded discrete-log search. The caller is responsible for substituting
// a backup trustee when a submitted partial decryption fails its
// Chaum-Pedersen proof (see the zkp and tally packages).
func CombinePartialDecryptions(params *group.Params, ct *elgamal.Ciphertext, partials []*PartialDecryption, maxMessage uint64) (*big.Int, error) {
	if len(partials) == 0 {
		return nil, fmt.Errorf("threshold: no partial decryptions supplied")
	}
	participants := make([]int, len(partials))
	byIndex := make(map[int]*PartialDecryption, len(partials))
	for i, pd := range partials {
		participants[i] = pd.Index
		byIndex[pd.Index] = pd
	}

	lambdas, err := LagrangeCoefficients(params.Q, participants)
	if err != nil {
		return nil, err
	}

	combined := big.NewInt(1)
	for _, idx := range participants {
		term := group.PowMod(byIndex[idx].D, lambdas[idx], params.P)
		combined = group.MulMod(combined, term, params.P)
	}

	combinedInv, err := group.Inverse(combined, params.P)
	if err != nil {
		return nil, fmt.Errorf("threshold: failed to invert combined decryption factor: %w", err)
	}
	gm := group.MulMod(ct.C2, combinedInv, params.P)
	return elgamal.Dlog(params, gm, maxMessage)
}
