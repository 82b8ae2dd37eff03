// Package group implements the arbitrary-precision modular arithmetic that
// the rest of the cryptographic core is built on: a fixed multiplicative
// subgroup of Z_p^* of prime order q, with a published generator g.
package group

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// Params are the deployment-wide group parameters (p, q, g). They are
// process-wide immutable state, initialized once at startup (see the
// config package) and never mutated afterwards.
type Params struct {
	P *big.Int // 2048-bit safe prime
	Q *big.Int // (P-1)/2, the prime order of the subgroup
	G *big.Int // generator of the order-Q subgroup
}

// rfc3526Group14Hex is the 2048-bit MODP group 14 prime from RFC 3526.
const rfc3526Group14Hex = "" +
	"FFFFFFFFFFFFFFFFC90FDAA22168C234C4C6628B80DC1CD1" +
	"29024E088A67CC74020BBEA63B139B22514A08798E3404DD" +
	"EF9519B3CD3A431B302B0A6DF25F14374FE1356D6D51C245" +
	"E485B576625E7EC6F44C42E9A637ED6B0BFF5CB6F406B7ED" +
	"EE386BFB5A899FA5AE9F24117C4B1FE649286651ECE45B3D" +
	"C2007CB8A163BF0598DA48361C55D39A69163FA8FD24CF5F" +
	"83655D23DCA3AD961C62F356208552BB9ED529077096966D" +
	"670C354E4ABC9804F1746C08CA18217C32905E462E36CE3B" +
	"E39E772C180E86039B2783A2EC07A28FB5C55DF06F4C52C9" +
	"DE2BCBF6955817183995497CEA956AE515D2261898FA0510" +
	"15728E5A8AACAA68FFFFFFFFFFFFFFFF"

// DefaultParams returns the deployment default group: RFC 3526 MODP group
// 14 (2048-bit safe prime) with g = 2.
func DefaultParams() *Params {
	p, ok := new(big.Int).SetString(rfc3526Group14Hex, 16)
	if !ok {
		panic("group: invalid embedded RFC 3526 prime")
	}
	q := new(big.Int).Rsh(p, 1) // q = (p-1)/2 since p is a safe prime
	return &Params{P: p, Q: q, G: big.NewInt(2)}
}

// ByteLen returns the fixed serialization width (in bytes) of an element
// mod P, i.e. ceil(log256(p)). All canonical serializations (Fiat-Shamir
// transcripts, ledger payloads) pad to this width.
func (gp *Params) ByteLen() int {
	return (gp.P.BitLen() + 7) / 8
}

// RandomScalar samples a uniformly random value in [2, q-1], the range
// used for private keys, encryption randomness, and polynomial
// coefficients.
func RandomScalar(q *big.Int) (*big.Int, error) {
	// span = q - 2, sample in [0, span), then shift by 2.
	span := new(big.Int).Sub(q, big.NewInt(2))
	if span.Sign() <= 0 {
		return nil, fmt.Errorf("group: modulus too small to sample from")
	}
	v, err := rand.Int(rand.Reader, span)
	if err != nil {
		return nil, fmt.Errorf("group: failed to sample random scalar: %w", err)
	}
	return v.Add(v, big.NewInt(2)), nil
}

// PowMod computes base^exp mod m. Go's math/big.Int.Exp already avoids
// short-circuiting on the exponent's bit pattern for fixed-size moduli, so
// it is used directly for all secret-exponent modexps in this package
// rather than a hand-rolled ladder.
func PowMod(base, exp, m *big.Int) *big.Int {
	return new(big.Int).Exp(base, exp, m)
}

// MulMod computes a*b mod m.
func MulMod(a, b, m *big.Int) *big.Int {
	v := new(big.Int).Mul(a, b)
	return v.Mod(v, m)
}

// AddMod computes a+b mod m.
func AddMod(a, b, m *big.Int) *big.Int {
	v := new(big.Int).Add(a, b)
	return v.Mod(v, m)
}

// SubMod computes a-b mod m, always returning a value in [0, m).
func SubMod(a, b, m *big.Int) *big.Int {
	v := new(big.Int).Sub(a, b)
	return v.Mod(v, m)
}

// NegMod computes -a mod m, always returning a value in [0, m).
func NegMod(a, m *big.Int) *big.Int {
	return SubMod(big.NewInt(0), a, m)
}

// Inverse computes the modular inverse of a mod m via the extended
// Euclidean algorithm (math/big's ModInverse). Returns an error if a has no
// inverse mod m.
func Inverse(a, m *big.Int) (*big.Int, error) {
	inv := new(big.Int).ModInverse(a, m)
	if inv == nil {
		return nil, fmt.Errorf("group: modular inverse does not exist for %s mod %s", a.String(), m.String())
	}
	return inv, nil
}

// InSubgroup reports whether v is a nonzero element of [0, p) whose order
// divides q, i.e. v^q mod p == 1. Used to reject malformed ciphertext
// components before they are used in further computation.
func (gp *Params) InSubgroup(v *big.Int) bool {
	if v.Sign() <= 0 || v.Cmp(gp.P) >= 0 {
		return false
	}
	return PowMod(v, gp.Q, gp.P).Cmp(big.NewInt(1)) == 0
}

// FixedBytes serializes v as big-endian bytes padded to the group's fixed
// width.
func (gp *Params) FixedBytes(v *big.Int) []byte {
	out := make([]byte, gp.ByteLen())
	b := v.Bytes()
	if len(b) > len(out) {
		// caller error: value doesn't fit in the group's byte length
		copy(out, b[len(b)-len(out):])
		return out
	}
	copy(out[len(out)-len(b):], b)
	return out
}
