// Package elgamal implements the CGS (Cramer-Gennaro-Schoenmakers) variant
// of exponential ElGamal used for ballot encryption: additively homomorphic
// under the group operation, with plaintexts encoded as g^m so that sums of
// ciphertexts decrypt to sums of small integers. Plaintext recovery is a
// bounded baby-step giant-step discrete-log search, which is acceptable
// because per-candidate tallies are bounded by electorate size.
package elgamal

import (
	"fmt"
	"math"
	"math/big"

	"github.com/openballot/engine/group"
)

// PublicKey is the (p, q, g, h) tuple with h = g^x mod p. Immutable
// once generated; safe to share across goroutines.
type PublicKey struct {
	Params *group.Params
	H      *big.Int // h = g^x mod p
}

// PrivateKey is the secret exponent x. In production this only exists
// transiently during key generation; afterwards only Shamir shares persist
// (see the threshold package).
type PrivateKey struct {
	X *big.Int
}

// Zeroize overwrites the private scalar in place. Callers that hold a
// PrivateKey only for the duration of a keygen ceremony should call this
// once shares have been derived.
func (sk *PrivateKey) Zeroize() {
	if sk == nil || sk.X == nil {
		return
	}
	sk.X.SetInt64(0)
}

// Ciphertext is an exponential-ElGamal pair (c1, c2) = (g^r, h^r * g^m).
type Ciphertext struct {
	C1 *big.Int
	C2 *big.Int
}

// ErrDlogOutOfRange is returned when the bounded discrete-log search fails
// to recover a plaintext within [0, maxMessage].
var ErrDlogOutOfRange = fmt.Errorf("elgamal: discrete logarithm out of range")

// ErrInvalidPlaintext is returned by Encrypt when m is negative or exceeds
// the caller's plaintext ceiling.
var ErrInvalidPlaintext = fmt.Errorf("elgamal: invalid plaintext")

// GenerateKey samples a new keypair: x <- U[2, q-1], h = g^x mod p.
func GenerateKey(params *group.Params) (*PublicKey, *PrivateKey, error) {
	x, err := group.RandomScalar(params.Q)
	if err != nil {
		return nil, nil, fmt.Errorf("elgamal: keygen failed: %w", err)
	}
	h := group.PowMod(params.G, x, params.P)
	return &PublicKey{Params: params, H: h}, &PrivateKey{X: x}, nil
}

// Encrypt encrypts m under pk using fresh randomness r sampled internally,
// rejecting plaintexts outside [0, maxMessage] — the same ceiling Decrypt's
// discrete-log recovery is bounded by. It returns the ciphertext and the
// randomness used (the randomness is needed by the caller to later produce
// a Chaum-Pedersen validity proof).
func Encrypt(pk *PublicKey, m *big.Int, maxMessage uint64) (*Ciphertext, *big.Int, error) {
	r, err := group.RandomScalar(pk.Params.Q)
	if err != nil {
		return nil, nil, fmt.Errorf("elgamal: failed to sample randomness: %w", err)
	}
	ct, err := EncryptWithR(pk, m, r, maxMessage)
	if err != nil {
		return nil, nil, err
	}
	return ct, r, nil
}

// EncryptWithR encrypts m under pk using the caller-supplied randomness r,
// rejecting plaintexts outside [0, maxMessage]. Used both for normal
// encryption and for re-deriving a ciphertext to validate a prover's
// claimed (m, r) pair in tests.
func EncryptWithR(pk *PublicKey, m, r *big.Int, maxMessage uint64) (*Ciphertext, error) {
	if m.Sign() < 0 || m.Cmp(new(big.Int).SetUint64(maxMessage)) > 0 {
		return nil, ErrInvalidPlaintext
	}
	p := pk.Params.P
	c1 := group.PowMod(pk.Params.G, r, p)
	hr := group.PowMod(pk.H, r, p)
	gm := group.PowMod(pk.Params.G, m, p)
	c2 := group.MulMod(hr, gm, p)
	return &Ciphertext{C1: c1, C2: c2}, nil
}

// Add computes the homomorphic sum of two ciphertexts: component-wise
// product modulo p, which under exponential ElGamal encrypts m1+m2.
func Add(params *group.Params, a, b *Ciphertext) *Ciphertext {
	return &Ciphertext{
		C1: group.MulMod(a.C1, b.C1, params.P),
		C2: group.MulMod(a.C2, b.C2, params.P),
	}
}

// Identity returns the ciphertext encrypting 0 with r=0, the neutral
// element for Add: (1, 1).
func Identity() *Ciphertext {
	return &Ciphertext{C1: big.NewInt(1), C2: big.NewInt(1)}
}

// Decrypt recovers the plaintext m from ct using the full private key,
// bounding the discrete-log search at maxMessage.
func Decrypt(pk *PublicKey, sk *PrivateKey, ct *Ciphertext, maxMessage uint64) (*big.Int, error) {
	p := pk.Params.P
	u := group.PowMod(ct.C1, sk.X, p)
	uInv, err := group.Inverse(u, p)
	if err != nil {
		return nil, fmt.Errorf("elgamal: decrypt failed: %w", err)
	}
	gm := group.MulMod(ct.C2, uInv, p)
	return Dlog(pk.Params, gm, maxMessage)
}

// Dlog solves g^m = target for m in [0, maxMessage] using baby-step
// giant-step.
func Dlog(params *group.Params, target *big.Int, maxMessage uint64) (*big.Int, error) {
	p := params.P
	mSqrt := uint64(math.Sqrt(float64(maxMessage))) + 1

	babySteps := make(map[string]uint64, mSqrt)
	step := big.NewInt(1)
	for j := uint64(0); j < mSqrt; j++ {
		babySteps[step.String()] = j
		step = group.MulMod(step, params.G, p)
	}

	// giantFactor = (g^mSqrt)^-1 mod p
	gToMSqrt := group.PowMod(params.G, new(big.Int).SetUint64(mSqrt), p)
	giantFactor, err := group.Inverse(gToMSqrt, p)
	if err != nil {
		return nil, fmt.Errorf("elgamal: dlog setup failed: %w", err)
	}

	giant := new(big.Int).Set(target)
	for i := uint64(0); i <= mSqrt; i++ {
		if j, found := babySteps[giant.String()]; found {
			x := new(big.Int).SetUint64(i*mSqrt + j)
			if x.Cmp(new(big.Int).SetUint64(maxMessage)) <= 0 {
				return x, nil
			}
		}
		giant = group.MulMod(giant, giantFactor, p)
	}
	return nil, ErrDlogOutOfRange
}

// Marshal serializes the ciphertext as c1 || c2, big-endian, fixed-width.
func (ct *Ciphertext) Marshal(params *group.Params) []byte {
	out := make([]byte, 0, 2*params.ByteLen())
	out = append(out, params.FixedBytes(ct.C1)...)
	out = append(out, params.FixedBytes(ct.C2)...)
	return out
}

// Unmarshal parses a ciphertext serialized by Marshal.
func Unmarshal(params *group.Params, data []byte) (*Ciphertext, error) {
	n := params.ByteLen()
	if len(data) != 2*n {
		return nil, fmt.Errorf("elgamal: invalid ciphertext length: got %d, want %d", len(data), 2*n)
	}
	return &Ciphertext{
		C1: new(big.Int).SetBytes(data[:n]),
		C2: new(big.Int).SetBytes(data[n:]),
	}, nil
}

// MarshalPublicKey serializes (p, q, g, h), big-endian fixed-width.
func MarshalPublicKey(pk *PublicKey) []byte {
	gp := pk.Params
	out := make([]byte, 0, 4*gp.ByteLen())
	out = append(out, gp.FixedBytes(gp.P)...)
	out = append(out, gp.FixedBytes(gp.Q)...)
	out = append(out, gp.FixedBytes(gp.G)...)
	out = append(out, gp.FixedBytes(pk.H)...)
	return out
}

// UnmarshalPublicKey parses a public key serialized by MarshalPublicKey.
func UnmarshalPublicKey(data []byte) (*PublicKey, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("elgamal: invalid public key encoding")
	}
	n := len(data) / 4
	p := new(big.Int).SetBytes(data[0*n : 1*n])
	q := new(big.Int).SetBytes(data[1*n : 2*n])
	g := new(big.Int).SetBytes(data[2*n : 3*n])
	h := new(big.Int).SetBytes(data[3*n : 4*n])
	return &PublicKey{Params: &group.Params{P: p, Q: q, G: g}, H: h}, nil
}
