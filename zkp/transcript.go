// Package zkp implements the engine's non-interactive zero-knowledge
// proofs: a disjunctive Chaum-Pedersen proof that a ciphertext encrypts a
// bit, and a Chaum-Pedersen proof of correct (partial) decryption. Both
// are made non-interactive via Fiat-Shamir over SHA-256 on a canonically
// serialized transcript of the public inputs and commitments.
package zkp

import (
	"crypto/sha256"
	"math/big"

	"github.com/openballot/engine/group"
)

// sha256digest accumulates canonically-serialized field elements for a
// Fiat-Shamir challenge hash: big-endian integers, each padded to the
// group's fixed width — the same encoding the ledger payloads and the
// ciphertext/public-key serializations use.
type sha256digest struct {
	buf []byte
}

func newTranscript() *sha256digest {
	return &sha256digest{}
}

func (t *sha256digest) writeInt(params *group.Params, v *big.Int) {
	t.buf = append(t.buf, params.FixedBytes(v)...)
}

func (t *sha256digest) sum() []byte {
	h := sha256.Sum256(t.buf)
	return h[:]
}

// challenge derives c = H(elements...) mod q via the transcript above.
func challenge(params *group.Params, elements ...*big.Int) *big.Int {
	t := newTranscript()
	for _, e := range elements {
		t.writeInt(params, e)
	}
	digest := t.sum()
	c := new(big.Int).SetBytes(digest)
	return c.Mod(c, params.Q)
}

// reduceMod reduces v mod q to a non-negative value; VerifyBinary uses it
// when comparing e0 + e1 against the challenge.
func reduceMod(v, q *big.Int) *big.Int {
	r := new(big.Int).Mod(v, q)
	return r
}
