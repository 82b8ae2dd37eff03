package zkp

import (
	"math/big"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/openballot/engine/elgamal"
	"github.com/openballot/engine/group"
	"github.com/openballot/engine/threshold"
)

func TestBinaryProofAcceptsZeroAndOne(t *testing.T) {
	c := qt.New(t)
	params := group.DefaultParams()
	pk, _, err := elgamal.GenerateKey(params)
	c.Assert(err, qt.IsNil)

	for _, bit := range []int{0, 1} {
		ct, r, err := elgamal.Encrypt(pk, big.NewInt(int64(bit)), 1)
		c.Assert(err, qt.IsNil)

		proof, err := ProveBinary(pk, ct, bit, r)
		c.Assert(err, qt.IsNil)
		c.Assert(VerifyBinary(pk, ct, proof), qt.IsTrue)
	}
}

func TestBinaryProofRejectsNonBitPlaintext(t *testing.T) {
	c := qt.New(t)
	params := group.DefaultParams()
	pk, _, err := elgamal.GenerateKey(params)
	c.Assert(err, qt.IsNil)

	r, err := group.RandomScalar(params.Q)
	c.Assert(err, qt.IsNil)
	ct, err := elgamal.EncryptWithR(pk, big.NewInt(2), r, 10)
	c.Assert(err, qt.IsNil)

	// Build a (necessarily dishonest) proof claiming bit=0 for a
	// ciphertext that actually encrypts 2; verification must fail.
	proof, err := ProveBinary(pk, ct, 0, r)
	c.Assert(err, qt.IsNil)
	c.Assert(VerifyBinary(pk, ct, proof), qt.IsFalse)
}

func TestProveBinaryRejectsInvalidBit(t *testing.T) {
	c := qt.New(t)
	params := group.DefaultParams()
	pk, _, err := elgamal.GenerateKey(params)
	c.Assert(err, qt.IsNil)

	ct, r, err := elgamal.Encrypt(pk, big.NewInt(1), 1)
	c.Assert(err, qt.IsNil)

	_, err = ProveBinary(pk, ct, 7, r)
	c.Assert(err, qt.ErrorIs, ErrInvalidBit)
}

func TestBinaryProofTamperedResponseRejected(t *testing.T) {
	c := qt.New(t)
	params := group.DefaultParams()
	pk, _, err := elgamal.GenerateKey(params)
	c.Assert(err, qt.IsNil)

	ct, r, err := elgamal.Encrypt(pk, big.NewInt(1), 1)
	c.Assert(err, qt.IsNil)

	proof, err := ProveBinary(pk, ct, 1, r)
	c.Assert(err, qt.IsNil)
	proof.Z1 = group.AddMod(proof.Z1, big.NewInt(1), params.Q)
	c.Assert(VerifyBinary(pk, ct, proof), qt.IsFalse)
}

func TestDecryptionProofRoundTrip(t *testing.T) {
	c := qt.New(t)
	params := group.DefaultParams()
	res, err := threshold.GenerateThresholdKeys(params, 2, 3)
	c.Assert(err, qt.IsNil)

	ct, _, err := elgamal.Encrypt(res.PublicKey, big.NewInt(5), 10)
	c.Assert(err, qt.IsNil)

	share := res.Shares[0]
	proof, err := ProveDecryption(params, ct, share)
	c.Assert(err, qt.IsNil)

	d := group.PowMod(ct.C1, share.Value, params.P)
	c.Assert(VerifyDecryption(params, ct, share.VerificationPoint, d, proof), qt.IsTrue)
}

func TestDecryptionProofRejectsWrongD(t *testing.T) {
	c := qt.New(t)
	params := group.DefaultParams()
	res, err := threshold.GenerateThresholdKeys(params, 2, 3)
	c.Assert(err, qt.IsNil)

	ct, _, err := elgamal.Encrypt(res.PublicKey, big.NewInt(5), 10)
	c.Assert(err, qt.IsNil)

	share := res.Shares[0]
	proof, err := ProveDecryption(params, ct, share)
	c.Assert(err, qt.IsNil)

	wrongD := group.PowMod(ct.C1, res.Shares[1].Value, params.P)
	c.Assert(VerifyDecryption(params, ct, share.VerificationPoint, wrongD, proof), qt.IsFalse)
}
