package elgamal

import (
	"math/big"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/openballot/engine/group"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	c := qt.New(t)
	params := group.DefaultParams()
	pk, sk, err := GenerateKey(params)
	c.Assert(err, qt.IsNil)

	for m := int64(0); m <= 10; m++ {
		ct, _, err := Encrypt(pk, big.NewInt(m), 10)
		c.Assert(err, qt.IsNil)
		got, err := Decrypt(pk, sk, ct, 10)
		c.Assert(err, qt.IsNil)
		c.Assert(got.Int64(), qt.Equals, m)
	}
}

func TestEncryptWithRIsDeterministic(t *testing.T) {
	c := qt.New(t)
	params := group.DefaultParams()
	pk, _, err := GenerateKey(params)
	c.Assert(err, qt.IsNil)

	r := big.NewInt(5)
	ct1, err := EncryptWithR(pk, big.NewInt(3), r, 10)
	c.Assert(err, qt.IsNil)
	ct2, err := EncryptWithR(pk, big.NewInt(3), r, 10)
	c.Assert(err, qt.IsNil)
	c.Assert(ct1.C1.Cmp(ct2.C1), qt.Equals, 0)
	c.Assert(ct1.C2.Cmp(ct2.C2), qt.Equals, 0)
}

func TestHomomorphicAdd(t *testing.T) {
	c := qt.New(t)
	params := group.DefaultParams()
	pk, sk, err := GenerateKey(params)
	c.Assert(err, qt.IsNil)

	ctA, _, err := Encrypt(pk, big.NewInt(3), 10)
	c.Assert(err, qt.IsNil)
	ctB, _, err := Encrypt(pk, big.NewInt(4), 10)
	c.Assert(err, qt.IsNil)

	sum := Add(params, ctA, ctB)
	got, err := Decrypt(pk, sk, sum, 10)
	c.Assert(err, qt.IsNil)
	c.Assert(got.Int64(), qt.Equals, int64(7))
}

func TestAddIdentityIsNoOp(t *testing.T) {
	c := qt.New(t)
	params := group.DefaultParams()
	pk, sk, err := GenerateKey(params)
	c.Assert(err, qt.IsNil)

	ct, _, err := Encrypt(pk, big.NewInt(6), 10)
	c.Assert(err, qt.IsNil)

	sum := Add(params, ct, Identity())
	got, err := Decrypt(pk, sk, sum, 10)
	c.Assert(err, qt.IsNil)
	c.Assert(got.Int64(), qt.Equals, int64(6))
}

func TestDecryptOutOfRangeFails(t *testing.T) {
	c := qt.New(t)
	params := group.DefaultParams()
	pk, sk, err := GenerateKey(params)
	c.Assert(err, qt.IsNil)

	ct, _, err := Encrypt(pk, big.NewInt(9), 10)
	c.Assert(err, qt.IsNil)
	_, err = Decrypt(pk, sk, ct, 3)
	c.Assert(err, qt.ErrorIs, ErrDlogOutOfRange)
}

func TestEncryptNegativePlaintextRejected(t *testing.T) {
	c := qt.New(t)
	params := group.DefaultParams()
	pk, _, err := GenerateKey(params)
	c.Assert(err, qt.IsNil)

	_, _, err = Encrypt(pk, big.NewInt(-1), 10)
	c.Assert(err, qt.ErrorIs, ErrInvalidPlaintext)
}

func TestEncryptOversizedPlaintextRejected(t *testing.T) {
	c := qt.New(t)
	params := group.DefaultParams()
	pk, _, err := GenerateKey(params)
	c.Assert(err, qt.IsNil)

	_, _, err = Encrypt(pk, big.NewInt(11), 10)
	c.Assert(err, qt.ErrorIs, ErrInvalidPlaintext)

	// The ceiling itself is still encodable.
	_, _, err = Encrypt(pk, big.NewInt(10), 10)
	c.Assert(err, qt.IsNil)
}

func TestCiphertextMarshalRoundTrip(t *testing.T) {
	c := qt.New(t)
	params := group.DefaultParams()
	pk, _, err := GenerateKey(params)
	c.Assert(err, qt.IsNil)

	ct, _, err := Encrypt(pk, big.NewInt(5), 10)
	c.Assert(err, qt.IsNil)

	data := ct.Marshal(params)
	c.Assert(len(data), qt.Equals, 2*params.ByteLen())

	got, err := Unmarshal(params, data)
	c.Assert(err, qt.IsNil)
	c.Assert(got.C1.Cmp(ct.C1), qt.Equals, 0)
	c.Assert(got.C2.Cmp(ct.C2), qt.Equals, 0)
}

func TestPublicKeyMarshalRoundTrip(t *testing.T) {
	c := qt.New(t)
	params := group.DefaultParams()
	pk, _, err := GenerateKey(params)
	c.Assert(err, qt.IsNil)

	data := MarshalPublicKey(pk)
	got, err := UnmarshalPublicKey(data)
	c.Assert(err, qt.IsNil)
	c.Assert(got.H.Cmp(pk.H), qt.Equals, 0)
	c.Assert(got.Params.P.Cmp(pk.Params.P), qt.Equals, 0)
}

func TestDefaultParamsRoundTrip(t *testing.T) {
	c := qt.New(t)
	params := group.DefaultParams()
	pk, sk, err := GenerateKey(params)
	c.Assert(err, qt.IsNil)

	ct, _, err := Encrypt(pk, big.NewInt(42), 1000)
	c.Assert(err, qt.IsNil)
	got, err := Decrypt(pk, sk, ct, 1000)
	c.Assert(err, qt.IsNil)
	c.Assert(got.Int64(), qt.Equals, int64(42))
}
