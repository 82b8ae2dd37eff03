package threshold

import (
	"math/big"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/openballot/engine/elgamal"
	"github.com/openballot/engine/group"
)

func TestGenerateThresholdKeysSharesVerify(t *testing.T) {
	c := qt.New(t)
	params := group.DefaultParams()
	res, err := GenerateThresholdKeys(params, 3, 5)
	c.Assert(err, qt.IsNil)
	c.Assert(len(res.Shares), qt.Equals, 5)

	for _, sh := range res.Shares {
		c.Assert(VerifyShare(params, sh, res.Commitments), qt.IsTrue)
	}
}

func TestThresholdDecryptWithExactK(t *testing.T) {
	c := qt.New(t)
	params := group.DefaultParams()
	res, err := GenerateThresholdKeys(params, 3, 5)
	c.Assert(err, qt.IsNil)

	ct, _, err := elgamal.Encrypt(res.PublicKey, big.NewInt(7), 10)
	c.Assert(err, qt.IsNil)

	// Use exactly k=3 participants, e.g. trustees 1, 3, 5.
	chosen := []*Share{res.Shares[0], res.Shares[2], res.Shares[4]}
	partials := make([]*PartialDecryption, len(chosen))
	for i, sh := range chosen {
		partials[i] = ComputePartialDecryption(params, sh, ct)
	}

	got, err := CombinePartialDecryptions(params, ct, partials, 10)
	c.Assert(err, qt.IsNil)
	c.Assert(got.Int64(), qt.Equals, int64(7))
}

func TestThresholdDecryptAnyKSubsetAgrees(t *testing.T) {
	c := qt.New(t)
	params := group.DefaultParams()
	res, err := GenerateThresholdKeys(params, 3, 5)
	c.Assert(err, qt.IsNil)

	ct, _, err := elgamal.Encrypt(res.PublicKey, big.NewInt(4), 10)
	c.Assert(err, qt.IsNil)

	subsets := [][]int{{0, 1, 2}, {1, 2, 3}, {0, 2, 4}}
	for _, subset := range subsets {
		partials := make([]*PartialDecryption, len(subset))
		for i, idx := range subset {
			partials[i] = ComputePartialDecryption(params, res.Shares[idx], ct)
		}
		got, err := CombinePartialDecryptions(params, ct, partials, 10)
		c.Assert(err, qt.IsNil)
		c.Assert(got.Int64(), qt.Equals, int64(4))
	}
}

func TestVerifyShareRejectsTamperedValue(t *testing.T) {
	c := qt.New(t)
	params := group.DefaultParams()
	res, err := GenerateThresholdKeys(params, 2, 4)
	c.Assert(err, qt.IsNil)

	tampered := &Share{
		Index:             res.Shares[0].Index,
		Value:             new(big.Int).Add(res.Shares[0].Value, big.NewInt(1)),
		VerificationPoint: res.Shares[0].VerificationPoint,
	}
	c.Assert(VerifyShare(params, tampered, res.Commitments), qt.IsFalse)
}

func TestInvalidThresholdRejected(t *testing.T) {
	c := qt.New(t)
	params := group.DefaultParams()
	_, err := GenerateThresholdKeys(params, 5, 3)
	c.Assert(err, qt.IsNotNil)
}
