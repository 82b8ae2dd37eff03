package verify

import (
	"context"
	"math/big"
	"testing"
	"time"

	gethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/arbo/memdb"

	"github.com/openballot/engine/elgamal"
	"github.com/openballot/engine/group"
	"github.com/openballot/engine/ledger"
	"github.com/openballot/engine/store"
	"github.com/openballot/engine/tally"
	"github.com/openballot/engine/threshold"
)

func castBallot(c *qt.C, params *group.Params, pk *elgamal.PublicKey, lg ledger.Ledger, electionID, nullifier string, candidates, chosen int) gethcommon.Hash {
	var ballot []byte
	for i := 0; i < candidates; i++ {
		bit := int64(0)
		if i == chosen {
			bit = 1
		}
		ct, err := elgamal.EncryptWithR(pk, big.NewInt(bit), big.NewInt(int64(3+i)), 1)
		c.Assert(err, qt.IsNil)
		ballot = append(ballot, ct.Marshal(params)...)
	}
	_, err := lg.CastVote(context.Background(), electionID, ballot, nullifier, gethcommon.Hash{}, gethcommon.Hash{})
	c.Assert(err, qt.IsNil)
	return crypto.Keccak256Hash(ballot)
}

func TestVerifyCastAsIntendedMatchesReceipt(t *testing.T) {
	c := qt.New(t)
	st := store.New(memdb.New())
	lg := ledger.NewInProcess()
	params := group.DefaultParams()
	pk, _, err := elgamal.GenerateKey(params)
	c.Assert(err, qt.IsNil)

	electionID := "e1"
	ciphertextHash := castBallot(c, params, pk, lg, electionID, "n1", 1, 0)

	c.Assert(st.PutReceipt(&store.ReceiptRecord{
		VerificationCode: "CODE1",
		ElectionID:       electionID,
		CiphertextHash:   ciphertextHash[:],
		Nullifier:        "n1",
		CastAt:           time.Now(),
	}), qt.IsNil)

	res, err := VerifyCastAsIntended(context.Background(), st, lg, "CODE1")
	c.Assert(err, qt.IsNil)
	c.Assert(res.Found, qt.IsTrue)
	c.Assert(res.PayloadMatches, qt.IsTrue)
}

func TestVerifyCastAsIntendedUnknownCode(t *testing.T) {
	c := qt.New(t)
	st := store.New(memdb.New())
	lg := ledger.NewInProcess()

	res, err := VerifyCastAsIntended(context.Background(), st, lg, "NOPE")
	c.Assert(err, qt.IsNil)
	c.Assert(res.Found, qt.IsFalse)
}

func TestVerifyRecordedAsCast(t *testing.T) {
	c := qt.New(t)
	lg := ledger.NewInProcess()
	params := group.DefaultParams()
	pk, _, err := elgamal.GenerateKey(params)
	c.Assert(err, qt.IsNil)

	electionID := "e1"
	hash := castBallot(c, params, pk, lg, electionID, "n1", 1, 0)

	res, err := VerifyRecordedAsCast(context.Background(), lg, electionID, hash)
	c.Assert(err, qt.IsNil)
	c.Assert(res.Found, qt.IsTrue)

	absent, err := VerifyRecordedAsCast(context.Background(), lg, electionID, gethcommon.Hash{99})
	c.Assert(err, qt.IsNil)
	c.Assert(absent.Found, qt.IsFalse)
}

func TestVerifyTalliedAsRecordedRecomputesIndependently(t *testing.T) {
	c := qt.New(t)
	params := group.DefaultParams()
	ceremony, err := threshold.GenerateThresholdKeys(params, 2, 3)
	c.Assert(err, qt.IsNil)

	lg := ledger.NewInProcess()
	electionID := "e1"
	castBallot(c, params, ceremony.PublicKey, lg, electionID, "n1", 2, 0)
	castBallot(c, params, ceremony.PublicKey, lg, electionID, "n2", 2, 1)
	castBallot(c, params, ceremony.PublicKey, lg, electionID, "n3", 2, 1)

	result, err := tally.Run(context.Background(), params, 2, 2, ceremony.Commitments, ceremony.Shares, 10, lg, electionID)
	c.Assert(err, qt.IsNil)
	_, err = tally.Publish(context.Background(), params, lg, electionID, result)
	c.Assert(err, qt.IsNil)

	check, err := VerifyTalliedAsRecorded(context.Background(), params, ceremony.Commitments, 2, 10, lg, electionID)
	c.Assert(err, qt.IsNil)
	c.Assert(len(check.Candidates), qt.Equals, 2)
	for i, cand := range check.Candidates {
		c.Assert(cand.AggregateMatches, qt.IsTrue, qt.Commentf("candidate %d", i))
		c.Assert(cand.AllProofsValid, qt.IsTrue, qt.Commentf("candidate %d", i))
		c.Assert(cand.CountMatchesReported, qt.IsTrue, qt.Commentf("candidate %d", i))
	}
	c.Assert(check.Candidates[0].RecomputedCount, qt.Equals, uint64(1))
	c.Assert(check.Candidates[1].RecomputedCount, qt.Equals, uint64(2))
}
