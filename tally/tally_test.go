package tally

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	qt "github.com/frankban/quicktest"

	"github.com/openballot/engine/elgamal"
	"github.com/openballot/engine/group"
	"github.com/openballot/engine/ledger"
	"github.com/openballot/engine/threshold"
)

// castBallot encrypts a one-hot ballot for `chosen` out of `candidates` and
// appends it to the ledger under a fresh nullifier, mirroring the
// submission engine's marshalBallot wire format.
func castBallot(c *qt.C, params *group.Params, pk *elgamal.PublicKey, lg ledger.Ledger, electionID, nullifier string, candidates, chosen int) {
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
	_, err := lg.CastVote(context.Background(), electionID, ballot, nullifier, common.Hash{}, common.Hash{})
	c.Assert(err, qt.IsNil)
}

func TestRunAggregatesAndDecryptsTwoCandidateElection(t *testing.T) {
	c := qt.New(t)
	params := group.DefaultParams()
	ceremony, err := threshold.GenerateThresholdKeys(params, 2, 3)
	c.Assert(err, qt.IsNil)

	lg := ledger.NewInProcess()
	electionID := "e1"
	castBallot(c, params, ceremony.PublicKey, lg, electionID, "n1", 2, 0)
	castBallot(c, params, ceremony.PublicKey, lg, electionID, "n2", 2, 0)
	castBallot(c, params, ceremony.PublicKey, lg, electionID, "n3", 2, 1)

	result, err := Run(context.Background(), params, 2, 2, ceremony.Commitments, ceremony.Shares, 10, lg, electionID)
	c.Assert(err, qt.IsNil)
	c.Assert(result.Candidates[0].Count, qt.Equals, uint64(2))
	c.Assert(result.Candidates[1].Count, qt.Equals, uint64(1))
}

func TestRunSubstitutesABadTrusteeShare(t *testing.T) {
	c := qt.New(t)
	params := group.DefaultParams()
	ceremony, err := threshold.GenerateThresholdKeys(params, 2, 3)
	c.Assert(err, qt.IsNil)

	lg := ledger.NewInProcess()
	electionID := "e1"
	castBallot(c, params, ceremony.PublicKey, lg, electionID, "n1", 1, 0)

	corrupted := *ceremony.Shares[0]
	corrupted.Value = big.NewInt(1)
	shares := []*threshold.Share{&corrupted, ceremony.Shares[1], ceremony.Shares[2]}

	result, err := Run(context.Background(), params, 1, 2, ceremony.Commitments, shares, 10, lg, electionID)
	c.Assert(err, qt.IsNil)
	c.Assert(result.Candidates[0].Count, qt.Equals, uint64(1))
	c.Assert(len(result.Candidates[0].Partials), qt.Equals, 2)
	for _, p := range result.Candidates[0].Partials {
		c.Assert(p.TrusteeIndex, qt.Not(qt.Equals), corrupted.Index)
	}
}

func TestRunFailsWithoutQuorum(t *testing.T) {
	c := qt.New(t)
	params := group.DefaultParams()
	ceremony, err := threshold.GenerateThresholdKeys(params, 2, 3)
	c.Assert(err, qt.IsNil)

	lg := ledger.NewInProcess()
	electionID := "e1"
	castBallot(c, params, ceremony.PublicKey, lg, electionID, "n1", 1, 0)

	_, err = Run(context.Background(), params, 1, 2, ceremony.Commitments, ceremony.Shares[:1], 10, lg, electionID)
	c.Assert(err, qt.IsNotNil)
}

func TestPublishWritesADecodableProofBundle(t *testing.T) {
	c := qt.New(t)
	params := group.DefaultParams()
	ceremony, err := threshold.GenerateThresholdKeys(params, 2, 3)
	c.Assert(err, qt.IsNil)

	lg := ledger.NewInProcess()
	electionID := "e1"
	castBallot(c, params, ceremony.PublicKey, lg, electionID, "n1", 1, 0)

	result, err := Run(context.Background(), params, 1, 2, ceremony.Commitments, ceremony.Shares, 10, lg, electionID)
	c.Assert(err, qt.IsNil)

	_, err = Publish(context.Background(), params, lg, electionID, result)
	c.Assert(err, qt.IsNil)

	published, _, err := lg.GetTallyResult(context.Background(), electionID)
	c.Assert(err, qt.IsNil)
	c.Assert(published.Counts[0], qt.Equals, uint64(1))
}
