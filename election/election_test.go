package election

import (
	"context"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/arbo/memdb"

	"github.com/openballot/engine/group"
	"github.com/openballot/engine/ledger"
	"github.com/openballot/engine/lifecycle"
	"github.com/openballot/engine/merkle"
	"github.com/openballot/engine/store"
	"github.com/openballot/engine/threshold"
)

func newTestRegistry() *Registry {
	return New(store.New(memdb.New()), ledger.NewInProcess())
}

func TestCreateDraftRejectsDuplicateID(t *testing.T) {
	c := qt.New(t)
	r := newTestRegistry()
	_, err := r.CreateDraft("e1")
	c.Assert(err, qt.IsNil)
	_, err = r.CreateDraft("e1")
	c.Assert(err, qt.IsNotNil)
}

func TestFullLifecycleThroughRegistry(t *testing.T) {
	c := qt.New(t)
	r := newTestRegistry()
	ctx := context.Background()

	_, err := r.CreateDraft("e1")
	c.Assert(err, qt.IsNil)

	now := time.Now()
	candidates := []lifecycle.Candidate{{Index: 0, Name: "Alice"}, {Index: 1, Name: "Bob"}}
	c.Assert(r.SetCandidates("e1", candidates, now.Add(10*time.Millisecond), now.Add(time.Hour)), qt.IsNil)

	params := group.DefaultParams()
	ceremony, err := threshold.GenerateThresholdKeys(params, 2, 3)
	c.Assert(err, qt.IsNil)
	c.Assert(r.SetTrusteeCeremony("e1", ceremony, 2), qt.IsNil)

	tree, err := merkle.New(memdb.New(), []byte("m/"), 8)
	c.Assert(err, qt.IsNil)
	root, err := RegisterVoter(tree, []byte("voter-1"), []byte("commitment-1"))
	c.Assert(err, qt.IsNil)
	c.Assert(r.SetMerkleRoot("e1", root), qt.IsNil)

	c.Assert(r.ToPending(ctx, "e1", now), qt.IsNil)
	time.Sleep(15 * time.Millisecond)
	c.Assert(r.ToActive(ctx, "e1", time.Now()), qt.IsNil)

	live, pk, err := r.Get("e1")
	c.Assert(err, qt.IsNil)
	c.Assert(live.Status, qt.Equals, lifecycle.StatusActive)
	c.Assert(pk, qt.IsNotNil)

	c.Assert(r.ToClosed(ctx, "e1", time.Now(), true), qt.IsNil)
	c.Assert(r.ToTallying(ctx, "e1", 2), qt.IsNil)
	c.Assert(r.ToCompleted("e1"), qt.IsNil)

	rec, err := r.store.GetElection("e1")
	c.Assert(err, qt.IsNil)
	c.Assert(rec.StatusName, qt.Equals, "completed")
	c.Assert(rec.NTrustees, qt.Equals, 3)
	c.Assert(rec.Threshold, qt.Equals, 2)
	c.Assert(len(rec.TrusteeCommitments), qt.Equals, 2)
}

func TestToCancelledRequiresReason(t *testing.T) {
	c := qt.New(t)
	r := newTestRegistry()
	_, err := r.CreateDraft("e1")
	c.Assert(err, qt.IsNil)

	c.Assert(r.ToCancelled("e1", ""), qt.IsNotNil)
	c.Assert(r.ToCancelled("e1", "funding withdrawn"), qt.IsNil)

	live, _, err := r.Get("e1")
	c.Assert(err, qt.IsNil)
	c.Assert(live.Status, qt.Equals, lifecycle.StatusCancelled)
}

func TestGetUnknownElection(t *testing.T) {
	c := qt.New(t)
	r := newTestRegistry()
	_, _, err := r.Get("missing")
	c.Assert(err, qt.IsNotNil)
}
