// Package election is the administration surface: create an election in
// draft, register its candidates and registrar-supplied Merkle root,
// record the trustee ceremony's Feldman commitments, and drive the
// lifecycle transitions an election administrator (not a voter) is
// authorized to call. It owns no state-machine logic of its own; it is
// the one place allowed to call lifecycle's To* transitions, and each
// wrapper pairs the transition with its persisted projection and, for
// the open, close, and tally-start transitions, its ledger entry.
package election

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/openballot/engine/elgamal"
	"github.com/openballot/engine/ledger"
	"github.com/openballot/engine/lifecycle"
	"github.com/openballot/engine/merkle"
	"github.com/openballot/engine/store"
	"github.com/openballot/engine/threshold"
)

// Registry is the in-process election administration surface: it owns the
// live lifecycle.Election structs (whose inFlightSubmissions drain-barrier
// field cannot survive a round-trip through gob) and keeps store.Store's
// persisted projection in sync with every mutation.
//
// Registry also implements submission.ElectionView, since the submission
// engine's read surface (current status/window guard, public key) is a
// strict subset of what this package already tracks live.
type Registry struct {
	store  store.Store
	ledger ledger.Ledger

	mu        sync.Mutex
	elections map[string]*liveElection
}

type liveElection struct {
	election *lifecycle.Election
	pk       *elgamal.PublicKey
}

// New constructs an empty Registry backed by st and lg.
func New(st store.Store, lg ledger.Ledger) *Registry {
	return &Registry{store: st, ledger: lg, elections: make(map[string]*liveElection)}
}

// Get implements submission.ElectionView.
func (r *Registry) Get(electionID string) (*lifecycle.Election, *elgamal.PublicKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	le, ok := r.elections[electionID]
	if !ok {
		return nil, nil, fmt.Errorf("election: unknown election %q", electionID)
	}
	return le.election, le.pk, nil
}

// CreateDraft creates a new election in StatusDraft with no candidates,
// keys, or Merkle root yet set.
func (r *Registry) CreateDraft(id string) (*lifecycle.Election, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.elections[id]; exists {
		return nil, fmt.Errorf("election: %q already exists", id)
	}
	e := &lifecycle.Election{ID: id, Status: lifecycle.StatusDraft}
	r.elections[id] = &liveElection{election: e}
	if err := r.persist(e, nil); err != nil {
		return nil, err
	}
	return e, nil
}

// SetCandidates registers the ballot's candidate list and voting window on
// a draft election.
func (r *Registry) SetCandidates(id string, candidates []lifecycle.Candidate, start, end time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	le, err := r.get(id)
	if err != nil {
		return err
	}
	if le.election.Status != lifecycle.StatusDraft {
		return fmt.Errorf("election: %q is not in draft", id)
	}
	le.election.Candidates = candidates
	le.election.StartTime = start
	le.election.EndTime = end
	return r.persist(le.election, le.pk)
}

// SetTrusteeCeremony attaches the threshold key-generation ceremony's
// result to a draft/pending election: the election public key, the (k,n)
// parameters, and the Feldman commitments every trustee's share is later
// checked against. Only the count of result.Shares is read; the private
// shares themselves are not stored here and are handed from
// threshold.GenerateThresholdKeys to each trustee out of band.
func (r *Registry) SetTrusteeCeremony(id string, result *threshold.Result, k int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	le, err := r.get(id)
	if err != nil {
		return err
	}
	if le.election.Status != lifecycle.StatusDraft && le.election.Status != lifecycle.StatusPending {
		return fmt.Errorf("election: %q is not in draft or pending", id)
	}
	le.pk = result.PublicKey
	le.election.PublicKey = elgamal.MarshalPublicKey(result.PublicKey)
	le.election.NTrustees = len(result.Shares)
	le.election.Threshold = k
	commitments := make([][]byte, len(result.Commitments))
	for i, c := range result.Commitments {
		commitments[i] = c.Bytes()
	}
	le.election.TrusteeCommitments = commitments
	return r.persist(le.election, le.pk)
}

// SetMerkleRoot attaches the registrar's published eligibility Merkle
// root, computed out of band by a merkle.Tree the registrar maintains.
func (r *Registry) SetMerkleRoot(id string, root []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	le, err := r.get(id)
	if err != nil {
		return err
	}
	le.election.MerkleRoot = root
	return r.persist(le.election, le.pk)
}

// ToPending, ToActive, ToClosed, ToTallying, ToCompleted, and ToCancelled
// wrap the matching lifecycle.Election guard and persist the resulting
// projection. ToActive, ToClosed, and ToTallying also append the OPEN,
// CLOSE, and TALLY_START ledger entries; ToPending, ToCompleted, and
// ToCancelled append no ledger entry (the tally result entry is written
// by tally.Publish).

func (r *Registry) ToPending(ctx context.Context, id string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	le, err := r.get(id)
	if err != nil {
		return err
	}
	if err := le.election.ToPending(now); err != nil {
		return err
	}
	return r.persist(le.election, le.pk)
}

func (r *Registry) ToActive(ctx context.Context, id string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	le, err := r.get(id)
	if err != nil {
		return err
	}
	if err := le.election.ToActive(now); err != nil {
		return err
	}
	if _, err := r.ledger.OpenElection(ctx, id); err != nil {
		return fmt.Errorf("election: failed to append open entry: %w", err)
	}
	return r.persist(le.election, le.pk)
}

func (r *Registry) ToClosed(ctx context.Context, id string, now time.Time, adminForced bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	le, err := r.get(id)
	if err != nil {
		return err
	}
	if err := le.election.ToClosed(now, adminForced); err != nil {
		return err
	}
	if _, err := r.ledger.CloseElection(ctx, id); err != nil {
		return fmt.Errorf("election: failed to append close entry: %w", err)
	}
	return r.persist(le.election, le.pk)
}

func (r *Registry) ToTallying(ctx context.Context, id string, sharesReceived int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	le, err := r.get(id)
	if err != nil {
		return err
	}
	if err := le.election.ToTallying(sharesReceived); err != nil {
		return err
	}
	if _, err := r.ledger.TallyStart(ctx, id); err != nil {
		return fmt.Errorf("election: failed to append tally-start entry: %w", err)
	}
	return r.persist(le.election, le.pk)
}

func (r *Registry) ToCompleted(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	le, err := r.get(id)
	if err != nil {
		return err
	}
	if err := le.election.ToCompleted(); err != nil {
		return err
	}
	return r.persist(le.election, le.pk)
}

func (r *Registry) ToCancelled(id, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	le, err := r.get(id)
	if err != nil {
		return err
	}
	if err := le.election.ToCancelled(reason); err != nil {
		return err
	}
	return r.persist(le.election, le.pk)
}

func (r *Registry) get(id string) (*liveElection, error) {
	le, ok := r.elections[id]
	if !ok {
		return nil, fmt.Errorf("election: unknown election %q", id)
	}
	return le, nil
}

// persist writes the current projection of e (and, once minted, pk) to the
// store. Called with r.mu already held.
func (r *Registry) persist(e *lifecycle.Election, pk *elgamal.PublicKey) error {
	candidates := make([]store.CandidateRecord, len(e.Candidates))
	for i, c := range e.Candidates {
		candidates[i] = store.CandidateRecord{Index: c.Index, Name: c.Name}
	}
	rec := &store.ElectionRecord{
		ID:                 e.ID,
		StatusName:         e.Status.String(),
		PublicKey:          e.PublicKey,
		MerkleRoot:         e.MerkleRoot,
		StartTime:          e.StartTime,
		EndTime:            e.EndTime,
		Candidates:         candidates,
		NTrustees:          e.NTrustees,
		Threshold:          e.Threshold,
		TrusteeCommitments: e.TrusteeCommitments,
	}
	return r.store.PutElection(rec)
}

// RegisterVoter inserts a voter's eligibility commitment into the
// election's registrar Merkle tree and returns the updated root. The
// registrar tree itself is owned by the caller (one merkle.Tree per
// election, keyed by election ID); this package never takes ownership of
// the tree's storage namespace.
func RegisterVoter(tree *merkle.Tree, voterKey, commitment []byte) ([]byte, error) {
	if err := tree.Insert(voterKey, commitment); err != nil {
		return nil, err
	}
	return tree.Root()
}
