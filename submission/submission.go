// Package submission is the vote-submission engine: one-time voting
// tokens, the atomic submit pipeline (token check, election gate,
// nullifier reservation, proof verification, ledger append, receipt), and
// nullifier-based replay protection. It contains no cryptography of its
// own, only orchestration over the collaborators it composes.
package submission

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/openballot/engine/elgamal"
	"github.com/openballot/engine/eligibility"
	"github.com/openballot/engine/fault"
	"github.com/openballot/engine/ledger"
	"github.com/openballot/engine/lifecycle"
	"github.com/openballot/engine/log"
	"github.com/openballot/engine/store"
	"github.com/openballot/engine/zkp"
)

// Config bounds the engine's token TTL and retry behavior, loaded from the
// config package at startup.
type Config struct {
	TokenTTL        time.Duration
	RetryMax        int
	RetryBackoffCap time.Duration
}

// ElectionView is the minimal read surface the engine needs from the live
// lifecycle.Election for a given electionID: its current status/window
// guard, public key, and candidate count. Supplied by the caller (normally
// an in-process election registry) rather than owned by this package, so
// the engine never mutates election state directly — only lifecycle.go may.
type ElectionView interface {
	Get(electionID string) (*lifecycle.Election, *elgamal.PublicKey, error)
}

// Engine runs the atomic submission pipeline.
type Engine struct {
	store     store.Store
	ledger    ledger.Ledger
	elig      eligibility.Verifier
	elections ElectionView
	cfg       Config

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex // electionID -> per-election serialization lock
}

// New constructs a submission Engine.
func New(st store.Store, lg ledger.Ledger, elig eligibility.Verifier, elections ElectionView, cfg Config) *Engine {
	return &Engine{
		store:     st,
		ledger:    lg,
		elig:      elig,
		elections: elections,
		cfg:       cfg,
		locks:     make(map[string]*sync.Mutex),
	}
}

func (e *Engine) electionLock(electionID string) *sync.Mutex {
	e.locksMu.Lock()
	defer e.locksMu.Unlock()
	l, ok := e.locks[electionID]
	if !ok {
		l = &sync.Mutex{}
		e.locks[electionID] = l
	}
	return l
}

// IssueToken mints a 256-bit random raw token, returned once; only its
// hash is ever stored. voterRef is an opaque, auth-derived reference
// distinct from the nullifier: it exists only to enforce one unused token
// per voter per election and never appears in the ledger or receipt.
func (e *Engine) IssueToken(ctx context.Context, electionID, voterRef string, now time.Time) (string, error) {
	election, _, err := e.elections.Get(electionID)
	if err != nil {
		return "", fault.ErrUnknownElection
	}
	if !election.IsActive(now) {
		return "", fault.ErrElectionNotActive
	}

	hasUnexpired, err := e.store.HasUnexpiredToken(electionID, voterRef, now)
	if err != nil {
		return "", fmt.Errorf("submission: failed to check existing token: %w", err)
	}
	if hasUnexpired {
		return "", fault.ErrTokenAlreadyIssued
	}

	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("submission: failed to sample token: %w", err)
	}
	// Hash the hex form: it is the representation the client holds and
	// submits back, so Submit can recompute the same digest from req.Token.
	rawToken := hex.EncodeToString(raw)
	hash := sha256.Sum256([]byte(rawToken))

	rec := &store.TokenRecord{
		TokenHash:  hash[:],
		ElectionID: electionID,
		VoterRef:   voterRef,
		IssuedAt:   now,
		ExpiresAt:  now.Add(e.cfg.TokenTTL),
	}
	if err := e.store.IssueToken(rec); err != nil {
		return "", fmt.Errorf("submission: failed to persist token: %w", err)
	}
	return rawToken, nil
}

// Request is the client-submitted ballot and its accompanying proofs.
type Request struct {
	Token          string
	ElectionID     string
	Ciphertexts    []*elgamal.Ciphertext // one per candidate, in ballot order
	ValidityProofs []*zkp.BinaryProof    // one per ciphertext, same order
	Eligibility    *eligibility.Bundle   // eligibility proof plus nullifier
}

// Result is returned by a successful Submit.
type Result struct {
	VerificationCode string
	TxID             string
}

// Submit runs the full atomic pipeline: token, election gate, nullifier
// reservation, validity proofs, eligibility proof, ledger append, receipt
// and token consumption, audit row. A reservation that does not go on to
// produce a recorded vote is released before Submit returns, so no
// rejection or ledger fault permanently burns a nullifier for a ballot
// that was never cast.
func (e *Engine) Submit(ctx context.Context, req Request, now time.Time) (*Result, error) {
	election, pk, err := e.elections.Get(req.ElectionID)
	if err != nil {
		return nil, fault.ErrUnknownElection
	}

	lock := e.electionLock(req.ElectionID)
	lock.Lock()
	defer lock.Unlock()

	// Step 1: token.
	tokenHash := sha256.Sum256([]byte(req.Token))
	tok, err := e.store.GetTokenByHash(tokenHash[:])
	if err != nil {
		return nil, fault.ErrTokenExpired.Withf("token not found")
	}
	if tok.UsedAt != nil {
		return nil, fault.ErrTokenAlreadyUsed
	}
	if !tok.ExpiresAt.After(now) {
		return nil, fault.ErrTokenExpired
	}

	// Step 2: election state.
	election.BeginSubmission()
	defer election.EndSubmission()
	if !election.IsActive(now) {
		return nil, fault.ErrElectionNotActive
	}

	nullifier := hex.EncodeToString(req.Eligibility.Nullifier)

	// Step 3: nullifier uniqueness.
	if err := e.store.ReserveNullifier(req.ElectionID, nullifier); err != nil {
		if err == store.ErrAlreadyExists {
			return nil, fault.ErrDuplicateNullifier
		}
		return nil, fmt.Errorf("submission: failed to reserve nullifier: %w", err)
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		if relErr := e.store.ReleaseNullifier(req.ElectionID, nullifier); relErr != nil {
			log.Errorw(relErr, "submission: failed to release nullifier after a failed submit")
		}
	}()

	// Step 4: validity proofs, one per candidate ciphertext. The ballot
	// vector's length must match the election's candidate count, not just
	// agree with the proof count, or a short/padded ballot could slip
	// past this loop.
	if len(req.Ciphertexts) != len(election.Candidates) || len(req.Ciphertexts) != len(req.ValidityProofs) {
		return nil, fault.ErrMalformedCiphertext
	}
	for i, ct := range req.Ciphertexts {
		if !zkp.VerifyBinary(pk, ct, req.ValidityProofs[i]) {
			return nil, fault.ErrInvalidValidityProof
		}
	}

	// Step 5: eligibility proof.
	bundle := *req.Eligibility
	bundle.ElectionID = []byte(req.ElectionID)
	if err := e.elig.Verify(&bundle); err != nil {
		if err == eligibility.ErrMalformedProof {
			return nil, fault.ErrMalformedProof
		}
		return nil, fault.ErrInvalidEligibilityProof
	}

	ballotBytes := marshalBallot(pk, req.Ciphertexts)
	validityHash := crypto.Keccak256Hash(marshalProofs(req.ValidityProofs))
	eligibilityHash := crypto.Keccak256Hash(req.Eligibility.Proof)

	// Step 6: ledger append. A ledger failure rolls back the whole
	// transaction: the token is not consumed, no receipt is written.
	var invoke *ledger.InvokeResult
	retryErr := fault.Retry(ctx, e.cfg.RetryMax, e.cfg.RetryBackoffCap, func() error {
		res, err := e.ledger.CastVote(ctx, req.ElectionID, ballotBytes, nullifier, validityHash, eligibilityHash)
		if err != nil {
			return classifyLedgerErr(err)
		}
		invoke = res
		return nil
	})
	if retryErr != nil {
		return nil, retryErr
	}
	// The vote is now actually recorded on the ledger: the nullifier is
	// legitimately spent from here on, regardless of whether the
	// remaining local bookkeeping (receipt, token, audit row) succeeds.
	committed = true

	// Step 7: persist receipt, mark token used.
	verificationCode := newVerificationCode()
	ciphertextHash := crypto.Keccak256Hash(ballotBytes)
	receipt := &store.ReceiptRecord{
		VerificationCode: verificationCode,
		ElectionID:       req.ElectionID,
		CiphertextHash:   ciphertextHash[:],
		Nullifier:        nullifier,
		LedgerTxID:       invoke.TxID[:],
		BlockNumber:      invoke.Block,
		ProofHashes:      [][]byte{validityHash[:], eligibilityHash[:]},
		CastAt:           now,
	}
	if err := e.store.PutReceipt(receipt); err != nil {
		return nil, fmt.Errorf("submission: failed to persist receipt: %w", err)
	}
	if err := e.store.MarkTokenUsed(tokenHash[:], now); err != nil {
		return nil, fmt.Errorf("submission: failed to mark token used: %w", err)
	}

	// Step 8: audit row, voter-identity-free.
	if err := e.store.AppendAudit(&store.AuditRecord{
		ElectionID: req.ElectionID,
		Nullifier:  nullifier,
		Event:      "vote_submitted",
		At:         now,
	}); err != nil {
		return nil, fmt.Errorf("submission: failed to append audit row: %w", err)
	}

	return &Result{VerificationCode: verificationCode, TxID: invoke.TxID.Hex()}, nil
}

// newVerificationCode returns a 16-character uppercase hex handle over 8
// random bytes.
func newVerificationCode() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("submission: failed to sample verification code: %v", err))
	}
	return fmt.Sprintf("%X", b)
}

// marshalBallot concatenates the canonical fixed-width ciphertext
// encoding for each candidate in order, forming the ledger payload for
// one ballot.
func marshalBallot(pk *elgamal.PublicKey, cts []*elgamal.Ciphertext) []byte {
	var out []byte
	for _, ct := range cts {
		out = append(out, ct.Marshal(pk.Params)...)
	}
	return out
}

func marshalProofs(proofs []*zkp.BinaryProof) []byte {
	var out []byte
	for _, p := range proofs {
		out = append(out, bigBytes(p.E0)...)
		out = append(out, bigBytes(p.E1)...)
		out = append(out, bigBytes(p.Z0)...)
		out = append(out, bigBytes(p.Z1)...)
	}
	return out
}

func bigBytes(v *big.Int) []byte {
	return v.Bytes()
}

// classifyLedgerErr maps ledger.ErrTransient to the retryable
// fault.ErrLedgerUnavailable; any other ledger error is returned as a plain
// wrapped error, which fault.Retry does not retry.
func classifyLedgerErr(err error) error {
	if errors.Is(err, ledger.ErrTransient) {
		return fault.ErrLedgerUnavailable
	}
	return fmt.Errorf("submission: ledger append failed: %w", err)
}
