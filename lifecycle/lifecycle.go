// Package lifecycle implements the election state machine:
// draft -> pending -> active -> closed -> tallying -> completed, with
// cancelled reachable as a terminal state from draft, pending, or active.
// Every transition is guarded; a rejected transition leaves the election
// unchanged.
package lifecycle

import (
	"fmt"
	"time"
)

// Status is an election's lifecycle state.
type Status int

const (
	StatusDraft Status = iota
	StatusPending
	StatusActive
	StatusClosed
	StatusTallying
	StatusCompleted
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusDraft:
		return "draft"
	case StatusPending:
		return "pending"
	case StatusActive:
		return "active"
	case StatusClosed:
		return "closed"
	case StatusTallying:
		return "tallying"
	case StatusCompleted:
		return "completed"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Candidate is one selectable option on the ballot.
type Candidate struct {
	Index int
	Name  string
}

// Election is the state-machine subject: the voting window, ballot,
// public key material, and eligibility anchor one election carries.
type Election struct {
	ID                 string
	Status             Status
	StartTime          time.Time
	EndTime            time.Time
	Candidates         []Candidate
	PublicKey          []byte // MarshalPublicKey(pk), required by the pending->active guard
	MerkleRoot         []byte
	NTrustees          int
	Threshold          int
	TrusteeCommitments [][]byte // Feldman commitments g^a_j (each V_i derives from them), required by the pending->active guard

	// inFlightSubmissions tracks the drain barrier required by the
	// active->closed guard ("no in-flight submissions").
	inFlightSubmissions int
}

// ErrInvalidTransition is returned when a requested transition's guard
// does not hold.
type ErrInvalidTransition struct {
	From, To Status
	Reason   string
}

func (e *ErrInvalidTransition) Error() string {
	return fmt.Sprintf("lifecycle: invalid transition %s -> %s: %s", e.From, e.To, e.Reason)
}

// BeginSubmission and EndSubmission bracket an in-flight vote submission
// for the active->closed drain barrier; the submission package calls
// these around its atomic pipeline.
func (e *Election) BeginSubmission() {
	e.inFlightSubmissions++
}

func (e *Election) EndSubmission() {
	if e.inFlightSubmissions > 0 {
		e.inFlightSubmissions--
	}
}

// ToPending applies draft -> pending: candidates >= 2, start_time <
// end_time in the future.
func (e *Election) ToPending(now time.Time) error {
	if e.Status != StatusDraft {
		return &ErrInvalidTransition{e.Status, StatusPending, "election is not in draft"}
	}
	if len(e.Candidates) < 2 {
		return &ErrInvalidTransition{e.Status, StatusPending, "fewer than 2 candidates"}
	}
	if !e.StartTime.Before(e.EndTime) {
		return &ErrInvalidTransition{e.Status, StatusPending, "start_time must precede end_time"}
	}
	if !e.StartTime.After(now) {
		return &ErrInvalidTransition{e.Status, StatusPending, "start_time must be in the future"}
	}
	e.Status = StatusPending
	return nil
}

// ToActive applies pending -> active: public_key, merkle_root, and
// trustee_commitments set, now >= start_time.
func (e *Election) ToActive(now time.Time) error {
	if e.Status != StatusPending {
		return &ErrInvalidTransition{e.Status, StatusActive, "election is not pending"}
	}
	if len(e.PublicKey) == 0 {
		return &ErrInvalidTransition{e.Status, StatusActive, "public_key not set"}
	}
	if len(e.MerkleRoot) == 0 {
		return &ErrInvalidTransition{e.Status, StatusActive, "merkle_root not set"}
	}
	if len(e.TrusteeCommitments) == 0 {
		return &ErrInvalidTransition{e.Status, StatusActive, "trustee_commitments not set"}
	}
	if now.Before(e.StartTime) {
		return &ErrInvalidTransition{e.Status, StatusActive, "start_time not yet reached"}
	}
	e.Status = StatusActive
	return nil
}

// ToClosed applies active -> closed: now >= end_time or admin-forced, and
// the drain barrier (no in-flight submissions) is satisfied.
func (e *Election) ToClosed(now time.Time, adminForced bool) error {
	if e.Status != StatusActive {
		return &ErrInvalidTransition{e.Status, StatusClosed, "election is not active"}
	}
	if !adminForced && now.Before(e.EndTime) {
		return &ErrInvalidTransition{e.Status, StatusClosed, "end_time not yet reached"}
	}
	if e.inFlightSubmissions > 0 {
		return &ErrInvalidTransition{e.Status, StatusClosed, "submissions still in flight"}
	}
	e.Status = StatusClosed
	return nil
}

// ToTallying applies closed -> tallying: a quorum of k valid trustee
// shares or partial decryptions has been received (validated by the
// caller; this guard only checks the count).
func (e *Election) ToTallying(sharesReceived int) error {
	if e.Status != StatusClosed {
		return &ErrInvalidTransition{e.Status, StatusTallying, "election is not closed"}
	}
	if sharesReceived < e.Threshold {
		return &ErrInvalidTransition{e.Status, StatusTallying, "quorum of trustee shares not reached"}
	}
	e.Status = StatusTallying
	return nil
}

// ToCompleted applies tallying -> completed: aggregation, decryption, and
// proof publication have succeeded (the caller asserts this by calling
// only once those steps are done).
func (e *Election) ToCompleted() error {
	if e.Status != StatusTallying {
		return &ErrInvalidTransition{e.Status, StatusCompleted, "election is not tallying"}
	}
	e.Status = StatusCompleted
	return nil
}

// ToCancelled applies the terminal cancellation transition, legal from
// draft, pending, or active. A non-empty reason is required; the reason
// itself is not stored, and no ledger entry is written.
func (e *Election) ToCancelled(reason string) error {
	switch e.Status {
	case StatusDraft, StatusPending, StatusActive:
	default:
		return &ErrInvalidTransition{e.Status, StatusCancelled, "election is not draft, pending, or active"}
	}
	if reason == "" {
		return &ErrInvalidTransition{e.Status, StatusCancelled, "a cancellation reason is required"}
	}
	e.Status = StatusCancelled
	return nil
}

// IsActive reports whether the election is eligible to accept
// submissions right now: status active, populated public_key and
// merkle_root, at least 2 candidates, start_time <= now < end_time.
func (e *Election) IsActive(now time.Time) bool {
	return e.Status == StatusActive &&
		!now.Before(e.StartTime) &&
		now.Before(e.EndTime) &&
		len(e.PublicKey) > 0 &&
		len(e.MerkleRoot) > 0 &&
		len(e.Candidates) >= 2
}
