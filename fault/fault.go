// Package fault is the stable, numbered error taxonomy surfaced at the
// submit/issue/tally boundaries: every fallible engine operation returns
// a Fault carrying one of these codes instead of a bare string.
//
// NEVER renumber or remove a Code once assigned; append new codes after
// the current highest in a family instead of filling a gap. A removed
// code must not be silently reused for something else.
package fault

import "fmt"

// Code is a stable numeric fault code, grouped by family: 10xx input,
// 11xx authorization, 12xx gating, 13xx proof, 14xx quorum, 15xx upstream
// (retryable), 16xx invariant violations (fatal).
type Code int

const (
	CodeMalformedProof      Code = 1001
	CodeMalformedCiphertext Code = 1002
	CodeUnknownElection     Code = 1003
	CodeInvalidStatus       Code = 1004

	CodeNotAuthenticated Code = 1101
	CodeInsufficientRole Code = 1102
	CodeNotVerifiedVoter Code = 1103

	CodeElectionNotActive  Code = 1201
	CodeTokenExpired       Code = 1202
	CodeTokenAlreadyUsed   Code = 1203
	CodeDuplicateNullifier Code = 1204
	CodeTokenAlreadyIssued Code = 1205

	CodeInvalidValidityProof          Code = 1301
	CodeInvalidEligibilityProof       Code = 1302
	CodeInvalidPartialDecryptionProof Code = 1303

	CodeInsufficientTrustees Code = 1401
	CodeInvalidKeyShare      Code = 1402

	CodeLedgerUnavailable           Code = 1501
	CodeIdentityProviderUnavailable Code = 1502
	CodeUpstreamTimeout             Code = 1503

	CodeDlogOutOfRange                Code = 1601
	CodeStateMachineInvariantViolated Code = 1602
)

// retryable marks the Upstream-fault family as locally retryable with
// bounded exponential backoff; every other family is reported
// deterministically on first failure.
var retryable = map[Code]bool{
	CodeLedgerUnavailable:           true,
	CodeIdentityProviderUnavailable: true,
	CodeUpstreamTimeout:             true,
}

// Fault is the error type every engine boundary returns: a stable
// numeric code plus a wrapped cause.
type Fault struct {
	Err  error
	Code Code
}

// New constructs a Fault with a fixed, generic message for the given
// code. The proof-fault family deliberately shares one message, so a
// caller cannot distinguish an eligibility-proof failure from a
// validity-proof failure by message content alone; the Code field still
// distinguishes them for logging and internal dispatch.
func New(code Code, msg string) Fault {
	return Fault{Err: fmt.Errorf("%s", msg), Code: code}
}

func (f Fault) Error() string {
	return f.Err.Error()
}

// Unwrap lets errors.Is/As see through to the wrapped cause.
func (f Fault) Unwrap() error {
	return f.Err
}

// Withf returns a copy of f with additional formatted detail appended.
func (f Fault) Withf(format string, args ...any) Fault {
	return Fault{Err: fmt.Errorf("%w: %s", f.Err, fmt.Sprintf(format, args...)), Code: f.Code}
}

// Retryable reports whether this fault belongs to the Upstream family
// that allows bounded local retries.
func (f Fault) Retryable() bool {
	return retryable[f.Code]
}

var (
	ErrMalformedProof      = New(CodeMalformedProof, "malformed proof")
	ErrMalformedCiphertext = New(CodeMalformedCiphertext, "malformed ciphertext")
	ErrUnknownElection     = New(CodeUnknownElection, "unknown election")
	ErrInvalidStatus       = New(CodeInvalidStatus, "invalid election status for this operation")

	ErrNotAuthenticated = New(CodeNotAuthenticated, "not authenticated")
	ErrInsufficientRole = New(CodeInsufficientRole, "insufficient role")
	ErrNotVerifiedVoter = New(CodeNotVerifiedVoter, "voter identity not verified")

	ErrElectionNotActive  = New(CodeElectionNotActive, "election is not active")
	ErrTokenExpired       = New(CodeTokenExpired, "voting token expired")
	ErrTokenAlreadyUsed   = New(CodeTokenAlreadyUsed, "voting token already used")
	ErrDuplicateNullifier = New(CodeDuplicateNullifier, "duplicate nullifier")
	ErrTokenAlreadyIssued = New(CodeTokenAlreadyIssued, "an unused voting token is already outstanding")

	ErrInvalidValidityProof          = New(CodeInvalidValidityProof, "proof verification failed")
	ErrInvalidEligibilityProof       = New(CodeInvalidEligibilityProof, "proof verification failed")
	ErrInvalidPartialDecryptionProof = New(CodeInvalidPartialDecryptionProof, "partial decryption proof verification failed")

	ErrInsufficientTrustees = New(CodeInsufficientTrustees, "insufficient trustees in quorum")
	ErrInvalidKeyShare      = New(CodeInvalidKeyShare, "invalid key share")

	ErrLedgerUnavailable           = New(CodeLedgerUnavailable, "ledger unavailable")
	ErrIdentityProviderUnavailable = New(CodeIdentityProviderUnavailable, "identity provider unavailable")
	ErrUpstreamTimeout             = New(CodeUpstreamTimeout, "upstream call timed out")

	ErrDlogOutOfRange                = New(CodeDlogOutOfRange, "discrete logarithm out of configured range")
	ErrStateMachineInvariantViolated = New(CodeStateMachineInvariantViolated, "state machine invariant violated")
)
