// Package ledger defines the bulletin-board collaborator: the contract
// functions the engine depends on (CastVote, GetAllVotes, GetVoteByHash,
// StoreTallyResult, GetTallyResult, GetBulletinBoard, VerifyVote) plus
// the lifecycle entries. The Ledger interface is a hot-swap boundary; any
// implementation satisfying the contract is acceptable, and this package
// ships exactly one: InProcessLedger, the in-process, append-only
// dev-mode bulletin board.
package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// EntryType discriminates ledger entries.
type EntryType string

const (
	EntryOpen       EntryType = "OPEN"
	EntryVote       EntryType = "VOTE"
	EntryClose      EntryType = "CLOSE"
	EntryTallyStart EntryType = "TALLY_START"
	EntryTally      EntryType = "TALLY"
)

// Entry is one append-only, ordered bulletin-board record. Sequence
// numbers are strictly monotonic.
type Entry struct {
	Seq         uint64
	Type        EntryType
	ElectionID  string
	PayloadHash common.Hash
	TxID        common.Hash
	Nullifier   string // empty except for EntryVote, used for uniqueness/lookup
	Payload     any    // the typed payload (VotePayload, TallyResultPayload, ...)
	Timestamp   time.Time
	Block       uint64
}

// VotePayload is the CastVote contract function's argument shape.
type VotePayload struct {
	Ciphertext      []byte
	Nullifier       string
	ValidityHash    common.Hash
	EligibilityHash common.Hash
}

// TallyResultPayload is StoreTallyResult's argument shape: per-candidate
// published aggregate, reported count, and Chaum-Pedersen decryption
// proofs, keyed by trustee index.
type TallyResultPayload struct {
	Counts          []uint64
	AggregateHashes []common.Hash
	DecryptionProof []byte // opaque, canonically-serialized proof bundle
}

// InvokeResult is the result of a ledger write.
type InvokeResult struct {
	TxID      common.Hash
	Block     uint64
	Timestamp time.Time
}

// ErrTransient marks a ledger fault the caller should retry with bounded
// backoff, ErrPermanent one it must not.
var (
	ErrTransient = fmt.Errorf("ledger: transient upstream fault")
	ErrPermanent = fmt.Errorf("ledger: permanent upstream fault")
)

// ErrNotFound is returned by query functions that find nothing.
var ErrNotFound = fmt.Errorf("ledger: not found")

// Ledger is the bulletin-board interface: the generic invoke/query pair
// plus the named contract functions the engine depends on.
type Ledger interface {
	CastVote(ctx context.Context, electionID string, ciphertext []byte, nullifier string, validityHash, eligibilityHash common.Hash) (*InvokeResult, error)
	GetAllVotes(ctx context.Context, electionID string) ([]*VotePayload, error)
	GetVoteByHash(ctx context.Context, electionID string, hash common.Hash) (*Entry, bool, error)
	StoreTallyResult(ctx context.Context, electionID string, result *TallyResultPayload) (*InvokeResult, error)
	GetTallyResult(ctx context.Context, electionID string) (*TallyResultPayload, common.Hash, error)
	GetBulletinBoard(ctx context.Context, electionID string) ([]*Entry, error)
	VerifyVote(ctx context.Context, electionID string, nullifier string, hash common.Hash) (bool, error)

	// OpenElection, CloseElection, and TallyStart append the lifecycle
	// entries bracketing an election's voting window and tally.
	OpenElection(ctx context.Context, electionID string) (*InvokeResult, error)
	CloseElection(ctx context.Context, electionID string) (*InvokeResult, error)
	TallyStart(ctx context.Context, electionID string) (*InvokeResult, error)
}

// InProcessLedger is the dev-mode, append-only bulletin-board
// implementation: every election's entries live in a single monotonic
// sequence, guarded by one mutex. It satisfies Ledger in full and is the
// default wired by cmd/electionctl.
type InProcessLedger struct {
	mu      sync.Mutex
	entries map[string][]*Entry // electionID -> ordered entries
	nextSeq uint64
}

// NewInProcess constructs an empty in-process ledger.
func NewInProcess() *InProcessLedger {
	return &InProcessLedger{entries: make(map[string][]*Entry)}
}

func (l *InProcessLedger) append(electionID string, typ EntryType, payloadHash common.Hash, nullifier string, payload any) *Entry {
	l.nextSeq++
	txID := crypto.Keccak256Hash([]byte(fmt.Sprintf("%s:%d:%s", electionID, l.nextSeq, typ)))
	e := &Entry{
		Seq:         l.nextSeq,
		Type:        typ,
		ElectionID:  electionID,
		PayloadHash: payloadHash,
		TxID:        txID,
		Nullifier:   nullifier,
		Payload:     payload,
		Timestamp:   time.Now(),
		Block:       l.nextSeq, // single-process ledger: block number mirrors seq
	}
	l.entries[electionID] = append(l.entries[electionID], e)
	return e
}

func (l *InProcessLedger) CastVote(_ context.Context, electionID string, ciphertext []byte, nullifier string, validityHash, eligibilityHash common.Hash) (*InvokeResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, e := range l.entries[electionID] {
		if e.Type == EntryVote && e.Nullifier == nullifier {
			return nil, fmt.Errorf("%w: nullifier already recorded", ErrPermanent)
		}
	}

	payloadHash := crypto.Keccak256Hash(ciphertext)
	payload := &VotePayload{
		Ciphertext:      ciphertext,
		Nullifier:       nullifier,
		ValidityHash:    validityHash,
		EligibilityHash: eligibilityHash,
	}
	e := l.append(electionID, EntryVote, payloadHash, nullifier, payload)
	return &InvokeResult{TxID: e.TxID, Block: e.Block, Timestamp: e.Timestamp}, nil
}

func (l *InProcessLedger) GetAllVotes(_ context.Context, electionID string) ([]*VotePayload, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var votes []*VotePayload
	for _, e := range l.entries[electionID] {
		if e.Type == EntryVote {
			votes = append(votes, e.Payload.(*VotePayload))
		}
	}
	return votes, nil
}

func (l *InProcessLedger) GetVoteByHash(_ context.Context, electionID string, hash common.Hash) (*Entry, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, e := range l.entries[electionID] {
		if e.Type == EntryVote && e.PayloadHash == hash {
			return e, true, nil
		}
	}
	return nil, false, nil
}

func (l *InProcessLedger) StoreTallyResult(_ context.Context, electionID string, result *TallyResultPayload) (*InvokeResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	payloadHash := crypto.Keccak256Hash(result.DecryptionProof)
	e := l.append(electionID, EntryTally, payloadHash, "", result)
	return &InvokeResult{TxID: e.TxID, Block: e.Block, Timestamp: e.Timestamp}, nil
}

func (l *InProcessLedger) GetTallyResult(_ context.Context, electionID string) (*TallyResultPayload, common.Hash, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries := l.entries[electionID]
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].Type == EntryTally {
			return entries[i].Payload.(*TallyResultPayload), entries[i].TxID, nil
		}
	}
	return nil, common.Hash{}, ErrNotFound
}

func (l *InProcessLedger) GetBulletinBoard(_ context.Context, electionID string) ([]*Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*Entry, len(l.entries[electionID]))
	copy(out, l.entries[electionID])
	return out, nil
}

func (l *InProcessLedger) VerifyVote(_ context.Context, electionID string, nullifier string, hash common.Hash) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.entries[electionID] {
		if e.Type == EntryVote && e.Nullifier == nullifier && e.PayloadHash == hash {
			return true, nil
		}
	}
	return false, nil
}

func (l *InProcessLedger) OpenElection(_ context.Context, electionID string) (*InvokeResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e := l.append(electionID, EntryOpen, crypto.Keccak256Hash([]byte(electionID)), "", nil)
	return &InvokeResult{TxID: e.TxID, Block: e.Block, Timestamp: e.Timestamp}, nil
}

func (l *InProcessLedger) CloseElection(_ context.Context, electionID string) (*InvokeResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e := l.append(electionID, EntryClose, crypto.Keccak256Hash([]byte(electionID)), "", nil)
	return &InvokeResult{TxID: e.TxID, Block: e.Block, Timestamp: e.Timestamp}, nil
}

func (l *InProcessLedger) TallyStart(_ context.Context, electionID string) (*InvokeResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e := l.append(electionID, EntryTallyStart, crypto.Keccak256Hash([]byte(electionID)), "", nil)
	return &InvokeResult{TxID: e.TxID, Block: e.Block, Timestamp: e.Timestamp}, nil
}
