// Package store is the engine's persistent store: elections, tokens,
// receipts, audit entries, and the per-election nullifier uniqueness
// index, gob-encoded behind entity-type prefixes of a db.Database.
//
// Tokens are stored only as H(token), never raw; receipts store the
// ciphertext hash, not the ciphertext; no record ever joins a voter
// identity to a ballot by anything but the nullifier.
package store

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/prefixeddb"
)

var (
	electionPrefix  = []byte("el/")
	tokenPrefix     = []byte("tk/")
	receiptPrefix   = []byte("rc/")
	auditPrefix     = []byte("au/")
	nullifierPrefix = []byte("nf/")
)

// ErrNotFound is returned when a lookup by key finds nothing.
var ErrNotFound = fmt.Errorf("store: not found")

// ErrAlreadyExists is returned by inserts that would violate a unique
// constraint (token already issued, nullifier already recorded).
var ErrAlreadyExists = fmt.Errorf("store: already exists")

// ElectionRecord is the persisted projection of an election, independent
// of the in-memory lifecycle.Election the election registry keeps live.
// The election package re-derives the record from the live struct on
// every save; nothing in the engine rebuilds a lifecycle.Election from it.
type ElectionRecord struct {
	ID                 string
	StatusName         string
	PublicKey          []byte
	MerkleRoot         []byte
	StartTime          time.Time
	EndTime            time.Time
	Candidates         []CandidateRecord
	NTrustees          int
	Threshold          int
	TrusteeCommitments [][]byte
}

// CandidateRecord is the persisted projection of a lifecycle.Candidate.
type CandidateRecord struct {
	Index int
	Name  string
}

// TokenRecord is the persisted voting token: token_hash is stored, never
// the raw token.
type TokenRecord struct {
	TokenHash  []byte
	ElectionID string
	VoterRef   string // opaque auth-derived reference, distinct from the nullifier
	IssuedAt   time.Time
	ExpiresAt  time.Time
	UsedAt     *time.Time
}

// ReceiptRecord is the persisted vote receipt, keyed by the voter-facing
// verification code.
type ReceiptRecord struct {
	VerificationCode string
	ElectionID       string
	CiphertextHash   []byte
	Nullifier        string
	LedgerTxID       []byte
	BlockNumber      uint64
	ProofHashes      [][]byte
	CastAt           time.Time
	ConfirmedAt      *time.Time
}

// AuditRecord is an anonymized submission event: never joined to a
// ballot by anything but the nullifier.
type AuditRecord struct {
	ElectionID string
	Nullifier  string
	Event      string
	At         time.Time
}

// Store is the persistent-store interface the engine composes against.
type Store interface {
	PutElection(rec *ElectionRecord) error
	GetElection(id string) (*ElectionRecord, error)

	IssueToken(rec *TokenRecord) error
	GetTokenByHash(hash []byte) (*TokenRecord, error)
	MarkTokenUsed(hash []byte, usedAt time.Time) error
	HasUnexpiredToken(electionID, voterRef string, now time.Time) (bool, error)

	// ReserveNullifier atomically checks-and-inserts the (election_id,
	// nullifier) unique index; returns ErrAlreadyExists if already
	// present. A caller whose pipeline fails after reserving but before
	// the vote is actually recorded on the ledger must call
	// ReleaseNullifier so the voter is not permanently locked out for a
	// ballot that was never cast.
	ReserveNullifier(electionID, nullifier string) error
	// ReleaseNullifier undoes a ReserveNullifier call that did not go on
	// to produce a recorded vote. It is a no-op if the nullifier is not
	// currently reserved (idempotent, so a caller can call it on every
	// failure path without tracking whether reservation happened).
	ReleaseNullifier(electionID, nullifier string) error
	HasNullifier(electionID, nullifier string) (bool, error)

	PutReceipt(rec *ReceiptRecord) error
	GetReceiptByCode(verificationCode string) (*ReceiptRecord, error)
	GetReceiptByNullifier(electionID, nullifier string) (*ReceiptRecord, error)

	AppendAudit(rec *AuditRecord) error

	// WithTx runs fn against the store. The kvStore implementation opens
	// no enclosing transaction: each write inside fn commits on its own,
	// and earlier writes are not undone if a later one fails.
	WithTx(fn func(Store) error) error
}

// kvStore implements Store atop a db.Database, gob-encoding each record
// behind its entity-type prefix.
type kvStore struct {
	db db.Database

	// mu makes ReserveNullifier's check-then-insert atomic within this
	// process.
	mu sync.Mutex
}

// New wraps database as a Store.
func New(database db.Database) Store {
	return &kvStore{db: database}
}

func setGob(database db.Database, prefix, key []byte, v any) error {
	buf := bytes.NewBuffer(nil)
	if err := gob.NewEncoder(buf).Encode(v); err != nil {
		return fmt.Errorf("store: failed to encode record: %w", err)
	}
	wtx := prefixeddb.NewPrefixedWriteTx(database.WriteTx(), prefix)
	if err := wtx.Set(key, buf.Bytes()); err != nil {
		return fmt.Errorf("store: failed to write record: %w", err)
	}
	return wtx.Commit()
}

func getGob[T any](database db.Database, prefix, key []byte) (*T, error) {
	data, err := prefixeddb.NewPrefixedReader(database, prefix).Get(key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: failed to read record: %w", err)
	}
	var v T
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&v); err != nil {
		return nil, fmt.Errorf("store: failed to decode record: %w", err)
	}
	return &v, nil
}

func (s *kvStore) PutElection(rec *ElectionRecord) error {
	return setGob(s.db, electionPrefix, []byte(rec.ID), rec)
}

func (s *kvStore) GetElection(id string) (*ElectionRecord, error) {
	return getGob[ElectionRecord](s.db, electionPrefix, []byte(id))
}

func (s *kvStore) IssueToken(rec *TokenRecord) error {
	if _, err := getGob[TokenRecord](s.db, tokenPrefix, rec.TokenHash); err == nil {
		return ErrAlreadyExists
	}
	return setGob(s.db, tokenPrefix, rec.TokenHash, rec)
}

func (s *kvStore) GetTokenByHash(hash []byte) (*TokenRecord, error) {
	return getGob[TokenRecord](s.db, tokenPrefix, hash)
}

func (s *kvStore) MarkTokenUsed(hash []byte, usedAt time.Time) error {
	rec, err := s.GetTokenByHash(hash)
	if err != nil {
		return err
	}
	if rec.UsedAt != nil {
		return fmt.Errorf("store: token already marked used")
	}
	rec.UsedAt = &usedAt
	return setGob(s.db, tokenPrefix, hash, rec)
}

func (s *kvStore) HasUnexpiredToken(electionID, voterRef string, now time.Time) (bool, error) {
	found := false
	prefixeddb.NewPrefixedReader(s.db, tokenPrefix).Iterate(nil, func(_, value []byte) bool {
		var rec TokenRecord
		if err := gob.NewDecoder(bytes.NewReader(value)).Decode(&rec); err != nil {
			return true
		}
		if rec.ElectionID == electionID && rec.VoterRef == voterRef &&
			rec.UsedAt == nil && rec.ExpiresAt.After(now) {
			found = true
			return false
		}
		return true
	})
	return found, nil
}

func nullifierKey(electionID, nullifier string) []byte {
	return []byte(electionID + "/" + nullifier)
}

func (s *kvStore) ReserveNullifier(electionID, nullifier string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := nullifierKey(electionID, nullifier)
	if _, err := prefixeddb.NewPrefixedReader(s.db, nullifierPrefix).Get(key); err == nil {
		return ErrAlreadyExists
	}
	wtx := prefixeddb.NewPrefixedWriteTx(s.db.WriteTx(), nullifierPrefix)
	if err := wtx.Set(key, []byte{1}); err != nil {
		return fmt.Errorf("store: failed to reserve nullifier: %w", err)
	}
	return wtx.Commit()
}

func (s *kvStore) ReleaseNullifier(electionID, nullifier string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := nullifierKey(electionID, nullifier)
	wtx := prefixeddb.NewPrefixedWriteTx(s.db.WriteTx(), nullifierPrefix)
	if err := wtx.Delete(key); err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return nil
		}
		return fmt.Errorf("store: failed to release nullifier: %w", err)
	}
	return wtx.Commit()
}

func (s *kvStore) HasNullifier(electionID, nullifier string) (bool, error) {
	key := nullifierKey(electionID, nullifier)
	_, err := prefixeddb.NewPrefixedReader(s.db, nullifierPrefix).Get(key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *kvStore) PutReceipt(rec *ReceiptRecord) error {
	if err := setGob(s.db, receiptPrefix, []byte(rec.VerificationCode), rec); err != nil {
		return err
	}
	// Secondary index by (election_id, nullifier) for
	// GetReceiptByNullifier, the only other key receipts may be looked
	// up by.
	idxKey := nullifierKey(rec.ElectionID, rec.Nullifier)
	return setGob(s.db, receiptByNullifierPrefix, idxKey, rec.VerificationCode)
}

var receiptByNullifierPrefix = []byte("rcn/")

func (s *kvStore) GetReceiptByCode(verificationCode string) (*ReceiptRecord, error) {
	return getGob[ReceiptRecord](s.db, receiptPrefix, []byte(verificationCode))
}

func (s *kvStore) GetReceiptByNullifier(electionID, nullifier string) (*ReceiptRecord, error) {
	code, err := getGob[string](s.db, receiptByNullifierPrefix, nullifierKey(electionID, nullifier))
	if err != nil {
		return nil, err
	}
	return s.GetReceiptByCode(*code)
}

func (s *kvStore) AppendAudit(rec *AuditRecord) error {
	key := []byte(fmt.Sprintf("%s/%s/%d", rec.ElectionID, rec.Nullifier, rec.At.UnixNano()))
	return setGob(s.db, auditPrefix, key, rec)
}

// WithTx runs fn with the same Store. Every write in this package opens
// and commits its own WriteTx, so the writes fn makes are not grouped
// into one transaction and are not rolled back together on failure.
func (s *kvStore) WithTx(fn func(Store) error) error {
	return fn(s)
}
