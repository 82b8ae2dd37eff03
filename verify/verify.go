// Package verify is the public verification façade: cast-as-intended,
// recorded-as-cast, and tallied-as-recorded, each answered against the
// ledger itself rather than a local mirror, so any observer can run the
// same checks from the bulletin board alone.
package verify

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"math/big"

	gethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/openballot/engine/elgamal"
	"github.com/openballot/engine/group"
	"github.com/openballot/engine/ledger"
	"github.com/openballot/engine/store"
	"github.com/openballot/engine/threshold"
	"github.com/openballot/engine/zkp"
)

// CastAsIntendedResult is the outcome of verify_cast_as_intended.
type CastAsIntendedResult struct {
	Found          bool
	PayloadMatches bool
	TxID           gethcommon.Hash
	BlockNumber    uint64
}

// VerifyCastAsIntended resolves a voter-facing verification code to its
// receipt, then looks up the ledger VOTE entry whose payload hash equals
// the receipt's ciphertext hash. The receipt's ledger tx_id is not
// consulted, and since the lookup is by that hash, PayloadMatches is true
// whenever an entry is found. Looked up strictly by the opaque
// verification code, never by voter identity.
func VerifyCastAsIntended(ctx context.Context, st store.Store, lg ledger.Ledger, verificationCode string) (*CastAsIntendedResult, error) {
	receipt, err := st.GetReceiptByCode(verificationCode)
	if err != nil {
		if err == store.ErrNotFound {
			return &CastAsIntendedResult{Found: false}, nil
		}
		return nil, fmt.Errorf("verify: failed to load receipt: %w", err)
	}

	hash := gethcommon.BytesToHash(receipt.CiphertextHash)
	entry, found, err := lg.GetVoteByHash(ctx, receipt.ElectionID, hash)
	if err != nil {
		return nil, fmt.Errorf("verify: failed to query ledger: %w", err)
	}
	if !found {
		return &CastAsIntendedResult{Found: false}, nil
	}

	return &CastAsIntendedResult{
		Found:          true,
		PayloadMatches: entry.PayloadHash == hash,
		TxID:           entry.TxID,
		BlockNumber:    entry.Block,
	}, nil
}

// RecordedAsCastResult is the outcome of verify_recorded_as_cast.
type RecordedAsCastResult struct {
	Found       bool
	TxID        gethcommon.Hash
	BlockNumber uint64
}

// VerifyRecordedAsCast checks whether a specific ciphertext hash was
// recorded on the ledger for an election, independent of any receipt —
// the universal-verifiability query any observer can run.
func VerifyRecordedAsCast(ctx context.Context, lg ledger.Ledger, electionID string, ciphertextHash gethcommon.Hash) (*RecordedAsCastResult, error) {
	entry, found, err := lg.GetVoteByHash(ctx, electionID, ciphertextHash)
	if err != nil {
		return nil, fmt.Errorf("verify: failed to query ledger: %w", err)
	}
	if !found {
		return &RecordedAsCastResult{Found: false}, nil
	}
	return &RecordedAsCastResult{Found: true, TxID: entry.TxID, BlockNumber: entry.Block}, nil
}

// CandidateCheck is one candidate's sub-result within
// VerifyTalliedAsRecorded; each sub-check is reported independently.
type CandidateCheck struct {
	AggregateMatches     bool
	AllProofsValid       bool
	CountMatchesReported bool
	ReportedCount        uint64
	RecomputedCount      uint64
}

// TalliedAsRecordedResult is the outcome of verify_tallied_as_recorded.
type TalliedAsRecordedResult struct {
	Candidates []CandidateCheck
}

// TrusteePartial mirrors tally.TrusteePartial's wire shape: verify recomputes
// everything independently from the ledger rather than importing tally's
// aggregation logic, so this façade only needs the gob-decodable shape, not
// the engine that produced it.
type TrusteePartial struct {
	TrusteeIndex int
	D            *big.Int
	Proof        *zkp.DecryptionProof
}

// proofBundle mirrors tally's private wire shape field-for-field; gob
// encodes struct fields by name, so a structurally identical type in this
// package decodes the same bytes tally.Publish wrote.
type proofBundle struct {
	PerCandidate [][]TrusteePartial
}

func decodeProofBundle(data []byte) (*proofBundle, error) {
	var b proofBundle
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&b); err != nil {
		return nil, fmt.Errorf("verify: failed to decode decryption proof bundle: %w", err)
	}
	return &b, nil
}

// VerifyTalliedAsRecorded re-derives the homomorphic aggregate from
// every recorded VOTE entry, compares it against the published aggregate,
// verifies every trustee's Chaum-Pedersen partial-decryption proof
// against the published verification points, and re-derives each
// candidate's count via Lagrange recombination.
func VerifyTalliedAsRecorded(
	ctx context.Context,
	params *group.Params,
	commitments []*big.Int,
	candidates int,
	maxMessage uint64,
	lg ledger.Ledger,
	electionID string,
) (*TalliedAsRecordedResult, error) {
	entries, err := lg.GetBulletinBoard(ctx, electionID)
	if err != nil {
		return nil, fmt.Errorf("verify: failed to read bulletin board: %w", err)
	}

	aggregates := make([]*elgamal.Ciphertext, candidates)
	for i := range aggregates {
		aggregates[i] = elgamal.Identity()
	}
	seen := make(map[string]bool)
	for _, e := range entries {
		if e.Type != ledger.EntryVote || seen[e.Nullifier] {
			continue
		}
		seen[e.Nullifier] = true
		payload, ok := e.Payload.(*ledger.VotePayload)
		if !ok {
			continue
		}
		n := params.ByteLen()
		for l := 0; l < candidates; l++ {
			ct, err := elgamal.Unmarshal(params, payload.Ciphertext[l*2*n:(l+1)*2*n])
			if err != nil {
				return nil, fmt.Errorf("verify: failed to unmarshal candidate %d ciphertext: %w", l, err)
			}
			aggregates[l] = elgamal.Add(params, aggregates[l], ct)
		}
	}

	published, _, err := lg.GetTallyResult(ctx, electionID)
	if err != nil {
		return nil, fmt.Errorf("verify: failed to read published tally result: %w", err)
	}
	bundle, err := decodeProofBundle(published.DecryptionProof)
	if err != nil {
		return nil, err
	}

	out := &TalliedAsRecordedResult{Candidates: make([]CandidateCheck, candidates)}
	for l := 0; l < candidates; l++ {
		check := CandidateCheck{ReportedCount: published.Counts[l]}

		publishedAggHash := crypto.Keccak256Hash(aggregates[l].Marshal(params))
		check.AggregateMatches = publishedAggHash == published.AggregateHashes[l]

		allValid := true
		td := make([]*threshold.PartialDecryption, 0, len(bundle.PerCandidate[l]))
		for _, p := range bundle.PerCandidate[l] {
			v := verificationPointFor(params, commitments, p.TrusteeIndex)
			if v == nil || !zkp.VerifyDecryption(params, aggregates[l], v, p.D, p.Proof) {
				allValid = false
				continue
			}
			td = append(td, &threshold.PartialDecryption{Index: p.TrusteeIndex, D: p.D})
		}
		check.AllProofsValid = allValid

		recount, err := threshold.CombinePartialDecryptions(params, aggregates[l], td, maxMessage)
		if err == nil {
			check.RecomputedCount = recount.Uint64()
			check.CountMatchesReported = recount.Uint64() == published.Counts[l]
		}
		out.Candidates[l] = check
	}
	return out, nil
}

// verificationPointFor recomputes trustee i's public verification point
// V_i = product(Commitments[j]^(i^j)) mod p from the election's published
// Feldman commitments, the same formula threshold.VerifyShare checks a
// share against — the façade never needs the trustee's secret share.
func verificationPointFor(params *group.Params, commitments []*big.Int, index int) *big.Int {
	if len(commitments) == 0 {
		return nil
	}
	rhs := big.NewInt(1)
	idx := big.NewInt(int64(index))
	pow := big.NewInt(1)
	for _, c := range commitments {
		term := group.PowMod(c, pow, params.P)
		rhs = group.MulMod(rhs, term, params.P)
		pow = new(big.Int).Mul(pow, idx)
	}
	return rhs
}
