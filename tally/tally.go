// Package tally aggregates the recorded ballots homomorphically,
// threshold-decrypts each candidate's aggregate with trustee substitution
// on a bad share, recovers the counts via bounded discrete log, and
// publishes the result with a Chaum-Pedersen decryption proof per trustee
// per candidate.
package tally

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"math/big"

	gethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/openballot/engine/elgamal"
	"github.com/openballot/engine/fault"
	"github.com/openballot/engine/group"
	"github.com/openballot/engine/ledger"
	"github.com/openballot/engine/threshold"
	"github.com/openballot/engine/zkp"
)

// TrusteePartial is one trustee's published contribution toward one
// candidate's decryption: the partial decryption value and its
// Chaum-Pedersen proof of correctness against the trustee's verification
// point.
type TrusteePartial struct {
	TrusteeIndex int
	D            *big.Int
	Proof        *zkp.DecryptionProof
}

// CandidateResult is the published per-candidate outcome: the
// homomorphic aggregate, the recovered count, and the quorum's
// partial-decryption proofs.
type CandidateResult struct {
	Aggregate *elgamal.Ciphertext
	Count     uint64
	Partials  []TrusteePartial
}

// Result bundles every candidate's outcome for one election's tally.
type Result struct {
	Candidates []CandidateResult
}

// proofBundle is the gob-encoded shape stored as the opaque
// TallyResultPayload.DecryptionProof on the ledger.
type proofBundle struct {
	PerCandidate [][]TrusteePartial
}

func init() {
	gob.Register(&elgamal.Ciphertext{})
}

// Run executes one tally end to end: reads VOTE entries from the ledger
// (not the local store), deduplicates by nullifier, aggregates per
// candidate, and threshold-decrypts with trustee substitution.
func Run(
	ctx context.Context,
	params *group.Params,
	candidates int,
	quorumK int,
	commitments []*big.Int,
	availableShares []*threshold.Share,
	maxMessage uint64,
	lg ledger.Ledger,
	electionID string,
) (*Result, error) {
	entries, err := lg.GetBulletinBoard(ctx, electionID)
	if err != nil {
		return nil, fault.ErrLedgerUnavailable.Withf("failed to read bulletin board: %v", err)
	}

	aggregates := make([]*elgamal.Ciphertext, candidates)
	for i := range aggregates {
		aggregates[i] = elgamal.Identity()
	}

	seen := make(map[string]bool)
	for _, e := range entries {
		if e.Type != ledger.EntryVote {
			continue
		}
		if seen[e.Nullifier] {
			continue
		}
		seen[e.Nullifier] = true

		payload, ok := e.Payload.(*ledger.VotePayload)
		if !ok {
			continue
		}
		n := params.ByteLen()
		if len(payload.Ciphertext) != candidates*2*n {
			return nil, fmt.Errorf("tally: malformed ballot for nullifier %s", e.Nullifier)
		}
		for l := 0; l < candidates; l++ {
			ct, err := elgamal.Unmarshal(params, payload.Ciphertext[l*2*n:(l+1)*2*n])
			if err != nil {
				return nil, fmt.Errorf("tally: failed to unmarshal candidate %d ciphertext: %w", l, err)
			}
			aggregates[l] = elgamal.Add(params, aggregates[l], ct)
		}
	}

	result := &Result{Candidates: make([]CandidateResult, candidates)}
	for l := 0; l < candidates; l++ {
		partials, err := decryptCandidate(params, commitments, availableShares, quorumK, aggregates[l])
		if err != nil {
			return nil, err
		}

		td := make([]*threshold.PartialDecryption, len(partials))
		for i, p := range partials {
			td[i] = &threshold.PartialDecryption{Index: p.TrusteeIndex, D: p.D}
		}
		count, err := threshold.CombinePartialDecryptions(params, aggregates[l], td, maxMessage)
		if err != nil {
			return nil, fault.ErrDlogOutOfRange.Withf("candidate %d: %v", l, err)
		}

		result.Candidates[l] = CandidateResult{
			Aggregate: aggregates[l],
			Count:     count.Uint64(),
			Partials:  partials,
		}
	}
	return result, nil
}

// decryptCandidate computes a quorum of k valid partial decryptions for
// one candidate's aggregate ciphertext, trying shares from
// availableShares in order and substituting past any that fail Feldman
// verification against commitments or whose decryption proof does not
// check out.
func decryptCandidate(
	params *group.Params,
	commitments []*big.Int,
	availableShares []*threshold.Share,
	k int,
	ct *elgamal.Ciphertext,
) ([]TrusteePartial, error) {
	var good []TrusteePartial
	for _, share := range availableShares {
		if len(good) >= k {
			break
		}
		if !threshold.VerifyShare(params, share, commitments) {
			continue
		}
		pd := threshold.ComputePartialDecryption(params, share, ct)
		proof, err := zkp.ProveDecryption(params, ct, share)
		if err != nil {
			continue
		}
		if !zkp.VerifyDecryption(params, ct, share.VerificationPoint, pd.D, proof) {
			continue
		}
		good = append(good, TrusteePartial{TrusteeIndex: share.Index, D: pd.D, Proof: proof})
	}
	if len(good) < k {
		return nil, fault.ErrInsufficientTrustees
	}
	return good, nil
}

// Publish serializes result as an opaque decryption-proof bundle and
// writes it to the ledger via StoreTallyResult.
func Publish(ctx context.Context, params *group.Params, lg ledger.Ledger, electionID string, result *Result) (*ledger.InvokeResult, error) {
	counts := make([]uint64, len(result.Candidates))
	aggHashes := make([]gethcommon.Hash, len(result.Candidates))
	bundle := proofBundle{PerCandidate: make([][]TrusteePartial, len(result.Candidates))}
	for i, c := range result.Candidates {
		counts[i] = c.Count
		aggHashes[i] = crypto.Keccak256Hash(c.Aggregate.Marshal(params))
		bundle.PerCandidate[i] = c.Partials
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(bundle); err != nil {
		return nil, fmt.Errorf("tally: failed to encode decryption proof bundle: %w", err)
	}

	payload := &ledger.TallyResultPayload{
		Counts:          counts,
		AggregateHashes: aggHashes,
		DecryptionProof: buf.Bytes(),
	}
	res, err := lg.StoreTallyResult(ctx, electionID, payload)
	if err != nil {
		return nil, fault.ErrLedgerUnavailable.Withf("failed to store tally result: %v", err)
	}
	return res, nil
}
