package main

import (
	"context"
	"crypto/sha256"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/openballot/engine/config"
	"github.com/openballot/engine/election"
	"github.com/openballot/engine/elgamal"
	"github.com/openballot/engine/eligibility"
	"github.com/openballot/engine/group"
	"github.com/openballot/engine/identity"
	"github.com/openballot/engine/ledger"
	"github.com/openballot/engine/lifecycle"
	"github.com/openballot/engine/log"
	"github.com/openballot/engine/merkle"
	"github.com/openballot/engine/store"
	"github.com/openballot/engine/submission"
	"github.com/openballot/engine/tally"
	"github.com/openballot/engine/threshold"
	"github.com/openballot/engine/verify"
	"github.com/openballot/engine/zkp"
	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/metadb"
)

const demoMaxMessage = 16

func demoCmd() *cobra.Command {
	var datadir string
	var candidateNames []string
	var chosen int

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run one election end to end: create, register, vote, close, tally, verify",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDemo(cmd.Context(), datadir, candidateNames, chosen)
		},
	}
	cmd.Flags().StringVar(&datadir, "datadir", "", "persistent store directory (empty uses the configured datadir, ~/.openballot by default)")
	cmd.Flags().StringSliceVar(&candidateNames, "candidates", []string{"Alice", "Bob", "Carol"}, "candidate names on the demo ballot")
	cmd.Flags().IntVar(&chosen, "vote-for", 1, "index into --candidates the demo voter casts a ballot for")
	return cmd
}

func runDemo(ctx context.Context, datadir string, candidateNames []string, chosen int) error {
	cfg, err := config.Load(nil)
	if err != nil {
		return fmt.Errorf("demo: failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("demo: invalid config: %w", err)
	}
	if datadir != "" {
		cfg.Datadir = datadir
	}
	log.Init(cfg.Log.Level, cfg.Log.Output, nil)
	log.Infow("starting demo election", "datadir", cfg.Datadir, "candidates", candidateNames)

	if chosen < 0 || chosen >= len(candidateNames) {
		return fmt.Errorf("demo: --vote-for %d out of range for %d candidates", chosen, len(candidateNames))
	}

	database, err := metadb.New(db.TypePebble, cfg.Datadir)
	if err != nil {
		return fmt.Errorf("demo: failed to open store database: %w", err)
	}
	defer database.Close()

	st := store.New(database)
	lg := ledger.NewInProcess()
	registry := election.New(st, lg)

	params := group.DefaultParams()
	if cfg.Group.CustomPrimeHex != "" {
		p, ok := new(big.Int).SetString(cfg.Group.CustomPrimeHex, 16)
		if !ok {
			return fmt.Errorf("demo: invalid group.customPrimeHex")
		}
		params = &group.Params{P: p, Q: new(big.Int).Rsh(p, 1), G: big.NewInt(cfg.Group.Generator)}
	}

	electionID := uuid.New().String()
	log.Infow("creating election", "electionID", electionID)
	if _, err := registry.CreateDraft(electionID); err != nil {
		return fmt.Errorf("demo: failed to create election: %w", err)
	}

	candidates := make([]lifecycle.Candidate, len(candidateNames))
	for i, name := range candidateNames {
		candidates[i] = lifecycle.Candidate{Index: i, Name: name}
	}
	creationTime := time.Now()
	start := creationTime.Add(20 * time.Millisecond)
	end := creationTime.Add(time.Hour)
	if err := registry.SetCandidates(electionID, candidates, start, end); err != nil {
		return fmt.Errorf("demo: failed to set candidates: %w", err)
	}

	log.Infow("running trustee key-generation ceremony", "k", cfg.Trustee.K, "n", cfg.Trustee.N)
	ceremony, err := threshold.GenerateThresholdKeys(params, cfg.Trustee.K, cfg.Trustee.N)
	if err != nil {
		return fmt.Errorf("demo: threshold keygen failed: %w", err)
	}
	if err := registry.SetTrusteeCeremony(electionID, ceremony, cfg.Trustee.K); err != nil {
		return fmt.Errorf("demo: failed to record trustee ceremony: %w", err)
	}

	tree, err := merkle.New(database, []byte("merkle/"+electionID+"/"), 20)
	if err != nil {
		return fmt.Errorf("demo: failed to open eligibility tree: %w", err)
	}
	voterKey := sha256.Sum256([]byte("demo-voter-1"))
	voterCommitment := sha256.Sum256([]byte("demo-voter-1-commitment-secret"))
	root, err := election.RegisterVoter(tree, voterKey[:], voterCommitment[:])
	if err != nil {
		return fmt.Errorf("demo: failed to register voter: %w", err)
	}
	if err := registry.SetMerkleRoot(electionID, root); err != nil {
		return fmt.Errorf("demo: failed to publish merkle root: %w", err)
	}

	if err := registry.ToPending(ctx, electionID, creationTime); err != nil {
		return fmt.Errorf("demo: draft->pending failed: %w", err)
	}
	time.Sleep(25 * time.Millisecond)
	activeNow := time.Now()
	if err := registry.ToActive(ctx, electionID, activeNow); err != nil {
		return fmt.Errorf("demo: pending->active failed: %w", err)
	}
	log.Info("election is now active")

	idProvider := identity.NewStubProvider()
	presentation := []byte("demo-voter-1-presentation")
	idProvider.Register(presentation, identity.Claims{"sub": "demo-voter-1"})
	idResult, err := idProvider.Verify(ctx, presentation, "demo-challenge", "electionctl")
	if err != nil || !idResult.Verified {
		return fmt.Errorf("demo: identity verification failed: %v", err)
	}
	voterRef := idResult.Claims["sub"]

	subEngine := submission.New(st, lg, eligibility.NewReferenceVerifier(), registry, submission.Config{
		TokenTTL:        cfg.Token.TTL,
		RetryMax:        cfg.Retry.MaxAttempts,
		RetryBackoffCap: cfg.Retry.BackoffCap,
	})

	token, err := subEngine.IssueToken(ctx, electionID, voterRef, time.Now())
	if err != nil {
		return fmt.Errorf("demo: failed to issue voting token: %w", err)
	}

	pk := ceremony.PublicKey
	ciphertexts := make([]*elgamal.Ciphertext, len(candidates))
	proofs := make([]*zkp.BinaryProof, len(candidates))
	for i := range candidates {
		bit := int64(0)
		if i == chosen {
			bit = 1
		}
		ct, r, err := elgamal.Encrypt(pk, big.NewInt(bit), 1)
		if err != nil {
			return fmt.Errorf("demo: failed to encrypt candidate %d: %w", i, err)
		}
		proof, err := zkp.ProveBinary(pk, ct, int(bit), r)
		if err != nil {
			return fmt.Errorf("demo: failed to prove candidate %d validity: %w", i, err)
		}
		ciphertexts[i] = ct
		proofs[i] = proof
	}

	nullifier := sha256.Sum256([]byte("demo-voter-1-nullifier"))
	eligProof, err := eligibility.ReferenceProof(3, root, []byte(electionID), nullifier[:])
	if err != nil {
		return fmt.Errorf("demo: failed to build eligibility proof: %w", err)
	}
	bundle := &eligibility.Bundle{
		Proof:      eligProof,
		MerkleRoot: root,
		ElectionID: []byte(electionID),
		Nullifier:  nullifier[:],
	}

	log.Infow("submitting ballot", "voteFor", candidateNames[chosen])
	submitResult, err := subEngine.Submit(ctx, submission.Request{
		Token:          token,
		ElectionID:     electionID,
		Ciphertexts:    ciphertexts,
		ValidityProofs: proofs,
		Eligibility:    bundle,
	}, time.Now())
	if err != nil {
		return fmt.Errorf("demo: ballot submission failed: %w", err)
	}
	log.Infow("ballot recorded", "verificationCode", submitResult.VerificationCode, "txID", submitResult.TxID)

	if err := registry.ToClosed(ctx, electionID, time.Now(), true); err != nil {
		return fmt.Errorf("demo: active->closed failed: %w", err)
	}
	log.Info("election closed")

	tallyResult, err := tally.Run(ctx, params, len(candidates), cfg.Trustee.K, ceremony.Commitments, ceremony.Shares, demoMaxMessage, lg, electionID)
	if err != nil {
		return fmt.Errorf("demo: tally failed: %w", err)
	}
	if err := registry.ToTallying(ctx, electionID, cfg.Trustee.K); err != nil {
		return fmt.Errorf("demo: closed->tallying failed: %w", err)
	}
	if _, err := tally.Publish(ctx, params, lg, electionID, tallyResult); err != nil {
		return fmt.Errorf("demo: failed to publish tally: %w", err)
	}
	if err := registry.ToCompleted(electionID); err != nil {
		return fmt.Errorf("demo: tallying->completed failed: %w", err)
	}

	for i, c := range tallyResult.Candidates {
		log.Infow("tally result", "candidate", candidateNames[i], "count", c.Count)
	}

	castCheck, err := verify.VerifyCastAsIntended(ctx, st, lg, submitResult.VerificationCode)
	if err != nil {
		return fmt.Errorf("demo: verify_cast_as_intended failed: %w", err)
	}
	log.Infow("verify_cast_as_intended", "found", castCheck.Found, "payloadMatches", castCheck.PayloadMatches)

	talliedCheck, err := verify.VerifyTalliedAsRecorded(ctx, params, ceremony.Commitments, len(candidates), demoMaxMessage, lg, electionID)
	if err != nil {
		return fmt.Errorf("demo: verify_tallied_as_recorded failed: %w", err)
	}
	for i, c := range talliedCheck.Candidates {
		log.Infow("verify_tallied_as_recorded", "candidate", candidateNames[i],
			"aggregateMatches", c.AggregateMatches, "allProofsValid", c.AllProofsValid, "countMatchesReported", c.CountMatchesReported)
	}

	log.Info("demo election completed successfully")
	return nil
}
