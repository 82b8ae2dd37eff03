package fault

import (
	"context"
	"errors"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
)

func TestWithfPreservesCodeAndAppendsDetail(t *testing.T) {
	c := qt.New(t)
	wrapped := ErrTokenExpired.Withf("issued at %s", "2026-01-01")
	c.Assert(wrapped.Code, qt.Equals, CodeTokenExpired)
	c.Assert(wrapped.Error(), qt.Contains, "token expired")
	c.Assert(wrapped.Error(), qt.Contains, "issued at 2026-01-01")
}

func TestProofFaultsShareAGenericMessage(t *testing.T) {
	c := qt.New(t)
	c.Assert(ErrInvalidValidityProof.Error(), qt.Equals, ErrInvalidEligibilityProof.Error())
	c.Assert(ErrInvalidValidityProof.Code, qt.Not(qt.Equals), ErrInvalidEligibilityProof.Code)
}

func TestRetryableFamily(t *testing.T) {
	c := qt.New(t)
	c.Assert(ErrLedgerUnavailable.Retryable(), qt.IsTrue)
	c.Assert(ErrDuplicateNullifier.Retryable(), qt.IsFalse)
}

func TestRetrySucceedsWithinBudget(t *testing.T) {
	c := qt.New(t)
	attempts := 0
	err := Retry(context.Background(), 3, 10*time.Millisecond, func() error {
		attempts++
		if attempts < 2 {
			return ErrLedgerUnavailable
		}
		return nil
	})
	c.Assert(err, qt.IsNil)
	c.Assert(attempts, qt.Equals, 2)
}

func TestRetryStopsAfterMaxAttempts(t *testing.T) {
	c := qt.New(t)
	attempts := 0
	err := Retry(context.Background(), 3, 10*time.Millisecond, func() error {
		attempts++
		return ErrLedgerUnavailable
	})
	c.Assert(errors.Is(err, ErrLedgerUnavailable), qt.IsTrue)
	c.Assert(attempts, qt.Equals, 3)
}

func TestRetryDoesNotRetryNonRetryableFault(t *testing.T) {
	c := qt.New(t)
	attempts := 0
	err := Retry(context.Background(), 3, 10*time.Millisecond, func() error {
		attempts++
		return ErrDuplicateNullifier
	})
	c.Assert(errors.Is(err, ErrDuplicateNullifier), qt.IsTrue)
	c.Assert(attempts, qt.Equals, 1)
}

func TestRetryHonorsContextCancellation(t *testing.T) {
	c := qt.New(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	attempts := 0
	err := Retry(ctx, 3, 10*time.Millisecond, func() error {
		attempts++
		return ErrLedgerUnavailable
	})
	c.Assert(err, qt.Equals, context.Canceled)
	c.Assert(attempts, qt.Equals, 1)
}
