// Package identity defines the external identity-provider contract: a
// verifiable-presentation verifier the engine only consumes as a boolean
// plus opaque claims, never implements. Credential verification
// (FIDO2/VP) is a deployment concern behind the Provider interface; this
// package ships only the contract and a deterministic test double.
package identity

import (
	"context"
	"fmt"
	"sync"
)

// Claims are the opaque, provider-specific assertions returned alongside a
// successful verification. The engine never interprets these beyond
// passing them through to the caller.
type Claims map[string]string

// Result is the identity provider's response shape.
type Result struct {
	Verified bool
	Error    string
	Claims   Claims
}

// Provider verifies a voter-supplied verifiable presentation against a
// challenge and domain. It returns only a boolean and opaque claims; it
// never returns or derives the nullifier, which remains solely a function
// of the voter-held secret.
type Provider interface {
	Verify(ctx context.Context, presentation []byte, challenge, domain string) (*Result, error)
}

// ErrUpstreamUnavailable marks a transient identity-provider fault the
// caller may retry with bounded backoff.
var ErrUpstreamUnavailable = fmt.Errorf("identity: provider unavailable")

// StubProvider is a deterministic test double: it verifies any
// presentation previously registered via Register, and fails closed
// otherwise. It never performs real credential verification and must not
// be wired in a production deployment.
type StubProvider struct {
	mu       sync.Mutex
	accepted map[string]Claims // presentation fingerprint -> claims
}

// NewStubProvider returns an empty StubProvider.
func NewStubProvider() *StubProvider {
	return &StubProvider{accepted: make(map[string]Claims)}
}

// Register marks a presentation as one the stub should accept, along with
// the claims it should return.
func (p *StubProvider) Register(presentation []byte, claims Claims) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.accepted[string(presentation)] = claims
}

// Verify implements Provider.
func (p *StubProvider) Verify(_ context.Context, presentation []byte, _, _ string) (*Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	claims, ok := p.accepted[string(presentation)]
	if !ok {
		return &Result{Verified: false, Error: "presentation not recognized by stub"}, nil
	}
	return &Result{Verified: true, Claims: claims}, nil
}
