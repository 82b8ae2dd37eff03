package identity

import (
	"context"
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestStubProviderAcceptsRegisteredPresentation(t *testing.T) {
	c := qt.New(t)
	p := NewStubProvider()
	presentation := []byte("vp-1")
	p.Register(presentation, Claims{"sub": "voter-1"})

	res, err := p.Verify(context.Background(), presentation, "challenge", "domain")
	c.Assert(err, qt.IsNil)
	c.Assert(res.Verified, qt.IsTrue)
	c.Assert(res.Claims["sub"], qt.Equals, "voter-1")
}

func TestStubProviderRejectsUnknownPresentation(t *testing.T) {
	c := qt.New(t)
	p := NewStubProvider()

	res, err := p.Verify(context.Background(), []byte("never-registered"), "c", "d")
	c.Assert(err, qt.IsNil)
	c.Assert(res.Verified, qt.IsFalse)
}
