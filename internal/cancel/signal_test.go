package cancel

import (
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestSignal_RequestedReflectsRequest(t *testing.T) {
	s := New()
	if s.Requested() {
		t.Fatal("expected a fresh signal to not be requested")
	}
	s.Request()
	if !s.Requested() {
		t.Error("expected Requested() to be true after Request()")
	}
}

func TestSignal_RequestIsIdempotent(t *testing.T) {
	s := New()
	s.Request()
	s.Request()
	if !s.Requested() {
		t.Error("expected repeated Request() calls to remain requested")
	}
}

func TestStdinAdapter_RecognizesCancelCaseInsensitive(t *testing.T) {
	s := New()
	r := strings.NewReader("noise\nCaNcEl\nmore noise\n")
	StdinAdapter(r, s, zerolog.Nop())
	if !s.Requested() {
		t.Error("expected StdinAdapter to request cancellation on a case-insensitive 'cancel' line")
	}
}

func TestStdinAdapter_IgnoresUnrelatedLines(t *testing.T) {
	s := New()
	r := strings.NewReader("hello\nworld\n")
	StdinAdapter(r, s, zerolog.Nop())
	if s.Requested() {
		t.Error("expected StdinAdapter to leave the signal unrequested for unrelated input")
	}
}
