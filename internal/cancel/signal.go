// Package cancel provides the cancellation capability threaded into an
// engine.Run (spec §9: "route cancellation through a capability passed
// into the Run, with stdin being one adapter"). Signal is the shared
// state; StdinAdapter and TelegramAdapter are two independent ways of
// setting it.
package cancel

import "sync/atomic"

// Signal is an engine.CancelSignal implementation: a flag any adapter can
// set, and the Controller polls on its tick (spec §5: "cancel_requested
// is advisory and only honored by the Controller on its next tick").
type Signal struct {
	flag int32
}

// New returns a fresh, unset Signal, constructed once per Run.
func New() *Signal {
	return &Signal{}
}

// Request flips the signal. Idempotent.
func (s *Signal) Request() {
	atomic.StoreInt32(&s.flag, 1)
}

// Requested reports whether cancellation has been requested.
func (s *Signal) Requested() bool {
	return atomic.LoadInt32(&s.flag) == 1
}
