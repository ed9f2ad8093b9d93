// Package observability defines the relay's metric event surface as a small
// observer interface, decoupled from any particular exporter, with its own
// event vocabulary: attach, replace, close, and control-probe events.
package observability

import (
	"sync"
	"sync/atomic"
	"time"
)

type AttachResult string

const (
	AttachResultOK   AttachResult = "ok"
	AttachResultFail AttachResult = "fail"
)

type AttachReason string

const (
	AttachReasonOK                 AttachReason = "ok"
	AttachReasonUpgradeError       AttachReason = "upgrade_error"
	AttachReasonMissingRole        AttachReason = "missing_role"
	AttachReasonInvalidRole        AttachReason = "invalid_role"
	AttachReasonMissingServerID    AttachReason = "missing_server_id"
	AttachReasonInvalidVersion     AttachReason = "invalid_version"
	AttachReasonUpgradeRequired    AttachReason = "upgrade_required"
	AttachReasonTooManyConnections AttachReason = "too_many_connections"
)

type ReplaceResult string

const (
	ReplaceResultOK ReplaceResult = "ok"
)

// CloseReason enumerates the relay's documented close-code events (spec §7).
type CloseReason string

const (
	CloseReasonReplacedByNewConnection CloseReason = "replaced_by_new_connection"
	CloseReasonClientDisconnected      CloseReason = "client_disconnected"
	CloseReasonServerDisconnected      CloseReason = "server_disconnected"
	CloseReasonControlUnresponsive     CloseReason = "control_unresponsive"
	CloseReasonControlSendFailed       CloseReason = "control_send_failed"
)

// ProbeStage identifies which half of the control-liveness probe fired
// (spec §4.C "Control-liveness probe").
type ProbeStage string

const (
	ProbeStageSyncNudge       ProbeStage = "sync_nudge"
	ProbeStageControlClosed   ProbeStage = "control_closed"
	ProbeStageSkippedNoClient ProbeStage = "skipped_no_client"
)

// RelayObserver receives relay routing-level metric events.
type RelayObserver interface {
	ConnCount(n int64)
	SessionCount(n int)
	Attach(result AttachResult, reason AttachReason)
	Replace(result ReplaceResult)
	Close(reason CloseReason)
	PairLatency(d time.Duration)
	ProbeFired(stage ProbeStage)
	ChannelOpen()
}

type noopRelayObserver struct{}

func (noopRelayObserver) ConnCount(int64)                   {}
func (noopRelayObserver) SessionCount(int)                  {}
func (noopRelayObserver) Attach(AttachResult, AttachReason) {}
func (noopRelayObserver) Replace(ReplaceResult)             {}
func (noopRelayObserver) Close(CloseReason)                 {}
func (noopRelayObserver) PairLatency(time.Duration)         {}
func (noopRelayObserver) ProbeFired(ProbeStage)             {}
func (noopRelayObserver) ChannelOpen()                      {}

// NoopRelayObserver is a zero-cost observer used when metrics are disabled.
var NoopRelayObserver RelayObserver = noopRelayObserver{}

// AtomicRelayObserver swaps its delegate at runtime, letting a binary flip
// between the no-op and Prometheus-backed observer without restarting the
// relay (e.g. the `/metrics` toggle in cmd/relay-server).
type AtomicRelayObserver struct {
	once sync.Once
	v    atomic.Value
}

type relayObserverHolder struct {
	obs RelayObserver
}

// NewAtomicRelayObserver returns an initialized atomic observer defaulting
// to the no-op implementation.
func NewAtomicRelayObserver() *AtomicRelayObserver {
	a := &AtomicRelayObserver{}
	a.once.Do(func() { a.v.Store(&relayObserverHolder{obs: NoopRelayObserver}) })
	return a
}

// Set replaces the delegate, falling back to the no-op observer on nil.
func (a *AtomicRelayObserver) Set(obs RelayObserver) {
	if obs == nil {
		obs = NoopRelayObserver
	}
	a.once.Do(func() { a.v.Store(&relayObserverHolder{obs: NoopRelayObserver}) })
	a.v.Store(&relayObserverHolder{obs: obs})
}

func (a *AtomicRelayObserver) load() RelayObserver {
	a.once.Do(func() { a.v.Store(&relayObserverHolder{obs: NoopRelayObserver}) })
	return a.v.Load().(*relayObserverHolder).obs
}

func (a *AtomicRelayObserver) ConnCount(n int64)  { a.load().ConnCount(n) }
func (a *AtomicRelayObserver) SessionCount(n int) { a.load().SessionCount(n) }
func (a *AtomicRelayObserver) Attach(result AttachResult, reason AttachReason) {
	a.load().Attach(result, reason)
}
func (a *AtomicRelayObserver) Replace(result ReplaceResult) { a.load().Replace(result) }
func (a *AtomicRelayObserver) Close(reason CloseReason)     { a.load().Close(reason) }
func (a *AtomicRelayObserver) PairLatency(d time.Duration)  { a.load().PairLatency(d) }
func (a *AtomicRelayObserver) ProbeFired(stage ProbeStage)  { a.load().ProbeFired(stage) }
func (a *AtomicRelayObserver) ChannelOpen()                 { a.load().ChannelOpen() }
