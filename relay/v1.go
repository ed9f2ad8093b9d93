package relay

import (
	"sync"

	"github.com/relaybridge/relaybridge/observability"
)

// v1Session implements the legacy bridged-pair protocol (spec §4.C "v1
// protocol (legacy)"): exactly one server socket and one client socket,
// verbatim forwarding, no buffering, no control channel.
type v1Session struct {
	mu  sync.Mutex
	ss  *socketSet
	obs observability.RelayObserver
}

func newV1Session(obs observability.RelayObserver) *v1Session {
	return &v1Session{ss: newSocketSet(), obs: obs}
}

func (v *v1Session) attach(sock *socket, params *attachParams) {
	v.mu.Lock()
	defer v.mu.Unlock()
	tag := string(params.Role)
	if existing := v.ss.byTagOne(tag); existing != nil {
		v.ss.remove(existing)
		existing.close(1008, "Replaced by new connection")
		v.obs.Close(observability.CloseReasonReplacedByNewConnection)
		v.obs.Replace(observability.ReplaceResultOK)
	}
	sock.tags = []string{tag}
	v.ss.insert(sock)
}

func (v *v1Session) onMessage(sock *socket, data []byte) {
	v.mu.Lock()
	defer v.mu.Unlock()
	peerTag := string(RoleClient)
	if sock.attachment.Role == RoleClient {
		peerTag = string(RoleServer)
	}
	// Forwarded verbatim, best-effort: v1 has no pending buffer and no
	// recovery path for a failed send, matching the documented legacy
	// behavior (the peer discovers a stalled link on its own next send).
	if peer := v.ss.byTagOne(peerTag); peer != nil {
		_ = peer.send(data)
	}
}

// onClose leaves the opposite side open (spec §9 "v1 one-sided close leak",
// preserved deliberately for compatibility — see DESIGN.md).
func (v *v1Session) onClose(sock *socket) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.ss.remove(sock)
}

func (v *v1Session) isEmpty() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.ss.isEmpty()
}
