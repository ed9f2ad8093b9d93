package relay

import (
	"log"
	"sync"
	"time"

	"github.com/relaybridge/relaybridge/observability"
)

// v2Session implements the current multi-connection protocol (spec §4.C
// "v2 protocol"): one control socket, one data socket per connectionId,
// any number of client sockets per connectionId, a pending-frame FIFO, and
// the control-liveness probe.
type v2Session struct {
	mu sync.Mutex

	ss        *socketSet
	pending   map[string]*pendingFIFO   // connectionId -> FIFO
	clients   map[string]int           // connectionId -> connected client socket count
	probes    map[string]chan struct{} // connectionId -> probe cancel channel
	createdAt time.Time

	cfg Config
	obs observability.RelayObserver
}

func newV2Session(cfg Config, obs observability.RelayObserver) *v2Session {
	return &v2Session{
		ss:        newSocketSet(),
		pending:   make(map[string]*pendingFIFO),
		clients:   make(map[string]int),
		probes:    make(map[string]chan struct{}),
		createdAt: time.Now(),
		cfg:       cfg,
		obs:       obs,
	}
}

func (v *v2Session) fifo(cid string) *pendingFIFO {
	f := v.pending[cid]
	if f == nil {
		f = newPendingFIFO(v.cfg.MaxPendingFramesPerConnection)
		v.pending[cid] = f
	}
	return f
}

func (v *v2Session) connectedClientIDsLocked() []string {
	ids := make([]string, 0, len(v.clients))
	for cid, n := range v.clients {
		if n > 0 {
			ids = append(ids, cid)
		}
	}
	return ids
}

// sendControl sends data to a control socket, enforcing spec §4.C "On
// daemon control send failure: close that control socket with 1011".
func (v *v2Session) sendControl(sock *socket, data []byte) {
	if err := sock.send(data); err != nil {
		v.ss.remove(sock)
		sock.close(1011, "Control send failed")
		v.obs.Close(observability.CloseReasonControlSendFailed)
	}
}

func (v *v2Session) sendToControlsLocked(data []byte) {
	for _, c := range v.ss.byTagAll("server-control") {
		v.sendControl(c, data)
	}
}

func (v *v2Session) attach(sock *socket, params *attachParams) {
	v.mu.Lock()
	defer v.mu.Unlock()

	switch params.Role {
	case RoleServer:
		if params.ConnectionID == "" {
			v.attachControlLocked(sock)
		} else {
			v.attachServerDataLocked(sock, params.ConnectionID)
		}
	case RoleClient:
		if params.ConnectionID == "" {
			params.ConnectionID = mintConnectionID()
		}
		v.attachClientLocked(sock, params.ConnectionID)
	}
}

func (v *v2Session) attachControlLocked(sock *socket) {
	if existing := v.ss.byTagOne("server-control"); existing != nil {
		v.ss.remove(existing)
		existing.close(1008, "Replaced by new connection")
		v.obs.Close(observability.CloseReasonReplacedByNewConnection)
		v.obs.Replace(observability.ReplaceResultOK)
	}
	sock.tags = []string{"server-control"}
	v.ss.insert(sock)
	v.sendControl(sock, encodeSync(v.connectedClientIDsLocked()))
}

func (v *v2Session) attachServerDataLocked(sock *socket, cid string) {
	tag := "server:" + cid
	if existing := v.ss.byTagOne(tag); existing != nil {
		v.ss.remove(existing)
		existing.close(1008, "Replaced by new connection")
		v.obs.Close(observability.CloseReasonReplacedByNewConnection)
		v.obs.Replace(observability.ReplaceResultOK)
	}
	sock.tags = []string{"server", tag}
	v.ss.insert(sock)

	fifo := v.pending[cid]
	if fifo == nil {
		return
	}
	for !fifo.isEmpty() {
		frame, ok := fifo.popFront()
		if !ok {
			break
		}
		if err := sock.send(frame); err != nil {
			fifo.pushFront(frame)
			break
		}
	}
	if fifo.isEmpty() {
		delete(v.pending, cid)
	}
}

func (v *v2Session) attachClientLocked(sock *socket, cid string) {
	sock.tags = []string{"client", "client:" + cid}
	v.ss.insert(sock)
	v.clients[cid]++
	v.sendToControlsLocked(encodeConnected(cid))
	v.obs.PairLatency(time.Since(sock.attachment.CreatedAt))
	v.scheduleProbeLocked(cid)
}

func (v *v2Session) onMessage(sock *socket, data []byte) {
	v.mu.Lock()
	defer v.mu.Unlock()

	switch sock.attachment.Role {
	case RoleClient:
		cid := sock.attachment.ConnectionID
		targets := v.ss.byTagAll("server:" + cid)
		if len(targets) == 0 {
			v.fifo(cid).push(append([]byte(nil), data...))
			return
		}
		for _, t := range targets {
			_ = t.send(data)
		}
	case RoleServer:
		if sock.attachment.ConnectionID == "" {
			if isPingFrame(data) {
				_ = sock.send(encodePong())
			}
			return
		}
		cid := sock.attachment.ConnectionID
		for _, t := range v.ss.byTagAll("client:" + cid) {
			// Per spec §4.C failure table: a client send failure is logged
			// and routing continues for the remaining client sockets.
			if err := t.send(data); err != nil {
				log.Printf("relay: send to client socket for %s failed: %v", cid, err)
			}
		}
	}
}

func (v *v2Session) onClose(sock *socket) {
	v.mu.Lock()
	defer v.mu.Unlock()

	switch sock.attachment.Role {
	case RoleServer:
		v.ss.remove(sock)
		if sock.attachment.ConnectionID == "" {
			// v2 daemon control close: do not cascade.
			return
		}
		cid := sock.attachment.ConnectionID
		for _, c := range v.ss.byTagAll("client:" + cid) {
			v.ss.remove(c)
			c.close(1012, "Server disconnected")
		}
		v.obs.Close(observability.CloseReasonServerDisconnected)
	case RoleClient:
		cid := sock.attachment.ConnectionID
		v.ss.remove(sock)
		v.clients[cid]--
		if v.clients[cid] > 0 {
			return
		}
		delete(v.clients, cid)
		v.cancelProbeLocked(cid)
		delete(v.pending, cid)
		for _, s := range v.ss.byTagAll("server:" + cid) {
			v.ss.remove(s)
			s.close(1001, "Client disconnected")
		}
		v.obs.Close(observability.CloseReasonClientDisconnected)
		v.sendToControlsLocked(encodeDisconnected(cid))
	}
}

func (v *v2Session) isEmpty() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.ss.isEmpty() && len(v.pending) == 0
}
