// Package relay implements the rendezvous relay: the WebSocket-facing server
// that bridges a daemon and its clients without ever seeing plaintext. It
// speaks two protocol versions (spec §4.C) behind one `/ws` endpoint,
// selected by the `v` query parameter, each with its own session type but a
// shared session table, socket attach path, and connection accounting.
package relay

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/relaybridge/relaybridge/observability"
	"github.com/relaybridge/relaybridge/realtime/ws"
)

// Stats captures a snapshot of relay server counts.
type Stats struct {
	ConnCount    int64
	SessionCount int
}

// Server terminates relay WebSocket connections and routes frames between
// attached daemon and client sockets, one session per (version, serverId).
type Server struct {
	cfg Config
	obs observability.RelayObserver

	allowedOrigins []string
	allowNoOrigin  bool
	maxConns       int64

	mu       sync.Mutex
	sessions map[sessionKey]session

	connCount int64
	connSet   sync.Map // key: *websocket.Conn, value: struct{}
}

// ServerOptions configures fields Config intentionally leaves out of the
// routing-level Config (origin policy, connection cap) because they belong
// to the HTTP surface, not to session behavior.
type ServerOptions struct {
	AllowedOrigins []string
	AllowNoOrigin  bool
	MaxConns       int // 0 means unlimited.
}

// New builds a relay Server. cfg is copied and defaulted.
func New(cfg Config, opts ServerOptions) *Server {
	cfg.applyDefaults()
	return &Server{
		cfg:            cfg,
		obs:            cfg.Observer,
		allowedOrigins: opts.AllowedOrigins,
		allowNoOrigin:  opts.AllowNoOrigin,
		maxConns:       int64(opts.MaxConns),
		sessions:       make(map[sessionKey]session),
	}
}

// Stats returns a snapshot of current connection and session counts.
func (s *Server) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		ConnCount:    atomic.LoadInt64(&s.connCount),
		SessionCount: len(s.sessions),
	}
}

// Register wires the relay's endpoints onto mux: the WebSocket attach path
// at cfg.Path, and JSON/plaintext health probes at /health and /healthz.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc(s.cfg.Path, s.handleWS)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
}

func (s *Server) checkOrigin(r *http.Request) bool {
	return ws.IsOriginAllowed(r, s.allowedOrigins, s.allowNoOrigin)
}

func (s *Server) trackConn(c *websocket.Conn) bool {
	if s.maxConns > 0 {
		n := atomic.AddInt64(&s.connCount, 1)
		if n > s.maxConns {
			n = atomic.AddInt64(&s.connCount, -1)
			s.obs.ConnCount(n)
			return false
		}
		s.obs.ConnCount(n)
	} else {
		s.obs.ConnCount(atomic.AddInt64(&s.connCount, 1))
	}
	s.connSet.Store(c, struct{}{})
	return true
}

func (s *Server) untrackConn(c *websocket.Conn) {
	if _, ok := s.connSet.LoadAndDelete(c); !ok {
		return
	}
	s.obs.ConnCount(atomic.AddInt64(&s.connCount, -1))
}

// sessionFor returns the session for key, creating it on first use (spec
// §4.C "Session table": sessions are created lazily on first attach and
// removed once empty).
func (s *Server) sessionFor(key sessionKey) session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[key]
	if ok {
		return sess
	}
	if key.version == "1" {
		sess = newV1Session(s.obs)
	} else {
		sess = newV2Session(s.cfg, s.obs)
	}
	s.sessions[key] = sess
	s.obs.SessionCount(len(s.sessions))
	return sess
}

// reapIfEmpty removes key's session once it has no attached sockets and no
// buffered state, so long-lived idle serverIds don't accumulate empty
// sessions in the table.
func (s *Server) reapIfEmpty(key sessionKey, sess session) {
	if !sess.isEmpty() {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.sessions[key]; ok && cur == sess && sess.isEmpty() {
		delete(s.sessions, key)
		s.obs.SessionCount(len(s.sessions))
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	params, herr := parseAttach(r)
	if herr != nil {
		s.obs.Attach(observability.AttachResultFail, attachFailureReason(herr))
		http.Error(w, herr.msg, herr.status)
		return
	}

	c, err := ws.Upgrade(w, r, ws.UpgraderOptions{CheckOrigin: s.checkOrigin})
	if err != nil {
		s.obs.Attach(observability.AttachResultFail, observability.AttachReasonUpgradeError)
		return
	}
	uc := c.Underlying()
	if !s.trackConn(uc) {
		s.obs.Attach(observability.AttachResultFail, observability.AttachReasonTooManyConnections)
		_ = c.CloseWithStatus(websocket.CloseTryAgainLater, "too many connections")
		return
	}

	key := sessionKey{version: params.Version, serverID: params.ServerID}
	sess := s.sessionFor(key)

	sock := newSocket(&connAdapter{c: c}, Attachment{
		ServerID:     params.ServerID,
		Role:         params.Role,
		Version:      params.Version,
		ConnectionID: params.ConnectionID,
		CreatedAt:    time.Now(),
	})
	sess.attach(sock, &params)
	sock.attachment.ConnectionID = params.ConnectionID
	s.obs.Attach(observability.AttachResultOK, observability.AttachReasonOK)

	s.pump(r.Context(), c, uc, sess, sock, key)
}

// pump reads frames off the underlying connection until it closes or errors,
// routing each one through the owning session, then runs the session's close
// path exactly once.
func (s *Server) pump(ctx context.Context, c *ws.Conn, uc *websocket.Conn, sess session, sock *socket, key sessionKey) {
	defer func() {
		sess.onClose(sock)
		s.untrackConn(uc)
		s.reapIfEmpty(key, sess)
	}()
	for {
		mt, data, err := c.ReadMessage(ctx)
		if err != nil {
			return
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}
		sess.onMessage(sock, data)
	}
}

func attachFailureReason(herr *httpError) observability.AttachReason {
	switch herr.status {
	case http.StatusUpgradeRequired:
		return observability.AttachReasonUpgradeRequired
	default:
		switch herr.code {
		case "missing_role":
			return observability.AttachReasonMissingRole
		case "invalid_role":
			return observability.AttachReasonInvalidRole
		case "missing_server_id":
			return observability.AttachReasonMissingServerID
		case "invalid_version":
			return observability.AttachReasonInvalidVersion
		default:
			return observability.AttachReasonUpgradeError
		}
	}
}

// connAdapter satisfies wsConn on top of the shared realtime/ws.Conn
// wrapper, writing with context.Background() and so no write deadline, since the relay's own
// backpressure model (the pending FIFO) is what bounds how much gets
// buffered, not per-write deadlines.
type connAdapter struct {
	c *ws.Conn
}

func (a *connAdapter) WriteText(data []byte) error {
	return a.c.WriteMessage(context.Background(), websocket.TextMessage, data)
}

func (a *connAdapter) CloseWithCode(code int, reason string) error {
	return a.c.CloseWithStatus(code, reason)
}
