package relay

import (
	"sync/atomic"
	"time"
)

// Role mirrors the relay's two socket roles (spec §3, §4.C).
type Role string

const (
	RoleServer Role = "server"
	RoleClient Role = "client"
)

// Attachment is the serialized metadata pinned to every socket on attach
// (spec §3 "Socket attachment"). It must be reconstructible from the
// attach URL alone, the way a hibernating runtime would rehydrate it.
type Attachment struct {
	ServerID     string
	Role         Role
	Version      string // "1" or "2"
	ConnectionID string // empty for v1 sockets and v2 control sockets
	CreatedAt    time.Time
}

// wsConn is the minimal send/close surface the relay needs from a socket,
// satisfied by *ws.Conn in production and a fake in tests.
type wsConn interface {
	WriteText(data []byte) error
	CloseWithCode(code int, reason string) error
}

var nextSocketID uint64

// socket is one attached WebSocket connection plus its routing tags.
type socket struct {
	id         uint64
	conn       wsConn
	attachment Attachment
	tags       []string
}

func newSocket(conn wsConn, a Attachment, tags ...string) *socket {
	return &socket{
		id:         atomic.AddUint64(&nextSocketID, 1),
		conn:       conn,
		attachment: a,
		tags:       tags,
	}
}

func (s *socket) send(data []byte) error {
	return s.conn.WriteText(data)
}

func (s *socket) close(code int, reason string) {
	_ = s.conn.CloseWithCode(code, reason)
}
