package relay

// session is a per-(version, serverId) routing state machine (spec §4.C
// "Session table"). Exactly one concrete implementation exists per
// version; per spec §9's "dual protocol versions" design note, a session
// never branches on version again once constructed. Each method takes the
// session's own lock internally, giving the single-threaded-per-session
// serialization spec §5 requires without a separate generic wrapper —
// timers owned by the session (the v2 control probe) re-enter through the
// same locked methods.
type session interface {
	// attach assigns tags, inserts sock into the session's socket set, and
	// performs whatever version-specific side effects (replace, sync,
	// probe scheduling) the attach implies. It mutates params.ConnectionID
	// when the session mints one.
	attach(sock *socket, params *attachParams)
	onMessage(sock *socket, data []byte)
	onClose(sock *socket)
	isEmpty() bool
}

// sessionKey identifies a session by protocol version and serverId (spec
// §3: "a v1 session and a v2 session for the same serverId are different
// objects").
type sessionKey struct {
	version  string
	serverID string
}
