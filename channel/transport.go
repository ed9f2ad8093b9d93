package channel

// Frame is one message crossing the underlying transport. Text distinguishes
// a text frame (e.g. a WebSocket text message) from a binary one; the E2EE
// channel preserves whether a payload was bytes or UTF-8 text end to end.
type Frame struct {
	Text bool
	Data []byte
}

// Transport is the capability set the E2EE channel needs from whatever byte
// transport it rides on. Construction of a Channel replaces the transport's
// handlers wholesale (SetHandlers) the way the original callback-shaped
// transport is taken over on construction; swapping which handler is
// installed mid-handshake (buffering during async key derivation in
// daemon.go) is just another call to SetHandlers. The client side instead
// installs a single handler that dispatches on the Channel's state (see
// client.go's handleClientMessage); a re-hello changes no handlers.
type Transport interface {
	// Send writes one frame. It must not block indefinitely; callers treat
	// sends as best-effort non-blocking I/O per the relay's concurrency model.
	Send(f Frame) error
	// Close closes the transport with a WebSocket-style close code and reason.
	Close(code int, reason string) error
	// SetHandlers installs the callbacks the transport invokes for incoming
	// events. A nil handler is a no-op. Each call replaces the previous
	// handlers entirely.
	SetHandlers(onMessage func(Frame), onClose func(), onError func(error))
}

// Events are the Channel's own application-facing callbacks, fired after
// handshake/open-state processing. Any of them may be nil.
type Events struct {
	OnOpen    func()
	OnMessage func(plaintext []byte)
	OnClose   func()
	OnError   func(error)
}

func (e Events) fireOpen() {
	if e.OnOpen != nil {
		e.OnOpen()
	}
}

func (e Events) fireMessage(p []byte) {
	if e.OnMessage != nil {
		e.OnMessage(p)
	}
}

func (e Events) fireClose() {
	if e.OnClose != nil {
		e.OnClose()
	}
}

func (e Events) fireError(err error) {
	if e.OnError != nil {
		e.OnError(err)
	}
}
