package relayclient

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/relaybridge/relaybridge/channel"
	"github.com/relaybridge/relaybridge/e2eecrypto"
	"github.com/relaybridge/relaybridge/observability"
	"github.com/relaybridge/relaybridge/realtime/ws"
	"github.com/relaybridge/relaybridge/relayerr"
)

// DialOptions configures a relay connection attempt.
type DialOptions struct {
	Origin         string
	Header         http.Header
	ConnectTimeout time.Duration
}

func (o DialOptions) connectTimeout() time.Duration {
	if o.ConnectTimeout > 0 {
		return o.ConnectTimeout
	}
	return 10 * time.Second
}

// Session wraps an open E2EE Channel riding on a relay-attached websocket.
type Session struct {
	*channel.Channel
	transport *WSTransport
}

// Close closes the underlying websocket with a normal closure code; the
// channel itself has no separate close verb beyond the transport's.
func (s *Session) Close() error {
	return s.transport.Close(1000, "closed by caller")
}

// CloseCode classifies why the relay tore down this session's connection,
// if it was the relay (rather than the caller) that closed it.
func (s *Session) CloseCode() (relayerr.Code, bool) {
	return s.transport.CloseCode()
}

const (
	roleServer = "server"
	roleClient = "client"
)

func buildAttachURL(endpoint, path, role, serverID, connectionID, version string) (string, error) {
	u := url.URL{Scheme: "wss", Host: endpoint, Path: path}
	q := u.Query()
	q.Set("role", role)
	q.Set("serverId", serverID)
	if version != "" {
		q.Set("v", version)
	}
	if connectionID != "" {
		q.Set("connectionId", connectionID)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func dial(ctx context.Context, attachURL string, opts DialOptions) (*WSTransport, error) {
	h := opts.Header
	if h == nil {
		h = http.Header{}
	}
	if opts.Origin != "" {
		h.Set("Origin", opts.Origin)
	}
	connectCtx, cancel := context.WithTimeout(ctx, opts.connectTimeout())
	defer cancel()
	conn, _, err := ws.Dial(connectCtx, attachURL, ws.DialOptions{Header: h})
	if err != nil {
		return nil, relayerr.Wrap(relayerr.PathClient, relayerr.StageConnect, relayerr.CodeDialFailed, err)
	}
	return newWSTransport(conn), nil
}

// ConnectDaemonControl dials the relay as the v2 daemon control socket.
// Callers install handlers with SetHandlers to receive the relay's sync,
// connected and disconnected frames; unlike the client/server data paths,
// the control socket carries plain relay JSON, not an E2EE channel, so this
// returns the raw transport rather than a Session.
func ConnectDaemonControl(ctx context.Context, endpoint, path, serverID string, opts DialOptions) (*WSTransport, error) {
	attachURL, err := buildAttachURL(endpoint, path, roleServer, serverID, "", "2")
	if err != nil {
		return nil, err
	}
	return dial(ctx, attachURL, opts)
}

// ConnectDaemonData dials the relay as a v2 daemon data socket for cid and
// runs the daemon side of the E2EE handshake over it. obs may be nil; when
// set, its ChannelOpen event fires once the handshake completes.
func ConnectDaemonData(ctx context.Context, endpoint, path, serverID, cid string, daemonKeyPair e2eecrypto.KeyPair, events channel.Events, obs observability.RelayObserver) (*Session, error) {
	attachURL, err := buildAttachURL(endpoint, path, roleServer, serverID, cid, "2")
	if err != nil {
		return nil, err
	}
	t, err := dial(ctx, attachURL, DialOptions{})
	if err != nil {
		return nil, err
	}
	ch, err := channel.CreateDaemon(t, daemonKeyPair, withChannelOpenEvent(events, obs))
	if err != nil {
		_ = t.Close(1011, "handshake failed")
		return nil, relayerr.Wrap(relayerr.PathDaemon, relayerr.StageHandshake, relayerr.CodeInvalidHello, err)
	}
	return &Session{Channel: ch, transport: t}, nil
}

// ConnectClient dials the relay as role=client (v1 or v2), then runs the
// client side of the E2EE handshake against daemonPublicB64. obs may be
// nil; when set, its ChannelOpen event fires once the handshake completes.
func ConnectClient(ctx context.Context, endpoint, path, serverID, connectionID, version, daemonPublicB64 string, events channel.Events, obs observability.RelayObserver) (*Session, error) {
	attachURL, err := buildAttachURL(endpoint, path, roleClient, serverID, connectionID, version)
	if err != nil {
		return nil, err
	}
	t, err := dial(ctx, attachURL, DialOptions{})
	if err != nil {
		return nil, err
	}
	ch, err := channel.CreateClient(t, daemonPublicB64, withChannelOpenEvent(events, obs))
	if err != nil {
		_ = t.Close(1011, "handshake failed")
		return nil, relayerr.Wrap(relayerr.PathClient, relayerr.StageHandshake, relayerr.CodeInvalidHello, err)
	}
	return &Session{Channel: ch, transport: t}, nil
}

// withChannelOpenEvent wraps events.OnOpen so the channel reaching the open
// state also fires obs.ChannelOpen, without requiring the channel package
// itself to know about observability.
func withChannelOpenEvent(events channel.Events, obs observability.RelayObserver) channel.Events {
	if obs == nil {
		return events
	}
	onOpen := events.OnOpen
	events.OnOpen = func() {
		obs.ChannelOpen()
		if onOpen != nil {
			onOpen()
		}
	}
	return events
}
