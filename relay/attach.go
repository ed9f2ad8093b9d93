package relay

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"

	"github.com/relaybridge/relaybridge/relayerr"
)

// attachParams is the parsed and validated `/ws` query string (spec §4.C
// "Attachment URL parameters").
type attachParams struct {
	Role         Role
	ServerID     string
	ConnectionID string // empty if omitted
	Version      string // "1" or "2"
}

// parseAttach validates the query parameters of a relay attach request.
// It returns an httpError on any violation, matching the documented 400/426
// mapping (spec §4.C, §7).
func parseAttach(r *http.Request) (attachParams, *httpError) {
	q := r.URL.Query()

	roleStr := q.Get("role")
	switch roleStr {
	case "":
		return attachParams{}, &httpError{status: http.StatusBadRequest, code: relayerr.CodeMissingRole, msg: "missing role"}
	case "server", "client":
	default:
		return attachParams{}, &httpError{status: http.StatusBadRequest, code: relayerr.CodeInvalidRole, msg: "invalid role"}
	}

	serverID := q.Get("serverId")
	if serverID == "" {
		return attachParams{}, &httpError{status: http.StatusBadRequest, code: relayerr.CodeMissingServerID, msg: "missing serverId"}
	}

	version := q.Get("v")
	if version == "" {
		version = "1"
	}
	if version != "1" && version != "2" {
		return attachParams{}, &httpError{status: http.StatusBadRequest, code: relayerr.CodeInvalidVersion, msg: "invalid v"}
	}

	if !websocketUpgradeRequested(r) {
		return attachParams{}, &httpError{status: http.StatusUpgradeRequired, code: relayerr.CodeUpgradeRequired, msg: "upgrade required"}
	}

	connectionID := q.Get("connectionId")
	if version == "1" {
		// v1 sockets always have connectionId=null (Testable Property #4);
		// a v1 attach request never carries a meaningful connectionId even
		// if the query string happens to include one.
		connectionID = ""
	}

	return attachParams{
		Role:         Role(roleStr),
		ServerID:     serverID,
		ConnectionID: connectionID,
		Version:      version,
	}, nil
}

func websocketUpgradeRequested(r *http.Request) bool {
	return headerContainsToken(r.Header.Get("Connection"), "upgrade") &&
		httpEqualFold(r.Header.Get("Upgrade"), "websocket")
}

func httpEqualFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

func headerContainsToken(header, token string) bool {
	start := 0
	for i := 0; i <= len(header); i++ {
		if i == len(header) || header[i] == ',' {
			field := trimSpace(header[start:i])
			if httpEqualFold(field, token) {
				return true
			}
			start = i + 1
		}
	}
	return false
}

func trimSpace(s string) string {
	for len(s) > 0 && (s[0] == ' ' || s[0] == '\t') {
		s = s[1:]
	}
	for len(s) > 0 && (s[len(s)-1] == ' ' || s[len(s)-1] == '\t') {
		s = s[:len(s)-1]
	}
	return s
}

// httpError is a request-level failure mapped directly to an HTTP status
// (spec §7 "Request-level" error kind).
type httpError struct {
	status int
	code   relayerr.Code
	msg    string
}

func (e *httpError) Error() string { return e.msg }

// mintConnectionID generates a v2 connection id of the documented shape
// `conn_<16 hex chars>` (spec §4.C "Client socket").
func mintConnectionID() string {
	var b [8]byte
	_, _ = rand.Read(b[:])
	return "conn_" + hex.EncodeToString(b[:])
}
