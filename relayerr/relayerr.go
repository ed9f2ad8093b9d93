// Package relayerr provides a structured, programmatically identifiable
// error type for caller-facing relay client and E2EE channel operations.
package relayerr

import "fmt"

// Path identifies which side of a rendezvous this error originated from.
type Path string

const (
	PathDaemon Path = "daemon"
	PathClient Path = "client"
)

// Stage identifies which step of the connect/handshake stack failed.
type Stage string

const (
	StageValidate  Stage = "validate"
	StageConnect   Stage = "connect"
	StageAttach    Stage = "attach"
	StageHandshake Stage = "handshake"
	StageChannel   Stage = "channel"
	StageClose     Stage = "close"
)

// Code is a stable, programmatic error identifier for user-facing operations.
type Code string

const (
	CodeTimeout               Code = "timeout"
	CodeCanceled              Code = "canceled"
	CodeInvalidInput          Code = "invalid_input"
	CodeMissingServerID       Code = "missing_server_id"
	CodeMissingRelayEndpoint  Code = "missing_relay_endpoint"
	CodeMissingDaemonKey      Code = "missing_daemon_key"
	CodeInvalidDaemonKey      Code = "invalid_daemon_key"
	CodeInvalidRole           Code = "invalid_role"
	CodeMissingRole           Code = "missing_role"
	CodeInvalidVersion        Code = "invalid_version"
	CodeUpgradeRequired       Code = "upgrade_required"
	CodeDialFailed            Code = "dial_failed"
	CodeAttachFailed          Code = "attach_failed"
	CodeReplacedByNewConn     Code = "replaced_by_new_connection"
	CodeClientDisconnected    Code = "client_disconnected"
	CodeServerDisconnected    Code = "server_disconnected"
	CodeControlUnresponsive   Code = "control_unresponsive"
	CodeControlSendFailed     Code = "control_send_failed"
	CodeInvalidHello          Code = "invalid_hello"
	CodePlaintextOnEncrypted  Code = "plaintext_frame_on_encrypted_channel"
	CodeDecryptFailed         Code = "decrypt_failed"
	CodeChannelClosed         Code = "channel_closed"
	CodeNotConnected          Code = "not_connected"
)

// Error is a structured, programmatically identifiable error for user-facing operations.
type Error struct {
	Path  Path
	Stage Stage
	Code  Code
	Err   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s %s (%s): %v", e.Path, e.Stage, e.Code, e.Err)
	}
	return fmt.Sprintf("%s %s (%s)", e.Path, e.Stage, e.Code)
}

func (e *Error) Unwrap() error { return e.Err }

// Wrap builds a structured Error for the given path/stage/code.
func Wrap(path Path, stage Stage, code Code, err error) error {
	return &Error{Path: path, Stage: stage, Code: code, Err: err}
}
