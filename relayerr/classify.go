package relayerr

import (
	"context"
	"errors"

	"github.com/gorilla/websocket"
)

// ClassifyConnectCode maps a dial-layer error to a stable Code.
func ClassifyConnectCode(err error) Code {
	return classifyContextCode(err, CodeDialFailed)
}

// ClassifyAttachCode maps an attach-layer error to a stable Code.
func ClassifyAttachCode(err error) Code {
	return classifyContextCode(err, CodeAttachFailed)
}

func classifyContextCode(err error, fallback Code) Code {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return CodeTimeout
	case errors.Is(err, context.Canceled):
		return CodeCanceled
	default:
		return fallback
	}
}

// ClassifyRelayCloseCode maps a relay websocket close code/reason to a stable Code.
//
// The relay signals attach rejections and routing-level teardown purely through close
// codes and reason text (see spec §7 and §6 "Close codes used by the relay").
func ClassifyRelayCloseCode(err error) (Code, bool) {
	var ce *websocket.CloseError
	if !errors.As(err, &ce) {
		return "", false
	}
	switch ce.Code {
	case websocket.CloseProtocolError:
		return CodeInvalidInput, true
	case 1008:
		return CodeReplacedByNewConn, true
	case 1001:
		return CodeClientDisconnected, true
	case 1012:
		return CodeServerDisconnected, true
	case 1011:
		if ce.Text == "Control send failed" {
			return CodeControlSendFailed, true
		}
		return CodeControlUnresponsive, true
	default:
		return "", false
	}
}
