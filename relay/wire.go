package relay

import (
	"encoding/json"
	"time"
)

// Control-channel JSON messages (spec §4.C, §6): these are the relay's own
// in-band protocol frames, distinct from whatever opaque bytes the E2EE
// channel forwards through client/data sockets.

type syncMsg struct {
	Type          string   `json:"type"`
	ConnectionIDs []string `json:"connectionIds"`
}

type connectedMsg struct {
	Type         string `json:"type"`
	ConnectionID string `json:"connectionId"`
}

type disconnectedMsg struct {
	Type         string `json:"type"`
	ConnectionID string `json:"connectionId"`
}

type pongMsg struct {
	Type string `json:"type"`
	TS   int64  `json:"ts"`
}

type controlFrameType struct {
	Type string `json:"type"`
}

func encodeSync(ids []string) []byte {
	if ids == nil {
		ids = []string{}
	}
	b, _ := json.Marshal(syncMsg{Type: "sync", ConnectionIDs: ids})
	return b
}

func encodeConnected(cid string) []byte {
	b, _ := json.Marshal(connectedMsg{Type: "connected", ConnectionID: cid})
	return b
}

func encodeDisconnected(cid string) []byte {
	b, _ := json.Marshal(disconnectedMsg{Type: "disconnected", ConnectionID: cid})
	return b
}

func encodePong() []byte {
	b, _ := json.Marshal(pongMsg{Type: "pong", TS: time.Now().UnixMilli()})
	return b
}

// isPingFrame best-effort JSON-decodes a daemon control frame and reports
// whether it is exactly {"type":"ping"} (spec §4.C "Routing").
func isPingFrame(data []byte) bool {
	var f controlFrameType
	if err := json.Unmarshal(data, &f); err != nil {
		return false
	}
	return f.Type == "ping"
}
