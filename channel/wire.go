package channel

import "encoding/json"

const (
	wireTypeHello = "e2ee_hello"
	wireTypeReady = "e2ee_ready"
)

type helloMsg struct {
	Type string `json:"type"`
	Key  string `json:"key"`
}

type readyMsg struct {
	Type string `json:"type"`
}

type typeOnly struct {
	Type string `json:"type"`
}

func encodeHello(keyB64 string) []byte {
	b, _ := json.Marshal(helloMsg{Type: wireTypeHello, Key: keyB64})
	return b
}

func encodeReady() []byte {
	b, _ := json.Marshal(readyMsg{Type: wireTypeReady})
	return b
}

// sniffType returns the JSON "type" field of b if b looks like a JSON object
// and parses cleanly, and whether that attempt succeeded. Any frame that
// does not start with '{' after UTF-8 decoding is never treated as JSON —
// this is the check that lets base64 ciphertext (which never starts with
// '{') flow through to the record path untouched (spec §9 Open Questions).
func sniffType(raw []byte) (string, bool) {
	trimmed := raw
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return "", false
	}
	var t typeOnly
	if err := json.Unmarshal(raw, &t); err != nil || t.Type == "" {
		return "", false
	}
	return t.Type, true
}

// preview returns a <=160 byte, UTF-8 safe-ish preview of a raw frame for
// diagnostic error messages (spec §4.B daemon construction, step 2).
func preview(raw []byte) string {
	const maxLen = 160
	if len(raw) <= maxLen {
		return string(raw)
	}
	return string(raw[:maxLen])
}
