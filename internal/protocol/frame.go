// Package protocol implements the length-framed text codec the chart feed
// speaks (~m~<len>~m~<payload>) and the router that classifies decoded
// payloads before they reach the session layer.
package protocol

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"github.com/nvkrylov/tvchart-session/internal/domain"
)

const heartbeatPrefix = "~h~"

var frameDelimiter = regexp.MustCompile(`~m~\d+~m~`)

// Envelope is the wire shape of a client->server or server->client message:
// {"m": method, "p": params}.
type Envelope struct {
	M string        `json:"m"`
	P []interface{} `json:"p"`
}

// Encode serializes msg to minimal JSON and wraps it in a length-prefixed
// frame: ~m~<L>~m~<json>, where L is the UTF-8 byte length of the JSON.
func Encode(method string, params []interface{}) (string, error) {
	payload, err := json.Marshal(Envelope{M: method, P: params})
	if err != nil {
		return "", fmt.Errorf("%w: encode %s: %v", domain.ErrDecodeLocal, method, err)
	}
	return frame(string(payload)), nil
}

// EncodeHeartbeat wraps an already-received heartbeat payload (which
// itself begins with "~h~") in one more frame, for echoing back to the
// server verbatim.
func EncodeHeartbeat(payload string) string {
	return frame(payload)
}

func frame(payload string) string {
	return fmt.Sprintf("~m~%d~m~%s", len(payload), payload)
}

// Kind distinguishes a decoded chunk's nature.
type Kind int

const (
	KindMessage Kind = iota
	KindHeartbeat
)

// Chunk is one decoded unit out of Decode: either a parsed Envelope or a
// raw heartbeat token.
type Chunk struct {
	Kind      Kind
	Envelope  Envelope
	Heartbeat string // raw "~h~<n>" payload, set only when Kind == KindHeartbeat
}

// Decode splits buf on the ~m~<len>~m~ delimiter and decodes each non-empty
// chunk. Chunks beginning with "~h~" (whether or not they parse as JSON)
// yield a Heartbeat chunk. Other malformed JSON chunks are dropped
// (non-fatal) — Decode is pure and restartable, and handles any number of
// concatenated frames in a single call.
func Decode(buf string) []Chunk {
	parts := frameDelimiter.Split(buf, -1)
	chunks := make([]Chunk, 0, len(parts))
	for _, part := range parts {
		if part == "" {
			continue
		}
		if strings.HasPrefix(part, heartbeatPrefix) {
			chunks = append(chunks, Chunk{Kind: KindHeartbeat, Heartbeat: part})
			continue
		}
		var env Envelope
		dec := json.NewDecoder(strings.NewReader(part))
		dec.UseNumber() // preserve price precision instead of float64 rounding
		if err := dec.Decode(&env); err != nil {
			// Decode-local error: skip this chunk only (§7). Decode has no
			// logger, so the dropped chunk is not logged.
			continue
		}
		chunks = append(chunks, Chunk{Kind: KindMessage, Envelope: env})
	}
	return chunks
}

const sessionIDAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// NewChartSessionID generates a random lowercase-alphanumeric id of the
// shape "cs_xxxxxxxxxxxx" (12 chars after the prefix).
func NewChartSessionID() (string, error) {
	var sb strings.Builder
	sb.WriteString(domain.ChartSessionPrefix)
	for i := 0; i < 12; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(sessionIDAlphabet))))
		if err != nil {
			return "", fmt.Errorf("%w: generate session id: %v", domain.ErrTransport, err)
		}
		sb.WriteByte(sessionIDAlphabet[n.Int64()])
	}
	return sb.String(), nil
}
