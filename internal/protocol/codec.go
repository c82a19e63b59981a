package protocol

import (
	"encoding/json"
	"fmt"
)

// InboundKind discriminates decoded inbound frames.
type InboundKind int

const (
	// KindHTMLUpdate carries a full replacement document fragment.
	KindHTMLUpdate InboundKind = iota
	// KindError carries a server-reported error message.
	KindError
	// KindUnknown is a structured frame with a type this client does not
	// understand. Callers should log and ignore it.
	KindUnknown
)

// Inbound is the decoded form of a frame received from the server.
type Inbound struct {
	Kind InboundKind
	// Type is the raw envelope tag, empty for legacy raw frames.
	Type string
	// HTMLContent is set for KindHTMLUpdate.
	HTMLContent string
	// SessionID is set when the server included one; empty otherwise.
	SessionID string
	// Message is set for KindError.
	Message string
}

// envelope mirrors the structured wire format.
type envelope struct {
	Type        string `json:"type"`
	HTMLContent string `json:"html_content"`
	SessionID   string `json:"session_id"`
	Message     string `json:"message"`
}

// Encode serialises an outbound message.
func Encode(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode outbound message: %w", err)
	}
	return data, nil
}

// Decode parses an inbound frame.
//
// A frame is structured if it is a JSON object with a non-empty "type"
// field. Anything else is the legacy path: the entire raw payload is
// treated as an HTML fragment. Decode never fails on the legacy path;
// a parse failure is an expected, handled branch.
func Decode(raw []byte) Inbound {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil || env.Type == "" {
		return Inbound{
			Kind:        KindHTMLUpdate,
			HTMLContent: string(raw),
		}
	}

	switch env.Type {
	case TypeHTMLUpdate:
		return Inbound{
			Kind:        KindHTMLUpdate,
			Type:        env.Type,
			HTMLContent: env.HTMLContent,
			SessionID:   env.SessionID,
		}
	case TypeError:
		return Inbound{
			Kind:    KindError,
			Type:    env.Type,
			Message: env.Message,
		}
	default:
		return Inbound{
			Kind: KindUnknown,
			Type: env.Type,
		}
	}
}
