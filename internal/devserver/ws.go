package devserver

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"
	"github.com/google/uuid"
)

// inboundMessage covers every client message shape on the stream.
type inboundMessage struct {
	Type        string `json:"type"`
	Prompt      string `json:"prompt"`
	UserID      string `json:"user_id"`
	Message     string `json:"message"`
	SessionID   string `json:"session_id"`
	Action      string `json:"action"`
	ElementID   string `json:"element_id"`
	ElementType string `json:"element_type"`
	Value       string `json:"value"`
}

type htmlUpdate struct {
	Type        string `json:"type"`
	HTMLContent string `json:"html_content"`
	SessionID   string `json:"session_id,omitempty"`
}

type errorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// serveWS runs one streaming session. With ?legacy=1 the server streams
// raw un-enveloped HTML, mimicking a backend that predates the
// structured envelope.
func (h *Handler) serveWS(w http.ResponseWriter, r *http.Request) {
	legacy := r.URL.Query().Get("legacy") == "1"

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr)
		}
	}()

	ctx := r.Context()
	sessionID := ""
	var prompt string

	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				slog.Debug("WebSocket closed by client", "session_id", sessionID)
			} else {
				slog.Warn("WebSocket read error", "error", err, "session_id", sessionID)
			}
			return
		}

		var msg inboundMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			if writeErr := h.writeJSON(ctx, ws, errorFrame{Type: "error", Message: "invalid message"}); writeErr != nil {
				slog.Debug("Failed to send error frame", "error", writeErr)
			}
			continue
		}

		var page string
		switch {
		case msg.Type == "" && msg.Prompt != "":
			sessionID = uuid.NewString()
			prompt = msg.Prompt
			slog.Info("Session started", "session_id", sessionID, "user_id", msg.UserID)
			page = promptPage(prompt, "")
		case msg.Type == "chat_message":
			slog.Info("Chat message", "session_id", msg.SessionID, "message", msg.Message)
			page = promptPage(prompt, "Updated for: "+msg.Message)
		case msg.Type == "interaction":
			slog.Info("Interaction", "session_id", sessionID,
				"action", msg.Action, "element_id", msg.ElementID)
			page = promptPage(prompt, fmt.Sprintf("You %sed %s (%s)", msg.Action, msg.ElementID, msg.ElementType))
		default:
			if err := h.writeJSON(ctx, ws, errorFrame{Type: "error", Message: "unsupported message type: " + msg.Type}); err != nil {
				slog.Debug("Failed to send error frame", "error", err)
			}
			continue
		}

		if legacy {
			if err := ws.Write(ctx, websocket.MessageText, []byte(page)); err != nil {
				slog.Warn("Failed to write legacy frame", "error", err)
				return
			}
			continue
		}
		if err := h.writeJSON(ctx, ws, htmlUpdate{Type: "html_update", HTMLContent: page, SessionID: sessionID}); err != nil {
			slog.Warn("Failed to write frame", "error", err)
			return
		}
	}
}

func (h *Handler) writeJSON(ctx context.Context, ws *websocket.Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return ws.Write(ctx, websocket.MessageText, data)
}

// promptPage fabricates a deterministic document for a prompt. Elements
// carry stable ids so interaction capture has something to observe.
func promptPage(prompt, note string) string {
	extra := ""
	if note != "" {
		extra = `<p id="note">` + html.EscapeString(note) + `</p>`
	}
	return fmt.Sprintf(
		`<div id="app"><h1 id="title">%s</h1>%s`+
			`<button id="regenerate">Regenerate</button>`+
			`<form id="feedback"><input id="comment"><button id="send">Send</button></form></div>`,
		html.EscapeString(prompt), extra)
}
