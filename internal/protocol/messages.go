// Package protocol defines the wire messages exchanged with the MultiFlex
// backend over the streaming session connection.
//
// Field names are part of the wire contract and must match the backend
// exactly; see the codec in codec.go for the inbound decode rules.
package protocol

// Action classifies a captured user interaction.
type Action string

const (
	// ActionClick is a pointer activation on an element.
	ActionClick Action = "click"
	// ActionChange is a value change on an input-like element.
	ActionChange Action = "change"
	// ActionSubmit is a form submission.
	ActionSubmit Action = "submit"
)

// Outbound message type tags.
const (
	TypeChatMessage = "chat_message"
	TypeInteraction = "interaction"
)

// Inbound message type tags.
const (
	TypeHTMLUpdate = "html_update"
	TypeError      = "error"
)

// InitialPrompt opens a conversation. It is the only outbound message
// without a type tag: the server treats the first frame on a fresh
// connection as the initial request.
type InitialPrompt struct {
	Prompt string `json:"prompt"`
	UserID string `json:"user_id"`
}

// ChatMessage is a follow-up message on an established session.
type ChatMessage struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
}

// NewChatMessage builds a tagged chat message.
func NewChatMessage(message, sessionID, userID string) ChatMessage {
	return ChatMessage{
		Type:      TypeChatMessage,
		Message:   message,
		SessionID: sessionID,
		UserID:    userID,
	}
}

// Interaction reports a captured user action on the rendered surface.
// Value is set only for change actions.
type Interaction struct {
	Type        string `json:"type"`
	Action      Action `json:"action"`
	ElementID   string `json:"element_id"`
	ElementType string `json:"element_type"`
	Value       string `json:"value,omitempty"`
}
