package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/supreme-gg-gg/multiflex/internal/capture"
	"github.com/supreme-gg-gg/multiflex/internal/domain"
	"github.com/supreme-gg-gg/multiflex/internal/protocol"
	"github.com/supreme-gg-gg/multiflex/internal/surface"
)

// DefaultReconnectDelay is the fixed backoff before a mid-session
// reconnection attempt.
const DefaultReconnectDelay = 2 * time.Second

// transcriptPreviewLen bounds the assistant transcript entry derived from
// a frame's visible text.
const transcriptPreviewLen = 200

// ErrNoPrompt is returned by Start when no prompt is available. Callers
// should fall back to the entry flow instead of rendering an error state.
var ErrNoPrompt = errors.New("no pending prompt")

// Transport is the connection surface the controller drives. *Conn
// implements it; tests substitute their own.
type Transport interface {
	Send(ctx context.Context, v any) error
	State() ConnState
	Close()
}

// TransportDialer opens a Transport reporting lifecycle through ev.
type TransportDialer func(ctx context.Context, url string, ev Events) Transport

// Options configures a Controller.
type Options struct {
	URL            string
	ReconnectDelay time.Duration
	// Dialer defaults to the websocket Dial in this package.
	Dialer TransportDialer
	// OnUpdate, if set, is invoked after every observable state change.
	OnUpdate func(State)
}

// State is an observable snapshot of the session.
type State struct {
	Loading      bool
	Connected    bool
	Reconnecting bool
	Processing   bool
	Err          string
	HTMLContent  string
	SessionID    string
	UserID       string
}

// Controller orchestrates one streaming session: it owns the connection,
// the render surface, and interaction capture, and exposes chat-style
// sends on top of the raw link.
type Controller struct {
	opts Options
	dial TransportDialer
	surf *surface.Surface
	cpt  *capture.Capture

	mu             sync.Mutex
	sess           *domain.Session
	conn           Transport
	ctx            context.Context
	cancel         context.CancelFunc
	initialPrompt  string
	initialSent    bool
	frameSeen      bool
	loading        bool
	connected      bool
	reconnecting   bool
	processing     bool
	errMsg         string
	htmlContent    string
	reconnectTimer *time.Timer
	closed         bool
}

// New creates a Controller. The surface and capture are owned by the
// controller; captured interactions flow back through the connection.
func New(opts Options) *Controller {
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = DefaultReconnectDelay
	}
	if opts.Dialer == nil {
		opts.Dialer = func(ctx context.Context, url string, ev Events) Transport {
			return Dial(ctx, url, ev)
		}
	}

	c := &Controller{opts: opts, dial: opts.Dialer}
	c.cpt = capture.New(c.sendInteraction)
	c.surf = surface.New(c.cpt)
	return c
}

// Surface returns the render surface for display and event dispatch.
func (c *Controller) Surface() *surface.Surface {
	return c.surf
}

// Start opens the connection and arranges for the initial prompt to be
// sent once the link is usable.
func (c *Controller) Start(ctx context.Context, prompt, userID string) error {
	if prompt == "" {
		return ErrNoPrompt
	}

	c.mu.Lock()
	if c.sess != nil {
		c.mu.Unlock()
		return errors.New("session already started")
	}
	c.sess = domain.NewSession(userID)
	c.initialPrompt = prompt
	c.loading = true
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.mu.Unlock()

	c.connect()
	c.notify()
	return nil
}

// connect replaces the connection with a fresh instance. Stale instances
// are fully closed first to avoid duplicate message delivery.
func (c *Controller) connect() {
	c.mu.Lock()
	stale := c.conn
	ctx := c.ctx
	c.mu.Unlock()

	if stale != nil {
		stale.Close()
	}

	conn := c.dial(ctx, c.opts.URL, Events{
		OnOpen:    c.handleOpen,
		OnMessage: c.handleMessage,
		OnError:   c.handleError,
		OnClose:   c.handleClose,
	})

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
}

func (c *Controller) handleOpen() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.connected = true
	c.reconnecting = false
	c.errMsg = ""

	// The initial prompt is sent exactly once per session. After a
	// reconnect that follows a rendered frame, the server retains the
	// conversation state; only explicit chat messages go out.
	sendInitial := !c.initialSent && !c.frameSeen
	if sendInitial {
		c.initialSent = true
		c.processing = true
		c.sess.Append(domain.ChatEntry{
			ID:        uuid.NewString(),
			Text:      c.initialPrompt,
			Sender:    domain.SenderUser,
			Timestamp: time.Now(),
		})
	}
	conn := c.conn
	ctx := c.ctx
	prompt := c.initialPrompt
	userID := c.sess.UserID
	c.mu.Unlock()

	if sendInitial && conn != nil {
		if err := conn.Send(ctx, protocol.InitialPrompt{Prompt: prompt, UserID: userID}); err != nil {
			slog.Error("Failed to send initial prompt", "error", err)
		}
	}
	c.notify()
}

func (c *Controller) handleMessage(raw []byte) {
	in := protocol.Decode(raw)

	switch in.Kind {
	case protocol.KindHTMLUpdate:
		c.applyFrame(in)
	case protocol.KindError:
		slog.Warn("Server reported error", "message", in.Message)
		c.mu.Lock()
		c.errMsg = in.Message
		c.processing = false
		c.mu.Unlock()
		c.notify()
	case protocol.KindUnknown:
		slog.Debug("Ignoring frame with unknown type", "type", in.Type)
	}
}

func (c *Controller) applyFrame(in protocol.Inbound) {
	if err := c.surf.SetFrame(in.HTMLContent); err != nil {
		slog.Error("Failed to render frame", "error", err)
		return
	}

	preview := c.surf.Text()
	if len(preview) > transcriptPreviewLen {
		preview = preview[:transcriptPreviewLen]
	}

	c.mu.Lock()
	c.frameSeen = true
	c.loading = false
	c.processing = false
	c.htmlContent = in.HTMLContent
	if in.SessionID != "" {
		c.sess.SessionID = in.SessionID
	}
	c.sess.Append(domain.ChatEntry{
		ID:        uuid.NewString(),
		Text:      preview,
		Sender:    domain.SenderAssistant,
		Timestamp: time.Now(),
	})
	c.mu.Unlock()
	c.notify()
}

func (c *Controller) handleError(err error) {
	slog.Warn("Connection error", "error", err)
}

func (c *Controller) handleClose(code websocket.StatusCode) {
	c.mu.Lock()
	c.connected = false

	if c.closed || code == websocket.StatusNormalClosure {
		// Client-initiated teardown, or a clean end of service. Neither
		// schedules a reconnect.
		c.mu.Unlock()
		c.notify()
		return
	}

	if !c.frameSeen {
		// Nothing was ever received: the link never worked. Surface a
		// fatal error instead of retrying into the void.
		c.loading = false
		c.errMsg = "connection to the server failed"
		c.mu.Unlock()
		c.notify()
		return
	}

	// Mid-session disconnect after content: the user is mid-task, so a
	// single attempt is scheduled; each further failure lands back here.
	c.reconnecting = true
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
	}
	c.reconnectTimer = time.AfterFunc(c.opts.ReconnectDelay, func() {
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return
		}
		c.mu.Unlock()
		c.connect()
	})
	c.mu.Unlock()
	c.notify()
}

// SendChat sends a follow-up message on the open connection. With the
// connection not open it is a logged no-op; it never fails the caller.
func (c *Controller) SendChat(message string) error {
	c.mu.Lock()
	conn := c.conn
	ctx := c.ctx
	sessionID := ""
	userID := ""
	if c.sess != nil {
		sessionID = c.sess.SessionID
		userID = c.sess.UserID
	}
	c.mu.Unlock()

	if conn == nil || conn.State() != StateOpen {
		slog.Warn("Chat message dropped: connection not open", "session_id", sessionID)
		return nil
	}

	c.mu.Lock()
	c.processing = true
	c.sess.Append(domain.ChatEntry{
		ID:        uuid.NewString(),
		Text:      message,
		Sender:    domain.SenderUser,
		Timestamp: time.Now(),
	})
	c.mu.Unlock()
	c.notify()

	return conn.Send(ctx, protocol.NewChatMessage(message, sessionID, userID))
}

// sendInteraction forwards a captured interaction on the open connection.
func (c *Controller) sendInteraction(msg protocol.Interaction) {
	c.mu.Lock()
	conn := c.conn
	ctx := c.ctx
	c.mu.Unlock()

	if conn == nil || conn.State() != StateOpen {
		slog.Warn("Interaction dropped: connection not open",
			"action", msg.Action, "element_id", msg.ElementID)
		return
	}
	if err := conn.Send(ctx, msg); err != nil {
		slog.Warn("Failed to send interaction", "error", err, "element_id", msg.ElementID)
	}
}

// State returns a snapshot of the observable session state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := State{
		Loading:      c.loading,
		Connected:    c.connected,
		Reconnecting: c.reconnecting,
		Processing:   c.processing,
		Err:          c.errMsg,
		HTMLContent:  c.htmlContent,
	}
	if c.sess != nil {
		s.SessionID = c.sess.SessionID
		s.UserID = c.sess.UserID
	}
	return s
}

// Transcript returns a copy of the local conversation history.
func (c *Controller) Transcript() []domain.ChatEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == nil {
		return nil
	}
	out := make([]domain.ChatEntry, len(c.sess.Transcript))
	copy(out, c.sess.Transcript)
	return out
}

// Close tears the session down: it cancels any scheduled reconnect and
// closes the connection with a normal closure code. Safe to call twice.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	conn := c.conn
	cancel := c.cancel
	c.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	if cancel != nil {
		cancel()
	}
}

func (c *Controller) notify() {
	if c.opts.OnUpdate != nil {
		c.opts.OnUpdate(c.State())
	}
}
