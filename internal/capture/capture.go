// Package capture converts user events on the rendered document into
// protocol interaction messages.
//
// Capture is delegated: one handler per event class bound to the document
// root, not one per descendant. An event qualifies only if its target node
// sits inside the currently armed root and carries a non-empty id
// attribute; anything else is dropped with a diagnostic log. Anonymous
// elements are ignored on purpose — it trades a little coverage for a
// stable, low-noise signal upstream.
package capture

import (
	"log/slog"
	"sync"

	"github.com/supreme-gg-gg/multiflex/internal/protocol"
	"golang.org/x/net/html"
)

// Event is a user action observed on the document.
type Event struct {
	Action protocol.Action
	Target *html.Node
	// Value is the element's current value, meaningful for change events.
	Value string
}

// Sink receives qualifying interactions.
type Sink func(protocol.Interaction)

// Capture holds the delegated handlers for the active document root.
type Capture struct {
	mu   sync.Mutex
	root *html.Node
	sink Sink
}

// New creates a Capture delivering interactions to sink.
func New(sink Sink) *Capture {
	return &Capture{sink: sink}
}

// Arm binds capture to a new document root, replacing any previous
// binding. Nodes from an earlier root are no longer reachable and their
// events will be dropped.
func (c *Capture) Arm(root *html.Node) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.root = root
}

// Disarm detaches capture from the current root.
func (c *Capture) Disarm() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.root = nil
}

// HandleEvent inspects one event and forwards it upstream if it
// qualifies. It reports whether an interaction message was produced.
func (c *Capture) HandleEvent(ev Event) bool {
	c.mu.Lock()
	root := c.root
	c.mu.Unlock()

	if root == nil || ev.Target == nil {
		return false
	}
	if ev.Target.Type != html.ElementNode {
		return false
	}
	if !within(root, ev.Target) {
		slog.Debug("Interaction dropped: target outside current document", "action", ev.Action)
		return false
	}

	id := Attr(ev.Target, "id")
	if id == "" {
		slog.Debug("Interaction dropped: element has no id", "action", ev.Action, "element_type", ev.Target.Data)
		return false
	}

	msg := protocol.Interaction{
		Type:        protocol.TypeInteraction,
		Action:      ev.Action,
		ElementID:   id,
		ElementType: ev.Target.Data,
	}
	if ev.Action == protocol.ActionChange {
		msg.Value = ev.Value
	}

	if c.sink != nil {
		c.sink(msg)
	}
	return true
}

// Attr returns the value of the named attribute, or "" if absent.
func Attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// within reports whether n is root or one of its descendants, walking up
// the parent chain as a delegated handler would at dispatch time.
func within(root, n *html.Node) bool {
	for p := n; p != nil; p = p.Parent {
		if p == root {
			return true
		}
	}
	return false
}
