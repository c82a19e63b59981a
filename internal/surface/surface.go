// Package surface presents the latest server frame as a live document.
//
// A new frame fully replaces the previous one; nothing is merged or
// patched. Content arrives from the paired backend and is injected
// without sanitization — that trust boundary is deliberate, and stripping
// markup here would break the ids interaction capture depends on.
package surface

import (
	"fmt"
	"strings"
	"sync"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/supreme-gg-gg/multiflex/internal/capture"
	"github.com/supreme-gg-gg/multiflex/internal/protocol"
	"golang.org/x/net/html"
)

// Surface owns the current frame and re-arms capture on every swap.
type Surface struct {
	mu   sync.Mutex
	raw  string
	root *html.Node
	cpt  *capture.Capture
	md   *converter.Converter
}

// New creates an empty surface wired to the given capture.
func New(cpt *capture.Capture) *Surface {
	return &Surface{
		cpt: cpt,
		md: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
	}
}

// SetFrame replaces the rendered document with htmlContent and rebinds
// capture to the new tree. The previous tree is discarded wholesale.
func (s *Surface) SetFrame(htmlContent string) error {
	root, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		// html.Parse recovers from malformed markup; an error here means
		// the reader failed, which cannot happen for a string. Guard anyway.
		return fmt.Errorf("parse frame: %w", err)
	}

	s.mu.Lock()
	s.raw = htmlContent
	s.root = root
	s.mu.Unlock()

	if s.cpt != nil {
		s.cpt.Arm(root)
	}
	return nil
}

// HTML returns the current frame verbatim, empty before the first frame.
func (s *Surface) HTML() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.raw
}

// Find returns the element with the given id in the current frame, or nil.
func (s *Surface) Find(id string) *html.Node {
	s.mu.Lock()
	root := s.root
	s.mu.Unlock()
	if root == nil {
		return nil
	}
	return findByID(root, id)
}

// Click dispatches a pointer activation on the element with the given id.
// It reports whether an interaction message was produced.
func (s *Surface) Click(id string) bool {
	return s.dispatch(protocol.ActionClick, id, "")
}

// Change dispatches a value change on the element with the given id.
func (s *Surface) Change(id, value string) bool {
	return s.dispatch(protocol.ActionChange, id, value)
}

// Submit dispatches a form submission on the element with the given id.
func (s *Surface) Submit(id string) bool {
	return s.dispatch(protocol.ActionSubmit, id, "")
}

func (s *Surface) dispatch(action protocol.Action, id, value string) bool {
	target := s.Find(id)
	if target == nil || s.cpt == nil {
		return false
	}
	return s.cpt.HandleEvent(capture.Event{Action: action, Target: target, Value: value})
}

// Markdown projects the current frame to markdown for terminal display.
// Falls back to the collected plain text if conversion produces nothing.
func (s *Surface) Markdown() string {
	s.mu.Lock()
	raw := s.raw
	s.mu.Unlock()
	if raw == "" {
		return ""
	}
	result, err := s.md.ConvertString(raw)
	if err != nil || strings.TrimSpace(result) == "" {
		return s.Text()
	}
	return strings.TrimSpace(result)
}

// Text returns the visible text of the current frame.
func (s *Surface) Text() string {
	s.mu.Lock()
	root := s.root
	s.mu.Unlock()
	if root == nil {
		return ""
	}
	return collectText(root)
}

func findByID(n *html.Node, id string) *html.Node {
	if n.Type == html.ElementNode && capture.Attr(n, "id") == id {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findByID(c, id); found != nil {
			return found
		}
	}
	return nil
}

func collectText(n *html.Node) string {
	var sb strings.Builder
	var f func(*html.Node)
	f = func(n *html.Node) {
		if n.Type == html.TextNode {
			text := strings.TrimSpace(n.Data)
			if text != "" {
				if sb.Len() > 0 {
					sb.WriteByte(' ')
				}
				sb.WriteString(text)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			f(c)
		}
	}
	f(n)
	return sb.String()
}
