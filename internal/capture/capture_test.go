package capture

import (
	"strings"
	"testing"

	"github.com/supreme-gg-gg/multiflex/internal/protocol"
	"golang.org/x/net/html"
)

func parse(t *testing.T, fragment string) *html.Node {
	t.Helper()
	doc, err := html.Parse(strings.NewReader(fragment))
	if err != nil {
		t.Fatalf("parse fragment: %v", err)
	}
	return doc
}

func findByID(n *html.Node, id string) *html.Node {
	if n.Type == html.ElementNode && Attr(n, "id") == id {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findByID(c, id); found != nil {
			return found
		}
	}
	return nil
}

func TestHandleEvent_ClickWithID(t *testing.T) {
	doc := parse(t, `<div><button id="submit-btn">Go</button></div>`)

	var got []protocol.Interaction
	cpt := New(func(i protocol.Interaction) { got = append(got, i) })
	cpt.Arm(doc)

	target := findByID(doc, "submit-btn")
	if target == nil {
		t.Fatal("button not found in parsed fragment")
	}

	if !cpt.HandleEvent(Event{Action: protocol.ActionClick, Target: target}) {
		t.Fatal("Expected click to be forwarded")
	}
	if len(got) != 1 {
		t.Fatalf("Expected 1 interaction, got %d", len(got))
	}
	if got[0].Action != protocol.ActionClick || got[0].ElementID != "submit-btn" || got[0].ElementType != "button" {
		t.Errorf("Unexpected interaction: %+v", got[0])
	}
	if got[0].Value != "" {
		t.Errorf("Click must not carry a value, got %q", got[0].Value)
	}
}

func TestHandleEvent_AnonymousElementIgnored(t *testing.T) {
	doc := parse(t, `<div><button>Go</button></div>`)

	sent := 0
	cpt := New(func(protocol.Interaction) { sent++ })
	cpt.Arm(doc)

	var target *html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "button" {
			target = n
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	if target == nil {
		t.Fatal("button not found")
	}

	for _, action := range []protocol.Action{protocol.ActionClick, protocol.ActionChange, protocol.ActionSubmit} {
		if cpt.HandleEvent(Event{Action: action, Target: target, Value: "x"}) {
			t.Errorf("Expected %s on anonymous element to be dropped", action)
		}
	}
	if sent != 0 {
		t.Errorf("Expected no interactions, got %d", sent)
	}
}

func TestHandleEvent_ChangeCarriesValue(t *testing.T) {
	doc := parse(t, `<form><select id="color"><option>red</option></select></form>`)

	var got protocol.Interaction
	cpt := New(func(i protocol.Interaction) { got = i })
	cpt.Arm(doc)

	target := findByID(doc, "color")
	if !cpt.HandleEvent(Event{Action: protocol.ActionChange, Target: target, Value: "red"}) {
		t.Fatal("Expected change to be forwarded")
	}
	if got.Value != "red" {
		t.Errorf("Expected value red, got %q", got.Value)
	}
	if got.ElementType != "select" {
		t.Errorf("Expected element_type select, got %q", got.ElementType)
	}
}

func TestHandleEvent_StaleNodeAfterRearm(t *testing.T) {
	oldDoc := parse(t, `<div><button id="old-btn">Old</button></div>`)
	newDoc := parse(t, `<div><button id="new-btn">New</button></div>`)

	sent := 0
	cpt := New(func(protocol.Interaction) { sent++ })
	cpt.Arm(oldDoc)
	cpt.Arm(newDoc)

	stale := findByID(oldDoc, "old-btn")
	if cpt.HandleEvent(Event{Action: protocol.ActionClick, Target: stale}) {
		t.Error("Expected stale node from replaced content to be dropped")
	}

	fresh := findByID(newDoc, "new-btn")
	if !cpt.HandleEvent(Event{Action: protocol.ActionClick, Target: fresh}) {
		t.Error("Expected node from current content to be captured")
	}
	if sent != 1 {
		t.Errorf("Expected exactly 1 interaction, got %d", sent)
	}
}

func TestHandleEvent_Disarmed(t *testing.T) {
	doc := parse(t, `<div><button id="b">x</button></div>`)

	cpt := New(func(protocol.Interaction) { t.Error("sink must not fire when disarmed") })
	cpt.Arm(doc)
	cpt.Disarm()

	if cpt.HandleEvent(Event{Action: protocol.ActionClick, Target: findByID(doc, "b")}) {
		t.Error("Expected event on disarmed capture to be dropped")
	}
}
