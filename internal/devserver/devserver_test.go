package devserver_test

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/supreme-gg-gg/multiflex/internal/agent"
	"github.com/supreme-gg-gg/multiflex/internal/devserver"
	"github.com/supreme-gg-gg/multiflex/internal/docs"
	"github.com/supreme-gg-gg/multiflex/internal/session"
)

const stateTimeout = 5 * time.Second

// wsURL converts an httptest base URL into the streaming endpoint URL.
func wsURL(srv *httptest.Server, query string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws" + query
}

// waitFor drains state updates until pred matches or the timeout hits.
func waitFor(t *testing.T, updates <-chan session.State, pred func(session.State) bool) session.State {
	t.Helper()
	deadline := time.After(stateTimeout)
	for {
		select {
		case s := <-updates:
			if pred(s) {
				return s
			}
		case <-deadline:
			t.Fatal("Timed out waiting for session state")
		}
	}
}

func TestSessionAgainstServer(t *testing.T) {
	srv := httptest.NewServer(devserver.NewHandler().Routes())
	defer srv.Close()

	updates := make(chan session.State, 64)
	ctrl := session.New(session.Options{
		URL:      wsURL(srv, ""),
		OnUpdate: func(s session.State) { updates <- s },
	})
	defer ctrl.Close()

	if err := ctrl.Start(context.Background(), "Build a dashboard", "alice"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	s := waitFor(t, updates, func(s session.State) bool { return s.HTMLContent != "" })
	if s.SessionID == "" {
		t.Error("Expected a session id after the first frame")
	}
	if !strings.Contains(s.HTMLContent, "Build a dashboard") {
		t.Errorf("Expected frame to reflect the prompt, got %s", s.HTMLContent)
	}
	if s.Loading || s.Processing {
		t.Errorf("Expected loading and processing cleared, got %+v", s)
	}

	// Follow-up chat produces a fresh frame carrying the message.
	if err := ctrl.SendChat("make it blue"); err != nil {
		t.Fatalf("SendChat failed: %v", err)
	}
	s = waitFor(t, updates, func(s session.State) bool {
		return strings.Contains(s.HTMLContent, "make it blue")
	})

	// A click on a rendered element round-trips as an interaction.
	if !ctrl.Surface().Click("regenerate") {
		t.Fatal("Expected click on regenerate to produce an interaction")
	}
	waitFor(t, updates, func(s session.State) bool {
		return strings.Contains(s.HTMLContent, "clicked regenerate")
	})

	entries := ctrl.Transcript()
	if len(entries) < 2 {
		t.Fatalf("Expected transcript entries for prompt and responses, got %d", len(entries))
	}
	if entries[0].Text != "Build a dashboard" {
		t.Errorf("Expected first transcript entry to be the prompt, got %q", entries[0].Text)
	}
}

func TestSessionAgainstServer_LegacyFrames(t *testing.T) {
	srv := httptest.NewServer(devserver.NewHandler().Routes())
	defer srv.Close()

	updates := make(chan session.State, 64)
	ctrl := session.New(session.Options{
		URL:      wsURL(srv, "?legacy=1"),
		OnUpdate: func(s session.State) { updates <- s },
	})
	defer ctrl.Close()

	if err := ctrl.Start(context.Background(), "plain page", "bob"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	s := waitFor(t, updates, func(s session.State) bool { return s.HTMLContent != "" })
	if !strings.Contains(s.HTMLContent, "plain page") {
		t.Errorf("Expected raw frame to carry the prompt, got %s", s.HTMLContent)
	}
	// Raw frames carry no envelope, so no session id ever arrives.
	if s.SessionID != "" {
		t.Errorf("Expected empty session id for raw frames, got %q", s.SessionID)
	}
}

func TestSessionAgainstServer_MissingElement(t *testing.T) {
	srv := httptest.NewServer(devserver.NewHandler().Routes())
	defer srv.Close()

	updates := make(chan session.State, 64)
	ctrl := session.New(session.Options{
		URL:      wsURL(srv, ""),
		OnUpdate: func(s session.State) { updates <- s },
	})
	defer ctrl.Close()

	if err := ctrl.Start(context.Background(), "hello", "alice"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	waitFor(t, updates, func(s session.State) bool { return s.HTMLContent != "" })

	// A click on an id the frame does not contain is dropped client-side;
	// the stream stays healthy and a later chat still works.
	if ctrl.Surface().Click("does-not-exist") {
		t.Error("Expected click on a missing id to produce nothing")
	}
	if err := ctrl.SendChat("still alive"); err != nil {
		t.Fatalf("SendChat failed: %v", err)
	}
	waitFor(t, updates, func(s session.State) bool {
		return strings.Contains(s.HTMLContent, "still alive")
	})
}

func TestAgentEndpoint(t *testing.T) {
	srv := httptest.NewServer(devserver.NewHandler().Routes())
	defer srv.Close()

	resp, err := agent.NewClient(srv.URL).Generate(context.Background(), "pricing table", "alice")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if len(resp.Components) != 1 || resp.Components[0].Type != "card" {
		t.Fatalf("Unexpected components: %+v", resp.Components)
	}

	html, err := agent.RenderComponents(resp.Components)
	if err != nil {
		t.Fatalf("RenderComponents failed: %v", err)
	}
	if !strings.Contains(html, "pricing table") {
		t.Errorf("Expected rendered card to mention the prompt, got %s", html)
	}
}

func TestDocumentLifecycle(t *testing.T) {
	srv := httptest.NewServer(devserver.NewHandler().Routes())
	defer srv.Close()

	ctx := context.Background()
	client := docs.NewClient(srv.URL)

	up, err := client.Upload(ctx, "alice", []docs.File{
		{Name: "notes.txt", Content: []byte("hello")},
		{Name: "photo.png", Content: []byte{1, 2, 3}},
	})
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if up.TotalChunks != 1 {
		t.Errorf("Expected one accepted file, got %d chunks", up.TotalChunks)
	}
	if len(up.Results) != 2 || up.Results[1].Status != "error" {
		t.Errorf("Expected the unsupported file to be rejected, got %+v", up.Results)
	}

	info, err := client.Documents(ctx, "alice")
	if err != nil {
		t.Fatalf("Documents failed: %v", err)
	}
	if info.Statistics.FileCount != 1 || info.Statistics.Files[0] != "notes.txt" {
		t.Errorf("Unexpected statistics: %+v", info.Statistics)
	}

	probe, err := client.ProbeRAG(ctx, "what are the notes", "alice")
	if err != nil {
		t.Fatalf("ProbeRAG failed: %v", err)
	}
	if !probe.UseRAG || probe.RetrievedDocuments != 1 {
		t.Errorf("Expected retrieval to engage, got %+v", probe)
	}

	if err := client.DeleteAll(ctx, "alice"); err != nil {
		t.Fatalf("DeleteAll failed: %v", err)
	}
	info, err = client.Documents(ctx, "alice")
	if err != nil {
		t.Fatalf("Documents after delete failed: %v", err)
	}
	if info.Statistics.FileCount != 0 {
		t.Errorf("Expected no documents after delete, got %+v", info.Statistics)
	}

	probe, err = client.ProbeRAG(ctx, "anything", "alice")
	if err != nil {
		t.Fatalf("ProbeRAG after delete failed: %v", err)
	}
	if probe.UseRAG {
		t.Errorf("Expected retrieval disengaged with no documents, got %+v", probe)
	}
}
