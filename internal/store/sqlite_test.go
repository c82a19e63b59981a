package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/supreme-gg-gg/multiflex/internal/domain"
)

func newTestStore(t *testing.T) Repository {
	t.Helper()
	repo, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLite failed: %v", err)
	}
	t.Cleanup(func() {
		if err := repo.Close(); err != nil {
			t.Errorf("Close failed: %v", err)
		}
	})
	return repo
}

func TestPending_ReadOnceThenClear(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	if err := repo.SavePending(ctx, &domain.PendingRequest{UserID: "alice", Prompt: "Build a login form"}); err != nil {
		t.Fatalf("SavePending failed: %v", err)
	}

	req, err := repo.TakePending(ctx, "alice")
	if err != nil {
		t.Fatalf("TakePending failed: %v", err)
	}
	if req.Prompt != "Build a login form" || req.UserID != "alice" {
		t.Errorf("Unexpected pending request: %+v", req)
	}

	// Second read must find nothing: the prompt is consumed exactly once.
	if _, err := repo.TakePending(ctx, "alice"); !errors.Is(err, ErrNoPending) {
		t.Errorf("Expected ErrNoPending on second take, got %v", err)
	}
}

func TestPending_AbsentUser(t *testing.T) {
	repo := newTestStore(t)
	if _, err := repo.TakePending(context.Background(), "nobody"); !errors.Is(err, ErrNoPending) {
		t.Errorf("Expected ErrNoPending, got %v", err)
	}
}

func TestPending_ReplacedOnResave(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	if err := repo.SavePending(ctx, &domain.PendingRequest{UserID: "alice", Prompt: "first"}); err != nil {
		t.Fatalf("SavePending failed: %v", err)
	}
	if err := repo.SavePending(ctx, &domain.PendingRequest{UserID: "alice", Prompt: "second"}); err != nil {
		t.Fatalf("SavePending failed: %v", err)
	}

	req, err := repo.TakePending(ctx, "alice")
	if err != nil {
		t.Fatalf("TakePending failed: %v", err)
	}
	if req.Prompt != "second" {
		t.Errorf("Expected latest prompt, got %q", req.Prompt)
	}
}

func TestPending_DefaultUserID(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	if err := repo.SavePending(ctx, &domain.PendingRequest{Prompt: "anon prompt"}); err != nil {
		t.Fatalf("SavePending failed: %v", err)
	}
	req, err := repo.TakePending(ctx, "")
	if err != nil {
		t.Fatalf("TakePending failed: %v", err)
	}
	if req.UserID != domain.DefaultUserID {
		t.Errorf("Expected default user id, got %q", req.UserID)
	}
}

func TestClearPending(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	if err := repo.SavePending(ctx, &domain.PendingRequest{UserID: "alice", Prompt: "x"}); err != nil {
		t.Fatalf("SavePending failed: %v", err)
	}
	if err := repo.ClearPending(ctx, "alice"); err != nil {
		t.Fatalf("ClearPending failed: %v", err)
	}
	if _, err := repo.TakePending(ctx, "alice"); !errors.Is(err, ErrNoPending) {
		t.Errorf("Expected ErrNoPending after clear, got %v", err)
	}
}

func TestEntries_AppendAndList(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()
	base := time.Now().Add(-time.Minute)

	entries := []domain.ChatEntry{
		{ID: "e1", Text: "Build a login form", Sender: domain.SenderUser, Timestamp: base},
		{ID: "e2", Text: "Login form", Sender: domain.SenderAssistant, Timestamp: base.Add(time.Second)},
		{ID: "e3", Text: "make it blue", Sender: domain.SenderUser, Timestamp: base.Add(2 * time.Second)},
	}
	for _, e := range entries {
		if err := repo.AppendEntry(ctx, "s-1", "alice", e); err != nil {
			t.Fatalf("AppendEntry failed: %v", err)
		}
	}

	got, err := repo.ListEntries(ctx, "s-1")
	if err != nil {
		t.Fatalf("ListEntries failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Expected 3 entries, got %d", len(got))
	}
	for i, e := range entries {
		if got[i].ID != e.ID || got[i].Text != e.Text || got[i].Sender != e.Sender {
			t.Errorf("Entry %d mismatch: got %+v, want %+v", i, got[i], e)
		}
	}

	other, err := repo.ListEntries(ctx, "s-2")
	if err != nil {
		t.Fatalf("ListEntries failed: %v", err)
	}
	if len(other) != 0 {
		t.Errorf("Expected no entries for other session, got %d", len(other))
	}
}
