package storage

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"server/internal/domain"
)

func testSession() *domain.Session {
	return &domain.Session{
		Original: []byte("original-bytes"),
		Caption:  "a test subject",
		Concepts: []string{"statue", "watercolor"},
		Results: []domain.IterationResult{
			{Iteration: 1, Prompt: "make it marble", Status: domain.IterationCompleted, ImageURL: "https://cdn.example/1.jpg", Image: []byte("result-one")},
			{Iteration: 2, Prompt: "make it neon", Status: domain.IterationModerated, Message: "Content was moderated, moving to next iteration"},
			{Iteration: 3, Prompt: "make it wood", Status: domain.IterationError, Message: "poll failed: connection reset"},
		},
	}
}

func TestSessionStoreRoundTrip(t *testing.T) {
	store, err := NewSessionStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewSessionStore returned error: %v", err)
	}
	ctx := context.Background()

	session := testSession()
	if err := store.Save(ctx, session); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	if session.ID == "" {
		t.Fatal("Save did not assign an id")
	}

	loaded, err := store.Load(ctx, session.ID)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if loaded.ID != session.ID {
		t.Fatalf("id mismatch: %q vs %q", loaded.ID, session.ID)
	}
	if !bytes.Equal(loaded.Original, session.Original) {
		t.Fatal("original image mismatch")
	}
	if len(loaded.Results) != 3 {
		t.Fatalf("result count = %d, want 3", len(loaded.Results))
	}
	for i, want := range session.Results {
		got := loaded.Results[i]
		if got.Iteration != want.Iteration || got.Prompt != want.Prompt || got.Status != want.Status || got.Message != want.Message {
			t.Fatalf("results[%d] mismatch: %+v vs %+v", i, got, want)
		}
	}
	if !bytes.Equal(loaded.Results[0].Image, []byte("result-one")) {
		t.Fatal("result image mismatch")
	}
}

func TestSessionStoreUpsertReplaces(t *testing.T) {
	store, err := NewSessionStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewSessionStore returned error: %v", err)
	}
	ctx := context.Background()

	session := testSession()
	if err := store.Save(ctx, session); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}

	session.Results = session.Results[:1]
	session.Caption = "replaced"
	if err := store.Save(ctx, session); err != nil {
		t.Fatalf("second Save returned error: %v", err)
	}

	loaded, err := store.Load(ctx, session.ID)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if loaded.Caption != "replaced" {
		t.Fatalf("caption = %q, want replaced", loaded.Caption)
	}
	if len(loaded.Results) != 1 {
		t.Fatalf("result count = %d, want 1", len(loaded.Results))
	}
}

func TestSessionStoreLoadUnknownID(t *testing.T) {
	store, err := NewSessionStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewSessionStore returned error: %v", err)
	}
	if _, err := store.Load(context.Background(), "no-such-session"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Load error = %v, want ErrNotFound", err)
	}
}

func TestSessionStoreCorruptedRecord(t *testing.T) {
	base := t.TempDir()
	store, err := NewSessionStore(base)
	if err != nil {
		t.Fatalf("NewSessionStore returned error: %v", err)
	}
	dir := filepath.Join(base, "broken")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, recordFilename), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := store.Load(context.Background(), "broken"); !errors.Is(err, domain.ErrCorrupted) {
		t.Fatalf("Load error = %v, want ErrCorrupted", err)
	}
}

func TestSessionStoreRejectsTraversalIDs(t *testing.T) {
	store, err := NewSessionStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewSessionStore returned error: %v", err)
	}
	for _, id := range []string{"..", "../outside", "a/b", ".", ""} {
		if _, err := store.Load(context.Background(), id); err == nil || errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("Load(%q) error = %v, want validation failure", id, err)
		}
	}
}
