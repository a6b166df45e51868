package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"askai/internal/domain"
	"askai/internal/logging"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"
)

// fakeStore records every durable call in order
type fakeStore struct {
	mu       sync.Mutex
	ops      []string
	fail     error
	sessions []domain.ChatSession
	activeID string
	updates  map[string]domain.SessionPatch
}

func newFakeStore() *fakeStore {
	return &fakeStore{updates: make(map[string]domain.SessionPatch)}
}

func (f *fakeStore) record(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ops = append(f.ops, op)
	return f.fail
}

func (f *fakeStore) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.ops...)
}

func (f *fakeStore) SaveSession(ctx context.Context, userID string, cs domain.ChatSession) (*domain.ChatSession, error) {
	if err := f.record("save:" + cs.ID); err != nil {
		return nil, err
	}
	return &cs, nil
}

func (f *fakeStore) GetSessions(ctx context.Context, userID string) ([]domain.ChatSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sessions, nil
}

func (f *fakeStore) UpdateSession(ctx context.Context, id string, patch domain.SessionPatch) (*domain.ChatSession, error) {
	if err := f.record("update:" + id); err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.updates[id] = patch
	f.mu.Unlock()
	return &domain.ChatSession{ID: id}, nil
}

func (f *fakeStore) DeleteSession(ctx context.Context, id string) error {
	return f.record("delete:" + id)
}

func (f *fakeStore) RememberActiveSession(ctx context.Context, userID, sessionID string) error {
	return f.record("active:" + sessionID)
}

func (f *fakeStore) ActiveSession(ctx context.Context, userID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.activeID, nil
}

func sequentialIDs() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

// fakeClock advances one second per call
func fakeClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	t := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Second)
		return t
	}
}

func newTestManager(t *testing.T, store Store, out io.Writer, opts ...Option) *Manager {
	t.Helper()
	if out == nil {
		out = io.Discard
	}
	logger := logging.NewLogger("session", logging.DEBUG, out)
	opts = append([]Option{
		WithIDs(sequentialIDs()),
		WithClock(fakeClock(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))),
	}, opts...)
	m := NewManager("user-1", store, logger, opts...)
	t.Cleanup(m.Close)
	return m
}

func flush(t *testing.T, m *Manager) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.Flush(ctx); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
}

func TestCreateSessionDefaults(t *testing.T) {
	m := newTestManager(t, newFakeStore(), nil)

	cs := m.CreateSession("")
	if cs.Title != DefaultTitle {
		t.Errorf("Expected title %q, got %q", DefaultTitle, cs.Title)
	}
	if cs.Model != "gemini-1.5-flash" {
		t.Errorf("Expected default model, got %q", cs.Model)
	}
	if cs.Temperature == nil || *cs.Temperature != 0.7 {
		t.Errorf("Expected temperature 0.7, got %v", cs.Temperature)
	}
	if len(cs.Messages) != 0 {
		t.Errorf("Expected no messages, got %d", len(cs.Messages))
	}
	if !cs.CreatedAt.Equal(cs.UpdatedAt) {
		t.Errorf("Expected createdAt == updatedAt, got %v and %v", cs.CreatedAt, cs.UpdatedAt)
	}
	if m.ActiveID() != "" {
		t.Errorf("Expected CreateSession to leave the active id alone, got %q", m.ActiveID())
	}

	second := m.CreateSession("Named")
	sessions := m.Sessions()
	if len(sessions) != 2 || sessions[0].ID != second.ID {
		t.Errorf("Expected newest session at the head, got %v", sessionIDs(sessions))
	}
}

func TestDurableWritesKeepOrder(t *testing.T) {
	store := newFakeStore()
	m := newTestManager(t, store, nil)

	cs := m.CreateSession("")
	if _, err := m.AddMessage(cs.ID, domain.Message{Content: "hi", IsUser: true}); err != nil {
		t.Fatalf("AddMessage failed: %v", err)
	}
	if err := m.SetActive(cs.ID); err != nil {
		t.Fatalf("SetActive failed: %v", err)
	}
	m.DeleteSession(cs.ID)
	flush(t, m)

	want := []string{"save:id-1", "update:id-1", "active:id-1", "active:", "delete:id-1"}
	if diff := cmp.Diff(want, store.calls()); diff != "" {
		t.Errorf("Unexpected durable write order (-want +got):\n%s", diff)
	}
}

func TestAddMessageCarriesFullSequence(t *testing.T) {
	store := newFakeStore()
	m := newTestManager(t, store, nil)
	cs := m.CreateSession("")

	first, err := m.AddMessage(cs.ID, domain.Message{Content: "one", IsUser: true})
	if err != nil {
		t.Fatalf("AddMessage failed: %v", err)
	}
	if first.ID == "" || first.Timestamp.IsZero() {
		t.Errorf("Expected id and timestamp to be assigned, got %+v", first)
	}
	if _, err := m.AddMessage(cs.ID, domain.Message{ID: "fixed", Content: "two"}); err != nil {
		t.Fatalf("AddMessage failed: %v", err)
	}
	flush(t, m)

	patch := store.updates[cs.ID]
	if len(patch.Messages) != 2 {
		t.Fatalf("Expected durable patch with 2 messages, got %d", len(patch.Messages))
	}
	if patch.Messages[1].ID != "fixed" {
		t.Errorf("Expected caller-supplied id to be kept, got %q", patch.Messages[1].ID)
	}
	if patch.UpdatedAt == nil {
		t.Error("Expected durable patch to carry updatedAt")
	}

	got, _ := m.Session(cs.ID)
	if !got.UpdatedAt.After(cs.UpdatedAt) {
		t.Errorf("Expected updatedAt to advance, got %v (was %v)", got.UpdatedAt, cs.UpdatedAt)
	}
}

func TestUpdateSessionNeverMovesUpdatedAtBack(t *testing.T) {
	m := newTestManager(t, newFakeStore(), nil)
	cs := m.CreateSession("")

	past := cs.UpdatedAt.Add(-time.Hour)
	if err := m.UpdateSession(cs.ID, domain.SessionPatch{Title: domain.Ptr("Renamed"), UpdatedAt: &past}); err != nil {
		t.Fatalf("UpdateSession failed: %v", err)
	}
	got, _ := m.Session(cs.ID)
	if got.Title != "Renamed" {
		t.Errorf("Expected title Renamed, got %q", got.Title)
	}
	if got.UpdatedAt.Before(cs.UpdatedAt) {
		t.Errorf("Expected updatedAt to stay >= %v, got %v", cs.UpdatedAt, got.UpdatedAt)
	}

	if err := m.UpdateSession("missing", domain.SessionPatch{}); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Expected NotFound for unknown session, got %v", err)
	}
}

func TestUpdateAndEditMessage(t *testing.T) {
	m := newTestManager(t, newFakeStore(), nil)
	cs := m.CreateSession("")
	msg, _ := m.AddMessage(cs.ID, domain.Message{Content: "Thinking...", IsLoading: true})

	err := m.UpdateMessage(cs.ID, msg.ID, domain.MessagePatch{
		Content:   domain.Ptr("done"),
		IsLoading: domain.Ptr(false),
		Tokens:    domain.Ptr(12),
	})
	if err != nil {
		t.Fatalf("UpdateMessage failed: %v", err)
	}

	if err := m.EditMessage(cs.ID, msg.ID, "edited once"); err != nil {
		t.Fatalf("EditMessage failed: %v", err)
	}
	if err := m.EditMessage(cs.ID, msg.ID, "edited twice"); err != nil {
		t.Fatalf("EditMessage failed: %v", err)
	}

	got, _ := m.Session(cs.ID)
	final := got.Messages[0]
	if final.Content != "edited twice" || !final.IsEdited {
		t.Errorf("Expected edited content, got %+v", final)
	}
	if final.OriginalContent != "done" {
		t.Errorf("Expected original content to be the first version, got %q", final.OriginalContent)
	}
	if final.IsLoading || final.Tokens == nil || *final.Tokens != 12 {
		t.Errorf("Expected loading cleared and tokens 12, got %+v", final)
	}

	if err := m.UpdateMessage(cs.ID, "nope", domain.MessagePatch{}); !errors.Is(err, domain.ErrMessageNotFound) {
		t.Errorf("Expected ErrMessageNotFound, got %v", err)
	}
	if err := m.UpdateMessage("nope", msg.ID, domain.MessagePatch{}); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("Expected ErrSessionNotFound, got %v", err)
	}
}

func TestDuplicateSession(t *testing.T) {
	store := newFakeStore()
	m := newTestManager(t, store, nil)
	orig := m.CreateSession("Plans")
	m.AddMessage(orig.ID, domain.Message{Content: "hello", IsUser: true})

	t.Run("missing session leaves state untouched", func(t *testing.T) {
		before := m.Sessions()
		_, err := m.DuplicateSession("missing")
		if !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("Expected NotFound, got %v", err)
		}
		if diff := cmp.Diff(before, m.Sessions()); diff != "" {
			t.Errorf("Expected no mutation (-before +after):\n%s", diff)
		}
	})

	t.Run("copy is deep and at the head", func(t *testing.T) {
		dup, err := m.DuplicateSession(orig.ID)
		if err != nil {
			t.Fatalf("DuplicateSession failed: %v", err)
		}
		if dup.ID == orig.ID {
			t.Error("Expected a new id")
		}
		if dup.Title != "Plans (Copy)" {
			t.Errorf("Expected title %q, got %q", "Plans (Copy)", dup.Title)
		}
		if len(dup.Messages) != 1 || dup.Messages[0].Content != "hello" {
			t.Errorf("Expected messages to be copied, got %+v", dup.Messages)
		}
		if m.Sessions()[0].ID != dup.ID {
			t.Errorf("Expected duplicate at the head, got %v", sessionIDs(m.Sessions()))
		}

		m.EditMessage(dup.ID, dup.Messages[0].ID, "changed")
		src, _ := m.Session(orig.ID)
		if src.Messages[0].Content != "hello" {
			t.Errorf("Expected source untouched by edits to the copy, got %q", src.Messages[0].Content)
		}

		flush(t, m)
		found := false
		for _, op := range store.calls() {
			if op == "save:"+dup.ID {
				found = true
			}
		}
		if !found {
			t.Errorf("Expected duplicate to be saved, got %v", store.calls())
		}
	})
}

func TestDeleteClearsActive(t *testing.T) {
	m := newTestManager(t, newFakeStore(), nil)
	a := m.CreateSession("a")
	b := m.CreateSession("b")

	m.SetActive(a.ID)
	m.DeleteSession(b.ID)
	if m.ActiveID() != a.ID {
		t.Errorf("Expected active id %q to survive, got %q", a.ID, m.ActiveID())
	}

	m.DeleteSession(a.ID)
	if m.ActiveID() != "" {
		t.Errorf("Expected active id to be cleared, got %q", m.ActiveID())
	}
	if _, ok := m.Active(); ok {
		t.Error("Expected no active session")
	}

	m.DeleteSession("unknown")
	if len(m.Sessions()) != 0 {
		t.Errorf("Expected empty list, got %v", sessionIDs(m.Sessions()))
	}
}

func TestSetActiveUnknown(t *testing.T) {
	m := newTestManager(t, newFakeStore(), nil)
	if err := m.SetActive("missing"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("Expected ErrSessionNotFound, got %v", err)
	}
	if err := m.SetActive(""); err != nil {
		t.Errorf("Expected clearing to succeed, got %v", err)
	}
}

func TestWriteFailuresAreLoggedNotSurfaced(t *testing.T) {
	store := newFakeStore()
	store.fail = errors.New("disk full")
	var buf bytes.Buffer
	m := newTestManager(t, store, &buf)

	cs := m.CreateSession("")
	if _, err := m.AddMessage(cs.ID, domain.Message{Content: "x"}); err != nil {
		t.Fatalf("Expected in-memory mutation to succeed, got %v", err)
	}
	flush(t, m)

	got, _ := m.Session(cs.ID)
	if len(got.Messages) != 1 {
		t.Errorf("Expected in-memory state to be kept, got %d messages", len(got.Messages))
	}
	if !strings.Contains(buf.String(), "durable write failed") {
		t.Errorf("Expected failure to be logged, got %q", buf.String())
	}
}

func TestLoadRestoresActive(t *testing.T) {
	store := newFakeStore()
	store.sessions = []domain.ChatSession{{ID: "s1", Title: "one"}, {ID: "s2", Title: "two"}}
	store.activeID = "s2"
	m := newTestManager(t, store, nil)

	if err := m.Load(context.Background()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if diff := cmp.Diff([]string{"s1", "s2"}, sessionIDs(m.Sessions())); diff != "" {
		t.Errorf("Unexpected order (-want +got):\n%s", diff)
	}
	if m.ActiveID() != "s2" {
		t.Errorf("Expected active id s2, got %q", m.ActiveID())
	}

	store.activeID = "gone"
	m.Load(context.Background())
	if m.ActiveID() != "" {
		t.Errorf("Expected dangling active id to be dropped, got %q", m.ActiveID())
	}
}

func TestObserversSeeEvents(t *testing.T) {
	var mu sync.Mutex
	var seen []EventType
	m := newTestManager(t, newFakeStore(), nil, WithObserver(func(ev Event) {
		mu.Lock()
		seen = append(seen, ev.Type)
		mu.Unlock()
	}))

	cs := m.CreateSession("")
	msg, _ := m.AddMessage(cs.ID, domain.Message{Content: "a"})
	m.UpdateMessage(cs.ID, msg.ID, domain.MessagePatch{Content: domain.Ptr("b")})
	m.ArchiveSession(cs.ID)
	m.SetActive(cs.ID)
	m.DeleteSession(cs.ID)

	want := []EventType{
		EventSessionCreated, EventMessageAdded, EventMessageUpdated,
		EventSessionUpdated, EventSessionActivated, EventSessionDeleted,
	}
	mu.Lock()
	defer mu.Unlock()
	if diff := cmp.Diff(want, seen); diff != "" {
		t.Errorf("Unexpected events (-want +got):\n%s", diff)
	}
}

func TestCloseStopsWriter(t *testing.T) {
	defer goleak.VerifyNone(t)

	store := newFakeStore()
	logger := logging.NewLogger("session", logging.ERROR, io.Discard)
	m := NewManager("user-1", store, logger)
	cs := m.CreateSession("")
	m.AddMessage(cs.ID, domain.Message{Content: "bye"})
	m.Close()

	if got := len(store.calls()); got != 2 {
		t.Errorf("Expected Close to drain 2 writes, got %d", got)
	}

	// writes after close are dropped, not run
	m.CreateSession("late")
	if got := len(store.calls()); got != 2 {
		t.Errorf("Expected late write to be dropped, got %d calls", got)
	}
	if err := m.Flush(context.Background()); err != nil {
		t.Errorf("Expected Flush after Close to return nil, got %v", err)
	}
	m.Close()
}

func sessionIDs(sessions []domain.ChatSession) []string {
	ids := make([]string, len(sessions))
	for i, cs := range sessions {
		ids[i] = cs.ID
	}
	return ids
}
