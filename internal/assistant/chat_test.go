package assistant

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/wali-os/wali/internal/db"
	"github.com/wali-os/wali/internal/models"
)

func newTestService(store *memStore, fc *fakeCompleter) *Service {
	var svc *Service
	if fc == nil {
		svc = NewService(store, nil)
	} else {
		svc = NewService(store, fc)
	}
	svc.Now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return svc
}

func TestChat_EINLookupFromProfile(t *testing.T) {
	store := newMemStore()
	userID := uuid.New()
	store.profiles[userID] = &models.UserProfile{UserID: userID, OrganizationName: "Harbor Food Bank", EIN: "12-3456789"}
	fc := &fakeCompleter{content: "should not be used"}
	svc := newTestService(store, fc)

	resp, err := svc.Chat(context.Background(), userID, ChatRequest{Message: "What is my EIN?"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Intent != IntentEINLookup || !strings.Contains(resp.Reply, "12-3456789") {
		t.Fatalf("unexpected response %+v", resp)
	}
	if resp.Refined || len(fc.tasks) != 0 {
		t.Fatalf("lookup should be answered from records alone, tasks=%v", fc.tasks)
	}
	if resp.SessionID == "" || len(store.sessions) != 1 {
		t.Fatalf("expected a new session, got %q", resp.SessionID)
	}
	if len(store.turns) != 2 || store.turns[0].Role != models.RoleUser || store.turns[1].Role != models.RoleAssistant {
		t.Fatalf("expected user and assistant turns, got %+v", store.turns)
	}
	if store.turns[0].Intent != IntentEINLookup {
		t.Fatalf("expected intent on stored turn, got %q", store.turns[0].Intent)
	}

	// Continuing the session reuses it.
	again, err := svc.Chat(context.Background(), userID, ChatRequest{Message: "What does EIN mean?", SessionID: resp.SessionID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if again.SessionID != resp.SessionID || again.Intent != IntentTermDefinition || len(store.sessions) != 1 {
		t.Fatalf("unexpected follow-up %+v", again)
	}
}

func TestChat_DataUnavailable(t *testing.T) {
	store := newMemStore()
	store.failLists = true
	svc := newTestService(store, &fakeCompleter{content: "refined"})

	resp, err := svc.Chat(context.Background(), uuid.New(), ChatRequest{Message: "List my projects"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Reply != DataUnavailableText || resp.Refined {
		t.Fatalf("expected apology, got %+v", resp)
	}
	if len(store.turns) != 2 || store.turns[1].Content != DataUnavailableText {
		t.Fatalf("apology should still be stored, got %+v", store.turns)
	}
}

func TestChat_GeneralIsRefined(t *testing.T) {
	store := newMemStore()
	fc := &fakeCompleter{content: "Try the community foundation's spring cycle."}
	svc := newTestService(store, fc)

	resp, err := svc.Chat(context.Background(), uuid.New(), ChatRequest{Message: "Write me a poem about the ocean"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !resp.Refined || resp.Reply != fc.content || resp.Provider != "openai" {
		t.Fatalf("expected refined reply, got %+v", resp)
	}
	if fc.tasks[len(fc.tasks)-1] != "conversation" {
		t.Fatalf("expected conversation task last, got %v", fc.tasks)
	}
}

func TestChat_RefinementFailureKeepsRuleReply(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, &fakeCompleter{err: errors.New("all providers failed")})

	resp, err := svc.Chat(context.Background(), uuid.New(), ChatRequest{Message: "help", Refine: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Refined || resp.Reply != helpText {
		t.Fatalf("expected rule reply, got %+v", resp)
	}
}

func TestChat_SessionValidation(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, nil)
	userID := uuid.New()

	if _, err := svc.Chat(context.Background(), userID, ChatRequest{Message: "   "}); !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("expected ErrEmptyMessage, got %v", err)
	}
	if _, err := svc.Chat(context.Background(), userID, ChatRequest{Message: "hi", SessionID: "nope"}); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("expected ErrInvalidSession, got %v", err)
	}

	other, _ := store.CreateSession(context.Background(), uuid.New(), "someone else")
	if _, err := svc.Chat(context.Background(), userID, ChatRequest{Message: "hi", SessionID: other.ID.String()}); !errors.Is(err, db.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for another user's session, got %v", err)
	}
	if len(store.turns) != 0 {
		t.Fatalf("rejected requests must not store turns")
	}
}

func TestChat_SummarizesLongSessions(t *testing.T) {
	store := newMemStore()
	userID := uuid.New()
	sess, _ := store.CreateSession(context.Background(), userID, "long")
	store.addTurns(userID, sess.ID, 24)

	svc := newTestService(store, nil)
	resp, err := svc.Chat(context.Background(), userID, ChatRequest{Message: "hello", SessionID: sess.ID.String()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !resp.Summarized || len(store.summaries) != 1 {
		t.Fatalf("expected the session to be summarized, got %+v", resp)
	}
	if store.summaries[0].Method != "heuristic" || store.summaries[0].TurnCount != 16 {
		t.Fatalf("unexpected summary %+v", store.summaries[0])
	}
}

func TestSessionTitle(t *testing.T) {
	if got := sessionTitle("  what   is my EIN "); got != "what is my EIN" {
		t.Fatalf("unexpected title %q", got)
	}
	long := strings.Repeat("a", 80)
	if got := sessionTitle(long); len(got) != 60 || !strings.HasSuffix(got, "...") {
		t.Fatalf("unexpected long title %q", got)
	}
	accented := strings.Repeat("ó", 80)
	if got := sessionTitle(accented); !utf8.ValidString(got) || utf8.RuneCountInString(got) != 60 {
		t.Fatalf("unexpected accented title %q", got)
	}
}
