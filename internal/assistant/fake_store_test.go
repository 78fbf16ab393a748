package assistant

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wali-os/wali/internal/ai"
	"github.com/wali-os/wali/internal/db"
	"github.com/wali-os/wali/internal/models"
)

// memStore is an in-memory ChatStore scoped by user id like the real store.
type memStore struct {
	mu sync.Mutex

	profiles      map[uuid.UUID]*models.UserProfile
	projects      []models.Project
	applications  []models.Application
	opportunities []models.Opportunity
	campaigns     []models.Campaign
	sessions      map[uuid.UUID]*models.AssistantSession
	turns         []models.ConversationTurn
	summaries     []models.SessionSummary

	failLists bool
	writes    int
	clock     time.Time
}

func newMemStore() *memStore {
	return &memStore{
		profiles: map[uuid.UUID]*models.UserProfile{},
		sessions: map[uuid.UUID]*models.AssistantSession{},
		clock:    time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

var errBoom = errors.New("connection refused")

func (m *memStore) GetProfile(ctx context.Context, userID uuid.UUID) (*models.UserProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.profiles[userID]; ok {
		return p, nil
	}
	return nil, db.ErrNotFound
}

func (m *memStore) ListProjects(ctx context.Context, userID uuid.UUID) ([]models.Project, error) {
	if m.failLists {
		return nil, errBoom
	}
	var out []models.Project
	for _, p := range m.projects {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memStore) ListApplications(ctx context.Context, userID uuid.UUID) ([]models.Application, error) {
	var out []models.Application
	for _, a := range m.applications {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memStore) ListOpportunities(ctx context.Context, userID uuid.UUID) ([]models.Opportunity, error) {
	var out []models.Opportunity
	for _, o := range m.opportunities {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *memStore) ListCampaigns(ctx context.Context, userID uuid.UUID) ([]models.Campaign, error) {
	var out []models.Campaign
	for _, c := range m.campaigns {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memStore) CreateSession(ctx context.Context, userID uuid.UUID, title string) (*models.AssistantSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := &models.AssistantSession{ID: uuid.New(), UserID: userID, Title: title, CreatedAt: m.clock, LastActivityAt: m.clock}
	m.sessions[s.ID] = s
	return s, nil
}

func (m *memStore) GetSession(ctx context.Context, userID, sessionID uuid.UUID) (*models.AssistantSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok || s.UserID != userID {
		return nil, db.ErrNotFound
	}
	return s, nil
}

func (m *memStore) TouchSession(ctx context.Context, userID, sessionID uuid.UUID) error {
	return nil
}

func (m *memStore) InsertTurn(ctx context.Context, turn *models.ConversationTurn) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clock = m.clock.Add(time.Minute)
	turn.ID = uuid.New()
	turn.CreatedAt = m.clock
	m.turns = append(m.turns, *turn)
	return nil
}

func (m *memStore) addTurns(userID, sessionID uuid.UUID, n int) {
	for i := 0; i < n; i++ {
		role := models.RoleUser
		content := "What is the deadline for the USDA grant?"
		if i%2 == 1 {
			role = models.RoleAssistant
			content = "The USDA grant is due March 30. We will draft the narrative next."
		}
		m.InsertTurn(context.Background(), &models.ConversationTurn{SessionID: sessionID, UserID: userID, Role: role, Content: content})
	}
}

func (m *memStore) unsummarized(userID, sessionID uuid.UUID) []models.ConversationTurn {
	var out []models.ConversationTurn
	for _, t := range m.turns {
		if t.UserID == userID && t.SessionID == sessionID && !t.Summarized {
			out = append(out, t)
		}
	}
	return out
}

func (m *memStore) ListRecentTurns(ctx context.Context, userID, sessionID uuid.UUID, limit int) ([]models.ConversationTurn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.unsummarized(userID, sessionID)
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (m *memStore) CountUnsummarizedTurns(ctx context.Context, userID, sessionID uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.unsummarized(userID, sessionID)), nil
}

func (m *memStore) ListUnsummarizedTurns(ctx context.Context, userID, sessionID uuid.UUID) ([]models.ConversationTurn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.unsummarized(userID, sessionID), nil
}

func (m *memStore) InsertSessionSummary(ctx context.Context, sum *models.SessionSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes++
	sum.ID = uuid.New()
	m.summaries = append(m.summaries, *sum)
	return nil
}

func (m *memStore) MarkTurnsSummarized(ctx context.Context, userID, sessionID uuid.UUID, ids []uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes++
	set := map[uuid.UUID]bool{}
	for _, id := range ids {
		set[id] = true
	}
	for i := range m.turns {
		if set[m.turns[i].ID] && m.turns[i].UserID == userID {
			m.turns[i].Summarized = true
		}
	}
	return nil
}

func (m *memStore) ListSessionSummaries(ctx context.Context, userID, sessionID uuid.UUID) ([]models.SessionSummary, error) {
	var out []models.SessionSummary
	for _, s := range m.summaries {
		if s.UserID == userID && s.SessionID == sessionID {
			out = append(out, s)
		}
	}
	return out, nil
}

type fakeCompleter struct {
	content string
	err     error
	tasks   []string
}

func (f *fakeCompleter) GenerateCompletion(ctx context.Context, task string, messages []ai.Message, opts ai.Options) (*ai.Completion, error) {
	f.tasks = append(f.tasks, task)
	if f.err != nil {
		return nil, f.err
	}
	return &ai.Completion{Content: f.content, Provider: ai.VendorOpenAI, Model: "test"}, nil
}
