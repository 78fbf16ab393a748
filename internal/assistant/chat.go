package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wali-os/wali/internal/ai"
	"github.com/wali-os/wali/internal/models"
)

var (
	ErrEmptyMessage   = errors.New("message is required")
	ErrInvalidSession = errors.New("invalid session id")
)

// ChatStore is everything the chat flow reads and writes.
type ChatStore interface {
	OrgStore
	ConversationStore
	CreateSession(ctx context.Context, userID uuid.UUID, title string) (*models.AssistantSession, error)
	GetSession(ctx context.Context, userID, sessionID uuid.UUID) (*models.AssistantSession, error)
	TouchSession(ctx context.Context, userID, sessionID uuid.UUID) error
	InsertTurn(ctx context.Context, turn *models.ConversationTurn) error
	ListRecentTurns(ctx context.Context, userID, sessionID uuid.UUID, limit int) ([]models.ConversationTurn, error)
	ListSessionSummaries(ctx context.Context, userID, sessionID uuid.UUID) ([]models.SessionSummary, error)
}

type ChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId"`
	Refine    bool   `json:"refine"` // always run the model pass, not only for open-ended intents
}

type ChatResponse struct {
	Reply        string `json:"reply"`
	Intent       string `json:"intent"`
	IntentSource string `json:"intentSource"`
	SessionID    string `json:"sessionId"`
	Refined      bool   `json:"refined"`
	Provider     string `json:"provider,omitempty"`
	Summarized   bool   `json:"summarized"`
}

type Service struct {
	Store      ChatStore
	AI         ai.Completer
	Classifier *Classifier
	Summarizer *Summarizer
	Now        func() time.Time
}

func NewService(store ChatStore, completer ai.Completer) *Service {
	return &Service{
		Store:      store,
		AI:         completer,
		Classifier: &Classifier{AI: completer},
		Summarizer: &Summarizer{Store: store, AI: completer},
		Now:        time.Now,
	}
}

func sessionTitle(msg string) string {
	msg = strings.Join(strings.Fields(msg), " ")
	return clip(msg, 60)
}

func (s *Service) session(ctx context.Context, userID uuid.UUID, rawID, firstMessage string) (*models.AssistantSession, error) {
	if rawID == "" {
		return s.Store.CreateSession(ctx, userID, sessionTitle(firstMessage))
	}
	id, err := uuid.Parse(rawID)
	if err != nil {
		return nil, ErrInvalidSession
	}
	return s.Store.GetSession(ctx, userID, id)
}

// Chat answers one user message: store it, classify, build the rule reply, optionally refine
// it with the model, store the answer and compact the session if it has grown long.
func (s *Service) Chat(ctx context.Context, userID uuid.UUID, req ChatRequest) (*ChatResponse, error) {
	msg := strings.TrimSpace(req.Message)
	if msg == "" {
		return nil, ErrEmptyMessage
	}

	sess, err := s.session(ctx, userID, req.SessionID, msg)
	if err != nil {
		return nil, err
	}

	intent, source := s.Classifier.Classify(ctx, msg)

	userTurn := &models.ConversationTurn{SessionID: sess.ID, UserID: userID, Role: models.RoleUser, Content: msg, Intent: intent}
	if err := s.Store.InsertTurn(ctx, userTurn); err != nil {
		return nil, err
	}

	resp := &ChatResponse{Intent: intent, IntentSource: source, SessionID: sess.ID.String()}

	now := s.Now()
	oc, err := BuildOrgContext(ctx, s.Store, userID, now)
	if err != nil {
		log.Printf("[assistant] context for user %s failed: %v", userID, err)
		resp.Reply = DataUnavailableText
	} else {
		reply := BuildReply(intent, msg, oc, now)
		resp.Reply = reply.Text
		if s.AI != nil && (reply.NeedsModel || req.Refine) {
			if refined, provider, err := s.refine(ctx, userID, sess.ID, oc, reply.Text); err != nil {
				log.Printf("[assistant] refinement failed: %v", err)
			} else {
				resp.Reply, resp.Refined, resp.Provider = refined, true, provider
			}
		}
	}

	assistantTurn := &models.ConversationTurn{SessionID: sess.ID, UserID: userID, Role: models.RoleAssistant, Content: resp.Reply, Intent: intent}
	if err := s.Store.InsertTurn(ctx, assistantTurn); err != nil {
		return nil, err
	}
	if err := s.Store.TouchSession(ctx, userID, sess.ID); err != nil {
		log.Printf("[assistant] touch session failed: %v", err)
	}

	if sum, err := s.Summarizer.SummarizeSessionIfNeeded(ctx, sess.ID, userID); err != nil {
		log.Printf("[assistant] summarizer failed for session %s: %v", sess.ID, err)
	} else {
		resp.Summarized = !sum.Skipped
	}
	return resp, nil
}

const maxContextJSON = 12000

func (s *Service) refine(ctx context.Context, userID, sessionID uuid.UUID, oc *models.OrgContext, draft string) (string, string, error) {
	orgJSON, err := json.Marshal(oc)
	if err != nil {
		return "", "", err
	}
	data := string(orgJSON)
	if len(data) > maxContextJSON {
		data = strings.ToValidUTF8(data[:maxContextJSON], "")
	}

	var b strings.Builder
	b.WriteString(`You are WALI, a friendly grants assistant for nonprofits and small organizations.
Answer using ONLY the organization data below. If the data does not contain the answer, say so and suggest where the user can add it.
Keep answers short, use plain language and keep the emoji section headers.

ORGANIZATION DATA (JSON):
`)
	b.WriteString(data)

	if summaries, err := s.Store.ListSessionSummaries(ctx, userID, sessionID); err == nil && len(summaries) > 0 {
		b.WriteString("\n\nEARLIER IN THIS CONVERSATION:\n")
		for _, sum := range summaries {
			b.WriteString(sum.Summary + "\n")
		}
	}
	fmt.Fprintf(&b, "\n\nDRAFT ANSWER FROM THE USER'S RECORDS:\n%s", draft)

	messages := []ai.Message{ai.System(b.String())}
	recent, err := s.Store.ListRecentTurns(ctx, userID, sessionID, RecencyWindow)
	if err != nil {
		return "", "", err
	}
	for _, t := range recent {
		switch t.Role {
		case models.RoleUser:
			messages = append(messages, ai.User(t.Content))
		case models.RoleAssistant:
			messages = append(messages, ai.Assistant(t.Content))
		}
	}

	comp, err := s.AI.GenerateCompletion(ctx, "conversation", messages, ai.Options{MaxTokens: 700, Temperature: 0.5})
	if err != nil {
		return "", "", err
	}
	text := strings.TrimSpace(comp.Content)
	if text == "" {
		return "", "", errors.New("empty refinement")
	}
	return text, string(comp.Provider), nil
}
