package api

import (
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/wali-os/wali/internal/ai"
	"github.com/wali-os/wali/internal/assistant"
	"github.com/wali-os/wali/internal/models"
)

func (s *Server) handleContext(c echo.Context) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	oc, err := assistant.BuildOrgContext(c.Request().Context(), s.Store, uid, s.now())
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, oc)
}

func (s *Server) handleAssistant(c echo.Context) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	var req assistant.ChatRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request")
	}

	resp, err := s.Assistant.Chat(c.Request().Context(), uid, req)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleListSessions(c echo.Context) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	sessions, err := s.Store.ListSessions(c.Request().Context(), uid, limit)
	if err != nil {
		return s.fail(c, err)
	}
	if sessions == nil {
		sessions = []models.AssistantSession{}
	}
	return c.JSON(http.StatusOK, sessions)
}

// sessionParam resolves :id to a session owned by the caller.
func (s *Server) sessionParam(c echo.Context) (uuid.UUID, *models.AssistantSession, error) {
	uid, err := userID(c)
	if err != nil {
		return uuid.Nil, nil, err
	}
	sid, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, nil, assistant.ErrInvalidSession
	}
	session, err := s.Store.GetSession(c.Request().Context(), uid, sid)
	if err != nil {
		return uuid.Nil, nil, err
	}
	return uid, session, nil
}

func (s *Server) handleGetSession(c echo.Context) error {
	uid, session, err := s.sessionParam(c)
	if err != nil {
		return s.fail(c, err)
	}
	ctx := c.Request().Context()

	turns, err := s.Store.ListTurns(ctx, uid, session.ID)
	if err != nil {
		return s.fail(c, err)
	}
	summaries, err := s.Store.ListSessionSummaries(ctx, uid, session.ID)
	if err != nil {
		return s.fail(c, err)
	}
	if turns == nil {
		turns = []models.ConversationTurn{}
	}
	if summaries == nil {
		summaries = []models.SessionSummary{}
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"session":   session,
		"turns":     turns,
		"summaries": summaries,
	})
}

func (s *Server) handleSummarize(c echo.Context) error {
	uid, session, err := s.sessionParam(c)
	if err != nil {
		return s.fail(c, err)
	}

	res, err := s.Assistant.Summarizer.SummarizeSessionIfNeeded(c.Request().Context(), session.ID, uid)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

func (s *Server) handleIntent(c echo.Context) error {
	if _, err := userID(c); err != nil {
		return err
	}
	var req struct {
		Message string `json:"message"`
	}
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request")
	}
	if strings.TrimSpace(req.Message) == "" {
		return s.fail(c, assistant.ErrEmptyMessage)
	}

	intent, source := s.Assistant.Classifier.Classify(c.Request().Context(), req.Message)
	return c.JSON(http.StatusOK, map[string]string{"intent": intent, "source": source})
}

type categorizeRequest struct {
	Type   string `json:"type"`
	Prompt string `json:"prompt"`
}

// handleCategorize answers null when the model produced nothing usable; callers treat
// that as "no suggestion" rather than an error.
func (s *Server) handleCategorize(c echo.Context) error {
	if _, err := userID(c); err != nil {
		return err
	}
	var req categorizeRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request")
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return badRequest(c, "prompt is required")
	}

	result, err := ai.Categorize(c.Request().Context(), s.AI, req.Type, req.Prompt)
	if err != nil {
		log.Printf("[api] categorize %q returned nothing usable: %v", req.Type, err)
		return c.JSON(http.StatusOK, nil)
	}
	return c.JSON(http.StatusOK, result)
}
