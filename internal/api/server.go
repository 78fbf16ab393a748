package api

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/wali-os/wali/internal/ai"
	"github.com/wali-os/wali/internal/analysis"
	"github.com/wali-os/wali/internal/assistant"
	"github.com/wali-os/wali/internal/auth"
	"github.com/wali-os/wali/internal/cleanup"
	"github.com/wali-os/wali/internal/config"
	"github.com/wali-os/wali/internal/db"
	"github.com/wali-os/wali/internal/forms"
	"github.com/wali-os/wali/internal/models"
	"github.com/wali-os/wali/internal/scoring"
)

// Store is every read and write the handlers and their services perform. *db.Store implements it.
type Store interface {
	assistant.ChatStore
	analysis.Store
	scoring.Store
	forms.DefinitionStore
	cleanup.Store
	ListSessions(ctx context.Context, userID uuid.UUID, limit int) ([]models.AssistantSession, error)
}

type Server struct {
	Echo        *echo.Echo
	Store       Store
	AuthService *auth.Service
	AI          ai.Completer
	Router      *ai.Router

	Assistant   *assistant.Service
	Forms       *forms.Analyzer
	Definitions *forms.Definitions
	Scoring     *scoring.Service
	Analysis    *analysis.Service
	Cleanup     *cleanup.Job
	Retention   time.Duration
	Now         func() time.Time

	// Background cleanup tracking
	jobMu      sync.Mutex
	runningJob *backgroundJob
}

type backgroundJob struct {
	ID        string             `json:"id"`
	Status    string             `json:"status"` // running, completed, failed
	StartedAt time.Time          `json:"started_at"`
	EndedAt   time.Time          `json:"ended_at,omitempty"`
	Result    any                `json:"result,omitempty"`
	Error     string             `json:"error,omitempty"`
	Cancel    context.CancelFunc `json:"-"`
}

var (
	adminSecretOnce    sync.Once
	adminSecretRuntime string
	adminSecretErr     error
)

// New wires the services over store and completer. Auth routes stay unavailable until
// AuthService is set.
func New(store Store, completer ai.Completer, cfg config.Config) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	allowedOrigins := cfg.CORSOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:3000"}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: allowedOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, "X-Admin-Secret"},
	}))

	retentionDays := cfg.ChatRetentionDays
	if retentionDays <= 0 {
		retentionDays = 30
	}

	s := &Server{
		Echo:        e,
		Store:       store,
		AI:          completer,
		Assistant:   assistant.NewService(store, completer),
		Forms:       &forms.Analyzer{AI: completer},
		Definitions: &forms.Definitions{Store: store, AI: completer},
		Scoring:     scoring.NewService(store, completer),
		Analysis:    analysis.NewService(store, completer, nil),
		Cleanup: &cleanup.Job{
			Store:  store,
			Mailer: cleanup.NewMailer(cfg.EmailService, cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPFrom),
			Limit:  200,
		},
		Retention: time.Duration(retentionDays) * 24 * time.Hour,
		Now:       time.Now,
	}

	s.routes()
	return s
}

// NewServer builds the production server on a Postgres pool and the provider router.
func NewServer(cfg config.Config, pool *pgxpool.Pool, router *ai.Router, embedder ai.Embedder) *Server {
	s := New(db.NewStore(pool), router, cfg)
	s.Router = router
	s.AuthService = auth.NewService(pool)
	if embedder != nil {
		s.Analysis.Embedder = embedder
	}
	return s
}

func (s *Server) routes() {
	s.Echo.GET("/health", s.handleHealth)
	api := s.Echo.Group("/api")

	// Auth Routes
	api.POST("/auth/signup", s.handleSignup)
	api.POST("/auth/login", s.handleLogin)

	// Admin Routes
	admin := api.Group("")
	admin.Use(s.adminMiddleware)
	admin.POST("/chat-cleanup", s.handleChatCleanup)
	admin.GET("/chat-cleanup/:id", s.handleJobStatus)

	// Protected Routes
	user := api.Group("")
	user.Use(auth.Middleware)
	user.GET("/context", s.handleContext)

	user.POST("/ai/assistant", s.handleAssistant)
	user.GET("/ai/assistant/sessions", s.handleListSessions)
	user.GET("/ai/assistant/sessions/:id", s.handleGetSession)
	user.POST("/ai/assistant/sessions/:id/summarize", s.handleSummarize)
	user.POST("/ai/intent", s.handleIntent)
	user.POST("/ai/categorize", s.handleCategorize)
	user.POST("/ai/enhanced-scoring", s.handleEnhancedScoring)
	user.POST("/ai/project-analysis", s.handleProjectAnalysis)
	user.POST("/ai/opportunity-analysis", s.handleOpportunityAnalysis)
	user.POST("/ai/opportunity-match", s.handleOpportunityMatch)

	user.POST("/form/analyze", s.handleFormAnalyze)
	user.POST("/form/generate", s.handleFormGenerate)
	user.POST("/form/auto-populate", s.handleAutoPopulate)
	user.POST("/form/field-definitions", s.handleFieldDefinitions)
	user.POST("/pdf/analyze", s.handlePDFAnalyze)
}

func (s *Server) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Server) Start(port string) error {
	return s.Echo.Start(":" + port)
}

func (s *Server) handleHealth(c echo.Context) error {
	resp := map[string]interface{}{"status": "ok", "time": s.now().UTC()}
	if s.Router != nil {
		resp["tasks"] = len(s.Router.Tasks())
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleSignup(c echo.Context) error {
	if s.AuthService == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "Auth is not configured"})
	}
	var req auth.SignupRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}

	resp, err := s.AuthService.Signup(c.Request().Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidSignup):
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		case errors.Is(err, auth.ErrUserExists):
			return c.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusCreated, resp)
}

func (s *Server) handleLogin(c echo.Context) error {
	if s.AuthService == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "Auth is not configured"})
	}
	var req auth.LoginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}

	resp, err := s.AuthService.Login(c.Request().Context(), req)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCreds) {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Invalid credentials"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, resp)
}

// errorStatus maps service errors onto HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, forms.ErrValidation),
		errors.Is(err, scoring.ErrValidation),
		errors.Is(err, analysis.ErrValidation),
		errors.Is(err, assistant.ErrEmptyMessage),
		errors.Is(err, assistant.ErrInvalidSession),
		errors.Is(err, forms.ErrNoPDFText):
		return http.StatusBadRequest
	case errors.Is(err, db.ErrNotFound):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func (s *Server) fail(c echo.Context, err error) error {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he
	}
	status := errorStatus(err)
	if status == http.StatusInternalServerError {
		c.Logger().Errorf("%s %s: %v", c.Request().Method, c.Path(), err)
	}
	return c.JSON(status, map[string]string{"error": err.Error()})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, map[string]string{"error": msg})
}

func userID(c echo.Context) (uuid.UUID, error) {
	id, err := auth.GetUserIDFromContext(c)
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
	}
	return id, nil
}

func (s *Server) adminMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		secret, err := adminSecret()
		if err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Server admin configuration error"})
		}

		// Check X-Admin-Secret header or Bearer token
		authHeader := c.Request().Header.Get("Authorization")
		adminHeader := c.Request().Header.Get("X-Admin-Secret")

		if adminHeader != "" && adminHeader == secret {
			return next(c)
		}
		if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
			if authHeader[7:] == secret {
				return next(c)
			}
		}

		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized admin access"})
	}
}

func adminSecret() (string, error) {
	adminSecretOnce.Do(func() {
		secret := strings.TrimSpace(os.Getenv("ADMIN_SECRET"))
		if secret != "" {
			adminSecretRuntime = secret
			return
		}

		buf := make([]byte, 48)
		if _, err := rand.Read(buf); err != nil {
			adminSecretErr = fmt.Errorf("failed to generate ADMIN_SECRET fallback: %w", err)
			return
		}

		adminSecretRuntime = base64.RawURLEncoding.EncodeToString(buf)
		log.Print("ADMIN_SECRET is not set; using ephemeral in-memory fallback secret")
	})

	if adminSecretErr != nil {
		return "", adminSecretErr
	}
	if adminSecretRuntime == "" {
		return "", fmt.Errorf("admin secret unavailable")
	}

	return adminSecretRuntime, nil
}
