package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/wali-os/wali/internal/db"
)

func TestSignupRequestValidate(t *testing.T) {
	tests := []struct {
		name string
		req  SignupRequest
		ok   bool
	}{
		{"valid", SignupRequest{Email: "director@foodbank.org", Password: "longenough"}, true},
		{"bad email", SignupRequest{Email: "nope", Password: "longenough"}, false},
		{"short password", SignupRequest{Email: "a@b.org", Password: "short"}, false},
		{"with organization", SignupRequest{Email: "a@b.org", Password: "longenough", OrganizationName: "Harbor Food Bank", OrganizationType: "Non-Profit"}, true},
		{"spaced organization type", SignupRequest{Email: "a@b.org", Password: "longenough", OrganizationType: "small business"}, true},
		{"unknown organization type", SignupRequest{Email: "a@b.org", Password: "longenough", OrganizationType: "cooperative"}, false},
		{"organization name too long", SignupRequest{Email: "a@b.org", Password: "longenough", OrganizationName: strings.Repeat("x", 201)}, false},
	}
	for _, tt := range tests {
		err := tt.req.Validate()
		if tt.ok && err != nil {
			t.Fatalf("%s: unexpected error %v", tt.name, err)
		}
		if !tt.ok && !errors.Is(err, ErrInvalidSignup) {
			t.Fatalf("%s: expected ErrInvalidSignup, got %v", tt.name, err)
		}
	}
}

func TestMiddleware_TokenRoundTrip(t *testing.T) {
	userID := uuid.New()
	token, err := GenerateToken(userID)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	e := echo.New()
	var seen uuid.UUID
	h := Middleware(func(c echo.Context) error {
		id, err := GetUserIDFromContext(c)
		if err != nil {
			return err
		}
		seen = id
		return c.NoContent(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/context", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	if err := h(e.NewContext(req, rec)); err != nil {
		t.Fatalf("middleware rejected valid token: %v", err)
	}
	if seen != userID {
		t.Fatalf("expected user %s, got %s", userID, seen)
	}
}

func TestMiddleware_RejectsMissingHeader(t *testing.T) {
	e := echo.New()
	h := Middleware(func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/api/context", nil)
	err := h(e.NewContext(req, httptest.NewRecorder()))

	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", err)
	}
}

func TestSignup_CreatesProfileAndRejectsDuplicate(t *testing.T) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}
	ctx := context.Background()
	pool, err := db.Connect(ctx, dbURL)
	if err != nil {
		t.Skip("Database not reachable, skipping integration test")
	}
	t.Cleanup(pool.Close)
	if err := db.ApplyMigrations(ctx, pool); err != nil {
		t.Fatalf("migrations failed: %v", err)
	}

	svc := NewService(pool)
	email := "Signup-" + uuid.NewString() + "@Example.org"
	req := SignupRequest{Email: email, Password: "longenough", OrganizationName: " Harbor Food Bank ", OrganizationType: "Non-Profit"}
	resp, err := svc.Signup(ctx, req)
	if err != nil {
		t.Fatalf("Signup: %v", err)
	}
	t.Cleanup(func() {
		pool.Exec(context.Background(), "DELETE FROM users WHERE id = $1", resp.User.ID)
	})
	if resp.User.Email != strings.ToLower(email) || resp.Token == "" {
		t.Fatalf("unexpected response %+v", resp)
	}

	profile, err := db.NewStore(pool).GetProfile(ctx, resp.User.ID)
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	if profile.OrganizationName != "Harbor Food Bank" || profile.OrganizationType != "nonprofit" {
		t.Fatalf("profile = %q/%q", profile.OrganizationName, profile.OrganizationType)
	}

	if _, err := svc.Signup(ctx, req); !errors.Is(err, ErrUserExists) {
		t.Fatalf("expected ErrUserExists on second signup, got %v", err)
	}
}
