package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/wali-os/wali/internal/db"
	"github.com/wali-os/wali/internal/forms"
	"github.com/wali-os/wali/internal/models"
)

const maxPDFBytes = 20 << 20

func (s *Server) handleFormAnalyze(c echo.Context) error {
	if _, err := userID(c); err != nil {
		return err
	}
	var req forms.AnalyzeInput
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request")
	}

	res, err := s.Forms.AnalyzeDocument(c.Request().Context(), req)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// optionalProfile loads the caller's profile; a user without one gets nil.
func (s *Server) optionalProfile(c echo.Context, uid uuid.UUID) (*models.UserProfile, error) {
	p, err := s.Store.GetProfile(c.Request().Context(), uid)
	if errors.Is(err, db.ErrNotFound) {
		return nil, nil
	}
	return p, err
}

// optionalProject loads a project when an id is given.
func (s *Server) optionalProject(c echo.Context, uid uuid.UUID, raw string) (*models.Project, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: bad projectId", forms.ErrValidation)
	}
	return s.Store.GetProject(c.Request().Context(), uid, id)
}

type generateRequest struct {
	OpportunityID string              `json:"opportunityId"`
	ProjectID     string              `json:"projectId"`
	Opportunity   *models.Opportunity `json:"opportunity"`
}

func (s *Server) handleFormGenerate(c echo.Context) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	var req generateRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request")
	}
	ctx := c.Request().Context()

	opp := req.Opportunity
	if opp == nil {
		id, err := uuid.Parse(req.OpportunityID)
		if err != nil {
			return badRequest(c, "opportunityId or opportunity is required")
		}
		if opp, err = s.Store.GetOpportunity(ctx, uid, id); err != nil {
			return s.fail(c, err)
		}
	}
	project, err := s.optionalProject(c, uid, req.ProjectID)
	if err != nil {
		return s.fail(c, err)
	}
	profile, err := s.optionalProfile(c, uid)
	if err != nil {
		return s.fail(c, err)
	}

	res, err := s.Forms.GenerateForm(ctx, opp, project, profile)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

type autoPopulateRequest struct {
	Fields    []forms.Field          `json:"fields"`
	ProjectID string                 `json:"projectId"`
	Extra     map[string]interface{} `json:"extra"`
	UseAI     *bool                  `json:"useAI"`
}

func (s *Server) handleAutoPopulate(c echo.Context) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	var req autoPopulateRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request")
	}
	if len(req.Fields) == 0 {
		return badRequest(c, "fields are required")
	}

	profile, err := s.optionalProfile(c, uid)
	if err != nil {
		return s.fail(c, err)
	}
	project, err := s.optionalProject(c, uid, req.ProjectID)
	if err != nil {
		return s.fail(c, err)
	}
	useAI := req.UseAI == nil || *req.UseAI

	res, err := s.Forms.AutoPopulate(c.Request().Context(), req.Fields,
		forms.UserData{Profile: profile, Project: project, Extra: req.Extra}, useAI)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

type fieldDefinitionsRequest struct {
	FieldNames []string `json:"fieldNames"`
	Force      bool     `json:"force"`
}

func (s *Server) handleFieldDefinitions(c echo.Context) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	var req fieldDefinitionsRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request")
	}

	res, err := s.Definitions.Get(c.Request().Context(), uid, req.FieldNames, req.Force)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// handlePDFAnalyze extracts the text layer of an uploaded PDF and analyzes it as a form.
func (s *Server) handlePDFAnalyze(c echo.Context) error {
	if _, err := userID(c); err != nil {
		return err
	}
	fh, err := c.FormFile("file")
	if err != nil {
		return badRequest(c, "file is required")
	}
	if fh.Size > maxPDFBytes {
		return badRequest(c, fmt.Sprintf("file exceeds %d MB", maxPDFBytes>>20))
	}
	f, err := fh.Open()
	if err != nil {
		return s.fail(c, err)
	}
	defer f.Close()
	content, err := io.ReadAll(io.LimitReader(f, maxPDFBytes+1))
	if err != nil {
		return s.fail(c, err)
	}

	text, err := forms.ExtractPDFText(content)
	if err != nil {
		return s.fail(c, err)
	}

	res, err := s.Forms.AnalyzeDocument(c.Request().Context(), forms.AnalyzeInput{Text: text, DocumentType: "pdf"})
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"fileName":   fh.Filename,
		"textLength": len(text),
		"analysis":   res,
	})
}
