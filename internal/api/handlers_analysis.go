package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/wali-os/wali/internal/scoring"
)

func (s *Server) handleEnhancedScoring(c echo.Context) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	var req scoring.Request
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request")
	}

	resp, err := s.Scoring.Run(c.Request().Context(), uid, req)
	if err != nil {
		return s.fail(c, err)
	}

	// Single scores are returned flat so callers can read overallScore directly.
	if req.Action != scoring.ActionBatchScore && len(resp.Results) == 1 {
		return c.JSON(http.StatusOK, resp.Results[0])
	}
	return c.JSON(http.StatusOK, resp)
}

type analysisRequest struct {
	ProjectID     string `json:"projectId"`
	OpportunityID string `json:"opportunityId"`
	Force         bool   `json:"force"`
	Limit         int    `json:"limit"`
}

func (s *Server) handleProjectAnalysis(c echo.Context) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	var req analysisRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request")
	}

	res, err := s.Analysis.AnalyzeProject(c.Request().Context(), uid, req.ProjectID, req.Force)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

func (s *Server) handleOpportunityAnalysis(c echo.Context) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	var req analysisRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request")
	}

	res, err := s.Analysis.AnalyzeOpportunity(c.Request().Context(), uid, req.OpportunityID, req.Force)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

func (s *Server) handleOpportunityMatch(c echo.Context) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	var req analysisRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request")
	}

	res, err := s.Analysis.MatchOpportunities(c.Request().Context(), uid, req.ProjectID, req.Limit)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, res)
}
