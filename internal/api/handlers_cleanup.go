package api

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type cleanupRequest struct {
	Days   int  `json:"days"`
	DryRun bool `json:"dryRun"`
	Async  bool `json:"async"`
}

// handleChatCleanup emails and deletes idle assistant sessions. With async set the pass
// runs in the background and can be polled at /api/chat-cleanup/:id.
func (s *Server) handleChatCleanup(c echo.Context) error {
	var req cleanupRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request")
	}
	olderThan := s.Retention
	if req.Days > 0 {
		olderThan = time.Duration(req.Days) * 24 * time.Hour
	}

	job := *s.Cleanup
	job.DryRun = req.DryRun
	job.Now = s.now

	if !req.Async {
		report, err := job.Run(c.Request().Context(), olderThan)
		if err != nil {
			return s.fail(c, err)
		}
		return c.JSON(http.StatusOK, report)
	}

	s.jobMu.Lock()
	if s.runningJob != nil && s.runningJob.Status == "running" {
		running := s.runningJob.ID
		s.jobMu.Unlock()
		return c.JSON(http.StatusConflict, map[string]string{"error": "cleanup already running", "job_id": running})
	}
	// Detached from the request so the pass outlives the 202 response.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request().Context()), 30*time.Minute)
	bj := &backgroundJob{ID: uuid.NewString(), Status: "running", StartedAt: s.now(), Cancel: cancel}
	s.runningJob = bj
	s.jobMu.Unlock()

	go func() {
		defer cancel()
		report, err := job.Run(ctx, olderThan)

		s.jobMu.Lock()
		defer s.jobMu.Unlock()
		bj.EndedAt = s.now()
		if err != nil {
			bj.Status = "failed"
			bj.Error = err.Error()
			log.Printf("[cleanup-job %s] failed: %v", bj.ID, err)
			return
		}
		bj.Status = "completed"
		bj.Result = report
		log.Printf("[cleanup-job %s] completed: deleted=%d", bj.ID, report.Deleted)
	}()

	return c.JSON(http.StatusAccepted, map[string]interface{}{
		"message": "Cleanup job started",
		"job_id":  bj.ID,
		"poll":    fmt.Sprintf("/api/chat-cleanup/%s", bj.ID),
	})
}

func (s *Server) handleJobStatus(c echo.Context) error {
	queried := c.Param("id")
	s.jobMu.Lock()
	defer s.jobMu.Unlock()

	job := s.runningJob
	if job == nil || job.ID != queried {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "job not found"})
	}

	resp := map[string]interface{}{
		"id":         job.ID,
		"status":     job.Status,
		"started_at": job.StartedAt,
	}
	if !job.EndedAt.IsZero() {
		resp["ended_at"] = job.EndedAt
		resp["duration"] = job.EndedAt.Sub(job.StartedAt).String()
	}
	if job.Result != nil {
		resp["result"] = job.Result
	}
	if job.Error != "" {
		resp["error"] = job.Error
	}

	return c.JSON(http.StatusOK, resp)
}
