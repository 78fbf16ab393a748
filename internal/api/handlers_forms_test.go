package api

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
)

func uploadPDF(t *testing.T, s *Server, name string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", name)
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/pdf/analyze", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	for k, v := range bearer(t, uuid.New()) {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.Echo.ServeHTTP(rec, req)
	return rec
}

func TestPDFAnalyzeRejectsUnreadableUpload(t *testing.T) {
	tests := []struct {
		name    string
		content []byte
	}{
		{"not a pdf", []byte("this is a plain text grant narrative")},
		{"truncated pdf", []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _, c := newTestServer(t, "{}")
			rec := uploadPDF(t, s, "application.pdf", tt.content)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d %s, want 400", rec.Code, rec.Body.String())
			}
			if c.calls != 0 {
				t.Fatalf("model called %d times for an unreadable upload", c.calls)
			}
		})
	}
}

func TestPDFAnalyzeRequiresFile(t *testing.T) {
	s, _, _ := newTestServer(t, "{}")
	rec := do(t, s, http.MethodPost, "/api/pdf/analyze", `{}`, bearer(t, uuid.New()))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
