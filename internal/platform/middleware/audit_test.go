package middleware

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinic/clinic/internal/platform/auth"
)

type mockRecorder struct {
	mu      sync.Mutex
	entries []AuditEntry
	err     error
}

func (m *mockRecorder) RecordAccess(entry AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return m.err
}

func (m *mockRecorder) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *mockRecorder) last() AuditEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries[len(m.entries)-1]
}

func runAudit(t *testing.T, rec AuditRecorder, method, path string, userID string, next echo.HandlerFunc) error {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(method, path, nil)
	if userID != "" {
		req = req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{UserID: userID, Email: "alice@example.com"}))
	}
	c := e.NewContext(req, httptest.NewRecorder())
	c.Set("request_id", "req-123")
	return Audit(zerolog.Nop(), rec)(next)(c)
}

func okHandler(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func TestAudit_PatientRead(t *testing.T) {
	rec := &mockRecorder{}
	id := uuid.NewString()

	if err := runAudit(t, rec, http.MethodGet, "/api/patients/"+id, "user-1", okHandler); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.count() != 1 {
		t.Fatalf("expected 1 entry, got %d", rec.count())
	}
	entry := rec.last()
	if entry.UserID != "user-1" {
		t.Errorf("expected user-1, got %q", entry.UserID)
	}
	if entry.Resource != "patients" {
		t.Errorf("expected resource patients, got %q", entry.Resource)
	}
	if entry.PatientID != id {
		t.Errorf("expected patient id %s, got %q", id, entry.PatientID)
	}
	if entry.Action != "read" {
		t.Errorf("expected read, got %q", entry.Action)
	}
	if entry.RequestID != "req-123" {
		t.Errorf("expected req-123, got %q", entry.RequestID)
	}
	if entry.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", entry.StatusCode)
	}
}

func TestAudit_Actions(t *testing.T) {
	tests := []struct {
		method, path      string
		action, resource  string
		patientIDExpected bool
	}{
		{http.MethodPost, "/api/patients", "create", "patients", false},
		{http.MethodPut, "/api/patients/" + uuid.NewString(), "update", "patients", true},
		{http.MethodDelete, "/api/patients/" + uuid.NewString(), "delete", "patients", true},
		{http.MethodGet, "/api/patients/search", "read", "patients", false},
		{http.MethodPost, "/api/chat", "create", "chat", false},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := &mockRecorder{}
			_ = runAudit(t, rec, tt.method, tt.path, "user-1", okHandler)
			if rec.count() != 1 {
				t.Fatalf("expected 1 entry, got %d", rec.count())
			}
			entry := rec.last()
			if entry.Action != tt.action {
				t.Errorf("expected action %s, got %s", tt.action, entry.Action)
			}
			if entry.Resource != tt.resource {
				t.Errorf("expected resource %s, got %s", tt.resource, entry.Resource)
			}
			if (entry.PatientID != "") != tt.patientIDExpected {
				t.Errorf("unexpected patient id %q", entry.PatientID)
			}
		})
	}
}

func TestAudit_SkipsOtherPaths(t *testing.T) {
	for _, path := range []string{"/health", "/api/auth/login", "/api/patientsx"} {
		rec := &mockRecorder{}
		_ = runAudit(t, rec, http.MethodGet, path, "", okHandler)
		if rec.count() != 0 {
			t.Errorf("%s: expected no audit entry, got %d", path, rec.count())
		}
	}
}

func TestAudit_RecordsErrorStatus(t *testing.T) {
	rec := &mockRecorder{}
	err := runAudit(t, rec, http.MethodGet, "/api/patients/"+uuid.NewString(), "user-1", func(echo.Context) error {
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	})
	if err == nil {
		t.Fatal("expected handler error to propagate")
	}
	if got := rec.last().StatusCode; got != http.StatusNotFound {
		t.Errorf("expected 404, got %d", got)
	}
}

func TestAudit_RecorderFailureIsLogged(t *testing.T) {
	var buf bytes.Buffer
	rec := &mockRecorder{err: errors.New("disk full")}
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/patients", nil), httptest.NewRecorder())

	if err := Audit(zerolog.New(&buf), rec)(okHandler)(c); err != nil {
		t.Fatalf("recorder failure must not fail the request: %v", err)
	}
	if !strings.Contains(buf.String(), "failed to record audit entry") {
		t.Errorf("expected recorder failure in log, got %q", buf.String())
	}
	if !strings.Contains(buf.String(), "phi_access") {
		t.Errorf("expected phi_access log line, got %q", buf.String())
	}
}

func TestExtractPatientID(t *testing.T) {
	id := uuid.NewString()
	tests := map[string]string{
		"/api/patients/" + id:        id,
		"/api/patients/" + id + "/x": id,
		"/api/patients/recent":       "",
		"/api/patients":              "",
		"/api/chat":                  "",
	}
	for path, want := range tests {
		if got := extractPatientID(path); got != want {
			t.Errorf("%s: expected %q, got %q", path, want, got)
		}
	}
}
