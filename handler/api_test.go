package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"training-relay/dto"
	"training-relay/repository"
)

type stubLifecycle struct {
	resolved    dto.ResolvedSession
	resolveErr  error
	completeErr error
	completedAt time.Time
}

func (s *stubLifecycle) ResolveSession(ctx context.Context, req dto.ResolveSessionRequest) (dto.ResolvedSession, error) {
	return s.resolved, s.resolveErr
}

func (s *stubLifecycle) CompleteSession(ctx context.Context, sessionId uuid.UUID, endedAt time.Time) error {
	s.completedAt = endedAt
	return s.completeErr
}

type stubGateway struct {
	saved int
	err   error

	gotAttempt int
	gotTurns   []dto.TurnSubmission
}

func (s *stubGateway) PersistTurns(ctx context.Context, sessionId uuid.UUID, attemptNumber int, turns []dto.TurnSubmission) (int, error) {
	s.gotAttempt = attemptNumber
	s.gotTurns = turns
	return s.saved, s.err
}

type stubRecordings struct {
	err error
	got dto.SaveRecordingRequest
}

func (s *stubRecordings) SaveRecording(ctx context.Context, sessionId uuid.UUID, req dto.SaveRecordingRequest) error {
	s.got = req
	return s.err
}

type stubInstructions struct {
	instructions dto.ScenarioInstructions
	err          error
}

func (s *stubInstructions) ScenarioInstructions(ctx context.Context, scenarioId uuid.UUID) (dto.ScenarioInstructions, error) {
	return s.instructions, s.err
}

func newTestRouter(api *API) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	internal := router.Group("/internal/v1")
	internal.POST("/sessions/resolve", api.ResolveSession)
	internal.POST("/sessions/:id/transcripts", api.PersistTurns)
	internal.PUT("/sessions/:id/recording", api.SaveRecording)
	internal.POST("/sessions/:id/complete", api.CompleteSession)
	internal.GET("/scenarios/:id/instructions", api.ScenarioInstructions)
	return router
}

func doJSON(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestResolveSessionEndpoint(t *testing.T) {
	sessionId := uuid.New()
	lifecycle := &stubLifecycle{
		resolved: dto.ResolvedSession{SessionId: sessionId, AttemptNumber: 2, IsRetry: true},
	}
	router := newTestRouter(&API{Lifecycle: lifecycle})

	body := `{"userId":"` + uuid.NewString() + `"}`
	rec := doJSON(router, http.MethodPost, "/internal/v1/sessions/resolve", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resolved dto.ResolvedSession
	if err := json.Unmarshal(rec.Body.Bytes(), &resolved); err != nil {
		t.Fatal(err)
	}
	if resolved.SessionId != sessionId || resolved.AttemptNumber != 2 || !resolved.IsRetry {
		t.Errorf("resolved = %+v", resolved)
	}
}

func TestResolveSessionRejectsMissingUser(t *testing.T) {
	router := newTestRouter(&API{Lifecycle: &stubLifecycle{}})
	rec := doJSON(router, http.MethodPost, "/internal/v1/sessions/resolve", `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestDomainErrorStatusMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"assignment not found", repository.ErrAssignmentNotFound, http.StatusNotFound},
		{"scenario not found", repository.ErrScenarioNotFound, http.StatusNotFound},
		{"session not found", repository.ErrSessionNotFound, http.StatusNotFound},
		{"assignment completed", repository.ErrAssignmentCompleted, http.StatusConflict},
		{"session conflict", repository.ErrSessionConflict, http.StatusConflict},
		{"foreign assignment", repository.ErrNotAssignmentOwner, http.StatusForbidden},
		{"unexpected", errors.New("db down"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(&API{Lifecycle: &stubLifecycle{resolveErr: tt.err}})
			body := `{"userId":"` + uuid.NewString() + `"}`
			rec := doJSON(router, http.MethodPost, "/internal/v1/sessions/resolve", body)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestPersistTurnsEndpoint(t *testing.T) {
	gateway := &stubGateway{saved: 2}
	router := newTestRouter(&API{Gateway: gateway})
	sessionId := uuid.New()

	body := `{
		"attemptNumber": 3,
		"turns": [
			{"role":"assistant","content":"Hola","capturedAt":"2026-03-10T12:00:00Z"},
			{"role":"user","content":"I hear you","capturedAt":"2026-03-10T12:00:05Z"}
		]
	}`
	rec := doJSON(router, http.MethodPost, "/internal/v1/sessions/"+sessionId.String()+"/transcripts", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp dto.PersistTurnsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.SavedCount != 2 {
		t.Errorf("saved count = %d", resp.SavedCount)
	}
	if gateway.gotAttempt != 3 || len(gateway.gotTurns) != 2 {
		t.Errorf("gateway received attempt %d with %d turns", gateway.gotAttempt, len(gateway.gotTurns))
	}
}

func TestPersistTurnsRejectsBadInput(t *testing.T) {
	router := newTestRouter(&API{Gateway: &stubGateway{}})
	sessionId := uuid.New()

	rec := doJSON(router, http.MethodPost, "/internal/v1/sessions/not-a-uuid/transcripts", `{"attemptNumber":1}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad session id: status = %d, want 400", rec.Code)
	}

	rec = doJSON(router, http.MethodPost, "/internal/v1/sessions/"+sessionId.String()+"/transcripts", `{"turns":[]}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing attempt number: status = %d, want 400", rec.Code)
	}
}

func TestCompleteSessionDefaultsEndedAt(t *testing.T) {
	lifecycle := &stubLifecycle{}
	router := newTestRouter(&API{Lifecycle: lifecycle})
	sessionId := uuid.New()

	before := time.Now().UTC()
	rec := doJSON(router, http.MethodPost, "/internal/v1/sessions/"+sessionId.String()+"/complete", `{}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if lifecycle.completedAt.Before(before) {
		t.Errorf("ended_at %v not defaulted to now", lifecycle.completedAt)
	}
}

func TestSaveRecordingEndpoint(t *testing.T) {
	recordings := &stubRecordings{}
	router := newTestRouter(&API{Recordings: recordings})
	sessionId := uuid.New()

	body := `{"filePath":"recordings/a.wav","durationSeconds":42,"fileSizeBytes":2016044}`
	rec := doJSON(router, http.MethodPut, "/internal/v1/sessions/"+sessionId.String()+"/recording", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if recordings.got.FilePath != "recordings/a.wav" || recordings.got.DurationSeconds != 42 {
		t.Errorf("recording request = %+v", recordings.got)
	}
}

func TestScenarioInstructionsEndpoint(t *testing.T) {
	scenarioId := uuid.New()
	instructions := &stubInstructions{
		instructions: dto.ScenarioInstructions{ScenarioId: scenarioId, Instructions: "persona", Voice: "coral"},
	}
	router := newTestRouter(&API{Instructions: instructions})

	rec := doJSON(router, http.MethodGet, "/internal/v1/scenarios/"+scenarioId.String()+"/instructions", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var got dto.ScenarioInstructions
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.ScenarioId != scenarioId || got.Voice != "coral" {
		t.Errorf("instructions = %+v", got)
	}

	rec = doJSON(router, http.MethodGet, "/internal/v1/scenarios/nope/instructions", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad scenario id: status = %d, want 400", rec.Code)
	}
}
