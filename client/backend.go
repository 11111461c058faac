// Package client is the HTTP client the relay uses against the collaborator
// API: session lifecycle, scenario lookup, transcript persistence and
// recording records. Calls authenticate with the shared service token, not
// end-user credentials.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"training-relay/dto"
)

type Backend interface {
	ResolveSession(ctx context.Context, req dto.ResolveSessionRequest) (dto.ResolvedSession, error)
	ScenarioInstructions(ctx context.Context, scenarioId uuid.UUID) (dto.ScenarioInstructions, error)
	PersistTurns(ctx context.Context, sessionId uuid.UUID, attemptNumber int, turns []dto.TurnSubmission) (int, error)
	SaveRecording(ctx context.Context, sessionId uuid.UUID, req dto.SaveRecordingRequest) error
	CompleteSession(ctx context.Context, sessionId uuid.UUID, endedAt time.Time) error
}

// APIError carries the collaborator's HTTP status so callers can distinguish
// not-found and conflict from transport failures.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend returned %d: %s", e.StatusCode, e.Message)
}

type backend struct {
	baseURL      string
	serviceToken string
	httpClient   *http.Client
}

func NewBackend(baseURL, serviceToken string, timeout time.Duration) Backend {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &backend{
		baseURL:      baseURL,
		serviceToken: serviceToken,
		httpClient:   &http.Client{Timeout: timeout},
	}
}

func (b *backend) ResolveSession(ctx context.Context, req dto.ResolveSessionRequest) (dto.ResolvedSession, error) {
	var resolved dto.ResolvedSession
	err := b.do(ctx, http.MethodPost, "/internal/v1/sessions/resolve", req, &resolved)
	return resolved, err
}

func (b *backend) ScenarioInstructions(ctx context.Context, scenarioId uuid.UUID) (dto.ScenarioInstructions, error) {
	var instructions dto.ScenarioInstructions
	path := fmt.Sprintf("/internal/v1/scenarios/%s/instructions", scenarioId)
	err := b.do(ctx, http.MethodGet, path, nil, &instructions)
	return instructions, err
}

func (b *backend) PersistTurns(ctx context.Context, sessionId uuid.UUID, attemptNumber int, turns []dto.TurnSubmission) (int, error) {
	req := dto.PersistTurnsRequest{
		AttemptNumber: attemptNumber,
		Turns:         turns,
	}
	var resp dto.PersistTurnsResponse
	path := fmt.Sprintf("/internal/v1/sessions/%s/transcripts", sessionId)
	if err := b.do(ctx, http.MethodPost, path, req, &resp); err != nil {
		return 0, err
	}
	return resp.SavedCount, nil
}

func (b *backend) SaveRecording(ctx context.Context, sessionId uuid.UUID, req dto.SaveRecordingRequest) error {
	path := fmt.Sprintf("/internal/v1/sessions/%s/recording", sessionId)
	return b.do(ctx, http.MethodPut, path, req, nil)
}

func (b *backend) CompleteSession(ctx context.Context, sessionId uuid.UUID, endedAt time.Time) error {
	path := fmt.Sprintf("/internal/v1/sessions/%s/complete", sessionId)
	return b.do(ctx, http.MethodPost, path, dto.CompleteSessionRequest{EndedAt: endedAt}, nil)
}

func (b *backend) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+b.serviceToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		_ = json.Unmarshal(data, &apiErr)
		if apiErr.Error == "" {
			apiErr.Error = http.StatusText(resp.StatusCode)
		}
		return &APIError{StatusCode: resp.StatusCode, Message: apiErr.Error}
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
