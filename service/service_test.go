package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"training-relay/constant"
	"training-relay/entities"
	"training-relay/repository"
)

// fakeRepo is an in-memory SessionRepository with the same reconciliation
// semantics as the postgres implementation.
type fakeRepo struct {
	sessions    map[uuid.UUID]*entities.Session
	scenarios   map[uuid.UUID]*entities.Scenario
	assignments map[uuid.UUID]*entities.Assignment
	turns       map[string][]entities.TranscriptTurn
	recordings  map[uuid.UUID]*entities.Recording
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		sessions:    make(map[uuid.UUID]*entities.Session),
		scenarios:   make(map[uuid.UUID]*entities.Scenario),
		assignments: make(map[uuid.UUID]*entities.Assignment),
		turns:       make(map[string][]entities.TranscriptTurn),
		recordings:  make(map[uuid.UUID]*entities.Recording),
	}
}

func turnKey(sessionId uuid.UUID, attemptNumber int) string {
	return fmt.Sprintf("%s/%d", sessionId, attemptNumber)
}

func (r *fakeRepo) Migrate(ctx context.Context) error { return nil }
func (r *fakeRepo) GetDB() *gorm.DB                   { return nil }

func (r *fakeRepo) ResolveAssignmentSession(ctx context.Context, userId, assignmentId uuid.UUID) (*entities.Session, bool, error) {
	assignment, ok := r.assignments[assignmentId]
	if !ok {
		return nil, false, repository.ErrAssignmentNotFound
	}
	if assignment.CounselorId != userId {
		return nil, false, repository.ErrNotAssignmentOwner
	}
	if assignment.Status == constant.AssignmentStatusCompleted {
		return nil, false, repository.ErrAssignmentCompleted
	}

	for _, session := range r.sessions {
		if session.AssignmentId != nil && *session.AssignmentId == assignmentId {
			session.CurrentAttempt++
			session.Status = constant.SessionStatusActive
			return session, true, nil
		}
	}

	created := &entities.Session{
		ID:             uuid.New(),
		AssignmentId:   &assignmentId,
		UserId:         &userId,
		ScenarioId:     &assignment.ScenarioId,
		Status:         constant.SessionStatusActive,
		CurrentAttempt: 1,
		StartedAt:      time.Now().UTC(),
	}
	r.sessions[created.ID] = created
	assignment.Status = constant.AssignmentStatusInProgress
	return created, false, nil
}

func (r *fakeRepo) CreatePracticeSession(ctx context.Context, userId uuid.UUID, scenarioId *uuid.UUID) (*entities.Session, error) {
	if scenarioId != nil {
		if _, ok := r.scenarios[*scenarioId]; !ok {
			return nil, repository.ErrScenarioNotFound
		}
		for _, session := range r.sessions {
			if session.UserId != nil && *session.UserId == userId &&
				session.ScenarioId != nil && *session.ScenarioId == *scenarioId &&
				session.Status != constant.SessionStatusCompleted {
				return nil, repository.ErrSessionConflict
			}
		}
	}

	created := &entities.Session{
		ID:             uuid.New(),
		UserId:         &userId,
		ScenarioId:     scenarioId,
		Status:         constant.SessionStatusActive,
		CurrentAttempt: 1,
		StartedAt:      time.Now().UTC(),
	}
	r.sessions[created.ID] = created
	return created, nil
}

func (r *fakeRepo) FindSessionById(ctx context.Context, id uuid.UUID) (*entities.Session, error) {
	session, ok := r.sessions[id]
	if !ok {
		return nil, repository.ErrSessionNotFound
	}
	return session, nil
}

func (r *fakeRepo) CompleteSession(ctx context.Context, id uuid.UUID, endedAt time.Time) (*entities.Session, error) {
	session, ok := r.sessions[id]
	if !ok {
		return nil, repository.ErrSessionNotFound
	}
	session.Status = constant.SessionStatusCompleted
	session.EndedAt = &endedAt
	return session, nil
}

func (r *fakeRepo) ReplaceTurns(ctx context.Context, sessionId uuid.UUID, attemptNumber int, turns []entities.TranscriptTurn) (int, error) {
	key := turnKey(sessionId, attemptNumber)
	if existing := r.turns[key]; len(existing) > len(turns) {
		return len(existing), nil
	}
	stored := make([]entities.TranscriptTurn, len(turns))
	copy(stored, turns)
	r.turns[key] = stored
	return len(stored), nil
}

func (r *fakeRepo) UpsertRecording(ctx context.Context, recording *entities.Recording) error {
	r.recordings[recording.SessionId] = recording
	return nil
}

func (r *fakeRepo) FindScenarioById(ctx context.Context, id uuid.UUID) (*entities.Scenario, error) {
	scenario, ok := r.scenarios[id]
	if !ok {
		return nil, repository.ErrScenarioNotFound
	}
	return scenario, nil
}

var _ repository.SessionRepository = (*fakeRepo)(nil)

type publishedEvent struct {
	routingKey string
	body       interface{}
}

type fakePublisher struct {
	events []publishedEvent
	err    error
}

func (p *fakePublisher) Publish(ctx context.Context, routingKey string, body interface{}) error {
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, publishedEvent{routingKey: routingKey, body: body})
	return nil
}
