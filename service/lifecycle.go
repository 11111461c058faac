package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"training-relay/dto"
	"training-relay/repository"
)

const sessionCompletedRoutingKey = "session.completed"

// EventPublisher emits lifecycle events for downstream collaborators, e.g. the
// evaluation trigger that consumes session.completed.
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, body interface{}) error
}

type LifecycleService interface {
	ResolveSession(ctx context.Context, req dto.ResolveSessionRequest) (dto.ResolvedSession, error)
	CompleteSession(ctx context.Context, sessionId uuid.UUID, endedAt time.Time) error
}

type lifecycleService struct {
	repo      repository.SessionRepository
	publisher EventPublisher
}

func NewLifecycleService(repo repository.SessionRepository, publisher EventPublisher) LifecycleService {
	return &lifecycleService{
		repo:      repo,
		publisher: publisher,
	}
}

// ResolveSession finds or creates the backend session a connection should run
// against. Assignment-backed connections resume an existing session by bumping
// its attempt counter; free-practice connections always start at attempt 1.
func (s *lifecycleService) ResolveSession(ctx context.Context, req dto.ResolveSessionRequest) (dto.ResolvedSession, error) {
	if req.AssignmentId != nil {
		session, isRetry, err := s.repo.ResolveAssignmentSession(ctx, req.UserId, *req.AssignmentId)
		if err != nil {
			zerolog.Ctx(ctx).Error().Err(err).
				Str("assignment_id", req.AssignmentId.String()).
				Msg("failed to resolve assignment session")
			return dto.ResolvedSession{}, err
		}
		return dto.ResolvedSession{
			SessionId:     session.ID,
			AttemptNumber: session.CurrentAttempt,
			IsRetry:       isRetry,
		}, nil
	}

	session, err := s.repo.CreatePracticeSession(ctx, req.UserId, req.ScenarioId)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to create practice session")
		return dto.ResolvedSession{}, err
	}

	return dto.ResolvedSession{
		SessionId:     session.ID,
		AttemptNumber: session.CurrentAttempt,
		IsRetry:       false,
	}, nil
}

func (s *lifecycleService) CompleteSession(ctx context.Context, sessionId uuid.UUID, endedAt time.Time) error {
	session, err := s.repo.CompleteSession(ctx, sessionId, endedAt)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("session_id", sessionId.String()).Msg("failed to complete session")
		return err
	}

	if s.publisher != nil {
		message := dto.SessionCompletedMessage{
			SessionId:    session.ID,
			AssignmentId: session.AssignmentId,
			EndedAt:      endedAt,
		}
		// Best effort: the evaluation trigger can recover missed events by
		// scanning completed sessions.
		if err := s.publisher.Publish(ctx, sessionCompletedRoutingKey, message); err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Str("session_id", sessionId.String()).Msg("failed to publish session completed event")
		}
	}

	return nil
}
