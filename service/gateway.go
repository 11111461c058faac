package service

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"training-relay/dto"
	"training-relay/entities"
	"training-relay/repository"
)

// GatewayService is the idempotent write path for transcript submissions.
// Both the relay (at drain) and the client (via a fast path) may submit the
// same attempt; most-turns-wins reconciliation keeps the fuller transcript.
type GatewayService interface {
	PersistTurns(ctx context.Context, sessionId uuid.UUID, attemptNumber int, turns []dto.TurnSubmission) (int, error)
}

type gatewayService struct {
	repo repository.SessionRepository
}

func NewGatewayService(repo repository.SessionRepository) GatewayService {
	return &gatewayService{
		repo: repo,
	}
}

func (s *gatewayService) PersistTurns(ctx context.Context, sessionId uuid.UUID, attemptNumber int, turns []dto.TurnSubmission) (int, error) {
	if _, err := s.repo.FindSessionById(ctx, sessionId); err != nil {
		return 0, err
	}

	// Turn order follows capture time, not submission or arrival order:
	// transcription events for the two roles complete asynchronously.
	ordered := make([]dto.TurnSubmission, len(turns))
	copy(ordered, turns)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].CapturedAt.Before(ordered[j].CapturedAt)
	})

	rows := make([]entities.TranscriptTurn, 0, len(ordered))
	for i, turn := range ordered {
		rows = append(rows, entities.TranscriptTurn{
			SessionId:     sessionId,
			Role:          turn.Role,
			Content:       turn.Content,
			TurnOrder:     i,
			AttemptNumber: attemptNumber,
			CapturedAt:    turn.CapturedAt,
		})
	}

	saved, err := s.repo.ReplaceTurns(ctx, sessionId, attemptNumber, rows)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).
			Str("session_id", sessionId.String()).
			Int("attempt_number", attemptNumber).
			Msg("failed to persist transcript turns")
		return 0, err
	}

	if saved > len(rows) {
		zerolog.Ctx(ctx).Info().
			Str("session_id", sessionId.String()).
			Int("attempt_number", attemptNumber).
			Int("submitted", len(rows)).
			Int("kept", saved).
			Msg("kept larger existing transcript")
	}

	return saved, nil
}
