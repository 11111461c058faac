package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"training-relay/dto"
	"training-relay/entities"
	"training-relay/repository"
)

type RecordingService interface {
	SaveRecording(ctx context.Context, sessionId uuid.UUID, req dto.SaveRecordingRequest) error
}

type recordingService struct {
	repo repository.SessionRepository
}

func NewRecordingService(repo repository.SessionRepository) RecordingService {
	return &recordingService{
		repo: repo,
	}
}

// SaveRecording upserts the session's single recording row. A re-encode after
// a retry overwrites the previous metadata; the object path stays stable per
// session so no orphaned files accumulate.
func (s *recordingService) SaveRecording(ctx context.Context, sessionId uuid.UUID, req dto.SaveRecordingRequest) error {
	if _, err := s.repo.FindSessionById(ctx, sessionId); err != nil {
		return err
	}

	recording := &entities.Recording{
		SessionId:       sessionId,
		FilePath:        req.FilePath,
		DurationSeconds: req.DurationSeconds,
		FileSizeBytes:   req.FileSizeBytes,
	}
	if err := s.repo.UpsertRecording(ctx, recording); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("session_id", sessionId.String()).Msg("failed to upsert recording")
		return err
	}

	return nil
}
