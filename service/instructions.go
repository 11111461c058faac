package service

import (
	"context"

	"github.com/google/uuid"
	"training-relay/dto"
	"training-relay/repository"
)

type InstructionService interface {
	ScenarioInstructions(ctx context.Context, scenarioId uuid.UUID) (dto.ScenarioInstructions, error)
}

type instructionService struct {
	repo repository.SessionRepository
}

func NewInstructionService(repo repository.SessionRepository) InstructionService {
	return &instructionService{
		repo: repo,
	}
}

// ScenarioInstructions returns the caller persona for a scenario. Evaluation
// criteria are stored elsewhere and must never travel with the persona: the
// simulated caller would otherwise coach the trainee instead of testing them.
func (s *instructionService) ScenarioInstructions(ctx context.Context, scenarioId uuid.UUID) (dto.ScenarioInstructions, error) {
	scenario, err := s.repo.FindScenarioById(ctx, scenarioId)
	if err != nil {
		return dto.ScenarioInstructions{}, err
	}

	return dto.ScenarioInstructions{
		ScenarioId:   scenario.ID,
		Instructions: scenario.PersonaInstructions,
		Voice:        scenario.Voice,
	}, nil
}
