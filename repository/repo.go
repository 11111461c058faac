package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
	"training-relay/constant"
	"training-relay/entities"
)

var (
	ErrAssignmentNotFound  = errors.New("assignment not found")
	ErrAssignmentCompleted = errors.New("assignment already completed")
	ErrNotAssignmentOwner  = errors.New("assignment belongs to another counselor")
	ErrScenarioNotFound    = errors.New("scenario not found")
	ErrSessionNotFound     = errors.New("session not found")
	ErrSessionConflict     = errors.New("an active session already exists for this counselor and scenario")
)

type SessionRepository interface {
	Migrate(ctx context.Context) error
	GetDB() *gorm.DB
	ResolveAssignmentSession(ctx context.Context, userId, assignmentId uuid.UUID) (*entities.Session, bool, error)
	CreatePracticeSession(ctx context.Context, userId uuid.UUID, scenarioId *uuid.UUID) (*entities.Session, error)
	FindSessionById(ctx context.Context, id uuid.UUID) (*entities.Session, error)
	CompleteSession(ctx context.Context, id uuid.UUID, endedAt time.Time) (*entities.Session, error)
	ReplaceTurns(ctx context.Context, sessionId uuid.UUID, attemptNumber int, turns []entities.TranscriptTurn) (int, error)
	UpsertRecording(ctx context.Context, recording *entities.Recording) error
	FindScenarioById(ctx context.Context, id uuid.UUID) (*entities.Scenario, error)
}

type repo struct {
	db *gorm.DB
}

func NewRepo(db *sql.DB) SessionRepository {
	gormDB, _ := gorm.Open(postgres.New(postgres.Config{
		Conn: db}),
		&gorm.Config{
			Logger: logger.Default.LogMode(logger.Warn),
		},
	)
	return &repo{
		db: gormDB,
	}
}

func (r *repo) GetDB() *gorm.DB {
	return r.db
}

// Migrate creates the relay-owned tables and the partial unique index that
// backstops the lookup-then-create check in the lifecycle service. gorm tags
// cannot express a partial index, so it is raw SQL.
func (r *repo) Migrate(ctx context.Context) error {
	err := r.db.WithContext(ctx).AutoMigrate(
		&entities.Session{},
		&entities.TranscriptTurn{},
		&entities.Recording{},
	)
	if err != nil {
		return err
	}

	return r.db.WithContext(ctx).Exec(
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_training_sessions_active_user_scenario
		 ON training_sessions (user_id, scenario_id)
		 WHERE status <> 'completed' AND user_id IS NOT NULL AND scenario_id IS NOT NULL`,
	).Error
}

// ResolveAssignmentSession finds or creates the session backing an assignment.
// Resuming increments the attempt counter; creating transitions the assignment
// to in_progress in the same transaction. The second return value reports
// whether this is a retry of an existing session.
func (r *repo) ResolveAssignmentSession(ctx context.Context, userId, assignmentId uuid.UUID) (*entities.Session, bool, error) {
	var session *entities.Session
	var isRetry bool

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		assignment := &entities.Assignment{}
		if err := tx.First(assignment, "id = ?", assignmentId).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrAssignmentNotFound
			}
			return err
		}
		if assignment.CounselorId != userId {
			return ErrNotAssignmentOwner
		}
		if assignment.Status == constant.AssignmentStatusCompleted {
			return ErrAssignmentCompleted
		}

		existing := &entities.Session{}
		err := tx.First(existing, "assignment_id = ?", assignmentId).Error
		if err == nil {
			existing.CurrentAttempt++
			existing.Status = constant.SessionStatusActive
			if err := tx.Save(existing).Error; err != nil {
				return err
			}
			session = existing
			isRetry = true
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		now := time.Now().UTC()
		created := &entities.Session{
			AssignmentId:   &assignmentId,
			UserId:         &userId,
			ScenarioId:     &assignment.ScenarioId,
			Status:         constant.SessionStatusActive,
			CurrentAttempt: 1,
			StartedAt:      now,
		}
		if err := tx.Create(created).Error; err != nil {
			return translateConflict(err)
		}

		updates := map[string]interface{}{
			"status":     constant.AssignmentStatusInProgress,
			"started_at": now,
		}
		if err := tx.Model(&entities.Assignment{}).Where("id = ?", assignmentId).Updates(updates).Error; err != nil {
			return err
		}

		session = created
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	return session, isRetry, nil
}

// CreatePracticeSession creates a standalone attempt-1 session for free
// practice. The scenario reference is optional but must exist when given.
func (r *repo) CreatePracticeSession(ctx context.Context, userId uuid.UUID, scenarioId *uuid.UUID) (*entities.Session, error) {
	var session *entities.Session

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if scenarioId != nil {
			scenario := &entities.Scenario{}
			if err := tx.First(scenario, "id = ?", *scenarioId).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrScenarioNotFound
				}
				return err
			}
		}

		created := &entities.Session{
			UserId:         &userId,
			ScenarioId:     scenarioId,
			Status:         constant.SessionStatusActive,
			CurrentAttempt: 1,
			StartedAt:      time.Now().UTC(),
		}
		if err := tx.Create(created).Error; err != nil {
			return translateConflict(err)
		}

		session = created
		return nil
	})
	if err != nil {
		return nil, err
	}

	return session, nil
}

func (r *repo) FindSessionById(ctx context.Context, id uuid.UUID) (*entities.Session, error) {
	session := &entities.Session{}
	err := r.db.WithContext(ctx).First(session, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}

	return session, nil
}

func (r *repo) CompleteSession(ctx context.Context, id uuid.UUID, endedAt time.Time) (*entities.Session, error) {
	session := &entities.Session{}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(session, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrSessionNotFound
			}
			return err
		}
		session.Status = constant.SessionStatusCompleted
		session.EndedAt = &endedAt
		return tx.Save(session).Error
	})
	if err != nil {
		return nil, err
	}

	return session, nil
}

// ReplaceTurns stores a transcript submission for one (session, attempt).
// A submission only replaces stored rows when it is at least as large as what
// is already there, so repeated or racing submissions settle on the fuller
// transcript. The count-then-replace runs in one transaction.
func (r *repo) ReplaceTurns(ctx context.Context, sessionId uuid.UUID, attemptNumber int, turns []entities.TranscriptTurn) (int, error) {
	saved := 0

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		err := tx.Model(&entities.TranscriptTurn{}).
			Where("session_id = ? AND attempt_number = ?", sessionId, attemptNumber).
			Count(&existing).Error
		if err != nil {
			return err
		}

		if int(existing) > len(turns) {
			saved = int(existing)
			return nil
		}

		err = tx.Where("session_id = ? AND attempt_number = ?", sessionId, attemptNumber).
			Delete(&entities.TranscriptTurn{}).Error
		if err != nil {
			return err
		}

		if len(turns) > 0 {
			if err := tx.Create(&turns).Error; err != nil {
				return err
			}
		}

		saved = len(turns)
		return nil
	}, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return 0, err
	}

	return saved, nil
}

func (r *repo) UpsertRecording(ctx context.Context, recording *entities.Recording) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "session_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"file_path", "duration_seconds", "file_size_bytes", "updated_at",
		}),
	}).Create(recording).Error
}

func (r *repo) FindScenarioById(ctx context.Context, id uuid.UUID) (*entities.Scenario, error) {
	scenario := &entities.Scenario{}
	err := r.db.WithContext(ctx).First(scenario, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrScenarioNotFound
		}
		return nil, err
	}

	return scenario, nil
}

func translateConflict(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return ErrSessionConflict
	}
	return err
}
