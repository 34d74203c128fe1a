package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"proofengine/internal/domain"
	"proofengine/internal/ports"
)

// SessionRepository

func (db *DB) CreateSession(ctx context.Context, s *domain.OnboardingSession) error {
	stepData, err := json.Marshal(s.StepData)
	if err != nil {
		return err
	}
	completed, err := json.Marshal(s.CompletedSteps)
	if err != nil {
		return err
	}
	return db.Pool.QueryRow(ctx, `
        INSERT INTO onboarding_sessions
            (id, current_step, step_data, completed_steps, is_complete,
             upload_attempt_count, start_over_count, start_over_disabled,
             founder_email, abandoned, version)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 0)
        RETURNING created_at, updated_at
    `, s.SessionID, s.CurrentStep, stepData, completed, s.IsComplete,
		s.UploadAttemptCount, s.StartOverCount, s.StartOverDisabled,
		nullable(s.FounderEmail), s.Abandoned).Scan(&s.CreatedAt, &s.UpdatedAt)
}

func (db *DB) GetSession(ctx context.Context, sessionID string) (*domain.OnboardingSession, error) {
	var (
		s         domain.OnboardingSession
		stepData  []byte
		completed []byte
		email     *string
	)
	err := db.Pool.QueryRow(ctx, `
        SELECT id, current_step, step_data, completed_steps, is_complete,
               upload_attempt_count, start_over_count, start_over_disabled,
               founder_email, abandoned, version, created_at, updated_at
        FROM onboarding_sessions WHERE id = $1
    `, sessionID).Scan(&s.SessionID, &s.CurrentStep, &stepData, &completed,
		&s.IsComplete, &s.UploadAttemptCount, &s.StartOverCount,
		&s.StartOverDisabled, &email, &s.Abandoned, &s.Version,
		&s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ports.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(stepData, &s.StepData); err != nil {
		return nil, fmt.Errorf("decode step data: %w", err)
	}
	if err := json.Unmarshal(completed, &s.CompletedSteps); err != nil {
		return nil, fmt.Errorf("decode completed steps: %w", err)
	}
	if email != nil {
		s.FounderEmail = *email
	}
	return &s, nil
}

// UpdateSession writes the session back guarded by its optimistic version.
// A stale version returns ErrSessionConflict; the caller must re-fetch.
func (db *DB) UpdateSession(ctx context.Context, s *domain.OnboardingSession) error {
	stepData, err := json.Marshal(s.StepData)
	if err != nil {
		return err
	}
	completed, err := json.Marshal(s.CompletedSteps)
	if err != nil {
		return err
	}
	err = db.Pool.QueryRow(ctx, `
        UPDATE onboarding_sessions
        SET current_step = $2, step_data = $3, completed_steps = $4,
            is_complete = $5, upload_attempt_count = $6, start_over_count = $7,
            start_over_disabled = $8, founder_email = $9,
            version = version + 1, updated_at = now()
        WHERE id = $1 AND version = $10
        RETURNING version, updated_at
    `, s.SessionID, s.CurrentStep, stepData, completed, s.IsComplete,
		s.UploadAttemptCount, s.StartOverCount, s.StartOverDisabled,
		nullable(s.FounderEmail), s.Version).Scan(&s.Version, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		var exists bool
		if checkErr := db.Pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM onboarding_sessions WHERE id = $1)`,
			s.SessionID).Scan(&exists); checkErr == nil && !exists {
			return ports.ErrNotFound
		}
		return ports.ErrSessionConflict
	}
	return err
}

func (db *DB) MarkAbandoned(ctx context.Context, sessionID string) error {
	_, err := db.Pool.Exec(ctx, `
        UPDATE onboarding_sessions
        SET abandoned = true, version = version + 1, updated_at = now()
        WHERE id = $1
    `, sessionID)
	return err
}

func (db *DB) FindIncompleteByEmail(ctx context.Context, email string) (*domain.OnboardingSession, error) {
	var id string
	err := db.Pool.QueryRow(ctx, `
        SELECT id FROM onboarding_sessions
        WHERE founder_email = $1 AND is_complete = false AND abandoned = false
        ORDER BY created_at DESC
        LIMIT 1
    `, email).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ports.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return db.GetSession(ctx, id)
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
