package onboarding

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"proofengine/internal/domain"
	"proofengine/internal/ports"
)

// startOverThreshold is the failed-attempt count at which start-over
// becomes available.
const startOverThreshold = 3

// supportThreshold is the attempt count after a used start-over at which
// the UI should steer the user to support.
const supportThreshold = 6

// canStartOver enforces all four eligibility conditions simultaneously.
func canStartOver(sess *domain.OnboardingSession) bool {
	if sess == nil {
		return false
	}
	return !sess.StartOverDisabled &&
		sess.StartOverCount < 1 &&
		sess.UploadAttemptCount >= startOverThreshold
}

// Status reports the attempt counter and the retry/start-over affordances.
func (s *Service) Status(ctx context.Context, sessionID string) (ports.StatusReport, error) {
	var rep ports.StatusReport
	sess, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return rep, err
	}
	can := canStartOver(sess)
	rep = ports.StatusReport{
		SessionID:          sess.SessionID,
		CurrentStep:        sess.CurrentStep,
		IsComplete:         sess.IsComplete,
		AttemptCount:       sess.UploadAttemptCount,
		CanStartOver:       can,
		ShowStartOver:      can,
		ShowContactSupport: sess.StartOverDisabled || (sess.StartOverCount >= 1 && sess.UploadAttemptCount >= supportThreshold),
	}
	return rep, nil
}

// StartOver issues a fresh session at the founder step, carrying forward
// the attempt history and founder email. The old session is marked
// abandoned but retained. Exactly one start-over is ever permitted.
func (s *Service) StartOver(ctx context.Context, sessionID string) (string, error) {
	sess, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return "", err
	}
	if sess.IsComplete {
		return "", clientErrf("onboarding is already complete; nothing to start over")
	}
	if sess.StartOverCount >= 1 {
		return "", clientErrf("maximum start over attempts reached")
	}
	if sess.StartOverDisabled {
		return "", clientErrf("start over is no longer available; please contact support")
	}
	if sess.UploadAttemptCount < startOverThreshold {
		return "", clientErrf("start over requires %d failed analysis attempts; you have %d", startOverThreshold, sess.UploadAttemptCount)
	}

	newCount := sess.StartOverCount + 1
	now := time.Now().UTC()
	fresh := &domain.OnboardingSession{
		SessionID:          uuid.NewString(),
		CurrentStep:        domain.StepFounder,
		UploadAttemptCount: sess.UploadAttemptCount,
		StartOverCount:     newCount,
		StartOverDisabled:  newCount >= 1,
		FounderEmail:       sess.FounderEmail,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.repos.Sessions.CreateSession(ctx, fresh); err != nil {
		return "", fmt.Errorf("create start-over session: %w", err)
	}

	sess.StartOverCount = newCount
	if err := s.repos.Sessions.UpdateSession(ctx, sess); err != nil {
		log.Printf("onboarding: record start-over on session %s: %v", sess.SessionID, err)
	}
	if err := s.repos.Sessions.MarkAbandoned(ctx, sess.SessionID); err != nil {
		log.Printf("onboarding: abandon session %s: %v", sess.SessionID, err)
	}

	s.notifier.StepCompleted(fresh.SessionID, "start-over", fresh.FounderEmail,
		fmt.Sprintf("replaces %s after %d failed attempts", sess.SessionID, sess.UploadAttemptCount))
	return fresh.SessionID, nil
}
