package onboarding

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"proofengine/internal/domain"
	"proofengine/internal/ports"
)

// ProcessScoring runs the processing step: best-effort vault upload of the
// deck, scoring through the document store, validation of the response
// against the expected founder/venture identity, and completion bookkeeping.
//
// Recoverable analysis failures (validator rejection, user-action-required
// documents) come back as a StepResult with HasError set and never as an
// error. Transport failures return an error; the caller's failure path is
// expected to record the attempt via RecordFailedAttempt.
func (s *Service) ProcessScoring(ctx context.Context, sessionID string) (ports.StepResult, error) {
	var res ports.StepResult
	sess, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return res, err
	}

	// Re-running after success returns the cached evaluation without
	// touching the external scorer.
	if sess.IsComplete && sess.StepData.Processing != nil {
		cached := sess.StepData.Processing
		score := cached.TotalScore
		return ports.StepResult{
			SessionID:  sess.SessionID,
			NextStep:   domain.StepComplete,
			IsComplete: true,
			TotalScore: &score,
		}, nil
	}

	if sess.StepData.Upload == nil || !sess.HasCompleted(domain.StepUpload) {
		return res, clientErrf("upload step not completed: upload a pitch deck first")
	}
	ventureID, err := s.resolveVentureID(ctx, sess)
	if err != nil {
		return res, err
	}
	ventureName := ""
	if sess.StepData.Venture != nil {
		ventureName = sess.StepData.Venture.VentureName
	}
	founderName := ""
	if sess.StepData.Founder != nil {
		founderName = sess.StepData.Founder.FullName
	}

	// Scoring needs the vault structure; fail clearly when the venture step
	// never produced one.
	overviewFolderID, err := s.repos.Folders.ResolveFolderID(ctx, ventureID, domain.CategoryOverview)
	if errors.Is(err, ports.ErrFolderNotMapped) {
		return res, clientErrf("folder structure not found for venture %s: complete the venture step before scoring", ventureID)
	}
	if err != nil {
		return res, fmt.Errorf("resolve overview folder: %w", err)
	}

	up := sess.StepData.Upload
	data, err := os.ReadFile(up.TempPath)
	if err != nil {
		// Fatal: the temp file was cleaned up or expired. Never retried.
		return res, clientErrf("uploaded file is no longer available; please upload your pitch deck again")
	}

	// Best-effort vault upload of the deck to the Overview category. The
	// upload row reflects whichever branch executed; scoring proceeds
	// regardless.
	s.recordDeckUpload(ctx, sess, ventureID, overviewFolderID, up, data)

	result, err := s.store.ScorePitchDeck(ctx, data, up.OriginalName)
	if err != nil {
		var uar *ports.UserActionRequiredError
		if errors.As(err, &uar) {
			s.recordAttemptFailure(ctx, sess)
			return ports.StepResult{
				SessionID: sess.SessionID,
				HasError:  true,
				ErrorType: ErrorTypeUserActionRequired,
				Error:     uar.Msg,
				CanRetry:  true,
			}, nil
		}
		return res, fmt.Errorf("pitch deck analysis failed: %w", err)
	}

	if missing := missingScoringData(result, founderName, ventureName); len(missing) > 0 {
		s.recordAttemptFailure(ctx, sess)
		return ports.StepResult{
			SessionID:   sess.SessionID,
			HasError:    true,
			ErrorType:   ErrorTypeValidationFailed,
			Error:       missingDataMessage(missing),
			CanRetry:    true,
			MissingData: missing,
		}, nil
	}

	return s.completeScoring(ctx, sess, ventureID, ventureName, result, up)
}

// recordDeckUpload uploads the deck bytes to the Overview folder and writes
// the DocumentUpload row for whichever branch executed. Pure bookkeeping:
// failures are logged, never surfaced.
func (s *Service) recordDeckUpload(ctx context.Context, sess *domain.OnboardingSession, ventureID, folderID string, up *domain.UploadStepData, data []byte) {
	info, upErr := s.store.UploadFile(ctx, data, up.OriginalName, folderID, true)
	row := &domain.DocumentUpload{
		VentureID:    ventureID,
		Category:     domain.CategoryOverview,
		FolderID:     folderID,
		OriginalName: up.OriginalName,
		SizeBytes:    up.SizeBytes,
		MimeType:     up.MimeType,
	}
	if upErr != nil || info.Fallback {
		row.Status = domain.UploadStatusFailed
		row.CanRetry = true
		if upErr != nil {
			log.Printf("onboarding: deck upload to vault failed for venture %s: %v", ventureID, upErr)
		}
	} else {
		row.Status = domain.UploadStatusCompleted
		row.ExternalID = info.ID
		row.SharedURL = info.URL
	}
	id, err := s.repos.Uploads.CreateUpload(ctx, row)
	if err != nil {
		log.Printf("onboarding: record deck upload for venture %s: %v", ventureID, err)
		return
	}
	up.UploadID = id
}

func (s *Service) completeScoring(ctx context.Context, sess *domain.OnboardingSession, ventureID, ventureName string, result domain.ScoringResult, up *domain.UploadStepData) (ports.StepResult, error) {
	var res ports.StepResult
	total := 0.0
	if result.TotalScore != nil {
		total = *result.TotalScore
	}

	if err := os.Remove(up.TempPath); err != nil && !os.IsNotExist(err) {
		log.Printf("onboarding: remove temp upload %s: %v", up.TempPath, err)
	}

	s.syncScoredTeam(ctx, ventureID, result)

	eval := &domain.Evaluation{
		VentureID:   ventureID,
		TotalScore:  total,
		Tags:        result.Tags,
		Dimensions:  result.Dimensions,
		RawResponse: result.Raw,
		IsCurrent:   true,
	}
	evalID, err := s.repos.Evaluations.CreateEvaluation(ctx, eval)
	if err != nil {
		return res, fmt.Errorf("create evaluation: %w", err)
	}

	vaultScore := result.Dimensions["vault"]
	if err := s.repos.Ventures.SetScores(ctx, ventureID, total, vaultScore); err != nil {
		log.Printf("onboarding: set venture scores %s: %v", ventureID, err)
	}
	if err := s.repos.Leaderboard.UpsertIfHigher(ctx, domain.LeaderboardEntry{
		VentureID:   ventureID,
		VentureName: ventureName,
		Score:       total,
		UpdatedAt:   time.Now().UTC(),
	}); err != nil {
		log.Printf("onboarding: leaderboard upsert %s: %v", ventureID, err)
	}
	if sess.StepData.Founder != nil {
		if err := s.repos.Founders.MarkFounderComplete(ctx, sess.StepData.Founder.FounderID); err != nil {
			log.Printf("onboarding: mark founder complete: %v", err)
		}
	}

	sess.StepData.Processing = &domain.ProcessingStepData{
		EvaluationID:  evalID,
		TotalScore:    total,
		Tags:          result.Tags,
		ScoringResult: result.Raw,
	}
	sess.MarkCompleted(domain.StepProcessing)
	advanceTo(sess, domain.StepComplete)
	sess.IsComplete = true
	if err := s.repos.Sessions.UpdateSession(ctx, sess); err != nil {
		return res, fmt.Errorf("save session: %w", err)
	}

	// Certificate/report generation is out-of-band follow-up work; enqueue
	// failures never fail the scoring response.
	for _, kind := range []string{ports.ReportJobCertificate, ports.ReportJobReport} {
		if _, err := s.repos.ReportJobs.EnqueueReportJob(ctx, ventureID, evalID, kind); err != nil {
			log.Printf("onboarding: enqueue %s job for venture %s: %v", kind, ventureID, err)
		}
	}

	s.notifier.ScoringOutcome(ports.ScoringNotice{
		SessionID:    sess.SessionID,
		FounderEmail: sess.FounderEmail,
		VentureName:  ventureName,
		Score:        total,
		Success:      true,
	})

	res = ports.StepResult{
		SessionID:  sess.SessionID,
		NextStep:   domain.StepComplete,
		VentureID:  ventureID,
		IsComplete: true,
		TotalScore: &total,
	}
	return res, nil
}

// syncScoredTeam creates team members found in the scoring response that
// are not already recorded, deduplicating by case-insensitive name.
func (s *Service) syncScoredTeam(ctx context.Context, ventureID string, result domain.ScoringResult) {
	scored := result.ExtractTeamMembers()
	if len(scored) == 0 {
		return
	}
	existing, err := s.repos.Team.ListTeamMembers(ctx, ventureID)
	if err != nil {
		log.Printf("onboarding: list team members %s: %v", ventureID, err)
		return
	}
	known := make(map[string]bool, len(existing))
	for _, m := range existing {
		known[strings.ToLower(strings.TrimSpace(m.Name))] = true
	}
	for _, m := range scored {
		key := strings.ToLower(strings.TrimSpace(m.Name))
		if key == "" || known[key] {
			continue
		}
		known[key] = true
		if err := s.repos.Team.AddTeamMember(ctx, &domain.TeamMember{
			VentureID: ventureID,
			Name:      strings.TrimSpace(m.Name),
			Role:      strings.TrimSpace(m.Role),
		}); err != nil {
			log.Printf("onboarding: add scored team member %q: %v", m.Name, err)
		}
	}
}

// recordAttemptFailure advances the attempt counter and marks the deck
// upload row retryable. Session save errors are logged only: the structured
// analysis error must still reach the caller.
func (s *Service) recordAttemptFailure(ctx context.Context, sess *domain.OnboardingSession) {
	sess.UploadAttemptCount++
	if err := s.repos.Sessions.UpdateSession(ctx, sess); err != nil {
		log.Printf("onboarding: record failed attempt for session %s: %v", sess.SessionID, err)
	}
	if sess.StepData.Upload != nil && sess.StepData.Upload.UploadID != "" {
		row, err := s.repos.Uploads.GetUpload(ctx, sess.StepData.Upload.UploadID)
		if err == nil && row != nil {
			row.Status = domain.UploadStatusFailed
			row.CanRetry = true
			if err := s.repos.Uploads.UpdateUpload(ctx, row); err != nil {
				log.Printf("onboarding: mark upload retryable %s: %v", row.ID, err)
			}
		}
	}
	s.notifier.ScoringOutcome(ports.ScoringNotice{
		SessionID:    sess.SessionID,
		FounderEmail: sess.FounderEmail,
		Success:      false,
		Reason:       fmt.Sprintf("analysis attempt %d failed", sess.UploadAttemptCount),
	})
}

// RecordFailedAttempt is the caller-side failure path for scoring errors
// that propagated as step failures (timeouts, transport errors).
func (s *Service) RecordFailedAttempt(ctx context.Context, sessionID string) error {
	sess, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return err
	}
	s.recordAttemptFailure(ctx, sess)
	return nil
}
