package onboarding

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"proofengine/internal/domain"
	"proofengine/internal/ports"
)

func newTestService(t *testing.T) (*Service, *memStore, *fakeVault, *recordingNotifier) {
	t.Helper()
	ms := newMemStore()
	vault := &fakeVault{}
	notifier := &recordingNotifier{}
	svc := New(Repos{
		Sessions:    ms,
		Founders:    ms,
		Ventures:    ms,
		Team:        ms,
		Uploads:     ms,
		Evaluations: ms,
		Leaderboard: ms,
		Folders:     ms,
		ReportJobs:  ms,
	}, vault, notifier, Options{UploadDir: t.TempDir(), MaxUploadMB: 1})
	return svc, ms, vault, notifier
}

func deckInput() ports.UploadInput {
	return ports.UploadInput{
		OriginalName: "deck.pdf",
		MimeType:     "application/pdf",
		SizeBytes:    8,
		Content:      strings.NewReader("%PDF-1.4"),
	}
}

func founderInput() ports.FounderInput {
	return ports.FounderInput{
		FullName:    "Jane Doe",
		Email:       "jane@acme.io",
		Role:        "CEO",
		VentureName: "Acme",
	}
}

// driveToProcessing walks a fresh session through founder, venture, team and
// upload, leaving it ready for ProcessScoring.
func driveToProcessing(t *testing.T, svc *Service) string {
	t.Helper()
	ctx := context.Background()
	sess, err := svc.StartSession(ctx)
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if _, err := svc.SubmitFounder(ctx, sess.SessionID, founderInput()); err != nil {
		t.Fatalf("SubmitFounder: %v", err)
	}
	if _, err := svc.SubmitVenture(ctx, sess.SessionID, ports.VentureInput{
		Name: "Acme", Industry: "fintech", Stage: "seed",
	}); err != nil {
		t.Fatalf("SubmitVenture: %v", err)
	}
	if _, err := svc.SubmitTeam(ctx, sess.SessionID, ports.TeamInput{
		Members: []ports.TeamMemberInput{{Name: "Jane Doe", Role: "CEO"}},
	}); err != nil {
		t.Fatalf("SubmitTeam: %v", err)
	}
	if _, err := svc.SubmitUpload(ctx, sess.SessionID, deckInput()); err != nil {
		t.Fatalf("SubmitUpload: %v", err)
	}
	return sess.SessionID
}

func fullScore(total float64) domain.ScoringResult {
	return domain.ScoringResult{
		TotalScore: &total,
		Tags:       []string{"fintech"},
		Dimensions: map[string]float64{"problem": 80, "solution": 78, "team": 85, "vault": 75},
		Venture:    json.RawMessage(`{"name":"Acme"}`),
		Team:       json.RawMessage(`[{"name":"Jane Doe","role":"CEO"},{"name":"Sam Lee","role":"CTO"}]`),
		Raw:        json.RawMessage(`{"output":{"total_score":82}}`),
	}
}

func TestFullOnboardingFlow(t *testing.T) {
	svc, ms, vault, notifier := newTestService(t)
	ctx := context.Background()

	sessionID := driveToProcessing(t, svc)
	vault.queueScore(fullScore(82), nil)

	res, err := svc.ProcessScoring(ctx, sessionID)
	if err != nil {
		t.Fatalf("ProcessScoring: %v", err)
	}
	if res.HasError {
		t.Fatalf("unexpected step error: %s", res.Error)
	}
	if !res.IsComplete || res.NextStep != domain.StepComplete {
		t.Fatalf("result not complete: %+v", res)
	}
	if res.TotalScore == nil || *res.TotalScore != 82 {
		t.Fatalf("want total score 82, got %v", res.TotalScore)
	}

	sess, err := ms.GetSession(ctx, sessionID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if !sess.IsComplete || sess.CurrentStep != domain.StepComplete {
		t.Fatalf("session not completed: step=%s complete=%v", sess.CurrentStep, sess.IsComplete)
	}
	if sess.UploadAttemptCount != 0 {
		t.Fatalf("successful run must not count an attempt, got %d", sess.UploadAttemptCount)
	}

	ventureID := res.VentureID
	eval, err := ms.CurrentEvaluation(ctx, ventureID)
	if err != nil {
		t.Fatalf("CurrentEvaluation: %v", err)
	}
	if eval.TotalScore != 82 {
		t.Fatalf("want evaluation score 82, got %v", eval.TotalScore)
	}

	entry, ok := ms.board[ventureID]
	if !ok || entry.Score != 82 {
		t.Fatalf("leaderboard entry missing or wrong: %+v", entry)
	}

	founder, err := ms.GetFounderByEmail(ctx, "jane@acme.io")
	if err != nil {
		t.Fatalf("GetFounderByEmail: %v", err)
	}
	if !founder.OnboardingComplete {
		t.Fatal("founder not marked complete")
	}

	// Sam Lee came from the scoring response; Jane Doe is deduplicated.
	members, _ := ms.ListTeamMembers(ctx, ventureID)
	if len(members) != 2 {
		t.Fatalf("want 2 team members after sync, got %d", len(members))
	}

	if len(ms.jobs) != 2 {
		t.Fatalf("want certificate and report jobs enqueued, got %d", len(ms.jobs))
	}
	kinds := map[string]bool{}
	for _, j := range ms.jobs {
		kinds[j.Kind] = true
	}
	if !kinds[ports.ReportJobCertificate] || !kinds[ports.ReportJobReport] {
		t.Fatalf("unexpected job kinds: %v", kinds)
	}

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	if len(notifier.notices) != 1 || !notifier.notices[0].Success {
		t.Fatalf("want one success notice, got %+v", notifier.notices)
	}
}

func TestStepOrderEnforced(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()
	sess, err := svc.StartSession(ctx)
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}

	if _, err := svc.SubmitVenture(ctx, sess.SessionID, ports.VentureInput{Name: "Acme", Industry: "x", Stage: "seed"}); !IsClientError(err) {
		t.Fatalf("venture before founder: want client error, got %v", err)
	}
	if _, err := svc.SubmitTeam(ctx, sess.SessionID, ports.TeamInput{}); !IsClientError(err) {
		t.Fatalf("team before venture: want client error, got %v", err)
	}
	if _, err := svc.SubmitUpload(ctx, sess.SessionID, deckInput()); !IsClientError(err) {
		t.Fatalf("upload before team: want client error, got %v", err)
	}
	if _, err := svc.ProcessScoring(ctx, sess.SessionID); !IsClientError(err) {
		t.Fatalf("processing before upload: want client error, got %v", err)
	}
}

func TestSessionStepNeverMovesBackward(t *testing.T) {
	svc, ms, _, _ := newTestService(t)
	ctx := context.Background()
	sess, _ := svc.StartSession(ctx)
	if _, err := svc.SubmitFounder(ctx, sess.SessionID, founderInput()); err != nil {
		t.Fatalf("SubmitFounder: %v", err)
	}
	if _, err := svc.SubmitVenture(ctx, sess.SessionID, ports.VentureInput{Name: "Acme", Industry: "x", Stage: "seed"}); err != nil {
		t.Fatalf("SubmitVenture: %v", err)
	}

	// Resubmitting an earlier step must not rewind CurrentStep.
	if _, err := svc.SubmitFounder(ctx, sess.SessionID, founderInput()); err != nil {
		t.Fatalf("resubmit founder: %v", err)
	}
	got, _ := ms.GetSession(ctx, sess.SessionID)
	if got.CurrentStep != domain.StepTeam {
		t.Fatalf("want current step %q, got %q", domain.StepTeam, got.CurrentStep)
	}
}

func TestFounderUpsertIdempotent(t *testing.T) {
	svc, ms, _, _ := newTestService(t)
	ctx := context.Background()

	s1, _ := svc.StartSession(ctx)
	r1, err := svc.SubmitFounder(ctx, s1.SessionID, founderInput())
	if err != nil {
		t.Fatalf("first SubmitFounder: %v", err)
	}
	s2, _ := svc.StartSession(ctx)
	r2, err := svc.SubmitFounder(ctx, s2.SessionID, founderInput())
	if err != nil {
		t.Fatalf("second SubmitFounder: %v", err)
	}
	if r1.FounderID != r2.FounderID {
		t.Fatalf("same email produced different founders: %s vs %s", r1.FounderID, r2.FounderID)
	}
	if len(ms.founders) != 1 {
		t.Fatalf("want 1 founder record, got %d", len(ms.founders))
	}
}

func TestCompletedFounderEmailRejected(t *testing.T) {
	svc, _, vault, _ := newTestService(t)
	ctx := context.Background()

	sessionID := driveToProcessing(t, svc)
	vault.queueScore(fullScore(70), nil)
	if _, err := svc.ProcessScoring(ctx, sessionID); err != nil {
		t.Fatalf("ProcessScoring: %v", err)
	}

	fresh, _ := svc.StartSession(ctx)
	_, err := svc.SubmitFounder(ctx, fresh.SessionID, founderInput())
	if !IsConflictError(err) {
		t.Fatalf("want conflict error for completed email, got %v", err)
	}
}

func TestSubmitUploadRejectsBadFiles(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()
	sess, _ := svc.StartSession(ctx)
	if _, err := svc.SubmitFounder(ctx, sess.SessionID, founderInput()); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.SubmitVenture(ctx, sess.SessionID, ports.VentureInput{Name: "Acme", Industry: "x", Stage: "seed"}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.SubmitTeam(ctx, sess.SessionID, ports.TeamInput{}); err != nil {
		t.Fatal(err)
	}

	in := deckInput()
	in.OriginalName = "malware.exe"
	if _, err := svc.SubmitUpload(ctx, sess.SessionID, in); !IsClientError(err) {
		t.Fatalf("exe upload: want client error, got %v", err)
	}

	big := ports.UploadInput{
		OriginalName: "deck.pdf",
		SizeBytes:    2 * 1024 * 1024,
		Content:      strings.NewReader("x"),
	}
	if _, err := svc.SubmitUpload(ctx, sess.SessionID, big); !IsClientError(err) {
		t.Fatalf("oversized upload: want client error, got %v", err)
	}
}

func TestUploadDocumentBeforeStructureFailsLoudly(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	_, err := svc.UploadDocument(context.Background(), "venture-unknown", domain.CategoryProblem, deckInput())
	if !IsClientError(err) {
		t.Fatalf("want client error, got %v", err)
	}
	if !strings.Contains(err.Error(), "folder structure not found") {
		t.Fatalf("want folder-structure message, got %q", err.Error())
	}
}

func TestUploadDocumentRoutesToCategoryFolder(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()
	sess, _ := svc.StartSession(ctx)
	if _, err := svc.SubmitFounder(ctx, sess.SessionID, founderInput()); err != nil {
		t.Fatal(err)
	}
	res, err := svc.SubmitVenture(ctx, sess.SessionID, ports.VentureInput{Name: "Acme", Industry: "x", Stage: "seed"})
	if err != nil {
		t.Fatal(err)
	}

	row, err := svc.UploadDocument(ctx, res.VentureID, domain.CategoryProblem, deckInput())
	if err != nil {
		t.Fatalf("UploadDocument: %v", err)
	}
	if row.Status != domain.UploadStatusCompleted {
		t.Fatalf("want completed upload, got %q", row.Status)
	}
	if row.FolderID != "f-"+domain.CategoryProblem {
		t.Fatalf("routed to wrong folder: %q", row.FolderID)
	}

	if _, err := svc.UploadDocument(ctx, res.VentureID, "7_Nope", deckInput()); !IsClientError(err) {
		t.Fatalf("unknown category: want client error, got %v", err)
	}
}

func TestUploadDocumentFallbackMarksRetry(t *testing.T) {
	svc, _, vault, _ := newTestService(t)
	ctx := context.Background()
	sess, _ := svc.StartSession(ctx)
	if _, err := svc.SubmitFounder(ctx, sess.SessionID, founderInput()); err != nil {
		t.Fatal(err)
	}
	res, err := svc.SubmitVenture(ctx, sess.SessionID, ports.VentureInput{Name: "Acme", Industry: "x", Stage: "seed"})
	if err != nil {
		t.Fatal(err)
	}

	vault.uploadFallback = true
	row, err := svc.UploadDocument(ctx, res.VentureID, domain.CategoryDemand, deckInput())
	if err != nil {
		t.Fatalf("UploadDocument: %v", err)
	}
	if row.Status != domain.UploadStatusFailed || !row.CanRetry {
		t.Fatalf("fallback upload must be retryable failed, got %+v", row)
	}
}

func TestAbandonedSessionRejected(t *testing.T) {
	svc, ms, _, _ := newTestService(t)
	ctx := context.Background()
	sess, _ := svc.StartSession(ctx)
	if err := ms.MarkAbandoned(ctx, sess.SessionID); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.SubmitFounder(ctx, sess.SessionID, founderInput()); !IsClientError(err) {
		t.Fatalf("abandoned session: want client error, got %v", err)
	}
}
