package onboarding

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"proofengine/internal/domain"
	"proofengine/internal/ports"
)

// sessionExpiryHint is the age past which a session missing founder data is
// assumed expired rather than out of order.
const sessionExpiryHint = 24 * time.Hour

// allowedUploadExts is the pitch deck file-type allowlist.
var allowedUploadExts = map[string]bool{
	".pdf":  true,
	".ppt":  true,
	".pptx": true,
}

// Repos bundles the persistence ports the service depends on.
type Repos struct {
	Sessions    ports.SessionRepository
	Founders    ports.FounderRepository
	Ventures    ports.VentureRepository
	Team        ports.TeamRepository
	Uploads     ports.UploadRepository
	Evaluations ports.EvaluationRepository
	Leaderboard ports.LeaderboardRepository
	Folders     ports.FolderRepository
	ReportJobs  ports.ReportJobRepository
}

type Options struct {
	UploadDir   string
	MaxUploadMB int
}

type Service struct {
	repos    Repos
	store    ports.DocumentStore
	notifier ports.Notifier

	uploadDir      string
	maxUploadBytes int64
}

func New(repos Repos, store ports.DocumentStore, notifier ports.Notifier, opts Options) *Service {
	if opts.UploadDir == "" {
		opts.UploadDir = "data/uploads"
	}
	if opts.MaxUploadMB <= 0 {
		opts.MaxUploadMB = 20
	}
	return &Service{
		repos:          repos,
		store:          store,
		notifier:       notifier,
		uploadDir:      opts.UploadDir,
		maxUploadBytes: int64(opts.MaxUploadMB) * 1024 * 1024,
	}
}

// ClientError is a request-level validation failure: reported immediately,
// no session mutation, no attempt-count effect.
type ClientError struct {
	Msg      string
	Conflict bool
}

func (e *ClientError) Error() string { return e.Msg }

func clientErrf(format string, args ...any) error {
	return &ClientError{Msg: fmt.Sprintf(format, args...)}
}

func conflictErrf(format string, args ...any) error {
	return &ClientError{Msg: fmt.Sprintf(format, args...), Conflict: true}
}

// IsClientError reports whether err should map to a 4xx response.
func IsClientError(err error) bool {
	var ce *ClientError
	return errors.As(err, &ce)
}

// IsConflictError reports whether err is a duplicate-identity conflict.
func IsConflictError(err error) bool {
	var ce *ClientError
	return errors.As(err, &ce) && ce.Conflict
}

func (s *Service) StartSession(ctx context.Context) (*domain.OnboardingSession, error) {
	now := time.Now().UTC()
	sess := &domain.OnboardingSession{
		SessionID:   uuid.NewString(),
		CurrentStep: domain.StepFounder,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repos.Sessions.CreateSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return sess, nil
}

func (s *Service) loadSession(ctx context.Context, sessionID string) (*domain.OnboardingSession, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, clientErrf("missing session id")
	}
	sess, err := s.repos.Sessions.GetSession(ctx, sessionID)
	if errors.Is(err, ports.ErrNotFound) {
		return nil, clientErrf("session %s not found", sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if sess.Abandoned {
		return nil, clientErrf("session %s was reset by a start over; use the replacement session", sessionID)
	}
	return sess, nil
}

// advanceTo moves CurrentStep forward to step; it never moves backward and
// never touches a completed session.
func advanceTo(sess *domain.OnboardingSession, step string) {
	if sess.IsComplete {
		return
	}
	if domain.StepIndex(step) > domain.StepIndex(sess.CurrentStep) {
		sess.CurrentStep = step
	}
}

// SubmitFounder validates the founder profile, upserts the founder record
// by email and advances the session to the venture step.
func (s *Service) SubmitFounder(ctx context.Context, sessionID string, in ports.FounderInput) (ports.StepResult, error) {
	var res ports.StepResult
	sess, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return res, err
	}

	var missing []string
	if strings.TrimSpace(in.FullName) == "" {
		missing = append(missing, "fullName")
	}
	if strings.TrimSpace(in.Email) == "" {
		missing = append(missing, "email")
	}
	if strings.TrimSpace(in.VentureName) == "" {
		missing = append(missing, "ventureName")
	}
	if len(missing) > 0 {
		return res, clientErrf("missing required fields: %s", strings.Join(missing, ", "))
	}
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if err := validateBusinessEmail(email); err != nil {
		return res, err
	}

	existing, err := s.repos.Founders.GetFounderByEmail(ctx, email)
	if err != nil && !errors.Is(err, ports.ErrNotFound) {
		return res, fmt.Errorf("founder lookup: %w", err)
	}
	if existing != nil && existing.OnboardingComplete {
		ok, err := s.emailReuseAllowed(ctx, sess, email)
		if err != nil {
			return res, err
		}
		if !ok {
			return res, conflictErrf("an onboarding for %s already completed; contact support to make changes", email)
		}
	}

	founder := &domain.Founder{
		FullName: strings.TrimSpace(in.FullName),
		Email:    email,
		Role:     strings.TrimSpace(in.Role),
	}
	if ln := strings.TrimSpace(in.LinkedIn); ln != "" {
		founder.LinkedIn = &ln
	}
	founderID, err := s.repos.Founders.UpsertFounderByEmail(ctx, founder)
	if err != nil {
		return res, fmt.Errorf("upsert founder: %w", err)
	}

	sess.FounderEmail = email
	sess.StepData.Founder = &domain.FounderStepData{
		FounderID: founderID,
		FullName:  founder.FullName,
		Email:     email,
	}
	sess.MarkCompleted(domain.StepFounder)
	advanceTo(sess, domain.StepVenture)
	if err := s.repos.Sessions.UpdateSession(ctx, sess); err != nil {
		return res, fmt.Errorf("save session: %w", err)
	}

	s.notifier.StepCompleted(sess.SessionID, domain.StepFounder, email, founder.FullName)
	res = ports.StepResult{SessionID: sess.SessionID, NextStep: domain.StepVenture, FounderID: founderID}
	return res, nil
}

// emailReuseAllowed implements the start-over email-reuse rule: a completed
// founder's email becomes reusable when an incomplete session holds it, when
// the current session came from a start over, or when the current session
// already owns the email.
func (s *Service) emailReuseAllowed(ctx context.Context, sess *domain.OnboardingSession, email string) (bool, error) {
	if sess.StartOverCount > 0 {
		return true, nil
	}
	if sess.FounderEmail == email {
		return true, nil
	}
	open, err := s.repos.Sessions.FindIncompleteByEmail(ctx, email)
	if err != nil && !errors.Is(err, ports.ErrNotFound) {
		return false, fmt.Errorf("incomplete session lookup: %w", err)
	}
	return open != nil, nil
}

// SubmitVenture creates the venture and, best-effort, its ProofVault folder
// structure.
func (s *Service) SubmitVenture(ctx context.Context, sessionID string, in ports.VentureInput) (ports.StepResult, error) {
	var res ports.StepResult
	sess, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return res, err
	}
	if sess.StepData.Founder == nil || sess.StepData.Founder.FounderID == "" {
		age := time.Since(sess.CreatedAt)
		if age > sessionExpiryHint {
			return res, clientErrf("founder step not completed: session is %dh old and likely expired; start onboarding again", int(age.Hours()))
		}
		return res, clientErrf("founder step not completed: no founder details on this session; submit the founder step first")
	}

	var missing []string
	if strings.TrimSpace(in.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(in.Industry) == "" {
		missing = append(missing, "industry")
	}
	if strings.TrimSpace(in.Stage) == "" {
		missing = append(missing, "stage")
	}
	if len(missing) > 0 {
		return res, clientErrf("missing required fields: %s", strings.Join(missing, ", "))
	}

	venture := &domain.Venture{
		FounderID:   sess.StepData.Founder.FounderID,
		Name:        strings.TrimSpace(in.Name),
		Industry:    strings.TrimSpace(in.Industry),
		Stage:       strings.TrimSpace(in.Stage),
		Description: strings.TrimSpace(in.Description),
	}
	ventureID, err := s.repos.Ventures.CreateVenture(ctx, venture)
	if err != nil {
		return res, fmt.Errorf("create venture: %w", err)
	}

	// ProofVault creation is non-fatal to the step; scoring fails clearly
	// later if folders are missing.
	fs, fsErr := s.store.CreateFolderStructure(ctx, venture.Name)
	if fsErr != nil {
		log.Printf("onboarding: folder structure for venture %s failed: %v", ventureID, fsErr)
	} else if fs != nil {
		if err := s.repos.Ventures.SetFolderStructure(ctx, ventureID, fs); err != nil {
			log.Printf("onboarding: persist folder structure for venture %s: %v", ventureID, err)
		}
		for category, folderID := range fs.Folders {
			if err := s.repos.Folders.SaveFolderMapping(ctx, ventureID, category, folderID); err != nil {
				log.Printf("onboarding: save folder mapping %s/%s: %v", ventureID, category, err)
			}
		}
	}

	sess.StepData.Venture = &domain.VentureStepData{
		VentureID:       ventureID,
		VentureName:     venture.Name,
		FolderStructure: fs,
	}
	sess.MarkCompleted(domain.StepVenture)
	advanceTo(sess, domain.StepTeam)
	if err := s.repos.Sessions.UpdateSession(ctx, sess); err != nil {
		return res, fmt.Errorf("save session: %w", err)
	}

	s.notifier.StepCompleted(sess.SessionID, domain.StepVenture, sess.FounderEmail, venture.Name)
	res = ports.StepResult{SessionID: sess.SessionID, NextStep: domain.StepTeam, VentureID: ventureID}
	return res, nil
}

// resolveVentureID returns the session's venture, falling back to the
// founder's most recent venture when step data was lost across requests.
func (s *Service) resolveVentureID(ctx context.Context, sess *domain.OnboardingSession) (string, error) {
	if sess.StepData.Venture != nil && sess.StepData.Venture.VentureID != "" {
		return sess.StepData.Venture.VentureID, nil
	}
	if sess.StepData.Founder != nil && sess.StepData.Founder.FounderID != "" {
		v, err := s.repos.Ventures.LatestVentureByFounder(ctx, sess.StepData.Founder.FounderID)
		if err == nil && v != nil {
			return v.ID, nil
		}
		if err != nil && !errors.Is(err, ports.ErrNotFound) {
			return "", fmt.Errorf("latest venture lookup: %w", err)
		}
	}
	return "", clientErrf("venture step not completed: no venture found for this session")
}

// SubmitTeam appends team members to the session's venture.
func (s *Service) SubmitTeam(ctx context.Context, sessionID string, in ports.TeamInput) (ports.StepResult, error) {
	var res ports.StepResult
	sess, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return res, err
	}
	if !sess.HasCompleted(domain.StepVenture) {
		return res, clientErrf("venture step not completed: submit the venture step first")
	}
	ventureID, err := s.resolveVentureID(ctx, sess)
	if err != nil {
		return res, err
	}

	for i, m := range in.Members {
		if strings.TrimSpace(m.Name) == "" {
			return res, clientErrf("team member %d is missing a name", i+1)
		}
	}
	for _, m := range in.Members {
		member := &domain.TeamMember{
			VentureID: ventureID,
			Name:      strings.TrimSpace(m.Name),
			Role:      strings.TrimSpace(m.Role),
			Email:     strings.ToLower(strings.TrimSpace(m.Email)),
		}
		if err := s.repos.Team.AddTeamMember(ctx, member); err != nil {
			return res, fmt.Errorf("add team member: %w", err)
		}
	}

	sess.MarkCompleted(domain.StepTeam)
	advanceTo(sess, domain.StepUpload)
	if err := s.repos.Sessions.UpdateSession(ctx, sess); err != nil {
		return res, fmt.Errorf("save session: %w", err)
	}

	s.notifier.StepCompleted(sess.SessionID, domain.StepTeam, sess.FounderEmail, fmt.Sprintf("%d members", len(in.Members)))
	res = ports.StepResult{SessionID: sess.SessionID, NextStep: domain.StepUpload, VentureID: ventureID}
	return res, nil
}

// SubmitUpload stashes the pitch deck in temporary storage and advances the
// session to processing.
func (s *Service) SubmitUpload(ctx context.Context, sessionID string, in ports.UploadInput) (ports.StepResult, error) {
	var res ports.StepResult
	sess, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return res, err
	}
	if !sess.HasCompleted(domain.StepTeam) {
		return res, clientErrf("team step not completed: submit the team step first")
	}

	ext := strings.ToLower(filepath.Ext(in.OriginalName))
	if !allowedUploadExts[ext] {
		return res, clientErrf("unsupported file type %q: upload a PDF, PPT or PPTX pitch deck", ext)
	}
	if in.SizeBytes > s.maxUploadBytes {
		return res, clientErrf("file is too large: limit is %d MB", s.maxUploadBytes/(1024*1024))
	}

	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		return res, fmt.Errorf("upload dir: %w", err)
	}
	tempPath := filepath.Join(s.uploadDir, uuid.NewString()+ext)
	f, err := os.Create(tempPath)
	if err != nil {
		return res, fmt.Errorf("stash upload: %w", err)
	}
	written, err := io.Copy(f, io.LimitReader(in.Content, s.maxUploadBytes+1))
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tempPath)
		return res, fmt.Errorf("stash upload: %w", err)
	}
	if written > s.maxUploadBytes {
		os.Remove(tempPath)
		return res, clientErrf("file is too large: limit is %d MB", s.maxUploadBytes/(1024*1024))
	}

	sess.StepData.Upload = &domain.UploadStepData{
		TempPath:     tempPath,
		OriginalName: in.OriginalName,
		SizeBytes:    written,
		MimeType:     in.MimeType,
	}
	sess.MarkCompleted(domain.StepUpload)
	advanceTo(sess, domain.StepProcessing)
	if err := s.repos.Sessions.UpdateSession(ctx, sess); err != nil {
		os.Remove(tempPath)
		return res, fmt.Errorf("save session: %w", err)
	}

	s.notifier.StepCompleted(sess.SessionID, domain.StepUpload, sess.FounderEmail, in.OriginalName)
	res = ports.StepResult{SessionID: sess.SessionID, NextStep: domain.StepProcessing}
	return res, nil
}

// UploadDocument places a supporting document into a vault category. Every
// category upload goes through the persisted folder mapping; an unmapped
// category fails loudly instead of misdirecting the file.
func (s *Service) UploadDocument(ctx context.Context, ventureID, category string, in ports.UploadInput) (*domain.DocumentUpload, error) {
	valid := false
	for _, c := range domain.VaultCategories {
		if c == category {
			valid = true
			break
		}
	}
	if !valid {
		return nil, clientErrf("unknown vault category %q", category)
	}

	folderID, err := s.repos.Folders.ResolveFolderID(ctx, ventureID, category)
	if errors.Is(err, ports.ErrFolderNotMapped) {
		return nil, clientErrf("folder structure not found for venture %s: complete the venture step before uploading documents", ventureID)
	}
	if err != nil {
		return nil, fmt.Errorf("resolve folder: %w", err)
	}

	data, err := io.ReadAll(io.LimitReader(in.Content, s.maxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > s.maxUploadBytes {
		return nil, clientErrf("file is too large: limit is %d MB", s.maxUploadBytes/(1024*1024))
	}

	info, upErr := s.store.UploadFile(ctx, data, in.OriginalName, folderID, true)
	row := &domain.DocumentUpload{
		VentureID:    ventureID,
		Category:     category,
		FolderID:     folderID,
		OriginalName: in.OriginalName,
		SizeBytes:    int64(len(data)),
		MimeType:     in.MimeType,
	}
	if upErr != nil || info.Fallback {
		row.Status = domain.UploadStatusFailed
		row.CanRetry = true
		if upErr != nil {
			log.Printf("onboarding: vault upload %s/%s failed: %v", ventureID, category, upErr)
		}
	} else {
		row.Status = domain.UploadStatusCompleted
		row.ExternalID = info.ID
		row.SharedURL = info.URL
	}
	id, err := s.repos.Uploads.CreateUpload(ctx, row)
	if err != nil {
		return nil, fmt.Errorf("record upload: %w", err)
	}
	row.ID = id
	return row, nil
}
