package ports

import (
	"context"
	"io"

	"proofengine/internal/domain"
)

// Onboarding drives the wizard: one submit operation per step, plus the
// retry/start-over surface.
type Onboarding interface {
	StartSession(ctx context.Context) (*domain.OnboardingSession, error)
	SubmitFounder(ctx context.Context, sessionID string, in FounderInput) (StepResult, error)
	SubmitVenture(ctx context.Context, sessionID string, in VentureInput) (StepResult, error)
	SubmitTeam(ctx context.Context, sessionID string, in TeamInput) (StepResult, error)
	SubmitUpload(ctx context.Context, sessionID string, in UploadInput) (StepResult, error)
	ProcessScoring(ctx context.Context, sessionID string) (StepResult, error)
	// RecordFailedAttempt is the caller-side failure path for scoring errors
	// that propagated as step failures; it advances the attempt counter.
	RecordFailedAttempt(ctx context.Context, sessionID string) error
	Status(ctx context.Context, sessionID string) (StatusReport, error)
	StartOver(ctx context.Context, sessionID string) (newSessionID string, err error)
	// UploadDocument places a supporting document into one of the venture's
	// vault categories; fails with ErrFolderNotMapped when the structure
	// does not exist yet.
	UploadDocument(ctx context.Context, ventureID, category string, in UploadInput) (*domain.DocumentUpload, error)
}

type FounderInput struct {
	FullName    string `json:"fullName"`
	Email       string `json:"email"`
	Role        string `json:"role"`
	LinkedIn    string `json:"linkedin"`
	VentureName string `json:"ventureName"`
	Stage       string `json:"stage"`
}

type VentureInput struct {
	Name        string `json:"name"`
	Industry    string `json:"industry"`
	Stage       string `json:"stage"`
	Description string `json:"description"`
}

type TeamMemberInput struct {
	Name  string `json:"name"`
	Role  string `json:"role"`
	Email string `json:"email"`
}

type TeamInput struct {
	Members []TeamMemberInput `json:"members"`
}

type UploadInput struct {
	OriginalName string
	MimeType     string
	SizeBytes    int64
	Content      io.Reader
}

// StepResult is what a step submission reports back to the HTTP layer.
// Recoverable analysis failures come back with HasError set instead of an
// error return, so callers can branch without exception plumbing.
type StepResult struct {
	SessionID   string   `json:"sessionId"`
	NextStep    string   `json:"nextStep,omitempty"`
	FounderID   string   `json:"founderId,omitempty"`
	VentureID   string   `json:"ventureId,omitempty"`
	IsComplete  bool     `json:"isComplete,omitempty"`
	TotalScore  *float64 `json:"totalScore,omitempty"`
	HasError    bool     `json:"hasError,omitempty"`
	ErrorType   string   `json:"errorType,omitempty"`
	Error       string   `json:"error,omitempty"`
	CanRetry    bool     `json:"canRetry,omitempty"`
	MissingData []string `json:"missingData,omitempty"`
}

// StatusReport feeds the retry/start-over affordances in the UI.
type StatusReport struct {
	SessionID          string `json:"sessionId"`
	CurrentStep        string `json:"currentStep"`
	IsComplete         bool   `json:"isComplete"`
	AttemptCount       int    `json:"attemptCount"`
	ShowStartOver      bool   `json:"showStartOver"`
	ShowContactSupport bool   `json:"showContactSupport"`
	CanStartOver       bool   `json:"canStartOver"`
}

// DocumentStore wraps the external storage/scoring provider. Folder and
// file operations are best-effort: on provider failure they return a
// synthetic descriptor marked Fallback instead of an error. ScorePitchDeck
// always surfaces failure.
type DocumentStore interface {
	CreateFolderStructure(ctx context.Context, name string) (*domain.FolderStructure, error)
	CreateFolder(ctx context.Context, name, parentFolderID string) (FolderInfo, error)
	UploadFile(ctx context.Context, data []byte, filename, folderID string, allowShare bool) (FileInfo, error)
	ScorePitchDeck(ctx context.Context, data []byte, filename string) (domain.ScoringResult, error)
}

type FolderInfo struct {
	ID       string
	URL      string
	Fallback bool
}

type FileInfo struct {
	ID          string
	Name        string
	URL         string
	DownloadURL string
	Fallback    bool
}

// Notifier fans out side-effecting notifications. Implementations must not
// block the caller and must swallow their own failures.
type Notifier interface {
	StepCompleted(sessionID, step, founderEmail, detail string)
	ScoringOutcome(n ScoringNotice)
}

type ScoringNotice struct {
	SessionID    string
	FounderEmail string
	VentureName  string
	Score        float64
	Success      bool
	Reason       string
}
