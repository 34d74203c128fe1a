package ports

import (
	"context"

	"proofengine/internal/domain"
)

// SessionRepository stores onboarding sessions. Update enforces the
// session's optimistic version; a stale version returns ErrSessionConflict
// from the adapter.
type SessionRepository interface {
	CreateSession(ctx context.Context, s *domain.OnboardingSession) error
	GetSession(ctx context.Context, sessionID string) (*domain.OnboardingSession, error)
	UpdateSession(ctx context.Context, s *domain.OnboardingSession) error
	MarkAbandoned(ctx context.Context, sessionID string) error
	FindIncompleteByEmail(ctx context.Context, email string) (*domain.OnboardingSession, error)
}

// FounderRepository manages founder identities, unique by email.
type FounderRepository interface {
	UpsertFounderByEmail(ctx context.Context, f *domain.Founder) (founderID string, err error)
	GetFounderByEmail(ctx context.Context, email string) (*domain.Founder, error)
	GetFounder(ctx context.Context, founderID string) (*domain.Founder, error)
	MarkFounderComplete(ctx context.Context, founderID string) error
}

// VentureRepository manages venture records and their vault descriptors.
type VentureRepository interface {
	CreateVenture(ctx context.Context, v *domain.Venture) (ventureID string, err error)
	GetVenture(ctx context.Context, ventureID string) (*domain.Venture, error)
	LatestVentureByFounder(ctx context.Context, founderID string) (*domain.Venture, error)
	SetFolderStructure(ctx context.Context, ventureID string, fs *domain.FolderStructure) error
	SetScores(ctx context.Context, ventureID string, proofScore, vaultScore float64) error
}

// TeamRepository manages team members of a venture.
type TeamRepository interface {
	AddTeamMember(ctx context.Context, m *domain.TeamMember) error
	ListTeamMembers(ctx context.Context, ventureID string) ([]domain.TeamMember, error)
}

// UploadRepository records files handed to the document store.
type UploadRepository interface {
	CreateUpload(ctx context.Context, u *domain.DocumentUpload) (uploadID string, err error)
	UpdateUpload(ctx context.Context, u *domain.DocumentUpload) error
	GetUpload(ctx context.Context, uploadID string) (*domain.DocumentUpload, error)
}

// EvaluationRepository stores scoring passes. CreateEvaluation demotes any
// previous current evaluation for the venture.
type EvaluationRepository interface {
	CreateEvaluation(ctx context.Context, e *domain.Evaluation) (evaluationID string, err error)
	CurrentEvaluation(ctx context.Context, ventureID string) (*domain.Evaluation, error)
}

// LeaderboardRepository keeps the best score per venture. UpsertIfHigher
// only replaces an existing entry when the new score is strictly higher.
type LeaderboardRepository interface {
	UpsertIfHigher(ctx context.Context, entry domain.LeaderboardEntry) error
}

// FolderRepository is the single authoritative category-to-folder lookup.
// ResolveFolderID fails with ErrFolderNotMapped when the venture has no
// mapping for the category.
type FolderRepository interface {
	SaveFolderMapping(ctx context.Context, ventureID, category, folderID string) error
	ResolveFolderID(ctx context.Context, ventureID, category string) (folderID string, err error)
}
