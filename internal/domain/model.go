package domain

import (
	"encoding/json"
	"time"
)

// Wizard steps in order. CurrentStep only ever advances through this
// sequence; start-over resets to StepFounder on a fresh session.
const (
	StepFounder    = "founder"
	StepVenture    = "venture"
	StepTeam       = "team"
	StepUpload     = "upload"
	StepProcessing = "processing"
	StepComplete   = "complete"
)

// StepOrder lists every wizard step in progression order.
var StepOrder = []string{StepFounder, StepVenture, StepTeam, StepUpload, StepProcessing, StepComplete}

// StepIndex returns the position of a step in the wizard, or -1 for an
// unknown step name.
func StepIndex(step string) int {
	for i, s := range StepOrder {
		if s == step {
			return i
		}
	}
	return -1
}

// ProofVault categories. The numeric prefixes are part of the folder names
// created in the external store and must not change.
const (
	CategoryOverview    = "0_Overview"
	CategoryProblem     = "1_Problem_Proof"
	CategorySolution    = "2_Solution_Proof"
	CategoryDemand      = "3_Demand_Proof"
	CategoryCredibility = "4_Credibility_Proof"
	CategoryCommercial  = "5_Commercial_Proof"
	CategoryInvestor    = "6_Investor_Pack"
)

// VaultCategories lists the seven fixed categories in display order.
var VaultCategories = []string{
	CategoryOverview,
	CategoryProblem,
	CategorySolution,
	CategoryDemand,
	CategoryCredibility,
	CategoryCommercial,
	CategoryInvestor,
}

// OnboardingSession is the durable wizard state for one onboarding attempt.
// Sessions are never hard-deleted; abandoned ones are retained for support.
type OnboardingSession struct {
	SessionID          string
	CurrentStep        string
	StepData           StepData
	CompletedSteps     []string
	IsComplete         bool
	UploadAttemptCount int
	StartOverCount     int
	StartOverDisabled  bool
	FounderEmail       string
	Abandoned          bool
	// Version is an optimistic concurrency token bumped on every update.
	Version   int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasCompleted reports whether the named step was recorded as completed.
func (s *OnboardingSession) HasCompleted(step string) bool {
	for _, c := range s.CompletedSteps {
		if c == step {
			return true
		}
	}
	return false
}

// MarkCompleted appends a step to CompletedSteps if not already present.
func (s *OnboardingSession) MarkCompleted(step string) {
	if !s.HasCompleted(step) {
		s.CompletedSteps = append(s.CompletedSteps, step)
	}
}

// StepData accumulates per-step payloads on the session.
type StepData struct {
	Founder    *FounderStepData    `json:"founder,omitempty"`
	Venture    *VentureStepData    `json:"venture,omitempty"`
	Upload     *UploadStepData     `json:"upload,omitempty"`
	Processing *ProcessingStepData `json:"processing,omitempty"`
}

type FounderStepData struct {
	FounderID string `json:"founderId"`
	FullName  string `json:"fullName"`
	Email     string `json:"email"`
}

type VentureStepData struct {
	VentureID       string           `json:"ventureId"`
	VentureName     string           `json:"ventureName"`
	FolderStructure *FolderStructure `json:"folderStructure,omitempty"`
}

type UploadStepData struct {
	UploadID     string `json:"uploadId,omitempty"`
	TempPath     string `json:"tempPath"`
	OriginalName string `json:"originalName"`
	SizeBytes    int64  `json:"sizeBytes"`
	MimeType     string `json:"mimeType"`
}

type ProcessingStepData struct {
	EvaluationID  string          `json:"evaluationId"`
	TotalScore    float64         `json:"totalScore"`
	Tags          []string        `json:"tags,omitempty"`
	ScoringResult json.RawMessage `json:"scoringResult,omitempty"`
}

// Founder is the durable identity record, unique by email except where the
// start-over rules legitimately allow reuse.
type Founder struct {
	ID                 string
	FullName           string
	Email              string
	Role               string
	LinkedIn           *string
	OnboardingComplete bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Venture is one per founder per onboarding attempt.
type Venture struct {
	ID              string
	FounderID       string
	Name            string
	Industry        string
	Stage           string
	Description     string
	FolderStructure *FolderStructure
	ProofScore      *float64
	VaultScore      *float64
	CreatedAt       time.Time
}

// FolderStructure describes the ProofVault root plus the category folders
// created in the external store. Fallback marks synthetic local descriptors
// substituted when the external call failed.
type FolderStructure struct {
	RootID   string            `json:"rootId"`
	RootURL  string            `json:"rootUrl,omitempty"`
	Folders  map[string]string `json:"folders"`
	Fallback bool              `json:"fallback,omitempty"`
}

type TeamMember struct {
	ID        string
	VentureID string
	Name      string
	Role      string
	Email     string
	CreatedAt time.Time
}

// DocumentUpload statuses.
const (
	UploadStatusPending   = "pending"
	UploadStatusCompleted = "completed"
	UploadStatusFailed    = "failed"
)

// DocumentUpload records one file handed to the document store. A row is
// only created after the external upload call returned, successfully or
// not; failed rows carry CanRetry.
type DocumentUpload struct {
	ID           string
	VentureID    string
	Category     string
	FolderID     string
	OriginalName string
	SizeBytes    int64
	MimeType     string
	ExternalID   string
	SharedURL    string
	Status       string
	CanRetry     bool
	CreatedAt    time.Time
}

// Evaluation is one successful scoring pass. At most one evaluation is
// current per venture.
type Evaluation struct {
	ID          string
	VentureID   string
	TotalScore  float64
	Tags        []string
	Dimensions  map[string]float64
	RawResponse json.RawMessage
	IsCurrent   bool
	CreatedAt   time.Time
}

type LeaderboardEntry struct {
	VentureID   string
	VentureName string
	Score       float64
	UpdatedAt   time.Time
}

// ScoringResult is the typed view of the provider's scoring payload. The
// provider schema is duck-shaped; optional subtrees stay raw and the
// validator only checks their presence.
type ScoringResult struct {
	TotalScore *float64
	Tags       []string
	Dimensions map[string]float64
	Venture    json.RawMessage
	Team       json.RawMessage
	Raw        json.RawMessage
}

// HasVenture reports whether the response carried a venture subtree.
func (r ScoringResult) HasVenture() bool {
	return len(r.Venture) > 0 && string(r.Venture) != "null"
}

// HasTeam reports whether the response carried a team subtree.
func (r ScoringResult) HasTeam() bool {
	return len(r.Team) > 0 && string(r.Team) != "null"
}

// ScoredTeamMember is a person extracted from the scoring response.
type ScoredTeamMember struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

// ExtractTeamMembers pulls a member list out of the team subtree. The
// provider emits either a bare array or an object with a members key; other
// shapes yield no members.
func (r ScoringResult) ExtractTeamMembers() []ScoredTeamMember {
	if !r.HasTeam() {
		return nil
	}
	var direct []ScoredTeamMember
	if err := json.Unmarshal(r.Team, &direct); err == nil {
		return nonEmptyMembers(direct)
	}
	var wrapped struct {
		Members []ScoredTeamMember `json:"members"`
	}
	if err := json.Unmarshal(r.Team, &wrapped); err == nil {
		return nonEmptyMembers(wrapped.Members)
	}
	return nil
}

func nonEmptyMembers(in []ScoredTeamMember) []ScoredTeamMember {
	out := make([]ScoredTeamMember, 0, len(in))
	for _, m := range in {
		if m.Name != "" {
			out = append(out, m)
		}
	}
	return out
}
