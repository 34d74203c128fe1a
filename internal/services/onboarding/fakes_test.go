package onboarding

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"proofengine/internal/domain"
	"proofengine/internal/ports"
)

// memStore implements every repository port in memory.
type memStore struct {
	mu sync.Mutex

	sessions map[string]*domain.OnboardingSession
	founders map[string]*domain.Founder // keyed by email
	ventures []*domain.Venture
	team     map[string][]domain.TeamMember
	uploads  map[string]*domain.DocumentUpload
	evals    map[string][]*domain.Evaluation
	board    map[string]domain.LeaderboardEntry
	folders  map[string]string // ventureID/category -> folderID
	jobs     []ports.ReportJob

	nextID int
}

func newMemStore() *memStore {
	return &memStore{
		sessions: map[string]*domain.OnboardingSession{},
		founders: map[string]*domain.Founder{},
		team:     map[string][]domain.TeamMember{},
		uploads:  map[string]*domain.DocumentUpload{},
		evals:    map[string][]*domain.Evaluation{},
		board:    map[string]domain.LeaderboardEntry{},
		folders:  map[string]string{},
	}
}

func (m *memStore) genID(prefix string) string {
	m.nextID++
	return fmt.Sprintf("%s-%d", prefix, m.nextID)
}

func cloneSession(s *domain.OnboardingSession) *domain.OnboardingSession {
	out := *s
	raw, _ := json.Marshal(s.StepData)
	out.StepData = domain.StepData{}
	_ = json.Unmarshal(raw, &out.StepData)
	out.CompletedSteps = append([]string(nil), s.CompletedSteps...)
	return &out
}

// SessionRepository

func (m *memStore) CreateSession(_ context.Context, s *domain.OnboardingSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.SessionID] = cloneSession(s)
	return nil
}

func (m *memStore) GetSession(_ context.Context, id string) (*domain.OnboardingSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ports.ErrNotFound
	}
	return cloneSession(s), nil
}

func (m *memStore) UpdateSession(_ context.Context, s *domain.OnboardingSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.sessions[s.SessionID]
	if !ok {
		return ports.ErrNotFound
	}
	if cur.Version != s.Version {
		return ports.ErrSessionConflict
	}
	s.Version++
	m.sessions[s.SessionID] = cloneSession(s)
	return nil
}

func (m *memStore) MarkAbandoned(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		s.Abandoned = true
	}
	return nil
}

func (m *memStore) FindIncompleteByEmail(_ context.Context, email string) (*domain.OnboardingSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.FounderEmail == email && !s.IsComplete && !s.Abandoned {
			return cloneSession(s), nil
		}
	}
	return nil, ports.ErrNotFound
}

// FounderRepository

func (m *memStore) UpsertFounderByEmail(_ context.Context, f *domain.Founder) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.founders[f.Email]; ok {
		existing.FullName = f.FullName
		existing.Role = f.Role
		if f.LinkedIn != nil {
			existing.LinkedIn = f.LinkedIn
		}
		return existing.ID, nil
	}
	cp := *f
	cp.ID = m.genID("founder")
	m.founders[f.Email] = &cp
	return cp.ID, nil
}

func (m *memStore) GetFounderByEmail(_ context.Context, email string) (*domain.Founder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if f, ok := m.founders[email]; ok {
		cp := *f
		return &cp, nil
	}
	return nil, ports.ErrNotFound
}

func (m *memStore) GetFounder(_ context.Context, id string) (*domain.Founder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, f := range m.founders {
		if f.ID == id {
			cp := *f
			return &cp, nil
		}
	}
	return nil, ports.ErrNotFound
}

func (m *memStore) MarkFounderComplete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, f := range m.founders {
		if f.ID == id {
			f.OnboardingComplete = true
		}
	}
	return nil
}

// VentureRepository

func (m *memStore) CreateVenture(_ context.Context, v *domain.Venture) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *v
	cp.ID = m.genID("venture")
	m.ventures = append(m.ventures, &cp)
	v.ID = cp.ID
	return cp.ID, nil
}

func (m *memStore) GetVenture(_ context.Context, id string) (*domain.Venture, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range m.ventures {
		if v.ID == id {
			cp := *v
			return &cp, nil
		}
	}
	return nil, ports.ErrNotFound
}

func (m *memStore) LatestVentureByFounder(_ context.Context, founderID string) (*domain.Venture, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.ventures) - 1; i >= 0; i-- {
		if m.ventures[i].FounderID == founderID {
			cp := *m.ventures[i]
			return &cp, nil
		}
	}
	return nil, ports.ErrNotFound
}

func (m *memStore) SetFolderStructure(_ context.Context, id string, fs *domain.FolderStructure) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range m.ventures {
		if v.ID == id {
			v.FolderStructure = fs
		}
	}
	return nil
}

func (m *memStore) SetScores(_ context.Context, id string, proofScore, vaultScore float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range m.ventures {
		if v.ID == id {
			v.ProofScore = &proofScore
			v.VaultScore = &vaultScore
		}
	}
	return nil
}

// TeamRepository

func (m *memStore) AddTeamMember(_ context.Context, tm *domain.TeamMember) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *tm
	cp.ID = m.genID("member")
	m.team[tm.VentureID] = append(m.team[tm.VentureID], cp)
	return nil
}

func (m *memStore) ListTeamMembers(_ context.Context, ventureID string) ([]domain.TeamMember, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.TeamMember(nil), m.team[ventureID]...), nil
}

// UploadRepository

func (m *memStore) CreateUpload(_ context.Context, u *domain.DocumentUpload) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *u
	cp.ID = m.genID("upload")
	m.uploads[cp.ID] = &cp
	u.ID = cp.ID
	return cp.ID, nil
}

func (m *memStore) UpdateUpload(_ context.Context, u *domain.DocumentUpload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.uploads[u.ID]; !ok {
		return ports.ErrNotFound
	}
	cp := *u
	m.uploads[u.ID] = &cp
	return nil
}

func (m *memStore) GetUpload(_ context.Context, id string) (*domain.DocumentUpload, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.uploads[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, ports.ErrNotFound
}

// EvaluationRepository

func (m *memStore) CreateEvaluation(_ context.Context, e *domain.Evaluation) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, old := range m.evals[e.VentureID] {
		old.IsCurrent = false
	}
	cp := *e
	cp.ID = m.genID("eval")
	cp.IsCurrent = true
	m.evals[e.VentureID] = append(m.evals[e.VentureID], &cp)
	e.ID = cp.ID
	return cp.ID, nil
}

func (m *memStore) CurrentEvaluation(_ context.Context, ventureID string) (*domain.Evaluation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.evals[ventureID] {
		if e.IsCurrent {
			cp := *e
			return &cp, nil
		}
	}
	return nil, ports.ErrNotFound
}

// LeaderboardRepository

func (m *memStore) UpsertIfHigher(_ context.Context, entry domain.LeaderboardEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.board[entry.VentureID]; ok && cur.Score >= entry.Score {
		return nil
	}
	m.board[entry.VentureID] = entry
	return nil
}

// FolderRepository

func (m *memStore) SaveFolderMapping(_ context.Context, ventureID, category, folderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.folders[ventureID+"/"+category] = folderID
	return nil
}

func (m *memStore) ResolveFolderID(_ context.Context, ventureID, category string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.folders[ventureID+"/"+category]; ok {
		return id, nil
	}
	return "", ports.ErrFolderNotMapped
}

// ReportJobRepository

func (m *memStore) EnqueueReportJob(_ context.Context, ventureID, evaluationID, kind string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job := ports.ReportJob{ID: m.genID("job"), VentureID: ventureID, EvaluationID: evaluationID, Kind: kind}
	m.jobs = append(m.jobs, job)
	return job.ID, nil
}

func (m *memStore) ClaimNextReportJob(_ context.Context) (ports.ReportJob, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.jobs) == 0 {
		return ports.ReportJob{}, false, nil
	}
	job := m.jobs[0]
	m.jobs = m.jobs[1:]
	return job, true, nil
}

func (m *memStore) MarkReportJobCompleted(_ context.Context, _ string, _ string) error { return nil }
func (m *memStore) MarkReportJobFailed(_ context.Context, _ string, _ string) error   { return nil }

// fakeVault scripts the document store.
type fakeVault struct {
	mu sync.Mutex

	structErr      bool // serve a fallback structure
	uploadFallback bool

	scoreQueue []scoreScript
	scoreCalls int
}

type scoreScript struct {
	res domain.ScoringResult
	err error
}

func (f *fakeVault) CreateFolderStructure(_ context.Context, name string) (*domain.FolderStructure, error) {
	folders := map[string]string{}
	prefix := "f"
	fallback := false
	if f.structErr {
		prefix = "local"
		fallback = true
	}
	for _, cat := range domain.VaultCategories {
		folders[cat] = prefix + "-" + cat
	}
	return &domain.FolderStructure{RootID: prefix + "-root", Folders: folders, Fallback: fallback}, nil
}

func (f *fakeVault) CreateFolder(_ context.Context, name, parentFolderID string) (ports.FolderInfo, error) {
	return ports.FolderInfo{ID: "f-" + name}, nil
}

func (f *fakeVault) UploadFile(_ context.Context, _ []byte, filename, folderID string, _ bool) (ports.FileInfo, error) {
	if f.uploadFallback {
		return ports.FileInfo{ID: "local-" + filename, Name: filename, Fallback: true}, nil
	}
	return ports.FileInfo{ID: "file-" + filename, Name: filename, URL: "https://vault.example/" + folderID + "/" + filename}, nil
}

func (f *fakeVault) ScorePitchDeck(_ context.Context, _ []byte, _ string) (domain.ScoringResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scoreCalls++
	if len(f.scoreQueue) == 0 {
		return domain.ScoringResult{}, fmt.Errorf("no scripted scoring response")
	}
	next := f.scoreQueue[0]
	f.scoreQueue = f.scoreQueue[1:]
	return next.res, next.err
}

func (f *fakeVault) queueScore(res domain.ScoringResult, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scoreQueue = append(f.scoreQueue, scoreScript{res: res, err: err})
}

// recordingNotifier captures notifications synchronously.
type recordingNotifier struct {
	mu      sync.Mutex
	steps   []string
	notices []ports.ScoringNotice
}

func (n *recordingNotifier) StepCompleted(_, step, _, _ string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.steps = append(n.steps, step)
}

func (n *recordingNotifier) ScoringOutcome(notice ports.ScoringNotice) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice)
}
