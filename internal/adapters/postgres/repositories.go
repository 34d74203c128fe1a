package postgres

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"

	"proofengine/internal/domain"
	"proofengine/internal/ports"
)

// FounderRepository

func (db *DB) UpsertFounderByEmail(ctx context.Context, f *domain.Founder) (string, error) {
	var id string
	err := db.Pool.QueryRow(ctx, `
        INSERT INTO founders (full_name, email, role, linkedin)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (email) DO UPDATE
        SET full_name = EXCLUDED.full_name,
            role = EXCLUDED.role,
            linkedin = COALESCE(EXCLUDED.linkedin, founders.linkedin),
            updated_at = now()
        RETURNING id
    `, f.FullName, f.Email, f.Role, f.LinkedIn).Scan(&id)
	return id, err
}

func (db *DB) GetFounderByEmail(ctx context.Context, email string) (*domain.Founder, error) {
	return db.scanFounder(db.Pool.QueryRow(ctx, `
        SELECT id, full_name, email, role, linkedin, onboarding_complete, created_at, updated_at
        FROM founders WHERE email = $1
    `, email))
}

func (db *DB) GetFounder(ctx context.Context, founderID string) (*domain.Founder, error) {
	return db.scanFounder(db.Pool.QueryRow(ctx, `
        SELECT id, full_name, email, role, linkedin, onboarding_complete, created_at, updated_at
        FROM founders WHERE id = $1
    `, founderID))
}

func (db *DB) scanFounder(row pgx.Row) (*domain.Founder, error) {
	var f domain.Founder
	err := row.Scan(&f.ID, &f.FullName, &f.Email, &f.Role, &f.LinkedIn,
		&f.OnboardingComplete, &f.CreatedAt, &f.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ports.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (db *DB) MarkFounderComplete(ctx context.Context, founderID string) error {
	_, err := db.Pool.Exec(ctx, `
        UPDATE founders SET onboarding_complete = true, updated_at = now() WHERE id = $1
    `, founderID)
	return err
}

// VentureRepository

func (db *DB) CreateVenture(ctx context.Context, v *domain.Venture) (string, error) {
	err := db.Pool.QueryRow(ctx, `
        INSERT INTO ventures (founder_id, name, industry, stage, description)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id, created_at
    `, v.FounderID, v.Name, v.Industry, v.Stage, v.Description).Scan(&v.ID, &v.CreatedAt)
	return v.ID, err
}

func (db *DB) GetVenture(ctx context.Context, ventureID string) (*domain.Venture, error) {
	return db.scanVenture(db.Pool.QueryRow(ctx, `
        SELECT id, founder_id, name, industry, stage, description,
               folder_structure, proof_score, vault_score, created_at
        FROM ventures WHERE id = $1
    `, ventureID))
}

func (db *DB) LatestVentureByFounder(ctx context.Context, founderID string) (*domain.Venture, error) {
	return db.scanVenture(db.Pool.QueryRow(ctx, `
        SELECT id, founder_id, name, industry, stage, description,
               folder_structure, proof_score, vault_score, created_at
        FROM ventures WHERE founder_id = $1
        ORDER BY created_at DESC
        LIMIT 1
    `, founderID))
}

func (db *DB) scanVenture(row pgx.Row) (*domain.Venture, error) {
	var (
		v  domain.Venture
		fs []byte
	)
	err := row.Scan(&v.ID, &v.FounderID, &v.Name, &v.Industry, &v.Stage,
		&v.Description, &fs, &v.ProofScore, &v.VaultScore, &v.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ports.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if len(fs) > 0 {
		var structure domain.FolderStructure
		if err := json.Unmarshal(fs, &structure); err == nil {
			v.FolderStructure = &structure
		}
	}
	return &v, nil
}

func (db *DB) SetFolderStructure(ctx context.Context, ventureID string, fs *domain.FolderStructure) error {
	raw, err := json.Marshal(fs)
	if err != nil {
		return err
	}
	_, err = db.Pool.Exec(ctx, `
        UPDATE ventures SET folder_structure = $2 WHERE id = $1
    `, ventureID, raw)
	return err
}

func (db *DB) SetScores(ctx context.Context, ventureID string, proofScore, vaultScore float64) error {
	_, err := db.Pool.Exec(ctx, `
        UPDATE ventures SET proof_score = $2, vault_score = $3 WHERE id = $1
    `, ventureID, proofScore, vaultScore)
	return err
}

// TeamRepository

func (db *DB) AddTeamMember(ctx context.Context, m *domain.TeamMember) error {
	return db.Pool.QueryRow(ctx, `
        INSERT INTO team_members (venture_id, name, role, email)
        VALUES ($1, $2, $3, $4)
        RETURNING id, created_at
    `, m.VentureID, m.Name, m.Role, nullable(m.Email)).Scan(&m.ID, &m.CreatedAt)
}

func (db *DB) ListTeamMembers(ctx context.Context, ventureID string) ([]domain.TeamMember, error) {
	rows, err := db.Pool.Query(ctx, `
        SELECT id, venture_id, name, role, COALESCE(email, ''), created_at
        FROM team_members WHERE venture_id = $1
        ORDER BY created_at
    `, ventureID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.TeamMember
	for rows.Next() {
		var m domain.TeamMember
		if err := rows.Scan(&m.ID, &m.VentureID, &m.Name, &m.Role, &m.Email, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// UploadRepository

func (db *DB) CreateUpload(ctx context.Context, u *domain.DocumentUpload) (string, error) {
	err := db.Pool.QueryRow(ctx, `
        INSERT INTO document_uploads
            (venture_id, category, folder_id, original_name, size_bytes,
             mime_type, external_id, shared_url, status, can_retry)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
        RETURNING id, created_at
    `, u.VentureID, u.Category, u.FolderID, u.OriginalName, u.SizeBytes,
		u.MimeType, u.ExternalID, u.SharedURL, u.Status, u.CanRetry).Scan(&u.ID, &u.CreatedAt)
	return u.ID, err
}

func (db *DB) UpdateUpload(ctx context.Context, u *domain.DocumentUpload) error {
	_, err := db.Pool.Exec(ctx, `
        UPDATE document_uploads
        SET external_id = $2, shared_url = $3, status = $4, can_retry = $5
        WHERE id = $1
    `, u.ID, u.ExternalID, u.SharedURL, u.Status, u.CanRetry)
	return err
}

func (db *DB) GetUpload(ctx context.Context, uploadID string) (*domain.DocumentUpload, error) {
	var u domain.DocumentUpload
	err := db.Pool.QueryRow(ctx, `
        SELECT id, venture_id, category, folder_id, original_name, size_bytes,
               mime_type, external_id, shared_url, status, can_retry, created_at
        FROM document_uploads WHERE id = $1
    `, uploadID).Scan(&u.ID, &u.VentureID, &u.Category, &u.FolderID,
		&u.OriginalName, &u.SizeBytes, &u.MimeType, &u.ExternalID,
		&u.SharedURL, &u.Status, &u.CanRetry, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ports.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// EvaluationRepository

// CreateEvaluation demotes the venture's previous current evaluation and
// inserts the new one atomically.
func (db *DB) CreateEvaluation(ctx context.Context, e *domain.Evaluation) (string, error) {
	tags, err := json.Marshal(e.Tags)
	if err != nil {
		return "", err
	}
	dims, err := json.Marshal(e.Dimensions)
	if err != nil {
		return "", err
	}

	tx, err := db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return "", err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			_ = tx.Commit(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, `
        UPDATE evaluations SET is_current = false
        WHERE venture_id = $1 AND is_current = true
    `, e.VentureID); err != nil {
		return "", err
	}
	if err = tx.QueryRow(ctx, `
        INSERT INTO evaluations (venture_id, total_score, tags, dimensions, raw_response, is_current)
        VALUES ($1, $2, $3, $4, $5, true)
        RETURNING id, created_at
    `, e.VentureID, e.TotalScore, tags, dims, []byte(e.RawResponse)).Scan(&e.ID, &e.CreatedAt); err != nil {
		return "", err
	}
	return e.ID, nil
}

func (db *DB) CurrentEvaluation(ctx context.Context, ventureID string) (*domain.Evaluation, error) {
	var (
		e    domain.Evaluation
		tags []byte
		dims []byte
		raw  []byte
	)
	err := db.Pool.QueryRow(ctx, `
        SELECT id, venture_id, total_score, tags, dimensions, raw_response, is_current, created_at
        FROM evaluations WHERE venture_id = $1 AND is_current = true
    `, ventureID).Scan(&e.ID, &e.VentureID, &e.TotalScore, &tags, &dims, &raw, &e.IsCurrent, &e.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ports.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	_ = json.Unmarshal(tags, &e.Tags)
	_ = json.Unmarshal(dims, &e.Dimensions)
	e.RawResponse = raw
	return &e, nil
}

// LeaderboardRepository

func (db *DB) UpsertIfHigher(ctx context.Context, entry domain.LeaderboardEntry) error {
	_, err := db.Pool.Exec(ctx, `
        INSERT INTO leaderboard (venture_id, venture_name, score, updated_at)
        VALUES ($1, $2, $3, now())
        ON CONFLICT (venture_id) DO UPDATE
        SET venture_name = EXCLUDED.venture_name,
            score = EXCLUDED.score,
            updated_at = now()
        WHERE leaderboard.score < EXCLUDED.score
    `, entry.VentureID, entry.VentureName, entry.Score)
	return err
}

// FolderRepository

func (db *DB) SaveFolderMapping(ctx context.Context, ventureID, category, folderID string) error {
	_, err := db.Pool.Exec(ctx, `
        INSERT INTO vault_folders (venture_id, category, folder_id)
        VALUES ($1, $2, $3)
        ON CONFLICT (venture_id, category) DO UPDATE SET folder_id = EXCLUDED.folder_id
    `, ventureID, category, folderID)
	return err
}

func (db *DB) ResolveFolderID(ctx context.Context, ventureID, category string) (string, error) {
	var folderID string
	err := db.Pool.QueryRow(ctx, `
        SELECT folder_id FROM vault_folders WHERE venture_id = $1 AND category = $2
    `, ventureID, category).Scan(&folderID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ports.ErrFolderNotMapped
	}
	return folderID, err
}
