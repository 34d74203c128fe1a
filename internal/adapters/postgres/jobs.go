package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"proofengine/internal/ports"
)

// ReportJobRepository

func (db *DB) EnqueueReportJob(ctx context.Context, ventureID, evaluationID, kind string) (string, error) {
	var id string
	err := db.Pool.QueryRow(ctx, `
        INSERT INTO report_jobs (venture_id, evaluation_id, kind, status)
        VALUES ($1, $2, $3, 'queued')
        RETURNING id
    `, ventureID, evaluationID, kind).Scan(&id)
	return id, err
}

// ClaimNextReportJob selects the next queued job using SKIP LOCKED and
// marks it running.
func (db *DB) ClaimNextReportJob(ctx context.Context) (job ports.ReportJob, found bool, err error) {
	tx, err := db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return job, false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			_ = tx.Commit(ctx)
		}
	}()

	err = tx.QueryRow(ctx, `
        SELECT id, venture_id, evaluation_id, kind FROM report_jobs
        WHERE status = 'queued'
        ORDER BY queued_at
        FOR UPDATE SKIP LOCKED
        LIMIT 1
    `).Scan(&job.ID, &job.VentureID, &job.EvaluationID, &job.Kind)
	if errors.Is(err, pgx.ErrNoRows) {
		err = nil
		return job, false, nil
	}
	if err != nil {
		return job, false, err
	}

	if _, err = tx.Exec(ctx, `
        UPDATE report_jobs SET status = 'running', started_at = now(), attempts = attempts + 1 WHERE id = $1
    `, job.ID); err != nil {
		return job, false, err
	}
	return job, true, nil
}

func (db *DB) MarkReportJobCompleted(ctx context.Context, jobID string, artifactURL string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := db.Pool.Exec(ctx, `
        UPDATE report_jobs
        SET status = 'completed', artifact_url = $2, finished_at = now(), last_error = ''
        WHERE id = $1
    `, jobID, artifactURL)
	return err
}

func (db *DB) MarkReportJobFailed(ctx context.Context, jobID string, reason string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := db.Pool.Exec(ctx, `
        UPDATE report_jobs SET status = 'failed', finished_at = now(), last_error = $2 WHERE id = $1
    `, jobID, reason)
	return err
}
