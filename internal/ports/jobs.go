package ports

import "context"

// Report job kinds enqueued after a successful scoring pass.
const (
	ReportJobCertificate = "certificate"
	ReportJobReport      = "report"
)

type ReportJob struct {
	ID           string
	VentureID    string
	EvaluationID string
	Kind         string
}

// ReportJobRepository supports enqueuing, claiming and finishing
// certificate/report generation jobs.
type ReportJobRepository interface {
	EnqueueReportJob(ctx context.Context, ventureID, evaluationID, kind string) (jobID string, err error)
	ClaimNextReportJob(ctx context.Context) (job ReportJob, found bool, err error)
	MarkReportJobCompleted(ctx context.Context, jobID string, artifactURL string) error
	MarkReportJobFailed(ctx context.Context, jobID string, reason string) error
}
