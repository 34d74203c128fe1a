package reportrunner

import (
	"context"
	"fmt"
	"log"
	"time"

	"proofengine/internal/ports"
)

// ReportProcessor produces the artifact for one claimed job and returns
// its URL.
type ReportProcessor interface {
	Process(ctx context.Context, job ports.ReportJob) (artifactURL string, err error)
}

// StubProcessor records a placeholder artifact location without rendering.
// PDF layout is handled by a separate rendering service; the queue only
// tracks that generation was requested and finished.
type StubProcessor struct {
	BaseURL string
}

func (p StubProcessor) Process(ctx context.Context, job ports.ReportJob) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}
	return fmt.Sprintf("%s/%s/%s.pdf", p.BaseURL, job.VentureID, job.Kind), nil
}

// Run starts worker goroutines that claim report jobs and process them.
func Run(ctx context.Context, repo ports.ReportJobRepository, processor ReportProcessor, concurrency int, pollInterval time.Duration) {
	if concurrency < 1 {
		return
	}
	jobsCh := make(chan ports.ReportJob, concurrency)

	// dispatcher loop
	go func() {
		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				close(jobsCh)
				return
			case <-ticker.C:
				for {
					job, found, err := repo.ClaimNextReportJob(ctx)
					if err != nil {
						log.Printf("reportrunner: claim error: %v", err)
						break
					}
					if !found {
						break
					}
					jobsCh <- job
				}
			}
		}
	}()

	// workers
	for i := 0; i < concurrency; i++ {
		go func(idx int) {
			for job := range jobsCh {
				url, err := processor.Process(ctx, job)
				if err != nil {
					_ = repo.MarkReportJobFailed(ctx, job.ID, err.Error())
					log.Printf("reportrunner: worker %d: job %s (%s) failed: %v", idx, job.ID, job.Kind, err)
					continue
				}
				if err := repo.MarkReportJobCompleted(ctx, job.ID, url); err != nil {
					log.Printf("reportrunner: worker %d: complete err: %v", idx, err)
				}
			}
		}(i)
	}
}
