package jobs

import (
	"context"
	"time"
)

// StartWorker polls for pending jobs and runs them one at a time. Row
// locking keeps concurrent instances from picking the same job.
func (m *Manager) StartWorker(ctx context.Context) {
	m.logger.Info("job worker started")

	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("job worker stopping")
			return
		case <-ticker.C:
			m.processNextJob(ctx)
		}
	}
}

// claimNextJob atomically flips the oldest pending job to running and
// returns it. The claim and the status update are one statement, so the
// SKIP LOCKED row lock cannot lapse between the two and hand the same
// job to a second instance.
func (m *Manager) claimNextJob(ctx context.Context) (*Job, error) {
	var job Job
	err := m.db.QueryRow(ctx, `
		UPDATE scraper_jobs
		SET status = 'running', started_at = NOW()
		WHERE id = (
			SELECT id FROM scraper_jobs
			WHERE status = 'pending'
			ORDER BY created_at
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, destination, max_pages, slug_limit, workers, check_in, check_out, force_refresh
	`).Scan(&job.ID, &job.Destination, &job.MaxPages, &job.Limit, &job.Workers,
		&job.CheckIn, &job.CheckOut, &job.ForceRefresh)
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (m *Manager) processNextJob(ctx context.Context) {
	job, err := m.claimNextJob(ctx)
	if err != nil {
		// no pending jobs
		return
	}

	m.logger.Info("processing job", "id", job.ID, "destination", job.Destination)

	report, err := m.runJob(ctx, job)
	if err != nil {
		m.logger.Error("job failed", "id", job.ID, "error", err)
		m.updateJobStatus(ctx, job.ID, "failed", err)
		return
	}

	if err := m.updateJobProgress(ctx, job.ID, report.TotalSlugs, report.Succeeded, report.Failed); err != nil {
		m.logger.Error("failed to update progress", "error", err)
	}
	if err := m.updateJobStatus(ctx, job.ID, "completed", nil); err != nil {
		m.logger.Error("failed to mark job as completed", "error", err)
	}

	m.logger.Info("job completed",
		"id", job.ID,
		"scraped", report.Succeeded,
		"failed", report.Failed)
}

func (m *Manager) runJob(ctx context.Context, job *Job) (*Report, error) {
	params := RunParams{
		Destination:  job.Destination,
		Workers:      job.Workers,
		Limit:        job.Limit,
		MaxPages:     job.MaxPages,
		CheckIn:      job.CheckIn,
		CheckOut:     job.CheckOut,
		ForceRefresh: job.ForceRefresh,
		Progress: func(done, total, succeeded, failed int) {
			if done%25 == 0 || done == total {
				if err := m.updateJobProgress(ctx, job.ID, total, succeeded, failed); err != nil {
					m.logger.Warn("failed to persist progress", "error", err)
				}
			}
		},
	}

	return m.runner.Run(ctx, params)
}
