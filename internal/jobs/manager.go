package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/DmitriyKurilenko/rent-scraper/internal/database"
)

// Manager stores batch jobs in the database so runs survive restarts and
// multiple instances can share the queue through row locking.
type Manager struct {
	db     *database.DB
	runner *Runner
	logger *slog.Logger
}

func NewManager(db *database.DB, runner *Runner, logger *slog.Logger) *Manager {
	return &Manager{
		db:     db,
		runner: runner,
		logger: logger.With("component", "job_manager"),
	}
}

// Job is one queued batch run.
type Job struct {
	ID           string     `json:"id"`
	Destination  string     `json:"destination"`
	MaxPages     int        `json:"max_pages"`
	Limit        int        `json:"limit"`
	Workers      int        `json:"workers"`
	CheckIn      string     `json:"check_in,omitempty"`
	CheckOut     string     `json:"check_out,omitempty"`
	ForceRefresh bool       `json:"force_refresh"`
	Status       string     `json:"status"`
	SlugsFound   int        `json:"slugs_found"`
	BoatsScraped int        `json:"boats_scraped"`
	BoatsFailed  int        `json:"boats_failed"`
	CreatedAt    time.Time  `json:"created_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	Error        string     `json:"error,omitempty"`
}

// Stats summarizes jobs and scraped boats for the ops API.
type Stats struct {
	TotalJobs     int     `json:"total_jobs"`
	PendingJobs   int     `json:"pending_jobs"`
	RunningJobs   int     `json:"running_jobs"`
	CompletedJobs int     `json:"completed_jobs"`
	FailedJobs    int     `json:"failed_jobs"`
	SuccessRate   float64 `json:"success_rate"`
	TotalBoats    int     `json:"total_boats"`
	FreshBoats    int     `json:"fresh_boats"`
}

// CreateJob queues a new batch run.
func (m *Manager) CreateJob(ctx context.Context, job *Job) (*Job, error) {
	if job.Workers <= 0 {
		job.Workers = 5
	}
	job.ID = uuid.New().String()
	job.Status = "pending"
	job.CreatedAt = time.Now()

	_, err := m.db.Exec(ctx, `
		INSERT INTO scraper_jobs
		(id, destination, max_pages, slug_limit, workers, check_in, check_out, force_refresh, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, job.ID, job.Destination, job.MaxPages, job.Limit, job.Workers,
		job.CheckIn, job.CheckOut, job.ForceRefresh, job.Status, job.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	m.logger.Info("job created", "id", job.ID, "destination", job.Destination)
	return job, nil
}

const jobColumns = `id, destination, max_pages, slug_limit, workers, check_in, check_out,
	force_refresh, status, slugs_found, boats_scraped, boats_failed,
	created_at, started_at, completed_at, COALESCE(error, '')`

func scanJob(row pgx.Row) (*Job, error) {
	job := &Job{}
	err := row.Scan(
		&job.ID, &job.Destination, &job.MaxPages, &job.Limit, &job.Workers,
		&job.CheckIn, &job.CheckOut, &job.ForceRefresh, &job.Status,
		&job.SlugsFound, &job.BoatsScraped, &job.BoatsFailed,
		&job.CreatedAt, &job.StartedAt, &job.CompletedAt, &job.Error,
	)
	if err != nil {
		return nil, err
	}
	return job, nil
}

// GetJob returns a job by id.
func (m *Manager) GetJob(ctx context.Context, jobID string) (*Job, error) {
	job, err := scanJob(m.db.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM scraper_jobs WHERE id = $1`, jobID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("job not found")
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}

// ListJobs returns the most recent jobs.
func (m *Manager) ListJobs(ctx context.Context) ([]*Job, error) {
	rows, err := m.db.Query(ctx,
		`SELECT `+jobColumns+` FROM scraper_jobs ORDER BY created_at DESC LIMIT 100`)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			continue
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// GetStats returns job and boat counters.
func (m *Manager) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	err := m.db.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(CASE WHEN status = 'pending' THEN 1 END),
			COUNT(CASE WHEN status = 'running' THEN 1 END),
			COUNT(CASE WHEN status = 'completed' THEN 1 END),
			COUNT(CASE WHEN status = 'failed' THEN 1 END)
		FROM scraper_jobs
	`).Scan(
		&stats.TotalJobs, &stats.PendingJobs, &stats.RunningJobs,
		&stats.CompletedJobs, &stats.FailedJobs,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get stats: %w", err)
	}

	if stats.TotalJobs > 0 {
		stats.SuccessRate = float64(stats.CompletedJobs) / float64(stats.TotalJobs) * 100
	}

	m.db.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE last_parsed > NOW() - INTERVAL '24 hours')
		FROM parsed_boats
	`).Scan(&stats.TotalBoats, &stats.FreshBoats)

	return stats, nil
}

func (m *Manager) updateJobStatus(ctx context.Context, jobID, status string, jobErr error) error {
	var query string
	var args []interface{}

	switch {
	case status == "completed":
		query = `UPDATE scraper_jobs SET status = $1, completed_at = $2 WHERE id = $3`
		args = []interface{}{status, time.Now(), jobID}
	case status == "failed" && jobErr != nil:
		query = `UPDATE scraper_jobs SET status = $1, completed_at = $2, error = $3 WHERE id = $4`
		args = []interface{}{status, time.Now(), jobErr.Error(), jobID}
	default:
		query = `UPDATE scraper_jobs SET status = $1 WHERE id = $2`
		args = []interface{}{status, jobID}
	}

	_, execErr := m.db.Exec(ctx, query, args...)
	return execErr
}

func (m *Manager) updateJobProgress(ctx context.Context, jobID string, slugsFound, scraped, failed int) error {
	_, err := m.db.Exec(ctx, `
		UPDATE scraper_jobs
		SET slugs_found = $1, boats_scraped = $2, boats_failed = $3
		WHERE id = $4
	`, slugsFound, scraped, failed, jobID)
	return err
}
