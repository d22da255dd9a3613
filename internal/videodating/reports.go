// internal/videodating/reports.go

package videodating

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// ErrReportRateLimited is returned when a reporter exceeds the daily cap
var ErrReportRateLimited = errors.New("too many reports filed today")

// maxReportsPerDay caps how many reports one user can file in 24h
const maxReportsPerDay = 10

// PostgresReports persists abuse reports and rate-limits reporters
// through Redis. Expected schema:
//
//	CREATE TABLE abuse_reports (
//	    id          UUID PRIMARY KEY,
//	    session_id  UUID NOT NULL,
//	    reporter_id TEXT NOT NULL,
//	    reported_id TEXT NOT NULL,
//	    reason      TEXT NOT NULL,
//	    created_at  TIMESTAMPTZ NOT NULL
//	);
type PostgresReports struct {
	db    *sqlx.DB
	redis *redis.Client // optional; nil disables rate limiting
}

func NewPostgresReports(db *sqlx.DB, redisClient *redis.Client) *PostgresReports {
	return &PostgresReports{
		db:    db,
		redis: redisClient,
	}
}

// SaveReport stores the report. The rate check is best-effort: if Redis
// is unavailable the report is still saved.
func (p *PostgresReports) SaveReport(ctx context.Context, report *Report) error {
	if err := p.checkRate(ctx, report.ReporterID); err != nil {
		return err
	}

	if report.ID == "" {
		report.ID = uuid.New().String()
	}

	query := `
		INSERT INTO abuse_reports (id, session_id, reporter_id, reported_id, reason, created_at)
		VALUES (:id, :session_id, :reporter_id, :reported_id, :reason, :created_at)`

	if _, err := p.db.NamedExecContext(ctx, query, report); err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}

	return nil
}

func (p *PostgresReports) checkRate(ctx context.Context, reporterID string) error {
	if p.redis == nil {
		return nil
	}

	key := fmt.Sprintf("videodating:reports:%s", reporterID)
	count, err := p.redis.Incr(ctx, key).Result()
	if err != nil {
		return nil
	}
	if count == 1 {
		p.redis.Expire(ctx, key, 24*time.Hour)
	}
	if count > maxReportsPerDay {
		return ErrReportRateLimited
	}

	return nil
}

// ReportsAgainst returns recent reports filed against a user, newest first
func (p *PostgresReports) ReportsAgainst(ctx context.Context, userID string, limit int) ([]Report, error) {
	query := `
		SELECT id, session_id, reporter_id, reported_id, reason, created_at
		FROM abuse_reports
		WHERE reported_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	var reports []Report
	if err := p.db.SelectContext(ctx, &reports, query, userID, limit); err != nil {
		return nil, fmt.Errorf("failed to load reports: %w", err)
	}

	return reports, nil
}
