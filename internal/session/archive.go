// internal/session/archive.go
// Persists ended sessions for analytics and moderation follow-up.
// Signaling traffic is never persisted; only the session outcome is.

package session

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// PostgresArchive writes ended sessions to the video_session_archive table:
//
//	CREATE TABLE IF NOT EXISTS video_session_archive (
//	    id               UUID PRIMARY KEY,
//	    participant_a    TEXT NOT NULL,
//	    participant_b    TEXT NOT NULL,
//	    initiator_id     TEXT NOT NULL,
//	    intent_mode      TEXT NOT NULL,
//	    wants_video      BOOLEAN NOT NULL,
//	    end_reason       TEXT NOT NULL,
//	    duration_seconds INT NOT NULL,
//	    created_at       TIMESTAMPTZ NOT NULL,
//	    ended_at         TIMESTAMPTZ NOT NULL
//	);
type PostgresArchive struct {
	db *sqlx.DB
}

// NewPostgresArchive creates a Postgres-backed session archive
func NewPostgresArchive(db *sqlx.DB) *PostgresArchive {
	return &PostgresArchive{db: db}
}

// Archive inserts one ended session. Inserts are idempotent on session ID
// because End only hands each session to the archiver once, but ON CONFLICT
// keeps a redelivery from failing.
func (a *PostgresArchive) Archive(ctx context.Context, s *Session) error {
	if s.EndedAt == nil {
		return fmt.Errorf("refusing to archive non-ended session %s", s.ID)
	}

	query := `
        INSERT INTO video_session_archive
            (id, participant_a, participant_b, initiator_id, intent_mode,
             wants_video, end_reason, duration_seconds, created_at, ended_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
        ON CONFLICT (id) DO NOTHING`

	_, err := a.db.ExecContext(ctx, query,
		s.ID,
		s.ParticipantA,
		s.ParticipantB,
		s.InitiatorID,
		s.IntentMode,
		s.WantsVideo,
		string(s.EndReason),
		int(s.Duration().Seconds()),
		s.CreatedAt,
		*s.EndedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to archive session: %w", err)
	}

	return nil
}
