package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/claude/repcoach/internal/models"
	"github.com/google/uuid"
)

// InsertSession inserts a finished session row. Returns true if
// inserted, false if the id already exists (replay re-runs).
func (db *DB) InsertSession(ctx context.Context, row models.SessionRow) (bool, error) {
	tag, err := db.Pool.Exec(ctx,
		`INSERT INTO sessions (id, exercise_id, started_at, ended_at, rep_count, average_score, duration_ms, source)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		 ON CONFLICT DO NOTHING`,
		row.ID, row.ExerciseID, row.StartedAt, row.EndedAt,
		row.RepCount, row.AverageScore, row.DurationMs, row.Source)
	if err != nil {
		return false, fmt.Errorf("inserting session: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// InsertSessionReps batch-inserts the per-rep results for a session.
// Returns count inserted.
func (db *DB) InsertSessionReps(ctx context.Context, rows []models.SessionRepRow) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	query := `INSERT INTO session_reps (session_id, rep_index, score, failing_rules, completed_at) VALUES `
	args := make([]any, 0, len(rows)*5)
	valueStrings := make([]string, 0, len(rows))

	for i, r := range rows {
		base := i * 5
		valueStrings = append(valueStrings, fmt.Sprintf(
			"($%d,$%d,$%d,$%d,$%d)",
			base+1, base+2, base+3, base+4, base+5,
		))
		args = append(args, r.SessionID, r.RepIndex, r.Score, r.FailingRules, r.CompletedAt)
	}

	query += strings.Join(valueStrings, ",") + " ON CONFLICT DO NOTHING"

	tag, err := db.Pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("inserting session reps: %w", err)
	}
	return tag.RowsAffected(), nil
}

// SessionDetail is a session with its per-rep results and feedback.
type SessionDetail struct {
	models.SessionRow
	Reps     []models.SessionRepRow    `json:"reps"`
	Feedback []models.FeedbackEventRow `json:"feedback"`
}

// QuerySessions retrieves sessions in a time range, newest first, with
// an optional exercise filter.
func (db *DB) QuerySessions(ctx context.Context, start, end time.Time, exerciseID string) ([]models.SessionRow, error) {
	query := `SELECT id, exercise_id, started_at, ended_at, rep_count, average_score, duration_ms, source
		 FROM sessions
		 WHERE started_at >= $1 AND started_at < $2`
	args := []any{start, end}
	if exerciseID != "" {
		query += ` AND exercise_id = $3`
		args = append(args, exerciseID)
	}
	query += ` ORDER BY started_at DESC`

	rows, err := db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer rows.Close()

	var result []models.SessionRow
	for rows.Next() {
		var s models.SessionRow
		if err := rows.Scan(&s.ID, &s.ExerciseID, &s.StartedAt, &s.EndedAt,
			&s.RepCount, &s.AverageScore, &s.DurationMs, &s.Source); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		result = append(result, s)
	}
	return result, rows.Err()
}

// GetSession retrieves a single session by ID with reps and feedback.
func (db *DB) GetSession(ctx context.Context, sessionID uuid.UUID) (*SessionDetail, error) {
	row := db.Pool.QueryRow(ctx,
		`SELECT id, exercise_id, started_at, ended_at, rep_count, average_score, duration_ms, source
		 FROM sessions
		 WHERE id = $1`,
		sessionID)

	var s models.SessionRow
	err := row.Scan(&s.ID, &s.ExerciseID, &s.StartedAt, &s.EndedAt,
		&s.RepCount, &s.AverageScore, &s.DurationMs, &s.Source)
	if err != nil {
		return nil, fmt.Errorf("querying session: %w", err)
	}

	detail := &SessionDetail{SessionRow: s}

	repRows, err := db.Pool.Query(ctx,
		`SELECT session_id, rep_index, score, failing_rules, completed_at
		 FROM session_reps
		 WHERE session_id = $1
		 ORDER BY rep_index ASC`,
		sessionID)
	if err != nil {
		return nil, fmt.Errorf("querying session reps: %w", err)
	}
	defer repRows.Close()

	for repRows.Next() {
		var r models.SessionRepRow
		if err := repRows.Scan(&r.SessionID, &r.RepIndex, &r.Score, &r.FailingRules, &r.CompletedAt); err != nil {
			return nil, fmt.Errorf("scanning session rep: %w", err)
		}
		detail.Reps = append(detail.Reps, r)
	}
	if err := repRows.Err(); err != nil {
		return nil, err
	}

	fbRows, err := db.Pool.Query(ctx,
		`SELECT session_id, exercise_id, message_code, outcome, emitted_at
		 FROM feedback_events
		 WHERE session_id = $1
		 ORDER BY emitted_at ASC`,
		sessionID)
	if err != nil {
		return nil, fmt.Errorf("querying session feedback: %w", err)
	}
	defer fbRows.Close()

	for fbRows.Next() {
		var f models.FeedbackEventRow
		if err := fbRows.Scan(&f.SessionID, &f.ExerciseID, &f.MessageCode, &f.Outcome, &f.EmittedAt); err != nil {
			return nil, fmt.Errorf("scanning feedback event: %w", err)
		}
		detail.Feedback = append(detail.Feedback, f)
	}

	return detail, fbRows.Err()
}
