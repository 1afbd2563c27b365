package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/claude/repcoach/internal/models"
)

// InsertFeedbackEvents batch-inserts feedback events for a session.
// Returns count inserted.
func (db *DB) InsertFeedbackEvents(ctx context.Context, rows []models.FeedbackEventRow) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	query := `INSERT INTO feedback_events (session_id, exercise_id, message_code, outcome, emitted_at) VALUES `
	args := make([]any, 0, len(rows)*5)
	valueStrings := make([]string, 0, len(rows))

	for i, r := range rows {
		base := i * 5
		valueStrings = append(valueStrings, fmt.Sprintf(
			"($%d,$%d,$%d,$%d,$%d)",
			base+1, base+2, base+3, base+4, base+5,
		))
		args = append(args, r.SessionID, r.ExerciseID, r.MessageCode, r.Outcome, r.EmittedAt)
	}

	query += strings.Join(valueStrings, ",") + " ON CONFLICT DO NOTHING"

	tag, err := db.Pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("inserting feedback events: %w", err)
	}
	return tag.RowsAffected(), nil
}
