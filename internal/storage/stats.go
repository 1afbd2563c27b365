package storage

import (
	"context"
	"fmt"
	"time"
)

// SummaryStats holds aggregate statistics about stored sessions.
type SummaryStats struct {
	TotalSessions int64              `json:"total_sessions"`
	TotalReps     int64              `json:"total_reps"`
	EarliestData  *time.Time         `json:"earliest_data"`
	LatestData    *time.Time         `json:"latest_data"`
	ByExercise    []ExerciseStat     `json:"by_exercise"`
	CommonIssues  []FailingRuleCount `json:"common_issues"`
}

// ExerciseStat holds summary stats for a single exercise.
type ExerciseStat struct {
	ExerciseID   string  `json:"exercise_id"`
	Sessions     int64   `json:"sessions"`
	Reps         int64   `json:"reps"`
	AverageScore float64 `json:"average_score"`
}

// FailingRuleCount is how often one rule failed across stored reps.
type FailingRuleCount struct {
	ExerciseID string `json:"exercise_id"`
	Rule       string `json:"rule"`
	Count      int64  `json:"count"`
}

// GetSummaryStats returns aggregate statistics for stored sessions.
func (db *DB) GetSummaryStats(ctx context.Context) (*SummaryStats, error) {
	stats := &SummaryStats{}

	err := db.Pool.QueryRow(ctx,
		`SELECT COUNT(*), COALESCE(SUM(rep_count), 0), MIN(started_at), MAX(started_at) FROM sessions`,
	).Scan(&stats.TotalSessions, &stats.TotalReps, &stats.EarliestData, &stats.LatestData)
	if err != nil {
		return nil, fmt.Errorf("counting sessions: %w", err)
	}

	rows, err := db.Pool.Query(ctx,
		`SELECT exercise_id, COUNT(*), COALESCE(SUM(rep_count), 0), COALESCE(AVG(average_score), 0)
		 FROM sessions
		 GROUP BY exercise_id
		 ORDER BY COUNT(*) DESC`)
	if err != nil {
		return nil, fmt.Errorf("querying per-exercise stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var s ExerciseStat
		if err := rows.Scan(&s.ExerciseID, &s.Sessions, &s.Reps, &s.AverageScore); err != nil {
			return nil, fmt.Errorf("scanning exercise stat: %w", err)
		}
		stats.ByExercise = append(stats.ByExercise, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	issueRows, err := db.Pool.Query(ctx,
		`SELECT s.exercise_id, rule, COUNT(*)
		 FROM session_reps r
		 JOIN sessions s ON s.id = r.session_id,
		 unnest(r.failing_rules) AS rule
		 GROUP BY s.exercise_id, rule
		 ORDER BY COUNT(*) DESC
		 LIMIT 20`)
	if err != nil {
		return nil, fmt.Errorf("querying failing rules: %w", err)
	}
	defer issueRows.Close()

	for issueRows.Next() {
		var f FailingRuleCount
		if err := issueRows.Scan(&f.ExerciseID, &f.Rule, &f.Count); err != nil {
			return nil, fmt.Errorf("scanning failing rule count: %w", err)
		}
		stats.CommonIssues = append(stats.CommonIssues, f)
	}

	return stats, issueRows.Err()
}

// ScoreTrendPoint is one time-bucketed average score for an exercise.
type ScoreTrendPoint struct {
	Bucket       time.Time `json:"bucket"`
	Sessions     int64     `json:"sessions"`
	AverageScore float64   `json:"average_score"`
}

// GetScoreTrend returns time-bucketed average scores for one exercise,
// for trend charts and the MCP form-trends tool. Bucket is an interval
// string such as '1 day', '1 week', or '1 month'.
func (db *DB) GetScoreTrend(ctx context.Context, exerciseID string, start, end time.Time, bucket string) ([]ScoreTrendPoint, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT date_trunc($4, started_at) AS bucket,
		        COUNT(*), COALESCE(AVG(average_score), 0)
		 FROM sessions
		 WHERE exercise_id = $1 AND started_at >= $2 AND started_at < $3
		 GROUP BY bucket
		 ORDER BY bucket ASC`,
		exerciseID, start, end, truncUnit(bucket))
	if err != nil {
		return nil, fmt.Errorf("querying score trend: %w", err)
	}
	defer rows.Close()

	var points []ScoreTrendPoint
	for rows.Next() {
		var p ScoreTrendPoint
		if err := rows.Scan(&p.Bucket, &p.Sessions, &p.AverageScore); err != nil {
			return nil, fmt.Errorf("scanning trend point: %w", err)
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

// truncUnit converts bucket strings like "1 month" to the unit name
// date_trunc expects. date_bin rejects month and year strides, so
// bucketing goes through date_trunc.
func truncUnit(bucket string) string {
	switch bucket {
	case "1 week":
		return "week"
	case "1 month":
		return "month"
	default:
		return "day"
	}
}

// PeriodStats compares rep volume and scores for one period.
type PeriodStats struct {
	Sessions     int64   `json:"sessions"`
	Reps         int64   `json:"reps"`
	AverageScore float64 `json:"average_score"`
}

// GetPeriodStats returns aggregate stats for one exercise in one time
// window; exerciseID may be empty for all exercises.
func (db *DB) GetPeriodStats(ctx context.Context, exerciseID string, start, end time.Time) (*PeriodStats, error) {
	query := `SELECT COUNT(*), COALESCE(SUM(rep_count), 0), COALESCE(AVG(average_score), 0)
		 FROM sessions
		 WHERE started_at >= $1 AND started_at < $2`
	args := []any{start, end}
	if exerciseID != "" {
		query += ` AND exercise_id = $3`
		args = append(args, exerciseID)
	}

	var p PeriodStats
	if err := db.Pool.QueryRow(ctx, query, args...).Scan(&p.Sessions, &p.Reps, &p.AverageScore); err != nil {
		return nil, fmt.Errorf("querying period stats: %w", err)
	}
	return &p, nil
}
