package mcp

import (
	"context"
	"time"

	"github.com/claude/repcoach/internal/models"
	"github.com/claude/repcoach/internal/storage"
	"github.com/google/uuid"
)

// DataSource abstracts the data layer for MCP tools. Both *storage.DB
// (local) and HTTPClient (remote via REST API) satisfy this interface.
type DataSource interface {
	QuerySessions(ctx context.Context, start, end time.Time, exerciseID string) ([]models.SessionRow, error)
	GetSession(ctx context.Context, sessionID uuid.UUID) (*storage.SessionDetail, error)
	GetScoreTrend(ctx context.Context, exerciseID string, start, end time.Time, bucket string) ([]storage.ScoreTrendPoint, error)
	GetPeriodStats(ctx context.Context, exerciseID string, start, end time.Time) (*storage.PeriodStats, error)
}

// Compile-time check: *storage.DB satisfies DataSource.
var _ DataSource = (*storage.DB)(nil)
