package mcp

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
)

// defaultTimeRange returns start/end defaulting to the last 7 days.
func defaultTimeRange(startStr, endStr string) (time.Time, time.Time, error) {
	var start, end time.Time
	var err error

	if endStr != "" {
		end, err = parseFlexTime(endStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	} else {
		end = time.Now()
	}

	if startStr != "" {
		start, err = parseFlexTime(startStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	} else {
		start = end.AddDate(0, 0, -7)
	}

	return start, end, nil
}

func parseFlexTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err == nil {
		return t, nil
	}
	t, err = time.Parse("2006-01-02", s)
	if err == nil {
		return t, nil
	}
	return time.Time{}, err
}

// --- Tool definitions ---

var toolListExercises = mcp.NewTool("list_exercises",
	mcp.WithDescription("List all supported exercises with their repetition thresholds (top/bottom angle, hysteresis) and form rules."),
)

var toolGetSessions = mcp.NewTool("get_sessions",
	mcp.WithDescription("Query evaluated exercise sessions. Returns per-session rep count, average score, duration, and source (live or replay)."),
	mcp.WithString("start", mcp.Description("Start date (ISO 8601 or YYYY-MM-DD). Defaults to 7 days ago.")),
	mcp.WithString("end", mcp.Description("End date (ISO 8601 or YYYY-MM-DD). Defaults to now.")),
	mcp.WithString("exercise", mcp.Description("Filter by exercise id (e.g. 'squat', 'pushup')")),
)

var toolGetSessionDetail = mcp.NewTool("get_session_detail",
	mcp.WithDescription("Retrieve one session with every repetition (score, failing rules, completion time) and all feedback events emitted during evaluation."),
	mcp.WithString("session_id", mcp.Required(), mcp.Description("Session UUID")),
)

var toolGetFormTrends = mcp.NewTool("get_form_trends",
	mcp.WithDescription("Time-bucketed average rep score for one exercise. Shows whether form is improving over time."),
	mcp.WithString("exercise", mcp.Required(), mcp.Description("Exercise id (e.g. 'squat')")),
	mcp.WithString("start", mcp.Description("Start date. Defaults to 7 days ago.")),
	mcp.WithString("end", mcp.Description("End date. Defaults to now.")),
	mcp.WithString("bucket", mcp.Description("Time bucket size. Defaults to '1 day'."), mcp.Enum("1 day", "1 week", "1 month")),
)

var toolComparePeriods = mcp.NewTool("compare_periods",
	mcp.WithDescription("Compare an exercise's session stats (sessions, reps, average score, top failing rules) between two time periods, e.g. this week vs last week."),
	mcp.WithString("exercise", mcp.Required(), mcp.Description("Exercise id")),
	mcp.WithString("period_a_start", mcp.Required(), mcp.Description("Period A start date")),
	mcp.WithString("period_a_end", mcp.Required(), mcp.Description("Period A end date")),
	mcp.WithString("period_b_start", mcp.Required(), mcp.Description("Period B start date")),
	mcp.WithString("period_b_end", mcp.Required(), mcp.Description("Period B end date")),
)

// --- Tool handlers ---

func (h *handlers) listExercises(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := mcp.NewToolResultJSON(h.catalog())
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getSessions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	start, end, err := defaultTimeRange(req.GetString("start", ""), req.GetString("end", ""))
	if err != nil {
		return mcp.NewToolResultError("invalid date format: " + err.Error()), nil
	}

	exerciseID := req.GetString("exercise", "")

	sessions, err := h.ds.QuerySessions(ctx, start, end, exerciseID)
	if err != nil {
		h.log.Error("mcp get_sessions", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(sessions)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getSessionDetail(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	idStr, err := req.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError("session_id parameter is required"), nil
	}

	sessionID, err := uuid.Parse(idStr)
	if err != nil {
		return mcp.NewToolResultError("invalid session_id: " + err.Error()), nil
	}

	detail, err := h.ds.GetSession(ctx, sessionID)
	if err != nil {
		h.log.Error("mcp get_session_detail", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(detail)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getFormTrends(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	exerciseID, err := req.RequireString("exercise")
	if err != nil {
		return mcp.NewToolResultError("exercise parameter is required"), nil
	}

	start, end, err := defaultTimeRange(req.GetString("start", ""), req.GetString("end", ""))
	if err != nil {
		return mcp.NewToolResultError("invalid date format: " + err.Error()), nil
	}

	bucket := req.GetString("bucket", "1 day")

	points, err := h.ds.GetScoreTrend(ctx, exerciseID, start, end, bucket)
	if err != nil {
		h.log.Error("mcp get_form_trends", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(points)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) comparePeriods(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	exerciseID, err := req.RequireString("exercise")
	if err != nil {
		return mcp.NewToolResultError("exercise parameter is required"), nil
	}

	aStartStr, err := req.RequireString("period_a_start")
	if err != nil {
		return mcp.NewToolResultError("period_a_start is required"), nil
	}
	aEndStr, err := req.RequireString("period_a_end")
	if err != nil {
		return mcp.NewToolResultError("period_a_end is required"), nil
	}
	bStartStr, err := req.RequireString("period_b_start")
	if err != nil {
		return mcp.NewToolResultError("period_b_start is required"), nil
	}
	bEndStr, err := req.RequireString("period_b_end")
	if err != nil {
		return mcp.NewToolResultError("period_b_end is required"), nil
	}

	aStart, err := parseFlexTime(aStartStr)
	if err != nil {
		return mcp.NewToolResultError("invalid period_a_start: " + err.Error()), nil
	}
	aEnd, err := parseFlexTime(aEndStr)
	if err != nil {
		return mcp.NewToolResultError("invalid period_a_end: " + err.Error()), nil
	}
	bStart, err := parseFlexTime(bStartStr)
	if err != nil {
		return mcp.NewToolResultError("invalid period_b_start: " + err.Error()), nil
	}
	bEnd, err := parseFlexTime(bEndStr)
	if err != nil {
		return mcp.NewToolResultError("invalid period_b_end: " + err.Error()), nil
	}

	statsA, err := h.ds.GetPeriodStats(ctx, exerciseID, aStart, aEnd)
	if err != nil {
		h.log.Error("mcp compare_periods A", "error", err)
		return mcp.NewToolResultError("query failed for period A: " + err.Error()), nil
	}

	statsB, err := h.ds.GetPeriodStats(ctx, exerciseID, bStart, bEnd)
	if err != nil {
		h.log.Error("mcp compare_periods B", "error", err)
		return mcp.NewToolResultError("query failed for period B: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(map[string]any{
		"exercise": exerciseID,
		"period_a": statsA,
		"period_b": statsB,
	})
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}
