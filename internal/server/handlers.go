package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/claude/repcoach/internal/engine"
	"github.com/claude/repcoach/internal/feedback"
	"github.com/claude/repcoach/internal/models"
	"github.com/claude/repcoach/internal/pose"
	"github.com/claude/repcoach/internal/profile"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type createSessionRequest struct {
	ExerciseID string `json:"exercise_id"`
}

type createSessionResponse struct {
	SessionID  uuid.UUID `json:"session_id"`
	ExerciseID string    `json:"exercise_id"`
	StartedAt  time.Time `json:"started_at"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}

	p, err := s.registry.Get(req.ExerciseID)
	if err != nil {
		if errors.Is(err, profile.ErrUnknownExercise) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	sink := &bufferSink{}
	dispatcher := feedback.NewDispatcher(p.ID, sink, s.engine.FeedbackCooldown, s.log)
	ls := &liveSession{
		id:         uuid.New(),
		exerciseID: p.ID,
		startedAt:  time.Now(),
		eval:       engine.NewSession(p, dispatcher, s.engine.VisibilityThreshold, s.log),
		sink:       sink,
	}
	s.sessions.add(ls)

	s.log.Info("session created", "session_id", ls.id, "exercise", p.ID)
	writeJSON(w, http.StatusCreated, createSessionResponse{
		SessionID:  ls.id,
		ExerciseID: ls.exerciseID,
		StartedAt:  ls.startedAt,
	})
}

type frameResponse struct {
	engine.Ingestion
	Feedback []feedback.Event `json:"feedback,omitempty"`
}

func (s *Server) handleIngestFrame(w http.ResponseWriter, r *http.Request) {
	ls, ok := s.liveSessionFromRequest(w, r)
	if !ok {
		return
	}

	var frame pose.Frame
	if err := json.NewDecoder(r.Body).Decode(&frame); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid frame: " + err.Error()})
		return
	}

	ls.mu.Lock()
	out := ls.eval.IngestFrame(&frame)
	events := ls.sink.drain()
	ls.mu.Unlock()

	writeJSON(w, http.StatusOK, frameResponse{Ingestion: out, Feedback: events})
}

type finalizeResponse struct {
	SessionID uuid.UUID            `json:"session_id"`
	Result    engine.SessionResult `json:"result"`
}

func (s *Server) handleFinalizeSession(w http.ResponseWriter, r *http.Request) {
	idStr := chi.URLParam(r, "id")
	sessionID, err := uuid.Parse(idStr)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid session ID"})
		return
	}

	ls, ok := s.sessions.remove(sessionID)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
		return
	}

	ls.mu.Lock()
	result := ls.eval.Finalize()
	events := ls.sink.all
	ls.mu.Unlock()

	if err := s.persistSession(r.Context(), ls, result, events, "live"); err != nil {
		s.log.Error("session persistence failed", "session_id", ls.id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	s.log.Info("session finalized",
		"session_id", ls.id,
		"exercise", ls.exerciseID,
		"reps", result.RepCount,
		"average_score", result.AverageScore,
	)
	writeJSON(w, http.StatusOK, finalizeResponse{SessionID: ls.id, Result: result})
}

// importSessionRequest is the replay CLI's upload shape: a finished
// session evaluated offline.
type importSessionRequest struct {
	SessionID uuid.UUID            `json:"session_id"`
	StartedAt time.Time            `json:"started_at"`
	Result    engine.SessionResult `json:"result"`
	Feedback  []feedback.Event     `json:"feedback,omitempty"`
}

func (s *Server) handleImportSession(w http.ResponseWriter, r *http.Request) {
	var req importSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}
	if req.SessionID == (uuid.UUID{}) {
		req.SessionID = uuid.New()
	}
	if _, err := s.registry.Get(req.Result.ExerciseID); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	ls := &liveSession{id: req.SessionID, exerciseID: req.Result.ExerciseID, startedAt: req.StartedAt}
	if err := s.persistSession(r.Context(), ls, req.Result, req.Feedback, "replay"); err != nil {
		s.log.Error("session import failed", "session_id", req.SessionID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"session_id": req.SessionID, "imported": true})
}

// persistSession writes the session row, its reps, and its feedback
// events to storage. A session id that already exists is a replay
// client retrying after a lost response; its reps and events are
// already stored, so the whole write is skipped.
func (s *Server) persistSession(ctx context.Context, ls *liveSession, result engine.SessionResult, events []feedback.Event, source string) error {
	endedAt := ls.startedAt.Add(time.Duration(result.DurationMs) * time.Millisecond)
	row := models.SessionRow{
		ID:           ls.id,
		ExerciseID:   result.ExerciseID,
		StartedAt:    ls.startedAt,
		EndedAt:      endedAt,
		RepCount:     result.RepCount,
		AverageScore: result.AverageScore,
		DurationMs:   result.DurationMs,
		Source:       source,
	}
	inserted, err := s.db.InsertSession(ctx, row)
	if err != nil {
		return err
	}
	if !inserted {
		s.log.Info("session already stored, skipping", "session_id", ls.id)
		return nil
	}

	repRows := make([]models.SessionRepRow, len(result.Reps))
	for i, rep := range result.Reps {
		failing := make([]string, len(rep.FailingRules))
		for j, id := range rep.FailingRules {
			failing[j] = string(id)
		}
		repRows[i] = models.SessionRepRow{
			SessionID:    ls.id,
			RepIndex:     rep.RepIndex,
			Score:        rep.Score,
			FailingRules: failing,
			CompletedAt:  rep.CompletedAt,
		}
	}
	if _, err := s.db.InsertSessionReps(ctx, repRows); err != nil {
		return err
	}

	fbRows := make([]models.FeedbackEventRow, len(events))
	for i, ev := range events {
		fbRows[i] = models.FeedbackEventRow{
			SessionID:   ls.id,
			ExerciseID:  ev.ExerciseID,
			MessageCode: ev.MessageCode,
			Outcome:     string(ev.Outcome),
			EmittedAt:   ev.Timestamp,
		}
	}
	_, err = s.db.InsertFeedbackEvents(ctx, fbRows)
	return err
}

func (s *Server) liveSessionFromRequest(w http.ResponseWriter, r *http.Request) (*liveSession, bool) {
	idStr := chi.URLParam(r, "id")
	sessionID, err := uuid.Parse(idStr)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid session ID"})
		return nil, false
	}
	ls, ok := s.sessions.get(sessionID)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
		return nil, false
	}
	return ls, true
}

// exerciseSummary is the read-API shape for one profile.
type exerciseSummary struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	TopAngle    float64 `json:"top_angle"`
	BottomAngle float64 `json:"bottom_angle"`
	Hysteresis  float64 `json:"hysteresis"`
	RuleCount   int     `json:"rule_count"`
}

func (s *Server) handleListExercises(w http.ResponseWriter, r *http.Request) {
	profiles := s.registry.List()
	out := make([]exerciseSummary, len(profiles))
	for i, p := range profiles {
		out[i] = exerciseSummary{
			ID:          p.ID,
			Name:        p.Name,
			TopAngle:    p.Thresholds.TopAngle,
			BottomAngle: p.Thresholds.BottomAngle,
			Hysteresis:  p.Thresholds.Hysteresis,
			RuleCount:   len(p.Rules),
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleQuerySessions(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseTimeRange(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	exerciseID := r.URL.Query().Get("exercise")
	sessions, err := s.db.QuerySessions(r.Context(), start, end, exerciseID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	idStr := chi.URLParam(r, "id")
	sessionID, err := uuid.Parse(idStr)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid session ID"})
		return
	}

	detail, err := s.db.GetSession(r.Context(), sessionID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) handleStatsSummary(w http.ResponseWriter, r *http.Request) {
	stats, err := s.db.GetSummaryStats(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleScoreTrend(w http.ResponseWriter, r *http.Request) {
	exerciseID := r.URL.Query().Get("exercise")
	if exerciseID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "exercise parameter required"})
		return
	}

	start, end, err := parseTimeRange(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	agg := r.URL.Query().Get("agg")
	bucket := "1 day" // default
	switch agg {
	case "weekly":
		bucket = "1 week"
	case "monthly":
		bucket = "1 month"
	case "daily", "":
		bucket = "1 day"
	}

	points, err := s.db.GetScoreTrend(r.Context(), exerciseID, start, end, bucket)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, points)
}

func (s *Server) handleStatsPeriod(w http.ResponseWriter, r *http.Request) {
	exerciseID := r.URL.Query().Get("exercise")
	if exerciseID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "exercise parameter required"})
		return
	}

	start, end, err := parseTimeRange(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	stats, err := s.db.GetPeriodStats(r.Context(), exerciseID, start, end)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func parseTimeRange(r *http.Request) (start, end time.Time, err error) {
	startStr := r.URL.Query().Get("start")
	endStr := r.URL.Query().Get("end")

	if startStr == "" {
		// Default: last 7 days
		end = time.Now()
		start = end.AddDate(0, 0, -7)
		return
	}

	start, err = time.Parse(time.RFC3339, startStr)
	if err != nil {
		start, err = time.Parse("2006-01-02", startStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	}

	if endStr == "" {
		end = time.Now()
	} else {
		end, err = time.Parse(time.RFC3339, endStr)
		if err != nil {
			end, err = time.Parse("2006-01-02", endStr)
			if err != nil {
				return time.Time{}, time.Time{}, err
			}
			// End of day for date-only
			end = end.Add(24 * time.Hour)
		}
	}
	return
}
