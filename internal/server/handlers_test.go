package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/claude/repcoach/internal/engine"
	"github.com/claude/repcoach/internal/feedback"
	"github.com/claude/repcoach/internal/models"
	"github.com/claude/repcoach/internal/pose"
	"github.com/claude/repcoach/internal/profile"
	"github.com/claude/repcoach/internal/storage"
	"github.com/google/uuid"
)

const testAPIKey = "test-key"

func newTestServer(t *testing.T) *Server {
	t.Helper()
	registry, err := profile.NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return New(nil, registry, EngineOptions{}, testAPIKey, slog.Default())
}

// postJSON issues an authenticated POST with a JSON body.
func postJSON(t *testing.T, s *Server, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	buf, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(buf))
	req.Header.Set("X-API-Key", testAPIKey)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

// straightLegFrame places the left leg fully extended with every
// landmark visible, so a squat session stays at the top position.
func straightLegFrame(ts int64) *pose.Frame {
	f := &pose.Frame{Timestamp: time.UnixMilli(ts)}
	for i := range f.Landmarks {
		f.Landmarks[i] = pose.Landmark{X: 0.5, Y: 0.1, Visibility: 1.0}
	}
	f.Landmarks[pose.LeftShoulder] = pose.Landmark{X: 0.5, Y: 0.2, Visibility: 1.0}
	f.Landmarks[pose.LeftHip] = pose.Landmark{X: 0.5, Y: 0.4, Visibility: 1.0}
	f.Landmarks[pose.LeftKnee] = pose.Landmark{X: 0.5, Y: 0.6, Visibility: 1.0}
	f.Landmarks[pose.LeftAnkle] = pose.Landmark{X: 0.5, Y: 0.8, Visibility: 1.0}
	f.Landmarks[pose.LeftFootIndex] = pose.Landmark{X: 0.55, Y: 0.85, Visibility: 1.0}
	f.Landmarks[pose.RightKnee] = pose.Landmark{X: 0.6, Y: 0.6, Visibility: 1.0}
	return f
}

// TestCreateSession verifies that a session is created for a known
// exercise and the response carries its id.
func TestCreateSession(t *testing.T) {
	s := newTestServer(t)

	rec := postJSON(t, s, "/api/v1/sessions", createSessionRequest{ExerciseID: "squat"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}

	var resp createSessionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.SessionID == (uuid.UUID{}) {
		t.Error("session_id is zero")
	}
	if resp.ExerciseID != "squat" {
		t.Errorf("exercise_id = %q, want %q", resp.ExerciseID, "squat")
	}
	if _, ok := s.sessions.get(resp.SessionID); !ok {
		t.Error("session not tracked by the manager")
	}
}

// TestCreateSessionUnknownExercise verifies that an unknown exercise id
// is rejected with 400.
func TestCreateSessionUnknownExercise(t *testing.T) {
	s := newTestServer(t)

	rec := postJSON(t, s, "/api/v1/sessions", createSessionRequest{ExerciseID: "deadlift"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

// TestCreateSessionRequiresAPIKey verifies that session creation is
// behind API key auth.
func TestCreateSessionRequiresAPIKey(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions", bytes.NewReader([]byte(`{"exercise_id":"squat"}`)))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

// TestIngestFrame verifies that a visible frame is evaluated and the
// response carries telemetry.
func TestIngestFrame(t *testing.T) {
	s := newTestServer(t)

	rec := postJSON(t, s, "/api/v1/sessions", createSessionRequest{ExerciseID: "squat"})
	var created createSessionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}

	rec = postJSON(t, s, fmt.Sprintf("/api/v1/sessions/%s/frames", created.SessionID), straightLegFrame(0))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var resp frameResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode frame response: %v", err)
	}
	if !resp.Usable {
		t.Error("fully visible frame reported unusable")
	}
	if resp.Telemetry.Phase != profile.PhaseTop {
		t.Errorf("phase = %q, want %q", resp.Telemetry.Phase, profile.PhaseTop)
	}
	if resp.Telemetry.RepCount != 0 {
		t.Errorf("rep_count = %d, want 0", resp.Telemetry.RepCount)
	}
}

// TestIngestFrameOccluded verifies that an occluded frame is inert but
// still acknowledged with 200.
func TestIngestFrameOccluded(t *testing.T) {
	s := newTestServer(t)

	rec := postJSON(t, s, "/api/v1/sessions", createSessionRequest{ExerciseID: "squat"})
	var created createSessionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}

	frame := straightLegFrame(0)
	frame.Landmarks[pose.LeftKnee].Visibility = 0.1

	rec = postJSON(t, s, fmt.Sprintf("/api/v1/sessions/%s/frames", created.SessionID), frame)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var resp frameResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode frame response: %v", err)
	}
	if resp.Usable {
		t.Error("occluded frame reported usable")
	}
}

// TestIngestFrameUnknownSession verifies 404 for frames sent to a
// session that does not exist.
func TestIngestFrameUnknownSession(t *testing.T) {
	s := newTestServer(t)

	rec := postJSON(t, s, fmt.Sprintf("/api/v1/sessions/%s/frames", uuid.New()), straightLegFrame(0))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

// TestIngestFrameWrongArity verifies that a frame with the wrong
// landmark count is rejected with 400.
func TestIngestFrameWrongArity(t *testing.T) {
	s := newTestServer(t)

	rec := postJSON(t, s, "/api/v1/sessions", createSessionRequest{ExerciseID: "squat"})
	var created createSessionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}

	body := []byte(`{"timestamp_ms":0,"landmarks":[{"x":0,"y":0,"z":0,"visibility":1}]}`)
	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/v1/sessions/%s/frames", created.SessionID), bytes.NewReader(body))
	req.Header.Set("X-API-Key", testAPIKey)
	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

// TestListExercises verifies the exercise catalog endpoint returns all
// built-in profiles without auth.
func TestListExercises(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/exercises", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var out []exerciseSummary
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(out) != 5 {
		t.Fatalf("exercise count = %d, want 5", len(out))
	}
	for _, e := range out {
		if e.RuleCount == 0 {
			t.Errorf("exercise %q has no rules", e.ID)
		}
		if e.TopAngle <= e.BottomAngle {
			t.Errorf("exercise %q: top angle %v <= bottom angle %v", e.ID, e.TopAngle, e.BottomAngle)
		}
	}
}

// fakeStore records insert calls so persistence behavior can be
// asserted without a database.
type fakeStore struct {
	sessions     map[uuid.UUID]bool
	repInserts   int
	eventInserts int
}

func newFakeStore() *fakeStore {
	return &fakeStore{sessions: make(map[uuid.UUID]bool)}
}

func (f *fakeStore) InsertSession(_ context.Context, row models.SessionRow) (bool, error) {
	if f.sessions[row.ID] {
		return false, nil
	}
	f.sessions[row.ID] = true
	return true, nil
}

func (f *fakeStore) InsertSessionReps(_ context.Context, rows []models.SessionRepRow) (int64, error) {
	f.repInserts += len(rows)
	return int64(len(rows)), nil
}

func (f *fakeStore) InsertFeedbackEvents(_ context.Context, rows []models.FeedbackEventRow) (int64, error) {
	f.eventInserts += len(rows)
	return int64(len(rows)), nil
}

func (f *fakeStore) QuerySessions(context.Context, time.Time, time.Time, string) ([]models.SessionRow, error) {
	return nil, nil
}

func (f *fakeStore) GetSession(context.Context, uuid.UUID) (*storage.SessionDetail, error) {
	return nil, nil
}

func (f *fakeStore) GetSummaryStats(context.Context) (*storage.SummaryStats, error) {
	return nil, nil
}

func (f *fakeStore) GetScoreTrend(context.Context, string, time.Time, time.Time, string) ([]storage.ScoreTrendPoint, error) {
	return nil, nil
}

func (f *fakeStore) GetPeriodStats(context.Context, string, time.Time, time.Time) (*storage.PeriodStats, error) {
	return nil, nil
}

// TestImportSessionRetryDoesNotDuplicate verifies that re-sending an
// import for an already stored session id leaves its reps and feedback
// events alone. The replay client retries after a lost response, so a
// duplicate import must be a no-op.
func TestImportSessionRetryDoesNotDuplicate(t *testing.T) {
	registry, err := profile.NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	store := newFakeStore()
	s := New(store, registry, EngineOptions{}, testAPIKey, slog.Default())

	payload := importSessionRequest{
		SessionID: uuid.New(),
		StartedAt: time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC),
		Result: engine.SessionResult{
			ExerciseID: "squat",
			RepCount:   2,
			Reps: []engine.RepResult{
				{RepIndex: 0, Score: 100},
				{RepIndex: 1, Score: 80},
			},
			AverageScore: 90,
			DurationMs:   4000,
		},
		Feedback: []feedback.Event{{
			MessageCode: "squat.good_form",
			ExerciseID:  "squat",
			Outcome:     feedback.OutcomePass,
			Timestamp:   time.Date(2026, 8, 1, 9, 0, 2, 0, time.UTC),
		}},
	}

	for i := 0; i < 2; i++ {
		rec := postJSON(t, s, "/api/v1/sessions/import", payload)
		if rec.Code != http.StatusOK {
			t.Fatalf("import %d: status = %d, want 200: %s", i, rec.Code, rec.Body.String())
		}
	}

	if store.repInserts != 2 {
		t.Errorf("rep rows inserted = %d, want 2", store.repInserts)
	}
	if store.eventInserts != 1 {
		t.Errorf("feedback rows inserted = %d, want 1", store.eventInserts)
	}
}

// TestFinalizeUnknownSession verifies 404 when finalizing a session
// that was never created.
func TestFinalizeUnknownSession(t *testing.T) {
	s := newTestServer(t)

	rec := postJSON(t, s, fmt.Sprintf("/api/v1/sessions/%s/finalize", uuid.New()), struct{}{})
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}
