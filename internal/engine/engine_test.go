package engine

import (
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/claude/repcoach/internal/feedback"
	"github.com/claude/repcoach/internal/pose"
	"github.com/claude/repcoach/internal/profile"
	"github.com/claude/repcoach/internal/rules"
)

// testSink captures dispatched feedback events.
type testSink struct {
	events []feedback.Event
}

func (s *testSink) Deliver(ev feedback.Event) error {
	s.events = append(s.events, ev)
	return nil
}

// testProfile uses the left knee as the primary joint with squat-like
// thresholds: top 160, bottom 100, hysteresis 10.
func testProfile(specs ...profile.RuleSpec) *profile.Profile {
	return &profile.Profile{
		ID:   "squat",
		Name: "Test Squat",
		Required: []pose.LandmarkIndex{
			pose.LeftHip, pose.LeftKnee, pose.LeftAnkle,
		},
		PrimaryAngle: profile.AngleDef{A: pose.LeftHip, Vertex: pose.LeftKnee, C: pose.LeftAnkle},
		Thresholds:   profile.Thresholds{TopAngle: 160, BottomAngle: 100, Hysteresis: 10},
		GoodFormCode: "squat.good_form",
		Rules:        specs,
	}
}

// frameAt builds a frame whose primary angle (hip-knee-ankle) equals
// degrees: the knee sits at the vertex, the hip straight above it, and
// the ankle rotated by the requested angle.
func frameAt(degrees float64, ts time.Time) *pose.Frame {
	f := &pose.Frame{Timestamp: ts}
	for i := range f.Landmarks {
		f.Landmarks[i].Visibility = 0.9
	}
	rad := degrees * math.Pi / 180
	f.Landmarks[pose.LeftKnee] = pose.Landmark{X: 0.5, Y: 0.5, Visibility: 0.9}
	f.Landmarks[pose.LeftHip] = pose.Landmark{X: 0.5, Y: 0.3, Visibility: 0.9}
	f.Landmarks[pose.LeftAnkle] = pose.Landmark{
		X:          0.5 + 0.2*math.Sin(rad),
		Y:          0.5 - 0.2*math.Cos(rad),
		Visibility: 0.9,
	}
	return f
}

func newTestSession(p *profile.Profile, sink feedback.Sink) *Session {
	d := feedback.NewDispatcher(p.ID, sink, time.Second, slog.Default())
	return NewSession(p, d, 0.5, slog.Default())
}

// feed runs a sequence of primary angles through the session at 30fps
// and returns the completed reps.
func feed(s *Session, angles []float64) []RepResult {
	var reps []RepResult
	ts := time.Unix(1000, 0)
	for _, a := range angles {
		out := s.IngestFrame(frameAt(a, ts))
		if out.Rep != nil {
			reps = append(reps, *out.Rep)
		}
		ts = ts.Add(33 * time.Millisecond)
	}
	return reps
}

// TestSingleRep verifies a full descent and ascent: 170° down to 90°
// and back to 170° yields exactly one rep with the phase back at TOP.
func TestSingleRep(t *testing.T) {
	s := newTestSession(testProfile(), &testSink{})
	reps := feed(s, []float64{170, 150, 130, 110, 90, 95, 115, 140, 160, 170})

	if len(reps) != 1 {
		t.Fatalf("completed %d reps, want 1", len(reps))
	}
	if s.Phase() != profile.PhaseTop {
		t.Errorf("final phase = %s, want top", s.Phase())
	}
	if reps[0].RepIndex != 0 {
		t.Errorf("rep index = %d, want 0", reps[0].RepIndex)
	}
}

// TestShallowRepNotCounted verifies a movement that never reaches the
// bottom angle (bottoming out at 140°) counts zero reps.
func TestShallowRepNotCounted(t *testing.T) {
	s := newTestSession(testProfile(), &testSink{})
	reps := feed(s, []float64{170, 155, 145, 140, 145, 155, 165, 170})

	if len(reps) != 0 {
		t.Errorf("completed %d reps, want 0", len(reps))
	}
}

// TestOccludedFrameInert verifies that one occluded frame in the middle
// of a valid rep changes nothing versus the same sequence without it:
// same rep count, same final phase.
func TestOccludedFrameInert(t *testing.T) {
	angles := []float64{170, 150, 130, 110, 90, 95, 115, 140, 160, 170}

	clean := newTestSession(testProfile(), &testSink{})
	cleanReps := feed(clean, angles)

	withGap := newTestSession(testProfile(), &testSink{})
	ts := time.Unix(1000, 0)
	var gapReps int
	for i, a := range angles {
		if i == 4 {
			// Occluded frame: required knee below the 0.5 gate.
			f := frameAt(a, ts)
			f.Landmarks[pose.LeftKnee].Visibility = 0.2
			out := withGap.IngestFrame(f)
			if out.Usable {
				t.Fatal("occluded frame should be unusable")
			}
			ts = ts.Add(33 * time.Millisecond)
		}
		out := withGap.IngestFrame(frameAt(a, ts))
		if out.Rep != nil {
			gapReps++
		}
		ts = ts.Add(33 * time.Millisecond)
	}

	if gapReps != len(cleanReps) {
		t.Errorf("rep count with occlusion = %d, want %d", gapReps, len(cleanReps))
	}
	if withGap.Phase() != clean.Phase() {
		t.Errorf("phase with occlusion = %s, want %s", withGap.Phase(), clean.Phase())
	}
}

// TestHysteresisNoChatter verifies jitter of a few degrees around the
// bottom threshold does not register phantom reps: the phase only
// leaves BOTTOM once the angle clears bottom+hysteresis.
func TestHysteresisNoChatter(t *testing.T) {
	s := newTestSession(testProfile(), &testSink{})
	// Descend, then jitter 99<->107 around bottomAngle=100 (ascend
	// requires >110), then genuinely rise.
	reps := feed(s, []float64{170, 140, 99, 107, 99, 106, 98, 111, 140, 161, 170})

	if len(reps) != 1 {
		t.Errorf("completed %d reps, want 1 (chatter must not multiply reps)", len(reps))
	}
}

// TestTopHysteresis verifies a small dip below the top angle does not
// start a rep until it clears top-hysteresis.
func TestTopHysteresis(t *testing.T) {
	s := newTestSession(testProfile(), &testSink{})
	feed(s, []float64{170, 155, 152})
	if s.Phase() != profile.PhaseTop {
		t.Errorf("phase = %s, want top (152 is inside the hysteresis band)", s.Phase())
	}

	feed(s, []float64{149})
	if s.Phase() != profile.PhaseDescending {
		t.Errorf("phase = %s, want descending after dropping below 150", s.Phase())
	}
}

// alwaysFailSpec is a symmetry rule between two landmarks parked far
// apart vertically in frameAt, so it fails every frame.
func alwaysFailSpec() profile.RuleSpec {
	return profile.RuleSpec{
		ID: rules.RuleSymmetry, Kind: profile.KindSymmetry,
		Landmarks:   []pose.LandmarkIndex{pose.LeftHip, pose.LeftAnkle},
		Tolerance:   0.001,
		MessageCode: "squat.uneven_knees",
		PassCutoff:  0.5,
	}
}

// TestRepScoreAllFailing verifies a rep whose only rule fails on every
// frame scores 0 and reports the rule as failing, and that failure
// feedback was dispatched.
func TestRepScoreAllFailing(t *testing.T) {
	sink := &testSink{}
	s := newTestSession(testProfile(alwaysFailSpec()), sink)
	reps := feed(s, []float64{170, 150, 130, 110, 90, 95, 115, 140, 160, 170})

	if len(reps) != 1 {
		t.Fatalf("completed %d reps, want 1", len(reps))
	}
	if reps[0].Score != 0 {
		t.Errorf("score = %d, want 0", reps[0].Score)
	}
	if len(reps[0].FailingRules) != 1 || reps[0].FailingRules[0] != rules.RuleSymmetry {
		t.Errorf("failing rules = %v, want [symmetry]", reps[0].FailingRules)
	}
	if len(sink.events) == 0 {
		t.Error("expected failure feedback events")
	}
	for _, ev := range sink.events {
		if ev.Outcome == feedback.OutcomePass {
			t.Error("no good-form event expected on a failing rep")
		}
	}
}

// TestRepScoreCleanRep verifies a rep with a passing rule scores 100,
// reports no failing rules, and emits the good-form message.
func TestRepScoreCleanRep(t *testing.T) {
	passing := alwaysFailSpec()
	passing.Tolerance = 10 // generous enough to always pass

	sink := &testSink{}
	s := newTestSession(testProfile(passing), sink)
	reps := feed(s, []float64{170, 150, 130, 110, 90, 95, 115, 140, 160, 170})

	if len(reps) != 1 {
		t.Fatalf("completed %d reps, want 1", len(reps))
	}
	if reps[0].Score != 100 {
		t.Errorf("score = %d, want 100", reps[0].Score)
	}
	if len(reps[0].FailingRules) != 0 {
		t.Errorf("failing rules = %v, want none", reps[0].FailingRules)
	}

	var sawGoodForm bool
	for _, ev := range sink.events {
		if ev.MessageCode == "squat.good_form" {
			sawGoodForm = true
		}
	}
	if !sawGoodForm {
		t.Error("expected good-form feedback on a clean rep")
	}
}

// TestPhaseScopedRule verifies a rule restricted to descending/bottom
// phases is never evaluated while ascending.
func TestPhaseScopedRule(t *testing.T) {
	spec := alwaysFailSpec()
	spec.Phases = []profile.Phase{profile.PhaseDescending, profile.PhaseBottom}

	s := newTestSession(testProfile(spec), &testSink{})

	// Walk to ASCENDING, then check telemetry partial score: frames in
	// ascending must not add evaluations.
	feed(s, []float64{170, 130, 90, 115})
	if s.Phase() != profile.PhaseAscending {
		t.Fatalf("phase = %s, want ascending", s.Phase())
	}
	evalsBefore := s.tally.evals[spec.ID]
	feed(s, []float64{120, 125, 130})
	if got := s.tally.evals[spec.ID]; got != evalsBefore {
		t.Errorf("evaluations grew from %d to %d during ascending", evalsBefore, got)
	}
}

// TestFinalize verifies aggregate scoring, duration, and the zero-rep
// case, and that an in-flight partial rep is discarded.
func TestFinalize(t *testing.T) {
	s := newTestSession(testProfile(), &testSink{})
	feed(s, []float64{170, 130, 90, 115, 140, 161, 170}) // one full rep
	feed(s, []float64{140, 120})                         // partial second rep

	res := s.Finalize()
	if res.RepCount != 1 || len(res.Reps) != 1 {
		t.Errorf("rep count = %d (%d results), want 1", res.RepCount, len(res.Reps))
	}
	if res.AverageScore != 100 {
		t.Errorf("average score = %v, want 100 (no rules configured)", res.AverageScore)
	}
	if res.ExerciseID != "squat" {
		t.Errorf("exercise id = %q", res.ExerciseID)
	}
	// 9 frames at 33ms: duration spans first to last usable frame.
	if res.DurationMs <= 0 {
		t.Errorf("duration = %dms, want > 0", res.DurationMs)
	}
}

// TestFinalizeEmptySession verifies zero frames finalize to a zero
// score and zero duration without error.
func TestFinalizeEmptySession(t *testing.T) {
	s := newTestSession(testProfile(), &testSink{})
	res := s.Finalize()
	if res.RepCount != 0 || res.AverageScore != 0 || res.DurationMs != 0 {
		t.Errorf("empty session result = %+v", res)
	}
}

// TestTelemetry verifies per-frame telemetry reports phase, rep count,
// and the measured primary angle.
func TestTelemetry(t *testing.T) {
	s := newTestSession(testProfile(), &testSink{})
	out := s.IngestFrame(frameAt(130, time.Unix(1000, 0)))

	if !out.Usable {
		t.Fatal("frame should be usable")
	}
	if out.Telemetry.Phase != profile.PhaseDescending {
		t.Errorf("phase = %s, want descending", out.Telemetry.Phase)
	}
	if math.Abs(out.Telemetry.PrimaryAngle-130) > 0.5 {
		t.Errorf("primary angle = %.1f, want 130±0.5", out.Telemetry.PrimaryAngle)
	}
	if out.Telemetry.RepCount != 0 {
		t.Errorf("rep count = %d, want 0", out.Telemetry.RepCount)
	}
}
