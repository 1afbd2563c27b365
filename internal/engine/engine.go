// Package engine drives repetition counting and form scoring over the
// landmark stream. One Session owns one repetition state machine and
// one feedback dispatcher. Ingestion is synchronous and single-owner:
// the host's frame loop calls IngestFrame one frame at a time and the
// engine never queues or suspends.
package engine

import (
	"log/slog"
	"math"
	"time"

	"github.com/claude/repcoach/internal/feedback"
	"github.com/claude/repcoach/internal/geom"
	"github.com/claude/repcoach/internal/pose"
	"github.com/claude/repcoach/internal/profile"
	"github.com/claude/repcoach/internal/rules"
)

// RepResult is one completed repetition. Immutable once produced.
type RepResult struct {
	RepIndex     int        `json:"rep_index"`
	Score        int        `json:"score"`
	FailingRules []rules.ID `json:"failing_rules,omitempty"`
	CompletedAt  time.Time  `json:"completed_at"`
}

// Telemetry is the per-frame live state for UI rendering.
type Telemetry struct {
	Phase        profile.Phase `json:"phase"`
	RepCount     int           `json:"rep_count"`
	PartialScore int           `json:"partial_score"`
	PrimaryAngle float64       `json:"primary_angle"`
}

// Ingestion is the result of feeding one frame. Usable is false when
// the frame failed the visibility gate and contributed nothing. Rep is
// non-nil only on the frame that completed a repetition.
type Ingestion struct {
	Usable    bool       `json:"usable"`
	Telemetry Telemetry  `json:"telemetry"`
	Rep       *RepResult `json:"rep,omitempty"`
}

// SessionResult is the finalized session for the persistence sink.
type SessionResult struct {
	ExerciseID   string      `json:"exercise_id"`
	RepCount     int         `json:"rep_count"`
	Reps         []RepResult `json:"reps"`
	AverageScore float64     `json:"average_score"`
	DurationMs   int64       `json:"duration_ms"`
}

// repTally accumulates rule outcomes while a rep is in flight. Rules
// can be phase-scoped, so passes and evaluations are counted per rule.
type repTally struct {
	frameCount int
	passes     map[rules.ID]int
	evals      map[rules.ID]int
}

func newRepTally() *repTally {
	return &repTally{passes: make(map[rules.ID]int), evals: make(map[rules.ID]int)}
}

func (t *repTally) fold(r rules.Result) {
	t.evals[r.Rule]++
	if r.Passed {
		t.passes[r.Rule]++
	}
}

// score is 100 x mean pass rate over all evaluations, rounded. A rep
// with no evaluations scored 100: no rule produced evidence against it.
func (t *repTally) score() int {
	var passes, evals int
	for _, n := range t.evals {
		evals += n
	}
	for _, n := range t.passes {
		passes += n
	}
	if evals == 0 {
		return 100
	}
	return int(math.Round(100 * float64(passes) / float64(evals)))
}

// failingRules returns rules whose per-rep pass rate fell below the
// profile's cutoff for that rule.
func (t *repTally) failingRules(specs []profile.RuleSpec) []rules.ID {
	var failing []rules.ID
	for _, spec := range specs {
		evals := t.evals[spec.ID]
		if evals == 0 {
			continue
		}
		rate := float64(t.passes[spec.ID]) / float64(evals)
		if rate < spec.PassCutoff {
			failing = append(failing, spec.ID)
		}
	}
	return failing
}

// Session evaluates one exercise session. Not safe for concurrent use;
// the caller serializes IngestFrame per the latest-frame-wins contract.
type Session struct {
	profile    *profile.Profile
	dispatcher *feedback.Dispatcher
	visibility float64
	log        *slog.Logger

	phase      profile.Phase
	tally      *repTally
	reps       []RepResult
	firstFrame time.Time
	lastFrame  time.Time
}

// NewSession creates a session for the given profile. visibility <= 0
// selects the default gate threshold.
func NewSession(p *profile.Profile, d *feedback.Dispatcher, visibility float64, log *slog.Logger) *Session {
	if visibility <= 0 {
		visibility = geom.DefaultVisibility
	}
	return &Session{
		profile:    p,
		dispatcher: d,
		visibility: visibility,
		log:        log,
		phase:      profile.PhaseTop,
	}
}

// Phase returns the current repetition phase.
func (s *Session) Phase() profile.Phase { return s.phase }

// RepCount returns the number of completed repetitions so far.
func (s *Session) RepCount() int { return len(s.reps) }

// IngestFrame feeds one frame through the visibility gate, the rule
// set, and the repetition state machine. Occluded frames are inert:
// no tally update, no transition, no feedback.
func (s *Session) IngestFrame(f *pose.Frame) Ingestion {
	if !geom.AllVisible(f, s.profile.Required, s.visibility) {
		return Ingestion{Usable: false, Telemetry: s.telemetry(0)}
	}

	if s.firstFrame.IsZero() {
		s.firstFrame = f.Timestamp
	}
	s.lastFrame = f.Timestamp

	def := s.profile.PrimaryAngle
	theta := geom.Angle(f.At(def.A), f.At(def.Vertex), f.At(def.C))

	var completed *RepResult
	if s.advance(theta) {
		completed = s.completeRep(f.Timestamp)
	}

	// While a rep is in flight, fold this frame's applicable rule
	// outcomes into the tally and surface failures as feedback.
	if s.phase != profile.PhaseTop {
		if s.tally == nil {
			s.tally = newRepTally()
		}
		s.tally.frameCount++
		for _, spec := range s.profile.Rules {
			if !spec.AppliesIn(s.phase) {
				continue
			}
			r := spec.Evaluate(f)
			s.tally.fold(r)
			if !r.Passed {
				s.dispatcher.Dispatch(spec.MessageCode, f.Timestamp)
			}
		}
	}

	return Ingestion{Usable: true, Telemetry: s.telemetry(theta), Rep: completed}
}

// advance applies one transition step for the primary angle. Returns
// true when the step completed a repetition (ASCENDING back to TOP).
// Hysteresis keeps detector jitter near a threshold from oscillating
// the phase.
func (s *Session) advance(theta float64) bool {
	th := s.profile.Thresholds
	switch s.phase {
	case profile.PhaseTop:
		if theta < th.TopAngle-th.Hysteresis {
			s.phase = profile.PhaseDescending
		}
	case profile.PhaseDescending:
		if theta <= th.BottomAngle {
			s.phase = profile.PhaseBottom
		}
	case profile.PhaseBottom:
		if theta > th.BottomAngle+th.Hysteresis {
			s.phase = profile.PhaseAscending
		}
	case profile.PhaseAscending:
		if theta >= th.TopAngle {
			s.phase = profile.PhaseTop
			return true
		}
	}
	return false
}

// completeRep converts the active tally into a RepResult, appends it,
// and resets the tally. Emits the good-form message for a clean rep.
func (s *Session) completeRep(at time.Time) *RepResult {
	tally := s.tally
	if tally == nil {
		tally = newRepTally()
	}
	s.tally = nil

	rep := RepResult{
		RepIndex:     len(s.reps),
		Score:        tally.score(),
		FailingRules: tally.failingRules(s.profile.Rules),
		CompletedAt:  at,
	}
	s.reps = append(s.reps, rep)

	if len(rep.FailingRules) == 0 && s.profile.GoodFormCode != "" {
		s.dispatcher.Dispatch(s.profile.GoodFormCode, at)
	}

	s.log.Debug("rep completed",
		"exercise", s.profile.ID,
		"rep", rep.RepIndex,
		"score", rep.Score,
		"failing_rules", len(rep.FailingRules),
	)
	return &rep
}

func (s *Session) telemetry(theta float64) Telemetry {
	partial := 100
	if s.tally != nil {
		partial = s.tally.score()
	}
	return Telemetry{
		Phase:        s.phase,
		RepCount:     len(s.reps),
		PartialScore: partial,
		PrimaryAngle: theta,
	}
}

// Finalize returns the immutable session result for the persistence
// sink. A session with zero completed reps scores 0. An in-flight
// partial rep is discarded.
func (s *Session) Finalize() SessionResult {
	res := SessionResult{
		ExerciseID: s.profile.ID,
		RepCount:   len(s.reps),
		Reps:       s.reps,
	}
	if len(s.reps) > 0 {
		var sum float64
		for _, r := range s.reps {
			sum += float64(r.Score)
		}
		res.AverageScore = sum / float64(len(s.reps))
	}
	if !s.firstFrame.IsZero() {
		res.DurationMs = s.lastFrame.Sub(s.firstFrame).Milliseconds()
	}
	return res
}
