// Package profile holds the static per-exercise configuration: which
// landmarks must be visible, which joint angle drives the repetition
// phases, and which form rules apply with what tolerances. Adding an
// exercise is a data change here, not a code change anywhere else.
package profile

import (
	"errors"
	"fmt"

	"github.com/claude/repcoach/internal/geom"
	"github.com/claude/repcoach/internal/pose"
	"github.com/claude/repcoach/internal/rules"
)

// ErrUnknownExercise is returned by Registry.Get for an exercise id
// with no profile. Session creation fails fast on it; nothing else in
// the engine can encounter an unknown exercise.
var ErrUnknownExercise = errors.New("unknown exercise")

// Phase is one repetition phase of the primary-angle cycle.
type Phase string

const (
	PhaseTop        Phase = "top"
	PhaseDescending Phase = "descending"
	PhaseBottom     Phase = "bottom"
	PhaseAscending  Phase = "ascending"
)

// AngleDef is a vertex-at-middle joint angle over three landmarks.
type AngleDef struct {
	A, Vertex, C pose.LandmarkIndex
}

// Thresholds drives the repetition state machine. Hysteresis is the
// buffer around TopAngle/BottomAngle that keeps per-frame jitter from
// registering phantom reps.
type Thresholds struct {
	TopAngle    float64 `yaml:"top_angle"`
	BottomAngle float64 `yaml:"bottom_angle"`
	Hysteresis  float64 `yaml:"hysteresis"`
}

// RuleKind selects which rule function a RuleSpec binds.
type RuleKind string

const (
	KindAngleRange RuleKind = "angle_range"
	KindOffset     RuleKind = "joint_offset"
	KindStability  RuleKind = "joint_stability"
	KindSymmetry   RuleKind = "symmetry"
	KindBodyLine   RuleKind = "body_line"
	KindBackLine   RuleKind = "back_line"
)

// RuleSpec binds one rule to an exercise: the landmarks it reads, its
// tolerance, the phases it applies in (empty means every non-top
// phase), the feedback message code for failures, and the per-rep pass
// rate below which the rule counts as failed for that rep.
type RuleSpec struct {
	ID          rules.ID
	Kind        RuleKind
	Landmarks   []pose.LandmarkIndex
	Tolerance   float64
	Phases      []Phase
	MessageCode string
	PassCutoff  float64

	// MinAngle/MaxAngle bound the measured joint angle for
	// angle_range rules. Unused by the other kinds.
	MinAngle float64
	MaxAngle float64
}

// AppliesIn reports whether the rule is evaluated during the given
// phase.
func (s RuleSpec) AppliesIn(p Phase) bool {
	if len(s.Phases) == 0 {
		return true
	}
	for _, ph := range s.Phases {
		if ph == p {
			return true
		}
	}
	return false
}

// Evaluate runs the bound rule against the frame. The caller has
// already gated on visibility for the profile's required set.
func (s RuleSpec) Evaluate(f *pose.Frame) rules.Result {
	l := func(i int) pose.Landmark { return f.At(s.Landmarks[i]) }
	switch s.Kind {
	case KindAngleRange:
		a := geom.Angle(l(0), l(1), l(2))
		return rules.Result{Rule: s.ID, Passed: rules.AngleInRange(a, s.MinAngle, s.MaxAngle), Measured: a}
	case KindOffset:
		r := rules.JointOffset(l(0), l(1), l(2), s.Tolerance)
		r.Rule = s.ID
		return r
	case KindStability:
		r := rules.JointStability(l(0), l(1), l(2), s.Tolerance)
		r.Rule = s.ID
		return r
	case KindSymmetry:
		r := rules.Symmetry(l(0), l(1), s.Tolerance)
		r.Rule = s.ID
		return r
	case KindBodyLine:
		r := rules.BodyLine(l(0), l(1), l(2), s.Tolerance)
		r.Rule = s.ID
		return r
	case KindBackLine:
		r := rules.BackStraightness(l(0), l(1), l(2), s.Tolerance)
		r.Rule = s.ID
		return r
	default:
		return rules.Result{Rule: s.ID, Passed: true}
	}
}

// Profile is the immutable configuration for one exercise. Loaded once
// at process start and never mutated afterwards.
type Profile struct {
	ID           string
	Name         string
	Required     []pose.LandmarkIndex
	PrimaryAngle AngleDef
	Thresholds   Thresholds
	Rules        []RuleSpec

	// GoodFormCode is the advisory positive message emitted when a rep
	// completes with no failing rules.
	GoodFormCode string
}

// validate catches profile-table mistakes at registration time.
func (p *Profile) validate() error {
	if p.ID == "" {
		return errors.New("profile missing id")
	}
	if p.Thresholds.TopAngle <= p.Thresholds.BottomAngle {
		return fmt.Errorf("profile %s: top_angle %.0f must exceed bottom_angle %.0f",
			p.ID, p.Thresholds.TopAngle, p.Thresholds.BottomAngle)
	}
	if p.Thresholds.Hysteresis < 0 {
		return fmt.Errorf("profile %s: negative hysteresis", p.ID)
	}
	for _, r := range p.Rules {
		if r.MessageCode == "" {
			return fmt.Errorf("profile %s: rule %s missing message code", p.ID, r.ID)
		}
		if r.PassCutoff < 0 || r.PassCutoff > 1 {
			return fmt.Errorf("profile %s: rule %s pass cutoff %v out of range", p.ID, r.ID, r.PassCutoff)
		}
	}
	return nil
}
