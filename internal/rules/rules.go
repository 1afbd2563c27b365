// Package rules contains the exercise-agnostic form checks. Every rule
// is a pure function over the current frame's landmarks plus a
// profile-supplied tolerance; session state never enters here. Callers
// gate on geom.AllVisible first, so rules may assume their landmarks
// are usable.
package rules

import (
	"math"

	"github.com/claude/repcoach/internal/geom"
	"github.com/claude/repcoach/internal/pose"
)

// ID names one rule for tallying, feedback lookup, and persistence.
type ID string

const (
	RuleKneeOverToe      ID = "knee_over_toe"
	RuleElbowFixed       ID = "elbow_fixed"
	RuleSymmetry         ID = "symmetry"
	RuleBodyLine         ID = "body_line"
	RuleBackStraightness ID = "back_straightness"
	RuleDepth            ID = "depth"
)

// Result is one rule evaluation for one frame. Measured carries the
// raw value (an angle or a normalized displacement) for telemetry.
type Result struct {
	Rule     ID      `json:"rule"`
	Passed   bool    `json:"passed"`
	Measured float64 `json:"measured"`
}

// AngleInRange reports whether value lies in [min, max], inclusive on
// both bounds.
func AngleInRange(value, min, max float64) bool {
	return value >= min && value <= max
}

// JointOffset checks horizontal displacement of a joint past a
// reference joint, e.g. knee past toe. The check is directional:
// only displacement beyond the reference in the direction the body
// faces counts, and it passes while displacement <= tolerance.
// Direction is inferred from the hip-to-toe ordering so the rule works
// facing either way.
func JointOffset(joint, reference, hip pose.Landmark, tolerance float64) Result {
	// Positive when the joint has travelled past the reference,
	// away from the hip.
	dir := 1.0
	if reference.X < hip.X {
		dir = -1.0
	}
	over := (joint.X - reference.X) * dir
	return Result{Rule: RuleKneeOverToe, Passed: over <= tolerance, Measured: over}
}

// JointStability checks that a joint stays near the line between two
// anchor joints, e.g. the elbow pinned to the shoulder-hip line during
// a curl. Measured is the perpendicular distance from the joint to the
// anchor line; it passes while that distance <= tolerance.
func JointStability(joint, anchorA, anchorB pose.Landmark, tolerance float64) Result {
	d := pointLineDistance(joint, anchorA, anchorB)
	return Result{Rule: RuleElbowFixed, Passed: d <= tolerance, Measured: d}
}

// Symmetry compares mirrored left/right landmarks. Horizontal mirroring
// is expected, so only the vertical and depth components should agree;
// measured is their combined difference. Default tolerance is 0.05 in
// normalized coordinates.
func Symmetry(left, right pose.Landmark, tolerance float64) Result {
	dy := left.Y - right.Y
	dz := left.Z - right.Z
	diff := math.Sqrt(dy*dy + dz*dz)
	return Result{Rule: RuleSymmetry, Passed: diff <= tolerance, Measured: diff}
}

// BodyLine checks shoulder-hip-ankle straightness: the angle at the hip
// must be at least 180 minus toleranceDegrees. Used for plank-like
// postures such as the pushup body line.
func BodyLine(shoulder, hip, ankle pose.Landmark, toleranceDegrees float64) Result {
	a := geom.Angle(shoulder, hip, ankle)
	return Result{Rule: RuleBodyLine, Passed: a >= 180-toleranceDegrees, Measured: a}
}

// BackStraightness is the same construction over shoulder-hip-knee,
// catching a rounded or folded back during squats and lunges.
func BackStraightness(shoulder, hip, knee pose.Landmark, toleranceDegrees float64) Result {
	a := geom.Angle(shoulder, hip, knee)
	return Result{Rule: RuleBackStraightness, Passed: a >= 180-toleranceDegrees, Measured: a}
}

// pointLineDistance returns the perpendicular distance from p to the
// line through a and b in the image plane. If a and b coincide the
// line is undefined and the distance to the single point is used.
func pointLineDistance(p, a, b pose.Landmark) float64 {
	abx, aby := b.X-a.X, b.Y-a.Y
	norm := math.Hypot(abx, aby)
	if norm == 0 {
		return geom.Distance(p, a)
	}
	// Cross product magnitude / base length.
	return math.Abs(abx*(a.Y-p.Y)-(a.X-p.X)*aby) / norm
}
