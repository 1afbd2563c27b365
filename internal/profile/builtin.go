package profile

import (
	"github.com/claude/repcoach/internal/pose"
	"github.com/claude/repcoach/internal/rules"
)

// Default rule tolerances. All thresholds here are starting points;
// deployments tune them via the profiles override file.
const (
	defaultSymmetryTol  = 0.05
	defaultKneeToeTol   = 0.08
	defaultStabilityTol = 0.06
	defaultBodyLineTol  = 15.0
	defaultBackLineTol  = 25.0
	defaultPassCutoff   = 0.5
)

// builtinProfiles is the shipped exercise table.
func builtinProfiles() []*Profile {
	return []*Profile{
		{
			ID:   "squat",
			Name: "Bodyweight Squat",
			Required: []pose.LandmarkIndex{
				pose.LeftShoulder, pose.LeftHip, pose.LeftKnee, pose.LeftAnkle,
				pose.LeftFootIndex, pose.RightKnee,
			},
			PrimaryAngle: AngleDef{A: pose.LeftHip, Vertex: pose.LeftKnee, C: pose.LeftAnkle},
			Thresholds:   Thresholds{TopAngle: 165, BottomAngle: 95, Hysteresis: 10},
			GoodFormCode: "squat.good_form",
			Rules: []RuleSpec{
				{
					ID: rules.RuleKneeOverToe, Kind: KindOffset,
					Landmarks:   []pose.LandmarkIndex{pose.LeftKnee, pose.LeftFootIndex, pose.LeftHip},
					Tolerance:   defaultKneeToeTol,
					Phases:      []Phase{PhaseDescending, PhaseBottom},
					MessageCode: "squat.knee_over_toe",
					PassCutoff:  defaultPassCutoff,
				},
				{
					ID: rules.RuleBackStraightness, Kind: KindBackLine,
					Landmarks:   []pose.LandmarkIndex{pose.LeftShoulder, pose.LeftHip, pose.LeftKnee},
					Tolerance:   defaultBackLineTol + 30, // deep squats legitimately hinge the hips
					MessageCode: "squat.back_rounding",
					PassCutoff:  defaultPassCutoff,
				},
				{
					ID: rules.RuleSymmetry, Kind: KindSymmetry,
					Landmarks:   []pose.LandmarkIndex{pose.LeftKnee, pose.RightKnee},
					Tolerance:   defaultSymmetryTol,
					MessageCode: "squat.uneven_knees",
					PassCutoff:  defaultPassCutoff,
				},
			},
		},
		{
			ID:   "pushup",
			Name: "Push-Up",
			Required: []pose.LandmarkIndex{
				pose.LeftShoulder, pose.LeftElbow, pose.LeftWrist,
				pose.LeftHip, pose.LeftAnkle, pose.RightElbow,
			},
			PrimaryAngle: AngleDef{A: pose.LeftShoulder, Vertex: pose.LeftElbow, C: pose.LeftWrist},
			Thresholds:   Thresholds{TopAngle: 160, BottomAngle: 95, Hysteresis: 10},
			GoodFormCode: "pushup.good_form",
			Rules: []RuleSpec{
				{
					ID: rules.RuleBodyLine, Kind: KindBodyLine,
					Landmarks:   []pose.LandmarkIndex{pose.LeftShoulder, pose.LeftHip, pose.LeftAnkle},
					Tolerance:   defaultBodyLineTol,
					MessageCode: "pushup.hips_sagging",
					PassCutoff:  defaultPassCutoff,
				},
				{
					ID: rules.RuleSymmetry, Kind: KindSymmetry,
					Landmarks:   []pose.LandmarkIndex{pose.LeftElbow, pose.RightElbow},
					Tolerance:   defaultSymmetryTol,
					MessageCode: "pushup.uneven_elbows",
					PassCutoff:  defaultPassCutoff,
				},
			},
		},
		{
			ID:   "lunge",
			Name: "Forward Lunge",
			Required: []pose.LandmarkIndex{
				pose.LeftShoulder, pose.LeftHip, pose.LeftKnee, pose.LeftAnkle,
				pose.LeftFootIndex,
			},
			PrimaryAngle: AngleDef{A: pose.LeftHip, Vertex: pose.LeftKnee, C: pose.LeftAnkle},
			Thresholds:   Thresholds{TopAngle: 165, BottomAngle: 100, Hysteresis: 10},
			GoodFormCode: "lunge.good_form",
			Rules: []RuleSpec{
				{
					ID: rules.RuleKneeOverToe, Kind: KindOffset,
					Landmarks:   []pose.LandmarkIndex{pose.LeftKnee, pose.LeftFootIndex, pose.LeftHip},
					Tolerance:   defaultKneeToeTol,
					Phases:      []Phase{PhaseDescending, PhaseBottom},
					MessageCode: "lunge.knee_over_toe",
					PassCutoff:  defaultPassCutoff,
				},
				{
					ID: rules.RuleBackStraightness, Kind: KindBackLine,
					Landmarks:   []pose.LandmarkIndex{pose.LeftShoulder, pose.LeftHip, pose.LeftKnee},
					Tolerance:   defaultBackLineTol,
					MessageCode: "lunge.torso_lean",
					PassCutoff:  defaultPassCutoff,
				},
				{
					ID: rules.RuleDepth, Kind: KindAngleRange,
					Landmarks:   []pose.LandmarkIndex{pose.LeftHip, pose.LeftKnee, pose.LeftAnkle},
					MinAngle:    70,
					MaxAngle:    115,
					Phases:      []Phase{PhaseBottom},
					MessageCode: "lunge.shallow_depth",
					PassCutoff:  defaultPassCutoff,
				},
			},
		},
		{
			ID:   "bicep_curl",
			Name: "Bicep Curl",
			Required: []pose.LandmarkIndex{
				pose.LeftShoulder, pose.LeftElbow, pose.LeftWrist, pose.LeftHip,
				pose.RightWrist,
			},
			PrimaryAngle: AngleDef{A: pose.LeftShoulder, Vertex: pose.LeftElbow, C: pose.LeftWrist},
			Thresholds:   Thresholds{TopAngle: 155, BottomAngle: 60, Hysteresis: 8},
			GoodFormCode: "bicep_curl.good_form",
			Rules: []RuleSpec{
				{
					ID: rules.RuleElbowFixed, Kind: KindStability,
					Landmarks:   []pose.LandmarkIndex{pose.LeftElbow, pose.LeftShoulder, pose.LeftHip},
					Tolerance:   defaultStabilityTol,
					MessageCode: "bicep_curl.elbow_swinging",
					PassCutoff:  defaultPassCutoff,
				},
				{
					ID: rules.RuleSymmetry, Kind: KindSymmetry,
					Landmarks:   []pose.LandmarkIndex{pose.LeftWrist, pose.RightWrist},
					Tolerance:   defaultSymmetryTol * 2, // alternating grips drift more than lower-body pairs
					MessageCode: "bicep_curl.uneven_arms",
					PassCutoff:  defaultPassCutoff,
				},
			},
		},
		{
			ID:   "shoulder_press",
			Name: "Shoulder Press",
			Required: []pose.LandmarkIndex{
				pose.LeftShoulder, pose.LeftElbow, pose.LeftWrist, pose.LeftHip,
				pose.LeftKnee, pose.RightWrist,
			},
			PrimaryAngle: AngleDef{A: pose.LeftShoulder, Vertex: pose.LeftElbow, C: pose.LeftWrist},
			Thresholds:   Thresholds{TopAngle: 160, BottomAngle: 90, Hysteresis: 10},
			GoodFormCode: "shoulder_press.good_form",
			Rules: []RuleSpec{
				{
					ID: rules.RuleBackStraightness, Kind: KindBackLine,
					Landmarks:   []pose.LandmarkIndex{pose.LeftShoulder, pose.LeftHip, pose.LeftKnee},
					Tolerance:   defaultBackLineTol - 10, // standing press should stay near vertical
					MessageCode: "shoulder_press.back_arching",
					PassCutoff:  defaultPassCutoff,
				},
				{
					ID: rules.RuleSymmetry, Kind: KindSymmetry,
					Landmarks:   []pose.LandmarkIndex{pose.LeftWrist, pose.RightWrist},
					Tolerance:   defaultSymmetryTol,
					MessageCode: "shoulder_press.uneven_press",
					PassCutoff:  defaultPassCutoff,
				},
			},
		},
	}
}
