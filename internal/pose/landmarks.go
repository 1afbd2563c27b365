package pose

// LandmarkIndex identifies one body joint in the fixed detector topology.
// Values follow the 33-point BlazePose layout emitted by the on-device
// detector, so a frame can be indexed without any name lookup.
type LandmarkIndex int

const (
	Nose LandmarkIndex = iota
	LeftEyeInner
	LeftEye
	LeftEyeOuter
	RightEyeInner
	RightEye
	RightEyeOuter
	LeftEar
	RightEar
	MouthLeft
	MouthRight
	LeftShoulder
	RightShoulder
	LeftElbow
	RightElbow
	LeftWrist
	RightWrist
	LeftPinky
	RightPinky
	LeftIndex
	RightIndex
	LeftThumb
	RightThumb
	LeftHip
	RightHip
	LeftKnee
	RightKnee
	LeftAnkle
	RightAnkle
	LeftHeel
	RightHeel
	LeftFootIndex
	RightFootIndex

	// LandmarkCount is the fixed frame arity.
	LandmarkCount = 33
)

var landmarkNames = [LandmarkCount]string{
	"nose", "left_eye_inner", "left_eye", "left_eye_outer",
	"right_eye_inner", "right_eye", "right_eye_outer",
	"left_ear", "right_ear", "mouth_left", "mouth_right",
	"left_shoulder", "right_shoulder", "left_elbow", "right_elbow",
	"left_wrist", "right_wrist", "left_pinky", "right_pinky",
	"left_index", "right_index", "left_thumb", "right_thumb",
	"left_hip", "right_hip", "left_knee", "right_knee",
	"left_ankle", "right_ankle", "left_heel", "right_heel",
	"left_foot_index", "right_foot_index",
}

// String returns the snake_case joint name, or "unknown" out of range.
func (i LandmarkIndex) String() string {
	if i < 0 || i >= LandmarkCount {
		return "unknown"
	}
	return landmarkNames[i]
}
