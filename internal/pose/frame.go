package pose

import (
	"encoding/json"
	"fmt"
	"time"
)

// Landmark is one detected joint position in normalized image
// coordinates. Visibility is the detector's confidence estimate in
// [0,1], not ground truth.
type Landmark struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Z          float64 `json:"z"`
	Visibility float64 `json:"visibility"`
}

// Frame is one full landmark set captured at one instant. Landmarks are
// indexed by LandmarkIndex and the arity is fixed at LandmarkCount; a
// frame is consumed once by the engine and never mutated.
type Frame struct {
	Timestamp time.Time
	Landmarks [LandmarkCount]Landmark
}

// At returns the landmark at the given index.
func (f *Frame) At(i LandmarkIndex) Landmark {
	return f.Landmarks[i]
}

// frameWire is the detector JSON shape: a millisecond timestamp plus a
// landmark array that must contain exactly LandmarkCount entries.
type frameWire struct {
	TimestampMs int64      `json:"timestamp_ms"`
	Landmarks   []Landmark `json:"landmarks"`
}

// UnmarshalJSON parses the detector wire format, rejecting frames whose
// landmark array is not exactly LandmarkCount long. This closes the
// loose-array/undefined-index bug class at the boundary.
func (f *Frame) UnmarshalJSON(data []byte) error {
	var w frameWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if len(w.Landmarks) != LandmarkCount {
		return fmt.Errorf("frame has %d landmarks, want %d", len(w.Landmarks), LandmarkCount)
	}
	f.Timestamp = time.UnixMilli(w.TimestampMs)
	copy(f.Landmarks[:], w.Landmarks)
	return nil
}

// MarshalJSON emits the detector wire format.
func (f Frame) MarshalJSON() ([]byte, error) {
	return json.Marshal(frameWire{
		TimestampMs: f.Timestamp.UnixMilli(),
		Landmarks:   f.Landmarks[:],
	})
}
