// Package replay runs recorded landmark streams through the evaluation
// engine offline and uploads the finished results to a RepCoach server.
// Recordings are JSONL: a header line naming the exercise, then one
// frame per line in the same wire format the live API accepts.
package replay

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/claude/repcoach/internal/pose"
)

// Header is the first line of a recording file.
type Header struct {
	ExerciseID string    `json:"exercise_id"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Recording is one parsed landmark recording.
type Recording struct {
	Header
	Frames []pose.Frame
}

// maxLineBytes bounds a single JSONL line. A 33-landmark frame is
// under 4 KB; anything near the cap is a corrupt file.
const maxLineBytes = 256 * 1024

// ReadRecording parses a JSONL recording file. Frames that fail to
// parse abort the read: a recording with holes would shift every
// phase transition after the gap.
func ReadRecording(path string) (*Recording, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening recording: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return nil, fmt.Errorf("reading header: %w", err)
		}
		return nil, fmt.Errorf("recording %s is empty", path)
	}

	rec := &Recording{}
	if err := json.Unmarshal(sc.Bytes(), &rec.Header); err != nil {
		return nil, fmt.Errorf("parsing header: %w", err)
	}
	if rec.ExerciseID == "" {
		return nil, fmt.Errorf("recording %s: header missing exercise_id", path)
	}

	line := 1
	for sc.Scan() {
		line++
		var frame pose.Frame
		if err := json.Unmarshal(sc.Bytes(), &frame); err != nil {
			return nil, fmt.Errorf("parsing frame at line %d: %w", line, err)
		}
		rec.Frames = append(rec.Frames, frame)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading recording: %w", err)
	}

	return rec, nil
}
