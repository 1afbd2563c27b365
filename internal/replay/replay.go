package replay

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/claude/repcoach/internal/engine"
	"github.com/claude/repcoach/internal/feedback"
	"github.com/claude/repcoach/internal/profile"
	"github.com/google/uuid"
)

// Stats tracks replay progress.
type Stats struct {
	FilesTotal    int
	FilesReplayed int
	FilesSkipped  int
	FilesErrored  int

	FramesRead    int
	RepsEvaluated int
}

// Options tunes the offline evaluation. Zero values select the same
// defaults the live server uses.
type Options struct {
	VisibilityThreshold float64
	FeedbackCooldown    time.Duration
}

// Runner walks a directory of JSONL recordings, evaluates each through
// the engine, and POSTs the finished sessions to the RepCoach server.
type Runner struct {
	client   *Client
	state    *StateDB
	registry *profile.Registry
	dir      string
	dryRun   bool
	opts     Options
	log      *slog.Logger
	stats    Stats
}

// NewRunner creates a Runner over the given recordings directory.
func NewRunner(client *Client, state *StateDB, registry *profile.Registry, dir string, dryRun bool, opts Options, log *slog.Logger) *Runner {
	return &Runner{
		client:   client,
		state:    state,
		registry: registry,
		dir:      dir,
		dryRun:   dryRun,
		opts:     opts,
		log:      log,
	}
}

// collectorSink buffers every feedback event for the import payload.
type collectorSink struct {
	events []feedback.Event
}

func (c *collectorSink) Deliver(ev feedback.Event) error {
	c.events = append(c.events, ev)
	return nil
}

// Run executes the replay pipeline over every .jsonl file in the
// directory. Per-file failures are logged and counted; they do not
// abort the run. A send failure does: the server is unreachable and
// every remaining file would fail the same way.
func (r *Runner) Run() (*Stats, error) {
	files, err := filepath.Glob(filepath.Join(r.dir, "*.jsonl"))
	if err != nil {
		return &r.stats, fmt.Errorf("listing recordings: %w", err)
	}

	for _, f := range files {
		r.stats.FilesTotal++

		relPath, _ := filepath.Rel(r.dir, f)
		info, err := os.Stat(f)
		if err != nil {
			r.log.Warn("stat failed", "file", f, "error", err)
			r.stats.FilesErrored++
			continue
		}

		hash, err := HashFile(f)
		if err != nil {
			r.log.Warn("hash failed", "file", f, "error", err)
			r.stats.FilesErrored++
			continue
		}

		replayed, err := r.state.IsReplayed(relPath, info.Size(), hash)
		if err != nil {
			r.log.Warn("state check failed", "file", f, "error", err)
			r.stats.FilesErrored++
			continue
		}
		if replayed {
			r.stats.FilesSkipped++
			continue
		}

		payload, frames, err := r.evaluate(f)
		if err != nil {
			r.log.Warn("evaluation failed", "file", f, "error", err)
			r.stats.FilesErrored++
			continue
		}
		r.stats.FramesRead += frames
		r.stats.RepsEvaluated += payload.Result.RepCount

		if r.dryRun {
			r.log.Info("dry-run: would import",
				"file", relPath,
				"exercise", payload.Result.ExerciseID,
				"reps", payload.Result.RepCount,
				"average_score", payload.Result.AverageScore,
			)
			r.stats.FilesReplayed++
			continue
		}

		if err := r.client.SendSession(*payload); err != nil {
			return &r.stats, fmt.Errorf("sending %s: %w", relPath, err)
		}

		if err := r.state.MarkReplayed(relPath, info.Size(), hash); err != nil {
			r.log.Warn("failed to mark replayed", "file", relPath, "error", err)
		}
		r.stats.FilesReplayed++

		r.log.Info("replayed recording",
			"file", relPath,
			"exercise", payload.Result.ExerciseID,
			"frames", frames,
			"reps", payload.Result.RepCount,
		)
	}

	return &r.stats, nil
}

// evaluate runs one recording through a fresh engine session.
func (r *Runner) evaluate(path string) (*ImportPayload, int, error) {
	rec, err := ReadRecording(path)
	if err != nil {
		return nil, 0, err
	}

	p, err := r.registry.Get(rec.ExerciseID)
	if err != nil {
		return nil, 0, err
	}

	sink := &collectorSink{}
	dispatcher := feedback.NewDispatcher(p.ID, sink, r.opts.FeedbackCooldown, r.log)
	session := engine.NewSession(p, dispatcher, r.opts.VisibilityThreshold, r.log)

	for i := range rec.Frames {
		session.IngestFrame(&rec.Frames[i])
	}

	startedAt := rec.RecordedAt
	if startedAt.IsZero() && len(rec.Frames) > 0 {
		startedAt = rec.Frames[0].Timestamp
	}

	return &ImportPayload{
		SessionID: uuid.New(),
		StartedAt: startedAt,
		Result:    session.Finalize(),
		Feedback:  sink.events,
	}, len(rec.Frames), nil
}
