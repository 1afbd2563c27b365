package feedback

import (
	"log/slog"
	"time"
)

// DefaultCooldown is the minimum gap between repeated emissions of the
// same message code within one session.
const DefaultCooldown = 4 * time.Second

// Event is what the external voice/UI sink receives.
type Event struct {
	MessageCode string    `json:"message_code"`
	ExerciseID  string    `json:"exercise_id"`
	Outcome     Outcome   `json:"outcome"`
	Text        string    `json:"text"`
	Timestamp   time.Time `json:"timestamp"`
}

// Sink delivers events to the outside world (voice synthesis, UI
// banner, test capture). Delivery is best effort.
type Sink interface {
	Deliver(Event) error
}

// Dispatcher applies the cooldown/dedup policy for one session and
// forwards surviving events to the sink. Sink failures are logged and
// swallowed: feedback must never interrupt frame processing.
type Dispatcher struct {
	exerciseID string
	sink       Sink
	cooldown   time.Duration
	log        *slog.Logger

	lastSent map[string]time.Time
}

// NewDispatcher creates a dispatcher for one session.
func NewDispatcher(exerciseID string, sink Sink, cooldown time.Duration, log *slog.Logger) *Dispatcher {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Dispatcher{
		exerciseID: exerciseID,
		sink:       sink,
		cooldown:   cooldown,
		log:        log,
		lastSent:   make(map[string]time.Time),
	}
}

// Dispatch emits the message for code at the given frame time, unless
// the same code fired within the cooldown window. Returns true when an
// event was sent to the sink (even if delivery then failed).
func (d *Dispatcher) Dispatch(code string, at time.Time) bool {
	msg, ok := Lookup(code)
	if !ok {
		d.log.Warn("feedback code not in catalog", "code", code)
		return false
	}

	if last, seen := d.lastSent[code]; seen && at.Sub(last) < d.cooldown {
		return false
	}
	d.lastSent[code] = at

	ev := Event{
		MessageCode: msg.Code,
		ExerciseID:  d.exerciseID,
		Outcome:     msg.Outcome,
		Text:        msg.Text,
		Timestamp:   at,
	}
	if err := d.sink.Deliver(ev); err != nil {
		d.log.Warn("feedback delivery failed", "code", code, "error", err)
	}
	return true
}
