// Package feedback turns rule outcomes into advisory events for the
// voice/UI sink. All phrasing is fixed and pre-approved: messages are
// reference information about observed form, never diagnostic or
// medical language.
package feedback

// Outcome classifies what a message reports.
type Outcome string

const (
	OutcomeFail Outcome = "fail"
	OutcomePass Outcome = "pass"
)

// Message is one catalog entry. Text is the approved phrasing; it is
// rendered verbatim by the sink.
type Message struct {
	Code    string  `json:"code"`
	Outcome Outcome `json:"outcome"`
	Text    string  `json:"text"`
}

// CatalogVersion identifies the message set; bump when wording changes
// so stored events can be traced to the phrasing that produced them.
const CatalogVersion = "2025.2"

// catalog is the immutable message table, keyed by message code. Codes
// are "<exercise>.<observation>" and referenced from the exercise
// profiles. Loaded once; never mutated at runtime.
var catalog = map[string]Message{
	// Squat
	"squat.knee_over_toe": {Code: "squat.knee_over_toe", Outcome: OutcomeFail,
		Text: "Reference: knees appear to travel past the toes. Many lifters aim to keep shins more vertical."},
	"squat.back_rounding": {Code: "squat.back_rounding", Outcome: OutcomeFail,
		Text: "Reference: the back angle looks rounded. A neutral spine position is a common goal."},
	"squat.uneven_knees": {Code: "squat.uneven_knees", Outcome: OutcomeFail,
		Text: "Reference: knee heights look uneven. Even left/right loading is a common cue."},
	"squat.good_form": {Code: "squat.good_form", Outcome: OutcomePass,
		Text: "Reference: squat form looks consistent this rep."},

	// Push-up
	"pushup.hips_sagging": {Code: "pushup.hips_sagging", Outcome: OutcomeFail,
		Text: "Reference: the hip line looks low. A straight shoulder-to-ankle line is a common cue."},
	"pushup.uneven_elbows": {Code: "pushup.uneven_elbows", Outcome: OutcomeFail,
		Text: "Reference: elbow heights look uneven between sides."},
	"pushup.good_form": {Code: "pushup.good_form", Outcome: OutcomePass,
		Text: "Reference: push-up form looks consistent this rep."},

	// Lunge
	"lunge.knee_over_toe": {Code: "lunge.knee_over_toe", Outcome: OutcomeFail,
		Text: "Reference: the front knee appears to travel past the toes."},
	"lunge.torso_lean": {Code: "lunge.torso_lean", Outcome: OutcomeFail,
		Text: "Reference: the torso looks tilted forward. An upright torso is a common cue."},
	"lunge.shallow_depth": {Code: "lunge.shallow_depth", Outcome: OutcomeFail,
		Text: "Reference: the front knee angle at the bottom looks outside the typical range. A front thigh near parallel is a common cue."},
	"lunge.good_form": {Code: "lunge.good_form", Outcome: OutcomePass,
		Text: "Reference: lunge form looks consistent this rep."},

	// Bicep curl
	"bicep_curl.elbow_swinging": {Code: "bicep_curl.elbow_swinging", Outcome: OutcomeFail,
		Text: "Reference: the elbow appears to drift from the torso. A fixed elbow position is a common cue."},
	"bicep_curl.uneven_arms": {Code: "bicep_curl.uneven_arms", Outcome: OutcomeFail,
		Text: "Reference: wrist heights look uneven between arms."},
	"bicep_curl.good_form": {Code: "bicep_curl.good_form", Outcome: OutcomePass,
		Text: "Reference: curl form looks consistent this rep."},

	// Shoulder press
	"shoulder_press.back_arching": {Code: "shoulder_press.back_arching", Outcome: OutcomeFail,
		Text: "Reference: the lower back angle looks arched. A braced, vertical torso is a common cue."},
	"shoulder_press.uneven_press": {Code: "shoulder_press.uneven_press", Outcome: OutcomeFail,
		Text: "Reference: wrist heights look uneven between sides."},
	"shoulder_press.good_form": {Code: "shoulder_press.good_form", Outcome: OutcomePass,
		Text: "Reference: press form looks consistent this rep."},
}

// Lookup returns the catalog entry for a message code.
func Lookup(code string) (Message, bool) {
	m, ok := catalog[code]
	return m, ok
}
