package profile

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Registry is the read-only exercise id -> profile lookup, populated
// once at process start.
type Registry struct {
	profiles map[string]*Profile
}

// NewRegistry builds a registry from the built-in exercise table.
func NewRegistry() (*Registry, error) {
	r := &Registry{profiles: make(map[string]*Profile)}
	for _, p := range builtinProfiles() {
		if err := p.validate(); err != nil {
			return nil, fmt.Errorf("builtin profile: %w", err)
		}
		r.profiles[p.ID] = p
	}
	return r, nil
}

// Get returns the profile for an exercise id, or ErrUnknownExercise.
func (r *Registry) Get(id string) (*Profile, error) {
	p, ok := r.profiles[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownExercise, id)
	}
	return p, nil
}

// List returns all profiles sorted by id.
func (r *Registry) List() []*Profile {
	out := make([]*Profile, 0, len(r.profiles))
	for _, p := range r.profiles {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// overrideFile is the YAML shape for threshold/tolerance tuning.
// Only the numeric knobs are overridable; landmark wiring and rule
// sets stay in code.
type overrideFile struct {
	Exercises map[string]exerciseOverride `yaml:"exercises"`
}

type exerciseOverride struct {
	Thresholds *Thresholds        `yaml:"thresholds"`
	Rules      map[string]float64 `yaml:"rule_tolerances"`
	Cutoffs    map[string]float64 `yaml:"rule_pass_cutoffs"`
}

// ApplyOverrides loads a YAML tuning file and applies it over the
// built-in table. Unknown exercise ids or rule ids in the file are
// rejected so a typo cannot silently leave a default in place.
func (r *Registry) ApplyOverrides(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading profiles file: %w", err)
	}

	var f overrideFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parsing profiles file: %w", err)
	}

	for id, ov := range f.Exercises {
		p, ok := r.profiles[id]
		if !ok {
			return fmt.Errorf("profiles file: %w: %q", ErrUnknownExercise, id)
		}
		if ov.Thresholds != nil {
			p.Thresholds = *ov.Thresholds
		}
		for ruleID, tol := range ov.Rules {
			if !setRuleField(p, ruleID, func(s *RuleSpec) { s.Tolerance = tol }) {
				return fmt.Errorf("profiles file: exercise %q has no rule %q", id, ruleID)
			}
		}
		for ruleID, cutoff := range ov.Cutoffs {
			if !setRuleField(p, ruleID, func(s *RuleSpec) { s.PassCutoff = cutoff }) {
				return fmt.Errorf("profiles file: exercise %q has no rule %q", id, ruleID)
			}
		}
		if err := p.validate(); err != nil {
			return fmt.Errorf("profiles file: %w", err)
		}
	}
	return nil
}

func setRuleField(p *Profile, ruleID string, set func(*RuleSpec)) bool {
	for i := range p.Rules {
		if string(p.Rules[i].ID) == ruleID {
			set(&p.Rules[i])
			return true
		}
	}
	return false
}
