package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/iliyamo/it-helpdesk/internal/model"
)

// Policy holds the tunable business tables: SLA target hours per ticket
// priority and the checklist items a technician must confirm when an
// equipment item comes back.
type Policy struct {
	SLAHours        map[string]int `yaml:"sla_hours"`
	ReturnChecklist []string       `yaml:"return_checklist"`
}

// DefaultPolicy returns the built-in tables.
func DefaultPolicy() Policy {
	return Policy{
		SLAHours: map[string]int{
			model.PriorityCritical: 4,
			model.PriorityHigh:     24,
			model.PriorityMedium:   72,
			model.PriorityLow:      168,
		},
		ReturnChecklist: []string{
			"equipment_intact",
			"accessories_returned",
			"data_backed_up",
			"no_physical_damage",
			"powers_on",
		},
	}
}

// LoadPolicy overlays the YAML file at path on top of DefaultPolicy.  An
// empty path returns the defaults.  Priorities missing from the file keep
// their default hours.
func LoadPolicy(path string) (Policy, error) {
	p := DefaultPolicy()
	if path == "" {
		return p, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return p, err
	}
	defer f.Close()

	var file Policy
	if err := yaml.NewDecoder(f).Decode(&file); err != nil {
		return p, fmt.Errorf("decode policy %s: %w", path, err)
	}
	for prio, h := range file.SLAHours {
		p.SLAHours[prio] = h
	}
	if len(file.ReturnChecklist) > 0 {
		p.ReturnChecklist = file.ReturnChecklist
	}
	return p, p.Validate()
}

// Validate rejects unknown priorities and non-positive targets.
func (p Policy) Validate() error {
	for prio, h := range p.SLAHours {
		if !model.ValidPriority(prio) {
			return fmt.Errorf("sla_hours: unknown priority %q", prio)
		}
		if h <= 0 {
			return fmt.Errorf("sla_hours: %s must be positive, got %d", prio, h)
		}
	}
	if len(p.ReturnChecklist) == 0 {
		return fmt.Errorf("return_checklist must not be empty")
	}
	return nil
}

// SLATargets converts SLAHours into durations keyed by priority.
func (p Policy) SLATargets() map[string]time.Duration {
	out := make(map[string]time.Duration, len(p.SLAHours))
	for prio, h := range p.SLAHours {
		out[prio] = time.Duration(h) * time.Hour
	}
	return out
}
