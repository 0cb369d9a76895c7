// Package pipeline implements the review-generation pipeline: a fixed,
// linear sequence of stages sharing one mutable State, executed as an agent
// under the orchestrator. Stage failures are contained locally and recorded
// as degraded outcomes; the pipeline itself never hard-fails mid-sequence.
package pipeline

import (
	"github.com/athenus/review-api/internal/search"
)

// OutcomeStatus tags a stage result as clean or degraded.
type OutcomeStatus string

// Possible outcome statuses
const (
	OutcomeOK       OutcomeStatus = "ok"
	OutcomeDegraded OutcomeStatus = "degraded"
)

// Outcome is the structured per-stage result marker threaded through the
// shared state. Degraded means the stage failed internally and a fallback
// value was installed; downstream stages and callers can distinguish clean
// success from fallback deterministically instead of parsing ad hoc
// error-marker strings.
type Outcome struct {
	Status OutcomeStatus `json:"status"`
	Cause  string        `json:"cause,omitempty"`
}

// OK returns a clean outcome.
func OK() Outcome {
	return Outcome{Status: OutcomeOK}
}

// Degraded returns a degraded outcome carrying the failure cause.
func Degraded(err error) Outcome {
	return Outcome{Status: OutcomeDegraded, Cause: err.Error()}
}

// Strategy is the search plan derived from the topic.
type Strategy struct {
	Queries           []string `json:"queries"`
	InclusionCriteria []string `json:"inclusion_criteria,omitempty"`
}

// OutlineSection is one planned section of the review.
type OutlineSection struct {
	Heading string `json:"heading"`
	Focus   string `json:"focus,omitempty"`
}

// Outline is the planned structure of the review document.
type Outline struct {
	Title    string           `json:"title"`
	Sections []OutlineSection `json:"sections"`
}

// Section is one written section of the review.
type Section struct {
	Heading string `json:"heading"`
	Content string `json:"content"`
}

// State is the single mutable record threaded by reference through every
// stage of one pipeline execution. Each stage reads any prior field and
// writes only its own designated field(s); the state is confined to the one
// goroutine running the pipeline and needs no synchronization.
type State struct {
	Topic     string
	MaxPapers int

	Strategy        *Strategy
	Papers          []search.Paper
	ValidatedPapers []search.Paper
	Analysis        string
	Outline         *Outline
	Sections        []Section
	Review          string
	Document        string

	// Outcomes records the per-stage result markers, keyed by stage name.
	Outcomes map[string]Outcome
}

// NewState creates the shared state for one execution.
func NewState(topic string, maxPapers int) *State {
	return &State{
		Topic:     topic,
		MaxPapers: maxPapers,
		Outcomes:  make(map[string]Outcome),
	}
}

// DegradedStages returns the names of all stages that fell back.
func (s *State) DegradedStages() []string {
	var names []string
	for name, outcome := range s.Outcomes {
		if outcome.Status == OutcomeDegraded {
			names = append(names, name)
		}
	}
	return names
}
