// Package plan models the ordered step list a job executes. Plans are
// validated once when built so the pipeline can trust every step it reads.
package plan

import (
	"errors"
	"fmt"
)

// StepType names one pipeline stage.
type StepType string

const (
	StepDownload       StepType = "download"
	StepExtractAudio   StepType = "extract_audio"
	StepTranscribe     StepType = "transcribe"
	StepWriteStory     StepType = "write_story"
	StepGenerateSpeech StepType = "generate_speech"
	StepUpload         StepType = "upload"
)

var knownSteps = map[StepType]bool{
	StepDownload:       true,
	StepExtractAudio:   true,
	StepTranscribe:     true,
	StepWriteStory:     true,
	StepGenerateSpeech: true,
	StepUpload:         true,
}

var (
	ErrEmptyPlan     = errors.New("plan: no steps")
	ErrDuplicateStep = errors.New("plan: duplicate step")
)

// Step is one stage with optional parameters.
type Step struct {
	Type   StepType          `json:"type" yaml:"type"`
	Params map[string]string `json:"params,omitempty" yaml:"params,omitempty"`
}

// Plan is an ordered, validated step list.
type Plan struct {
	steps []Step
}

// New validates the steps and returns a Plan. Unknown or repeated step types
// are rejected.
func New(steps []Step) (Plan, error) {
	if len(steps) == 0 {
		return Plan{}, ErrEmptyPlan
	}
	seen := map[StepType]bool{}
	for _, s := range steps {
		if !knownSteps[s.Type] {
			return Plan{}, fmt.Errorf("plan: unknown step type %q", s.Type)
		}
		if seen[s.Type] {
			return Plan{}, fmt.Errorf("%w: %s", ErrDuplicateStep, s.Type)
		}
		seen[s.Type] = true
	}
	copied := make([]Step, len(steps))
	copy(copied, steps)
	return Plan{steps: copied}, nil
}

// Default is the full processing sequence from source media to uploaded
// narration.
func Default() Plan {
	p, _ := New([]Step{
		{Type: StepDownload},
		{Type: StepExtractAudio},
		{Type: StepTranscribe},
		{Type: StepWriteStory},
		{Type: StepGenerateSpeech},
		{Type: StepUpload},
	})
	return p
}

// TextOnly covers jobs that start from an existing transcript.
func TextOnly() Plan {
	p, _ := New([]Step{
		{Type: StepWriteStory},
		{Type: StepGenerateSpeech},
	})
	return p
}

// Steps returns the ordered step list.
func (p Plan) Steps() []Step {
	out := make([]Step, len(p.steps))
	copy(out, p.steps)
	return out
}

// Has reports whether the plan contains the step type.
func (p Plan) Has(t StepType) bool {
	for _, s := range p.steps {
		if s.Type == t {
			return true
		}
	}
	return false
}

// Param returns a parameter of the named step, with ok reporting whether both
// the step and the key exist.
func (p Plan) Param(t StepType, key string) (string, bool) {
	for _, s := range p.steps {
		if s.Type == t {
			v, ok := s.Params[key]
			return v, ok
		}
	}
	return "", false
}

// Len reports the number of steps.
func (p Plan) Len() int { return len(p.steps) }
