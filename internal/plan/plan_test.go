package plan

import (
	"errors"
	"testing"
)

func TestNewRejectsEmpty(t *testing.T) {
	if _, err := New(nil); !errors.Is(err, ErrEmptyPlan) {
		t.Fatalf("expected ErrEmptyPlan, got %v", err)
	}
}

func TestNewRejectsUnknownStep(t *testing.T) {
	if _, err := New([]Step{{Type: "publish_newsletter"}}); err == nil {
		t.Fatalf("expected error for unknown step type")
	}
}

func TestNewRejectsDuplicateStep(t *testing.T) {
	steps := []Step{{Type: StepTranscribe}, {Type: StepTranscribe}}
	if _, err := New(steps); !errors.Is(err, ErrDuplicateStep) {
		t.Fatalf("expected ErrDuplicateStep, got %v", err)
	}
}

func TestDefaultCoversFullSequence(t *testing.T) {
	p := Default()
	want := []StepType{
		StepDownload, StepExtractAudio, StepTranscribe,
		StepWriteStory, StepGenerateSpeech, StepUpload,
	}
	steps := p.Steps()
	if len(steps) != len(want) {
		t.Fatalf("expected %d steps, got %d", len(want), len(steps))
	}
	for i, s := range steps {
		if s.Type != want[i] {
			t.Fatalf("step %d: expected %s, got %s", i, want[i], s.Type)
		}
	}
}

func TestTextOnlySkipsMediaSteps(t *testing.T) {
	p := TextOnly()
	if p.Has(StepDownload) || p.Has(StepTranscribe) {
		t.Fatalf("text-only plan must not contain media steps")
	}
	if !p.Has(StepWriteStory) || !p.Has(StepGenerateSpeech) {
		t.Fatalf("text-only plan must write and voice the story")
	}
}

func TestParamLookup(t *testing.T) {
	p, err := New([]Step{{Type: StepDownload, Params: map[string]string{"url": "https://example.com/v"}}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v, ok := p.Param(StepDownload, "url"); !ok || v != "https://example.com/v" {
		t.Fatalf("expected url param, got %q ok=%v", v, ok)
	}
	if _, ok := p.Param(StepDownload, "missing"); ok {
		t.Fatalf("missing key must report !ok")
	}
	if _, ok := p.Param(StepUpload, "url"); ok {
		t.Fatalf("missing step must report !ok")
	}
}

func TestStepsReturnsCopy(t *testing.T) {
	p := Default()
	steps := p.Steps()
	steps[0].Type = "mutated"
	if p.Steps()[0].Type != StepDownload {
		t.Fatalf("Steps must return a defensive copy")
	}
}
