// File path: internal/planner/planner_test.go
package planner

import (
	"context"
	"testing"

	"github.com/coursekit/coursekit/internal/course"
	"github.com/coursekit/coursekit/internal/llm"
)

type stubProvider struct {
	reply string
	err   error
}

func (s *stubProvider) Chat(ctx context.Context, messages []llm.Message) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.reply, nil
}

func (s *stubProvider) Name() string { return "stub" }

func sampleModule() *course.ModuleData {
	return &course.ModuleData{
		Title:  "Operating Systems",
		Topics: []string{"Processes", "Memory", "File Systems"},
		LearningOutcomes: []course.LearningOutcome{
			{ID: "LO1", Description: "Explain process scheduling"},
		},
		Assessments: []course.Assessment{{Name: "Coursework", Weight: 100}},
		Textbooks:   []string{"Tanenbaum, Modern Operating Systems"},
	}
}

func TestGeneratePlanFromModel(t *testing.T) {
	provider := &stubProvider{reply: `[
                {"week_number": 4, "title": "Scheduling", "lecture_topics": ["RR", "MLFQ"]},
                {"week_number": 9, "title": "Paging"}
        ]`}
	plan, err := New(provider).GeneratePlan(context.Background(), sampleModule(), 2)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(plan) != 2 {
		t.Fatalf("expected 2 weeks, got %d", len(plan))
	}
	if plan[0].WeekNumber != 1 || plan[1].WeekNumber != 2 {
		t.Fatalf("plan not renumbered: %+v", plan)
	}
	if plan[0].Title != "Scheduling" {
		t.Fatalf("order not preserved: %+v", plan)
	}
}

func TestGeneratePlanFallback(t *testing.T) {
	provider := &stubProvider{err: llm.ErrUnavailable}
	plan, err := New(provider).GeneratePlan(context.Background(), sampleModule(), 12)
	if err != nil {
		t.Fatalf("fallback: %v", err)
	}
	if len(plan) != 12 {
		t.Fatalf("expected 12 weeks, got %d", len(plan))
	}
	if err := course.ValidatePlan(plan); err != nil {
		t.Fatalf("fallback plan invalid: %v", err)
	}
	last := plan[len(plan)-1]
	if len(last.Deliverables) == 0 {
		t.Fatalf("revision week should list assessments: %+v", last)
	}
}

func TestGeneratePlanRejectsGarbage(t *testing.T) {
	provider := &stubProvider{reply: "sorry, I cannot help with that"}
	if _, err := New(provider).GeneratePlan(context.Background(), sampleModule(), 4); err == nil {
		t.Fatal("expected error for non-JSON reply")
	}
}

func TestGeneratePlanNilModule(t *testing.T) {
	if _, err := New(&stubProvider{}).GeneratePlan(context.Background(), nil, 4); err == nil {
		t.Fatal("expected error for nil module data")
	}
}
