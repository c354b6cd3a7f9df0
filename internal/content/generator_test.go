// File path: internal/content/generator_test.go
package content

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/coursekit/coursekit/internal/artifact"
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

func testModule() *course.ModuleData {
	return &course.ModuleData{
		Title: "Compilers",
		LearningOutcomes: []course.LearningOutcome{
			{ID: "LO1", Description: "Build a lexer"},
		},
		Assessments: []course.Assessment{{Name: "Project", Weight: 100}},
		Topics:      []string{"Lexing", "Parsing"},
	}
}

func testWeek() *course.WeekPlan {
	return &course.WeekPlan{
		WeekNumber:    2,
		Title:         "Parsing",
		LectureTopics: []string{"LL(1)", "Recursive descent"},
		LabActivities: []string{"Implement a parser"},
	}
}

func newGenerator(t *testing.T, provider llm.Provider) *Generator {
	t.Helper()
	store, err := artifact.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("artifact store: %v", err)
	}
	return New(provider, store)
}

func TestGenerateWeeklyMaterial(t *testing.T) {
	gen := newGenerator(t, &stubProvider{reply: "Parsing turns tokens into trees."})
	result, err := gen.Generate(context.Background(), "sess-1", testModule(), testWeek(), course.MaterialLectureNotes)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !strings.Contains(result.Title, "Week 2") || !strings.Contains(result.Title, "Parsing") {
		t.Fatalf("unexpected title %q", result.Title)
	}
	data, err := os.ReadFile(result.Info.Path)
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	if !strings.Contains(string(data), "Parsing turns tokens into trees.") {
		t.Fatalf("model text missing from artifact: %q", data)
	}
}

func TestGenerateOverviewMaterial(t *testing.T) {
	gen := newGenerator(t, &stubProvider{reply: "Overview body."})
	result, err := gen.Generate(context.Background(), "sess-1", testModule(), nil, course.MaterialModuleOverview)
	if err != nil {
		t.Fatalf("generate overview: %v", err)
	}
	if !strings.Contains(result.Title, "Module Overview") {
		t.Fatalf("unexpected overview title %q", result.Title)
	}
}

func TestGenerateFallback(t *testing.T) {
	gen := newGenerator(t, &stubProvider{err: llm.ErrUnavailable})
	result, err := gen.Generate(context.Background(), "sess-1", testModule(), testWeek(), course.MaterialLabMaterials)
	if err != nil {
		t.Fatalf("fallback generate: %v", err)
	}
	data, err := os.ReadFile(result.Info.Path)
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	if !strings.Contains(string(data), "Implement a parser") {
		t.Fatalf("fallback should render plan data: %q", data)
	}
}

func TestGenerateUnknownMaterial(t *testing.T) {
	gen := newGenerator(t, &stubProvider{reply: "x"})
	if _, err := gen.Generate(context.Background(), "sess-1", testModule(), testWeek(), "interpretive_dance"); err == nil {
		t.Fatal("expected error for unknown material type")
	}
}
