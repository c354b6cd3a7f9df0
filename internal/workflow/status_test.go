// File path: internal/workflow/status_test.go
package workflow

import (
	"testing"

	"github.com/coursekit/coursekit/internal/course"
	"github.com/coursekit/coursekit/internal/session"
)

func TestProjectEarlyStages(t *testing.T) {
	cases := []struct {
		stage   session.Stage
		percent int
		current string
	}{
		{session.StageCreated, 0, "upload"},
		{session.StageUploaded, 15, "extraction"},
		{session.StageExtracted, 30, "planning"},
		{session.StagePlanning, 45, "approval"},
		{session.StagePlanApproved, 55, "generation"},
	}
	for _, tc := range cases {
		status := Project(&session.Session{ID: "s", Stage: tc.stage})
		if status.PercentComplete != tc.percent {
			t.Fatalf("%s: percent %d, want %d", tc.stage, status.PercentComplete, tc.percent)
		}
		if status.CurrentStep != tc.current {
			t.Fatalf("%s: current step %q, want %q", tc.stage, status.CurrentStep, tc.current)
		}
	}
}

func TestProjectGeneratingTracksUnits(t *testing.T) {
	sess := &session.Session{
		ID:    "s",
		Stage: session.StageGenerating,
		Generated: map[int]session.ContentBundle{
			1: {
				course.MaterialLectureNotes: session.UnitResult{Status: session.UnitCompleted},
				course.MaterialLabMaterials: session.UnitResult{Status: session.UnitRunning},
			},
			2: {
				course.MaterialLectureNotes: session.UnitResult{Status: session.UnitFailed},
				course.MaterialLabMaterials: session.UnitResult{Status: session.UnitPending},
			},
		},
	}
	status := Project(sess)
	if status.PercentComplete != 25 {
		t.Fatalf("1 completed of 4 should be 25, got %d", status.PercentComplete)
	}
	if status.CompletedUnits != 1 || status.FailedUnits != 1 || status.TotalUnits != 4 {
		t.Fatalf("unexpected unit counts: %+v", status)
	}
}

func TestProjectFailedUnitsAreNotProgress(t *testing.T) {
	sess := &session.Session{
		ID:    "s",
		Stage: session.StageGenerating,
		Generated: map[int]session.ContentBundle{
			1: {
				course.MaterialLectureNotes: session.UnitResult{Status: session.UnitCompleted},
				course.MaterialLabMaterials: session.UnitResult{Status: session.UnitFailed},
				course.MaterialAssessments:  session.UnitResult{Status: session.UnitFailedTimeout},
				course.MaterialTranscripts:  session.UnitResult{Status: session.UnitCompleted},
			},
		},
	}
	status := Project(sess)
	if status.PercentComplete != 50 {
		t.Fatalf("2 completed of 4 should be 50 regardless of failures, got %d", status.PercentComplete)
	}
}

func TestProjectNeverHundredWhileGenerating(t *testing.T) {
	sess := &session.Session{
		ID:    "s",
		Stage: session.StageGenerating,
		Generated: map[int]session.ContentBundle{
			1: {course.MaterialLectureNotes: session.UnitResult{Status: session.UnitCompleted}},
		},
	}
	status := Project(sess)
	if status.PercentComplete >= 100 {
		t.Fatalf("percent must stay below 100 while generating, got %d", status.PercentComplete)
	}
}

func TestProjectGeneratedAndExported(t *testing.T) {
	for _, stage := range []session.Stage{session.StageGenerated, session.StageExported} {
		sess := &session.Session{
			ID:    "s",
			Stage: stage,
			Generated: map[int]session.ContentBundle{
				1: {course.MaterialLectureNotes: session.UnitResult{Status: session.UnitCompleted}},
			},
		}
		if status := Project(sess); status.PercentComplete != 100 {
			t.Fatalf("%s should report 100, got %d", stage, status.PercentComplete)
		}
	}
}

func TestProjectRegenerationDropsPercent(t *testing.T) {
	sess := &session.Session{
		ID:    "s",
		Stage: session.StageGenerated,
		Generated: map[int]session.ContentBundle{
			1: {
				course.MaterialLectureNotes: session.UnitResult{Status: session.UnitCompleted},
				course.MaterialLabMaterials: session.UnitResult{Status: session.UnitPending},
			},
		},
	}
	if status := Project(sess); status.PercentComplete != 50 {
		t.Fatalf("regeneration in flight should report 50, got %d", status.PercentComplete)
	}
}

func TestProjectFailed(t *testing.T) {
	status := Project(&session.Session{ID: "s", Stage: session.StageFailed, Error: "all generation units failed"})
	if status.PercentComplete != 0 || status.Error == "" || status.CurrentStep != "" {
		t.Fatalf("unexpected failed projection: %+v", status)
	}
}
