// File path: internal/export/exporter_test.go
package export

import (
	"archive/zip"
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"

	"github.com/coursekit/coursekit/internal/artifact"
	"github.com/coursekit/coursekit/internal/course"
	"github.com/coursekit/coursekit/internal/session"
)

func buildSession(t *testing.T, store *artifact.Store) *session.Session {
	t.Helper()
	sess := &session.Session{
		ID:    "sess-1",
		Stage: session.StageGenerated,
		Module: &course.ModuleData{
			Title:            "Networks",
			LearningOutcomes: []course.LearningOutcome{{ID: "LO1", Description: "x"}},
			Assessments:      []course.Assessment{{Name: "Exam"}},
		},
		ApprovedWeeks: []course.WeekPlan{{WeekNumber: 1, Title: "Routing"}},
		Generated:     map[int]session.ContentBundle{},
	}
	notes, err := store.WriteMaterial(sess.ID, 1, course.MaterialLectureNotes, "# Notes\nBody")
	if err != nil {
		t.Fatalf("write notes: %v", err)
	}
	overview, err := store.WriteMaterial(sess.ID, 0, course.MaterialModuleOverview, "# Overview")
	if err != nil {
		t.Fatalf("write overview: %v", err)
	}
	sess.Generated[1] = session.ContentBundle{
		course.MaterialLectureNotes: session.UnitResult{
			Status:   session.UnitCompleted,
			Artifact: &session.ArtifactRef{Path: notes.Path, Format: "markdown", Title: "Week 1 Lecture Notes", Size: notes.Size},
		},
		course.MaterialLabMaterials: session.UnitResult{
			Status: session.UnitFailed,
			Error:  "timeout",
		},
	}
	sess.Generated[session.OverviewWeek] = session.ContentBundle{
		course.MaterialModuleOverview: session.UnitResult{
			Status:   session.UnitCompleted,
			Artifact: &session.ArtifactRef{Path: overview.Path, Format: "markdown", Size: overview.Size},
		},
	}
	return sess
}

func TestExportPackage(t *testing.T) {
	store, err := artifact.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("artifact store: %v", err)
	}
	sess := buildSession(t, store)
	result, err := New(store).Export(context.Background(), sess)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if result.FileCount != 2 || result.Size == 0 {
		t.Fatalf("unexpected export result: %+v", result)
	}

	reader, err := zip.OpenReader(result.Path)
	if err != nil {
		t.Fatalf("open package: %v", err)
	}
	defer reader.Close()

	var manifest Manifest
	names := make(map[string]bool)
	for _, entry := range reader.File {
		names[entry.Name] = true
		if entry.Name == "manifest.json" {
			rc, err := entry.Open()
			if err != nil {
				t.Fatalf("open manifest: %v", err)
			}
			data, err := io.ReadAll(rc)
			rc.Close()
			if err != nil {
				t.Fatalf("read manifest: %v", err)
			}
			if err := json.Unmarshal(data, &manifest); err != nil {
				t.Fatalf("decode manifest: %v", err)
			}
		}
	}
	if !names["manifest.json"] {
		t.Fatal("package missing manifest.json")
	}
	var weekFile bool
	for name := range names {
		if strings.HasPrefix(name, "Week_01/") {
			weekFile = true
		}
	}
	if !weekFile {
		t.Fatalf("package missing weekly file: %v", names)
	}
	if manifest.ModuleTitle != "Networks" || len(manifest.Files) != 2 {
		t.Fatalf("unexpected manifest: %+v", manifest)
	}
	// Failed units never appear in the package.
	for _, entry := range manifest.Files {
		if entry.Status != session.UnitCompleted {
			t.Fatalf("non-completed unit packaged: %+v", entry)
		}
	}
}

func TestExportNothingCompleted(t *testing.T) {
	store, err := artifact.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("artifact store: %v", err)
	}
	sess := &session.Session{ID: "sess-2", Generated: map[int]session.ContentBundle{
		1: {course.MaterialLectureNotes: session.UnitResult{Status: session.UnitFailed}},
	}}
	if _, err := New(store).Export(context.Background(), sess); err == nil {
		t.Fatal("expected error when nothing is completed")
	}
}
