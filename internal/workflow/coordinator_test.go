// File path: internal/workflow/coordinator_test.go
package workflow

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coursekit/coursekit/internal/artifact"
	"github.com/coursekit/coursekit/internal/content"
	"github.com/coursekit/coursekit/internal/course"
	"github.com/coursekit/coursekit/internal/llm"
	"github.com/coursekit/coursekit/internal/session"
)

// gaugeProvider records the peak number of concurrent Chat calls.
type gaugeProvider struct {
	mu      sync.Mutex
	current int32
	peak    int32
}

func (g *gaugeProvider) Chat(ctx context.Context, messages []llm.Message) (string, error) {
	now := atomic.AddInt32(&g.current, 1)
	g.mu.Lock()
	if now > g.peak {
		g.peak = now
	}
	g.mu.Unlock()
	time.Sleep(20 * time.Millisecond)
	atomic.AddInt32(&g.current, -1)
	return "body", nil
}

func (g *gaugeProvider) Name() string { return "gauge" }

func seedGeneratingSession(t *testing.T, store *session.Store, weeks int) *session.Session {
	t.Helper()
	ctx := context.Background()
	sess, err := store.Create(ctx)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	plan := make([]course.WeekPlan, 0, weeks)
	for i := 1; i <= weeks; i++ {
		plan = append(plan, course.WeekPlan{WeekNumber: i, Title: "Topic"})
	}
	sess, err = store.Update(ctx, sess.ID, func(s *session.Session) error {
		s.Stage = session.StageGenerating
		s.Module = &course.ModuleData{
			Title:            "Databases",
			LearningOutcomes: []course.LearningOutcome{{ID: "LO1", Description: "x"}},
			Assessments:      []course.Assessment{{Name: "Exam"}},
		}
		s.ApprovedWeeks = plan
		return nil
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return sess
}

func TestCoordinatorBoundsParallelism(t *testing.T) {
	store, err := session.Open(filepath.Join(t.TempDir(), "sessions.db"))
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	defer store.Close()
	artifacts, err := artifact.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("artifacts: %v", err)
	}
	provider := &gaugeProvider{}
	coord := NewCoordinator(store, content.New(provider, artifacts), 2, time.Minute)
	sess := seedGeneratingSession(t, store, 6)

	units := make([]Unit, 0, 6)
	for i := 1; i <= 6; i++ {
		units = append(units, Unit{Week: i, Material: course.MaterialLectureNotes})
	}
	if err := coord.Run(context.Background(), sess.ID, units); err != nil {
		t.Fatalf("run: %v", err)
	}
	if provider.peak > 2 {
		t.Fatalf("concurrency limit exceeded: peak %d", provider.peak)
	}
	loaded, err := store.Get(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	total, terminal, completed, _ := loaded.UnitCounts()
	if total != 6 || terminal != 6 || completed != 6 {
		t.Fatalf("units not all completed: total=%d terminal=%d completed=%d", total, terminal, completed)
	}
}

func TestCoordinatorReleaseSessionPrunesLocks(t *testing.T) {
	store, err := session.Open(filepath.Join(t.TempDir(), "sessions.db"))
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	defer store.Close()
	artifacts, err := artifact.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("artifacts: %v", err)
	}
	coord := NewCoordinator(store, content.New(&gaugeProvider{}, artifacts), 2, time.Minute)
	first := seedGeneratingSession(t, store, 2)
	second := seedGeneratingSession(t, store, 1)

	units := []Unit{
		{Week: 1, Material: course.MaterialLectureNotes},
		{Week: 2, Material: course.MaterialLectureNotes},
	}
	if err := coord.Run(context.Background(), first.ID, units); err != nil {
		t.Fatalf("run first: %v", err)
	}
	if err := coord.Run(context.Background(), second.ID, units[:1]); err != nil {
		t.Fatalf("run second: %v", err)
	}

	coord.releaseSession(first.ID)
	coord.mu.Lock()
	defer coord.mu.Unlock()
	for key := range coord.locks {
		if strings.HasPrefix(key, first.ID+"/") {
			t.Fatalf("lock for removed session survived: %s", key)
		}
	}
	if len(coord.locks) == 0 {
		t.Fatal("locks for the remaining session should survive")
	}
}

func TestCoordinatorSameAddressOverwrites(t *testing.T) {
	store, err := session.Open(filepath.Join(t.TempDir(), "sessions.db"))
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	defer store.Close()
	artifacts, err := artifact.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("artifacts: %v", err)
	}
	coord := NewCoordinator(store, content.New(&gaugeProvider{}, artifacts), 4, time.Minute)
	sess := seedGeneratingSession(t, store, 1)
	unit := Unit{Week: 1, Material: course.MaterialLabMaterials}

	if err := coord.Run(context.Background(), sess.ID, []Unit{unit}); err != nil {
		t.Fatalf("first run: %v", err)
	}
	first, err := store.Get(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	firstRef := first.Generated[1][unit.Material].Artifact
	if firstRef == nil {
		t.Fatal("first run produced no artifact")
	}

	// Same address again, including a racing duplicate. Exactly one result
	// remains and it points at a fresh artifact.
	if err := coord.Run(context.Background(), sess.ID, []Unit{unit, unit}); err != nil {
		t.Fatalf("second run: %v", err)
	}
	second, err := store.Get(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(second.Generated[1]) != 1 {
		t.Fatalf("duplicate units must collapse to one result: %+v", second.Generated[1])
	}
	secondRef := second.Generated[1][unit.Material].Artifact
	if secondRef == nil || secondRef.Path == "" {
		t.Fatalf("second run lost the artifact: %+v", secondRef)
	}
	if second.Generated[1][unit.Material].Status != session.UnitCompleted {
		t.Fatalf("overwrite left unit non-terminal: %+v", second.Generated[1][unit.Material])
	}
}
