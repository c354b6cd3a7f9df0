// File path: internal/workflow/engine.go
package workflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/coursekit/coursekit/internal/artifact"
	"github.com/coursekit/coursekit/internal/common"
	"github.com/coursekit/coursekit/internal/content"
	"github.com/coursekit/coursekit/internal/course"
	"github.com/coursekit/coursekit/internal/export"
	"github.com/coursekit/coursekit/internal/extract"
	"github.com/coursekit/coursekit/internal/llm"
	"github.com/coursekit/coursekit/internal/planner"
	"github.com/coursekit/coursekit/internal/session"
)

// ErrInvalidRequest marks caller mistakes that map to 4xx responses.
var ErrInvalidRequest = errors.New("invalid request")

// UploadFile is one incoming multipart file.
type UploadFile struct {
	Name   string
	Reader io.Reader
}

// Engine executes workflow operations against the session store. Every
// operation validates the session's stage before mutating anything; stage
// checks run inside the store's Update mutator so concurrent requests cannot
// slip past each other.
type Engine struct {
	store       *session.Store
	artifacts   *artifact.Store
	extractor   *extract.Extractor
	planner     *planner.Generator
	coordinator *Coordinator
	exporter    *export.Exporter
	cfg         Config

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewEngine wires the collaborators around a shared session store.
func NewEngine(store *session.Store, artifacts *artifact.Store, provider llm.Provider, cfg Config) *Engine {
	cfg.applyDefaults()
	baseCtx, cancel := context.WithCancel(context.Background())
	generator := content.New(provider, artifacts)
	return &Engine{
		store:       store,
		artifacts:   artifacts,
		extractor:   extract.New(provider),
		planner:     planner.New(provider),
		coordinator: NewCoordinator(store, generator, cfg.Concurrency, cfg.UnitTimeout),
		exporter:    export.New(artifacts),
		cfg:         cfg,
		baseCtx:     baseCtx,
		cancel:      cancel,
	}
}

// Close cancels background generation and waits for it to stop.
func (e *Engine) Close() {
	e.cancel()
	e.wg.Wait()
}

// Wait blocks until all background generation currently in flight finishes.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// Create starts a new empty session.
func (e *Engine) Create(ctx context.Context) (*session.Session, error) {
	return e.store.Create(ctx)
}

// Get returns the stored session.
func (e *Engine) Get(ctx context.Context, id string) (*session.Session, error) {
	return e.store.Get(ctx, id)
}

// List returns all sessions, most recently active first.
func (e *Engine) List(ctx context.Context) ([]*session.Session, error) {
	return e.store.List(ctx)
}

// Delete removes the session record and everything it stored on disk.
func (e *Engine) Delete(ctx context.Context, id string) error {
	if err := e.store.Delete(ctx, id); err != nil {
		return err
	}
	if err := e.artifacts.RemoveSession(id); err != nil {
		common.Logger().Warn("engine: session files not fully removed", "session", id, "error", err)
	}
	e.coordinator.releaseSession(id)
	return nil
}

// Upload stores the module document (plus optional textbooks) and runs
// extraction. When extraction fails the session stays at StageUploaded so the
// upload can be retried or replaced.
func (e *Engine) Upload(ctx context.Context, id string, module UploadFile, textbooks []UploadFile) (*session.Session, error) {
	name := strings.TrimSpace(module.Name)
	if name == "" || module.Reader == nil {
		return nil, fmt.Errorf("%w: module file required", ErrInvalidRequest)
	}
	if !extract.SupportedFile(name) {
		return nil, fmt.Errorf("%w: unsupported module file %q", ErrInvalidRequest, name)
	}
	sess, err := e.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := session.Allowed(sess.Stage, session.OpUpload); err != nil {
		return nil, err
	}

	info, err := e.artifacts.SaveUpload(id, name, module.Reader)
	if err != nil {
		return nil, err
	}
	saved := session.UploadedFile{Name: name, Path: info.Path, Size: info.Size}
	var savedBooks []session.UploadedFile
	for _, book := range textbooks {
		bookName := strings.TrimSpace(book.Name)
		if bookName == "" || book.Reader == nil {
			continue
		}
		if !extract.SupportedFile(bookName) {
			return nil, fmt.Errorf("%w: unsupported textbook file %q", ErrInvalidRequest, bookName)
		}
		bookInfo, err := e.artifacts.SaveUpload(id, bookName, book.Reader)
		if err != nil {
			return nil, err
		}
		savedBooks = append(savedBooks, session.UploadedFile{Name: bookName, Path: bookInfo.Path, Size: bookInfo.Size})
	}

	if _, err := e.store.Update(ctx, id, func(s *session.Session) error {
		if err := session.Allowed(s.Stage, session.OpUpload); err != nil {
			return err
		}
		s.ModuleFile = &saved
		s.TextbookFiles = savedBooks
		s.Stage = session.StageUploaded
		return nil
	}); err != nil {
		return nil, err
	}
	return e.extractModule(ctx, id, saved.Path)
}

func (e *Engine) extractModule(ctx context.Context, id, path string) (*session.Session, error) {
	sess, err := e.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := session.Allowed(sess.Stage, session.OpExtract); err != nil {
		return nil, err
	}
	data, err := e.extractor.Extract(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("extract module data: %w", err)
	}
	return e.store.Update(ctx, id, func(s *session.Session) error {
		if err := session.Allowed(s.Stage, session.OpExtract); err != nil {
			return err
		}
		s.Module = data
		s.Stage = session.StageExtracted
		return nil
	})
}

// GeneratePlan drafts a weekly plan from the extracted module data.
func (e *Engine) GeneratePlan(ctx context.Context, id string, weeks int) (*session.Session, error) {
	if weeks < 0 || weeks > 52 {
		return nil, fmt.Errorf("%w: weeks must be between 1 and 52", ErrInvalidRequest)
	}
	if weeks == 0 {
		weeks = e.cfg.PlanWeeks
	}
	sess, err := e.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := session.Allowed(sess.Stage, session.OpGeneratePlan); err != nil {
		return nil, err
	}
	plan, err := e.planner.GeneratePlan(ctx, sess.Module, weeks)
	if err != nil {
		return nil, err
	}
	return e.store.Update(ctx, id, func(s *session.Session) error {
		if err := session.Allowed(s.Stage, session.OpGeneratePlan); err != nil {
			return err
		}
		s.WeekPlans = plan
		s.Stage = session.StagePlanning
		return nil
	})
}

// EditPlan replaces the draft plan. The stage is unchanged; an edit after
// approval leaves the earlier approved snapshot in force until re-approval.
func (e *Engine) EditPlan(ctx context.Context, id string, weeks []course.WeekPlan) (*session.Session, error) {
	normalized, err := course.NormalizePlan(weeks)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return e.store.Update(ctx, id, func(s *session.Session) error {
		if err := session.Allowed(s.Stage, session.OpEditPlan); err != nil {
			return err
		}
		s.WeekPlans = normalized
		return nil
	})
}

// ApprovePlan snapshots the current draft as the approved plan. The snapshot
// is a deep copy: generation only ever reads the snapshot, so later edits to
// the draft cannot affect running units.
func (e *Engine) ApprovePlan(ctx context.Context, id string) (*session.Session, error) {
	return e.store.Update(ctx, id, func(s *session.Session) error {
		if err := session.Allowed(s.Stage, session.OpApprovePlan); err != nil {
			return err
		}
		if err := course.ValidatePlan(s.WeekPlans); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		s.ApprovedWeeks = course.ClonePlan(s.WeekPlans)
		s.Stage = session.StagePlanApproved
		return nil
	})
}

// StartGeneration seeds one pending unit per (approved week, material) plus
// the session-level overview documents, then fans them out in the
// background. The call returns as soon as the units are recorded.
func (e *Engine) StartGeneration(ctx context.Context, id string, materials []string) (*session.Session, error) {
	requested := course.NormalizeMaterials(materials)
	if len(requested) == 0 {
		return nil, fmt.Errorf("%w: no recognised material types requested", ErrInvalidRequest)
	}
	var units []Unit
	sess, err := e.store.Update(ctx, id, func(s *session.Session) error {
		if err := session.Allowed(s.Stage, session.OpGenerateContent); err != nil {
			return err
		}
		if len(s.ApprovedWeeks) == 0 {
			return fmt.Errorf("%w: no approved weeks to generate", ErrInvalidRequest)
		}
		units = units[:0]
		for _, week := range s.ApprovedWeeks {
			for _, material := range requested {
				units = append(units, Unit{Week: week.WeekNumber, Material: material})
			}
		}
		for _, material := range course.OverviewMaterials() {
			units = append(units, Unit{Week: session.OverviewWeek, Material: material})
		}
		s.Materials = requested
		s.Generated = make(map[int]session.ContentBundle)
		for _, unit := range units {
			s.Bundle(unit.Week)[unit.Material] = session.UnitResult{Status: session.UnitPending}
		}
		s.Stage = session.StageGenerating
		s.Error = ""
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.runUnitsAsync(id, units)
	return sess, nil
}

// RegenerateWeek re-runs the requested materials for one approved week.
// Regeneration is idempotent: the new result overwrites the old one and the
// superseded artifact file is left behind for the manifest history.
func (e *Engine) RegenerateWeek(ctx context.Context, id string, week int, materials []string) (*session.Session, error) {
	var units []Unit
	sess, err := e.store.Update(ctx, id, func(s *session.Session) error {
		if err := session.Allowed(s.Stage, session.OpRegenerateUnit); err != nil {
			return err
		}
		if _, ok := course.FindWeek(s.ApprovedWeeks, week); !ok {
			return fmt.Errorf("%w: week %d is not in the approved plan", ErrInvalidRequest, week)
		}
		requested := materials
		if len(requested) == 0 {
			requested = s.Materials
		}
		normalized := course.NormalizeMaterials(requested)
		if len(normalized) == 0 {
			return fmt.Errorf("%w: no recognised material types requested", ErrInvalidRequest)
		}
		units = units[:0]
		for _, material := range normalized {
			units = append(units, Unit{Week: week, Material: material})
			s.Bundle(week)[material] = session.UnitResult{Status: session.UnitPending}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.runUnitsAsync(id, units)
	return sess, nil
}

func (e *Engine) runUnitsAsync(id string, units []Unit) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		if err := e.coordinator.Run(e.baseCtx, id, units); err != nil {
			common.Logger().Error("engine: generation aborted", "session", id, "error", err)
			return
		}
		if err := e.finalizeGeneration(e.baseCtx, id); err != nil {
			common.Logger().Error("engine: finalize generation", "session", id, "error", err)
		}
	}()
}

// finalizeGeneration advances the stage once every unit is terminal. A run
// where every unit failed is fatal; any completed unit keeps the session
// usable.
func (e *Engine) finalizeGeneration(ctx context.Context, id string) error {
	_, err := e.store.Update(ctx, id, func(s *session.Session) error {
		if s.Stage != session.StageGenerating && s.Stage != session.StageGenerated {
			return nil
		}
		total, terminal, completed, failed := s.UnitCounts()
		if total == 0 || terminal != total {
			return nil
		}
		if completed == 0 && failed == total {
			s.Stage = session.StageFailed
			s.Error = "all generation units failed"
			return nil
		}
		if s.Stage == session.StageGenerating {
			s.Stage = session.StageGenerated
		}
		return nil
	})
	return err
}

// Export packages the generated materials and records the archive.
func (e *Engine) Export(ctx context.Context, id string) (*session.Session, error) {
	sess, err := e.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := session.Allowed(sess.Stage, session.OpExport); err != nil {
		return nil, err
	}
	result, err := e.exporter.Export(ctx, sess.Clone())
	if err != nil {
		return nil, err
	}
	return e.store.Update(ctx, id, func(s *session.Session) error {
		if err := session.Allowed(s.Stage, session.OpExport); err != nil {
			return err
		}
		s.Export = result
		s.Stage = session.StageExported
		return nil
	})
}

// PackagePath validates and returns the downloadable archive for a session.
func (e *Engine) PackagePath(ctx context.Context, id string) (string, error) {
	sess, err := e.store.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if sess.Export == nil {
		return "", fmt.Errorf("%w: session has not been exported", ErrInvalidRequest)
	}
	if err := e.artifacts.Validate(sess.Export.Path); err != nil {
		return "", err
	}
	return sess.Export.Path, nil
}

// Status projects the session into the polling shape. A poll counts as
// activity, so a session being watched is not reaped by the janitor.
func (e *Engine) Status(ctx context.Context, id string) (Status, error) {
	sess, err := e.store.Get(ctx, id)
	if err != nil {
		return Status{}, err
	}
	if err := e.store.Touch(ctx, id); err != nil {
		common.Logger().Warn("engine: refresh session activity", "session", id, "error", err)
	}
	return Project(sess), nil
}

// RunJanitor deletes idle sessions on a timer until ctx is canceled.
func (e *Engine) RunJanitor(ctx context.Context) {
	logger := common.Logger()
	ticker := time.NewTicker(e.cfg.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ids, err := e.store.DeleteIdle(ctx, e.cfg.SessionTTL)
			if err != nil {
				logger.Warn("engine: cleanup pass failed", "error", err)
				continue
			}
			for _, id := range ids {
				if err := e.artifacts.RemoveSession(id); err != nil {
					logger.Warn("engine: cleanup files", "session", id, "error", err)
				}
				e.coordinator.releaseSession(id)
			}
			if len(ids) > 0 {
				logger.Info("engine: expired idle sessions", "count", len(ids), "ttl", e.cfg.SessionTTL)
			}
		}
	}
}
