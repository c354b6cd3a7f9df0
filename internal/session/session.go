// File path: internal/session/session.go
package session

import (
	"time"

	"github.com/coursekit/coursekit/internal/course"
)

// Stage is the lifecycle position of a session. Stages only move forward;
// operations that would regress a session are denied by the validator.
type Stage string

const (
	StageCreated      Stage = "created"
	StageUploaded     Stage = "uploaded"
	StageExtracted    Stage = "extracted"
	StagePlanning     Stage = "planning"
	StagePlanApproved Stage = "plan_approved"
	StageGenerating   Stage = "generating"
	StageGenerated    Stage = "generated"
	StageExported     Stage = "exported"
	StageFailed       Stage = "failed"
)

var stageOrder = map[Stage]int{
	StageCreated:      0,
	StageUploaded:     1,
	StageExtracted:    2,
	StagePlanning:     3,
	StagePlanApproved: 4,
	StageGenerating:   5,
	StageGenerated:    6,
	StageExported:     7,
}

// Order returns the forward position of the stage. StageFailed is terminal
// and outside the ordering.
func (s Stage) Order() int {
	if pos, ok := stageOrder[s]; ok {
		return pos
	}
	return -1
}

// Terminal reports whether no further operations may run on the session.
func (s Stage) Terminal() bool {
	return s == StageFailed
}

// Unit generation statuses.
const (
	UnitPending       = "pending"
	UnitRunning       = "running"
	UnitCompleted     = "completed"
	UnitFailed        = "failed"
	UnitFailedTimeout = "failed_timeout"
)

// TerminalUnitStatus reports whether a unit result will not change without a
// new request.
func TerminalUnitStatus(status string) bool {
	switch status {
	case UnitCompleted, UnitFailed, UnitFailedTimeout:
		return true
	}
	return false
}

// ArtifactRef points at a generated file inside the session's artifact root.
type ArtifactRef struct {
	Path   string `json:"path"`
	Format string `json:"format"`
	Title  string `json:"title,omitempty"`
	Size   int64  `json:"size"`
}

// UnitResult is the outcome of one generation unit. A missing entry means the
// unit was never requested; a completed entry with an artifact is a real
// result even when the content is short.
type UnitResult struct {
	Status      string       `json:"status"`
	Artifact    *ArtifactRef `json:"artifact,omitempty"`
	Error       string       `json:"error,omitempty"`
	StartedAt   *time.Time   `json:"started_at,omitempty"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
}

// ContentBundle maps material type to its latest unit result for one week.
type ContentBundle map[string]UnitResult

// ExportResult records the packaged archive for a session.
type ExportResult struct {
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	FileCount int       `json:"file_count"`
	CreatedAt time.Time `json:"created_at"`
}

// UploadedFile records one stored upload.
type UploadedFile struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Size int64  `json:"size"`
}

// OverviewWeek keys the bundle holding session-level overview documents.
const OverviewWeek = 0

// Session is the aggregate the workflow engine operates on. ApprovedWeeks is
// a snapshot taken at approval time; generation reads only the snapshot, so
// later draft edits cannot reach running units.
type Session struct {
	ID            string                `json:"session_id"`
	Stage         Stage                 `json:"stage"`
	ModuleFile    *UploadedFile         `json:"module_file,omitempty"`
	TextbookFiles []UploadedFile        `json:"textbook_files,omitempty"`
	Module        *course.ModuleData    `json:"module_data,omitempty"`
	WeekPlans     []course.WeekPlan     `json:"week_plans,omitempty"`
	ApprovedWeeks []course.WeekPlan     `json:"approved_weeks,omitempty"`
	Materials     []string              `json:"materials,omitempty"`
	Generated     map[int]ContentBundle `json:"generated,omitempty"`
	Export        *ExportResult         `json:"export,omitempty"`
	Error         string                `json:"error,omitempty"`
	CreatedAt     time.Time             `json:"created_at"`
	UpdatedAt     time.Time             `json:"updated_at"`
}

// Clone deep-copies the session so callers can inspect state without racing
// the store's mutators.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	copied := *s
	if s.ModuleFile != nil {
		file := *s.ModuleFile
		copied.ModuleFile = &file
	}
	copied.TextbookFiles = append([]UploadedFile(nil), s.TextbookFiles...)
	copied.Module = course.CloneModuleData(s.Module)
	copied.WeekPlans = course.ClonePlan(s.WeekPlans)
	copied.ApprovedWeeks = course.ClonePlan(s.ApprovedWeeks)
	copied.Materials = append([]string(nil), s.Materials...)
	if s.Generated != nil {
		copied.Generated = make(map[int]ContentBundle, len(s.Generated))
		for week, bundle := range s.Generated {
			cb := make(ContentBundle, len(bundle))
			for material, unit := range bundle {
				unitCopy := unit
				if unit.Artifact != nil {
					ref := *unit.Artifact
					unitCopy.Artifact = &ref
				}
				if unit.StartedAt != nil {
					ts := *unit.StartedAt
					unitCopy.StartedAt = &ts
				}
				if unit.CompletedAt != nil {
					ts := *unit.CompletedAt
					unitCopy.CompletedAt = &ts
				}
				cb[material] = unitCopy
			}
			copied.Generated[week] = cb
		}
	}
	if s.Export != nil {
		exp := *s.Export
		copied.Export = &exp
	}
	return &copied
}

// Bundle returns the content bundle for a week, allocating it on first use.
func (s *Session) Bundle(week int) ContentBundle {
	if s.Generated == nil {
		s.Generated = make(map[int]ContentBundle)
	}
	bundle, ok := s.Generated[week]
	if !ok {
		bundle = make(ContentBundle)
		s.Generated[week] = bundle
	}
	return bundle
}

// UnitCounts reports total and terminal generation units across all bundles.
func (s *Session) UnitCounts() (total, terminal, completed, failed int) {
	for _, bundle := range s.Generated {
		for _, unit := range bundle {
			total++
			if TerminalUnitStatus(unit.Status) {
				terminal++
			}
			switch unit.Status {
			case UnitCompleted:
				completed++
			case UnitFailed, UnitFailedTimeout:
				failed++
			}
		}
	}
	return total, terminal, completed, failed
}
