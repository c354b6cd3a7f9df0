// File path: internal/session/stage.go
package session

import (
	"errors"
	"fmt"
)

// Operation names a workflow action subject to stage validation.
type Operation string

const (
	OpUpload          Operation = "upload"
	OpExtract         Operation = "extract"
	OpGeneratePlan    Operation = "generate_plan"
	OpEditPlan        Operation = "edit_plan"
	OpApprovePlan     Operation = "approve_plan"
	OpGenerateContent Operation = "generate_content"
	OpRegenerateUnit  Operation = "regenerate_unit"
	OpExport          Operation = "export"
)

// ErrStageDenied marks an operation rejected by the stage validator. The
// session is left untouched when this is returned.
var ErrStageDenied = errors.New("operation not allowed at current stage")

// DeniedError carries the specific denial reason for API responses.
type DeniedError struct {
	Op     Operation
	Stage  Stage
	Reason string
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("%s denied at stage %s: %s", e.Op, e.Stage, e.Reason)
}

func (e *DeniedError) Unwrap() error { return ErrStageDenied }

// allowedStages maps each operation to the stages it may run from.
// Re-entrant operations (edit_plan, approve_plan, export) are listed at the
// stage they produce as well, so a lecturer can revise without regressing the
// session.
var allowedStages = map[Operation][]Stage{
	OpUpload:          {StageCreated, StageUploaded},
	OpExtract:         {StageUploaded, StageExtracted},
	OpGeneratePlan:    {StageExtracted, StagePlanning},
	OpEditPlan:        {StagePlanning, StagePlanApproved},
	OpApprovePlan:     {StagePlanning, StagePlanApproved},
	OpGenerateContent: {StagePlanApproved},
	OpRegenerateUnit:  {StageGenerated},
	OpExport:          {StageGenerated, StageExported},
}

// denialReasons explain, per operation, what must happen before it becomes
// legal. Used when the session has not yet advanced far enough.
var denialReasons = map[Operation]string{
	OpUpload:          "module document can only be uploaded before extraction completes",
	OpExtract:         "a module document must be uploaded first",
	OpGeneratePlan:    "module data must be extracted before planning",
	OpEditPlan:        "a weekly plan must be generated before it can be edited",
	OpApprovePlan:     "a weekly plan must be generated before it can be approved",
	OpGenerateContent: "the weekly plan must be approved before generating content",
	OpRegenerateUnit:  "content generation must finish before individual units can be regenerated",
	OpExport:          "content generation must finish before exporting",
}

// Allowed validates op against the session's current stage. It returns nil
// when the operation may proceed, or a *DeniedError (wrapping ErrStageDenied)
// naming the reason. Allowed never mutates anything.
func Allowed(stage Stage, op Operation) error {
	if stage.Terminal() {
		return &DeniedError{Op: op, Stage: stage, Reason: "session has failed and accepts no further operations"}
	}
	stages, ok := allowedStages[op]
	if !ok {
		return &DeniedError{Op: op, Stage: stage, Reason: "unknown operation"}
	}
	for _, s := range stages {
		if s == stage {
			return nil
		}
	}
	reason := denialReasons[op]
	if stage.Order() > maxStageOrder(stages) {
		reason = fmt.Sprintf("session has already advanced past %s", stages[len(stages)-1])
	}
	return &DeniedError{Op: op, Stage: stage, Reason: reason}
}

func maxStageOrder(stages []Stage) int {
	max := -1
	for _, s := range stages {
		if s.Order() > max {
			max = s.Order()
		}
	}
	return max
}
