// File path: internal/session/stage_test.go
package session

import (
	"errors"
	"testing"
)

func TestAllowedHappyPath(t *testing.T) {
	steps := []struct {
		stage Stage
		op    Operation
	}{
		{StageCreated, OpUpload},
		{StageUploaded, OpExtract},
		{StageExtracted, OpGeneratePlan},
		{StagePlanning, OpEditPlan},
		{StagePlanning, OpApprovePlan},
		{StagePlanApproved, OpGenerateContent},
		{StageGenerated, OpRegenerateUnit},
		{StageGenerated, OpExport},
	}
	for _, step := range steps {
		if err := Allowed(step.stage, step.op); err != nil {
			t.Fatalf("%s at %s should be allowed: %v", step.op, step.stage, err)
		}
	}
}

func TestAllowedReentry(t *testing.T) {
	// Revision without regression: editing and re-approving an approved
	// plan, re-running an export.
	if err := Allowed(StagePlanApproved, OpEditPlan); err != nil {
		t.Fatalf("edit after approval should be allowed: %v", err)
	}
	if err := Allowed(StagePlanApproved, OpApprovePlan); err != nil {
		t.Fatalf("re-approval should be allowed: %v", err)
	}
	if err := Allowed(StageExported, OpExport); err != nil {
		t.Fatalf("re-export should be allowed: %v", err)
	}
}

func TestAllowedDenials(t *testing.T) {
	denied := []struct {
		stage Stage
		op    Operation
	}{
		{StageCreated, OpGeneratePlan},
		{StageCreated, OpApprovePlan},
		{StageUploaded, OpGenerateContent},
		{StagePlanning, OpGenerateContent},
		{StagePlanApproved, OpUpload},
		{StageGenerating, OpExport},
		{StageGenerating, OpGenerateContent},
		{StageExported, OpUpload},
	}
	for _, step := range denied {
		err := Allowed(step.stage, step.op)
		if err == nil {
			t.Fatalf("%s at %s should be denied", step.op, step.stage)
		}
		if !errors.Is(err, ErrStageDenied) {
			t.Fatalf("denial should wrap ErrStageDenied, got %v", err)
		}
		var denial *DeniedError
		if !errors.As(err, &denial) || denial.Reason == "" {
			t.Fatalf("denial should carry a reason: %v", err)
		}
	}
}

func TestFailedStageIsTerminal(t *testing.T) {
	for _, op := range []Operation{OpUpload, OpGeneratePlan, OpApprovePlan, OpGenerateContent, OpExport} {
		if err := Allowed(StageFailed, op); !errors.Is(err, ErrStageDenied) {
			t.Fatalf("%s at failed stage should be denied, got %v", op, err)
		}
	}
}
