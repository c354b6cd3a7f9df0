// File path: internal/workflow/status.go
package workflow

import (
	"time"

	"github.com/coursekit/coursekit/internal/session"
)

// Status is the polling projection of a session. It is computed from a
// snapshot and never stored.
type Status struct {
	SessionID       string        `json:"session_id"`
	Stage           session.Stage `json:"stage"`
	CompletedSteps  []string      `json:"completed_steps"`
	CurrentStep     string        `json:"current_step,omitempty"`
	PercentComplete int           `json:"percent_complete"`
	TotalUnits      int           `json:"total_units"`
	CompletedUnits  int           `json:"completed_units"`
	FailedUnits     int           `json:"failed_units"`
	Error           string        `json:"error,omitempty"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// workflowSteps names the human-facing steps in order, paired with the stage
// that marks each one complete.
var workflowSteps = []struct {
	name string
	done session.Stage
}{
	{"upload", session.StageUploaded},
	{"extraction", session.StageExtracted},
	{"planning", session.StagePlanning},
	{"approval", session.StagePlanApproved},
	{"generation", session.StageGenerated},
	{"export", session.StageExported},
}

// stagePercent anchors progress before generation begins; unit counts take
// over from StageGenerating onward.
var stagePercent = map[session.Stage]int{
	session.StageCreated:      0,
	session.StageUploaded:     15,
	session.StageExtracted:    30,
	session.StagePlanning:     45,
	session.StagePlanApproved: 55,
}

// Project reduces a session to its status view. During generation the
// percentage tracks completed units over total units, so failed units never
// count as progress, and only reaches 100 once the session is generated or
// later.
func Project(sess *session.Session) Status {
	status := Status{
		SessionID: sess.ID,
		Stage:     sess.Stage,
		Error:     sess.Error,
		UpdatedAt: sess.UpdatedAt,
	}
	order := sess.Stage.Order()
	for _, step := range workflowSteps {
		if order >= step.done.Order() {
			status.CompletedSteps = append(status.CompletedSteps, step.name)
		} else if status.CurrentStep == "" {
			status.CurrentStep = step.name
		}
	}
	total, terminal, completed, failed := sess.UnitCounts()
	status.TotalUnits = total
	status.CompletedUnits = completed
	status.FailedUnits = failed

	switch {
	case sess.Stage == session.StageFailed:
		status.PercentComplete = 0
		status.CurrentStep = ""
	case sess.Stage.Order() >= session.StageGenerated.Order():
		if total > 0 && terminal < total {
			// Regeneration in flight.
			status.PercentComplete = percent(terminal, total)
		} else {
			status.PercentComplete = 100
		}
	case sess.Stage == session.StageGenerating:
		p := 0
		if total > 0 {
			p = percent(completed, total)
		}
		// 100 is reserved for the generated stage; the last unit's
		// completion and the stage advance race the poller.
		if p > 99 {
			p = 99
		}
		status.PercentComplete = p
	default:
		status.PercentComplete = stagePercent[sess.Stage]
	}
	return status
}

func percent(done, total int) int {
	return int(float64(done) / float64(total) * 100)
}
