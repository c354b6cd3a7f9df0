// File path: internal/planner/planner.go
package planner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/coursekit/coursekit/internal/common"
	"github.com/coursekit/coursekit/internal/course"
	"github.com/coursekit/coursekit/internal/llm"
)

// DefaultWeeks is the teaching length used when a request does not specify
// one.
const DefaultWeeks = 12

const planSystemPrompt = `You design weekly teaching plans for university modules.
Respond with a JSON array of week objects using exactly these keys:
week_number (integer, starting at 1), title, description,
learning_outcomes, lecture_topics, tutorial_activities, lab_activities,
readings, deliverables (arrays of strings), teaching_notes (string).
Cover the whole module across the requested number of weeks, aligning weeks
with the module learning outcomes and building difficulty progressively.`

// Generator produces draft weekly plans from extracted module data.
type Generator struct {
	provider llm.Provider
}

func New(provider llm.Provider) *Generator {
	return &Generator{provider: provider}
}

// GeneratePlan asks the language model for a weekly plan and normalizes the
// result. Without a model it falls back to a deterministic outline derived
// from the module topics, so planning always succeeds on valid module data.
func (g *Generator) GeneratePlan(ctx context.Context, module *course.ModuleData, weeks int) ([]course.WeekPlan, error) {
	if module == nil {
		return nil, fmt.Errorf("module data required")
	}
	if weeks <= 0 {
		weeks = DefaultWeeks
	}
	logger := common.Logger()
	plan, err := g.generate(ctx, module, weeks)
	if errors.Is(err, llm.ErrUnavailable) {
		logger.Warn("planner: language model unavailable, using fallback outline", "module", module.Title)
		plan = fallbackPlan(module, weeks)
	} else if err != nil {
		return nil, fmt.Errorf("generate plan: %w", err)
	}
	normalized, err := course.NormalizePlan(plan)
	if err != nil {
		return nil, fmt.Errorf("generate plan: %w", err)
	}
	logger.Info("planner: plan ready", "module", module.Title, "weeks", len(normalized))
	return normalized, nil
}

func (g *Generator) generate(ctx context.Context, module *course.ModuleData, weeks int) ([]course.WeekPlan, error) {
	if g.provider == nil {
		return nil, llm.ErrUnavailable
	}
	summary, err := json.Marshal(module)
	if err != nil {
		return nil, fmt.Errorf("encode module data: %w", err)
	}
	reply, err := g.provider.Chat(ctx, []llm.Message{
		{Role: "system", Content: planSystemPrompt},
		{Role: "user", Content: fmt.Sprintf("Plan %d teaching weeks for this module:\n%s", weeks, summary)},
	})
	if err != nil {
		return nil, err
	}
	var plan []course.WeekPlan
	if err := llm.DecodeJSON(reply, &plan); err != nil {
		return nil, err
	}
	return plan, nil
}

// fallbackPlan spreads the module topics over the teaching weeks, bracketed
// by an introduction and a revision week.
func fallbackPlan(module *course.ModuleData, weeks int) []course.WeekPlan {
	outcomes := make([]string, 0, len(module.LearningOutcomes))
	for _, lo := range module.LearningOutcomes {
		outcomes = append(outcomes, lo.Description)
	}
	topics := module.Topics
	if len(topics) == 0 {
		topics = []string{module.Title}
	}
	plan := make([]course.WeekPlan, 0, weeks)
	plan = append(plan, course.WeekPlan{
		WeekNumber:       1,
		Title:            "Introduction to " + module.Title,
		Description:      "Module overview, structure, and assessment briefing.",
		LearningOutcomes: firstN(outcomes, 1),
		LectureTopics:    []string{"Module overview", "Key concepts and terminology"},
		Readings:         firstN(module.Textbooks, 1),
	})
	for i := 2; i < weeks; i++ {
		topic := topics[(i-2)%len(topics)]
		week := course.WeekPlan{
			WeekNumber:         i,
			Title:              topic,
			Description:        fmt.Sprintf("Lectures and practical work on %s.", strings.ToLower(topic)),
			LearningOutcomes:   firstN(outcomes, 2),
			LectureTopics:      []string{topic},
			TutorialActivities: []string{"Worked examples on " + strings.ToLower(topic)},
			LabActivities:      []string{"Practical exercises on " + strings.ToLower(topic)},
			Readings:           firstN(module.Textbooks, 1),
		}
		plan = append(plan, week)
	}
	if weeks > 1 {
		plan = append(plan, course.WeekPlan{
			WeekNumber:       weeks,
			Title:            "Revision and Assessment Preparation",
			Description:      "Consolidation of the module material and assessment guidance.",
			LearningOutcomes: outcomes,
			LectureTopics:    []string{"Module review", "Assessment preparation"},
			Deliverables:     assessmentNames(module.Assessments),
		})
	}
	return plan
}

func firstN(items []string, n int) []string {
	if len(items) <= n {
		return append([]string(nil), items...)
	}
	return append([]string(nil), items[:n]...)
}

func assessmentNames(assessments []course.Assessment) []string {
	out := make([]string, 0, len(assessments))
	for _, a := range assessments {
		out = append(out, a.Name)
	}
	return out
}
