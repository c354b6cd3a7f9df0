// File path: internal/content/generator.go
package content

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/coursekit/coursekit/internal/artifact"
	"github.com/coursekit/coursekit/internal/common"
	"github.com/coursekit/coursekit/internal/course"
	"github.com/coursekit/coursekit/internal/llm"
)

// Result is one generated document on disk.
type Result struct {
	Info  artifact.Info
	Title string
}

var materialPrompts = map[string]string{
	course.MaterialLectureNotes:    "Write complete lecture notes in markdown: introduction, main sections with explanations and examples, and a summary.",
	course.MaterialLectureSlides:   "Write a markdown slide deck: one '## ' heading per slide with 3-5 bullet points each, covering the week's lecture topics.",
	course.MaterialTranscripts:     "Write a natural spoken-word lecture transcript covering the week's topics as a lecturer would deliver them.",
	course.MaterialLabMaterials:    "Write a lab worksheet in markdown: objectives, setup, numbered exercises of increasing difficulty, and stretch tasks.",
	course.MaterialAssessments:     "Write formative assessment material in markdown: quiz questions with answers and a short marking guide.",
	course.MaterialSeminar:         "Write seminar material in markdown: discussion questions, a case study, and facilitation notes.",
	course.MaterialModuleOverview:  "Write a module overview document in markdown: aims, weekly outline, assessment summary, and study advice.",
	course.MaterialInstructorGuide: "Write an instructor guide in markdown: delivery notes per week, common difficulties, and marking guidance.",
}

// Generator produces one markdown document per generation unit and writes it
// through the artifact store. Generation is safe to repeat: each run writes a
// fresh file.
type Generator struct {
	provider  llm.Provider
	artifacts *artifact.Store
}

func New(provider llm.Provider, artifacts *artifact.Store) *Generator {
	return &Generator{provider: provider, artifacts: artifacts}
}

// Generate builds the document for (week, material). week is nil for
// session-level materials such as the module overview.
func (g *Generator) Generate(ctx context.Context, sessionID string, module *course.ModuleData, week *course.WeekPlan, material string) (Result, error) {
	if module == nil {
		return Result{}, fmt.Errorf("module data required")
	}
	prompt, ok := materialPrompts[material]
	if !ok {
		return Result{}, fmt.Errorf("unknown material type %q", material)
	}
	title := documentTitle(module, week, material)
	body, err := g.compose(ctx, module, week, material, prompt)
	if errors.Is(err, llm.ErrUnavailable) {
		common.Logger().Warn("content: language model unavailable, using outline document", "material", material)
		body = fallbackDocument(module, week, material)
	} else if err != nil {
		return Result{}, fmt.Errorf("compose %s: %w", material, err)
	}
	weekNumber := 0
	if week != nil {
		weekNumber = week.WeekNumber
	}
	info, err := g.artifacts.WriteMaterial(sessionID, weekNumber, material, "# "+title+"\n\n"+body)
	if err != nil {
		return Result{}, err
	}
	common.Logger().Debug("content: document written", "session", sessionID, "week", weekNumber, "material", material, "bytes", info.Size)
	return Result{Info: info, Title: title}, nil
}

func (g *Generator) compose(ctx context.Context, module *course.ModuleData, week *course.WeekPlan, material, prompt string) (string, error) {
	if g.provider == nil {
		return "", llm.ErrUnavailable
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Module: %s", module.Title)
	if module.Code != "" {
		fmt.Fprintf(&sb, " (%s)", module.Code)
	}
	sb.WriteString("\n")
	if week != nil {
		fmt.Fprintf(&sb, "Week %d: %s\n", week.WeekNumber, week.Title)
		if week.Description != "" {
			fmt.Fprintf(&sb, "Focus: %s\n", week.Description)
		}
		appendList(&sb, "Lecture topics", week.LectureTopics)
		appendList(&sb, "Learning outcomes", week.LearningOutcomes)
		appendList(&sb, "Lab activities", week.LabActivities)
		appendList(&sb, "Readings", week.Readings)
	} else {
		fmt.Fprintf(&sb, "Module description: %s\n", module.Description)
		appendList(&sb, "Topics", module.Topics)
	}
	return g.provider.Chat(ctx, []llm.Message{
		{Role: "system", Content: "You write university teaching materials. " + prompt + " Respond with the document body only, no preamble."},
		{Role: "user", Content: sb.String()},
	})
}

func appendList(sb *strings.Builder, label string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(sb, "%s: %s\n", label, strings.Join(items, "; "))
}

func documentTitle(module *course.ModuleData, week *course.WeekPlan, material string) string {
	label := materialLabel(material)
	if week != nil {
		return fmt.Sprintf("Week %d %s: %s", week.WeekNumber, label, week.Title)
	}
	return fmt.Sprintf("%s: %s", label, module.Title)
}

func materialLabel(material string) string {
	parts := strings.Split(material, "_")
	for i, part := range parts {
		if part == "" {
			continue
		}
		parts[i] = strings.ToUpper(part[:1]) + part[1:]
	}
	return strings.Join(parts, " ")
}

// fallbackDocument renders the plan data itself as a structured outline so
// offline runs still produce usable files.
func fallbackDocument(module *course.ModuleData, week *course.WeekPlan, material string) string {
	var sb strings.Builder
	if week != nil {
		if week.Description != "" {
			sb.WriteString(week.Description + "\n\n")
		}
		writeSection(&sb, "Lecture Topics", week.LectureTopics)
		writeSection(&sb, "Learning Outcomes", week.LearningOutcomes)
		switch material {
		case course.MaterialLabMaterials:
			writeSection(&sb, "Exercises", week.LabActivities)
		case course.MaterialSeminar:
			writeSection(&sb, "Discussion Points", week.TutorialActivities)
		case course.MaterialAssessments:
			writeSection(&sb, "Deliverables", week.Deliverables)
		}
		writeSection(&sb, "Readings", week.Readings)
	} else {
		if module.Description != "" {
			sb.WriteString(module.Description + "\n\n")
		}
		writeSection(&sb, "Topics", module.Topics)
		outcomes := make([]string, 0, len(module.LearningOutcomes))
		for _, lo := range module.LearningOutcomes {
			outcomes = append(outcomes, lo.Description)
		}
		writeSection(&sb, "Learning Outcomes", outcomes)
		assessments := make([]string, 0, len(module.Assessments))
		for _, a := range module.Assessments {
			assessments = append(assessments, fmt.Sprintf("%s (%.0f%%)", a.Name, a.Weight))
		}
		writeSection(&sb, "Assessment", assessments)
	}
	if sb.Len() == 0 {
		sb.WriteString("Content to be completed by the module team.\n")
	}
	return sb.String()
}

func writeSection(sb *strings.Builder, heading string, items []string) {
	if len(items) == 0 {
		return
	}
	sb.WriteString("## " + heading + "\n\n")
	for _, item := range items {
		sb.WriteString("- " + item + "\n")
	}
	sb.WriteString("\n")
}
