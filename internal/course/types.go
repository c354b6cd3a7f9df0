// File path: internal/course/types.go
package course

import "strings"

// LearningOutcome is a single module-level outcome from the specification
// document.
type LearningOutcome struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Level       string `json:"level,omitempty"`
}

// Assessment describes one assessed component of the module.
type Assessment struct {
	Name        string  `json:"name"`
	Type        string  `json:"type,omitempty"`
	Weight      float64 `json:"weight,omitempty"`
	Description string  `json:"description,omitempty"`
}

// ModuleData is the structured view of an uploaded module specification.
type ModuleData struct {
	Title             string            `json:"title"`
	Code              string            `json:"code,omitempty"`
	Credits           int               `json:"credits,omitempty"`
	Semester          string            `json:"semester,omitempty"`
	AcademicYear      string            `json:"academic_year,omitempty"`
	Description       string            `json:"description,omitempty"`
	LearningOutcomes  []LearningOutcome `json:"learning_outcomes"`
	Assessments       []Assessment      `json:"assessments"`
	Prerequisites     []string          `json:"prerequisites,omitempty"`
	Textbooks         []string          `json:"textbooks,omitempty"`
	Topics            []string          `json:"topics,omitempty"`
	TeachingMethods   []string          `json:"teaching_methods,omitempty"`
	LearningApproach  []string          `json:"learning_approaches,omitempty"`
	SupplementaryText string            `json:"supplementary_text,omitempty"`
}

// WeekPlan is one week of the teaching plan. Week numbers are 1-based and
// contiguous within a plan.
type WeekPlan struct {
	WeekNumber         int      `json:"week_number"`
	Title              string   `json:"title"`
	Description        string   `json:"description,omitempty"`
	LearningOutcomes   []string `json:"learning_outcomes,omitempty"`
	LectureTopics      []string `json:"lecture_topics,omitempty"`
	TutorialActivities []string `json:"tutorial_activities,omitempty"`
	LabActivities      []string `json:"lab_activities,omitempty"`
	Readings           []string `json:"readings,omitempty"`
	Deliverables       []string `json:"deliverables,omitempty"`
	TeachingNotes      string   `json:"teaching_notes,omitempty"`
}

// Material types generated per week.
const (
	MaterialLectureNotes  = "lecture_notes"
	MaterialLectureSlides = "lecture_slides"
	MaterialTranscripts   = "transcripts"
	MaterialLabMaterials  = "lab_materials"
	MaterialAssessments   = "assessments"
	MaterialSeminar       = "seminar_materials"
)

// Session-level overview documents generated once per module.
const (
	MaterialModuleOverview  = "module_overview"
	MaterialInstructorGuide = "instructor_guide"
)

var weeklyMaterials = []string{
	MaterialLectureNotes,
	MaterialLectureSlides,
	MaterialTranscripts,
	MaterialLabMaterials,
	MaterialAssessments,
	MaterialSeminar,
}

var overviewMaterials = []string{
	MaterialModuleOverview,
	MaterialInstructorGuide,
}

// WeeklyMaterials returns the material types produced for every approved week.
func WeeklyMaterials() []string {
	return append([]string(nil), weeklyMaterials...)
}

// OverviewMaterials returns the session-level material types.
func OverviewMaterials() []string {
	return append([]string(nil), overviewMaterials...)
}

// KnownMaterial reports whether name is a recognised material type.
func KnownMaterial(name string) bool {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, m := range weeklyMaterials {
		if m == name {
			return true
		}
	}
	for _, m := range overviewMaterials {
		if m == name {
			return true
		}
	}
	return false
}

// NormalizeMaterials lowercases, trims, de-duplicates, and filters the
// requested material names to weekly types. An empty request selects every
// weekly type.
func NormalizeMaterials(requested []string) []string {
	if len(requested) == 0 {
		return WeeklyMaterials()
	}
	seen := make(map[string]struct{}, len(requested))
	out := make([]string, 0, len(requested))
	for _, name := range requested {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		for _, m := range weeklyMaterials {
			if m == name {
				seen[name] = struct{}{}
				out = append(out, name)
				break
			}
		}
	}
	return out
}
