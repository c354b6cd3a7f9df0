// File path: internal/course/plan.go
package course

import (
	"fmt"
	"strings"
)

// ClonePlan deep-copies a weekly plan so later edits to the draft cannot
// reach an approved snapshot.
func ClonePlan(weeks []WeekPlan) []WeekPlan {
	if weeks == nil {
		return nil
	}
	out := make([]WeekPlan, len(weeks))
	for i, week := range weeks {
		copied := week
		copied.LearningOutcomes = append([]string(nil), week.LearningOutcomes...)
		copied.LectureTopics = append([]string(nil), week.LectureTopics...)
		copied.TutorialActivities = append([]string(nil), week.TutorialActivities...)
		copied.LabActivities = append([]string(nil), week.LabActivities...)
		copied.Readings = append([]string(nil), week.Readings...)
		copied.Deliverables = append([]string(nil), week.Deliverables...)
		out[i] = copied
	}
	return out
}

// CloneModuleData deep-copies extracted module data.
func CloneModuleData(data *ModuleData) *ModuleData {
	if data == nil {
		return nil
	}
	copied := *data
	copied.LearningOutcomes = append([]LearningOutcome(nil), data.LearningOutcomes...)
	copied.Assessments = append([]Assessment(nil), data.Assessments...)
	copied.Prerequisites = append([]string(nil), data.Prerequisites...)
	copied.Textbooks = append([]string(nil), data.Textbooks...)
	copied.Topics = append([]string(nil), data.Topics...)
	copied.TeachingMethods = append([]string(nil), data.TeachingMethods...)
	copied.LearningApproach = append([]string(nil), data.LearningApproach...)
	return &copied
}

// NormalizePlan trims titles, drops empty weeks, and renumbers the remainder
// into a contiguous 1-based range preserving order. It returns an error when
// nothing usable remains.
func NormalizePlan(weeks []WeekPlan) ([]WeekPlan, error) {
	out := make([]WeekPlan, 0, len(weeks))
	for _, week := range weeks {
		week.Title = strings.TrimSpace(week.Title)
		week.Description = strings.TrimSpace(week.Description)
		if week.Title == "" && len(week.LectureTopics) == 0 {
			continue
		}
		out = append(out, week)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("plan has no usable weeks")
	}
	for i := range out {
		out[i].WeekNumber = i + 1
	}
	return out, nil
}

// ValidatePlan checks the invariants an approved plan must satisfy: at least
// one week, contiguous 1-based numbering, and a title per week.
func ValidatePlan(weeks []WeekPlan) error {
	if len(weeks) == 0 {
		return fmt.Errorf("at least one week required")
	}
	for i, week := range weeks {
		if week.WeekNumber != i+1 {
			return fmt.Errorf("week %d numbered %d: numbering must be contiguous from 1", i+1, week.WeekNumber)
		}
		if strings.TrimSpace(week.Title) == "" {
			return fmt.Errorf("week %d has no title", week.WeekNumber)
		}
	}
	return nil
}

// FindWeek returns the plan entry for the given week number.
func FindWeek(weeks []WeekPlan, number int) (WeekPlan, bool) {
	for _, week := range weeks {
		if week.WeekNumber == number {
			return week, true
		}
	}
	return WeekPlan{}, false
}
