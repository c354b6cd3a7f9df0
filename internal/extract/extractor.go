// File path: internal/extract/extractor.go
package extract

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/tmc/langchaingo/textsplitter"

	"github.com/coursekit/coursekit/internal/common"
	"github.com/coursekit/coursekit/internal/course"
	"github.com/coursekit/coursekit/internal/llm"
)

// ErrIncomplete marks an extraction whose result is missing required fields.
// An incomplete extraction never yields a partial ModuleData.
var ErrIncomplete = errors.New("module data incomplete")

const (
	promptChunkSize    = 6000
	promptChunkOverlap = 200
	maxPromptChunks    = 3
)

const extractionSystemPrompt = `You extract structured data from university module specification documents.
Respond with a single JSON object using exactly these keys:
title, code, credits (integer), semester, academic_year, description,
learning_outcomes (array of {id, description, level}),
assessments (array of {name, type, weight, description}),
prerequisites, textbooks, topics, teaching_methods, learning_approaches
(arrays of strings). Use empty values for anything the document omits.`

// Extractor turns an uploaded module document into structured ModuleData.
type Extractor struct {
	provider llm.Provider
}

func New(provider llm.Provider) *Extractor {
	return &Extractor{provider: provider}
}

// Extract parses the document at path and structures it via the language
// model. When no model is available a deterministic fallback derives minimal
// module data from the document text instead.
func (e *Extractor) Extract(ctx context.Context, path string) (*course.ModuleData, error) {
	logger := common.Logger()
	text, err := ReadDocument(ctx, path)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("document %s has no readable text", filepath.Base(path))
	}
	data, err := e.structure(ctx, text)
	if errors.Is(err, llm.ErrUnavailable) {
		logger.Warn("extract: language model unavailable, using fallback module data", "document", filepath.Base(path))
		data = fallbackModuleData(path, text)
	} else if err != nil {
		return nil, fmt.Errorf("structure module data: %w", err)
	}
	if err := validateModuleData(data); err != nil {
		return nil, err
	}
	logger.Info("extract: module data ready", "title", data.Title, "outcomes", len(data.LearningOutcomes), "assessments", len(data.Assessments))
	return data, nil
}

func (e *Extractor) structure(ctx context.Context, text string) (*course.ModuleData, error) {
	if e.provider == nil {
		return nil, llm.ErrUnavailable
	}
	excerpt, err := promptExcerpt(text)
	if err != nil {
		return nil, err
	}
	reply, err := e.provider.Chat(ctx, []llm.Message{
		{Role: "system", Content: extractionSystemPrompt},
		{Role: "user", Content: "Module specification document:\n\n" + excerpt},
	})
	if err != nil {
		return nil, err
	}
	var data course.ModuleData
	if err := llm.DecodeJSON(reply, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// promptExcerpt caps the document at a few leading chunks so oversized
// uploads still fit a completion request.
func promptExcerpt(text string) (string, error) {
	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(promptChunkSize),
		textsplitter.WithChunkOverlap(promptChunkOverlap),
	)
	chunks, err := splitter.SplitText(text)
	if err != nil {
		return "", fmt.Errorf("split document: %w", err)
	}
	if len(chunks) > maxPromptChunks {
		chunks = chunks[:maxPromptChunks]
	}
	return strings.Join(chunks, "\n\n"), nil
}

func validateModuleData(data *course.ModuleData) error {
	if data == nil {
		return fmt.Errorf("%w: no data extracted", ErrIncomplete)
	}
	var missing []string
	if strings.TrimSpace(data.Title) == "" {
		missing = append(missing, "title")
	}
	if len(data.LearningOutcomes) == 0 {
		missing = append(missing, "learning_outcomes")
	}
	if len(data.Assessments) == 0 {
		missing = append(missing, "assessments")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrIncomplete, strings.Join(missing, ", "))
	}
	return nil
}

// fallbackModuleData builds a minimal but valid structure from the document
// itself: title from the first heading-like line, generic outcomes and a
// single coursework assessment.
func fallbackModuleData(path, text string) *course.ModuleData {
	title := ""
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(line, "# "))
		if len(line) > 3 {
			title = line
			break
		}
	}
	if title == "" {
		base := filepath.Base(path)
		title = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return &course.ModuleData{
		Title:       title,
		Credits:     15,
		Description: firstParagraph(text),
		LearningOutcomes: []course.LearningOutcome{
			{ID: "LO1", Description: "Understand the core concepts of " + title, Level: "understand"},
			{ID: "LO2", Description: "Apply the techniques covered in " + title + " to practical problems", Level: "apply"},
			{ID: "LO3", Description: "Critically evaluate approaches within " + title, Level: "evaluate"},
		},
		Assessments: []course.Assessment{
			{Name: "Coursework", Type: "coursework", Weight: 50, Description: "Practical coursework assignment"},
			{Name: "Examination", Type: "exam", Weight: 50, Description: "End of module examination"},
		},
	}
}

func firstParagraph(text string) string {
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if len(para) > 40 {
			if len(para) > 600 {
				para = para[:600]
			}
			return para
		}
	}
	return ""
}
