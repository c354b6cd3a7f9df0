// File path: internal/extract/parser.go
package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tmc/langchaingo/documentloaders"
)

// supported upload extensions for module documents.
var supportedExtensions = map[string]struct{}{
	".pdf":  {},
	".docx": {},
	".doc":  {},
	".txt":  {},
	".md":   {},
}

// SupportedFile reports whether the file name carries a readable extension.
func SupportedFile(name string) bool {
	_, ok := supportedExtensions[strings.ToLower(filepath.Ext(name))]
	return ok
}

// ReadDocument extracts plain text from an uploaded module document. PDF and
// text formats go through the langchaingo loaders; docx is unpacked directly
// from its OOXML container.
func ReadDocument(ctx context.Context, path string) (string, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".pdf":
		return readPDF(ctx, path)
	case ".docx", ".doc":
		return readDocx(path)
	case ".txt", ".md":
		return readText(ctx, path)
	default:
		return "", fmt.Errorf("unsupported document type %q", ext)
	}
}

func readPDF(ctx context.Context, path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		return "", fmt.Errorf("stat pdf: %w", err)
	}
	docs, err := documentloaders.NewPDF(file, info.Size()).Load(ctx)
	if err != nil {
		return "", fmt.Errorf("parse pdf: %w", err)
	}
	var sb strings.Builder
	for _, doc := range docs {
		sb.WriteString(doc.PageContent)
		sb.WriteString("\n")
	}
	return normalizeText(sb.String()), nil
}

func readText(ctx context.Context, path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open text: %w", err)
	}
	defer file.Close()
	docs, err := documentloaders.NewText(file).Load(ctx)
	if err != nil {
		return "", fmt.Errorf("parse text: %w", err)
	}
	var sb strings.Builder
	for _, doc := range docs {
		sb.WriteString(doc.PageContent)
		sb.WriteString("\n")
	}
	return normalizeText(sb.String()), nil
}

// readDocx pulls paragraph text out of word/document.xml. Paragraph ends map
// to newlines so heading structure survives.
func readDocx(path string) (string, error) {
	reader, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("open docx: %w", err)
	}
	defer reader.Close()
	for _, entry := range reader.File {
		if entry.Name != "word/document.xml" {
			continue
		}
		rc, err := entry.Open()
		if err != nil {
			return "", fmt.Errorf("open docx body: %w", err)
		}
		defer rc.Close()
		var buf bytes.Buffer
		if _, err := buf.ReadFrom(rc); err != nil {
			return "", fmt.Errorf("read docx body: %w", err)
		}
		return normalizeText(stripOOXML(buf.String())), nil
	}
	return "", fmt.Errorf("docx has no document body")
}

func stripOOXML(markup string) string {
	markup = strings.ReplaceAll(markup, "</w:p>", "\n")
	var sb strings.Builder
	inTag := false
	for _, r := range markup {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			sb.WriteRune(r)
		}
	}
	text := sb.String()
	text = strings.ReplaceAll(text, "&amp;", "&")
	text = strings.ReplaceAll(text, "&lt;", "<")
	text = strings.ReplaceAll(text, "&gt;", ">")
	text = strings.ReplaceAll(text, "&quot;", `"`)
	text = strings.ReplaceAll(text, "&apos;", "'")
	return text
}

func normalizeText(text string) string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.TrimRight(line, " \t\r")
		if strings.TrimSpace(line) == "" {
			if blank {
				continue
			}
			blank = true
			out = append(out, "")
			continue
		}
		blank = false
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
