// File path: internal/export/exporter.go
package export

import (
	"archive/zip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/coursekit/coursekit/internal/artifact"
	"github.com/coursekit/coursekit/internal/common"
	"github.com/coursekit/coursekit/internal/session"
)

// ManifestEntry records the provenance of one packaged file.
type ManifestEntry struct {
	Name     string `json:"name"`
	Week     int    `json:"week,omitempty"`
	Material string `json:"material"`
	Title    string `json:"title,omitempty"`
	Size     int64  `json:"size"`
	Status   string `json:"status"`
}

// Manifest describes the contents of an export package.
type Manifest struct {
	SessionID   string          `json:"session_id"`
	ModuleTitle string          `json:"module_title,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	Weeks       int             `json:"weeks"`
	Files       []ManifestEntry `json:"files"`
}

// Exporter packages a session's current artifacts into a zip archive.
type Exporter struct {
	artifacts *artifact.Store
}

func New(artifacts *artifact.Store) *Exporter {
	return &Exporter{artifacts: artifacts}
}

// Export writes complete_package.zip for the session, containing the latest
// artifact of every completed unit plus a manifest.json. The archive is
// written to a temp file and renamed so a concurrent download never sees a
// partial package.
func (e *Exporter) Export(ctx context.Context, sess *session.Session) (*session.ExportResult, error) {
	if sess == nil {
		return nil, fmt.Errorf("session required")
	}
	logger := common.Logger()
	manifest := buildManifest(sess)
	if len(manifest.Files) == 0 {
		return nil, fmt.Errorf("session %s has no completed materials to export", sess.ID)
	}

	finalPath, err := e.artifacts.PackagePath(sess.ID)
	if err != nil {
		return nil, err
	}
	tempPath := finalPath + ".tmp"
	file, err := os.OpenFile(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create package: %w", err)
	}
	zipWriter := zip.NewWriter(file)
	logger.Info("export: packaging session", "session", sess.ID, "files", len(manifest.Files))

	writeErr := func() error {
		for _, entry := range manifest.Files {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			bundle := sess.Generated[entry.Week]
			unit := bundle[entry.Material]
			if unit.Artifact == nil {
				continue
			}
			if err := e.addFile(zipWriter, entry.Name, unit.Artifact.Path); err != nil {
				return err
			}
		}
		data, err := json.MarshalIndent(manifest, "", "  ")
		if err != nil {
			return fmt.Errorf("encode manifest: %w", err)
		}
		writer, err := zipWriter.Create("manifest.json")
		if err != nil {
			return err
		}
		_, err = writer.Write(data)
		return err
	}()
	if writeErr != nil {
		_ = zipWriter.Close()
		_ = file.Close()
		_ = os.Remove(tempPath)
		return nil, fmt.Errorf("package session: %w", writeErr)
	}
	if err := zipWriter.Close(); err != nil {
		_ = file.Close()
		_ = os.Remove(tempPath)
		return nil, fmt.Errorf("finalize package: %w", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(tempPath)
		return nil, fmt.Errorf("close package: %w", err)
	}
	if err := os.Rename(tempPath, finalPath); err != nil {
		_ = os.Remove(tempPath)
		return nil, fmt.Errorf("finalize package: %w", err)
	}
	info, err := os.Stat(finalPath)
	if err != nil {
		return nil, fmt.Errorf("stat package: %w", err)
	}
	logger.Info("export: package ready", "session", sess.ID, "path", finalPath, "size", info.Size())
	return &session.ExportResult{
		Path:      finalPath,
		Size:      info.Size(),
		FileCount: len(manifest.Files),
		CreatedAt: manifest.CreatedAt,
	}, nil
}

func (e *Exporter) addFile(zipWriter *zip.Writer, name, path string) error {
	if err := e.artifacts.Validate(path); err != nil {
		return err
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("locate artifact %s: %w", name, err)
	}
	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	header.Name = name
	header.Method = zip.Deflate
	writer, err := zipWriter.CreateHeader(header)
	if err != nil {
		return err
	}
	inFile, err := os.Open(path)
	if err != nil {
		return err
	}
	_, copyErr := io.Copy(writer, inFile)
	closeErr := inFile.Close()
	if copyErr != nil {
		return copyErr
	}
	return closeErr
}

// buildManifest collects completed units in week order. Archive names keep
// the Week_%02d_ prefix; session-level documents sit at the archive root.
func buildManifest(sess *session.Session) Manifest {
	manifest := Manifest{
		SessionID: sess.ID,
		CreatedAt: time.Now().UTC(),
		Weeks:     len(sess.ApprovedWeeks),
	}
	if sess.Module != nil {
		manifest.ModuleTitle = sess.Module.Title
	}
	weeks := make([]int, 0, len(sess.Generated))
	for week := range sess.Generated {
		weeks = append(weeks, week)
	}
	sort.Ints(weeks)
	for _, week := range weeks {
		bundle := sess.Generated[week]
		materials := make([]string, 0, len(bundle))
		for material := range bundle {
			materials = append(materials, material)
		}
		sort.Strings(materials)
		for _, material := range materials {
			unit := bundle[material]
			if unit.Status != session.UnitCompleted || unit.Artifact == nil {
				continue
			}
			name := filepath.Base(unit.Artifact.Path)
			if week > 0 {
				name = fmt.Sprintf("Week_%02d/%s", week, name)
			}
			manifest.Files = append(manifest.Files, ManifestEntry{
				Name:     name,
				Week:     week,
				Material: material,
				Title:    unit.Artifact.Title,
				Size:     unit.Artifact.Size,
				Status:   unit.Status,
			})
		}
	}
	return manifest
}
