// File path: internal/api/session_handler.go
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"sort"
	"strings"

	chi "github.com/go-chi/chi/v5"

	"github.com/coursekit/coursekit/internal/common"
	"github.com/coursekit/coursekit/internal/course"
	"github.com/coursekit/coursekit/internal/session"
	"github.com/coursekit/coursekit/internal/workflow"
)

// SessionSummary is the dashboard view of one session.
type SessionSummary struct {
	SessionID       string        `json:"session_id"`
	Stage           session.Stage `json:"stage"`
	ModuleTitle     string        `json:"module_title,omitempty"`
	Weeks           int           `json:"weeks"`
	PercentComplete int           `json:"percent_complete"`
	UpdatedAt       string        `json:"updated_at"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.engine.Create(r.Context())
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.engine.List(r.Context())
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}
	summaries := make([]SessionSummary, 0, len(sessions))
	for _, sess := range sessions {
		summary := SessionSummary{
			SessionID:       sess.ID,
			Stage:           sess.Stage,
			Weeks:           len(sess.WeekPlans),
			PercentComplete: workflow.Project(sess).PercentComplete,
			UpdatedAt:       sess.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		}
		if sess.Module != nil {
			summary.ModuleTitle = sess.Module.Title
		}
		summaries = append(summaries, summary)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"sessions": summaries})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.engine.Get(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Delete(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		writeError(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("parse upload: %w", err))
		return
	}
	moduleFile, moduleHeader, err := r.FormFile("module_file")
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("module_file is required"))
		return
	}
	defer moduleFile.Close()

	var textbooks []workflow.UploadFile
	if r.MultipartForm != nil {
		for _, header := range r.MultipartForm.File["textbook_files"] {
			book, err := header.Open()
			if err != nil {
				writeError(w, http.StatusBadRequest, fmt.Errorf("open textbook %s: %w", header.Filename, err))
				return
			}
			defer book.Close()
			textbooks = append(textbooks, workflow.UploadFile{Name: header.Filename, Reader: book})
		}
	}

	sess, err := s.engine.Upload(r.Context(), chi.URLParam(r, "sessionID"),
		workflow.UploadFile{Name: moduleHeader.Filename, Reader: moduleFile}, textbooks)
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleGeneratePlan(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Weeks int `json:"weeks"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}
	sess, err := s.engine.GeneratePlan(r.Context(), chi.URLParam(r, "sessionID"), req.Weeks)
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleEditPlan(w http.ResponseWriter, r *http.Request) {
	body, err := validatePlanPayload(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var req struct {
		Weeks []course.WeekPlan `json:"weeks"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	sess, err := s.engine.EditPlan(r.Context(), chi.URLParam(r, "sessionID"), req.Weeks)
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleApprovePlan(w http.ResponseWriter, r *http.Request) {
	sess, err := s.engine.ApprovePlan(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleStartGeneration(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Materials []string `json:"materials"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}
	sess, err := s.engine.StartGeneration(r.Context(), chi.URLParam(r, "sessionID"), req.Materials)
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusAccepted, sess)
}

func (s *Server) handleRegenerateWeek(w http.ResponseWriter, r *http.Request) {
	var req struct {
		WeekNumber    int      `json:"week_number"`
		MaterialTypes []string `json:"material_types"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	sess, err := s.engine.RegenerateWeek(r.Context(), chi.URLParam(r, "sessionID"), req.WeekNumber, req.MaterialTypes)
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusAccepted, sess)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.engine.Status(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	sess, err := s.engine.Export(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	path, err := s.engine.PackagePath(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}
	name := filepath.Base(path)
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	http.ServeFile(w, r, path)
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	entries := append([]common.LogEntry(nil), common.LogEntries()...)
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Time.Equal(entries[j].Time) {
			if entries[i].Component == entries[j].Component {
				return entries[i].Message < entries[j].Message
			}
			return entries[i].Component < entries[j].Component
		}
		return entries[i].Time.Before(entries[j].Time)
	})
	if component := strings.TrimSpace(r.URL.Query().Get("component")); component != "" {
		filtered := entries[:0]
		for _, entry := range entries {
			if strings.EqualFold(entry.Component, component) {
				filtered = append(filtered, entry)
			}
		}
		entries = filtered
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"entries": entries})
}
