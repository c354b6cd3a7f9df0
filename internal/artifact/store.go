// File path: internal/artifact/store.go
package artifact

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// ErrOutsideRoot is returned when a requested path escapes the artifact root.
var ErrOutsideRoot = errors.New("path outside artifact root")

// Info describes a file written into the store.
type Info struct {
	Path string
	Size int64
}

// Store manages per-session files on disk: uploads, generated materials, and
// the export package. Generated files are write-once; regeneration writes a
// new timestamped file and the caller repoints its reference.
type Store struct {
	root string
	mu   sync.Mutex
	seq  uint64
}

// NewStore creates the artifact root if needed.
func NewStore(root string) (*Store, error) {
	trimmed := strings.TrimSpace(root)
	if trimmed == "" {
		return nil, errors.New("artifact root required")
	}
	abs, err := filepath.Abs(trimmed)
	if err != nil {
		return nil, fmt.Errorf("resolve artifact root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact root: %w", err)
	}
	return &Store{root: abs}, nil
}

// Root returns the absolute artifact root directory.
func (s *Store) Root() string {
	if s == nil {
		return ""
	}
	return s.root
}

// SessionDir returns (and creates) the directory for one session.
func (s *Store) SessionDir(sessionID string) (string, error) {
	dir, err := s.sessionPath(sessionID)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create session dir: %w", err)
	}
	return dir, nil
}

// MaterialsDir returns (and creates) the generated-materials directory for a
// session.
func (s *Store) MaterialsDir(sessionID string) (string, error) {
	dir, err := s.SessionDir(sessionID)
	if err != nil {
		return "", err
	}
	materials := filepath.Join(dir, "materials")
	if err := os.MkdirAll(materials, 0o755); err != nil {
		return "", fmt.Errorf("create materials dir: %w", err)
	}
	return materials, nil
}

// SaveUpload streams an uploaded file into the session's uploads directory.
func (s *Store) SaveUpload(sessionID, name string, r io.Reader) (Info, error) {
	dir, err := s.SessionDir(sessionID)
	if err != nil {
		return Info{}, err
	}
	uploads := filepath.Join(dir, "uploads")
	if err := os.MkdirAll(uploads, 0o755); err != nil {
		return Info{}, fmt.Errorf("create uploads dir: %w", err)
	}
	path := filepath.Join(uploads, sanitizeName(name))
	file, err := os.Create(path)
	if err != nil {
		return Info{}, fmt.Errorf("create upload: %w", err)
	}
	size, err := io.Copy(file, r)
	if cerr := file.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return Info{}, fmt.Errorf("write upload: %w", err)
	}
	return Info{Path: path, Size: size}, nil
}

// WriteMaterial stores one generated document. Week 0 holds session-level
// overview documents; weekly files follow the Week_%02d_ naming used by the
// export package.
func (s *Store) WriteMaterial(sessionID string, week int, material, content string) (Info, error) {
	dir, err := s.MaterialsDir(sessionID)
	if err != nil {
		return Info{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	stamp := fmt.Sprintf("%s_%04d", time.Now().UTC().Format("20060102T150405"), s.seq)
	var name string
	if week > 0 {
		name = fmt.Sprintf("Week_%02d_%s_%s.md", week, sanitizeName(material), stamp)
	} else {
		name = fmt.Sprintf("%s_%s.md", sanitizeName(material), stamp)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return Info{}, fmt.Errorf("write material: %w", err)
	}
	return Info{Path: path, Size: int64(len(content))}, nil
}

// PackagePath returns where the session's export archive lives.
func (s *Store) PackagePath(sessionID string) (string, error) {
	dir, err := s.sessionPath(sessionID)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "complete_package.zip"), nil
}

// Validate confirms the path stays inside the artifact root before it is
// opened on behalf of a download request.
func (s *Store) Validate(path string) error {
	abs, err := filepath.Abs(strings.TrimSpace(path))
	if err != nil {
		return fmt.Errorf("resolve artifact path: %w", err)
	}
	rel, err := filepath.Rel(s.root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("%w: %s", ErrOutsideRoot, path)
	}
	return nil
}

// RemoveSession deletes everything stored for a session.
func (s *Store) RemoveSession(sessionID string) error {
	dir, err := s.sessionPath(sessionID)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove session dir: %w", err)
	}
	return nil
}

func (s *Store) sessionPath(sessionID string) (string, error) {
	trimmed := strings.TrimSpace(sessionID)
	if trimmed == "" {
		return "", errors.New("session id required")
	}
	safe := sanitizeName(trimmed)
	if safe == "" || safe != trimmed {
		return "", fmt.Errorf("invalid session id %q", sessionID)
	}
	return filepath.Join(s.root, safe), nil
}

// sanitizeName keeps file names flat: path separators and control characters
// collapse to underscores.
func sanitizeName(name string) string {
	name = filepath.Base(strings.TrimSpace(name))
	var sb strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			sb.WriteRune(r)
		case r == '.' || r == '-' || r == '_':
			sb.WriteRune(r)
		default:
			sb.WriteRune('_')
		}
	}
	return strings.Trim(sb.String(), "._")
}
