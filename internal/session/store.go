// File path: internal/session/store.go
package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/coursekit/coursekit/internal/common"
)

// ErrSessionNotFound is returned when a session id has no stored record.
var ErrSessionNotFound = errors.New("session not found")

// Store persists sessions as JSON documents in SQLite. It is the single
// source of truth for session state: all mutation goes through Update, which
// serializes concurrent mutators for the same session.
type Store struct {
	db *sqlx.DB

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Open constructs a Store at the given path, falling back to environment
// configuration when the path is empty.
func Open(path string) (*Store, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}
	if trimmed := strings.TrimSpace(path); trimmed != "" {
		cfg.Path = trimmed
	}
	return OpenWithConfig(cfg)
}

// OpenWithConfig constructs a Store using the provided configuration and
// migrates the schema.
func OpenWithConfig(cfg Config) (*Store, error) {
	cfg.applyDefaults()
	abs, err := filepath.Abs(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("resolve session db path: %w", err)
	}
	busy := int(cfg.BusyTimeout / time.Millisecond)
	if busy <= 0 {
		busy = 5000
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=foreign_keys(1)", abs, busy)
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open session db: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.BusyTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping session db: %w", err)
	}

	store := &Store{db: db, locks: make(map[string]*sync.Mutex)}
	if err := store.migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// Close releases the underlying database resources.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

var schemaStatements = []string{
	`PRAGMA journal_mode = WAL;`,
	`CREATE TABLE IF NOT EXISTS sessions (
                session_id TEXT PRIMARY KEY,
                data TEXT NOT NULL,
                created_at TEXT NOT NULL,
                last_activity TEXT NOT NULL
        );`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_last_activity ON sessions(last_activity);`,
}

func (s *Store) migrate(ctx context.Context) error {
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	for i, stmt := range schemaStatements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			tx.Rollback()
			return fmt.Errorf("execute schema statement %d: %w", i+1, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration: %w", err)
	}
	return nil
}

func (s *Store) sessionLock(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[id] = lock
	}
	return lock
}

func (s *Store) dropLock(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.locks, id)
}

// Create inserts a fresh session at StageCreated and returns it.
func (s *Store) Create(ctx context.Context) (*Session, error) {
	now := time.Now().UTC()
	sess := &Session{
		ID:        uuid.NewString(),
		Stage:     StageCreated,
		CreatedAt: now,
		UpdatedAt: now,
	}
	data, err := json.Marshal(sess)
	if err != nil {
		return nil, fmt.Errorf("encode session: %w", err)
	}
	stamp := now.Format(time.RFC3339Nano)
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (session_id, data, created_at, last_activity) VALUES (?, ?, ?, ?)`,
		sess.ID, string(data), stamp, stamp)
	if err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}
	common.Logger().Info("session: created", "session", sess.ID)
	return sess, nil
}

// Get loads a session by id.
func (s *Store) Get(ctx context.Context, id string) (*Session, error) {
	var data string
	err := s.db.GetContext(ctx, &data, `SELECT data FROM sessions WHERE session_id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %s: %w", id, ErrSessionNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", id, err)
	}
	return decodeSession(data)
}

// Update applies mutate to the stored session under the session's lock and
// commits the result in one statement. When mutate returns an error nothing
// is written and the error is returned unchanged. The committed row reflects
// exactly one full application of the mutator.
func (s *Store) Update(ctx context.Context, id string, mutate func(*Session) error) (*Session, error) {
	lock := s.sessionLock(id)
	lock.Lock()
	defer lock.Unlock()

	sess, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := mutate(sess); err != nil {
		return nil, err
	}
	sess.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(sess)
	if err != nil {
		return nil, fmt.Errorf("encode session %s: %w", id, err)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET data = ?, last_activity = ? WHERE session_id = ?`,
		string(data), sess.UpdatedAt.Format(time.RFC3339Nano), id)
	if err != nil {
		return nil, fmt.Errorf("store session %s: %w", id, err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return nil, fmt.Errorf("session %s: %w", id, ErrSessionNotFound)
	}
	return sess, nil
}

// Touch refreshes the session's activity stamp without changing its state.
func (s *Store) Touch(ctx context.Context, id string) error {
	stamp := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET last_activity = ? WHERE session_id = ?`, stamp, id)
	if err != nil {
		return fmt.Errorf("touch session %s: %w", id, err)
	}
	return nil
}

// Delete removes the session record.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE session_id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("session %s: %w", id, ErrSessionNotFound)
	}
	s.dropLock(id)
	common.Logger().Info("session: deleted", "session", id)
	return nil
}

// List returns all sessions ordered by most recent activity.
func (s *Store) List(ctx context.Context) ([]*Session, error) {
	var rows []string
	err := s.db.SelectContext(ctx, &rows, `SELECT data FROM sessions ORDER BY last_activity DESC`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	out := make([]*Session, 0, len(rows))
	for _, data := range rows {
		sess, err := decodeSession(data)
		if err != nil {
			common.Logger().Warn("session: skipping undecodable record", "error", err)
			continue
		}
		out = append(out, sess)
	}
	return out, nil
}

// DeleteIdle removes sessions whose last activity is older than ttl and
// returns their ids so callers can clean up files on disk.
func (s *Store) DeleteIdle(ctx context.Context, ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		return nil, nil
	}
	cutoff := time.Now().UTC().Add(-ttl).Format(time.RFC3339Nano)
	var ids []string
	if err := s.db.SelectContext(ctx, &ids,
		`SELECT session_id FROM sessions WHERE last_activity < ?`, cutoff); err != nil {
		return nil, fmt.Errorf("find idle sessions: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	for _, id := range ids {
		if err := s.Delete(ctx, id); err != nil && !errors.Is(err, ErrSessionNotFound) {
			return nil, err
		}
	}
	return ids, nil
}

func decodeSession(data string) (*Session, error) {
	var sess Session
	if err := json.Unmarshal([]byte(data), &sess); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &sess, nil
}
