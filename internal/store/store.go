// Package store persists chat messages and project file manifests. Backed by
// postgres when a DSN is configured, otherwise by a JSON file; manifest reads
// go through an LRU cache either way.
package store

import (
	"context"
	"database/sql"
	"os"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// ChatMessage is one persisted user/assistant turn.
type ChatMessage struct {
	ProjectID string    `json:"projectId"`
	UserID    string    `json:"userId"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// Manifest is a project's cached file listing, path -> content.
type Manifest map[string]string

type Store struct {
	path string
	db   *sql.DB

	loadOnce sync.Once
	mu       sync.RWMutex
	messages []ChatMessage
	byID     map[string]Manifest

	schemaOnce sync.Once
	schemaErr  error

	manifestCache *lru.Cache[string, Manifest]
}

// New creates a file-backed store at path.
func New(path string) *Store {
	cache, _ := lru.New[string, Manifest](256)
	return &Store{
		path:          path,
		byID:          map[string]Manifest{},
		manifestCache: cache,
	}
}

// NewPostgres creates a postgres-backed store.
func NewPostgres(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", strings.TrimSpace(dsn))
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	cache, _ := lru.New[string, Manifest](256)
	return &Store{db: db, byID: map[string]Manifest{}, manifestCache: cache}, nil
}

// NewFromEnv prefers MESSAGE_STORE_PG_DSN and falls back to the JSON file.
func NewFromEnv(path string) *Store {
	dsn := strings.TrimSpace(os.Getenv("MESSAGE_STORE_PG_DSN"))
	if dsn == "" {
		return New(path)
	}
	s, err := NewPostgres(dsn)
	if err != nil {
		return New(path)
	}
	return s
}

// AppendMessage records one chat turn.
func (s *Store) AppendMessage(ctx context.Context, m ChatMessage) error {
	if s == nil {
		return nil
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	if s.db != nil {
		return s.appendMessageDB(ctx, m)
	}
	return s.appendMessageFile(m)
}

// RecentUserMessages returns user-message texts for project+user newer than
// the window, newest last. Used by the duplicate-prompt guard.
func (s *Store) RecentUserMessages(ctx context.Context, projectID, userID string, window time.Duration) ([]string, error) {
	if s == nil {
		return nil, nil
	}
	if s.db != nil {
		return s.recentUserMessagesDB(ctx, projectID, userID, window)
	}
	return s.recentUserMessagesFile(projectID, userID, window), nil
}

// GetManifest returns a project's cached file manifest.
func (s *Store) GetManifest(ctx context.Context, projectID string) (Manifest, bool) {
	if s == nil {
		return nil, false
	}
	if m, ok := s.manifestCache.Get(projectID); ok {
		return m, true
	}
	var m Manifest
	var ok bool
	if s.db != nil {
		m, ok = s.getManifestDB(ctx, projectID)
	} else {
		m, ok = s.getManifestFile(projectID)
	}
	if ok {
		s.manifestCache.Add(projectID, m)
	}
	return m, ok
}

// PutManifest stores a project's file manifest and refreshes the cache.
func (s *Store) PutManifest(ctx context.Context, projectID string, m Manifest) error {
	if s == nil {
		return nil
	}
	s.manifestCache.Add(projectID, m)
	if s.db != nil {
		return s.putManifestDB(ctx, projectID, m)
	}
	return s.putManifestFile(projectID, m)
}

// Close releases the database handle, if any.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
