package store

import (
	"context"
	"encoding/json"
	"time"
)

func (s *Store) ensureSchema(ctx context.Context) error {
	s.schemaOnce.Do(func() {
		_, err := s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS chat_messages (
    id         BIGSERIAL PRIMARY KEY,
    project_id TEXT NOT NULL,
    user_id    TEXT NOT NULL,
    role       TEXT NOT NULL,
    content    TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS chat_messages_recent
    ON chat_messages (project_id, user_id, created_at DESC);
CREATE TABLE IF NOT EXISTS project_manifests (
    project_id TEXT PRIMARY KEY,
    manifest   JSONB NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`)
		s.schemaErr = err
	})
	return s.schemaErr
}

func (s *Store) appendMessageDB(ctx context.Context, m ChatMessage) error {
	if err := s.ensureSchema(ctx); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_messages (project_id, user_id, role, content, created_at) VALUES ($1, $2, $3, $4, $5)`,
		m.ProjectID, m.UserID, m.Role, m.Content, m.CreatedAt)
	return err
}

func (s *Store) recentUserMessagesDB(ctx context.Context, projectID, userID string, window time.Duration) ([]string, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT content FROM chat_messages
		 WHERE project_id = $1 AND user_id = $2 AND role = 'user' AND created_at > $3
		 ORDER BY created_at ASC`,
		projectID, userID, time.Now().Add(-window))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var content string
		if err := rows.Scan(&content); err != nil {
			return nil, err
		}
		out = append(out, content)
	}
	return out, rows.Err()
}

func (s *Store) getManifestDB(ctx context.Context, projectID string) (Manifest, bool) {
	if err := s.ensureSchema(ctx); err != nil {
		return nil, false
	}
	var raw []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT manifest FROM project_manifests WHERE project_id = $1`, projectID).Scan(&raw)
	if err != nil {
		return nil, false
	}
	var m Manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, false
	}
	return m, true
}

func (s *Store) putManifestDB(ctx context.Context, projectID string, m Manifest) error {
	if err := s.ensureSchema(ctx); err != nil {
		return err
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO project_manifests (project_id, manifest, updated_at) VALUES ($1, $2, now())
		 ON CONFLICT (project_id) DO UPDATE SET manifest = EXCLUDED.manifest, updated_at = now()`,
		projectID, raw)
	return err
}
