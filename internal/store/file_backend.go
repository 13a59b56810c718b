package store

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"time"
)

type fileState struct {
	Messages  []ChatMessage       `json:"messages"`
	Manifests map[string]Manifest `json:"manifests"`
}

func (s *Store) ensureLoadedFile() {
	s.loadOnce.Do(func() {
		if s.path == "" {
			return
		}
		raw, err := os.ReadFile(s.path)
		if err != nil {
			return
		}
		var st fileState
		if err := json.Unmarshal(raw, &st); err != nil {
			log.Printf("store: corrupt state file %s: %v", s.path, err)
			return
		}
		s.mu.Lock()
		s.messages = st.Messages
		if st.Manifests != nil {
			s.byID = st.Manifests
		}
		s.mu.Unlock()
	})
}

func (s *Store) saveFile() {
	if s.path == "" {
		return
	}
	s.mu.RLock()
	st := fileState{Messages: s.messages, Manifests: s.byID}
	raw, err := json.MarshalIndent(st, "", "  ")
	s.mu.RUnlock()
	if err != nil {
		return
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return
	}
	if err := os.WriteFile(s.path, raw, 0o644); err != nil {
		log.Printf("store: save %s: %v", s.path, err)
	}
}

func (s *Store) appendMessageFile(m ChatMessage) error {
	s.ensureLoadedFile()
	s.mu.Lock()
	s.messages = append(s.messages, m)
	s.mu.Unlock()
	s.saveFile()
	return nil
}

func (s *Store) recentUserMessagesFile(projectID, userID string, window time.Duration) []string {
	s.ensureLoadedFile()
	cutoff := time.Now().Add(-window)
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for _, m := range s.messages {
		if m.ProjectID == projectID && m.UserID == userID && m.Role == "user" && m.CreatedAt.After(cutoff) {
			out = append(out, m.Content)
		}
	}
	return out
}

func (s *Store) getManifestFile(projectID string) (Manifest, bool) {
	s.ensureLoadedFile()
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.byID[projectID]
	return m, ok
}

func (s *Store) putManifestFile(projectID string, m Manifest) error {
	s.ensureLoadedFile()
	s.mu.Lock()
	s.byID[projectID] = m
	s.mu.Unlock()
	s.saveFile()
	return nil
}
