package filestore

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/Long18349276/Obsidian-Chat/internal/chat"
)

// MigrateLegacy moves sessions from the legacy flat layout
// (<root>/<chatId>.json) into the agent/topic layout. It scans only the
// root's immediate files, migrates each independently, and never fails the
// whole pass for one bad file. Call it once at startup and await it before
// listing sessions; already-migrated files no longer exist in the legacy
// location, so re-running is harmless.
func (s *Store) MigrateLegacy(ctx context.Context) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("Legacy migration: failed to list root %s: %v", s.root, err)
		}
		return
	}

	migrated := 0
	for _, entry := range entries {
		if ctx.Err() != nil {
			s.logger.Warn("Legacy migration interrupted: %v", ctx.Err())
			return
		}
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		if s.migrateLegacyFile(entry.Name()) {
			migrated++
		}
	}

	if migrated > 0 {
		s.logger.Info("Migrated %d legacy session file(s) to the topic layout", migrated)
	}
}

// migrateLegacyFile moves one flat-layout file through the new layout and
// deletes the original. Errors are logged and the file is left in place for
// the next attempt.
func (s *Store) migrateLegacyFile(name string) bool {
	path := filepath.Join(s.root, name)
	data, err := os.ReadFile(path)
	if err != nil {
		s.logger.Warn("Legacy migration: failed to read %s: %v", name, err)
		return false
	}

	var session chat.Session
	if err := json.Unmarshal(data, &session); err != nil {
		s.logger.Warn("Legacy migration: failed to decode %s: %v", name, err)
		return false
	}

	if session.ID == "" {
		session.ID = strings.TrimSuffix(name, ".json")
	}
	if session.AgentID == "" {
		session.AgentID = chat.DefaultAgentID
	}

	if err := s.Save(&session); err != nil {
		s.logger.Warn("Legacy migration: failed to save %s: %v", name, err)
		return false
	}

	if err := os.Remove(path); err != nil {
		s.logger.Warn("Legacy migration: failed to remove %s: %v", name, err)
		return false
	}

	s.logger.Debug("Migrated legacy session %s (agent %s)", session.ID, session.AgentID)
	return true
}
