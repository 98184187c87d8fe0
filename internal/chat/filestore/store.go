// Package filestore persists chat sessions as pretty-printed JSON files under
// the hierarchical agent/topic layout.
package filestore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Long18349276/Obsidian-Chat/internal/chat"
	ocerrors "github.com/Long18349276/Obsidian-Chat/internal/errors"
	"github.com/Long18349276/Obsidian-Chat/internal/id"
	"github.com/Long18349276/Obsidian-Chat/internal/logging"
)

// Store owns the on-disk session tree. A corrupt or unreadable file degrades
// to empty/not-found on reads so one bad session never takes down the whole
// history; write failures are returned to the caller.
type Store struct {
	root   string
	logger logging.Logger
}

// New creates a store rooted at root. The root directory is created if
// absent; failure to create it is logged, not returned, since it only
// manifests later as an empty history.
func New(root string) *Store {
	if strings.HasPrefix(root, "~/") {
		home, _ := os.UserHomeDir()
		root = filepath.Join(home, root[2:])
	}
	s := &Store{
		root:   root,
		logger: logging.NewComponentLogger("SessionFileStore"),
	}
	s.EnsureRoot()
	return s
}

// Root returns the storage root directory.
func (s *Store) Root() string {
	return s.root
}

// EnsureRoot creates the root directory if absent. Safe to call repeatedly.
func (s *Store) EnsureRoot() {
	if err := os.MkdirAll(s.root, 0755); err != nil {
		s.logger.Warn("Failed to create storage root %s: %v", s.root, err)
	}
}

// CreateNew constructs a session for agentID with a fresh id and the title
// sentinel. The session is not persisted; callers must Save explicitly.
func (s *Store) CreateNew(agentID string) *chat.Session {
	now := chat.NowMillis()
	return &chat.Session{
		ID:        id.NewChatID(),
		AgentID:   agentID,
		Title:     chat.DefaultTitle,
		CreatedAt: now,
		UpdatedAt: now,
		Messages:  []chat.Message{},
	}
}

// Save writes the full serialized session, overwriting prior content. Parent
// directories are created as needed. Writes are in place; the host filesystem
// is trusted to be crash-safe for single-file writes, so an interrupted write
// may be visible as either the old or a corrupt new file and readers must
// tolerate both.
func (s *Store) Save(session *chat.Session) error {
	if session == nil || session.ID == "" || session.AgentID == "" {
		return fmt.Errorf("session requires id and agentId")
	}

	topicDir := chat.TopicDir(s.root, session.AgentID, session.ID)
	if err := os.MkdirAll(topicDir, 0755); err != nil {
		return &ocerrors.StorageWriteError{Path: topicDir, Err: err}
	}

	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return &ocerrors.StorageWriteError{Path: topicDir, Err: err}
	}

	path := chat.HistoryFile(s.root, session.AgentID, session.ID)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return &ocerrors.StorageWriteError{Path: path, Err: err}
	}
	return nil
}

// Load resolves a session by chat id. With agentID given the history file
// path is computed directly. With agentID empty every agent directory is
// scanned for a matching topic directory; os.ReadDir returns entries sorted
// by name, so on a topic-id collision across agents the lexicographically
// first agent directory wins.
//
// Deprecated: the agent-less mode exists only for callers predating
// agent-scoped sessions. Pass the agent id wherever it is known.
func (s *Store) Load(chatID, agentID string) (*chat.Session, error) {
	if agentID != "" {
		return s.readSession(chat.HistoryFile(s.root, agentID, chatID))
	}

	topicDir, ok := s.findTopicDir(chatID)
	if !ok {
		return nil, ocerrors.ErrNotFound
	}
	return s.readSession(filepath.Join(topicDir, "history.json"))
}

// LoadAll reads every session under the root, skipping files that fail to
// parse, sorted most recently updated first.
func (s *Store) LoadAll() []*chat.Session {
	var sessions []*chat.Session
	for _, agentDir := range s.agentDirs() {
		sessions = append(sessions, s.readTopics(filepath.Join(agentDir, "topics"))...)
	}
	sortByUpdatedAt(sessions)
	return sessions
}

// ListByAgent reads one agent's sessions, most recently updated first. An
// agent with no topics directory yet yields an empty slice.
func (s *Store) ListByAgent(agentID string) []*chat.Session {
	sessions := s.readTopics(chat.TopicsDir(s.root, agentID))
	sortByUpdatedAt(sessions)
	return sessions
}

// Delete removes a session's entire topic subtree. A session that cannot be
// resolved is a logged no-op; deleting something absent is not an error.
func (s *Store) Delete(chatID, agentID string) error {
	var topicDir string
	if agentID != "" {
		topicDir = chat.TopicDir(s.root, agentID, chatID)
		if _, err := os.Stat(topicDir); err != nil {
			s.logger.Warn("Delete: session %s not found for agent %s", chatID, agentID)
			return nil
		}
	} else {
		var ok bool
		topicDir, ok = s.findTopicDir(chatID)
		if !ok {
			s.logger.Warn("Delete: session %s not found under any agent", chatID)
			return nil
		}
	}

	if err := os.RemoveAll(topicDir); err != nil {
		return &ocerrors.StorageWriteError{Path: topicDir, Err: err}
	}
	return nil
}

// readSession loads and decodes one history file. A missing file maps to
// ErrNotFound; a corrupt one to StorageReadError.
func (s *Store) readSession(path string) (*chat.Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ocerrors.ErrNotFound
		}
		return nil, &ocerrors.StorageReadError{Path: path, Err: err}
	}

	var session chat.Session
	if err := json.Unmarshal(data, &session); err != nil {
		s.logger.Error("Failed to decode session file %s: %v. Preview: %s", path, err, previewJSON(data))
		return nil, &ocerrors.StorageReadError{Path: path, Err: err}
	}
	if session.AgentID == "" {
		// Backward compatibility with files written before agent scoping.
		session.AgentID = chat.DefaultAgentID
	}
	return &session, nil
}

// readTopics loads every history.json under one topics directory, logging
// and skipping any that fail.
func (s *Store) readTopics(topicsDir string) []*chat.Session {
	entries, err := os.ReadDir(topicsDir)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("Failed to list topics in %s: %v", topicsDir, err)
		}
		return nil
	}

	var sessions []*chat.Session
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		path := filepath.Join(topicsDir, entry.Name(), "history.json")
		session, err := s.readSession(path)
		if err != nil {
			if !ocerrors.IsNotFound(err) {
				s.logger.Warn("Skipping session in %s: %v", entry.Name(), err)
			}
			continue
		}
		sessions = append(sessions, session)
	}
	return sessions
}

// agentDirs returns every agent directory under the root, in sorted order.
func (s *Store) agentDirs() []string {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("Failed to list storage root %s: %v", s.root, err)
		}
		return nil
	}

	var dirs []string
	for _, entry := range entries {
		if entry.IsDir() && chat.IsAgentDirName(entry.Name()) {
			dirs = append(dirs, filepath.Join(s.root, entry.Name()))
		}
	}
	return dirs
}

// findTopicDir scans all agents for chatID's topic directory.
func (s *Store) findTopicDir(chatID string) (string, bool) {
	for _, agentDir := range s.agentDirs() {
		topicsDir := filepath.Join(agentDir, "topics")
		entries, err := os.ReadDir(topicsDir)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if entry.IsDir() && chat.IsTopicDirName(entry.Name(), chatID) {
				return filepath.Join(topicsDir, entry.Name()), true
			}
		}
	}
	return "", false
}

func sortByUpdatedAt(sessions []*chat.Session) {
	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].UpdatedAt > sessions[j].UpdatedAt
	})
}

func previewJSON(data []byte) string {
	const maxPreview = 512
	preview := strings.TrimSpace(string(data))
	preview = strings.ReplaceAll(preview, "\n", " ")
	preview = strings.ReplaceAll(preview, "\t", " ")
	if len(preview) > maxPreview {
		preview = preview[:maxPreview] + "... (truncated)"
	}
	return preview
}
