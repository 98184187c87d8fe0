// Package chat defines the persisted conversation model and the on-disk
// layout it is stored under.
package chat

import "time"

// Message roles. Ordering within a session is the sole ordering key; messages
// carry no sequence numbers of their own.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// DefaultTitle is the sentinel title given to sessions before auto-titling
// or a manual rename replaces it.
const DefaultTitle = "New Chat"

// DefaultAgentID is assigned to legacy sessions persisted before sessions
// were scoped to an agent.
const DefaultAgentID = "default"

// Message is one turn of a conversation. Content is arbitrary text; any
// embedded structure (tool-call markers, cited-note markers) is a rendering
// concern and stays opaque here.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Session is one persisted conversation, scoped to exactly one agent for its
// lifetime. ID and AgentID are immutable after creation; branching creates a
// new session instead of reassigning.
type Session struct {
	ID          string    `json:"id"`
	AgentID     string    `json:"agentId"`
	Title       string    `json:"title"`
	ManualTitle bool      `json:"manualTitle"`
	Tags        []string  `json:"tags,omitempty"`
	CreatedAt   int64     `json:"createdAt"`
	UpdatedAt   int64     `json:"updatedAt"`
	Messages    []Message `json:"messages"`
}

// NowMillis returns the current time as a millisecond epoch timestamp, the
// unit every persisted timestamp uses.
func NowMillis() int64 {
	return time.Now().UnixMilli()
}

// Touch refreshes UpdatedAt. Every mutation path must call it before the
// session is persisted.
func (s *Session) Touch() {
	s.UpdatedAt = NowMillis()
}

// AddTag appends tag unless the session already carries it. Tag order is
// preserved for display but irrelevant for equality.
func (s *Session) AddTag(tag string) {
	for _, existing := range s.Tags {
		if existing == tag {
			return
		}
	}
	s.Tags = append(s.Tags, tag)
}

// RemoveTag drops tag if present.
func (s *Session) RemoveTag(tag string) {
	for i, existing := range s.Tags {
		if existing == tag {
			s.Tags = append(s.Tags[:i], s.Tags[i+1:]...)
			return
		}
	}
}

// Clone returns a deep copy, so a branched session never shares message
// storage with its origin.
func (s *Session) Clone() *Session {
	clone := *s
	clone.Tags = append([]string(nil), s.Tags...)
	clone.Messages = append([]Message(nil), s.Messages...)
	return &clone
}
