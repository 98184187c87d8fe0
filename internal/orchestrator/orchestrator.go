// Package orchestrator drives the session store and the completion stream
// client: it owns message-list mutation, stream accumulation, persistence,
// and titling. UI concerns stay with the caller.
package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/Long18349276/Obsidian-Chat/internal/chat"
	"github.com/Long18349276/Obsidian-Chat/internal/chat/filestore"
	"github.com/Long18349276/Obsidian-Chat/internal/config"
	ocerrors "github.com/Long18349276/Obsidian-Chat/internal/errors"
	"github.com/Long18349276/Obsidian-Chat/internal/llm"
	"github.com/Long18349276/Obsidian-Chat/internal/logging"
)

const maxTitleLen = 60

// Completer is the slice of the stream client the orchestrator needs.
type Completer interface {
	StreamCompletion(ctx context.Context, params llm.CompletionParams, messages []chat.Message, onDelta llm.DeltaFunc) error
}

// Orchestrator coordinates one store, one completion client, and the agent
// configuration. Callers must not start a second stream for the same session
// before the previous one reached a terminal state.
type Orchestrator struct {
	store  *filestore.Store
	client Completer
	cfg    *config.Config
	logger logging.Logger
}

func New(store *filestore.Store, client Completer, cfg *config.Config) *Orchestrator {
	return &Orchestrator{
		store:  store,
		client: client,
		cfg:    cfg,
		logger: logging.NewComponentLogger("Orchestrator"),
	}
}

// Init prepares the store: ensures the root exists and migrates any legacy
// flat-layout files. Await it once at startup before listing sessions.
func (o *Orchestrator) Init(ctx context.Context) {
	o.store.EnsureRoot()
	o.store.MigrateLegacy(ctx)
}

// NewSession creates an unpersisted session for agentID.
func (o *Orchestrator) NewSession(agentID string) *chat.Session {
	if agentID == "" {
		agentID = o.cfg.DefaultAgent
	}
	return o.store.CreateNew(agentID)
}

// Resolve looks a session up, degrading read failures to not-found so a
// corrupt file behaves like a missing one at this boundary.
func (o *Orchestrator) Resolve(chatID, agentID string) (*chat.Session, bool) {
	session, err := o.store.Load(chatID, agentID)
	if err != nil {
		if !ocerrors.IsNotFound(err) {
			o.logger.Warn("Treating unreadable session %s as not found: %v", chatID, err)
		}
		return nil, false
	}
	return session, true
}

// Sessions lists sessions most recently updated first, scoped to agentID
// when non-empty.
func (o *Orchestrator) Sessions(agentID string) []*chat.Session {
	if agentID != "" {
		return o.store.ListByAgent(agentID)
	}
	return o.store.LoadAll()
}

// Delete removes a session and its on-disk subtree.
func (o *Orchestrator) Delete(chatID, agentID string) error {
	return o.store.Delete(chatID, agentID)
}

// Send appends the user input to the session, persists it, streams the
// assistant reply through onDelta, and persists the result. A partial reply
// accumulated before failure or cancellation is still appended and saved, so
// nothing generated is lost; the returned error reflects the stream outcome
// (nil for both completion and cancellation).
func (o *Orchestrator) Send(ctx context.Context, session *chat.Session, input string, onDelta llm.DeltaFunc) error {
	session.Messages = append(session.Messages, chat.Message{Role: chat.RoleUser, Content: input})
	session.Touch()
	if err := o.store.Save(session); err != nil {
		return err
	}
	return o.stream(ctx, session, onDelta)
}

// Regenerate discards the trailing assistant reply and streams a fresh one
// for the same user turn.
func (o *Orchestrator) Regenerate(ctx context.Context, session *chat.Session, onDelta llm.DeltaFunc) error {
	if n := len(session.Messages); n > 0 && session.Messages[n-1].Role == chat.RoleAssistant {
		session.Messages = session.Messages[:n-1]
		session.Touch()
		if err := o.store.Save(session); err != nil {
			return err
		}
	}
	return o.stream(ctx, session, onDelta)
}

// stream runs one completion over the session's full message list and
// persists whatever the assistant produced.
func (o *Orchestrator) stream(ctx context.Context, session *chat.Session, onDelta llm.DeltaFunc) error {
	agent := o.cfg.AgentByID(session.AgentID)

	var reply strings.Builder
	streamErr := o.client.StreamCompletion(ctx, completionParams(agent), requestMessages(agent, session), func(delta string) {
		reply.WriteString(delta)
		if onDelta != nil {
			onDelta(delta)
		}
	})

	if reply.Len() > 0 {
		session.Messages = append(session.Messages, chat.Message{Role: chat.RoleAssistant, Content: reply.String()})
		session.Touch()
		if err := o.store.Save(session); err != nil {
			if streamErr != nil {
				return streamErr
			}
			return err
		}
	}

	if streamErr != nil {
		return streamErr
	}

	o.maybeAutoTitle(ctx, session)
	return nil
}

// ReplaceMessages swaps the whole message sequence and re-saves; editing and
// deleting individual turns is expressed through it.
func (o *Orchestrator) ReplaceMessages(session *chat.Session, messages []chat.Message) error {
	session.Messages = messages
	session.Touch()
	return o.store.Save(session)
}

// EditMessage rewrites the content of one turn in place.
func (o *Orchestrator) EditMessage(session *chat.Session, index int, content string) error {
	if index < 0 || index >= len(session.Messages) {
		return fmt.Errorf("message index %d out of range", index)
	}
	messages := append([]chat.Message(nil), session.Messages...)
	messages[index].Content = content
	return o.ReplaceMessages(session, messages)
}

// Branch creates a new session for the same agent seeded with the first
// upto messages of origin. The origin is left untouched.
func (o *Orchestrator) Branch(origin *chat.Session, upto int) (*chat.Session, error) {
	if upto < 0 || upto > len(origin.Messages) {
		return nil, fmt.Errorf("branch point %d out of range", upto)
	}
	branch := o.store.CreateNew(origin.AgentID)
	branch.Messages = append([]chat.Message(nil), origin.Messages[:upto]...)
	branch.Tags = append([]string(nil), origin.Tags...)
	if err := o.store.Save(branch); err != nil {
		return nil, err
	}
	return branch, nil
}

// Rename sets a user-chosen title and freezes auto-titling.
func (o *Orchestrator) Rename(session *chat.Session, title string) error {
	session.Title = title
	session.ManualTitle = true
	session.Touch()
	return o.store.Save(session)
}

// SetTags replaces the session's tag set.
func (o *Orchestrator) SetTags(session *chat.Session, tags []string) error {
	session.Tags = nil
	for _, tag := range tags {
		if tag = strings.TrimSpace(tag); tag != "" {
			session.AddTag(tag)
		}
	}
	session.Touch()
	return o.store.Save(session)
}

func completionParams(agent config.Agent) llm.CompletionParams {
	return llm.CompletionParams{
		Model:       agent.Model,
		Temperature: agent.Temperature,
		MaxTokens:   agent.MaxTokens,
	}
}

// requestMessages prefixes the agent's system prompt; the prompt is applied
// per request, never stored in the session.
func requestMessages(agent config.Agent, session *chat.Session) []chat.Message {
	if agent.SystemPrompt == "" {
		return session.Messages
	}
	messages := make([]chat.Message, 0, len(session.Messages)+1)
	messages = append(messages, chat.Message{Role: chat.RoleSystem, Content: agent.SystemPrompt})
	return append(messages, session.Messages...)
}
