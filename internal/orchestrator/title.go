package orchestrator

import (
	"context"
	"strings"

	"github.com/Long18349276/Obsidian-Chat/internal/chat"
	"github.com/Long18349276/Obsidian-Chat/internal/llm"
)

const titlePrompt = "Summarize the conversation so far as a short title of at most six words. Reply with the title only, no quotes or punctuation around it."

// maybeAutoTitle generates a display title after the first completed
// exchange. Manual titles are never overwritten, and failures only cost us
// the nicer title: the fallback is a prefix of the first user message.
func (o *Orchestrator) maybeAutoTitle(ctx context.Context, session *chat.Session) {
	if session.ManualTitle || session.Title != chat.DefaultTitle {
		return
	}
	if !hasAssistantReply(session) {
		return
	}

	title := o.generateTitle(ctx, session)
	if title == "" {
		title = fallbackTitle(session)
	}
	if title == "" {
		return
	}

	session.Title = title
	session.Touch()
	if err := o.store.Save(session); err != nil {
		o.logger.Warn("Failed to persist generated title for %s: %v", session.ID, err)
	}
}

// generateTitle asks the model for a title over the same streaming client,
// with a small token budget.
func (o *Orchestrator) generateTitle(ctx context.Context, session *chat.Session) string {
	agent := o.cfg.AgentByID(session.AgentID)
	params := llm.CompletionParams{
		Model:       agent.Model,
		Temperature: 0.3,
		MaxTokens:   16,
	}

	messages := append([]chat.Message(nil), session.Messages...)
	messages = append(messages, chat.Message{Role: chat.RoleUser, Content: titlePrompt})

	var out strings.Builder
	if err := o.client.StreamCompletion(ctx, params, messages, func(delta string) {
		out.WriteString(delta)
	}); err != nil {
		o.logger.Debug("Title generation failed for %s: %v", session.ID, err)
		return ""
	}
	return sanitizeTitle(out.String())
}

func hasAssistantReply(session *chat.Session) bool {
	for _, msg := range session.Messages {
		if msg.Role == chat.RoleAssistant && msg.Content != "" {
			return true
		}
	}
	return false
}

// fallbackTitle mirrors the legacy behavior: a prefix of the first user
// message.
func fallbackTitle(session *chat.Session) string {
	for _, msg := range session.Messages {
		if msg.Role == chat.RoleUser {
			return sanitizeTitle(msg.Content)
		}
	}
	return ""
}

func sanitizeTitle(title string) string {
	title = strings.ReplaceAll(title, "\n", " ")
	title = strings.Trim(strings.TrimSpace(title), `"'`)
	if runes := []rune(title); len(runes) > maxTitleLen {
		title = strings.TrimSpace(string(runes[:maxTitleLen]))
	}
	return title
}
