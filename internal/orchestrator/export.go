package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Long18349276/Obsidian-Chat/internal/chat"
)

const exportConcurrency = 4

// ExportAll writes every session (or one agent's, when agentID is non-empty)
// to a markdown file under dir, most recent first in listing order. Returns
// the number of sessions written.
func (o *Orchestrator) ExportAll(ctx context.Context, dir, agentID string) (int, error) {
	sessions := o.Sessions(agentID)
	if len(sessions) == 0 {
		return 0, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, fmt.Errorf("create export dir: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(exportConcurrency)
	for _, session := range sessions {
		session := session
		g.Go(func() error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			path := filepath.Join(dir, exportFileName(session))
			if err := os.WriteFile(path, []byte(renderMarkdown(session)), 0644); err != nil {
				return fmt.Errorf("export session %s: %w", session.ID, err)
			}
			o.logger.Debug("Exported session %s to %s", session.ID, path)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return 0, err
	}
	return len(sessions), nil
}

// exportFileName combines the sanitized title with the id so exports are
// both readable and collision-free.
func exportFileName(session *chat.Session) string {
	title := session.Title
	if title == "" {
		title = chat.DefaultTitle
	}
	var b strings.Builder
	for _, r := range title {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '-', r == '_':
			b.WriteRune('-')
		}
	}
	slug := strings.Trim(b.String(), "-")
	if slug == "" {
		slug = "chat"
	}
	return fmt.Sprintf("%s-%s.md", slug, session.ID)
}

func renderMarkdown(session *chat.Session) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", session.Title)
	fmt.Fprintf(&b, "- Agent: %s\n", session.AgentID)
	fmt.Fprintf(&b, "- Created: %s\n", formatMillis(session.CreatedAt))
	fmt.Fprintf(&b, "- Updated: %s\n", formatMillis(session.UpdatedAt))
	if len(session.Tags) > 0 {
		fmt.Fprintf(&b, "- Tags: %s\n", strings.Join(session.Tags, ", "))
	}
	b.WriteString("\n")

	for _, msg := range session.Messages {
		fmt.Fprintf(&b, "## %s\n\n%s\n\n", roleHeading(msg.Role), msg.Content)
	}
	return b.String()
}

func roleHeading(role string) string {
	if role == "" {
		return "Unknown"
	}
	return strings.ToUpper(role[:1]) + role[1:]
}

func formatMillis(ms int64) string {
	return time.UnixMilli(ms).Format(time.RFC3339)
}
