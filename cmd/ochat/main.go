package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Long18349276/Obsidian-Chat/internal/chat"
	"github.com/Long18349276/Obsidian-Chat/internal/chat/filestore"
	"github.com/Long18349276/Obsidian-Chat/internal/config"
	"github.com/Long18349276/Obsidian-Chat/internal/llm"
	"github.com/Long18349276/Obsidian-Chat/internal/orchestrator"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	gray   = color.New(color.FgHiBlack).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

// isTTY checks if the current environment has a TTY available
func isTTY() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

type app struct {
	cfg   *config.Config
	store *filestore.Store
	orch  *orchestrator.Orchestrator
	llm   *llm.Client
}

func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	client := llm.NewClient(llm.Config{
		Endpoint:       cfg.Endpoint,
		APIKey:         cfg.APIKey,
		TimeoutSeconds: cfg.TimeoutSeconds,
	})
	store := filestore.New(cfg.StorageRoot)

	return &app{
		cfg:   cfg,
		store: store,
		orch:  orchestrator.New(store, client, cfg),
		llm:   client,
	}, nil
}

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, red(err.Error()))
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "ochat",
		Short:         "Chat with an OpenAI-compatible endpoint, with durable per-agent history",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newChatCmd(),
		newListCmd(),
		newModelsCmd(),
		newExportCmd(),
		newDeleteCmd(),
		newTagCmd(),
	)
	return root
}

func newChatCmd() *cobra.Command {
	var agentID, resumeID string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start or resume an interactive chat session",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			a.orch.Init(cmd.Context())

			var session *chat.Session
			if resumeID != "" {
				resumed, ok := a.orch.Resolve(resumeID, agentID)
				if !ok {
					return fmt.Errorf("no session %q", resumeID)
				}
				session = resumed
				replay(session)
			} else {
				session = a.orch.NewSession(agentID)
			}

			return runChatLoop(a, session)
		},
	}

	cmd.Flags().StringVarP(&agentID, "agent", "a", "", "agent to chat with")
	cmd.Flags().StringVarP(&resumeID, "resume", "r", "", "chat id to resume")
	return cmd
}

// runChatLoop reads user turns from stdin and streams replies. Ctrl-C
// cancels only the in-flight stream; a second Ctrl-C at the prompt exits.
func runChatLoop(a *app, session *chat.Session) error {
	if !isTTY() {
		fmt.Println(gray("no TTY detected; reading turns from stdin"))
	}

	fmt.Printf("%s %s\n", bold("Session:"), session.ID)
	fmt.Println(gray("Type a message, /regen, /title <name>, /branch <n>, or /exit."))

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Print(cyan("you> "))
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		switch {
		case input == "/exit":
			return nil
		case input == "/regen":
			if err := streamTurn(a, session, func(ctx context.Context, onDelta llm.DeltaFunc) error {
				return a.orch.Regenerate(ctx, session, onDelta)
			}); err != nil {
				fmt.Println(red(err.Error()))
			}
		case strings.HasPrefix(input, "/title "):
			title := strings.TrimSpace(strings.TrimPrefix(input, "/title "))
			if err := a.orch.Rename(session, title); err != nil {
				fmt.Println(red(err.Error()))
			}
		case strings.HasPrefix(input, "/branch "):
			var upto int
			if _, err := fmt.Sscanf(strings.TrimPrefix(input, "/branch "), "%d", &upto); err != nil {
				fmt.Println(red("usage: /branch <message-count>"))
				continue
			}
			branch, err := a.orch.Branch(session, upto)
			if err != nil {
				fmt.Println(red(err.Error()))
				continue
			}
			session = branch
			fmt.Printf("%s %s\n", bold("Branched into:"), session.ID)
		default:
			if err := streamTurn(a, session, func(ctx context.Context, onDelta llm.DeltaFunc) error {
				return a.orch.Send(ctx, session, input, onDelta)
			}); err != nil {
				fmt.Println(red(err.Error()))
			}
		}
	}
}

// streamTurn runs one streaming call with SIGINT wired to cancellation.
func streamTurn(a *app, session *chat.Session, run func(context.Context, llm.DeltaFunc) error) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Print(green(session.AgentID + "> "))
	err := run(ctx, func(delta string) {
		fmt.Print(delta)
	})
	fmt.Println()

	if ctx.Err() != nil {
		fmt.Println(yellow("(stream cancelled; partial reply kept)"))
	}
	return err
}

func replay(session *chat.Session) {
	fmt.Printf("%s %s %s\n", bold(session.Title), gray("resumed"), gray(session.ID))
	for _, msg := range session.Messages {
		switch msg.Role {
		case chat.RoleUser:
			fmt.Printf("%s %s\n", cyan("you>"), msg.Content)
		case chat.RoleAssistant:
			fmt.Printf("%s %s\n", green(session.AgentID+">"), msg.Content)
		}
	}
}

func newListCmd() *cobra.Command {
	var agentID string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sessions, most recently updated first",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			a.orch.Init(cmd.Context())

			sessions := a.orch.Sessions(agentID)
			if len(sessions) == 0 {
				fmt.Println(gray("no chats found"))
				return nil
			}
			for _, s := range sessions {
				line := fmt.Sprintf("%s  %s  %s  %s", s.ID, bold(s.Title), gray(s.AgentID), gray(fmt.Sprintf("%d msgs", len(s.Messages))))
				if len(s.Tags) > 0 {
					line += "  " + yellow("#"+strings.Join(s.Tags, " #"))
				}
				fmt.Println(line)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&agentID, "agent", "a", "", "only this agent's sessions")
	return cmd
}

func newModelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the models the configured endpoint serves",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			models, err := a.llm.ListModels(cmd.Context())
			if err != nil {
				return err
			}
			for _, id := range models {
				fmt.Println(id)
			}
			return nil
		},
	}
}

func newExportCmd() *cobra.Command {
	var agentID, outDir string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export sessions to markdown files",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			a.orch.Init(cmd.Context())

			dir := outDir
			if dir == "" {
				dir = a.cfg.ExportDir
			}
			count, err := a.orch.ExportAll(cmd.Context(), dir, agentID)
			if err != nil {
				return err
			}
			fmt.Printf("%s %d session(s) to %s\n", green("Exported"), count, dir)
			return nil
		},
	}

	cmd.Flags().StringVarP(&agentID, "agent", "a", "", "only this agent's sessions")
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "output directory (defaults to export_dir)")
	return cmd
}

func newDeleteCmd() *cobra.Command {
	var agentID string

	cmd := &cobra.Command{
		Use:   "delete <chat-id>",
		Short: "Delete a session and its on-disk history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			a.orch.Init(cmd.Context())

			if err := a.orch.Delete(args[0], agentID); err != nil {
				return err
			}
			fmt.Println(green("Deleted " + args[0]))
			return nil
		},
	}

	cmd.Flags().StringVarP(&agentID, "agent", "a", "", "agent owning the session")
	return cmd
}

func newTagCmd() *cobra.Command {
	var agentID string

	cmd := &cobra.Command{
		Use:   "tag <chat-id> [tag...]",
		Short: "Replace a session's tags",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			a.orch.Init(cmd.Context())

			session, ok := a.orch.Resolve(args[0], agentID)
			if !ok {
				return fmt.Errorf("no session %q", args[0])
			}
			if err := a.orch.SetTags(session, args[1:]); err != nil {
				return err
			}
			fmt.Printf("%s %s: %s\n", green("Tagged"), session.ID, strings.Join(session.Tags, ", "))
			return nil
		},
	}

	cmd.Flags().StringVarP(&agentID, "agent", "a", "", "agent owning the session")
	return cmd
}
