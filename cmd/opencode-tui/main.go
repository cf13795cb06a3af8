// ABOUTME: Terminal client for a local OpenCode-style agent server.
// ABOUTME: Readline-style input, slash commands, and live streaming output.

package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"

	"github.com/2389/opencode-client/internal/api"
	"github.com/2389/opencode-client/internal/apierr"
	"github.com/2389/opencode-client/internal/config"
	"github.com/2389/opencode-client/internal/conversation"
)

var (
	dimmed  = color.New(color.Faint)
	errText = color.New(color.FgRed)
	accent  = color.New(color.FgYellow)
	info    = color.New(color.FgCyan)
)

func main() {
	configPath := flag.String("config", defaultConfigPath(), "Path to config file")
	host := flag.String("host", "", "Server host (overrides config)")
	port := flag.Int("port", 0, "Server port (overrides config)")
	agentName := flag.String("agent", "", "Default agent for prompts")
	logLevel := flag.String("log-level", "", "Log level: debug, info, warn, error")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *host != "" {
		cfg.Server.Host = *host
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *agentName != "" {
		cfg.Defaults.Agent = *agentName
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}

	logger := newLogger(cfg.Logging)

	svc := conversation.New(conversation.Config{
		Host:        cfg.Server.Host,
		DefaultPort: cfg.Server.Port,
	}, newStaticSupervisor(cfg.Server.Port, cfg.Workspace.Directory), logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, svc, cfg.Defaults.Agent); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("\nGoodbye!")
}

// newLogger builds an slog logger per the logging config. Logs go to
// stderr so they never interleave with conversation output.
func newLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func defaultConfigPath() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "opencode-tui.yaml"
		}
		configDir = homeDir + "/.config"
	}
	return configDir + "/opencode-tui/config.yaml"
}

func run(ctx context.Context, svc *conversation.Service, defaultAgent string) error {
	fmt.Println("Connecting to agent server...")
	if err := svc.Connect(ctx); err != nil {
		errText.Printf("Connect failed: %v\n", err)
		if apierr.Retryable(err) {
			dimmed.Println("The server may not be running yet; try again with /connect.")
		}
	} else {
		info.Printf("Connected (server %s)\n", svc.ServerVersion())
	}
	defer svc.Disconnect()

	go watchChanges(ctx, svc)

	fmt.Println("Type a message and press Enter. /help for commands. Ctrl+C to quit.")
	fmt.Println()

	scanner := bufio.NewScanner(os.Stdin)
	selectedAgent := defaultAgent

	for {
		if selectedAgent != "" {
			fmt.Printf("[%s]> ", selectedAgent)
		} else {
			fmt.Print("> ")
		}

		input, err := readLine(ctx, scanner)
		if err != nil {
			if err == io.EOF || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("reading input: %w", err)
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			done, newAgent := handleCommand(ctx, svc, input, selectedAgent)
			selectedAgent = newAgent
			if done {
				return nil
			}
			fmt.Println()
			continue
		}

		text, err := svc.SubmitPrompt(ctx, []api.PromptPart{api.TextPart(input)}, selectedAgent)
		if err != nil {
			printError(err)
		} else {
			fmt.Println(renderMarkdown(text))
		}
		fmt.Println()
	}
}

// readLine reads one line of input without blocking ctx cancellation.
func readLine(ctx context.Context, scanner *bufio.Scanner) (string, error) {
	inputCh := make(chan string, 1)
	errCh := make(chan error, 1)

	go func() {
		if scanner.Scan() {
			inputCh <- scanner.Text()
			return
		}
		if err := scanner.Err(); err != nil {
			errCh <- err
		} else {
			errCh <- io.EOF
		}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case err := <-errCh:
		return "", err
	case input := <-inputCh:
		return input, nil
	}
}

// handleCommand dispatches a slash command. Returns (quit, selectedAgent).
func handleCommand(ctx context.Context, svc *conversation.Service, input, selectedAgent string) (bool, string) {
	cmd, args, _ := strings.Cut(input, " ")
	args = strings.TrimSpace(args)

	switch cmd {
	case "/quit", "/exit", "/q":
		return true, selectedAgent

	case "/help":
		printHelp()

	case "/connect":
		if err := svc.Connect(ctx); err != nil {
			printError(err)
		} else {
			info.Printf("Connected (server %s)\n", svc.ServerVersion())
		}

	case "/agents":
		agents := svc.Agents()
		if len(agents) == 0 {
			fmt.Println("No agents available")
			break
		}
		fmt.Println("Agents:")
		for _, a := range agents {
			marker := " "
			if a.Default {
				marker = "*"
			}
			fmt.Printf("  %s %s", marker, a.Name)
			if a.Description != "" {
				dimmed.Printf("  %s", a.Description)
			}
			fmt.Println()
		}

	case "/models":
		models := svc.Models()
		if len(models) == 0 {
			fmt.Println("No connected providers")
			break
		}
		fmt.Println("Models:")
		for _, m := range models {
			fmt.Printf("  %s\n", m)
		}

	case "/use":
		if args == "" {
			fmt.Println("Cleared agent selection, using server default")
			return false, ""
		}
		fmt.Printf("Now using %s\n", args)
		return false, args

	case "/sessions":
		sessions, err := svc.ListSessions(ctx)
		if err != nil {
			printError(err)
			break
		}
		if len(sessions) == 0 {
			fmt.Println("No sessions")
			break
		}
		active := svc.ActiveSessionID()
		for _, sess := range sessions {
			marker := " "
			if sess.ID == active {
				marker = "*"
			}
			title := sess.Title
			if title == "" {
				title = "(untitled)"
			}
			fmt.Printf("  %s %s  %s\n", marker, sess.ID, title)
		}

	case "/new":
		svc.NewSession()
		fmt.Println("Started a new conversation")

	case "/abort":
		svc.Abort(ctx)
		fmt.Println("Aborted")

	case "/history":
		printHistory(svc)

	default:
		fmt.Printf("Unknown command %s (try /help)\n", cmd)
	}
	return false, selectedAgent
}

func printHelp() {
	fmt.Println("Commands:")
	fmt.Println("  /agents        List selectable agents")
	fmt.Println("  /models        List connected provider models")
	fmt.Println("  /use <name>    Set the agent for prompts")
	fmt.Println("  /use           Clear agent selection")
	fmt.Println("  /sessions      List sessions on the server")
	fmt.Println("  /new           Start a fresh conversation")
	fmt.Println("  /abort         Abort the in-flight prompt")
	fmt.Println("  /history       Show the current conversation")
	fmt.Println("  /connect       Reconnect to the server")
	fmt.Println("  /help          Show this help")
	fmt.Println("  /quit          Exit")
}

func printHistory(svc *conversation.Service) {
	history := svc.History()
	if len(history) == 0 {
		fmt.Println("No conversation history")
		return
	}

	fmt.Println(strings.Repeat("-", 60))
	for _, msg := range history {
		switch msg.Info.Role {
		case api.RoleUser:
			info.Print("you: ")
		case api.RoleAssistant:
			accent.Printf("%s: ", assistantLabel(msg.Info))
		}
		for _, part := range msg.Parts {
			switch part.Type {
			case api.PartTypeText:
				fmt.Println(renderMarkdown(part.Text))
			case api.PartTypeTool:
				status := ""
				if part.State != nil {
					status = " (" + part.State.Status + ")"
				}
				accent.Printf("[tool] %s%s\n", part.Tool, status)
			case api.PartTypeFile:
				fmt.Printf("[file] %s\n", part.Filename)
			}
		}
	}
	fmt.Println(strings.Repeat("-", 60))
}

func assistantLabel(msg api.Message) string {
	if msg.Agent != "" {
		return msg.Agent
	}
	return "assistant"
}

// watchChanges prints streaming deltas and failures as they arrive. The
// streaming buffer is cumulative, so only the unseen suffix is printed.
func watchChanges(ctx context.Context, svc *conversation.Service) {
	changes, _ := svc.Notifier().Subscribe(ctx)
	printed := 0
	for change := range changes {
		switch change.Kind {
		case conversation.ChangeStreaming:
			current := svc.StreamingText()
			if len(current) < printed {
				printed = 0
			}
			if len(current) > printed {
				dimmed.Print(current[printed:])
				printed = len(current)
			}
		case conversation.ChangeFailure:
			errText.Printf("\n[server error] %s\n", change.Message)
		case conversation.ChangeState:
			if state, reason := svc.State(); state == conversation.StateError {
				errText.Printf("\n[%s] %s\n", state, reason)
			}
		}
	}
}

func printError(err error) {
	var cerr *apierr.Error
	if apierr.AsError(err, &cerr) {
		errText.Printf("[%s] %v\n", cerr.Label(), err)
		if cerr.Retryable() {
			dimmed.Println("This error is retryable.")
		}
		return
	}
	errText.Printf("[error] %v\n", err)
}
