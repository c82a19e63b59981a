// MultiFlex client: streams generated interfaces from the backend and
// renders them in the terminal.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/supreme-gg-gg/multiflex/internal/agent"
	"github.com/supreme-gg-gg/multiflex/internal/config"
	"github.com/supreme-gg-gg/multiflex/internal/domain"
	"github.com/supreme-gg-gg/multiflex/internal/session"
	"github.com/supreme-gg-gg/multiflex/internal/store"
	"github.com/supreme-gg-gg/multiflex/internal/surface"
)

func main() {
	// Logs go to stderr; stdout is reserved for rendered frames.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	prompt, err := resolvePrompt(ctx, repo, cfg.UserID)
	if err != nil {
		slog.Error("Failed to resolve prompt", "error", err)
		os.Exit(1)
	}
	if prompt == "" {
		fmt.Fprintln(os.Stderr, "No prompt given. Describe the interface you want and run again.")
		os.Exit(1)
	}

	if os.Getenv("AGENT_FALLBACK") == "1" {
		if err := runFallback(ctx, cfg, prompt); err != nil {
			slog.Error("Fallback generation failed", "error", err)
			os.Exit(1)
		}
		return
	}

	if err := runSession(ctx, cfg, repo, prompt); err != nil {
		slog.Error("Session failed", "error", err)
		os.Exit(1)
	}
}

// resolvePrompt picks the session prompt: command-line arguments win,
// then the pending handoff saved by an earlier /new, then stdin.
func resolvePrompt(ctx context.Context, repo store.Repository, userID string) (string, error) {
	if args := strings.TrimSpace(strings.Join(os.Args[1:], " ")); args != "" {
		return args, nil
	}

	pending, err := repo.TakePending(ctx, userID)
	if err == nil {
		slog.Info("Resuming with pending prompt", "user_id", pending.UserID)
		return pending.Prompt, nil
	}
	if !errors.Is(err, store.ErrNoPending) {
		return "", err
	}

	fmt.Fprint(os.Stderr, "Describe the interface to build: ")
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", nil
	}
	return strings.TrimSpace(line), nil
}

// runFallback performs one discrete generation call instead of opening a
// stream. Used when the streaming endpoint is unavailable.
func runFallback(ctx context.Context, cfg *config.Config, prompt string) error {
	resp, err := agent.NewClient(cfg.ServerURL).Generate(ctx, prompt, cfg.UserID)
	if err != nil {
		return err
	}
	if resp.Error != "" {
		return errors.New(resp.Error)
	}

	page, err := agent.RenderComponents(resp.Components)
	if err != nil {
		return err
	}

	surf := surface.New(nil)
	if err := surf.SetFrame(page); err != nil {
		return err
	}
	fmt.Println(surf.Markdown())
	return nil
}

func runSession(ctx context.Context, cfg *config.Config, repo store.Repository, prompt string) error {
	wsURL, err := cfg.WebSocketURL()
	if err != nil {
		return err
	}

	updates := make(chan session.State, 64)
	ctrl := session.New(session.Options{
		URL:            wsURL,
		ReconnectDelay: cfg.ReconnectDelay,
		OnUpdate:       func(s session.State) { updates <- s },
	})
	defer ctrl.Close()

	if err := ctrl.Start(ctx, prompt, cfg.UserID); err != nil {
		return err
	}
	slog.Info("Session starting", "url", wsURL, "user_id", cfg.UserID)

	fatal := make(chan string, 1)
	go renderLoop(ctx, ctrl, repo, updates, fatal)

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-fatal:
			return errors.New(msg)
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if quit := handleLine(ctx, ctrl, repo, cfg.UserID, line); quit {
				return nil
			}
		}
	}
}

// renderLoop prints each new frame and persists transcript entries as
// they appear. It runs until the context ends.
func renderLoop(ctx context.Context, ctrl *session.Controller, repo store.Repository, updates <-chan session.State, fatal chan<- string) {
	lastHTML := ""
	persisted := 0
	reconnecting := false

	for {
		select {
		case <-ctx.Done():
			return
		case s := <-updates:
			if s.Err != "" && !s.Connected && !s.Reconnecting {
				select {
				case fatal <- s.Err:
				default:
				}
				return
			}
			if s.Err != "" {
				fmt.Fprintln(os.Stderr, "server error: "+s.Err)
			}
			if s.Reconnecting && !reconnecting {
				fmt.Fprintln(os.Stderr, "connection lost, reconnecting...")
			}
			reconnecting = s.Reconnecting

			if s.HTMLContent != lastHTML {
				lastHTML = s.HTMLContent
				fmt.Println("\n" + ctrl.Surface().Markdown())
			}

			entries := ctrl.Transcript()
			for ; persisted < len(entries); persisted++ {
				sessionID := s.SessionID
				if sessionID == "" {
					sessionID = "local"
				}
				if err := repo.AppendEntry(ctx, sessionID, s.UserID, entries[persisted]); err != nil {
					slog.Warn("Failed to persist transcript entry", "error", err)
				}
			}
		}
	}
}

// handleLine interprets one line of input. Plain text is a chat message;
// slash commands drive the rendered document and the session.
func handleLine(ctx context.Context, ctrl *session.Controller, repo store.Repository, userID, line string) (quit bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	if !strings.HasPrefix(line, "/") {
		if err := ctrl.SendChat(line); err != nil {
			slog.Warn("Failed to send chat message", "error", err)
		}
		return false
	}

	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit":
		return true
	case "/html":
		fmt.Println(ctrl.Surface().HTML())
	case "/md":
		fmt.Println(ctrl.Surface().Markdown())
	case "/click":
		if len(fields) != 2 {
			fmt.Fprintln(os.Stderr, "usage: /click <element-id>")
			return false
		}
		if !ctrl.Surface().Click(fields[1]) {
			fmt.Fprintln(os.Stderr, "no such element: "+fields[1])
		}
	case "/change":
		if len(fields) < 3 {
			fmt.Fprintln(os.Stderr, "usage: /change <element-id> <value>")
			return false
		}
		value := strings.Join(fields[2:], " ")
		if !ctrl.Surface().Change(fields[1], value) {
			fmt.Fprintln(os.Stderr, "no such element: "+fields[1])
		}
	case "/submit":
		if len(fields) != 2 {
			fmt.Fprintln(os.Stderr, "usage: /submit <element-id>")
			return false
		}
		if !ctrl.Surface().Submit(fields[1]) {
			fmt.Fprintln(os.Stderr, "no such element: "+fields[1])
		}
	case "/new":
		if len(fields) < 2 {
			fmt.Fprintln(os.Stderr, "usage: /new <prompt>")
			return false
		}
		req := &domain.PendingRequest{
			UserID:    userID,
			Prompt:    strings.Join(fields[1:], " "),
			CreatedAt: time.Now(),
		}
		if err := repo.SavePending(ctx, req); err != nil {
			slog.Error("Failed to save pending prompt", "error", err)
			return false
		}
		fmt.Fprintln(os.Stderr, "Prompt saved. Run again to start the new session.")
		return true
	case "/history":
		sessionID := ctrl.State().SessionID
		if sessionID == "" {
			sessionID = "local"
		}
		entries, err := repo.ListEntries(ctx, sessionID)
		if err != nil {
			slog.Error("Failed to list transcript", "error", err)
			return false
		}
		for _, e := range entries {
			fmt.Printf("[%s] %s: %s\n", e.Timestamp.Format("15:04:05"), e.Sender, e.Text)
		}
	default:
		fmt.Fprintln(os.Stderr, "commands: /click /change /submit /html /md /new /history /quit")
	}
	return false
}
