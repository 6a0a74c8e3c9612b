package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/adi-253/Talkie/chatsync/internal/api"
	"github.com/adi-253/Talkie/chatsync/internal/chatsync"
	"github.com/adi-253/Talkie/chatsync/internal/config"
	"github.com/adi-253/Talkie/chatsync/internal/models"
	"github.com/adi-253/Talkie/chatsync/internal/tui"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	var (
		showVersion  = flag.Bool("version", false, "Show version and exit")
		configPath   = flag.String("config", "config.toml", "Path to config file")
		logPath      = flag.String("log", "talkie-chat.log", "Path to log file")
		debug        = flag.Bool("debug", false, "Enable debug logging")
		receiver     = flag.String("receiver", "", "Chat with this user instead of the configured conversations")
		conversation = flag.String("conversation", "", "Open only this configured conversation, or name the one used with -receiver")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("Talkie chat %s\n", Version)
		os.Exit(0)
	}

	if err := initLogging(*logPath, *debug); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logging: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	if cfg.Chat.ViewerID == "" {
		fmt.Fprintln(os.Stderr, "chat.viewer_id (or TALKIE_VIEWER_ID) is required")
		os.Exit(1)
	}

	conversations := conversationsFor(cfg, *receiver, *conversation)
	log.Info().
		Str("version", Version).
		Str("api", cfg.API.BaseURL).
		Str("viewer", cfg.Chat.ViewerID).
		Int("conversations", len(conversations)).
		Msg("Starting Talkie chat")

	client := api.NewClient(cfg)

	healthCtx, healthCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := client.Health(healthCtx); err != nil {
		log.Warn().Err(err).Msg("Backend health check failed; will keep retrying via polling")
	}
	healthCancel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	controller := chatsync.NewController(client, chatsync.Options{
		PollInterval:   cfg.Chat.PollInterval.Duration,
		RequestTimeout: cfg.API.RequestTimeout.Duration,
		LoadTimeout:    cfg.API.LoadTimeout.Duration,
	})
	go controller.Run(ctx)

	composer := chatsync.NewComposer(client, controller)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	model := tui.New(controller, composer, controller.Subscribe(), cfg.Chat.ViewerID, conversations, cfg.Chat.ScrollThreshold)
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion())

	go func() {
		<-sigCh
		log.Info().Msg("Received shutdown signal")
		program.Quit()
	}()

	if _, err := program.Run(); err != nil {
		log.Error().Err(err).Msg("TUI error")
	}

	controller.Teardown()
	cancel()
	<-controller.Done()

	log.Info().Msg("Talkie chat shutdown complete")
}

func initLogging(path string, debug bool) error {
	// Truncate on startup
	logFile, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	// Log to file only (TUI owns stdout/stderr)
	log.Logger = zerolog.New(logFile).With().Timestamp().Logger()
	return nil
}

// conversationsFor returns the conversations the TUI can switch between.
// -receiver replaces the configured list with a single conversation;
// -conversation alone narrows it to one configured entry.
func conversationsFor(cfg *config.Config, receiver, conversationID string) []tui.Conversation {
	if receiver == "" && conversationID != "" {
		if c, ok := cfg.Conversation(conversationID); ok {
			return []tui.Conversation{toTUI(c)}
		}
		log.Warn().Str("conversation", conversationID).Msg("Conversation not configured, showing all")
	}

	if receiver != "" {
		if conversationID == "" {
			conversationID = models.ConversationID(cfg.Chat.ViewerID, receiver)
		}
		return []tui.Conversation{{ID: conversationID, ReceiverID: receiver, Title: receiver}}
	}

	out := make([]tui.Conversation, 0, len(cfg.Chat.Conversations))
	for _, c := range cfg.Chat.Conversations {
		out = append(out, toTUI(c))
	}
	return out
}

func toTUI(c config.ConversationConfig) tui.Conversation {
	title := c.Title
	if title == "" {
		title = c.ReceiverID
	}
	return tui.Conversation{ID: c.ID, ReceiverID: c.ReceiverID, Title: title}
}
