package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/ava/internal/api"
	"github.com/MikeSquared-Agency/ava/internal/assistant"
	"github.com/MikeSquared-Agency/ava/internal/config"
	"github.com/MikeSquared-Agency/ava/internal/conversation"
	"github.com/MikeSquared-Agency/ava/internal/facility"
	"github.com/MikeSquared-Agency/ava/internal/hermes"
	"github.com/MikeSquared-Agency/ava/internal/places"
	"github.com/MikeSquared-Agency/ava/internal/poll"
	"github.com/MikeSquared-Agency/ava/internal/session"
	"github.com/MikeSquared-Agency/ava/internal/store"
)

var rootCmd = &cobra.Command{
	Use:           "ava",
	Short:         "AVA senior care assistant service",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP service",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve()
	},
}

var facilitiesCmd = &cobra.Command{
	Use:   "facilities",
	Short: "Run one facility search and print the results as JSON",
	RunE:  searchFacilities,
}

var subscribeCmd = &cobra.Command{
	Use:   "subscribe",
	Short: "Mark a facility as subscribed so searches rank it first",
	RunE:  subscribeFacility,
}

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Print AVA domain events from NATS until interrupted",
	RunE:  tailEvents,
}

func init() {
	facilitiesCmd.Flags().String("location", "", "city, state or zip code to search in")
	facilitiesCmd.Flags().Bool("pet-friendly", false, "prefer pet-friendly facilities")
	facilitiesCmd.Flags().Bool("social-active", false, "prefer facilities with social activities")
	facilitiesCmd.Flags().Bool("quiet-private", false, "prefer quiet, private facilities")
	facilitiesCmd.Flags().Bool("religious", false, "prefer facilities with a religious affiliation")
	_ = facilitiesCmd.MarkFlagRequired("location")

	subscribeCmd.Flags().String("place-id", "", "Google place ID of the facility")
	subscribeCmd.Flags().Bool("inactive", false, "end the subscription instead of starting it")
	_ = subscribeCmd.MarkFlagRequired("place-id")

	eventsCmd.Flags().String("subject", "ava.>", "NATS subject to subscribe to")

	rootCmd.AddCommand(serveCmd, facilitiesCmd, subscribeCmd, eventsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("ava failed", "error", err)
		os.Exit(1)
	}
}

func serve() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	setupLogging(cfg.LogLevel)

	slog.Info("ava starting", "port", cfg.Port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.OpenAIAPIKey == "" {
		return errors.New("OPENAI_API_KEY is required")
	}
	if cfg.AssistantID == "" {
		return errors.New("ASSISTANT_ID is required")
	}
	if cfg.PlacesAPIKey == "" {
		slog.Warn("GOOGLE_PLACES_API_KEY not set, facility searches will fail")
	}

	// NATS is optional. Without it no domain events are published.
	var events conversation.Publisher
	if cfg.NatsURL != "" {
		hermesClient, err := hermes.NewClient(ctx, cfg.NatsURL, cfg.NatsToken, slog.Default())
		if err != nil {
			return fmt.Errorf("connect to NATS: %w", err)
		}
		defer hermesClient.Close()
		events = hermesClient
		slog.Info("NATS connected", "url", cfg.NatsURL)
	} else {
		slog.Warn("nats not configured, running without domain events")
	}

	// Without a database no facility is subscribed.
	var subs facility.SubscriptionSource
	if cfg.DatabaseURL != "" {
		db, err := store.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		defer db.Close()
		if err := db.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate database: %w", err)
		}
		subs = db
		slog.Info("database connected")
	}

	llm := assistant.NewClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.AssistantID)
	slog.Info("assistant client ready", "assistant_id", cfg.AssistantID)

	policy := poll.Policy{Interval: cfg.PollInterval, MaxAttempts: cfg.PollAttempts}
	gateway := conversation.New(llm, policy, events, slog.Default())

	sessions := session.NewRegistry(gateway, cfg.SessionTTL, slog.Default())
	defer sessions.Close()

	lookup := facility.New(places.NewClient(cfg.PlacesAPIKey, cfg.PlacesBaseURL), subs, events, slog.Default())

	srv := api.NewServer(cfg.Port, gateway, sessions, lookup, slog.Default())
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	slog.Info("ava ready", "port", cfg.Port, "poll_interval", cfg.PollInterval, "poll_attempts", cfg.PollAttempts)

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("HTTP server: %w", err)
		}
	}

	slog.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("HTTP shutdown incomplete", "error", err)
	}
	cancel()
	slog.Info("ava stopped")
	return nil
}

func searchFacilities(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	setupLogging(cfg.LogLevel)

	if cfg.PlacesAPIKey == "" {
		return errors.New("GOOGLE_PLACES_API_KEY is required")
	}

	flags := cmd.Flags()
	location, _ := flags.GetString("location")
	var f facility.Filters
	f.PetFriendly, _ = flags.GetBool("pet-friendly")
	f.SocialActive, _ = flags.GetBool("social-active")
	f.QuietPrivate, _ = flags.GetBool("quiet-private")
	f.Religious, _ = flags.GetBool("religious")

	lookup := facility.New(places.NewClient(cfg.PlacesAPIKey, cfg.PlacesBaseURL), nil, nil, slog.Default())
	records, err := lookup.Search(cmd.Context(), location, f)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]any{"facilities": records})
}

// subscriptionWriter records whether a facility is subscribed.
type subscriptionWriter interface {
	UpsertSubscription(ctx context.Context, placeID string, active bool) error
}

func subscribeFacility(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	setupLogging(cfg.LogLevel)

	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}

	placeID, _ := cmd.Flags().GetString("place-id")
	inactive, _ := cmd.Flags().GetBool("inactive")

	db, err := store.New(cmd.Context(), cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.Migrate(cmd.Context()); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	return setSubscription(cmd.Context(), cmd.OutOrStdout(), db, placeID, !inactive)
}

func setSubscription(ctx context.Context, out io.Writer, subs subscriptionWriter, placeID string, active bool) error {
	placeID = strings.TrimSpace(placeID)
	if placeID == "" {
		return errors.New("place id is required")
	}
	if err := subs.UpsertSubscription(ctx, placeID, active); err != nil {
		return err
	}

	state := "subscribed"
	if !active {
		state = "unsubscribed"
	}
	slog.Info("facility subscription updated", "place_id", placeID, "active", active)
	_, err := fmt.Fprintf(out, "%s %s\n", placeID, state)
	return err
}

func tailEvents(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	setupLogging(cfg.LogLevel)

	if cfg.NatsURL == "" {
		return errors.New("NATS_URL is required")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := hermes.NewClient(ctx, cfg.NatsURL, cfg.NatsToken, slog.Default())
	if err != nil {
		return fmt.Errorf("connect to NATS: %w", err)
	}
	defer client.Close()

	out := cmd.OutOrStdout()
	subject, _ := cmd.Flags().GetString("subject")
	if err := client.Subscribe(subject, func(subject string, data []byte) {
		fmt.Fprintf(out, "%s %s\n", subject, data)
	}); err != nil {
		return err
	}

	<-ctx.Done()
	return nil
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}
