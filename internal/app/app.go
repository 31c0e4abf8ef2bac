// Package app wires configuration, Notion clients, the dispatch service,
// the events pipeline and the capture store into one runnable unit.
package app

import (
	"fmt"
	"log/slog"
	"net/http"

	"relayline/internal/capture"
	"relayline/internal/config"
	"relayline/internal/dispatch"
	"relayline/internal/events"
	"relayline/internal/notion"
	"relayline/internal/server"
)

// App is the assembled service.
type App struct {
	Config   *config.Config
	Dispatch *dispatch.Service
	Events   *events.Pipeline
	Captures *capture.Store
	Logger   *slog.Logger
}

// New builds the application from configuration. Each surface gets its
// own Notion client so token pools stay independent.
func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	dispatchClient, err := notion.NewClient(notion.ClientConfig{
		Tokens:  cfg.Dispatch.Tokens,
		Version: cfg.NotionVersion,
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("dispatch notion client: %w", err)
	}
	eventsClient, err := notion.NewClient(notion.ClientConfig{
		Tokens:  cfg.Events.Tokens,
		Version: cfg.NotionVersion,
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("events notion client: %w", err)
	}

	a := &App{
		Config:   cfg,
		Dispatch: dispatch.NewService(dispatchClient, cfg.Dispatch, logger),
		Events:   events.NewPipeline(eventsClient, cfg.Events, logger),
		Logger:   logger,
	}

	if cfg.CaptureDBPath != "" {
		store, err := capture.Open(cfg.CaptureDBPath)
		if err != nil {
			return nil, fmt.Errorf("open capture store: %w", err)
		}
		a.Captures = store
	}
	return a, nil
}

// Handler builds the HTTP API for the app.
func (a *App) Handler() (http.Handler, error) {
	return server.New(server.Config{
		Dispatch: a.Dispatch,
		Events:   a.Events,
		Captures: a.Captures,
		BasePath: "/v0",
		Auth:     server.AuthConfig{SharedSecret: a.Config.WebhookSharedSecret},
		Logger:   a.Logger,
	})
}

// Close drains background work: pending fan-out runs, queued ingestion
// jobs, then the capture store.
func (a *App) Close() error {
	a.Dispatch.Wait()
	a.Events.Close()
	if a.Captures != nil {
		return a.Captures.Close()
	}
	return nil
}
