package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"relayline/internal/app"
	"relayline/internal/capture"
	"relayline/internal/config"
	"relayline/internal/dispatch"
	"relayline/internal/notion"
)

var rootCmd = &cobra.Command{
	Use:   "relayline",
	Short: "Relayline webhook automation service",
	Long: `Relayline receives Notion page-change webhooks and acts on them:
- dispatch: matches routes from a config collection and creates command
  pages, fanning out per-task records where a fan-out mapping applies
- events: logs state transitions to an event collection and keeps
  workflow records up to date

Configuration is environment-sourced; run 'relayline config check' to
see what is missing.`,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func registerCommands() {
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(routesCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(capturesCmd())
}

func newLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

func serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the webhook HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			slog.SetDefault(logger)

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			a, err := app.New(cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			handler, err := a.Handler()
			if err != nil {
				return err
			}
			if addr == "" {
				addr = fmt.Sprintf(":%d", cfg.Port)
			}
			srv := &http.Server{Addr: addr, Handler: handler}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				srv.Shutdown(shutdownCtx)
			}()

			logger.Info("server_started", "addr", addr, "base_path", "/v0")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default :$PORT)")
	return cmd
}

func routesCmd() *cobra.Command {
	routes := &cobra.Command{Use: "routes", Short: "Inspect dispatch routing configuration"}
	routes.AddCommand(routesListCmd())
	return routes
}

func routesListCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List routes and fan-out mappings",
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := loadSnapshot(cmd.Context(), file)
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(snap)
			}

			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendHeader(table.Row{"Route", "Origin Database", "Predicate"})
			for _, r := range snap.Routes {
				tw.AppendRow(table.Row{r.Name, r.DatabaseID, formatPredicate(r.Predicate)})
			}
			tw.Render()

			tw = table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendHeader(table.Row{"Fan-out Origin Database", "Task→Objective Prop", "Objective→Tasks Prop"})
			for _, m := range snap.FanoutMappings {
				tw.AppendRow(table.Row{m.TaskDatabaseID, m.TaskObjectivePropID, m.ObjectiveTasksPropID})
			}
			tw.Render()
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "load routes from a YAML file instead of Notion")
	return cmd
}

func loadSnapshot(ctx context.Context, file string) (*dispatch.Snapshot, error) {
	if file != "" {
		return dispatch.LoadSnapshotFile(file)
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := newLogger()
	client, err := notion.NewClient(notion.ClientConfig{
		Tokens:  cfg.Dispatch.Tokens,
		Version: cfg.NotionVersion,
		Logger:  logger,
	})
	if err != nil {
		return nil, err
	}
	return dispatch.LoadSnapshot(ctx, client, cfg.Dispatch, logger)
}

func formatPredicate(pred map[string]string) string {
	if len(pred) == 0 {
		return ""
	}
	parts := make([]string, 0, len(pred))
	for k, v := range pred {
		parts = append(parts, fmt.Sprintf("%s=%s", k, v))
	}
	return strings.Join(parts, ", ")
}

func configCmd() *cobra.Command {
	cfgCmd := &cobra.Command{Use: "config", Short: "Inspect runtime configuration"}
	cfgCmd.AddCommand(configCheckCmd())
	return cfgCmd
}

func configCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate environment configuration for each surface",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			checks := []struct {
				Surface string
				Err     error
			}{
				{"dispatch (single commands)", cfg.Dispatch.ValidateSingle()},
				{"dispatch (fan-out)", cfg.Dispatch.ValidateFanout()},
				{"events", cfg.Events.Validate()},
			}

			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendHeader(table.Row{"Surface", "Status", "Detail"})
			failed := false
			for _, c := range checks {
				status, detail := "ok", ""
				if c.Err != nil {
					status, detail = "incomplete", c.Err.Error()
					failed = true
				}
				tw.AppendRow(table.Row{c.Surface, status, detail})
			}
			tw.Render()
			if failed {
				return fmt.Errorf("configuration incomplete")
			}
			return nil
		},
	}
	return cmd
}

func capturesCmd() *cobra.Command {
	caps := &cobra.Command{Use: "captures", Short: "Inspect captured webhook deliveries"}
	caps.AddCommand(capturesListCmd())
	return caps
}

func capturesListCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent captures",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.CaptureDBPath == "" {
				return fmt.Errorf("CAPTURE_DB_PATH is not set")
			}
			store, err := capture.Open(cfg.CaptureDBPath)
			if err != nil {
				return err
			}
			defer store.Close()

			rows, err := store.ListRecent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(rows)
			}
			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendHeader(table.Row{"Received At", "Surface", "Request ID", "Bytes"})
			for _, c := range rows {
				tw.AppendRow(table.Row{c.ReceivedAt, c.Surface, c.RequestID, len(c.Body)})
			}
			tw.Render()
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum rows to show")
	return cmd
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
