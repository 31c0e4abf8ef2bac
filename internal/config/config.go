package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config is the full runtime configuration, sourced from the environment.
// Collection and property identifiers point at the Notion workspace that
// acts as the system of record.
type Config struct {
	Port                int
	NotionVersion       string
	WebhookSharedSecret string
	CaptureDBPath       string

	Dispatch DispatchConfig
	Events   EventsConfig
}

// DispatchConfig configures the dispatch surface: the commands collection
// written to, the config collection routes are loaded from, and the
// property ids used when creating command records.
type DispatchConfig struct {
	Tokens         []string
	MaxFanoutTasks int

	CommandsDBID             string
	CommandsTargetPagePropID string
	CommandsTargetTaskPropID string
	CommandsTriggerKeyPropID string
	CommandsNamePropID       string
	CommandsDirectivePropID  string
	TriggerKey               string

	ConfigDBID          string
	ConfigEnabledPropID string
}

// EventsConfig configures the events ingestion surface.
type EventsConfig struct {
	Tokens []string

	EventsDBID          string
	EventsConfigDBID    string
	WorkflowRecordsDBID string
}

// Load reads configuration from the environment via viper. Identifiers for
// optional features may be empty; operations that need them fail fast at
// use time instead.
func Load() (*Config, error) {
	v := viper.GetViper()
	v.AutomaticEnv()
	v.SetDefault("PORT", 3000)
	v.SetDefault("NOTION_VERSION", "2022-06-28")
	v.SetDefault("MAX_FANOUT_TASKS", 200)

	port := v.GetInt("PORT")
	if port <= 0 {
		return nil, fmt.Errorf("invalid PORT value: %d", port)
	}
	maxFanout := v.GetInt("MAX_FANOUT_TASKS")
	if maxFanout <= 0 {
		return nil, fmt.Errorf("invalid MAX_FANOUT_TASKS value: %d", maxFanout)
	}

	baseTokens := splitTokens(v.GetString("NOTION_TOKENS"))
	if len(baseTokens) == 0 {
		if tok := strings.TrimSpace(v.GetString("NOTION_TOKEN")); tok != "" {
			baseTokens = []string{tok}
		}
	}
	dispatchTokens := splitTokens(v.GetString("DISPATCH_NOTION_TOKENS"))
	if len(dispatchTokens) == 0 {
		dispatchTokens = baseTokens
	}
	eventsTokens := splitTokens(v.GetString("EVENTS_NOTION_TOKENS"))
	if len(eventsTokens) == 0 {
		eventsTokens = baseTokens
	}

	cfg := &Config{
		Port:                port,
		NotionVersion:       v.GetString("NOTION_VERSION"),
		WebhookSharedSecret: v.GetString("WEBHOOK_SHARED_SECRET"),
		CaptureDBPath:       v.GetString("CAPTURE_DB_PATH"),
		Dispatch: DispatchConfig{
			Tokens:                   dispatchTokens,
			MaxFanoutTasks:           maxFanout,
			CommandsDBID:             v.GetString("COMMANDS_DB_ID"),
			CommandsTargetPagePropID: v.GetString("COMMANDS_TARGET_PAGE_PROP_ID"),
			CommandsTargetTaskPropID: v.GetString("COMMANDS_TARGET_TASK_PROP_ID"),
			CommandsTriggerKeyPropID: v.GetString("COMMANDS_TRIGGER_KEY_PROP_ID"),
			CommandsNamePropID:       v.GetString("COMMANDS_COMMAND_NAME_PROP_ID"),
			CommandsDirectivePropID:  v.GetString("COMMANDS_DIRECTIVE_COMMAND_PROP_ID"),
			TriggerKey:               v.GetString("COMMAND_TRIGGER_KEY"),
			ConfigDBID:               v.GetString("DISPATCH_CONFIG_DB_ID"),
			ConfigEnabledPropID:      v.GetString("DISPATCH_CONFIG_ENABLED_PROP_ID"),
		},
		Events: EventsConfig{
			Tokens:              eventsTokens,
			EventsDBID:          v.GetString("EVENTS_DB_ID"),
			EventsConfigDBID:    v.GetString("EVENTS_CONFIG_DB_ID"),
			WorkflowRecordsDBID: v.GetString("WORKFLOW_RECORDS_DB_ID"),
		},
	}
	return cfg, nil
}

// ValidateSingle reports the configuration gaps that would make single
// command creation impossible. Checked before any remote writes.
func (c DispatchConfig) ValidateSingle() error {
	switch {
	case c.CommandsDBID == "":
		return fmt.Errorf("COMMANDS_DB_ID is not configured")
	case c.CommandsTargetPagePropID == "":
		return fmt.Errorf("COMMANDS_TARGET_PAGE_PROP_ID is not configured")
	case c.CommandsTriggerKeyPropID == "":
		return fmt.Errorf("COMMANDS_TRIGGER_KEY_PROP_ID is not configured")
	case c.TriggerKey == "":
		return fmt.Errorf("COMMAND_TRIGGER_KEY is not configured")
	}
	return nil
}

// ValidateFanout reports the configuration gaps that would make per-task
// fan-out command creation impossible.
func (c DispatchConfig) ValidateFanout() error {
	switch {
	case c.CommandsDBID == "":
		return fmt.Errorf("COMMANDS_DB_ID is not configured")
	case c.CommandsTargetTaskPropID == "":
		return fmt.Errorf("COMMANDS_TARGET_TASK_PROP_ID is not configured")
	case c.CommandsTriggerKeyPropID == "":
		return fmt.Errorf("COMMANDS_TRIGGER_KEY_PROP_ID is not configured")
	case c.TriggerKey == "":
		return fmt.Errorf("COMMAND_TRIGGER_KEY is not configured")
	}
	return nil
}

// Validate checks the identifiers the events pipeline cannot run without.
func (c EventsConfig) Validate() error {
	switch {
	case c.EventsDBID == "":
		return fmt.Errorf("EVENTS_DB_ID is not configured")
	case c.EventsConfigDBID == "":
		return fmt.Errorf("EVENTS_CONFIG_DB_ID is not configured")
	case c.WorkflowRecordsDBID == "":
		return fmt.Errorf("WORKFLOW_RECORDS_DB_ID is not configured")
	}
	return nil
}

func splitTokens(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
