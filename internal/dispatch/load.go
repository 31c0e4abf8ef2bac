package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"relayline/internal/config"
	"relayline/internal/notion"
)

// Rule type option names in the dispatch config collection.
const (
	ruleTypeDispatchCommand = "DispatchCommand"
	ruleTypeObjectiveFanout = "ObjectiveFanoutConfig"
)

// LoadSnapshot enumerates every row of the dispatch config collection and
// parses each into a Route or a FanoutMapping. Disabled or structurally
// invalid rows are skipped with a diagnostic; only transport failure
// aborts the load.
func LoadSnapshot(ctx context.Context, store Store, cfg config.DispatchConfig, logger *slog.Logger) (*Snapshot, error) {
	if cfg.ConfigDBID == "" {
		return nil, fmt.Errorf("DISPATCH_CONFIG_DB_ID is not configured")
	}

	snap := &Snapshot{LoadedAt: time.Now()}
	hasRows := false
	cursor := ""
	for {
		res, err := store.QueryDatabase(ctx, cfg.ConfigDBID, notion.Query{StartCursor: cursor})
		if err != nil {
			return nil, fmt.Errorf("load dispatch config: %w", err)
		}
		for _, page := range res.Results {
			hasRows = true
			parseConfigRow(page, cfg, snap, logger)
		}
		if !res.HasMore || res.NextCursor == "" {
			break
		}
		cursor = res.NextCursor
	}

	if !hasRows {
		logger.Warn("dispatch_config_db_empty", "dispatch_config_db_id", cfg.ConfigDBID)
	}
	return snap, nil
}

func parseConfigRow(page notion.Page, cfg config.DispatchConfig, snap *Snapshot, logger *slog.Logger) {
	props := page.Properties

	enabled := rowEnabled(props, cfg.ConfigEnabledPropID)
	if !enabled {
		return
	}

	originDatabaseID := notion.NormalizeID(notion.PlainText(props, "Origin Database ID"))
	ruleType := notion.SelectName(props, "Rule Type")
	name := notion.Title(props)
	if name == "" {
		name = page.ID
	}

	if originDatabaseID == "" || ruleType == "" {
		logger.Error("dispatch_config_row_invalid",
			"page_id", page.ID, "title", name,
			"origin_database_id", originDatabaseID, "rule_type", ruleType)
		return
	}

	conditionName := notion.PlainText(props, "Condition 1: Property Name")
	conditionValue := notion.PlainText(props, "Condition 1: Value")

	switch ruleType {
	case ruleTypeDispatchCommand:
		route := Route{Name: name, DatabaseID: originDatabaseID}
		if conditionName != "" && conditionValue != "" {
			route.Predicate = map[string]string{conditionName: conditionValue}
		}
		snap.Routes = append(snap.Routes, route)
	case ruleTypeObjectiveFanout:
		taskObjectivePropID := notion.PlainText(props, "Task → Objective Property ID")
		objectiveTasksPropID := notion.PlainText(props, "Objective → Tasks Property ID")
		if taskObjectivePropID == "" || objectiveTasksPropID == "" {
			logger.Error("fanout_config_row_invalid",
				"page_id", page.ID, "title", name,
				"origin_database_id", originDatabaseID,
				"task_objective_prop_id", taskObjectivePropID,
				"objective_tasks_prop_id", objectiveTasksPropID)
			return
		}
		snap.FanoutMappings = append(snap.FanoutMappings, FanoutMapping{
			TaskDatabaseID:        originDatabaseID,
			TaskObjectivePropID:   taskObjectivePropID,
			ObjectiveTasksPropID:  objectiveTasksPropID,
			ConditionPropertyName: conditionName,
			ConditionValue:        conditionValue,
		})
	default:
		logger.Warn("dispatch_config_rule_type_unknown",
			"page_id", page.ID, "title", name, "rule_type", ruleType)
	}
}

// rowEnabled reads the Enabled checkbox, honoring an explicit property id
// override when one is configured.
func rowEnabled(props map[string]any, enabledPropID string) bool {
	if enabledPropID != "" {
		return notion.CheckboxByKey(props, enabledPropID)
	}
	return notion.Checkbox(props, "Enabled")
}
