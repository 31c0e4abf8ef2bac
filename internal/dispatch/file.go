package dispatch

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"relayline/internal/notion"
)

// snapshotFile is the YAML shape of a local dispatch config overlay. It
// mirrors the config collection so a deployment can be validated or
// exercised without reaching the workspace.
type snapshotFile struct {
	Routes         []Route         `yaml:"routes"`
	FanoutMappings []FanoutMapping `yaml:"fanout_mappings"`
}

// LoadSnapshotFile reads a dispatch configuration snapshot from a YAML
// file, canonicalizing every database id.
func LoadSnapshotFile(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var file snapshotFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("invalid dispatch config yaml: %w", err)
	}

	snap := &Snapshot{LoadedAt: time.Now()}
	for i, route := range file.Routes {
		if route.Name == "" {
			return nil, fmt.Errorf("routes[%d]: route_name is required", i)
		}
		if route.DatabaseID == "" {
			return nil, fmt.Errorf("routes[%d] (%s): database_id is required", i, route.Name)
		}
		route.DatabaseID = notion.NormalizeID(route.DatabaseID)
		snap.Routes = append(snap.Routes, route)
	}
	for i, m := range file.FanoutMappings {
		if m.TaskDatabaseID == "" || m.TaskObjectivePropID == "" || m.ObjectiveTasksPropID == "" {
			return nil, fmt.Errorf("fanout_mappings[%d]: task_database_id, task_objective_prop_id and objective_tasks_prop_id are required", i)
		}
		m.TaskDatabaseID = notion.NormalizeID(m.TaskDatabaseID)
		snap.FanoutMappings = append(snap.FanoutMappings, m)
	}
	return snap, nil
}
