// Package dispatch implements the routing-and-fan-out decision engine:
// it resolves which routes apply to an inbound page-change event against
// a TTL-cached configuration snapshot, picks an execution path, and
// carries out the follow-on command writes.
package dispatch

import (
	"context"
	"time"

	"relayline/internal/notion"
)

// Store is the slice of the remote workspace client this package needs.
// *notion.Client satisfies it.
type Store interface {
	QueryDatabase(ctx context.Context, databaseID string, q notion.Query) (*notion.QueryResult, error)
	CreatePage(ctx context.Context, parentDatabaseID string, properties map[string]any) (string, error)
	RelationIDs(ctx context.Context, pageID, propID string) ([]string, error)
	SingleRelationID(ctx context.Context, pageID, propID string) (string, error)
}

// Route is a named dispatch rule: events from DatabaseID that satisfy
// every predicate entry produce a command labeled with Name.
type Route struct {
	Name       string            `json:"route_name" yaml:"route_name"`
	DatabaseID string            `json:"database_id" yaml:"database_id"`
	Predicate  map[string]string `json:"predicate,omitempty" yaml:"predicate,omitempty"`
}

// FanoutMapping wires a task collection to its parent objective through
// two relation property ids. Its presence for an origin collection turns
// a matched event into a one-objective-to-many-tasks fan-out.
type FanoutMapping struct {
	TaskDatabaseID        string `json:"task_database_id" yaml:"task_database_id"`
	TaskObjectivePropID   string `json:"task_objective_prop_id" yaml:"task_objective_prop_id"`
	ObjectiveTasksPropID  string `json:"objective_tasks_prop_id" yaml:"objective_tasks_prop_id"`
	ConditionPropertyName string `json:"condition_property_name,omitempty" yaml:"condition_property_name,omitempty"`
	ConditionValue        string `json:"condition_value,omitempty" yaml:"condition_value,omitempty"`
}

// Snapshot is an immutable point-in-time materialization of the dispatch
// configuration. It is replaced wholesale on refresh, never mutated.
type Snapshot struct {
	Routes         []Route
	FanoutMappings []FanoutMapping
	LoadedAt       time.Time
}

// Event is a normalized inbound event as seen by the matcher: the origin
// database id is already canonicalized.
type Event struct {
	OriginDatabaseID string
	OriginPageID     string
	Properties       map[string]any
}
