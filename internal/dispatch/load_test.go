package dispatch

import (
	"context"
	"testing"

	"relayline/internal/config"
	"relayline/internal/notion"
)

func rtProp(text string) map[string]any {
	return map[string]any{"type": "rich_text", "rich_text": []any{map[string]any{"plain_text": text}}}
}

func titleProp(text string) map[string]any {
	return map[string]any{"type": "title", "title": []any{map[string]any{"plain_text": text}}}
}

func checkboxProp(b bool) map[string]any {
	return map[string]any{"type": "checkbox", "checkbox": b}
}

func selectProp(name string) map[string]any {
	return map[string]any{"type": "select", "select": map[string]any{"name": name}}
}

func TestLoadSnapshotParsesRoutesAndMappings(t *testing.T) {
	pageOne := notion.Page{ID: "row1", Properties: map[string]any{
		"Name":                       titleProp("review-started"),
		"Enabled":                    checkboxProp(true),
		"Rule Type":                  selectProp("DispatchCommand"),
		"Origin Database ID":         rtProp("AAAA-BBBB"),
		"Condition 1: Property Name": rtProp("Status"),
		"Condition 1: Value":         rtProp("In Review"),
	}}
	disabled := notion.Page{ID: "row2", Properties: map[string]any{
		"Name":               titleProp("disabled-rule"),
		"Enabled":            checkboxProp(false),
		"Rule Type":          selectProp("DispatchCommand"),
		"Origin Database ID": rtProp("AAAA-BBBB"),
	}}
	invalid := notion.Page{ID: "row3", Properties: map[string]any{
		"Name":    titleProp("missing-everything"),
		"Enabled": checkboxProp(true),
	}}
	fanout := notion.Page{ID: "row4", Properties: map[string]any{
		"Name":                          titleProp("tasks-fanout"),
		"Enabled":                       checkboxProp(true),
		"Rule Type":                     selectProp("ObjectiveFanoutConfig"),
		"Origin Database ID":            rtProp("CCCC"),
		"Task → Objective Property ID":  rtProp("po"),
		"Objective → Tasks Property ID": rtProp("pt"),
	}}

	store := &fakeStore{
		queryFn: func(databaseID string, q notion.Query) (*notion.QueryResult, error) {
			if databaseID != "config-db" {
				t.Fatalf("queried %s", databaseID)
			}
			if q.StartCursor == "" {
				return &notion.QueryResult{
					Results:    []notion.Page{pageOne, disabled},
					HasMore:    true,
					NextCursor: "c2",
				}, nil
			}
			return &notion.QueryResult{Results: []notion.Page{invalid, fanout}}, nil
		},
	}

	cfg := config.DispatchConfig{ConfigDBID: "config-db"}
	snap, err := LoadSnapshot(context.Background(), store, cfg, testLogger())
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if len(snap.Routes) != 1 {
		t.Fatalf("routes = %d, want 1", len(snap.Routes))
	}
	route := snap.Routes[0]
	if route.Name != "review-started" {
		t.Fatalf("route name = %q", route.Name)
	}
	if route.DatabaseID != "aaaabbbb" {
		t.Fatalf("route database id not canonicalized: %q", route.DatabaseID)
	}
	if route.Predicate["Status"] != "In Review" {
		t.Fatalf("route predicate = %v", route.Predicate)
	}

	if len(snap.FanoutMappings) != 1 {
		t.Fatalf("mappings = %d, want 1", len(snap.FanoutMappings))
	}
	m := snap.FanoutMappings[0]
	if m.TaskDatabaseID != "cccc" || m.TaskObjectivePropID != "po" || m.ObjectiveTasksPropID != "pt" {
		t.Fatalf("mapping = %+v", m)
	}
}

func TestLoadSnapshotRequiresConfigDB(t *testing.T) {
	if _, err := LoadSnapshot(context.Background(), &fakeStore{}, config.DispatchConfig{}, testLogger()); err == nil {
		t.Fatal("expected error for missing config db id")
	}
}

func TestLoadSnapshotHonorsEnabledPropIDOverride(t *testing.T) {
	page := notion.Page{ID: "row1", Properties: map[string]any{
		"Name":               titleProp("r"),
		"Custom Enabled":     map[string]any{"id": "cust", "type": "checkbox", "checkbox": true},
		"Enabled":            checkboxProp(false),
		"Rule Type":          selectProp("DispatchCommand"),
		"Origin Database ID": rtProp("db1"),
	}}
	store := &fakeStore{
		queryFn: func(databaseID string, q notion.Query) (*notion.QueryResult, error) {
			return &notion.QueryResult{Results: []notion.Page{page}}, nil
		},
	}
	cfg := config.DispatchConfig{ConfigDBID: "config-db", ConfigEnabledPropID: "cust"}
	snap, err := LoadSnapshot(context.Background(), store, cfg, testLogger())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(snap.Routes) != 1 {
		t.Fatalf("routes = %d, want 1 via enabled override", len(snap.Routes))
	}
}
