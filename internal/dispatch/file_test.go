package dispatch

import (
	"os"
	"path/filepath"
	"testing"
)

func writeSnapshotFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "routes.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	return path
}

func TestLoadSnapshotFile(t *testing.T) {
	path := writeSnapshotFile(t, `
routes:
  - route_name: review-started
    database_id: AAAA-BBBB-CCCC
    predicate:
      Status: In Review
  - route_name: any-change
    database_id: dddd
fanout_mappings:
  - task_database_id: EEEE
    task_objective_prop_id: po
    objective_tasks_prop_id: pt
`)
	snap, err := LoadSnapshotFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(snap.Routes) != 2 {
		t.Fatalf("routes = %d", len(snap.Routes))
	}
	if snap.Routes[0].DatabaseID != "aaaabbbbcccc" {
		t.Fatalf("database id not canonicalized: %q", snap.Routes[0].DatabaseID)
	}
	if snap.Routes[0].Predicate["Status"] != "In Review" {
		t.Fatalf("predicate = %v", snap.Routes[0].Predicate)
	}
	if len(snap.FanoutMappings) != 1 || snap.FanoutMappings[0].TaskDatabaseID != "eeee" {
		t.Fatalf("mappings = %+v", snap.FanoutMappings)
	}
}

func TestLoadSnapshotFileRejectsIncompleteRows(t *testing.T) {
	cases := []string{
		"routes:\n  - database_id: aaa\n",
		"routes:\n  - route_name: r\n",
		"fanout_mappings:\n  - task_database_id: aaa\n",
	}
	for i, contents := range cases {
		path := writeSnapshotFile(t, contents)
		if _, err := LoadSnapshotFile(path); err == nil {
			t.Fatalf("case %d: expected validation error", i)
		}
	}
}
