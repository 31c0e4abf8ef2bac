package dispatch

import (
	"context"
	"fmt"
	"sync"

	"relayline/internal/notion"
)

// fakeStore is an in-memory Store for tests.
type fakeStore struct {
	mu      sync.Mutex
	created []createdPage

	// failTitles lists command titles whose creation should fail.
	failTitles map[string]bool

	queryFn         func(databaseID string, q notion.Query) (*notion.QueryResult, error)
	relations       map[string][]string
	singleRelations map[string]string

	// blockRelations, when non-nil, makes RelationIDs wait until the
	// channel is closed. Used to hold a fan-out run in flight.
	blockRelations chan struct{}
}

type createdPage struct {
	DatabaseID string
	Props      map[string]any
}

func (s *fakeStore) QueryDatabase(ctx context.Context, databaseID string, q notion.Query) (*notion.QueryResult, error) {
	if s.queryFn == nil {
		return &notion.QueryResult{}, nil
	}
	return s.queryFn(databaseID, q)
}

func (s *fakeStore) CreatePage(ctx context.Context, parentDatabaseID string, properties map[string]any) (string, error) {
	title := titleOf(properties)
	if s.failTitles[title] {
		return "", fmt.Errorf("create page %q failed", title)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created = append(s.created, createdPage{DatabaseID: parentDatabaseID, Props: properties})
	return fmt.Sprintf("created-%d", len(s.created)), nil
}

func (s *fakeStore) RelationIDs(ctx context.Context, pageID, propID string) ([]string, error) {
	if s.blockRelations != nil {
		<-s.blockRelations
	}
	return s.relations[pageID+"/"+propID], nil
}

func (s *fakeStore) SingleRelationID(ctx context.Context, pageID, propID string) (string, error) {
	return s.singleRelations[pageID+"/"+propID], nil
}

func (s *fakeStore) createdCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.created)
}

// titleOf extracts the title text from write-side page properties.
func titleOf(props map[string]any) string {
	for _, raw := range props {
		obj, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		items, ok := obj["title"].([]any)
		if !ok || len(items) == 0 {
			continue
		}
		frag, ok := items[0].(map[string]any)
		if !ok {
			continue
		}
		if txt, ok := frag["text"].(map[string]any); ok {
			if content, _ := txt["content"].(string); content != "" {
				return content
			}
		}
	}
	return ""
}
