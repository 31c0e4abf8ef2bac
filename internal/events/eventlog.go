package events

import (
	"context"
	"fmt"

	"relayline/internal/notion"
)

// isDuplicateEvent reports whether an event-log entry already exists for
// the caller-supplied event UID. The event log doubles as the dedupe
// index: entries are write-once and titled by UID.
func (p *Pipeline) isDuplicateEvent(ctx context.Context, eventUID string) (bool, error) {
	res, err := p.Store.QueryDatabase(ctx, p.Config.EventsDBID, notion.Query{
		Filter: map[string]any{
			"property": "Event UID",
			"title":    map[string]any{"equals": eventUID},
		},
		PageSize: 1,
	})
	if err != nil {
		return false, fmt.Errorf("dedupe lookup for %s: %w", eventUID, err)
	}
	return len(res.Results) > 0, nil
}

// writeEventLogEntry appends one immutable entry to the event log.
func (p *Pipeline) writeEventLogEntry(ctx context.Context, properties map[string]any) error {
	if _, err := p.Store.CreatePage(ctx, p.Config.EventsDBID, properties); err != nil {
		return fmt.Errorf("write event log entry: %w", err)
	}
	return nil
}
