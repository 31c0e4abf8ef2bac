// Package webhook normalizes inbound Notion webhook deliveries into the
// canonical event shape the dispatch and events pipelines consume.
package webhook

import (
	"encoding/json"
	"fmt"
)

// Event is the normalized form of a page-change delivery. The rest of the
// service never sees raw HTTP bodies.
type Event struct {
	OriginDatabaseID     string
	OriginPageID         string
	Properties           map[string]any
	OriginPageURL        string
	OriginLastEditedTime string
	SourceEventID        string
	Attempt              int
}

// ParseError marks a structurally invalid payload. The HTTP layer maps it
// to a 400 instead of a 500.
type ParseError struct {
	msg string
}

func (e *ParseError) Error() string { return e.msg }

// NewParseError lets downstream pipelines report payload defects they can
// only detect after normalization, such as a missing event id.
func NewParseError(msg string) error {
	return &ParseError{msg: msg}
}

func parseErrorf(format string, args ...any) error {
	return &ParseError{msg: fmt.Sprintf(format, args...)}
}

type rawPayload struct {
	Source *struct {
		EventID string `json:"event_id"`
		Attempt int    `json:"attempt"`
	} `json:"source"`
	Data *struct {
		Object         string         `json:"object"`
		ID             string         `json:"id"`
		URL            string         `json:"url"`
		LastEditedTime string         `json:"last_edited_time"`
		Parent         map[string]any `json:"parent"`
		Properties     map[string]any `json:"properties"`
	} `json:"data"`
}

// Normalize parses a raw delivery body. The payload must describe a page
// object with a database parent; everything else is rejected.
func Normalize(body []byte) (*Event, error) {
	var raw rawPayload
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, parseErrorf("webhook payload must be a JSON object: %v", err)
	}
	if raw.Data == nil {
		return nil, parseErrorf("missing data object on webhook payload")
	}
	if raw.Data.Object != "page" {
		return nil, parseErrorf("expected data.object == %q, got %q", "page", raw.Data.Object)
	}
	if raw.Data.ID == "" {
		return nil, parseErrorf("missing origin page id on data.id")
	}
	databaseID, _ := raw.Data.Parent["database_id"].(string)
	if databaseID == "" {
		return nil, parseErrorf("missing origin database id on data.parent.database_id")
	}
	props := raw.Data.Properties
	if props == nil {
		props = map[string]any{}
	}

	ev := &Event{
		OriginDatabaseID:     databaseID,
		OriginPageID:         raw.Data.ID,
		Properties:           props,
		OriginPageURL:        raw.Data.URL,
		OriginLastEditedTime: raw.Data.LastEditedTime,
	}
	if raw.Source != nil {
		ev.SourceEventID = raw.Source.EventID
		ev.Attempt = raw.Source.Attempt
	}
	return ev, nil
}
