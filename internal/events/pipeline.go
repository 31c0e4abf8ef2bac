// Package events ingests state-transition webhooks: it resolves routing
// configuration and the referenced workflow definition, deduplicates by
// event uid, upserts a workflow record, appends an immutable event-log
// entry, and refreshes the record's live projection. All jobs run
// strictly serialized through a per-process FIFO queue.
package events

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"relayline/internal/config"
	"relayline/internal/notion"
	"relayline/internal/webhook"
)

// Store is the slice of the Notion client the pipeline uses.
type Store interface {
	QueryDatabase(ctx context.Context, databaseID string, q notion.Query) (*notion.QueryResult, error)
	CreatePage(ctx context.Context, parentDatabaseID string, properties map[string]any) (string, error)
	UpdatePage(ctx context.Context, pageID string, properties map[string]any) error
	GetPage(ctx context.Context, pageID string) (*notion.Page, error)
}

// Pipeline processes events webhooks one at a time.
type Pipeline struct {
	Store  Store
	Config config.EventsConfig
	Logger *slog.Logger

	// Now is injectable for tests.
	Now func() time.Time

	queue *Queue
}

// NewPipeline wires the pipeline and starts its worker queue.
func NewPipeline(store Store, cfg config.EventsConfig, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		Store:  store,
		Config: cfg,
		Logger: logger,
		Now:    time.Now,
		queue:  NewQueue(64),
	}
}

// Close drains the queue. Jobs already accepted still run.
func (p *Pipeline) Close() { p.queue.Close() }

// Result is the ingestion outcome returned to the webhook caller. Skips
// are successful outcomes with a reason, not errors.
type Result struct {
	OK               bool   `json:"ok"`
	RequestID        string `json:"request_id"`
	Skipped          bool   `json:"skipped,omitempty"`
	Reason           string `json:"reason,omitempty"`
	Deduped          bool   `json:"deduped,omitempty"`
	WorkflowRecordID string `json:"workflow_record_id,omitempty"`
}

// Skip reasons surfaced in Result.Reason.
const (
	SkipNoMatchingConfig         = "no_matching_events_config"
	SkipDefinitionDisabled       = "workflow_definition_disabled"
	SkipStatePropertyMissing     = "state_property_missing"
	SkipNoStateValue             = "no_state_value"
	SkipContainerNotConfigured   = "container_property_not_configured"
	SkipContainerRelationMissing = "container_relation_missing"
)

// Process runs one ingestion job through the FIFO queue and waits for its
// outcome. A job's failure settles that job only; the queue advances.
// Only the wait honors ctx: the job itself runs detached, so a caller
// disconnect cannot abort the write sequence between the event-log entry
// and the projection update and strand a deduped-but-unprojected record.
func (p *Pipeline) Process(ctx context.Context, requestID string, ev *webhook.Event) (*Result, error) {
	var (
		res *Result
		err error
	)
	jobCtx := context.WithoutCancel(ctx)
	if qerr := p.queue.Do(ctx, func() {
		res, err = p.process(jobCtx, requestID, ev)
	}); qerr != nil {
		return nil, qerr
	}
	return res, err
}

func (p *Pipeline) process(ctx context.Context, requestID string, ev *webhook.Event) (*Result, error) {
	if err := p.Config.Validate(); err != nil {
		return nil, err
	}

	eventUID := ev.SourceEventID
	if eventUID == "" {
		return nil, webhook.NewParseError("missing source event id on source.event_id")
	}
	attempt := ev.Attempt
	if attempt == 0 {
		attempt = 1
	}

	receivedAt := p.Now().UTC().Format(time.RFC3339)
	eventTime := ev.OriginLastEditedTime
	if eventTime == "" {
		eventTime = receivedAt
	}

	originDatabaseIDKey := notion.NormalizeID(ev.OriginDatabaseID)
	originPageIDKey := notion.NormalizeID(ev.OriginPageID)
	originPageName := notion.Title(ev.Properties)

	candidates, err := p.loadCandidates(ctx, originDatabaseIDKey, ev.Properties)
	if err != nil {
		return nil, err
	}
	resolved, reason := SelectCandidate(candidates)
	if resolved == nil {
		p.Logger.Warn("skipped_no_matching_events_config",
			"request_id", requestID,
			"origin_database_id", originDatabaseIDKey,
			"origin_database_id_raw", ev.OriginDatabaseID,
			"origin_page_id", originPageIDKey,
			"webhook_property_keys_count", len(ev.Properties))
		return &Result{OK: true, RequestID: requestID, Skipped: true, Reason: SkipNoMatchingConfig}, nil
	}
	if reason == ReasonMultiStatePresent || reason == ReasonMultiCandidateNoState {
		p.Logger.Warn("ambiguous_events_config_candidates",
			"request_id", requestID,
			"selection_reason", string(reason),
			"candidate_count", len(candidates),
			"origin_database_id", originDatabaseIDKey,
			"workflow_definition_id", resolved.WorkflowDefinitionID)
	}
	if !resolved.StatePropertyPresent {
		p.Logger.Warn("matched_events_config_but_state_property_missing_in_payload",
			"request_id", requestID,
			"workflow_definition_id", resolved.WorkflowDefinitionID,
			"origin_database_id", originDatabaseIDKey,
			"origin_page_id", originPageIDKey,
			"state_property_name", resolved.StatePropertyName)
	}

	def, err := p.definitionMeta(ctx, resolved.WorkflowDefinitionID)
	if err != nil {
		return nil, err
	}
	if !def.Enabled {
		p.Logger.Info("skipped_workflow_definition_disabled",
			"request_id", requestID,
			"workflow_definition_id", def.ID,
			"origin_database_id", originDatabaseIDKey,
			"origin_page_id", originPageIDKey)
		return &Result{OK: true, RequestID: requestID, Skipped: true, Reason: SkipDefinitionDisabled}, nil
	}

	raw, present := ev.Properties[resolved.StatePropertyName]
	if !present {
		p.Logger.Warn("skipped_state_property_missing",
			"request_id", requestID,
			"origin_database_id", originDatabaseIDKey,
			"origin_page_id", originPageIDKey,
			"state_property_name", resolved.StatePropertyName)
		return &Result{OK: true, RequestID: requestID, Skipped: true, Reason: SkipStatePropertyMissing}, nil
	}
	stateValue := stateValueText(raw)
	if stateValue == "" {
		p.Logger.Warn("skipped_no_state_value",
			"request_id", requestID,
			"origin_database_id", originDatabaseIDKey,
			"origin_page_id", originPageIDKey,
			"state_property_name", resolved.StatePropertyName)
		return &Result{OK: true, RequestID: requestID, Skipped: true, Reason: SkipNoStateValue}, nil
	}

	instance, err := p.resolveInstance(ctx, def, ev, originPageName)
	if err != nil {
		switch {
		case errors.Is(err, ErrContainerPropertyNotConfigured):
			p.Logger.Warn("skipped_container_property_not_configured",
				"request_id", requestID,
				"workflow_definition_id", def.ID,
				"origin_database_id", originDatabaseIDKey,
				"origin_page_id", originPageIDKey)
			return &Result{OK: true, RequestID: requestID, Skipped: true, Reason: SkipContainerNotConfigured}, nil
		case errors.Is(err, ErrContainerRelationMissing):
			p.Logger.Warn("skipped_container_relation_missing",
				"request_id", requestID,
				"container_property_name", def.ContainerPropertyName,
				"workflow_definition_id", def.ID,
				"origin_database_id", originDatabaseIDKey,
				"origin_page_id", originPageIDKey)
			return &Result{OK: true, RequestID: requestID, Skipped: true, Reason: SkipContainerRelationMissing}, nil
		}
		return nil, err
	}

	duplicate, err := p.isDuplicateEvent(ctx, eventUID)
	if err != nil {
		return nil, err
	}
	if duplicate {
		p.Logger.Info("event_deduped",
			"request_id", requestID,
			"event_uid", eventUID,
			"attempt", attempt)
		return &Result{OK: true, RequestID: requestID, Deduped: true}, nil
	}

	ensure, err := p.ensureWorkflowRecord(ctx, recordArgs{
		WorkflowDefinitionID: def.ID,
		Instance:             instance,
		OriginDatabaseID:     originDatabaseIDKey,
		StateValue:           stateValue,
		EventTime:            eventTime,
	})
	if err != nil {
		return nil, err
	}
	recordEvent := "workflow_record_reused"
	if ensure.Created {
		recordEvent = "workflow_record_created"
	}
	recordFields := []any{
		"request_id", requestID,
		"workflow_record_id", ensure.RecordID,
		"workflow_definition_id", def.ID,
		"origin_page_id", originPageIDKey,
		"workflow_instance_page_id", instance.PageIDKey,
		"workflow_type", string(def.Type),
	}
	if def.Type == WorkflowMultiObject {
		recordFields = append(recordFields, "container_property_name", def.ContainerPropertyName)
	}
	p.Logger.Info(recordEvent, recordFields...)

	if err := p.writeEventLogEntry(ctx, map[string]any{
		"Event UID":                 notion.TitleProp(eventUID),
		"Attempt":                   notion.NumberProp(float64(attempt)),
		"Event Time":                notion.DateProp(eventTime),
		"Received At":               notion.DateProp(receivedAt),
		"Request ID":                notion.RichTextProp(requestID),
		"Source Event ID":           notion.RichTextProp(eventUID),
		"State Property Name":       notion.RichTextProp(resolved.StatePropertyName),
		"State Value":               notion.RichTextProp(stateValue),
		"Origin Database ID":        notion.RichTextProp(originDatabaseIDKey),
		"Origin Database Name":      notion.RichTextProp(resolved.OriginDatabaseName),
		"Origin Page ID":            notion.RichTextProp(originPageIDKey),
		"Origin Page Name":          notion.RichTextProp(originPageName),
		"Origin Page URL":           notion.URLProp(ev.OriginPageURL),
		"Workflow Instance Page ID": notion.RichTextProp(instance.PageIDKey),
		"Workflow Records":          notion.RelationProp(ensure.RecordID),
	}); err != nil {
		return nil, err
	}

	if err := p.updateProjection(ctx, ensure.RecordID, eventTime, stateValue); err != nil {
		return nil, err
	}

	p.Logger.Info("event_created",
		"request_id", requestID,
		"event_uid", eventUID,
		"workflow_record_id", ensure.RecordID,
		"origin_database_id", originDatabaseIDKey,
		"origin_page_id", originPageIDKey,
		"state_property_name", resolved.StatePropertyName,
		"state_value", stateValue)

	return &Result{OK: true, RequestID: requestID, WorkflowRecordID: ensure.RecordID}, nil
}

// stateValueText reduces a raw payload property to the textual state it
// carries. Multi-select joins its options; unreadable shapes reduce to
// the empty string, which the caller treats as no state value.
func stateValueText(raw any) string {
	v := notion.DecodeValue(raw)
	if v.Kind == notion.KindMultiSelect {
		return strings.TrimSpace(strings.Join(v.List, ", "))
	}
	return strings.TrimSpace(v.Text)
}
