package events

import (
	"context"
	"fmt"

	"relayline/internal/notion"
)

type recordArgs struct {
	WorkflowDefinitionID string
	Instance             *Instance
	OriginDatabaseID     string
	StateValue           string
	EventTime            string
}

type ensureResult struct {
	RecordID string
	Created  bool
}

// ensureWorkflowRecord finds the workflow record keyed by (workflow
// definition, workflow instance) or creates it. The upsert is not guarded
// by a distributed lock; concurrent identical events could race to create
// duplicates, and that rare race is tolerated.
func (p *Pipeline) ensureWorkflowRecord(ctx context.Context, args recordArgs) (*ensureResult, error) {
	res, err := p.Store.QueryDatabase(ctx, p.Config.WorkflowRecordsDBID, notion.Query{
		Filter: map[string]any{
			"and": []any{
				map[string]any{
					"property": "Workflow Definition",
					"relation": map[string]any{"contains": args.WorkflowDefinitionID},
				},
				map[string]any{
					"property": "Workflow Instance Page ID",
					"rollup": map[string]any{
						"any": map[string]any{
							"rich_text": map[string]any{"equals": args.Instance.PageIDKey},
						},
					},
				},
			},
		},
		PageSize: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("find workflow record: %w", err)
	}
	if len(res.Results) > 0 && res.Results[0].ID != "" {
		return &ensureResult{RecordID: res.Results[0].ID, Created: false}, nil
	}

	name := args.Instance.PageName
	if name == "" {
		name = args.Instance.PageIDKey
	}
	recordID, err := p.Store.CreatePage(ctx, p.Config.WorkflowRecordsDBID, map[string]any{
		"Name":                        notion.TitleProp(name + " — " + args.WorkflowDefinitionID),
		"Workflow Definition":         notion.RelationProp(args.WorkflowDefinitionID),
		"Origin Database ID":          notion.RichTextProp(args.OriginDatabaseID),
		"Workflow Instance Page Name": notion.RichTextProp(args.Instance.PageName),
		"Workflow Instance Page URL":  notion.URLProp(args.Instance.PageURL),
		"Last Event Time":             notion.DateProp(args.EventTime),
		"Current Stage":               notion.RichTextProp(args.StateValue),
	})
	if err != nil {
		return nil, fmt.Errorf("create workflow record: %w", err)
	}
	return &ensureResult{RecordID: recordID, Created: true}, nil
}

// updateProjection refreshes the record's live view of the instance:
// last event time plus the stage the instance just moved to.
func (p *Pipeline) updateProjection(ctx context.Context, recordID, eventTime, stateValue string) error {
	err := p.Store.UpdatePage(ctx, recordID, map[string]any{
		"Last Event Time": notion.DateProp(eventTime),
		"Current Stage":   notion.RichTextProp(stateValue),
	})
	if err != nil {
		return fmt.Errorf("update workflow record projection: %w", err)
	}
	return nil
}
