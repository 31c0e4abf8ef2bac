package events

import (
	"context"
	"fmt"

	"relayline/internal/notion"
)

// loadCandidates enumerates enabled events-config rows and keeps those
// whose stored origin database id matches the event's origin. Ids on both
// sides are canonicalized; rows missing a state property name or a
// workflow definition relation are skipped with a diagnostic.
func (p *Pipeline) loadCandidates(ctx context.Context, originDatabaseIDKey string, payloadProps map[string]any) ([]ConfigCandidate, error) {
	filter := map[string]any{
		"property": "Enabled",
		"checkbox": map[string]any{"equals": true},
	}

	var candidates []ConfigCandidate
	cursor := ""
	for {
		res, err := p.Store.QueryDatabase(ctx, p.Config.EventsConfigDBID, notion.Query{
			Filter:      filter,
			StartCursor: cursor,
			PageSize:    100,
		})
		if err != nil {
			return nil, fmt.Errorf("load events config: %w", err)
		}
		for _, page := range res.Results {
			props := page.Properties

			// The query already filtered on Enabled; re-check in case the
			// filter property is misnamed in the collection.
			if !notion.Checkbox(props, "Enabled") {
				continue
			}
			storedOrigin := notion.NormalizeID(notion.PlainText(props, "Origin Database ID"))
			if storedOrigin != originDatabaseIDKey {
				continue
			}

			statePropertyName := notion.PlainText(props, "State Property Name")
			workflowDefinitionID := notion.FirstRelationID(props, "Workflow Definition")
			if statePropertyName == "" || workflowDefinitionID == "" {
				p.Logger.Warn("events_config_row_incomplete",
					"page_id", page.ID,
					"state_property_name", statePropertyName,
					"has_workflow_definition", workflowDefinitionID != "")
				continue
			}

			_, present := payloadProps[statePropertyName]
			candidates = append(candidates, ConfigCandidate{
				WorkflowDefinitionID: workflowDefinitionID,
				StatePropertyName:    statePropertyName,
				OriginDatabaseName:   notion.TitleText(props, "Origin Database Name"),
				StatePropertyPresent: present,
			})
		}
		if !res.HasMore || res.NextCursor == "" {
			return candidates, nil
		}
		cursor = res.NextCursor
	}
}
