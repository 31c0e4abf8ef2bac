package dispatch

import (
	"context"

	"relayline/internal/notion"
)

// commandSpec describes one command record: a page whose presence in the
// commands collection triggers downstream automation.
type commandSpec struct {
	DatabaseID           string
	TitleKey             string
	Title                string
	TriggerKeyPropID     string
	TriggerKey           string
	DirectivePropID      string
	DirectiveValues      []string
	TargetRelationPropID string
	TargetPageID         string
}

func createCommand(ctx context.Context, store Store, spec commandSpec) error {
	props := map[string]any{
		spec.TargetRelationPropID: notion.RelationProp(spec.TargetPageID),
		spec.TriggerKeyPropID:     notion.RichTextProp(spec.TriggerKey),
	}
	if spec.DirectivePropID != "" && len(spec.DirectiveValues) > 0 {
		props[spec.DirectivePropID] = notion.MultiSelectProp(spec.DirectiveValues)
	}
	titleKey := spec.TitleKey
	if titleKey == "" {
		titleKey = "Name"
	}
	props[titleKey] = notion.TitleProp(spec.Title)

	_, err := store.CreatePage(ctx, spec.DatabaseID, props)
	return err
}
