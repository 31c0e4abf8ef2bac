package events

import (
	"context"
	"errors"
	"fmt"

	"relayline/internal/notion"
	"relayline/internal/webhook"
)

// WorkflowType distinguishes whether the origin page itself is the
// process subject or whether the subject hangs off a container relation.
type WorkflowType string

const (
	WorkflowSingleObject WorkflowType = "single_object"
	WorkflowMultiObject  WorkflowType = "multi_object"
)

// DefinitionMeta is the slice of a workflow definition page the pipeline
// acts on.
type DefinitionMeta struct {
	ID                    string
	Enabled               bool
	Type                  WorkflowType
	ContainerPropertyName string
	StepsPropID           string
}

// definitionMeta loads and validates the workflow definition referenced
// by a config row.
func (p *Pipeline) definitionMeta(ctx context.Context, definitionID string) (*DefinitionMeta, error) {
	page, err := p.Store.GetPage(ctx, definitionID)
	if err != nil {
		return nil, err
	}
	props := page.Properties

	stepsPropID := notion.PropertyID(props, "Workflow Steps")
	if stepsPropID == "" {
		return nil, fmt.Errorf("workflow definition %s: missing Workflow Steps property id", definitionID)
	}

	typeName := notion.SelectName(props, "Workflow Type")
	if typeName != string(WorkflowSingleObject) && typeName != string(WorkflowMultiObject) {
		return nil, fmt.Errorf("workflow definition %s: invalid Workflow Type %q", definitionID, typeName)
	}

	return &DefinitionMeta{
		ID:                    definitionID,
		Enabled:               notion.Checkbox(props, "Enabled"),
		Type:                  WorkflowType(typeName),
		ContainerPropertyName: notion.PlainText(props, "Container Property"),
		StepsPropID:           stepsPropID,
	}, nil
}

// Instance identifies the concrete subject undergoing a workflow.
type Instance struct {
	PageID    string
	PageIDKey string
	PageName  string
	PageURL   string
}

// Instance resolution misses. They surface as skip outcomes, not errors.
var (
	ErrContainerPropertyNotConfigured = errors.New("container property not configured")
	ErrContainerRelationMissing       = errors.New("container relation missing")
)

// resolveInstance finds the workflow instance for an event. Single-object
// workflows use the origin page itself; multi-object workflows follow the
// configured container relation and fetch the container for its display
// name and URL.
func (p *Pipeline) resolveInstance(ctx context.Context, def *DefinitionMeta, ev *webhook.Event, originPageName string) (*Instance, error) {
	if def.Type == WorkflowSingleObject {
		return &Instance{
			PageID:    ev.OriginPageID,
			PageIDKey: notion.NormalizeID(ev.OriginPageID),
			PageName:  originPageName,
			PageURL:   ev.OriginPageURL,
		}, nil
	}

	if def.ContainerPropertyName == "" {
		return nil, ErrContainerPropertyNotConfigured
	}
	containerID := notion.FirstRelationID(ev.Properties, def.ContainerPropertyName)
	if containerID == "" {
		return nil, ErrContainerRelationMissing
	}

	container, err := p.Store.GetPage(ctx, containerID)
	if err != nil {
		return nil, err
	}
	return &Instance{
		PageID:    containerID,
		PageIDKey: notion.NormalizeID(containerID),
		PageName:  notion.Title(container.Properties),
		PageURL:   container.URL,
	}, nil
}
