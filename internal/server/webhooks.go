package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"relayline/internal/capture"
	"relayline/internal/dispatch"
	"relayline/internal/events"
	"relayline/internal/webhook"
)

// webhookInput carries the raw delivery body; normalization owns the
// parsing so malformed payloads map to the envelope, not schema errors.
type webhookInput struct {
	RawBody []byte `contentType:"application/json"`
}

func registerDispatchWebhook(api huma.API, cfg Config) {
	huma.Register(api, huma.Operation{
		OperationID: "dispatch-webhook",
		Method:      http.MethodPost,
		Path:        "/webhooks/dispatch",
		Summary:     "Ingest a dispatch webhook",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusBadGateway,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *webhookInput) (*struct {
		Body dispatch.Result `json:"body"`
	}, error) {
		requestID := uuid.NewString()
		captureDelivery(ctx, cfg, requestID, "dispatch", input.RawBody)

		ev, err := webhook.Normalize(input.RawBody)
		if err != nil {
			return nil, handleError(err)
		}
		res, err := cfg.Dispatch.Dispatch(ctx, requestID, ev)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body dispatch.Result `json:"body"`
		}{Body: res}, nil
	})
}

func registerEventsWebhook(api huma.API, cfg Config) {
	huma.Register(api, huma.Operation{
		OperationID: "events-webhook",
		Method:      http.MethodPost,
		Path:        "/webhooks/events",
		Summary:     "Ingest an events webhook",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusBadGateway,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *webhookInput) (*struct {
		Body events.Result `json:"body"`
	}, error) {
		requestID := uuid.NewString()
		captureDelivery(ctx, cfg, requestID, "events", input.RawBody)

		ev, err := webhook.Normalize(input.RawBody)
		if err != nil {
			return nil, handleError(err)
		}
		res, err := cfg.Events.Process(ctx, requestID, ev)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body events.Result `json:"body"`
		}{Body: *res}, nil
	})
}

// captureDelivery is best-effort: failures are logged, never surfaced to
// the webhook caller.
func captureDelivery(ctx context.Context, cfg Config, requestID, surface string, body []byte) {
	if cfg.Captures == nil {
		return
	}
	err := cfg.Captures.Insert(ctx, capture.Capture{
		RequestID: requestID,
		Surface:   surface,
		Body:      string(body),
	})
	if err != nil {
		cfg.Logger.Warn("webhook_capture_failed", "request_id", requestID, "error", err)
	}
}

type captureRow struct {
	ID         string `json:"id"`
	RequestID  string `json:"request_id"`
	Surface    string `json:"surface"`
	ReceivedAt string `json:"received_at"`
	Body       string `json:"body"`
}

func registerCaptures(api huma.API, cfg Config) {
	type capturesInput struct {
		Limit int `query:"limit" default:"50" minimum:"1" maximum:"500"`
	}
	huma.Register(api, huma.Operation{
		OperationID: "list-captures",
		Method:      http.MethodGet,
		Path:        "/captures",
		Summary:     "List recently captured webhook deliveries",
	}, func(ctx context.Context, input *capturesInput) (*struct {
		Body []captureRow `json:"body"`
	}, error) {
		rows, err := cfg.Captures.ListRecent(ctx, input.Limit)
		if err != nil {
			return nil, handleError(err)
		}
		out := make([]captureRow, 0, len(rows))
		for _, c := range rows {
			out = append(out, captureRow{
				ID:         c.ID,
				RequestID:  c.RequestID,
				Surface:    c.Surface,
				ReceivedAt: c.ReceivedAt,
				Body:       c.Body,
			})
		}
		return &struct {
			Body []captureRow `json:"body"`
		}{Body: out}, nil
	})
}
