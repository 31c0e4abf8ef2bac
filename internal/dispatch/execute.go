package dispatch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"relayline/internal/config"
)

// Result summarizes one executed plan.
type Result struct {
	OK              bool     `json:"ok"`
	RequestID       string   `json:"request_id"`
	FanoutApplied   bool     `json:"fanout_applied"`
	MatchedRoutes   []string `json:"matched_routes"`
	CommandsCreated int      `json:"commands_created"`
}

// Executor carries out a plan: it either no-ops, creates one command per
// matched route, or hands off to the fan-out coordinator.
type Executor struct {
	Store       Store
	Config      config.DispatchConfig
	Coordinator *Coordinator
	Logger      *slog.Logger
}

// Execute consumes a plan. Partial per-route failures reduce the command
// count but never fail the call; only missing required configuration
// errors out, and it does so before any remote write.
func (x *Executor) Execute(ctx context.Context, requestID string, plan Plan) (Result, error) {
	switch plan.Kind {
	case PlanNoop:
		return Result{OK: true, RequestID: requestID, MatchedRoutes: []string{}}, nil
	case PlanFanout:
		x.Logger.Info("fanout_plan_executing",
			"request_id", requestID, "origin_task_id", plan.OriginPageID)
		x.Coordinator.Enqueue(ctx, FanoutRequest{
			RequestID:            requestID,
			OriginTaskID:         plan.OriginPageID,
			TaskObjectivePropID:  plan.TaskObjectivePropID,
			ObjectiveTasksPropID: plan.ObjectiveTasksPropID,
			MatchedRouteNames:    plan.MatchedRouteNames,
		})
		return Result{
			OK:            true,
			RequestID:     requestID,
			FanoutApplied: true,
			MatchedRoutes: plan.MatchedRouteNames,
		}, nil
	default:
		return x.executeSingle(ctx, requestID, plan)
	}
}

func (x *Executor) executeSingle(ctx context.Context, requestID string, plan Plan) (Result, error) {
	if err := x.Config.ValidateSingle(); err != nil {
		return Result{}, err
	}

	startedAt := time.Now()
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
		failed  int
	)
	for _, routeName := range plan.MatchedRouteNames {
		wg.Add(1)
		go func(routeName string) {
			defer wg.Done()
			x.Logger.Info("creating_origin_command",
				"request_id", requestID, "route_name", routeName)
			spec := commandSpec{
				DatabaseID:           x.Config.CommandsDBID,
				TitleKey:             x.Config.CommandsNamePropID,
				Title:                routeName,
				TriggerKeyPropID:     x.Config.CommandsTriggerKeyPropID,
				TriggerKey:           x.Config.TriggerKey,
				TargetRelationPropID: x.Config.CommandsTargetPagePropID,
				TargetPageID:         plan.OriginPageID,
			}
			if x.Config.CommandsDirectivePropID != "" {
				spec.DirectivePropID = x.Config.CommandsDirectivePropID
				spec.DirectiveValues = []string{routeName}
			}
			err := createCommand(ctx, x.Store, spec)
			mu.Lock()
			if err != nil {
				failed++
			} else {
				created++
			}
			mu.Unlock()
			if err != nil {
				x.Logger.Error("create_origin_command_failed",
					"request_id", requestID, "route_name", routeName, "error", err)
			}
		}(routeName)
	}
	wg.Wait()

	x.Logger.Info("origin_commands_batch_completed",
		"request_id", requestID,
		"matched_route_count", len(plan.MatchedRouteNames),
		"commands_created", created,
		"failed_count", failed,
		"duration_ms", time.Since(startedAt).Milliseconds())

	return Result{
		OK:              true,
		RequestID:       requestID,
		MatchedRoutes:   plan.MatchedRouteNames,
		CommandsCreated: created,
	}, nil
}
