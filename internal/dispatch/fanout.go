package dispatch

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"relayline/internal/config"
	"relayline/internal/notion"
)

const maxFanoutTitleLen = 200

// FanoutRequest asks for one objective fan-out run, originating from a
// task-level event.
type FanoutRequest struct {
	RequestID            string
	OriginTaskID         string
	TaskObjectivePropID  string
	ObjectiveTasksPropID string
	MatchedRouteNames    []string
}

// Coordinator gates objective fan-out runs: at most one run per objective
// is in flight at a time, and redundant requests for a busy objective are
// dropped, not queued. The in-flight set is owned by the Coordinator
// instance so independent pipelines (and tests) cannot cross-contaminate.
type Coordinator struct {
	Store  Store
	Config config.DispatchConfig
	Logger *slog.Logger

	mu       sync.Mutex
	inFlight map[string]bool
	wg       sync.WaitGroup
}

// NewCoordinator builds a coordinator with an empty in-flight set.
func NewCoordinator(store Store, cfg config.DispatchConfig, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		Store:    store,
		Config:   cfg,
		Logger:   logger,
		inFlight: make(map[string]bool),
	}
}

// Enqueue resolves the objective behind the origin task and, if no run is
// active for it, starts the fan-out processor in the background. The
// caller never blocks on the processor and never sees its errors.
func (c *Coordinator) Enqueue(ctx context.Context, req FanoutRequest) {
	objectiveID, err := c.Store.SingleRelationID(ctx, req.OriginTaskID, req.TaskObjectivePropID)
	if err != nil {
		c.Logger.Error("fanout_objective_resolution_failed",
			"request_id", req.RequestID, "origin_task_id", req.OriginTaskID, "error", err)
		return
	}
	if objectiveID == "" {
		c.Logger.Warn("fanout_objective_not_found",
			"request_id", req.RequestID, "origin_task_id", req.OriginTaskID,
			"task_objective_prop_id", req.TaskObjectivePropID)
		return
	}
	key := notion.NormalizeID(objectiveID)

	c.mu.Lock()
	if c.inFlight[key] {
		c.mu.Unlock()
		c.Logger.Info("objective_run_skipped_in_flight",
			"request_id", req.RequestID, "objective_id", objectiveID)
		return
	}
	c.inFlight[key] = true
	c.mu.Unlock()

	c.wg.Add(1)
	go c.run(context.WithoutCancel(ctx), key, objectiveID, req)
}

// Wait blocks until every background run has finished. Used by shutdown
// and tests.
func (c *Coordinator) Wait() { c.wg.Wait() }

// run executes one fan-out and always releases the objective's in-flight
// slot, whatever the outcome, so a failed run cannot wedge the objective.
func (c *Coordinator) run(ctx context.Context, key, objectiveID string, req FanoutRequest) {
	defer c.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			c.Logger.Error("objective_run_panicked",
				"request_id", req.RequestID, "objective_id", objectiveID, "panic", r)
		}
		c.mu.Lock()
		c.inFlight[key] = false
		c.mu.Unlock()
		c.Logger.Info("objective_run_completed",
			"request_id", req.RequestID, "objective_id", objectiveID)
	}()

	c.Logger.Info("objective_run_started",
		"request_id", req.RequestID, "objective_id", objectiveID)
	if _, _, err := c.process(ctx, objectiveID, req); err != nil {
		c.Logger.Error("objective_run_failed",
			"request_id", req.RequestID, "objective_id", objectiveID, "error", err)
	}
}

// process enumerates every task under the objective, caps the list, and
// creates one command per task. Per-task failures are isolated; the run
// reports aggregate counts.
func (c *Coordinator) process(ctx context.Context, objectiveID string, req FanoutRequest) (created, failed int, err error) {
	if err := c.Config.ValidateFanout(); err != nil {
		return 0, 0, err
	}

	taskIDs, err := c.Store.RelationIDs(ctx, objectiveID, req.ObjectiveTasksPropID)
	if err != nil {
		return 0, 0, err
	}
	if len(taskIDs) > c.Config.MaxFanoutTasks {
		c.Logger.Warn("fanout_task_count_exceeds_cap",
			"request_id", req.RequestID,
			"objective_id", objectiveID,
			"task_count", len(taskIDs),
			"max_fanout_tasks", c.Config.MaxFanoutTasks)
		taskIDs = taskIDs[:c.Config.MaxFanoutTasks]
	}

	title := fanoutTitle(req.MatchedRouteNames)
	c.Logger.Info("fanout_starting",
		"request_id", req.RequestID,
		"objective_id", objectiveID,
		"task_count", len(taskIDs),
		"matched_routes_count", len(req.MatchedRouteNames))

	startedAt := time.Now()
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for _, taskID := range taskIDs {
		wg.Add(1)
		go func(taskID string) {
			defer wg.Done()
			spec := commandSpec{
				DatabaseID:           c.Config.CommandsDBID,
				TitleKey:             c.Config.CommandsNamePropID,
				Title:                title,
				TriggerKeyPropID:     c.Config.CommandsTriggerKeyPropID,
				TriggerKey:           c.Config.TriggerKey,
				TargetRelationPropID: c.Config.CommandsTargetTaskPropID,
				TargetPageID:         taskID,
			}
			if c.Config.CommandsDirectivePropID != "" {
				spec.DirectivePropID = c.Config.CommandsDirectivePropID
				spec.DirectiveValues = req.MatchedRouteNames
			}
			createErr := createCommand(ctx, c.Store, spec)
			mu.Lock()
			if createErr != nil {
				failed++
			} else {
				created++
			}
			mu.Unlock()
			if createErr != nil {
				c.Logger.Error("create_fanout_command_failed",
					"request_id", req.RequestID,
					"objective_id", objectiveID,
					"task_id", taskID,
					"error", createErr)
			}
		}(taskID)
	}
	wg.Wait()

	c.Logger.Info("fanout_batch_completed",
		"request_id", req.RequestID,
		"objective_id", objectiveID,
		"task_count_processed", len(taskIDs),
		"created", created,
		"failed", failed,
		"duration_ms", time.Since(startedAt).Milliseconds())
	return created, failed, nil
}

// fanoutTitle labels fan-out commands with the origin event's matched
// route names, capped so pathological route lists cannot blow up titles.
func fanoutTitle(routeNames []string) string {
	if len(routeNames) == 0 {
		return "Fanout"
	}
	title := strings.Join(routeNames, " | ")
	if utf8.RuneCountInString(title) > maxFanoutTitleLen {
		title = string([]rune(title)[:maxFanoutTitleLen])
	}
	return title
}
