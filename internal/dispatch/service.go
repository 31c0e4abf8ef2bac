package dispatch

import (
	"context"
	"log/slog"

	"relayline/internal/config"
	"relayline/internal/notion"
	"relayline/internal/webhook"
)

// Service is the dispatch surface: snapshot cache, matcher, planner and
// executor wired together behind one call.
type Service struct {
	Cache    *SnapshotCache
	Executor *Executor
	Logger   *slog.Logger
}

// NewService wires the dispatch components over a remote store.
func NewService(store Store, cfg config.DispatchConfig, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	cache := NewSnapshotCache(func(ctx context.Context) (*Snapshot, error) {
		return LoadSnapshot(ctx, store, cfg, logger)
	}, logger)
	coordinator := NewCoordinator(store, cfg, logger)
	return &Service{
		Cache: cache,
		Executor: &Executor{
			Store:       store,
			Config:      cfg,
			Coordinator: coordinator,
			Logger:      logger,
		},
		Logger: logger,
	}
}

// Dispatch routes one normalized event and executes the resulting plan.
func (s *Service) Dispatch(ctx context.Context, requestID string, ev *webhook.Event) (Result, error) {
	snap, err := s.Cache.Snapshot(ctx)
	if err != nil {
		return Result{}, err
	}
	dispatchEvent := Event{
		OriginDatabaseID: notion.NormalizeID(ev.OriginDatabaseID),
		OriginPageID:     ev.OriginPageID,
		Properties:       ev.Properties,
	}
	plan := BuildPlan(dispatchEvent, snap)
	s.Logger.Info("route_plan_created",
		"request_id", requestID,
		"origin_database_id", dispatchEvent.OriginDatabaseID,
		"origin_page_id", dispatchEvent.OriginPageID,
		"plan_kind", string(plan.Kind),
		"matched_routes", plan.MatchedRouteNames)
	return s.Executor.Execute(ctx, requestID, plan)
}

// Wait drains background fan-out runs. Used at shutdown.
func (s *Service) Wait() { s.Executor.Coordinator.Wait() }
