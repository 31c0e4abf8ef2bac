package dispatch

// PlanKind selects the execution path for an event.
type PlanKind string

const (
	PlanNoop   PlanKind = "noop"
	PlanSingle PlanKind = "single"
	PlanFanout PlanKind = "fanout"
)

// Plan is the terminal routing decision for one event. It is consumed
// exactly once by the executor.
type Plan struct {
	Kind              PlanKind
	MatchedRouteNames []string

	// OriginPageID is the command target on the single path and the
	// origin task on the fanout path.
	OriginPageID string

	// Relation wiring, set only on the fanout path.
	TaskObjectivePropID  string
	ObjectiveTasksPropID string
}

// BuildPlan combines matched routes with fan-out mapping presence into a
// plan. Exactly one plan kind results for any input: no matches is always
// a noop, matches plus a mapping for the origin collection is a fanout,
// matches alone is a single.
func BuildPlan(ev Event, snap *Snapshot) Plan {
	matchedNames := RouteNames(MatchRoutes(ev, snap.Routes))
	if len(matchedNames) == 0 {
		return Plan{Kind: PlanNoop, OriginPageID: ev.OriginPageID}
	}
	for _, m := range snap.FanoutMappings {
		if m.TaskDatabaseID == ev.OriginDatabaseID {
			return Plan{
				Kind:                 PlanFanout,
				MatchedRouteNames:    matchedNames,
				OriginPageID:         ev.OriginPageID,
				TaskObjectivePropID:  m.TaskObjectivePropID,
				ObjectiveTasksPropID: m.ObjectiveTasksPropID,
			}
		}
	}
	return Plan{
		Kind:              PlanSingle,
		MatchedRouteNames: matchedNames,
		OriginPageID:      ev.OriginPageID,
	}
}
