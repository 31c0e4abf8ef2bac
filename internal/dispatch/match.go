package dispatch

import (
	"strings"

	"relayline/internal/notion"
)

// MatchRoutes returns every route whose database id equals the event's
// origin and whose predicate entries are all satisfied by the event's
// properties. Pure: no remote calls, deterministic, output follows route
// declaration order.
func MatchRoutes(ev Event, routes []Route) []Route {
	var matched []Route
	for _, route := range routes {
		if route.DatabaseID != ev.OriginDatabaseID {
			continue
		}
		if satisfiesPredicate(ev.Properties, route.Predicate) {
			matched = append(matched, route)
		}
	}
	return matched
}

// RouteNames projects matched routes onto their labels.
func RouteNames(routes []Route) []string {
	names := make([]string, 0, len(routes))
	for _, r := range routes {
		names = append(names, r.Name)
	}
	return names
}

func satisfiesPredicate(props map[string]any, predicate map[string]string) bool {
	for propName, expected := range predicate {
		if !valueEquals(notion.DecodeValue(props[propName]), expected) {
			return false
		}
	}
	return true
}

// valueEquals compares a decoded property value against an expected
// literal. Multi-select satisfies on any element; scalars compare exactly;
// both sides are trimmed. Unknown shapes never match.
func valueEquals(v notion.Value, expected string) bool {
	expected = strings.TrimSpace(expected)
	switch v.Kind {
	case notion.KindUnknown:
		return false
	case notion.KindMultiSelect:
		for _, item := range v.List {
			if strings.TrimSpace(item) == expected {
				return true
			}
		}
		return false
	default:
		return strings.TrimSpace(v.Text) == expected
	}
}
