package navigation

import (
	"context"

	"tactics/navgrid/logging"
)

const (
	// EventPathFound is emitted when a path search reaches its goal.
	EventPathFound logging.EventType = "navigation.path_found"
	// EventPathNotFound is emitted when a search exhausts its frontier or budget.
	EventPathNotFound logging.EventType = "navigation.path_not_found"
)

// SearchPayload describes a single path search.
type SearchPayload struct {
	Start   string  `json:"start"`
	Goal    string  `json:"goal"`
	Cost    float64 `json:"cost"`
	Steps   int     `json:"steps"`
	MaxCost float64 `json:"maxCost"`
	Visited int     `json:"visited"`
}

// PathFound publishes a successful search.
func PathFound(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, payload SearchPayload) {
	publish(ctx, pub, EventPathFound, logging.SeverityDebug, actor, payload)
}

// PathNotFound publishes a failed search. Failing searches are expected
// outcomes, so they are reported at info severity rather than as errors.
func PathNotFound(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, payload SearchPayload) {
	publish(ctx, pub, EventPathNotFound, logging.SeverityInfo, actor, payload)
}

func publish(ctx context.Context, pub logging.Publisher, eventType logging.EventType, severity logging.Severity, actor logging.EntityRef, payload SearchPayload) {
	if pub == nil {
		return
	}
	if actor.Kind == "" {
		actor.Kind = logging.EntityKindGrid
	}
	pub.Publish(ctx, logging.Event{
		Type:     eventType,
		Actor:    actor,
		Targets:  []logging.EntityRef{logging.TileRef(payload.Start), logging.TileRef(payload.Goal)},
		Severity: severity,
		Category: logging.CategoryNavigation,
		Payload:  payload,
	})
}
