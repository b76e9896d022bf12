package event

import (
	"context"
	"log/slog"
	"maps"
	"slices"
)

// RunAuditLog writes one structured line per lifecycle event until ctx is
// done or the subscription closes. Subscribe before starting it so that no
// event published in between is missed.
func RunAuditLog(ctx context.Context, events <-chan Event, logger *slog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			logger.Info("audit",
				"event_id", e.ID,
				"type", string(e.Type),
				"actor", e.ActorID,
				"at", e.Timestamp,
				payloadGroup(e.Payload),
			)
		}
	}
}

// payloadGroup nests the payload so a ReplaceAttr hook sees its bare keys.
func payloadGroup(payload map[string]any) slog.Attr {
	attrs := make([]any, 0, len(payload))
	for _, k := range slices.Sorted(maps.Keys(payload)) {
		attrs = append(attrs, slog.Any(k, payload[k]))
	}
	return slog.Group("payload", attrs...)
}
