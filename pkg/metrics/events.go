package metrics

import (
	"context"
)

// RecordEvent records a custom event. It is a no-op when ctx carries no New
// Relic application.
func RecordEvent(ctx context.Context, eventName string, kvPairs map[string]interface{}) {
	if nr, ok := fromContext(ctx); ok {
		nr.RecordCustomEvent(eventName, kvPairs)
	}
}
