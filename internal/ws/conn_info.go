package ws

import (
	"context"
	"time"

	"realtime-service/internal/observability"
)

const (
	KindChat   = "chat"
	KindNotify = "notify"
)

// ConnInfo describes one websocket connection for logs and lifecycle events.
type ConnInfo struct {
	ConnID      string
	Kind        string
	ResourceID  int64
	UserID      int64
	Username    string
	DeviceID    string
	IP          string
	RequestID   string
	TraceID     string
	ConnectedAt time.Time
}

func newConnInfo(kind string, resourceID int64, client observability.Client, traceID string) ConnInfo {
	return ConnInfo{
		ConnID:      newConnID(),
		Kind:        kind,
		ResourceID:  resourceID,
		DeviceID:    client.DeviceID,
		IP:          client.IP,
		RequestID:   client.RequestID,
		TraceID:     traceID,
		ConnectedAt: time.Now(),
	}
}

func routingKeyFor(kind string) string {
	if kind == KindChat {
		return observability.RoutingKeyChatEvents
	}
	return observability.RoutingKeyNotifyEvents
}

// reportLifecycle counts and publishes ws_connect, ws_disconnect and ws_error.
func reportLifecycle(ctx context.Context, reporter *observability.Reporter, info ConnInfo, event, reason string) {
	observability.IncWSEvent(info.Kind, event)
	_ = reporter.PublishEvent(ctx, routingKeyFor(info.Kind), observability.EventEnvelope{
		EventType: "ws_events",
		EventName: event,
		Payload: map[string]interface{}{
			"ws": map[string]interface{}{
				"kind":        info.Kind,
				"resource_id": info.ResourceID,
				"event":       event,
				"conn_id":     info.ConnID,
				"duration_ms": time.Since(info.ConnectedAt).Milliseconds(),
				"reason":      reason,
			},
			"identity": map[string]interface{}{
				"user_id":   info.UserID,
				"device_id": info.DeviceID,
				"ip":        info.IP,
			},
		},
	}, observability.BuildHeaders(info.RequestID, info.TraceID))
}
