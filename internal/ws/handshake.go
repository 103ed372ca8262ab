package ws

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"realtime-service/internal/auth"
	"realtime-service/internal/models"
	"realtime-service/internal/observability"
)

var tracer = otel.Tracer("realtime-service/ws")

// Endpoint holds what every websocket handler needs to authenticate,
// upgrade and run a session.
type Endpoint struct {
	Hub       *Hub
	Validator auth.Validator
	Reporter  *observability.Reporter
	Config    SessionConfig
	Logger    *zap.Logger
}

// handshake starts the ws.handshake span and authenticates the caller. On
// failure the response has been written and the span ended.
func (e Endpoint) handshake(c *gin.Context, kind string) (trace.Span, models.Identity, bool) {
	ctx, span := tracer.Start(c.Request.Context(), "ws.handshake", trace.WithAttributes(attribute.String("ws.kind", kind)))
	c.Request = c.Request.WithContext(ctx)

	identity, err := e.Validator.Validate(ctx, auth.TokenFromRequest(c.Request))
	if err != nil {
		reject(c, span, http.StatusUnauthorized, "invalid token")
		return nil, models.Identity{}, false
	}
	span.SetAttributes(attribute.Int64("user.id", identity.UserID))
	return span, identity, true
}

func reject(c *gin.Context, span trace.Span, status int, message string) {
	span.SetStatus(codes.Error, message)
	span.End()
	c.JSON(status, gin.H{"error": message})
}

// serve upgrades the connection and runs the session until it closes.
// setup runs after the connection is registered and before frames are read.
func (e Endpoint) serve(c *gin.Context, span trace.Span, kind string, resourceID int64, identity models.Identity, handler sessionHandler, setup func(ctx context.Context, s *Session)) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		span.SetStatus(codes.Error, "upgrade failed")
		span.End()
		e.Logger.Debug("websocket upgrade failed", zap.String("kind", kind), zap.Error(err))
		return
	}

	info := newConnInfo(kind, resourceID, observability.ClientFromRequest(c.Request), span.SpanContext().TraceID().String())
	ctx, cancel := context.WithCancel(context.WithoutCancel(c.Request.Context()))
	s := newSession(conn, e.Hub, handler, identity, info, e.Config, e.Logger)
	s.onClose = func(reason string) {
		observability.DecWSActive(kind)
		if strings.HasPrefix(reason, "error: ") {
			reportLifecycle(ctx, e.Reporter, s.Info(), "ws_error", reason)
		}
		reportLifecycle(ctx, e.Reporter, s.Info(), "ws_disconnect", reason)
		cancel()
	}

	observability.IncWSActive(kind)
	reportLifecycle(ctx, e.Reporter, s.Info(), "ws_connect", "")
	setup(ctx, s)
	span.End()

	s.run(ctx)
}
