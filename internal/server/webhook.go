package server

import (
	"fmt"
	"net/http"

	"github.com/girderhq/girder/internal/common/cnst"
	"github.com/girderhq/girder/internal/common/errorx"
	"github.com/girderhq/girder/pkg/trace"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// handleWebhook verifies an inbound provider event. The payload is only
// acknowledged after its signature and timestamp check out; nothing is
// persisted here.
func (s *Server) handleWebhook(c *gin.Context) {
	name := c.Param("provider")
	verifier, ok := s.webhooks[name]
	if !ok {
		// unknown names stay out of the metrics to keep label cardinality bounded
		s.errors.HandleError(c, fmt.Errorf("%w: unknown provider %q", errorx.ErrNotFound, name))
		return
	}

	payload, err := c.GetRawData()
	if err != nil {
		s.errors.HandleError(c, fmt.Errorf("%w: read payload: %v", errorx.ErrValidation, err))
		return
	}

	scope := trace.Tracer(cnst.TraceWebhook).Start(c.Request.Context(), cnst.SpanWebhookVerify).WithAttrs(
		attribute.String(cnst.AttrProvider, name),
	)
	defer scope.End()

	event, err := verifier.Verify(payload, c.GetHeader(cnst.HeaderWebhookSignature))
	if err != nil {
		s.metrics.WebhookDone(name, false)
		scope.WithAttrs(attribute.String(cnst.AttrErrorReason, err.Error()))
		s.errors.HandleError(c, err)
		return
	}

	s.metrics.WebhookDone(name, true)
	scope.WithAttrs(attribute.String(cnst.AttrWebhookEvent, event.Event))
	s.logger.Info("webhook verified",
		zap.String("provider", name),
		zap.String("event", event.Event),
		zap.String("event_id", event.ID),
		zap.String("resource_type", event.ResourceType),
		zap.String("resource_id", event.ResourceID),
	)

	c.Status(http.StatusNoContent)
}
