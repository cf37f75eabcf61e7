package webhook

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jenkins-hooks/internal/jenkins"
	"github.com/jenkins-hooks/pkg/webhook"
)

// Processor consumes decoded push events.
type Processor interface {
	Process(ctx context.Context, event webhook.PushEvent) []jenkins.Outcome
}

// Handler accepts push deliveries. Senders always get 200; every rejection
// is only visible in the server log.
type Handler struct {
	decoder   *Decoder
	processor Processor
	logger    *slog.Logger
}

// New creates a handler decoding with decoder and dispatching to proc.
// It panics if proc is nil.
func New(decoder *Decoder, proc Processor, logger *slog.Logger) *Handler {
	if proc == nil {
		panic("webhook: nil processor")
	}
	if decoder == nil {
		decoder = NewDecoder(DefaultEventHeader)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		decoder:   decoder,
		processor: proc,
		logger:    logger,
	}
}

// Handle is the gin handler for POST /.
func (h *Handler) Handle(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		h.logger.Warn("failed to read webhook body", slog.String("error", err.Error()))
		acknowledge(c)
		return
	}

	event, err := h.decoder.Decode(c.Request.Header, body)
	if err != nil {
		h.logger.Warn("webhook rejected",
			slog.String("error", err.Error()),
			slog.String("remote_addr", c.ClientIP()),
		)
		acknowledge(c)
		return
	}

	h.logger.Debug("push received",
		slog.String("delivery_id", event.DeliveryID),
		slog.String("repo", event.Repository),
		slog.String("ref", event.Ref),
	)

	// Triggers already in flight finish even if the sender disconnects.
	h.processor.Process(context.WithoutCancel(c.Request.Context()), event)
	acknowledge(c)
}

func acknowledge(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
