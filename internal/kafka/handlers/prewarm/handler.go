package prewarm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/segmentio/kafka-go"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/thumbnail-proxy/internal/model"
)

// ErrEmptySource is returned for tasks without a source URL.
var ErrEmptySource = errors.New("prewarm task has no source url")

// service defines the interface for warming the source cache.
type service interface {
	Prewarm(ctx context.Context, sourceURL string) error
}

// Handler handles Kafka messages carrying prewarm tasks.
type Handler struct {
	service service
}

// NewHandler creates a new handler with the given service.
func NewHandler(s service) *Handler {
	return &Handler{service: s}
}

// Handle unmarshals a prewarm task and fetches its source into the cache.
func (h *Handler) Handle(ctx context.Context, msg kafka.Message) error {
	var task model.PrewarmTask
	if err := json.Unmarshal(msg.Value, &task); err != nil {
		return fmt.Errorf("unmarshal task: %w", err)
	}

	if task.SourceURL == "" {
		return ErrEmptySource
	}

	if err := h.service.Prewarm(ctx, task.SourceURL); err != nil {
		return fmt.Errorf("prewarm %s: %w", task.ID, err)
	}

	zlog.Logger.Info().
		Str("task_id", task.ID.String()).
		Str("source_url", task.SourceURL).
		Msg("source prewarmed")

	return nil
}
