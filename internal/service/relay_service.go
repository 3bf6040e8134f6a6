package service

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/harborview/support-service/internal/events"
	"github.com/harborview/support-service/internal/persistence"
)

// RelayService forwards domain events to the Redis integration stream so
// downstream portal services (dashboards, reporting) can consume them.
// Relay failures are logged and never fail the originating operation.
type RelayService struct {
	dispatcher events.Dispatcher
	redis      *persistence.Redis
	logger     *zap.Logger
	stream     string
}

// NewRelayService creates the service.
func NewRelayService(dispatcher events.Dispatcher, redis *persistence.Redis, logger *zap.Logger, stream string) *RelayService {
	return &RelayService{
		dispatcher: dispatcher,
		redis:      redis,
		logger:     logger,
		stream:     stream,
	}
}

// RegisterHandlers subscribes the relay to every ticket event type.
func (r *RelayService) RegisterHandlers() {
	if r.dispatcher == nil {
		return
	}
	r.dispatcher.Subscribe(events.EventTicketCreated, r.relay)
	r.dispatcher.Subscribe(events.EventTicketStatusChanged, r.relay)
	r.dispatcher.Subscribe(events.EventTicketCommentAdded, r.relay)
}

func (r *RelayService) relay(ctx context.Context, event events.Event) error {
	r.logger.Info("ticket event",
		zap.String("event_type", string(event.Type)),
		zap.String("ticket_id", event.TicketID),
		zap.String("actor_id", event.Actor.ID))

	if r.redis == nil || r.stream == "" {
		return nil
	}
	payload, err := json.Marshal(event)
	if err != nil {
		r.logger.Error("marshal event", zap.Error(err))
		return nil
	}
	if err := r.redis.AppendToStream(ctx, r.stream, map[string]interface{}{
		"event_id": event.ID,
		"type":     string(event.Type),
		"payload":  string(payload),
	}); err != nil {
		r.logger.Warn("relay event to stream",
			zap.String("stream", r.stream),
			zap.Error(err))
	}
	return nil
}
