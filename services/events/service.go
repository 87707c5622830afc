package events

import (
	"context"
	"fmt"

	"github.com/inboxia/mailcore/dto"
	"github.com/inboxia/mailcore/interfaces"
	"github.com/inboxia/mailcore/internal/logger"
)

// EventsService adapts the RabbitMQ publisher to the EventPublisher
// interface. A service built without a broker URL publishes nothing, which
// keeps single-binary deployments working without RabbitMQ.
type EventsService struct {
	Publisher *RabbitMQPublisher
	log       logger.Logger
}

func NewEventsService(rabbitmqURL string, log logger.Logger, publisherConfig *PublisherConfig) (*EventsService, error) {
	if rabbitmqURL == "" {
		log.Warn("RabbitMQ URL not configured, integration events disabled")
		return &EventsService{log: log}, nil
	}

	publisher, err := NewRabbitMQPublisher(rabbitmqURL, log, publisherConfig)
	if err != nil {
		return nil, err
	}

	return &EventsService{
		Publisher: publisher,
		log:       log,
	}, nil
}

var _ interfaces.EventPublisher = (*EventsService)(nil)

func (s *EventsService) PublishEmailReceived(ctx context.Context, event dto.EmailReceived) error {
	if s.Publisher == nil {
		return nil
	}
	return s.Publisher.PublishEmailReceivedEvent(ctx, event)
}

func (s *EventsService) PublishSyncDegraded(ctx context.Context, event dto.SyncDegraded) error {
	if s.Publisher == nil {
		return nil
	}
	return s.Publisher.PublishSyncDegradedEvent(ctx, event)
}

func (s *EventsService) Close() error {
	var errs []error

	if s.Publisher != nil {
		if err := s.Publisher.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors closing events service: %v", errs)
	}

	return nil
}
