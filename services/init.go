package services

import (
	"github.com/inboxia/mailcore/config"
	"github.com/inboxia/mailcore/interfaces"
	"github.com/inboxia/mailcore/internal/logger"
	"github.com/inboxia/mailcore/internal/repository"
	"github.com/inboxia/mailcore/services/embedding"
	"github.com/inboxia/mailcore/services/events"
	"github.com/inboxia/mailcore/services/normalizer"
	"github.com/inboxia/mailcore/services/provider"
	"github.com/inboxia/mailcore/services/retrieval"
	"github.com/inboxia/mailcore/services/search"
	"github.com/inboxia/mailcore/services/sync"
)

type Services struct {
	EventsService    *events.EventsService
	ProviderFactory  interfaces.ProviderClientFactory
	EmbeddingClient  interfaces.EmbeddingClient
	IndexStore       interfaces.IndexStore
	MailNormalizer   interfaces.MailNormalizer
	SyncOrchestrator interfaces.SyncOrchestrator
	RetrievalService interfaces.RetrievalService
}

func InitServices(cfg *config.Config, log logger.Logger, repos *repository.Repositories) (*Services, error) {
	// events
	publisherConfig := &events.PublisherConfig{
		MessageTTL:          events.DefaultMessageTTL,
		MaxRetries:          events.DefaultMaxRetries,
		PublishTimeout:      events.DefaultPublishTimeout,
		ReconnectBackoff:    events.DefaultReconnectBackoff,
		MaxReconnectBackoff: events.DefaultMaxReconnectBackoff,
	}

	eventsService, err := events.NewEventsService(cfg.AppConfig.RabbitMQURL, log, publisherConfig)
	if err != nil {
		return nil, err
	}

	providerFactory := provider.NewProviderClientFactory(cfg.ProviderConfig)
	embeddingClient := embedding.NewEmbeddingClient(cfg.EmbeddingConfig)
	indexStore := search.NewIndexStore(log, repos.AccountRepository)
	mailNormalizer := normalizer.NewMailNormalizer(
		repos.EmailRepository,
		repos.EmailThreadRepository,
		repos.EmailAttachmentRepository,
	)

	services := Services{
		EventsService:   eventsService,
		ProviderFactory: providerFactory,
		EmbeddingClient: embeddingClient,
		IndexStore:      indexStore,
		MailNormalizer:  mailNormalizer,
		SyncOrchestrator: sync.NewSyncOrchestrator(
			log,
			cfg.ProviderConfig,
			repos.AccountRepository,
			providerFactory,
			mailNormalizer,
			embeddingClient,
			indexStore,
			eventsService,
		),
		RetrievalService: retrieval.NewRetrievalService(log, embeddingClient, indexStore),
	}

	return &services, nil
}
