package sync

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/log"
	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"

	"github.com/inboxia/mailcore/config"
	"github.com/inboxia/mailcore/dto"
	"github.com/inboxia/mailcore/interfaces"
	er "github.com/inboxia/mailcore/internal/errors"
	"github.com/inboxia/mailcore/internal/logger"
	"github.com/inboxia/mailcore/internal/models"
	"github.com/inboxia/mailcore/internal/tracing"
)

const (
	defaultBootstrapPollInterval = time.Second
	defaultBootstrapTimeout      = 5 * time.Minute
)

// syncOrchestrator serializes sync passes per account. Concurrent Sync and
// BootstrapSync triggers for the same account coalesce onto one running pass
// through singleflight; the per-account mutex keeps a trigger arriving just
// after a pass finished from interleaving with a coalesced group still
// draining. IncrementalSync never queues behind the mutex, it bails with
// ErrSyncInProgress so the scheduler can skip busy accounts.
type syncOrchestrator struct {
	log             logger.Logger
	cfg             *config.ProviderConfig
	accounts        interfaces.AccountRepository
	providerFactory interfaces.ProviderClientFactory
	normalizer      interfaces.MailNormalizer
	embedding       interfaces.EmbeddingClient
	index           interfaces.IndexStore
	publisher       interfaces.EventPublisher

	group singleflight.Group

	locksMutex   sync.Mutex
	accountLocks map[string]*sync.Mutex
}

func NewSyncOrchestrator(
	log logger.Logger,
	cfg *config.ProviderConfig,
	accounts interfaces.AccountRepository,
	providerFactory interfaces.ProviderClientFactory,
	normalizer interfaces.MailNormalizer,
	embeddingClient interfaces.EmbeddingClient,
	index interfaces.IndexStore,
	publisher interfaces.EventPublisher,
) interfaces.SyncOrchestrator {
	return &syncOrchestrator{
		log:             log,
		cfg:             cfg,
		accounts:        accounts,
		providerFactory: providerFactory,
		normalizer:      normalizer,
		embedding:       embeddingClient,
		index:           index,
		publisher:       publisher,
		accountLocks:    make(map[string]*sync.Mutex),
	}
}

func (s *syncOrchestrator) Sync(ctx context.Context, accountID string) (*dto.SyncResult, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "SyncOrchestrator.Sync")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagAccount(span, accountID)

	result, err, shared := s.group.Do(accountID, func() (interface{}, error) {
		lock := s.lockFor(accountID)
		lock.Lock()
		defer lock.Unlock()

		account, err := s.accounts.GetByID(ctx, accountID)
		if err != nil {
			return nil, err
		}
		if account == nil {
			return nil, er.ErrAccountNotFound
		}

		if account.IsSyncReady() {
			return s.incremental(ctx, account)
		}
		return s.bootstrap(ctx, account)
	})
	span.LogFields(log.Bool("coalesced", shared))
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return result.(*dto.SyncResult), nil
}

func (s *syncOrchestrator) BootstrapSync(ctx context.Context, accountID string) (*dto.SyncResult, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "SyncOrchestrator.BootstrapSync")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagAccount(span, accountID)

	result, err, _ := s.group.Do(accountID, func() (interface{}, error) {
		lock := s.lockFor(accountID)
		lock.Lock()
		defer lock.Unlock()

		account, err := s.accounts.GetByID(ctx, accountID)
		if err != nil {
			return nil, err
		}
		if account == nil {
			return nil, er.ErrAccountNotFound
		}
		return s.bootstrap(ctx, account)
	})
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return result.(*dto.SyncResult), nil
}

// IncrementalSync is the non-blocking entry point used by the scheduler: an
// account already mid-pass yields ErrSyncInProgress instead of queueing up.
func (s *syncOrchestrator) IncrementalSync(ctx context.Context, accountID string) (*dto.SyncResult, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "SyncOrchestrator.IncrementalSync")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagAccount(span, accountID)

	lock := s.lockFor(accountID)
	if !lock.TryLock() {
		return nil, er.ErrSyncInProgress
	}
	defer lock.Unlock()

	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	if account == nil {
		return nil, er.ErrAccountNotFound
	}

	result, err := s.incremental(ctx, account)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return result, nil
}

// bootstrap polls the provider until the initial mailbox snapshot is ready,
// then drains the first pagination pass from the returned token.
func (s *syncOrchestrator) bootstrap(ctx context.Context, account *models.Account) (*dto.SyncResult, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "SyncOrchestrator.bootstrap")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagAccount(span, account.ID)

	client := s.providerFactory.ForAccount(account)

	token, err := s.waitForBootstrap(ctx, client)
	if err != nil {
		tracing.TraceErr(span, err)
		s.degrade(ctx, account.ID, dto.SyncModeBootstrap, err)
		return nil, err
	}

	// The ready token is the account's first cursor. Persisted before the
	// drain so a pass that closes without a fresh delta token still leaves
	// the account sync-ready; a later nextDeltaToken simply overwrites it.
	if err := s.accounts.UpdateDeltaToken(ctx, account.ID, token); err != nil {
		tracing.TraceErr(span, err)
		s.degrade(ctx, account.ID, dto.SyncModeBootstrap, err)
		return nil, err
	}

	result, err := s.runPass(ctx, account, client, dto.SyncModeBootstrap, token)
	if err != nil {
		tracing.TraceErr(span, err)
		s.degrade(ctx, account.ID, dto.SyncModeBootstrap, err)
		return nil, err
	}
	return result, nil
}

func (s *syncOrchestrator) incremental(ctx context.Context, account *models.Account) (*dto.SyncResult, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "SyncOrchestrator.incremental")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagAccount(span, account.ID)

	if !account.IsSyncReady() {
		return nil, er.ErrSyncNotReady
	}

	client := s.providerFactory.ForAccount(account)

	result, err := s.runPass(ctx, account, client, dto.SyncModeIncremental, *account.NextDeltaToken)
	if err != nil {
		tracing.TraceErr(span, err)
		s.degrade(ctx, account.ID, dto.SyncModeIncremental, err)
		return nil, err
	}
	return result, nil
}

// waitForBootstrap polls at a fixed interval until the provider reports the
// snapshot ready or the bounded wait elapses.
func (s *syncOrchestrator) waitForBootstrap(ctx context.Context, client interfaces.ProviderClient) (string, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "SyncOrchestrator.waitForBootstrap")
	defer span.Finish()

	interval := defaultBootstrapPollInterval
	if s.cfg.BootstrapPollIntervalSeconds > 0 {
		interval = time.Duration(s.cfg.BootstrapPollIntervalSeconds) * time.Second
	}
	timeout := defaultBootstrapTimeout
	if s.cfg.BootstrapTimeoutSeconds > 0 {
		timeout = time.Duration(s.cfg.BootstrapTimeoutSeconds) * time.Second
	}

	deadline := time.Now().Add(timeout)
	attempts := 0
	for {
		response, err := client.StartBootstrapSync(ctx, s.cfg.SyncDaysWithin, s.cfg.SyncBodyType)
		attempts++
		if err != nil {
			var transient retryableError
			if !errors.As(err, &transient) || !transient.Retryable() || time.Now().After(deadline) {
				tracing.TraceErr(span, err)
				return "", err
			}
			// Transient upstream failure; keep polling within the deadline.
			s.log.Warnf("bootstrap poll attempt %d failed transiently: %v", attempts, err)
		} else if response.Ready {
			span.LogFields(log.Int("attempts", attempts))
			return response.SyncUpdatedToken, nil
		} else if time.Now().After(deadline) {
			return "", er.ErrBootstrapTimeout
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(interval):
		}
	}
}

// retryableError is implemented by provider errors that are safe to retry,
// such as rate limits and upstream 5xx responses.
type retryableError interface {
	error
	Retryable() bool
}

// runPass drains one logical sync pass: open with the delta token, follow
// page tokens until the provider reports neither, then persist the new
// cursor. The cursor is written last so a crash mid-pass replays from the
// previous token and the upsert absorbs the duplicates.
func (s *syncOrchestrator) runPass(ctx context.Context, account *models.Account, client interfaces.ProviderClient, mode dto.SyncMode, deltaToken string) (*dto.SyncResult, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "SyncOrchestrator.runPass")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagAccount(span, account.ID)
	span.LogFields(log.String("mode", string(mode)))

	if err := s.index.Initialise(ctx, account.ID); err != nil {
		return nil, err
	}

	cursor := dto.SyncCursor{DeltaToken: deltaToken}
	nextDeltaToken := ""
	result := &dto.SyncResult{
		AccountID: account.ID,
		Mode:      mode,
	}
	documents := make([]dto.IndexedDocument, 0)
	created := make([]*models.Email, 0)

	for {
		page, err := client.FetchUpdated(ctx, cursor)
		if err != nil {
			return nil, err
		}

		for _, record := range page.Records {
			email, isNew, err := s.normalizer.NormalizeAndPersist(ctx, account, record)
			if err != nil {
				return nil, errors.Wrapf(err, "failed to persist provider message %s", record.ID)
			}
			result.RecordsProcessed++
			if isNew {
				result.EmailsCreated++
				created = append(created, email)
			}

			indexed, err := s.index.Contains(ctx, account.ID, email.ID)
			if err != nil {
				return nil, err
			}
			if indexed {
				continue
			}

			// The email is already persisted. An embedding failure aborts the
			// whole pass so the cursor stays put and the record replays into
			// the index on the next trigger.
			doc, err := s.buildDocument(ctx, email)
			if err != nil {
				return nil, errors.Wrapf(err, "failed to index email %s", email.ID)
			}
			documents = append(documents, *doc)
		}

		if page.NextDeltaToken != "" {
			nextDeltaToken = page.NextDeltaToken
		}
		if page.NextPageToken == "" {
			break
		}
		cursor = dto.SyncCursor{PageToken: page.NextPageToken}
	}

	if err := s.index.InsertBatch(ctx, account.ID, documents); err != nil {
		return nil, err
	}

	if nextDeltaToken != "" {
		if err := s.accounts.UpdateDeltaToken(ctx, account.ID, nextDeltaToken); err != nil {
			return nil, err
		}
		result.DeltaToken = nextDeltaToken
	} else {
		// Provider closed the pass without a fresh token; the previous one
		// stays valid.
		result.DeltaToken = deltaToken
	}

	if err := s.accounts.UpdateLastSyncAt(ctx, account.ID); err != nil {
		return nil, err
	}

	for _, email := range created {
		event := dto.EmailReceived{
			AccountID:   account.ID,
			EmailID:     email.ID,
			ThreadID:    email.ThreadID,
			InitialSync: mode == dto.SyncModeBootstrap,
		}
		if err := s.publisher.PublishEmailReceived(ctx, event); err != nil {
			tracing.TraceErr(span, err)
			s.log.Warnf("failed to publish email received event for %s: %v", email.ID, err)
		}
	}

	span.LogFields(log.Int("recordsProcessed", result.RecordsProcessed), log.Int("emailsCreated", result.EmailsCreated))
	s.log.Infof("sync pass complete for account %s: %d records, %d new", account.ID, result.RecordsProcessed, result.EmailsCreated)
	return result, nil
}

// buildDocument embeds the email text and shapes the index entry.
func (s *syncOrchestrator) buildDocument(ctx context.Context, email *models.Email) (*dto.IndexedDocument, error) {
	text := email.Subject
	if email.BodySnippet != "" {
		text = text + "\n\n" + email.BodySnippet
	}

	vector, err := s.embedding.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	sentAt := ""
	if email.SentAt != nil {
		sentAt = email.SentAt.Format(time.RFC3339)
	}

	return &dto.IndexedDocument{
		ID:         email.ID,
		Title:      email.Subject,
		Body:       email.BodySnippet,
		RawBody:    email.BodyHTML,
		From:       email.FromAddress,
		To:         email.ToAddresses,
		SentAt:     sentAt,
		ThreadID:   email.ThreadID,
		Embeddings: vector,
	}, nil
}

func (s *syncOrchestrator) degrade(ctx context.Context, accountID string, mode dto.SyncMode, cause error) {
	event := dto.SyncDegraded{
		AccountID: accountID,
		Mode:      string(mode),
		Reason:    strings.TrimSpace(cause.Error()),
	}
	if err := s.publisher.PublishSyncDegraded(ctx, event); err != nil {
		s.log.Warnf("failed to publish sync degraded event for %s: %v", accountID, err)
	}
}

func (s *syncOrchestrator) lockFor(accountID string) *sync.Mutex {
	s.locksMutex.Lock()
	defer s.locksMutex.Unlock()

	lock, ok := s.accountLocks[accountID]
	if !ok {
		lock = &sync.Mutex{}
		s.accountLocks[accountID] = lock
	}
	return lock
}
