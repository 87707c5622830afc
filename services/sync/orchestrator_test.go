package sync

import (
	"context"
	gosync "sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inboxia/mailcore/config"
	"github.com/inboxia/mailcore/dto"
	"github.com/inboxia/mailcore/interfaces"
	er "github.com/inboxia/mailcore/internal/errors"
	"github.com/inboxia/mailcore/internal/logger"
	"github.com/inboxia/mailcore/internal/models"
	"github.com/inboxia/mailcore/services/embedding"
	"github.com/inboxia/mailcore/services/provider"
	"github.com/inboxia/mailcore/services/search"
)

// ---- fakes ----

type fakeAccountRepo struct {
	mu       gosync.Mutex
	accounts map[string]*models.Account
	blobs    map[string][]byte
}

func newFakeAccountRepo(accounts ...*models.Account) *fakeAccountRepo {
	repo := &fakeAccountRepo{
		accounts: make(map[string]*models.Account),
		blobs:    make(map[string][]byte),
	}
	for _, account := range accounts {
		repo.accounts[account.ID] = account
	}
	return repo
}

func (r *fakeAccountRepo) Create(ctx context.Context, account *models.Account) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accounts[account.ID] = account
	return account.ID, nil
}

func (r *fakeAccountRepo) GetByID(ctx context.Context, id string) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.accounts[id]
	if !ok {
		return nil, nil
	}
	copied := *account
	return &copied, nil
}

func (r *fakeAccountRepo) GetByEmailAddress(ctx context.Context, emailAddress string) (*models.Account, error) {
	return nil, nil
}

func (r *fakeAccountRepo) List(ctx context.Context) ([]*models.Account, error) {
	return nil, nil
}

func (r *fakeAccountRepo) UpdateDeltaToken(ctx context.Context, id, deltaToken string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	token := deltaToken
	r.accounts[id].NextDeltaToken = &token
	return nil
}

func (r *fakeAccountRepo) ClearDeltaToken(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accounts[id].NextDeltaToken = nil
	return nil
}

func (r *fakeAccountRepo) SaveSearchIndexBlob(ctx context.Context, id string, blob []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.blobs[id] = blob
	return nil
}

func (r *fakeAccountRepo) GetSearchIndexBlob(ctx context.Context, id string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.blobs[id], nil
}

func (r *fakeAccountRepo) UpdateLastSyncAt(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	r.accounts[id].LastSyncAt = &now
	return nil
}

func (r *fakeAccountRepo) deltaToken(id string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	account := r.accounts[id]
	if account == nil || account.NextDeltaToken == nil {
		return ""
	}
	return *account.NextDeltaToken
}

// fakeProvider scripts bootstrap and pagination responses per cursor.
// Scripted bootstrap errors are consumed before the response list.
type fakeProvider struct {
	mu                 gosync.Mutex
	bootstrapErrs      []error
	bootstrapResponses []dto.BootstrapSyncResponse
	bootstrapCalls     int
	pages              map[string]*dto.UpdatedResponse
	fetchCursors       []dto.SyncCursor
	fetchErr           error
	fetchDelay         time.Duration
}

func cursorKey(cursor dto.SyncCursor) string {
	if cursor.DeltaToken != "" {
		return "delta:" + cursor.DeltaToken
	}
	return "page:" + cursor.PageToken
}

func (p *fakeProvider) StartBootstrapSync(ctx context.Context, daysWithin int, bodyType string) (*dto.BootstrapSyncResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.bootstrapCalls++
	if len(p.bootstrapErrs) > 0 {
		err := p.bootstrapErrs[0]
		p.bootstrapErrs = p.bootstrapErrs[1:]
		return nil, err
	}
	if len(p.bootstrapResponses) == 0 {
		return &dto.BootstrapSyncResponse{Ready: false}, nil
	}
	response := p.bootstrapResponses[0]
	if len(p.bootstrapResponses) > 1 {
		p.bootstrapResponses = p.bootstrapResponses[1:]
	}
	return &response, nil
}

func (p *fakeProvider) FetchUpdated(ctx context.Context, cursor dto.SyncCursor) (*dto.UpdatedResponse, error) {
	if p.fetchDelay > 0 {
		time.Sleep(p.fetchDelay)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fetchCursors = append(p.fetchCursors, cursor)
	if p.fetchErr != nil {
		return nil, p.fetchErr
	}
	page, ok := p.pages[cursorKey(cursor)]
	if !ok {
		return &dto.UpdatedResponse{}, nil
	}
	return page, nil
}

func (p *fakeProvider) SendMessage(ctx context.Context, envelope dto.SendEnvelope) (*dto.SendResponse, error) {
	return &dto.SendResponse{}, nil
}

func (p *fakeProvider) fetchCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.fetchCursors)
}

type fakeProviderFactory struct {
	client *fakeProvider
}

func (f *fakeProviderFactory) ForAccount(account *models.Account) interfaces.ProviderClient {
	return f.client
}

// fakeNormalizer persists nothing; it tracks provider ids to mirror the
// upsert's created/updated distinction.
type fakeNormalizer struct {
	mu   gosync.Mutex
	seen map[string]bool
}

func newFakeNormalizer() *fakeNormalizer {
	return &fakeNormalizer{seen: make(map[string]bool)}
}

func (n *fakeNormalizer) NormalizeAndPersist(ctx context.Context, account *models.Account, record dto.EmailRecord) (*models.Email, bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	key := account.ID + "/" + record.ID
	created := !n.seen[key]
	n.seen[key] = true
	sentAt := record.SentAt
	return &models.Email{
		ID:                "email_" + record.ID,
		AccountID:         account.ID,
		ProviderMessageID: record.ID,
		ThreadID:          "thread_" + record.ThreadID,
		Subject:           record.Subject,
		BodySnippet:       record.BodySnippet,
		FromAddress:       record.From.Address,
		SentAt:            &sentAt,
	}, created, nil
}

type fakeEmbedder struct {
	err error
}

func (e *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	vector := make([]float32, embedding.EmbeddingDimensions)
	vector[0] = 1
	return vector, nil
}

func (e *fakeEmbedder) Dimensions() int {
	return embedding.EmbeddingDimensions
}

type fakePublisher struct {
	mu       gosync.Mutex
	received []dto.EmailReceived
	degraded []dto.SyncDegraded
}

func (p *fakePublisher) PublishEmailReceived(ctx context.Context, event dto.EmailReceived) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.received = append(p.received, event)
	return nil
}

func (p *fakePublisher) PublishSyncDegraded(ctx context.Context, event dto.SyncDegraded) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.degraded = append(p.degraded, event)
	return nil
}

func (p *fakePublisher) Close() error { return nil }

// ---- helpers ----

func testLogger() logger.Logger {
	appLogger := logger.NewAppLogger(&logger.Config{DevMode: true})
	appLogger.InitLogger()
	return appLogger
}

func records(ids ...string) []dto.EmailRecord {
	result := make([]dto.EmailRecord, 0, len(ids))
	for _, id := range ids {
		result = append(result, dto.EmailRecord{
			ID:          id,
			ThreadID:    "t_" + id,
			Subject:     "subject " + id,
			BodySnippet: "body " + id,
			From:        dto.EmailAddress{Address: "sender@acme.com"},
			SentAt:      time.Now(),
		})
	}
	return result
}

func stringPtr(s string) *string { return &s }

type fixture struct {
	orchestrator interfaces.SyncOrchestrator
	accounts     *fakeAccountRepo
	provider     *fakeProvider
	normalizer   *fakeNormalizer
	embedder     *fakeEmbedder
	index        interfaces.IndexStore
	publisher    *fakePublisher
}

func newFixture(t *testing.T, account *models.Account, provider *fakeProvider, cfg *config.ProviderConfig) *fixture {
	t.Helper()
	if cfg == nil {
		cfg = &config.ProviderConfig{
			SyncDaysWithin:               30,
			SyncBodyType:                 "html",
			BootstrapPollIntervalSeconds: 1,
			BootstrapTimeoutSeconds:      300,
		}
	}

	log := testLogger()
	accounts := newFakeAccountRepo(account)
	normalizer := newFakeNormalizer()
	embedder := &fakeEmbedder{}
	index := search.NewIndexStore(log, accounts)
	publisher := &fakePublisher{}

	orchestrator := NewSyncOrchestrator(
		log,
		cfg,
		accounts,
		&fakeProviderFactory{client: provider},
		normalizer,
		embedder,
		index,
		publisher,
	)

	return &fixture{
		orchestrator: orchestrator,
		accounts:     accounts,
		provider:     provider,
		normalizer:   normalizer,
		embedder:     embedder,
		index:        index,
		publisher:    publisher,
	}
}

// ---- tests ----

func TestSync_BootstrapPollsUntilReady(t *testing.T) {
	account := &models.Account{ID: "acct_1", EmailAddress: "a@acme.com", AccessToken: "tok"}
	provider := &fakeProvider{
		bootstrapResponses: []dto.BootstrapSyncResponse{
			{Ready: false},
			{Ready: false},
			{Ready: true, SyncUpdatedToken: "S0"},
		},
		pages: map[string]*dto.UpdatedResponse{
			"delta:S0": {Records: records("m1"), NextDeltaToken: "T0"},
		},
	}
	f := newFixture(t, account, provider, nil)

	result, err := f.orchestrator.Sync(context.Background(), "acct_1")

	require.NoError(t, err)
	assert.Equal(t, dto.SyncModeBootstrap, result.Mode)
	assert.Equal(t, 3, provider.bootstrapCalls)
	assert.Equal(t, "T0", result.DeltaToken)
	assert.Equal(t, "T0", f.accounts.deltaToken("acct_1"))
}

func TestSync_BootstrapTokenBecomesCursor(t *testing.T) {
	account := &models.Account{ID: "acct_1", AccessToken: "tok"}
	provider := &fakeProvider{
		bootstrapResponses: []dto.BootstrapSyncResponse{
			{Ready: true, SyncUpdatedToken: "S0"},
		},
		pages: map[string]*dto.UpdatedResponse{
			// The drain closes without a fresh delta token.
			"delta:S0": {Records: records("m1")},
		},
	}
	f := newFixture(t, account, provider, nil)

	result, err := f.orchestrator.Sync(context.Background(), "acct_1")

	require.NoError(t, err)
	assert.Equal(t, dto.SyncModeBootstrap, result.Mode)
	assert.Equal(t, "S0", result.DeltaToken)
	assert.Equal(t, "S0", f.accounts.deltaToken("acct_1"), "bootstrap token must become the initial cursor")

	// The account is sync-ready now: the next trigger runs incrementally.
	second, err := f.orchestrator.Sync(context.Background(), "acct_1")
	require.NoError(t, err)
	assert.Equal(t, dto.SyncModeIncremental, second.Mode)
}

func TestSync_PaginationAccumulatesAllPages(t *testing.T) {
	account := &models.Account{ID: "acct_1", AccessToken: "tok", NextDeltaToken: stringPtr("T0")}
	provider := &fakeProvider{
		pages: map[string]*dto.UpdatedResponse{
			"delta:T0": {Records: records("m1", "m2", "m3", "m4", "m5"), NextPageToken: "P1"},
			"page:P1":  {Records: records("m6", "m7"), NextDeltaToken: "T1"},
		},
	}
	f := newFixture(t, account, provider, nil)

	result, err := f.orchestrator.Sync(context.Background(), "acct_1")

	require.NoError(t, err)
	assert.Equal(t, dto.SyncModeIncremental, result.Mode)
	assert.Equal(t, 7, result.RecordsProcessed)
	assert.Equal(t, 7, result.EmailsCreated)
	assert.Equal(t, "T1", result.DeltaToken)
	assert.Equal(t, "T1", f.accounts.deltaToken("acct_1"))

	require.Len(t, provider.fetchCursors, 2)
	assert.Equal(t, "T0", provider.fetchCursors[0].DeltaToken)
	assert.Equal(t, "P1", provider.fetchCursors[1].PageToken)

	count, err := f.index.DocumentCount(context.Background(), "acct_1")
	require.NoError(t, err)
	assert.Equal(t, 7, count)
}

func TestSync_ReplayedRecordsAreAbsorbed(t *testing.T) {
	account := &models.Account{ID: "acct_1", AccessToken: "tok", NextDeltaToken: stringPtr("T0")}
	provider := &fakeProvider{
		pages: map[string]*dto.UpdatedResponse{
			"delta:T0": {Records: records("m1", "m2", "m3"), NextDeltaToken: "T1"},
			"delta:T1": {Records: records("m1", "m2", "m3"), NextDeltaToken: "T2"},
		},
	}
	f := newFixture(t, account, provider, nil)

	first, err := f.orchestrator.Sync(context.Background(), "acct_1")
	require.NoError(t, err)
	assert.Equal(t, 3, first.EmailsCreated)

	second, err := f.orchestrator.Sync(context.Background(), "acct_1")
	require.NoError(t, err)
	assert.Equal(t, 3, second.RecordsProcessed)
	assert.Zero(t, second.EmailsCreated)

	count, err := f.index.DocumentCount(context.Background(), "acct_1")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestSync_CursorOnlyAdvancesWhenProviderCloses(t *testing.T) {
	account := &models.Account{ID: "acct_1", AccessToken: "tok", NextDeltaToken: stringPtr("T0")}
	provider := &fakeProvider{
		pages: map[string]*dto.UpdatedResponse{
			// No next tokens at all: the pass closes without a new cursor.
			"delta:T0": {Records: records("m1")},
		},
	}
	f := newFixture(t, account, provider, nil)

	result, err := f.orchestrator.Sync(context.Background(), "acct_1")

	require.NoError(t, err)
	assert.Equal(t, "T0", result.DeltaToken)
	assert.Equal(t, "T0", f.accounts.deltaToken("acct_1"))
}

func TestIncrementalSync_RequiresBootstrap(t *testing.T) {
	account := &models.Account{ID: "acct_1", AccessToken: "tok"}
	f := newFixture(t, account, &fakeProvider{}, nil)

	_, err := f.orchestrator.IncrementalSync(context.Background(), "acct_1")

	assert.ErrorIs(t, err, er.ErrSyncNotReady)
}

func TestSync_UnknownAccount(t *testing.T) {
	account := &models.Account{ID: "acct_1", AccessToken: "tok"}
	f := newFixture(t, account, &fakeProvider{}, nil)

	_, err := f.orchestrator.Sync(context.Background(), "acct_missing")

	assert.ErrorIs(t, err, er.ErrAccountNotFound)
}

func TestBootstrapSync_TimesOut(t *testing.T) {
	account := &models.Account{ID: "acct_1", AccessToken: "tok"}
	provider := &fakeProvider{} // never ready
	cfg := &config.ProviderConfig{
		SyncDaysWithin:               30,
		SyncBodyType:                 "html",
		BootstrapPollIntervalSeconds: 1,
		BootstrapTimeoutSeconds:      1,
	}
	f := newFixture(t, account, provider, cfg)

	_, err := f.orchestrator.BootstrapSync(context.Background(), "acct_1")

	require.Error(t, err)
	assert.ErrorIs(t, err, er.ErrBootstrapTimeout)
	assert.Empty(t, f.accounts.deltaToken("acct_1"), "failed bootstrap must not establish a cursor")

	require.Len(t, f.publisher.degraded, 1)
	assert.Equal(t, string(dto.SyncModeBootstrap), f.publisher.degraded[0].Mode)
}

func TestBootstrapSync_RetriesTransientProviderFailures(t *testing.T) {
	account := &models.Account{ID: "acct_1", AccessToken: "tok"}
	upstream := &fakeProvider{
		bootstrapErrs: []error{
			&provider.ProviderError{StatusCode: 429, Operation: "startBootstrapSync", Body: "slow down"},
		},
		bootstrapResponses: []dto.BootstrapSyncResponse{
			{Ready: true, SyncUpdatedToken: "S0"},
		},
		pages: map[string]*dto.UpdatedResponse{
			"delta:S0": {Records: records("m1"), NextDeltaToken: "T0"},
		},
	}
	f := newFixture(t, account, upstream, nil)

	_, err := f.orchestrator.Sync(context.Background(), "acct_1")

	require.NoError(t, err)
	assert.Equal(t, 2, upstream.bootstrapCalls, "a rate-limited poll is retried within the deadline")
	assert.Equal(t, "T0", f.accounts.deltaToken("acct_1"))
}

func TestBootstrapSync_FailsFastOnCredentialErrors(t *testing.T) {
	account := &models.Account{ID: "acct_1", AccessToken: "tok"}
	upstream := &fakeProvider{
		bootstrapErrs: []error{
			&provider.ProviderError{StatusCode: 401, Operation: "startBootstrapSync", Body: "bad token"},
		},
	}
	f := newFixture(t, account, upstream, nil)

	_, err := f.orchestrator.Sync(context.Background(), "acct_1")

	require.Error(t, err)
	assert.Equal(t, 1, upstream.bootstrapCalls, "credential failures are not polled again")
	assert.Empty(t, f.accounts.deltaToken("acct_1"))
	require.Len(t, f.publisher.degraded, 1)
}

func TestIncrementalSync_SkipsBusyAccount(t *testing.T) {
	account := &models.Account{ID: "acct_1", AccessToken: "tok", NextDeltaToken: stringPtr("T0")}
	upstream := &fakeProvider{
		fetchDelay: 200 * time.Millisecond,
		pages: map[string]*dto.UpdatedResponse{
			"delta:T0": {Records: records("m1"), NextDeltaToken: "T1"},
		},
	}
	f := newFixture(t, account, upstream, nil)

	var wg gosync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := f.orchestrator.Sync(context.Background(), "acct_1")
		assert.NoError(t, err)
	}()

	time.Sleep(50 * time.Millisecond)
	_, err := f.orchestrator.IncrementalSync(context.Background(), "acct_1")
	assert.ErrorIs(t, err, er.ErrSyncInProgress)

	wg.Wait()
	assert.Equal(t, "T1", f.accounts.deltaToken("acct_1"))
}

func TestSync_ProviderFailureKeepsCursorAndDegrades(t *testing.T) {
	account := &models.Account{ID: "acct_1", AccessToken: "tok", NextDeltaToken: stringPtr("T0")}
	provider := &fakeProvider{fetchErr: errors.New("upstream 500")}
	f := newFixture(t, account, provider, nil)

	_, err := f.orchestrator.Sync(context.Background(), "acct_1")

	require.Error(t, err)
	assert.Equal(t, "T0", f.accounts.deltaToken("acct_1"))
	require.Len(t, f.publisher.degraded, 1)
	assert.Equal(t, "acct_1", f.publisher.degraded[0].AccountID)
}

func TestSync_PublishesEmailReceivedPerNewEmail(t *testing.T) {
	account := &models.Account{ID: "acct_1", AccessToken: "tok"}
	provider := &fakeProvider{
		bootstrapResponses: []dto.BootstrapSyncResponse{
			{Ready: true, SyncUpdatedToken: "S0"},
		},
		pages: map[string]*dto.UpdatedResponse{
			"delta:S0": {Records: records("m1", "m2"), NextDeltaToken: "T0"},
		},
	}
	f := newFixture(t, account, provider, nil)

	_, err := f.orchestrator.Sync(context.Background(), "acct_1")

	require.NoError(t, err)
	require.Len(t, f.publisher.received, 2)
	for _, event := range f.publisher.received {
		assert.Equal(t, "acct_1", event.AccountID)
		assert.True(t, event.InitialSync)
	}
}

func TestSync_EmbeddingFailureAbortsPassAndKeepsCursor(t *testing.T) {
	account := &models.Account{ID: "acct_1", AccessToken: "tok", NextDeltaToken: stringPtr("T0")}
	provider := &fakeProvider{
		pages: map[string]*dto.UpdatedResponse{
			"delta:T0": {Records: records("m1", "m2"), NextDeltaToken: "T1"},
		},
	}
	f := newFixture(t, account, provider, nil)
	f.embedder.err = errors.New("embedding api down")

	_, err := f.orchestrator.Sync(context.Background(), "acct_1")

	require.Error(t, err)
	assert.Equal(t, "T0", f.accounts.deltaToken("acct_1"), "cursor must not advance past unindexed emails")

	count, err := f.index.DocumentCount(context.Background(), "acct_1")
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.NotEmpty(t, f.publisher.degraded)

	// With embedding back, the same cursor replays the records and the
	// persisted emails finally land in the index.
	f.embedder.err = nil
	result, err := f.orchestrator.Sync(context.Background(), "acct_1")

	require.NoError(t, err)
	assert.Equal(t, 2, result.RecordsProcessed)
	assert.Equal(t, "T1", f.accounts.deltaToken("acct_1"))

	count, err = f.index.DocumentCount(context.Background(), "acct_1")
	require.NoError(t, err)
	assert.Equal(t, 2, count, "replayed emails must be indexed once embedding recovers")
}

func TestSync_ConcurrentTriggersCoalesce(t *testing.T) {
	account := &models.Account{ID: "acct_1", AccessToken: "tok", NextDeltaToken: stringPtr("T0")}
	provider := &fakeProvider{
		fetchDelay: 100 * time.Millisecond,
		pages: map[string]*dto.UpdatedResponse{
			"delta:T0": {Records: records("m1"), NextDeltaToken: "T1"},
		},
	}
	f := newFixture(t, account, provider, nil)

	var wg gosync.WaitGroup
	results := make([]*dto.SyncResult, 2)
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = f.orchestrator.Sync(context.Background(), "acct_1")
		}(i)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.Equal(t, results[0], results[1], "coalesced triggers share one result")
	assert.Equal(t, 1, provider.fetchCount(), "only one pass may hit the provider")
}

func TestSync_DistinctAccountsDoNotCoalesce(t *testing.T) {
	accountA := &models.Account{ID: "acct_a", AccessToken: "tok", NextDeltaToken: stringPtr("TA")}
	accountB := &models.Account{ID: "acct_b", AccessToken: "tok", NextDeltaToken: stringPtr("TB")}
	provider := &fakeProvider{
		pages: map[string]*dto.UpdatedResponse{
			"delta:TA": {Records: records("a1"), NextDeltaToken: "TA1"},
			"delta:TB": {Records: records("b1"), NextDeltaToken: "TB1"},
		},
	}
	f := newFixture(t, accountA, provider, nil)
	_, err := f.accounts.Create(context.Background(), accountB)
	require.NoError(t, err)

	_, errA := f.orchestrator.Sync(context.Background(), "acct_a")
	_, errB := f.orchestrator.Sync(context.Background(), "acct_b")

	require.NoError(t, errA)
	require.NoError(t, errB)
	assert.Equal(t, "TA1", f.accounts.deltaToken("acct_a"))
	assert.Equal(t, "TB1", f.accounts.deltaToken("acct_b"))
}
