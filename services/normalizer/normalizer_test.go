package normalizer

import (
	"context"
	"encoding/base64"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inboxia/mailcore/dto"
	"github.com/inboxia/mailcore/internal/models"
)

// ---- in-memory repositories ----

type memEmailRepo struct {
	emails map[string]*models.Email // keyed by accountID/providerMessageID
}

func newMemEmailRepo() *memEmailRepo {
	return &memEmailRepo{emails: make(map[string]*models.Email)}
}

func (r *memEmailRepo) Upsert(ctx context.Context, email *models.Email) (string, bool, error) {
	key := email.AccountID + "/" + email.ProviderMessageID
	if existing, ok := r.emails[key]; ok {
		existing.Labels = email.Labels
		return existing.ID, false, nil
	}
	email.ID = fmt.Sprintf("email_%d", len(r.emails)+1)
	r.emails[key] = email
	return email.ID, true, nil
}

func (r *memEmailRepo) GetByID(ctx context.Context, id string) (*models.Email, error) {
	for _, email := range r.emails {
		if email.ID == id {
			return email, nil
		}
	}
	return nil, nil
}

func (r *memEmailRepo) GetByProviderMessageID(ctx context.Context, accountID, providerMessageID string) (*models.Email, error) {
	return r.emails[accountID+"/"+providerMessageID], nil
}

func (r *memEmailRepo) ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]*models.Email, int64, error) {
	return nil, 0, nil
}

func (r *memEmailRepo) ListByThread(ctx context.Context, threadID string) ([]*models.Email, error) {
	return nil, nil
}

func (r *memEmailRepo) CountByAccount(ctx context.Context, accountID string) (int64, error) {
	return int64(len(r.emails)), nil
}

type memThreadRepo struct {
	threads map[string]*models.EmailThread // keyed by accountID/providerThreadID
}

func newMemThreadRepo() *memThreadRepo {
	return &memThreadRepo{threads: make(map[string]*models.EmailThread)}
}

func (r *memThreadRepo) Create(ctx context.Context, thread *models.EmailThread) (string, error) {
	thread.ID = fmt.Sprintf("thread_%d", len(r.threads)+1)
	r.threads[thread.AccountID+"/"+thread.ProviderThreadID] = thread
	return thread.ID, nil
}

func (r *memThreadRepo) Update(ctx context.Context, thread *models.EmailThread) error {
	r.threads[thread.AccountID+"/"+thread.ProviderThreadID] = thread
	return nil
}

func (r *memThreadRepo) GetByID(ctx context.Context, id string) (*models.EmailThread, error) {
	for _, thread := range r.threads {
		if thread.ID == id {
			return thread, nil
		}
	}
	return nil, nil
}

func (r *memThreadRepo) GetByProviderThreadID(ctx context.Context, accountID, providerThreadID string) (*models.EmailThread, error) {
	return r.threads[accountID+"/"+providerThreadID], nil
}

func (r *memThreadRepo) ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]*models.EmailThread, int64, error) {
	return nil, 0, nil
}

type memAttachmentRepo struct {
	stored   []*models.EmailAttachment
	contents [][]byte
}

func (r *memAttachmentRepo) Store(ctx context.Context, attachment *models.EmailAttachment, content []byte) (string, error) {
	attachment.ID = fmt.Sprintf("file_%d", len(r.stored)+1)
	r.stored = append(r.stored, attachment)
	r.contents = append(r.contents, content)
	return attachment.ID, nil
}

func (r *memAttachmentRepo) GetByID(ctx context.Context, id string) (*models.EmailAttachment, error) {
	return nil, nil
}

func (r *memAttachmentRepo) ListByEmail(ctx context.Context, emailID string) ([]*models.EmailAttachment, error) {
	return nil, nil
}

func (r *memAttachmentRepo) Download(ctx context.Context, id string) ([]byte, error) {
	return nil, nil
}

// ---- tests ----

func testAccount() *models.Account {
	return &models.Account{ID: "acct_1", EmailAddress: "owner@acme.com", AccessToken: "tok"}
}

func record(id, threadID string) dto.EmailRecord {
	return dto.EmailRecord{
		ID:                id,
		ThreadID:          threadID,
		InternetMessageID: "<" + id + "@provider>",
		Subject:           "Re: Quarterly invoice",
		From:              dto.EmailAddress{Name: "Jane Doe", Address: "Jane Doe <jane@acme.com>"},
		To:                []dto.EmailAddress{{Address: "owner@acme.com"}},
		SentAt:            time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Body:              "<html><body><p>Payment attached.</p></body></html>",
		SysLabels:         []string{dto.LabelInbox, dto.LabelUnread},
	}
}

func newTestNormalizer() (*memEmailRepo, *memThreadRepo, *memAttachmentRepo, *mailNormalizer) {
	emails := newMemEmailRepo()
	threads := newMemThreadRepo()
	attachments := &memAttachmentRepo{}
	n := NewMailNormalizer(emails, threads, attachments).(*mailNormalizer)
	return emails, threads, attachments, n
}

func TestNormalizeAndPersist_CreatesEmailAndThread(t *testing.T) {
	_, threads, _, n := newTestNormalizer()

	email, created, err := n.NormalizeAndPersist(context.Background(), testAccount(), record("m1", "t1"))

	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "acct_1", email.AccountID)
	assert.Equal(t, "m1", email.ProviderMessageID)
	assert.Equal(t, "m1@provider", email.InternetMessageID)
	assert.Equal(t, "jane@acme.com", email.FromAddress)
	assert.Equal(t, "Jane Doe", email.FromName)
	assert.NotEmpty(t, email.ThreadID)
	assert.Contains(t, email.BodySnippet, "Payment attached")
	assert.NotContains(t, email.BodySnippet, "<p>")

	thread, err := threads.GetByProviderThreadID(context.Background(), "acct_1", "t1")
	require.NoError(t, err)
	require.NotNil(t, thread)
	assert.Equal(t, email.ThreadID, thread.ID)
	assert.Equal(t, "Quarterly invoice", thread.Subject, "thread subject drops the reply prefix")
	assert.Equal(t, 1, thread.MessageCount)
	assert.ElementsMatch(t, []string{"jane@acme.com", "owner@acme.com"}, []string(thread.Participants))
}

func TestNormalizeAndPersist_ReplayUpdatesNothingStructural(t *testing.T) {
	_, threads, _, n := newTestNormalizer()
	account := testAccount()

	_, created, err := n.NormalizeAndPersist(context.Background(), account, record("m1", "t1"))
	require.NoError(t, err)
	require.True(t, created)

	email, created, err := n.NormalizeAndPersist(context.Background(), account, record("m1", "t1"))
	require.NoError(t, err)
	assert.False(t, created)
	assert.NotEmpty(t, email.ID)

	thread, err := threads.GetByProviderThreadID(context.Background(), "acct_1", "t1")
	require.NoError(t, err)
	assert.Equal(t, 1, thread.MessageCount, "replays must not inflate the message count")
}

func TestNormalizeAndPersist_SharedThreadAccumulates(t *testing.T) {
	_, threads, _, n := newTestNormalizer()
	account := testAccount()

	_, _, err := n.NormalizeAndPersist(context.Background(), account, record("m1", "t1"))
	require.NoError(t, err)

	second := record("m2", "t1")
	second.From = dto.EmailAddress{Address: "peter@acme.com"}
	second.SentAt = time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	_, _, err = n.NormalizeAndPersist(context.Background(), account, second)
	require.NoError(t, err)

	thread, err := threads.GetByProviderThreadID(context.Background(), "acct_1", "t1")
	require.NoError(t, err)
	assert.Equal(t, 2, thread.MessageCount)
	assert.Contains(t, []string(thread.Participants), "peter@acme.com")
	assert.Equal(t, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC), thread.FirstMessageAt.UTC())
	assert.Equal(t, time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC), thread.LastMessageAt.UTC())
}

func TestNormalizeAndPersist_ThreadlessRecordFallsBackToMessageId(t *testing.T) {
	_, threads, _, n := newTestNormalizer()

	_, _, err := n.NormalizeAndPersist(context.Background(), testAccount(), record("m1", ""))
	require.NoError(t, err)

	thread, err := threads.GetByProviderThreadID(context.Background(), "acct_1", "m1")
	require.NoError(t, err)
	assert.NotNil(t, thread)
}

func TestNormalizeAndPersist_LabelsDriveThreadFlags(t *testing.T) {
	_, threads, _, n := newTestNormalizer()

	r := record("m1", "t1")
	r.SysLabels = []string{dto.LabelInbox, dto.LabelStarred, dto.LabelUnread}
	_, _, err := n.NormalizeAndPersist(context.Background(), testAccount(), r)
	require.NoError(t, err)

	thread, err := threads.GetByProviderThreadID(context.Background(), "acct_1", "t1")
	require.NoError(t, err)
	assert.True(t, thread.InboxStatus)
	assert.True(t, thread.StarredStatus)
	assert.False(t, thread.ReadStatus, "unread label keeps the thread unread")
	assert.False(t, thread.SpamStatus)
}

func TestNormalizeAndPersist_ReadWhenNoUnreadLabel(t *testing.T) {
	_, threads, _, n := newTestNormalizer()

	r := record("m1", "t1")
	r.SysLabels = []string{dto.LabelSent}
	_, _, err := n.NormalizeAndPersist(context.Background(), testAccount(), r)
	require.NoError(t, err)

	thread, err := threads.GetByProviderThreadID(context.Background(), "acct_1", "t1")
	require.NoError(t, err)
	assert.True(t, thread.SentStatus)
	assert.True(t, thread.ReadStatus)
}

func TestNormalizeAndPersist_StoresInlineAttachmentContent(t *testing.T) {
	_, _, attachments, n := newTestNormalizer()

	r := record("m1", "t1")
	r.Attachments = []dto.AttachmentRecord{
		{
			ID:       "a1",
			Name:     "invoice.pdf",
			MimeType: "application/pdf",
			Size:     3,
			Content:  base64.StdEncoding.EncodeToString([]byte("pdf")),
		},
	}
	_, _, err := n.NormalizeAndPersist(context.Background(), testAccount(), r)
	require.NoError(t, err)

	require.Len(t, attachments.stored, 1)
	assert.Equal(t, "invoice.pdf", attachments.stored[0].Filename)
	assert.Equal(t, []byte("pdf"), attachments.contents[0])
}

func TestNormalizeAndPersist_RejectsRecordWithoutId(t *testing.T) {
	_, _, _, n := newTestNormalizer()

	_, _, err := n.NormalizeAndPersist(context.Background(), testAccount(), dto.EmailRecord{})
	assert.Error(t, err)
}
