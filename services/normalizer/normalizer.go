package normalizer

import (
	"context"
	"encoding/base64"

	"github.com/lib/pq"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/inboxia/mailcore/dto"
	"github.com/inboxia/mailcore/interfaces"
	"github.com/inboxia/mailcore/internal/models"
	"github.com/inboxia/mailcore/internal/tracing"
	"github.com/inboxia/mailcore/internal/utils"
)

type mailNormalizer struct {
	emailRepository      interfaces.EmailRepository
	threadRepository     interfaces.EmailThreadRepository
	attachmentRepository interfaces.EmailAttachmentRepository
}

func NewMailNormalizer(
	emailRepository interfaces.EmailRepository,
	threadRepository interfaces.EmailThreadRepository,
	attachmentRepository interfaces.EmailAttachmentRepository,
) interfaces.MailNormalizer {
	return &mailNormalizer{
		emailRepository:      emailRepository,
		threadRepository:     threadRepository,
		attachmentRepository: attachmentRepository,
	}
}

// NormalizeAndPersist converts one provider record into the canonical model.
// The email is upserted by provider message id, so replayed records from a
// resumed sync pass are absorbed without duplicates.
func (n *mailNormalizer) NormalizeAndPersist(ctx context.Context, account *models.Account, record dto.EmailRecord) (*models.Email, bool, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "mailNormalizer.NormalizeAndPersist")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagAccount(span, account.ID)
	span.SetTag("provider_message_id", record.ID)

	if record.ID == "" {
		err := errors.New("record has no provider message id")
		tracing.TraceErr(span, err)
		return nil, false, err
	}

	email := n.toEmail(account, record)

	thread, err := n.attachToThread(ctx, account, record, email)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, false, err
	}
	email.ThreadID = thread.ID

	emailID, created, err := n.emailRepository.Upsert(ctx, email)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, false, err
	}
	email.ID = emailID

	if created {
		if err := n.updateThreadBookkeeping(ctx, thread, email); err != nil {
			tracing.TraceErr(span, err)
			return nil, false, err
		}

		if err := n.storeAttachments(ctx, email, record.Attachments); err != nil {
			tracing.TraceErr(span, err)
			return nil, false, err
		}
	}

	return email, created, nil
}

func (n *mailNormalizer) toEmail(account *models.Account, record dto.EmailRecord) *models.Email {
	fromAddress, fromName := utils.ExtractAddress(record.From.Address)
	if fromName == "" {
		fromName = record.From.Name
	}

	email := &models.Email{
		AccountID:         account.ID,
		ProviderMessageID: record.ID,
		InternetMessageID: utils.NormalizeMessageID(record.InternetMessageID),
		Subject:           record.Subject,
		FromAddress:       fromAddress,
		FromName:          fromName,
		ToAddresses:       addressList(record.To),
		CcAddresses:       addressList(record.Cc),
		BccAddresses:      addressList(record.Bcc),
		BodyHTML:          record.Body,
		HasAttachment:     record.HasAttachments || len(record.Attachments) > 0,
		Labels:            pq.StringArray(record.SysLabels),
	}

	if len(record.ReplyTo) > 0 {
		replyTo, _ := utils.ExtractAddress(record.ReplyTo[0].Address)
		email.ReplyTo = replyTo
	}

	if !record.SentAt.IsZero() {
		email.SentAt = utils.TimePtr(record.SentAt.UTC())
	}
	if !record.ReceivedAt.IsZero() {
		email.ReceivedAt = utils.TimePtr(record.ReceivedAt.UTC())
	}

	// Prefer the provider snippet; derive one from the body otherwise
	if record.BodySnippet != "" {
		email.BodySnippet = utils.Truncate(utils.CollapseWhitespace(record.BodySnippet), maxSnippetLength)
	} else {
		email.BodySnippet = htmlToText(record.Body)
	}

	return email
}

// attachToThread finds or creates the thread a record belongs to. Thread
// membership is decided here and nowhere else.
func (n *mailNormalizer) attachToThread(ctx context.Context, account *models.Account, record dto.EmailRecord, email *models.Email) (*models.EmailThread, error) {
	providerThreadID := record.ThreadID
	if providerThreadID == "" {
		// Threadless providers: fall back to the message itself
		providerThreadID = record.ID
	}

	thread, err := n.threadRepository.GetByProviderThreadID(ctx, account.ID, providerThreadID)
	if err != nil {
		return nil, err
	}
	if thread != nil {
		return thread, nil
	}

	thread = &models.EmailThread{
		AccountID:        account.ID,
		ProviderThreadID: providerThreadID,
		Subject:          utils.NormalizeEmailSubject(record.Subject),
		Participants:     pq.StringArray(email.AllParticipants()),
	}

	if _, err := n.threadRepository.Create(ctx, thread); err != nil {
		return nil, err
	}

	return thread, nil
}

func (n *mailNormalizer) updateThreadBookkeeping(ctx context.Context, thread *models.EmailThread, email *models.Email) error {
	thread.MessageCount++
	thread.Participants = pq.StringArray(utils.UniqueEmails(append(thread.Participants, email.AllParticipants()...)))
	if email.HasAttachment {
		thread.HasAttachments = true
	}

	if email.SentAt != nil {
		if thread.FirstMessageAt == nil || email.SentAt.Before(*thread.FirstMessageAt) {
			thread.FirstMessageAt = email.SentAt
		}
		if thread.LastMessageAt == nil || email.SentAt.After(*thread.LastMessageAt) {
			thread.LastMessageAt = email.SentAt
		}
	}

	applyLabels(thread, email)

	return n.threadRepository.Update(ctx, thread)
}

// applyLabels folds one message's provider labels into the thread flags.
func applyLabels(thread *models.EmailThread, email *models.Email) {
	for _, label := range email.Labels {
		switch label {
		case dto.LabelInbox:
			thread.InboxStatus = true
		case dto.LabelSent:
			thread.SentStatus = true
		case dto.LabelDraft:
			thread.DraftStatus = true
		case dto.LabelArchive:
			thread.ArchivedStatus = true
		case dto.LabelTrash:
			thread.TrashedStatus = true
		case dto.LabelStarred:
			thread.StarredStatus = true
		case dto.LabelSpam:
			thread.SpamStatus = true
		}
	}
	if !email.HasLabel(dto.LabelUnread) {
		thread.ReadStatus = true
	}
}

func (n *mailNormalizer) storeAttachments(ctx context.Context, email *models.Email, records []dto.AttachmentRecord) error {
	for _, record := range records {
		attachment := &models.EmailAttachment{
			EmailID:     email.ID,
			Filename:    record.Name,
			ContentType: record.MimeType,
			Size:        record.Size,
			IsInline:    record.Inline,
		}

		var content []byte
		if record.Content != "" {
			decoded, err := base64.StdEncoding.DecodeString(record.Content)
			if err != nil {
				return errors.Wrapf(err, "failed to decode attachment %s", record.Name)
			}
			content = decoded
		}

		if _, err := n.attachmentRepository.Store(ctx, attachment, content); err != nil {
			return err
		}
	}
	return nil
}

func addressList(addresses []dto.EmailAddress) pq.StringArray {
	result := make([]string, 0, len(addresses))
	for _, a := range addresses {
		address, _ := utils.ExtractAddress(a.Address)
		if address != "" {
			result = append(result, address)
		}
	}
	return pq.StringArray(result)
}
