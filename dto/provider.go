package dto

import "time"

// SyncCursor drives one fetchUpdated call. Exactly one of the two tokens is
// set: DeltaToken opens a new logical sync pass, PageToken continues the
// current one.
type SyncCursor struct {
	DeltaToken string
	PageToken  string
}

type BootstrapSyncResponse struct {
	Ready            bool   `json:"ready"`
	SyncUpdatedToken string `json:"syncUpdatedToken"`
}

type UpdatedResponse struct {
	Records        []EmailRecord `json:"records"`
	NextDeltaToken string        `json:"nextDeltaToken,omitempty"`
	NextPageToken  string        `json:"nextPageToken,omitempty"`
}

// EmailRecord is a provider-native message as returned by /sync/updated.
type EmailRecord struct {
	ID                string             `json:"id"`
	ThreadID          string             `json:"threadId"`
	InternetMessageID string             `json:"internetMessageId"`
	Subject           string             `json:"subject"`
	From              EmailAddress       `json:"from"`
	To                []EmailAddress     `json:"to"`
	Cc                []EmailAddress     `json:"cc"`
	Bcc               []EmailAddress     `json:"bcc"`
	ReplyTo           []EmailAddress     `json:"replyTo"`
	SentAt            time.Time          `json:"sentAt"`
	ReceivedAt        time.Time          `json:"receivedAt"`
	Body              string             `json:"body"`
	BodySnippet       string             `json:"bodySnippet"`
	SysLabels         []string           `json:"sysLabels"`
	HasAttachments    bool               `json:"hasAttachments"`
	Attachments       []AttachmentRecord `json:"attachments"`
}

type EmailAddress struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

type AttachmentRecord struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	MimeType string `json:"mimeType"`
	Size     int    `json:"size"`
	Inline   bool   `json:"inline"`
	// Content is base64 when the provider inlines small attachments.
	Content string `json:"content,omitempty"`
}

// SendEnvelope is an outbound message handed to POST /messages.
type SendEnvelope struct {
	From       EmailAddress   `json:"from"`
	To         []EmailAddress `json:"to"`
	Cc         []EmailAddress `json:"cc,omitempty"`
	Bcc        []EmailAddress `json:"bcc,omitempty"`
	ReplyTo    *EmailAddress  `json:"replyTo,omitempty"`
	Subject    string         `json:"subject"`
	Body       string         `json:"body"`
	InReplyTo  string         `json:"inReplyTo,omitempty"`
	References string         `json:"references,omitempty"`
	ThreadID   string         `json:"threadId,omitempty"`
}

type SendResponse struct {
	IDs []string `json:"ids"`
}

// Provider sys-label values observed on EmailRecord.SysLabels.
const (
	LabelInbox   = "inbox"
	LabelSent    = "sent"
	LabelDraft   = "draft"
	LabelArchive = "archive"
	LabelTrash   = "trash"
	LabelStarred = "starred"
	LabelSpam    = "junk"
	LabelUnread  = "unread"
)
