package model

import "time"

type Status string

const (
	Pending    Status = "pending"
	Processing Status = "processing"
	Sent       Status = "sent"
	Failed     Status = "failed"
	Suppressed Status = "suppressed"
)

// Message is one queued outbound SMS. Content is the template text; the
// dispatcher renders it with Variables right before sending.
type Message struct {
	ID             int64
	TenantID       string
	RecipientPhone string
	Content        string
	Variables      map[string]string

	// Jurisdiction is the recipient's state code, Timezone an IANA zone name.
	Jurisdiction string
	Timezone     string

	Status          Status
	AttemptCount    int
	LastError       *string
	DeferredUntil   *time.Time
	SentAt          *time.Time
	RemoteMessageID *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
