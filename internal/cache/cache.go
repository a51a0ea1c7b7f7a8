package cache

import (
	"context"
	"time"
)

type MessageCache interface {
	StoreSent(ctx context.Context, internalID int64, remoteMessageID string, sentAt time.Time) error
}

// FooterCache tracks when each contact last got the compliance footer.
// LastFooterAt returns the raw stored timestamp, "" when none is recorded.
type FooterCache interface {
	LastFooterAt(ctx context.Context, tenantID, phone string) (string, error)
	MarkFooterSent(ctx context.Context, tenantID, phone string, at time.Time) error
}

func footerKey(tenantID, phone string) string {
	return "footer:" + tenantID + ":" + phone
}
