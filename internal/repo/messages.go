package repo

import (
	"context"
	"time"

	"github.com/LeventeLantos/outreach-compliance/internal/model"
)

type MessageRepository interface {
	ClaimPending(ctx context.Context, limit int) ([]model.Message, error)
	MarkSent(ctx context.Context, id int64, remoteMessageID string) error
	MarkFailed(ctx context.Context, id int64, errMsg string) error
	MarkSuppressed(ctx context.Context, id int64, reason string) error
	// Defer returns a claimed message to pending, not claimable before until.
	Defer(ctx context.Context, id int64, until time.Time) error
	ListSent(ctx context.Context, limit, offset int) ([]model.Message, error)
}
