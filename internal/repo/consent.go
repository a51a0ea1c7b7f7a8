package repo

import (
	"context"
	"errors"

	"github.com/LeventeLantos/outreach-compliance/internal/model"
)

// ErrVersionConflict means another writer updated the record first.
var ErrVersionConflict = errors.New("consent record version conflict")

type ConsentRepository interface {
	// GetConsent returns a Version 0 subscribed record for unseen contacts.
	GetConsent(ctx context.Context, tenantID, phone string) (model.ConsentRecord, error)

	// ApplyTransition writes rec if the stored version still equals
	// expectedVersion and appends ev in the same transaction. On
	// ErrVersionConflict or any other error neither is persisted.
	ApplyTransition(ctx context.Context, rec model.ConsentRecord, expectedVersion int64, ev model.ConsentEvent) error

	// AppendConsentEvent records a verdict that left state unchanged.
	AppendConsentEvent(ctx context.Context, ev model.ConsentEvent) error
}
