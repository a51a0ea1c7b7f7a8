package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/LeventeLantos/outreach-compliance/internal/compliance"
	"github.com/LeventeLantos/outreach-compliance/internal/model"
)

type PostgresConsentRepo struct {
	db *sql.DB
}

var _ ConsentRepository = (*PostgresConsentRepo)(nil)

func NewPostgresConsentRepo(db *sql.DB) *PostgresConsentRepo {
	return &PostgresConsentRepo{db: db}
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (r *PostgresConsentRepo) GetConsent(ctx context.Context, tenantID, phone string) (model.ConsentRecord, error) {
	rec := model.ConsentRecord{TenantID: tenantID, Phone: phone, State: compliance.Subscribed}

	var optedOut bool
	err := r.db.QueryRowContext(ctx, `
		SELECT opted_out, version, updated_at
		FROM contact_consent
		WHERE tenant_id = $1 AND phone = $2
	`, tenantID, phone).Scan(&optedOut, &rec.Version, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return rec, nil
	}
	if err != nil {
		return model.ConsentRecord{}, fmt.Errorf("get consent: %w", err)
	}

	if optedOut {
		rec.State = compliance.OptedOut
	}
	return rec, nil
}

func (r *PostgresConsentRepo) ApplyTransition(ctx context.Context, rec model.ConsentRecord, expectedVersion int64, ev model.ConsentEvent) error {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("apply transition: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := setConsent(ctx, tx, rec, expectedVersion); err != nil {
		return err
	}
	if err := insertEvent(ctx, tx, ev); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("apply transition: %w", err)
	}
	return nil
}

func (r *PostgresConsentRepo) AppendConsentEvent(ctx context.Context, ev model.ConsentEvent) error {
	return insertEvent(ctx, r.db, ev)
}

// setConsent is the version compare-and-set. Version 0 means the row must
// not exist yet.
func setConsent(ctx context.Context, db execer, rec model.ConsentRecord, expectedVersion int64) error {
	optedOut := rec.State == compliance.OptedOut
	now := time.Now().UTC()

	var (
		res sql.Result
		err error
	)
	if expectedVersion == 0 {
		res, err = db.ExecContext(ctx, `
			INSERT INTO contact_consent (tenant_id, phone, opted_out, version, updated_at)
			VALUES ($1, $2, $3, 1, $4)
			ON CONFLICT (tenant_id, phone) DO NOTHING
		`, rec.TenantID, rec.Phone, optedOut, now)
	} else {
		res, err = db.ExecContext(ctx, `
			UPDATE contact_consent
			SET opted_out = $3,
			    version = version + 1,
			    updated_at = $5
			WHERE tenant_id = $1 AND phone = $2 AND version = $4
		`, rec.TenantID, rec.Phone, optedOut, expectedVersion, now)
	}
	if err != nil {
		return fmt.Errorf("set consent: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set consent: %w", err)
	}
	if n != 1 {
		return ErrVersionConflict
	}
	return nil
}

func insertEvent(ctx context.Context, db execer, ev model.ConsentEvent) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO consent_events
		    (id, tenant_id, phone, classification, from_state, to_state, changed, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, ev.ID, ev.TenantID, ev.Phone, string(ev.Classification),
		string(ev.FromState), string(ev.ToState), ev.Changed, ev.CreatedAt)
	if err != nil {
		return fmt.Errorf("append consent event: %w", err)
	}
	return nil
}
