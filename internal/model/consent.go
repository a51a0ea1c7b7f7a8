package model

import (
	"time"

	"github.com/LeventeLantos/outreach-compliance/internal/compliance"
)

// ConsentRecord is the persisted consent state for one contact in one tenant.
// Version increases on every successful write and backs compare-and-set.
type ConsentRecord struct {
	TenantID  string
	Phone     string
	State     compliance.ConsentState
	Version   int64
	UpdatedAt time.Time
}

// ConsentEvent is the audit entry written for every opt-out and help verdict.
type ConsentEvent struct {
	ID             string
	TenantID       string
	Phone          string
	Classification compliance.Classification
	FromState      compliance.ConsentState
	ToState        compliance.ConsentState
	Changed        bool
	CreatedAt      time.Time
}
