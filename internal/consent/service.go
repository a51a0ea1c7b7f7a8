// Package consent applies classified inbound replies to the persisted
// per-contact consent state.
package consent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/LeventeLantos/outreach-compliance/internal/compliance"
	"github.com/LeventeLantos/outreach-compliance/internal/model"
	"github.com/LeventeLantos/outreach-compliance/internal/repo"
)

const defaultMaxAttempts = 5

// Observer is notified of every inbound verdict and applied transition.
type Observer interface {
	ObserveInbound(c compliance.Classification)
	ObserveTransition(t compliance.Transition)
}

type Service struct {
	store  repo.ConsentRepository
	policy compliance.Policy
	log    *slog.Logger
	obs    Observer
	now    func() time.Time

	maxAttempts int
}

type Option func(*Service)

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

func WithObserver(o Observer) Option {
	return func(s *Service) { s.obs = o }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithMaxAttempts bounds compare-and-set retries on version conflicts.
func WithMaxAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

func NewService(store repo.ConsentRepository, policy compliance.Policy, opts ...Option) *Service {
	s := &Service{
		store:       store,
		policy:      policy,
		log:         slog.Default(),
		now:         time.Now,
		maxAttempts: defaultMaxAttempts,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

type InboundResult struct {
	Phone          string                    `json:"phone"`
	Classification compliance.Classification `json:"classification"`
	State          compliance.ConsentState   `json:"state"`
	Changed        bool                      `json:"changed"`

	// AutoReply is the carrier-required response for opt-out and help, "" otherwise.
	AutoReply string `json:"autoReply,omitempty"`
}

// HandleInbound canonicalizes the sender, classifies the body and applies the
// consent transition. Ordinary replies leave state untouched and write nothing.
func (s *Service) HandleInbound(ctx context.Context, tenantID, rawPhone, body string) (InboundResult, error) {
	phone, err := compliance.CanonicalPhone(rawPhone)
	if err != nil {
		return InboundResult{}, err
	}

	class := compliance.Classify(body)
	if s.obs != nil {
		s.obs.ObserveInbound(class)
	}

	res := InboundResult{Phone: phone, Classification: class}
	switch class {
	case compliance.ClassOptOut:
		res.AutoReply = s.policy.OptOutReply
	case compliance.ClassHelp:
		res.AutoReply = s.policy.HelpReply
	}

	if class == compliance.ClassNone {
		rec, err := s.store.GetConsent(ctx, tenantID, phone)
		if err != nil {
			return InboundResult{}, err
		}
		res.State = rec.State
		return res, nil
	}

	tr, err := s.apply(ctx, tenantID, phone, class)
	if err != nil {
		return InboundResult{}, err
	}
	res.State = tr.To
	res.Changed = tr.Changed

	s.log.Info("inbound consent verdict",
		"tenant", tenantID,
		"phone", phone,
		"classification", string(class),
		"state", string(tr.To),
		"changed", tr.Changed,
	)
	return res, nil
}

// apply runs the state machine as a compare-and-set loop. A state change is
// persisted together with its audit event; unchanged verdicts only append one.
func (s *Service) apply(ctx context.Context, tenantID, phone string, class compliance.Classification) (compliance.Transition, error) {
	var tr compliance.Transition
	for attempt := 1; ; attempt++ {
		rec, err := s.store.GetConsent(ctx, tenantID, phone)
		if err != nil {
			return compliance.Transition{}, err
		}

		tr = compliance.Apply(rec.State, class)
		if !tr.Changed {
			break
		}

		next := rec
		next.TenantID = tenantID
		next.Phone = phone
		next.State = tr.To
		err = s.store.ApplyTransition(ctx, next, rec.Version, s.event(tenantID, phone, class, tr))
		if err == nil {
			break
		}
		if !errors.Is(err, repo.ErrVersionConflict) {
			return compliance.Transition{}, fmt.Errorf("apply consent: %w", err)
		}
		if attempt >= s.maxAttempts {
			return compliance.Transition{}, fmt.Errorf("apply consent after %d attempts: %w", attempt, err)
		}
		s.log.Debug("consent version conflict, retrying", "tenant", tenantID, "phone", phone, "attempt", attempt)
	}

	if !tr.Changed && tr.Audit {
		if err := s.store.AppendConsentEvent(ctx, s.event(tenantID, phone, class, tr)); err != nil {
			return compliance.Transition{}, fmt.Errorf("record consent event: %w", err)
		}
	}
	if s.obs != nil {
		s.obs.ObserveTransition(tr)
	}
	return tr, nil
}

func (s *Service) event(tenantID, phone string, class compliance.Classification, tr compliance.Transition) model.ConsentEvent {
	return model.ConsentEvent{
		ID:             uuid.NewString(),
		TenantID:       tenantID,
		Phone:          phone,
		Classification: class,
		FromState:      tr.From,
		ToState:        tr.To,
		Changed:        tr.Changed,
		CreatedAt:      s.now().UTC(),
	}
}

// IsOptedOut reports whether phone (already canonical) is opted out in the tenant.
func (s *Service) IsOptedOut(ctx context.Context, tenantID, phone string) (bool, error) {
	rec, err := s.store.GetConsent(ctx, tenantID, phone)
	if err != nil {
		return false, err
	}
	return rec.State == compliance.OptedOut, nil
}
