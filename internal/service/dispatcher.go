package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/LeventeLantos/outreach-compliance/internal/cache"
	"github.com/LeventeLantos/outreach-compliance/internal/compliance"
	"github.com/LeventeLantos/outreach-compliance/internal/metrics"
	"github.com/LeventeLantos/outreach-compliance/internal/model"
	"github.com/LeventeLantos/outreach-compliance/internal/repo"
)

const defaultRetryDelay = 5 * time.Minute

type SendClient interface {
	Send(ctx context.Context, phoneNumber, message string) (remoteMessageID string, err error)
}

type ConsentChecker interface {
	IsOptedOut(ctx context.Context, tenantID, phone string) (bool, error)
}

type Recorder interface {
	ObserveOutbound(outcome string)
	ObserveFooter()
}

// Dispatcher pushes claimed messages through the compliance gate and the
// carrier client.
type Dispatcher struct {
	client   SendClient
	policy   compliance.Policy
	messages repo.MessageRepository
	consent  ConsentChecker
	footers  cache.FooterCache

	sentCache  cache.MessageCache
	rec        Recorder
	log        *slog.Logger
	now        func() time.Time
	batchSize  int
	retryDelay time.Duration
}

func NewDispatcher(
	client SendClient,
	policy compliance.Policy,
	messages repo.MessageRepository,
	consent ConsentChecker,
	footers cache.FooterCache,
) *Dispatcher {
	return &Dispatcher{
		client:     client,
		policy:     policy,
		messages:   messages,
		consent:    consent,
		footers:    footers,
		log:        slog.Default(),
		now:        time.Now,
		batchSize:  1,
		retryDelay: defaultRetryDelay,
	}
}

func (d *Dispatcher) WithSentCache(c cache.MessageCache) *Dispatcher {
	d.sentCache = c
	return d
}

func (d *Dispatcher) WithRecorder(r Recorder) *Dispatcher {
	d.rec = r
	return d
}

func (d *Dispatcher) WithLogger(l *slog.Logger) *Dispatcher {
	if l != nil {
		d.log = l
	}
	return d
}

func (d *Dispatcher) WithClock(now func() time.Time) *Dispatcher {
	d.now = now
	return d
}

func (d *Dispatcher) WithBatchSize(n int) *Dispatcher {
	if n > 0 {
		d.batchSize = n
	}
	return d
}

// WithRetryDelay sets how long a message waits after a transient lookup failure.
func (d *Dispatcher) WithRetryDelay(delay time.Duration) *Dispatcher {
	if delay > 0 {
		d.retryDelay = delay
	}
	return d
}

type BatchResult struct {
	Sent       int
	Deferred   int
	Suppressed int
	Failed     int
}

// Tick claims one batch and processes it. It is the scheduler's tick function.
func (d *Dispatcher) Tick(ctx context.Context) {
	msgs, err := d.messages.ClaimPending(ctx, d.batchSize)
	if err != nil {
		d.log.Error("claim pending messages failed", "error", err)
		return
	}
	if len(msgs) == 0 {
		return
	}

	res := d.ProcessBatch(ctx, msgs)
	d.log.Info("dispatch batch processed",
		"claimed", len(msgs),
		"sent", res.Sent,
		"deferred", res.Deferred,
		"suppressed", res.Suppressed,
		"failed", res.Failed,
	)
}

func (d *Dispatcher) ProcessBatch(ctx context.Context, msgs []model.Message) BatchResult {
	var res BatchResult
	for _, m := range msgs {
		outcome := d.process(ctx, m)
		switch outcome {
		case metrics.OutcomeSent:
			res.Sent++
		case metrics.OutcomeDeferred:
			res.Deferred++
		case metrics.OutcomeSuppressed:
			res.Suppressed++
		default:
			res.Failed++
		}
		if d.rec != nil {
			d.rec.ObserveOutbound(outcome)
		}
	}
	return res
}

func (d *Dispatcher) process(ctx context.Context, m model.Message) string {
	phone, err := compliance.CanonicalPhone(m.RecipientPhone)
	if err != nil {
		return d.fail(ctx, m, err.Error())
	}

	now := d.now()

	optedOut, err := d.consent.IsOptedOut(ctx, m.TenantID, phone)
	if err != nil {
		d.log.Warn("consent lookup failed, deferring", "id", m.ID, "error", err)
		return d.deferUntil(ctx, m, now.Add(d.retryDelay))
	}
	if optedOut {
		if err := d.messages.MarkSuppressed(ctx, m.ID, "recipient opted out"); err != nil {
			d.log.Error("mark suppressed failed", "id", m.ID, "error", err)
		}
		return metrics.OutcomeSuppressed
	}

	loc, err := time.LoadLocation(m.Timezone)
	if err != nil {
		return d.fail(ctx, m, fmt.Sprintf("unknown timezone %q", m.Timezone))
	}

	lastFooter, err := d.footers.LastFooterAt(ctx, m.TenantID, phone)
	if err != nil {
		// An empty timestamp makes the footer required.
		d.log.Warn("footer lookup failed, appending footer", "id", m.ID, "error", err)
		lastFooter = ""
	}

	decision := d.policy.Evaluate(compliance.OutboundRequest{
		LocalTime:    compliance.ClockOf(now.In(loc)).String(),
		Jurisdiction: m.Jurisdiction,
		LastFooterAt: lastFooter,
		Now:          now.UTC().Format(time.RFC3339Nano),
	})
	if decision.BlockedByQuietHours {
		return d.deferUntil(ctx, m, d.policy.QuietHours.NextOpening(now.In(loc), m.Jurisdiction))
	}

	text, err := d.policy.Compose(m.Content, m.Variables, decision.FooterRequired)
	if err != nil {
		var tl *compliance.TemplateTooLongError
		if errors.As(err, &tl) {
			return d.fail(ctx, m, fmt.Sprintf("content exceeds %d chars", tl.Max))
		}
		return d.fail(ctx, m, err.Error())
	}

	remoteID, err := d.client.Send(ctx, phone, text)
	if err != nil {
		return d.fail(ctx, m, err.Error())
	}

	if err := d.messages.MarkSent(ctx, m.ID, remoteID); err != nil {
		d.log.Error("mark sent failed", "id", m.ID, "error", err)
	}
	if decision.FooterRequired {
		if d.rec != nil {
			d.rec.ObserveFooter()
		}
		if err := d.footers.MarkFooterSent(ctx, m.TenantID, phone, now); err != nil {
			d.log.Error("record footer failed", "id", m.ID, "phone", phone, "error", err)
		}
	}
	if d.sentCache != nil {
		if err := d.sentCache.StoreSent(ctx, m.ID, remoteID, now); err != nil {
			d.log.Warn("cache sent message failed", "id", m.ID, "error", err)
		}
	}
	return metrics.OutcomeSent
}

func (d *Dispatcher) deferUntil(ctx context.Context, m model.Message, until time.Time) string {
	if err := d.messages.Defer(ctx, m.ID, until); err != nil {
		d.log.Error("defer message failed", "id", m.ID, "error", err)
	}
	return metrics.OutcomeDeferred
}

func (d *Dispatcher) fail(ctx context.Context, m model.Message, reason string) string {
	if err := d.messages.MarkFailed(ctx, m.ID, reason); err != nil {
		d.log.Error("mark failed failed", "id", m.ID, "error", err)
	}
	return metrics.OutcomeFailed
}
