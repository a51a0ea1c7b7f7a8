package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/LeventeLantos/outreach-compliance/internal/compliance"
	"github.com/LeventeLantos/outreach-compliance/internal/consent"
	"github.com/LeventeLantos/outreach-compliance/internal/repo"
	"github.com/LeventeLantos/outreach-compliance/internal/scheduler"
)

type InboundHandler interface {
	HandleInbound(ctx context.Context, tenantID, rawPhone, body string) (consent.InboundResult, error)
}

type Handler struct {
	sched   *scheduler.Scheduler
	repo    repo.MessageRepository
	inbound InboundHandler
	policy  compliance.Policy
	metrics http.Handler

	validate *validator.Validate
	log      *slog.Logger
}

func NewHandler(s *scheduler.Scheduler, r repo.MessageRepository, in InboundHandler, policy compliance.Policy) *Handler {
	return &Handler{
		sched:    s,
		repo:     r,
		inbound:  in,
		policy:   policy,
		validate: validator.New(),
		log:      slog.Default(),
	}
}

// WithMetrics mounts a Prometheus handler at /v1/metrics.
func (h *Handler) WithMetrics(m http.Handler) *Handler {
	h.metrics = m
	return h
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) SchedulerStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"running": h.sched.IsRunning()})
}

func (h *Handler) SchedulerStart(w http.ResponseWriter, r *http.Request) {
	h.sched.Start()
	writeJSON(w, http.StatusOK, map[string]any{"running": h.sched.IsRunning()})
}

func (h *Handler) SchedulerStop(w http.ResponseWriter, r *http.Request) {
	h.sched.Stop()
	writeJSON(w, http.StatusOK, map[string]any{"running": h.sched.IsRunning()})
}

func (h *Handler) ListSentMessages(w http.ResponseWriter, r *http.Request) {
	limit := parseInt(r.URL.Query().Get("limit"), 50)
	offset := parseInt(r.URL.Query().Get("offset"), 0)

	items, err := h.repo.ListSent(r.Context(), limit, offset)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

type inboundRequest struct {
	TenantID string `json:"tenantId" validate:"required"`
	From     string `json:"from" validate:"required"`
	Body     string `json:"body"`
}

func (h *Handler) Inbound(w http.ResponseWriter, r *http.Request) {
	var req inboundRequest
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.inbound.HandleInbound(r.Context(), req.TenantID, req.From, req.Body)
	if errors.Is(err, compliance.ErrInvalidPhone) {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if err != nil {
		h.log.Error("inbound handling failed", "tenant", req.TenantID, "error", err)
		writeError(w, http.StatusInternalServerError, "inbound handling failed")
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// evaluateRequest fields are all optional: missing or empty times fail
// closed in Policy.Evaluate rather than being rejected here.
type evaluateRequest struct {
	LocalTime    string  `json:"localTime"`
	Jurisdiction *string `json:"jurisdiction"`
	LastFooterAt *string `json:"lastFooterAt"`
	Now          string  `json:"now"`
}

func (h *Handler) EvaluateOutbound(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if !h.decode(w, r, &req) {
		return
	}

	out := compliance.OutboundRequest{LocalTime: req.LocalTime, Now: req.Now}
	if req.Jurisdiction != nil {
		out.Jurisdiction = *req.Jurisdiction
	}
	if req.LastFooterAt != nil {
		out.LastFooterAt = *req.LastFooterAt
	}

	writeJSON(w, http.StatusOK, h.policy.Evaluate(out))
}

type renderRequest struct {
	Template  *string           `json:"template"`
	Variables map[string]string `json:"variables"`
	MaxLength int               `json:"maxLength" validate:"gte=0"`
}

func (h *Handler) RenderTemplate(w http.ResponseWriter, r *http.Request) {
	var req renderRequest
	if !h.decode(w, r, &req) {
		return
	}

	tc := h.policy.Template
	if req.MaxLength > 0 {
		tc.MaxLength = req.MaxLength
	}
	var tmpl string
	if req.Template != nil {
		tmpl = *req.Template
	}

	text, err := tc.Render(tmpl, req.Variables)
	var tl *compliance.TemplateTooLongError
	if errors.As(err, &tl) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":  err.Error(),
			"length": tl.Length,
			"max":    tl.Max,
		})
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"text": text})
}

func (h *Handler) Metrics(w http.ResponseWriter, r *http.Request) {
	if h.metrics == nil {
		http.NotFound(w, r)
		return
	}
	h.metrics.ServeHTTP(w, r)
}

// decode reads a JSON body into v and validates it, writing the 400 itself.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return false
	}
	if err := h.validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fe.Field()+" "+fe.Tag())
			}
			writeError(w, http.StatusBadRequest, "validation failed: "+strings.Join(fields, ", "))
			return false
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

func parseInt(raw string, def int) int {
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
