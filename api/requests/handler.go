// Package requests exposes the intake API: request creation, offer
// submission and advisor administration.
package requests

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/lmoreno87/advmatch/core/advisors"
	"github.com/lmoreno87/advmatch/core/model"
	"github.com/lmoreno87/advmatch/core/offers"
	"github.com/lmoreno87/advmatch/core/waves"
	"github.com/lmoreno87/advmatch/infra/logger"
)

const maxBodySize = 1 << 20

// Handler provides the HTTP surface over the stores and the scheduler.
type Handler struct {
	store     *offers.Store
	directory *advisors.MemoryDirectory
	scheduler *waves.Scheduler
	log       logger.Logger

	auditLogs http.Handler
	metrics   http.Handler
}

// NewHandler creates a handler. A nil logger disables request logging.
func NewHandler(store *offers.Store, directory *advisors.MemoryDirectory, scheduler *waves.Scheduler, log logger.Logger) *Handler {
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Handler{store: store, directory: directory, scheduler: scheduler, log: log}
}

// SetAuditLogs installs the audit query endpoint at GET /api/audit/logs.
func (h *Handler) SetAuditLogs(handler http.Handler) { h.auditLogs = handler }

// SetMetrics installs the metrics endpoint at GET /metrics.
func (h *Handler) SetMetrics(handler http.Handler) { h.metrics = handler }

// Router mounts all routes.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Route("/api", func(r chi.Router) {
		r.Post("/requests", h.createRequest)
		r.Get("/requests/{id}", h.getRequest)
		r.Post("/requests/{id}/offers", h.submitOffer)
		r.Put("/advisors/{id}", h.upsertAdvisor)
		r.Get("/advisors", h.listAdvisors)
		if h.auditLogs != nil {
			r.Method(http.MethodGet, "/audit/logs", h.auditLogs)
		}
	})
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics)
	}
	return r
}

type createRequestBody struct {
	City         string           `json:"city"`
	Region       string           `json:"region"`
	LineItems    []model.LineItem `json:"line_items"`
	MinOffers    int              `json:"min_offers"`
	TierTimeouts map[int]int      `json:"tier_timeout_minutes"`
}

func (h *Handler) createRequest(w http.ResponseWriter, r *http.Request) {
	var body createRequestBody
	if !h.decode(w, r, &body) {
		return
	}
	req := model.Request{
		Location:  model.NewLocation(body.City, body.Region),
		LineItems: body.LineItems,
		MinOffers: body.MinOffers,
	}
	req.SetTierTimeoutMinutes(body.TierTimeouts)

	created, err := h.store.CreateRequest(req)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	// The wave loop outlives this HTTP exchange; detach it from the
	// request context so it is not canceled when ServeHTTP returns.
	if err := h.scheduler.Start(context.WithoutCancel(r.Context()), created.ID); err != nil {
		// The request exists but cannot run; surface the failure.
		h.log.Errorf("start request %s: %v", created.ID, err)
		h.respondDomainError(w, err)
		return
	}
	h.log.Infof("request %s created for %s", created.ID, created.Location.Key())
	h.respondJSON(w, http.StatusCreated, created)
}

type requestView struct {
	model.Request
	Offers      []model.Offer      `json:"offers"`
	Allocations []model.Allocation `json:"allocations"`
}

func (h *Handler) getRequest(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	req, err := h.store.Request(id)
	if err != nil {
		h.respondError(w, http.StatusNotFound, "request not found")
		return
	}
	h.respondJSON(w, http.StatusOK, requestView{
		Request:     req,
		Offers:      h.store.Offers(id),
		Allocations: h.store.Allocations(id),
	})
}

type submitOfferBody struct {
	AdvisorID    string                 `json:"advisor_id"`
	Entries      []model.OfferLineEntry `json:"entries"`
	DeliveryDays int                    `json:"delivery_days"`
	Notes        string                 `json:"notes"`
}

func (h *Handler) submitOffer(w http.ResponseWriter, r *http.Request) {
	var body submitOfferBody
	if !h.decode(w, r, &body) {
		return
	}
	offer, err := h.store.SubmitOffer(model.Offer{
		RequestID:    chi.URLParam(r, "id"),
		AdvisorID:    body.AdvisorID,
		Entries:      body.Entries,
		DeliveryDays: body.DeliveryDays,
		Notes:        body.Notes,
	})
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, offer)
}

type advisorBody struct {
	State          string  `json:"state"`
	City           string  `json:"city"`
	Region         string  `json:"region"`
	Trust          float64 `json:"trust"`
	ActivityPct    float64 `json:"activity_pct"`
	PerformancePct float64 `json:"performance_pct"`
}

func (h *Handler) upsertAdvisor(w http.ResponseWriter, r *http.Request) {
	var body advisorBody
	if !h.decode(w, r, &body) {
		return
	}
	state, err := model.ParseAdvisorState(body.State)
	if err != nil {
		h.respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	adv := model.Advisor{
		ID:             chi.URLParam(r, "id"),
		State:          state,
		Location:       model.NewLocation(body.City, body.Region),
		Trust:          body.Trust,
		ActivityPct:    body.ActivityPct,
		PerformancePct: body.PerformancePct,
	}
	h.directory.Upsert(adv)
	h.respondJSON(w, http.StatusOK, adv)
}

func (h *Handler) listAdvisors(w http.ResponseWriter, _ *http.Request) {
	h.respondJSON(w, http.StatusOK, h.directory.List())
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			h.respondError(w, http.StatusBadRequest, "request body is required")
		} else {
			h.respondError(w, http.StatusBadRequest, "invalid JSON in request body")
		}
		return false
	}
	return true
}

// respondDomainError maps domain errors onto status codes: validation
// failures are 422, lifecycle conflicts are 409.
func (h *Handler) respondDomainError(w http.ResponseWriter, err error) {
	switch {
	case model.IsValidation(err):
		h.respondError(w, http.StatusUnprocessableEntity, err.Error())
	case model.IsConflict(err):
		h.respondError(w, http.StatusConflict, err.Error())
	default:
		h.respondError(w, http.StatusBadRequest, err.Error())
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) respondError(w http.ResponseWriter, status int, msg string) {
	h.respondJSON(w, status, errorResponse{Error: msg})
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Errorf("encode response: %v", err)
	}
}
