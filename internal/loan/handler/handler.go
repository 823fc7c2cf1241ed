// Package handler exposes loan applications over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"kilimokredo/internal/loan/models"
	"kilimokredo/internal/loan/service"
	dErrors "kilimokredo/pkg/domain-errors"
	"kilimokredo/pkg/platform/httputil"
	"kilimokredo/pkg/requestcontext"
)

// Service defines the loan operations the HTTP layer needs.
type Service interface {
	Submit(ctx context.Context, req service.SubmitRequest) (*models.LoanApplication, error)
	Get(ctx context.Context, id string) (*models.LoanApplication, error)
	ListByFarmer(ctx context.Context, farmerID string, limit int) ([]*models.LoanApplication, error)
	ListAll(ctx context.Context, opts ...service.ListOption) ([]*models.LoanApplication, error)
	UpdateStatus(ctx context.Context, id string, status models.LoanStatus) (*models.LoanApplication, error)
	Stats(ctx context.Context) (*models.Stats, error)
	SimulateByID(ctx context.Context, id string, ov service.Overrides) (*models.ModelPredictions, error)
}

// Handler wires loan endpoints to the service.
type Handler struct {
	service     Service
	logger      *slog.Logger
	placeholder bool
	scoring     []func(http.Handler) http.Handler
}

// Option configures a Handler.
type Option func(*Handler)

// WithPlaceholderIdentity lets the submit body's farmerId stand in for a
// missing principal. Development only.
func WithPlaceholderIdentity(enabled bool) Option {
	return func(h *Handler) {
		h.placeholder = enabled
	}
}

// WithScoringMiddleware wraps the routes that call the scoring endpoint.
func WithScoringMiddleware(mw ...func(http.Handler) http.Handler) Option {
	return func(h *Handler) {
		h.scoring = append(h.scoring, mw...)
	}
}

// New constructs a loan handler.
func New(svc Service, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{service: svc, logger: logger}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts loan endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/applications", func(r chi.Router) {
		r.With(h.scoring...).Post("/", h.HandleSubmit)
		r.Get("/", h.HandleListAll)
		r.Get("/stats", h.HandleStats)
		r.Get("/{id}", h.HandleGet)
		r.Patch("/{id}/status", h.HandleUpdateStatus)
		r.With(h.scoring...).Post("/{id}/simulate", h.HandleSimulate)
	})
	r.Get("/farmers/me/applications", h.HandleListMine)
	r.Get("/farmers/{farmerId}/applications", h.HandleListByFarmer)
}

// HandleSubmit handles POST /applications.
func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	req, ok := httputil.DecodeAndPrepare[SubmitRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	farmerID := requestcontext.FarmerID(ctx)
	if farmerID == "" && h.placeholder {
		farmerID = req.FarmerID
	}

	app, err := h.service.Submit(ctx, service.SubmitRequest{
		FarmerID:            farmerID,
		Raw:                 req.ApplicationData,
		Profile:             req.FarmProfile,
		LoanAmountRequested: req.LoanAmountRequested,
	})
	if err != nil {
		h.logFailure(ctx, "loan submission failed", err, "farmer_id", farmerID)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "loan application submitted",
		"request_id", requestID,
		"application_id", app.ID,
		"farmer_id", farmerID,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusCreated, app)
}

// HandleGet handles GET /applications/{id}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	app, err := h.service.Get(ctx, id)
	if err != nil {
		h.logFailure(ctx, "get application failed", err, "application_id", id)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, app)
}

// HandleListAll handles GET /applications for officers.
func (h *Handler) HandleListAll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var opts []service.ListOption
	if raw := r.URL.Query().Get("status"); raw != "" {
		status, ok := models.ParseLoanStatus(raw)
		if !ok {
			httputil.WriteError(w, dErrors.Newf(dErrors.CodeValidation, "invalid status %q", raw))
			return
		}
		opts = append(opts, service.WithStatus(status))
	}

	apps, err := h.service.ListAll(ctx, opts...)
	if err != nil {
		h.logFailure(ctx, "list applications failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, newListResponse(apps))
}

// HandleListMine handles GET /farmers/me/applications.
func (h *Handler) HandleListMine(w http.ResponseWriter, r *http.Request) {
	h.listByFarmer(w, r, requestcontext.FarmerID(r.Context()))
}

// HandleListByFarmer handles GET /farmers/{farmerId}/applications.
func (h *Handler) HandleListByFarmer(w http.ResponseWriter, r *http.Request) {
	h.listByFarmer(w, r, chi.URLParam(r, "farmerId"))
}

func (h *Handler) listByFarmer(w http.ResponseWriter, r *http.Request, farmerID string) {
	ctx := r.Context()

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "limit must be a positive integer"))
			return
		}
		limit = n
	}

	apps, err := h.service.ListByFarmer(ctx, farmerID, limit)
	if err != nil {
		h.logFailure(ctx, "list farmer applications failed", err, "farmer_id", farmerID)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, newListResponse(apps))
}

// HandleUpdateStatus handles PATCH /applications/{id}/status.
func (h *Handler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	id := chi.URLParam(r, "id")

	req, ok := httputil.DecodeAndPrepare[UpdateStatusRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	app, err := h.service.UpdateStatus(ctx, id, req.ParsedStatus())
	if err != nil {
		h.logFailure(ctx, "status update failed", err,
			"application_id", id,
			"status", req.Status,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, app)
}

// HandleStats handles GET /applications/stats.
func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stats, err := h.service.Stats(ctx)
	if err != nil {
		h.logFailure(ctx, "stats failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, stats)
}

// HandleSimulate handles POST /applications/{id}/simulate.
func (h *Handler) HandleSimulate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	id := chi.URLParam(r, "id")

	req, ok := httputil.DecodeAndPrepare[SimulateRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	predictions, err := h.service.SimulateByID(ctx, id, req.Overrides)
	if err != nil {
		h.logFailure(ctx, "simulation failed", err, "application_id", id)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, SimulateResponse{Predictions: predictions})
}

// logFailure logs client errors at warn and everything else at error.
func (h *Handler) logFailure(ctx context.Context, msg string, err error, attrs ...any) {
	attrs = append([]any{"request_id", requestcontext.RequestID(ctx), "error", err}, attrs...)
	if httputil.StatusFor(dErrors.CodeOf(err)) < http.StatusInternalServerError {
		h.logger.WarnContext(ctx, msg, attrs...)
		return
	}
	h.logger.ErrorContext(ctx, msg, attrs...)
}
