// Package handler exposes the identity engine over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"idem/internal/identity/models"
	"idem/internal/identity/reconcile"
	"idem/internal/identity/validation"
	dErrors "idem/pkg/domain-errors"
	"idem/pkg/platform/httputil"
)

// Service defines the ingestion and validation operations the handler exposes.
type Service interface {
	ParsePayload(raw string) models.AttributeSet
	ValidatePayload(raw string) error
	Ingest(ctx context.Context, raw string) (*models.IdentityRecord, error)
	Get(ctx context.Context, id string) (*models.IdentityRecord, error)
	List(ctx context.Context) ([]models.IdentityRecord, error)
	Delete(ctx context.Context, id string) error
	Validate(ctx context.Context, id string) (*models.ValidationResult, error)
	Summarize(ctx context.Context, id string) (*validation.Summary, error)
	ValidateBatch(ctx context.Context, ids []string) ([]models.ValidationResult, *validation.BatchSummary, error)
	ImportCredential(ctx context.Context, url string) (*models.Credential, error)
}

// Reconciler defines the merge and presentation operations.
type Reconciler interface {
	Reconcile(ctx context.Context, identityID string) (*reconcile.Result, error)
	BuildPresentation(ctx context.Context, identityID string, attributes []string) (*models.Presentation, error)
}

// Handler handles identity endpoints.
type Handler struct {
	logger     *slog.Logger
	service    Service
	reconciler Reconciler
}

// New creates a new identity Handler.
func New(service Service, reconciler Reconciler, logger *slog.Logger) *Handler {
	return &Handler{
		logger:     logger,
		service:    service,
		reconciler: reconciler,
	}
}

// Register registers the identity routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/payloads/parse", h.handleParsePayload)
	r.Post("/payloads/validate", h.handleValidatePayload)

	r.Route("/identities", func(r chi.Router) {
		r.Post("/", h.handleIngest)
		r.Get("/", h.handleList)
		r.Post("/validate-batch", h.handleValidateBatch)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.handleGet)
			r.Delete("/", h.handleDelete)
			r.Get("/validation", h.handleValidate)
			r.Get("/summary", h.handleSummarize)
			r.Post("/reconcile", h.handleReconcile)
			r.Post("/presentations", h.handlePresentation)
		})
	})

	r.Post("/credentials/import", h.handleImportCredential)
}

type payloadRequest struct {
	Payload string `json:"payload"`
}

type validatePayloadResponse struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

func (h *Handler) handleParsePayload(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.Decode[payloadRequest](w, r, h.logger)
	if !ok {
		return
	}
	httputil.WriteJSON(w, http.StatusOK, h.service.ParsePayload(req.Payload))
}

func (h *Handler) handleValidatePayload(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.Decode[payloadRequest](w, r, h.logger)
	if !ok {
		return
	}

	resp := validatePayloadResponse{Valid: true}
	if err := h.service.ValidatePayload(req.Payload); err != nil {
		resp.Valid = false
		resp.Error = err.Error()
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleIngest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.Decode[payloadRequest](w, r, h.logger)
	if !ok {
		return
	}

	record, err := h.service.Ingest(ctx, req.Payload)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInternal) {
			h.logger.ErrorContext(ctx, "ingest failed", "error", err.Error())
		}
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, record)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	records, err := h.service.List(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list identities failed", "error", err.Error())
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, records)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	record, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, record)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleValidate(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Validate(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleSummarize(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.Summarize(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, summary)
}

type validateBatchRequest struct {
	IDs []string `json:"ids"`
}

type validateBatchResponse struct {
	Results []models.ValidationResult `json:"results"`
	Summary *validation.BatchSummary  `json:"summary"`
}

func (h *Handler) handleValidateBatch(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.Decode[validateBatchRequest](w, r, h.logger)
	if !ok {
		return
	}

	results, summary, err := h.service.ValidateBatch(r.Context(), req.IDs)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, validateBatchResponse{Results: results, Summary: summary})
}

// reconcileResponse is the structured outcome callers always receive from a
// reconciliation, success or not.
type reconcileResponse struct {
	Success  bool                   `json:"success"`
	Identity *models.IdentityRecord `json:"identity,omitempty"`
	Error    string                 `json:"error,omitempty"`
	Warnings []string               `json:"warnings,omitempty"`
}

func (h *Handler) handleReconcile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	result, err := h.reconciler.Reconcile(ctx, id)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			httputil.WriteJSON(w, http.StatusNotFound, reconcileResponse{Error: err.Error()})
			return
		}
		h.logger.ErrorContext(ctx, "reconcile failed", "identity_id", id, "error", err.Error())
		httputil.WriteJSON(w, http.StatusInternalServerError, reconcileResponse{Error: "reconciliation failed"})
		return
	}

	httputil.WriteJSON(w, http.StatusOK, reconcileResponse{
		Success:  true,
		Identity: result.Identity,
		Warnings: result.Warnings,
	})
}

type presentationRequest struct {
	Attributes []string `json:"attributes"`
}

func (h *Handler) handlePresentation(w http.ResponseWriter, r *http.Request) {
	// An empty body means a full presentation.
	var req presentationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid JSON body"))
		return
	}

	presentation, err := h.reconciler.BuildPresentation(r.Context(), chi.URLParam(r, "id"), req.Attributes)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, presentation)
}

type importCredentialRequest struct {
	URL string `json:"url"`
}

func (h *Handler) handleImportCredential(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.Decode[importCredentialRequest](w, r, h.logger)
	if !ok {
		return
	}
	if req.URL == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "url is required"))
		return
	}

	cred, err := h.service.ImportCredential(r.Context(), req.URL)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, cred)
}
