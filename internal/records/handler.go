package records

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ausbildung/nachweis/internal/platform/httpx"
	"github.com/ausbildung/nachweis/internal/shared"
)

// IdempotencyHeader carries the client supplied key of a mutating batch request.
const IdempotencyHeader = "Idempotency-Key"

const idempotencyModule = "records"

// IdempotencyGuard records processed request keys.
type IdempotencyGuard interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key, module string) error
}

// Handler serves the records API.
type Handler struct {
	logger      *slog.Logger
	service     *Service
	idempotency IdempotencyGuard
}

// NewHandler builds Handler instance. idem may be nil to disable replay protection.
func NewHandler(logger *slog.Logger, service *Service, idem IdempotencyGuard) *Handler {
	return &Handler{logger: logger, service: service, idempotency: idem}
}

// MountRoutes registers record routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/exists/by-number/{number}", h.existsByNumber)
	r.Get("/next-number", h.nextNumber)
	r.Put("/batch-status", h.batchStatus)
	r.Delete("/batch-delete", h.batchDelete)
	r.Post("/batch-export", h.batchExport)

	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.get)
		r.Put("/", h.update)
		r.Delete("/", h.delete)
		r.Put("/status", h.setStatus)
		r.Get("/document", h.document)
	})
}

type batchSummary struct {
	FailedCount  int               `json:"failedCount"`
	FailedIDs    []uuid.UUID       `json:"failedIds"`
	SucceededIDs []uuid.UUID       `json:"succeededIds"`
	Detail       map[string]string `json:"detail"`
	Partial      bool              `json:"partial"`
	Message      string            `json:"message"`
}

// BatchStatusResponse is returned by PUT /records/batch-status.
type BatchStatusResponse struct {
	UpdatedCount int `json:"updatedCount"`
	batchSummary
}

// BatchDeleteResponse is returned by DELETE /records/batch-delete.
type BatchDeleteResponse struct {
	DeletedCount int `json:"deletedCount"`
	batchSummary
}

func summarize(res BatchResult) batchSummary {
	return batchSummary{
		FailedCount:  res.FailedCount(),
		FailedIDs:    res.FailedIDs,
		SucceededIDs: res.SucceededIDs,
		Detail:       res.DetailStrings(),
		Partial:      res.Partial(),
		Message:      res.Message(),
	}
}

func (h *Handler) principal(w http.ResponseWriter, r *http.Request) (shared.Principal, bool) {
	p, ok := shared.PrincipalFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return shared.Principal{}, false
	}
	return p, true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if httpx.StatusOf(err) >= http.StatusInternalServerError {
		h.logger.Error("records request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func pathID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, shared.Validationf("invalid id")
	}
	return id, nil
}

func optionalUUID(r *http.Request, name string) (*uuid.UUID, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, shared.Validationf("%s must be a uuid", name)
	}
	return &id, nil
}

func parseListFilter(r *http.Request) (ListFilter, error) {
	var filter ListFilter
	var err error
	if filter.OwnerID, err = optionalUUID(r, "ownerId"); err != nil {
		return filter, err
	}
	if filter.TrainerID, err = optionalUUID(r, "trainerId"); err != nil {
		return filter, err
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		status, err := ParseStatus(raw)
		if err != nil {
			return filter, err
		}
		filter.Status = &status
	}
	if filter.Page, err = httpx.QueryInt(r, "page", 0); err != nil {
		return filter, err
	}
	if filter.Size, err = httpx.QueryInt(r, "size", shared.DefaultPageSize); err != nil {
		return filter, err
	}
	filter.SortBy = r.URL.Query().Get("sortBy")
	filter.SortDir = r.URL.Query().Get("sortDir")
	return filter, nil
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	filter, err := parseListFilter(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	page, err := h.service.List(r.Context(), p, filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, page)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	var req CreateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	rec, err := h.service.Create(r.Context(), p, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, rec)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	rec, err := h.service.Get(r.Context(), p, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rec)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req UpdateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	rec, err := h.service.Update(r.Context(), p, id, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rec)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.service.Delete(r.Context(), p, id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) setStatus(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req StatusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := validateStruct(req); err != nil {
		h.fail(w, r, err)
		return
	}
	rec, err := h.service.SetStatus(r.Context(), p, id, req.Status, req.Comment)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rec)
}

func (h *Handler) existsByNumber(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	number, err := strconv.Atoi(chi.URLParam(r, "number"))
	if err != nil {
		h.fail(w, r, ErrInvalidNumber)
		return
	}
	exists, err := h.service.ExistsByNumber(r.Context(), p, number)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, ExistsResponse{Exists: exists})
}

func (h *Handler) nextNumber(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	n, err := h.service.NextNumber(r.Context(), p)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, NextNumberResponse{Number: n})
}

// claimIdempotencyKey returns a release func that forgets the key when the call fails.
func (h *Handler) claimIdempotencyKey(r *http.Request) (func(), error) {
	key := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
	if key == "" || h.idempotency == nil {
		return func() {}, nil
	}
	if err := h.idempotency.CheckAndInsert(r.Context(), key, idempotencyModule); err != nil {
		return nil, err
	}
	return func() {
		if err := h.idempotency.Delete(context.WithoutCancel(r.Context()), key, idempotencyModule); err != nil {
			h.logger.Warn("release idempotency key", slog.Any("error", err))
		}
	}, nil
}

func (h *Handler) batchStatus(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	var req BatchStatusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	release, err := h.claimIdempotencyKey(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.service.BatchSetStatus(r.Context(), p, req.IDs, req.Status, req.Comment)
	if err != nil {
		release()
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, BatchStatusResponse{UpdatedCount: res.SucceededCount(), batchSummary: summarize(res)})
}

func (h *Handler) batchDelete(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	var req BatchRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	release, err := h.claimIdempotencyKey(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.service.BatchDelete(r.Context(), p, req.IDs)
	if err != nil {
		release()
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, BatchDeleteResponse{DeletedCount: res.SucceededCount(), batchSummary: summarize(res)})
}

func (h *Handler) batchExport(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	var req BatchRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	archive, err := h.service.BatchExport(r.Context(), p, req.IDs)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	_ = httpx.Attachment(w, "application/zip", "nachweise.zip", archive)
}

func (h *Handler) document(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	rec, pdf, err := h.service.Document(r.Context(), p, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	_ = httpx.Attachment(w, "application/pdf", ExportFileName(*rec), pdf)
}
