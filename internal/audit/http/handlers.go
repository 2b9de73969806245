package audithttp

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ausbildung/nachweis/internal/audit"
	"github.com/ausbildung/nachweis/internal/platform/httpx"
	"github.com/ausbildung/nachweis/internal/shared"
)

// TrailService mendefinisikan kontrak pembacaan jejak audit.
type TrailService interface {
	RecordAudits(ctx context.Context, page, size int) (audit.Page, error)
	RecordAuditsFor(ctx context.Context, recordID uuid.UUID) (audit.Page, error)
	RoleAudits(ctx context.Context, page, size int) (audit.Page, error)
	Recent(ctx context.Context, n int) ([]audit.Entry, error)
	Export(ctx context.Context) ([]audit.Entry, error)
}

// Handler menangani permintaan audit.
type Handler struct {
	logger  *slog.Logger
	service TrailService
	now     func() time.Time
}

// NewHandler membuat handler audit baru.
func NewHandler(logger *slog.Logger, service TrailService) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, now: time.Now}
}

// authorize hanya meloloskan ADMIN dan AUSBILDER.
func (h *Handler) authorize(w http.ResponseWriter, r *http.Request) bool {
	p, ok := shared.PrincipalFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return false
	}
	if !p.CanReview() {
		httpx.RespondError(w, shared.ErrForbidden)
		return false
	}
	return true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if httpx.StatusOf(err) >= http.StatusInternalServerError {
		h.logger.Error("audit request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func pageParams(r *http.Request) (int, int, error) {
	page, err := httpx.QueryInt(r, "page", 0)
	if err != nil {
		return 0, 0, err
	}
	size, err := httpx.QueryInt(r, "size", shared.DefaultPageSize)
	if err != nil {
		return 0, 0, err
	}
	return page, size, nil
}

func (h *Handler) handleRecordAudits(w http.ResponseWriter, r *http.Request) {
	if !h.authorize(w, r) {
		return
	}
	page, size, err := pageParams(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	result, err := h.service.RecordAudits(r.Context(), page, size)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) handleRoleAudits(w http.ResponseWriter, r *http.Request) {
	if !h.authorize(w, r) {
		return
	}
	page, size, err := pageParams(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	result, err := h.service.RoleAudits(r.Context(), page, size)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) handleRecordAuditsFor(w http.ResponseWriter, r *http.Request) {
	if !h.authorize(w, r) {
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, shared.Validationf("invalid id"))
		return
	}
	result, err := h.service.RecordAuditsFor(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) handleRecent(w http.ResponseWriter, r *http.Request) {
	if !h.authorize(w, r) {
		return
	}
	limit, err := httpx.QueryInt(r, "limit", 3)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	entries, err := h.service.Recent(r.Context(), limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entries)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	if !h.authorize(w, r) {
		return
	}
	entries, err := h.service.Export(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	payload, err := audit.WriteCSV(entries)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	filename := "audit-" + h.now().UTC().Format("20060102") + ".csv"
	_ = httpx.Attachment(w, "text/csv; charset=utf-8", filename, payload)
}
