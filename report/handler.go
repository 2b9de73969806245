package report

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ausbildung/nachweis/internal/platform/httpx"
	"github.com/ausbildung/nachweis/internal/records"
)

// Renderer is the subset of Client used by the handler.
type Renderer interface {
	Ping(ctx context.Context) error
	RenderHTML(ctx context.Context, html string) ([]byte, error)
}

// Handler manages report endpoints.
type Handler struct {
	client Renderer
	logger *slog.Logger
	now    func() time.Time
}

// NewHandler creates a report handler.
func NewHandler(client Renderer, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{client: client, logger: logger, now: time.Now}
}

// MountRoutes registers report routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/ping", h.ping)
	r.Get("/blank", h.blank)
}

func (h *Handler) ping(w http.ResponseWriter, r *http.Request) {
	if err := h.client.Ping(r.Context()); err != nil {
		h.logger.Warn("gotenberg ping failed", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// blank renders an empty form for the current working week.
func (h *Handler) blank(w http.ResponseWriter, r *http.Request) {
	today := h.now().UTC()
	offset := (int(today.Weekday()) + 6) % 7
	monday := today.AddDate(0, 0, -offset)
	friday := monday.AddDate(0, 0, 4)
	rec := records.Record{
		PeriodStart: records.NewDate(monday.Year(), monday.Month(), monday.Day()),
		PeriodEnd:   records.NewDate(friday.Year(), friday.Month(), friday.Day()),
		Status:      records.StatusInBearbeitung,
	}
	html, err := records.RenderHTML(records.DefaultTemplates, rec)
	if err != nil {
		h.logger.Error("render blank form", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	pdf, err := h.client.RenderHTML(r.Context(), html)
	if err != nil {
		h.logger.Error("render blank pdf", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	_ = httpx.Attachment(w, "application/pdf", "Nachweis_Vorlage.pdf", pdf)
}
