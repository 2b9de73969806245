package records

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/ausbildung/nachweis/internal/revalidation"
	"github.com/ausbildung/nachweis/internal/shared"
)

// Revalidation endpoints owned by this package.
const (
	EndpointList   = "records:list"
	EndpointGet    = "records:get"
	EndpointExists = "records:exists"
)

const defaultConcurrency = 8

// StatusChange describes one transition for the notification side channel.
type StatusChange struct {
	RecordID uuid.UUID
	OwnerID  uuid.UUID
	Number   int
	From     Status
	To       Status
	Comment  *string
	Actor    string
}

// Notifier receives status transitions. Failures never fail the transition.
type Notifier interface {
	StatusChanged(ctx context.Context, change StatusChange) error
}

// PDFConverter turns rendered HTML into a PDF document.
type PDFConverter interface {
	RenderHTML(ctx context.Context, html string) ([]byte, error)
}

// BatchMetrics observes batch item outcomes.
type BatchMetrics interface {
	ObserveBatch(operation string, succeeded, failed int)
}

// ServiceConfig carries the optional collaborators of Service.
type ServiceConfig struct {
	Templates   Templates
	Cache       *revalidation.Cache
	Notifier    Notifier
	Converter   PDFConverter
	Metrics     BatchMetrics
	Logger      *slog.Logger
	Concurrency int
}

// Service orchestrates record lifecycle and batch administration.
type Service struct {
	repo        Repository
	templates   Templates
	cache       *revalidation.Cache
	notifier    Notifier
	converter   PDFConverter
	metrics     BatchMetrics
	logger      *slog.Logger
	concurrency int
	now         func() time.Time
}

// NewService constructs the records service.
func NewService(repo Repository, cfg ServiceConfig) *Service {
	if cfg.Templates == nil {
		cfg.Templates = DefaultTemplates
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	return &Service{
		repo:        repo,
		templates:   cfg.Templates,
		cache:       cfg.Cache,
		notifier:    cfg.Notifier,
		converter:   cfg.Converter,
		metrics:     cfg.Metrics,
		logger:      cfg.Logger,
		concurrency: cfg.Concurrency,
		now:         time.Now,
	}
}

// Invalidation is the set of cache entries a mutation makes stale.
type Invalidation struct {
	Endpoints []string
	Keys      []revalidation.Key
}

func getKey(id uuid.UUID) revalidation.Key {
	return revalidation.NewKey(EndpointGet, "id", id.String())
}

func existsKey(ownerID uuid.UUID, number int) revalidation.Key {
	return revalidation.NewKey(EndpointExists, "owner", ownerID.String(), "number", strconv.Itoa(number))
}

// invalidationFor declares what a change to rec invalidates. Extra numbers
// cover the previous number of a renumbered record.
func invalidationFor(rec Record, extraNumbers ...int) Invalidation {
	inv := Invalidation{
		Endpoints: []string{EndpointList},
		Keys:      []revalidation.Key{getKey(rec.ID), existsKey(rec.OwnerID, rec.Number)},
	}
	for _, n := range extraNumbers {
		if n != rec.Number {
			inv.Keys = append(inv.Keys, existsKey(rec.OwnerID, n))
		}
	}
	return inv
}

func (s *Service) revalidate(ctx context.Context, inv Invalidation) {
	if err := s.cache.InvalidateEndpoint(ctx, inv.Endpoints...); err != nil {
		s.logger.Warn("revalidate endpoints", slog.Any("endpoints", inv.Endpoints), slog.Any("error", err))
	}
	if err := s.cache.Invalidate(ctx, inv.Keys...); err != nil {
		s.logger.Warn("revalidate keys", slog.Int("count", len(inv.Keys)), slog.Any("error", err))
	}
}

func (s *Service) notify(ctx context.Context, change StatusChange) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.StatusChanged(ctx, change); err != nil {
		s.logger.Warn("enqueue status notification",
			slog.String("record_id", change.RecordID.String()),
			slog.Any("error", err))
	}
}

// Create validates and persists a new record owned by the principal.
func (s *Service) Create(ctx context.Context, p shared.Principal, req CreateRequest) (*Record, error) {
	if err := ValidateCreateRequest(req); err != nil {
		return nil, err
	}
	exists, err := s.repo.ExistsByNumber(ctx, p.UserID, req.Number)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, duplicateNumber(req.Number)
	}

	now := s.now().UTC()
	rec := Record{
		ID:          uuid.New(),
		OwnerID:     p.UserID,
		OwnerName:   p.Name(),
		TrainerID:   req.TrainerID,
		Number:      req.Number,
		PeriodStart: req.PeriodStart,
		PeriodEnd:   req.PeriodEnd,
		Activities:  req.Activities,
		Status:      StatusInBearbeitung,
		Signatures:  req.Signatures,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	sortActivities(rec.Activities)

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.Insert(ctx, rec); err != nil {
			return err
		}
		return tx.RecordAudit(ctx, AuditEvent{
			RecordID: rec.ID,
			Action:   "CREATED",
			Actor:    p.Name(),
			Details:  map[string]any{"number": rec.Number},
		})
	})
	if err != nil {
		return nil, err
	}
	s.revalidate(ctx, invalidationFor(rec))
	return &rec, nil
}

// Get returns a record visible to the principal.
func (s *Service) Get(ctx context.Context, p shared.Principal, id uuid.UUID) (*Record, error) {
	var rec Record
	err := s.cache.Read(ctx, getKey(id), &rec, func(ctx context.Context) (any, error) {
		return s.repo.GetByID(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	if !rec.CanRead(p) {
		return nil, ErrCannotRead
	}
	return &rec, nil
}

// scopeFilter narrows filter to what the principal may see.
func scopeFilter(p shared.Principal, filter ListFilter) ListFilter {
	switch p.Role {
	case shared.RoleAdmin:
	case shared.RoleAusbilder:
		id := p.UserID
		filter.TrainerID = &id
	default:
		id := p.UserID
		filter.OwnerID = &id
		filter.TrainerID = nil
	}
	return filter
}

func listKey(filter ListFilter) revalidation.Key {
	var owner, trainer, status string
	if filter.OwnerID != nil {
		owner = filter.OwnerID.String()
	}
	if filter.TrainerID != nil {
		trainer = filter.TrainerID.String()
	}
	if filter.Status != nil {
		status = string(*filter.Status)
	}
	return revalidation.NewKey(EndpointList,
		"owner", owner,
		"trainer", trainer,
		"status", status,
		"page", strconv.Itoa(filter.Page),
		"size", strconv.Itoa(filter.Size),
		"sortBy", filter.SortBy,
		"sortDir", filter.SortDir,
	)
}

// List returns a page of records scoped to the principal.
func (s *Service) List(ctx context.Context, p shared.Principal, filter ListFilter) (Page, error) {
	if filter.Status != nil && !filter.Status.IsValid() {
		return Page{}, shared.Validationf("unknown status %q", *filter.Status)
	}
	filter = scopeFilter(p, filter)
	filter.Page, filter.Size = shared.ClampPage(filter.Page, filter.Size)

	var page Page
	err := s.cache.Read(ctx, listKey(filter), &page, func(ctx context.Context) (any, error) {
		items, total, err := s.repo.List(ctx, filter)
		if err != nil {
			return nil, err
		}
		return Page{Content: items, Pagination: shared.NewPagination(filter.Page, filter.Size, total)}, nil
	})
	if err != nil {
		return Page{}, err
	}
	if page.Content == nil {
		page.Content = []Record{}
	}
	return page, nil
}

// ExistsByNumber reports whether the principal already uses number.
func (s *Service) ExistsByNumber(ctx context.Context, p shared.Principal, number int) (bool, error) {
	if number <= 0 {
		return false, ErrInvalidNumber
	}
	var resp ExistsResponse
	err := s.cache.Read(ctx, existsKey(p.UserID, number), &resp, func(ctx context.Context) (any, error) {
		exists, err := s.repo.ExistsByNumber(ctx, p.UserID, number)
		return ExistsResponse{Exists: exists}, err
	})
	return resp.Exists, err
}

// NextNumber suggests the next free record number of the principal.
func (s *Service) NextNumber(ctx context.Context, p shared.Principal) (int, error) {
	max, err := s.repo.MaxNumber(ctx, p.UserID)
	if err != nil {
		return 0, err
	}
	return max + 1, nil
}

// Update applies a partial update. Owner edits reset the status.
func (s *Service) Update(ctx context.Context, p shared.Principal, id uuid.UUID, req UpdateRequest) (*Record, error) {
	if err := ValidateUpdateRequest(req); err != nil {
		return nil, err
	}
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !current.CanRead(p) {
		return nil, ErrNotOwnerOrTrainer
	}
	if req.touchesReviewFields() && !current.CanReview(p) {
		return nil, ErrReviewerOnly
	}

	next := *current
	if req.Number != nil {
		next.Number = *req.Number
	}
	if req.PeriodStart != nil {
		next.PeriodStart = *req.PeriodStart
	}
	if req.PeriodEnd != nil {
		next.PeriodEnd = *req.PeriodEnd
	}
	if req.TrainerID != nil {
		next.TrainerID = *req.TrainerID
	}
	if req.Activities != nil {
		next.Activities = append([]Activity(nil), *req.Activities...)
		sortActivities(next.Activities)
	}
	if req.Signatures != nil {
		next.Signatures = *req.Signatures
	}
	if req.Comment != nil {
		next.Comment = req.Comment
	}
	if err := validatePeriod(next.PeriodStart, next.PeriodEnd); err != nil {
		return nil, err
	}
	if req.Status != nil {
		if err := Transition(current.Status, *req.Status); err != nil {
			return nil, err
		}
		next.Status = *req.Status
	} else if current.IsOwner(p) && req.touchesOwnerFields() {
		next.Status = StatusInBearbeitung
	}

	if next.Number != current.Number {
		exists, err := s.repo.ExistsByNumber(ctx, next.OwnerID, next.Number)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, duplicateNumber(next.Number)
		}
	}

	next.UpdatedAt = s.now().UTC()
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.Update(ctx, next); err != nil {
			return err
		}
		if req.Activities != nil {
			if err := tx.ReplaceActivities(ctx, next.ID, next.Activities); err != nil {
				return err
			}
		}
		details := map[string]any{"number": next.Number}
		if next.Status != current.Status {
			details["from"] = string(current.Status)
			details["to"] = string(next.Status)
		}
		return tx.RecordAudit(ctx, AuditEvent{RecordID: next.ID, Action: "UPDATED", Actor: p.Name(), Details: details})
	})
	if err != nil {
		return nil, err
	}
	s.revalidate(ctx, invalidationFor(next, current.Number))
	if next.Status != current.Status {
		s.notify(ctx, StatusChange{
			RecordID: next.ID, OwnerID: next.OwnerID, Number: next.Number,
			From: current.Status, To: next.Status, Comment: next.Comment, Actor: p.Name(),
		})
	}
	return &next, nil
}

// Delete removes a record irreversibly. Only the owner or an admin may delete.
func (s *Service) Delete(ctx context.Context, p shared.Principal, id uuid.UUID) error {
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !rec.IsOwner(p) && !p.IsAdmin() {
		return ErrOwnerOrAdminOnly
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.Delete(ctx, id); err != nil {
			return err
		}
		return tx.RecordAudit(ctx, AuditEvent{
			RecordID: id,
			Action:   "DELETED",
			Actor:    p.Name(),
			Details:  map[string]any{"number": rec.Number},
		})
	})
	if err != nil {
		return err
	}
	s.revalidate(ctx, invalidationFor(*rec))
	return nil
}

// SetStatus moves a single record to status. A non-nil comment replaces the stored one.
func (s *Service) SetStatus(ctx context.Context, p shared.Principal, id uuid.UUID, status Status, comment *string) (*Record, error) {
	if !p.CanReview() {
		return nil, ErrReviewerOnly
	}
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !rec.CanReview(p) {
		return nil, ErrNotAssigned
	}
	if err := Transition(rec.Status, status); err != nil {
		return nil, err
	}
	from := rec.Status
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.UpdateStatus(ctx, id, status, comment); err != nil {
			return err
		}
		details := map[string]any{"from": string(from), "to": string(status)}
		if comment != nil {
			details["comment"] = *comment
		}
		return tx.RecordAudit(ctx, AuditEvent{RecordID: id, Action: transitionAction(status), Actor: p.Name(), Details: details})
	})
	if err != nil {
		return nil, err
	}
	rec.Status = status
	if comment != nil {
		rec.Comment = comment
	}
	rec.UpdatedAt = s.now().UTC()
	s.revalidate(ctx, invalidationFor(*rec))
	s.notify(ctx, StatusChange{
		RecordID: id, OwnerID: rec.OwnerID, Number: rec.Number,
		From: from, To: status, Comment: rec.Comment, Actor: p.Name(),
	})
	return rec, nil
}

// Document renders a readable record as PDF.
func (s *Service) Document(ctx context.Context, p shared.Principal, id uuid.UUID) (*Record, []byte, error) {
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if !rec.CanRead(p) {
		return nil, nil, ErrCannotRead
	}
	pdf, err := s.renderPDF(ctx, *rec)
	if err != nil {
		return nil, nil, err
	}
	return rec, pdf, nil
}
