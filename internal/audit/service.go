package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/ausbildung/nachweis/internal/shared"
)

const (
	defaultRecentLimit = 3
	exportLimit        = 10000
)

// Page membungkus entry audit dengan total.
type Page struct {
	Items []Entry `json:"items"`
	Total int     `json:"total"`
}

// Service mengoordinasikan pengambilan data audit.
type Service struct {
	repo       Repository
	normalizer Normalizer
}

// NewService membuat service audit baru.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) normalize(rows []json.RawMessage) []Entry {
	out := make([]Entry, 0, len(rows))
	for _, row := range rows {
		out = append(out, s.normalizer.Normalize(row))
	}
	return out
}

// RecordAudits mengambil audit Nachweis dengan paging (page mulai dari 0).
func (s *Service) RecordAudits(ctx context.Context, page, size int) (Page, error) {
	if s.repo == nil {
		return Page{}, fmt.Errorf("audit: repository not configured")
	}
	p := shared.NewPagination(page, size, 0)
	rows, total, err := s.repo.RecordAudits(ctx, p.Size, p.Offset())
	if err != nil {
		return Page{}, err
	}
	return Page{Items: s.normalize(rows), Total: total}, nil
}

// RecordAuditsFor mengambil seluruh audit satu Nachweis.
func (s *Service) RecordAuditsFor(ctx context.Context, recordID uuid.UUID) (Page, error) {
	if s.repo == nil {
		return Page{}, fmt.Errorf("audit: repository not configured")
	}
	rows, err := s.repo.RecordAuditsFor(ctx, recordID)
	if err != nil {
		return Page{}, err
	}
	items := s.normalize(rows)
	return Page{Items: items, Total: len(items)}, nil
}

// RoleAudits mengambil audit peran dengan paging.
func (s *Service) RoleAudits(ctx context.Context, page, size int) (Page, error) {
	if s.repo == nil {
		return Page{}, fmt.Errorf("audit: repository not configured")
	}
	p := shared.NewPagination(page, size, 0)
	rows, total, err := s.repo.RoleAudits(ctx, p.Size, p.Offset())
	if err != nil {
		return Page{}, err
	}
	return Page{Items: s.normalize(rows), Total: total}, nil
}

// Recent mengambil n audit terbaru dari audit Nachweis dan audit peran.
func (s *Service) Recent(ctx context.Context, n int) ([]Entry, error) {
	if s.repo == nil {
		return nil, fmt.Errorf("audit: repository not configured")
	}
	if n <= 0 {
		n = defaultRecentLimit
	}
	if n > shared.MaxPageSize {
		n = shared.MaxPageSize
	}
	records, _, err := s.repo.RecordAudits(ctx, n, 0)
	if err != nil {
		return nil, err
	}
	roles, _, err := s.repo.RoleAudits(ctx, n, 0)
	if err != nil {
		return nil, err
	}
	return Recent(append(s.normalize(records), s.normalize(roles)...), n), nil
}

// Export mengambil audit Nachweis terbaru tanpa paging, dibatasi exportLimit baris.
func (s *Service) Export(ctx context.Context) ([]Entry, error) {
	if s.repo == nil {
		return nil, fmt.Errorf("audit: repository not configured")
	}
	rows, _, err := s.repo.RecordAudits(ctx, exportLimit, 0)
	if err != nil {
		return nil, err
	}
	return s.normalize(rows), nil
}
