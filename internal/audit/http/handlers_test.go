package audithttp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ausbildung/nachweis/internal/audit"
	"github.com/ausbildung/nachweis/internal/shared"
)

type stubTrailService struct {
	page       audit.Page
	recent     []audit.Entry
	export     []audit.Entry
	lastPage   int
	lastSize   int
	lastRecord uuid.UUID
	lastLimit  int
}

func (s *stubTrailService) RecordAudits(ctx context.Context, page, size int) (audit.Page, error) {
	s.lastPage, s.lastSize = page, size
	return s.page, nil
}

func (s *stubTrailService) RecordAuditsFor(ctx context.Context, recordID uuid.UUID) (audit.Page, error) {
	s.lastRecord = recordID
	return s.page, nil
}

func (s *stubTrailService) RoleAudits(ctx context.Context, page, size int) (audit.Page, error) {
	s.lastPage, s.lastSize = page, size
	return s.page, nil
}

func (s *stubTrailService) Recent(ctx context.Context, n int) ([]audit.Entry, error) {
	s.lastLimit = n
	return s.recent, nil
}

func (s *stubTrailService) Export(ctx context.Context) ([]audit.Entry, error) {
	return s.export, nil
}

func newAuditRouter(service *stubTrailService) http.Handler {
	handler := NewHandler(nil, service)
	handler.now = func() time.Time { return time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC) }
	r := chi.NewRouter()
	handler.MountRoutes(r)
	return r
}

func serve(router http.Handler, target string, role shared.Role) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if role != "" {
		p := shared.Principal{UserID: uuid.New(), Username: "tester", Role: role}
		req = req.WithContext(shared.ContextWithPrincipal(req.Context(), p))
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestAuditRequiresReviewer(t *testing.T) {
	router := newAuditRouter(&stubTrailService{})
	if rr := serve(router, "/audit/records", ""); rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	if rr := serve(router, "/audit/records", shared.RoleAzubi); rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
}

func TestRecordAuditsPage(t *testing.T) {
	at := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)
	service := &stubTrailService{page: audit.Page{
		Items: []audit.Entry{{ID: "1", SubjectID: "n-1", Action: "APPROVED", Actor: "meister", OccurredAt: at}},
		Total: 31,
	}}
	router := newAuditRouter(service)

	rr := serve(router, "/audit/records?page=3&size=5", shared.RoleAusbilder)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if service.lastPage != 3 || service.lastSize != 5 {
		t.Fatalf("unexpected paging: page=%d size=%d", service.lastPage, service.lastSize)
	}
	var body struct {
		Items []map[string]any `json:"items"`
		Total int              `json:"total"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Total != 31 || len(body.Items) != 1 {
		t.Fatalf("unexpected body: %s", rr.Body.String())
	}
	if body.Items[0]["actor"] != "meister" || body.Items[0]["subjectId"] != "n-1" {
		t.Fatalf("unexpected item: %+v", body.Items[0])
	}
}

func TestRecordAuditsForRecord(t *testing.T) {
	service := &stubTrailService{page: audit.Page{Items: []audit.Entry{}}}
	router := newAuditRouter(service)
	id := uuid.New()

	rr := serve(router, "/audit/records/"+id.String(), shared.RoleAdmin)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if service.lastRecord != id {
		t.Fatalf("expected record %s, got %s", id, service.lastRecord)
	}

	if rr := serve(router, "/audit/records/not-a-uuid", shared.RoleAdmin); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestRoleAuditsInvalidPage(t *testing.T) {
	router := newAuditRouter(&stubTrailService{})
	if rr := serve(router, "/audit/roles?page=abc", shared.RoleAdmin); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestRecentDefaultsToThree(t *testing.T) {
	service := &stubTrailService{recent: []audit.Entry{{ID: "1", Action: "CREATED"}}}
	router := newAuditRouter(service)

	rr := serve(router, "/audit/recent", shared.RoleAdmin)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if service.lastLimit != 3 {
		t.Fatalf("expected limit 3, got %d", service.lastLimit)
	}
}

func TestExportCSV(t *testing.T) {
	service := &stubTrailService{export: []audit.Entry{{ID: "1", SubjectID: "n-1", Action: "DELETED", Actor: "admin"}}}
	router := newAuditRouter(service)

	rr := serve(router, "/audit/records/export", shared.RoleAdmin)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if ctype := rr.Header().Get("Content-Type"); !strings.Contains(ctype, "text/csv") {
		t.Fatalf("unexpected content-type: %s", ctype)
	}
	if disp := rr.Header().Get("Content-Disposition"); !strings.Contains(disp, "audit-20250315.csv") {
		t.Fatalf("unexpected disposition: %s", disp)
	}
	if !strings.Contains(rr.Body.String(), "1,n-1,DELETED,admin") {
		t.Fatalf("unexpected csv: %s", rr.Body.String())
	}
}

func TestExportRateLimited(t *testing.T) {
	router := newAuditRouter(&stubTrailService{})
	req := func() int {
		r := httptest.NewRequest(http.MethodGet, "/audit/records/export", nil)
		p := shared.Principal{UserID: uuid.MustParse("00000000-0000-0000-0000-000000000001"), Role: shared.RoleAdmin}
		r = r.WithContext(shared.ContextWithPrincipal(r.Context(), p))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, r)
		return rr.Code
	}
	for i := 0; i < rateLimit; i++ {
		if code := req(); code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, code)
		}
	}
	if code := req(); code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", code)
	}
}
