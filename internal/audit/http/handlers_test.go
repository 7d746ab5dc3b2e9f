package audithttp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/ledgercore/internal/audit"
)

type stubService struct {
	last audit.TimelineFilters
	rows []audit.TimelineRow
}

func (s *stubService) Timeline(_ context.Context, f audit.TimelineFilters) (audit.Result, error) {
	s.last = f
	return audit.Result{Rows: s.rows, Paging: audit.PagingInfo{Page: 1, PageSize: 20}}, nil
}

func (s *stubService) Export(_ context.Context, f audit.TimelineFilters) ([]audit.TimelineRow, error) {
	s.last = f
	return s.rows, nil
}

func newTestRouter(svc *stubService) http.Handler {
	h := NewHandler(nil, svc)
	h.now = func() time.Time { return time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC) }
	r := chi.NewRouter()
	r.Route("/api/audit", h.MountRoutes)
	return r
}

func TestTimelineDefaultsToLastWeek(t *testing.T) {
	svc := &stubService{}
	rr := httptest.NewRecorder()
	newTestRouter(svc).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/audit/?entity=journal_entry", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", rr.Code, rr.Body.String())
	}
	if !svc.last.From.Equal(time.Date(2025, 3, 7, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected from: %s", svc.last.From)
	}
	if !svc.last.To.Equal(time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected to: %s", svc.last.To)
	}
	if svc.last.Entity != "journal_entry" {
		t.Fatalf("unexpected entity: %s", svc.last.Entity)
	}
}

func TestTimelineRejectsBadFilters(t *testing.T) {
	for _, query := range []string{
		"?from=2025-03-10&to=2025-03-01",
		"?from=2024-01-01&to=2025-03-01",
		"?to=yesterday",
		"?page=0",
		"?actor_id=abc",
	} {
		rr := httptest.NewRecorder()
		newTestRouter(&stubService{}).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/audit/"+query, nil))
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", query, rr.Code)
		}
	}
}

func TestExportWritesCSV(t *testing.T) {
	svc := &stubService{rows: []audit.TimelineRow{{At: time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), Action: "po.issue", Entity: "purchase_order", EntityID: "1"}}}
	rr := httptest.NewRecorder()
	newTestRouter(svc).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/audit/export.csv", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Fatalf("unexpected content type %s", ct)
	}
	if !strings.Contains(rr.Body.String(), "po.issue,purchase_order,1") {
		t.Fatalf("unexpected body: %s", rr.Body.String())
	}
}
