package app_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/ledgercore/internal/app"
	"github.com/odyssey-erp/ledgercore/internal/ledger"
	"github.com/odyssey-erp/ledgercore/internal/observability"
	"github.com/odyssey-erp/ledgercore/internal/reports"
	"github.com/odyssey-erp/ledgercore/internal/sequence"
	"github.com/odyssey-erp/ledgercore/internal/shared"
	"github.com/odyssey-erp/ledgercore/internal/testing/memstore"
)

type claimer struct {
	mu   sync.Mutex
	keys map[string]bool
}

func (c *claimer) CheckAndInsert(_ context.Context, key, module string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.keys[module+key] {
		return shared.ErrIdempotencyConflict
	}
	c.keys[module+key] = true
	return nil
}

func (c *claimer) Delete(_ context.Context, key, module string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.keys, module+key)
	return nil
}

type harness struct {
	server *httptest.Server
	fx     memstore.Fixture
	db     *memstore.DB
}

func newHarness(t *testing.T) harness {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	db := memstore.New()
	fx := memstore.Seed(db)
	metrics := observability.NewMetrics()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	cache := reports.NewCache(client, time.Minute)

	sequenceService := sequence.NewService(db.Sequences()).WithObserver(metrics)
	ledgerService := ledger.NewService(db.Ledger(), ledger.NewPoster(time.Now), db).WithMetrics(metrics).Observe(cache)
	reportsService := reports.NewService(db.Reports(), cache)

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          &app.Config{AppEnv: "test"},
		SequenceHandler: sequence.NewHandler(logger, sequenceService, 1),
		LedgerHandler:   ledger.NewHandler(logger, ledgerService, 1),
		ReportsHandler:  reports.NewHandler(logger, reportsService),
		Metrics:         metrics,
		Idempotency:     &claimer{keys: map[string]bool{}},
	})
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return harness{server: server, fx: fx, db: db}
}

func (h harness) do(t *testing.T, method, path, body string, headers ...string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, h.server.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := h.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func (h harness) entryBody(debit, credit string) string {
	return fmt.Sprintf(`{"company_id":%d,"fiscal_year_id":%d,"date":"2025-03-14T00:00:00Z","description":"Cement",
		"lines":[{"account_id":%d,"debit":"%s","credit":"0"},{"account_id":%d,"debit":"0","credit":"%s"}]}`,
		h.fx.CompanyID, h.fx.FiscalYearID, h.fx.ExpenseAccountID, debit, h.fx.CashAccountID, credit)
}

func TestHealthz(t *testing.T) {
	h := newHarness(t)
	resp, body := h.do(t, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.JSONEq(t, `{"status":"ok"}`, string(body))
	require.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
}

func TestPostJournalThroughAPI(t *testing.T) {
	h := newHarness(t)

	resp, body := h.do(t, http.MethodPost, "/api/journals/post", h.entryBody("250.00", "250.00"))
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var posted ledger.JournalEntry
	require.NoError(t, json.Unmarshal(body, &posted))
	require.Equal(t, "BURJ-JE-000001", posted.DocumentNumber)
	require.True(t, posted.Posted)

	resp, body = h.do(t, http.MethodPost, "/api/journals/post", h.entryBody("250.00", "249.50"))
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	require.Contains(t, string(body), `"difference":"0.50"`)

	resp, body = h.do(t, http.MethodGet, fmt.Sprintf("/api/reports/trial-balance?company_id=%d&fiscal_year_id=%d", h.fx.CompanyID, h.fx.FiscalYearID), "")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var tb reports.TrialBalance
	require.NoError(t, json.Unmarshal(body, &tb))
	require.True(t, tb.Balanced)
	require.Equal(t, "250", tb.TotalDebit.String())

	resp, body = h.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(body), `ledgercore_postings_total{document_type="JE",outcome="ok"} 1`)
	require.Contains(t, string(body), `ledgercore_postings_total{document_type="JE",outcome="rejected"} 1`)
}

func TestAllocateThroughAPI(t *testing.T) {
	h := newHarness(t)
	payload := fmt.Sprintf(`{"company_id":%d,"fiscal_year_id":%d,"document_type":"po"}`, h.fx.CompanyID, h.fx.FiscalYearID)

	resp, body := h.do(t, http.MethodPost, "/api/sequences/allocate", payload)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	require.JSONEq(t, `{"document_number":"BURJ-PO-000001"}`, string(body))

	resp, _ = h.do(t, http.MethodPost, "/api/sequences/allocate", fmt.Sprintf(`{"company_id":%d,"fiscal_year_id":%d,"document_type":"ZZ"}`, h.fx.CompanyID, h.fx.FiscalYearID))
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestIdempotencyKeyPreventsDoublePosting(t *testing.T) {
	h := newHarness(t)
	body := h.entryBody("80.00", "80.00")

	resp, _ := h.do(t, http.MethodPost, "/api/journals/post", body, "Idempotency-Key", "abc-1", "X-Actor-ID", "7")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = h.do(t, http.MethodPost, "/api/journals/post", body, "Idempotency-Key", "abc-1", "X-Actor-ID", "7")
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	logs := h.db.AuditLogs()
	require.Len(t, logs, 1)
	require.Equal(t, int64(7), logs[0].ActorID)

	resp, body2 := h.do(t, http.MethodPost, "/api/journals/post", body, "Idempotency-Key", "abc-2")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var posted ledger.JournalEntry
	require.NoError(t, json.Unmarshal(body2, &posted))
	require.Equal(t, "BURJ-JE-000002", posted.DocumentNumber)
}
