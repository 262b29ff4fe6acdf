package handler_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/quorvia/erpcore/internal/adapter/http/dto"
	"github.com/quorvia/erpcore/internal/adapter/http/handler"
	"github.com/quorvia/erpcore/internal/usecase"
	"github.com/quorvia/erpcore/internal/usecase/mocks"
)

func newLedgerRouter() chi.Router {
	clock := mocks.NewMockClock(time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC))
	uc := usecase.NewLedgerUseCase(
		mocks.NewMockTransactionManager(),
		mocks.NewMockAccountRepository(),
		mocks.NewMockJournalRepository(),
		mocks.NewMockPeriodRepository(),
		mocks.NewMockRecurringRepository(),
		mocks.NewMockOutboxRepository(),
		mocks.NewMockIDGenerator(),
		mocks.NewMockNumberGenerator(),
		clock,
	)
	h := handler.NewLedgerHandler(uc)

	r := chi.NewRouter()
	r.Post("/accounts", h.CreateAccount)
	r.Get("/accounts/{id}", h.GetAccount)
	r.Get("/accounts", h.ListAccounts)
	return r
}

func TestLedgerHandler_CreateAccount(t *testing.T) {
	router := newLedgerRouter()

	body := `{"code":"1000","name":"Cash","class":"Asset"}`
	req := httptest.NewRequest(http.MethodPost, "/accounts", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp dto.AccountResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Code != "1000" || resp.Class != "Asset" || resp.Status != "Active" {
		t.Errorf("unexpected account response: %+v", resp)
	}
	if resp.ID == "" {
		t.Errorf("expected a generated account ID")
	}
}

func TestLedgerHandler_CreateAccount_BadClass(t *testing.T) {
	router := newLedgerRouter()

	body := `{"code":"1000","name":"Cash","class":"Wealth"}`
	req := httptest.NewRequest(http.MethodPost, "/accounts", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid class, got %d", rec.Code)
	}

	var resp dto.ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	if resp.Error == "" {
		t.Errorf("expected an error code in the body, got %+v", resp)
	}
}

func TestLedgerHandler_CreateAccount_DuplicateCode(t *testing.T) {
	router := newLedgerRouter()

	body := `{"code":"1000","name":"Cash","class":"Asset"}`
	first := httptest.NewRequest(http.MethodPost, "/accounts", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, first)
	if rec.Code != http.StatusCreated {
		t.Fatalf("setup create failed: %d", rec.Code)
	}

	second := httptest.NewRequest(http.MethodPost, "/accounts", strings.NewReader(body))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, second)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for duplicate code, got %d", rec.Code)
	}
}

func TestLedgerHandler_GetAccount_NotFound(t *testing.T) {
	router := newLedgerRouter()

	req := httptest.NewRequest(http.MethodGet, "/accounts/missing", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown account, got %d", rec.Code)
	}
}

func TestLedgerHandler_ListAccounts_Paginates(t *testing.T) {
	router := newLedgerRouter()

	for _, code := range []string{"1000", "1100", "2000"} {
		body := `{"code":"` + code + `","name":"Account ` + code + `","class":"Asset"}`
		req := httptest.NewRequest(http.MethodPost, "/accounts", strings.NewReader(body))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("setup create %s failed: %d", code, rec.Code)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/accounts?page=1&per_page=2", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp dto.PageResponse[dto.AccountResponse]
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode page: %v", err)
	}
	if len(resp.Items) != 2 || resp.Total != 3 || resp.TotalPages != 2 {
		t.Errorf("unexpected page shape: items=%d total=%d pages=%d", len(resp.Items), resp.Total, resp.TotalPages)
	}
}
