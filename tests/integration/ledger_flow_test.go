package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	adaptershttp "github.com/quorvia/erpcore/internal/adapter/http"
	"github.com/quorvia/erpcore/internal/adapter/http/dto"
	"github.com/quorvia/erpcore/tests/testutil"
)

func TestJournalEntryLifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	ctx := context.Background()
	testDB := testutil.NewTestDB(t)
	defer testDB.Cleanup()
	testDB.TruncateAll(ctx)

	eng := newEngines(t, testDB)
	router := adaptershttp.NewRouter(*newTestRouter(t, testDB, eng))

	testDB.SeedOpenPeriod(ctx, "FY2025", date(2025, 1, 1), date(2025, 12, 31))

	post := func(t *testing.T, path string, body any) *httptest.ResponseRecorder {
		t.Helper()
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	// Chart of accounts
	var cash, revenue dto.AccountResponse
	rec := post(t, "/api/v1/accounts/", dto.CreateAccountRequest{Code: "1000", Name: "Cash", Class: "Asset"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create cash account: status %d body %s", rec.Code, rec.Body)
	}
	json.Unmarshal(rec.Body.Bytes(), &cash)

	rec = post(t, "/api/v1/accounts/", dto.CreateAccountRequest{Code: "4000", Name: "Sales", Class: "Revenue"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create revenue account: status %d body %s", rec.Code, rec.Body)
	}
	json.Unmarshal(rec.Body.Bytes(), &revenue)

	// Unbalanced entries never get a draft
	rec = post(t, "/api/v1/journal-entries/", dto.CreateEntryRequest{
		Date:     date(2025, 3, 15),
		Currency: "EUR",
		Lines: []dto.JournalLineRequest{
			{AccountID: cash.ID, Debit: 10000},
			{AccountID: revenue.ID, Credit: 9000},
		},
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for unbalanced entry, got %d body %s", rec.Code, rec.Body)
	}

	// Draft, post, reverse
	rec = post(t, "/api/v1/journal-entries/", dto.CreateEntryRequest{
		Date:        date(2025, 3, 15),
		Description: "March sales",
		Currency:    "EUR",
		Lines: []dto.JournalLineRequest{
			{AccountID: cash.ID, Debit: 10000},
			{AccountID: revenue.ID, Credit: 10000},
		},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create entry: status %d body %s", rec.Code, rec.Body)
	}
	var entry dto.EntryResponse
	json.Unmarshal(rec.Body.Bytes(), &entry)
	if entry.Status != "Draft" || entry.Number == "" {
		t.Fatalf("unexpected draft: %+v", entry)
	}

	rec = post(t, "/api/v1/journal-entries/"+entry.ID+"/post", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("post entry: status %d body %s", rec.Code, rec.Body)
	}
	var posted dto.EntryResponse
	json.Unmarshal(rec.Body.Bytes(), &posted)
	if posted.Status != "Posted" || posted.PostedAt == nil {
		t.Fatalf("entry not posted: %+v", posted)
	}

	// Posting twice is rejected
	rec = post(t, "/api/v1/journal-entries/"+entry.ID+"/post", nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for double post, got %d body %s", rec.Code, rec.Body)
	}

	rec = post(t, "/api/v1/journal-entries/"+entry.ID+"/reverse", dto.ReverseEntryRequest{Date: date(2025, 4, 1)})
	if rec.Code != http.StatusCreated {
		t.Fatalf("reverse entry: status %d body %s", rec.Code, rec.Body)
	}
	var reversal dto.EntryResponse
	json.Unmarshal(rec.Body.Bytes(), &reversal)
	if reversal.ReversalOf != entry.ID {
		t.Fatalf("reversal does not reference original: %+v", reversal)
	}
	if reversal.Lines[0].Credit != 10000 || reversal.Lines[1].Debit != 10000 {
		t.Fatalf("reversal sides not swapped: %+v", reversal.Lines)
	}

	// Trial balance reflects only the posted entry: the reversal is
	// still a draft.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/reports/trial-balance?as_of=2025-12-31T00:00:00Z", nil)
	recGet := httptest.NewRecorder()
	router.ServeHTTP(recGet, req)
	if recGet.Code != http.StatusOK {
		t.Fatalf("trial balance: status %d body %s", recGet.Code, recGet.Body)
	}
	var report dto.ReportResponse
	json.Unmarshal(recGet.Body.Bytes(), &report)
	if len(report.Lines) != 2 {
		t.Fatalf("expected two report lines, got %+v", report.Lines)
	}
	var debits, credits int64
	for _, l := range report.Lines {
		debits += l.Debits
		credits += l.Credits
	}
	if debits != 10000 || credits != 10000 {
		t.Fatalf("trial balance out of balance: debits=%d credits=%d", debits, credits)
	}
}
