package app

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestServer() *httptest.Server {
	svc, _ := newTestService()
	return httptest.NewServer(NewHTTPServer(svc, "*").Handler())
}

func doJSON(t *testing.T, method, url, body string) (int, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()
	var payload map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp.StatusCode, payload
}

func TestHealthEndpoint(t *testing.T) {
	server := newTestServer()
	defer server.Close()

	code, payload := doJSON(t, http.MethodGet, server.URL+"/api/health", "")
	if code != http.StatusOK || payload["ok"] != true {
		t.Fatalf("health: %d %+v", code, payload)
	}
}

func TestImportAndFetchTender(t *testing.T) {
	server := newTestServer()
	defer server.Close()

	code, report := doJSON(t, http.MethodPost, server.URL+"/api/imports", `{
		"headers": ["CLAVE", "TITULO", "MONTO", "FALLO"],
		"rows": [
			{"CLAVE": "LA-100", "TITULO": "Reactivos", "MONTO": "1,000", "FALLO": "2026-09-03"}
		]
	}`)
	if code != http.StatusOK {
		t.Fatalf("import: %d %+v", code, report)
	}
	if report["insertedCount"] != float64(1) {
		t.Fatalf("insertedCount: %v", report["insertedCount"])
	}

	code, item := doJSON(t, http.MethodGet, server.URL+"/api/tenders/LA-100?today=2026-08-31", "")
	if code != http.StatusOK {
		t.Fatalf("get: %d %+v", code, item)
	}
	if item["title"] != "Reactivos" || item["estimatedAmount"] != float64(1000) {
		t.Fatalf("tender: %+v", item)
	}
	urgencyView := item["urgency"].(map[string]any)
	if urgencyView["band"] != "dueSoon" || urgencyView["overallDelta"] != float64(3) {
		t.Fatalf("urgency: %+v", urgencyView)
	}
}

func TestPatchTender(t *testing.T) {
	server := newTestServer()
	defer server.Close()

	code, _ := doJSON(t, http.MethodPost, server.URL+"/api/tenders", `{"key": "LA-200", "fields": {"title": "before"}}`)
	if code != http.StatusCreated {
		t.Fatalf("create: %d", code)
	}

	code, item := doJSON(t, http.MethodPatch, server.URL+"/api/tenders/LA-200", `{"notes": "revisar bases"}`)
	if code != http.StatusOK {
		t.Fatalf("patch: %d %+v", code, item)
	}
	if item["notes"] != "revisar bases" || item["title"] != "before" {
		t.Fatalf("patched tender: %+v", item)
	}

	code, payload := doJSON(t, http.MethodPatch, server.URL+"/api/tenders/LA-200", `{"key": "LA-201"}`)
	if code != http.StatusBadRequest || payload["code"] != "IMMUTABLE_KEY" {
		t.Fatalf("expected IMMUTABLE_KEY, got %d %+v", code, payload)
	}
}

func TestTransitionStatusEndpoint(t *testing.T) {
	server := newTestServer()
	defer server.Close()

	doJSON(t, http.MethodPost, server.URL+"/api/tenders", `{"key": "LA-300"}`)

	code, payload := doJSON(t, http.MethodPost, server.URL+"/api/tenders/LA-300/status", `{"status": "Bogus"}`)
	if code != http.StatusUnprocessableEntity || payload["code"] != "INVALID_STATUS" {
		t.Fatalf("expected 422 INVALID_STATUS, got %d %+v", code, payload)
	}

	code, payload = doJSON(t, http.MethodPost, server.URL+"/api/tenders/LA-300/status", `{"status": "Cancelled"}`)
	if code != http.StatusOK || payload["status"] != "Cancelled" {
		t.Fatalf("transition: %d %+v", code, payload)
	}
}

func TestBoardEndpoint(t *testing.T) {
	server := newTestServer()
	defer server.Close()

	doJSON(t, http.MethodPost, server.URL+"/api/imports", `{
		"headers": ["CLAVE", "FALLO"],
		"rows": [
			{"CLAVE": "LA-1", "FALLO": "2026-08-30"},
			{"CLAVE": "LA-2", "FALLO": "2026-09-02"}
		]
	}`)

	code, snapshot := doJSON(t, http.MethodGet, server.URL+"/api/board?today=2026-08-31&window=60", "")
	if code != http.StatusOK {
		t.Fatalf("board: %d %+v", code, snapshot)
	}
	kpis := snapshot["kpis"].(map[string]any)
	if kpis["overdue"] != float64(1) || kpis["dueSoon"] != float64(1) {
		t.Fatalf("kpis: %+v", kpis)
	}

	code, payload := doJSON(t, http.MethodGet, server.URL+"/api/board?today=soon", "")
	if code != http.StatusBadRequest || payload["code"] != "INVALID_QUERY" {
		t.Fatalf("expected INVALID_QUERY, got %d %+v", code, payload)
	}
}

func TestNotFoundRoutes(t *testing.T) {
	server := newTestServer()
	defer server.Close()

	code, payload := doJSON(t, http.MethodGet, server.URL+"/api/tenders/NOPE", "")
	if code != http.StatusNotFound || payload["code"] != "NOT_FOUND" {
		t.Fatalf("missing tender: %d %+v", code, payload)
	}

	code, payload = doJSON(t, http.MethodGet, server.URL+"/api/unknown", "")
	if code != http.StatusNotFound || payload["code"] != "NOT_FOUND" {
		t.Fatalf("unknown route: %d %+v", code, payload)
	}
}

func TestListTendersFilters(t *testing.T) {
	server := newTestServer()
	defer server.Close()

	doJSON(t, http.MethodPost, server.URL+"/api/tenders", `{"key": "LA-10", "fields": {"institution": "IMSS"}}`)
	doJSON(t, http.MethodPost, server.URL+"/api/tenders", `{"key": "SC-11", "fields": {"institution": "ISSSTE"}}`)

	code, payload := doJSON(t, http.MethodGet, server.URL+"/api/tenders?category=quote", "")
	if code != http.StatusOK {
		t.Fatalf("list: %d", code)
	}
	items := payload["tenders"].([]any)
	if len(items) != 1 {
		t.Fatalf("expected 1 quote tender, got %d", len(items))
	}
	if items[0].(map[string]any)["key"] != "SC-11" {
		t.Fatalf("filtered item: %+v", items[0])
	}

	code, payload = doJSON(t, http.MethodGet, server.URL+"/api/tenders?institution=imss", "")
	if code != http.StatusOK || len(payload["tenders"].([]any)) != 1 {
		t.Fatalf("institution filter: %d %+v", code, payload)
	}
}
