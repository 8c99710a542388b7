package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestServer(t *testing.T, svc *Service) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(NewHTTPServer(svc, "*").Handler())
	t.Cleanup(func() {
		ts.Close()
		svc.Shutdown(context.Background())
	})
	return ts
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func decodeJSON[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer(t, newTestService(newMemStore(), nil))

	resp, err := http.Get(ts.URL + "/api/health")
	if err != nil {
		t.Fatalf("GET health: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	body := decodeJSON[map[string]any](t, resp)
	if body["ok"] != true {
		t.Fatalf("body = %v", body)
	}
}

func TestSessionLifecycleOverHTTP(t *testing.T) {
	ts := newTestServer(t, newTestService(newMemStore(publishedDoc("abc")), nil))

	resp := postJSON(t, ts.URL+"/api/sessions", map[string]any{
		"slugOrId":      "abc",
		"authenticated": true,
		"editMode":      true,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("open status = %d", resp.StatusCode)
	}
	view := decodeJSON[SessionView](t, resp)
	if view.SessionID == "" || view.Document == nil {
		t.Fatalf("view = %+v", view)
	}

	resp = postJSON(t, ts.URL+"/api/sessions/"+view.SessionID+"/text", map[string]any{"text": "edited"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("text status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = postJSON(t, ts.URL+"/api/sessions/"+view.SessionID+"/save", map[string]any{})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("save status = %d", resp.StatusCode)
	}
	saved := decodeJSON[SessionView](t, resp)
	if saved.Document.Text != "edited" {
		t.Fatalf("saved text = %q", saved.Document.Text)
	}

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/api/sessions/"+view.SessionID, nil)
	if err != nil {
		t.Fatalf("build delete: %v", err)
	}
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE session: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("close status = %d", resp.StatusCode)
	}

	resp, err = http.Get(ts.URL + "/api/sessions/" + view.SessionID)
	if err != nil {
		t.Fatalf("GET session: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 after close, got %d", resp.StatusCode)
	}
}

func TestOpenSessionValidation(t *testing.T) {
	ts := newTestServer(t, newTestService(newMemStore(), nil))

	resp := postJSON(t, ts.URL+"/api/sessions", map[string]any{})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestOpenSessionNotFoundOverHTTP(t *testing.T) {
	ts := newTestServer(t, newTestService(newMemStore(), nil))

	resp := postJSON(t, ts.URL+"/api/sessions", map[string]any{
		"slugOrId":      "missing",
		"authenticated": true,
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestShareEndpoints(t *testing.T) {
	ts := newTestServer(t, newTestService(newMemStore(publishedDoc("abc")), nil))

	resp := postJSON(t, ts.URL+"/api/documents/abc/share", map[string]any{"author": "alice"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create share status = %d", resp.StatusCode)
	}
	link := decodeJSON[ShareLink](t, resp)
	if link.Token == "" {
		t.Fatal("expected a share token")
	}

	resp = postJSON(t, ts.URL+"/api/sessions", map[string]any{"shareToken": link.Token})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("open via share status = %d", resp.StatusCode)
	}
	view := decodeJSON[SessionView](t, resp)
	if view.Document == nil || view.Document.ID != "abc" {
		t.Fatalf("view = %+v", view)
	}

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/api/documents/abc/share", nil)
	if err != nil {
		t.Fatalf("build delete: %v", err)
	}
	deleteResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE share: %v", err)
	}
	deleteResp.Body.Close()
	if deleteResp.StatusCode != http.StatusOK {
		t.Fatalf("revoke status = %d", deleteResp.StatusCode)
	}
}

func TestRevisionEndpoints(t *testing.T) {
	ts := newTestServer(t, newTestService(newMemStore(publishedDoc("abc")), &fakeRevisions{}))

	resp, err := http.Get(ts.URL + "/api/documents/abc/revisions")
	if err != nil {
		t.Fatalf("GET revisions: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status = %d", resp.StatusCode)
	}
	body := decodeJSON[map[string]any](t, resp)
	if _, ok := body["revisions"]; !ok {
		t.Fatalf("body = %v", body)
	}

	resp, err = http.Get(ts.URL + "/api/documents/abc/revisions/abc1234")
	if err != nil {
		t.Fatalf("GET revision content: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("content status = %d", resp.StatusCode)
	}
}

func TestUnknownRouteReturns404(t *testing.T) {
	ts := newTestServer(t, newTestService(newMemStore(), nil))

	resp, err := http.Get(ts.URL + "/api/nope")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}
