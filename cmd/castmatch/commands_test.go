package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

type recordedRequest struct {
	Method string
	Path   string
	Body   string
	Auth   string
}

type testServer struct {
	server   *httptest.Server
	requests []recordedRequest
}

func newTestServer(t *testing.T, responses map[string]string) *testServer {
	t.Helper()
	ts := &testServer{}

	ts.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body bytes.Buffer
		body.ReadFrom(r.Body)

		ts.requests = append(ts.requests, recordedRequest{
			Method: r.Method,
			Path:   r.URL.RequestURI(),
			Body:   body.String(),
			Auth:   r.Header.Get("Authorization"),
		})

		key := r.Method + " " + r.URL.Path
		if resp, ok := responses[key]; ok {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(resp))
			return
		}

		w.WriteHeader(404)
		w.Write([]byte(`{"error":{"message":"not found","type":"not_found"}}`))
	}))

	t.Cleanup(ts.server.Close)
	return ts
}

func (ts *testServer) client() *apiClient {
	return &apiClient{
		baseURL:    ts.server.URL,
		token:      "test-token",
		httpClient: ts.server.Client(),
	}
}

var ctx = context.Background()

func TestSeedPostsAllRecords(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /campaigns":   `{"id":"11111111-aaaa","title":"seeded"}`,
		"POST /influencers": `{"id":"22222222-bbbb","handle":"seeded"}`,
	})

	origClient := newAPIClient
	client := ts.client()
	newAPIClient = func() (*apiClient, error) { return client, nil }
	t.Cleanup(func() { newAPIClient = origClient })

	seedCmd.SetContext(ctx)
	if err := seedCmd.RunE(seedCmd, nil); err != nil {
		t.Fatalf("seed: %v", err)
	}

	wantRequests := len(seedCampaigns) + len(seedInfluencers)
	if len(ts.requests) != wantRequests {
		t.Fatalf("requests = %d, want %d", len(ts.requests), wantRequests)
	}
	for _, r := range ts.requests {
		if r.Auth != "Bearer test-token" {
			t.Errorf("auth = %q", r.Auth)
		}
	}

	var campaign map[string]any
	if err := json.Unmarshal([]byte(ts.requests[0].Body), &campaign); err != nil {
		t.Fatalf("campaign body: %v", err)
	}
	if campaign["title"] == "" {
		t.Error("seed campaign missing title")
	}
}

func TestDecodeJSONErrorBody(t *testing.T) {
	ts := newTestServer(t, nil)
	resp, err := ts.client().get(ctx, "/nope")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	var out map[string]any
	if err := decodeJSON(resp, &out); err == nil {
		t.Fatal("expected error for 404 response")
	}
}
