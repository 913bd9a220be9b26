package spotify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/amolrairikar/spotify-listening-history-app/internal/faults"
)

const recentlyPlayedBody = `{
	"items": [
		{
			"track": {
				"uri": "spotify:track:123",
				"name": "Test Track",
				"duration_ms": 210000,
				"popularity": 85,
				"album": {"name": "Test Album", "release_date": "2023-03-01"},
				"artists": [{"name": "Test Artist"}, {"name": "Second Artist"}],
				"external_urls": {"spotify": "https://open.spotify.com/track/123"}
			},
			"played_at": "2023-03-15T12:00:00.000Z"
		}
	]
}`

func newTestClient(server *httptest.Server) *Client {
	return &Client{
		httpClient: server.Client(),
		baseURL:    server.URL,
	}
}

func TestRecentlyPlayed(t *testing.T) {
	var gotAuth, gotAfter, gotLimit string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotAfter = r.URL.Query().Get("after")
		gotLimit = r.URL.Query().Get("limit")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(recentlyPlayedBody))
	}))
	defer server.Close()

	got, err := newTestClient(server).RecentlyPlayed(context.Background(), "test-access-token", 1678000000000, 50)
	if err != nil {
		t.Fatalf("RecentlyPlayed() error = %v", err)
	}

	if gotAuth != "Bearer test-access-token" {
		t.Errorf("Authorization header = %q, want bearer token", gotAuth)
	}
	if gotAfter != "1678000000000" || gotLimit != "50" {
		t.Errorf("query = after=%s limit=%s, want after=1678000000000 limit=50", gotAfter, gotLimit)
	}

	if len(got.Events) != 1 {
		t.Fatalf("got %d events, want 1", len(got.Events))
	}
	ev := got.Events[0]
	if ev.Track.URI != "spotify:track:123" {
		t.Errorf("URI = %q, want spotify:track:123", ev.Track.URI)
	}
	if ev.Track.DurationMS != 210000 || ev.Track.Popularity != 85 {
		t.Errorf("duration/popularity = %d/%d, want 210000/85", ev.Track.DurationMS, ev.Track.Popularity)
	}
	if len(ev.Track.Artists) != 2 || ev.Track.Artists[0].Name != "Test Artist" {
		t.Errorf("artists = %+v, want two artists starting with Test Artist", ev.Track.Artists)
	}
	if ev.PlayedAt != "2023-03-15T12:00:00.000Z" {
		t.Errorf("played_at = %q", ev.PlayedAt)
	}

	// The raw items array must round-trip verbatim as valid JSON.
	var items []map[string]any
	if err := json.Unmarshal(got.Raw, &items); err != nil {
		t.Fatalf("Raw is not a JSON array: %v", err)
	}
	if len(items) != 1 {
		t.Errorf("Raw contains %d items, want 1", len(items))
	}
}

func TestRecentlyPlayedEmptyWindow(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"items": []}`))
	}))
	defer server.Close()

	got, err := newTestClient(server).RecentlyPlayed(context.Background(), "token", 0, 0)
	if err != nil {
		t.Fatalf("RecentlyPlayed() error = %v", err)
	}
	if len(got.Events) != 0 {
		t.Errorf("got %d events, want 0", len(got.Events))
	}
}

func TestRecentlyPlayedErrorClassification(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		wantKind faults.Kind
	}{
		{"rate limited", http.StatusTooManyRequests, faults.KindTransient},
		{"server error", http.StatusInternalServerError, faults.KindTransient},
		{"bad gateway", http.StatusBadGateway, faults.KindTransient},
		{"expired token", http.StatusUnauthorized, faults.KindAuth},
		{"forbidden", http.StatusForbidden, faults.KindAuth},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(`{"error": {"status": 0, "message": "nope"}}`))
			}))
			defer server.Close()

			_, err := newTestClient(server).RecentlyPlayed(context.Background(), "token", 0, 50)
			if faults.KindOf(err) != tt.wantKind {
				t.Errorf("error kind = %v, want %v (err: %v)", faults.KindOf(err), tt.wantKind, err)
			}
		})
	}
}
