package metadata

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/contre95/fpbridge/src/features/config"
	"github.com/contre95/fpbridge/src/features/fingerprinting"
)

func newTestAPI(t *testing.T, handler http.HandlerFunc) *AcoustIDAPI {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := config.Defaults()
	cfg.AcoustID = config.AcoustID{
		Enabled:   true,
		ClientKey: "test-key",
		BaseURL:   srv.URL,
		Timeout:   5 * time.Second,
	}
	return NewAcoustIDService(config.NewManager(cfg))
}

func TestLookup_BestResult(t *testing.T) {
	api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/lookup" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("client") != "test-key" || q.Get("duration") != "188" || q.Get("fingerprint") != "AQADtE" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		w.Write([]byte(`{"status":"ok","results":[
			{"id":"low","score":0.41},
			{"id":"best","score":0.97,"recordings":[{"id":"rec-1","title":"Song","duration":188,
				"artists":[{"id":"a1","name":"Band"},{"id":"a2","name":"Guest"}]}]}
		]}`))
	})

	match, err := api.Lookup(context.Background(), "AQADtE", 187600*time.Millisecond)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if match == nil || match.AcoustID != "best" || match.Score != 0.97 {
		t.Fatalf("unexpected match %+v", match)
	}
	if len(match.Recordings) != 1 || match.Recordings[0].Title != "Song" {
		t.Fatalf("unexpected recordings %+v", match.Recordings)
	}
	if got := match.Recordings[0].Artists; len(got) != 2 || got[0] != "Band" || got[1] != "Guest" {
		t.Errorf("unexpected artists %v", got)
	}
}

func TestLookup_NoResults(t *testing.T) {
	api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ok","results":[]}`))
	})
	match, err := api.Lookup(context.Background(), "AQAA", time.Second)
	if err != nil || match != nil {
		t.Errorf("expected nil, nil, got %v, %v", match, err)
	}
}

func TestLookup_APIError(t *testing.T) {
	api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"status":"error","error":{"code":4,"message":"invalid API key"}}`))
	})
	_, err := api.Lookup(context.Background(), "AQAA", time.Second)
	if err == nil || err.Error() != "AcoustID API error: invalid API key" {
		t.Errorf("expected API error, got %v", err)
	}
}

func TestLookup_BadStatus(t *testing.T) {
	api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	if _, err := api.Lookup(context.Background(), "AQAA", time.Second); err == nil {
		t.Error("expected error on bad gateway")
	}
}

func TestLookup_Disabled(t *testing.T) {
	cfg := config.Defaults()
	cfg.AcoustID.Enabled = false
	api := NewAcoustIDService(config.NewManager(cfg))
	if _, err := api.Lookup(context.Background(), "AQAA", time.Second); !errors.Is(err, ErrAcoustIDDisabled) {
		t.Errorf("expected disabled error, got %v", err)
	}
	if _, err := api.Lookup(context.Background(), "AQAA", time.Second); !errors.Is(err, fingerprinting.ErrIdentifierDisabled) {
		t.Errorf("expected disabled error to match the identifier port, got %v", err)
	}

	cfg = config.Defaults()
	cfg.AcoustID.Enabled = true
	cfg.AcoustID.ClientKey = ""
	api = NewAcoustIDService(config.NewManager(cfg))
	if _, err := api.Lookup(context.Background(), "AQAA", time.Second); !errors.Is(err, ErrAcoustIDDisabled) {
		t.Errorf("expected missing key error, got %v", err)
	}
}
