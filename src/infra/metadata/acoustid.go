package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/contre95/fpbridge/src/features/config"
	"github.com/contre95/fpbridge/src/features/fingerprinting"
)

const defaultAcoustIDBaseURL = "https://api.acoustid.org"

// ErrAcoustIDDisabled is returned when lookups are turned off or no client key is set.
var ErrAcoustIDDisabled = fmt.Errorf("AcoustID lookup is disabled in configuration: %w", fingerprinting.ErrIdentifierDisabled)

// AcoustIDResponse represents response from AcoustID API
type AcoustIDResponse struct {
	Status string `json:"status"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
	Results []AcoustIDResult `json:"results"`
}

// AcoustIDResult represents a single result from AcoustID
type AcoustIDResult struct {
	ID         string              `json:"id"`
	Score      float64             `json:"score"`
	Recordings []AcoustIDRecording `json:"recordings"`
}

// AcoustIDRecording represents recording information from AcoustID
type AcoustIDRecording struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Artists []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"artists"`
	Duration int `json:"duration"`
}

// AcoustIDAPI implements fingerprinting.Identifier against the AcoustID web service.
type AcoustIDAPI struct {
	config *config.Manager
	client *http.Client
}

// NewAcoustIDService creates a new AcoustID identifier.
func NewAcoustIDService(cfg *config.Manager) *AcoustIDAPI {
	return &AcoustIDAPI{
		config: cfg,
		client: &http.Client{},
	}
}

// Lookup resolves fingerprint to the best scoring AcoustID result. It returns
// nil, nil when AcoustID knows nothing about the fingerprint.
func (s *AcoustIDAPI) Lookup(ctx context.Context, fingerprint string, duration time.Duration) (*fingerprinting.Match, error) {
	cfg := s.config.Get().AcoustID

	if !cfg.Enabled {
		return nil, ErrAcoustIDDisabled
	}
	if cfg.ClientKey == "" {
		return nil, fmt.Errorf("%w: AcoustID client key not configured", ErrAcoustIDDisabled)
	}

	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultAcoustIDBaseURL
	}

	params := url.Values{}
	params.Add("client", cfg.ClientKey)
	params.Add("meta", "recordings")
	params.Add("duration", fmt.Sprintf("%d", int(duration.Round(time.Second)/time.Second)))
	params.Add("fingerprint", fingerprint)

	requestURL := fmt.Sprintf("%s/v2/lookup?%s", strings.TrimRight(baseURL, "/"), params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to query AcoustID API: %w", err)
	}
	defer resp.Body.Close()

	var response AcoustIDResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("AcoustID API returned status: %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("failed to parse AcoustID response: %w", err)
	}

	if response.Status != "ok" {
		if response.Error != nil {
			return nil, fmt.Errorf("AcoustID API error: %s", response.Error.Message)
		}
		return nil, fmt.Errorf("AcoustID API returned status: %s", response.Status)
	}

	if len(response.Results) == 0 {
		slog.Debug("AcoustID returned no results", "duration", duration)
		return nil, nil
	}

	best := response.Results[0]
	for _, result := range response.Results[1:] {
		if result.Score > best.Score {
			best = result
		}
	}

	return toMatch(best), nil
}

func toMatch(result AcoustIDResult) *fingerprinting.Match {
	match := &fingerprinting.Match{
		AcoustID: result.ID,
		Score:    result.Score,
	}
	for _, rec := range result.Recordings {
		r := fingerprinting.Recording{
			ID:       rec.ID,
			Title:    rec.Title,
			Duration: rec.Duration,
		}
		for _, a := range rec.Artists {
			r.Artists = append(r.Artists, a.Name)
		}
		match.Recordings = append(match.Recordings, r)
	}
	return match
}
