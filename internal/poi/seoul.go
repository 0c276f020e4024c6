package poi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// SeoulBaseURL is the Seoul open-data API root.
const SeoulBaseURL = "http://openapi.seoul.go.kr:8088"

// pageSize is the largest page the API serves in one request.
const pageSize = 1000

// HTTPClient defines the interface for making HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// SeoulSource reads the viewNightSpot dataset from the Seoul open-data API.
type SeoulSource struct {
	client  HTTPClient
	baseURL string
	apiKey  string
	log     *slog.Logger
	limiter *rate.Limiter
}

// NewSeoulSource creates a SeoulSource using the default HTTP client.
func NewSeoulSource(apiKey string, rateLimit int, log *slog.Logger) *SeoulSource {
	const timeout = 10

	return NewSeoulSourceWithClient(
		&http.Client{Timeout: timeout * time.Second},
		apiKey,
		rate.NewLimiter(rate.Limit(rateLimit), rateLimit),
		log,
	)
}

// NewSeoulSourceWithClient allows injecting custom HTTP client and limiter.
func NewSeoulSourceWithClient(client HTTPClient, apiKey string, limiter *rate.Limiter, log *slog.Logger) *SeoulSource {
	return &SeoulSource{
		client:  client,
		baseURL: SeoulBaseURL,
		apiKey:  apiKey,
		log:     log,
		limiter: limiter,
	}
}

// Fetch downloads the first page of the dataset, which holds the whole catalog.
func (s *SeoulSource) Fetch(ctx context.Context) ([]Record, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit exceeded: %w", err)
	}

	reqURL := fmt.Sprintf("%s/%s/json/viewNightSpot/1/%d", s.baseURL, s.apiKey, pageSize)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute catalog request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		s.log.ErrorContext(ctx, "Seoul open-data API error", "status", resp.StatusCode, "body", string(body))
		return nil, fmt.Errorf("seoul open-data API returned status %d", resp.StatusCode)
	}

	records, err := decode(body)
	if err != nil {
		return nil, err
	}

	s.log.DebugContext(ctx, "Catalog fetched", "records", len(records))

	return records, nil
}

// decode accepts the dataset envelope or a bare list of records.
func decode(body []byte) ([]Record, error) {
	var records []Record
	if err := json.Unmarshal(body, &records); err == nil {
		return records, nil
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	switch {
	case env.Dataset != nil:
		if env.Dataset.Result.Code != SuccessCode {
			return nil, fmt.Errorf("%w: %s %s", ErrResultCode, env.Dataset.Result.Code, env.Dataset.Result.Message)
		}
		return env.Dataset.Rows, nil
	case env.Result != nil:
		return nil, fmt.Errorf("%w: %s %s", ErrResultCode, env.Result.Code, env.Result.Message)
	default:
		return nil, fmt.Errorf("%w: no dataset in payload", ErrMalformed)
	}
}
