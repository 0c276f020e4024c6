package directions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/UnknownOlympus/nightspot/internal/models"
	"golang.org/x/time/rate"
)

// NaverBaseURL is the Naver Cloud driving directions endpoint.
const NaverBaseURL = "https://naveropenapi.apigw.ntruss.com/map-direction/v1/driving"

// HTTPClient defines the interface for making HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// ErrNoRoute is returned when the provider answered without any route.
var ErrNoRoute = errors.New("no route found")

// kst is the zone Naver reports departure times in.
var kst = time.FixedZone("KST", 9*60*60)

// NaverProvider requests driving routes from the Naver Directions 5 API.
type NaverProvider struct {
	client  HTTPClient
	baseURL string
	keyID   string
	key     string
	log     *slog.Logger
	limiter *rate.Limiter
}

type naverResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Route   struct {
		Traoptimal []struct {
			Summary struct {
				Distance      int    `json:"distance"`
				Duration      int64  `json:"duration"`
				DepartureTime string `json:"departureTime"`
			} `json:"summary"`
			Path  [][2]float64 `json:"path"`
			Guide []struct {
				PointIndex   int    `json:"pointIndex"`
				Type         int    `json:"type"`
				Instructions string `json:"instructions"`
				Distance     int    `json:"distance"`
				Duration     int64  `json:"duration"`
			} `json:"guide"`
		} `json:"traoptimal"`
	} `json:"route"`
}

// NewNaverProvider creates a Naver provider with the given API credentials.
func NewNaverProvider(keyID, key string, rateLimit int, log *slog.Logger) *NaverProvider {
	const timeout = 10

	return NewNaverProviderWithClient(
		&http.Client{Timeout: timeout * time.Second},
		keyID, key,
		rate.NewLimiter(rate.Limit(rateLimit), rateLimit),
		log,
	)
}

// NewNaverProviderWithClient allows injecting custom HTTP client and limiter.
func NewNaverProviderWithClient(
	client HTTPClient,
	keyID, key string,
	limiter *rate.Limiter,
	log *slog.Logger,
) *NaverProvider {
	return &NaverProvider{
		client:  client,
		baseURL: NaverBaseURL,
		keyID:   keyID,
		key:     key,
		log:     log,
		limiter: limiter,
	}
}

// Route requests the optimal driving route from start to end.
// Any response code other than 0 is reported as a failure.
func (np *NaverProvider) Route(ctx context.Context, start, end models.Coordinates) (*models.Route, error) {
	if err := np.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limit exceeded: %w", ErrDirections, err)
	}

	reqURL, err := url.Parse(np.baseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse base URL: %w", ErrDirections, err)
	}

	query := reqURL.Query()
	query.Set("start", lonLat(start))
	query.Set("goal", lonLat(end))
	reqURL.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create request: %w", ErrDirections, err)
	}
	req.Header.Set("X-NCP-APIGW-API-KEY-ID", np.keyID)
	req.Header.Set("X-NCP-APIGW-API-KEY", np.key)

	np.log.DebugContext(ctx, "Requesting route from Naver", "start", query.Get("start"), "goal", query.Get("goal"))

	resp, err := np.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to execute request: %w", ErrDirections, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response body: %w", ErrDirections, err)
	}

	if resp.StatusCode != http.StatusOK {
		np.log.ErrorContext(ctx, "Naver API error", "status", resp.StatusCode, "body", string(body))
		return nil, fmt.Errorf("%w: naver API returned status %d", ErrDirections, resp.StatusCode)
	}

	var result naverResponse
	if err = json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("%w: failed to decode naver response: %w", ErrDirections, err)
	}

	if result.Code != 0 {
		return nil, fmt.Errorf("%w: naver code %d: %s", ErrDirections, result.Code, result.Message)
	}
	if len(result.Route.Traoptimal) == 0 {
		return nil, fmt.Errorf("%w: %w", ErrDirections, ErrNoRoute)
	}

	optimal := result.Route.Traoptimal[0]
	route := models.Route{
		Path: make([]models.Coordinates, 0, len(optimal.Path)),
		Summary: models.RouteSummary{
			DistanceMeters: optimal.Summary.Distance,
			Duration:       time.Duration(optimal.Summary.Duration) * time.Millisecond,
		},
		Guide: make([]models.GuideStep, 0, len(optimal.Guide)),
	}
	if departure, errParse := time.ParseInLocation("2006-01-02T15:04:05", optimal.Summary.DepartureTime, kst); errParse == nil {
		route.Summary.DepartureTime = departure
	}
	for _, p := range optimal.Path {
		route.Path = append(route.Path, models.Coordinates{Latitude: p[1], Longitude: p[0]})
	}
	for _, g := range optimal.Guide {
		route.Guide = append(route.Guide, models.GuideStep{
			DistanceMeters: g.Distance,
			Duration:       time.Duration(g.Duration) * time.Millisecond,
			PointIndex:     g.PointIndex,
			Instructions:   g.Instructions,
		})
	}

	return &route, nil
}

func lonLat(c models.Coordinates) string {
	return strconv.FormatFloat(c.Longitude, 'f', -1, 64) + "," + strconv.FormatFloat(c.Latitude, 'f', -1, 64)
}
