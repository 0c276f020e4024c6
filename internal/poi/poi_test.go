package poi_test

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/Flaque/filet"
	"github.com/UnknownOlympus/nightspot/internal/models"
	"github.com/UnknownOlympus/nightspot/internal/poi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

type mockHTTPClient struct {
	doFunc func(req *http.Request) (*http.Response, error)
}

func (m *mockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	return m.doFunc(req)
}

const catalogPayload = `{"viewNightSpot": {
	"list_total_count": 3,
	"RESULT": {"CODE": "INFO-000", "MESSAGE": "정상 처리되었습니다"},
	"row": [
		{"NUM": "1", "SUBJECT_CD": "공원/광장", "TITLE": "여의도 한강공원", "ADDR": "영등포구 여의동로 330",
		 "LA": "37.5283", "LO": "126.9326", "OPERATING_TIME": "24시간", "FREE_YN": "Y",
		 "REG_DATE": "2011-09-02 00:00:00.0"},
		{"NUM": "2", "SUBJECT_CD": "문화/체육", "TITLE": "N서울타워", "ADDR": "용산구 남산공원길 105",
		 "LA": "37.5512", "LO": "126.9882"},
		{"NUM": "7", "SUBJECT_CD": "야경", "TITLE": "여의도 물빛광장", "ADDR": "영등포구 여의동로 330",
		 "LA": "37.5283", "LO": "126.9326"}
	]
}}`

func TestToPlaces(t *testing.T) {
	records := []poi.Record{
		{Num: "1", Category: models.CategoryPark, Title: " 여의도 한강공원 ", Latitude: "37.5283", Longitude: "126.9326",
			Registered: "2011-09-02 00:00:00.0"},
		{Num: "7", Category: "unknown", Title: "물빛광장", Latitude: "37.5283", Longitude: "126.9326"},
		{Num: "9", Title: "broken", Latitude: "", Longitude: ""},
	}

	places := poi.ToPlaces(records)

	require.Len(t, places, 3)
	assert.Equal(t, "37.5283_126.9326", places[0].ID)
	assert.Equal(t, "여의도 한강공원", places[0].Title)
	assert.Equal(t, models.OriginCatalog, places[0].Origin)
	assert.Equal(t, time.Date(2011, 9, 2, 0, 0, 0, 0, time.UTC), places[0].Registered)
	assert.Equal(t, "37.5283_126.9326_7", places[1].ID)
	assert.Equal(t, models.CategoryOther, places[1].Category)
	assert.False(t, places[2].Position.Valid())
}

func TestSeoulSource_Fetch(t *testing.T) {
	ctx := t.Context()
	logger := slog.Default()
	limiter := rate.NewLimiter(rate.Inf, 0)

	respond := func(status int, body string) *mockHTTPClient {
		return &mockHTTPClient{doFunc: func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "/test-key/json/viewNightSpot/1/1000", req.URL.Path)
			return &http.Response{StatusCode: status, Body: io.NopCloser(bytes.NewBufferString(body))}, nil
		}}
	}

	t.Run("successful fetch", func(t *testing.T) {
		source := poi.NewSeoulSourceWithClient(respond(http.StatusOK, catalogPayload), "test-key", limiter, logger)

		records, err := source.Fetch(ctx)

		require.NoError(t, err)
		require.Len(t, records, 3)
		assert.Equal(t, "N서울타워", records[1].Title)
		assert.Equal(t, "126.9882", records[1].Longitude)
	})

	t.Run("non-success result code", func(t *testing.T) {
		source := poi.NewSeoulSourceWithClient(
			respond(http.StatusOK, `{"RESULT": {"CODE": "INFO-100", "MESSAGE": "인증키가 유효하지 않습니다."}}`),
			"test-key", limiter, logger)

		records, err := source.Fetch(ctx)

		require.Nil(t, records)
		require.ErrorIs(t, err, poi.ErrResultCode)
		assert.ErrorContains(t, err, "INFO-100")
	})

	t.Run("dataset with error code", func(t *testing.T) {
		source := poi.NewSeoulSourceWithClient(
			respond(http.StatusOK, `{"viewNightSpot": {"RESULT": {"CODE": "ERROR-500", "MESSAGE": "서버 오류"}}}`),
			"test-key", limiter, logger)

		_, err := source.Fetch(ctx)

		require.ErrorIs(t, err, poi.ErrResultCode)
	})

	t.Run("malformed payload", func(t *testing.T) {
		source := poi.NewSeoulSourceWithClient(respond(http.StatusOK, `<html>`), "test-key", limiter, logger)

		_, err := source.Fetch(ctx)

		require.ErrorIs(t, err, poi.ErrMalformed)
	})

	t.Run("HTTP error status", func(t *testing.T) {
		source := poi.NewSeoulSourceWithClient(respond(http.StatusServiceUnavailable, ``), "test-key", limiter, logger)

		_, err := source.Fetch(ctx)

		assert.ErrorContains(t, err, "returned status 503")
	})

	t.Run("transport error", func(t *testing.T) {
		source := poi.NewSeoulSourceWithClient(&mockHTTPClient{
			doFunc: func(_ *http.Request) (*http.Response, error) { return nil, assert.AnError },
		}, "test-key", limiter, logger)

		_, err := source.Fetch(ctx)

		require.ErrorIs(t, err, assert.AnError)
	})

	t.Run("rate limit exceeded", func(t *testing.T) {
		canceled, cancel := context.WithCancel(context.Background())
		cancel()
		source := poi.NewSeoulSourceWithClient(&mockHTTPClient{
			doFunc: func(_ *http.Request) (*http.Response, error) {
				t.Fatal("HTTP client should not be called when rate limit blocks")
				return &http.Response{}, nil
			},
		}, "test-key", rate.NewLimiter(rate.Every(time.Second), 1), logger)

		_, err := source.Fetch(canceled)

		assert.ErrorContains(t, err, "rate limit exceeded")
	})
}

func TestFileSource_Fetch(t *testing.T) {
	defer filet.CleanUp(t)

	t.Run("saved API response", func(t *testing.T) {
		file := filet.TmpFile(t, "", catalogPayload)

		records, err := poi.NewFileSource(file.Name()).Fetch(t.Context())

		require.NoError(t, err)
		assert.Len(t, records, 3)
	})

	t.Run("bare record list", func(t *testing.T) {
		file := filet.TmpFile(t, "", `[{"NUM": "1", "TITLE": "반포대교", "LA": "37.5122", "LO": "126.9960"}]`)

		records, err := poi.NewFileSource(file.Name()).Fetch(t.Context())

		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, "반포대교", records[0].Title)
	})

	t.Run("missing file", func(t *testing.T) {
		dir := filet.TmpDir(t, "")

		_, err := poi.NewFileSource(filepath.Join(dir, "absent.json")).Fetch(t.Context())

		assert.ErrorContains(t, err, "failed to read catalog file")
	})
}

func TestNewSource(t *testing.T) {
	logger := slog.Default()

	source, err := poi.NewSource(poi.SourceConfig{Type: poi.SourceTypeSeoul, APIKey: "key", Logger: logger})
	require.NoError(t, err)
	assert.IsType(t, &poi.SeoulSource{}, source)

	source, err = poi.NewSource(poi.SourceConfig{Type: poi.SourceTypeFile, Path: "catalog.json"})
	require.NoError(t, err)
	assert.IsType(t, &poi.FileSource{}, source)

	_, err = poi.NewSource(poi.SourceConfig{Type: poi.SourceTypeSeoul, Logger: logger})
	require.ErrorContains(t, err, "API key is required")

	_, err = poi.NewSource(poi.SourceConfig{Type: poi.SourceTypeFile})
	require.ErrorContains(t, err, "path is required")

	_, err = poi.NewSource(poi.SourceConfig{Type: "ftp"})
	require.ErrorContains(t, err, "unsupported source type: ftp")
}
