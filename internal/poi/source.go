package poi

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/UnknownOlympus/nightspot/internal/models"
)

// SuccessCode is the result code of a successful Seoul open-data response.
const SuccessCode = "INFO-000"

// Common errors for catalog sources.
var (
	ErrResultCode = errors.New("catalog source returned non-success result code")
	ErrMalformed  = errors.New("catalog payload is malformed")
)

// Source fetches the raw night-view catalog.
type Source interface {
	Fetch(ctx context.Context) ([]Record, error)
}

// Record is one row of the viewNightSpot dataset. Every field is a string in the payload.
type Record struct {
	Num           string `json:"NUM"`
	Category      string `json:"SUBJECT_CD"`
	Title         string `json:"TITLE"`
	Address       string `json:"ADDR"`
	Latitude      string `json:"LA"`
	Longitude     string `json:"LO"`
	Phone         string `json:"TEL_NO"`
	URL           string `json:"URL"`
	OperatingTime string `json:"OPERATING_TIME"`
	FreeEntry     string `json:"FREE_YN"`
	EntranceFee   string `json:"ENTR_FEE"`
	Contents      string `json:"CONTENTS"`
	Subway        string `json:"SUBWAY"`
	Bus           string `json:"BUS"`
	Parking       string `json:"PARKING_INFO"`
	Registered    string `json:"REG_DATE"`
	Modified      string `json:"MOD_DATE"`
}

type result struct {
	Code    string `json:"CODE"`
	Message string `json:"MESSAGE"`
}

// envelope is the dataset wrapper. Errors come back as a bare RESULT object.
type envelope struct {
	Dataset *struct {
		TotalCount int      `json:"list_total_count"`
		Result     result   `json:"RESULT"`
		Rows       []Record `json:"row"`
	} `json:"viewNightSpot"`
	Result *result `json:"RESULT"`
}

// ToPlaces converts records into catalog places.
// Ids are "<lat>_<lon>" taken verbatim from the payload; a record whose id is already
// taken gets its record number appended so that ids stay unique.
func ToPlaces(records []Record) []models.Place {
	places := make([]models.Place, 0, len(records))
	seen := make(map[string]struct{}, len(records))

	for _, rec := range records {
		lat, _ := strconv.ParseFloat(strings.TrimSpace(rec.Latitude), 64)
		lon, _ := strconv.ParseFloat(strings.TrimSpace(rec.Longitude), 64)

		id := strings.TrimSpace(rec.Latitude) + "_" + strings.TrimSpace(rec.Longitude)
		if _, dup := seen[id]; dup {
			id += "_" + rec.Num
		}
		seen[id] = struct{}{}

		places = append(places, models.Place{
			ID:       id,
			Number:   rec.Num,
			Category: categoryOrOther(rec.Category),
			Title:    strings.TrimSpace(rec.Title),
			Address:  strings.TrimSpace(rec.Address),
			Position: models.Coordinates{Latitude: lat, Longitude: lon},
			Details: models.PlaceDetails{
				Hours:       rec.OperatingTime,
				Phone:       rec.Phone,
				URL:         rec.URL,
				Description: rec.Contents,
				FreeEntry:   rec.FreeEntry,
				Fee:         rec.EntranceFee,
				Subway:      rec.Subway,
				Bus:         rec.Bus,
				Parking:     rec.Parking,
			},
			Origin:     models.OriginCatalog,
			Registered: parseDate(rec.Registered),
			Modified:   parseDate(rec.Modified),
		})
	}

	return places
}

func categoryOrOther(code string) string {
	code = strings.TrimSpace(code)
	for _, c := range models.Categories {
		if c == code {
			return c
		}
	}

	return models.CategoryOther
}

func parseDate(s string) time.Time {
	const layout = "2006-01-02"
	if len(s) < len(layout) {
		return time.Time{}
	}
	t, err := time.Parse(layout, s[:len(layout)])
	if err != nil {
		return time.Time{}
	}

	return t
}
