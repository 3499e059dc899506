// Package geo holds captured device locations and best-effort reverse geocoding.
package geo

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

var (
	ErrLatitudeRange  = errors.New("latitude must be between -90 and 90")
	ErrLongitudeRange = errors.New("longitude must be between -180 and 180")
)

type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Address   string  `json:"address,omitempty"`
}

func ValidateCoordinates(lat, lng float64) error {
	if math.IsNaN(lat) || lat < -90 || lat > 90 {
		return ErrLatitudeRange
	}
	if math.IsNaN(lng) || lng < -180 || lng > 180 {
		return ErrLongitudeRange
	}
	return nil
}

// FormatCoordinate renders a coordinate the way it is stored.
func FormatCoordinate(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ParseCoordinates parses a manually entered coordinate pair.
// Both values empty means "no location" and yields ok == false.
func ParseCoordinates(lat, lng string) (loc Location, ok bool, err error) {
	lat, lng = strings.TrimSpace(lat), strings.TrimSpace(lng)
	if lat == "" && lng == "" {
		return Location{}, false, nil
	}
	loc.Latitude, err = strconv.ParseFloat(lat, 64)
	if err != nil {
		return Location{}, false, ErrLatitudeRange
	}
	loc.Longitude, err = strconv.ParseFloat(lng, 64)
	if err != nil {
		return Location{}, false, ErrLongitudeRange
	}
	if err = ValidateCoordinates(loc.Latitude, loc.Longitude); err != nil {
		return Location{}, false, err
	}
	return loc, true, nil
}

type Geocoder interface {
	// Reverse resolves coordinates to a human readable address.
	Reverse(ctx context.Context, lat, lng float64) (string, error)
}

// Noop never resolves anything.
type Noop struct{}

func (Noop) Reverse(context.Context, float64, float64) (string, error) {
	return "", nil
}

// Nominatim queries the reverse endpoint of an OpenStreetMap Nominatim server.
type Nominatim struct {
	BaseURL   string
	UserAgent string
	Client    *http.Client
}

func NewNominatim(baseURL string, timeout time.Duration) *Nominatim {
	return &Nominatim{
		BaseURL:   strings.TrimRight(baseURL, "/"),
		UserAgent: "qsurvey/1.0",
		Client:    &http.Client{Timeout: timeout},
	}
}

type nominatimReply struct {
	DisplayName string `json:"display_name"`
	Error       string `json:"error"`
}

func (n *Nominatim) Reverse(ctx context.Context, lat, lng float64) (string, error) {
	q := url.Values{}
	q.Set("format", "jsonv2")
	q.Set("lat", FormatCoordinate(lat))
	q.Set("lon", FormatCoordinate(lng))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.BaseURL+"/reverse?"+q.Encode(), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", n.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := n.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("nominatim: %s", resp.Status)
	}

	var reply nominatimReply
	if err = json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return "", fmt.Errorf("nominatim: %w", err)
	}
	if reply.Error != "" {
		return "", fmt.Errorf("nominatim: %s", reply.Error)
	}
	return reply.DisplayName, nil
}

// New returns a Nominatim geocoder for baseURL, or Noop when baseURL is empty.
func New(baseURL string, timeout time.Duration) Geocoder {
	if baseURL == "" {
		return Noop{}
	}
	return NewNominatim(baseURL, timeout)
}
