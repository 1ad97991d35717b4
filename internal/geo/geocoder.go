package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"googlemaps.github.io/maps"
)

var ErrNoAddressFound = fmt.Errorf("no address found")

// Geocoder - обратное геокодирование координат в адрес
type Geocoder interface {
	ReverseGeocode(ctx context.Context, lat, lon float64) (string, error)
}

type MultipleGeocoderErrors struct {
	errors []error
}

func (e *MultipleGeocoderErrors) Error() string {
	errorStrings := make([]string, len(e.errors))
	for i, err := range e.errors {
		errorStrings[i] = fmt.Sprintf("#%d: %s", i, err.Error())
	}
	return strings.Join(errorStrings, "\n")
}

// GoogleGeocoder - геокодер на Google Maps Geocoding API
type GoogleGeocoder struct {
	client  *maps.Client
	timeout time.Duration
}

func NewGoogleGeocoder(client *maps.Client, timeout time.Duration) *GoogleGeocoder {
	return &GoogleGeocoder{
		client:  client,
		timeout: timeout,
	}
}

func (g *GoogleGeocoder) ReverseGeocode(ctx context.Context, lat, lon float64) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	results, err := g.client.ReverseGeocode(ctx, &maps.GeocodingRequest{
		LatLng: &maps.LatLng{
			Lat: lat,
			Lng: lon,
		},
		Language: "en",
	})
	if err != nil {
		return "", err
	}
	if len(results) == 0 || results[0].FormattedAddress == "" {
		return "", ErrNoAddressFound
	}
	return results[0].FormattedAddress, nil
}

// NominatimGeocoder - геокодер OpenStreetMap Nominatim
type NominatimGeocoder struct {
	baseURL    string
	httpClient *http.Client
}

func NewNominatimGeocoder(baseURL string, timeout time.Duration) *NominatimGeocoder {
	return &NominatimGeocoder{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

type nominatimResponse struct {
	DisplayName string `json:"display_name"`
	Error       string `json:"error"`
}

func (n *NominatimGeocoder) ReverseGeocode(ctx context.Context, lat, lon float64) (string, error) {
	q := url.Values{}
	q.Set("format", "json")
	q.Set("lat", strconv.FormatFloat(lat, 'f', 6, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', 6, 64))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.baseURL+"/reverse?"+q.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("failed to create nominatim request: %w", err)
	}
	// Nominatim требует идентифицирующий User-Agent
	req.Header.Set("User-Agent", "road-incident-triage/1.0")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("nominatim request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("nominatim error %d", resp.StatusCode)
	}

	var body nominatimResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("failed to decode nominatim response: %w", err)
	}
	if body.Error != "" || body.DisplayName == "" {
		return "", ErrNoAddressFound
	}
	return body.DisplayName, nil
}

// MultipleGeocoder опрашивает геокодеры по порядку до первого успешного
type MultipleGeocoder struct {
	geocoders []Geocoder
}

func NewMultipleGeocoder(geocoders ...Geocoder) *MultipleGeocoder {
	return &MultipleGeocoder{
		geocoders: geocoders,
	}
}

func (m *MultipleGeocoder) ReverseGeocode(ctx context.Context, lat, lon float64) (string, error) {
	var errors []error
	for _, g := range m.geocoders {
		address, err := g.ReverseGeocode(ctx, lat, lon)
		if err != nil {
			errors = append(errors, err)
			continue
		}
		return address, nil
	}
	if len(errors) == 0 {
		return "", ErrNoAddressFound
	}
	return "", &MultipleGeocoderErrors{errors: errors}
}
