package geo

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"googlemaps.github.io/maps"
)

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{})
	return logger
}

type geocoderFunc func(ctx context.Context, lat, lon float64) (string, error)

func (f geocoderFunc) ReverseGeocode(ctx context.Context, lat, lon float64) (string, error) {
	return f(ctx, lat, lon)
}

type blockingLocator struct{}

func (blockingLocator) CurrentPosition(ctx context.Context) (Position, error) {
	<-ctx.Done()
	return Position{}, ctx.Err()
}

func TestDistanceMeters(t *testing.T) {
	assert.InDelta(t, 0, DistanceMeters(55.75, 37.61, 55.75, 37.61), 1e-6)
	// один градус широты примерно 111.2 км
	assert.InDelta(t, 111195, DistanceMeters(0, 0, 1, 0), 50)
	assert.True(t, Within(12.9716, 77.5946, 12.9716, 77.5950, 100))
	assert.False(t, Within(12.9716, 77.5946, 12.9816, 77.5946, 500))
}

func TestResolver_StaticPositionWithAddress(t *testing.T) {
	lat, lon := 12.9716, 77.5946
	r := NewResolver(NewStaticLocator(&lat, &lon), geocoderFunc(func(context.Context, float64, float64) (string, error) {
		return "MG Road, Bengaluru", nil
	}), time.Second, newTestLogger())

	loc := r.Locate(context.Background())
	require.NotNil(t, loc)
	assert.Equal(t, lat, loc.Latitude)
	assert.Equal(t, "MG Road, Bengaluru", loc.Address)
}

func TestResolver_GeocoderFailureFallsBackToCoordinates(t *testing.T) {
	lat, lon := 12.9716, 77.5946
	r := NewResolver(NewStaticLocator(&lat, &lon), geocoderFunc(func(context.Context, float64, float64) (string, error) {
		return "", errors.New("quota exceeded")
	}), time.Second, newTestLogger())

	loc := r.Locate(context.Background())
	require.NotNil(t, loc)
	assert.Equal(t, "12.971600, 77.594600", loc.Address)
}

func TestResolver_NoPosition(t *testing.T) {
	r := NewResolver(NewStaticLocator(nil, nil), nil, time.Second, newTestLogger())
	assert.Nil(t, r.Locate(context.Background()))
}

func TestResolver_LocatorTimeout(t *testing.T) {
	r := NewResolver(blockingLocator{}, nil, 20*time.Millisecond, newTestLogger())
	start := time.Now()
	assert.Nil(t, r.Locate(context.Background()))
	assert.Less(t, time.Since(start), time.Second)
}

func TestNominatimGeocoder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/reverse", r.URL.Path)
		assert.Equal(t, "12.971600", r.URL.Query().Get("lat"))
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte(`{"display_name":"Brigade Road, Bengaluru"}`))
	}))
	defer srv.Close()

	g := NewNominatimGeocoder(srv.URL+"/", time.Second)
	address, err := g.ReverseGeocode(context.Background(), 12.9716, 77.5946)
	require.NoError(t, err)
	assert.Equal(t, "Brigade Road, Bengaluru", address)
}

func TestNominatimGeocoder_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":"Unable to geocode"}`))
	}))
	defer srv.Close()

	_, err := NewNominatimGeocoder(srv.URL, time.Second).ReverseGeocode(context.Background(), 0, 0)
	assert.ErrorIs(t, err, ErrNoAddressFound)
}

func TestGoogleGeocoder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"OK","results":[{"formatted_address":"Residency Rd, Bengaluru"}]}`))
	}))
	defer srv.Close()

	client, err := maps.NewClient(maps.WithAPIKey("test-key"), maps.WithBaseURL(srv.URL))
	require.NoError(t, err)

	address, err := NewGoogleGeocoder(client, time.Second).ReverseGeocode(context.Background(), 12.97, 77.59)
	require.NoError(t, err)
	assert.Equal(t, "Residency Rd, Bengaluru", address)
}

func TestMultipleGeocoder(t *testing.T) {
	failing := geocoderFunc(func(context.Context, float64, float64) (string, error) {
		return "", errors.New("down")
	})
	working := geocoderFunc(func(context.Context, float64, float64) (string, error) {
		return "Somewhere", nil
	})

	address, err := NewMultipleGeocoder(failing, working).ReverseGeocode(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.Equal(t, "Somewhere", address)

	_, err = NewMultipleGeocoder(failing, failing).ReverseGeocode(context.Background(), 1, 2)
	var multi *MultipleGeocoderErrors
	require.ErrorAs(t, err, &multi)
	assert.Contains(t, err.Error(), "#1: down")
}
