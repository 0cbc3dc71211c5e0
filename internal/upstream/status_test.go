package upstream

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snowday-platform/internal/models"
)

type fakeStatusSource struct {
	calls    int
	statuses map[string]models.SchoolStatusReport
	err      error
}

func (f *fakeStatusSource) SchoolStatuses(ctx context.Context) (map[string]models.SchoolStatusReport, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.statuses, nil
}

func TestCachedStatusSource_ServesFromCacheWithinTTL(t *testing.T) {
	inner := &fakeStatusSource{
		statuses: map[string]models.SchoolStatusReport{
			"parkland-sd": {Status: "closed"},
		},
	}
	clock := clockwork.NewFakeClock()
	cache := NewCachedStatusSource(inner, 5*time.Minute, clock, nil)

	ctx := context.Background()

	first, err := cache.SchoolStatuses(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, inner.calls)

	clock.Advance(4 * time.Minute)

	second, err := cache.SchoolStatuses(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, inner.calls)
	assert.Equal(t, first, second)
}

func TestCachedStatusSource_RefetchesAfterTTL(t *testing.T) {
	inner := &fakeStatusSource{
		statuses: map[string]models.SchoolStatusReport{
			"parkland-sd": {Status: "open"},
		},
	}
	clock := clockwork.NewFakeClock()
	cache := NewCachedStatusSource(inner, 5*time.Minute, clock, nil)

	ctx := context.Background()

	_, err := cache.SchoolStatuses(ctx)
	require.NoError(t, err)

	clock.Advance(5 * time.Minute)

	inner.statuses = map[string]models.SchoolStatusReport{
		"parkland-sd": {Status: "closed"},
	}

	statuses, err := cache.SchoolStatuses(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)
	assert.Equal(t, "closed", statuses["parkland-sd"].Status)
}

func TestCachedStatusSource_ErrorPassesThrough(t *testing.T) {
	inner := &fakeStatusSource{err: errors.New("scraper down")}
	cache := NewCachedStatusSource(inner, 5*time.Minute, clockwork.NewFakeClock(), nil)

	_, err := cache.SchoolStatuses(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, inner.calls)
}

func TestHTTPStatusSource(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"parkland-sd": {"status": "2 Hour Delay", "source": "district-site"}}`))
	}))
	defer server.Close()

	source := NewHTTPStatusSource(server.URL, 2*time.Second)

	statuses, err := source.SchoolStatuses(context.Background())
	require.NoError(t, err)
	require.Contains(t, statuses, "parkland-sd")
	assert.Equal(t, "2 Hour Delay", statuses["parkland-sd"].Status)
	assert.Equal(t, "district-site", statuses["parkland-sd"].Source)
}

func TestHTTPStatusSource_NonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	source := NewHTTPStatusSource(server.URL, 2*time.Second)

	_, err := source.SchoolStatuses(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}
