package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"snowday-platform/internal/models"
	"snowday-platform/pkg/metrics"
)

// HTTPStatusSource reads school statuses from a JSON endpoint published by
// the scraping service: a mapping of school code to status report.
type HTTPStatusSource struct {
	url    string
	client *http.Client
}

// NewHTTPStatusSource creates a status source backed by a JSON endpoint.
func NewHTTPStatusSource(url string, timeout time.Duration) *HTTPStatusSource {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPStatusSource{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

func (s *HTTPStatusSource) SchoolStatuses(ctx context.Context) (map[string]models.SchoolStatusReport, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch school statuses: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch school statuses: unexpected status %d", resp.StatusCode)
	}

	var statuses map[string]models.SchoolStatusReport
	if err := json.NewDecoder(resp.Body).Decode(&statuses); err != nil {
		return nil, fmt.Errorf("decode school statuses: %w", err)
	}
	return statuses, nil
}

// CachedStatusSource decorates a StatusSource with a wall-clock TTL cache so
// repeated lookups within a few minutes do not hammer the scraper. Entries
// expire by age only; there is no invalidation on write. The clock is
// injected so tests can advance time deterministically.
type CachedStatusSource struct {
	inner   StatusSource
	ttl     time.Duration
	clock   clockwork.Clock
	metrics *metrics.Collector

	mu        sync.Mutex
	value     map[string]models.SchoolStatusReport
	fetchedAt time.Time
}

// NewCachedStatusSource creates a TTL cache decorator around a status source.
func NewCachedStatusSource(inner StatusSource, ttl time.Duration, clock clockwork.Clock, metricsCollector *metrics.Collector) *CachedStatusSource {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &CachedStatusSource{
		inner:   inner,
		ttl:     ttl,
		clock:   clock,
		metrics: metricsCollector,
	}
}

func (c *CachedStatusSource) SchoolStatuses(ctx context.Context) (map[string]models.SchoolStatusReport, error) {
	c.mu.Lock()
	if c.value != nil && c.clock.Since(c.fetchedAt) < c.ttl {
		cached := c.value
		c.mu.Unlock()
		if c.metrics != nil {
			c.metrics.StatusCacheHits.Inc()
		}
		return cached, nil
	}
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.StatusCacheMisses.Inc()
	}

	statuses, err := c.inner.SchoolStatuses(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.value = statuses
	c.fetchedAt = c.clock.Now()
	c.mu.Unlock()

	return statuses, nil
}
