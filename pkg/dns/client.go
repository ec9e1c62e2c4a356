package dns

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/zpam/spamscan/pkg/task"
	"go.uber.org/zap"
)

// DNS response codes used by the JSON API
const (
	rcodeNoError  = 0
	rcodeNXDomain = 3
)

// Answer is one resource record of a DoH JSON response
type Answer struct {
	Name string `json:"name"`
	Type int    `json:"type"`
	Data string `json:"data"`
}

// Response is the minimal DoH JSON response
type Response struct {
	Status int      `json:"Status"`
	Answer []Answer `json:"Answer"`
}

// record is a cached blocklist decision
type record struct {
	Blocked   bool
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Client checks hostnames against a DNS blocklist zone over DNS-over-HTTPS
type Client struct {
	http   *http.Client
	cache  map[string]*record
	mu     sync.RWMutex
	config Config
	stats  Stats
	logger *zap.Logger
}

// Config contains DoH client configuration
type Config struct {
	Endpoint      string        `json:"endpoint"`
	Zone          string        `json:"zone"`
	Timeout       time.Duration `json:"timeout"`
	CacheSize     int           `json:"cache_size"`
	CacheTTL      time.Duration `json:"cache_ttl"`
	EnableCaching bool          `json:"enable_caching"`
}

// Stats tracks client performance metrics
type Stats struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Errors    int64 `json:"errors"`
	Blocked   int64 `json:"blocked"`
	Entries   int64 `json:"entries"`
	Evictions int64 `json:"evictions"`
}

// HitRate returns the cache hit rate as a percentage
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total) * 100
}

// NewClient creates a new DoH client with caching
func NewClient(config Config, logger *zap.Logger) *Client {
	if config.Endpoint == "" {
		config.Endpoint = "https://dns.google/resolve"
	}
	if config.Zone == "" {
		config.Zone = "dbl.spamhaus.org"
	}
	if config.Timeout == 0 {
		config.Timeout = 3 * time.Second
	}
	if config.CacheSize == 0 {
		config.CacheSize = 1000
	}
	if config.CacheTTL == 0 {
		config.CacheTTL = 30 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		http:   &http.Client{},
		cache:  make(map[string]*record),
		config: config,
		logger: logger,
	}
}

// IsBlocked reports whether host is listed in the blocklist zone. Transport
// errors, timeouts and non-2xx answers count as not blocked.
func (c *Client) IsBlocked(ctx context.Context, host string) bool {
	host = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(host)), ".")
	if host == "" {
		return false
	}

	if c.config.EnableCaching {
		if rec, ok := c.getFromCache(host); ok {
			c.mu.Lock()
			c.stats.Hits++
			c.mu.Unlock()
			return rec.Blocked
		}
	}

	out := task.Run(ctx, c.config.Timeout, func(ctx context.Context) (bool, error) {
		return c.lookup(ctx, host)
	})

	c.mu.Lock()
	if !out.OK() {
		c.stats.Errors++
		c.mu.Unlock()
		c.logger.Debug("blocklist lookup failed",
			zap.String("host", host),
			zap.Stringer("state", out.State),
			zap.Error(out.Err))
		return false
	}
	c.stats.Misses++
	if out.Value {
		c.stats.Blocked++
	}
	c.mu.Unlock()

	if c.config.EnableCaching {
		c.setInCache(host, out.Value)
	}
	return out.Value
}

// lookup queries <host>.<zone> for an A record
func (c *Client) lookup(ctx context.Context, host string) (bool, error) {
	q := url.Values{}
	q.Set("name", host+"."+c.config.Zone)
	q.Set("type", "A")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.Endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return false, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/dns-json")

	resp, err := c.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return false, fmt.Errorf("DoH endpoint returned status %d", resp.StatusCode)
	}

	var doh Response
	if err := json.NewDecoder(resp.Body).Decode(&doh); err != nil {
		return false, fmt.Errorf("failed to decode response: %w", err)
	}

	switch doh.Status {
	case rcodeNXDomain:
		return false, nil
	case rcodeNoError:
		for _, a := range doh.Answer {
			// 127.255.255.x are blocklist error codes (e.g. refused open resolver)
			if strings.HasPrefix(a.Data, "127.255.255.") {
				return false, fmt.Errorf("blocklist refused query: %s", a.Data)
			}
			if strings.HasPrefix(a.Data, "127.") {
				return true, nil
			}
		}
		return false, nil
	default:
		return false, fmt.Errorf("DNS status %d", doh.Status)
	}
}

// getFromCache retrieves a decision if still valid
func (c *Client) getFromCache(key string) (*record, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	rec, exists := c.cache[key]
	if !exists || time.Now().After(rec.ExpiresAt) {
		return nil, false
	}
	return rec, true
}

// setInCache stores a decision
func (c *Client) setInCache(key string, blocked bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.cache) >= c.config.CacheSize {
		c.cleanup()
	}
	if len(c.cache) >= c.config.CacheSize {
		c.evictOldest()
	}

	now := time.Now()
	c.cache[key] = &record{
		Blocked:   blocked,
		ExpiresAt: now.Add(c.config.CacheTTL),
		CreatedAt: now,
	}
	c.stats.Entries = int64(len(c.cache))
}

// evictOldest removes the oldest cache entry
func (c *Client) evictOldest() {
	var oldestKey string
	var oldestTime time.Time

	for key, rec := range c.cache {
		if oldestKey == "" || rec.CreatedAt.Before(oldestTime) {
			oldestKey = key
			oldestTime = rec.CreatedAt
		}
	}
	if oldestKey != "" {
		delete(c.cache, oldestKey)
		c.stats.Evictions++
	}
}

// cleanup removes expired entries; callers hold the write lock
func (c *Client) cleanup() {
	now := time.Now()
	for key, rec := range c.cache {
		if now.After(rec.ExpiresAt) {
			delete(c.cache, key)
			c.stats.Evictions++
		}
	}
}

// GetStats returns current performance statistics
func (c *Client) GetStats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := c.stats
	stats.Entries = int64(len(c.cache))
	return stats
}

// ClearCache removes all cached entries
func (c *Client) ClearCache() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cache = make(map[string]*record)
	c.stats.Entries = 0
}
