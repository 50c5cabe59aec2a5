package crossmatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/astrosift/astrosift/internal/alert"
	"github.com/astrosift/astrosift/pkg/config"
	"github.com/astrosift/astrosift/pkg/logger"
	"github.com/astrosift/astrosift/pkg/metrics"
	pkgredis "github.com/astrosift/astrosift/pkg/redis"
	"github.com/astrosift/astrosift/pkg/resilience"
)

const keyPrefix = "xmatch:"

// Client resolves crossmatch classes with a Redis cache in front of the
// catalog store. Concurrent lookups for the same position are collapsed via
// singleflight, every store call runs under a timeout, and a circuit
// breaker sheds load when the catalog database misbehaves.
type Client struct {
	store    Store
	cache    *pkgredis.Client
	cfg      config.CrossmatchConfig
	cacheTTL time.Duration
	group    singleflight.Group
	breaker  *resilience.CircuitBreaker
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// New creates a crossmatch Client. cache and m may be nil (tests, degraded
// startup); lookups then go straight to the store.
func New(store Store, cache *pkgredis.Client, cfg config.CrossmatchConfig, cacheTTL time.Duration, m *metrics.Metrics) *Client {
	return &Client{
		store:    store,
		cache:    cache,
		cfg:      cfg,
		cacheTTL: cacheTTL,
		breaker:  resilience.NewCircuitBreaker("crossmatch-catalog", resilience.CircuitBreakerConfig{}),
		metrics:  m,
		logger:   logger.WithComponent("crossmatch"),
	}
}

// Enrich fills in the crossmatch annotation for every record in the batch
// that arrived without one. Lookups that fail or time out leave the record
// annotated Unknown; enrichment never fails a batch.
func (c *Client) Enrich(ctx context.Context, batch alert.Batch) {
	for _, a := range batch {
		if _, ok := a["cdsxmatch"]; ok {
			continue
		}
		ra, raOK := lookupCoord(a, "ra")
		dec, decOK := lookupCoord(a, "dec")
		if !raOK || !decOK {
			a["cdsxmatch"] = alert.Unknown
			continue
		}
		a["cdsxmatch"] = c.Resolve(ctx, ra, dec)
	}
}

// Resolve returns the catalog class of the nearest object to (ra, dec), or
// Unknown when there is none or the lookup could not complete in time.
func (c *Client) Resolve(ctx context.Context, ra, dec float64) string {
	key := c.buildKey(ra, dec)

	if class, ok := c.cacheGet(ctx, key); ok {
		return class
	}

	val, _, _ := c.group.Do(key, func() (any, error) {
		class, authoritative := c.lookup(ctx, ra, dec)
		// Degraded lookups (timeout, open breaker, store error) are not
		// cached: the position must be re-queried once the catalog recovers.
		if authoritative {
			c.cacheSet(ctx, key, class)
		}
		// Never propagate an error: degraded lookups resolve to Unknown.
		return class, nil
	})
	return val.(string)
}

// lookup performs the guarded store call and maps every failure mode to the
// Unknown sentinel. authoritative is true only when the store actually
// answered, either with a class or with a genuine empty cone.
func (c *Client) lookup(ctx context.Context, ra, dec float64) (class string, authoritative bool) {
	var found string
	err := c.breaker.Execute(func() error {
		return resilience.WithTimeout(ctx, c.cfg.LookupTimeout, "crossmatch lookup", func(ctx context.Context) error {
			res, err := c.store.NearestClass(ctx, ra, dec, c.cfg.RadiusArcsec)
			found = res
			return err
		})
	})
	if c.metrics != nil {
		c.metrics.CircuitBreakerState.WithLabelValues("crossmatch-catalog").Set(float64(c.breaker.GetState()))
	}
	switch {
	case err == nil && found == "":
		c.count("none")
		return alert.Unknown, true
	case err == nil:
		c.count("match")
		return found, true
	case errors.Is(err, context.DeadlineExceeded):
		c.count("timeout")
		c.logger.Warn("catalog lookup timed out, treating as no counterpart",
			"ra", ra, "dec", dec, "timeout", c.cfg.LookupTimeout)
		return alert.Unknown, false
	default:
		c.count("error")
		c.logger.Warn("catalog lookup failed, treating as no counterpart",
			"ra", ra, "dec", dec, "error", err)
		return alert.Unknown, false
	}
}

// FlushCache drops every cached crossmatch entry, e.g. after a catalog
// reload. It returns the number of keys removed; without a cache it is a
// no-op.
func (c *Client) FlushCache(ctx context.Context) (int64, error) {
	if c.cache == nil {
		return 0, nil
	}
	return c.cache.FlushByPattern(ctx, keyPrefix+"*")
}

// ResetBreaker forces the catalog circuit breaker closed so the next lookup
// hits the store again, e.g. after a known database outage ends.
func (c *Client) ResetBreaker() {
	c.breaker.Reset()
	if c.metrics != nil {
		c.metrics.CircuitBreakerState.WithLabelValues("crossmatch-catalog").Set(float64(c.breaker.GetState()))
	}
}

func (c *Client) cacheGet(ctx context.Context, key string) (string, bool) {
	if c.cache == nil {
		return "", false
	}
	class, err := c.cache.Get(ctx, key)
	if err != nil {
		if !pkgredis.IsNilError(err) {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		if c.metrics != nil {
			c.metrics.XmatchCacheMissTotal.Inc()
		}
		return "", false
	}
	if c.metrics != nil {
		c.metrics.XmatchCacheHitsTotal.Inc()
	}
	return class, true
}

func (c *Client) cacheSet(ctx context.Context, key string, class string) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Set(ctx, key, class, c.cacheTTL); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

func (c *Client) count(result string) {
	if c.metrics != nil {
		c.metrics.XmatchLookupsTotal.WithLabelValues(result).Inc()
	}
}

// buildKey quantises the position to ~0.4 arcsec so repeated alerts from
// the same object share a cache entry.
func (c *Client) buildKey(ra, dec float64) string {
	return fmt.Sprintf("%s%.4f:%.4f", keyPrefix, ra, dec)
}

func lookupCoord(a alert.Alert, field string) (float64, bool) {
	v := alert.Float(a, field, -1000)
	if v == -1000 {
		return 0, false
	}
	return v, true
}
