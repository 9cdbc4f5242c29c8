package offer

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/singleflight"
)

var (
	cacheHits = prometheus.NewCounter(prometheus.CounterOpts{Name: "offer_cache_hits_total"})
	cacheMiss = prometheus.NewCounter(prometheus.CounterOpts{Name: "offer_cache_miss_total"})
)

func init() {
	prometheus.MustRegister(cacheHits, cacheMiss)
}

type cachedOffer struct {
	offer     *Offer
	fetchedAt time.Time
}

// Cache is a short-TTL read shadow over the offers table. Offers are
// near-static; cap enforcement never reads through it, only display paths do.
type Cache struct {
	mu    sync.RWMutex
	items map[string]*cachedOffer
	ttl   time.Duration
	group singleflight.Group
}

func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		items: make(map[string]*cachedOffer),
		ttl:   ttl,
	}
}

func (c *Cache) Get(id string) (*Offer, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.items[id]
	if !ok || (c.ttl > 0 && time.Since(v.fetchedAt) > c.ttl) {
		return nil, false
	}
	return v.offer, true
}

func (c *Cache) Set(id string, off *Offer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[id] = &cachedOffer{offer: off, fetchedAt: time.Now()}
}

func (c *Cache) Invalidate(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, id)
}

// Load returns the cached offer or coalesces concurrent misses into a single
// fetch of the loader.
func (c *Cache) Load(id string, loader func() (*Offer, error)) (*Offer, error) {
	if off, ok := c.Get(id); ok {
		cacheHits.Inc()
		return off, nil
	}
	cacheMiss.Inc()

	v, err, _ := c.group.Do(id, func() (interface{}, error) {
		off, err := loader()
		if err != nil {
			return nil, err
		}
		if off != nil {
			c.Set(id, off)
		}
		return off, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Offer), nil
}
