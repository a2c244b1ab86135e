package linkmeta

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

const DefaultCacheSize = 256

// sharedFetchTimeout bounds an upstream request that outlives the caller
// who started it.
const sharedFetchTimeout = 15 * time.Second

// Cache memoizes successful fetches by URL string. Concurrent lookups of the
// same URL share one upstream request.
type Cache struct {
	next    Fetcher
	entries *lru.Cache[string, Metadata]
	group   singleflight.Group
}

func NewCache(next Fetcher, size int) (*Cache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	entries, err := lru.New[string, Metadata](size)
	if err != nil {
		return nil, err
	}
	return &Cache{next: next, entries: entries}, nil
}

// Fetch returns cached metadata or joins the in-flight request for rawURL.
// The request runs detached from any one caller, so a caller giving up only
// stops its own wait.
func (c *Cache) Fetch(ctx context.Context, rawURL string) (Metadata, error) {
	if m, ok := c.entries.Get(rawURL); ok {
		return m, nil
	}
	ch := c.group.DoChan(rawURL, func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedFetchTimeout)
		defer cancel()
		m, err := c.next.Fetch(fctx, rawURL)
		if err != nil {
			return m, err
		}
		c.entries.Add(rawURL, m)
		return m, nil
	})
	select {
	case <-ctx.Done():
		return Metadata{}, ctx.Err()
	case r := <-ch:
		return r.Val.(Metadata), r.Err
	}
}

func (c *Cache) Len() int { return c.entries.Len() }
