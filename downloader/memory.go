package downloader

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// Caches fetched archives in memory. Entries are keyed by URL and
// request headers, since headers may select different content.
type MemoryDownloader struct {
	mutex sync.Mutex
	cache map[string]memoryCacheEntry

	TimeNow func() time.Time
}

func NewMemoryDownloader() *MemoryDownloader {
	return &MemoryDownloader{
		cache:   make(map[string]memoryCacheEntry),
		TimeNow: time.Now,
	}
}

type memoryCacheEntry struct {
	data       []byte
	expiration time.Time
}

func cacheKey(url string, headers map[string]string) string {
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(url)
	for _, k := range keys {
		b.WriteString("\n")
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(headers[k])
	}
	return b.String()
}

func (d *MemoryDownloader) Get(
	ctx context.Context,
	url string,
	headers map[string]string,
	options GetOptions,
) ([]byte, error) {
	if !options.Cache {
		return Fetch(ctx, url, headers, options)
	}

	key := cacheKey(url, headers)

	d.mutex.Lock()
	defer d.mutex.Unlock()

	now := d.TimeNow()
	d.evictExpired(now)

	if entry, ok := d.cache[key]; ok {
		return entry.data, nil
	}

	body, err := Fetch(ctx, url, headers, options)
	if err != nil {
		return nil, err
	}

	d.cache[key] = memoryCacheEntry{
		data:       body,
		expiration: now.Add(options.CacheTTL),
	}

	return body, nil
}

// Number of unexpired cache entries.
func (d *MemoryDownloader) Len() int {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	d.evictExpired(d.TimeNow())
	return len(d.cache)
}

func (d *MemoryDownloader) evictExpired(now time.Time) {
	for key, entry := range d.cache {
		if !entry.expiration.After(now) {
			delete(d.cache, key)
		}
	}
}
