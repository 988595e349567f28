package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sagarc03/stowfront/respcache"
)

const cacheWriteTimeout = 10 * time.Second

// CacheKey is the shared cache identity of a request. HEAD shares the GET key.
func CacheKey(r *http.Request) string {
	return http.MethodGet + " " + requestScheme(r) + "://" + r.Host + r.URL.EscapedPath() + "?" + r.URL.RawQuery
}

func requestScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if proto := strings.ToLower(r.Header.Get("X-Forwarded-Proto")); proto == "https" || proto == "http" {
		return proto
	}
	return "http"
}

// bypassCache reports whether the client asked not to be served from cache.
func bypassCache(r *http.Request) bool {
	for _, v := range r.Header.Values("Cache-Control") {
		for _, directive := range strings.Split(v, ",") {
			if strings.EqualFold(strings.TrimSpace(directive), "no-cache") {
				return true
			}
		}
	}
	return strings.EqualFold(strings.TrimSpace(r.Header.Get("Pragma")), "no-cache")
}

func (h *Handler) lookup(ctx context.Context, key string) (respcache.Snapshot, bool) {
	snap, err := h.cache.Match(ctx, key)
	switch {
	case err == nil:
		h.metrics.cacheLookup("hit")
		return snap, true
	case errors.Is(err, respcache.ErrMiss):
		h.metrics.cacheLookup("miss")
	default:
		h.metrics.cacheLookup("error")
		slog.Warn("response cache lookup failed", "key", key, "err", err)
	}
	return respcache.Snapshot{}, false
}

// storeAsync writes a snapshot on a background goroutine. The client
// response never waits for it and failures are only logged.
func (h *Handler) storeAsync(r *http.Request, key string, resp *Response, body []byte, ttl time.Duration) {
	snap := respcache.Snapshot{
		Status:   resp.Status,
		Header:   resp.Header.Clone(),
		Body:     body,
		StoredAt: h.now().UTC(),
	}

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()

		ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), cacheWriteTimeout)
		defer cancel()

		if err := h.cache.Put(ctx, key, snap, ttl); err != nil {
			slog.Warn("response cache write failed", "key", key, "err", err)
		}
	}()
}

func writeSnapshot(w http.ResponseWriter, r *http.Request, snap respcache.Snapshot) {
	for k, v := range snap.Header {
		w.Header()[k] = v
	}
	w.Header().Set("Content-Length", strconv.Itoa(len(snap.Body)))
	w.WriteHeader(snap.Status)
	if r.Method != http.MethodHead {
		_, _ = w.Write(snap.Body)
	}
}
