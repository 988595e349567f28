package http

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/sagarc03/stowfront"
)

// listingMaxAge is short; listings change more often than file contents.
const listingMaxAge = 30 * time.Second

const htmlContentType = "text/html; charset=utf-8"

// listDirectory answers paths ending in "/" with an HTML listing of that prefix.
// A prefix with no folders and no files does not exist.
func (h *Handler) listDirectory(r *http.Request, cred stowfront.Credential) *Response {
	prefix := stowfront.KeyFromPath(r.URL.Path)

	start := time.Now()
	records, err := h.backend.ListFileNames(r.Context(), cred, prefix)
	h.metrics.observeBackend("list", start, err)
	if err != nil {
		return h.errorResponse(r, err)
	}

	listing := stowfront.BuildListing(prefix, records)
	if listing.IsEmpty() {
		return h.errorResponse(r, fmt.Errorf("list %q: %w", prefix, stowfront.ErrNotFound))
	}

	body, err := RenderListing(listing)
	if err != nil {
		return h.errorResponse(r, err)
	}

	now := h.now()
	header := http.Header{}
	header.Set("Content-Type", htmlContentType)
	header.Set("Cache-Control", "public, immutable, max-age="+strconv.Itoa(int(listingMaxAge.Seconds())))
	header.Set("Expires", now.Add(listingMaxAge).UTC().Format(http.TimeFormat))

	return NewBufferedResponse(http.StatusOK, header, body)
}
