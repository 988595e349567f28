package http

import (
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/sagarc03/stowfront"
)

// objectMaxAge is one week; object contents are treated as immutable.
const objectMaxAge = 7 * 24 * time.Hour

const (
	headerContentSHA1     = "X-Bz-Content-Sha1"
	headerLargeFileSHA1   = "X-Bz-Info-Large_file_sha1"
	headerUploadTimestamp = "X-Bz-Upload-Timestamp"
	backendHeaderPrefix   = "X-Bz-"

	etagLength = 16
)

// plainTextExtensions are served as text so browsers display them inline.
var plainTextExtensions = map[string]bool{
	".pub":  true,
	".boot": true,
	".cfg":  true,
	".pem":  true,
	".crt":  true,
}

var hopByHopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// fetchObject streams one object from the backend with translated headers.
func (h *Handler) fetchObject(r *http.Request, cred stowfront.Credential) *Response {
	if resp, ok := h.aliasRedirect(r); ok {
		return resp
	}

	key := stowfront.KeyFromPath(r.URL.Path)

	start := time.Now()
	obj, err := h.backend.DownloadFile(r.Context(), cred, key)
	h.metrics.observeBackend("download", start, err)
	if err != nil {
		return h.errorResponse(r, err)
	}

	return NewStreamResponse(obj.StatusCode, TranslateHeaders(obj.Header, key, h.now()), obj.Body)
}

// aliasRedirect sends object requests on an alias host to the canonical host.
func (h *Handler) aliasRedirect(r *http.Request) (*Response, bool) {
	if h.config.CanonicalHost == "" || !h.aliasHosts[strings.ToLower(r.Host)] {
		return nil, false
	}

	header := http.Header{}
	header.Set("Location", requestScheme(r)+"://"+h.config.CanonicalHost+r.URL.RequestURI())
	return NewBufferedResponse(http.StatusMovedPermanently, header, nil), true
}

// TranslateHeaders copies backend object headers into client headers: long
// cache lifetime, ETag and Last-Modified derived from backend metadata, and no
// backend-specific or hop-by-hop headers. key selects the plain text override.
func TranslateHeaders(src http.Header, key string, now time.Time) http.Header {
	dst := src.Clone()
	if dst == nil {
		dst = http.Header{}
	}

	for _, name := range strings.Split(src.Get("Connection"), ",") {
		if name = strings.TrimSpace(name); name != "" {
			dst.Del(name)
		}
	}
	for _, name := range hopByHopHeaders {
		dst.Del(name)
	}

	dst.Set("Cache-Control", "public, immutable, max-age="+strconv.Itoa(int(objectMaxAge.Seconds())))
	dst.Set("Expires", now.Add(objectMaxAge).UTC().Format(http.TimeFormat))

	if lm, ok := lastModified(src.Get(headerUploadTimestamp)); ok {
		dst.Set("Last-Modified", lm)
	}

	sha := src.Get(headerContentSHA1)
	if sha == "" || sha == "none" {
		sha = src.Get(headerLargeFileSHA1)
	}
	if etag := DeriveETag(sha); etag != "" {
		dst.Set("ETag", etag)
	}

	for name := range dst {
		if strings.HasPrefix(http.CanonicalHeaderKey(name), backendHeaderPrefix) {
			delete(dst, name)
		}
	}

	if plainTextExtensions[strings.ToLower(path.Ext(key))] {
		dst.Set("Content-Type", plainTextContentType)
	}

	return dst
}

// DeriveETag turns a backend SHA-1 value into a quoted ETag of its first 16
// characters. "unverified:" markers are dropped; "none" and empty values give "".
func DeriveETag(sha string) string {
	sha = strings.Trim(strings.TrimSpace(sha), `"`)
	sha = strings.TrimPrefix(sha, "unverified:")
	if sha == "" || sha == "none" {
		return ""
	}
	if len(sha) > etagLength {
		sha = sha[:etagLength]
	}
	return `"` + sha + `"`
}

func lastModified(ts string) (string, bool) {
	if ts == "" {
		return "", false
	}
	ms, err := strconv.ParseInt(ts, 10, 64)
	if err != nil || ms <= 0 {
		return "", false
	}
	return time.UnixMilli(ms).UTC().Format(http.TimeFormat), true
}
