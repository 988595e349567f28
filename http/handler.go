package http

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sagarc03/stowfront"
	"github.com/sagarc03/stowfront/b2"
	"github.com/sagarc03/stowfront/respcache"
)

// DefaultMaxCacheBodyBytes caps the bodies buffered for the response cache.
const DefaultMaxCacheBodyBytes = 8 << 20

// CredentialSource hands out a usable backend credential.
type CredentialSource interface {
	EnsureFresh(ctx context.Context) (stowfront.Credential, error)
}

// Backend is the storage API used by the listing and object routes.
type Backend interface {
	ListFileNames(ctx context.Context, cred stowfront.Credential, prefix string) ([]stowfront.ListingRecord, error)
	DownloadFile(ctx context.Context, cred stowfront.Credential, key string) (*b2.Object, error)
}

// CORSConfig configures the optional go-chi/cors middleware. Without it every
// non-HTML response still carries Access-Control-Allow-Origin: *.
type CORSConfig struct {
	Enabled          bool     `mapstructure:"enabled"`
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	ExposedHeaders   []string `mapstructure:"exposed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age" validate:"min=0"`
}

type HandlerConfig struct {
	CORS CORSConfig
	// MaxCacheBodyBytes caps cached bodies; zero means the default and a
	// negative value disables caching of streamed objects.
	MaxCacheBodyBytes int64
	// CanonicalHost is where requests on AliasHosts are redirected.
	CanonicalHost string
	AliasHosts    []string
}

// Handler is the request pipeline: response cache, credential, routing,
// security headers, then a background cache write.
type Handler struct {
	config     HandlerConfig
	creds      CredentialSource
	backend    Backend
	cache      respcache.Cache
	metrics    *Metrics
	router     *Router
	aliasHosts map[string]bool
	now        func() time.Time

	wg sync.WaitGroup
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithCache sets the shared response cache. The default stores nothing.
func WithCache(c respcache.Cache) HandlerOption {
	return func(h *Handler) {
		h.cache = c
	}
}

// WithMetrics enables prometheus instrumentation.
func WithMetrics(m *Metrics) HandlerOption {
	return func(h *Handler) {
		h.metrics = m
	}
}

// WithClock replaces time.Now for header timestamps.
func WithClock(now func() time.Time) HandlerOption {
	return func(h *Handler) {
		h.now = now
	}
}

// NewHandler creates a Handler with the faces, directory and object routes.
func NewHandler(config *HandlerConfig, creds CredentialSource, backend Backend, opts ...HandlerOption) *Handler {
	h := &Handler{
		config:     *config,
		creds:      creds,
		backend:    backend,
		cache:      respcache.Noop{},
		aliasHosts: make(map[string]bool, len(config.AliasHosts)),
		now:        time.Now,
	}
	if h.config.MaxCacheBodyBytes == 0 {
		h.config.MaxCacheBodyBytes = DefaultMaxCacheBodyBytes
	}
	for _, host := range config.AliasHosts {
		h.aliasHosts[strings.ToLower(host)] = true
	}

	for _, opt := range opts {
		opt(h)
	}

	h.router = NewRouter(h.fetchObject)
	h.router.MustRegister(`/faces(\.txt)?`, func(*http.Request, stowfront.Credential) *Response {
		return facesPage(h.now())
	})
	h.router.MustRegister(`.*/`, h.listDirectory)

	return h
}

// Router returns the chi router serving GET and HEAD for every path.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(RequestLogger(h.metrics))

	if h.config.CORS.Enabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   h.config.CORS.AllowedOrigins,
			AllowedMethods:   h.config.CORS.AllowedMethods,
			AllowedHeaders:   h.config.CORS.AllowedHeaders,
			ExposedHeaders:   h.config.CORS.ExposedHeaders,
			AllowCredentials: h.config.CORS.AllowCredentials,
			MaxAge:           h.config.CORS.MaxAge,
		}))
	}

	r.Use(h.PathValidationMiddleware)

	r.Get("/*", h.ServeHTTP)
	r.Head("/*", h.ServeHTTP)
	r.MethodNotAllowed(h.handleMethodNotAllowed)

	return r
}

// ServeHTTP runs the pipeline for one request.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := CacheKey(r)

	if bypassCache(r) {
		h.metrics.cacheLookup("bypass")
	} else if snap, ok := h.lookup(r.Context(), key); ok {
		writeSnapshot(w, r, snap)
		return
	}

	cred, err := h.creds.EnsureFresh(r.Context())
	if err != nil {
		slog.Error("no usable credential", "path", r.URL.Path, "err", err)
		h.metrics.credentialFailure()
		h.writeUncached(w, r, uncachedError(statusForCredentialError(err), h.now()))
		return
	}

	resp := h.router.Dispatch(r, cred)
	if !resp.isRedirect() {
		applySecurityHeaders(resp.Header)
	}

	h.write(w, r, resp, key)
}

// Wait blocks until pending cache writes have finished.
func (h *Handler) Wait() {
	h.wg.Wait()
}

// errorResponse logs err and returns the obfuscated page for it.
func (h *Handler) errorResponse(r *http.Request, err error) *Response {
	status := statusForError(err)
	if status >= http.StatusInternalServerError {
		slog.Warn("request failed", "path", r.URL.Path, "status", status, "err", err)
	} else {
		slog.Debug("request failed", "path", r.URL.Path, "status", status, "err", err)
	}
	return obfuscatedError(status, h.now())
}

func (h *Handler) handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	resp := obfuscatedError(http.StatusMethodNotAllowed, h.now())
	resp.Header.Set("Allow", "GET, HEAD")
	h.writeUncached(w, r, resp)
}

func (h *Handler) writeUncached(w http.ResponseWriter, r *http.Request, resp *Response) {
	applySecurityHeaders(resp.Header)
	h.write(w, r, resp, "")
}

// write sends resp to the client. GET responses with a positive lifetime and
// a body no larger than MaxCacheBodyBytes are also queued for the cache; an
// empty key disables caching.
func (h *Handler) write(w http.ResponseWriter, r *http.Request, resp *Response, key string) {
	defer resp.close()

	for k, v := range resp.Header {
		w.Header()[k] = v
	}

	var ttl time.Duration
	if key != "" && r.Method == http.MethodGet {
		ttl = respcache.TTL(resp.Header, h.now())
	}

	if body, ok := resp.Buffered(); ok {
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		w.WriteHeader(resp.Status)
		if r.Method != http.MethodHead {
			_, _ = w.Write(body)
		}
		if ttl > 0 && int64(len(body)) <= h.config.MaxCacheBodyBytes {
			h.storeAsync(r, key, resp, body, ttl)
		}
		return
	}

	w.WriteHeader(resp.Status)
	if r.Method == http.MethodHead {
		return
	}

	if ttl <= 0 || h.config.MaxCacheBodyBytes < 0 {
		h.copyStream(w, r, resp.stream)
		return
	}

	limit := h.config.MaxCacheBodyBytes
	head, err := io.ReadAll(io.LimitReader(resp.stream, limit+1))
	_, _ = w.Write(head)
	if err != nil {
		slog.Warn("object stream interrupted", "path", r.URL.Path, "err", err)
		return
	}
	if int64(len(head)) > limit {
		h.copyStream(w, r, resp.stream)
		return
	}

	h.storeAsync(r, key, resp, head, ttl)
}

func (h *Handler) copyStream(w io.Writer, r *http.Request, body io.Reader) {
	if _, err := io.Copy(w, body); err != nil {
		slog.Debug("object stream interrupted", "path", r.URL.Path, "err", err)
	}
}
