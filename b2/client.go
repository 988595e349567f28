package b2

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sagarc03/stowfront"
)

const (
	// DefaultAuthorizeURL is the public account authorization endpoint.
	DefaultAuthorizeURL = "https://api.backblazeb2.com/b2api/v2/b2_authorize_account"

	// DefaultTimeout bounds every call made by the client.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxFileCount is the page size requested from b2_list_file_names.
	DefaultMaxFileCount = 10000

	// DownloadCacheControl asks the backend edge to cache object responses briefly.
	DownloadCacheControl = "max-age=60"

	apiVersionPath = "/b2api/v2"

	// error bodies are kept for logs only
	maxErrorBody = 4 << 10
)

var (
	ErrKeyIDRequired          = errors.New("key id is required")
	ErrApplicationKeyRequired = errors.New("application key is required")
	ErrBucketRequired         = errors.New("bucket name is required")
)

// Config holds the account key and target bucket.
type Config struct {
	KeyID          string
	ApplicationKey string
	BucketName     string
	AuthorizeURL   string
	MaxFileCount   int
}

// WithDefaults returns a copy of c with empty optional fields filled in.
func (c Config) WithDefaults() Config {
	if c.AuthorizeURL == "" {
		c.AuthorizeURL = DefaultAuthorizeURL
	}
	if c.MaxFileCount <= 0 {
		c.MaxFileCount = DefaultMaxFileCount
	}
	return c
}

// Validate checks required fields.
func (c Config) Validate() error {
	switch {
	case c.KeyID == "":
		return ErrKeyIDRequired
	case c.ApplicationKey == "":
		return ErrApplicationKeyRequired
	case c.BucketName == "":
		return ErrBucketRequired
	}
	return nil
}

// Client talks to the B2 native API.
type Client struct {
	config  Config
	timeout time.Duration
	now     func() time.Time

	// apiClient bounds whole JSON calls; downloadClient has no overall
	// deadline because object bodies stream for as long as they take.
	apiClient      *http.Client
	downloadClient *http.Client
}

// Option configures a Client.
type Option func(*clientOptions)

type clientOptions struct {
	httpClient *http.Client
	timeout    time.Duration
}

// WithHTTPClient sets the HTTP client the API and download clients are
// derived from. The client is copied, never modified, and its Timeout is
// replaced by the client timeout.
func WithHTTPClient(client *http.Client) Option {
	return func(o *clientOptions) {
		if client != nil {
			o.httpClient = client
		}
	}
}

// WithTimeout bounds JSON calls end to end and downloads until the response
// headers arrive. Zero or less disables the bound.
func WithTimeout(timeout time.Duration) Option {
	return func(o *clientOptions) {
		o.timeout = timeout
	}
}

// New creates a Client with the given config and options.
func New(cfg Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("new b2 client: %w", err)
	}

	o := clientOptions{
		httpClient: &http.Client{},
		timeout:    DefaultTimeout,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.timeout < 0 {
		o.timeout = 0
	}

	api := *o.httpClient
	api.Timeout = o.timeout

	download := *o.httpClient
	download.Timeout = 0

	return &Client{
		config:         cfg.WithDefaults(),
		timeout:        o.timeout,
		now:            time.Now,
		apiClient:      &api,
		downloadClient: &download,
	}, nil
}

// BucketName returns the configured bucket.
func (c *Client) BucketName() string {
	return c.config.BucketName
}

// Authorize runs b2_authorize_account and, when the key is not bucket
// scoped, b2_list_buckets to resolve the bucket id.
func (c *Client) Authorize(ctx context.Context) (stowfront.Credential, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.AuthorizeURL, http.NoBody)
	if err != nil {
		return stowfront.Credential{}, fmt.Errorf("authorize account: %w", err)
	}
	req.SetBasicAuth(c.config.KeyID, c.config.ApplicationKey)

	var auth authorizeResponse
	if err := c.doJSON(req, &auth); err != nil {
		return stowfront.Credential{}, fmt.Errorf("authorize account: %w", classifyAuthError(err))
	}

	if auth.AuthorizationToken == "" || auth.APIURL == "" || auth.DownloadURL == "" {
		return stowfront.Credential{}, fmt.Errorf("authorize account: %w: missing token or endpoints", stowfront.ErrUpstreamProtocol)
	}

	cred := stowfront.Credential{
		APIURL:             strings.TrimSuffix(auth.APIURL, "/"),
		DownloadURL:        strings.TrimSuffix(auth.DownloadURL, "/"),
		AuthorizationToken: auth.AuthorizationToken,
		IssuedAt:           c.now().UTC(),
	}

	if auth.Allowed != nil && auth.Allowed.BucketID != nil && *auth.Allowed.BucketID != "" {
		cred.BucketID = *auth.Allowed.BucketID
		return cred, nil
	}

	bucketID, err := c.lookupBucket(ctx, cred, auth.AccountID)
	if err != nil {
		return stowfront.Credential{}, err
	}
	cred.BucketID = bucketID

	return cred, nil
}

func (c *Client) lookupBucket(ctx context.Context, cred stowfront.Credential, accountID string) (string, error) {
	if accountID == "" {
		return "", fmt.Errorf("list buckets: %w: missing account id", stowfront.ErrUpstreamProtocol)
	}

	var resp listBucketsResponse
	err := c.postJSON(ctx, cred, "b2_list_buckets", listBucketsRequest{
		AccountID:  accountID,
		BucketName: c.config.BucketName,
	}, &resp)
	if err != nil {
		return "", fmt.Errorf("list buckets: %w", classifyAuthError(err))
	}

	if len(resp.Buckets) == 0 || resp.Buckets[0].BucketID == "" {
		return "", fmt.Errorf("list buckets: %w: bucket %q not visible to key", stowfront.ErrUpstreamProtocol, c.config.BucketName)
	}

	return resp.Buckets[0].BucketID, nil
}

// ListFileNames lists one directory level under prefix.
func (c *Client) ListFileNames(ctx context.Context, cred stowfront.Credential, prefix string) ([]stowfront.ListingRecord, error) {
	var resp listFileNamesResponse
	err := c.postJSON(ctx, cred, "b2_list_file_names", listFileNamesRequest{
		BucketID:     cred.BucketID,
		Prefix:       prefix,
		Delimiter:    "/",
		MaxFileCount: c.config.MaxFileCount,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("list file names: %w", err)
	}

	records := make([]stowfront.ListingRecord, 0, len(resp.Files))
	for _, f := range resp.Files {
		if f.Action == "folder" {
			records = append(records, stowfront.ListingRecord{Name: f.FileName, Kind: stowfront.KindFolder})
			continue
		}
		records = append(records, stowfront.ListingRecord{
			Name:       f.FileName,
			Kind:       stowfront.KindFile,
			SizeBytes:  f.ContentLength,
			UploadedAt: time.UnixMilli(f.UploadTimestamp).UTC(),
		})
	}

	return records, nil
}

// DownloadFile fetches key from the configured bucket. On success the caller
// owns the returned body.
func (c *Client) DownloadFile(ctx context.Context, cred stowfront.Credential, key string) (*Object, error) {
	u := cred.DownloadURL + "/file/" + escapePath(c.config.BucketName) + "/" + escapePath(key)

	ctx, cancel := context.WithCancel(ctx)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("download file: %w", err)
	}
	req.Header.Set("Authorization", cred.AuthorizationToken)
	req.Header.Set("Cache-Control", DownloadCacheControl)

	resp, err := c.doUntilHeaders(req, cancel)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("download file: %w: %w", stowfront.ErrUpstreamUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer cancel()
		defer func() { _ = resp.Body.Close() }()
		return nil, fmt.Errorf("download file: %w", backendError(resp))
	}

	return &Object{
		StatusCode:    resp.StatusCode,
		Header:        resp.Header.Clone(),
		Body:          &cancelOnClose{ReadCloser: resp.Body, cancel: cancel},
		ContentLength: resp.ContentLength,
	}, nil
}

// doUntilHeaders sends req and cancels it when no response headers arrive
// within the client timeout. Once headers are in, the body is unbounded.
func (c *Client) doUntilHeaders(req *http.Request, cancel context.CancelFunc) (*http.Response, error) {
	if c.timeout <= 0 {
		return c.downloadClient.Do(req)
	}

	timer := time.AfterFunc(c.timeout, cancel)
	resp, err := c.downloadClient.Do(req)
	if !timer.Stop() {
		if err == nil {
			_ = resp.Body.Close()
		}
		return nil, fmt.Errorf("no response headers within %s: %w", c.timeout, context.DeadlineExceeded)
	}
	return resp, err
}

// cancelOnClose releases the request context together with the body.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelOnClose) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}

func (c *Client) postJSON(ctx context.Context, cred stowfront.Credential, op string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cred.APIURL+apiVersionPath+"/"+op, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", cred.AuthorizationToken)
	req.Header.Set("Content-Type", "application/json")

	return c.doJSON(req, out)
}

func (c *Client) doJSON(req *http.Request, out any) error {
	resp, err := c.apiClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", stowfront.ErrUpstreamUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return backendError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %w", stowfront.ErrUpstreamProtocol, err)
	}

	return nil
}

func backendError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &stowfront.BackendError{
		StatusCode: resp.StatusCode,
		Body:       string(body),
	}
}

// classifyAuthError tags a non-2xx answer from the authorization endpoints:
// throttling and server errors are retryable, anything else means the key or
// bucket configuration no longer matches what the backend expects.
func classifyAuthError(err error) error {
	var be *stowfront.BackendError
	if !errors.As(err, &be) {
		return err
	}
	if be.StatusCode == http.StatusTooManyRequests || be.StatusCode >= 500 {
		return fmt.Errorf("%w: %w", stowfront.ErrUpstreamUnavailable, err)
	}
	return fmt.Errorf("%w: %w", stowfront.ErrUpstreamProtocol, err)
}

// escapePath escapes each segment of a slash separated key.
func escapePath(p string) string {
	segments := strings.Split(p, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}
