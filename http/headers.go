package http

import (
	"net/http"
	"strings"
)

const contentSecurityPolicy = "default-src 'self'; " +
	"style-src 'self' 'unsafe-inline'; " +
	"img-src 'self' data:; " +
	"frame-ancestors 'self'; " +
	"base-uri 'self'; " +
	"form-action 'self'"

// applySecurityHeaders decorates a non-redirect response. HTML pages get the
// browser hardening set; everything else may be embedded cross-origin.
func applySecurityHeaders(h http.Header) {
	if isHTML(h.Get("Content-Type")) {
		h.Set("Content-Security-Policy", contentSecurityPolicy)
		h.Set("Permissions-Policy", "geolocation=(), microphone=(), camera=()")
		h.Set("Referrer-Policy", "no-referrer-when-downgrade")
		h.Set("X-Frame-Options", "SAMEORIGIN")
		h.Set("X-Content-Type-Options", "nosniff")
		return
	}
	h.Set("Access-Control-Allow-Origin", "*")
}

func isHTML(contentType string) bool {
	return strings.Contains(strings.ToLower(contentType), "text/html")
}
