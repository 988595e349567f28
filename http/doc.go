// Package http serves a private bucket to anonymous clients.
//
// Every GET or HEAD request goes through the same pipeline:
//
//  1. The shared response cache is consulted (skipped when the client sends
//     Cache-Control: no-cache or Pragma: no-cache). A hit is answered without
//     touching the credential or the backend.
//  2. A credential is obtained from the CredentialSource. Failing that, the
//     client gets an obfuscated 503 or 500 that no cache will store.
//  3. The Router picks a route by path: /faces and /faces.txt list the error
//     faces, paths ending in "/" render a directory listing, anything else is
//     proxied as an object download.
//  4. Non-redirect responses get security headers: the browser hardening set
//     for HTML, Access-Control-Allow-Origin: * for everything else.
//  5. GET responses with a positive lifetime are written to the cache in the
//     background. Handler.Wait drains those writes on shutdown.
//
// # Error Obfuscation
//
// Backend failures never reach the client as is. The status code survives,
// the body becomes a status phrase and a random face:
//
//	Forbidden
//	(ಠ_ಠ)
//
// Error pages are cacheable for 10 seconds, listings for 30 seconds and
// objects for one week.
//
// # Usage
//
//	handler := http.NewHandler(&http.HandlerConfig{}, manager, client,
//	    http.WithCache(cache),
//	    http.WithMetrics(http.NewMetrics(prometheus.DefaultRegisterer)),
//	)
//	server := &nethttp.Server{Addr: ":8787", Handler: handler.Router()}
package http
