package http

import (
	"math/rand/v2"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	// errorMaxAge keeps error pages briefly so retries do not all reach the backend.
	errorMaxAge = 10 * time.Second

	plainTextContentType = "text/plain; charset=utf-8"
	fallbackPhrase       = "Error"
)

var statusPhrases = map[int]string{
	400: "Bad Request",
	401: "Unauthorized",
	402: "Payment Required",
	403: "Forbidden",
	404: "Not Found",
	405: "Method Not Allowed",
	406: "Not Acceptable",
	407: "Proxy Authentication Required",
	408: "Request Timeout",
	409: "Conflict",
	410: "Gone",
	411: "Length Required",
	412: "Precondition Required",
	413: "Request Entry Too Large",
	414: "Request-URI Too Long",
	415: "Unsupported Media Type",
	416: "Requested Range Not Satisfiable",
	417: "Expectation Failed",
	500: "Internal Server Error",
	501: "Not Implemented",
	502: "Bad Gateway",
	503: "Service Unavailable",
	504: "Gateway Timeout",
	505: "HTTP Version Not Supported",
}

var faces = []string{
	`¯\_(ツ)_/¯`,
	"(⊙_⊙)？",
	"ಥ_ಥ",
	"＼（〇_ｏ）／",
	`¯\(°_o)/¯`,
	"╮（╯＿╰）╭",
	"╮(╯▽╰)╭",
	"(⊙_⊙;)",
	"(°ロ°) !",
	"┐('～`;)┌",
	"┐(￣ヘ￣;)┌",
	"( ಠ ʖ̯ ಠ)",
	"ლ(ಠ_ಠ ლ)",
	`ლ(¯ロ¯"ლ)`,
	"┐(￣ヮ￣)┌",
	"(눈_눈)",
	"(ﾉ◕ヮ◕)ﾉ*:･ﾟ✧",
	"(ಠ_ಠ)",
	"(￣﹃￣)",
	"(ʘ ͟ʖ ʘ)",
	"( ಥ ʖ̯ ಥ)",
	"( ͡° ʖ̯ ͡°)",
}

// StatusPhrase returns the phrase shown on error pages, or "Error" for codes
// outside the table.
func StatusPhrase(code int) string {
	if p, ok := statusPhrases[code]; ok {
		return p
	}
	return fallbackPhrase
}

// Faces returns a copy of the face table.
func Faces() []string {
	out := make([]string, len(faces))
	copy(out, faces)
	return out
}

func randomFace() string {
	return faces[rand.IntN(len(faces))] //#nosec G404 -- cosmetic
}

// obfuscatedError builds the generic error page for status. Whatever the
// backend said is dropped; only the status survives.
func obfuscatedError(status int, now time.Time) *Response {
	header := http.Header{}
	header.Set("Content-Type", plainTextContentType)
	header.Set("Cache-Control", "public, immutable, max-age="+strconv.Itoa(int(errorMaxAge.Seconds())))
	header.Set("Expires", now.Add(errorMaxAge).UTC().Format(http.TimeFormat))

	return NewBufferedResponse(status, header, []byte(StatusPhrase(status)+"\n"+randomFace()))
}

// uncachedError is obfuscatedError for failures that must not be stored by
// any cache, such as a missing credential.
func uncachedError(status int, now time.Time) *Response {
	resp := obfuscatedError(status, now)
	resp.Header.Set("Cache-Control", "no-store")
	resp.Header.Del("Expires")
	return resp
}

// facesPage lists every face. It shares the error page lifetime.
func facesPage(now time.Time) *Response {
	header := http.Header{}
	header.Set("Content-Type", plainTextContentType)
	header.Set("Cache-Control", "public, immutable, max-age="+strconv.Itoa(int(errorMaxAge.Seconds())))
	header.Set("Expires", now.Add(errorMaxAge).UTC().Format(http.TimeFormat))
	return NewBufferedResponse(http.StatusOK, header, []byte(strings.Join(faces, "\n")+"\n"))
}
