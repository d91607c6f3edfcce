package httpx

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/httprate"
)

// ClientHeader lets callers behind a shared address identify themselves.
const ClientHeader = "X-Client-ID"

// ClientKey identifies the caller of r by ClientHeader, falling back to the
// remote IP.
func ClientKey(r *http.Request) string {
	if client := strings.TrimSpace(r.Header.Get(ClientHeader)); client != "" {
		return client
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// ExportLimiter throttles expensive export endpoints per caller.
func ExportLimiter(requests int, window time.Duration) func(http.Handler) http.Handler {
	return httprate.Limit(requests, window,
		httprate.WithKeyFuncs(rateLimitKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			Problem(w, http.StatusTooManyRequests, http.StatusText(http.StatusTooManyRequests), "export rate limit reached")
		}),
	)
}

func rateLimitKey(r *http.Request) (string, error) {
	if client := strings.TrimSpace(r.Header.Get(ClientHeader)); client != "" {
		return "client:" + client, nil
	}
	key, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + key, nil
}
