package web

import (
	"context"
	"net"
	"net/http"

	"github.com/JonMunkholm/dropzone/internal/core"
)

// WithRequestMetadata records the caller as the run trigger for audit logging.
func WithRequestMetadata(ctx context.Context, r *http.Request) context.Context {
	ip := r.RemoteAddr // Already processed by TrustedRealIP
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	return core.ContextWithTrigger(ctx, core.Trigger{
		Source:    "api",
		IPAddress: ip,
		UserAgent: r.Header.Get("User-Agent"),
	})
}
