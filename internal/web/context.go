package web

import (
	"context"
	"net/http"

	"github.com/JonMunkholm/shopsheet/internal/core"
)

type sessionKey struct{}

// WithRequestMetadata adds IP and User-Agent to context for audit logging.
func WithRequestMetadata(ctx context.Context, r *http.Request) context.Context {
	ip := r.RemoteAddr // Already processed by TrustedRealIP
	ua := r.Header.Get("User-Agent")
	ctx = core.ContextWithIPAddress(ctx, ip)
	ctx = core.ContextWithUserAgent(ctx, ua)
	return ctx
}

func withSession(ctx context.Context, sess *Session) context.Context {
	ctx = context.WithValue(ctx, sessionKey{}, sess)
	return core.ContextWithSessionID(ctx, sess.ID)
}

// sessionFrom returns the session attached by sessionMiddleware.
func sessionFrom(ctx context.Context) *Session {
	sess, _ := ctx.Value(sessionKey{}).(*Session)
	return sess
}
