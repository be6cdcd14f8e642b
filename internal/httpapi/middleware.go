package httpapi

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/lefred/mysql-component-viruscan/internal/access"
)

// UserHeader carries the caller's user name when the server trusts a
// fronting proxy to set it.
const UserHeader = "X-Viruscan-User"

type ctxKey int

const (
	callerKey ctxKey = iota
	requestIDKey
)

// CallerFrom returns the caller attached by the identity middleware.
func CallerFrom(ctx context.Context) access.Caller {
	c, _ := ctx.Value(callerKey).(access.Caller)
	return c
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

// identity builds the access.Caller of a request. The bearer token, when
// present, is resolved later by the configured provider; the user header is
// only honoured when trustUserHeader is set.
func identity(trustUserHeader bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c := access.Caller{Host: remoteHost(r.RemoteAddr)}
			if parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2); len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
				c.Token = strings.TrimSpace(parts[1])
			}
			if trustUserHeader {
				c.User = r.Header.Get(UserHeader)
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), callerKey, c)))
		})
	}
}

func remoteHost(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}

func accessLog(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"from", r.RemoteAddr,
				"dur", time.Since(start).String(),
				"request_id", requestIDFrom(r.Context()),
			)
		})
	}
}
