// Package requestcontext carries request-scoped values (session account,
// client metadata, request id and the pinned request time) between the HTTP
// middleware and the services, without services importing net/http.
//
// Tests set values directly:
//
//	ctx = requestcontext.WithTime(ctx, t0.AddDate(0, 0, 30))
package requestcontext

import (
	"context"
	"time"

	id "sixd/pkg/domain"
)

type key int

const (
	accountIDKey key = iota
	clientIPKey
	userAgentKey
	requestIDKey
	requestTimeKey
)

func value[T any](ctx context.Context, k key) T {
	v, _ := ctx.Value(k).(T)
	return v
}

// AccountID is the account the session was issued for, or the nil ID on
// unauthenticated requests.
func AccountID(ctx context.Context) id.AccountID {
	return value[id.AccountID](ctx, accountIDKey)
}

func WithAccountID(ctx context.Context, accountID id.AccountID) context.Context {
	return context.WithValue(ctx, accountIDKey, accountID)
}

func ClientIP(ctx context.Context) string {
	return value[string](ctx, clientIPKey)
}

func UserAgent(ctx context.Context) string {
	return value[string](ctx, userAgentKey)
}

// WithClientMetadata stores the caller's IP and User-Agent.
func WithClientMetadata(ctx context.Context, clientIP, userAgent string) context.Context {
	ctx = context.WithValue(ctx, clientIPKey, clientIP)
	return context.WithValue(ctx, userAgentKey, userAgent)
}

func RequestID(ctx context.Context) string {
	return value[string](ctx, requestIDKey)
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// Now is the time pinned for this request, so registered_at, archived_at and
// the cooldown check all agree. Outside a request it is the wall clock.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(requestTimeKey).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime pins the request time.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey, t)
}
