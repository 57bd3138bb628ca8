package util

import (
	"context"
	"net/http"
	"strings"
)

type requestIDContextKey string

const (
	requestIDHeader = "X-Request-Id"
	requestIDCtxKey = requestIDContextKey("request_id")
)

// ContextWithRequestID pins the request id used for calls made with ctx.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDCtxKey, id)
}

// RequestIDFromContext returns request id from context.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDCtxKey).(string)
	return id
}

// RequestIDTransport sets X-Request-Id on outgoing requests.
// The id comes from the request context when present, otherwise a new one is generated.
type RequestIDTransport struct {
	Base http.RoundTripper
}

func (t *RequestIDTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if strings.TrimSpace(req.Header.Get(requestIDHeader)) == "" {
		id := RequestIDFromContext(req.Context())
		if id == "" {
			id = NewID()
		}
		// RoundTrippers must not mutate the caller's request.
		req = req.Clone(ContextWithRequestID(req.Context(), id))
		req.Header.Set(requestIDHeader, id)
	}
	return base(t.Base).RoundTrip(req)
}

func base(rt http.RoundTripper) http.RoundTripper {
	if rt == nil {
		return http.DefaultTransport
	}
	return rt
}
