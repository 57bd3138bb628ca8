package util

import (
	"net/http"
	"strings"
	"time"
)

// RequestLogTransport emits a structured log for each outgoing HTTP request.
// It includes request_id so client logs can be matched with server logs.
type RequestLogTransport struct {
	Service string
	Base    http.RoundTripper
}

func (t *RequestLogTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	service := strings.TrimSpace(t.Service)
	if service == "" {
		service = "unknown"
	}
	start := time.Now()
	resp, err := base(t.Base).RoundTrip(req)
	logger := LoggerFromContext(req.Context())
	requestID := req.Header.Get(requestIDHeader)
	if err != nil {
		logger.Warn(
			"http_request",
			"service", service,
			"method", req.Method,
			"path", req.URL.Path,
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", requestID,
			"err", err,
		)
		return nil, err
	}
	logger.Info(
		"http_request",
		"service", service,
		"method", req.Method,
		"path", req.URL.Path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
		"request_id", requestID,
	)
	return resp, nil
}

// NewTransport chains request id and request log around base.
func NewTransport(service string, base http.RoundTripper) http.RoundTripper {
	return &RequestIDTransport{Base: &RequestLogTransport{Service: service, Base: base}}
}
