package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angeloszaimis/breakerguard/internal/circuitbreaker"
	"github.com/angeloszaimis/breakerguard/internal/upstream"
)

const (
	HeaderRequestID    = "X-Request-ID"
	HeaderUpstream     = "X-Upstream"
	HeaderCircuitState = "X-Circuit-State"
)

// ErrorResponse is the JSON body written for failures produced by the guard
// itself rather than by an upstream.
type ErrorResponse struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
}

// GuardHandler routes /{upstream}/{path...} to the named upstream.
type GuardHandler struct {
	logger    *slog.Logger
	upstreams map[string]*upstream.Upstream
}

func NewGuardHandler(logger *slog.Logger, upstreams []*upstream.Upstream) *GuardHandler {
	byName := make(map[string]*upstream.Upstream, len(upstreams))
	for _, u := range upstreams {
		byName[u.Name()] = u
	}

	return &GuardHandler{
		logger:    logger,
		upstreams: byName,
	}
}

func (h *GuardHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get(HeaderRequestID)
	if requestID == "" {
		requestID = uuid.NewString()
		r.Header.Set(HeaderRequestID, requestID)
	}
	w.Header().Set(HeaderRequestID, requestID)

	log := h.logger.With(
		slog.String("request_id", requestID),
		slog.String("from", extractClientIP(r)),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
	)

	name, path := splitPath(r.URL.Path)
	up, ok := h.upstreams[name]
	if !ok {
		log.Warn("Unknown upstream", slog.String("upstream", name))
		writeError(w, http.StatusNotFound, "unknown upstream", log)
		return
	}

	w.Header().Set(HeaderUpstream, up.Name())
	log = log.With(slog.String("upstream", up.Name()))

	start := time.Now()
	resp, err := up.Forward(r, path)
	duration := time.Since(start)

	w.Header().Set(HeaderCircuitState, up.Breaker().CurrentStatus().String())

	var openErr *circuitbreaker.OpenError
	var statusErr *upstream.StatusError

	switch {
	case err == nil:
		log.Info("Forwarded to upstream",
			slog.Int("status", resp.StatusCode),
			slog.Duration("duration", duration))
		writeResponse(w, resp, log)

	case errors.As(err, &openErr):
		log.Warn("Circuit open, request rejected",
			slog.Duration("retry_after", openErr.RetryAfter))
		if seconds := retryAfterSeconds(openErr.RetryAfter); seconds > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(seconds))
		}
		writeError(w, openErr.StatusCode, openErr.Message, log)

	case r.Context().Err() != nil:
		log.Warn("Client gave up before the upstream answered",
			slog.Any("err", err),
			slog.Duration("duration", duration))
		if errors.Is(r.Context().Err(), context.DeadlineExceeded) {
			writeError(w, http.StatusGatewayTimeout, "gateway timeout", log)
		}

	case errors.Is(err, upstream.ErrResponseTooLarge):
		log.Error("Upstream response too large",
			slog.Any("err", err),
			slog.Duration("duration", duration))
		writeError(w, http.StatusBadGateway, "upstream response too large", log)

	case errors.As(err, &statusErr):
		log.Error("Upstream returned server error",
			slog.Int("status", statusErr.Response.StatusCode),
			slog.Int("failures", up.Breaker().FailureCount()),
			slog.Duration("duration", duration))
		writeResponse(w, statusErr.Response, log)

	default:
		log.Error("Upstream request failed",
			slog.Any("err", err),
			slog.Int("failures", up.Breaker().FailureCount()),
			slog.Duration("duration", duration))
		writeError(w, http.StatusBadGateway, "bad gateway", log)
	}
}

// splitPath turns "/inventory/items/1" into ("inventory", "/items/1").
func splitPath(p string) (name, rest string) {
	p = strings.TrimPrefix(p, "/")
	name, rest, _ = strings.Cut(p, "/")
	return name, "/" + rest
}

func retryAfterSeconds(d time.Duration) int {
	return int(math.Ceil(d.Seconds()))
}

func writeResponse(w http.ResponseWriter, resp *upstream.Response, log *slog.Logger) {
	for key, values := range resp.Header {
		if key == "Content-Length" {
			continue
		}
		for _, v := range values {
			w.Header().Add(key, v)
		}
	}

	w.WriteHeader(resp.StatusCode)
	if _, err := w.Write(resp.Body); err != nil {
		log.Debug("Failed to write response body", slog.Any("err", err))
	}
}

func writeError(w http.ResponseWriter, status int, message string, log *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	err := json.NewEncoder(w).Encode(ErrorResponse{
		StatusCode: status,
		Message:    message,
	})
	if err != nil {
		log.Debug("Failed to write error body", slog.Any("err", err))
	}
}

func extractClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return strings.TrimSpace(strings.Split(xff, ",")[0])
	}

	host, _, _ := net.SplitHostPort(r.RemoteAddr)
	return host
}
