package server

import (
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"houstonintel/internal/errors"
	"houstonintel/types"
)

const requestIDHeader = "X-Request-ID"

// requestIDMiddleware assigns a request ID when the client did not send one.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.New().String()
			r.Header.Set(requestIDHeader, id)
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

// securityHeadersMiddleware adds security headers to all responses
func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-XSS-Protection", "1; mode=block")
		next.ServeHTTP(w, r)
	})
}

// recoveryMiddleware turns a handler panic into a 500 JSON envelope instead
// of a dropped connection.
func recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Printf("🚨 Panic serving %s %s: %v", r.Method, r.URL.Path, rec)
				errors.SendError(w, errors.NewInternalError("internal server error", fmt.Errorf("%v", rec)))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// trackingMiddleware times every request and feeds it to the analytics
// engine, tying it to the visitor's session. The platform's own traffic is
// its first data source.
func (p *Platform) trackingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// WebSocket upgrades hold the connection open; timing them as a
		// request would poison the latency windows.
		if strings.HasPrefix(r.URL.Path, "/ws") {
			next.ServeHTTP(w, r)
			return
		}

		sessionID, _ := p.Auth.SessionID(w, r)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)
		elapsed := time.Since(start)

		// The call ID is minted here, never taken from the request: the
		// X-Request-ID header is client-controlled and a replayed value
		// would collide with the api_calls primary key.
		call := types.APICall{
			ID:             uuid.New().String(),
			Endpoint:       routeTemplate(r),
			Method:         r.Method,
			StatusCode:     rec.status,
			ResponseTimeMs: float64(elapsed.Microseconds()) / 1000.0,
			SessionID:      sessionID,
			Timestamp:      start,
		}
		if rec.status >= 400 {
			call.Error = http.StatusText(rec.status)
		}
		p.Engine.TrackCall(call)

		if sessionID != "" && p.DB != nil {
			// Best effort; a failed session write must not fail the request.
			_ = p.DB.UpsertSession(types.SessionInfo{
				ID:         sessionID,
				StartedAt:  start,
				LastSeen:   start,
				CallCount:  1,
				UserAgent:  r.UserAgent(),
				RemoteAddr: r.RemoteAddr,
			})
		}
	})
}

// routeTemplate returns the mux route pattern so path parameters don't
// explode endpoint cardinality.
func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return r.URL.Path
}
