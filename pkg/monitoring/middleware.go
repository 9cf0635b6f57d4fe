package monitoring

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/medtrust/ehr/pkg/logger"
)

// HTTPMiddleware wraps a handler with request metrics and structured logging.
func HTTPMiddleware(service string, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = uuid.New().String()
			}

			wrapper := &responseRecorder{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}
			wrapper.Header().Set("X-Request-ID", requestID)

			next.ServeHTTP(wrapper, r)

			duration := time.Since(start)
			RecordHTTPRequest(r.Method, r.URL.Path, wrapper.statusCode, duration, service)
			log.HTTPRequest(r.Method, r.URL.Path, r.RemoteAddr, wrapper.statusCode, duration.Milliseconds())
		})
	}
}

// responseRecorder captures the status code written by downstream handlers
type responseRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rr *responseRecorder) WriteHeader(code int) {
	rr.statusCode = code
	rr.ResponseWriter.WriteHeader(code)
}
