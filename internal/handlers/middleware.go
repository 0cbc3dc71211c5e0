package handlers

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"

	"snowday-platform/pkg/logging"
)

// RequestID tags each request with a short random identifier, echoed in the
// response header and attached to the logging context. An incoming
// X-Request-ID is honored so upstream proxies can correlate.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			buf := make([]byte, 8)
			rand.Read(buf)
			id = hex.EncodeToString(buf)
		}

		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(logging.WithRequestID(r.Context(), id)))
	})
}
