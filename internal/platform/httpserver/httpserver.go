package httpserver

import (
	"net/http"
	"time"
)

// New builds an HTTP server with the timeouts used across the service.
// WriteTimeout is derived from the scoring timeout so a slow model call can
// still be answered.
func New(addr string, handler http.Handler, scoringTimeout time.Duration) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      scoringTimeout + 15*time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
