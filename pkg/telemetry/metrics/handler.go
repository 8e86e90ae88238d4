package metrics

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler returns the HTTP handler for the scrape endpoint.
//
// Every request gathers the live registry state and encodes it in the
// Prometheus text exposition format (or another format the scraper
// negotiates through Accept). Nothing is cached. A gathering error is
// answered with 500 and logged; registry state is never modified.
//
// Example:
//
//	reg := metrics.NewRegistry()
//	mux.Handle("/metrics", metrics.Handler(reg, logger))
func Handler(reg *Registry, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "metrics.handler")

	h := promhttp.HandlerFor(
		reg.Gatherer(),
		promhttp.HandlerOpts{
			// Report gathering failures as 5xx instead of a partial body
			ErrorHandling: promhttp.HTTPErrorOnError,
			ErrorLog:      promLogger{logger: logger},
		},
	)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.ServeHTTP(w, r)
	})
}

// promLogger adapts slog to promhttp.Logger.
type promLogger struct {
	logger *slog.Logger
}

func (l promLogger) Println(v ...interface{}) {
	l.logger.Error("metrics exposition failed", "error", fmt.Sprint(v...))
}
