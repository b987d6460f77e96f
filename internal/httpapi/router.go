package httpapi

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewMux wires the info, target, and metrics endpoints into one
// http.ServeMux, the same flat-registration style
// cmd/pulse-sensor-proxy/http_server.go uses for its own mux.
func NewMux(info *InfoHandler, target *TargetHandler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/", info)
	mux.Handle(targetPathPrefix, target)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}
