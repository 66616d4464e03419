package handler

import (
	"context"
	"net/http"

	"github.com/hszk-dev/courseflow/internal/gateway"
)

// ConnectivityChecker probes the object store. *gateway.Gateway implements it.
type ConnectivityChecker interface {
	CheckConnectivity(ctx context.Context) gateway.ConnectivityReport
}

// DiagnosticsHandler exposes operational probes for the signing pipeline.
type DiagnosticsHandler struct {
	checker ConnectivityChecker
}

// NewDiagnosticsHandler creates a new DiagnosticsHandler.
func NewDiagnosticsHandler(checker ConnectivityChecker) *DiagnosticsHandler {
	return &DiagnosticsHandler{checker: checker}
}

// StorageConnectivity handles GET /v1/diagnostics/storage
func (h *DiagnosticsHandler) StorageConnectivity(w http.ResponseWriter, r *http.Request) {
	report := h.checker.CheckConnectivity(r.Context())

	status := http.StatusOK
	if !report.StoreReachable || !report.CredentialsConfigured {
		status = http.StatusServiceUnavailable
	}
	JSON(w, status, report)
}
