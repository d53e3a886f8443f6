// handlers_health.go - Health check handlers
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// HealthHandlerImpl implements the HealthHandler interface
type HealthHandlerImpl struct {
	version     string
	endpointURL string
	forms       FormManager
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(version, endpointURL string, forms FormManager) HealthHandler {
	return &HealthHandlerImpl{
		version:     version,
		endpointURL: endpointURL,
		forms:       forms,
	}
}

// HandleHealth returns gateway health status. The upload endpoint itself is
// reported but not probed; it stays an external collaborator.
func (h *HealthHandlerImpl) HandleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":         "ok",
		"version":        h.version,
		"activeForms":    h.forms.Count(),
		"uploadEndpoint": h.endpointURL,
	})
}
