// interfaces.go - Handler interface definitions for clean separation of concerns
package api

import (
	"github.com/labstack/echo/v4"
	"github.com/upload-portal/backend/internal/staging"
)

// FormHandler handles upload form operations
type FormHandler interface {
	HandleCreateForm(c echo.Context) error
	HandleGetForm(c echo.Context) error
	HandleSelectFiles(c echo.Context) error
	HandleRemoveFile(c echo.Context) error
	HandleSubmit(c echo.Context) error
	HandleDeleteForm(c echo.Context) error
	HandleGetCategories(c echo.Context) error
}

// HealthHandler handles health check operations
type HealthHandler interface {
	HandleHealth(c echo.Context) error
}

// FormManager defines the interface for form lifecycle management.
// This allows mocking in tests.
type FormManager interface {
	Create() (*staging.Form, error)
	Get(id string) (*staging.Form, bool)
	Delete(id string)
	Count() int
}
