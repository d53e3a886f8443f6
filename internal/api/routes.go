// routes.go - Route registration helpers
package api

import (
	"github.com/labstack/echo/v4"
	"github.com/upload-portal/backend/internal/models"
	"github.com/upload-portal/backend/internal/storage"
)

// Dependencies holds all handler dependencies
type Dependencies struct {
	Store       storage.Store
	Forms       FormManager
	Table       []models.CategorySpec
	EndpointURL string
	Version     string
}

// Handlers holds all handler instances
type Handlers struct {
	Health HealthHandler
	Form   FormHandler
}

// NewHandlers creates all handler instances
func NewHandlers(deps *Dependencies) *Handlers {
	return &Handlers{
		Health: NewHealthHandler(deps.Version, deps.EndpointURL, deps.Forms),
		Form:   NewFormHandler(deps.Store, deps.Forms, deps.Table),
	}
}

// RegisterRoutes registers all API routes with the Echo instance
func RegisterRoutes(e *echo.Echo, handlers *Handlers) {
	apiGroup := e.Group("/api")

	// Health check
	apiGroup.GET("/health", handlers.Health.HandleHealth)

	// Category table (wire contract for the form)
	apiGroup.GET("/categories", handlers.Form.HandleGetCategories)

	// Upload form lifecycle
	formGroup := apiGroup.Group("/forms")
	formGroup.POST("", handlers.Form.HandleCreateForm)
	formGroup.GET("/:formId", handlers.Form.HandleGetForm)
	formGroup.DELETE("/:formId", handlers.Form.HandleDeleteForm)
	formGroup.POST("/:formId/files/:category", handlers.Form.HandleSelectFiles)
	formGroup.DELETE("/:formId/files/:category/:index", handlers.Form.HandleRemoveFile)
	formGroup.POST("/:formId/submit", handlers.Form.HandleSubmit)
}

// SetupMiddleware configures the custom error handler
func SetupMiddleware(e *echo.Echo) {
	e.HTTPErrorHandler = ErrorHandler
}
