// handlers_form.go - Upload form operation handlers
package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/upload-portal/backend/internal/models"
	"github.com/upload-portal/backend/internal/staging"
	"github.com/upload-portal/backend/internal/storage"
)

// selectionFieldName is the multipart field the frontend uses when handing a
// picker batch to the gateway. The per-category field names of the outbound
// wire contract live in the category table, not here.
const selectionFieldName = "files"

// FormHandlerImpl implements the FormHandler interface
type FormHandlerImpl struct {
	store storage.Store
	forms FormManager
	table []models.CategorySpec
}

// NewFormHandler creates a new form handler instance
func NewFormHandler(store storage.Store, forms FormManager, table []models.CategorySpec) FormHandler {
	return &FormHandlerImpl{
		store: store,
		forms: forms,
		table: table,
	}
}

// formResponse is the uniform envelope for form operations. State is always
// the post-operation view, so the frontend can re-render from any response.
type formResponse struct {
	FormID string               `json:"formId"`
	State  models.FormState     `json:"state"`
	Result *models.SubmitResult `json:"result,omitempty"`
}

func newFormResponse(form *staging.Form, result *models.SubmitResult) formResponse {
	return formResponse{
		FormID: form.ID(),
		State:  form.State(),
		Result: result,
	}
}

// HandleCreateForm starts a fresh form with every category empty.
func (h *FormHandlerImpl) HandleCreateForm(c echo.Context) error {
	form, err := h.forms.Create()
	if err != nil {
		return NewInternalError("failed to create form", err)
	}

	return c.JSON(http.StatusCreated, newFormResponse(form, nil))
}

// HandleGetForm returns the current state of a form.
func (h *FormHandlerImpl) HandleGetForm(c echo.Context) error {
	form, err := h.lookupForm(c)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, newFormResponse(form, nil))
}

// HandleSelectFiles stages a picker batch for one category, replacing that
// category's previous selection. An empty batch is accepted as a cancelled
// picker and changes nothing.
func (h *FormHandlerImpl) HandleSelectFiles(c echo.Context) error {
	form, err := h.lookupForm(c)
	if err != nil {
		return err
	}

	category, apiErr := h.parseCategory(c)
	if apiErr != nil {
		return apiErr
	}

	multipartForm, err := c.MultipartForm()
	if err != nil {
		return NewBadRequestError("invalid multipart body", err)
	}

	var batch []models.StagedFile
	for _, fileHeader := range multipartForm.File[selectionFieldName] {
		src, err := fileHeader.Open()
		if err != nil {
			h.releaseBatch(batch)
			return NewInternalError("failed to read selected file", err)
		}

		info, err := h.store.Save(fileHeader.Filename, fileHeader.Header.Get("Content-Type"), src)
		src.Close()
		if err != nil {
			h.releaseBatch(batch)
			return NewInternalError("failed to stage selected file", err)
		}

		batch = append(batch, *info)
	}

	if err := form.SelectFiles(category, batch); err != nil {
		h.releaseBatch(batch)
		return NewBadRequestError("failed to select files", err)
	}

	return c.JSON(http.StatusOK, newFormResponse(form, nil))
}

// HandleRemoveFile dismisses one staged entry by position. An out-of-range
// index leaves the sequence unchanged.
func (h *FormHandlerImpl) HandleRemoveFile(c echo.Context) error {
	form, err := h.lookupForm(c)
	if err != nil {
		return err
	}

	category, apiErr := h.parseCategory(c)
	if apiErr != nil {
		return apiErr
	}

	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		return NewValidationError("index")
	}

	form.RemoveFile(category, index)

	return c.JSON(http.StatusOK, newFormResponse(form, nil))
}

// HandleSubmit runs the submission. Outcomes that are part of the form's
// protocol (nothing staged, collaborator rejection, transport failure) are
// returned with the refreshed state so the frontend renders the banner from
// the body; only API misuse goes through the error handler.
func (h *FormHandlerImpl) HandleSubmit(c echo.Context) error {
	form, err := h.lookupForm(c)
	if err != nil {
		return err
	}

	result, err := form.Submit(c.Request().Context())
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, newFormResponse(form, result))
	case errors.Is(err, staging.ErrNoFilesSelected):
		return c.JSON(http.StatusBadRequest, newFormResponse(form, nil))
	case errors.Is(err, staging.ErrSubmissionInFlight):
		return NewConflictError("a submission is already in progress")
	default:
		// ServerRejected and TransportFailure both surface through the
		// state's error message; the collaborator is unreachable or unhappy
		// either way.
		return c.JSON(http.StatusBadGateway, newFormResponse(form, nil))
	}
}

// HandleDeleteForm discards a form and everything staged on it.
func (h *FormHandlerImpl) HandleDeleteForm(c echo.Context) error {
	id := c.Param("formId")
	if id == "" {
		return NewValidationError("formId")
	}

	h.forms.Delete(id)

	return c.NoContent(http.StatusNoContent)
}

// HandleGetCategories returns the category table so the frontend renders
// its pickers from the same table that defines the wire contract.
func (h *FormHandlerImpl) HandleGetCategories(c echo.Context) error {
	return c.JSON(http.StatusOK, h.table)
}

// Helper functions

func (h *FormHandlerImpl) lookupForm(c echo.Context) (*staging.Form, error) {
	id := c.Param("formId")
	if id == "" {
		return nil, NewValidationError("formId")
	}

	form, ok := h.forms.Get(id)
	if !ok {
		return nil, NewNotFoundError("form", id)
	}

	return form, nil
}

func (h *FormHandlerImpl) parseCategory(c echo.Context) (models.Category, *APIError) {
	raw := c.Param("category")
	category, ok := models.ParseCategory(raw)
	if !ok {
		return "", NewBadRequestError("unknown category: "+raw, nil)
	}
	return category, nil
}

// releaseBatch drops blobs staged for a selection that never made it onto
// the form.
func (h *FormHandlerImpl) releaseBatch(batch []models.StagedFile) {
	for _, staged := range batch {
		h.store.Release(staged.ID)
	}
}
