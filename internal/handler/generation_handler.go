package handler

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	apperrors "genstudio/internal/errors"
	"genstudio/internal/model"
	"genstudio/internal/service"
)

// GenerationHandler handles generation endpoints.
type GenerationHandler struct {
	generationService service.GenerationService
	logger            *zap.Logger
}

// NewGenerationHandler creates a new generation handler.
func NewGenerationHandler(generationService service.GenerationService, logger *zap.Logger) *GenerationHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GenerationHandler{generationService: generationService, logger: logger}
}

// CreateGenerationRequest represents the text fields of a generation request.
type CreateGenerationRequest struct {
	Prompt string `form:"prompt" validate:"required,min=3,max=300"`
	Style  string `form:"style" validate:"required,min=1,max=40"`
}

// Create godoc
// @Summary Generate an image
// @Description Simulated generation. Fails with 429 MODEL_OVERLOADED about one time in five.
// @Tags generations
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param prompt formData string true "Prompt (3-300 characters)"
// @Param style formData string true "Style (1-40 characters)"
// @Param file formData file false "Source image"
// @Success 200 {object} model.GenerationResult
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 429 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /generations [post]
func (h *GenerationHandler) Create(c echo.Context) error {
	claims, err := currentClaims(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	userID, err := claims.UserID()
	if err != nil {
		return respondError(c, h.logger, apperrors.ErrUnauthorized)
	}

	form, err := c.MultipartForm()
	if err != nil {
		return respondError(c, h.logger, apperrors.ErrMultipartRequired)
	}

	req := CreateGenerationRequest{
		Prompt: firstValue(form, "prompt"),
		Style:  firstValue(form, "style"),
	}
	if err := c.Validate(&req); err != nil {
		return respondError(c, h.logger, err)
	}

	in := service.CreateGenerationInput{Prompt: req.Prompt, Style: req.Style}
	fh, err := c.FormFile("file")
	switch {
	case err == nil:
		in.Upload = &service.Upload{
			Filename: fh.Filename,
			Size:     fh.Size,
			Open: func() (io.ReadCloser, error) {
				return fh.Open()
			},
		}
	case errors.Is(err, http.ErrMissingFile):
	default:
		return respondError(c, h.logger, apperrors.ErrInvalidRequest)
	}

	gen, err := h.generationService.Create(c.Request().Context(), userID, in)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return c.JSON(http.StatusOK, gen.Result())
}

// List godoc
// @Summary List recent generations
// @Description Returns the caller's five most recent generations, newest first.
// @Tags generations
// @Produce json
// @Security BearerAuth
// @Success 200 {array} model.GenerationResult
// @Failure 401 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /generations [get]
func (h *GenerationHandler) List(c echo.Context) error {
	claims, err := currentClaims(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	userID, err := claims.UserID()
	if err != nil {
		return respondError(c, h.logger, apperrors.ErrUnauthorized)
	}

	gens, err := h.generationService.ListRecent(c.Request().Context(), userID)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return c.JSON(http.StatusOK, model.Results(gens))
}

func firstValue(form *multipart.Form, key string) string {
	if vs := form.Value[key]; len(vs) > 0 {
		return vs[0]
	}
	return ""
}
