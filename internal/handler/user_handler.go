package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	apperrors "genstudio/internal/errors"
	"genstudio/internal/service"
)

// UserHandler serves account lookups.
type UserHandler struct {
	svc    service.UserService
	logger *zap.Logger
}

// NewUserHandler creates a handler layer.
func NewUserHandler(svc service.UserService, logger *zap.Logger) *UserHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserHandler{svc: svc, logger: logger}
}

// Me godoc
// @Summary Current user
// @Description Returns the account that owns the bearer token
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} model.User
// @Failure 401 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /auth/me [get]
func (h *UserHandler) Me(c echo.Context) error {
	claims, err := currentClaims(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	userID, err := claims.UserID()
	if err != nil {
		return respondError(c, h.logger, apperrors.ErrUnauthorized)
	}

	user, err := h.svc.GetUser(c.Request().Context(), userID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, user)
}
