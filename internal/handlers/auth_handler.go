package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ayudamx/volunteer-service/internal/services"
	"github.com/ayudamx/volunteer-service/internal/utils"
)

type AuthHandler struct {
	BaseHandler
	identityService services.IdentityService
}

func NewAuthHandler(identityService services.IdentityService, logger utils.Logger) *AuthHandler {
	return &AuthHandler{
		BaseHandler:     NewBaseHandler(logger),
		identityService: identityService,
	}
}

// Register creates an account and a pending volunteer profile
// @Summary Register volunteer
// @Description Create a provider account plus a "pendiente" profile awaiting approval
// @Tags auth
// @Accept json
// @Produce json
// @Param request body services.RegisterRequest true "Registration payload"
// @Success 201 {object} services.VolunteerResponse
// @Failure 400 {object} ErrorResponse "Validation failed"
// @Router /auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req services.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request body",
			Details: err.Error(),
		})
		return
	}

	h.LogRequest(c, "Registering volunteer", "email", req.Email)

	volunteer, err := h.identityService.Register(c.Request.Context(), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, volunteer)
}

// Me resolves the authenticated session
// @Summary Current identity
// @Tags auth
// @Produce json
// @Success 200 {object} services.Identity
// @Failure 403 {object} ErrorResponse "Profile not approved"
// @Router /auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	userID, err := GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "User not authenticated"})
		return
	}

	identity, err := h.identityService.Resolve(c.Request.Context(), userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, identity)
}

// ChangePassword updates the caller's password
// @Summary Change password
// @Tags auth
// @Accept json
// @Produce json
// @Success 200 {object} SuccessResponse
// @Router /auth/password [put]
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	userID, err := GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "User not authenticated"})
		return
	}

	var req struct {
		OldPassword string `json:"old_password" binding:"required"`
		NewPassword string `json:"new_password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request body",
			Details: err.Error(),
		})
		return
	}

	h.LogRequest(c, "Changing password", "user_id", userID)

	if err := h.identityService.ChangePassword(c.Request.Context(), userID, req.OldPassword, req.NewPassword); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Password updated"})
}

// SignOut revokes the caller's sessions
// @Summary Sign out
// @Tags auth
// @Produce json
// @Success 200 {object} SuccessResponse
// @Router /auth/signout [post]
func (h *AuthHandler) SignOut(c *gin.Context) {
	userID, err := GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "User not authenticated"})
		return
	}

	h.LogRequest(c, "Signing out", "user_id", userID)

	if err := h.identityService.SignOut(c.Request.Context(), userID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Signed out"})
}
