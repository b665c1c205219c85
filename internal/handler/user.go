package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"taxi/internal/middleware"
	"taxi/internal/repository"
	"taxi/internal/session"
)

// UserHandler handles HTTP requests for users.
type UserHandler struct {
	userRepo repository.UserRepository
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(userRepo repository.UserRepository) *UserHandler {
	return &UserHandler{userRepo: userRepo}
}

// Me handles GET /v1/users/me
func (h *UserHandler) Me(c *gin.Context) {
	identity := middleware.IdentityFrom(c)

	user, err := h.userRepo.GetByID(c.Request.Context(), identity.UserID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, session.NewUserPayload(user))
}
