package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/quoteajob/quoteajob/internal/services"
)

// AuthHandler handles signup, login and email verification.
type AuthHandler struct {
	userService services.IUserService
}

func NewAuthHandler(userService services.IUserService) *AuthHandler {
	return &AuthHandler{userService: userService}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Signup handles POST /v1/auth/signup
func (h *AuthHandler) Signup(c *gin.Context) {
	var req services.Registration
	if !bindJSON(c, &req) {
		return
	}
	user, err := h.userService.Register(c.Request.Context(), req)
	if err != nil {
		respondError(c, err, "Failed to create account")
		return
	}
	c.JSON(http.StatusCreated, user)
}

// Login handles POST /v1/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindJSON(c, &req) {
		return
	}
	session, err := h.userService.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err, "Failed to sign in")
		return
	}
	c.JSON(http.StatusOK, session)
}

// VerifyEmail handles GET /v1/auth/verify?token=
func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing token"})
		return
	}
	user, err := h.userService.VerifyEmail(c.Request.Context(), token)
	if err != nil {
		respondError(c, err, "Failed to verify email")
		return
	}
	c.JSON(http.StatusOK, user)
}
