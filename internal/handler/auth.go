package handler

import (
	"net/http"

	"pride/internal/middleware"
	"pride/internal/models"
	"pride/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type AuthHandler interface {
	Register(c *gin.Context)
	Login(c *gin.Context)
	Logout(c *gin.Context)
	Me(c *gin.Context)
}

type authHandler struct {
	authService service.AuthService
	logger      *zap.Logger
}

func NewAuthHandler(authService service.AuthService, logger *zap.Logger) AuthHandler {
	return &authHandler{authService: authService, logger: logger}
}

// Register handles POST /api/auth/register
func (h *authHandler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.authService.Register(c.Request.Context(), req.Username, req.Password); err != nil {
		respondError(c, h.logger, "Failed to register user", err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":  "User registered successfully",
		"username": req.Username,
	})
}

// Login handles POST /api/auth/login
func (h *authHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := h.authService.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		respondError(c, h.logger, "Failed to login", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":    "Login successful",
		"token":      res.Token,
		"expires_at": res.ExpiresAt,
	})
}

// Logout handles POST /api/auth/logout
func (h *authHandler) Logout(c *gin.Context) {
	h.authService.Logout(c.Request.Context(), middleware.CurrentSession(c))
	c.JSON(http.StatusOK, gin.H{"message": "Logout successful"})
}

// Me handles GET /api/auth/me
func (h *authHandler) Me(c *gin.Context) {
	s := middleware.CurrentSession(c)
	resp := gin.H{
		"username":   s.Username,
		"expires_at": s.ExpiresAt,
	}
	if d := s.Dataset(); d != nil {
		resp["dataset"] = d.FileName
	}
	c.JSON(http.StatusOK, resp)
}
