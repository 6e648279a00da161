package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/LovationAdmin/finance-tracker/middleware"
	"github.com/LovationAdmin/finance-tracker/models"
	"github.com/LovationAdmin/finance-tracker/services"
)

type AuthHandler struct {
	Auth *services.AuthService
}

func (h *AuthHandler) Signup(c *gin.Context) {
	var req models.SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.Auth.SignUp(c.Request.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		respondAuthError(c, err, services.OpSignUp, services.AuthMessage(err, services.OpSignUp))
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.Auth.SignIn(c.Request.Context(), req.Email, req.Password, req.TOTPCode)
	if services.AuthCode(err) == services.CodeTOTPRequired {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":        services.AuthMessage(err, services.OpSignIn),
			"requires_2fa": true,
		})
		return
	}
	if err != nil {
		respondAuthError(c, err, services.OpSignIn, services.AuthMessage(err, services.OpSignIn))
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *AuthHandler) Logout(c *gin.Context) {
	session := middleware.GetSession(c)
	if session == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	if err := h.Auth.SignOut(c.Request.Context(), session.ID()); err != nil {
		respondError(c, err, "Failed to sign out")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Signed out"})
}
