// handlers/user.go
// Profile, password, two-factor, account deletion and data export.

package handlers

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/LovationAdmin/finance-tracker/middleware"
	"github.com/LovationAdmin/finance-tracker/models"
	"github.com/LovationAdmin/finance-tracker/services"
	"github.com/LovationAdmin/finance-tracker/store"
)

type UserHandler struct {
	Auth  *services.AuthService
	Store store.Store
}

// ============================================================================
// PROFILE MANAGEMENT
// ============================================================================

func (h *UserHandler) GetProfile(c *gin.Context) {
	session := middleware.GetSession(c)
	user := session.Current()
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	c.JSON(http.StatusOK, user)
}

func (h *UserHandler) UpdateProfile(c *gin.Context) {
	var req models.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.Auth.UpdateDisplayName(c.Request.Context(), middleware.GetSession(c), req.DisplayName)
	if err != nil {
		respondAuthError(c, err, services.OpSignUp, "Failed to update profile")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Profile updated successfully",
		"user":    user,
	})
}

func (h *UserHandler) ChangePassword(c *gin.Context) {
	var req models.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.Auth.ChangePassword(c.Request.Context(), middleware.GetSession(c), req.CurrentPassword, req.NewPassword)
	if err != nil {
		respondAuthError(c, err, services.OpSignIn, "Failed to update password")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Password changed successfully"})
}

// ============================================================================
// 2FA MANAGEMENT
// ============================================================================

func (h *UserHandler) SetupTOTP(c *gin.Context) {
	resp, err := h.Auth.SetupTOTP(c.Request.Context(), middleware.GetSession(c))
	if err != nil {
		respondAuthError(c, err, services.OpTwoFactor, "Failed to generate TOTP")
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *UserHandler) VerifyTOTP(c *gin.Context) {
	var req models.VerifyTOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.Auth.EnableTOTP(c.Request.Context(), middleware.GetSession(c), req.Code); err != nil {
		respondAuthError(c, err, services.OpTwoFactor, "Failed to enable 2FA")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":      "2FA enabled successfully",
		"totp_enabled": true,
	})
}

func (h *UserHandler) DisableTOTP(c *gin.Context) {
	var req models.DisableTOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.Auth.DisableTOTP(c.Request.Context(), middleware.GetSession(c), req.Password, req.Code); err != nil {
		respondAuthError(c, err, services.OpTwoFactor, "Failed to disable 2FA")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":      "2FA disabled successfully",
		"totp_enabled": false,
	})
}

// ============================================================================
// ACCOUNT DELETION
// ============================================================================

func (h *UserHandler) DeleteAccount(c *gin.Context) {
	var req models.DeleteAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.Auth.DeleteAccount(c.Request.Context(), middleware.GetSession(c), req.Password); err != nil {
		respondAuthError(c, err, services.OpSignIn, "Failed to delete account")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Account deleted successfully"})
}

// ============================================================================
// DATA EXPORT
// ============================================================================

func (h *UserHandler) ExportUserData(c *gin.Context) {
	session := middleware.GetSession(c)
	user := session.Current()
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	log.Printf("📊 [Export] User %s requested data export", middleware.GetUserID(c))

	prefs, err := services.FetchPreferences(c.Request.Context(), h.Store, user)
	if err != nil {
		respondError(c, err, "Failed to fetch user data")
		return
	}
	items, err := services.NewTransactionFeed(h.Store, session).Export(c.Request.Context())
	if err != nil {
		respondError(c, err, "Failed to fetch transactions")
		return
	}

	now := time.Now().UTC()
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="finance-export-%s.json"`, now.Format("2006-01-02")))
	c.JSON(http.StatusOK, models.UserExport{
		User:         *user,
		Preferences:  prefs,
		Transactions: items,
		ExportedAt:   now,
	})
}
