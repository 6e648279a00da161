package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/LovationAdmin/finance-tracker/handlers"
	"github.com/LovationAdmin/finance-tracker/services"
	"github.com/LovationAdmin/finance-tracker/store"
)

// SetupAuthRoutes sets up public authentication routes.
func SetupAuthRoutes(rg *gin.RouterGroup, auth *services.AuthService) {
	authHandler := &handlers.AuthHandler{Auth: auth}

	rg.POST("/auth/signup", authHandler.Signup)
	rg.POST("/auth/login", authHandler.Login)
}

// SetupUserRoutes sets up protected account routes.
func SetupUserRoutes(rg *gin.RouterGroup, auth *services.AuthService, st store.Store) {
	authHandler := &handlers.AuthHandler{Auth: auth}
	userHandler := &handlers.UserHandler{Auth: auth, Store: st}

	rg.POST("/auth/logout", authHandler.Logout)

	rg.GET("/user/profile", userHandler.GetProfile)
	rg.PUT("/user/profile", userHandler.UpdateProfile)
	rg.POST("/user/password", userHandler.ChangePassword)
	rg.GET("/user/export", userHandler.ExportUserData)
	rg.POST("/user/2fa/setup", userHandler.SetupTOTP)
	rg.POST("/user/2fa/verify", userHandler.VerifyTOTP)
	rg.POST("/user/2fa/disable", userHandler.DisableTOTP)
	rg.DELETE("/user/account", userHandler.DeleteAccount)
}

// SetupPreferencesRoutes sets up the settings record routes.
func SetupPreferencesRoutes(rg *gin.RouterGroup, st store.Store) {
	h := &handlers.PreferencesHandler{Store: st}

	rg.GET("/preferences", h.Get)
	rg.PATCH("/preferences", h.Update)
	rg.POST("/preferences/categories/:kind", h.AddCategory)
	rg.DELETE("/preferences/categories/:kind/:name", h.RemoveCategory)
}

// SetupTransactionRoutes sets up the transaction and summary routes.
func SetupTransactionRoutes(rg *gin.RouterGroup, st store.Store) {
	h := &handlers.TransactionHandler{Store: st}

	rg.GET("/transactions", h.List)
	rg.POST("/transactions", h.Create)
	rg.DELETE("/transactions/:id", h.Delete)

	rg.GET("/summary", h.Summary)
	rg.GET("/summary/report", h.Report)
}

// SetupLiveRoutes sets up the websocket pages.
func SetupLiveRoutes(rg *gin.RouterGroup, ws *handlers.WSHandler) {
	rg.GET("/ws/:view", ws.HandleWS)
}

// Setup mounts every route under /api/v1 of router. Protected groups use authMiddleware.
func Setup(router *gin.Engine, auth *services.AuthService, st store.Store, ws *handlers.WSHandler, authMiddleware gin.HandlerFunc) {
	v1 := router.Group("/api/v1")
	SetupAuthRoutes(v1, auth)

	protected := v1.Group("/")
	protected.Use(authMiddleware)
	{
		SetupUserRoutes(protected, auth, st)
		SetupPreferencesRoutes(protected, st)
		SetupTransactionRoutes(protected, st)
		SetupLiveRoutes(protected, ws)
	}
}
