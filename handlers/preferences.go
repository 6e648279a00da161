package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/LovationAdmin/finance-tracker/middleware"
	"github.com/LovationAdmin/finance-tracker/models"
	"github.com/LovationAdmin/finance-tracker/services"
	"github.com/LovationAdmin/finance-tracker/store"
)

type PreferencesHandler struct {
	Store store.Store
}

func (h *PreferencesHandler) Get(c *gin.Context) {
	prefs, err := services.FetchPreferences(c.Request.Context(), h.Store, middleware.GetSession(c).Current())
	if err != nil {
		respondError(c, err, "Failed to fetch preferences")
		return
	}
	c.JSON(http.StatusOK, prefs)
}

func (h *PreferencesHandler) Update(c *gin.Context) {
	var patch models.PreferencesPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session := middleware.GetSession(c)
	if err := services.UpdatePreferences(c.Request.Context(), h.Store, session, patch); err != nil {
		respondError(c, err, "Failed to update preferences")
		return
	}
	h.Get(c)
}

type categoryRequest struct {
	Name string `json:"name" binding:"required"`
}

func (h *PreferencesHandler) AddCategory(c *gin.Context) {
	kind := models.Kind(c.Param("kind"))
	if !kind.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "kind must be income or expense"})
		return
	}
	var req categoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.editCategories(c, func(cats models.Categories) (models.Categories, bool) {
		return cats.Add(kind, req.Name)
	})
}

func (h *PreferencesHandler) RemoveCategory(c *gin.Context) {
	kind := models.Kind(c.Param("kind"))
	if !kind.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "kind must be income or expense"})
		return
	}
	name := c.Param("name")

	h.editCategories(c, func(cats models.Categories) (models.Categories, bool) {
		return cats.Remove(kind, name)
	})
}

// editCategories applies edit to the stored lists and returns the resulting
// categories. An edit that changes nothing writes nothing.
func (h *PreferencesHandler) editCategories(c *gin.Context, edit func(models.Categories) (models.Categories, bool)) {
	ctx := c.Request.Context()
	session := middleware.GetSession(c)

	// creates the record on first use
	if _, err := services.FetchPreferences(ctx, h.Store, session.Current()); err != nil {
		respondError(c, err, "Failed to fetch preferences")
		return
	}

	cats, err := services.EditCategories(ctx, h.Store, session, edit)
	if err != nil {
		respondError(c, err, "Failed to update categories")
		return
	}
	c.JSON(http.StatusOK, cats)
}
