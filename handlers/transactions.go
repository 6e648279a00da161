package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/LovationAdmin/finance-tracker/middleware"
	"github.com/LovationAdmin/finance-tracker/models"
	"github.com/LovationAdmin/finance-tracker/services"
	"github.com/LovationAdmin/finance-tracker/store"
)

type TransactionHandler struct {
	Store store.Store
}

func (h *TransactionHandler) feed(c *gin.Context) *services.TransactionFeed {
	return services.NewTransactionFeed(h.Store, middleware.GetSession(c))
}

// List returns the user's records, newest first, narrowed by the optional
// tab (all|income|expense) and q text filter.
func (h *TransactionHandler) List(c *gin.Context) {
	tab := services.Tab(c.DefaultQuery("tab", string(services.TabAll)))
	if !tab.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tab must be all, income or expense"})
		return
	}

	items, err := h.feed(c).Export(c.Request.Context())
	if err != nil {
		respondError(c, err, "Failed to fetch transactions")
		return
	}

	visible := services.VisibleItems(items, tab, c.Query("q"))
	c.JSON(http.StatusOK, gin.H{
		"items":  visible,
		"totals": services.ComputeTotals(items),
	})
}

func (h *TransactionHandler) Create(c *gin.Context) {
	var in models.TransactionInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id, err := h.feed(c).Create(c.Request.Context(), in)
	if err != nil {
		respondError(c, err, "Failed to save transaction")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

// Delete requires confirm=true; the query flag is the REST form of the
// confirmation prompt.
func (h *TransactionHandler) Delete(c *gin.Context) {
	confirmed, _ := strconv.ParseBool(c.Query("confirm"))
	if !confirmed {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":                 "Deletion must be confirmed",
			"requires_confirmation": true,
		})
		return
	}

	if _, err := h.feed(c).Remove(c.Request.Context(), c.Param("id"), services.Answer(true)); err != nil {
		respondError(c, err, "Failed to delete transaction")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Transaction deleted"})
}

// summary loads the records and the month to aggregate: the month query
// parameter, or the user's effective default month.
func (h *TransactionHandler) summary(c *gin.Context) (services.Summary, models.Preferences, bool) {
	ctx := c.Request.Context()
	session := middleware.GetSession(c)

	prefs, err := services.FetchPreferences(ctx, h.Store, session.Current())
	if err != nil {
		respondError(c, err, "Failed to fetch preferences")
		return services.Summary{}, prefs, false
	}

	month := c.Query("month")
	if month == "" {
		month = services.EffectiveMonth(prefs, time.Now())
	} else if !models.ValidMonth(month) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "month must be YYYY-MM"})
		return services.Summary{}, prefs, false
	}

	items, err := h.feed(c).Export(ctx)
	if err != nil {
		respondError(c, err, "Failed to fetch transactions")
		return services.Summary{}, prefs, false
	}
	return services.Summarize(items, month), prefs, true
}

func (h *TransactionHandler) Summary(c *gin.Context) {
	s, _, ok := h.summary(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h *TransactionHandler) Report(c *gin.Context) {
	s, prefs, ok := h.summary(c)
	if !ok {
		return
	}
	c.String(http.StatusOK, services.RenderMonthReport(s, prefs.Currency))
}
