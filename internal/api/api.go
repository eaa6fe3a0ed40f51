package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"r6market/internal/models"
	"r6market/internal/services/alerts"
	"r6market/internal/services/analyzer"
	"r6market/internal/services/refresher"
	"r6market/internal/store"
	"r6market/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
)

type APIHandler struct {
	store     *store.Store
	refresher *refresher.Refresher
	evaluator *alerts.Evaluator
	hub       *ws.Hub
}

func SetupRoutes(r *gin.RouterGroup, st *store.Store, rf *refresher.Refresher, ev *alerts.Evaluator, hub *ws.Hub) *APIHandler {
	handler := &APIHandler{
		store:     st,
		refresher: rf,
		evaluator: ev,
		hub:       hub,
	}

	refresh := r.Group("/refresh")
	{
		refresh.POST("/favorites", handler.RefreshFavorites)
		refresh.POST("/owned", handler.RefreshOwned)
	}

	r.GET("/items/:itemId", handler.GetItem)
	r.POST("/favorites/toggle", handler.ToggleFavorite)

	r.GET("/settings", handler.GetSettings)
	r.PUT("/settings", handler.PutSettings)

	r.GET("/alerts", handler.ListAlerts)
	r.PUT("/alerts/:itemId", handler.PutAlert)
	r.DELETE("/alerts/:itemId", handler.DeleteAlert)

	r.GET("/state", handler.GetState)
	r.GET("/export/owned", handler.ExportOwned)
	r.GET("/health", handler.Health)

	return handler
}

// RefreshFavorites kicks off the favorites refresh flow. Conflicts with a
// refresh already in flight.
func (h *APIHandler) RefreshFavorites(c *gin.Context) {
	if err := h.refresher.RefreshFavorites(c.Request.Context()); err != nil {
		h.refreshError(c, err)
		return
	}
	records, err := h.store.MarketRecords()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	lastUpdate, _ := h.store.LastUpdate()
	c.JSON(http.StatusOK, gin.H{
		"message":    "favorites refreshed",
		"count":      len(records),
		"lastUpdate": lastUpdate,
	})
}

// RefreshOwned synchronizes trade history and rebuilds the owned-items view.
func (h *APIHandler) RefreshOwned(c *gin.Context) {
	if err := h.refresher.RefreshOwned(c.Request.Context()); err != nil {
		h.refreshError(c, err)
		return
	}
	items, err := h.store.OwnedItems()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	lastUpdate, _ := h.store.LastDashboardUpdate()
	c.JSON(http.StatusOK, gin.H{
		"items":               items,
		"lastDashboardUpdate": lastUpdate,
	})
}

func (h *APIHandler) refreshError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, refresher.ErrAlreadyRunning):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, refresher.ErrNoCredentials):
		c.JSON(http.StatusPreconditionFailed, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// GetItem returns the combined panel payload for one item: market record
// (fetched on demand when missing or when refresh=true), personal position,
// favorite mark, alert and the derived undervalue ratios.
func (h *APIHandler) GetItem(c *gin.Context) {
	itemID := c.Param("itemId")

	record, err := h.store.MarketRecord(itemID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if record == nil || c.Query("refresh") == "true" {
		record, err = h.refresher.FetchSingleItem(c.Request.Context(), itemID)
		if err != nil {
			if errors.Is(err, refresher.ErrNoCredentials) {
				c.JSON(http.StatusPreconditionFailed, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
	}

	personal, err := h.store.PersonalRecords()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	var position *models.PersonalRecord
	if p, ok := personal[itemID]; ok {
		position = &p
	}

	favoriteIDs, err := h.store.FavoriteIDs()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	isFavorite := false
	for _, id := range favoriteIDs {
		if id == itemID {
			isFavorite = true
			break
		}
	}

	var alert *models.PriceAlert
	all, err := h.store.Alerts()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	for i := range all {
		if all[i].ItemID == itemID {
			alert = &all[i]
			break
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"market":              record,
		"personal":            position,
		"isFavorite":          isFavorite,
		"alert":               alert,
		"undervalueRatio_7d":  analyzer.Undervalue(record.AvgPrice7d, record.CurrentLowestSellPrice),
		"undervalueRatio_14d": analyzer.Undervalue(record.AvgPrice14d, record.CurrentLowestSellPrice),
	})
}

type toggleFavoriteRequest struct {
	ItemID string `json:"itemId" binding:"required"`
}

func (h *APIHandler) ToggleFavorite(c *gin.Context) {
	var req toggleFavoriteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "itemId is required"})
		return
	}
	favorited, err := h.store.ToggleFavorite(req.ItemID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"itemId": req.ItemID, "isFavorite": favorited})
}

func (h *APIHandler) GetSettings(c *gin.Context) {
	settings, err := h.store.Settings()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, settings)
}

// PutSettings replaces the stored settings and re-arms the alert checker to
// match the new interval / enable flag.
func (h *APIHandler) PutSettings(c *gin.Context) {
	var settings models.Settings
	if err := c.ShouldBindJSON(&settings); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.store.SaveSettings(settings); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	h.evaluator.Reset(settings)
	c.JSON(http.StatusOK, settings)
}

func (h *APIHandler) ListAlerts(c *gin.Context) {
	all, err := h.store.Alerts()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"alerts": all})
}

type putAlertRequest struct {
	Type      string `json:"type" binding:"required"`
	Condition string `json:"condition" binding:"required"`
	Price     int    `json:"price" binding:"required"`
}

func (h *APIHandler) PutAlert(c *gin.Context) {
	itemID := c.Param("itemId")
	var req putAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Type != alerts.TypeSell && req.Type != alerts.TypeBuy {
		c.JSON(http.StatusBadRequest, gin.H{"error": "type must be sell or buy"})
		return
	}
	if req.Condition != alerts.ConditionBelow && req.Condition != alerts.ConditionAbove {
		c.JSON(http.StatusBadRequest, gin.H{"error": "condition must be below or above"})
		return
	}
	alert := models.PriceAlert{
		ItemID:    itemID,
		Type:      req.Type,
		Condition: req.Condition,
		Price:     req.Price,
	}
	if err := h.store.UpsertAlert(alert); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, alert)
}

func (h *APIHandler) DeleteAlert(c *gin.Context) {
	itemID := c.Param("itemId")
	if err := h.store.DeleteAlert(itemID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "alert deleted", "itemId": itemID})
}

// GetState is the full shared snapshot the UI surfaces hydrate from:
// market and personal records, owned view, favorites, alerts, settings,
// refresh flags and timestamps.
func (h *APIHandler) GetState(c *gin.Context) {
	headers, err := h.store.Credentials()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	market, err := h.store.MarketRecords()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	personal, err := h.store.PersonalRecords()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	owned, err := h.store.OwnedItems()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	favoriteIDs, err := h.store.FavoriteIDs()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	alertList, err := h.store.Alerts()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	settings, err := h.store.Settings()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	favoritesRunning, err := h.store.RefreshInProgress(store.FlagFavorites)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	ownedRunning, err := h.store.RefreshInProgress(store.FlagOwned)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	lastUpdate, _ := h.store.LastUpdate()
	lastDashboardUpdate, _ := h.store.LastDashboardUpdate()
	watermark, _ := h.store.Watermark()

	c.JSON(http.StatusOK, gin.H{
		"hasCredentials":           headers != nil,
		"marketRecords":            market,
		"personalRecords":          personal,
		"ownedItems":               owned,
		"favorites":                favoriteIDs,
		"priceAlerts":              alertList,
		"settings":                 settings,
		"isUpdating":               favoritesRunning,
		"isDashboardUpdating":      ownedRunning,
		"lastUpdate":               lastUpdate,
		"lastDashboardUpdate":      lastDashboardUpdate,
		"lastTransactionTimestamp": watermark,
	})
}

// ExportOwned streams the owned-items view as an xlsx workbook.
func (h *APIHandler) ExportOwned(c *gin.Context) {
	items, err := h.store.OwnedItems()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	f := excelize.NewFile()
	defer f.Close()
	sheet := "Owned"
	f.SetSheetName("Sheet1", sheet)

	headers := []string{
		"Item ID", "Name", "Favorite",
		"Lowest Sell", "Highest Buy", "Spread", "Avg 7d", "Avg 14d",
		"Buy Price", "Buy Date", "Sell Price", "Sell Date",
		"Net Profit", "Profit %", "Net Profit 7d", "Profit % 7d",
	}
	for i, name := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, name)
	}

	setInt := func(col, row int, v *int) {
		if v == nil {
			return
		}
		cell, _ := excelize.CoordinatesToCellName(col, row)
		f.SetCellValue(sheet, cell, *v)
	}
	setFloat := func(col, row int, v *float64) {
		if v == nil {
			return
		}
		cell, _ := excelize.CoordinatesToCellName(col, row)
		f.SetCellValue(sheet, cell, *v)
	}
	setDate := func(col, row int, v *time.Time) {
		if v == nil {
			return
		}
		cell, _ := excelize.CoordinatesToCellName(col, row)
		f.SetCellValue(sheet, cell, v.Format("2006-01-02 15:04"))
	}

	for i, item := range items {
		row := i + 2
		f.SetCellValue(sheet, fmt.Sprintf("A%d", row), item.ItemID)
		f.SetCellValue(sheet, fmt.Sprintf("B%d", row), item.Name)
		f.SetCellValue(sheet, fmt.Sprintf("C%d", row), item.IsFavorite)
		setInt(4, row, item.CurrentLowestSellPrice)
		setInt(5, row, item.CurrentHighestBuyPrice)
		setInt(6, row, item.Spread)
		setInt(7, row, item.AvgPrice7d)
		setInt(8, row, item.AvgPrice14d)
		setInt(9, row, item.BuyPrice)
		setDate(10, row, item.BuyDate)
		setInt(11, row, item.SellPrice)
		setDate(12, row, item.SellDate)
		setInt(13, row, item.NetProfitCurrent)
		setFloat(14, row, item.ProfitRatioCurrent)
		setInt(15, row, item.NetProfit7d)
		setFloat(16, row, item.ProfitRatio7d)
	}

	filename := fmt.Sprintf("owned-items-%s.xlsx", time.Now().Format("20060102-150405"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	if err := f.Write(c.Writer); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func (h *APIHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
