package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"trading-core/internal/lifecycle"
	"trading-core/internal/model"
	"trading-core/internal/storage"
)

// Handler serves the read paths the bot and admin collaborators use,
// plus the settlement intake the broker collaborator calls when a trade
// expires.
type Handler struct {
	store  *storage.Store
	trades *lifecycle.Trades
	logger *zap.Logger
}

func NewHandler(store *storage.Store, trades *lifecycle.Trades, logger *zap.Logger) *Handler {
	return &Handler{
		store:  store,
		trades: trades,
		logger: logger,
	}
}

// GetStats returns recent aggregated stats for one asset.
func (h *Handler) GetStats(c *gin.Context) {
	asset := strings.ToUpper(c.Param("asset"))
	period := model.Period(c.DefaultQuery("period", string(model.PeriodDaily)))

	switch period {
	case model.PeriodDaily, model.PeriodWeekly, model.PeriodMonthly:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown period"})
		return
	}

	stats, err := h.store.RecentStats(c.Request.Context(), asset, period, 30)
	if err != nil {
		h.logger.Error("failed to query stats", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if stats == nil {
		stats = []model.AggregatedStat{}
	}
	c.JSON(http.StatusOK, stats)
}

// GetTrades returns a user's trades, newest first.
func (h *Handler) GetTrades(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Query("user_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}

	trades, err := h.store.TradesByUser(c.Request.Context(), userID, 100)
	if err != nil {
		h.logger.Error("failed to query trades", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if trades == nil {
		trades = []model.Trade{}
	}
	c.JSON(http.StatusOK, trades)
}

// SettleTrade applies the broker's win/loss outcome to an open trade.
// Settling an already-settled trade reports noop instead of failing,
// so the broker collaborator can retry deliveries safely.
func (h *Handler) SettleTrade(c *gin.Context) {
	var req struct {
		Outcome model.TradeStatus `json:"outcome" binding:"required"`
		Profit  decimal.Decimal   `json:"profit"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	settled, err := h.trades.Settle(c.Request.Context(), c.Param("id"), req.Outcome, req.Profit)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !settled {
		c.JSON(http.StatusOK, gin.H{"result": "noop", "reason": "already settled"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": "settled"})
}
