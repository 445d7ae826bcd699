// Package executor talks to the trade execution collaborator: it places
// one order per accepted signal and hands back the broker's trade
// reference.
package executor

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"trading-core/internal/model"
)

// Client is an HTTP client for the execution collaborator.
type Client struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

func NewClient(baseURL string, logger *zap.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
		logger:  logger,
	}
}

type placeTradeRequest struct {
	UserID    int64           `json:"user_id"`
	Asset     string          `json:"asset"`
	Direction model.Direction `json:"direction"`
	Amount    decimal.Decimal `json:"amount"`
	Timeframe int             `json:"timeframe"`
}

type placeTradeResponse struct {
	Status  string `json:"status"`
	TradeID string `json:"trade_id"`
	Message string `json:"message"`
}

// Execute places one trade and returns the broker-assigned reference.
func (c *Client) Execute(ctx context.Context, userID int64, sig model.Signal) (string, error) {
	payload, err := json.Marshal(placeTradeRequest{
		UserID:    userID,
		Asset:     sig.Asset,
		Direction: sig.Direction,
		Amount:    sig.Amount,
		Timeframe: sig.TimeframeSeconds,
	})
	if err != nil {
		return "", fmt.Errorf("marshalling trade request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/trades", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("building trade request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling execution collaborator: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("execution collaborator returned status %d", resp.StatusCode)
	}

	var result placeTradeResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decoding trade response: %w", err)
	}
	if result.Status == "error" || result.TradeID == "" {
		return "", fmt.Errorf("trade rejected by broker: %s", result.Message)
	}

	c.logger.Info("trade placed with broker",
		zap.Int64("user_id", userID),
		zap.String("asset", sig.Asset),
		zap.String("trade_id", result.TradeID))
	return result.TradeID, nil
}
