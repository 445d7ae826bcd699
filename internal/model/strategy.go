package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// StrategyConfig is the single active strategy row read once per cycle.
// The admin collaborator owns writes; the core never mutates it.
type StrategyConfig struct {
	ID                      int64           `json:"id" db:"id"`
	Name                    string          `json:"name" db:"name"`
	IsActive                bool            `json:"is_active" db:"is_active"`
	AssetsToMonitor         []string        `json:"assets_to_monitor" db:"assets_to_monitor"`
	AllowTrading            bool            `json:"allow_trading" db:"allow_trading"`
	DefaultAmount           decimal.Decimal `json:"default_amount" db:"default_amount"`
	DefaultTimeframeSeconds int             `json:"default_timeframe" db:"default_timeframe"`
	RSIPeriod               int             `json:"rsi_period" db:"rsi_period"`
	RSIOversold             float64         `json:"rsi_oversold" db:"rsi_oversold"`
	RSIOverbought           float64         `json:"rsi_overbought" db:"rsi_overbought"`
	TrendStrengthMin        float64         `json:"trend_strength_min" db:"trend_strength_min"`
	TrendDeadbandPercent    float64         `json:"trend_deadband_percent" db:"trend_deadband_percent"`
	UpdatedAt               time.Time       `json:"updated_at" db:"updated_at"`
}

// Direction is a binary-options trade direction.
type Direction string

const (
	DirectionCall Direction = "CALL"
	DirectionPut  Direction = "PUT"
)

// Signal is one directional recommendation for one asset in one cycle.
type Signal struct {
	Asset            string          `json:"asset"`
	Direction        Direction       `json:"direction"`
	Amount           decimal.Decimal `json:"amount"`
	TimeframeSeconds int             `json:"timeframe"`
	Indicator        string          `json:"indicator"`
	Value            float64         `json:"value"`
	GeneratedAt      time.Time       `json:"generated_at"`
}

// RequestStatus is the lifecycle state of a user signal request.
type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestExecuted RequestStatus = "executed"
	RequestFailed   RequestStatus = "failed"
)

// SignalRequest tracks a user's ask for a trade. Created pending by the
// intake collaborator; executed/failed are terminal.
type SignalRequest struct {
	ID        int64         `json:"id" db:"id"`
	UserID    int64         `json:"user_id" db:"user_id"`
	Status    RequestStatus `json:"status" db:"status"`
	CreatedAt time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt time.Time     `json:"updated_at" db:"updated_at"`
}

// TradeStatus is the lifecycle state of an executed trade.
type TradeStatus string

const (
	TradeOpen TradeStatus = "open"
	TradeWin  TradeStatus = "win"
	TradeLoss TradeStatus = "loss"
)

// Trade is one broker-executed position. ClosedAt and Profit are nil
// exactly while Status is open; settlement sets all three once.
type Trade struct {
	ID               string           `json:"id" db:"id"`
	UserID           int64            `json:"user_id" db:"user_id"`
	TradeID          string           `json:"trade_id" db:"trade_id"`
	Asset            string           `json:"asset" db:"asset"`
	Direction        Direction        `json:"direction" db:"direction"`
	Status           TradeStatus      `json:"status" db:"status"`
	Amount           decimal.Decimal  `json:"amount" db:"amount"`
	TimeframeSeconds int              `json:"timeframe" db:"timeframe"`
	CreatedAt        time.Time        `json:"created_at" db:"created_at"`
	ClosedAt         *time.Time       `json:"closed_at,omitempty" db:"closed_at"`
	Profit           *decimal.Decimal `json:"profit,omitempty" db:"profit"`
}
