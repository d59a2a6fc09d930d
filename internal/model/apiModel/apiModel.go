// Package apiModel mirrors the backend's JSON bodies. Field names follow the
// backend's flattened snake_case wire contract and must not be changed
// client-side. Amounts travel as plain CLP numbers.
package apiModel

import "encoding/json"

type LoginRequest struct {
	UserID int64 `json:"user_id"`
}

type UserResponse struct {
	UserID     int64   `json:"user_id"`
	Name       string  `json:"name"`
	BalanceCLP float64 `json:"balance_clp"`
}

type Tracker struct {
	ID             int64   `json:"id"`
	Name           string  `json:"name"`
	Type           string  `json:"type"`
	AvatarURL      string  `json:"avatar_url"`
	Description    string  `json:"description"`
	YTDReturn      float64 `json:"ytd_return"`
	AverageDelay   int     `json:"average_delay"`
	RiskLevel      string  `json:"risk_level"`
	FollowersCount int     `json:"followers_count"`
}

type Holding struct {
	ID                int64   `json:"id"`
	TrackerID         int64   `json:"tracker_id"`
	Ticker            string  `json:"ticker"`
	CompanyName       string  `json:"company_name"`
	AllocationPercent float64 `json:"allocation_percent"`
}

type InvestmentRequest struct {
	UserID    int64 `json:"user_id"`
	TrackerID int64 `json:"tracker_id"`
	AmountCLP int64 `json:"amount_clp"`
}

type InvestmentResponse struct {
	Success          bool     `json:"success"`
	Message          string   `json:"message"`
	PortfolioItemID  int64    `json:"portfolio_item_id"`
	RemainingBalance *float64 `json:"remaining_balance"`
	Error            string   `json:"error"`
}

type Portfolio struct {
	UserID                 int64           `json:"user_id"`
	AvailableBalanceCLP    float64         `json:"available_balance_clp"`
	TotalInvestedCLP       float64         `json:"total_invested_clp"`
	TotalCurrentValueCLP   float64         `json:"total_current_value_clp"`
	TotalProfitLossCLP     float64         `json:"total_profit_loss_clp"`
	TotalProfitLossPercent float64         `json:"total_profit_loss_percent"`
	ActiveTrackers         []ActiveTracker `json:"active_trackers"`
}

type ActiveTracker struct {
	TrackerID         int64   `json:"tracker_id"`
	TrackerName       string  `json:"tracker_name"`
	InvestedAmountCLP float64 `json:"invested_amount_clp"`
	CurrentValueCLP   float64 `json:"current_value_clp"`
	ProfitLossCLP     float64 `json:"profit_loss_clp"`
	ProfitLossPercent float64 `json:"profit_loss_percent"`
}

type AmountRequest struct {
	AmountCLP int64 `json:"amount_clp"`
}

type BalanceResponse struct {
	UserID     int64   `json:"user_id"`
	Name       string  `json:"name"`
	BalanceCLP float64 `json:"balance_clp"`
	Message    string  `json:"message"`
}

// ErrorResponse covers the backend's failure bodies. Detail stays raw because
// it can be either a string or a list of validation messages.
type ErrorResponse struct {
	Detail json.RawMessage `json:"detail"`
	Error  string          `json:"error"`
}

type ValidationMessage struct {
	Msg string `json:"msg"`
}
