// Package apiConverter maps wire bodies into domain models. The backend sends
// CLP amounts as floats; they are rounded here into integer pesos so the rest
// of the app never touches floating-point money.
package apiConverter

import (
	"github.com/hedgie-app/hedgie_tgbot/internal/model"
	"github.com/hedgie-app/hedgie_tgbot/internal/model/apiModel"
	"github.com/shopspring/decimal"
)

func clpToMinor(amount float64) int64 {
	return decimal.NewFromFloat(amount).Round(0).IntPart()
}

func ConvertIdentity(user apiModel.UserResponse) model.Identity {
	return model.Identity{
		ID:         user.UserID,
		Name:       user.Name,
		BalanceCLP: clpToMinor(user.BalanceCLP),
	}
}

func ConvertTracker(tracker apiModel.Tracker) model.Tracker {
	return model.Tracker{
		ID:               tracker.ID,
		Name:             tracker.Name,
		Kind:             tracker.Type,
		Description:      tracker.Description,
		AvatarURL:        tracker.AvatarURL,
		YTDReturn:        tracker.YTDReturn,
		RiskLevel:        tracker.RiskLevel,
		AverageDelayDays: tracker.AverageDelay,
		FollowersCount:   tracker.FollowersCount,
	}
}

func ConvertTrackers(trackers []apiModel.Tracker) []model.Tracker {
	res := make([]model.Tracker, 0, len(trackers))
	for _, t := range trackers {
		res = append(res, ConvertTracker(t))
	}
	return res
}

func ConvertHoldings(holdings []apiModel.Holding) []model.Holding {
	res := make([]model.Holding, 0, len(holdings))
	for _, h := range holdings {
		res = append(res, model.Holding{
			ID:                h.ID,
			TrackerID:         h.TrackerID,
			Ticker:            h.Ticker,
			CompanyName:       h.CompanyName,
			AllocationPercent: h.AllocationPercent,
		})
	}
	return res
}

func ConvertPortfolio(portfolio apiModel.Portfolio) model.PortfolioSnapshot {
	positions := make([]model.ActivePosition, 0, len(portfolio.ActiveTrackers))
	for _, t := range portfolio.ActiveTrackers {
		positions = append(positions, model.ActivePosition{
			TrackerID:         t.TrackerID,
			TrackerName:       t.TrackerName,
			InvestedCLP:       clpToMinor(t.InvestedAmountCLP),
			CurrentValueCLP:   clpToMinor(t.CurrentValueCLP),
			ProfitLossCLP:     clpToMinor(t.ProfitLossCLP),
			ProfitLossPercent: t.ProfitLossPercent,
		})
	}

	return model.PortfolioSnapshot{
		OwnerID:                portfolio.UserID,
		AvailableBalanceCLP:    clpToMinor(portfolio.AvailableBalanceCLP),
		TotalInvestedCLP:       clpToMinor(portfolio.TotalInvestedCLP),
		TotalCurrentValueCLP:   clpToMinor(portfolio.TotalCurrentValueCLP),
		TotalProfitLossCLP:     clpToMinor(portfolio.TotalProfitLossCLP),
		TotalProfitLossPercent: portfolio.TotalProfitLossPercent,
		Positions:              positions,
	}
}

func ConvertInvestmentOutcome(resp apiModel.InvestmentResponse) model.InvestmentOutcome {
	outcome := model.InvestmentOutcome{
		Accepted: resp.Success,
		Message:  resp.Message,
	}

	if outcome.Message == "" {
		outcome.Message = resp.Error
	}

	if resp.RemainingBalance != nil {
		remaining := clpToMinor(*resp.RemainingBalance)
		outcome.RemainingBalanceCLP = &remaining
	}

	return outcome
}

func ConvertBalanceUpdate(resp apiModel.BalanceResponse) model.BalanceUpdate {
	return model.BalanceUpdate{
		UserID:     resp.UserID,
		Name:       resp.Name,
		BalanceCLP: clpToMinor(resp.BalanceCLP),
		Message:    resp.Message,
	}
}
