package telebotConverter

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hedgie-app/hedgie_tgbot/internal/model"
	"github.com/hedgie-app/hedgie_tgbot/internal/model/tg/tgCallback"
	"github.com/hedgie-app/hedgie_tgbot/internal/money"
	tele "gopkg.in/telebot.v4"
)

func riskEmoji(riskLevel string) string {
	switch riskLevel {
	case "low":
		return "🟢"
	case "medium":
		return "🟡"
	case "high":
		return "🔴"
	default:
		return "⚪"
	}
}

func kindEmoji(kind string) string {
	if kind == "politician" {
		return "🏛"
	}
	return "📈"
}

// TrackerListResponse renders the catalog with one button per tracker.
func TrackerListResponse(trackers []model.Tracker) (text string, markup *tele.ReplyMarkup) {
	markup = &tele.ReplyMarkup{}
	var sb strings.Builder

	sb.WriteString("🦔 Trackers disponibles:\n\n")

	rows := make([]tele.Row, 0, len(trackers))
	for _, tracker := range trackers {
		sb.WriteString(fmt.Sprintf("%s **%s**\n", kindEmoji(tracker.Kind), tracker.Name))
		sb.WriteString(fmt.Sprintf("   ▸ Retorno YTD: **%+.1f%%**\n", tracker.YTDReturn))
		sb.WriteString(fmt.Sprintf("   ▸ Riesgo: %s %s\n", riskEmoji(tracker.RiskLevel), tracker.RiskLevel))
		sb.WriteString(fmt.Sprintf("   ▸ Seguidores: %d\n\n", tracker.FollowersCount))

		btn := markup.Data(tracker.Name, tgCallback.TrackerDetails, strconv.FormatInt(tracker.ID, 10))
		rows = append(rows, markup.Row(btn))
	}

	markup.Inline(rows...)

	return sb.String(), markup
}

// TrackerDetailsResponse renders one tracker with its disclosed holdings and
// an invest button.
func TrackerDetailsResponse(tracker model.Tracker, holdings []model.Holding) (text string, markup *tele.ReplyMarkup) {
	markup = &tele.ReplyMarkup{}
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%s **%s**\n", kindEmoji(tracker.Kind), tracker.Name))
	if tracker.Description != "" {
		sb.WriteString(tracker.Description + "\n")
	}
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("▸ Retorno YTD: **%+.1f%%**\n", tracker.YTDReturn))
	sb.WriteString(fmt.Sprintf("▸ Riesgo: %s %s\n", riskEmoji(tracker.RiskLevel), tracker.RiskLevel))
	sb.WriteString(fmt.Sprintf("▸ Retraso de copia: %d días\n", tracker.AverageDelayDays))
	sb.WriteString(fmt.Sprintf("▸ Seguidores: %d\n", tracker.FollowersCount))

	if len(holdings) > 0 {
		sb.WriteString("\n📋 Composición:\n")
		for _, holding := range holdings {
			sb.WriteString(fmt.Sprintf("   ▸ **%s** (%s): %.1f%%\n", holding.Ticker, holding.CompanyName, holding.AllocationPercent))
		}
	}

	investBtn := markup.Data("💰 Invertir", tgCallback.Invest, strconv.FormatInt(tracker.ID, 10))
	backBtn := markup.Data("⬅️ Volver", tgCallback.BackToTrackers)
	markup.Inline(
		markup.Row(investBtn),
		markup.Row(backBtn),
	)

	return sb.String(), markup
}

// PortfolioResponse renders the server-computed portfolio snapshot.
func PortfolioResponse(snapshot model.PortfolioSnapshot) string {
	var sb strings.Builder

	sb.WriteString("📊 Tu portafolio:\n\n")
	sb.WriteString(fmt.Sprintf("💰 Saldo disponible: %s\n", money.FormatCLP(snapshot.AvailableBalanceCLP)))
	sb.WriteString(fmt.Sprintf("💼 Total invertido: %s\n", money.FormatCLP(snapshot.TotalInvestedCLP)))
	sb.WriteString(fmt.Sprintf("📈 Valor actual: %s\n", money.FormatCLP(snapshot.TotalCurrentValueCLP)))
	sb.WriteString(fmt.Sprintf(
		"%s Ganancia/Pérdida: %s (%+.2f%%)\n",
		profitEmoji(snapshot.TotalProfitLossCLP),
		money.FormatCLP(snapshot.TotalProfitLossCLP),
		snapshot.TotalProfitLossPercent,
	))

	if len(snapshot.Positions) == 0 {
		sb.WriteString("\nAún no tienes inversiones activas.")
		return sb.String()
	}

	sb.WriteString("\n📋 Inversiones activas:\n\n")
	for _, position := range snapshot.Positions {
		sb.WriteString(fmt.Sprintf("**%s**\n", position.TrackerName))
		sb.WriteString(fmt.Sprintf("   ▸ Invertido: %s\n", money.FormatCLP(position.InvestedCLP)))
		sb.WriteString(fmt.Sprintf("   ▸ Valor actual: %s\n", money.FormatCLP(position.CurrentValueCLP)))
		sb.WriteString(fmt.Sprintf(
			"   ▸ %s %s (%+.2f%%)\n\n",
			profitEmoji(position.ProfitLossCLP),
			money.FormatCLP(position.ProfitLossCLP),
			position.ProfitLossPercent,
		))
	}

	return sb.String()
}

// BalanceResponse renders the authoritative balance with its USD equivalent.
func BalanceResponse(update model.BalanceUpdate) string {
	usd := money.ConvertCLPToUSD(update.BalanceCLP)
	return fmt.Sprintf(
		"💰 Saldo de %s: %s (~%s USD)",
		update.Name,
		money.FormatCLP(update.BalanceCLP),
		money.FormatUSD(usd),
	)
}

func profitEmoji(profitLossCLP int64) string {
	if profitLossCLP < 0 {
		return "🔻"
	}
	return "🔺"
}
