package telegram

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/hedgie-app/hedgie_tgbot/data/session"
	"github.com/hedgie-app/hedgie_tgbot/internal/converter/telebotConverter"
	"github.com/hedgie-app/hedgie_tgbot/internal/externalApi"
	"github.com/hedgie-app/hedgie_tgbot/internal/model"
	"github.com/hedgie-app/hedgie_tgbot/internal/money"
	"github.com/hedgie-app/hedgie_tgbot/internal/service"
	"github.com/hedgie-app/hedgie_tgbot/utils"
	tele "gopkg.in/telebot.v4"
)

const (
	internalErrMsg      = "algo salió mal..."
	notSignedInMsg      = "Primero inicia sesión con /login"
	invalidAmountMsg    = "Por favor ingrese un monto válido"
	insufficientMsg     = "Saldo insuficiente"
	inFlightMsg         = "Ya hay una inversión en curso, espera el resultado"
	startMsg            = "🦔 ¡Bienvenido a Hedgie!\n\nComandos:\n/login - iniciar sesión\n/trackers - ver trackers\n/portfolio - tu portafolio\n/balance - tu saldo\n/deposit - depositar\n/withdraw - retirar\n/report - exportar portafolio\n/logout - cerrar sesión"
)

type CopytradeService interface {
	Identity(ctx context.Context, chatID int64) (model.Identity, bool)
	SignIn(ctx context.Context, chatID, userID int64) (model.Identity, error)
	SignOut(ctx context.Context, chatID int64) error
	Trackers(ctx context.Context) ([]model.Tracker, error)
	Tracker(ctx context.Context, trackerID int64) (model.Tracker, error)
	TrackerDetails(ctx context.Context, trackerID int64) (model.Tracker, []model.Holding, error)
	SubmitInvestment(ctx context.Context, chatID, trackerID int64, rawAmount string) (model.InvestmentOutcome, error)
	Portfolio(ctx context.Context, chatID int64) (model.PortfolioSnapshot, error)
	Deposit(ctx context.Context, chatID int64, rawAmount string) (model.BalanceUpdate, error)
	Withdraw(ctx context.Context, chatID int64, rawAmount string) (model.BalanceUpdate, error)
	Balance(ctx context.Context, chatID int64) (model.BalanceUpdate, error)
	PortfolioReport(ctx context.Context, chatID int64) (model.Report, error)
}

type Session interface {
	GetSession(ctx context.Context, chatID int64) (model.Session, error)
	SetSession(ctx context.Context, chatID int64, chatSession model.Session) error
}

type Controller struct {
	copytradeService CopytradeService
	session          Session
}

func NewController(copytradeService CopytradeService, session Session) *Controller {
	return &Controller{
		copytradeService: copytradeService,
		session:          session,
	}
}

func (ctrl *Controller) Start(c tele.Context) error {
	return c.Send(startMsg)
}

func (ctrl *Controller) InitLogin(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)

	chatSession, err := ctrl.getSessionFromTeleCtxOrStorage(ctx, c)
	if err != nil && !errors.Is(err, session.ErrNotFound) {
		return c.Send(internalErrMsg)
	}

	chatSession.State = model.ExpectingLoginID
	if err := ctrl.session.SetSession(ctx, c.Chat().ID, chatSession); err != nil {
		return c.Send(internalErrMsg)
	}

	return c.Send("Ingresa tu ID de usuario:")
}

func (ctrl *Controller) ProcessLogin(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)

	chatSession, err := ctrl.getSessionFromTeleCtxOrStorage(ctx, c)
	if err != nil {
		return c.Send(internalErrMsg)
	}

	userID, err := strconv.ParseInt(c.Message().Text, 10, 64)
	if err != nil {
		// keep the state so the user can retry
		return c.Send("El ID debe ser un número, inténtalo de nuevo:")
	}

	identity, err := ctrl.copytradeService.SignIn(ctx, c.Chat().ID, userID)
	if err != nil {
		var apiErr *externalApi.APIError
		if errors.As(err, &apiErr) {
			return c.Send(apiErr.Detail)
		}
		slog.Error("got error from copytradeService.SignIn", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return c.Send(internalErrMsg)
	}

	chatSession.State = model.DefaultState
	_ = ctrl.session.SetSession(ctx, c.Chat().ID, chatSession)

	return c.Send(fmt.Sprintf("✅ ¡Hola %s!\n💰 Saldo: %s", identity.Name, money.FormatCLP(identity.BalanceCLP)))
}

func (ctrl *Controller) Logout(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)

	if err := ctrl.copytradeService.SignOut(ctx, c.Chat().ID); err != nil {
		return c.Send(internalErrMsg)
	}

	_ = ctrl.session.SetSession(ctx, c.Chat().ID, model.Session{})

	return c.Send("Sesión cerrada 👋")
}

func (ctrl *Controller) Trackers(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)

	trackers, err := ctrl.copytradeService.Trackers(ctx)
	if err != nil {
		slog.Error("got error from copytradeService.Trackers", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return c.Send(internalErrMsg)
	}

	return c.Send(telebotConverter.TrackerListResponse(trackers))
}

// BackToTrackers re-renders the catalog in place of the details message.
func (ctrl *Controller) BackToTrackers(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)

	trackers, err := ctrl.copytradeService.Trackers(ctx)
	if err != nil {
		slog.Error("got error from copytradeService.Trackers", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return c.Send(internalErrMsg)
	}

	return c.Edit(telebotConverter.TrackerListResponse(trackers))
}

func (ctrl *Controller) TrackerDetails(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)

	trackerID, err := strconv.ParseInt(c.Data(), 10, 64)
	if err != nil {
		slog.Error("can't parse trackerID from callback data", slog.String("rqID", rqID), slog.String("data", c.Data()))
		return c.Send(internalErrMsg)
	}

	tracker, holdings, err := ctrl.copytradeService.TrackerDetails(ctx, trackerID)
	if err != nil {
		slog.Error("got error from copytradeService.TrackerDetails", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return c.Send(internalErrMsg)
	}

	return c.Edit(telebotConverter.TrackerDetailsResponse(tracker, holdings))
}

func (ctrl *Controller) InitInvestment(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)

	identity, ok := ctrl.copytradeService.Identity(ctx, c.Chat().ID)
	if !ok {
		return c.Send(notSignedInMsg)
	}

	trackerID, err := strconv.ParseInt(c.Data(), 10, 64)
	if err != nil {
		slog.Error("can't parse trackerID from callback data", slog.String("rqID", rqID), slog.String("data", c.Data()))
		return c.Send(internalErrMsg)
	}

	tracker, err := ctrl.copytradeService.Tracker(ctx, trackerID)
	if err != nil {
		slog.Error("got error from copytradeService.Tracker", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return c.Send(internalErrMsg)
	}

	chatSession, err := ctrl.getSessionFromTeleCtxOrStorage(ctx, c)
	if err != nil && !errors.Is(err, session.ErrNotFound) {
		return c.Send(internalErrMsg)
	}

	chatSession.State = model.ExpectingInvestAmount
	chatSession.TrackerID = tracker.ID
	chatSession.TrackerName = tracker.Name
	if err := ctrl.session.SetSession(ctx, c.Chat().ID, chatSession); err != nil {
		return c.Send(internalErrMsg)
	}

	return c.Send(fmt.Sprintf(
		"¿Cuánto quieres invertir en **%s**?\n💰 Saldo disponible: %s",
		tracker.Name,
		money.FormatCLP(identity.BalanceCLP),
	))
}

func (ctrl *Controller) ProcessInvestment(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)

	chatSession, err := ctrl.getSessionFromTeleCtxOrStorage(ctx, c)
	if err != nil {
		return c.Send(internalErrMsg)
	}

	outcome, err := ctrl.copytradeService.SubmitInvestment(ctx, c.Chat().ID, chatSession.TrackerID, c.Message().Text)
	if err != nil {
		// validation failures keep the dialog state so the user can retry
		switch {
		case errors.Is(err, service.ErrNotAuthenticated):
			return c.Send(notSignedInMsg)
		case errors.Is(err, service.ErrInvalidAmount):
			return c.Send(invalidAmountMsg)
		case errors.Is(err, service.ErrInsufficientFunds):
			return c.Send(insufficientMsg)
		case errors.Is(err, service.ErrSubmissionInFlight):
			return c.Send(inFlightMsg)
		}

		chatSession.State = model.DefaultState
		_ = ctrl.session.SetSession(ctx, c.Chat().ID, chatSession)

		var apiErr *externalApi.APIError
		if errors.As(err, &apiErr) {
			return c.Send("❌ " + apiErr.Detail)
		}

		slog.Error("got error from copytradeService.SubmitInvestment", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return c.Send(internalErrMsg)
	}

	chatSession.State = model.DefaultState
	_ = ctrl.session.SetSession(ctx, c.Chat().ID, chatSession)

	if !outcome.Accepted {
		return c.Send("❌ " + outcome.Message)
	}

	msg := fmt.Sprintf("✅ ¡Inversión en %s exitosa!", chatSession.TrackerName)
	if outcome.RemainingBalanceCLP != nil {
		msg += fmt.Sprintf("\n💰 Saldo restante: %s", money.FormatCLP(*outcome.RemainingBalanceCLP))
	}
	return c.Send(msg)
}

func (ctrl *Controller) Portfolio(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)

	snapshot, err := ctrl.copytradeService.Portfolio(ctx, c.Chat().ID)
	if err != nil {
		if errors.Is(err, service.ErrNotAuthenticated) {
			return c.Send(notSignedInMsg)
		}
		slog.Error("got error from copytradeService.Portfolio", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return c.Send(internalErrMsg)
	}

	return c.Send(telebotConverter.PortfolioResponse(snapshot))
}

func (ctrl *Controller) Balance(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)

	update, err := ctrl.copytradeService.Balance(ctx, c.Chat().ID)
	if err != nil {
		if errors.Is(err, service.ErrNotAuthenticated) {
			return c.Send(notSignedInMsg)
		}
		slog.Error("got error from copytradeService.Balance", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return c.Send(internalErrMsg)
	}

	return c.Send(telebotConverter.BalanceResponse(update))
}

func (ctrl *Controller) InitDeposit(c tele.Context) error {
	return ctrl.initAmountDialog(c, model.ExpectingDepositAmount, "¿Cuánto quieres depositar?")
}

func (ctrl *Controller) InitWithdraw(c tele.Context) error {
	return ctrl.initAmountDialog(c, model.ExpectingWithdrawAmount, "¿Cuánto quieres retirar?")
}

func (ctrl *Controller) ProcessDeposit(c tele.Context) error {
	return ctrl.processFunds(c, ctrl.copytradeService.Deposit)
}

func (ctrl *Controller) ProcessWithdraw(c tele.Context) error {
	return ctrl.processFunds(c, ctrl.copytradeService.Withdraw)
}

func (ctrl *Controller) Report(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)

	report, err := ctrl.copytradeService.PortfolioReport(ctx, c.Chat().ID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotAuthenticated):
			return c.Send(notSignedInMsg)
		case errors.Is(err, service.ErrEmptyPortfolio):
			return c.Send("Aún no tienes inversiones para exportar")
		}
		slog.Error("got error from copytradeService.PortfolioReport", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return c.Send(internalErrMsg)
	}

	if report.DownloadLink != "" {
		return c.Send(fmt.Sprintf("El reporte quedó muy grande para Telegram, descárgalo aquí:\n%s", report.DownloadLink))
	}

	doc := &tele.Document{
		File:     tele.FromReader(bytes.NewReader(report.FileBytes)),
		FileName: report.Filename,
	}
	return c.Send(doc)
}

func (ctrl *Controller) initAmountDialog(c tele.Context, st model.State, prompt string) error {
	ctx := utils.CreateCtxWithRqID(c)

	if _, ok := ctrl.copytradeService.Identity(ctx, c.Chat().ID); !ok {
		return c.Send(notSignedInMsg)
	}

	chatSession, err := ctrl.getSessionFromTeleCtxOrStorage(ctx, c)
	if err != nil && !errors.Is(err, session.ErrNotFound) {
		return c.Send(internalErrMsg)
	}

	chatSession.State = st
	if err := ctrl.session.SetSession(ctx, c.Chat().ID, chatSession); err != nil {
		return c.Send(internalErrMsg)
	}

	return c.Send(prompt)
}

func (ctrl *Controller) processFunds(
	c tele.Context,
	call func(ctx context.Context, chatID int64, rawAmount string) (model.BalanceUpdate, error),
) error {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)

	chatSession, err := ctrl.getSessionFromTeleCtxOrStorage(ctx, c)
	if err != nil {
		return c.Send(internalErrMsg)
	}

	update, err := call(ctx, c.Chat().ID, c.Message().Text)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotAuthenticated):
			return c.Send(notSignedInMsg)
		case errors.Is(err, service.ErrInvalidAmount):
			// keep the state so the user can retry
			return c.Send(invalidAmountMsg)
		}

		chatSession.State = model.DefaultState
		_ = ctrl.session.SetSession(ctx, c.Chat().ID, chatSession)

		var apiErr *externalApi.APIError
		if errors.As(err, &apiErr) {
			return c.Send("❌ " + apiErr.Detail)
		}

		slog.Error("got error from account operation", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return c.Send(internalErrMsg)
	}

	chatSession.State = model.DefaultState
	_ = ctrl.session.SetSession(ctx, c.Chat().ID, chatSession)

	msg := update.Message
	if msg != "" {
		msg += "\n"
	}
	msg += fmt.Sprintf("💰 Nuevo saldo: %s", money.FormatCLP(update.BalanceCLP))
	return c.Send(msg)
}

func (ctrl *Controller) getSessionFromTeleCtxOrStorage(ctx context.Context, c tele.Context) (model.Session, error) {
	chatSession, ok := c.Get("session").(model.Session)
	if ok {
		return chatSession, nil
	}

	rqID := utils.GetRequestIDFromCtx(ctx)
	chatSession, err := ctrl.session.GetSession(ctx, c.Chat().ID)
	if err != nil {
		if !errors.Is(err, session.ErrNotFound) {
			slog.Error("got error from session.GetSession", slog.String("rqID", rqID), slog.String("err", err.Error()))
		}
		return model.Session{}, err
	}
	return chatSession, nil
}
