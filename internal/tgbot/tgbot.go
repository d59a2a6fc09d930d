package tgbot

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hedgie-app/hedgie_tgbot/config"
	"github.com/hedgie-app/hedgie_tgbot/data/session"
	"github.com/hedgie-app/hedgie_tgbot/internal/model"
	"github.com/hedgie-app/hedgie_tgbot/internal/model/tg/tgCallback"
	"github.com/hedgie-app/hedgie_tgbot/internal/transport/telegram"
	customMW "github.com/hedgie-app/hedgie_tgbot/internal/transport/telegram/middleware"
	"github.com/hedgie-app/hedgie_tgbot/utils"
	tele "gopkg.in/telebot.v4"
	"gopkg.in/telebot.v4/middleware"
)

type Session interface {
	GetSession(ctx context.Context, chatID int64) (model.Session, error)
	SetSession(ctx context.Context, chatID int64, chatSession model.Session) error
}

type TGBot struct {
	bot     *tele.Bot
	ctrl    *telegram.Controller
	session Session
}

func New(cfg *config.Config, ctrl *telegram.Controller, session Session) *TGBot {
	settings := tele.Settings{
		Token:  cfg.Telegram.Token,
		Poller: &tele.LongPoller{Timeout: cfg.Telegram.UpdTimeout},
	}

	b, err := tele.NewBot(settings)
	if err != nil {
		slog.Error("error while tele.NewBot", slog.String("err", err.Error()))
		panic(err)
	}

	return &TGBot{bot: b, ctrl: ctrl, session: session}
}

func (b *TGBot) Start() {
	b.bot.Use(middleware.Recover(), customMW.Logger())

	b.setupRoutes()

	go b.bot.Start()
	slog.Info("tgbot started!")
}

func (b *TGBot) Stop() {
	slog.Info("start stopping tgbot")
	b.bot.Stop()
	slog.Info("tgbot stopped")
}

func (b *TGBot) setupRoutes() {
	// free text is routed by the chat's dialog state
	b.bot.Handle(tele.OnText, func(c tele.Context) error {
		ctx := utils.CreateCtxWithRqID(c)
		rqID := utils.GetRequestIDFromCtx(ctx)

		chatSession, err := b.session.GetSession(ctx, c.Chat().ID)
		if err != nil && !errors.Is(err, session.ErrNotFound) {
			slog.Error("got error from session.GetSession", slog.String("rqID", rqID), slog.String("err", err.Error()))
			return c.Send("algo salió mal...")
		}

		c.Set("session", chatSession)

		switch chatSession.State {
		case model.ExpectingLoginID:
			return b.ctrl.ProcessLogin(c)
		case model.ExpectingInvestAmount:
			return b.ctrl.ProcessInvestment(c)
		case model.ExpectingDepositAmount:
			return b.ctrl.ProcessDeposit(c)
		case model.ExpectingWithdrawAmount:
			return b.ctrl.ProcessWithdraw(c)
		default:
			return c.Send("Primero ingresa uno de los comandos, por ejemplo /trackers")
		}
	})

	b.bot.Handle("/start", b.ctrl.Start)
	b.bot.Handle("/login", b.ctrl.InitLogin)
	b.bot.Handle("/logout", b.ctrl.Logout)
	b.bot.Handle("/trackers", b.ctrl.Trackers)
	b.bot.Handle("/portfolio", b.ctrl.Portfolio)
	b.bot.Handle("/balance", b.ctrl.Balance)
	b.bot.Handle("/deposit", b.ctrl.InitDeposit)
	b.bot.Handle("/withdraw", b.ctrl.InitWithdraw)
	b.bot.Handle("/report", b.ctrl.Report)

	b.bot.Handle(&tele.Btn{Unique: tgCallback.TrackerDetails}, b.ctrl.TrackerDetails)
	b.bot.Handle(&tele.Btn{Unique: tgCallback.Invest}, b.ctrl.InitInvestment)
	b.bot.Handle(&tele.Btn{Unique: tgCallback.BackToTrackers}, b.ctrl.BackToTrackers)
}
