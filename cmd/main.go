package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hedgie-app/hedgie_tgbot/config"
	"github.com/hedgie-app/hedgie_tgbot/data"
	"github.com/hedgie-app/hedgie_tgbot/data/session"
	"github.com/hedgie-app/hedgie_tgbot/internal/externalApi/cloudStorageApi/googleDriveApi"
	"github.com/hedgie-app/hedgie_tgbot/internal/externalApi/hedgieApi"
	"github.com/hedgie-app/hedgie_tgbot/internal/reportGenerator/xlsxGenerator"
	"github.com/hedgie-app/hedgie_tgbot/internal/scheduler"
	"github.com/hedgie-app/hedgie_tgbot/internal/service/copytradeService"
	"github.com/hedgie-app/hedgie_tgbot/internal/sessionStore"
	"github.com/hedgie-app/hedgie_tgbot/internal/tgbot"
	"github.com/hedgie-app/hedgie_tgbot/internal/transport/telegram"
)

func main() {
	cfg := config.MustLoad()

	setupLogger(cfg)

	slog.Debug("config", slog.Any("cfg", cfg))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	redisClient := data.NewRedisClient(cfg)
	defer redisClient.Close()

	redisSession := session.NewRedisSession(redisClient, cfg)

	sessions := sessionStore.NewManager(redisSession)

	hedgieApiClient := hedgieApi.New(cfg)

	reportGenerator := xlsxGenerator.New()

	googleCloudStorage := googleDriveApi.New(ctx, cfg)

	copytradeSrv := copytradeService.New(cfg, hedgieApiClient, sessions, reportGenerator, googleCloudStorage)

	sched := scheduler.New()
	sched.NewIntervalJob("refresh balances", copytradeSrv.RefreshBalances, cfg.Jobs.BalanceRefreshInterval, false)
	sched.NewIntervalJob("cleanup drive reports", googleCloudStorage.DeleteOldFiles, cfg.Jobs.DriveCleanupInterval, false)
	sched.Start()
	defer sched.Stop()

	tgController := telegram.NewController(copytradeSrv, redisSession)

	tgBot := tgbot.New(cfg, tgController, redisSession)
	tgBot.Start()
	defer tgBot.Stop()

	// Waiting interruption signal
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	<-interrupt
}

func setupLogger(cfg *config.Config) {
	var logLevel slog.Level

	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warning":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(log)
}
