package main

import (
	"context"
	"flag"
	"log"
	"syscall"

	"github.com/joho/godotenv"

	"booru-bot/internal/booru"
	"booru-bot/internal/closer"
	"booru-bot/internal/config"
	"booru-bot/internal/dispatcher"
	"booru-bot/internal/download"
	"booru-bot/internal/logging"
	"booru-bot/internal/picture"
	"booru-bot/internal/telegram"
	"booru-bot/pkg/ratelimiter"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	envFile, _ := godotenv.Read(".env")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %s", err)
	}

	logger, err := logging.New(cfg.Bot.Development)
	if err != nil {
		log.Fatalf("failed to build logger: %s", err)
	}

	cls := closer.NewCloser(syscall.SIGINT, syscall.SIGTERM)
	defer cls.Close()
	cls.Add(func() error {
		_ = logger.Sync()
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cls.Add(func() error {
		cancel()
		return nil
	})

	catalog := booru.NewClient(booru.Opts{
		BaseURL:          cfg.API.BaseURL,
		UserAgent:        cfg.API.UserAgent,
		ProxyURL:         cfg.API.ProxyURL(),
		Timeout:          cfg.RequestTimeout(),
		QueriesPerSecond: cfg.API.QueriesPerSecond,
	}, logger)

	downloader := download.New(download.Opts{
		UserAgent:   cfg.API.UserAgent,
		ProxyURL:    cfg.API.ProxyURL(),
		Timeout:     cfg.RequestTimeout(),
		MaxFileSize: cfg.Limits.MaxFileSize,
	}, logger)

	pictures := picture.NewService(
		picture.Deps{
			Catalog: catalog,
			Fetcher: downloader,
			Limiter: ratelimiter.New(cfg.LimiterOpts()),
			Log:     logger,
		},
		picture.Opts{
			Rating:           cfg.EffectiveRating(),
			ShowSafeModeMark: cfg.Messages.ShowSafeModeMark,
			ShowImageInfo:    cfg.Messages.ShowImageInfo,
			SuccessTemplate:  cfg.Messages.Success,
		},
	)

	eventDispatcher, err := dispatcher.NewEventDispatcher(
		dispatcher.Deps{Pictures: pictures, Log: logger},
		dispatcher.Opts{Commands: cfg.Commands, Messages: cfg.Messages},
	)
	if err != nil {
		log.Fatalf("failed to init event dispatcher: %s", err)
	}

	bot, err := telegram.NewBot(
		telegram.Deps{EventDispatcher: eventDispatcher, Log: logger},
		telegram.Opts{Token: envFile["TG_TOKEN"], Debug: cfg.Bot.Debug})
	if err != nil {
		log.Fatalf("failed to start bot: %s", err)
	}

	bot.Listen(ctx)
}
