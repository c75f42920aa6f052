package main

import (
	"context"
	"log" // Use standard log only for initial fatal errors before logger is set up

	"equityTriggerBot/config"
	"equityTriggerBot/internal/adapters/logger"
	"equityTriggerBot/internal/adapters/sqlite"
	"equityTriggerBot/internal/app"
	"equityTriggerBot/internal/exchange/sim"
	"equityTriggerBot/internal/registry"
	"equityTriggerBot/internal/scheduler"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	// 2. Initialize Logger
	appLogger := logger.NewStdLogger(cfg.LogLevel)
	appLogger.Info(context.Background(), "Logger initialized", map[string]interface{}{"level": cfg.LogLevel.String()})

	// 3. Initialize Audit Repository (Database Adapter)
	repo, err := sqlite.NewRepository(sqlite.Config{
		DBPath: cfg.DBPath,
		Logger: appLogger,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize audit repository")
		log.Fatalf("FATAL: Failed to initialize audit repository: %v", err)
	}
	defer func() {
		if err := repo.Close(); err != nil {
			appLogger.Error(context.Background(), err, "Error closing audit repository")
		}
	}()

	// 4. Initialize Simulated Exchange
	exchange, err := sim.New(sim.Config{
		Logger:            appLogger,
		FillDelayMin:      cfg.FillDelayMin,
		FillDelayMax:      cfg.FillDelayMax,
		MarketSuccessRate: cfg.MarketSuccessRate,
		LimitSuccessRate:  cfg.LimitSuccessRate,
		MarketOpen:        cfg.MarketOpen,
		MarketClose:       cfg.MarketClose,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize simulated exchange")
		log.Fatalf("FATAL: Failed to initialize simulated exchange: %v", err)
	}

	// 5. Shared bot state
	triggerRegistry := registry.New()
	botSwitch := scheduler.NewSwitch(cfg.StartEnabled)

	// 6. Initialize Schedulers
	triggerScheduler, err := scheduler.New(scheduler.Config{
		Logger:         appLogger,
		Exchange:       exchange,
		Registry:       triggerRegistry,
		Switch:         botSwitch,
		TickInterval:   cfg.TickInterval,
		TriggerTimeout: cfg.TriggerTimeout,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize trigger scheduler")
		log.Fatalf("FATAL: Failed to initialize trigger scheduler: %v", err)
	}

	autoExit, err := scheduler.NewAutoExit(scheduler.AutoExitConfig{
		Logger:        appLogger,
		Exchange:      exchange,
		Registry:      triggerRegistry,
		Switch:        botSwitch,
		CutoffHour:    cfg.AutoExitHour,
		CutoffMinute:  cfg.AutoExitMinute,
		CheckInterval: cfg.AutoExitCheckInterval,
		Cooldown:      cfg.AutoExitCooldown,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize auto-exit scheduler")
		log.Fatalf("FATAL: Failed to initialize auto-exit scheduler: %v", err)
	}

	// 7. Initialize Application Service
	botService, err := app.NewBotService(app.Config{
		Logger:       appLogger,
		Exchange:     exchange,
		Registry:     triggerRegistry,
		Switch:       botSwitch,
		Scheduler:    triggerScheduler,
		AutoExit:     autoExit,
		OrderRepo:    repo,
		TradeRepo:    repo,
		Feed:         exchange,
		FeedInterval: cfg.FeedInterval,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize bot service")
		log.Fatalf("FATAL: Failed to initialize bot service: %v", err)
	}

	// 8. Run until signalled
	if err := botService.Run(context.Background()); err != nil {
		appLogger.Error(context.Background(), err, "Bot service exited with error")
		log.Fatalf("FATAL: Bot service exited with error: %v", err)
	}
	appLogger.Info(context.Background(), "Application finished gracefully.")
}
