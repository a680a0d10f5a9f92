package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"complyeye/internal/api"
	"complyeye/internal/config"
	"complyeye/internal/database"
	"complyeye/internal/logger"
	"complyeye/internal/notify"
	"complyeye/internal/report"
	"complyeye/internal/rule"
	"complyeye/internal/store"
	"complyeye/internal/workflow"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

func main() {
	cfg := config.LoadConfig()

	log := logger.New(cfg.Log.Level)
	defer func() { _ = log.Sync() }()

	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		log.Fatal("failed to initialize database", zap.Error(err))
	}
	defer func() { _ = database.Close(db) }()

	ruleStore := store.NewRuleStore(db)
	firingStore := store.NewFiringStore(db)
	poamStore := store.NewPoamStore(db)

	var senders []notify.Sender
	if cfg.Notify.Slack.Token != "" {
		senders = append(senders, notify.NewSlackSender(cfg.Notify.Slack.Token, cfg.Notify.Slack.Channel))
	}
	if cfg.Notify.Email.SMTPHost != "" {
		senders = append(senders, notify.NewEmailSender(
			cfg.Notify.Email.SMTPHost,
			cfg.Notify.Email.SMTPPort,
			cfg.Notify.Email.From,
			cfg.Notify.Email.Password,
			cfg.Notify.Email.ToReceivers,
		))
	}
	if cfg.Notify.Webhook.URL != "" {
		senders = append(senders, notify.NewWebhookSender(cfg.Notify.Webhook.URL, cfg.Notify.Webhook.Headers))
	}

	actionTimeout := time.Duration(cfg.Engine.ActionTimeoutSeconds) * time.Second
	dispatcher := rule.NewDispatcher(ruleStore, firingStore, actionTimeout, log)

	handlers := workflow.NewHandlers(poamStore, senders, log)
	handlers.RegisterAll(dispatcher)

	gate := rule.NewSuppressionGate(firingStore, log)
	engine := rule.NewEngine(ruleStore, gate, dispatcher, firingStore, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	scheduler := rule.NewScheduler(
		firingStore,
		firingStore,
		ruleStore,
		dispatcher,
		time.Duration(cfg.Engine.EscalationScanSeconds)*time.Second,
		int64(cfg.Engine.MaxConcurrentEscalations),
		log,
	)
	go scheduler.Run(ctx)

	dialer := gomail.NewDialer(
		cfg.Notify.Email.SMTPHost,
		cfg.Notify.Email.SMTPPort,
		cfg.Notify.Email.From,
		cfg.Notify.Email.Password,
	)
	reports, err := report.NewGenerator(firingStore, dialer, cfg.Notify.Email.From, cfg.Report.Recipients)
	if err != nil {
		log.Fatal("failed to initialize report generator", zap.Error(err))
	}

	server := api.NewServer(engine, ruleStore, firingStore, poamStore, reports, log)
	if err := server.Start(cfg.Server.Port); err != nil {
		log.Fatal("failed to start server", zap.Error(err))
	}
}
