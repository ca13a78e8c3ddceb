package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"

	"go.temporal.io/sdk/client"
	tlog "go.temporal.io/sdk/log"
	"go.temporal.io/sdk/worker"

	"grene-storefront/internal/activities"
	"grene-storefront/internal/config"
	"grene-storefront/internal/flow"
	"grene-storefront/internal/orders"
	"grene-storefront/internal/quotes"
	"grene-storefront/internal/workflows"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		Logger:    tlog.NewStructuredLogger(logger),
	})
	if err != nil {
		log.Fatalf("unable to create Temporal client: %v", err)
	}
	defer c.Close()

	a := &activities.Activities{
		Mailer: quotes.NewSMTPMailer(quotes.SMTPConfig{
			Host:       cfg.SMTP.Host,
			Port:       cfg.SMTP.Port,
			User:       cfg.SMTP.User,
			Password:   cfg.SMTP.Password,
			AdminEmail: cfg.SMTP.AdminEmail,
		}),
	}

	fc, err := flow.New(flow.Config{
		APIKey:     cfg.Flow.APIKey,
		SecretKey:  cfg.Flow.SecretKey,
		BaseURL:    cfg.Flow.BaseURL,
		AppBaseURL: cfg.AppBaseURL,
		HTTPClient: &http.Client{Timeout: cfg.HTTPTimeout},
		Logger:     logger,
	})
	if err != nil {
		log.Printf("flow disabled: %v", err)
	} else {
		a.Flow = fc
	}

	if cfg.DatabaseURL != "" {
		pg, err := orders.OpenPostgres(context.Background(), cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("open order ledger: %v", err)
		}
		defer pg.Close()
		a.Ledger = pg
	} else {
		log.Printf("DATABASE_URL not set; ledger updates from the worker stay in memory")
		a.Ledger = orders.NewMemoryLedger()
	}

	switch cfg.Quotes.Backend {
	case "sqlite":
		st, err := quotes.NewSQLiteStore(cfg.Quotes.Path)
		if err != nil {
			log.Fatalf("open quote store: %v", err)
		}
		defer st.Close()
		a.Quotes = st
	default:
		a.Quotes = quotes.NewFileStore(cfg.Quotes.Path)
	}

	w := worker.New(c, workflows.TaskQueue, worker.Options{})
	w.RegisterWorkflow(workflows.ReconcilePayment)
	w.RegisterWorkflow(workflows.DeliverQuote)
	w.RegisterActivity(a)

	log.Printf("worker started (taskQueue=%s)\n", workflows.TaskQueue)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("worker exited: %v", err)
	}
}
