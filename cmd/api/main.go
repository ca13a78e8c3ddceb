package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"go.temporal.io/sdk/client"
	tlog "go.temporal.io/sdk/log"

	"grene-storefront/internal/adminauth"
	"grene-storefront/internal/cart"
	"grene-storefront/internal/catalog"
	"grene-storefront/internal/checkout"
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
	slog.SetDefault(logger)

	// No default secret: the admin surface refuses to start without one.
	issuer, err := adminauth.NewIssuer(cfg.Admin.SessionSecret, cfg.Admin.SessionTTL)
	if err != nil {
		log.Fatalf("admin session: %v (set ADMIN_SESSION_SECRET)", err)
	}
	if cfg.Admin.User == "" || cfg.Admin.Password == "" {
		log.Fatalf("admin credentials: ADMIN_USER and ADMIN_PASSWORD are required")
	}

	hc := &http.Client{Timeout: cfg.HTTPTimeout}
	s := &server{
		log:        logger,
		appBaseURL: cfg.AppBaseURL,
		auth:       adminauth.NewHandler(issuer, adminauth.Credentials{User: cfg.Admin.User, Password: cfg.Admin.Password}, cfg.Production(), logger),
		secure:     cfg.Production(),
		reqTimeout: 30 * time.Second,
	}

	s.flowCfg = flow.Config{
		APIKey:     cfg.Flow.APIKey,
		SecretKey:  cfg.Flow.SecretKey,
		BaseURL:    cfg.Flow.BaseURL,
		AppBaseURL: cfg.AppBaseURL,
		HTTPClient: hc,
		Logger:     logger,
	}
	var gateway *flow.Client
	if fc, err := flow.New(s.flowCfg); err != nil {
		logger.Warn("flow gateway disabled", "err", err)
		s.flowErr = err
	} else {
		gateway = fc
		s.gateway = fc
		s.signer = fc.Signer()
	}

	ctx := context.Background()
	if cfg.DatabaseURL != "" {
		pg, err := orders.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("open order ledger: %v", err)
		}
		defer pg.Close()
		s.ledger = pg
	} else {
		s.ledger = orders.NewMemoryLedger()
	}

	switch cfg.Quotes.Backend {
	case "sqlite":
		st, err := quotes.NewSQLiteStore(cfg.Quotes.Path)
		if err != nil {
			log.Fatalf("open quote store: %v", err)
		}
		defer st.Close()
		s.quotes = st
	default:
		s.quotes = quotes.NewFileStore(cfg.Quotes.Path)
	}
	mailer := quotes.NewSMTPMailer(quotes.SMTPConfig{
		Host:       cfg.SMTP.Host,
		Port:       cfg.SMTP.Port,
		User:       cfg.SMTP.User,
		Password:   cfg.SMTP.Password,
		AdminEmail: cfg.SMTP.AdminEmail,
	})
	s.intake = quotes.NewSubmitter(s.quotes, mailer, logger)

	if cfg.Cart.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Cart.RedisAddr})
		defer rdb.Close()
		s.carts = cart.NewRedisStore(rdb, cfg.Cart.TTL)
	} else {
		s.carts = cart.NewMemoryStore()
	}

	woo := catalog.NewWoo(cfg.Woo.Base, cfg.Woo.Key, cfg.Woo.Secret, hc)
	s.catalog = catalog.NewService(catalog.NewGraphQL(cfg.GraphQL, hc), woo, logger)

	var reconciler checkout.Reconciler
	if cfg.Temporal.Enabled {
		tc, err := client.Dial(client.Options{
			HostPort:  cfg.Temporal.HostPort,
			Namespace: cfg.Temporal.Namespace,
			Logger:    tlog.NewStructuredLogger(logger),
		})
		if err != nil {
			log.Fatalf("unable to create Temporal client: %v", err)
		}
		defer tc.Close()

		rec := workflows.NewReconciler(tc)
		reconciler = rec
		s.confirmer = rec
		s.describer = rec
		if cfg.Quotes.Delivery == "temporal" {
			s.intake = workflows.NewQuoteOutbox(tc)
		}
	}

	var payments checkout.PaymentCreator
	if gateway != nil {
		payments = gateway
	}
	s.checkout = checkout.NewService(woo, payments, s.ledger, reconciler, logger)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.Printf("api listening on %s", cfg.Addr)
	log.Fatal(srv.ListenAndServe())
}
