package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ovaphlow/pitchfork/service-noc/internal/account"
	accountrepo "github.com/ovaphlow/pitchfork/service-noc/internal/account/repo"
	"github.com/ovaphlow/pitchfork/service-noc/internal/captcha"
	captcharepo "github.com/ovaphlow/pitchfork/service-noc/internal/captcha/repo"
	"github.com/ovaphlow/pitchfork/service-noc/internal/envelope"
	"github.com/ovaphlow/pitchfork/service-noc/internal/noc"
	nocrepo "github.com/ovaphlow/pitchfork/service-noc/internal/noc/repo"
	"github.com/ovaphlow/pitchfork/service-noc/internal/notify"
	"github.com/ovaphlow/pitchfork/service-noc/internal/router"
	"github.com/ovaphlow/pitchfork/service-noc/internal/session"
	"github.com/ovaphlow/pitchfork/service-noc/internal/state"
	staterepo "github.com/ovaphlow/pitchfork/service-noc/internal/state/repo"
	"github.com/ovaphlow/pitchfork/service-noc/internal/trade"
	traderepo "github.com/ovaphlow/pitchfork/service-noc/internal/trade/repo"
	"github.com/ovaphlow/pitchfork/service-noc/pkg/database"
	"github.com/ovaphlow/pitchfork/service-noc/pkg/utilities"
)

func main() {
	// best-effort: without a .env file the real environment is used
	_ = godotenv.Load()

	lg, err := utilities.Init(utilities.ConfigFromEnv())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer lg.Sync()

	sugar := lg.Sugar()
	sugar.Info("starting service-noc")

	db, err := database.Connect(database.ConfigFromEnv())
	if err != nil {
		sugar.Fatalf("db connect: %v", err)
	}
	defer db.Close()

	sessCfg, err := session.ConfigFromEnv()
	if err != nil {
		sugar.Fatalf("session config: %v", err)
	}
	issuer, err := session.NewIssuer(sessCfg)
	if err != nil {
		sugar.Fatalf("session issuer: %v", err)
	}
	sugar.Infow("session issuer ready", "ttl", issuer.TTL())

	notifyCfg := notify.ConfigFromEnv()
	mailer, err := notify.NewMailer(notifyCfg, sugar)
	if err != nil {
		sugar.Fatalf("mailer: %v", err)
	}
	sms := notify.NewSMSSender(notifyCfg, sugar)

	gate := envelope.FromEnv()
	if gate == nil {
		sugar.Warn("ENVELOPE_SECRET_KEY not set; encrypted payloads will be rejected")
	}

	accounts := account.NewService(account.Deps{
		Store:    accountrepo.NewAccountRepo(db),
		Sessions: issuer,
		Mailer:   mailer,
		SMS:      sms,
		Logger:   sugar,
	}, account.ConfigFromEnv())
	challenges := captcha.NewService(captcharepo.NewChallengeRepo(db), captcha.MaxRecordsFromEnv(), sugar)

	handler := router.RegisterRoutes(sugar, router.Handlers{
		Sessions: session.NewHandler(issuer, sugar),
		Accounts: account.NewHandler(accounts, gate, sugar),
		Captcha:  captcha.NewHandler(challenges, gate, sugar),
		States:   state.NewHandler(state.NewService(staterepo.NewStateRepo(db), sugar), sugar),
		Trades:   trade.NewHandler(trade.NewService(traderepo.NewTradeRepo(db), sugar), sugar),
		NOC:      noc.NewHandler(noc.NewService(nocrepo.NewNOCRepo(db), sugar), sugar),
	})

	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = "0.0.0.0:8431"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			sugar.Fatalf("http server failed: %v", err)
		}
	}()
	sugar.Infow("listening", "addr", addr)

	<-ctx.Done()

	sugar.Info("shutting down")

	doneCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(doneCtx); err != nil {
		sugar.Warnf("http server shutdown failed: %v", err)
	}

	sugar.Info("goodbye")
}
