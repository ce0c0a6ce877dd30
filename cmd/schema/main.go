// Command schema creates the tables and indexes the API needs. Every
// statement is idempotent, so it is safe to run on each deploy.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	accountrepo "github.com/ovaphlow/pitchfork/service-noc/internal/account/repo"
	captcharepo "github.com/ovaphlow/pitchfork/service-noc/internal/captcha/repo"
	nocrepo "github.com/ovaphlow/pitchfork/service-noc/internal/noc/repo"
	staterepo "github.com/ovaphlow/pitchfork/service-noc/internal/state/repo"
	traderepo "github.com/ovaphlow/pitchfork/service-noc/internal/trade/repo"
	"github.com/ovaphlow/pitchfork/service-noc/pkg/database"
	"github.com/ovaphlow/pitchfork/service-noc/pkg/utilities"
)

type tableEnsurer interface {
	EnsureTable(ctx context.Context) error
}

func main() {
	_ = godotenv.Load()

	lg, err := utilities.Init(utilities.ConfigFromEnv())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer lg.Sync()
	sugar := lg.Sugar()

	db, err := database.Connect(database.ConfigFromEnv())
	if err != nil {
		sugar.Fatalf("db connect: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	// noc_trades is created alongside noc_certificates
	steps := []struct {
		name string
		t    tableEnsurer
	}{
		{"accounts", accountrepo.NewAccountRepo(db)},
		{"captcha_challenges", captcharepo.NewChallengeRepo(db)},
		{"states", staterepo.NewStateRepo(db)},
		{"trades", traderepo.NewTradeRepo(db)},
		{"noc_certificates", nocrepo.NewNOCRepo(db)},
	}
	for _, s := range steps {
		if err := s.t.EnsureTable(ctx); err != nil {
			sugar.Fatalf("ensure %s: %v", s.name, err)
		}
		sugar.Infow("table ready", "table", s.name)
	}
	sugar.Info("schema up to date")
}
