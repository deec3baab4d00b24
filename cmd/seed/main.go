package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"hookstudio/internal/config"
	"hookstudio/internal/domain/model"
	pg "hookstudio/internal/infra/db/postgres"
	"hookstudio/internal/infra/logging"
	"hookstudio/internal/usecase"
)

// seed creates redemption codes. With -code empty, -count random codes are generated.
func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	codeType := flag.String("type", "coins", "code type: subscription | coins | trial")
	value := flag.Int64("value", 100, "coins granted, or subscription/trial days")
	plan := flag.String("plan", "", "plan for subscription codes (starter|pro|enterprise)")
	maxUses := flag.Int("max-uses", 1, "distinct accounts that may redeem each code")
	expiresIn := flag.Duration("expires-in", 0, "code lifetime, 0 means no expiry")
	code := flag.String("code", "", "explicit code text; generated when empty")
	count := flag.Int("count", 1, "number of codes to generate when -code is empty")
	createdBy := flag.String("created-by", "seed", "creator recorded on the code")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, true)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := logging.New(cfg.Log, true)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 4)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	tm := pg.NewTxManager(pool)
	ledgerUC := usecase.NewLedgerUseCase(pg.NewAccountRepo(pool), tm, cfg.Limits, logger)
	redemptionUC := usecase.NewRedemptionUseCase(pg.NewRedemptionCodeRepo(pool), ledgerUC, tm, nil, 0, logger, true)

	now := time.Now().UTC()
	spec := usecase.CodeSpec{
		Code:      *code,
		Type:      model.CodeType(*codeType),
		Value:     *value,
		Plan:      model.Plan(*plan),
		MaxUses:   *maxUses,
		CreatedBy: *createdBy,
	}
	if *expiresIn > 0 {
		exp := now.Add(*expiresIn)
		spec.ExpiresAt = &exp
	}

	n := *count
	if spec.Code != "" || n < 1 {
		n = 1
	}
	for i := 0; i < n; i++ {
		c, err := redemptionUC.CreateCode(ctx, spec, now)
		if err != nil {
			log.Fatalf("create code: %v", err)
		}
		exp := "never"
		if c.ExpiresAt != nil {
			exp = c.ExpiresAt.Format(time.RFC3339)
		}
		fmt.Printf("seeded: %s (type=%s, value=%d, max_uses=%d, expires=%s)\n", c.Code, c.Type, c.Value, c.MaxUses, exp)
	}
}
