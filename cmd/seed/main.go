package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"signal-billing/internal/config"
	pg "signal-billing/internal/infra/db/postgres"
)

// Seeds a few signal subjects so the purchase flow can be exercised against a
// fresh database. Idempotent; existing rows are left alone.
func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool := pg.MustConnectPostgres(cfg.Database.URL)
	defer pool.Close()

	seed := []struct {
		ID   int64
		Name string
	}{
		{1, "BTC Momentum Desk"},
		{2, "Gold Swing Signals"},
		{3, "VN30 Futures Intraday"},
	}

	for _, s := range seed {
		tag, err := pool.Exec(ctx,
			`INSERT INTO subjects (id, name) VALUES ($1, $2) ON CONFLICT (id) DO NOTHING`,
			s.ID, s.Name)
		if err != nil {
			log.Fatalf("seed subject %d: %v", s.ID, err)
		}
		if tag.RowsAffected() > 0 {
			fmt.Printf("seeded: %s (id=%d)\n", s.Name, s.ID)
		} else {
			fmt.Printf("exists: %s (id=%d)\n", s.Name, s.ID)
		}
	}

	fmt.Println("✅ Seeding complete.")
}
