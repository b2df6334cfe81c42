package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/domestiq/bookingcore/config"
	"github.com/domestiq/bookingcore/internal/migrate"
)

func main() {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	db, err := migrate.Connect(cfg.Database, 10, 2*time.Second)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer db.Close()

	migrations, err := migrate.Load()
	if err != nil {
		log.Fatalf("load migrations: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	applied, err := migrate.Up(ctx, db, migrations)
	if err != nil {
		log.Fatalf("migrate: %v", err)
	}
	log.Printf("Schema up to date (%d applied, %d known)", len(applied), len(migrations))
}
