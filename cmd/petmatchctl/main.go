package main

import (
	"context"
	"log"
	"os"

	"github.com/dmitrijs2005/petmatch/internal/server/admin"
	"github.com/dmitrijs2005/petmatch/internal/server/config"
)

func main() {

	cfg := &config.Config{}
	cfg.LoadDefaults()
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		cfg.DatabaseDSN = dsn
	}

	deps := &admin.Dependencies{Config: cfg, Out: os.Stdout}

	if err := admin.NewRootCmd(deps).ExecuteContext(context.Background()); err != nil {
		log.Fatal(err)
	}
}
