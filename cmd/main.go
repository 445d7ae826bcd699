package main

import (
	"context"
	"log"

	"github.com/joho/godotenv"

	"trading-core/internal/app"
)

func main() {
	// Optional local overrides; real deployments configure via env
	_ = godotenv.Load()

	application, err := app.NewApp()
	if err != nil {
		log.Fatalf("failed to create application: %v", err)
	}

	ctx := context.Background()
	if err := application.Init(ctx); err != nil {
		log.Fatalf("failed to initialize application: %v", err)
	}

	if err := application.Run(ctx); err != nil {
		log.Fatalf("application error: %v", err)
	}
}
