package main

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"

	"github.com/tnqbao/gau-ads-orchestrator/config"
	"github.com/tnqbao/gau-ads-orchestrator/http/controller"
	"github.com/tnqbao/gau-ads-orchestrator/http/route"
	infraPkg "github.com/tnqbao/gau-ads-orchestrator/infra"
	"github.com/tnqbao/gau-ads-orchestrator/repository"
	"github.com/tnqbao/gau-ads-orchestrator/service"
)

func main() {
	err := godotenv.Load("staging.env")
	if err != nil {
		log.Println("No .env file found, continuing with environment variables")
	}

	cfg := config.NewConfig()
	infra := infraPkg.InitInfra(cfg)
	if infra.Telemetry != nil {
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := infra.Telemetry.Shutdown(ctx); err != nil {
				log.Printf("Telemetry shutdown failed: %v", err)
			}
		}()
	}
	defer infra.RabbitMQ.Close()

	repo := repository.InitRepository(infra)
	svc := service.InitService(cfg, infra, repo)

	ctrl := controller.NewController(cfg, infra, repo, svc)

	router := routes.SetupRouter(ctrl)

	log.Println("HTTP Server started on :8080")
	if err := router.Run(":8080"); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
