package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/tnqbao/gau-ads-orchestrator/config"
	"github.com/tnqbao/gau-ads-orchestrator/consumer/worker"
	infraPkg "github.com/tnqbao/gau-ads-orchestrator/infra"
	"github.com/tnqbao/gau-ads-orchestrator/infra/produce"
	"github.com/tnqbao/gau-ads-orchestrator/repository"
	"github.com/tnqbao/gau-ads-orchestrator/service"
)

func main() {
	err := godotenv.Load("../staging.env")
	if err != nil {
		log.Println("No .env file found, continuing with environment variables")
	}

	cfg := config.NewConfig()
	infra := infraPkg.InitInfra(cfg)
	repo := repository.InitRepository(infra)
	svc := service.InitService(cfg, infra, repo)

	// Initialize context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	channel := infra.RabbitMQ.Channel
	// one unacked delivery at a time
	if err := channel.Qos(1, 0, false); err != nil {
		log.Fatalf("Failed to set QoS: %v", err)
	}

	runner := worker.NewRunner(infra.Logger, 3, 2*time.Second)
	creatives := worker.NewCreativeHandlers(svc.Provider.Thumbnail, svc.Library, infra.Minio, infra.Logger)

	listeners := []struct {
		queue  string
		tag    string
		handle worker.Handler
	}{
		{produce.ThumbnailQueue, "Thumbnail Consumer", creatives.HandleThumbnail},
		{produce.MirrorQueue, "Mirror Consumer", creatives.HandleMirror},
		{produce.BatchPollQueue, "Batch Poll Consumer", worker.BatchPollHandler(svc.Duplicator)},
	}
	for _, l := range listeners {
		if err := runner.Listen(ctx, channel, l.queue, l.tag, l.handle); err != nil {
			infra.Logger.ErrorWithContextf(ctx, err, "Failed to start %s", l.tag)
			log.Fatalf("Failed to start %s: %v", l.tag, err)
		}
	}

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	infra.Logger.InfoWithContextf(ctx, "Shutting down consumer...")
	cancel()

	if infra.Telemetry != nil {
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		_ = infra.Telemetry.Shutdown(shutdownCtx)
	}
	infra.RabbitMQ.Close()

	infra.Logger.InfoWithContextf(ctx, "Consumer exited properly")
}
