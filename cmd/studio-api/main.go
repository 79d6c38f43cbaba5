package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.temporal.io/sdk/client"

	"github.com/jaegermarcel/bewegungsradius-crm/src/api"
	"github.com/jaegermarcel/bewegungsradius-crm/src/app"
	"github.com/jaegermarcel/bewegungsradius-crm/src/config"
	"github.com/jaegermarcel/bewegungsradius-crm/src/events"
	"github.com/jaegermarcel/bewegungsradius-crm/src/queue"
	"github.com/jaegermarcel/bewegungsradius-crm/src/workflows"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	settings, err := cfg.Studio.StudioSettings()
	if err != nil {
		log.Fatalf("studio settings: %v", err)
	}

	store, err := app.OpenStore(ctx, cfg)
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	defer store.Close()

	mq, err := queue.Dial(cfg.RabbitMQ.URL)
	if err != nil {
		log.Fatalf("rabbitmq: %v", err)
	}
	defer mq.Close()
	if err := queue.DeclareQueue(mq.Channel(), cfg.RabbitMQ.EmailQueue); err != nil {
		log.Fatalf("rabbitmq: %v", err)
	}

	tc, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
	})
	if err != nil {
		log.Fatalf("temporal: %v", err)
	}
	defer tc.Close()

	infra := app.Infra{
		Mailer:    queue.NewPublisher(mq.Channel(), cfg.RabbitMQ.EmailQueue),
		Scheduler: workflows.NewScheduler(tc, cfg.Temporal.TaskQueue),
	}
	archive, err := app.OpenArchive(cfg)
	if err != nil {
		log.Fatalf("documents: %v", err)
	}
	infra.Archive = archive
	if cfg.Kafka.Enabled {
		publisher := events.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer publisher.Close()
		infra.Publisher = publisher
	}

	studio, err := app.New(settings, store.Stores, infra)
	if err != nil {
		log.Fatalf("app: %v", err)
	}

	srv := &http.Server{
		Addr:         cfg.Server.GetServerAddr(),
		Handler:      api.NewRouter(studio.API(), store.Health),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	idleConnsClosed := make(chan struct{})
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server Shutdown: %v", err)
		}
		close(idleConnsClosed)
	}()

	log.Printf("starting studio-api on %s (%s)", srv.Addr, cfg.Server.Environment)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("listen: %v", err)
	}

	<-idleConnsClosed
	log.Println("server stopped")
}
