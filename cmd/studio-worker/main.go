package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.temporal.io/sdk/client"
	"golang.org/x/sync/errgroup"

	"github.com/jaegermarcel/bewegungsradius-crm/src/app"
	"github.com/jaegermarcel/bewegungsradius-crm/src/config"
	"github.com/jaegermarcel/bewegungsradius-crm/src/events"
	"github.com/jaegermarcel/bewegungsradius-crm/src/jobs"
	"github.com/jaegermarcel/bewegungsradius-crm/src/queue"
	"github.com/jaegermarcel/bewegungsradius-crm/src/workflows"
)

// studio-worker runs everything that happens without a request:
// course email workflows, SMTP delivery, the daily cron jobs and the event log.
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

	// publishing and consuming use separate connections
	outbound, err := queue.Dial(cfg.RabbitMQ.URL)
	if err != nil {
		log.Fatalf("rabbitmq: %v", err)
	}
	defer outbound.Close()
	inbound, err := queue.Dial(cfg.RabbitMQ.URL)
	if err != nil {
		log.Fatalf("rabbitmq: %v", err)
	}
	defer inbound.Close()
	if err := queue.DeclareQueue(outbound.Channel(), cfg.RabbitMQ.EmailQueue); err != nil {
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

	studio, err := app.New(settings, store.Stores, app.Infra{
		Mailer:    queue.NewPublisher(outbound.Channel(), cfg.RabbitMQ.EmailQueue),
		Scheduler: workflows.NewScheduler(tc, cfg.Temporal.TaskQueue),
	})
	if err != nil {
		log.Fatalf("app: %v", err)
	}

	cron, err := jobs.NewRunner(settings.Location, studio.DailyTasks(cfg.Studio))
	if err != nil {
		log.Fatalf("jobs: %v", err)
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		w := workflows.NewWorker(tc, cfg.Temporal.TaskQueue, &workflows.Activities{Notifications: studio.Notifications})
		if err := w.Start(); err != nil {
			return err
		}
		log.Printf("temporal worker listening on %s", cfg.Temporal.TaskQueue)
		<-ctx.Done()
		w.Stop()
		return nil
	})

	g.Go(func() error {
		sender, err := queue.NewSMTPSender(cfg.Mail.Host, cfg.Mail.Port, cfg.Mail.User, cfg.Mail.Password, cfg.Mail.From)
		if err != nil {
			return err
		}
		return queue.NewWorker(inbound.Channel(), cfg.RabbitMQ.EmailQueue, sender, cfg.Mail.Rate, cfg.Mail.Burst).Run(ctx)
	})

	g.Go(func() error {
		return cron.Run(ctx)
	})

	if cfg.Kafka.Enabled {
		consumer := events.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topic, "studio-worker-event-log")
		defer consumer.Close()
		g.Go(func() error {
			return consumer.Run(ctx, func(_ context.Context, key string, env events.Envelope) error {
				log.Printf("event %s key=%s at %s", env.Event, key, env.OccurredAt.Format("2006-01-02 15:04:05"))
				return nil
			})
		})
	}

	if err := g.Wait(); err != nil {
		log.Fatalf("worker: %v", err)
	}
	log.Println("worker stopped")
}
