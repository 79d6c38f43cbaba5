// Package app wires stores, adapters and services for the studio binaries.
package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jaegermarcel/bewegungsradius-crm/src/api"
	"github.com/jaegermarcel/bewegungsradius-crm/src/config"
	"github.com/jaegermarcel/bewegungsradius-crm/src/documents"
	"github.com/jaegermarcel/bewegungsradius-crm/src/holidays"
	"github.com/jaegermarcel/bewegungsradius-crm/src/jobs"
	"github.com/jaegermarcel/bewegungsradius-crm/src/services"
	"github.com/jaegermarcel/bewegungsradius-crm/src/store/memory"
	"github.com/jaegermarcel/bewegungsradius-crm/src/store/postgres"
)

// Store is an opened persistence backend
type Store struct {
	Stores services.Stores
	Health api.HealthChecker // nil for the memory store
	close  func() error
}

// OpenStore connects to PostgreSQL, or builds an empty memory store when configured
func OpenStore(ctx context.Context, cfg *config.Config) (*Store, error) {
	if cfg.Studio.UseMemoryStore {
		log.Println("using in-memory store, data is lost on exit")
		return &Store{Stores: memory.New().Stores(), close: func() error { return nil }}, nil
	}

	pg, err := postgres.Open(ctx, cfg.Database.GetDatabaseURL(), postgres.PoolConfig{
		MaxOpenConns:    cfg.Database.MaxConns,
		MaxIdleConns:    cfg.Database.MinConns,
		ConnMaxLifetime: 30 * time.Minute,
	})
	if err != nil {
		return nil, err
	}
	if cfg.Database.Migrate {
		if err := pg.Migrate(ctx); err != nil {
			pg.Close()
			return nil, err
		}
	}
	return &Store{Stores: pg.Stores(), Health: pg, close: pg.Close}, nil
}

func (s *Store) Close() error {
	return s.close()
}

// OpenArchive returns the document directory archive, or nil when disabled
func OpenArchive(cfg *config.Config) (services.DocumentArchive, error) {
	if cfg.Studio.DocumentDir == "" {
		return nil, nil
	}
	archive, err := documents.NewDirArchive(cfg.Studio.DocumentDir)
	if err != nil {
		return nil, err
	}
	return archive, nil
}

// Infra are the outbound adapters the services talk to
type Infra struct {
	Mailer    services.Mailer
	Scheduler services.JobScheduler
	Publisher services.EventPublisher  // optional
	Archive   services.DocumentArchive // optional, receives storno PDFs
}

// App holds the wired services
type App struct {
	Settings services.Settings

	Invoices      *services.InvoiceService
	Courses       *services.CourseService
	Discounts     *services.DiscountService
	Accounting    *services.AccountingDeriver
	Notifications *services.NotificationService
	Birthdays     *services.BirthdayService
}

// New builds the services and subscribes the invoice event handlers
func New(settings services.Settings, stores services.Stores, infra Infra) (*App, error) {
	calendar, err := holidays.NewBavariaCalculator()
	if err != nil {
		return nil, fmt.Errorf("failed to build holiday calendar: %w", err)
	}

	a := &App{Settings: settings}
	a.Discounts = services.NewDiscountService(stores.DiscountCodes, settings)
	a.Invoices = services.NewInvoiceService(stores, infra.Mailer, settings)
	a.Accounting = services.NewAccountingDeriver(stores.Accounting, a.Invoices, settings)
	a.Notifications = services.NewNotificationService(stores, infra.Scheduler, infra.Mailer, settings)
	a.Courses = services.NewCourseService(stores, services.NewScheduleCalculator(calendar),
		a.Notifications, a.Discounts, a.Invoices, infra.Publisher, settings)
	a.Birthdays = services.NewBirthdayService(stores.Customers, infra.Mailer, settings)

	handlers := []services.EventHandler{
		a.Accounting,
		services.NewCancellationHandler(a.Courses, a.Discounts),
	}
	if infra.Archive != nil {
		handlers = append(handlers, services.NewCancellationDocumentHandler(a.Invoices, infra.Archive))
	}
	if infra.Publisher != nil {
		handlers = append(handlers, services.NewPublishingHandler(infra.Publisher))
	}
	a.Invoices.Subscribe(handlers...)
	return a, nil
}

// API returns the services the HTTP router needs
func (a *App) API() api.Services {
	return api.Services{
		Invoices:   a.Invoices,
		Courses:    a.Courses,
		Discounts:  a.Discounts,
		Accounting: a.Accounting,
	}
}

// DailyTasks returns the cron tasks with the configured specs
func (a *App) DailyTasks(studio config.StudioConfig) []jobs.Task {
	return jobs.Daily(jobs.Specs{
		Birthdays:       studio.BirthdayCron,
		CompletionCodes: studio.CompletionCodesCron,
		Cleanup:         studio.CleanupCron,
		Deactivate:      studio.DeactivateCron,
	}, a.Birthdays, a.Notifications, a.Discounts, a.Courses)
}
