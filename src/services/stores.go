package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jaegermarcel/bewegungsradius-crm/src/models"
)

// Stores return models.ErrNotFound for missing rows and models.ErrDuplicate
// for unique constraint violations.

// Transactor runs fn atomically; stores pick the transaction up from ctx
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type CustomerStore interface {
	GetCustomer(ctx context.Context, id uuid.UUID) (*models.Customer, error)
	CreateCustomer(ctx context.Context, customer *models.Customer) error
	UpdateCustomer(ctx context.Context, customer *models.Customer) error
	ListCustomersWithBirthday(ctx context.Context, month time.Month, day int) ([]*models.Customer, error)
}

type OfferStore interface {
	GetOffer(ctx context.Context, id uuid.UUID) (*models.Offer, error)
	CreateOffer(ctx context.Context, offer *models.Offer) error
}

// CourseStore loads courses with offer, location and participants attached
type CourseStore interface {
	GetCourse(ctx context.Context, id uuid.UUID) (*models.Course, error)
	CreateCourse(ctx context.Context, course *models.Course) error
	UpdateCourse(ctx context.Context, course *models.Course) error
	DeleteCourse(ctx context.Context, id uuid.UUID) error
	ListCoursesEndingOn(ctx context.Context, date time.Time) ([]*models.Course, error)
	DeactivateExpiredCourses(ctx context.Context, today time.Time) (int, error)
}

type InvoiceStore interface {
	GetInvoice(ctx context.Context, id uuid.UUID) (*models.Invoice, error)
	CreateInvoice(ctx context.Context, invoice *models.Invoice) error
	UpdateInvoice(ctx context.Context, invoice *models.Invoice) error
	// LastInvoiceNumber returns the highest number of year, "" if there is none
	LastInvoiceNumber(ctx context.Context, year int) (string, error)
	ExistsForCustomerAndCourse(ctx context.Context, customerID, courseID uuid.UUID) (bool, error)
	ListInvoicesByCustomer(ctx context.Context, customerID uuid.UUID) ([]*models.Invoice, error)
}

type DiscountCodeStore interface {
	GetDiscountCode(ctx context.Context, id uuid.UUID) (*models.DiscountCode, error)
	GetDiscountCodeByCode(ctx context.Context, code string) (*models.DiscountCode, error)
	CodeExists(ctx context.Context, code string) (bool, error)
	CreateDiscountCode(ctx context.Context, code *models.DiscountCode) error
	UpdateDiscountCode(ctx context.Context, code *models.DiscountCode) error
	// FindForCustomerAndCourse filters by status when statuses are given
	FindForCustomerAndCourse(ctx context.Context, customerID, courseID uuid.UUID, statuses ...models.DiscountStatus) ([]*models.DiscountCode, error)
	DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int, error)
}

type AccountingStore interface {
	CreateEntry(ctx context.Context, entry *models.AccountingEntry) error
	ListEntriesByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]*models.AccountingEntry, error)
	DeleteEntriesByInvoice(ctx context.Context, invoiceID uuid.UUID) (int, error)
	ListEntries(ctx context.Context, from, to time.Time) ([]*models.AccountingEntry, error)
}

// EventPublisher ships domain events to the message bus
type EventPublisher interface {
	Publish(ctx context.Context, key string, value interface{}) error
}

// EventHandler consumes domain events returned by explicit transitions
type EventHandler interface {
	Handle(ctx context.Context, event models.DomainEvent) error
}

// Stores bundles one backend's repositories
type Stores struct {
	Tx            Transactor
	Customers     CustomerStore
	Offers        OfferStore
	Courses       CourseStore
	Invoices      InvoiceStore
	DiscountCodes DiscountCodeStore
	Accounting    AccountingStore
}
