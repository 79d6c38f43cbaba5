// Package memory keeps every entity in maps. It backs the tests and the demo flow.
package memory

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jaegermarcel/bewegungsradius-crm/src/models"
	"github.com/jaegermarcel/bewegungsradius-crm/src/services"
)

// Store holds copies of the entities; callers never share pointers with it
type Store struct {
	mu        sync.RWMutex
	txMu      sync.Mutex
	customers map[uuid.UUID]models.Customer
	offers    map[uuid.UUID]models.Offer
	locations map[uuid.UUID]models.Location
	courses   map[uuid.UUID]models.Course
	invoices  map[uuid.UUID]models.Invoice
	codes     map[uuid.UUID]models.DiscountCode
	entries   map[uuid.UUID]models.AccountingEntry
}

func New() *Store {
	return &Store{
		customers: make(map[uuid.UUID]models.Customer),
		offers:    make(map[uuid.UUID]models.Offer),
		locations: make(map[uuid.UUID]models.Location),
		courses:   make(map[uuid.UUID]models.Course),
		invoices:  make(map[uuid.UUID]models.Invoice),
		codes:     make(map[uuid.UUID]models.DiscountCode),
		entries:   make(map[uuid.UUID]models.AccountingEntry),
	}
}

// Stores exposes the store through the service interfaces
func (s *Store) Stores() services.Stores {
	return services.Stores{
		Tx:            s,
		Customers:     s,
		Offers:        s,
		Courses:       s,
		Invoices:      s,
		DiscountCodes: s,
		Accounting:    s,
	}
}

type txKey struct{}

// WithinTx serialises transactions. Writes are not rolled back on error.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()
	return fn(context.WithValue(ctx, txKey{}, true))
}

// Customers

func (s *Store) CreateCustomer(_ context.Context, c *models.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.customers[c.ID]; ok {
		return models.ErrDuplicate
	}
	s.customers[c.ID] = *c
	return nil
}

func (s *Store) UpdateCustomer(_ context.Context, c *models.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.customers[c.ID]; !ok {
		return models.ErrNotFound
	}
	s.customers[c.ID] = *c
	return nil
}

func (s *Store) GetCustomer(_ context.Context, id uuid.UUID) (*models.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.customers[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &c, nil
}

func (s *Store) ListCustomersWithBirthday(_ context.Context, month time.Month, day int) ([]*models.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Customer
	for _, c := range s.customers {
		if c.Birthday != nil && c.Birthday.Month() == month && c.Birthday.Day() == day {
			c := c
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastName < out[j].LastName })
	return out, nil
}

// Offers and locations

func (s *Store) CreateOffer(_ context.Context, o *models.Offer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.offers[o.ID]; ok {
		return models.ErrDuplicate
	}
	s.offers[o.ID] = *o
	return nil
}

func (s *Store) GetOffer(_ context.Context, id uuid.UUID) (*models.Offer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.offers[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &o, nil
}

func (s *Store) CreateLocation(_ context.Context, l *models.Location) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.locations[l.ID]; ok {
		return models.ErrDuplicate
	}
	s.locations[l.ID] = *l
	return nil
}

// Courses

func storedCourse(c *models.Course) models.Course {
	cp := *c
	cp.Offer = nil
	cp.Location = nil
	cp.ParticipantsInPerson = slices.Clone(c.ParticipantsInPerson)
	cp.ParticipantsOnline = slices.Clone(c.ParticipantsOnline)
	return cp
}

// loadCourse attaches offer and location; callers hold the read lock
func (s *Store) loadCourse(c models.Course) *models.Course {
	c.ParticipantsInPerson = slices.Clone(c.ParticipantsInPerson)
	c.ParticipantsOnline = slices.Clone(c.ParticipantsOnline)
	if o, ok := s.offers[c.OfferID]; ok {
		c.Offer = &o
	}
	if c.LocationID != nil {
		if l, ok := s.locations[*c.LocationID]; ok {
			c.Location = &l
		}
	}
	return &c
}

func (s *Store) CreateCourse(_ context.Context, c *models.Course) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.courses[c.ID]; ok {
		return models.ErrDuplicate
	}
	s.courses[c.ID] = storedCourse(c)
	return nil
}

func (s *Store) GetCourse(_ context.Context, id uuid.UUID) (*models.Course, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.courses[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return s.loadCourse(c), nil
}

func (s *Store) UpdateCourse(_ context.Context, c *models.Course) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.courses[c.ID]; !ok {
		return models.ErrNotFound
	}
	s.courses[c.ID] = storedCourse(c)
	return nil
}

func (s *Store) DeleteCourse(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.courses[id]; !ok {
		return models.ErrNotFound
	}
	delete(s.courses, id)
	return nil
}

func (s *Store) ListCoursesEndingOn(_ context.Context, date time.Time) ([]*models.Course, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	date = models.DateOf(date)
	var out []*models.Course
	for _, c := range s.courses {
		if c.IsActive && c.EndDate != nil && models.DateOf(*c.EndDate).Equal(date) {
			out = append(out, s.loadCourse(c))
		}
	}
	return out, nil
}

func (s *Store) DeactivateExpiredCourses(_ context.Context, today time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, c := range s.courses {
		if c.IsActive && c.IsExpired(today) {
			c.IsActive = false
			s.courses[id] = c
			n++
		}
	}
	return n, nil
}

// Invoices

func storedInvoice(inv *models.Invoice) models.Invoice {
	cp := *inv
	cp.Source = nil
	cp.DiscountCode = nil
	return cp
}

func (s *Store) CreateInvoice(_ context.Context, inv *models.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.invoices[inv.ID]; ok {
		return models.ErrDuplicate
	}
	for _, existing := range s.invoices {
		if existing.InvoiceNumber == inv.InvoiceNumber {
			return models.ErrDuplicate
		}
	}
	s.invoices[inv.ID] = storedInvoice(inv)
	return nil
}

func (s *Store) GetInvoice(_ context.Context, id uuid.UUID) (*models.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inv, ok := s.invoices[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &inv, nil
}

func (s *Store) UpdateInvoice(_ context.Context, inv *models.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.invoices[inv.ID]; !ok {
		return models.ErrNotFound
	}
	s.invoices[inv.ID] = storedInvoice(inv)
	return nil
}

func (s *Store) LastInvoiceNumber(_ context.Context, year int) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	prefix := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC).Format("2006") + "-"
	last := ""
	for _, inv := range s.invoices {
		n := inv.InvoiceNumber
		if !strings.HasPrefix(n, prefix) {
			continue
		}
		// longer suffixes are higher numbers
		if len(n) > len(last) || (len(n) == len(last) && n > last) {
			last = n
		}
	}
	return last, nil
}

func (s *Store) ExistsForCustomerAndCourse(_ context.Context, customerID, courseID uuid.UUID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, inv := range s.invoices {
		if inv.CustomerID == customerID && inv.CourseID != nil && *inv.CourseID == courseID {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) ListInvoicesByCustomer(_ context.Context, customerID uuid.UUID) ([]*models.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Invoice
	for _, inv := range s.invoices {
		if inv.CustomerID == customerID {
			inv := inv
			out = append(out, &inv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].InvoiceNumber < out[j].InvoiceNumber })
	return out, nil
}

// Discount codes

func (s *Store) CreateDiscountCode(_ context.Context, dc *models.DiscountCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.codes[dc.ID]; ok {
		return models.ErrDuplicate
	}
	for _, existing := range s.codes {
		if existing.Code == dc.Code {
			return models.ErrDuplicate
		}
	}
	s.codes[dc.ID] = *dc
	return nil
}

func (s *Store) GetDiscountCode(_ context.Context, id uuid.UUID) (*models.DiscountCode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	dc, ok := s.codes[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &dc, nil
}

func (s *Store) GetDiscountCodeByCode(_ context.Context, code string) (*models.DiscountCode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, dc := range s.codes {
		if dc.Code == code {
			return &dc, nil
		}
	}
	return nil, models.ErrNotFound
}

func (s *Store) CodeExists(_ context.Context, code string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, dc := range s.codes {
		if dc.Code == code {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) UpdateDiscountCode(_ context.Context, dc *models.DiscountCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.codes[dc.ID]; !ok {
		return models.ErrNotFound
	}
	s.codes[dc.ID] = *dc
	return nil
}

func (s *Store) FindForCustomerAndCourse(_ context.Context, customerID, courseID uuid.UUID, statuses ...models.DiscountStatus) ([]*models.DiscountCode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.DiscountCode
	for _, dc := range s.codes {
		if dc.CustomerID != customerID || dc.CourseID == nil || *dc.CourseID != courseID {
			continue
		}
		if len(statuses) > 0 && !slices.Contains(statuses, dc.Status) {
			continue
		}
		dc := dc
		out = append(out, &dc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) DeleteCreatedBefore(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, dc := range s.codes {
		if dc.CreatedAt.Before(cutoff) {
			delete(s.codes, id)
			n++
		}
	}
	return n, nil
}

// Accounting entries

func (s *Store) CreateEntry(_ context.Context, e *models.AccountingEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[e.ID]; ok {
		return models.ErrDuplicate
	}
	s.entries[e.ID] = *e
	return nil
}

func (s *Store) ListEntriesByInvoice(_ context.Context, invoiceID uuid.UUID) ([]*models.AccountingEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.AccountingEntry
	for _, e := range s.entries {
		if e.InvoiceID != nil && *e.InvoiceID == invoiceID {
			e := e
			out = append(out, &e)
		}
	}
	sortEntries(out)
	return out, nil
}

func (s *Store) DeleteEntriesByInvoice(_ context.Context, invoiceID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, e := range s.entries {
		if e.InvoiceID != nil && *e.InvoiceID == invoiceID {
			delete(s.entries, id)
			n++
		}
	}
	return n, nil
}

func (s *Store) ListEntries(_ context.Context, from, to time.Time) ([]*models.AccountingEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.AccountingEntry
	for _, e := range s.entries {
		if e.Date.Before(from) || e.Date.After(to) {
			continue
		}
		e := e
		out = append(out, &e)
	}
	sortEntries(out)
	return out, nil
}

func sortEntries(entries []*models.AccountingEntry) {
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].Date.Equal(entries[j].Date) {
			return entries[i].Date.Before(entries[j].Date)
		}
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})
}
