package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/jaegermarcel/bewegungsradius-crm/src/models"
)

// ParticipantRemover takes a customer out of a course
type ParticipantRemover interface {
	RemoveParticipant(ctx context.Context, courseID, customerID uuid.UUID) error
}

// CancellationHandler undoes the side effects of a cancelled invoice:
// the customer leaves the course and the redeemed code becomes usable again.
type CancellationHandler struct {
	courses   ParticipantRemover
	discounts *DiscountService
}

// NewCancellationHandler creates a new cancellation handler
func NewCancellationHandler(courses ParticipantRemover, discounts *DiscountService) *CancellationHandler {
	return &CancellationHandler{courses: courses, discounts: discounts}
}

func (h *CancellationHandler) Handle(ctx context.Context, event models.DomainEvent) error {
	cancelled, ok := event.(models.InvoiceCancelled)
	if !ok {
		return nil
	}
	if cancelled.CourseID != nil {
		if err := h.courses.RemoveParticipant(ctx, *cancelled.CourseID, cancelled.CustomerID); err != nil {
			return fmt.Errorf("failed to remove participant after cancellation: %w", err)
		}
	}
	if cancelled.DiscountCodeID != nil {
		if err := h.discounts.Release(ctx, *cancelled.DiscountCodeID); err != nil {
			return err
		}
	}
	return nil
}

// EventEnvelope is the message shape published to the event bus
type EventEnvelope struct {
	Event      string             `json:"event"`
	Payload    models.DomainEvent `json:"payload"`
	OccurredAt time.Time          `json:"occurred_at"`
}

// PublishingHandler forwards domain events to the message bus
type PublishingHandler struct {
	publisher EventPublisher
}

func NewPublishingHandler(publisher EventPublisher) *PublishingHandler {
	return &PublishingHandler{publisher: publisher}
}

func (h *PublishingHandler) Handle(ctx context.Context, event models.DomainEvent) error {
	return publish(ctx, h.publisher, event)
}

func publish(ctx context.Context, publisher EventPublisher, event models.DomainEvent) error {
	if publisher == nil {
		return nil
	}
	envelope := EventEnvelope{
		Event:      event.EventName(),
		Payload:    event,
		OccurredAt: time.Now().UTC(),
	}
	if err := publisher.Publish(ctx, event.AggregateID().String(), envelope); err != nil {
		return fmt.Errorf("failed to publish %s: %w", event.EventName(), err)
	}
	return nil
}

// DocumentArchive keeps rendered PDFs, e.g. for the tax advisor
type DocumentArchive interface {
	Store(ctx context.Context, filename string, data []byte) error
}

// CancellationDocumentHandler archives the storno PDF of a cancelled invoice.
// Failures are logged only; the cancellation itself stands.
type CancellationDocumentHandler struct {
	invoices *InvoiceService
	archive  DocumentArchive
}

func NewCancellationDocumentHandler(invoices *InvoiceService, archive DocumentArchive) *CancellationDocumentHandler {
	return &CancellationDocumentHandler{invoices: invoices, archive: archive}
}

func (h *CancellationDocumentHandler) Handle(ctx context.Context, event models.DomainEvent) error {
	cancelled, ok := event.(models.InvoiceCancelled)
	if !ok {
		return nil
	}
	name, data, err := h.invoices.CancellationPDF(ctx, cancelled.InvoiceID)
	if err != nil {
		log.Printf("storno document for invoice %s not rendered: %v", cancelled.InvoiceNumber, err)
		return nil
	}
	if err := h.archive.Store(ctx, name, data); err != nil {
		log.Printf("storno document %s not archived: %v", name, err)
		return nil
	}
	log.Printf("storno document %s archived (%d bytes)", name, len(data))
	return nil
}
