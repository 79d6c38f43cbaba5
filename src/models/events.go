package models

import (
	"time"

	"github.com/google/uuid"
)

// DomainEvent is a fact produced by an explicit state transition
type DomainEvent interface {
	EventName() string
	AggregateID() uuid.UUID
}

// InvoiceStatusChanged is emitted for every real status change
type InvoiceStatusChanged struct {
	InvoiceID     uuid.UUID     `json:"invoice_id"`
	InvoiceNumber string        `json:"invoice_number"`
	From          InvoiceStatus `json:"from"`
	To            InvoiceStatus `json:"to"`
	At            time.Time     `json:"at"`
}

func (e InvoiceStatusChanged) EventName() string      { return "invoice.status_changed" }
func (e InvoiceStatusChanged) AggregateID() uuid.UUID { return e.InvoiceID }

// InvoiceCancelled carries what the cancellation handler needs to undo
type InvoiceCancelled struct {
	InvoiceID      uuid.UUID  `json:"invoice_id"`
	InvoiceNumber  string     `json:"invoice_number"`
	CustomerID     uuid.UUID  `json:"customer_id"`
	CourseID       *uuid.UUID `json:"course_id,omitempty"`
	DiscountCodeID *uuid.UUID `json:"discount_code_id,omitempty"`
	At             time.Time  `json:"at"`
}

func (e InvoiceCancelled) EventName() string      { return "invoice.cancelled" }
func (e InvoiceCancelled) AggregateID() uuid.UUID { return e.InvoiceID }

// ParticipantAdded is emitted when a customer joins a course
type ParticipantAdded struct {
	CourseID   uuid.UUID       `json:"course_id"`
	CustomerID uuid.UUID       `json:"customer_id"`
	Mode       ParticipantMode `json:"mode"`
	At         time.Time       `json:"at"`
}

func (e ParticipantAdded) EventName() string      { return "course.participant_added" }
func (e ParticipantAdded) AggregateID() uuid.UUID { return e.CourseID }

// ParticipantRemoved is emitted when a customer leaves a course
type ParticipantRemoved struct {
	CourseID   uuid.UUID         `json:"course_id"`
	CustomerID uuid.UUID         `json:"customer_id"`
	Modes      []ParticipantMode `json:"modes"`
	At         time.Time         `json:"at"`
}

func (e ParticipantRemoved) EventName() string      { return "course.participant_removed" }
func (e ParticipantRemoved) AggregateID() uuid.UUID { return e.CourseID }
