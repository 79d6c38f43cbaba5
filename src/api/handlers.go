package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"mime"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/jaegermarcel/bewegungsradius-crm/src/models"
)

type handler struct {
	svc Services
}

type statusRequest struct {
	Status models.InvoiceStatus `json:"status"`
}

type cancelRequest struct {
	StornoNumber string `json:"storno_number"`
}

type participantRequest struct {
	CustomerID uuid.UUID              `json:"customer_id"`
	Mode       models.ParticipantMode `json:"mode"`
}

type validateRequest struct {
	Code string `json:"code"`
}

type validateResponse struct {
	models.DiscountValidation
	DisplayValue string `json:"display_value,omitempty"`
}

type invoiceResponse struct {
	*models.Invoice
	Title       string `json:"title"`
	TaxAmount   string `json:"tax_amount"`
	TotalAmount string `json:"total_amount"`
	StatusLabel string `json:"status_label"`
}

func newInvoiceResponse(inv *models.Invoice) invoiceResponse {
	return invoiceResponse{
		Invoice:     inv,
		Title:       inv.Title(),
		TaxAmount:   inv.TaxAmount().StringFixed(2),
		TotalAmount: inv.TotalAmount().StringFixed(2),
		StatusLabel: models.InvoiceStatusLabels[inv.Status],
	}
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// writeServiceError maps domain errors to status codes
func writeServiceError(w http.ResponseWriter, err error) {
	var verr *models.ValidationError
	switch {
	case errors.Is(err, models.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &verr):
		writeError(w, http.StatusUnprocessableEntity, verr.Error())
	case errors.Is(err, models.ErrInvalidStatusTransition),
		errors.Is(err, models.ErrInvoiceCancelled),
		errors.Is(err, models.ErrInvoiceNotCancelled),
		errors.Is(err, models.ErrCourseFull),
		errors.Is(err, models.ErrDuplicate):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, models.ErrDiscountCodeNotUsable),
		errors.Is(err, models.ErrDiscountCustomerMismatch):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		log.Printf("request failed: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body")
		return false
	}
	return true
}

// POST /api/v1/invoices
func (h *handler) createInvoice(w http.ResponseWriter, r *http.Request) {
	var inv models.Invoice
	if !decode(w, r, &inv) {
		return
	}
	inv.ID = uuid.Nil
	inv.Status = ""
	inv.OriginalAmount = nil
	if err := h.svc.Invoices.Save(r.Context(), &inv); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newInvoiceResponse(&inv))
}

// GET /api/v1/invoices/{id}
func (h *handler) getInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	inv, err := h.svc.Invoices.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newInvoiceResponse(inv))
}

// PUT /api/v1/invoices/{id}
func (h *handler) updateInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if _, err := h.svc.Invoices.Get(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	var inv models.Invoice
	if !decode(w, r, &inv) {
		return
	}
	inv.ID = id
	if err := h.svc.Invoices.Save(r.Context(), &inv); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newInvoiceResponse(&inv))
}

// POST /api/v1/invoices/{id}/status
func (h *handler) updateInvoiceStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req statusRequest
	if !decode(w, r, &req) {
		return
	}
	if _, known := models.InvoiceStatusLabels[req.Status]; !known {
		writeError(w, http.StatusBadRequest, "unknown status "+string(req.Status))
		return
	}
	inv, err := h.svc.Invoices.UpdateStatus(r.Context(), id, req.Status)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newInvoiceResponse(inv))
}

// POST /api/v1/invoices/{id}/cancel
func (h *handler) cancelInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req cancelRequest
	if r.ContentLength != 0 && !decode(w, r, &req) {
		return
	}
	inv, err := h.svc.Invoices.Cancel(r.Context(), id, req.StornoNumber)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newInvoiceResponse(inv))
}

// POST /api/v1/invoices/{id}/email
func (h *handler) sendInvoiceEmail(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.svc.Invoices.SendEmail(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// GET /api/v1/invoices/{id}/pdf
func (h *handler) invoicePDF(w http.ResponseWriter, r *http.Request) {
	h.writePDF(w, r, h.svc.Invoices.InvoicePDF)
}

// GET /api/v1/invoices/{id}/storno.pdf
func (h *handler) cancellationPDF(w http.ResponseWriter, r *http.Request) {
	h.writePDF(w, r, h.svc.Invoices.CancellationPDF)
}

func (h *handler) writePDF(w http.ResponseWriter, r *http.Request, render func(context.Context, uuid.UUID) (string, []byte, error)) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	name, data, err := render(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// GET /api/v1/customers/{id}/invoices
func (h *handler) listCustomerInvoices(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	invoices, err := h.svc.Invoices.ListByCustomer(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	out := make([]invoiceResponse, 0, len(invoices))
	for _, inv := range invoices {
		out = append(out, newInvoiceResponse(inv))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handler) getCourse(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	course, err := h.svc.Courses.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, course)
}

func (h *handler) deleteCourse(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.svc.Courses.Delete(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) courseSchedule(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	schedule, err := h.svc.Courses.Schedule(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, schedule)
}

func (h *handler) addParticipant(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req participantRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Mode == "" {
		req.Mode = models.ParticipantInPerson
	}
	if req.Mode != models.ParticipantInPerson && req.Mode != models.ParticipantOnline {
		writeError(w, http.StatusBadRequest, "unknown mode "+string(req.Mode))
		return
	}
	enrollment, err := h.svc.Courses.AddParticipant(r.Context(), id, req.CustomerID, req.Mode)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, enrollment)
}

func (h *handler) removeParticipant(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	customerID, ok := pathID(w, r, "customerID")
	if !ok {
		return
	}
	if err := h.svc.Courses.RemoveParticipant(r.Context(), id, customerID); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// POST /api/v1/discount-codes/validate; an unknown code is a 404
func (h *handler) validateDiscountCode(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if !decode(w, r, &req) {
		return
	}
	dc, result, err := h.svc.Discounts.Validate(r.Context(), req.Code)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, validateResponse{DiscountValidation: result, DisplayValue: dc.DisplayValue()})
}

// GET /api/v1/accounting/report?from=2025-01-01&to=2025-12-31
func (h *handler) accountingReport(w http.ResponseWriter, r *http.Request) {
	from, err := time.Parse("2006-01-02", r.URL.Query().Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "from must be YYYY-MM-DD")
		return
	}
	to, err := time.Parse("2006-01-02", r.URL.Query().Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "to must be YYYY-MM-DD")
		return
	}
	if to.Before(from) {
		writeError(w, http.StatusBadRequest, "to before from")
		return
	}
	report, err := h.svc.Accounting.Report(r.Context(), from, to)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
