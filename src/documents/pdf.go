// Package documents renders invoice and cancellation PDFs.
package documents

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/shopspring/decimal"

	"github.com/jaegermarcel/bewegungsradius-crm/src/models"
)

// Company is the letterhead printed on every document
type Company struct {
	Name      string
	Address   string // one line, e.g. "Hauptstr. 1, 80331 München"
	Email     string
	TaxNumber string
	BankName  string
	IBAN      string
	BIC       string
}

const (
	pageMargin = 20.0
	lineHeight = 6.0
	colAmount  = 35.0
	colUnits   = 25.0
)

// Renderer lays out documents on A4 with the core Helvetica font
type Renderer struct {
	company  Company
	loc      *time.Location
	compress bool
}

// NewRenderer creates a renderer; loc is used for printed timestamps
func NewRenderer(company Company, loc *time.Location) *Renderer {
	if loc == nil {
		loc = time.UTC
	}
	return &Renderer{company: company, loc: loc, compress: true}
}

// InvoiceFilename names the invoice PDF, e.g. Rechnung_2025-001.pdf
func InvoiceFilename(number string) string {
	return fmt.Sprintf("Rechnung_%s.pdf", number)
}

// CancellationFilename names the storno PDF, e.g. Storno_2025-001.pdf
func CancellationFilename(number string) string {
	return fmt.Sprintf("Storno_%s.pdf", number)
}

// Invoice renders the bill for inv; customer supplies the address block
func (r *Renderer) Invoice(inv *models.Invoice, customer *models.Customer) ([]byte, error) {
	pdf, tr := r.newDocument("Rechnung " + inv.InvoiceNumber)

	r.header(pdf, tr, customer)
	r.heading(pdf, tr, "Rechnung "+inv.InvoiceNumber)
	r.facts(pdf, tr, [][2]string{
		{"Rechnungsdatum", models.FormatDate(inv.IssueDate)},
		{"Zahlbar bis", models.FormatDate(inv.DueDate)},
		{"Kursnummer", inv.CourseIDCustom},
		{"ZPP-Kurs-ID", zppID(inv)},
	})
	r.positions(pdf, tr, inv, decimal.NewFromInt(1))
	r.taxNote(pdf, tr, inv)

	pdf.Ln(lineHeight)
	pdf.SetFont("Helvetica", "", 10)
	pdf.MultiCell(0, 5, tr(fmt.Sprintf(
		"Bitte überweise den Rechnungsbetrag bis zum %s unter Angabe der Rechnungsnummer %s.",
		models.FormatDate(inv.DueDate), inv.InvoiceNumber)), "", "L", false)
	if inv.Notes != "" {
		pdf.Ln(2)
		pdf.MultiCell(0, 5, tr(inv.Notes), "", "L", false)
	}
	return r.output(pdf)
}

// Cancellation renders the storno document of a cancelled invoice. Amounts
// are printed negated so the storno offsets the original bill.
func (r *Renderer) Cancellation(inv *models.Invoice, customer *models.Customer) ([]byte, error) {
	if !inv.IsTerminal() {
		return nil, fmt.Errorf("invoice %s: %w", inv.InvoiceNumber, models.ErrInvoiceNotCancelled)
	}
	number := inv.InvoiceNumber
	if inv.CancelledInvoiceNumber != nil && *inv.CancelledInvoiceNumber != "" {
		number = *inv.CancelledInvoiceNumber
	}
	cancelledOn := ""
	if inv.CancelledAt != nil {
		cancelledOn = models.FormatDate(inv.CancelledAt.In(r.loc))
	}

	pdf, tr := r.newDocument("Storno " + number)

	r.header(pdf, tr, customer)
	r.heading(pdf, tr, "Stornorechnung "+number)
	r.facts(pdf, tr, [][2]string{
		{"Storniert am", cancelledOn},
		{"Zur Rechnung", inv.InvoiceNumber},
		{"Rechnungsdatum", models.FormatDate(inv.IssueDate)},
	})
	r.positions(pdf, tr, inv, decimal.NewFromInt(-1))
	r.taxNote(pdf, tr, inv)

	pdf.Ln(lineHeight)
	pdf.SetFont("Helvetica", "", 10)
	pdf.MultiCell(0, 5, tr(fmt.Sprintf(
		"Hiermit stornieren wir die Rechnung %s vom %s vollständig. Bereits gezahlte Beträge werden erstattet.",
		inv.InvoiceNumber, models.FormatDate(inv.IssueDate))), "", "L", false)
	return r.output(pdf)
}

func (r *Renderer) newDocument(title string) (*fpdf.Fpdf, func(string) string) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCompression(r.compress)
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(true, 30)
	pdf.SetTitle(title, false)
	pdf.SetAuthor(r.company.Name, true)
	pdf.SetCreator("bewegungsradius", false)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetFooterFunc(func() { r.footer(pdf, tr) })
	pdf.AddPage()
	return pdf, tr
}

func (r *Renderer) header(pdf *fpdf.Fpdf, tr func(string) string, customer *models.Customer) {
	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 8, tr(r.company.Name), "", 1, "R", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	pdf.CellFormat(0, 5, tr(r.company.Address), "", 1, "R", false, 0, "")
	pdf.CellFormat(0, 5, tr(r.company.Email), "", 1, "R", false, 0, "")
	pdf.Ln(10)

	// sender line above the window address
	pdf.SetFont("Helvetica", "U", 7)
	pdf.CellFormat(0, 4, tr(joinNonEmpty(" - ", r.company.Name, r.company.Address)), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	for _, line := range addressLines(customer) {
		pdf.CellFormat(0, 5, tr(line), "", 1, "L", false, 0, "")
	}
	pdf.Ln(12)
}

func (r *Renderer) heading(pdf *fpdf.Fpdf, tr func(string) string, text string) {
	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 8, tr(text), "", 1, "L", false, 0, "")
	pdf.Ln(2)
}

// facts prints label/value pairs, skipping empty values
func (r *Renderer) facts(pdf *fpdf.Fpdf, tr func(string) string, rows [][2]string) {
	pdf.SetFont("Helvetica", "", 10)
	for _, row := range rows {
		if row[1] == "" {
			continue
		}
		pdf.CellFormat(40, 5, tr(row[0]+":"), "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 5, tr(row[1]), "", 1, "L", false, 0, "")
	}
	pdf.Ln(lineHeight)
}

// positions prints the item table; sign is -1 on a storno
func (r *Renderer) positions(pdf *fpdf.Fpdf, tr func(string) string, inv *models.Invoice, sign decimal.Decimal) {
	width, _ := pdf.GetPageSize()
	desc := width - 2*pageMargin - colUnits - colAmount

	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(235, 235, 235)
	pdf.CellFormat(desc, 7, tr("Leistung"), "B", 0, "L", true, 0, "")
	pdf.CellFormat(colUnits, 7, tr("Einheiten"), "B", 0, "R", true, 0, "")
	pdf.CellFormat(colAmount, 7, tr("Betrag"), "B", 1, "R", true, 0, "")

	original := inv.Amount
	if inv.OriginalAmount != nil {
		original = *inv.OriginalAmount
	}
	units := ""
	if inv.CourseUnits > 0 {
		units = fmt.Sprintf("%d", inv.CourseUnits)
		if inv.CourseDuration != nil {
			units = fmt.Sprintf("%d x %d min", inv.CourseUnits, *inv.CourseDuration)
		}
	}

	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(desc, lineHeight, tr(inv.Title()), "", 0, "L", false, 0, "")
	pdf.CellFormat(colUnits, lineHeight, tr(units), "", 0, "R", false, 0, "")
	pdf.CellFormat(colAmount, lineHeight, tr(euro(original.Mul(sign))), "", 1, "R", false, 0, "")

	if inv.DiscountAmount.IsPositive() {
		label := "Rabatt"
		if inv.DiscountCode != nil {
			label = fmt.Sprintf("Rabatt %s (%s)", inv.DiscountCode.Code, inv.DiscountCode.DisplayValue())
		}
		pdf.CellFormat(desc+colUnits, lineHeight, tr(label), "", 0, "L", false, 0, "")
		pdf.CellFormat(colAmount, lineHeight, tr(euro(inv.DiscountAmount.Neg().Mul(sign))), "", 1, "R", false, 0, "")
	}

	pdf.Ln(1)
	r.sumLine(pdf, tr, desc+colUnits, "Nettobetrag", inv.Amount.Mul(sign), false)
	if !inv.IsTaxExempt {
		r.sumLine(pdf, tr, desc+colUnits, fmt.Sprintf("USt. %s %%", inv.TaxRate.String()), inv.TaxAmount().Mul(sign), false)
	}
	r.sumLine(pdf, tr, desc+colUnits, "Gesamtbetrag", inv.TotalAmount().Mul(sign), true)
}

func (r *Renderer) sumLine(pdf *fpdf.Fpdf, tr func(string) string, labelWidth float64, label string, amount decimal.Decimal, bold bool) {
	style, border := "", ""
	if bold {
		style, border = "B", "T"
	}
	pdf.SetFont("Helvetica", style, 10)
	pdf.CellFormat(labelWidth, lineHeight, tr(label), border, 0, "R", false, 0, "")
	pdf.CellFormat(colAmount, lineHeight, tr(euro(amount)), border, 1, "R", false, 0, "")
}

func (r *Renderer) taxNote(pdf *fpdf.Fpdf, tr func(string) string, inv *models.Invoice) {
	var notes []string
	if inv.IsTaxExempt {
		notes = append(notes, "Die Leistung ist von der Umsatzsteuer befreit.")
	}
	if inv.IsPreventionCertified {
		notes = append(notes, "Zertifizierter Präventionskurs nach § 20 SGB V.")
	}
	if len(notes) == 0 {
		return
	}
	pdf.Ln(lineHeight)
	pdf.SetFont("Helvetica", "I", 9)
	for _, n := range notes {
		pdf.MultiCell(0, 5, tr(n), "", "L", false)
	}
}

func (r *Renderer) footer(pdf *fpdf.Fpdf, tr func(string) string) {
	pdf.SetY(-22)
	pdf.SetFont("Helvetica", "", 8)
	pdf.SetTextColor(110, 110, 110)
	pdf.CellFormat(0, 4, tr(joinNonEmpty(" | ", r.company.Name, r.company.Address, r.company.Email)), "T", 1, "C", false, 0, "")
	pdf.CellFormat(0, 4, tr(joinNonEmpty(" | ",
		prefixed("Bank: ", r.company.BankName),
		prefixed("IBAN: ", r.company.IBAN),
		prefixed("BIC: ", r.company.BIC),
		prefixed("Steuernummer: ", r.company.TaxNumber))), "", 1, "C", false, 0, "")
	pdf.CellFormat(0, 4, fmt.Sprintf("Seite %d", pdf.PageNo()), "", 0, "C", false, 0, "")
	pdf.SetTextColor(0, 0, 0)
}

func (r *Renderer) output(pdf *fpdf.Fpdf) ([]byte, error) {
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func addressLines(c *models.Customer) []string {
	if c == nil {
		return nil
	}
	lines := []string{c.FullName()}
	if street := strings.TrimSpace(c.Street + " " + c.HouseNumber); street != "" {
		lines = append(lines, street)
	}
	if city := strings.TrimSpace(c.PostalCode + " " + c.City); city != "" {
		lines = append(lines, city)
	}
	if c.Country != "" && c.Country != "Deutschland" && c.Country != "DE" {
		lines = append(lines, c.Country)
	}
	return lines
}

func zppID(inv *models.Invoice) string {
	if !inv.IsPreventionCertified {
		return ""
	}
	return inv.ZPPPreventionID
}

// euro formats 1234.5 as "1.234,50 €"
func euro(d decimal.Decimal) string {
	s := d.Abs().StringFixed(2)
	whole, frac, _ := strings.Cut(s, ".")
	var grouped strings.Builder
	for i, c := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			grouped.WriteByte('.')
		}
		grouped.WriteRune(c)
	}
	sign := ""
	if d.IsNegative() {
		sign = "-"
	}
	return sign + grouped.String() + "," + frac + " €"
}

func prefixed(prefix, value string) string {
	if value == "" {
		return ""
	}
	return prefix + value
}

func joinNonEmpty(sep string, parts ...string) string {
	var out []string
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, sep)
}
