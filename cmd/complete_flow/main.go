package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jaegermarcel/bewegungsradius-crm/src/app"
	"github.com/jaegermarcel/bewegungsradius-crm/src/models"
	"github.com/jaegermarcel/bewegungsradius-crm/src/services"
	"github.com/jaegermarcel/bewegungsradius-crm/src/store/memory"
)

// This example walks one course through the back office on an in-memory store:
// 1. Plan a course and expand its schedule around Bavarian holidays
// 2. Enroll a participant (discount code + invoice)
// 3. Bill a workshop with VAT and swap discount codes
// 4. Pay and cancel the invoice, watching the accounting entries
// 5. Show the pending course emails and today's birthday mail

func main() {
	ctx := context.Background()

	settings := services.DefaultSettings()
	now := time.Date(2025, time.June, 2, 10, 0, 0, 0, settings.Location)
	settings.Now = func() time.Time { return now }

	store := memory.New()
	outbox := memory.NewOutbox()
	scheduler := memory.NewScheduler()
	studio, err := app.New(settings, store.Stores(), app.Infra{Mailer: outbox, Scheduler: scheduler})
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println("=== bewegungsradius - Complete Flow Example ===")
	fmt.Println()

	// Step 1: plan a course
	fmt.Println("Step 1: Planning a Course")
	fmt.Println("-------------------------")

	pilates := models.NewOffer(models.OfferTypeCourse, "Pilates Basics", decimal.NewFromInt(120))
	units, duration := 5, 60
	pilates.CourseUnits = &units
	pilates.CourseDuration = &duration
	must(store.CreateOffer(ctx, pilates))

	studioSued := &models.Location{ID: uuid.New(), Name: "Studio Süd", City: "München", MaxParticipants: 8}
	must(store.CreateLocation(ctx, studioSued))

	end := models.Date(2025, time.June, 30)
	course := models.NewCourseBuilder().
		WithOffer(pilates).
		WithDates(models.Date(2025, time.June, 2), &end).
		WithTimes("18:00", "19:00").
		WithLocation(studioSued).
		Build()
	must(studio.Courses.Save(ctx, course))

	schedule, err := studio.Courses.Schedule(ctx, course.ID)
	must(err)
	fmt.Printf("  ✓ %s, %s to %s\n", course.Title(), models.FormatDate(course.StartDate), models.FormatDate(end))
	for _, d := range schedule.Dates {
		fmt.Printf("    • %s\n", models.FormatDate(d))
	}
	for _, w := range schedule.Warnings {
		fmt.Printf("    ✗ %s skipped (%s)\n", models.FormatDate(w.Date), w.Name)
	}
	fmt.Printf("  Units: %d\n\n", schedule.Units)

	// Step 2: enroll a participant
	fmt.Println("Step 2: Enrolling a Participant")
	fmt.Println("-------------------------------")

	birthday := models.Date(1990, time.June, 2)
	anna := &models.Customer{
		ID:        uuid.New(),
		FirstName: "Anna",
		LastName:  "Müller",
		Email:     "anna@example.com",
		Birthday:  &birthday,
		IsActive:  true,
	}
	must(store.CreateCustomer(ctx, anna))

	enrollment, err := studio.Courses.AddParticipant(ctx, course.ID, anna.ID, models.ParticipantInPerson)
	must(err)
	fmt.Printf("  ✓ %s joined %s\n", anna.FullName(), course.Title())
	fmt.Printf("    Invoice %s: %s EUR (%s)\n", enrollment.Invoice.InvoiceNumber,
		enrollment.Invoice.TotalAmount().StringFixed(2), enrollment.Invoice.Notes)
	fmt.Printf("    Discount code %s: %s, valid %s to %s\n\n", enrollment.DiscountCode.Code,
		enrollment.DiscountCode.DisplayValue(),
		models.FormatDate(enrollment.DiscountCode.ValidFrom), models.FormatDate(enrollment.DiscountCode.ValidUntil))

	// Step 3: bill a workshop with VAT
	fmt.Println("Step 3: Billing a Workshop")
	fmt.Println("--------------------------")

	workshop := models.NewOffer(models.OfferTypeWorkshop, "Rückenfit Workshop", decimal.NewFromInt(100))
	must(store.CreateOffer(ctx, workshop))

	loyalty := &models.DiscountCode{
		CustomerID:    anna.ID,
		Code:          "TREUE10",
		DiscountType:  models.DiscountPercentage,
		DiscountValue: decimal.NewFromInt(10),
		Reason:        models.ReasonLoyalty,
		ValidFrom:     models.Date(2025, time.January, 1),
		ValidUntil:    models.Date(2025, time.December, 31),
		Status:        models.DiscountStatusSent,
	}
	must(studio.Discounts.Create(ctx, loyalty))
	voucher := &models.DiscountCode{
		CustomerID:    anna.ID,
		Code:          "GUTSCHEIN5",
		DiscountType:  models.DiscountFixed,
		DiscountValue: decimal.NewFromInt(5),
		Reason:        models.ReasonLoyalty,
		ValidFrom:     models.Date(2025, time.January, 1),
		ValidUntil:    models.Date(2025, time.December, 31),
		Status:        models.DiscountStatusSent,
	}
	must(studio.Discounts.Create(ctx, voucher))

	inv := models.NewInvoiceBuilder().
		ForCustomer(anna.ID).
		ForOffer(workshop).
		WithTax(decimal.NewFromInt(19), false).
		Build()
	inv.DiscountCodeID = &loyalty.ID
	must(studio.Invoices.Save(ctx, inv))
	printInvoice(inv)

	inv.DiscountCodeID = &voucher.ID
	must(studio.Invoices.Save(ctx, inv))
	printInvoice(inv)

	_, released, err := studio.Discounts.Validate(ctx, loyalty.Code)
	must(err)
	fmt.Printf("    %s after the swap: %s\n\n", loyalty.Code, released.Message)

	// Step 4: pay and cancel
	fmt.Println("Step 4: Paying and Cancelling")
	fmt.Println("-----------------------------")

	_, err = studio.Invoices.UpdateStatus(ctx, inv.ID, models.InvoiceStatusPaid)
	must(err)
	fmt.Printf("  ✓ %s marked %s\n", inv.InvoiceNumber, models.InvoiceStatusLabels[models.InvoiceStatusPaid])
	printReport(ctx, studio)

	cancelled, err := studio.Invoices.Cancel(ctx, inv.ID, "")
	must(err)
	fmt.Printf("  ✓ %s marked %s at %s\n", cancelled.InvoiceNumber,
		models.InvoiceStatusLabels[cancelled.Status], cancelled.CancelledAt.Format("02.01.2006 15:04"))
	printReport(ctx, studio)
	fmt.Println()

	// Step 5: notifications
	fmt.Println("Step 5: Notifications")
	fmt.Println("=====================")

	for _, job := range scheduler.Pending() {
		fmt.Printf("  • %s at %s\n", job.ID, job.RunAt.Format("02.01.2006 15:04"))
	}

	result, err := studio.Birthdays.SendToday(ctx)
	must(err)
	fmt.Printf("  Birthday mails sent: %d, errors: %d\n", result.Sent, result.Errors)
	for _, msg := range outbox.Messages() {
		fmt.Printf("    → %s: %s\n", msg.To, msg.Subject)
	}

	fmt.Println()
	fmt.Println("=== Example Complete ===")
}

func printInvoice(inv *models.Invoice) {
	fmt.Printf("  ✓ Invoice %s: original %s, discount %s (%s), net %s, VAT %s, total %s\n",
		inv.InvoiceNumber,
		inv.OriginalAmount.StringFixed(2),
		inv.DiscountAmount.StringFixed(2),
		inv.DiscountCode.DisplayValue(),
		inv.Amount.StringFixed(2),
		inv.TaxAmount().StringFixed(2),
		inv.TotalAmount().StringFixed(2))
}

func printReport(ctx context.Context, studio *app.App) {
	report, err := studio.Accounting.Report(ctx, models.Date(2025, time.January, 1), models.Date(2025, time.December, 31))
	must(err)
	fmt.Printf("    Income: %s EUR, Expenses: %s EUR, Balance: %s EUR (%d entries)\n",
		report.IncomeTotal.StringFixed(2), report.ExpenseTotal.StringFixed(2),
		report.Balance.StringFixed(2), report.TotalEntries)
}

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}
