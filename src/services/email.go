package services

import (
	"bytes"
	"context"
	"fmt"
	"text/template"

	"github.com/google/uuid"
)

// EmailKind tags a message for metrics and queue routing
type EmailKind string

const (
	EmailCourseStart      EmailKind = "course_start"
	EmailCourseCompletion EmailKind = "course_completion"
	EmailDiscountCode     EmailKind = "discount_code"
	EmailBirthday         EmailKind = "birthday"
	EmailInvoice          EmailKind = "invoice"
)

// Attachment is a file sent along with a mail; Data travels base64 in JSON
type Attachment struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Data        []byte `json:"data"`
}

// EmailMessage is a rendered mail ready for delivery
type EmailMessage struct {
	ID          uuid.UUID    `json:"id"`
	Kind        EmailKind    `json:"kind"`
	To          string       `json:"to"`
	ToName      string       `json:"to_name"`
	Subject     string       `json:"subject"`
	Body        string       `json:"body"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// Mailer hands a message to the delivery pipeline
type Mailer interface {
	Send(ctx context.Context, msg EmailMessage) error
}

var emailTemplates = template.Must(template.New("emails").Parse(`
{{define "course_start"}}Hallo {{.FirstName}},

in zwei Tagen geht es los: {{.Title}} startet am {{.StartDate}}{{if .StartTime}} um {{.StartTime}} Uhr{{end}}.
{{if .Location}}Ort: {{.Location}}
{{end}}
Wir freuen uns auf dich!
{{.Company}}
{{end}}

{{define "course_completion"}}Hallo {{.FirstName}},

herzlichen Glückwunsch, du hast {{.Title}} abgeschlossen!
Danke, dass du dabei warst.

{{.Company}}
{{end}}

{{define "discount_code"}}Hallo {{.FirstName}},

als Dankeschön für deine Teilnahme an {{.Title}} schenken wir dir {{.Value}} Rabatt auf deinen nächsten Kurs.

Dein Code: {{.Code}}
Gültig bis: {{.ValidUntil}}

{{.Company}}
{{end}}

{{define "birthday"}}Hallo {{.FirstName}},

alles Gute zu deinem {{.Age}}. Geburtstag! Wir wünschen dir ein bewegtes neues Lebensjahr.

{{.Company}}
{{end}}

{{define "invoice"}}Hallo {{.FirstName}},

anbei deine Rechnung {{.Number}} für {{.Title}}.

Rechnungsbetrag: {{.Total}} €
Zahlbar bis: {{.DueDate}}

{{.Company}}
{{end}}
`))

func renderEmail(kind EmailKind, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := emailTemplates.ExecuteTemplate(&buf, string(kind), data); err != nil {
		return "", fmt.Errorf("failed to render %s email: %w", kind, err)
	}
	return buf.String(), nil
}
