package queue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/wneessen/go-mail"
	"golang.org/x/time/rate"

	"github.com/jaegermarcel/bewegungsradius-crm/src/metrics"
	"github.com/jaegermarcel/bewegungsradius-crm/src/services"
)

// Sender delivers a mail to the outside world
type Sender interface {
	Deliver(ctx context.Context, msg services.EmailMessage) error
}

// SMTPSender delivers through an SMTP relay
type SMTPSender struct {
	From string

	send func(ctx context.Context, m *mail.Msg) error
}

// NewSMTPSender uses PLAIN auth when user is set and STARTTLS when offered
func NewSMTPSender(host string, port int, user, password, from string) (*SMTPSender, error) {
	opts := []mail.Option{
		mail.WithPort(port),
		mail.WithTLSPortPolicy(mail.TLSOpportunistic),
		mail.WithTimeout(30 * time.Second),
	}
	if user != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(user),
			mail.WithPassword(password),
		)
	}
	client, err := mail.NewClient(host, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create smtp client: %w", err)
	}
	return &SMTPSender{
		From: from,
		send: func(ctx context.Context, m *mail.Msg) error {
			return client.DialAndSendWithContext(ctx, m)
		},
	}, nil
}

func (s *SMTPSender) Deliver(ctx context.Context, msg services.EmailMessage) error {
	m, err := buildMessage(s.From, msg)
	if err != nil {
		return err
	}
	return s.send(ctx, m)
}

func buildMessage(from string, msg services.EmailMessage) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.From(from); err != nil {
		return nil, fmt.Errorf("invalid sender %q: %w", from, err)
	}
	if err := m.AddToFormat(msg.ToName, msg.To); err != nil {
		return nil, fmt.Errorf("invalid recipient %q: %w", msg.To, err)
	}
	m.Subject(msg.Subject)
	m.SetDate()
	m.SetMessageID()
	m.SetBodyString(mail.TypeTextPlain, msg.Body)
	for _, a := range msg.Attachments {
		m.AttachReadSeeker(a.Filename, bytes.NewReader(a.Data),
			mail.WithFileContentType(mail.ContentType(a.ContentType)))
	}
	return m, nil
}

// Worker consumes email jobs and delivers them at a bounded rate
type Worker struct {
	ch      Channel
	queue   string
	sender  Sender
	limiter *rate.Limiter
}

// NewWorker delivers at most perSecond mails per second with the given burst
func NewWorker(ch Channel, queue string, sender Sender, perSecond float64, burst int) *Worker {
	if burst < 1 {
		burst = 1
	}
	return &Worker{
		ch:      ch,
		queue:   queue,
		sender:  sender,
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
	}
}

// Run consumes until ctx is cancelled or the channel closes
func (w *Worker) Run(ctx context.Context) error {
	if err := w.ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("failed to set prefetch: %w", err)
	}
	deliveries, err := w.ch.Consume(
		w.queue,
		"email-worker",
		false, // manual ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to consume %s: %w", w.queue, err)
	}

	log.Printf("email worker consuming %s", w.queue)
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return nil
			}
			w.handle(ctx, d)
		}
	}
}

func (w *Worker) handle(ctx context.Context, d amqp.Delivery) {
	var msg services.EmailMessage
	if err := json.Unmarshal(d.Body, &msg); err != nil {
		log.Printf("rejecting undecodable email job: %v", err)
		if err := d.Reject(false); err != nil {
			log.Printf("failed to reject email job %d: %v", d.DeliveryTag, err)
		}
		return
	}

	if err := w.limiter.Wait(ctx); err != nil {
		if err := d.Nack(false, true); err != nil {
			log.Printf("failed to requeue email job %s: %v", msg.ID, err)
		}
		return
	}

	err := w.sender.Deliver(ctx, msg)
	metrics.RecordDelivery(string(msg.Kind), err)
	if err != nil {
		// redelivered once, then dropped
		log.Printf("delivery of %s mail to %s failed: %v", msg.Kind, msg.To, err)
		if err := d.Nack(false, !d.Redelivered); err != nil {
			log.Printf("failed to nack email job %s: %v", msg.ID, err)
		}
		return
	}
	if err := d.Ack(false); err != nil {
		log.Printf("failed to ack email job %s: %v", msg.ID, err)
	}
}
