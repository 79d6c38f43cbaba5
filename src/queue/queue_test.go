package queue

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wneessen/go-mail"

	"github.com/jaegermarcel/bewegungsradius-crm/src/services"
)

type fakeChannel struct {
	declared   []string
	published  []amqp.Publishing
	keys       []string
	deliveries chan amqp.Delivery
}

func (c *fakeChannel) QueueDeclare(name string, _, _, _, _ bool, _ amqp.Table) (amqp.Queue, error) {
	c.declared = append(c.declared, name)
	return amqp.Queue{Name: name}, nil
}

func (c *fakeChannel) PublishWithContext(_ context.Context, _, key string, _, _ bool, msg amqp.Publishing) error {
	c.keys = append(c.keys, key)
	c.published = append(c.published, msg)
	return nil
}

func (c *fakeChannel) Consume(string, string, bool, bool, bool, bool, amqp.Table) (<-chan amqp.Delivery, error) {
	return c.deliveries, nil
}

func (c *fakeChannel) Qos(int, int, bool) error { return nil }

func (c *fakeChannel) Close() error { return nil }

// acks records what happened to each delivery tag
type acks struct {
	mu       sync.Mutex
	acked    []uint64
	nacked   map[uint64]bool // tag -> requeue
	rejected []uint64
}

func (a *acks) Ack(tag uint64, _ bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acked = append(a.acked, tag)
	return nil
}

func (a *acks) Nack(tag uint64, _ bool, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nacked[tag] = requeue
	return nil
}

func (a *acks) Reject(tag uint64, _ bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rejected = append(a.rejected, tag)
	return nil
}

type fakeSender struct {
	mu        sync.Mutex
	delivered []services.EmailMessage
	failFor   string
}

func (s *fakeSender) Deliver(_ context.Context, msg services.EmailMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if msg.To == s.failFor {
		return errors.New("mailbox unavailable")
	}
	s.delivered = append(s.delivered, msg)
	return nil
}

func message(to string) services.EmailMessage {
	return services.EmailMessage{
		ID:      uuid.New(),
		Kind:    services.EmailInvoice,
		To:      to,
		ToName:  "Anna Müller",
		Subject: "Rechnung 2025-001",
		Body:    "Hallo Anna,\nanbei deine Rechnung.",
	}
}

func TestPublisherSend(t *testing.T) {
	ch := &fakeChannel{}
	require.NoError(t, DeclareQueue(ch, "studio.emails"))

	msg := message("anna@example.com")
	require.NoError(t, NewPublisher(ch, "studio.emails").Send(context.Background(), msg))

	assert.Equal(t, []string{"studio.emails"}, ch.declared)
	require.Len(t, ch.published, 1)
	assert.Equal(t, "studio.emails", ch.keys[0])
	assert.Equal(t, amqp.Persistent, ch.published[0].DeliveryMode)
	assert.Equal(t, "invoice", ch.published[0].Type)

	var decoded services.EmailMessage
	require.NoError(t, json.Unmarshal(ch.published[0].Body, &decoded))
	assert.Equal(t, msg, decoded)
}

func TestWorkerDelivers(t *testing.T) {
	ack := &acks{nacked: map[uint64]bool{}}
	ch := &fakeChannel{deliveries: make(chan amqp.Delivery, 4)}

	body := func(m services.EmailMessage) []byte {
		b, _ := json.Marshal(m)
		return b
	}
	ch.deliveries <- amqp.Delivery{Acknowledger: ack, DeliveryTag: 1, Body: body(message("anna@example.com"))}
	ch.deliveries <- amqp.Delivery{Acknowledger: ack, DeliveryTag: 2, Body: []byte("{broken")}
	ch.deliveries <- amqp.Delivery{Acknowledger: ack, DeliveryTag: 3, Body: body(message("bert@example.com"))}
	ch.deliveries <- amqp.Delivery{Acknowledger: ack, DeliveryTag: 4, Body: body(message("bert@example.com")), Redelivered: true}
	close(ch.deliveries)

	sender := &fakeSender{failFor: "bert@example.com"}
	w := NewWorker(ch, "studio.emails", sender, 1000, 10)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, w.Run(ctx))

	require.Len(t, sender.delivered, 1)
	assert.Equal(t, "anna@example.com", sender.delivered[0].To)
	assert.Equal(t, []uint64{1}, ack.acked)
	assert.Equal(t, []uint64{2}, ack.rejected)
	assert.Equal(t, map[uint64]bool{3: true, 4: false}, ack.nacked)
}

func TestWorkerLogsFailedAcknowledgements(t *testing.T) {
	var logs bytes.Buffer
	log.SetOutput(&logs)
	defer log.SetOutput(os.Stderr)

	ack := failingAcks{}
	ch := &fakeChannel{deliveries: make(chan amqp.Delivery, 2)}
	failed, _ := json.Marshal(message("bert@example.com"))
	ch.deliveries <- amqp.Delivery{Acknowledger: ack, DeliveryTag: 7, Body: []byte("{broken")}
	ch.deliveries <- amqp.Delivery{Acknowledger: ack, DeliveryTag: 8, Body: failed}
	close(ch.deliveries)

	w := NewWorker(ch, "studio.emails", &fakeSender{failFor: "bert@example.com"}, 1000, 10)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, w.Run(ctx))

	assert.Contains(t, logs.String(), "failed to reject email job 7: channel closed")
	assert.Contains(t, logs.String(), "failed to nack email job")
}

type failingAcks struct{}

func (failingAcks) Ack(uint64, bool) error        { return errors.New("channel closed") }
func (failingAcks) Nack(uint64, bool, bool) error { return errors.New("channel closed") }
func (failingAcks) Reject(uint64, bool) error     { return errors.New("channel closed") }

func TestSMTPSenderBuildsMessage(t *testing.T) {
	s, err := NewSMTPSender("mail.example.com", 587, "user", "secret", "info@bewegungsradius.de")
	require.NoError(t, err)

	var sent *mail.Msg
	s.send = func(_ context.Context, m *mail.Msg) error {
		sent = m
		return nil
	}

	msg := message("anna@example.com")
	msg.Attachments = []services.Attachment{{
		Filename:    "Rechnung_2025-001.pdf",
		ContentType: "application/pdf",
		Data:        []byte("%PDF-1.3 test"),
	}}
	require.NoError(t, s.Deliver(context.Background(), msg))
	require.NotNil(t, sent)

	var raw bytes.Buffer
	_, err = sent.WriteTo(&raw)
	require.NoError(t, err)
	out := raw.String()

	assert.Contains(t, out, "Subject: Rechnung 2025-001")
	assert.Contains(t, out, "anna@example.com")
	assert.Contains(t, out, "Date: ")
	assert.Contains(t, out, "Message-ID: <")
	assert.Contains(t, out, "Rechnung_2025-001.pdf")
	assert.Contains(t, out, "application/pdf")
	assert.Equal(t, []string{"anna@example.com"}, recipients(t, sent))
}

func TestSMTPSenderRejectsHeaderInjection(t *testing.T) {
	s, err := NewSMTPSender("mail.example.com", 587, "", "", "info@bewegungsradius.de")
	require.NoError(t, err)
	calls := 0
	s.send = func(context.Context, *mail.Msg) error {
		calls++
		return nil
	}

	msg := message("anna@example.com\r\nBcc: evil@example.com")
	assert.Error(t, s.Deliver(context.Background(), msg))
	assert.Zero(t, calls)

	msg = message("anna@example.com")
	msg.ToName = "Anna\r\nBcc: evil@example.com"
	assert.Error(t, s.Deliver(context.Background(), msg))
	assert.Zero(t, calls)
}

func recipients(t *testing.T, m *mail.Msg) []string {
	t.Helper()
	rcpts, err := m.GetRecipients()
	require.NoError(t, err)
	return rcpts
}
