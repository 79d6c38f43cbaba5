package services_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaegermarcel/bewegungsradius-crm/src/models"
)

func TestSendBirthdayEmails(t *testing.T) {
	h := newHarness(t)

	birthday := models.Date(1990, time.June, 2)
	other := models.Date(1990, time.June, 3)

	anna := h.customer(t, "Anna", "Alt")
	anna.Birthday = &birthday
	bert := h.customer(t, "Bert", "Bunt")
	bert.Birthday = &birthday
	bert.Email = ""
	clara := h.customer(t, "Clara", "Cool")
	clara.Birthday = &other
	dora := h.customer(t, "Dora", "Dunkel")
	dora.Birthday = &birthday
	dora.IsActive = false
	for _, c := range []*models.Customer{anna, bert, clara, dora} {
		require.NoError(t, h.store.UpdateCustomer(h.ctx, c))
	}

	result, err := h.birthdays.SendToday(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Sent)
	assert.Equal(t, 1, result.Errors)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, "Bert Bunt", result.Failed[0].Name)

	messages := h.outbox.Messages()
	require.Len(t, messages, 1)
	assert.Equal(t, "🎉 Alles Gute zum Geburtstag, Anna!", messages[0].Subject)
	assert.Contains(t, messages[0].Body, "35. Geburtstag")
}
