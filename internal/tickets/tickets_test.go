package tickets

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-ticket-booking/internal/model"
)

var paid = model.Booking{ID: 12, UserID: 3, EventID: 8, TicketQuantity: 2, TotalPriceCents: 5050,
	Status: model.BookingConfirmed, PaymentStatus: model.PaymentPaid}

func TestCodeIsStable(t *testing.T) {
	assert.Equal(t, Code(paid), Code(paid))

	other := paid
	other.ID = 13
	assert.NotEqual(t, Code(paid), Code(other))
}

func TestPayloadRoundTrip(t *testing.T) {
	iss := NewIssuer("s3cret")

	scan, err := iss.Verify(iss.Payload(paid))
	require.NoError(t, err)
	assert.Equal(t, Scan{EventID: 8, BookingID: 12, Code: Code(paid), Quantity: 2}, scan)
}

func TestVerifyRejectsTampering(t *testing.T) {
	iss := NewIssuer("s3cret")
	p := iss.Payload(paid)

	_, err := iss.Verify(strings.Replace(p, "|2|", "|9|", 1))
	assert.ErrorIs(t, err, ErrBadSignature)

	_, err = NewIssuer("other").Verify(p)
	assert.ErrorIs(t, err, ErrBadSignature)

	_, err = iss.Verify("8|12")
	assert.Error(t, err)
}

func TestRenderProducesPDF(t *testing.T) {
	iss := NewIssuer("s3cret")
	ev := model.Event{ID: 8, Title: "Café Sessions", Location: "Main Hall",
		Date: time.Date(2026, 6, 1, 19, 30, 0, 0, time.UTC)}

	out, err := iss.Render(paid, ev, "carol")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
	assert.Greater(t, len(out), 1000)
}
