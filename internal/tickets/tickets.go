// Package tickets renders printable PDF tickets for paid bookings.  Each
// ticket carries a QR code whose payload is signed, so a scanner holding the
// same secret can check it offline.
package tickets

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/phpdave11/gofpdf"
	"github.com/skip2/go-qrcode"

	"github.com/iliyamo/event-ticket-booking/internal/model"
)

var ticketNamespace = uuid.MustParse("5b0d7f0e-2c57-4d8e-9b6f-4f1b3cfa9a10")

// ErrBadSignature is returned by Verify for tampered or foreign payloads.
var ErrBadSignature = errors.New("ticket signature mismatch")

// Issuer signs and renders tickets.
type Issuer struct {
	secret []byte
}

// NewIssuer returns an Issuer signing with secret.
func NewIssuer(secret string) *Issuer { return &Issuer{secret: []byte(secret)} }

// Code is the stable ticket code of a booking.  Reprinting a ticket yields
// the same code.
func Code(b model.Booking) string {
	return uuid.NewSHA1(ticketNamespace, []byte(fmt.Sprintf("booking:%d:%d:%d", b.ID, b.UserID, b.EventID))).String()
}

// Payload returns eventID|bookingID|code|qty|signature.
func (i *Issuer) Payload(b model.Booking) string {
	data := fmt.Sprintf("%d|%d|%s|%d", b.EventID, b.ID, Code(b), b.TicketQuantity)
	return data + "|" + i.sign(data)
}

func (i *Issuer) sign(data string) string {
	h := hmac.New(sha256.New, i.secret)
	h.Write([]byte(data))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}

// Scan is the decoded content of a ticket QR code.
type Scan struct {
	EventID   uint64
	BookingID uint64
	Code      string
	Quantity  int
}

// Verify checks the signature of payload and decodes it.
func (i *Issuer) Verify(payload string) (Scan, error) {
	parts := strings.Split(payload, "|")
	if len(parts) != 5 {
		return Scan{}, fmt.Errorf("ticket payload has %d fields", len(parts))
	}
	data := strings.Join(parts[:4], "|")
	if !hmac.Equal([]byte(parts[4]), []byte(i.sign(data))) {
		return Scan{}, ErrBadSignature
	}
	var s Scan
	var err error
	if s.EventID, err = strconv.ParseUint(parts[0], 10, 64); err != nil {
		return Scan{}, fmt.Errorf("event id: %w", err)
	}
	if s.BookingID, err = strconv.ParseUint(parts[1], 10, 64); err != nil {
		return Scan{}, fmt.Errorf("booking id: %w", err)
	}
	s.Code = parts[2]
	if s.Quantity, err = strconv.Atoi(parts[3]); err != nil {
		return Scan{}, fmt.Errorf("quantity: %w", err)
	}
	return s, nil
}

// Render builds the PDF ticket for b at ev, issued to holder.
func (i *Issuer) Render(b model.Booking, ev model.Event, holder string) ([]byte, error) {
	png, err := qrcode.Encode(i.Payload(b), qrcode.Medium, 256)
	if err != nil {
		return nil, fmt.Errorf("qr encode: %w", err)
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(ev.Title, true)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Arial", "B", 18)
	pdf.Cell(0, 12, tr(ev.Title))
	pdf.Ln(14)

	pdf.SetFont("Arial", "", 12)
	rows := [][2]string{
		{"Date", ev.Date.UTC().Format("Mon, 02 Jan 2006 15:04 MST")},
		{"Location", ev.Location},
		{"Holder", holder},
		{"Tickets", strconv.Itoa(b.TicketQuantity)},
		{"Total", fmt.Sprintf("%d.%02d", b.TotalPriceCents/100, b.TotalPriceCents%100)},
		{"Booking", fmt.Sprintf("#%d", b.ID)},
		{"Code", Code(b)},
	}
	for _, r := range rows {
		pdf.SetFont("Arial", "B", 12)
		pdf.Cell(30, 8, r[0]+":")
		pdf.SetFont("Arial", "", 12)
		pdf.Cell(0, 8, tr(r[1]))
		pdf.Ln(8)
	}

	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("qr", opts, bytes.NewReader(png))
	pdf.ImageOptions("qr", 145, 30, 50, 50, false, opts, 0, "")

	pdf.SetY(-30)
	pdf.SetFont("Arial", "I", 9)
	pdf.Cell(0, 8, fmt.Sprintf("Issued %s. Present this code at the entrance.", time.Now().UTC().Format(time.RFC3339)))

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("pdf output: %w", err)
	}
	return buf.Bytes(), nil
}
