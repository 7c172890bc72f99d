package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-ticket-booking/internal/booking"
	"github.com/iliyamo/event-ticket-booking/internal/booking/bookingtest"
	"github.com/iliyamo/event-ticket-booking/internal/config"
	"github.com/iliyamo/event-ticket-booking/internal/handler"
	"github.com/iliyamo/event-ticket-booking/internal/model"
	"github.com/iliyamo/event-ticket-booking/internal/payment"
	"github.com/iliyamo/event-ticket-booking/internal/repository"
	"github.com/iliyamo/event-ticket-booking/internal/tickets"
	"github.com/iliyamo/event-ticket-booking/internal/utils"
)

type identity struct {
	uid  uint64
	role string
}

var (
	alice = identity{uid: 100, role: model.RoleUser}
	bob   = identity{uid: 200, role: model.RoleUser}
	admin = identity{uid: 1, role: model.RoleAdmin}
	anon  = identity{}
)

// call runs h behind a fake auth middleware that mimics JWTAuth.
func call(t *testing.T, h echo.HandlerFunc, method, route, target, body string, who identity) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	e.Add(method, route, h, func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if who.uid != 0 {
				c.Set("user_id", float64(who.uid))
				c.Set("role", who.role)
			}
			return next(c)
		}
	})
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m), rec.Body.String())
	return m
}

type fixture struct {
	store *bookingtest.Store
	svc   *booking.Service
	log   *logrus.Logger
	hook  *test.Hook
}

func newFixture() *fixture {
	log, hook := test.NewNullLogger()
	store := bookingtest.New()
	return &fixture{
		store: store,
		svc:   booking.NewService(store, booking.Options{Logger: log}),
		log:   log,
		hook:  hook,
	}
}

func (f *fixture) event(capacity int) model.Event {
	return f.store.AddEvent(model.Event{
		Title:            "Jazz Night",
		Location:         "Blue Hall",
		Date:             time.Date(2026, 6, 1, 20, 0, 0, 0, time.UTC),
		TicketPriceCents: 2500,
		Capacity:         capacity,
		Status:           model.EventUpcoming,
	})
}

func (f *fixture) book(t *testing.T, who identity, eventID uint64, qty int) model.Booking {
	t.Helper()
	res, err := f.svc.Book(context.Background(), booking.Caller{UserID: who.uid, Role: who.role},
		booking.BookRequest{EventID: eventID, Quantity: qty})
	require.NoError(t, err)
	return res.Booking
}

func (f *fixture) seatsLeft(t *testing.T, eventID uint64) int {
	t.Helper()
	ev, err := f.store.GetEvent(context.Background(), eventID)
	require.NoError(t, err)
	return ev.SeatsLeft
}

// ---- bookings ----

func TestBookingCreate(t *testing.T) {
	f := newFixture()
	ev := f.event(5)
	h := &handler.BookingHandler{Svc: f.svc, Log: f.log}

	body := `{"event_id":` + jsonID(ev.ID) + `,"ticket_quantity":2,"contact_info":{"email":"a@example.com"}}`
	rec := call(t, h.Create, http.MethodPost, "/v1/bookings", "/v1/bookings", body, alice)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	m := decode(t, rec)
	assert.EqualValues(t, 3, m["seats_left"])
	b := m["booking"].(map[string]any)
	assert.Equal(t, "pending", b["status"])
	assert.EqualValues(t, 5000, b["total_price_cents"])
	assert.Equal(t, 3, f.seatsLeft(t, ev.ID))
}

func TestBookingCreateErrors(t *testing.T) {
	f := newFixture()
	ev := f.event(2)
	closed := f.store.AddEvent(model.Event{Title: "Gone", Capacity: 5, Status: model.EventCompleted})
	f.book(t, bob, ev.ID, 1)
	h := &handler.BookingHandler{Svc: f.svc, Log: f.log}

	cases := []struct {
		name   string
		body   string
		who    identity
		status int
		code   string
	}{
		{"anonymous", `{"event_id":` + jsonID(ev.ID) + `,"ticket_quantity":1}`, anon, http.StatusUnauthorized, "AUTH_REQUIRED"},
		{"missing event id", `{"ticket_quantity":1}`, alice, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"quantity out of range", `{"event_id":` + jsonID(ev.ID) + `,"ticket_quantity":11}`, alice, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"unknown event", `{"event_id":999,"ticket_quantity":1}`, alice, http.StatusNotFound, "EVENT_NOT_FOUND"},
		{"not enough seats", `{"event_id":` + jsonID(ev.ID) + `,"ticket_quantity":2}`, alice, http.StatusConflict, "INSUFFICIENT_SEATS"},
		{"event closed", `{"event_id":` + jsonID(closed.ID) + `,"ticket_quantity":1}`, alice, http.StatusConflict, "EVENT_NOT_BOOKABLE"},
		{"duplicate", `{"event_id":` + jsonID(ev.ID) + `,"ticket_quantity":1}`, bob, http.StatusConflict, "DUPLICATE_BOOKING"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := call(t, h.Create, http.MethodPost, "/v1/bookings", "/v1/bookings", tc.body, tc.who)
			assert.Equal(t, tc.status, rec.Code, rec.Body.String())
			assert.Equal(t, tc.code, decode(t, rec)["code"])
		})
	}
	assert.Equal(t, 1, f.seatsLeft(t, ev.ID))
}

func TestValidationErrorNamesField(t *testing.T) {
	f := newFixture()
	ev := f.event(5)
	h := &handler.BookingHandler{Svc: f.svc, Log: f.log}

	body := `{"event_id":` + jsonID(ev.ID) + `,"ticket_quantity":1,"contact_info":{"email":"not-an-email"}}`
	rec := call(t, h.Create, http.MethodPost, "/v1/bookings", "/v1/bookings", body, alice)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "contact_info.email", decode(t, rec)["field"])
}

func TestBookingCancelAndDelete(t *testing.T) {
	f := newFixture()
	ev := f.event(5)
	b := f.book(t, alice, ev.ID, 3)
	h := &handler.BookingHandler{Svc: f.svc, Log: f.log}
	target := "/v1/bookings/" + jsonID(b.ID)

	rec := call(t, h.Cancel, http.MethodPut, "/v1/bookings/:id/cancel", target+"/cancel", "", bob)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = call(t, h.Cancel, http.MethodPut, "/v1/bookings/:id/cancel", target+"/cancel", "", alice)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 5, f.seatsLeft(t, ev.ID))

	rec = call(t, h.Cancel, http.MethodPut, "/v1/bookings/:id/cancel", target+"/cancel", "", alice)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "ALREADY_CANCELLED", decode(t, rec)["code"])

	rec = call(t, h.Delete, http.MethodPost, "/v1/bookings/:id/delete", target+"/delete", "", alice)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 5, f.seatsLeft(t, ev.ID))

	rec = call(t, h.Get, http.MethodGet, "/v1/bookings/:id", target, "", alice)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "BOOKING_NOT_FOUND", decode(t, rec)["code"])
}

func TestBookingDeleteConfirmedNeedsCancelFirst(t *testing.T) {
	f := newFixture()
	ev := f.event(5)
	b := f.book(t, alice, ev.ID, 1)
	_, err := f.svc.ConfirmPayment(context.Background(), booking.PaymentRef{BookingID: b.ID}, 0)
	require.NoError(t, err)
	h := &handler.BookingHandler{Svc: f.svc, Log: f.log}

	rec := call(t, h.Delete, http.MethodDelete, "/v1/bookings/:id", "/v1/bookings/"+jsonID(b.ID), "", alice)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "MUST_CANCEL_FIRST", decode(t, rec)["code"])
}

func TestBookingInvalidID(t *testing.T) {
	f := newFixture()
	h := &handler.BookingHandler{Svc: f.svc, Log: f.log}

	rec := call(t, h.Get, http.MethodGet, "/v1/bookings/:id", "/v1/bookings/abc", "", alice)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBookingMineOnlyListsCaller(t *testing.T) {
	f := newFixture()
	ev := f.event(10)
	f.book(t, alice, ev.ID, 1)
	f.book(t, bob, ev.ID, 2)
	h := &handler.BookingHandler{Svc: f.svc, Log: f.log}

	rec := call(t, h.Mine, http.MethodGet, "/v1/bookings/mine", "/v1/bookings/mine", "", alice)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, decode(t, rec)["count"])
}

func TestAdminEndpoints(t *testing.T) {
	f := newFixture()
	ev := f.event(10)
	b := f.book(t, alice, ev.ID, 2)
	f.book(t, bob, ev.ID, 1)
	h := &handler.BookingHandler{Svc: f.svc, Log: f.log}

	rec := call(t, h.AdminList, http.MethodGet, "/v1/admin/bookings", "/v1/admin/bookings?user_id=100", "", admin)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, decode(t, rec)["count"])

	rec = call(t, h.AdminList, http.MethodGet, "/v1/admin/bookings", "/v1/admin/bookings?status=bogus", "", admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = call(t, h.AdminStats, http.MethodGet, "/v1/admin/bookings/stats", "/v1/admin/bookings/stats", "", alice)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = call(t, h.AdminSetStatus, http.MethodPut, "/v1/admin/bookings/:id/status",
		"/v1/admin/bookings/"+jsonID(b.ID)+"/status", `{"status":"confirmed","payment_status":"paid"}`, admin)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	m := decode(t, rec)
	assert.Equal(t, "confirmed", m["status"])
	assert.Equal(t, "paid", m["payment_status"])
	// status overrides never move seats
	assert.Equal(t, 7, f.seatsLeft(t, ev.ID))

	rec = call(t, h.AdminSetStatus, http.MethodPut, "/v1/admin/bookings/:id/status",
		"/v1/admin/bookings/"+jsonID(b.ID)+"/status", `{"status":"done"}`, admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// ---- payments ----

type fakeGateway struct {
	session  payment.CheckoutSession
	err      error
	notice   *payment.Notification
	parseErr error
	got      payment.CheckoutRequest
}

func (g *fakeGateway) CreateCheckout(_ context.Context, req payment.CheckoutRequest) (payment.CheckoutSession, error) {
	g.got = req
	return g.session, g.err
}

func (g *fakeGateway) ParseWebhook([]byte, string) (*payment.Notification, error) {
	return g.notice, g.parseErr
}

func (g *fakeGateway) PublishableKey() string { return "pk_test_123" }

func TestCheckoutAttachesSession(t *testing.T) {
	f := newFixture()
	ev := f.event(5)
	b := f.book(t, alice, ev.ID, 2)
	gw := &fakeGateway{session: payment.CheckoutSession{ID: "cs_1", URL: "https://pay.example/cs_1"}}
	h := &handler.PaymentHandler{Svc: f.svc, Gateway: gw, Log: f.log}

	rec := call(t, h.Checkout, http.MethodPost, "/v1/payments/checkout", "/v1/payments/checkout",
		`{"booking_id":`+jsonID(b.ID)+`}`, alice)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "cs_1", decode(t, rec)["session_id"])
	assert.EqualValues(t, 2500, gw.got.UnitPriceCents)
	assert.Equal(t, 2, gw.got.Quantity)
	assert.Equal(t, "Jazz Night", gw.got.EventTitle)

	got, err := f.store.GetBooking(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, "cs_1", got.CheckoutSessionID)
}

func TestCheckoutErrors(t *testing.T) {
	f := newFixture()
	ev := f.event(5)
	b := f.book(t, alice, ev.ID, 1)

	disabled := &handler.PaymentHandler{Svc: f.svc, Gateway: &fakeGateway{err: payment.ErrDisabled}, Log: f.log}
	rec := call(t, disabled.Checkout, http.MethodPost, "/v1/payments/checkout", "/v1/payments/checkout",
		`{"booking_id":`+jsonID(b.ID)+`}`, alice)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	h := &handler.PaymentHandler{Svc: f.svc, Gateway: &fakeGateway{}, Log: f.log}
	rec = call(t, h.Checkout, http.MethodPost, "/v1/payments/checkout", "/v1/payments/checkout",
		`{"booking_id":`+jsonID(b.ID)+`}`, bob)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = call(t, h.Checkout, http.MethodPost, "/v1/payments/checkout", "/v1/payments/checkout", `{}`, alice)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebhookRejectsMalformedPayload(t *testing.T) {
	f := newFixture()
	gw := &fakeGateway{parseErr: payment.ErrMalformed}
	h := &handler.PaymentHandler{Svc: f.svc, Gateway: gw, Log: f.log}

	rec := call(t, h.Webhook, http.MethodPost, "/v1/payments/webhook", "/v1/payments/webhook", `{"x":1}`, anon)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_WEBHOOK", decode(t, rec)["code"])
}

func TestWebhookConfirmsOnce(t *testing.T) {
	f := newFixture()
	ev := f.event(5)
	b := f.book(t, alice, ev.ID, 2)
	_, err := f.svc.AttachCheckoutSession(context.Background(),
		booking.Caller{UserID: alice.uid, Role: alice.role}, b.ID, "cs_42")
	require.NoError(t, err)
	gw := &fakeGateway{notice: &payment.Notification{
		EventType: "checkout.session.completed", Completed: true, Paid: true,
		SessionID: "cs_42", BookingID: b.ID, Quantity: 2,
	}}
	h := &handler.PaymentHandler{Svc: f.svc, Gateway: gw, Log: f.log}

	for i := 0; i < 2; i++ {
		rec := call(t, h.Webhook, http.MethodPost, "/v1/payments/webhook", "/v1/payments/webhook", `{}`, anon)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, true, decode(t, rec)["received"])
	}

	got, err := f.store.GetBooking(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingConfirmed, got.Status)
	assert.Equal(t, model.PaymentPaid, got.PaymentStatus)
	assert.Equal(t, 3, f.seatsLeft(t, ev.ID))
}

func TestWebhookAcknowledgesFailedConfirmation(t *testing.T) {
	f := newFixture()
	gw := &fakeGateway{notice: &payment.Notification{Completed: true, Paid: true, SessionID: "cs_unknown"}}
	h := &handler.PaymentHandler{Svc: f.svc, Gateway: gw, Log: f.log}

	rec := call(t, h.Webhook, http.MethodPost, "/v1/payments/webhook", "/v1/payments/webhook", `{}`, anon)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestWebhookIgnoresUnpaidCompletion(t *testing.T) {
	f := newFixture()
	ev := f.event(5)
	b := f.book(t, alice, ev.ID, 1)
	gw := &fakeGateway{notice: &payment.Notification{Completed: true, Paid: false, BookingID: b.ID}}
	h := &handler.PaymentHandler{Svc: f.svc, Gateway: gw, Log: f.log}

	rec := call(t, h.Webhook, http.MethodPost, "/v1/payments/webhook", "/v1/payments/webhook", `{}`, anon)

	assert.Equal(t, http.StatusOK, rec.Code)
	got, err := f.store.GetBooking(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentPending, got.PaymentStatus)
}

func TestPublicKey(t *testing.T) {
	h := &handler.PaymentHandler{Gateway: &fakeGateway{}}
	rec := call(t, h.PublicKey, http.MethodGet, "/v1/payments/public-key", "/v1/payments/public-key", "", anon)
	assert.Equal(t, "pk_test_123", decode(t, rec)["publishable_key"])
}

// ---- tickets ----

type eventsByStore struct{ s *bookingtest.Store }

func (e eventsByStore) GetByID(ctx context.Context, id uint64) (model.Event, error) {
	return e.s.GetEvent(ctx, id)
}

type fakeUsers struct {
	users   map[uint64]model.User
	byEmail map[string]model.User
	created []string
	err     error
}

func (u *fakeUsers) Create(_ context.Context, username, email, password, role string, cost int) (uint64, error) {
	if u.err != nil {
		return 0, u.err
	}
	u.created = append(u.created, username+"|"+email+"|"+role)
	return uint64(len(u.created)), nil
}

func (u *fakeUsers) GetByEmail(_ context.Context, email string) (model.User, error) {
	if v, ok := u.byEmail[email]; ok {
		return v, nil
	}
	return model.User{}, repository.ErrNotFound
}

func (u *fakeUsers) GetByID(_ context.Context, id uint64) (model.User, error) {
	if v, ok := u.users[id]; ok {
		return v, nil
	}
	return model.User{}, repository.ErrNotFound
}

type fakeRenderer struct{ holder string }

func (r *fakeRenderer) Render(b model.Booking, ev model.Event, holder string) ([]byte, error) {
	r.holder = holder
	return []byte("%PDF-1.3 fake"), nil
}

func TestTicketDownload(t *testing.T) {
	f := newFixture()
	ev := f.event(5)
	b := f.book(t, alice, ev.ID, 1)
	r := &fakeRenderer{}
	h := &handler.TicketHandler{
		Svc:      f.svc,
		Events:   eventsByStore{f.store},
		Users:    &fakeUsers{users: map[uint64]model.User{alice.uid: {ID: alice.uid, Username: "alice"}}},
		Renderer: r,
		Log:      f.log,
	}
	target := "/v1/bookings/" + jsonID(b.ID) + "/ticket"

	rec := call(t, h.Download, http.MethodGet, "/v1/bookings/:id/ticket", target, "", alice)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "TICKET_UNAVAILABLE", decode(t, rec)["code"])

	_, err := f.svc.ConfirmPayment(context.Background(), booking.PaymentRef{BookingID: b.ID}, 0)
	require.NoError(t, err)

	rec = call(t, h.Download, http.MethodGet, "/v1/bookings/:id/ticket", target, "", alice)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/pdf", rec.Header().Get(echo.HeaderContentType))
	assert.Contains(t, rec.Header().Get(echo.HeaderContentDisposition), "ticket-"+jsonID(b.ID)+".pdf")
	assert.Equal(t, "alice", r.holder)

	f.store.RemoveEvent(ev.ID)
	rec = call(t, h.Download, http.MethodGet, "/v1/bookings/:id/ticket", target, "", alice)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "NO_ASSOCIATED_EVENT", decode(t, rec)["code"])
}

func TestTicketVerify(t *testing.T) {
	f := newFixture()
	ev := f.event(5)
	b := f.book(t, alice, ev.ID, 2)
	iss := tickets.NewIssuer("door-secret")
	h := &handler.TicketHandler{Svc: f.svc, Verifier: iss, Log: f.log}
	payload, err := json.Marshal(map[string]string{"payload": iss.Payload(b)})
	require.NoError(t, err)

	rec := call(t, h.Verify, http.MethodPost, "/v1/admin/tickets/verify", "/v1/admin/tickets/verify", string(payload), admin)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, false, decode(t, rec)["valid"])

	_, err = f.svc.ConfirmPayment(context.Background(), booking.PaymentRef{BookingID: b.ID}, 0)
	require.NoError(t, err)
	rec = call(t, h.Verify, http.MethodPost, "/v1/admin/tickets/verify", "/v1/admin/tickets/verify", string(payload), admin)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	m := decode(t, rec)
	assert.Equal(t, true, m["valid"])
	assert.EqualValues(t, 2, m["quantity"])

	forged, err := json.Marshal(map[string]string{"payload": tickets.NewIssuer("other").Payload(b)})
	require.NoError(t, err)
	rec = call(t, h.Verify, http.MethodPost, "/v1/admin/tickets/verify", "/v1/admin/tickets/verify", string(forged), admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_TICKET", decode(t, rec)["code"])
}

// ---- auth ----

func authConfig() config.Config {
	return config.Config{JWTSecret: "test-secret", AccessTTLMin: 15, BcryptCost: 4}
}

func TestRegister(t *testing.T) {
	users := &fakeUsers{}
	h := handler.NewAuthHandler(authConfig(), users, logrus.New())

	rec := call(t, h.Register, http.MethodPost, "/v1/auth/register", "/v1/auth/register",
		`{"username":"alice","email":" Alice@Example.com ","password":"secret1"}`, anon)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, []string{"alice|alice@example.com|user"}, users.created)
	access := decode(t, rec)["access"].(map[string]any)
	assert.NotEmpty(t, access["token"])
}

func TestRegisterValidation(t *testing.T) {
	h := handler.NewAuthHandler(authConfig(), &fakeUsers{}, logrus.New())
	for _, body := range []string{
		`{"username":"a","email":"a@example.com"}`,
		`{"username":"a","email":"nope","password":"secret1"}`,
		`{"username":"a","email":"a@example.com","password":"123"}`,
	} {
		rec := call(t, h.Register, http.MethodPost, "/v1/auth/register", "/v1/auth/register", body, anon)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}

	taken := handler.NewAuthHandler(authConfig(), &fakeUsers{err: repository.ErrEmailExists}, logrus.New())
	rec := call(t, taken.Register, http.MethodPost, "/v1/auth/register", "/v1/auth/register",
		`{"username":"a","email":"a@example.com","password":"secret1"}`, anon)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "EMAIL_EXISTS", decode(t, rec)["code"])
}

func TestLogin(t *testing.T) {
	hash, err := utils.HashPassword("secret1", 4)
	require.NoError(t, err)
	users := &fakeUsers{byEmail: map[string]model.User{
		"alice@example.com": {ID: 7, Username: "alice", Email: "alice@example.com", PasswordHash: hash, Role: model.RoleUser},
	}}
	h := handler.NewAuthHandler(authConfig(), users, logrus.New())

	rec := call(t, h.Login, http.MethodPost, "/v1/auth/login", "/v1/auth/login",
		`{"email":"alice@example.com","password":"secret1"}`, anon)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), hash)

	rec = call(t, h.Login, http.MethodPost, "/v1/auth/login", "/v1/auth/login",
		`{"email":"alice@example.com","password":"wrong"}`, anon)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = call(t, h.Login, http.MethodPost, "/v1/auth/login", "/v1/auth/login",
		`{"email":"nobody@example.com","password":"secret1"}`, anon)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "INVALID_CREDENTIALS", decode(t, rec)["code"])
}

// ---- events ----

type fakeEvents struct {
	created   []model.Event
	deleteErr error
}

func (s *fakeEvents) List(context.Context, repository.EventFilter) ([]model.Event, error) {
	return s.created, nil
}

func (s *fakeEvents) GetByID(_ context.Context, id uint64) (model.Event, error) {
	for _, ev := range s.created {
		if ev.ID == id {
			return ev, nil
		}
	}
	return model.Event{}, repository.ErrNotFound
}

func (s *fakeEvents) Create(_ context.Context, ev *model.Event) error {
	ev.ID = uint64(len(s.created) + 1)
	ev.SeatsLeft = ev.Capacity
	s.created = append(s.created, *ev)
	return nil
}

func (s *fakeEvents) Update(context.Context, uint64, repository.EventUpdate) (model.Event, error) {
	return model.Event{}, repository.ErrConflict
}

func (s *fakeEvents) Delete(context.Context, uint64) error { return s.deleteErr }

func (s *fakeEvents) Overview(context.Context) (repository.EventOverview, error) {
	return repository.EventOverview{}, nil
}

type recordingCache struct {
	invalidated []uint64
	purges      int
}

func (r *recordingCache) Invalidate(_ context.Context, id uint64) error {
	r.invalidated = append(r.invalidated, id)
	return nil
}

func (r *recordingCache) Purge(context.Context) error {
	r.purges++
	return errors.New("redis down")
}

func TestEventCreate(t *testing.T) {
	store := &fakeEvents{}
	rc := &recordingCache{}
	log, hook := test.NewNullLogger()
	h := &handler.EventHandler{Events: store, Cache: rc, Responses: rc, Log: log}

	rec := call(t, h.Create, http.MethodPost, "/v1/admin/events", "/v1/admin/events",
		`{"title":"Jazz","date":"2026-06-01T20:00:00Z","location":"Hall","capacity":50,"ticket_price_cents":1500}`, admin)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Len(t, store.created, 1)
	assert.Equal(t, 50, store.created[0].SeatsLeft)
	assert.Equal(t, admin.uid, store.created[0].CreatedBy)
	assert.Equal(t, []uint64{1}, rc.invalidated)
	assert.Equal(t, 1, rc.purges)
	// a failed purge is logged, not surfaced
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
}

func TestEventValidation(t *testing.T) {
	h := &handler.EventHandler{Events: &fakeEvents{}, Log: logrus.New()}
	for _, body := range []string{
		`{"date":"2026-06-01T20:00:00Z","location":"Hall","capacity":50,"ticket_price_cents":1}`,
		`{"title":"Jazz","date":"2026-06-01T20:00:00Z","location":"Hall","capacity":0,"ticket_price_cents":1}`,
		`{"title":"Jazz","date":"2026-06-01T20:00:00Z","location":"Hall","capacity":5,"ticket_price_cents":-1}`,
		`{"title":"Jazz","location":"Hall","capacity":5,"ticket_price_cents":1}`,
	} {
		rec := call(t, h.Create, http.MethodPost, "/v1/admin/events", "/v1/admin/events", body, admin)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
}

func TestEventUpdateAndDeleteConflicts(t *testing.T) {
	h := &handler.EventHandler{Events: &fakeEvents{deleteErr: repository.ErrConflict}, Log: logrus.New()}

	rec := call(t, h.Update, http.MethodPut, "/v1/admin/events/:id", "/v1/admin/events/1", `{"capacity":1}`, admin)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = call(t, h.Delete, http.MethodDelete, "/v1/admin/events/:id", "/v1/admin/events/1", "", admin)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "CONFLICT", decode(t, rec)["code"])
}

func TestEventGetAndAvailability(t *testing.T) {
	f := newFixture()
	ev := f.event(10)
	f.book(t, alice, ev.ID, 10)
	h := &handler.EventHandler{Events: &fakeEvents{}, Availability: f.svc, Log: f.log}

	rec := call(t, h.GetAvailability, http.MethodGet, "/v1/events/:id/availability",
		"/v1/events/"+jsonID(ev.ID)+"/availability", "", anon)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, string(model.SoldOut), decode(t, rec)["status"])

	rec = call(t, h.Get, http.MethodGet, "/v1/events/:id", "/v1/events/42", "", anon)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = call(t, h.List, http.MethodGet, "/v1/events", "/v1/events?from=yesterday", "", anon)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// ---- error mapping ----

func TestUnknownErrorsAreHidden(t *testing.T) {
	log, hook := test.NewNullLogger()
	h := &handler.EventHandler{Events: failingEvents{&fakeEvents{}}, Log: log}

	rec := call(t, h.Overview, http.MethodGet, "/v1/admin/events/overview", "/v1/admin/events/overview", "", admin)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "dial tcp")
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
}

type failingEvents struct{ *fakeEvents }

func (failingEvents) Overview(context.Context) (repository.EventOverview, error) {
	return repository.EventOverview{}, errors.New("dial tcp 10.0.0.1:3306: connect: connection refused")
}

func jsonID(id uint64) string {
	b, _ := json.Marshal(id)
	return string(b)
}
