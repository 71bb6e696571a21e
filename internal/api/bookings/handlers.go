// internal/api/bookings/handlers.go
package bookings

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/codr1/Picklepoint/internal/api/apiutil"
	"github.com/codr1/Picklepoint/internal/availability"
	"github.com/codr1/Picklepoint/internal/booking"
	"github.com/codr1/Picklepoint/internal/email"
	"github.com/codr1/Picklepoint/internal/models"
	"github.com/codr1/Picklepoint/internal/pricing"
	"github.com/codr1/Picklepoint/internal/ratelimit"
	"github.com/codr1/Picklepoint/internal/slots"
)

const (
	bookingRequestTimeout = 10 * time.Second
	defaultCalendarDays   = 7
	defaultMaxDays        = 62
	defaultListLimit      = 100
	maxListLimit          = 500
)

// CourtLister lists courts for the court index.
type CourtLister interface {
	ListCourts(ctx context.Context, activeOnly bool) ([]models.Court, error)
}

// BookingSearcher backs the staff booking list.
type BookingSearcher interface {
	SearchBookings(ctx context.Context, filter models.BookingFilter) ([]models.Booking, error)
}

type Config struct {
	Service  *booking.Service
	Courts   CourtLister
	Bookings BookingSearcher
	// Limiter is optional; nil disables throttling.
	Limiter    *ratelimit.Limiter
	TrustProxy bool
	VenueName  string
	Location   *time.Location
	// CalendarMaxDays caps the days parameter of the calendar route.
	CalendarMaxDays int
}

// Handlers serves the court and booking JSON API.
type Handlers struct {
	service    *booking.Service
	courts     CourtLister
	bookings   BookingSearcher
	limiter    *ratelimit.Limiter
	trustProxy bool
	venueName  string
	loc        *time.Location
	maxDays    int
}

func New(cfg Config) *Handlers {
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	maxDays := cfg.CalendarMaxDays
	if maxDays <= 0 {
		maxDays = defaultMaxDays
	}
	return &Handlers{
		service:    cfg.Service,
		courts:     cfg.Courts,
		bookings:   cfg.Bookings,
		limiter:    cfg.Limiter,
		trustProxy: cfg.TrustProxy,
		venueName:  cfg.VenueName,
		loc:        loc,
		maxDays:    maxDays,
	}
}

// Register mounts every route on mux.
func (h *Handlers) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/courts", h.HandleCourtsList)
	mux.HandleFunc("GET /api/v1/courts/{id}/availability", h.HandleAvailability)
	mux.HandleFunc("GET /api/v1/courts/{id}/calendar", h.HandleCalendar)
	mux.HandleFunc("POST /api/v1/courts/{id}/quote", h.HandleQuote)
	mux.HandleFunc("POST /api/v1/bookings", h.HandleBookingCreate)
	if h.bookings != nil {
		mux.Handle("GET /api/v1/bookings", h.throttled(h.HandleBookingsList))
	}
	mux.HandleFunc("GET /api/v1/bookings/{id}", h.HandleBookingGet)
	mux.Handle("POST /api/v1/bookings/{id}/reschedule", h.throttled(h.HandleReschedule))
	mux.Handle("POST /api/v1/bookings/{id}/cancel", h.throttled(h.HandleCancel))
	mux.Handle("PUT /api/v1/bookings/{id}/payment-proof", h.throttled(h.HandlePaymentProof))
}

func (h *Handlers) throttled(next http.HandlerFunc) http.Handler {
	if h.limiter == nil {
		return next
	}
	return h.limiter.Middleware(h.trustProxy, next)
}

// GET /api/v1/courts
func (h *Handlers) HandleCourtsList(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), bookingRequestTimeout)
	defer cancel()

	courts, err := h.courts.ListCourts(ctx, true)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, courts)
}

// SlotView is one cell of the booking grid.
type SlotView struct {
	Slot        slots.Slot `json:"slot"`
	Label       string     `json:"label"`
	PriceCents  int64      `json:"priceCents"`
	Blocked     bool       `json:"blocked"`
	Section     string     `json:"section"`
	EndsNextDay bool       `json:"endsNextDay,omitempty"`
}

type SectionView struct {
	Title string `json:"title"`
	Note  string `json:"note,omitempty"`
}

type AvailabilityResponse struct {
	CourtID  int64         `json:"courtId"`
	Date     string        `json:"date"`
	Slots    []SlotView    `json:"slots"`
	Sections []SectionView `json:"sections"`
}

// GET /api/v1/courts/{id}/availability?date=YYYY-MM-DD
func (h *Handlers) HandleAvailability(w http.ResponseWriter, r *http.Request) {
	courtID, err := apiutil.PathID(r, "id")
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	date, err := apiutil.ParseDate(r.URL.Query().Get("date"), "date", h.loc)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), bookingRequestTimeout)
	defer cancel()

	avail, err := h.service.Availability(ctx, courtID, date)
	if err != nil {
		apiutil.WriteError(w, r, classify(err))
		return
	}

	resp := AvailabilityResponse{
		CourtID: courtID,
		Date:    avail.Date.Format(models.DateLayout),
		Slots:   make([]SlotView, 0, slots.PerDay),
	}
	for _, slot := range slots.All() {
		resp.Slots = append(resp.Slots, SlotView{
			Slot:        slot,
			Label:       slot.Label(),
			PriceCents:  pricing.ResolveUnitPrice(slot.Hour(), avail.Court),
			Blocked:     avail.Blocked.Has(slot),
			Section:     slots.SectionOf(slot).Title,
			EndsNextDay: slot.EndsNextDay(),
		})
	}
	for _, section := range slots.Sections() {
		resp.Sections = append(resp.Sections, SectionView{Title: section.Title, Note: section.Note})
	}
	h.respond(w, r, http.StatusOK, resp)
}

type CalendarResponse struct {
	CourtID         int64                      `json:"courtId"`
	Dates           []availability.DateSummary `json:"dates"`
	FullyBooked     []string                   `json:"fullyBooked"`
	PartiallyBooked []string                   `json:"partiallyBooked"`
}

// GET /api/v1/courts/{id}/calendar?from=YYYY-MM-DD&days=N
func (h *Handlers) HandleCalendar(w http.ResponseWriter, r *http.Request) {
	courtID, err := apiutil.PathID(r, "id")
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	query := r.URL.Query()
	from := models.DateOnly(h.service.Now().In(h.loc))
	if query.Get("from") != "" {
		if from, err = apiutil.ParseDate(query.Get("from"), "from", h.loc); err != nil {
			apiutil.WriteError(w, r, err)
			return
		}
	}
	days, err := apiutil.ParseBoundedInt(query.Get("days"), "days", defaultCalendarDays, 1, h.maxDays)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), bookingRequestTimeout)
	defer cancel()

	summaries, err := h.service.Calendar(ctx, courtID, from, days)
	if err != nil {
		apiutil.WriteError(w, r, classify(err))
		return
	}
	h.respond(w, r, http.StatusOK, CalendarResponse{
		CourtID:         courtID,
		Dates:           summaries,
		FullyBooked:     availability.FullyBookedDates(summaries),
		PartiallyBooked: availability.PartiallyBookedDates(summaries),
	})
}

type QuoteRequest struct {
	Date  string       `json:"date"`
	Slots []slots.Slot `json:"slots"`
}

type QuoteResponse struct {
	booking.ValidatedSelection
	StartTime   string `json:"startTime"`
	EndTime     string `json:"endTime"`
	EndsNextDay bool   `json:"endsNextDay"`
}

// POST /api/v1/courts/{id}/quote
func (h *Handlers) HandleQuote(w http.ResponseWriter, r *http.Request) {
	courtID, err := apiutil.PathID(r, "id")
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	var req QuoteRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, r, badRequest(err))
		return
	}
	date, err := apiutil.ParseDate(req.Date, "date", h.loc)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), bookingRequestTimeout)
	defer cancel()

	selection, err := h.service.Quote(ctx, courtID, date, req.Slots)
	if err != nil {
		apiutil.WriteError(w, r, classify(err))
		return
	}
	start, end := selection.StartHour(), selection.EndHour()
	h.respond(w, r, http.StatusOK, QuoteResponse{
		ValidatedSelection: selection,
		StartTime:          slots.FormatBound(start),
		EndTime:            slots.FormatBound(end),
		EndsNextDay:        end == slots.PerDay,
	})
}

type CreateBookingRequest struct {
	CourtID         int64           `json:"courtId"`
	Date            string          `json:"date"`
	Slots           []slots.Slot    `json:"slots"`
	Customer        models.Customer `json:"customer"`
	Notes           string          `json:"notes"`
	PaymentProofURL string          `json:"paymentProofUrl"`
}

// POST /api/v1/bookings
func (h *Handlers) HandleBookingCreate(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	var req CreateBookingRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, r, badRequest(err))
		return
	}
	if req.CourtID <= 0 {
		apiutil.WriteError(w, r, apiutil.FieldError{Field: "courtId", Reason: "must be greater than 0"})
		return
	}
	date, err := apiutil.ParseDate(req.Date, "date", h.loc)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	ip := ratelimit.GetClientIP(r, h.trustProxy)
	if h.limiter != nil {
		if result := h.limiter.CheckReservation(req.Customer.Phone, ip); !result.Allowed {
			ratelimit.LogRateLimitExceeded(r.Context(), req.Customer.Phone, ip, result.Reason)
			w.Header().Set("Retry-After", ratelimit.RetryAfterSeconds(result.RetryAfter))
			apiutil.WriteError(w, r, apiutil.HandlerError{
				Status:  http.StatusTooManyRequests,
				Message: "Too many reservation attempts. Please wait and try again.",
			})
			return
		}
		h.limiter.RecordReservation(req.Customer.Phone, ip)
	}

	ctx, cancel := context.WithTimeout(r.Context(), bookingRequestTimeout)
	defer cancel()

	created, err := h.service.CreateReservation(ctx, booking.ReservationRequest{
		CourtID:         req.CourtID,
		Date:            date,
		Slots:           req.Slots,
		Customer:        req.Customer,
		Notes:           req.Notes,
		PaymentProofURL: req.PaymentProofURL,
	})
	if err != nil {
		apiutil.WriteError(w, r, classify(err))
		return
	}

	logger.Info().Int64("booking_id", created.ID).Msg("Booking created via API")
	h.respond(w, r, http.StatusCreated, created)
}

type BookingListResponse struct {
	Bookings []models.Booking `json:"bookings"`
	Count    int              `json:"count"`
}

// GET /api/v1/bookings?from=YYYY-MM-DD&to=YYYY-MM-DD&status=Confirmed&q=ana&limit=N
func (h *Handlers) HandleBookingsList(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	var (
		filter models.BookingFilter
		err    error
	)
	if raw := query.Get("from"); raw != "" {
		if filter.From, err = apiutil.ParseDate(raw, "from", h.loc); err != nil {
			apiutil.WriteError(w, r, err)
			return
		}
	}
	if raw := query.Get("to"); raw != "" {
		if filter.To, err = apiutil.ParseDate(raw, "to", h.loc); err != nil {
			apiutil.WriteError(w, r, err)
			return
		}
	}
	if !filter.From.IsZero() && !filter.To.IsZero() && filter.To.Before(filter.From) {
		apiutil.WriteError(w, r, apiutil.FieldError{Field: "to", Reason: "must not be before from"})
		return
	}
	if raw := query.Get("status"); raw != "" {
		filter.Status = models.Status(raw)
		if !filter.Status.Valid() {
			apiutil.WriteError(w, r, apiutil.FieldError{Field: "status", Reason: "must be Confirmed, Rescheduled or Cancelled"})
			return
		}
	}
	filter.Query = query.Get("q")
	if filter.Limit, err = apiutil.ParseBoundedInt(query.Get("limit"), "limit", defaultListLimit, 1, maxListLimit); err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), bookingRequestTimeout)
	defer cancel()

	found, err := h.bookings.SearchBookings(ctx, filter)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, BookingListResponse{Bookings: found, Count: len(found)})
}

// GET /api/v1/bookings/{id}
func (h *Handlers) HandleBookingGet(w http.ResponseWriter, r *http.Request) {
	bookingID, err := apiutil.PathID(r, "id")
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), bookingRequestTimeout)
	defer cancel()

	b, err := h.service.Booking(ctx, bookingID)
	if err != nil {
		apiutil.WriteError(w, r, classify(err))
		return
	}
	h.respond(w, r, http.StatusOK, b)
}

type RescheduleRequest struct {
	Date   string         `json:"date"`
	Slots  []slots.Slot   `json:"slots"`
	Reason booking.Reason `json:"reason"`
}

type RescheduleResponse struct {
	Booking models.Booking `json:"booking"`
	Delta   booking.Delta  `json:"delta"`
	// Message is the customer notice for staff to forward by text.
	Message string `json:"message"`
}

// POST /api/v1/bookings/{id}/reschedule
func (h *Handlers) HandleReschedule(w http.ResponseWriter, r *http.Request) {
	bookingID, err := apiutil.PathID(r, "id")
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	var req RescheduleRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, r, badRequest(err))
		return
	}
	date, err := apiutil.ParseDate(req.Date, "date", h.loc)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), bookingRequestTimeout)
	defer cancel()

	result, err := h.service.Reschedule(ctx, booking.RescheduleRequest{
		BookingID: bookingID,
		NewDate:   date,
		Slots:     req.Slots,
		Reason:    req.Reason,
	})
	if err != nil {
		apiutil.WriteError(w, r, classify(err))
		return
	}

	details := email.DescribeReschedule(h.venueName, models.Court{}, result.Booking, result.Delta)
	h.respond(w, r, http.StatusOK, RescheduleResponse{
		Booking: result.Booking,
		Delta:   result.Delta,
		Message: email.BuildRescheduleText(details),
	})
}

// POST /api/v1/bookings/{id}/cancel
func (h *Handlers) HandleCancel(w http.ResponseWriter, r *http.Request) {
	bookingID, err := apiutil.PathID(r, "id")
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), bookingRequestTimeout)
	defer cancel()

	cancelled, err := h.service.Cancel(ctx, bookingID)
	if err != nil {
		apiutil.WriteError(w, r, classify(err))
		return
	}
	h.respond(w, r, http.StatusOK, cancelled)
}

type PaymentProofRequest struct {
	URL string `json:"url"`
}

// PUT /api/v1/bookings/{id}/payment-proof
func (h *Handlers) HandlePaymentProof(w http.ResponseWriter, r *http.Request) {
	bookingID, err := apiutil.PathID(r, "id")
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	var req PaymentProofRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, r, badRequest(err))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), bookingRequestTimeout)
	defer cancel()

	updated, err := h.service.AttachPaymentProof(ctx, bookingID, req.URL)
	if err != nil {
		apiutil.WriteError(w, r, classify(err))
		return
	}
	h.respond(w, r, http.StatusOK, updated)
}

func (h *Handlers) respond(w http.ResponseWriter, r *http.Request, status int, payload any) {
	if err := apiutil.WriteJSON(w, status, payload); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("Failed to write response")
	}
}

func badRequest(err error) error {
	return apiutil.HandlerError{Status: http.StatusBadRequest, Message: err.Error(), Err: err}
}
