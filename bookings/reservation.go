package bookings

import (
	"strings"
	"time"
)

// Reservation status values. Legacy documents also spell "canceled".
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
)

// Service is an extra booked on top of the stay (chef, transfer, boat day...).
type Service struct {
	ID       string
	Type     string
	Name     string
	Date     time.Time
	Price    float64
	Quantity float64
	Status   string
}

// Subtotal is price × quantity; a missing quantity counts as one.
func (s Service) Subtotal() float64 {
	q := s.Quantity
	if q <= 0 {
		q = 1
	}
	return round2(s.Price * q)
}

// Reservation is the normalized view of a booking document.
type Reservation struct {
	ID           string
	CompanyID    string
	ClientID     string
	ClientName   string
	VillaID      string
	BoatID       string
	PropertyName string
	Status       string
	Currency     string
	CheckIn      time.Time
	CheckOut     time.Time
	Guests       int

	BasePrice     float64
	ExplicitTotal float64
	LegacyPaid    float64
	Services      []Service
	Payments      []Payment
}

// Cancelled reports whether the reservation no longer counts towards revenue.
func (r Reservation) Cancelled() bool {
	return r.Status == StatusCancelled
}

// NormalizeReservation reads a reservation document in any of its historical shapes.
func NormalizeReservation(doc map[string]any) Reservation {
	r := Reservation{
		ID:           stringField(doc, "id", "_id"),
		CompanyID:    stringField(doc, "company", "companyId", "company_id"),
		ClientID:     stringField(doc, "client_id", "clientId", "client.id"),
		ClientName:   stringField(doc, "client_name", "clientName", "client.name", "guestName", "guest_name"),
		VillaID:      stringField(doc, "villa_id", "villaId", "villa.id"),
		BoatID:       stringField(doc, "boat_id", "boatId", "boat.id"),
		PropertyName: stringField(doc, "property_name", "propertyName", "villa.name", "villaName", "boat.name", "boatName"),
		Status:       normalizeStatus(stringField(doc, "status", "bookingStatus", "booking_status")),
		Currency:     strings.ToUpper(stringField(doc, "currency", "pricing.currency")),
		CheckIn:      dateField(doc, "check_in", "checkIn", "checkInDate", "check_in_date", "startDate", "start_date", "dates.checkIn", "dates.start"),
		CheckOut:     dateField(doc, "check_out", "checkOut", "checkOutDate", "check_out_date", "endDate", "end_date", "dates.checkOut", "dates.end"),
		Guests:       int(amountField(doc, "guests", "guestCount", "guest_count", "numberOfGuests")),

		BasePrice:     amountField(doc, "base_price", "basePrice", "pricing.basePrice", "pricing.base"),
		ExplicitTotal: amountField(doc, "total_amount", "totalAmount", "totalPrice", "total_price", "pricing.total", "total"),
		LegacyPaid:    amountField(doc, "paid_amount", "paidAmount", "amountPaid", "amount_paid", "deposit_paid", "depositPaid"),
	}

	if v, ok := lookup(doc, "services", "extras", "additionalServices", "additional_services"); ok {
		for _, item := range asList(v) {
			r.Services = append(r.Services, normalizeService(item))
		}
	}
	if v, ok := lookup(doc, "payments", "paymentHistory", "payment_history"); ok {
		for _, item := range asList(v) {
			r.Payments = append(r.Payments, NormalizePayment(item))
		}
	}

	return r
}

func normalizeService(doc map[string]any) Service {
	return Service{
		ID:       stringField(doc, "id"),
		Type:     strings.ToLower(stringField(doc, "type", "category")),
		Name:     stringField(doc, "name", "title", "description"),
		Date:     dateField(doc, "date", "serviceDate", "service_date"),
		Price:    amountField(doc, "price", "amount", "total", "cost"),
		Quantity: amountField(doc, "quantity", "qty", "units"),
		Status:   normalizeStatus(stringField(doc, "status")),
	}
}

func normalizeStatus(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "canceled" {
		return StatusCancelled
	}
	return s
}
