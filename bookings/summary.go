package bookings

import "math"

// PaymentStatus is the derived settlement state of a reservation.
type PaymentStatus string

const (
	PaymentPaid      PaymentStatus = "paid"
	PaymentPartial   PaymentStatus = "partial"
	PaymentUnpaid    PaymentStatus = "unpaid"
	PaymentUnpriced  PaymentStatus = "unpriced"
	PaymentCancelled PaymentStatus = "cancelled"
)

// tolerance absorbs rounding left over by hand-entered partial payments.
const tolerance = 0.01

// Summary holds the money figures of one reservation.
type Summary struct {
	Total    float64       `json:"total"`
	Paid     float64       `json:"paid"`
	Due      float64       `json:"due"`
	Overpaid float64       `json:"overpaid"`
	Status   PaymentStatus `json:"status"`
}

// Total is the explicit total when one is set, otherwise the base price plus every
// service that has not been cancelled.
func (r Reservation) Total() float64 {
	if r.ExplicitTotal > 0 {
		return r.ExplicitTotal
	}
	total := r.BasePrice
	for _, s := range r.Services {
		if s.Status == StatusCancelled {
			continue
		}
		total += s.Subtotal()
	}
	return round2(total)
}

// Paid sums the payment history, falling back to the legacy paid amount when the
// document has no history at all.
func (r Reservation) Paid() float64 {
	if len(r.Payments) == 0 {
		return r.LegacyPaid
	}
	var paid float64
	for _, p := range r.Payments {
		if p.Counts() {
			paid += p.Signed()
		}
	}
	return round2(paid)
}

// Summarize computes total, paid, due and the payment status.
func Summarize(r Reservation) Summary {
	total := r.Total()
	paid := r.Paid()

	s := Summary{
		Total:    total,
		Paid:     paid,
		Due:      round2(math.Max(total-paid, 0)),
		Overpaid: round2(math.Max(paid-total, 0)),
	}

	switch {
	case r.Cancelled():
		s.Status = PaymentCancelled
	case total <= 0 && paid <= 0:
		s.Status = PaymentUnpriced
	case paid >= total-tolerance:
		s.Status = PaymentPaid
	case paid > tolerance:
		s.Status = PaymentPartial
	default:
		s.Status = PaymentUnpaid
	}
	return s
}
