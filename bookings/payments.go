package bookings

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidPayment  = errors.New("invalid payment")
	ErrPaymentNotFound = errors.New("payment not found")
)

// Payment methods accepted on new payments.
var PaymentMethods = []string{"cash", "card", "transfer", "other"}

const (
	PaymentTypePayment = "payment"
	PaymentTypeRefund  = "refund"
)

// Payment is one entry of a reservation's payment history.
type Payment struct {
	ID     string
	Amount float64
	Method string
	Type   string
	Status string
	Note   string
	Date   time.Time
}

// Counts reports whether the entry moves money; failed or voided entries do not.
func (p Payment) Counts() bool {
	switch p.Status {
	case "refunded", "failed", "cancelled", "void":
		return false
	}
	return true
}

// Signed returns the amount with refunds negated.
func (p Payment) Signed() float64 {
	if p.Type == PaymentTypeRefund {
		return -math.Abs(p.Amount)
	}
	return p.Amount
}

// Document renders the payment the way it is stored in the reservation's payments list.
func (p Payment) Document() map[string]any {
	doc := map[string]any{
		"id":     p.ID,
		"amount": p.Amount,
		"method": p.Method,
		"type":   p.Type,
		"status": p.Status,
		"note":   p.Note,
	}
	if !p.Date.IsZero() {
		doc["date"] = p.Date.UTC().Format(time.RFC3339)
	}
	return doc
}

// NormalizePayment reads a stored payment entry.
func NormalizePayment(doc map[string]any) Payment {
	p := Payment{
		ID:     stringField(doc, "id", "paymentId", "payment_id"),
		Amount: amountField(doc, "amount", "value", "paid", "sum"),
		Method: strings.ToLower(stringField(doc, "method", "paymentMethod", "payment_method")),
		Type:   strings.ToLower(stringField(doc, "type", "kind")),
		Status: normalizeStatus(stringField(doc, "status")),
		Note:   stringField(doc, "note", "notes", "description"),
		Date:   dateField(doc, "date", "paidAt", "paid_at", "createdAt", "created_at", "timestamp"),
	}
	if p.Type == "" {
		p.Type = PaymentTypePayment
	}
	return p
}

// PaymentInput is what a user submits when recording a payment.
type PaymentInput struct {
	Amount float64   `json:"amount"`
	Method string    `json:"method"`
	Type   string    `json:"type"`
	Note   string    `json:"note"`
	Date   time.Time `json:"date"`
}

// NewPayment validates input and returns a payment with a fresh id.
// Method defaults to transfer, type to payment and date to now.
func NewPayment(in PaymentInput, now time.Time) (Payment, error) {
	amount := round2(in.Amount)
	if amount <= 0 || math.IsNaN(in.Amount) || math.IsInf(in.Amount, 0) {
		return Payment{}, fmt.Errorf("%w: amount must be greater than zero", ErrInvalidPayment)
	}

	method := strings.ToLower(strings.TrimSpace(in.Method))
	if method == "" {
		method = "transfer"
	}
	if !slices.Contains(PaymentMethods, method) {
		return Payment{}, fmt.Errorf("%w: unknown method %q", ErrInvalidPayment, in.Method)
	}

	typ := strings.ToLower(strings.TrimSpace(in.Type))
	if typ == "" {
		typ = PaymentTypePayment
	}
	if typ != PaymentTypePayment && typ != PaymentTypeRefund {
		return Payment{}, fmt.Errorf("%w: unknown type %q", ErrInvalidPayment, in.Type)
	}

	date := in.Date
	if date.IsZero() {
		date = now
	}

	return Payment{
		ID:     uuid.NewString(),
		Amount: amount,
		Method: method,
		Type:   typ,
		Status: "completed",
		Note:   strings.TrimSpace(in.Note),
		Date:   date,
	}, nil
}

// RemovePayment drops the entry with the given id from a stored payments list.
func RemovePayment(entries []map[string]any, id string) ([]map[string]any, error) {
	out := make([]map[string]any, 0, len(entries))
	found := false
	for _, e := range entries {
		if !found && id != "" && NormalizePayment(e).ID == id {
			found = true
			continue
		}
		out = append(out, e)
	}
	if !found {
		return entries, fmt.Errorf("%w: %s", ErrPaymentNotFound, id)
	}
	return out, nil
}

// PaymentEntries returns a stored payments value as a list of maps.
func PaymentEntries(v any) []map[string]any {
	return asList(v)
}
