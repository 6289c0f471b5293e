package bookings

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeReservationLegacyShape(t *testing.T) {
	doc := map[string]any{
		"id":         "r1",
		"companyId":  "acme",
		"clientId":   "c1",
		"clientName": "Ana Silva",
		"villaName":  "Villa Azul",
		"checkIn":    map[string]any{"_seconds": float64(time.Date(2024, 7, 1, 14, 0, 0, 0, time.UTC).Unix())},
		"checkOut":   "2024-07-08",
		"status":     "Canceled",
		"currency":   "eur",
		"basePrice":  "3.500",
		"services": map[string]any{
			"s1": map[string]any{"name": "Chef", "price": 200, "qty": 2},
			"s2": map[string]any{"name": "Transfer", "price": "80", "status": "cancelled"},
		},
		"paymentHistory": []any{
			map[string]any{"amount": "1.000", "method": "Card"},
		},
	}

	r := NormalizeReservation(doc)
	assert.Equal(t, "r1", r.ID)
	assert.Equal(t, "acme", r.CompanyID)
	assert.Equal(t, "c1", r.ClientID)
	assert.Equal(t, "Ana Silva", r.ClientName)
	assert.Equal(t, "Villa Azul", r.PropertyName)
	assert.Equal(t, StatusCancelled, r.Status)
	assert.Equal(t, "EUR", r.Currency)
	assert.Equal(t, 3500.0, r.BasePrice)
	require.Len(t, r.Services, 2)
	assert.Equal(t, "s1", r.Services[0].ID)
	assert.Equal(t, 400.0, r.Services[0].Subtotal())
	require.Len(t, r.Payments, 1)
	assert.Equal(t, "card", r.Payments[0].Method)
	assert.Equal(t, PaymentTypePayment, r.Payments[0].Type)
	assert.Equal(t, 2024, r.CheckIn.Year())
	assert.Equal(t, time.July, r.CheckOut.Month())
}

func TestSummarize(t *testing.T) {
	tests := []struct {
		name string
		doc  map[string]any
		want Summary
	}{
		{
			name: "explicit total wins over services",
			doc: map[string]any{
				"total_amount": 1000,
				"base_price":   700,
				"services":     []any{map[string]any{"price": 500}},
				"payments":     []any{map[string]any{"amount": 400}},
			},
			want: Summary{Total: 1000, Paid: 400, Due: 600, Status: PaymentPartial},
		},
		{
			name: "total from base price and live services",
			doc: map[string]any{
				"basePrice": 700,
				"services": []any{
					map[string]any{"price": 100, "quantity": 3},
					map[string]any{"price": 999, "status": "cancelled"},
				},
			},
			want: Summary{Total: 1000, Due: 1000, Status: PaymentUnpaid},
		},
		{
			name: "paid within tolerance",
			doc: map[string]any{
				"totalAmount": 100,
				"payments":    []any{map[string]any{"amount": 99.99}},
			},
			want: Summary{Total: 100, Paid: 99.99, Due: 0.01, Status: PaymentPaid},
		},
		{
			name: "refunds and failed payments",
			doc: map[string]any{
				"totalAmount": 500,
				"payments": []any{
					map[string]any{"amount": 600},
					map[string]any{"amount": 100, "type": "refund"},
					map[string]any{"amount": 300, "status": "failed"},
				},
			},
			want: Summary{Total: 500, Paid: 500, Status: PaymentPaid},
		},
		{
			name: "overpaid",
			doc: map[string]any{
				"total": 200,
				"payments": []any{
					map[string]any{"amount": 250},
				},
			},
			want: Summary{Total: 200, Paid: 250, Overpaid: 50, Status: PaymentPaid},
		},
		{
			name: "legacy paid amount without history",
			doc:  map[string]any{"totalPrice": "2,000", "amountPaid": "500"},
			want: Summary{Total: 2000, Paid: 500, Due: 1500, Status: PaymentPartial},
		},
		{
			name: "history wins over legacy amount",
			doc: map[string]any{
				"totalPrice": 2000,
				"paidAmount": 2000,
				"payments":   []any{map[string]any{"amount": 100}},
			},
			want: Summary{Total: 2000, Paid: 100, Due: 1900, Status: PaymentPartial},
		},
		{
			name: "unpriced",
			doc:  map[string]any{},
			want: Summary{Status: PaymentUnpriced},
		},
		{
			name: "cancelled",
			doc:  map[string]any{"status": "cancelled", "total_amount": 300},
			want: Summary{Total: 300, Due: 300, Status: PaymentCancelled},
		},
		{
			name: "tiny payment is still unpaid",
			doc: map[string]any{
				"total_amount": 300,
				"payments":     []any{map[string]any{"amount": 0.01}},
			},
			want: Summary{Total: 300, Paid: 0.01, Due: 299.99, Status: PaymentUnpaid},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Summarize(NormalizeReservation(tt.doc)))
		})
	}
}

func TestNewPayment(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	p, err := NewPayment(PaymentInput{Amount: 150.456}, now)
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, 150.46, p.Amount)
	assert.Equal(t, "transfer", p.Method)
	assert.Equal(t, PaymentTypePayment, p.Type)
	assert.Equal(t, now, p.Date)

	doc := p.Document()
	assert.Equal(t, "2024-05-01T10:00:00Z", doc["date"])
	assert.Equal(t, p.ID, NormalizePayment(doc).ID)

	refund, err := NewPayment(PaymentInput{Amount: 20, Type: "Refund", Method: "CASH"}, now)
	require.NoError(t, err)
	assert.Equal(t, -20.0, refund.Signed())

	for _, in := range []PaymentInput{
		{Amount: 0},
		{Amount: -5},
		{Amount: 10, Method: "bitcoin"},
		{Amount: 10, Type: "chargeback"},
	} {
		_, err := NewPayment(in, now)
		assert.True(t, errors.Is(err, ErrInvalidPayment), "input %+v", in)
	}
}

func TestRemovePayment(t *testing.T) {
	entries := []map[string]any{
		{"id": "a", "amount": 10},
		{"id": "b", "amount": 20},
	}

	out, err := RemovePayment(entries, "a")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "b", out[0]["id"])

	_, err = RemovePayment(entries, "zzz")
	assert.ErrorIs(t, err, ErrPaymentNotFound)

	_, err = RemovePayment(entries, "")
	assert.ErrorIs(t, err, ErrPaymentNotFound)
}
