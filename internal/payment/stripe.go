package payment

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/paymentintent"

	"ticket-marketplace/internal/logger"
)

// Processor charges for a booking. The core only records the outcome; the
// actual payment handling lives behind this boundary.
type Processor interface {
	Charge(ctx context.Context, bookingID string, amount float64) (string, error)
}

// InitStripe sets the API key for the stripe-go client bindings.
func InitStripe(secretKey string) {
	stripe.Key = secretKey
}

// StripeProcessor charges bookings through Stripe payment intents.
type StripeProcessor struct {
	Logger *logger.Logger
}

func NewStripeProcessor(log *logger.Logger) *StripeProcessor {
	return &StripeProcessor{Logger: log}
}

// Charge creates and confirms a payment intent for the booking amount.
// Returns the payment intent ID as the transaction reference.
func (p *StripeProcessor) Charge(ctx context.Context, bookingID string, amount float64) (string, error) {
	p.Logger.Info("PAYMENT", fmt.Sprintf("Creating payment intent for booking: %s", bookingID))

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amountToCents(amount)),
		Currency: stripe.String("bdt"),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.AddMetadata("booking_id", bookingID)

	intent, err := paymentintent.New(params)
	if err != nil {
		p.Logger.Error("PAYMENT", fmt.Sprintf("Failed to create payment intent for booking %s: %v", bookingID, err))
		return "", fmt.Errorf("stripe payment intent failed: %w", err)
	}

	p.Logger.Info("PAYMENT", fmt.Sprintf("Payment intent %s created for booking %s", intent.ID, bookingID))
	return intent.ID, nil
}

// amountToCents converts to Stripe's smallest currency unit. Plain float
// multiplication truncates (19.99 * 100 binary-rounds to 1998.99...), so
// the conversion goes through decimal.
func amountToCents(amount float64) int64 {
	return decimal.NewFromFloat(amount).
		Mul(decimal.NewFromInt(100)).
		Round(0).
		IntPart()
}
