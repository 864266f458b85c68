package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	razorpay "github.com/razorpay/razorpay-go"
)

// RazorpayConfig holds the Razorpay API credentials and call budget.
type RazorpayConfig struct {
	KeyID     string        `env:"RAZORPAY_KEY_ID,required"`
	KeySecret string        `env:"RAZORPAY_KEY_SECRET,required"`
	Timeout   time.Duration `env:"RAZORPAY_TIMEOUT" envDefault:"10s"`
}

// RazorpayGateway implements Gateway on the Razorpay Orders API.
type RazorpayGateway struct {
	client *razorpay.Client
}

// NewRazorpayGateway creates a gateway from API credentials. The timeout
// bounds every outbound call so a hung gateway surfaces as
// ErrGatewayUnavailable instead of stalling the request.
func NewRazorpayGateway(cfg RazorpayConfig) (*RazorpayGateway, error) {
	if cfg.KeyID == "" || cfg.KeySecret == "" {
		return nil, errors.New("razorpay credentials are required")
	}
	client := razorpay.NewClient(cfg.KeyID, cfg.KeySecret)
	if cfg.Timeout > 0 {
		// The SDK takes whole seconds; round up so sub-second configs
		// still get a bound.
		secs := int64(cfg.Timeout / time.Second)
		if cfg.Timeout%time.Second != 0 {
			secs++
		}
		client.SetTimeout(int16(secs))
	}
	return &RazorpayGateway{client: client}, nil
}

// CreateOrder registers an order with Razorpay. The client SDK is not
// context-aware, so cancellation only short-circuits before the call.
func (g *RazorpayGateway) CreateOrder(ctx context.Context, amount int64, currency, receipt string, notes map[string]string) (GatewayOrder, error) {
	if err := ctx.Err(); err != nil {
		return GatewayOrder{}, err
	}

	data := map[string]interface{}{
		"amount":   amount,
		"currency": currency,
		"receipt":  receipt,
	}
	if len(notes) > 0 {
		noteData := make(map[string]interface{}, len(notes))
		for k, v := range notes {
			noteData[k] = v
		}
		data["notes"] = noteData
	}

	body, err := g.client.Order.Create(data, nil)
	if err != nil {
		return GatewayOrder{}, errors.Join(ErrGatewayUnavailable, err)
	}

	id, ok := body["id"].(string)
	if !ok || id == "" {
		return GatewayOrder{}, fmt.Errorf("%w: order response missing id", ErrGatewayUnavailable)
	}
	return GatewayOrder{ID: id, Amount: amount, Currency: currency}, nil
}

// FetchPayment returns Razorpay's status string for a payment, such as
// "captured" or "failed".
func (g *RazorpayGateway) FetchPayment(ctx context.Context, paymentID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	body, err := g.client.Payment.Fetch(paymentID, nil, nil)
	if err != nil {
		return "", errors.Join(ErrGatewayUnavailable, err)
	}

	status, ok := body["status"].(string)
	if !ok {
		return "", fmt.Errorf("%w: payment response missing status", ErrGatewayUnavailable)
	}
	return status, nil
}
