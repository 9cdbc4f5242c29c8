package blockchain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/fx"

	"marketplace-backend/pkg/config"
	"marketplace-backend/pkg/errutil"
)

var Module = fx.Module("blockchain",
	fx.Provide(NewHTTPGateway),
)

// PaymentState is the gateway-side lifecycle of a broadcast transfer.
type PaymentState string

const (
	StatePending   PaymentState = "pending"
	StateConfirmed PaymentState = "confirmed"
	StateFailed    PaymentState = "failed"
)

type BroadcastReceipt struct {
	TransactionID    string `json:"transaction_id"`
	RecipientAddress string `json:"recipient_address"`
}

type Payment struct {
	OrderID          string       `json:"order_id"`
	TransactionID    string       `json:"transaction_id"`
	RecipientAddress string       `json:"recipient_address"`
	State            PaymentState `json:"state"`
	FailureCode      int          `json:"failure_code,omitempty"`
	FailureMessage   string       `json:"failure_message,omitempty"`
}

// Gateway is the external blockchain-submission capability. Broadcast
// delivery is at-least-once on the gateway side; callers do not retry.
type Gateway interface {
	PayTo(ctx context.Context, address, appID string, amount int64, orderID string) (*BroadcastReceipt, error)
	GetPayment(ctx context.Context, orderID string) (*Payment, error)
}

type HTTPGateway struct {
	base   string
	client *http.Client
}

type Params struct {
	fx.In

	Config *config.Config
}

func NewHTTPGateway(p Params) Gateway {
	timeout := p.Config.Blockchain.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &HTTPGateway{
		base:   p.Config.Blockchain.Addr,
		client: &http.Client{Timeout: timeout},
	}
}

type payRequest struct {
	OrderID          string `json:"order_id"`
	AppID            string `json:"app_id"`
	RecipientAddress string `json:"recipient_address"`
	Amount           int64  `json:"amount"`
}

func (g *HTTPGateway) PayTo(ctx context.Context, address, appID string, amount int64, orderID string) (*BroadcastReceipt, error) {
	body, err := json.Marshal(payRequest{
		OrderID:          orderID,
		AppID:            appID,
		RecipientAddress: address,
		Amount:           amount,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.base+"/payments", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, gatewayError(resp)
	}

	var receipt BroadcastReceipt
	if err := json.NewDecoder(resp.Body).Decode(&receipt); err != nil {
		return nil, err
	}
	return &receipt, nil
}

func (g *HTTPGateway) GetPayment(ctx context.Context, orderID string) (*Payment, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.base+"/payments/"+orderID, nil)
	if err != nil {
		return nil, err
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, errutil.NotFound("payment not found", errutil.WithDetails(errutil.Detail{
			Field:   "order_id",
			Message: orderID,
		}))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, gatewayError(resp)
	}

	var payment Payment
	if err := json.NewDecoder(resp.Body).Decode(&payment); err != nil {
		return nil, err
	}
	return &payment, nil
}

func gatewayError(resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return errutil.New(errutil.StatusBadGateway,
		fmt.Sprintf("blockchain gateway returned %d", resp.StatusCode),
		errutil.WithDetails(errutil.Detail{Field: "body", Message: string(b)}))
}
