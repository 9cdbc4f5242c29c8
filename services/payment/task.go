package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"marketplace-backend/pkg/blockchain"
	"marketplace-backend/pkg/task"
	"marketplace-backend/services/order"
)

var (
	broadcastsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_broadcasts_total",
		Help: "Payout broadcasts handed to the blockchain gateway, by outcome.",
	}, []string{"outcome"})
)

func init() {
	prometheus.MustRegister(broadcastsTotal)
}

const (
	confirmDelay    = 5 * time.Second
	confirmMaxRetry = 12
)

type Task struct {
	gateway  blockchain.Gateway
	orders   *order.Service
	enqueuer task.Enqueuer
}

type TaskParams struct {
	fx.In

	Gateway  blockchain.Gateway
	Orders   *order.Service
	Enqueuer task.Enqueuer
}

func NewTask(p TaskParams) *Task {
	return &Task{
		gateway:  p.Gateway,
		orders:   p.Orders,
		enqueuer: p.Enqueuer,
	}
}

// HandleBroadcast submits the payout to the gateway exactly once. A rejected
// broadcast fails the order with a structured error; confirmation of an
// accepted one is left to the confirm task.
func (t *Task) HandleBroadcast(ctx context.Context, tk *asynq.Task) error {
	var payload BroadcastPayload
	if err := json.Unmarshal(tk.Payload(), &payload); err != nil {
		return fmt.Errorf("invalid payload: %v: %w", err, asynq.SkipRetry)
	}

	zapLog := zap.L().With(
		zap.String("task_type", tk.Type()),
		zap.String("order_id", payload.OrderID),
		zap.String("app_id", payload.AppID),
	)

	receipt, err := t.gateway.PayTo(ctx, payload.RecipientAddress, payload.AppID, payload.Amount, payload.OrderID)
	if err != nil {
		broadcastsTotal.WithLabelValues("rejected").Inc()
		zapLog.Error("payout broadcast rejected", zap.Error(err))

		if failErr := t.orders.FailPayment(ctx, payload.OrderID, order.OrderError{
			Code:    "payment_rejected",
			Error:   "PaymentRejected",
			Message: err.Error(),
		}); failErr != nil {
			return failErr
		}
		return fmt.Errorf("broadcast rejected: %v: %w", err, asynq.SkipRetry)
	}

	broadcastsTotal.WithLabelValues("accepted").Inc()
	zapLog.Info("payout broadcast accepted", zap.String("transaction_id", receipt.TransactionID))

	confirm, err := json.Marshal(ConfirmPayload{
		OrderID:       payload.OrderID,
		TransactionID: receipt.TransactionID,
	})
	if err != nil {
		return err
	}

	_, err = t.enqueuer.Enqueue(
		asynq.NewTask(TaskConfirm, confirm),
		asynq.Queue("critical"),
		asynq.ProcessIn(confirmDelay),
		asynq.MaxRetry(confirmMaxRetry),
	)
	return err
}

// HandleConfirm polls the gateway for the payment's terminal state. A still
// pending payment re-queues through asynq's retry; the order's own pending
// timeout bounds how long that matters.
func (t *Task) HandleConfirm(ctx context.Context, tk *asynq.Task) error {
	var payload ConfirmPayload
	if err := json.Unmarshal(tk.Payload(), &payload); err != nil {
		return fmt.Errorf("invalid payload: %v: %w", err, asynq.SkipRetry)
	}

	payment, err := t.gateway.GetPayment(ctx, payload.OrderID)
	if err != nil {
		return err
	}

	switch payment.State {
	case blockchain.StateConfirmed:
		return t.orders.CompletePayment(ctx, payload.OrderID, order.BlockchainData{
			TransactionID:    payment.TransactionID,
			RecipientAddress: payment.RecipientAddress,
		})
	case blockchain.StateFailed:
		return t.orders.FailPayment(ctx, payload.OrderID, order.OrderError{
			Code:    fmt.Sprintf("payment_failed_%d", payment.FailureCode),
			Error:   "PaymentFailed",
			Message: payment.FailureMessage,
		})
	default:
		return fmt.Errorf("payment for order %s still pending", payload.OrderID)
	}
}
