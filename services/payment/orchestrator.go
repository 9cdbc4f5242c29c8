package payment

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/fx"

	"marketplace-backend/pkg/task"
)

// Orchestrator is a thin transition trigger around the external blockchain
// capability: PayTo only hands the broadcast to the task queue. Broadcast
// retries are the gateway's concern, not ours, so the broadcast task never
// re-runs on failure.
type Orchestrator struct {
	enqueuer task.Enqueuer
}

type OrchestratorParams struct {
	fx.In

	Enqueuer task.Enqueuer
}

func NewOrchestrator(p OrchestratorParams) *Orchestrator {
	return &Orchestrator{enqueuer: p.Enqueuer}
}

func (o *Orchestrator) PayTo(_ context.Context, address, appID string, amount int64, orderID string) error {
	payload, err := json.Marshal(BroadcastPayload{
		OrderID:          orderID,
		AppID:            appID,
		RecipientAddress: address,
		Amount:           amount,
	})
	if err != nil {
		return err
	}

	if _, err := o.enqueuer.Enqueue(
		asynq.NewTask(TaskBroadcast, payload),
		asynq.Queue("critical"),
		asynq.MaxRetry(0),
	); err != nil {
		return fmt.Errorf("failed to enqueue payout for order %s: %w", orderID, err)
	}
	return nil
}
